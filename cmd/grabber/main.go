package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/root4loot/goutils/log"
)

const (
	author  = "@danielantonsen"
	version = "0.2.0"
	usage   = `USAGE:
  grabber serve [options]
  grabber snap [options] (-t <target> | -l <targets.txt> | --screen)

COMMANDS:
  serve                          serve the capture pages (page and screen variants)
  snap                           capture targets headlessly and save the results (default)

Run 'grabber <command> -h' for the options of a command.
`
)

func init() {
	log.Init("grabber")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := command(os.Args[1:])

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, args)
	case "snap":
		err = runSnap(ctx, args)
	case "help":
		fmt.Print(usage)
		return
	default:
		log.Errorf("Unknown command %q", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}

	switch {
	case err == nil, errors.Is(err, flag.ErrHelp), errors.Is(err, errVersion):
	case errors.Is(err, errNoTarget):
		log.Error("No target specified")
		fmt.Print(snapUsage)
	default:
		log.Errorf("%s: %v", cmd, rootCause(err))
		os.Exit(1)
	}
}

// command splits the subcommand from its arguments. Without one, snap is
// assumed so that flags can be given directly.
func command(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "snap", args
	}
	return args[0], args[1:]
}

func setLogLevel(debug, silence bool) {
	switch {
	case silence:
		log.SetLevel(log.FatalLevel)
	case debug:
		log.SetLevel(log.DebugLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
