package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/grabber/pkg/web"
)

const serveUsage = `USAGE:
  grabber serve [options]

SERVER:
  -a,   --addr                   listen address                                          (Default: :8501, env GRABBER_ADDR)
  -u,   --public-url             URL the rasterizer loads pages from                     (Default: derived, env GRABBER_PUBLIC_URL)
  -fh,  --frame-height           initial height of the capture panel                     (Default: 550)

CAPTURE:
  -e,   --engine                 rasterizer engine (rod, chromedp)                       (Default: rod)
  -b,   --browser                browser binary                                          (Default: looked up)
  -sc,  --scale                  upscale factor, at least 2                              (Default: 2)
  -to,  --timeout                capture timeout (seconds)                               (Default: 30)
  -ua,  --user-agent             specify user agent                                      (Default: Chrome UA)
  -d,   --display                display to share, -1 for all                            (Default: 0)
        --fps                    frame rate of the shared screen                         (Default: 5)
        --auto-grant             grant screen shares without asking the browser          (Default: false)
        --imprint                add the page URL under page captures                    (Default: false)

OUTPUT:
  -s,   --silence                silence output
        --debug                  enable debug mode
        --version                display version
`

func runServe(ctx context.Context, args []string) error {
	cfg, err := parseServeFlags(args)
	if err != nil {
		return err
	}

	s := web.NewServer(cfg)

	errc := make(chan error, 1)
	go func() { errc <- s.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Debug("Shutting down")
		return s.Shutdown()
	}
}

func parseServeFlags(args []string) (web.Config, error) {
	var ver, debug, silence bool

	cfg := web.NewConfig()
	timeout := int(cfg.Document.Timeout / time.Second)

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() { fmt.Print(serveUsage) }

	// SERVER
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "")
	fs.StringVar(&cfg.PublicURL, "u", cfg.PublicURL, "")
	fs.IntVar(&cfg.FrameHeight, "frame-height", cfg.FrameHeight, "")
	fs.IntVar(&cfg.FrameHeight, "fh", cfg.FrameHeight, "")

	// CAPTURE
	fs.StringVar(&cfg.Document.Engine, "engine", cfg.Document.Engine, "")
	fs.StringVar(&cfg.Document.Engine, "e", cfg.Document.Engine, "")
	fs.StringVar(&cfg.Document.BrowserBin, "browser", "", "")
	fs.StringVar(&cfg.Document.BrowserBin, "b", "", "")
	fs.Float64Var(&cfg.Document.Scale, "scale", cfg.Document.Scale, "")
	fs.Float64Var(&cfg.Document.Scale, "sc", cfg.Document.Scale, "")
	fs.IntVar(&timeout, "timeout", timeout, "")
	fs.IntVar(&timeout, "to", timeout, "")
	fs.StringVar(&cfg.Document.UserAgent, "user-agent", cfg.Document.UserAgent, "")
	fs.StringVar(&cfg.Document.UserAgent, "ua", cfg.Document.UserAgent, "")
	fs.IntVar(&cfg.Screen.Display, "display", cfg.Screen.Display, "")
	fs.IntVar(&cfg.Screen.Display, "d", cfg.Screen.Display, "")
	fs.IntVar(&cfg.Screen.FrameRate, "fps", cfg.Screen.FrameRate, "")
	fs.BoolVar(&cfg.AutoGrant, "auto-grant", false, "")
	fs.BoolVar(&cfg.Imprint, "imprint", false, "")

	// OUTPUT
	fs.BoolVar(&silence, "silence", false, "")
	fs.BoolVar(&silence, "s", false, "")
	fs.BoolVar(&debug, "debug", false, "")
	fs.BoolVar(&ver, "version", false, "")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	setLogLevel(debug, silence)

	if ver {
		fmt.Println("grabber", version, "by", author)
		return cfg, errVersion
	}

	if cfg.Screen.FrameRate < 1 {
		return cfg, fmt.Errorf("invalid frame rate %d", cfg.Screen.FrameRate)
	}

	cfg.Document.Timeout = time.Duration(timeout) * time.Second
	return cfg, nil
}
