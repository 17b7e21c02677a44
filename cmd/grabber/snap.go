package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/root4loot/goutils/fileutil"
	"github.com/root4loot/goutils/log"
	"github.com/root4loot/goutils/urlutil"
	"github.com/root4loot/grabber/pkg/bridge"
	"github.com/root4loot/grabber/pkg/capture"
	"github.com/root4loot/grabber/pkg/host"
	"github.com/root4loot/grabber/pkg/output"
)

const snapUsage = `USAGE:
  grabber snap [options] (-t <target> | -l <targets.txt> | --screen)

INPUT:
  -t,   --target                 target input (domain, IP, URL), comma separated
  -l,   --list                   input file with list of targets (one per line)
        --screen                 capture the display instead of targets

CONFIGURATIONS:
  -c,   --concurrency            number of concurrent captures                           (Default: 10)
  -e,   --engine                 rasterizer engine (rod, chromedp)                       (Default: rod)
  -b,   --browser                browser binary                                          (Default: looked up)
  -sc,  --scale                  upscale factor, at least 2                              (Default: 2)
  -to,  --timeout                capture timeout (seconds)                               (Default: 30)
  -ua,  --user-agent             specify user agent                                      (Default: Chrome UA)
  -uh,  --use-http2              use HTTP2                                               (Default: false)
  -cw,  --capture-width          initial viewport width                                  (Default: 1366)
  -ch,  --capture-height         initial viewport height                                 (Default: 768)
  -dc,  --delay-capture          delay before capture (milliseconds)                     (Default: 500)
  -rce, --respect-cert-err       respect certificate errors                              (Default: false)
  -d,   --display                display to capture with --screen, -1 for all            (Default: 0)

OUTPUT:
  -o,   --outfolder              save outputs to specified folder                        (Default: ./screenshots)
  -nt,  --no-text                do not add text to output images                        (Default: false)
        --pdf                    also save each capture as PDF                           (Default: false)
        --data-url               print the delivered data URL to stdout                  (Default: false)
  -ad,  --avoid-duplicates       skip captures similar to one already saved              (Default: false)
  -dt,  --duplicate-threshold    similarity score (1-100) that marks a duplicate         (Default: 96)
  -s,   --silence                silence output
        --debug                  enable debug mode
        --version                display version
`

type snapCLI struct {
	TargetURL            string
	Infile               string
	Concurrency          int
	SaveScreenshotFolder string
	NoImprint            bool
	PDF                  bool
	PrintDataURL         bool
	AvoidDuplicates      bool
	DuplicateThreshold   int
	Screen               bool
	Document             capture.DocumentOptions
	ScreenOptions        capture.ScreenOptions

	stdin io.Reader
	dedup *output.Deduper
}

func newSnapCLI() *snapCLI {
	return &snapCLI{
		Concurrency:          10,
		SaveScreenshotFolder: "./screenshots",
		DuplicateThreshold:   output.DefaultDuplicateThreshold,
		Document:             capture.NewDocumentOptions(),
		ScreenOptions:        capture.NewScreenOptions(),
	}
}

func runSnap(ctx context.Context, args []string) error {
	cli := newSnapCLI()
	if err := cli.parseFlags(args); err != nil {
		return err
	}

	if cli.Screen {
		return cli.captureScreen(ctx)
	}

	targets := make(chan string)
	var readErr error
	go func() {
		defer close(targets)
		readErr = cli.processTargets(targets)
	}()

	runPool(cli.Concurrency, targets, func(t string) error { return cli.worker(ctx, t) })
	return readErr
}

func (cli *snapCLI) parseFlags(args []string) error {
	var ver, debug, silence bool
	var timeout, delay int

	fs := flag.NewFlagSet("snap", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() { fmt.Print(snapUsage) }

	// TARGET
	fs.StringVar(&cli.TargetURL, "target", "", "")
	fs.StringVar(&cli.TargetURL, "t", "", "")
	fs.StringVar(&cli.Infile, "l", "", "")
	fs.StringVar(&cli.Infile, "list", "", "")
	fs.BoolVar(&cli.Screen, "screen", false, "")

	// CONFIGURATIONS
	fs.IntVar(&cli.Concurrency, "concurrency", cli.Concurrency, "")
	fs.IntVar(&cli.Concurrency, "c", cli.Concurrency, "")
	fs.StringVar(&cli.Document.Engine, "engine", cli.Document.Engine, "")
	fs.StringVar(&cli.Document.Engine, "e", cli.Document.Engine, "")
	fs.StringVar(&cli.Document.BrowserBin, "browser", "", "")
	fs.StringVar(&cli.Document.BrowserBin, "b", "", "")
	fs.Float64Var(&cli.Document.Scale, "scale", cli.Document.Scale, "")
	fs.Float64Var(&cli.Document.Scale, "sc", cli.Document.Scale, "")
	fs.IntVar(&timeout, "timeout", int(cli.Document.Timeout/time.Second), "")
	fs.IntVar(&timeout, "to", int(cli.Document.Timeout/time.Second), "")
	fs.StringVar(&cli.Document.UserAgent, "user-agent", cli.Document.UserAgent, "")
	fs.StringVar(&cli.Document.UserAgent, "ua", cli.Document.UserAgent, "")
	fs.BoolVar(&cli.Document.UseHTTP2, "use-http2", cli.Document.UseHTTP2, "")
	fs.BoolVar(&cli.Document.UseHTTP2, "uh", cli.Document.UseHTTP2, "")
	fs.IntVar(&cli.Document.CaptureWidth, "capture-width", cli.Document.CaptureWidth, "")
	fs.IntVar(&cli.Document.CaptureWidth, "cw", cli.Document.CaptureWidth, "")
	fs.IntVar(&cli.Document.CaptureHeight, "capture-height", cli.Document.CaptureHeight, "")
	fs.IntVar(&cli.Document.CaptureHeight, "ch", cli.Document.CaptureHeight, "")
	fs.IntVar(&delay, "delay-capture", int(cli.Document.DelayBeforeCapture/time.Millisecond), "")
	fs.IntVar(&delay, "dc", int(cli.Document.DelayBeforeCapture/time.Millisecond), "")
	fs.BoolVar(&cli.Document.RespectCertificateErrors, "respect-cert-err", cli.Document.RespectCertificateErrors, "")
	fs.BoolVar(&cli.Document.RespectCertificateErrors, "rce", cli.Document.RespectCertificateErrors, "")
	fs.IntVar(&cli.ScreenOptions.Display, "display", cli.ScreenOptions.Display, "")
	fs.IntVar(&cli.ScreenOptions.Display, "d", cli.ScreenOptions.Display, "")

	// OUTPUT
	fs.StringVar(&cli.SaveScreenshotFolder, "outfolder", cli.SaveScreenshotFolder, "")
	fs.StringVar(&cli.SaveScreenshotFolder, "o", cli.SaveScreenshotFolder, "")
	fs.BoolVar(&cli.NoImprint, "no-text", false, "")
	fs.BoolVar(&cli.NoImprint, "nt", false, "")
	fs.BoolVar(&cli.PDF, "pdf", false, "")
	fs.BoolVar(&cli.PrintDataURL, "data-url", false, "")
	fs.BoolVar(&cli.AvoidDuplicates, "avoid-duplicates", false, "")
	fs.BoolVar(&cli.AvoidDuplicates, "ad", false, "")
	fs.IntVar(&cli.DuplicateThreshold, "duplicate-threshold", cli.DuplicateThreshold, "")
	fs.IntVar(&cli.DuplicateThreshold, "dt", cli.DuplicateThreshold, "")
	fs.BoolVar(&silence, "silence", false, "")
	fs.BoolVar(&silence, "s", false, "")
	fs.BoolVar(&debug, "debug", false, "")
	fs.BoolVar(&ver, "version", false, "")

	if err := fs.Parse(args); err != nil {
		return err
	}

	setLogLevel(debug, silence)

	if ver {
		fmt.Println("grabber", version, "by", author)
		return errVersion
	}

	cli.Document.Timeout = time.Duration(timeout) * time.Second
	cli.Document.DelayBeforeCapture = time.Duration(delay) * time.Millisecond

	if cli.Concurrency < 1 {
		return fmt.Errorf("invalid concurrency %d", cli.Concurrency)
	}

	if cli.AvoidDuplicates {
		d, err := output.NewDeduper(cli.DuplicateThreshold)
		if err != nil {
			return err
		}
		cli.dedup = d
	}

	if cli.stdin == nil && stdinPiped() {
		cli.stdin = os.Stdin
	}

	if !cli.Screen && cli.stdin == nil && !cli.hasInfile() && !cli.hasTarget() {
		return errNoTarget
	}
	return nil
}

func (cli *snapCLI) processTargets(targetChannel chan<- string) error {
	if cli.stdin != nil {
		scanner := bufio.NewScanner(cli.stdin)
		for scanner.Scan() {
			for _, target := range strings.Fields(scanner.Text()) {
				targetChannel <- target
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading from stdin: %w", err)
		}
	}

	if cli.hasInfile() {
		fileTargets, err := fileutil.ReadFile(cli.Infile)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		for _, target := range fileTargets {
			targetChannel <- target
		}
	}

	if cli.hasTarget() {
		for _, target := range strings.Split(cli.TargetURL, ",") {
			if target = strings.TrimSpace(target); target != "" {
				targetChannel <- target
			}
		}
	}
	return nil
}

// runPool hands targets to n workers and returns once the channel is
// closed and drained.
func runPool(n int, targets <-chan string, work func(string) error) {
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			for target := range targets {
				if err := work(target); err != nil {
					log.Errorf("Error processing target %s: %v", target, err)
				}
			}
		}()
	}
	wg.Wait()
}

func (cli *snapCLI) worker(ctx context.Context, target string) error {
	target, err := urlutil.RemoveDefaultPortStr(target)
	if err != nil {
		log.Errorf("Error processing target %s: %v", target, err)
		return nil
	}

	urlStr := target
	guessed := !urlutil.HasScheme(target)
	if guessed {
		log.Debugf("No scheme specified for %s: trying HTTPS", target)
		urlStr = "https://" + target
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		log.Errorf("Invalid URL %s: %v", urlStr, err)
		return nil
	}

	fn, err := cli.captureDocument(ctx, parsedURL)
	if err != nil && guessed && classify(err) == failureOther {
		log.Debugf("HTTPS failed for %s: %v. Trying HTTP.", target, rootCause(err))
		parsedURL.Scheme = "http"
		fn, err = cli.captureDocument(ctx, parsedURL)
	}

	if err != nil {
		handleCaptureError(target, err)
		return nil
	}

	log.Resultf("Screenshot saved to %s", fn)
	return nil
}

func (cli *snapCLI) captureDocument(ctx context.Context, u *url.URL) (string, error) {
	opts := cli.Document
	opts.URL = u.String()

	var imprint string
	if !cli.NoImprint {
		origin, err := urlutil.GetOrigin(opts.URL)
		if err != nil {
			return "", fmt.Errorf("error processing URL %s: %w", opts.URL, err)
		}
		imprint = origin
	}

	return cli.snap(ctx, opts.URL, capture.NewDocument(opts), imprint)
}

func (cli *snapCLI) captureScreen(ctx context.Context) error {
	source := "screen"
	if cli.ScreenOptions.Display >= 0 {
		source = fmt.Sprintf("screen:%d", cli.ScreenOptions.Display)
	}

	adapter := capture.NewScreen(capture.NewDisplaySource(cli.ScreenOptions), capture.AutoGrant)
	fn, err := cli.snap(ctx, source, adapter, "")
	if err != nil {
		handleCaptureError(source, err)
		return err
	}

	log.Resultf("Screenshot saved to %s", fn)
	return nil
}

// snap runs one capture through a headless host and saves what it delivered.
func (cli *snapCLI) snap(ctx context.Context, source string, adapter capture.Adapter, imprint string) (string, error) {
	page := host.NewPage(host.PageVariant, 0)
	b := bridge.New(page)
	if err := b.Ready(0); err != nil {
		return "", err
	}

	trigger := capture.NewTrigger(source, adapter, b)
	trigger.Imprint = imprint

	task, err := trigger.Fire(ctx)
	if err != nil {
		return "", err
	}

	res, err := task.Wait(ctx)
	if err != nil {
		return "", err
	}
	if res.Err != nil {
		return "", res.Err
	}
	if res.DataURL == nil {
		return "", cli.cancelled(ctx, source)
	}

	if cli.PrintDataURL {
		fmt.Println(*res.DataURL)
	}

	png, ok := page.Image()
	if !ok {
		snap := page.Snapshot()
		return "", fmt.Errorf("host rejected capture (%s): %s", snap.Outcome, snap.Message)
	}

	if cli.dedup != nil {
		if dup, of := cli.dedup.Seen(source, png); dup {
			return "", fmt.Errorf("%s: %w (%s)", source, errDuplicate, of)
		}
	}

	fn, err := output.SavePNG(cli.SaveScreenshotFolder, source, png)
	if err != nil {
		return "", fmt.Errorf("error saving screenshot: %w", err)
	}

	if cli.PDF {
		pdfPath := strings.TrimSuffix(fn, ".png") + ".pdf"
		if err := output.SavePDF(pdfPath, source, png); err != nil {
			return "", fmt.Errorf("error saving PDF: %w", err)
		}
		log.Resultf("PDF saved to %s", pdfPath)
	}
	return fn, nil
}

// cancelled explains a capture that settled without an image. Only a
// screen share can be refused.
func (cli *snapCLI) cancelled(ctx context.Context, source string) error {
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("capture of %s: %w", source, ctx.Err())
	case cli.Screen:
		return fmt.Errorf("capture of %s: %w", source, capture.ErrPermissionDenied)
	}
	return fmt.Errorf("capture of %s: %w", source, errCancelled)
}

// stdinPiped reports whether targets are piped in. Replaced in tests.
var stdinPiped = func() bool {
	fi, err := os.Stdin.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice == 0
}

func (cli *snapCLI) hasTarget() bool {
	return cli.TargetURL != ""
}

func (cli *snapCLI) hasInfile() bool {
	return cli.Infile != ""
}
