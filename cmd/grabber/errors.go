package main

import (
	"context"
	"errors"
	"strings"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/grabber/pkg/capture"
)

var (
	errVersion   = errors.New("version requested")
	errNoTarget  = errors.New("no target specified")
	errDuplicate = errors.New("similar to an earlier capture")
	errCancelled = errors.New("capture cancelled")
)

// failure is what went wrong with a capture, as far as the CLI cares.
type failure int

const (
	failureOther failure = iota
	failureDependency
	failureCancelled
	failureDuplicate
	failureDNS
	failureTimeout
)

var (
	dnsMarkers     = []string{"net::ERR_NAME_NOT_RESOLVED", "no such host"}
	timeoutMarkers = []string{"context deadline exceeded", "net::ERR_TIMED_OUT", "timeout"}
)

// classify sorts err by sentinel first and falls back to the browser's
// error text, which does not survive as a typed error.
func classify(err error) failure {
	switch {
	case errors.Is(err, errDuplicate):
		return failureDuplicate
	case errors.Is(err, capture.ErrDependencyMissing):
		return failureDependency
	case errors.Is(err, errCancelled), capture.IsCancellation(err):
		return failureCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return failureTimeout
	}

	msg := err.Error()
	switch {
	case containsAny(msg, dnsMarkers):
		return failureDNS
	case containsAny(msg, timeoutMarkers):
		return failureTimeout
	}
	return failureOther
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// rootCause returns the innermost error wrapped by err.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func handleCaptureError(target string, err error) {
	switch classify(err) {
	case failureDependency:
		log.Errorf("Cannot capture %s: no browser found, install Chrome or Chromium", target)
	case failureCancelled:
		log.Debugf("Capture of %s was cancelled", target)
	case failureDuplicate:
		log.Infof("Skipping %v", err)
	case failureDNS:
		log.Warnf("DNS lookup failed for %s", target)
	case failureTimeout:
		log.Debugf("Timeout occurred while capturing %s", target)
	default:
		log.Errorf("Error capturing %s: %v", target, rootCause(err))
	}
}
