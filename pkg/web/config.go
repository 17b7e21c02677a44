package web

import (
	"net"
	"os"
	"strings"

	"github.com/root4loot/grabber/pkg/capture"
)

// Config holds the server configuration.
type Config struct {
	Addr        string // Listen address
	PublicURL   string // Base URL the rasterizer loads the host page from
	FrameHeight int    // Initial height of the embedded capture surface
	AutoGrant   bool   // Grant screen shares without asking the browser
	Imprint     bool   // Write the source under page captures
	Document    capture.DocumentOptions
	Screen      capture.ScreenOptions
}

// NewConfig returns a Config with defaults, overridden by GRABBER_ADDR and
// GRABBER_PUBLIC_URL when set.
func NewConfig() Config {
	return Config{
		Addr:        envOr("GRABBER_ADDR", ":8501"),
		PublicURL:   os.Getenv("GRABBER_PUBLIC_URL"),
		FrameHeight: 550,
		Document:    capture.NewDocumentOptions(),
		Screen:      capture.NewScreenOptions(),
	}
}

// BaseURL returns PublicURL, or a localhost URL derived from Addr.
func (c Config) BaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimSuffix(c.PublicURL, "/")
	}

	host, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return "http://localhost:8501"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
