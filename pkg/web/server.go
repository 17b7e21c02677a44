// Package web serves the host pages, their capture surfaces and the API the
// surfaces talk to.
package web

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/root4loot/goutils/log"
	"github.com/root4loot/grabber/pkg/bridge"
	"github.com/root4loot/grabber/pkg/capture"
	"github.com/root4loot/grabber/pkg/host"
	"github.com/root4loot/grabber/pkg/hub"
)

const (
	messageStatus     = "status"
	messageState      = "state"
	messagePermission = "permission"
)

// message is pushed to capture surfaces and host pages over websocket.
type message struct {
	Type   string          `json:"type"`
	Status *capture.Status `json:"status,omitempty"`
	State  *host.Snapshot  `json:"state,omitempty"`
	Busy   bool            `json:"busy,omitempty"`
	Prompt string          `json:"prompt,omitempty"`
}

// variant wires one demo page: host, bridge, trigger and its hub.
type variant struct {
	host.Variant
	page    *host.Page
	bridge  *bridge.Bridge
	trigger *capture.Trigger
	hub     *hub.Hub
}

// Option customises a Server.
type Option func(*Server)

// WithAdapter replaces the capture adapter of the named variant.
func WithAdapter(name string, a capture.Adapter) Option {
	return func(s *Server) {
		s.adapters[name] = a
	}
}

// Server is the demo web server.
type Server struct {
	cfg      Config
	app      *fiber.App
	variants map[string]*variant
	prompts  *PromptBroker
	adapters map[string]capture.Adapter

	ctx    context.Context
	cancel context.CancelFunc
	start  sync.Once
}

// NewServer creates a server for cfg.
func NewServer(cfg Config, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		variants: make(map[string]*variant),
		adapters: make(map[string]capture.Adapter),
		ctx:      ctx,
		cancel:   cancel,
	}

	screenHub := hub.New(host.ScreenVariant.Name)
	s.prompts = NewPromptBroker(screenHub)

	for _, opt := range opts {
		opt(s)
	}

	if _, ok := s.adapters[host.PageVariant.Name]; !ok {
		docOpts := cfg.Document
		docOpts.URL = cfg.BaseURL() + "/" + host.PageVariant.Name + "?raster=1"
		s.adapters[host.PageVariant.Name] = capture.NewDocument(docOpts)
	}
	if _, ok := s.adapters[host.ScreenVariant.Name]; !ok {
		var prompter capture.Prompter = s.prompts
		if cfg.AutoGrant {
			prompter = capture.AutoGrant
		}
		s.adapters[host.ScreenVariant.Name] = capture.NewScreen(capture.NewDisplaySource(cfg.Screen), prompter)
	}

	s.addVariant(host.PageVariant, hub.New(host.PageVariant.Name))
	s.addVariant(host.ScreenVariant, screenHub)

	if cfg.Imprint {
		s.variants[host.PageVariant.Name].trigger.Imprint = cfg.BaseURL() + "/" + host.PageVariant.Name
	}

	s.app = s.routes()
	return s
}

func (s *Server) addVariant(hv host.Variant, h *hub.Hub) {
	page := host.NewPage(hv, s.cfg.FrameHeight)
	b := bridge.New(page)
	v := &variant{
		Variant: hv,
		page:    page,
		bridge:  b,
		trigger: capture.NewTrigger(hv.Name, s.adapters[hv.Name], b),
		hub:     h,
	}

	v.trigger.OnStatus(func(st capture.Status) {
		h.BroadcastJSON(message{Type: messageStatus, Status: &st, Busy: st.Kind == capture.StatusInProgress})
	})
	page.OnChange(func(snap host.Snapshot) {
		h.BroadcastJSON(message{Type: messageState, State: &snap})
	})
	h.OnJoin(func() [][]byte { return s.greeting(v) })

	s.variants[hv.Name] = v
}

func (s *Server) routes() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "grabber",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	api := app.Group("/api")
	api.Post("/screen/permission", s.handlePermission)
	api.Get("/:variant/state", s.handleState)
	api.Post("/:variant/ready", s.handleReady)
	api.Post("/:variant/frame-height", s.handleFrameHeight)
	api.Post("/:variant/capture", s.handleCapture)

	app.Get("/download/:variant", s.handleDownload)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/:variant", s.lookupVariant, websocket.New(s.handleWS))

	app.Get("/:variant/widget", s.handleWidget)
	app.Get("/:variant", s.handleHostPage)

	return app
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Prompts returns the screen share prompt broker.
func (s *Server) Prompts() *PromptBroker {
	return s.prompts
}

// Start runs the hubs and listens on the configured address.
func (s *Server) Start() error {
	s.start.Do(func() {
		for _, v := range s.variants {
			go v.hub.Run(s.ctx)
		}
	})

	log.Infof("Serving capture pages on %s", s.cfg.BaseURL())
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown cancels in-flight captures and stops the server.
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}

func (s *Server) greeting(v *variant) [][]byte {
	var out []message

	st := v.trigger.Status()
	out = append(out, message{Type: messageStatus, Status: &st, Busy: v.trigger.InFlight()})

	snap := v.page.Snapshot()
	out = append(out, message{Type: messageState, State: &snap})

	if v.Name == host.ScreenVariant.Name {
		for _, id := range s.prompts.Pending() {
			out = append(out, message{Type: messagePermission, Prompt: id})
		}
	}

	return encodeAll(out)
}
