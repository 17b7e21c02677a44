package web

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/root4loot/goutils/log"
	"github.com/root4loot/grabber/pkg/bridge"
	"github.com/root4loot/grabber/pkg/capture"
	"github.com/root4loot/grabber/pkg/host"
	"github.com/root4loot/grabber/pkg/hub"
)

// heightRequest is sent by a capture surface when it is ready or resized.
type heightRequest struct {
	Height int `json:"height"`
}

// permissionRequest answers a screen share prompt.
type permissionRequest struct {
	ID      string `json:"id"`
	Granted bool   `json:"granted"`
}

// stateResponse is returned by the state endpoint.
type stateResponse struct {
	State  host.Snapshot  `json:"state"`
	Status capture.Status `json:"status"`
	Busy   bool           `json:"busy"`
}

func (s *Server) variant(c *fiber.Ctx) (*variant, error) {
	v, ok := s.variants[c.Params("variant")]
	if !ok {
		return nil, fiber.ErrNotFound
	}
	return v, nil
}

func (s *Server) lookupVariant(c *fiber.Ctx) error {
	v, err := s.variant(c)
	if err != nil {
		return err
	}
	c.Locals("variant", v)
	return c.Next()
}

// handleIndex lists the demo pages
func (s *Server) handleIndex(c *fiber.Ctx) error {
	return render(c, "index.html", []host.Variant{host.PageVariant, host.ScreenVariant})
}

// handleHostPage renders a host page
func (s *Server) handleHostPage(c *fiber.Ctx) error {
	v, err := s.variant(c)
	if err != nil {
		return err
	}
	return render(c, "host.html", v.view(c))
}

// handleWidget renders the capture surface embedded in a host page
func (s *Server) handleWidget(c *fiber.Ctx) error {
	v, err := s.variant(c)
	if err != nil {
		return err
	}
	return render(c, "widget.html", v.view(c))
}

// handleState returns the host snapshot and the trigger status
func (s *Server) handleState(c *fiber.Ctx) error {
	v, err := s.variant(c)
	if err != nil {
		return err
	}
	return c.JSON(stateResponse{
		State:  v.page.Snapshot(),
		Status: v.trigger.Status(),
		Busy:   v.trigger.InFlight(),
	})
}

// handleReady reports the capture surface as ready
func (s *Server) handleReady(c *fiber.Ctx) error {
	v, err := s.variant(c)
	if err != nil {
		return err
	}

	var req heightRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	if err := v.bridge.Ready(req.Height); err != nil {
		return bridgeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleFrameHeight forwards a resized capture surface
func (s *Server) handleFrameHeight(c *fiber.Ctx) error {
	v, err := s.variant(c)
	if err != nil {
		return err
	}

	var req heightRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	if err := v.bridge.Resize(req.Height); err != nil {
		return bridgeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleCapture fires the trigger. The capture runs in the background and
// its result is pushed over websocket.
func (s *Server) handleCapture(c *fiber.Ctx) error {
	v, err := s.variant(c)
	if err != nil {
		return err
	}

	task, err := v.trigger.Fire(s.ctx)
	switch {
	case err == nil:
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": task.ID})
	case errors.Is(err, capture.ErrBusy):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, host.ErrTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "capture surface is not ready"})
	default:
		return bridgeError(c, err)
	}
}

// handlePermission answers a screen share prompt
func (s *Server) handlePermission(c *fiber.Ctx) error {
	var req permissionRequest
	if err := c.BodyParser(&req); err != nil || req.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	if err := s.prompts.Resolve(req.ID, req.Granted); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleDownload serves the last successful capture
func (s *Server) handleDownload(c *fiber.Ctx) error {
	v, err := s.variant(c)
	if err != nil {
		return err
	}

	b, ok := v.page.Image()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "nothing captured"})
	}

	c.Attachment(v.Filename)
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(b)
}

// handleWS streams status, state and permission messages of one variant
func (s *Server) handleWS(c *websocket.Conn) {
	v, ok := c.Locals("variant").(*variant)
	if !ok {
		c.Close()
		return
	}
	hub.Serve(v.hub, c)
}

func bridgeError(c *fiber.Ctx, err error) error {
	if errors.Is(err, bridge.ErrNoHost) {
		log.Errorf("Integration failure on %s: %v", c.Path(), err)
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func encodeAll(msgs []message) [][]byte {
	out := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			log.Warnf("Could not encode %s message: %v", m.Type, err)
			continue
		}
		out = append(out, b)
	}
	return out
}
