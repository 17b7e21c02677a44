package web

import (
	"bytes"
	"embed"
	"html/template"

	"github.com/gofiber/fiber/v2"
	"github.com/root4loot/grabber/pkg/capture"
	"github.com/root4loot/grabber/pkg/host"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// view is the data handed to host and widget templates.
type view struct {
	host.Variant
	State  host.Snapshot
	Status capture.Status
	Busy   bool

	// Raster is set when the headless rasterizer loads the page. Such a copy
	// renders the same markup but never reports to the server.
	Raster bool
}

func (v *variant) view(c *fiber.Ctx) view {
	return view{
		Variant: v.Variant,
		State:   v.page.Snapshot(),
		Status:  v.trigger.Status(),
		Busy:    v.trigger.InFlight(),
		Raster:  c.QueryBool("raster"),
	}
}

func render(c *fiber.Ctx, name string, data any) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}
