package encode

import (
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/root4loot/goutils/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomedium"
)

const (
	imprintPadding = 20
	imprintBorder  = 1
)

var (
	fontOnce sync.Once
	fontTT   *truetype.Font
)

// Imprint returns a copy of img with label written in a white footer below it.
// An empty label returns img unchanged.
func Imprint(img image.Image, label string) image.Image {
	if label == "" || img == nil {
		return img
	}

	b := img.Bounds()
	w := b.Dx()
	h := b.Dy() + imprintPadding*2 + imprintBorder
	dc := gg.NewContext(w, h)

	dc.DrawImage(img, -b.Min.X, -b.Min.Y)

	yLine := float64(b.Dy())
	dc.SetColor(color.Black)
	dc.DrawLine(0, yLine, float64(w), yLine)
	dc.SetLineWidth(float64(imprintBorder))
	dc.Stroke()
	dc.SetColor(color.White)
	dc.DrawRectangle(0, yLine, float64(w), float64(imprintPadding*2))
	dc.Fill()

	if face := loadFace(14); face != nil {
		dc.SetColor(color.Black)
		dc.SetFontFace(face)
		dc.DrawStringAnchored(label, float64(w)/2, yLine+float64(imprintPadding), 0.5, 0.3)
	}

	return dc.Image()
}

func loadFace(size float64) font.Face {
	fontOnce.Do(func() {
		f, err := truetype.Parse(gomedium.TTF)
		if err != nil {
			log.Errorf("Failed to parse imprint font: %v", err)
			return
		}
		fontTT = f
	})
	if fontTT == nil {
		return nil
	}
	return truetype.NewFace(fontTT, &truetype.Options{Size: size})
}
