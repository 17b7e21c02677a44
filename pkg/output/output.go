// Package output writes delivered captures to disk.
package output

import (
	"bytes"
	"fmt"
	"image/png"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pixelsPerInch = 96
	mmPerInch     = 25.4
)

// FileName derives a file name from a captured URL, e.g.
// https://example.com:8443/docs/ becomes https_example.com-8443_docs.png.
// Non-URL sources such as "screen" are used as is.
func FileName(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", err
	}

	if u.Scheme == "" || u.Host == "" {
		name := strings.NewReplacer("/", "_", ":", "-", " ", "_").Replace(strings.TrimSpace(source))
		if name == "" {
			name = "capture"
		}
		return strings.ToLower(name) + ".png", nil
	}

	host := u.Host
	if (u.Scheme == "http" && u.Port() == "80") || (u.Scheme == "https" && u.Port() == "443") {
		host = u.Hostname()
	}

	filename := u.Scheme + "_" + host + u.Path
	filename = strings.TrimSuffix(filename, "/")
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, ":", "-")
	return strings.ToLower(filename) + ".png", nil
}

// SavePNG writes b into folder under the name derived from source and returns
// the path written.
func SavePNG(folder, source string, b []byte) (string, error) {
	if len(b) == 0 {
		return "", fmt.Errorf("nothing to save for %s", source)
	}

	if err := os.MkdirAll(folder, os.ModePerm); err != nil {
		return "", err
	}

	name, err := FileName(source)
	if err != nil {
		return "", err
	}
	path := filepath.Join(folder, name)

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := file.Write(b); err != nil {
		return "", err
	}
	return path, nil
}

// SavePDF writes the PNG b as a single page PDF sized to the image at 96 DPI.
func SavePDF(path, title string, b []byte) error {
	cfg, err := png.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	wMm := pixelsToMm(cfg.Width)
	hMm := pixelsToMm(cfg.Height)
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: wMm, Ht: hMm},
	})
	if title != "" {
		pdf.SetTitle(title, true)
	}

	opt := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("capture", opt, bytes.NewReader(b))
	pdf.AddPage()
	w, h := pdf.GetPageSize()
	pdf.ImageOptions("capture", 0, 0, w, h, false, opt, 0, "")

	return pdf.OutputFileAndClose(path)
}

func pixelsToMm(pixels int) float64 {
	return float64(pixels) * mmPerInch / pixelsPerInch
}
