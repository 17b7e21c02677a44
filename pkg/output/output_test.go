package output

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"https://example.com":           "https_example.com.png",
		"https://example.com/":          "https_example.com.png",
		"https://example.com:443/docs/": "https_example.com_docs.png",
		"http://Example.com:8080/a/b":   "http_example.com-8080_a_b.png",
		"http://localhost:8501/page":    "http_localhost-8501_page.png",
		"screen":                        "screen.png",
		"screen:1":                      "screen-1.png",
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			got, err := FileName(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestSavePNG(t *testing.T) {
	dir := t.TempDir()
	b := testPNG(t, 4, 4)

	path, err := SavePNG(filepath.Join(dir, "shots"), "https://example.com/", b)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shots", "https_example.com.png"), path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, b, written)

	_, err = SavePNG(dir, "screen", nil)
	assert.Error(t, err)
}

func TestSavePDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pdf")
	require.NoError(t, SavePDF(path, "capture", testPNG(t, 300, 120)))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))

	assert.Error(t, SavePDF(path, "", []byte("not a png")))
}
