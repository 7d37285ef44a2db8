package llm

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadImagesReencodesPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame_0001.png")
	writePNG(t, path)

	images, err := LoadImages([]string{path})
	if err != nil {
		t.Fatalf("LoadImages() error: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("images = %d, want 1", len(images))
	}
	if images[0].MIME != "image/jpeg" {
		t.Errorf("MIME = %q, want image/jpeg after re-encode", images[0].MIME)
	}
	if _, err := jpeg.Decode(bytes.NewReader(images[0].Data)); err != nil {
		t.Errorf("re-encoded payload is not valid JPEG: %v", err)
	}
}

func TestLoadImagesPassesJPEGThrough(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame_0001.jpg")

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	images, err := LoadImages([]string{path})
	if err != nil {
		t.Fatalf("LoadImages() error: %v", err)
	}
	if !bytes.Equal(images[0].Data, buf.Bytes()) {
		t.Error("JPEG source should pass through byte-identical")
	}
}
