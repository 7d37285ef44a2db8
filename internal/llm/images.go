package llm

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/webp"
)

// jpegQuality for re-encoded frames. Frames are evidence, not art.
const jpegQuality = 85

// LoadImages reads frame files and normalizes them to JPEG payloads.
// PNG, WebP and GIF sources are decoded and re-encoded; JPEG sources
// pass through untouched.
func LoadImages(paths []string) ([]Image, error) {
	images := make([]Image, 0, len(paths))
	for _, path := range paths {
		img, err := loadImage(path)
		if err != nil {
			return nil, fmt.Errorf("load frame %s: %w", filepath.Base(path), err)
		}
		images = append(images, img)
	}
	return images, nil
}

func loadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return Image{Data: data, MIME: "image/jpeg"}, nil
	case ".png":
		return reencode(data, png.Decode)
	case ".gif":
		return reencode(data, gif.Decode)
	case ".webp":
		return reencode(data, webp.Decode)
	default:
		// Unknown extension: assume the media tool produced JPEG.
		return Image{Data: data, MIME: "image/jpeg"}, nil
	}
}

func reencode(data []byte, decode func(r io.Reader) (image.Image, error)) (Image, error) {
	src, err := decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("decode: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Image{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Image{Data: buf.Bytes(), MIME: "image/jpeg"}, nil
}

// DataURI renders an image as the base64 data URI form the
// OpenAI-compatible APIs expect.
func (i Image) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIME, base64.StdEncoding.EncodeToString(i.Data))
}
