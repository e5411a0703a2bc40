package io

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"viewport-engine/rhi"
	"viewport-engine/viewport"
)

// LoadImage decodes a PNG, JPEG, BMP, TIFF or WebP file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// DecodeImage is LoadImage for bytes already in memory, such as a GLB
// buffer view.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// LoadTexture decodes an image file and uploads it to v.
func LoadTexture(v *viewport.Viewport, path string, filter rhi.TextureFilter) (rhi.Texture, error) {
	img, err := LoadImage(path)
	if err != nil {
		return 0, err
	}
	tex := v.CreateTexture(img, filter)
	if tex == 0 {
		return 0, fmt.Errorf("failed to upload %s", path)
	}
	return tex, nil
}
