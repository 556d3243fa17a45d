package upload

import (
	"bytes"
	"fmt"
	"image"
	"net/http"

	"github.com/disintegration/imaging"
)

var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// sniff detects the content type from the bytes, ignoring the client header.
func sniff(data []byte) (string, bool) {
	ct := http.DetectContentType(data)
	return ct, allowedTypes[ct]
}

// shrink downsizes PNG and JPEG images wider than maxWidth, preserving the
// aspect ratio. Other formats and small images are returned unchanged.
// resized reports whether data was re-encoded.
func shrink(data []byte, contentType string, maxWidth, quality int) (out []byte, resized bool, err error) {
	if maxWidth <= 0 {
		return data, false, nil
	}
	var format imaging.Format
	switch contentType {
	case "image/jpeg":
		format = imaging.JPEG
	case "image/png":
		format = imaging.PNG
	default:
		return data, false, nil
	}

	// imaging registers the PNG and JPEG decoders.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= maxWidth {
		return data, false, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, false, fmt.Errorf("decode image: %w", err)
	}
	img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality)); err != nil {
		return nil, false, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), true, nil
}
