// fonts.go - Font management with custom TTF/OTF support and embedded fallback fonts.
// Hangul titles need a CJK-capable font supplied via config; the embedded Go
// fonts only cover Latin text.
package ogimage

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Weight selects between the regular and bold font.
type Weight int

const (
	Regular Weight = iota
	Bold
)

// FontManager handles font loading with fallback. Parsed fonts are shared;
// faces are created per call because font.Face is not safe for concurrent use.
type FontManager struct {
	regular *opentype.Font
	bold    *opentype.Font
}

// NewFontManager loads the regular and bold fonts. An empty or unreadable
// path falls back to the embedded Go font of the same weight; an empty bold
// path with a custom regular font reuses the regular font.
func NewFontManager(regularPath, boldPath string) (*FontManager, error) {
	regular, err := loadFont(regularPath, goregular.TTF)
	if err != nil {
		return nil, err
	}

	var bold *opentype.Font
	switch {
	case boldPath != "":
		bold, err = loadFont(boldPath, gobold.TTF)
	case regularPath != "":
		bold = regular
	default:
		bold, err = opentype.Parse(gobold.TTF)
	}
	if err != nil {
		return nil, err
	}

	return &FontManager{regular: regular, bold: bold}, nil
}

func loadFont(path string, fallback []byte) (*opentype.Font, error) {
	data := fallback
	if path != "" {
		custom, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("could not load custom font, using embedded default")
		} else {
			data = custom
		}
	}

	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return parsed, nil
}

// Face returns a font.Face at the specified size and weight.
func (fm *FontManager) Face(size float64, w Weight) (font.Face, error) {
	f := fm.regular
	if w == Bold {
		f = fm.bold
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}
