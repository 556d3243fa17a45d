// Package ogimage renders the Open Graph preview images served for every
// section of the site.
package ogimage

import "github.com/scholarsite/scholarsite/pkg/theme"

// Canvas dimensions and MIME type of every rendered image.
const (
	Width       = 1200
	Height      = 630
	ContentType = "image/png"
)

// Request describes one image to render.
type Request struct {
	Title    string
	Subtitle string
	Badge    string
	Kind     theme.Kind
	// TitleSize overrides the shared title tiering when > 0.
	TitleSize float64
}

// Image is a rendered PNG.
type Image struct {
	Data          []byte
	Width         int
	Height        int
	ContentType   string
	TitleFontSize float64
}

// Title size tiers shared by every page.
const (
	titleSizeLarge = 64
	titleSizeSmall = 48
	titleTierBreak = 30
	subtitleSize   = 32
)

// TitleFontSize picks the title size by character count:
// up to 30 characters → 64, longer → 48.
func TitleFontSize(title string) float64 {
	return TieredTitleSize(title, []int{titleTierBreak}, []float64{titleSizeLarge, titleSizeSmall})
}

// TieredTitleSize returns sizes[i] for the first breaks[i] the title's
// character count does not exceed, or the last size otherwise.
// len(sizes) must be len(breaks)+1.
func TieredTitleSize(title string, breaks []int, sizes []float64) float64 {
	n := len([]rune(title))
	for i, b := range breaks {
		if n <= b {
			return sizes[i]
		}
	}
	return sizes[len(sizes)-1]
}
