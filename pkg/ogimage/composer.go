// composer.go - Lays out icon, badge, title, subtitle and branding over a
// theme gradient and rasterizes the result to a 1200×630 PNG.
// Layout is a centered column: blocks are measured first, then the column is
// vertically centered in the content area above the fixed footer.
package ogimage

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/scholarsite/scholarsite/pkg/site"
	"github.com/scholarsite/scholarsite/pkg/theme"
)

const (
	contentWidth  = 1040
	contentTop    = 48
	contentBottom = 500
	brandingY     = 548
	siteURLY      = Height - 26

	maxTitleLines    = 3
	maxSubtitleLines = 2
)

// Composer renders images for a fixed registry and site profile.
// It is safe for concurrent use.
type Composer struct {
	registry  *theme.Registry
	profile   site.Profile
	fonts     *FontManager
	gradients map[theme.Kind]Gradient
}

// NewComposer parses every theme gradient up front so a bad descriptor fails
// at startup instead of on a request.
func NewComposer(reg *theme.Registry, profile site.Profile, fonts *FontManager) (*Composer, error) {
	c := &Composer{
		registry:  reg,
		profile:   profile,
		fonts:     fonts,
		gradients: make(map[theme.Kind]Gradient),
	}
	for _, k := range theme.Kinds() {
		g, err := ParseGradient(reg.Lookup(k).Gradient)
		if err != nil {
			return nil, fmt.Errorf("theme %s: %w", k, err)
		}
		c.gradients[k] = g
	}
	return c, nil
}

// Registry returns the theme registry the composer renders with.
func (c *Composer) Registry() *theme.Registry { return c.registry }

// block is one measured element of the centered column.
type block struct {
	height float64
	gap    float64 // space below the block
	draw   func(dc *gg.Context, top float64)
}

// Compose renders req. An empty title renders an empty title line.
func (c *Composer) Compose(req Request) (*Image, error) {
	th := c.registry.Lookup(req.Kind)

	titleSize := req.TitleSize
	if titleSize <= 0 {
		titleSize = TitleFontSize(req.Title)
	}

	faces := &faceSet{fm: c.fonts}
	defer faces.close()

	dc := gg.NewContext(Width, Height)
	c.gradients[th.Key].Paint(dc, Width, Height)

	var blocks []block
	icon, err := c.iconBlock(faces, th)
	if err != nil {
		return nil, err
	}
	blocks = append(blocks, icon)

	if req.Badge != "" {
		b, err := badgeBlock(faces, req.Badge)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}

	title, err := textBlock(faces, req.Title, titleSize, Bold, 1.25, maxTitleLines, 1)
	if err != nil {
		return nil, err
	}
	blocks = append(blocks, title)

	if req.Subtitle != "" {
		blocks[len(blocks)-1].gap = 20
		sub, err := textBlock(faces, req.Subtitle, subtitleSize, Regular, 1.4, maxSubtitleLines, 0.85)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, sub)
	}

	drawColumn(dc, blocks)

	if err := c.drawBranding(dc, faces, th); err != nil {
		return nil, err
	}
	if err := c.drawSiteURL(dc, faces); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}

	return &Image{
		Data:          buf.Bytes(),
		Width:         Width,
		Height:        Height,
		ContentType:   ContentType,
		TitleFontSize: titleSize,
	}, nil
}

// drawColumn centers the blocks vertically within the content area.
func drawColumn(dc *gg.Context, blocks []block) {
	var total float64
	for i, b := range blocks {
		total += b.height
		if i < len(blocks)-1 {
			total += b.gap
		}
	}

	y := contentTop + (contentBottom-contentTop-total)/2
	if y < contentTop {
		y = contentTop
	}
	for _, b := range blocks {
		b.draw(dc, y)
		y += b.height + b.gap
	}
}

// iconBlock draws the theme icon inside a translucent rounded square.
// Branded kinds get a larger box and a bold glyph.
func (c *Composer) iconBlock(faces *faceSet, th theme.Theme) (block, error) {
	box, size, weight := 100.0, 48.0, Regular
	if th.Key.Branded() {
		box, size, weight = 120, 56, Bold
	}

	face, err := faces.get(size, weight)
	if err != nil {
		return block{}, err
	}
	// Shrink wide glyphs (initials) to fit the box.
	if w := measure(face, th.Icon); w > box*0.8 {
		if face, err = faces.get(size*box*0.8/w, weight); err != nil {
			return block{}, err
		}
	}

	return block{
		height: box,
		gap:    32,
		draw: func(dc *gg.Context, top float64) {
			dc.SetRGBA(1, 1, 1, 0.18)
			dc.DrawRoundedRectangle((Width-box)/2, top, box, box, box/5)
			dc.Fill()

			dc.SetFontFace(face)
			dc.SetRGB(1, 1, 1)
			dc.DrawStringAnchored(th.Icon, Width/2, top+box/2, 0.5, 0.5)
		},
	}, nil
}

// badgeBlock draws a pill-shaped label.
func badgeBlock(faces *faceSet, text string) (block, error) {
	const height, padX = 44.0, 24.0

	face, err := faces.get(22, Bold)
	if err != nil {
		return block{}, err
	}
	width := measure(face, text) + 2*padX

	return block{
		height: height,
		gap:    24,
		draw: func(dc *gg.Context, top float64) {
			dc.SetRGBA(1, 1, 1, 0.22)
			dc.DrawRoundedRectangle((Width-width)/2, top, width, height, height/2)
			dc.Fill()

			dc.SetFontFace(face)
			dc.SetRGB(1, 1, 1)
			dc.DrawStringAnchored(text, Width/2, top+height/2, 0.5, 0.5)
		},
	}, nil
}

// textBlock wraps text to the content width and draws each line centered.
// An empty text still occupies one line.
func textBlock(faces *faceSet, text string, size float64, weight Weight, leading float64, maxLines int, alpha float64) (block, error) {
	face, err := faces.get(size, weight)
	if err != nil {
		return block{}, err
	}

	lines := truncateLines(wrapText(text, contentWidth, face), maxLines, contentWidth, face)
	lineHeight := size * leading
	n := max(len(lines), 1)

	return block{
		height: float64(n) * lineHeight,
		draw: func(dc *gg.Context, top float64) {
			dc.SetFontFace(face)
			dc.SetRGBA(1, 1, 1, alpha)
			for i, line := range lines {
				dc.DrawStringAnchored(line, Width/2, top+float64(i)*lineHeight+lineHeight/2, 0.5, 0.5)
			}
		},
	}, nil
}

// drawBranding draws the initials disc and byline, centered as one row.
func (c *Composer) drawBranding(dc *gg.Context, faces *faceSet, th theme.Theme) error {
	const radius, gap = 24.0, 14.0

	initialsFace, err := faces.get(18, Bold)
	if err != nil {
		return err
	}
	bylineFace, err := faces.get(24, Regular)
	if err != nil {
		return err
	}

	byline := c.profile.Byline()
	total := 2*radius + gap + measure(bylineFace, byline)
	x := (Width - total) / 2

	dc.SetRGBA(1, 1, 1, 0.92)
	dc.DrawCircle(x+radius, brandingY, radius)
	dc.Fill()

	dc.SetFontFace(initialsFace)
	if stops := c.gradients[th.Key].Stops; len(stops) > 0 {
		dc.SetColor(stops[0].Color)
	} else {
		dc.SetRGB(0, 0, 0)
	}
	dc.DrawStringAnchored(c.profile.Initials, x+radius, brandingY, 0.5, 0.5)

	dc.SetFontFace(bylineFace)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(byline, x+2*radius+gap, brandingY, 0, 0.5)
	return nil
}

func (c *Composer) drawSiteURL(dc *gg.Context, faces *faceSet) error {
	if c.profile.SiteURL == "" {
		return nil
	}
	face, err := faces.get(20, Regular)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	dc.SetRGBA(1, 1, 1, 0.7)
	dc.DrawStringAnchored(c.profile.SiteURL, Width/2, siteURLY, 0.5, 0.5)
	return nil
}

// wrapText breaks text into lines that each fit within maxWidth pixels.
// Words wider than maxWidth are split between characters.
func wrapText(text string, maxWidth float64, face font.Face) []string {
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		for _, piece := range splitWide(word, maxWidth, face) {
			candidate := piece
			if current != "" {
				candidate = current + " " + piece
			}
			if current != "" && measure(face, candidate) > maxWidth {
				lines = append(lines, current)
				current = piece
				continue
			}
			current = candidate
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// splitWide splits a single word into chunks no wider than maxWidth.
func splitWide(word string, maxWidth float64, face font.Face) []string {
	if measure(face, word) <= maxWidth {
		return []string{word}
	}
	var out []string
	var cur []rune
	for _, r := range word {
		if len(cur) > 0 && measure(face, string(append(cur, r))) > maxWidth {
			out = append(out, string(cur))
			cur = cur[:0]
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

// truncateLines keeps at most maxLines, ending the last kept line with an
// ellipsis when text was dropped.
func truncateLines(lines []string, maxLines int, maxWidth float64, face font.Face) []string {
	if len(lines) <= maxLines {
		return lines
	}
	lines = lines[:maxLines]
	last := []rune(lines[maxLines-1])
	for len(last) > 0 && measure(face, string(last)+"…") > maxWidth {
		last = last[:len(last)-1]
	}
	lines[maxLines-1] = strings.TrimRight(string(last), " ") + "…"
	return lines
}

func measure(face font.Face, s string) float64 {
	return float64(font.MeasureString(face, s)) / 64
}

// faceSet caches faces for the duration of one Compose call.
type faceSet struct {
	fm    *FontManager
	faces map[faceKey]font.Face
}

type faceKey struct {
	size   float64
	weight Weight
}

func (fs *faceSet) get(size float64, w Weight) (font.Face, error) {
	if fs.faces == nil {
		fs.faces = make(map[faceKey]font.Face)
	}
	k := faceKey{size, w}
	if f, ok := fs.faces[k]; ok {
		return f, nil
	}
	f, err := fs.fm.Face(size, w)
	if err != nil {
		return nil, err
	}
	fs.faces[k] = f
	return f, nil
}

func (fs *faceSet) close() {
	for _, f := range fs.faces {
		f.Close()
	}
}

// SavePNG writes a rendered image to path.
func SavePNG(img *Image, path string) error {
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return fmt.Errorf("save PNG: %w", err)
	}
	return nil
}
