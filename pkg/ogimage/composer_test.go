package ogimage

import (
	"bytes"
	"image/png"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarsite/scholarsite/pkg/site"
	"github.com/scholarsite/scholarsite/pkg/theme"
)

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	reg, err := theme.NewRegistry(site.Default())
	require.NoError(t, err)
	fm, err := NewFontManager("", "")
	require.NoError(t, err)
	c, err := NewComposer(reg, site.Default(), fm)
	require.NoError(t, err)
	return c
}

func decodeSize(t *testing.T, img *Image) (int, int) {
	t.Helper()
	decoded, err := png.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	b := decoded.Bounds()
	return b.Dx(), b.Dy()
}

func TestCompose_EveryKind(t *testing.T) {
	c := newTestComposer(t)
	for _, k := range theme.Kinds() {
		img, err := c.Compose(Request{Title: "Accounting Stories", Subtitle: "A subtitle", Badge: "2024.05", Kind: k})
		require.NoError(t, err, k.String())
		assert.Equal(t, ContentType, img.ContentType)
		w, h := decodeSize(t, img)
		assert.Equal(t, 1200, w)
		assert.Equal(t, 630, h)
	}
}

func TestCompose_TitleTiers(t *testing.T) {
	c := newTestComposer(t)

	short := strings.Repeat("a", 30)
	img, err := c.Compose(Request{Title: short})
	require.NoError(t, err)
	assert.Equal(t, 64.0, img.TitleFontSize)

	long := strings.Repeat("a", 31)
	img, err = c.Compose(Request{Title: long})
	require.NoError(t, err)
	assert.Equal(t, 48.0, img.TitleFontSize)

	img, err = c.Compose(Request{Title: long, TitleSize: 52})
	require.NoError(t, err)
	assert.Equal(t, 52.0, img.TitleFontSize)
}

func TestCompose_EmptyTitle(t *testing.T) {
	c := newTestComposer(t)
	img, err := c.Compose(Request{})
	require.NoError(t, err)
	assert.NotEmpty(t, img.Data)
	assert.Equal(t, 64.0, img.TitleFontSize)
}

func TestCompose_VeryLongTitleIsTruncated(t *testing.T) {
	c := newTestComposer(t)
	_, err := c.Compose(Request{Title: strings.Repeat("longwordwithoutspaces", 30), Subtitle: strings.Repeat("sub ", 100)})
	require.NoError(t, err)
}

func TestCompose_Concurrent(t *testing.T) {
	c := newTestComposer(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Compose(Request{Title: "Concurrent", Kind: theme.News})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestTitleFontSize(t *testing.T) {
	// Counted in characters, not bytes.
	assert.Equal(t, 64.0, TitleFontSize(strings.Repeat("가", 30)))
	assert.Equal(t, 48.0, TitleFontSize(strings.Repeat("가", 31)))
}

func TestTieredTitleSize(t *testing.T) {
	breaks, sizes := []int{25, 40}, []float64{60, 52, 44}
	assert.Equal(t, 60.0, TieredTitleSize(strings.Repeat("x", 25), breaks, sizes))
	assert.Equal(t, 52.0, TieredTitleSize(strings.Repeat("x", 26), breaks, sizes))
	assert.Equal(t, 52.0, TieredTitleSize(strings.Repeat("x", 40), breaks, sizes))
	assert.Equal(t, 44.0, TieredTitleSize(strings.Repeat("x", 41), breaks, sizes))
}

func TestWrapText(t *testing.T) {
	fm, err := NewFontManager("", "")
	require.NoError(t, err)
	face, err := fm.Face(48, Bold)
	require.NoError(t, err)
	defer face.Close()

	assert.Empty(t, wrapText("", 500, face))
	assert.Equal(t, []string{"one line"}, wrapText("one line", 1000, face))

	lines := wrapText("the quick brown fox jumps over the lazy dog again and again", 400, face)
	require.Greater(t, len(lines), 1)
	for _, l := range lines {
		assert.LessOrEqual(t, measure(face, l), 400.0, l)
	}

	lines = truncateLines([]string{"a", "b", "c", "d"}, 3, 400, face)
	assert.Equal(t, []string{"a", "b", "c…"}, lines)
}

func TestNewFontManager_MissingCustomFontFallsBack(t *testing.T) {
	fm, err := NewFontManager(filepath.Join(t.TempDir(), "missing.ttf"), "")
	require.NoError(t, err)
	face, err := fm.Face(20, Regular)
	require.NoError(t, err)
	face.Close()
}

func TestSavePNG(t *testing.T) {
	c := newTestComposer(t)
	img, err := c.Compose(Request{Title: "Saved"})
	require.NoError(t, err)
	require.NoError(t, SavePNG(img, filepath.Join(t.TempDir(), "out.png")))
}
