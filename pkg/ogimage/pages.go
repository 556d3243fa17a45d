// pages.go - Per-route bindings: each page supplies title/subtitle/kind
// defaults, and dynamic pages overlay data fetched from the backend.
package ogimage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/scholarsite/scholarsite/pkg/backend"
	"github.com/scholarsite/scholarsite/pkg/site"
	"github.com/scholarsite/scholarsite/pkg/theme"
)

// Page names.
const (
	PageHome             = "home"
	PageAbout            = "about"
	PageBook             = "book"
	PageBookDetail       = "book-detail"
	PageNews             = "news"
	PageNewsDetail       = "news-detail"
	PageEducation        = "education"
	PageLab              = "lab"
	PageResearch         = "research"
	PageUnfoldStory      = "unfold-story"
	PageUnfoldStoryMonth = "unfold-story-month"
)

// ErrUnknownPage is returned for page names without a binding.
var ErrUnknownPage = errors.New("unknown page")

// Page is one route's image binding.
type Page struct {
	Name     string
	Defaults Request
	// Optional finer title tiering; len(Sizes) == len(Breaks)+1.
	Breaks []int
	Sizes  []float64
	// Dynamic pages need a route parameter and cannot be rendered statically.
	Dynamic bool
}

// detailTiers are used by pages whose titles come from the backend.
var (
	detailBreaks = []int{25, 40}
	detailSizes  = []float64{60, 52, 44}
)

// DefaultPages returns the bindings for every section of the site.
func DefaultPages(p site.Profile) []Page {
	return []Page{
		{Name: PageHome, Defaults: Request{Title: p.Author, Subtitle: p.Institution, Kind: theme.Default}},
		{Name: PageAbout, Defaults: Request{Title: "소개", Subtitle: "연구 · 교육 · 저서", Kind: theme.Profile}},
		{Name: PageBook, Defaults: Request{Title: "저서", Subtitle: p.Author + " 교수의 책", Kind: theme.Book}},
		{Name: PageBookDetail, Defaults: Request{Title: "도서", Subtitle: p.Author + " 저", Kind: theme.Book},
			Breaks: detailBreaks, Sizes: detailSizes, Dynamic: true},
		{Name: PageNews, Defaults: Request{Title: "뉴스", Subtitle: "연구실 소식과 언론 보도", Kind: theme.News}},
		{Name: PageNewsDetail, Defaults: Request{Title: "뉴스", Kind: theme.News},
			Breaks: detailBreaks, Sizes: detailSizes, Dynamic: true},
		{Name: PageEducation, Defaults: Request{Title: "교육", Subtitle: "회계 교육 콘텐츠와 강의 자료", Kind: theme.Education}},
		{Name: PageLab, Defaults: Request{Title: "연구실", Subtitle: "구성원과 프로젝트", Kind: theme.Lab}},
		{Name: PageResearch, Defaults: Request{Title: "연구", Subtitle: "논문과 연구 성과", Kind: theme.Research}},
		{Name: PageUnfoldStory, Defaults: Request{Title: "Unfold Story", Subtitle: "이야기로 배우는 회계", Kind: theme.UnfoldStory}},
		{Name: PageUnfoldStoryMonth, Defaults: Request{Title: "Unfold Story", Subtitle: "이야기로 배우는 회계", Kind: theme.UnfoldStory},
			Dynamic: true},
	}
}

// BookFetcher loads book data for the book-detail page.
type BookFetcher interface {
	Book(ctx context.Context, id string) (backend.Book, error)
}

// NewsFetcher loads a news item for the news-detail page.
type NewsFetcher interface {
	News(ctx context.Context, slug string) (backend.News, error)
}

// Binder resolves page bindings into composer requests.
type Binder struct {
	pages map[string]Page
	order []string
	books BookFetcher
	news  NewsFetcher
}

// NewBinder indexes pages by name.
func NewBinder(pages []Page, books BookFetcher, news NewsFetcher) *Binder {
	b := &Binder{pages: make(map[string]Page, len(pages)), books: books, news: news}
	for _, p := range pages {
		b.pages[p.Name] = p
		b.order = append(b.order, p.Name)
	}
	return b
}

// Names lists page names in declaration order.
func (b *Binder) Names() []string {
	return append([]string(nil), b.order...)
}

// Static resolves a page that needs no route parameter.
func (b *Binder) Static(name string) (Request, error) {
	p, ok := b.pages[name]
	if !ok || p.Dynamic {
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownPage, name)
	}
	return resolve(p, Request{}), nil
}

// BookDetail fetches the book and overlays its title and byline. Upstream
// failures degrade to the page defaults; fellBack reports that case.
func (b *Binder) BookDetail(ctx context.Context, id string) (req Request, fellBack bool) {
	p := b.pages[PageBookDetail]
	book, err := b.books.Book(ctx, id)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("book_id", id).Msg("book lookup failed, using fallback title")
		return resolve(p, Request{}), true
	}
	return resolve(p, Request{
		Title:    book.Title,
		Subtitle: joinNonEmpty(" · ", book.Author, book.Publisher),
	}), false
}

// NewsDetail fetches the news item and overlays its title, category and date.
func (b *Binder) NewsDetail(ctx context.Context, slug string) (req Request, fellBack bool) {
	p := b.pages[PageNewsDetail]
	item, err := b.news.News(ctx, slug)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("slug", slug).Msg("news lookup failed, using fallback title")
		return resolve(p, Request{}), true
	}
	return resolve(p, Request{
		Title:    item.Title,
		Subtitle: joinNonEmpty(" · ", item.Category, item.Date()),
	}), false
}

// UnfoldStoryMonth builds the monthly storybook image request.
func (b *Binder) UnfoldStoryMonth(year, month int) (Request, error) {
	if year < 1900 || year > 9999 || month < 1 || month > 12 {
		return Request{}, fmt.Errorf("invalid year/month %d/%d", year, month)
	}
	p := b.pages[PageUnfoldStoryMonth]
	return resolve(p, Request{
		Title: fmt.Sprintf("%d년 %d월의 이야기", year, month),
		Badge: fmt.Sprintf("%04d.%02d", year, month),
	}), nil
}

// resolve merges overrides onto the page defaults and applies page tiering.
func resolve(p Page, over Request) Request {
	req := p.Defaults
	mergeRequest(&req, over)
	if req.TitleSize <= 0 && len(p.Breaks) > 0 {
		req.TitleSize = TieredTitleSize(req.Title, p.Breaks, p.Sizes)
	}
	return req
}

// mergeRequest overlays non-empty fields.
func mergeRequest(base *Request, over Request) {
	if strings.TrimSpace(over.Title) != "" {
		base.Title = over.Title
	}
	if over.Subtitle != "" {
		base.Subtitle = over.Subtitle
	}
	if over.Badge != "" {
		base.Badge = over.Badge
	}
	if over.Kind != theme.Default {
		base.Kind = over.Kind
	}
	if over.TitleSize > 0 {
		base.TitleSize = over.TitleSize
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
