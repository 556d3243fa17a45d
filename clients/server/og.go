package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/scholarsite/scholarsite/pkg/metrics"
	"github.com/scholarsite/scholarsite/pkg/ogimage"
)

// ogCacheControl lets CDNs and crawlers reuse images for an hour.
const ogCacheControl = "public, max-age=3600, s-maxage=3600"

type ogHandlers struct {
	images  *Images
	metrics *metrics.Registry
}

func (h *ogHandlers) register(g *echo.Group) {
	// Static segments win over /book/:id and /news/:slug.
	g.GET("/book/meta", h.metaFor(ogimage.PageBook))
	g.GET("/news/meta", h.metaFor(ogimage.PageNews))
	g.GET("/book/:id", h.bookDetail)
	g.GET("/news/:slug", h.newsDetail)
	g.GET("/unfold-story/:year/:month", h.unfoldStoryMonth)
	g.GET("/:page/meta", func(c echo.Context) error { return h.meta(c, c.Param("page")) })
	g.GET("/:page", h.static)
}

// metaResponse is what page templates need for og:image tags.
type metaResponse struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Type   string `json:"type"`
	Alt    string `json:"alt"`
}

func (h *ogHandlers) static(c echo.Context) error {
	page := c.Param("page")
	req, err := h.images.Binder.Static(page)
	if errors.Is(err, ogimage.ErrUnknownPage) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown page")
	}
	if err != nil {
		return err
	}
	return h.render(c, page, req)
}

func (h *ogHandlers) bookDetail(c echo.Context) error {
	req, fellBack := h.images.Binder.BookDetail(c.Request().Context(), c.Param("id"))
	if fellBack {
		h.fallback(c, ogimage.PageBookDetail)
	}
	return h.render(c, ogimage.PageBookDetail, req)
}

func (h *ogHandlers) newsDetail(c echo.Context) error {
	req, fellBack := h.images.Binder.NewsDetail(c.Request().Context(), c.Param("slug"))
	if fellBack {
		h.fallback(c, ogimage.PageNewsDetail)
	}
	return h.render(c, ogimage.PageNewsDetail, req)
}

func (h *ogHandlers) unfoldStoryMonth(c echo.Context) error {
	year, yerr := strconv.Atoi(c.Param("year"))
	month, merr := strconv.Atoi(c.Param("month"))
	if yerr != nil || merr != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "year and month must be numbers")
	}
	req, err := h.images.Binder.UnfoldStoryMonth(year, month)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.render(c, ogimage.PageUnfoldStoryMonth, req)
}

func (h *ogHandlers) metaFor(page string) echo.HandlerFunc {
	return func(c echo.Context) error { return h.meta(c, page) }
}

// meta describes the static image for page without rendering it.
func (h *ogHandlers) meta(c echo.Context, page string) error {
	req, err := h.images.Binder.Static(page)
	if errors.Is(err, ogimage.ErrUnknownPage) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown page")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, metaResponse{
		URL:    c.Scheme() + "://" + c.Request().Host + "/og/" + page,
		Width:  ogimage.Width,
		Height: ogimage.Height,
		Type:   ogimage.ContentType,
		Alt:    h.images.Composer.Registry().AltText(req.Title, req.Kind),
	})
}

func (h *ogHandlers) render(c echo.Context, page string, req ogimage.Request) error {
	img, err := h.images.Composer.Compose(req)
	if err != nil {
		log.Ctx(c.Request().Context()).Error().Err(err).Str("page", page).Msg("og render failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "image render failed")
	}
	h.metrics.Inc(c.Request().Context(), metrics.OGImagesRendered, map[string]string{"page": page}, 1)

	c.Response().Header().Set("Cache-Control", ogCacheControl)
	return c.Blob(http.StatusOK, img.ContentType, img.Data)
}

func (h *ogHandlers) fallback(c echo.Context, page string) {
	h.metrics.Inc(c.Request().Context(), metrics.OGUpstreamFallback, map[string]string{"page": page}, 1)
}
