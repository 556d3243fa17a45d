// Package server assembles the HTTP API: OG images, admin auth, the Unfold
// Story pipeline and the upload proxy.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/scholarsite/scholarsite/pkg/auth"
	"github.com/scholarsite/scholarsite/pkg/backend"
	"github.com/scholarsite/scholarsite/pkg/config"
	"github.com/scholarsite/scholarsite/pkg/content"
	"github.com/scholarsite/scholarsite/pkg/jobs"
	"github.com/scholarsite/scholarsite/pkg/metrics"
	"github.com/scholarsite/scholarsite/pkg/middleware"
	"github.com/scholarsite/scholarsite/pkg/ogimage"
	"github.com/scholarsite/scholarsite/pkg/site"
	"github.com/scholarsite/scholarsite/pkg/theme"
	"github.com/scholarsite/scholarsite/pkg/upload"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Images  *Images
	Auth    *auth.Handlers
	Issuer  *auth.Issuer
	Content *content.Handlers
	Upload  *upload.Handler
	Metrics *metrics.Registry

	// ContentRequireAuth puts the admin guard on the content routes.
	ContentRequireAuth bool
	CORSOrigins        []string
}

// Server is the configured echo instance plus anything that must be shut
// down with it.
type Server struct {
	echo   *echo.Echo
	runner *jobs.Runner
	cfg    config.Server
}

// New builds the route table.
func New(d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Recover runs inside the logger so panics surface as logged 500s.
	e.Use(middleware.RequestLogger(d.Metrics))
	e.Use(echomw.Recover())
	if len(d.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: d.CORSOrigins}))
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", d.Metrics.EchoHandlerText)

	og := &ogHandlers{images: d.Images, metrics: d.Metrics}
	og.register(e.Group("/og"))

	admin := auth.RequireAdmin(d.Issuer)
	d.Auth.Register(e.Group("/api/auth"))

	var contentMW []echo.MiddlewareFunc
	if d.ContentRequireAuth {
		contentMW = append(contentMW, admin)
	}
	d.Content.RegisterStory(e.Group("/api/unfold-story"), contentMW...)
	d.Content.RegisterJobs(e.Group("/api/jobs"), contentMW...)

	d.Upload.Register(e.Group("/api/upload"), admin)

	return &Server{echo: e}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown. A clean shutdown returns nil.
func (s *Server) Start(addr string) error {
	s.echo.Server.ReadTimeout = s.cfg.ReadTimeout
	s.echo.Server.WriteTimeout = s.cfg.WriteTimeout

	log.Info().Str("addr", addr).Msg("http server listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, drains in-flight ones, then cancels
// running jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	if s.runner != nil {
		s.runner.Close()
	}
	return err
}

// Images bundles everything needed to render OG images.
type Images struct {
	Composer *ogimage.Composer
	Binder   *ogimage.Binder
}

// BuildImages loads the site profile and fonts and wires the page bindings to
// fetchers. A nil fetcher falls back to a backend client without a base URL.
func BuildImages(cfg config.Config, books ogimage.BookFetcher, news ogimage.NewsFetcher) (*Images, error) {
	profile, err := site.Load(cfg.SiteProfile)
	if err != nil {
		return nil, err
	}
	reg, err := theme.NewRegistry(profile)
	if err != nil {
		return nil, fmt.Errorf("theme registry: %w", err)
	}
	fonts, err := ogimage.NewFontManager(cfg.Font.Regular, cfg.Font.Bold)
	if err != nil {
		return nil, err
	}
	composer, err := ogimage.NewComposer(reg, profile, fonts)
	if err != nil {
		return nil, err
	}

	if books == nil || news == nil {
		api := backend.NewClient("", cfg.Backend.Timeout)
		if books == nil {
			books = api
		}
		if news == nil {
			news = api
		}
	}
	return &Images{
		Composer: composer,
		Binder:   ogimage.NewBinder(ogimage.DefaultPages(profile), books, news),
	}, nil
}

// FromConfig wires every component from cfg.
func FromConfig(cfg config.Config, reg *metrics.Registry) (*Server, error) {
	api := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout)
	if cfg.Backend.URL == "" {
		log.Warn().Msg("BACKEND_URL not set: detail images use fallback titles and uploads are disabled")
	}

	images, err := BuildImages(cfg, api, api)
	if err != nil {
		return nil, err
	}

	secret := cfg.Auth.Secret
	if !cfg.AdminEnabled() {
		log.Warn().Msg("AUTH_SECRET or AUTH_ADMIN_EMAIL not set: admin login is disabled")
	}
	if secret == "" {
		// Nobody can log in, so tokens only need to be unforgeable.
		secret = uuid.NewString()
	}
	issuer, err := auth.NewIssuer(secret, cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}
	verifier := auth.StaticVerifier{
		Email:        cfg.Auth.AdminEmail,
		Password:     cfg.Auth.AdminPassword,
		PasswordHash: cfg.Auth.AdminPasswordHash,
	}

	store := content.NewStatusStore(cfg.Content.StatusDir)
	runner := jobs.NewRunner(jobs.ExecExecutor{},
		jobs.WithConcurrency(cfg.Content.Concurrency),
		jobs.WithRetention(cfg.Content.Retention),
		jobs.WithObserver(store.Observe),
		jobs.WithObserver(JobMetrics(reg)),
	)
	pipeline := content.Pipeline{
		Python:    cfg.Content.Python,
		ScriptDir: cfg.Content.ScriptDir,
		Env:       cfg.Content.Env,
	}

	s := New(Deps{
		Images:  images,
		Auth:    auth.NewHandlers(verifier, issuer),
		Issuer:  issuer,
		Content: content.NewHandlers(runner, pipeline, store),
		Upload: upload.NewHandler(api, upload.Options{
			MaxBytes:    cfg.Upload.MaxBytes,
			MaxWidth:    cfg.Upload.MaxWidth,
			JPEGQuality: cfg.Upload.JPEGQuality,
		}, reg),
		Metrics:            reg,
		ContentRequireAuth: cfg.Content.RequireAuth,
		CORSOrigins:        cfg.Server.CORSOrigins,
	})
	s.runner = runner
	s.cfg = cfg.Server
	return s, nil
}

// JobMetrics counts finished jobs by kind and final state.
func JobMetrics(reg *metrics.Registry) jobs.Observer {
	return func(s jobs.Snapshot) {
		if !s.State.Terminal() {
			return
		}
		reg.Inc(context.Background(), metrics.JobsFinished, map[string]string{
			"kind":  s.Kind,
			"state": string(s.State),
		}, 1)
	}
}

// ShutdownTimeout returns the configured drain window, defaulting to 10s.
func (s *Server) ShutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeout > 0 {
		return s.cfg.ShutdownTimeout
	}
	return 10 * time.Second
}
