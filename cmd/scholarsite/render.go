package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scholarsite/scholarsite/clients/server"
	"github.com/scholarsite/scholarsite/pkg/backend"
	"github.com/scholarsite/scholarsite/pkg/ogimage"
	"github.com/scholarsite/scholarsite/pkg/theme"
)

type renderOptions struct {
	output   string
	page     string
	id       string
	year     int
	month    int
	title    string
	subtitle string
	badge    string
	kind     string
}

func newRenderCmd() *cobra.Command {
	var o renderOptions
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one OG image to a PNG file",
		Long: `Render one Open Graph image without starting the server.

Start from a page binding with --page (book-detail and news-detail take --id,
unfold-story-month takes --year/--month), or describe the image directly with
--title/--subtitle/--badge/--type. Explicit flags override the page defaults.`,
		Example: `  scholarsite render -o home.png --page home
  scholarsite render -o story.png --page unfold-story-month --year 2023 --month 5
  scholarsite render -o custom.png --title "회계원리" --type book`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			api := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout)
			images, err := server.BuildImages(cfg, api, api)
			if err != nil {
				return err
			}

			req, err := o.request(cmd.Context(), images.Binder)
			if err != nil {
				return err
			}
			img, err := images.Composer.Compose(req)
			if err != nil {
				return err
			}
			if err := ogimage.SavePNG(img, o.output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, title %.0fpx)\n", o.output, img.Width, img.Height, img.TitleFontSize)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.output, "output", "o", "", "output PNG path (required)")
	f.StringVar(&o.page, "page", "", "page binding to start from")
	f.StringVar(&o.id, "id", "", "book id or news slug for detail pages")
	f.IntVar(&o.year, "year", 0, "year for unfold-story-month")
	f.IntVar(&o.month, "month", 0, "month for unfold-story-month")
	f.StringVar(&o.title, "title", "", "title text")
	f.StringVar(&o.subtitle, "subtitle", "", "subtitle text")
	f.StringVar(&o.badge, "badge", "", "badge text")
	f.StringVar(&o.kind, "type", "", "theme kind (default, profile, research, education, lab, book, news, unfold-story)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (o renderOptions) request(ctx context.Context, b *ogimage.Binder) (ogimage.Request, error) {
	var req ogimage.Request
	switch o.page {
	case "":
		if o.title == "" {
			return req, errors.New("either --page or --title is required")
		}
	case ogimage.PageBookDetail, ogimage.PageNewsDetail:
		if o.id == "" {
			return req, fmt.Errorf("--id is required for %s", o.page)
		}
		if o.page == ogimage.PageBookDetail {
			req, _ = b.BookDetail(ctx, o.id)
		} else {
			req, _ = b.NewsDetail(ctx, o.id)
		}
	case ogimage.PageUnfoldStoryMonth:
		r, err := b.UnfoldStoryMonth(o.year, o.month)
		if err != nil {
			return req, err
		}
		req = r
	default:
		r, err := b.Static(o.page)
		if err != nil {
			return req, fmt.Errorf("%w (known: %v)", err, b.Names())
		}
		req = r
	}

	if o.title != "" {
		req.Title = o.title
		req.TitleSize = 0
	}
	if o.subtitle != "" {
		req.Subtitle = o.subtitle
	}
	if o.badge != "" {
		req.Badge = o.badge
	}
	if o.kind != "" {
		k, err := theme.ParseKind(o.kind)
		if err != nil {
			return req, err
		}
		req.Kind = k
	}
	return req, nil
}
