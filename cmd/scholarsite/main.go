// scholarsite - OG images, admin auth and content tooling for the faculty site.
//
// Usage:
//
//	scholarsite serve
//	scholarsite render -o home.png --page home
//	scholarsite token
//	scholarsite init [--dir .]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scholarsite/scholarsite/pkg/config"
	"github.com/scholarsite/scholarsite/pkg/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scholarsite",
		Short: "Backend services for the faculty website",
		Long: `scholarsite serves Open Graph preview images for every section of the
site, the admin login API, the image-upload proxy and the Unfold Story
content pipeline.

Configuration comes from the environment (and an optional .env file);
run "scholarsite init" for a commented sample.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newRenderCmd(), newTokenCmd(), newInitCmd())
	return root
}

// loadConfig reads the environment and configures logging from it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	return cfg, nil
}
