// Package site holds the process-wide site profile: who the site is about and
// where it lives. It is loaded once at startup and injected everywhere else.
package site

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile describes the site owner and branding shown on rendered images.
type Profile struct {
	Author      string            `yaml:"author"`
	Institution string            `yaml:"institution"`
	Initials    string            `yaml:"initials"`
	SiteURL     string            `yaml:"siteURL"`
	Labels      map[string]string `yaml:"labels"` // kind slug → display label override
}

// Default returns the built-in profile.
func Default() Profile {
	return Profile{
		Author:      "나현종",
		Institution: "경영대학 회계학 교수",
		Initials:    "NHJ",
		SiteURL:     "www.example.edu",
	}
}

// Byline is the footer line: "author · institution", or just the author.
func (p Profile) Byline() string {
	if p.Institution == "" {
		return p.Author
	}
	return p.Author + " · " + p.Institution
}

// Load reads a YAML profile from path and overlays it onto Default.
// An empty path returns Default unchanged.
func Load(path string) (Profile, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read site profile: %w", err)
	}

	var over Profile
	if err := yaml.Unmarshal(data, &over); err != nil {
		return p, fmt.Errorf("parse site profile %s: %w", path, err)
	}

	merge(&p, over)
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Validate checks the fields every renderer depends on.
func (p Profile) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Author) == "" {
		errs = append(errs, errors.New("site profile: author is required"))
	}
	if strings.TrimSpace(p.Initials) == "" {
		errs = append(errs, errors.New("site profile: initials are required"))
	}
	return errors.Join(errs...)
}

// merge applies non-empty overrides.
func merge(base *Profile, over Profile) {
	if over.Author != "" {
		base.Author = over.Author
	}
	if over.Institution != "" {
		base.Institution = over.Institution
	}
	if over.Initials != "" {
		base.Initials = over.Initials
	}
	if over.SiteURL != "" {
		base.SiteURL = over.SiteURL
	}
	if len(over.Labels) > 0 {
		base.Labels = make(map[string]string, len(over.Labels))
		for k, v := range over.Labels {
			base.Labels[k] = v
		}
	}
}

// Example returns a sample site.yaml for `scholarsite init`.
func Example() string {
	return `# Site profile for rendered Open Graph images.
author: 나현종
institution: 경영대학 회계학 교수
initials: NHJ
siteURL: www.example.edu

# Optional per-kind label overrides (kind slug → label).
# labels:
#   news: 소식
`
}
