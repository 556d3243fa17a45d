// Package theme maps content kinds to their visual theme: gradient, icon and
// display label. The registry is immutable once built.
package theme

import (
	"fmt"

	"github.com/scholarsite/scholarsite/pkg/site"
)

// Kind is a content-type tag. The set is closed: values come only from the
// constants below or from ParseKind. The zero value is Default.
type Kind struct {
	idx uint8
}

var (
	Default     = Kind{0}
	Profile     = Kind{1}
	Research    = Kind{2}
	Education   = Kind{3}
	Lab         = Kind{4}
	Book        = Kind{5}
	News        = Kind{6}
	UnfoldStory = Kind{7}
)

const numKinds = 8

var slugs = [numKinds]string{
	"default",
	"profile",
	"research",
	"education",
	"lab",
	"book",
	"news",
	"unfold-story",
}

// String returns the kind's slug.
func (k Kind) String() string { return slugs[k.idx] }

// Branded reports whether the kind carries the site owner's branding
// (larger, bold icon).
func (k Kind) Branded() bool { return k == Default || k == Profile }

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind converts a slug into a Kind. An empty string is Default.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return Default, nil
	}
	for i, slug := range slugs {
		if slug == s {
			return Kind{uint8(i)}, nil
		}
	}
	return Default, fmt.Errorf("unknown theme kind %q", s)
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind{uint8(i)}
	}
	return out
}

// Theme is the visual styling for one kind.
type Theme struct {
	Key      Kind
	Gradient string // CSS-style linear-gradient descriptor
	Icon     string
	Label    string
}

// Registry resolves kinds to themes and builds alt text.
type Registry struct {
	themes [numKinds]Theme
	author string
}

// builtin holds gradients, icons and labels in Kind order.
var builtin = [numKinds]Theme{
	{Gradient: "linear-gradient(135deg, #1e3a5f 0%, #3b82f6 100%)", Icon: "", Label: ""},
	{Gradient: "linear-gradient(135deg, #0f172a 0%, #334155 100%)", Icon: "", Label: "프로필"},
	{Gradient: "linear-gradient(135deg, #064e3b 0%, #10b981 100%)", Icon: "R", Label: "연구"},
	{Gradient: "linear-gradient(135deg, #7c2d12 0%, #f97316 100%)", Icon: "E", Label: "교육"},
	{Gradient: "linear-gradient(135deg, #312e81 0%, #8b5cf6 100%)", Icon: "L", Label: "연구실"},
	{Gradient: "linear-gradient(135deg, #78350f 0%, #d97706 100%)", Icon: "B", Label: "도서"},
	{Gradient: "linear-gradient(135deg, #7f1d1d 0%, #ef4444 100%)", Icon: "N", Label: "뉴스"},
	{Gradient: "linear-gradient(135deg, #831843 0%, #ec4899 50%, #f9a8d4 100%)", Icon: "US", Label: "언폴드 스토리"},
}

// NewRegistry builds the registry for a site profile. Branded kinds use the
// profile initials as their icon; profile label overrides replace built-ins.
func NewRegistry(p site.Profile) (*Registry, error) {
	r := &Registry{themes: builtin, author: p.Author}
	for i := range r.themes {
		r.themes[i].Key = Kind{uint8(i)}
		if r.themes[i].Key.Branded() {
			r.themes[i].Icon = p.Initials
		}
	}

	for slug, label := range p.Labels {
		k, err := ParseKind(slug)
		if err != nil {
			return nil, fmt.Errorf("label override: %w", err)
		}
		r.themes[k.idx].Label = label
	}

	for _, t := range r.themes {
		if t.Gradient == "" || t.Icon == "" {
			return nil, fmt.Errorf("theme %s: gradient and icon are required", t.Key)
		}
	}
	return r, nil
}

// Lookup returns the theme for k.
func (r *Registry) Lookup(k Kind) Theme {
	return r.themes[k.idx]
}

// AltText returns the accessibility text for an image of the given kind.
func (r *Registry) AltText(title string, k Kind) string {
	label := r.themes[k.idx].Label
	if label == "" {
		return fmt.Sprintf("%s | %s", title, r.author)
	}
	return fmt.Sprintf("%s - %s | %s", title, label, r.author)
}
