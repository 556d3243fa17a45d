// Package upload proxies admin image uploads to the backend API, normalising
// oversized images on the way.
package upload

import (
	"fmt"
	"strings"
)

// Category is the backend bucket an upload lands in. The zero value is invalid.
type Category struct{ slug string }

var (
	Book      = Category{"book"}
	News      = Category{"news"}
	Storybook = Category{"storybook"}
	Profile   = Category{"profile"}
	Lab       = Category{"lab"}
)

var categories = []Category{Book, News, Storybook, Profile, Lab}

func (c Category) String() string { return c.slug }

// ParseCategory resolves a form value.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range categories {
		if c.slug == s {
			return c, nil
		}
	}
	return Category{}, fmt.Errorf("unknown upload category %q", s)
}

// Categories returns every category.
func Categories() []Category {
	return append([]Category(nil), categories...)
}
