package importer

import (
	"strings"
	"unicode"
)

const (
	RootFolder = "Pazaryerleri"
	// Unsorted is the folder of listings without a usable category or section.
	Unsorted   = "Tasnif-Edilmemiş"
	maxSegment = 190
)

// Sanitize makes a single folder name: no separators or control characters,
// collapsed whitespace, at most max runes.
func Sanitize(s string, max int) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '-'
		case unicode.IsControl(r):
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if max > 0 {
		runes := []rune(s)
		if len(runes) > max {
			s = strings.TrimSpace(string(runes[:max]))
		}
	}
	return s
}

// PlacementPath builds Pazaryerleri/<marketplace>/<segments...>. An empty first
// segment becomes Unsorted, later empty segments are dropped.
func PlacementPath(marketplaceKey string, segments ...string) string {
	parts := []string{RootFolder, Sanitize(marketplaceKey, maxSegment)}
	for i, seg := range segments {
		seg = Sanitize(seg, maxSegment)
		if seg == "" {
			if i == 0 {
				parts = append(parts, Unsorted)
			}
			continue
		}
		parts = append(parts, seg)
	}
	if len(parts) == 2 {
		parts = append(parts, Unsorted)
	}
	return strings.Join(parts, "/")
}
