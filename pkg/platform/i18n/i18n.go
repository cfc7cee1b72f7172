// Package i18n owns the set of display languages the marketplace supports.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

var supported = []language.Tag{
	language.English, // default; must stay first for the matcher
	language.Japanese,
}

var matcher = language.NewMatcher(supported)

// SupportedTags returns the supported language tags, default first.
func SupportedTags() []language.Tag {
	out := make([]language.Tag, len(supported))
	copy(out, supported)
	return out
}

// DefaultTag returns the fallback display language.
func DefaultTag() language.Tag {
	return supported[0]
}

// ParseTag parses a language value and reports whether it maps onto a
// supported language with at least high confidence.
func ParseTag(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultTag(), false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return DefaultTag(), false
	}
	_, idx, conf := matcher.Match(tag)
	if conf < language.High {
		return DefaultTag(), false
	}
	return supported[idx], true
}

// MatchTags picks the best supported language for a preference list,
// e.g. the parsed Accept-Language header.
func MatchTags(tags []language.Tag) language.Tag {
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return DefaultTag()
	}
	return supported[idx]
}
