// Package locale resolves the display language for a request.
package locale

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"

	"kuruma/pkg/platform/i18n"
	"kuruma/pkg/requestcontext"
)

const (
	// Param is the query parameter used to select a language.
	Param = "lang"
	// CookieName stores the caller's language preference.
	CookieName = "kuruma_lang"
)

// Middleware resolves the language and stores it in the context. An explicit
// ?lang= choice is persisted as a cookie.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag, persist := Resolve(r)
		if persist {
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    tag.String(),
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := requestcontext.WithLanguage(r.Context(), tag)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Resolve picks the language: ?lang= > cookie > Accept-Language > default.
// The bool reports whether the choice came from the query parameter.
func Resolve(r *http.Request) (language.Tag, bool) {
	if r == nil {
		return i18n.DefaultTag(), false
	}

	if value := strings.TrimSpace(r.URL.Query().Get(Param)); value != "" {
		if tag, ok := i18n.ParseTag(value); ok {
			return tag, true
		}
	}

	if cookie, err := r.Cookie(CookieName); err == nil {
		if tag, ok := i18n.ParseTag(cookie.Value); ok {
			return tag, false
		}
	}

	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil {
			return i18n.MatchTags(tags), false
		}
	}

	return i18n.DefaultTag(), false
}
