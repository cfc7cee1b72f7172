package testutil

import (
	"net/http"
	"time"

	"golang.org/x/text/language"

	"kuruma/pkg/requestcontext"
)

// WithRequestTime pins the evaluation time seen by handlers.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithLanguage sets the resolved response language.
func WithLanguage(req *http.Request, tag language.Tag) *http.Request {
	return req.WithContext(requestcontext.WithLanguage(req.Context(), tag))
}
