package http

import (
	"net/http"
	"strings"
	"time"
)

// cacheMode is the caching behavior requested by the client.
type cacheMode int

const (
	// cacheModeOK allows serving from the response cache.
	cacheModeOK cacheMode = iota
	// cacheModeNoCache bypasses all caches and forces a refresh.
	cacheModeNoCache
	// cacheModeRevalidate bypasses the response cache but keeps repository caches.
	cacheModeRevalidate
	// cacheModeIfUnchanged asks for a 304 when nothing changed since the
	// If-Modified-Since timestamp.
	cacheModeIfUnchanged
)

// parseCacheMode resolves the caching behavior from the request. The `cache`
// query param takes precedence over the Cache-Control header; a lone
// If-Modified-Since header selects the conditional mode.
func parseCacheMode(r *http.Request) cacheMode {
	if v := r.URL.Query().Get("cache"); v != "" {
		switch strings.ToLower(v) {
		case "true", "yes", "1":
			return cacheModeOK
		case "false", "no", "0":
			return cacheModeNoCache
		case "revalidate", "validate":
			return cacheModeRevalidate
		}
	}

	if v := r.Header.Get("Cache-Control"); v != "" {
		switch strings.ToLower(v) {
		case "no-cache":
			return cacheModeNoCache
		case "must-revalidate":
			return cacheModeRevalidate
		}
	} else if r.Header.Get("If-Modified-Since") != "" {
		return cacheModeIfUnchanged
	}

	return cacheModeOK
}

// parseIfModifiedSince returns the If-Modified-Since timestamp, if present
// and valid.
func parseIfModifiedSince(r *http.Request) (time.Time, bool) {
	v := r.Header.Get("If-Modified-Since")
	if v == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// formatLastModified renders t for a Last-Modified header.
func formatLastModified(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
