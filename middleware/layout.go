package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/Dosada05/lunch-roulette/models"
)

var (
	mobileDeviceUA = regexp.MustCompile(`(?i)android|webos|iphone|ipad|ipod|blackberry|iemobile|opera mini|mobile|tablet|kindle|silk|playbook`)
	tabletDeviceUA = regexp.MustCompile(`(?i)ipad|android.*tablet|tablet|kindle|silk|playbook`)
)

// tabletMinWidth: mobile devices wider than this get the tablet layout.
const tabletMinWidth = 768

// LayoutHeader echoes the chosen layout on every response.
const LayoutHeader = "X-Layout-Mode"

// DetectLayout classifies a client. Non-mobile user agents are always pc;
// mobile ones are tablet when the agent says so or the viewport is wide.
func DetectLayout(userAgent string, viewportWidth int) models.LayoutMode {
	if !mobileDeviceUA.MatchString(userAgent) {
		return models.LayoutPC
	}
	if tabletDeviceUA.MatchString(userAgent) || viewportWidth > tabletMinWidth {
		return models.LayoutTablet
	}
	return models.LayoutMobile
}

// Layout resolves the layout mode of each request: an explicit ?layout=
// value wins, otherwise the User-Agent and client-hint viewport width decide.
func Layout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mode := models.LayoutMode(strings.ToLower(r.URL.Query().Get("layout")))
		if !mode.Valid() {
			mode = DetectLayout(r.UserAgent(), viewportWidth(r))
		}
		w.Header().Set(LayoutHeader, string(mode))
		w.Header().Add("Vary", "User-Agent")
		ctx := context.WithValue(r.Context(), layoutContextKey, mode)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func viewportWidth(r *http.Request) int {
	for _, h := range []string{"Sec-CH-Viewport-Width", "Viewport-Width"} {
		if v := r.Header.Get(h); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}
	return 0
}

// LegacyMobileRedirect permanently moves /m and /m/... to the single
// canonical path, keeping the query string.
func LegacyMobileRedirect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target, ok := canonicalPath(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}

func canonicalPath(path string) (string, bool) {
	switch {
	case path == "/m" || path == "/m/":
		return "/", true
	case strings.HasPrefix(path, "/m/"):
		// Ровно один ведущий слэш: "//host" браузер понял бы как другой хост.
		return "/" + strings.TrimLeft(strings.TrimPrefix(path, "/m"), `/\`), true
	}
	return "", false
}
