package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/sirupsen/logrus"
)

// NewMux creates router for app's http server.
//
// Every path except the root is treated as an organization name:
// GET /{orgname}?per_page=&page=&cache=
// requestsPerMinute caps requests per client ip; zero disables the limit.
func NewMux(
	service Service,
	respCache *ResponseCache,
	timeout time.Duration,
	requestsPerMinute int,
	l logrus.FieldLogger,
) http.Handler {
	timeoutMiddleware := NewTimeoutMiddleware(timeout)

	orgHandler := NewOrganizationHandler(
		func(r *http.Request) string {
			name := strings.Trim(r.URL.Path, "/")
			if strings.Contains(name, "/") {
				return ""
			}
			return name
		},
		service,
		respCache,
		l,
	)
	orgHandler = timeoutMiddleware(orgHandler)

	m := http.NewServeMux()
	m.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			writeJSONPayload(w, http.StatusOK, []byte(`{"message":"organization contributor stats api"}`), time.Time{})
			return
		}
		orgHandler(w, r)
	})

	var handler http.Handler = m
	handler = cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Cache-Control", "If-Modified-Since"},
	})(handler)
	if requestsPerMinute > 0 {
		handler = httprate.LimitByIP(requestsPerMinute, time.Minute)(handler)
	}

	return handler
}
