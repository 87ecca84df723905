package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	defaultPreflightMethods = "DELETE, GET, HEAD, OPTIONS, PATCH, POST, PUT"
	defaultPreflightHeaders = "Accept, Authorization, Content-Type"
	defaultPreflightMaxAge  = 10 * time.Minute
)

// CORSPolicy is the immutable origin allow-list. The first origin is the
// fallback for requests whose Origin is absent or not listed.
type CORSPolicy struct {
	origins []string
	allowed map[string]struct{}
}

func NewCORSPolicy(origins []string) *CORSPolicy {
	p := &CORSPolicy{
		origins: append([]string(nil), origins...),
		allowed: make(map[string]struct{}, len(origins)),
	}
	for _, o := range origins {
		p.allowed[o] = struct{}{}
	}
	return p
}

// ResolveAllowedOrigin returns requestOrigin when it is on the allow-list and
// the fallback origin otherwise.
func (p *CORSPolicy) ResolveAllowedOrigin(requestOrigin string) string {
	if _, ok := p.allowed[requestOrigin]; ok {
		return requestOrigin
	}
	if len(p.origins) == 0 {
		return ""
	}
	return p.origins[0]
}

func (p *CORSPolicy) setOriginHeaders(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", p.ResolveAllowedOrigin(r.Header.Get("Origin")))
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Add("Vary", "Origin")
}

// CORS stamps the resolved origin and credentials flag on every response
// before the handler runs, so errors and recovered panics carry them too.
// Preflight requests for routes without their own OPTIONS handler are
// answered here with a generic policy.
func CORS(p *CORSPolicy, routes chi.Routes) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p.setOriginHeaders(w, r)

			if isPreflight(r) && !hasOptionsRoute(routes, r) {
				headers := r.Header.Get("Access-Control-Request-Headers")
				if headers == "" {
					headers = defaultPreflightHeaders
				}
				writePreflight(w, defaultPreflightMethods, headers, defaultPreflightMaxAge)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Preflight answers OPTIONS for a single route with an explicit method and
// header list. Origin headers are already set by CORS.
func Preflight(methods, headers string, maxAge time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writePreflight(w, methods, headers, maxAge)
	}
}

func writePreflight(w http.ResponseWriter, methods, headers string, maxAge time.Duration) {
	h := w.Header()
	h.Set("Access-Control-Allow-Methods", methods)
	h.Set("Access-Control-Allow-Headers", headers)
	h.Set("Access-Control-Max-Age", strconv.Itoa(int(maxAge/time.Second)))
	h.Set("Content-Length", "0")
	w.WriteHeader(http.StatusOK)
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

func hasOptionsRoute(routes chi.Routes, r *http.Request) bool {
	if routes == nil {
		return false
	}
	return routes.Match(chi.NewRouteContext(), http.MethodOptions, r.URL.Path)
}
