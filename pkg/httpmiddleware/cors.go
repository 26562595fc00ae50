package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	// AllowOrigins lists allowed origins; ["*"] allows any.
	AllowOrigins []string
	// AllowHeaders lists headers a preflight may request.
	AllowHeaders []string
	// AllowCredentials permits cookies and auth headers. Incompatible with
	// a wildcard origin: the matched origin is echoed instead.
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// CORS returns a middleware that answers preflight requests and sets CORS
// response headers for allowed origins.
func CORS(cfg CORSConfig) Middleware {
	allowAll := false
	allowed := make(map[string]struct{}, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			allowAll = true
			continue
		}
		allowed[strings.TrimSuffix(o, "/")] = struct{}{}
	}
	allowHeaders := strings.Join(cfg.AllowHeaders, ", ")
	allowMethods := "GET, POST, PATCH, DELETE, OPTIONS"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			echo := ""
			switch {
			case allowAll && !cfg.AllowCredentials:
				echo = "*"
			case allowAll:
				echo = origin
			default:
				if _, ok := allowed[strings.TrimSuffix(origin, "/")]; ok {
					echo = origin
				}
			}

			if echo != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", echo)
				h.Add("Vary", "Origin")
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if r.Method == http.MethodOptions {
					h.Set("Access-Control-Allow-Methods", allowMethods)
					if allowHeaders != "" {
						h.Set("Access-Control-Allow-Headers", allowHeaders)
					}
					if cfg.MaxAge > 0 {
						h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
					}
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
