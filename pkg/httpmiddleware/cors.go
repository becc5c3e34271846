package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures CORS.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. Empty or "*" allows any origin.
	AllowOrigins []string
	// AllowMethods defaults to GET, POST and OPTIONS.
	AllowMethods []string
	// AllowHeaders lists allowed request headers. When empty the headers
	// requested by a preflight are echoed.
	AllowHeaders  []string
	ExposeHeaders []string
	// AllowCredentials sets Access-Control-Allow-Credentials. It disables the
	// wildcard origin: allowed origins are echoed instead.
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header, a negative value sends 0.
	MaxAge int
}

type cors struct {
	anyOrigin   bool
	origins     map[string]string // lowercase -> configured
	methods     string
	headers     string
	expose      string
	credentials bool
	maxAge      string
}

func newCORS(cfg CORSConfig) *cors {
	c := &cors{
		anyOrigin:   len(cfg.AllowOrigins) == 0,
		origins:     make(map[string]string, len(cfg.AllowOrigins)),
		methods:     strings.Join(cfg.AllowMethods, ", "),
		headers:     strings.Join(cfg.AllowHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
		credentials: cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			c.anyOrigin = true
			continue
		}
		c.origins[strings.ToLower(o)] = o
	}
	if c.credentials {
		c.anyOrigin = false
	}
	if c.methods == "" {
		c.methods = "GET, POST, OPTIONS"
	}
	switch {
	case cfg.MaxAge > 0:
		c.maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		c.maxAge = "0"
	}
	return c
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// if it is not allowed.
func (c *cors) allowOrigin(origin string) string {
	if c.anyOrigin {
		return "*"
	}
	return c.origins[strings.ToLower(origin)]
}

func (c *cors) preflight(w http.ResponseWriter, r *http.Request, allowed string) {
	h := w.Header()
	h.Add("Vary", "Origin")
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")

	if allowed != "" {
		h.Set("Access-Control-Allow-Origin", allowed)
		h.Set("Access-Control-Allow-Methods", c.methods)
		if c.headers != "" {
			h.Set("Access-Control-Allow-Headers", c.headers)
		} else if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
			h.Set("Access-Control-Allow-Headers", req)
		}
		if c.credentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if c.maxAge != "" {
			h.Set("Access-Control-Max-Age", c.maxAge)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *cors) actual(w http.ResponseWriter, allowed string) {
	h := w.Header()
	if !c.anyOrigin {
		h.Add("Vary", "Origin")
	}
	if allowed == "" {
		return
	}
	h.Set("Access-Control-Allow-Origin", allowed)
	if c.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if c.expose != "" {
		h.Set("Access-Control-Expose-Headers", c.expose)
	}
}

// CORS handles Cross-Origin Resource Sharing. Origins match
// case-insensitively and are echoed in their configured case. Preflights are
// answered with 204 without reaching next.
func CORS(cfg CORSConfig) Middleware {
	c := newCORS(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case origin == "":
				if !c.anyOrigin {
					w.Header().Add("Vary", "Origin")
				}
			case r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "":
				c.preflight(w, r, c.allowOrigin(origin))
				return
			default:
				c.actual(w, c.allowOrigin(origin))
			}
			next.ServeHTTP(w, r)
		})
	}
}
