// Package devproxy serves the development routing table: one listener that
// forwards each API prefix to the service that owns it.
package devproxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/logging"
	"github.com/nhle/socialterm/internal/model"
)

var log = logging.NewNamed("devproxy")

type route struct {
	prefix string
	strip  bool
	proxy  *httputil.ReverseProxy
}

// Proxy forwards requests by longest matching path prefix.
type Proxy struct {
	routes []route
}

// New builds a proxy for routes. Routes are matched longest prefix first.
func New(routes []model.ProxyRoute) (*Proxy, error) {
	p := &Proxy{}
	for _, r := range routes {
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("route prefix %q must start with /", r.Prefix)
		}
		target, err := url.Parse(r.Target)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("route %s: invalid target %q", r.Prefix, r.Target)
		}

		// Upstreams see their own host, not the proxy's.
		rp := &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(target)
				pr.SetXForwarded()
			},
			ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
				log.Warn("upstream unavailable",
					zap.String("path", req.URL.Path),
					zap.String("target", target.Host),
					zap.Error(err))
				w.WriteHeader(http.StatusBadGateway)
			},
		}
		p.routes = append(p.routes, route{
			prefix: strings.TrimSuffix(r.Prefix, "/"),
			strip:  r.StripPrefix,
			proxy:  rp,
		})
	}

	sort.SliceStable(p.routes, func(i, j int) bool {
		return len(p.routes[i].prefix) > len(p.routes[j].prefix)
	})
	return p, nil
}

// match returns the route owning path. A prefix matches itself and any
// path below it, never a sibling such as /api/feedback for /api/feed.
func (p *Proxy) match(path string) (route, bool) {
	for _, r := range p.routes {
		if path == r.prefix || strings.HasPrefix(path, r.prefix+"/") || r.prefix == "" {
			return r, true
		}
	}
	return route{}, false
}

// ServeHTTP forwards req to its route, or answers 404.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r, ok := p.match(req.URL.Path)
	if !ok {
		http.NotFound(w, req)
		return
	}

	if r.strip {
		req = req.Clone(req.Context())
		req.URL.Path = strings.TrimPrefix(req.URL.Path, r.prefix)
		if req.URL.Path == "" {
			req.URL.Path = "/"
		}
		req.URL.RawPath = ""
	}
	r.proxy.ServeHTTP(w, req)
}

// Router wraps p in a gin engine with request logging and CORS.
func Router(p *Proxy, cfg model.ProxyConfig) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), accessLog())
	engine.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	engine.NoRoute(gin.WrapH(p))
	return engine
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("proxied",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
