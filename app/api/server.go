package api

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	responseBodyKey = "response_body"

	logBodyLimit = 80 // characters of response body in access logs
)

type ServerOptions struct {
	Development bool
	StaticDir   string // built client, optional
}

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, opts ServerOptions) *gin.Engine {
	if opts.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Middleware
	r.Use(requestIDMiddleware())

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			line := fmt.Sprintf("%s [%s] %s %s %d in %s req=%s",
				param.TimeStamp.Format(time.RFC3339),
				param.ClientIP,
				param.Method,
				param.Path,
				param.StatusCode,
				param.Latency,
				param.Request.Header.Get(requestIDHeader),
			)
			if body, ok := param.Keys[responseBodyKey].(string); ok && body != "" {
				line += " :: " + body
			}
			if param.ErrorMessage != "" {
				line += " " + param.ErrorMessage
			}
			return line + "\n"
		},
		// Only API traffic is interesting; static assets would drown it.
		Skip: func(c *gin.Context) bool {
			return !strings.HasPrefix(c.Request.URL.Path, "/api")
		},
	}))

	r.Use(responseBodyMiddleware())

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, "+requestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, opts)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, opts ServerOptions) {
	api := r.Group("/api")
	{
		api.GET("/rss", handler.GetRSS)
		api.GET("/rss.xml", handler.GetRSSFeed)
		api.GET("/posts", handler.GetPosts)
		api.POST("/posts/refresh", handler.RefreshPosts)
	}

	r.GET("/health", handler.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if opts.StaticDir != "" {
		r.NoRoute(staticHandler(opts.StaticDir))
		return
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "KingsFeeds",
			"version":     handler.version,
			"description": "Same-origin proxy and normalizer for an RSS-to-JSON aggregator",
			"endpoints": map[string]string{
				"feed":    "/api/rss",
				"rss":     "/api/rss.xml",
				"posts":   "/api/posts",
				"refresh": "/api/posts/refresh (POST)",
				"health":  "/health",
				"metrics": "/metrics",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(requestIDHeader, id)
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		c.Next()
	}
}

// bodyLogWriter keeps the first bytes written to the response for the
// access log.
type bodyLogWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyLogWriter) Write(b []byte) (int, error) {
	w.capture(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyLogWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *bodyLogWriter) capture(b []byte) {
	// UTF-8 needs at most 4 bytes per character.
	if room := logBodyLimit*4 - w.body.Len(); room > 0 {
		w.body.Write(b[:min(len(b), room)])
	}
}

// responseBodyMiddleware records a short summary of /api response bodies
// under responseBodyKey.
func responseBodyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Next()
			return
		}

		writer := &bodyLogWriter{ResponseWriter: c.Writer}
		c.Writer = writer

		c.Next()

		c.Set(responseBodyKey, summarizeBody(writer.body.String()))
	}
}

// summarizeBody flattens whitespace and cuts the body to logBodyLimit
// characters, marking the cut with "…".
func summarizeBody(body string) string {
	body = strings.Join(strings.Fields(body), " ")

	runes := []rune(body)
	if len(runes) > logBodyLimit {
		return string(runes[:logBodyLimit-1]) + "…"
	}
	return body
}

// staticHandler serves files from dir and falls back to index.html so client
// side routes resolve. Unknown API paths still get a JSON 404.
func staticHandler(dir string) gin.HandlerFunc {
	index := filepath.Join(dir, "index.html")

	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"message": "Not Found"})
			return
		}

		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusNotFound)
			return
		}

		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+c.Request.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			c.File(name)
			return
		}

		c.File(index)
	}
}
