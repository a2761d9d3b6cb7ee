package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/kingsfeeds/app/feed"
	"github.com/lysyi3m/kingsfeeds/app/tasks"
	"github.com/lysyi3m/kingsfeeds/app/view"
)

const (
	fetchFailedMessage  = "Failed to fetch RSS feed"
	notReadyMessage     = "Feed not available yet"
	unknownErrorMessage = "Unknown error"
)

func NewHandler(proxy LoaderInterface, generator GeneratorInterface,
	refresher tasks.RefresherInterface, version string) *Handler {
	return &Handler{
		proxy:     proxy,
		generator: generator,
		refresher: refresher,
		version:   version,
		startedAt: time.Now(),
	}
}

// GetRSS proxies the aggregator through the server pipeline on every call.
func (h *Handler) GetRSS(c *gin.Context) {
	result, err := h.proxy.Load(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, fetchFailedMessage, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetRSSFeed(c *gin.Context) {
	result, err := h.proxy.Load(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, fetchFailedMessage, err)
		return
	}

	rss, err := h.generator.Run(result)
	if err != nil {
		slog.Error("RSS generation error", "request_id", c.GetString(requestIDKey), "error", err)
		h.fail(c, http.StatusInternalServerError, fetchFailedMessage, err)
		return
	}

	c.Header("X-Feed-Items", strconv.Itoa(len(result.Items)))
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

// GetPosts serves the refresher snapshot, stale or not.
func (h *Handler) GetPosts(c *gin.Context) {
	snapshot := h.refresher.Snapshot()
	if !snapshot.HasResult() {
		var err error
		if snapshot != nil {
			err = snapshot.LastError
		}
		h.fail(c, http.StatusServiceUnavailable, notReadyMessage, err)
		return
	}

	c.JSON(http.StatusOK, newPostsResponse(snapshot))
}

// RefreshPosts is the manual "try again" action.
func (h *Handler) RefreshPosts(c *gin.Context) {
	snapshot, err := h.refresher.Refresh(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, fetchFailedMessage, err)
		return
	}

	c.JSON(http.StatusOK, newPostsResponse(snapshot))
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
	}

	if snapshot := h.refresher.Snapshot(); snapshot != nil {
		if snapshot.HasResult() {
			health["last_success"] = snapshot.FetchedAt.Format(time.RFC3339)
			health["items"] = len(snapshot.Result.Items)
		}
		if snapshot.LastError != nil {
			health["last_error"] = snapshot.LastError.Error()
		}
		health["stale"] = snapshot.Stale()
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) fail(c *gin.Context, status int, message string, err error) {
	response := ErrorResponse{
		Message: message,
		Error:   unknownErrorMessage,
	}

	if err != nil {
		response.Error = err.Error()

		var schemaErr *feed.SchemaValidationError
		if errors.As(err, &schemaErr) {
			response.Violations = schemaErr.Violations
		}
	}

	slog.Error("Request failed",
		"request_id", c.GetString(requestIDKey),
		"path", c.Request.URL.Path,
		"status", status,
		"kind", feed.ErrorKind(err),
		"error", response.Error)

	c.JSON(status, response)
}

func newPostsResponse(snapshot *tasks.Snapshot) PostsResponse {
	response := PostsResponse{
		Feed:      view.NewFeedView(snapshot.Result),
		FetchedAt: snapshot.FetchedAt,
		Stale:     snapshot.Stale(),
	}
	if snapshot.LastError != nil {
		response.Error = snapshot.LastError.Error()
	}
	return response
}
