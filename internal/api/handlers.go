package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"inquest/internal/auto"
	"inquest/internal/llm"
	"inquest/internal/models"
	"inquest/internal/pipeline"
	"inquest/internal/search"
	"inquest/internal/session"
	"inquest/internal/storage"
	"inquest/internal/stream"
)

// TurnRunner executes one question-answering turn, emitting its event
// sequence through emit.
type TurnRunner interface {
	RunTurn(ctx context.Context, sessionID, query string, emit stream.EmitFunc) (*models.QueryResult, string, error)
}

// Investigator drives bounded auto-investigation chains.
type Investigator interface {
	Run(ctx context.Context, sessionID, query string, max int, emit stream.EmitFunc) error
	Stop(sessionID string) bool
	State(sessionID string) auto.State
}

// Handler wires HTTP routes to the pipeline, the session store and the
// document corpus.
type Handler struct {
	runner     TurnRunner
	invest     Investigator
	sessions   *session.Store
	docs       *storage.DocStore
	searcher   search.Searcher
	llm        llm.Client
	maxResults int
	started    time.Time
	log        *slog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(runner TurnRunner, invest Investigator, sessions *session.Store, docs *storage.DocStore, searcher search.Searcher, llmClient llm.Client, maxResults int, log *slog.Logger) *Handler {
	if maxResults <= 0 {
		maxResults = 5
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		runner:     runner,
		invest:     invest,
		sessions:   sessions,
		docs:       docs,
		searcher:   searcher,
		llm:        llmClient,
		maxResults: maxResults,
		started:    time.Now().UTC(),
		log:        log,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/ask", h.ask)
	api.POST("/chat", h.chat)
	api.POST("/sessions", h.createSession)
	api.GET("/sessions", h.listSessions)
	api.GET("/sessions/:id", h.getSession)
	api.DELETE("/sessions/:id", h.deleteSession)
	api.GET("/sessions/:id/investigation", h.investigationState)
	api.GET("/investigate", h.investigate)
	api.POST("/investigate/stop", h.stopInvestigation)
	api.GET("/search", h.searchDocuments)
	api.POST("/documents", h.createDocument)
	api.GET("/documents", h.listDocuments)
	api.GET("/documents/:id", h.getDocument)
	api.GET("/health", h.health)
	api.GET("/stats", h.stats)
}

// sseEmitter converts pipeline events into the wire format: an event line
// naming the type, a data line carrying the JSON payload, flushed per event.
func sseEmitter(c *gin.Context, flusher http.Flusher) stream.EmitFunc {
	return func(ev stream.Event) error {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\n", ev.Type); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
}

func beginSSE(c *gin.Context) (stream.EmitFunc, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return nil, false
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	return sseEmitter(c, flusher), true
}

// GET /api/ask?q=...&session_id=... streams one turn over SSE.
func (h *Handler) ask(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	emit, ok := beginSSE(c)
	if !ok {
		return
	}
	_, sessionID, err := h.runner.RunTurn(c.Request.Context(), c.Query("session_id"), q, emit)
	if err != nil && c.Request.Context().Err() == nil {
		// Empty-query and busy rejections already emitted their error
		// event inside the turn.
		h.log.Warn("turn failed", "session", sessionID, "error", err)
	}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// POST /api/chat answers one turn without streaming.
func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	discard := func(stream.Event) error { return nil }
	result, sessionID, err := h.runner.RunTurn(c.Request.Context(), req.SessionID, req.Query, discard)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrEmptyQuery):
			c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		case errors.Is(err, session.ErrTurnInFlight):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "session is busy, please retry"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "the question could not be answered, please retry"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":        sessionID,
		"answer":            result.Answer,
		"sources":           result.Sources,
		"suggested_queries": result.SuggestedQueries,
	})
}

func (h *Handler) createSession(c *gin.Context) {
	se := h.sessions.GetOrCreate("")
	c.JSON(http.StatusCreated, se)
}

func (h *Handler) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.sessions.List()})
}

func (h *Handler) getSession(c *gin.Context) {
	se, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, se)
}

func (h *Handler) deleteSession(c *gin.Context) {
	id := c.Param("id")
	h.invest.Stop(id)
	if !h.sessions.Delete(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) investigationState(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.sessions.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, h.invest.State(id))
}

// GET /api/investigate?q=...&session_id=...&max=... streams a bounded chain
// of turns over SSE. The chain follows each turn's first suggestion until
// suggestions run out, the cap is reached, or the client stops it.
func (h *Handler) investigate(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	max := 0
	if raw := c.Query("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max"})
			return
		}
		max = n
	}
	emit, ok := beginSSE(c)
	if !ok {
		return
	}
	if err := h.invest.Run(c.Request.Context(), c.Query("session_id"), q, max, emit); err != nil && c.Request.Context().Err() == nil {
		h.log.Warn("investigation ended with error", "error", err)
	}
}

type stopRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) stopInvestigation(c *gin.Context) {
	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": h.invest.Stop(req.SessionID)})
}

func (h *Handler) searchDocuments(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	limit := h.maxResults
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	results, err := h.searcher.Search(c.Request.Context(), q, limit)
	if err != nil {
		h.log.Error("search failed", "query", q, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed, please retry"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "results": results})
}

type documentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (h *Handler) createDocument(c *gin.Context) {
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and content are required"})
		return
	}
	id, err := h.docs.Insert(c.Request.Context(), req.Title, req.Content)
	if err != nil {
		h.log.Error("insert document failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store document failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "title": req.Title})
}

func (h *Handler) listDocuments(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	docs, err := h.docs.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list documents failed"})
		return
	}
	if docs == nil {
		docs = []storage.Document{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *Handler) getDocument(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}
	doc, err := h.docs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get document failed"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) health(c *gin.Context) {
	docCount, err := h.docs.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "corpus unavailable"})
		return
	}
	hs := h.llm.Health(c.Request.Context())
	status := "ok"
	if !hs.Ready {
		// The pipeline still answers through the extractive fallback.
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"model":     hs,
		"documents": docCount,
	})
}

func (h *Handler) stats(c *gin.Context) {
	docCount, _ := h.docs.Count(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"sessions":       h.sessions.Count(),
		"documents":      docCount,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
