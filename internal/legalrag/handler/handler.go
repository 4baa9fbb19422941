// Package handler provides HTTP handlers for the legal RAG service.
package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/legal-rag/internal/legalrag/biz"
	"github.com/kart-io/legal-rag/internal/pkg/httputils"
	"github.com/kart-io/legal-rag/pkg/component/storage"
	"github.com/kart-io/legal-rag/pkg/errors"
	"github.com/kart-io/legal-rag/pkg/validator"
)

// StatsProvider exposes the metrics snapshot served by /stats.
type StatsProvider interface {
	Stats() map[string]any
}

// HealthChecker reports backend health.
type HealthChecker interface {
	HealthCheckAll(ctx context.Context) map[string]storage.HealthStatus
}

// Handler handles legal RAG HTTP requests.
type Handler struct {
	svc    biz.Service
	stats  StatsProvider
	health HealthChecker
}

// New creates a Handler. stats and health may be nil.
func New(svc biz.Service, stats StatsProvider, health HealthChecker) *Handler {
	return &Handler{svc: svc, stats: stats, health: health}
}

// bind decodes the JSON body into req and validates its tags.
func bind(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return errors.ErrBadRequest.WithMessage("invalid request body").WithCause(err)
	}
	if verr := validator.Global().ValidateWithLang(req, httputils.Lang(c)); verr != nil {
		return verr
	}
	return nil
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Text               string   `json:"text"`
	DocumentIDs        []string `json:"document_ids" validate:"omitempty,max=100,dive,docid"`
	ExcludeDocumentIDs []string `json:"exclude_document_ids" validate:"omitempty,max=100,dive,docid"`
	ChunkTypes         []string `json:"chunk_types" validate:"omitempty,max=20,dive,chunktype"`
	Threshold          *float64 `json:"threshold" validate:"omitempty,gte=0,lte=1"`
	Limit              int      `json:"limit" validate:"gte=0,lte=100"`
	ExpansionTerms     []string `json:"expansion_terms" validate:"omitempty,max=50"`
}

// Search runs hybrid retrieval.
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if err := bind(c, &req); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	result, err := h.svc.Search(c.Request.Context(), biz.Query{
		Text:               req.Text,
		DocumentIDs:        req.DocumentIDs,
		ExcludeDocumentIDs: req.ExcludeDocumentIDs,
		ChunkTypes:         req.ChunkTypes,
		Threshold:          req.Threshold,
		Limit:              req.Limit,
		ExpansionTerms:     req.ExpansionTerms,
	})
	httputils.WriteResponse(c, err, result)
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question               string   `json:"question"`
	DocumentIDs            []string `json:"document_ids" validate:"omitempty,max=100,dive,docid"`
	MaxResults             int      `json:"max_results" validate:"gte=0,lte=50"`
	IncludeCrossReferences bool     `json:"include_cross_references"`
	Optimize               bool     `json:"optimize"`
}

// Ask answers a question with cited sources.
func (h *Handler) Ask(c *gin.Context) {
	var req AskRequest
	if err := bind(c, &req); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	answer, err := h.svc.Ask(c.Request.Context(), biz.AskRequest{
		Question:               req.Question,
		DocumentIDs:            req.DocumentIDs,
		MaxResults:             req.MaxResults,
		IncludeCrossReferences: req.IncludeCrossReferences,
		Optimize:               req.Optimize,
	})
	httputils.WriteResponse(c, err, answer)
}

// OptimizeRequest is the body of POST /optimize.
type OptimizeRequest struct {
	Query   string `json:"query"`
	Context string `json:"context" validate:"max=2000"`
	Mode    string `json:"mode"`
}

// Optimize rewrites a query.
func (h *Handler) Optimize(c *gin.Context) {
	var req OptimizeRequest
	if err := bind(c, &req); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	mode, err := biz.ParseOptimizeMode(req.Mode, "")
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	result, err := h.svc.OptimizeQuery(c.Request.Context(), req.Query, req.Context, mode)
	httputils.WriteResponse(c, err, result)
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Query string `json:"query"`
}

// Analyze scores a query and predicts retrieval performance.
func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := bind(c, &req); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	result, err := h.svc.AnalyzeQueryPerformance(c.Request.Context(), req.Query)
	httputils.WriteResponse(c, err, result)
}

// CompareRequest is the body of POST /compare.
type CompareRequest struct {
	DocumentIDs []string `json:"document_ids" validate:"max=20,dive,docid"`
	Mode        string   `json:"mode"`
}

// Compare compares documents.
func (h *Handler) Compare(c *gin.Context) {
	var req CompareRequest
	if err := bind(c, &req); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	mode, err := biz.ParseCompareMode(req.Mode)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	result, err := h.svc.CompareDocuments(c.Request.Context(), req.DocumentIDs, mode)
	httputils.WriteResponse(c, err, result)
}

// BatchRequest is the body of POST /batch. Durations use Go syntax, e.g. "30s".
type BatchRequest struct {
	Questions              []string `json:"questions"`
	MaxParallelism         int      `json:"max_parallelism"`
	ItemTimeout            string   `json:"item_timeout"`
	Deadline               string   `json:"deadline"`
	IncludeCrossReferences bool     `json:"include_cross_references"`
	DocumentIDs            []string `json:"document_ids" validate:"omitempty,max=100,dive,docid"`
}

func (r *BatchRequest) settings() (biz.BatchSettings, error) {
	s := biz.BatchSettings{
		MaxParallelism:         r.MaxParallelism,
		IncludeCrossReferences: r.IncludeCrossReferences,
		DocumentIDs:            r.DocumentIDs,
	}
	var err error
	if s.ItemTimeout, err = parseDuration("item_timeout", r.ItemTimeout); err != nil {
		return s, err
	}
	if s.Deadline, err = parseDuration("deadline", r.Deadline); err != nil {
		return s, err
	}
	return s, nil
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.ErrInvalidBatchSettings.WithMessagef("%s: invalid duration %q", field, v)
	}
	return d, nil
}

// Batch answers a list of questions concurrently.
func (h *Handler) Batch(c *gin.Context) {
	var req BatchRequest
	if err := bind(c, &req); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	settings, err := req.settings()
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	job, err := h.svc.BatchAsk(c.Request.Context(), req.Questions, settings)
	httputils.WriteResponse(c, err, job)
}

// Suggest returns query completions for ?q=.
func (h *Handler) Suggest(c *gin.Context) {
	suggestions, err := h.svc.Suggest(c.Request.Context(), c.Query("q"))
	httputils.WriteResponse(c, err, suggestions)
}

// Tool dispatches POST /tools/:kind with the raw body as tool input.
func (h *Handler) Tool(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		httputils.WriteResponse(c, errors.ErrBadRequest.WithCause(err), nil)
		return
	}
	result, err := biz.RunTool(c.Request.Context(), h.svc, c.Param("kind"), body)
	httputils.WriteResponse(c, err, result)
}

// ListTools lists the tool names accepted by Tool.
func (h *Handler) ListTools(c *gin.Context) {
	kinds := biz.ToolKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	httputils.WriteResponse(c, nil, gin.H{"tools": names})
}

// Stats returns the metrics snapshot.
func (h *Handler) Stats(c *gin.Context) {
	stats := map[string]any{}
	if h.stats != nil {
		stats = h.stats.Stats()
	}
	httputils.WriteResponse(c, nil, stats)
}

// Health reports backend health; 503 when any backend is down.
func (h *Handler) Health(c *gin.Context) {
	status := http.StatusOK
	backends := map[string]storage.HealthStatus{}
	if h.health != nil {
		backends = h.health.HealthCheckAll(c.Request.Context())
	}
	for _, b := range backends {
		if !b.Healthy {
			status = http.StatusServiceUnavailable
			break
		}
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "backends": backends})
}
