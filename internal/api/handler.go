package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eugenenazirov/flowpack/internal/cache"
	"github.com/eugenenazirov/flowpack/internal/flow"
	"github.com/eugenenazirov/flowpack/internal/measure"
	"github.com/eugenenazirov/flowpack/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const (
	defaultMaxItems         = 10_000
	defaultBatchConcurrency = 4
	maxBatchLayouts         = 100
)

// StatsProvider exposes cache counters to the stats endpoint.
type StatsProvider interface {
	Stats() cache.Stats
}

// Handler wires packer and storage dependencies into HTTP handlers.
type Handler struct {
	packer  flow.Packer
	storage storage.Storage
	stats   StatsProvider

	maxItems         int
	batchConcurrency int

	clock func() time.Time

	mu                sync.RWMutex
	settingsUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithMaxItems caps the number of items accepted by a single request.
func WithMaxItems(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxItems = n
		}
	}
}

// WithBatchConcurrency limits how many layouts of a batch are packed at once.
func WithBatchConcurrency(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.batchConcurrency = n
		}
	}
}

// WithStats enables the cache stats endpoint.
func WithStats(stats StatsProvider) HandlerOption {
	return func(h *Handler) {
		h.stats = stats
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(packer flow.Packer, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		packer:           packer,
		storage:          store,
		maxItems:         defaultMaxItems,
		batchConcurrency: defaultBatchConcurrency,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.settingsUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	_ = r
	settings, err := h.storage.GetSettings()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := settingsResponse{
		Settings:  settings,
		UpdatedAt: h.currentSettingsUpdatedAt(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.storage.GetSettings()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	// Fields absent from the payload keep their current values.
	req := current
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.storage.SetSettings(req); err != nil {
		if errors.Is(err, storage.ErrInvalidSettings) {
			writeError(w, http.StatusBadRequest, "Invalid settings", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	h.markSettingsUpdated()

	settings, err := h.storage.GetSettings()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := settingsResponse{
		Settings:  settings,
		UpdatedAt: h.currentSettingsUpdatedAt(),
		Message:   "Settings updated successfully",
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLayout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if len(req.Sizes) > h.maxItems {
		writeTooManyItems(w, len(req.Sizes), h.maxItems)
		return
	}

	settings, err := h.storage.GetSettings()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	maxWidth, spacing := req.resolve(settings)

	start := time.Now()
	result := h.packer.Pack(maxWidth, spacing, req.Sizes)
	elapsed := time.Since(start)

	if !result.Finite() {
		writeNonFinite(w, overflowDetails)
		return
	}

	writeJSON(w, http.StatusOK, newLayoutResponse(result, elapsed))
}

func (h *Handler) handleLayoutBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if len(req.Layouts) > maxBatchLayouts {
		writeError(w, http.StatusBadRequest, "Too many layouts",
			fmt.Sprintf("a batch may hold at most %d layouts, got %d", maxBatchLayouts, len(req.Layouts)))
		return
	}

	total := 0
	for _, layout := range req.Layouts {
		total += len(layout.Sizes)
	}
	if total > h.maxItems {
		writeTooManyItems(w, total, h.maxItems)
		return
	}

	settings, err := h.storage.GetSettings()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	start := time.Now()
	results, err := h.packBatch(r.Context(), settings, req.Layouts)
	elapsed := time.Since(start)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Request cancelled", err.Error())
		return
	}

	resp := batchResponse{
		Results:               make([]layoutResponse, len(results)),
		CalculationTimeMicros: elapsed.Microseconds(),
	}
	for i, res := range results {
		if !res.Finite() {
			writeNonFinite(w, fmt.Sprintf("layout %d: %s", i, overflowDetails))
			return
		}
		resp.Results[i] = newLayoutResponse(res, 0)
	}
	writeJSON(w, http.StatusOK, resp)
}

// packBatch packs every layout concurrently, preserving input order.
func (h *Handler) packBatch(ctx context.Context, settings storage.Settings, layouts []layoutRequest) ([]flow.Result, error) {
	results := make([]flow.Result, len(layouts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.batchConcurrency)
	for i, layout := range layouts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			maxWidth, spacing := layout.resolve(settings)
			results[i] = h.packer.Pack(maxWidth, spacing, layout.Sizes)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pack batch: %w", err)
	}
	return results, nil
}

func (h *Handler) handleLayoutTags(w http.ResponseWriter, r *http.Request) {
	var req tagsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tags := measure.NormalizeTags(req.Tags)
	if len(tags) > h.maxItems {
		writeTooManyItems(w, len(tags), h.maxItems)
		return
	}

	settings, err := h.storage.GetSettings()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	sizes := measure.MeasureAll(measure.NewChipMeasurer(settings.Chip, req.Deletable), tags)
	maxWidth, spacing := layoutRequest{MaxWidth: req.MaxWidth, Spacing: req.Spacing}.resolve(settings)

	start := time.Now()
	result := h.packer.Pack(maxWidth, spacing, sizes)
	elapsed := time.Since(start)

	if !result.Finite() {
		writeNonFinite(w, overflowDetails)
		return
	}

	chips := make([]tagPlacement, len(tags))
	for i, tag := range tags {
		chips[i] = tagPlacement{Label: tag, Placement: result.Placements[i]}
	}

	resp := tagsResponse{
		Tags:                  chips,
		Width:                 result.Width,
		Height:                result.Height,
		Rows:                  result.Rows,
		CalculationTimeMicros: elapsed.Microseconds(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	_ = r
	if h.stats == nil {
		writeJSON(w, http.StatusOK, cache.Stats{})
		return
	}
	writeJSON(w, http.StatusOK, h.stats.Stats())
}

func (h *Handler) currentSettingsUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.settingsUpdatedAt
}

func (h *Handler) markSettingsUpdated() {
	h.mu.Lock()
	h.settingsUpdatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// layoutRequest describes one container. Nil MaxWidth or Spacing fall back
// to the stored settings.
type layoutRequest struct {
	MaxWidth *float64    `json:"maxWidth,omitempty"`
	Spacing  *float64    `json:"spacing,omitempty"`
	Sizes    []flow.Size `json:"sizes"`
}

func (l layoutRequest) resolve(settings storage.Settings) (maxWidth, spacing float64) {
	maxWidth, spacing = settings.MaxWidth, settings.Spacing
	if l.MaxWidth != nil {
		maxWidth = *l.MaxWidth
	}
	if l.Spacing != nil {
		spacing = *l.Spacing
	}
	return maxWidth, spacing
}

type batchRequest struct {
	Layouts []layoutRequest `json:"layouts"`
}

type tagsRequest struct {
	MaxWidth  *float64 `json:"maxWidth,omitempty"`
	Spacing   *float64 `json:"spacing,omitempty"`
	Tags      []string `json:"tags"`
	Deletable bool     `json:"deletable"`
}

type layoutResponse struct {
	Placements            []flow.Placement `json:"placements"`
	Width                 float64          `json:"width"`
	Height                float64          `json:"height"`
	Rows                  int              `json:"rows"`
	CalculationTimeMicros int64            `json:"calculationTimeMicros,omitempty"`
}

func newLayoutResponse(result flow.Result, elapsed time.Duration) layoutResponse {
	placements := result.Placements
	if placements == nil {
		placements = []flow.Placement{}
	}
	return layoutResponse{
		Placements:            placements,
		Width:                 result.Width,
		Height:                result.Height,
		Rows:                  result.Rows,
		CalculationTimeMicros: elapsed.Microseconds(),
	}
}

type batchResponse struct {
	Results               []layoutResponse `json:"results"`
	CalculationTimeMicros int64            `json:"calculationTimeMicros"`
}

type tagPlacement struct {
	Label string `json:"label"`
	flow.Placement
}

type tagsResponse struct {
	Tags                  []tagPlacement `json:"tags"`
	Width                 float64        `json:"width"`
	Height                float64        `json:"height"`
	Rows                  int            `json:"rows"`
	CalculationTimeMicros int64          `json:"calculationTimeMicros"`
}

type settingsResponse struct {
	storage.Settings
	UpdatedAt time.Time `json:"updatedAt"`
	Message   string    `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// decodeJSON reads the request body into v. On failure it writes the error
// response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request too large",
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return false
	}
	writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
	return false
}

// writeJSON encodes payload before touching the response so that an encoding
// failure can still be reported with a proper status.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		status = http.StatusInternalServerError
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(errorResponse{
			Error:   "Internal error",
			Details: "unable to encode response",
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeTooManyItems(w http.ResponseWriter, got, limit int) {
	writeError(w, http.StatusBadRequest, "Too many items",
		fmt.Sprintf("request holds %d items, the limit is %d", got, limit),
		"Split the layout into several requests")
}

const overflowDetails = "the bounding size overflows float64"

func writeNonFinite(w http.ResponseWriter, details string) {
	writeError(w, http.StatusUnprocessableEntity, "Layout not representable", details,
		"Reduce item sizes or set a finite maxWidth")
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
