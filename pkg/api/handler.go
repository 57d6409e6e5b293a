package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/hazyhaar/shelfmark/pkg/callnum"
	"github.com/hazyhaar/shelfmark/pkg/kit"
	"github.com/hazyhaar/shelfmark/pkg/locator"
	"github.com/hazyhaar/shelfmark/pkg/store"
)

// NewRouter returns an http.Handler with all shelfmark API routes.
func NewRouter(svc Service) http.Handler {
	mux := http.NewServeMux()
	p := svc.parser()
	h := &handler{
		svc:        svc,
		parse:      svc.wrap("parse", parseEndpoint(p)),
		parseBatch: svc.wrap("parse_batch", parseBatchEndpoint(p)),
		compare:    svc.wrap("compare", compareEndpoint(p)),
	}

	mux.HandleFunc("GET /v1/parse/batch", methodNotAllowed) // prevent GET on batch
	mux.HandleFunc("POST /v1/parse/batch", h.handleParseBatch)
	mux.HandleFunc("GET /v1/parse/{code}", h.handleParse)
	mux.HandleFunc("GET /v1/compare", h.handleCompare)
	mux.HandleFunc("GET /v1/health", h.handleHealth)

	if svc.Store != nil || svc.Locator != nil {
		h.locate = svc.wrap("locate", locateEndpoint(p, svc.Locator, svc.Store))
		mux.HandleFunc("GET /v1/books/{code}/location", h.handleLocate)
	}
	if svc.Store != nil {
		h.updateRange = svc.wrap("update_range", updateRangeEndpoint(svc.Store))
		h.setActive = svc.wrap("set_active", setActiveEndpoint(svc.Store))
		h.stats = svc.wrap("stats", statsEndpoint(svc.Store))
		h.changes = svc.wrap("changes", changesEndpoint(svc.Store))
		mux.HandleFunc("PUT /v1/{entity}/{id}/range", h.handleUpdateRange)
		mux.HandleFunc("PUT /v1/{entity}/{id}/active", h.handleSetActive)
		mux.HandleFunc("GET /v1/stats", h.handleStats)
		mux.HandleFunc("GET /v1/changes", h.handleChanges)
	}

	return cors(mux)
}

type handler struct {
	svc         Service
	parse       kit.Endpoint
	parseBatch  kit.Endpoint
	compare     kit.Endpoint
	locate      kit.Endpoint
	updateRange kit.Endpoint
	setActive   kit.Endpoint
	stats       kit.Endpoint
	changes     kit.Endpoint
}

// serve runs ep with a request ID taken from X-Request-ID (or generated)
// and writes the JSON response or mapped error.
func (h *handler) serve(w http.ResponseWriter, r *http.Request, ep kit.Endpoint, req any) {
	id := r.Header.Get("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", id)
	ctx := kit.WithTransport(kit.WithRequestID(r.Context(), id), "http")

	resp, err := ep(ctx, req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps endpoint errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case callnum.IsValidation(err), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// --- parse ---

func (h *handler) handleParse(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}
	h.serve(w, r, h.parse, &parseReq{Code: code})
}

type httpBatchRequest struct {
	Codes []string `json:"codes"`
}

func (h *handler) handleParseBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024) // 64 KiB max
	var req httpBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.serve(w, r, h.parseBatch, &parseBatchReq{Codes: req.Codes})
}

// --- compare ---

func (h *handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b := q.Get("a"), q.Get("b")
	if a == "" || b == "" {
		writeError(w, http.StatusBadRequest, "query parameters a and b are required")
		return
	}
	h.serve(w, r, h.compare, &compareReq{A: a, B: b})
}

// --- locate ---

func (h *handler) handleLocate(w http.ResponseWriter, r *http.Request) {
	level, err := locator.ParseLevel(r.URL.Query().Get("level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	overflows, _ := strconv.ParseBool(r.URL.Query().Get("overflows"))
	h.serve(w, r, h.locate, &locateReq{
		Code:             r.PathValue("code"),
		Level:            level,
		IncludeOverflows: overflows,
	})
}

// --- structure updates ---

type httpRangeRequest struct {
	RangeStart string `json:"range_start"`
	RangeEnd   string `json:"range_end"`
}

func (h *handler) handleUpdateRange(w http.ResponseWriter, r *http.Request) {
	entity, id, err := entityPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 4*1024)
	var req httpRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.serve(w, r, h.updateRange, &updateRangeReq{Entity: entity, ID: id, Start: req.RangeStart, End: req.RangeEnd})
}

type httpActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

func (h *handler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	entity, id, err := entityPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 4*1024)
	var req httpActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsActive == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"is_active\": true|false}")
		return
	}
	h.serve(w, r, h.setActive, &setActiveReq{Entity: entity, ID: id, Active: *req.IsActive})
}

func entityPath(r *http.Request) (store.Entity, int64, error) {
	entity, err := store.ParseEntity(r.PathValue("entity"))
	if err != nil {
		return "", 0, err
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return entity, id, nil
}

// --- stats / changes ---

func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.stats, nil)
}

func (h *handler) handleChanges(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	h.serve(w, r, h.changes, &changesReq{Limit: limit})
}

// --- health ---

type healthResponse struct {
	Status    string   `json:"status"`
	Countries []string `json:"countries"`
	Store     bool     `json:"store"`
	Modules   int      `json:"modules"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Countries: h.svc.parser().Countries(),
		Store:     h.svc.Store != nil,
	}
	if h.svc.Locator != nil {
		resp.Modules = len(h.svc.Locator.Library().Modules)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
