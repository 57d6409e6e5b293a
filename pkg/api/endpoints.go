package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/shelfmark/pkg/callnum"
	"github.com/hazyhaar/shelfmark/pkg/kit"
	"github.com/hazyhaar/shelfmark/pkg/locator"
	"github.com/hazyhaar/shelfmark/pkg/store"
)

// MaxBatch caps the number of codes in one batch parse.
const MaxBatch = 100

// ErrBadRequest marks malformed requests that are not call-number failures.
var ErrBadRequest = errors.New("bad request")

// Service holds what the endpoints need. Locator and Store are optional;
// routes and tools that need a missing one are not registered.
type Service struct {
	Parser  *callnum.Parser
	Locator *locator.Locator
	Store   *store.Store
	Logger  *slog.Logger
}

func (s Service) parser() *callnum.Parser {
	if s.Parser == nil {
		return callnum.NewParser()
	}
	return s.Parser
}

func (s Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// wrap applies the standard middleware stack to an endpoint.
func (s Service) wrap(name string, ep kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.RequestID(), kit.RequestLogger(s.logger(), name))(ep)
}

// Shared request/response types used by both HTTP and MCP transports.

type parseReq struct {
	Code string
}

type parseBatchReq struct {
	Codes []string
}

type batchItem struct {
	Code   string              `json:"code"`
	Parsed *callnum.ParsedCode `json:"parsed,omitempty"`
	Error  string              `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchItem `json:"results"`
	Failed  int         `json:"failed"`
}

type locateReq struct {
	Code             string
	Level            locator.Level
	IncludeOverflows bool
}

type locateResponse struct {
	Code          string              `json:"code"`
	ComparableKey string              `json:"comparable_key"`
	Location      *store.BookLocation `json:"location,omitempty"`
	Candidates    []locator.Location  `json:"candidates,omitempty"`
}

type compareReq struct {
	A, B string
}

type compareResponse struct {
	A      callnum.ParsedCode `json:"a"`
	B      callnum.ParsedCode `json:"b"`
	Result int                `json:"result"`
	Order  string             `json:"order"`
}

type updateRangeReq struct {
	Entity     store.Entity
	ID         int64
	Start, End string
}

type setActiveReq struct {
	Entity store.Entity
	ID     int64
	Active bool
}

type changesReq struct {
	Limit int
}

type changesResponse struct {
	Changes []store.Change `json:"changes"`
}

func parseEndpoint(p *callnum.Parser) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*parseReq)
		return p.Parse(req.Code)
	}
}

func parseBatchEndpoint(p *callnum.Parser) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*parseBatchReq)
		if len(req.Codes) == 0 {
			return nil, fmt.Errorf("%w: codes array is empty", ErrBadRequest)
		}
		if len(req.Codes) > MaxBatch {
			return nil, fmt.Errorf("%w: too many codes (max %d, got %d)", ErrBadRequest, MaxBatch, len(req.Codes))
		}
		resp := batchResponse{Results: make([]batchItem, len(req.Codes))}
		for i, code := range req.Codes {
			item := batchItem{Code: code}
			parsed, err := p.Parse(code)
			if err != nil {
				item.Error = err.Error()
				resp.Failed++
			} else {
				item.Parsed = &parsed
			}
			resp.Results[i] = item
		}
		return resp, nil
	}
}

// locateEndpoint looks the code up in the store (authoritative shelf) and,
// when a locator is configured, adds the tree candidates with confidence.
func locateEndpoint(p *callnum.Parser, loc *locator.Locator, st *store.Store) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*locateReq)
		parsed, err := p.Parse(req.Code)
		if err != nil {
			return nil, err
		}
		resp := locateResponse{Code: req.Code, ComparableKey: parsed.ComparableKey}

		if st != nil {
			bl, err := st.LocateKey(ctx, parsed.ComparableKey)
			switch {
			case err == nil:
				resp.Location = &bl
			case !errors.Is(err, store.ErrNotFound):
				return nil, err
			}
		}
		if loc != nil {
			resp.Candidates, err = loc.FindAll(req.Code, locator.FindOptions{
				Level:            req.Level,
				IncludeOverflows: req.IncludeOverflows,
			})
			if err != nil {
				return nil, err
			}
		}
		if resp.Location == nil && len(resp.Candidates) == 0 {
			return nil, fmt.Errorf("book %q is outside every shelf range: %w", req.Code, store.ErrNotFound)
		}
		return resp, nil
	}
}

func compareEndpoint(p *callnum.Parser) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*compareReq)
		a, err := p.Parse(req.A)
		if err != nil {
			return nil, err
		}
		b, err := p.Parse(req.B)
		if err != nil {
			return nil, err
		}
		c := callnum.Compare(a, b)
		order := "same"
		switch {
		case c < 0:
			order = "before"
		case c > 0:
			order = "after"
		}
		return compareResponse{A: a, B: b, Result: c, Order: order}, nil
	}
}

func updateRangeEndpoint(st *store.Store) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*updateRangeReq)
		if req.Start == "" || req.End == "" {
			return nil, fmt.Errorf("%w: range_start and range_end are required", ErrBadRequest)
		}
		return st.UpdateRange(ctx, req.Entity, req.ID, req.Start, req.End)
	}
}

func setActiveEndpoint(st *store.Store) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*setActiveReq)
		if err := st.SetActive(ctx, req.Entity, req.ID, req.Active); err != nil {
			return nil, err
		}
		return map[string]any{"entity": req.Entity, "id": req.ID, "is_active": req.Active}, nil
	}
}

func statsEndpoint(st *store.Store) kit.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		return st.Stats(ctx)
	}
}

func changesEndpoint(st *store.Store) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*changesReq)
		changes, err := st.Changes(ctx, req.Limit)
		if err != nil {
			return nil, err
		}
		return changesResponse{Changes: changes}, nil
	}
}
