package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/hazyhaar/shelfmark/pkg/callnum"
	"github.com/hazyhaar/shelfmark/pkg/locator"
	"github.com/hazyhaar/shelfmark/pkg/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func testService(t *testing.T) Service {
	t.Helper()
	p := callnum.NewParser()
	lib, err := locator.LoadLibrary("../locator/testdata/library.yaml", p)
	if err != nil {
		t.Fatalf("LoadLibrary: %v", err)
	}
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"), p)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Seed(context.Background(), lib); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return Service{
		Parser:  p,
		Locator: locator.New(lib, locator.WithParser(p)),
		Store:   st,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil && rec.Code != http.StatusNoContent {
		t.Fatalf("%s %s: invalid JSON %q", method, target, rec.Body.String())
	}
	return rec, out
}

func esc(code string) string { return url.PathEscape(code) }

func TestParse(t *testing.T) {
	h := NewRouter(testService(t))

	rec, out := do(t, h, "GET", "/v1/parse/"+esc("511.33 C823M"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, out)
	}
	if out["type"] != "DEWEY" || out["class_number"] != "511" {
		t.Errorf("parsed = %v", out)
	}
	if key, _ := out["comparable_key"].(string); len(key) != callnum.KeyLen {
		t.Errorf("comparable_key = %q", key)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestParse_Invalid(t *testing.T) {
	h := NewRouter(testService(t))

	tests := []struct {
		code string
		want string
	}{
		{"ES863 A1", "invalid country code"},
		{"abc", "invalid classification format"},
		{"863 9", "invalid Cutter format"},
	}
	for _, tt := range tests {
		rec, out := do(t, h, "GET", "/v1/parse/"+esc(tt.code), "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%q: status = %d, want 400", tt.code, rec.Code)
		}
		if msg, _ := out["error"].(string); !strings.Contains(msg, tt.want) {
			t.Errorf("%q: error = %q, want %q", tt.code, msg, tt.want)
		}
	}
}

func TestParseBatch(t *testing.T) {
	h := NewRouter(testService(t))

	rec, out := do(t, h, "POST", "/v1/parse/batch", `{"codes":["511.33 C823M","XX863 A1","CR863 L318P7"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, out)
	}
	results, _ := out["results"].([]any)
	if len(results) != 3 {
		t.Fatalf("results = %v", out["results"])
	}
	if out["failed"] != float64(1) {
		t.Errorf("failed = %v, want 1", out["failed"])
	}
	bad, _ := results[1].(map[string]any)
	if bad["error"] == nil || bad["parsed"] != nil {
		t.Errorf("bad item = %v", bad)
	}

	many := make([]string, MaxBatch+1)
	for i := range many {
		many[i] = "500"
	}
	body, _ := json.Marshal(map[string]any{"codes": many})
	if rec, _ := do(t, h, "POST", "/v1/parse/batch", string(body)); rec.Code != http.StatusBadRequest {
		t.Errorf("oversize batch status = %d, want 400", rec.Code)
	}
	if rec, _ := do(t, h, "POST", "/v1/parse/batch", `{"codes":[]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty batch status = %d, want 400", rec.Code)
	}
	if rec, _ := do(t, h, "POST", "/v1/parse/batch", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", rec.Code)
	}
	if rec, _ := do(t, h, "GET", "/v1/parse/batch", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET batch status = %d, want 405", rec.Code)
	}
}

func TestCompare(t *testing.T) {
	h := NewRouter(testService(t))

	rec, out := do(t, h, "GET", "/v1/compare?a="+url.QueryEscape("511.33 C823M2")+"&b="+url.QueryEscape("511.33 C823M10"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, out)
	}
	if out["result"] != float64(-1) || out["order"] != "before" {
		t.Errorf("compare = %v / %v", out["result"], out["order"])
	}

	if rec, _ := do(t, h, "GET", "/v1/compare?a=500", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing b status = %d, want 400", rec.Code)
	}
}

func TestLocate(t *testing.T) {
	h := NewRouter(testService(t))

	rec, out := do(t, h, "GET", "/v1/books/"+esc("511.33 C823M")+"/location?overflows=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, out)
	}
	loc, _ := out["location"].(map[string]any)
	if loc["location_text"] != "Module 1 - front - Unit A - Shelf 1" {
		t.Errorf("location = %v", loc)
	}
	cands, _ := out["candidates"].([]any)
	if len(cands) != 3 {
		t.Errorf("candidates = %d, want 3", len(cands))
	}

	rec, _ = do(t, h, "GET", "/v1/books/"+esc("100 A1")+"/location", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("outside range status = %d, want 404", rec.Code)
	}
	rec, _ = do(t, h, "GET", "/v1/books/"+esc("ES100 A1")+"/location", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad code status = %d, want 400", rec.Code)
	}
	rec, _ = do(t, h, "GET", "/v1/books/500/location?level=room", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad level status = %d, want 400", rec.Code)
	}
}

func TestUpdateRange(t *testing.T) {
	svc := testService(t)
	h := NewRouter(svc)

	shelves, err := svc.Store.Shelves(context.Background())
	if err != nil || len(shelves) == 0 {
		t.Fatalf("Shelves: %v", err)
	}
	id := shelves[0].ID
	target := "/v1/shelves/" + strconv.FormatInt(id, 10) + "/range"

	rec, out := do(t, h, "PUT", target, `{"range_start":"500 A000A","range_end":"500 Z999Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, out)
	}
	if out["action"] != "update_range" {
		t.Errorf("change = %v", out)
	}

	rec, out = do(t, h, "PUT", target, `{"range_start":"600 A1","range_end":"500 A1"}`)
	if msg, _ := out["error"].(string); rec.Code != http.StatusBadRequest || !strings.Contains(msg, "range start sorts after range end") {
		t.Errorf("reversed: status = %d, body %v", rec.Code, out)
	}
	if rec, _ := do(t, h, "PUT", "/v1/shelves/9999/range", `{"range_start":"500","range_end":"501"}`); rec.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d, want 404", rec.Code)
	}
	if rec, _ := do(t, h, "PUT", "/v1/rooms/1/range", `{"range_start":"500","range_end":"501"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad entity status = %d, want 400", rec.Code)
	}
	if rec, _ := do(t, h, "PUT", target, `{"range_start":"500"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing end status = %d, want 400", rec.Code)
	}

	rec, out = do(t, h, "GET", "/v1/changes?limit=5", "")
	if changes, _ := out["changes"].([]any); rec.Code != http.StatusOK || len(changes) != 1 {
		t.Errorf("changes = %v", out)
	}
}

func TestSetActiveAndStats(t *testing.T) {
	svc := testService(t)
	h := NewRouter(svc)

	shelves, _ := svc.Store.Shelves(context.Background())
	target := "/v1/shelf/" + strconv.FormatInt(shelves[0].ID, 10) + "/active"
	if rec, out := do(t, h, "PUT", target, `{"is_active":false}`); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, out)
	}
	if rec, _ := do(t, h, "PUT", target, `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing is_active status = %d, want 400", rec.Code)
	}

	rec, out := do(t, h, "GET", "/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	if out["total_shelves"] != float64(12) || out["active_shelves"] != float64(11) {
		t.Errorf("stats = %v", out)
	}
}

func TestHealth(t *testing.T) {
	h := NewRouter(testService(t))
	rec, out := do(t, h, "GET", "/v1/health", "")
	if rec.Code != http.StatusOK || out["status"] != "ok" {
		t.Errorf("health = %d %v", rec.Code, out)
	}
	if out["modules"] != float64(2) || out["store"] != true {
		t.Errorf("health = %v", out)
	}
}

func TestRouter_ParserOnly(t *testing.T) {
	h := NewRouter(Service{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	if rec, _ := do(t, h, "GET", "/v1/parse/500", ""); rec.Code != http.StatusOK {
		t.Errorf("parse status = %d", rec.Code)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/stats", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("stats without store = %d, want 404", rec.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := NewRouter(testService(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/v1/parse/500", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	msg, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	resp := srv.HandleMessage(context.Background(), msg)
	r, ok := resp.(mcp.JSONRPCResponse)
	if !ok {
		t.Fatalf("%s: response %T %+v", name, resp, resp)
	}
	res, ok := r.Result.(*mcp.CallToolResult)
	if !ok {
		t.Fatalf("%s: result %T", name, r.Result)
	}
	return res
}

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content %T", res.Content[0])
	}
	return tc.Text
}

func TestMCPTools(t *testing.T) {
	srv := server.NewMCPServer("shelfmark-test", "0.0.0", server.WithToolCapabilities(false))
	RegisterMCPTools(srv, testService(t))

	res := callTool(t, srv, "parse_code", map[string]any{"code": "CR863 L318P7"})
	if res.IsError {
		t.Fatalf("parse_code error: %s", toolText(t, res))
	}
	var parsed callnum.ParsedCode
	if err := json.Unmarshal([]byte(toolText(t, res)), &parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if parsed.Type != callnum.LatinAmerican || parsed.Country != "CR" {
		t.Errorf("parsed = %+v", parsed)
	}

	res = callTool(t, srv, "compare_codes", map[string]any{"a": "863 L318P7", "b": "AR863 L318P7"})
	if res.IsError || !strings.Contains(toolText(t, res), `"order":"before"`) {
		t.Errorf("compare_codes = %s", toolText(t, res))
	}

	res = callTool(t, srv, "locate_book", map[string]any{"code": "530 T595FI", "level": "unit"})
	if res.IsError || !strings.Contains(toolText(t, res), `"unit":"C"`) {
		t.Errorf("locate_book = %s", toolText(t, res))
	}

	res = callTool(t, srv, "parse_code", map[string]any{"code": "ES863 A1"})
	if !res.IsError || !strings.Contains(toolText(t, res), "invalid country code") {
		t.Errorf("invalid parse_code = %v %s", res.IsError, toolText(t, res))
	}

	res = callTool(t, srv, "parse_code", map[string]any{})
	if !res.IsError || !strings.Contains(toolText(t, res), "code is required") {
		t.Errorf("missing code = %s", toolText(t, res))
	}
}
