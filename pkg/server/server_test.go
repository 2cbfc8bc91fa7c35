package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func testServer() *Server {
	return New(Config{Logger: log.NewWithOptions(io.Discard, log.Options{})})
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doRequest(t, testServer(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want %q", body["status"], "ok")
	}
}

func TestVersion(t *testing.T) {
	rec := doRequest(t, testServer(), http.MethodGet, "/v1/version", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["version"]; !ok {
		t.Error("version field missing")
	}
}

func TestResolve(t *testing.T) {
	request := `{
		"fields": {
			"from_node_id": {"kind": "integer"},
			"to_node_id": {"kind": "integer"}
		},
		"features": [
			{"id": 1, "from": {"x": 0, "y": 0}, "to": {"x": 10, "y": 0}, "attrs": {"from_node_id": 10}},
			{"id": 2, "from": {"x": 10, "y": 0}, "to": {"x": 20, "y": 0}}
		],
		"options": {"resolve": true}
	}`

	rec := doRequest(t, testServer(), http.MethodPost, "/v1/resolve", request)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Endpoints map[string]struct {
			From any `json:"from"`
			To   any `json:"to"`
		} `json:"endpoints"`
		NodeCount   int    `json:"node_count"`
		ContentHash string `json:"content_hash"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.NodeCount != 3 {
		t.Errorf("node_count = %d, want 3", resp.NodeCount)
	}
	if resp.ContentHash == "" {
		t.Error("content_hash empty")
	}
	if len(resp.Endpoints) != 2 {
		t.Fatalf("got %d endpoint entries, want 2", len(resp.Endpoints))
	}
	if got := resp.Endpoints["1"].From; got != float64(10) {
		t.Errorf("feature 1 from = %v, want 10", got)
	}
	// Feature 1 ends where feature 2 starts; they must share a node.
	if resp.Endpoints["1"].To != resp.Endpoints["2"].From {
		t.Errorf("shared endpoint disagrees: %v vs %v", resp.Endpoints["1"].To, resp.Endpoints["2"].From)
	}
	for id, ep := range resp.Endpoints {
		if ep.From == nil || ep.To == nil {
			t.Errorf("feature %s has null endpoint: %+v", id, ep)
		}
	}
}

func TestResolveRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"unknown top-level field", `{"bogus": true}`},
		{"unknown field kind", `{"fields": {"f": {"kind": "decimal"}}, "features": []}`},
		{"value outside domain", `{
			"fields": {"from_node_id": {"kind": "integer"}, "to_node_id": {"kind": "integer"}},
			"features": [{"id": 1, "attrs": {"from_node_id": 1.5}}]
		}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, testServer(), http.MethodPost, "/v1/resolve", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body: %s", rec.Code, rec.Body.String())
			}
			var resp struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error.Code == "" || resp.Error.Message == "" {
				t.Errorf("error body incomplete: %s", rec.Body.String())
			}
		})
	}
}

func TestResolveNeverWritesBack(t *testing.T) {
	// Even when the caller asks for write, the API serves a read-only run.
	request := `{
		"fields": {"from_node_id": {"kind": "integer"}, "to_node_id": {"kind": "integer"}},
		"features": [{"id": 1, "from": {"x": 0, "y": 0}, "to": {"x": 1, "y": 0}}],
		"options": {"resolve": true, "write": true}
	}`

	rec := doRequest(t, testServer(), http.MethodPost, "/v1/resolve", request)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
}
