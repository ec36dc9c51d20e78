package respond

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"

	appmiddleware "github.com/janisto/hive-profiles/internal/platform/middleware"
)

type testProblem struct {
	Schema string `json:"$schema,omitempty" cbor:"$schema,omitempty"`
	Title  string `json:"title,omitempty"   cbor:"title,omitempty"`
	Status int    `json:"status,omitempty"  cbor:"status,omitempty"`
	Detail string `json:"detail,omitempty"  cbor:"detail,omitempty"`
}

func varySet(h http.Header) map[string]int {
	out := map[string]int{}
	for _, v := range h.Values("Vary") {
		for part := range strings.SplitSeq(v, ",") {
			out[strings.TrimSpace(part)]++
		}
	}
	return out
}

func TestNotFoundHandlerReturnsProblemDetails(t *testing.T) {
	router := chi.NewRouter()
	router.NotFound(NotFoundHandler())

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/missing?q=<x>", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("expected application/problem+json, got %q", ct)
	}
	link := resp.Header().Get("Link")
	if !strings.Contains(link, "/schemas/ErrorModel.json") || !strings.Contains(link, "describedBy") {
		t.Fatalf("expected Link header with schema, got %q", link)
	}
	var p testProblem
	if err := json.Unmarshal(resp.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal problem: %v", err)
	}
	if p.Status != http.StatusNotFound || p.Title != "Not Found" || p.Detail != "resource not found" {
		t.Fatalf("unexpected problem: %+v", p)
	}
	if !strings.HasPrefix(p.Schema, "http://example.com/") {
		t.Fatalf("expected absolute schema URL, got %q", p.Schema)
	}
	vary := varySet(resp.Header())
	if vary["Origin"] != 1 || vary["Accept"] != 1 {
		t.Fatalf("expected Vary Origin and Accept once each, got %v", vary)
	}
}

func TestNotFoundHandlerReturnsCBORWhenAccepted(t *testing.T) {
	router := chi.NewRouter()
	router.NotFound(NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("Accept", "application/cbor")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if ct := resp.Header().Get("Content-Type"); ct != "application/problem+cbor" {
		t.Fatalf("expected application/problem+cbor, got %q", ct)
	}
	var p testProblem
	if err := cbor.Unmarshal(resp.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal CBOR: %v", err)
	}
	if p.Status != http.StatusNotFound {
		t.Fatalf("unexpected status %d", p.Status)
	}
}

func TestMethodNotAllowedHandlerListsAllowedMethods(t *testing.T) {
	router := chi.NewRouter()
	router.MethodNotAllowed(MethodNotAllowedHandler())
	router.Get("/forms/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Patch("/forms/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPut, "/forms/abc", nil))

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
	allow := resp.Header().Get("Allow")
	if !strings.Contains(allow, http.MethodGet) || !strings.Contains(allow, http.MethodPatch) {
		t.Fatalf("expected Allow to list GET and PATCH, got %q", allow)
	}
	var p testProblem
	if err := json.Unmarshal(resp.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal problem: %v", err)
	}
	if p.Title != "Method Not Allowed" || !strings.Contains(p.Detail, "PUT") {
		t.Fatalf("unexpected problem: %+v", p)
	}
}

func TestAllowedMethodsNilRouteContext(t *testing.T) {
	if methods := allowedMethods(httptest.NewRequest(http.MethodGet, "/test", nil)); methods != nil {
		t.Fatalf("expected nil without chi route context, got %v", methods)
	}
}

func TestRecovererReturnsProblemDetails(t *testing.T) {
	router := chi.NewRouter()
	router.Use(appmiddleware.RequestID(), Recoverer())
	api := humachi.New(router, huma.DefaultConfig("Test", "test"))
	huma.Get(api, "/panic", func(context.Context, *struct{}) (*struct{}, error) {
		panic(errors.New("boom"))
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var p huma.ErrorModel
	if err := json.Unmarshal(resp.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal problem: %v", err)
	}
	if p.Detail != "internal server error" {
		t.Fatalf("unexpected detail: %s", p.Detail)
	}
}

func TestRecovererRePanicsOnErrAbortHandler(t *testing.T) {
	router := chi.NewRouter()
	router.Use(Recoverer())
	router.Get("/abort", func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	})

	defer func() {
		err, ok := recover().(error)
		if !ok || !errors.Is(err, http.ErrAbortHandler) {
			t.Fatalf("expected http.ErrAbortHandler to be re-panicked, got %v", err)
		}
	}()

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
	t.Fatal("expected panic to propagate")
}

func TestRecovererSkipsWriteWhenHeaderAlreadyWritten(t *testing.T) {
	router := chi.NewRouter()
	router.Use(Recoverer())
	router.Get("/partial", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial response"))
		panic("panic after write")
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/partial", nil))

	if resp.Code != http.StatusOK || resp.Body.String() != "partial response" {
		t.Fatalf("expected original response preserved, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestResponseWriterUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}
	if rw.Unwrap() != rec {
		t.Fatal("expected Unwrap to return the underlying writer")
	}
	if _, err := rw.Write([]byte("x")); err != nil || !rw.wroteHeader {
		t.Fatalf("expected Write to mark header written, err=%v", err)
	}
}

func TestWriteRedirect(t *testing.T) {
	for _, code := range []int{http.StatusSeeOther, http.StatusFound, http.StatusTemporaryRedirect} {
		resp := httptest.NewRecorder()
		WriteRedirect(resp, httptest.NewRequest(http.MethodGet, "/", nil), "/v1/profiles/latest", code)
		if resp.Code != code || resp.Header().Get("Location") != "/v1/profiles/latest" {
			t.Fatalf("unexpected redirect %d %q", resp.Code, resp.Header().Get("Location"))
		}
	}
}

func TestSchemaURLScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Host = "api.example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	if got := schemaURL(req); got != "https://api.example.com/schemas/ErrorModel.json" {
		t.Fatalf("unexpected schema URL %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Host = "secure.example.com"
	req.TLS = &tls.ConnectionState{}
	if got := schemaURL(req); !strings.HasPrefix(got, "https://secure.example.com") {
		t.Fatalf("unexpected schema URL %q", got)
	}
}

func TestEnsureVaryMergesWithoutDuplicates(t *testing.T) {
	h := http.Header{}
	h.Set("Vary", "Accept-Encoding, accept")
	ensureVary(h, "Origin", "Accept", "Origin")

	vary := varySet(h)
	if vary["Origin"] != 1 || vary["Accept-Encoding"] != 1 {
		t.Fatalf("unexpected Vary %v", vary)
	}
	if vary["Accept"] != 0 || vary["accept"] != 1 {
		t.Fatalf("expected existing accept entry to be reused, got %v", vary)
	}
}

func TestParseAccept(t *testing.T) {
	tests := []struct {
		header string
		n      int
		q      float64
	}{
		{"text", 1, 1.0},
		{"application/json, , text/html", 2, 1.0},
		{"application/json;q=invalid", 1, 1.0},
		{"application/json;q=2.0", 1, 1.0},
		{"application/json;q=-0.5", 1, 1.0},
		{"application/json;q=0.5;q=0.9", 1, 0.9},
	}
	for _, tt := range tests {
		ranges := parseAccept(tt.header)
		if len(ranges) != tt.n {
			t.Fatalf("parseAccept(%q): expected %d ranges, got %d", tt.header, tt.n, len(ranges))
		}
		if ranges[0].q != tt.q {
			t.Fatalf("parseAccept(%q): expected q=%v, got %v", tt.header, tt.q, ranges[0].q)
		}
	}
	if r := parseAccept("text")[0]; r.typ != "text" || r.subtype != "*" {
		t.Fatalf("expected text/*, got %s/%s", r.typ, r.subtype)
	}
}

func TestSelectFormat(t *testing.T) {
	tests := []struct {
		accept string
		cbor   bool
	}{
		{"", false},
		{"*/*", false},
		{"application/*", false},
		{"application/json", false},
		{"application/cbor", true},
		{"application/cbor;q=1.0", true},
		{"application/json, application/cbor", false},
		{"application/json;q=0.9, application/cbor;q=1.0", true},
		{"text/html", false},
		{"application/problem+cbor", true},
		{"application/problem+json", false},
		{"application/*+cbor", true},
		{"application/json;q=0, application/cbor;q=0", false},
		{"*/*;q=0", false},
		{"application/cbor;q=0, application/json", false},
		{"application/json;q=0, application/cbor", true},
	}
	for _, tt := range tests {
		if got := selectFormat(tt.accept); got != tt.cbor {
			t.Errorf("selectFormat(%q) = %v, want %v", tt.accept, got, tt.cbor)
		}
	}
}
