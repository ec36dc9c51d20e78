// Package respond renders RFC 9457 problem details for responses produced
// outside huma operations (router 404/405, panics) and installs the huma
// error hook that logs failed operations.
package respond

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/janisto/hive-profiles/internal/platform/logging"
)

const (
	schemaPath = "/schemas/ErrorModel.json"

	msgNotFound         = "resource not found"
	msgInternalServer   = "internal server error"
	contentTypeJSON     = "application/problem+json"
	contentTypeCBOR     = "application/problem+cbor"
	defaultProblemTitle = "Error"
)

// problem mirrors huma.ErrorModel with the $schema link huma adds to its own bodies.
type problem struct {
	Schema string              `json:"$schema,omitempty" cbor:"$schema,omitempty"`
	Title  string              `json:"title,omitempty"   cbor:"title,omitempty"`
	Status int                 `json:"status,omitempty"  cbor:"status,omitempty"`
	Detail string              `json:"detail,omitempty"  cbor:"detail,omitempty"`
	Errors []*huma.ErrorDetail `json:"errors,omitempty"  cbor:"errors,omitempty"`
}

var installOnce sync.Once

// Install wraps huma.NewErrorWithContext so every operation error is logged
// through the request logger: 5xx at ERROR, 4xx at WARN.
func Install() {
	installOnce.Do(func() {
		base := huma.NewErrorWithContext
		huma.NewErrorWithContext = func(hctx huma.Context, status int, msg string, errs ...error) huma.StatusError {
			ctx := context.Background()
			if hctx != nil {
				ctx = hctx.Context()
			}
			logStatus(ctx, status, msg, errs)
			return base(hctx, status, msg, errs...)
		}
	})
}

func logStatus(ctx context.Context, status int, msg string, errs []error) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	fields := []zap.Field{zap.Int("status", status)}
	var details []string
	var cause error
	for _, err := range errs {
		if err == nil {
			continue
		}
		var d huma.ErrorDetailer
		if errors.As(err, &d) {
			details = append(details, d.ErrorDetail().Location)
			continue
		}
		cause = errors.Join(cause, err)
	}
	if len(details) > 0 {
		fields = append(fields, zap.Strings("locations", details))
	}
	switch {
	case status >= http.StatusInternalServerError:
		logging.LogError(ctx, msg, cause, fields...)
	case status >= http.StatusBadRequest:
		if cause != nil {
			fields = append(fields, zap.Error(cause))
		}
		logging.LogWarn(ctx, msg, fields...)
	}
}

// NotFoundHandler renders a 404 problem for unmatched routes.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, msgNotFound)
	}
}

// MethodNotAllowedHandler renders a 405 problem with an Allow header built
// from chi's routing tree.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allow := allowedMethods(r); len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
		}
		writeProblem(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
	}
}

// Recoverer turns panics into 500 problems. http.ErrAbortHandler is re-panicked
// so net/http can abort the connection, and nothing is written when the
// handler already sent headers.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				logging.LogError(r.Context(), "panic recovered", fmt.Errorf("%v", rec),
					zap.ByteString("stack", debug.Stack()))
				if rw.wroteHeader {
					return
				}
				writeProblem(rw, r, http.StatusInternalServerError, msgInternalServer)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

// WriteRedirect sets Location and writes an empty redirect response.
func WriteRedirect(w http.ResponseWriter, _ *http.Request, location string, status int) {
	w.Header().Set("Location", location)
	w.WriteHeader(status)
}

type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	title := http.StatusText(status)
	if title == "" {
		title = defaultProblemTitle
	}
	schema := schemaURL(r)
	body := problem{Schema: schema, Title: title, Status: status, Detail: detail}

	h := w.Header()
	h.Set("Link", "<"+schema+`>; rel="describedBy"`)
	ensureVary(h, "Origin", "Accept")

	var (
		payload []byte
		err     error
	)
	if selectFormat(r.Header.Get("Accept")) {
		h.Set("Content-Type", contentTypeCBOR)
		payload, err = cbor.Marshal(body)
	} else {
		h.Set("Content-Type", contentTypeJSON)
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		err = enc.Encode(body)
		payload = buf.Bytes()
	}
	if err != nil {
		logging.LogError(r.Context(), "failed to encode problem", err)
		w.WriteHeader(status)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		logging.LogWarn(r.Context(), "failed to write problem", zap.Error(err))
	}
}

func schemaURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	if r.Host == "" {
		return schemaPath
	}
	return scheme + "://" + r.Host + schemaPath
}

// ensureVary adds each value to Vary unless some existing entry already lists it.
func ensureVary(h http.Header, values ...string) {
	present := make(map[string]struct{})
	for _, v := range h.Values("Vary") {
		for part := range strings.SplitSeq(v, ",") {
			present[strings.ToLower(strings.TrimSpace(part))] = struct{}{}
		}
	}
	for _, v := range values {
		key := strings.ToLower(v)
		if _, ok := present[key]; ok {
			continue
		}
		present[key] = struct{}{}
		h.Add("Vary", v)
	}
}

type mediaRange struct {
	typ     string
	subtype string
	q       float64
}

func parseAccept(header string) []mediaRange {
	var out []mediaRange
	for part := range strings.SplitSeq(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		params := strings.Split(part, ";")
		mt := strings.ToLower(strings.TrimSpace(params[0]))
		typ, subtype, ok := strings.Cut(mt, "/")
		if !ok {
			subtype = "*"
		}
		mr := mediaRange{typ: typ, subtype: subtype, q: 1.0}
		for _, p := range params[1:] {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(k), "q") {
				continue
			}
			q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || q < 0 || q > 1 {
				continue
			}
			mr.q = q
		}
		out = append(out, mr)
	}
	return out
}

// formatQuality is the best q any range in ranges gives the structured syntax suffix.
func formatQuality(ranges []mediaRange, suffix string) float64 {
	best := -1.0
	for _, mr := range ranges {
		var match bool
		switch {
		case mr.typ == "*" && mr.subtype == "*":
			match = true
		case mr.typ != "application":
			match = false
		case mr.subtype == "*", mr.subtype == suffix, mr.subtype == "problem+"+suffix, mr.subtype == "*+"+suffix:
			match = true
		}
		if match && mr.q > best {
			best = mr.q
		}
	}
	return best
}

// selectFormat reports whether CBOR should be returned. JSON wins ties.
func selectFormat(accept string) bool {
	ranges := parseAccept(accept)
	if len(ranges) == 0 {
		return false
	}
	cq := formatQuality(ranges, "cbor")
	jq := formatQuality(ranges, "json")
	return cq > 0 && cq > jq
}

func allowedMethods(r *http.Request) []string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return nil
	}
	routePath := rctx.RoutePath
	if routePath == "" {
		routePath = r.URL.RawPath
		if routePath == "" {
			routePath = r.URL.Path
		}
		if routePath == "" {
			routePath = "/"
		}
	}
	var allowed []string
	for _, method := range []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	} {
		if rctx.Routes.Match(chi.NewRouteContext(), method, routePath) {
			allowed = append(allowed, method)
		}
	}
	return allowed
}
