package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRequirePrincipal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantID     string
	}{
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "blank header", header: "   ", wantStatus: http.StatusUnauthorized},
		{name: "asserted principal", header: " owner-1 ", wantStatus: http.StatusOK, wantID: "owner-1"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/bookings/b-1/access", nil)
			if tc.header != "" {
				req.Header.Set(PrincipalHeader, tc.header)
			}
			rec := httptest.NewRecorder()

			RequirePrincipal(nil)(next).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if seen != tc.wantID {
				t.Fatalf("principal = %q, want %q", seen, tc.wantID)
			}
			if tc.wantStatus == http.StatusUnauthorized {
				var resp errorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode error response failed: %v", err)
				}
				if resp.Message != errMissingPrincipal.Error() {
					t.Fatalf("message = %q", resp.Message)
				}
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if LoggerFromContext(r.Context()) == nil {
			t.Errorf("expected request logger in context")
		}
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()

	RequestLogger(base)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bookings", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("log lines = %d, want 2: %s", len(lines), buf.String())
	}
	var completed map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &completed); err != nil {
		t.Fatalf("decode log line failed: %v", err)
	}
	if completed["msg"] != "request completed" || completed["status"] != float64(http.StatusTeapot) {
		t.Fatalf("unexpected completion entry %v", completed)
	}
	if completed["method"] != http.MethodPost || completed["path"] != "/bookings" {
		t.Fatalf("missing request attributes %v", completed)
	}
}

func TestTrace(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(t.Context()) })

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	rec := httptest.NewRecorder()

	Trace(provider.Tracer("test"))(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings/b-42/access", nil))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "GET /bookings/{id}/access" {
		t.Fatalf("span name = %q", spans[0].Name)
	}
	if spans[0].Status.Code.String() != "Error" {
		t.Fatalf("span status = %v, want Error", spans[0].Status.Code)
	}
}

func TestRouteName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"/bookings":                  "/bookings",
		"/bookings/b-1/complete":     "/bookings/{id}/complete",
		"/series/b-1/pause":          "/series/{id}/pause",
		"/properties/villa-1/access": "/properties/{id}/access",
		"/webhooks/inbound":          "/webhooks/inbound",
	}
	for path, want := range tests {
		if got := routeName(path); got != want {
			t.Fatalf("routeName(%q) = %q, want %q", path, got, want)
		}
	}
}
