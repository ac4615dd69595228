package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/villaclean/bookingcore/internal/application"
	"github.com/villaclean/bookingcore/internal/signature"
)

const webhookToken = "test-auth-token"

type stubProcessor struct {
	mu       sync.Mutex
	commands []application.InboundCommand
	outcome  application.Outcome
	err      error
}

func (s *stubProcessor) Handle(_ context.Context, msg application.InboundCommand) (application.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, msg)
	return s.outcome, s.err
}

func (s *stubProcessor) calls() []application.InboundCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]application.InboundCommand(nil), s.commands...)
}

func newWebhookTest(t *testing.T, processor *stubProcessor, baseURL string) (*WebhookHandler, *signature.Verifier) {
	t.Helper()
	verifier, err := signature.NewVerifier(webhookToken)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	handler := NewWebhookHandler(WebhookConfig{
		Processor:     processor,
		Verifier:      verifier,
		PublicBaseURL: baseURL,
		Now:           func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) },
	})
	return handler, verifier
}

func signedRequest(t *testing.T, verifier *signature.Verifier, publicURL string, form url.Values) *http.Request {
	t.Helper()
	body := form.Encode()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sig, err := verifier.Sign([]byte(body), publicURL)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	req.Header.Set(signature.Header, sig)
	return req
}

func validForm() url.Values {
	return url.Values{
		"MessageSid": {"SM0123456789abcdef"},
		"From":       {"whatsapp:+15550100"},
		"Body":       {"yes K7QX"},
	}
}

func TestWebhookHandler_Inbound(t *testing.T) {
	t.Parallel()

	const base = "https://hooks.example.com"

	t.Run("valid signature reaches the processor", func(t *testing.T) {
		t.Parallel()

		processor := &stubProcessor{outcome: application.OutcomeAccepted}
		handler, verifier := newWebhookTest(t, processor, base)
		rec := httptest.NewRecorder()

		handler.Inbound(rec, signedRequest(t, verifier, base+"/webhooks/inbound", validForm()))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
			t.Fatalf("content type = %q, want text/xml", ct)
		}
		if rec.Body.String() != emptyTwiML {
			t.Fatalf("body = %q, want %q", rec.Body.String(), emptyTwiML)
		}
		calls := processor.calls()
		if len(calls) != 1 {
			t.Fatalf("processor calls = %d, want 1", len(calls))
		}
		got := calls[0]
		if got.MessageID != "SM0123456789abcdef" || got.From != "whatsapp:+15550100" || got.Body != "yes K7QX" {
			t.Fatalf("unexpected command %+v", got)
		}
		if got.ReceivedAt.IsZero() {
			t.Fatalf("expected ReceivedAt to be stamped")
		}
	})

	t.Run("signature mismatch is forbidden", func(t *testing.T) {
		t.Parallel()

		processor := &stubProcessor{}
		handler, verifier := newWebhookTest(t, processor, base)
		req := signedRequest(t, verifier, "https://elsewhere.example.com/webhooks/inbound", validForm())
		rec := httptest.NewRecorder()

		handler.Inbound(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		if len(processor.calls()) != 0 {
			t.Fatalf("processor must not run for unsigned requests")
		}
	})

	t.Run("missing signature is forbidden", func(t *testing.T) {
		t.Parallel()

		processor := &stubProcessor{}
		handler, _ := newWebhookTest(t, processor, base)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound", strings.NewReader(validForm().Encode()))
		rec := httptest.NewRecorder()

		handler.Inbound(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("tampered body is forbidden", func(t *testing.T) {
		t.Parallel()

		processor := &stubProcessor{}
		handler, verifier := newWebhookTest(t, processor, base)
		tampered := validForm()
		tampered.Set("Body", "no K7QX")
		req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound", strings.NewReader(tampered.Encode()))
		req.Header.Set(signature.Header, mustSign(t, verifier, validForm(), base+"/webhooks/inbound"))
		rec := httptest.NewRecorder()

		handler.Inbound(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("rejected signature is logged as a transport failure", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		verifier, err := signature.NewVerifier(webhookToken)
		if err != nil {
			t.Fatalf("NewVerifier failed: %v", err)
		}
		handler := NewWebhookHandler(WebhookConfig{
			Processor:     &stubProcessor{},
			Verifier:      verifier,
			PublicBaseURL: base,
			Logger:        slog.New(slog.NewJSONHandler(&buf, nil)),
		})
		req := signedRequest(t, verifier, "https://elsewhere.example.com/webhooks/inbound", validForm())
		rec := httptest.NewRecorder()

		handler.Inbound(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		var entry map[string]any
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			var candidate map[string]any
			if err := json.Unmarshal([]byte(line), &candidate); err != nil {
				t.Fatalf("decode log line failed: %v", err)
			}
			if candidate["msg"] == "webhook signature rejected" {
				entry = candidate
			}
		}
		if entry == nil {
			t.Fatalf("expected rejection log entry: %s", buf.String())
		}
		if entry["error_kind"] != "transport" {
			t.Fatalf("error_kind = %v, want transport", entry["error_kind"])
		}
		if entry["public_url"] != base+"/webhooks/inbound" {
			t.Fatalf("public_url = %v", entry["public_url"])
		}
	})

	t.Run("forwarded headers rebuild the public url", func(t *testing.T) {
		t.Parallel()

		processor := &stubProcessor{outcome: application.OutcomeDeclined}
		handler, verifier := newWebhookTest(t, processor, "")
		req := signedRequest(t, verifier, "https://public.example.com/webhooks/inbound", validForm())
		req.Host = "internal:8080"
		req.Header.Set("X-Forwarded-Proto", "https")
		req.Header.Set("X-Forwarded-Host", "public.example.com")
		rec := httptest.NewRecorder()

		handler.Inbound(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if len(processor.calls()) != 1 {
			t.Fatalf("processor calls = %d, want 1", len(processor.calls()))
		}
	})

	t.Run("invalid payload is acknowledged without processing", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			form url.Values
		}{
			{name: "missing message id", form: url.Values{"From": {"+15550100"}, "Body": {"yes"}}},
			{name: "missing sender", form: url.Values{"MessageSid": {"SM1"}, "Body": {"yes"}}},
			{name: "non alphanumeric message id", form: url.Values{"MessageSid": {"SM-1"}, "From": {"+15550100"}}},
			{name: "oversized text", form: url.Values{"MessageSid": {"SM1"}, "From": {"+15550100"}, "Body": {strings.Repeat("a", 1601)}}},
		}

		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				processor := &stubProcessor{}
				handler, verifier := newWebhookTest(t, processor, base)
				rec := httptest.NewRecorder()

				handler.Inbound(rec, signedRequest(t, verifier, base+"/webhooks/inbound", tc.form))

				if rec.Code != http.StatusOK {
					t.Fatalf("status = %d, want 200", rec.Code)
				}
				if len(processor.calls()) != 0 {
					t.Fatalf("processor must not run for invalid payloads")
				}
			})
		}
	})

	t.Run("processor failure still acknowledges", func(t *testing.T) {
		t.Parallel()

		processor := &stubProcessor{err: errors.New("database unavailable")}
		handler, verifier := newWebhookTest(t, processor, base)
		rec := httptest.NewRecorder()

		handler.Inbound(rec, signedRequest(t, verifier, base+"/webhooks/inbound", validForm()))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if rec.Body.String() != emptyTwiML {
			t.Fatalf("body = %q, want empty TwiML", rec.Body.String())
		}
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		t.Parallel()

		processor := &stubProcessor{}
		handler, _ := newWebhookTest(t, processor, base)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound", strings.NewReader(strings.Repeat("x", maxWebhookBody+1)))
		rec := httptest.NewRecorder()

		handler.Inbound(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func mustSign(t *testing.T, verifier *signature.Verifier, form url.Values, publicURL string) string {
	t.Helper()
	sig, err := verifier.Sign([]byte(form.Encode()), publicURL)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return sig
}
