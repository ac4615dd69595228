package signature

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifierRoundTrip(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier("secret-token")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	body := []byte("MessageSid=SM1&From=whatsapp%3A%2B15550100&Body=YES")
	const target = "https://hooks.example.com/webhooks/inbound"
	sig, err := v.Sign(body, target)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	reordered := []byte("Body=YES&From=whatsapp%3A%2B15550100&MessageSid=SM1")
	cases := []struct {
		name   string
		body   []byte
		header string
		url    string
		want   bool
	}{
		{name: "valid", body: body, header: sig, url: target, want: true},
		{name: "parameter order does not matter", body: reordered, header: sig, url: target, want: true},
		{name: "tampered body", body: []byte("MessageSid=SM1&From=whatsapp%3A%2B15550100&Body=NO"), header: sig, url: target, want: false},
		{name: "different url", body: body, header: sig, url: "http://hooks.example.com/webhooks/inbound", want: false},
		{name: "missing header", body: body, header: "", url: target, want: false},
		{name: "garbage header", body: body, header: "AAAA", url: target, want: false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := v.Verify(tc.body, tc.header, tc.url); got != tc.want {
				t.Fatalf("Verify = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVerifierAcceptsTwilioReferenceSignature(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier("12345")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	const target = "https://mycompany.com/myapp.php?foo=1&bar=2"
	const want = "0/KCTR6DLpKmkAf8muzZqo1nDgQ="
	body := []byte("CallSid=CA1234567890ABCDE&Caller=%2B12349013030&Digits=1234&From=%2B12349013030&To=%2B18005551212")

	if !v.Verify(body, want, target) {
		t.Fatalf("expected reference signature to verify")
	}
	sig, err := v.Sign(body, target)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig != want {
		t.Fatalf("Sign = %q, want %q", sig, want)
	}
}

func TestNewVerifierRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := NewVerifier("  "); err != ErrNoToken {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestReconstructURL(t *testing.T) {
	t.Parallel()

	plain := httptest.NewRequest(http.MethodPost, "http://internal:8080/webhooks/inbound?x=1", nil)

	forwarded := httptest.NewRequest(http.MethodPost, "http://internal:8080/webhooks/inbound", nil)
	forwarded.Header.Set("X-Forwarded-Proto", "https, http")
	forwarded.Header.Set("X-Forwarded-Host", "hooks.example.com")

	secure := httptest.NewRequest(http.MethodPost, "http://internal/webhooks/inbound", nil)
	secure.TLS = &tls.ConnectionState{}

	cases := []struct {
		name string
		req  *http.Request
		base string
		want string
	}{
		{name: "request", req: plain, want: "http://internal:8080/webhooks/inbound?x=1"},
		{name: "configured base", req: plain, base: "https://public.example.com/", want: "https://public.example.com/webhooks/inbound?x=1"},
		{name: "forwarding headers", req: forwarded, want: "https://hooks.example.com/webhooks/inbound"},
		{name: "tls", req: secure, want: "https://internal/webhooks/inbound"},
	}
	for _, tc := range cases {
		if got := ReconstructURL(tc.req, tc.base); got != tc.want {
			t.Errorf("%s: ReconstructURL = %q, want %q", tc.name, got, tc.want)
		}
	}
}
