// Package signature verifies inbound webhook signatures.
//
// The scheme is the one used by Twilio: HMAC-SHA1 keyed with the account auth
// token over the full public request URL followed by every form parameter
// name and value, sorted by name, base64 encoded into X-Twilio-Signature.
// Verification is delegated to the Twilio SDK request validator.
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/twilio/twilio-go/client"
)

// Header carries the request signature.
const Header = "X-Twilio-Signature"

// ErrNoToken is returned by NewVerifier when the auth token is empty.
var ErrNoToken = errors.New("signature: auth token is required")

// Verifier checks request signatures against a shared auth token.
type Verifier struct {
	token     []byte
	validator client.RequestValidator
}

// NewVerifier builds a verifier for token.
func NewVerifier(token string) (*Verifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNoToken
	}
	return &Verifier{token: []byte(token), validator: client.NewRequestValidator(token)}, nil
}

// Sign computes the signature a sender would attach to a form-encoded body
// delivered to publicURL. It is used by local senders and tests.
func (v *Verifier) Sign(rawBody []byte, publicURL string) (string, error) {
	params, err := formParams(rawBody)
	if err != nil {
		return "", err
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(publicURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}

	mac := hmac.New(sha1.New, v.token)
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether header is a valid signature of rawBody sent to
// publicURL. Unparseable bodies and empty headers never verify.
func (v *Verifier) Verify(rawBody []byte, header, publicURL string) bool {
	if v == nil || header == "" {
		return false
	}
	params, err := formParams(rawBody)
	if err != nil {
		return false
	}
	return v.validator.Validate(publicURL, params, header)
}

// formParams flattens a form body to the single-valued map the validator
// signs. Repeated names keep their first value.
func formParams(rawBody []byte) (map[string]string, error) {
	values, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return nil, err
	}
	params := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	return params, nil
}

// ReconstructURL returns the URL the sender addressed. Proxies rewrite scheme
// and host, so a configured public base URL wins, then forwarding headers,
// then the request itself.
func ReconstructURL(r *http.Request, publicBaseURL string) string {
	requestURI := r.URL.RequestURI()
	if base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"); base != "" {
		return base + requestURI
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := firstValue(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = proto
	}
	host := r.Host
	if forwarded := firstValue(r.Header.Get("X-Forwarded-Host")); forwarded != "" {
		host = forwarded
	}
	return scheme + "://" + host + requestURI
}

func firstValue(header string) string {
	if i := strings.IndexByte(header, ','); i >= 0 {
		header = header[:i]
	}
	return strings.TrimSpace(header)
}
