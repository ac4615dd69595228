// Package phone normalizes phone identities received from messaging transports.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "US"

// Normalize reduces a transport address such as "whatsapp:+1 (555) 010-2030"
// to its E.164 form "+15550102030". Numbers without a country code, or
// dialled with an international prefix such as "0034", are read in region.
// Input the parser rejects falls back to a leading plus and the digits. It
// returns "" when no digits remain.
func Normalize(raw, region string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if region = strings.ToUpper(strings.TrimSpace(region)); region == "" {
		region = DefaultRegion
	}
	if num, err := phonenumbers.Parse(s, region); err == nil {
		return phonenumbers.Format(num, phonenumbers.E164)
	}
	return digits(s)
}

func digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	if strings.HasPrefix(s, "+") {
		b.WriteByte('+')
	}
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			n++
		}
	}
	if n == 0 {
		return ""
	}
	return b.String()
}
