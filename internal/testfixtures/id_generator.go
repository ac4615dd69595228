package testfixtures

import (
	"fmt"
	"sync"

	"github.com/villaclean/bookingcore/internal/refcode"
)

// IDGenerator yields deterministic entity ids and reference codes.
type IDGenerator struct {
	mu     sync.Mutex
	prefix string
	ids    uint64
	codes  uint64
}

// NewIDGenerator constructs a generator producing prefix-1, prefix-2, ...
// When prefix is empty, "id" is used.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next entity id.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ids++
	return fmt.Sprintf("%s-%d", g.prefix, g.ids)
}

// NextFunc exposes Next for constructor injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// NextCode returns the next reference code. Codes are drawn from
// refcode.Alphabet so they survive command parsing unchanged.
func (g *IDGenerator) NextCode() (string, error) {
	g.mu.Lock()
	n := g.codes
	g.codes++
	g.mu.Unlock()

	base := uint64(len(refcode.Alphabet))
	digits := make([]byte, refcode.Length)
	for i := refcode.Length - 1; i >= 0; i-- {
		digits[i] = refcode.Alphabet[n%base]
		n /= base
	}
	return string(digits), nil
}

// CodeFunc exposes NextCode as a refcode.Generator.
func (g *IDGenerator) CodeFunc() refcode.Generator {
	if g == nil {
		return refcode.New
	}
	return g.NextCode
}
