// Package command parses the short text commands assignees send to accept or
// decline booking requests.
package command

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Verb is the decoded intent of a command.
type Verb int

const (
	VerbUnknown Verb = iota
	VerbAccept
	VerbDecline
)

func (v Verb) String() string {
	switch v {
	case VerbAccept:
		return "ACCEPT"
	case VerbDecline:
		return "DECLINE"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrEmpty is returned for a message without any tokens.
	ErrEmpty = errors.New("command: empty message")
	// ErrUnknownVerb is returned when the first token is not a recognised verb.
	ErrUnknownVerb = errors.New("command: unknown verb")
	// ErrTooManyTokens is returned when more than a verb and a code are sent.
	ErrTooManyTokens = errors.New("command: too many tokens")
	// ErrInvalidCode is returned when the reference code is malformed.
	ErrInvalidCode = errors.New("command: invalid reference code")
)

var synonyms = map[string]Verb{
	"ACCEPT":  VerbAccept,
	"YES":     VerbAccept,
	"Y":       VerbAccept,
	"OK":      VerbAccept,
	"CONFIRM": VerbAccept,
	"SI":      VerbAccept,
	"OUI":     VerbAccept,
	"JA":      VerbAccept,
	"DECLINE": VerbDecline,
	"NO":      VerbDecline,
	"N":       VerbDecline,
	"REJECT":  VerbDecline,
	"NON":     VerbDecline,
	"NEIN":    VerbDecline,
}

// Command is a parsed inbound instruction. Code is empty when the sender did
// not name a booking.
type Command struct {
	Verb Verb
	Code string
}

// Parse decodes body. Tokens are whitespace-delimited and compared without
// regard to case or diacritics, so "Sí abcd" parses as ACCEPT ABCD.
func Parse(body string) (Command, error) {
	tokens := strings.Fields(fold(body))
	if len(tokens) == 0 {
		return Command{}, ErrEmpty
	}
	if len(tokens) > 2 {
		return Command{}, ErrTooManyTokens
	}

	verb, ok := synonyms[strings.Trim(tokens[0], ".!,")]
	if !ok {
		return Command{}, ErrUnknownVerb
	}

	cmd := Command{Verb: verb}
	if len(tokens) == 2 {
		code := strings.TrimPrefix(strings.Trim(tokens[1], ".!,"), "#")
		if !validCode(code) {
			return Command{}, ErrInvalidCode
		}
		cmd.Code = code
	}
	return cmd, nil
}

// Usage is the help text sent back for commands that cannot be parsed.
func Usage() string {
	return "Reply ACCEPT or DECLINE, followed by the booking code if you have more than one request (e.g. ACCEPT K7QX)."
}

func validCode(code string) bool {
	if code == "" || len(code) > 12 {
		return false
	}
	for _, r := range code {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToUpper(folded)
}
