// Package scanner finds byte signatures inside a loaded module image.
package scanner

import (
	"encoding/hex"
	"fmt"
	"strings"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

// MaxPatternLength is the longest pattern, in bytes, accepted from plugins
const MaxPatternLength = 100

const (
	// MaskMatch marks a byte that must equal the pattern byte.
	MaskMatch byte = 'x'
	// MaskWildcard marks a byte that is not compared.
	MaskWildcard byte = '?'
)

// Pattern is a byte signature with a per-byte wildcard mask
type Pattern struct {
	Bytes []byte
	Mask  []byte
}

// Len returns the number of bytes the pattern spans
func (p Pattern) Len() int {
	return len(p.Bytes)
}

// String renders the pattern in the notation accepted by ParsePattern
func (p Pattern) String() string {
	var sb strings.Builder
	for i, b := range p.Bytes {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if p.Mask[i] == MaskWildcard {
			sb.WriteString("??")
			continue
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// NewPattern builds a pattern from raw byte and mask arrays
func NewPattern(pattern, mask []byte) (Pattern, error) {
	if len(pattern) == 0 || len(pattern) != len(mask) {
		return Pattern{}, fmt.Errorf("%w: pattern has %d bytes, mask has %d", domain.ErrPatternInvalid, len(pattern), len(mask))
	}
	return Pattern{Bytes: pattern, Mask: mask}, nil
}

// ParsePattern parses space separated hex byte pairs, "??" being a wildcard:
//
//	48 8B 05 ?? ?? ?? ?? 48 8B D9
func ParsePattern(text string) (Pattern, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return Pattern{}, fmt.Errorf("%w: empty pattern", domain.ErrPatternInvalid)
	}
	if len(tokens) > MaxPatternLength {
		return Pattern{}, fmt.Errorf("%w: %d bytes, at most %d allowed", domain.ErrPatternTooLong, len(tokens), MaxPatternLength)
	}

	p := Pattern{
		Bytes: make([]byte, len(tokens)),
		Mask:  make([]byte, len(tokens)),
	}
	for i, token := range tokens {
		if len(token) != 2 {
			return Pattern{}, fmt.Errorf("%w: token %q at position %d is not 2 chars long", domain.ErrPatternInvalid, token, i)
		}
		if token == "??" {
			p.Mask[i] = MaskWildcard
			continue
		}
		b, err := hex.DecodeString(token)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: token %q at position %d is not hexadecimal", domain.ErrPatternInvalid, token, i)
		}
		p.Bytes[i] = b[0]
		p.Mask[i] = MaskMatch
	}
	return p, nil
}

// MustParsePattern is ParsePattern for compiled-in signatures
func MustParsePattern(text string) Pattern {
	p, err := ParsePattern(text)
	if err != nil {
		panic(err)
	}
	return p
}
