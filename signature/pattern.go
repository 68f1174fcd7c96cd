// Package signature finds code locations in a module by wildcarded byte
// patterns and turns RIP-relative operands found there into absolute
// addresses.
package signature

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"memsync/process"
)

var (
	ErrNotFound     = errors.New("signature not found")
	ErrEmptyPattern = errors.New("empty pattern")
	ErrBadPattern   = errors.New("malformed pattern")
)

// Pattern is an ordered list of byte tokens where a wildcard token matches
// any byte.
type Pattern struct {
	bytes []byte
	wild  []bool
}

// Parse reads the conventional IDA style notation, e.g. "48 8D 3D ? ? ? ?".
// Both "?" and "??" denote a wildcard.
func Parse(s string) (Pattern, error) {
	var p Pattern
	for _, tok := range strings.Fields(s) {
		if tok == "?" || tok == "??" {
			p.bytes = append(p.bytes, 0)
			p.wild = append(p.wild, true)
			continue
		}
		if len(tok) != 2 {
			return Pattern{}, fmt.Errorf("%w: token %q", ErrBadPattern, tok)
		}
		b, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: token %q", ErrBadPattern, tok)
		}
		p.bytes = append(p.bytes, byte(b))
		p.wild = append(p.wild, false)
	}
	if len(p.bytes) == 0 {
		return Pattern{}, ErrEmptyPattern
	}
	return p, nil
}

// MustParse is Parse for compile time constants.
func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Len returns the number of tokens.
func (p Pattern) Len() int {
	return len(p.bytes)
}

func (p Pattern) String() string {
	parts := make([]string, len(p.bytes))
	for i, b := range p.bytes {
		if p.wild[i] {
			parts[i] = "?"
		} else {
			parts[i] = fmt.Sprintf("%02X", b)
		}
	}
	return strings.Join(parts, " ")
}

// AOB converts the pattern to the byte/mask form used by the process package.
func (p Pattern) AOB() process.AOB {
	mask := make([]byte, len(p.bytes))
	for i := range mask {
		if !p.wild[i] {
			mask[i] = 0xFF
		}
	}
	pattern := make([]byte, len(p.bytes))
	copy(pattern, p.bytes)
	return process.AOB{Pattern: pattern, Mask: mask}
}

// Find returns the index of the first match of p in data, or -1.
func Find(data []byte, p Pattern) int {
	if p.Len() == 0 || len(data) < p.Len() {
		return -1
	}
	aob := p.AOB()
	last := len(data) - p.Len()

	// Anchor on the first fixed byte when there is one
	anchor := -1
	for i, w := range p.wild {
		if !w {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return 0
	}

	for i := 0; i <= last; {
		j := bytes.IndexByte(data[i+anchor:last+anchor+1], p.bytes[anchor])
		if j < 0 {
			return -1
		}
		i += j
		if aob.MatchAt(data, i) {
			return i
		}
		i++
	}
	return -1
}
