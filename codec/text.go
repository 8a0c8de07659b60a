package codec

import (
	"bytes"
	"errors"

	"github.com/pithecene-io/conduit/stage"
)

// Upper maps ASCII a-z to A-Z and leaves every other byte alone.
// Working byte-wise keeps it correct when a chunk splits a UTF-8 sequence.
func Upper(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

// Lower maps ASCII A-Z to a-z and leaves every other byte alone.
func Lower(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

// Rot13 rotates ASCII letters by 13 places.
func Rot13(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		switch {
		case 'a' <= c && c <= 'z':
			c = 'a' + (c-'a'+13)%26
		case 'A' <= c && c <= 'Z':
			c = 'A' + (c-'A'+13)%26
		}
		out[i] = c
	}
	return out
}

// ErrEmptyPattern is returned by NewReplacer for an empty search string.
var ErrEmptyPattern = errors.New("replace pattern must not be empty")

// Replacer substitutes every occurrence of a pattern. It holds back the
// longest input suffix that could start a match, so occurrences that span
// chunk boundaries are still replaced.
type Replacer struct {
	stage.Lifecycle
	pattern     []byte
	replacement []byte
	carry       []byte
}

// NewReplacer creates a Replacer for pattern.
func NewReplacer(pattern, replacement []byte) (*Replacer, error) {
	if len(pattern) == 0 {
		return nil, ErrEmptyPattern
	}
	return &Replacer{pattern: bytes.Clone(pattern), replacement: bytes.Clone(replacement)}, nil
}

// Process replaces complete matches and carries a possible partial match.
// It answers NeedMoreInput when everything was held back.
func (r *Replacer) Process(chunk []byte) (stage.Result, error) {
	if err := r.Enter(); err != nil {
		return stage.Result{}, err
	}
	data := append(r.carry, chunk...)

	var out []byte
	for {
		j := bytes.Index(data, r.pattern)
		if j < 0 {
			break
		}
		out = append(out, data[:j]...)
		out = append(out, r.replacement...)
		data = data[j+len(r.pattern):]
	}

	keep := partialMatch(data, r.pattern)
	out = append(out, data[:len(data)-keep]...)
	r.carry = append([]byte(nil), data[len(data)-keep:]...)

	// A match replaced by nothing still consumed the input.
	if len(out) == 0 && len(r.carry) > 0 {
		return stage.NeedMore(), nil
	}
	return stage.Output(out), nil
}

// Flush emits the held-back suffix unchanged.
func (r *Replacer) Flush() (stage.Result, error) {
	if err := r.Finish(); err != nil {
		return stage.Result{}, err
	}
	out := r.carry
	r.carry = nil
	return stage.Output(out), nil
}

// partialMatch returns the length of the longest suffix of data that is a
// proper prefix of pattern.
func partialMatch(data, pattern []byte) int {
	for k := min(len(pattern)-1, len(data)); k > 0; k-- {
		if bytes.HasSuffix(data, pattern[:k]) {
			return k
		}
	}
	return 0
}
