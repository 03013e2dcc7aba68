package cpe

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	cpe23Prefix = `cpe:2.3:`
	wfnPrefix   = `wfn:[`
)

// Unbind attempts to unbind a string, be it a formatted string or the
// "wfn:" textual form.
func Unbind(s string) (WFN, error) {
	switch {
	case strings.HasPrefix(s, cpe23Prefix):
		return UnbindFS(s)
	case strings.HasPrefix(s, wfnPrefix):
		return UnbindWFN(s)
	default:
	}
	return WFN{}, fmt.Errorf("%w: %q", ErrInvalidPrefix, s)
}

// MustUnbind calls Unbind on the provided string, but panics if any errors
// are encountered.
//
// This is primarily useful for static data where any error is a programmer
// error.
func MustUnbind(s string) WFN {
	w, err := Unbind(s)
	if err != nil {
		panic(err)
	}
	return w
}

// UnbindFS unbinds a CPE 2.3 formatted string into a WFN.
//
// All eleven attributes must be present.
func UnbindFS(s string) (r WFN, err error) {
	if !utf8.ValidString(s) {
		return r, ErrUTF8
	}
	if !strings.HasPrefix(s, cpe23Prefix) {
		return r, fmt.Errorf("%w: %q", ErrInvalidPrefix, s)
	}
	fs := splitEsc(s, ':')
	if len(fs) != NumAttr+2 { // leading "cpe" and "2.3" segments
		return r, fmt.Errorf("%w: expected %d attributes, found %d", ErrInvalidPrefix, NumAttr, len(fs)-2)
	}
	for i, c := range fs[2:] {
		if err := r.Attr[i].unbind(c); err != nil {
			return r, err
		}
	}
	return r, r.Valid()
}

// UnbindWFN unbinds the "wfn:[k=v,...]" textual form into a WFN.
//
// Every key must appear exactly once and the key set must be the canonical
// eleven.
func UnbindWFN(s string) (r WFN, err error) {
	if !utf8.ValidString(s) {
		return r, ErrUTF8
	}
	if !strings.HasPrefix(s, wfnPrefix) || !strings.HasSuffix(s, `]`) {
		return r, fmt.Errorf("%w: %q", ErrInvalidWfn, s)
	}
	var seen [NumAttr]bool
	for _, pair := range splitEsc(s[len(wfnPrefix):len(s)-1], ',') {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return r, fmt.Errorf("%w: bad pair %q", ErrInvalidWfn, pair)
		}
		a, ok := attrLookup[k]
		if !ok {
			return r, fmt.Errorf("%w: unknown key %q", ErrInvalidWfn, k)
		}
		if seen[a] {
			return r, fmt.Errorf("%w: duplicate key %q", ErrInvalidWfn, k)
		}
		seen[a] = true
		// values may be written quoted, per the standard's examples
		if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
			if err := r.Attr[a].unbind(v[1 : len(v)-1]); err != nil {
				return r, err
			}
			continue
		}
		switch v {
		case `ANY`:
			r.Attr[a].Kind = ValueAny
		case `NA`:
			r.Attr[a].Kind = ValueNA
		default:
			if err := r.Attr[a].unbind(v); err != nil {
				return r, err
			}
		}
	}
	for a, ok := range seen {
		if !ok {
			return r, fmt.Errorf("%w: missing key %q", ErrInvalidWfn, Attribute(a))
		}
	}
	return r, r.Valid()
}

// Unbind decodes a single bound attribute and assigns it to v.
func (v *Value) unbind(s string) error {
	switch s {
	case ``, `*`:
		v.Kind = ValueAny
	case `-`:
		v.Kind = ValueNA
	default:
		d, err := decodeValue(s)
		if err != nil {
			return err
		}
		v.Kind, v.V = ValueSet, d
	}
	return nil
}

// DecodeValue undoes the binding escapes: the CPE wildcard encodings %01 and
// %02 become "?" and "*", remaining percent-escapes are hex-decoded, and
// backslash quoting is stripped.
func decodeValue(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '%':
			if i+2 >= len(s) {
				return "", fmt.Errorf("cpe: truncated percent escape in %q", s)
			}
			switch esc := s[i+1 : i+3]; esc {
			case `01`:
				b.WriteByte('?')
			case `02`:
				b.WriteByte('*')
			default:
				hi, lo := unhex(esc[0]), unhex(esc[1])
				if hi == 255 || lo == 255 {
					return "", fmt.Errorf("cpe: bad percent escape %q in %q", s[i:i+3], s)
				}
				b.WriteByte(hi<<4 | lo)
			}
			i += 2
		case '\\':
			if i+1 >= len(s) {
				return "", fmt.Errorf("cpe: trailing backslash in %q", s)
			}
			i++
			b.WriteByte(s[i])
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 255
}

// SplitEsc splits s on sep, ignoring separators preceded by a backslash.
func splitEsc(s string, sep byte) []string {
	var out []string
	prev, esc := 0, false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			esc = !esc
			continue
		case sep:
			if esc {
				break
			}
			out = append(out, s[prev:i])
			prev = i + 1
		}
		esc = false
	}
	return append(out, s[prev:])
}

var attrLookup = func() map[string]Attribute {
	l := make(map[string]Attribute, NumAttr)
	for i := 0; i < NumAttr; i++ {
		a := Attribute(i)
		l[a.String()] = a
	}
	return l
}()
