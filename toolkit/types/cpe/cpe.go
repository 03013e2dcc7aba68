// Package cpe implements the CPE 2.3 naming scheme.
//
// Names are modeled as WFNs (well-formed names) of eleven attributes. Every
// attribute is a three-case sum: the logical values ANY and NA, or a concrete
// string. The concrete strings are held decoded; the binding forms'
// percent- and backslash-escapes are undone on parse and re-applied on emit.
package cpe

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Errors reported by the parsers.
var (
	// ErrInvalidPrefix is reported when a formatted string lacks the
	// "cpe:2.3:" prefix or does not have all eleven attributes.
	ErrInvalidPrefix = errors.New("cpe: invalid formatted string")
	// ErrInvalidWfn is reported when a "wfn:[...]" form repeats a key, uses
	// an unknown key, or does not bind the full attribute set.
	ErrInvalidWfn = errors.New("cpe: invalid wfn form")
	// ErrInvalidPart is reported when the part attribute is something other
	// than "a", "o", "h", or ANY.
	ErrInvalidPart = errors.New("cpe: invalid part")
	// ErrUTF8 is reported when the input is not valid UTF-8.
	ErrUTF8 = errors.New("cpe: invalid UTF-8")
	// ErrUnset is reported when an operation needs a bound name and the WFN
	// is completely unset.
	ErrUnset = errors.New("cpe: wfn unset")
)

// Attribute is a component of a WFN.
type Attribute int

//go:generate go run golang.org/x/tools/cmd/stringer -type Attribute -linecomment

// The attributes of a name, in binding order.
const (
	Part      Attribute = iota // part
	Vendor                     // vendor
	Product                    // product
	Version                    // version
	Update                     // update
	Edition                    // edition
	Language                   // language
	SwEdition                  // sw_edition
	TargetSW                   // target_sw
	TargetHW                   // target_hw
	Other                      // other

	// NumAttr is the number of attributes in a WFN.
	NumAttr int = iota
)

// ValueKind indicates what "kind" a Value is.
type ValueKind uint

// The kinds of Value.
const (
	ValueUnset ValueKind = iota
	ValueAny
	ValueNA
	ValueSet
)

// Value is a single attribute of a WFN.
type Value struct {
	// V is the concrete, decoded string. Only meaningful when Kind is
	// ValueSet.
	V    string
	Kind ValueKind
}

// NewValue constructs a concrete Value from a decoded string.
func NewValue(v string) Value {
	return Value{Kind: ValueSet, V: v}
}

// String implements [fmt.Stringer], emitting the formatted-string binding of
// the value.
func (v *Value) String() string {
	var b strings.Builder
	v.bindFS(&b)
	return b.String()
}

func (v *Value) bindFS(b *strings.Builder) {
	switch v.Kind {
	case ValueUnset, ValueAny:
		b.WriteByte('*')
	case ValueNA:
		b.WriteByte('-')
	case ValueSet:
		for _, r := range v.V {
			switch {
			case r == '*' || r == '?':
				// wildcards pass through unquoted
				b.WriteRune(r)
			case r == '_' || r == '.' || r == '-':
				b.WriteRune(r)
			case unicode.IsLetter(r) || unicode.IsDigit(r):
				b.WriteRune(r)
			default:
				b.WriteByte('\\')
				b.WriteRune(r)
			}
		}
	}
}

// WFN is a well-formed name as defined by the Common Platform Enumeration
// (CPE) spec: https://nvlpubs.nist.gov/nistpubs/Legacy/IR/nistir7695.pdf
type WFN struct {
	Attr [NumAttr]Value
}

// Valid reports an error if the WFN is in an inconsistent state.
//
// A completely unset WFN reports ErrUnset.
func (w *WFN) Valid() error {
	unset := true
	for i := range w.Attr {
		if w.Attr[i].Kind != ValueUnset {
			unset = false
			break
		}
	}
	if unset {
		return ErrUnset
	}
	p := w.Attr[Part]
	switch p.Kind {
	case ValueAny:
	case ValueSet:
		switch p.V {
		case "a", "o", "h":
		default:
			return fmt.Errorf("%w: %q", ErrInvalidPart, p.V)
		}
	default:
		return fmt.Errorf("%w: %v", ErrInvalidPart, p.Kind)
	}
	return nil
}

// BindFS emits the formatted-string binding, in the dictionary style: "*"
// for ANY, "-" for NA, specials backslash-quoted.
func (w *WFN) BindFS() string {
	var b strings.Builder
	b.Grow(64)
	b.WriteString(cpe23Prefix)
	for i := range w.Attr {
		if i != 0 {
			b.WriteByte(':')
		}
		w.Attr[i].bindFS(&b)
	}
	return b.String()
}

// String implements [fmt.Stringer].
func (w WFN) String() string {
	return w.BindFS()
}
