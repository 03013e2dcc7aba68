package vulnmirror

import (
	"bytes"
	"database/sql/driver"
	"fmt"
)

// Severity is the qualitative severity band assigned to a CVE.
//
// The band is derived from the highest-priority CVSS result present on the
// record (v3.1, then v3.0, then v2). A record with no CVSS result is
// SeverityNone.
type Severity uint

const (
	SeverityNone     Severity = iota // none
	SeverityLow                      // low
	SeverityMedium                   // medium
	SeverityHigh                     // high
	SeverityCritical                 // critical
)

//go:generate go run golang.org/x/tools/cmd/stringer@latest -type=Severity -linecomment

func (s Severity) MarshalText() (text []byte, err error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	// This depends on the contents of severity_string.go.
	i := bytes.Index([]byte(_Severity_name), text)
	if i == -1 {
		return fmt.Errorf("unknown severity %q", string(text))
	}
	idx := uint8(i)
	for n, off := range _Severity_index[:len(_Severity_index)-1] {
		// The match must cover a whole word, not a prefix of one.
		if idx == off && _Severity_index[n+1] == off+uint8(len(text)) {
			*s = Severity(n)
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", string(text))
}

func (s Severity) Value() (driver.Value, error) {
	return s.String(), nil
}

func (s *Severity) Scan(i interface{}) error {
	switch v := i.(type) {
	case []byte:
		return s.UnmarshalText(v)
	case string:
		return s.UnmarshalText([]byte(v))
	case int64:
		if v >= int64(len(_Severity_index)-1) {
			return fmt.Errorf("unable to scan Severity from enum %d", v)
		}
		*s = Severity(v)
	default:
		return fmt.Errorf("unable to scan Severity from type %T", i)
	}
	return nil
}
