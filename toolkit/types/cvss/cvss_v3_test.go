package cvss

import (
	"errors"
	"testing"
)

func TestV3RoundTrip(t *testing.T) {
	vecs := []string{
		`CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H`,
		`CVSS:3.0/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H`,
		`CVSS:3.1/AV:P/AC:H/PR:H/UI:R/S:U/C:N/I:N/A:L`,
		`CVSS:3.1/AV:N/AC:H/PR:N/UI:R/S:U/C:H/I:L/A:H/E:F/RL:O/RC:C`,
		`CVSS:3.1/AV:L/AC:L/PR:L/UI:N/S:U/C:H/I:H/A:H/CR:H/IR:M/AR:L/MAV:N/MAC:X/MPR:N/MUI:X/MS:C/MC:H/MI:H/MA:H`,
	}
	for _, in := range vecs {
		v, err := ParseV3(in)
		if err != nil {
			t.Errorf("ParseV3(%q): %v", in, err)
			continue
		}
		if got := v.String(); got != in {
			t.Errorf("round trip: got: %q, want: %q", got, in)
		}
	}
}

func TestV3Minor(t *testing.T) {
	v, err := ParseV3(`CVSS:3.0/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H`)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.Minor(); got != 0 {
		t.Errorf("Minor: got: %d, want: 0", got)
	}
	v, err = ParseV3(`CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H`)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.Minor(); got != 1 {
		t.Errorf("Minor: got: %d, want: 1", got)
	}
}

func TestV3Score(t *testing.T) {
	tt := []struct {
		Vector   string
		Score    float64
		Severity Qualitative
	}{
		{`CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H`, 10.0, Critical},
		// Scope flips the score across the High band.
		{`CVSS:3.1/AV:N/AC:H/PR:N/UI:R/S:U/C:H/I:L/A:H`, 7.1, High},
		{`CVSS:3.1/AV:N/AC:H/PR:N/UI:R/S:C/C:H/I:L/A:H`, 8.2, High},
		{`CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H`, 9.8, Critical},
		{`CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:N/I:N/A:N`, 0.0, None},
	}
	for _, tc := range tt {
		v, err := ParseV3(tc.Vector)
		if err != nil {
			t.Fatalf("ParseV3(%q): %v", tc.Vector, err)
		}
		if got := v.Score(); got != tc.Score {
			t.Errorf("%s: Score: got: %v, want: %v", tc.Vector, got, tc.Score)
		}
		if got := v.Qualitative(); got != tc.Severity {
			t.Errorf("%s: Qualitative: got: %v, want: %v", tc.Vector, got, tc.Severity)
		}
	}
}

func TestV3SubScores(t *testing.T) {
	v, err := ParseV3(`CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H`)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.Exploitability(); got != 3.9 {
		t.Errorf("Exploitability: got: %v, want: 3.9", got)
	}
	if got := v.Impact(); got != 6.1 {
		t.Errorf("Impact: got: %v, want: 6.1", got)
	}
}

func TestV3Invalid(t *testing.T) {
	vecs := []string{
		`CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H`,      // missing A
		`CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:HH`, // long value
		`CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H/A:H`,
		`CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H/ZZ:Q`,
	}
	for _, in := range vecs {
		_, err := ParseV3(in)
		t.Logf("ParseV3(%q): %v", in, err)
		if !errors.Is(err, ErrMalformedVector) {
			t.Errorf("ParseV3(%q): want an error", in)
		}
	}
}

func TestV3Accessors(t *testing.T) {
	v, err := ParseV3(`CVSS:3.1/AV:N/AC:H/PR:N/UI:R/S:U/C:H/I:L/A:H/E:F/RL:O/RC:C`)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.Get(V3AttackComplexity); got != Value('H') {
		t.Errorf("Get(AC): got: %v", got)
	}
	if got := v.Get(V3ModifiedScope); got != ValueUnset {
		t.Errorf("Get(MS): got: %v, want unset", got)
	}
	if !v.Temporal() {
		t.Error("Temporal: got: false, want: true")
	}
	if v.Environmental() {
		t.Error("Environmental: got: true, want: false")
	}
}
