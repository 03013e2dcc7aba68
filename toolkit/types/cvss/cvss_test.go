package cvss

import (
	"errors"
	"testing"
)

func TestVersionGuess(t *testing.T) {
	tt := []struct {
		Vector string
		Want   int
	}{
		{`CVSS:4.0/AV:N/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:H/SI:H/SA:H`, 4},
		{`CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H`, 3},
		{`CVSS:3.0/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H`, 3},
		{`CVSS:2.0/AV:L/AC:M/Au:N/C:C/I:C/A:C`, 2},
		{`AV:L/AC:M/Au:N/C:C/I:C/A:C`, 2},
	}
	for _, tc := range tt {
		if got := Version(tc.Vector); got != tc.Want {
			t.Errorf("Version(%q): got: %d, want: %d", tc.Vector, got, tc.Want)
		}
	}
}

func TestQualitativeBands(t *testing.T) {
	tt := []struct {
		Score float64
		Want  Qualitative
	}{
		{0.0, None},
		{0.1, Low},
		{3.9, Low},
		{4.0, Medium},
		{6.9, Medium},
		{7.0, High},
		{8.9, High},
		{9.0, Critical},
		{10.0, Critical},
	}
	for _, tc := range tt {
		if got := QualitativeScore(tc.Score); got != tc.Want {
			t.Errorf("QualitativeScore(%v): got: %v, want: %v", tc.Score, got, tc.Want)
		}
	}
}

func TestRoundUp(t *testing.T) {
	tt := []struct {
		In   float64
		Want float64
	}{
		{4.00, 4.0},
		{4.02, 4.1},
		{0.8619848, 0.9},
		{0.9006104, 1.0},
	}
	for _, tc := range tt {
		if got := roundUp(tc.In); got != tc.Want {
			t.Errorf("roundUp(%v): got: %v, want: %v", tc.In, got, tc.Want)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	tt := []struct {
		Name   string
		Vector string
		Want   error
	}{
		{"NoPrefix", `AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H`, ErrPrefix},
		{"BadVersion", `CVSS:5.0/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H`, ErrVersion},
		{"Truncated", `CVSS:3.1/AV:N/AC`, ErrMalformedVector},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			_, err := ParseV3(tc.Vector)
			t.Logf("got: %v", err)
			if !errors.Is(err, tc.Want) {
				t.Errorf("want: %v", tc.Want)
			}
		})
	}

	t.Run("Metric", func(t *testing.T) {
		_, err := ParseV3(`CVSS:3.1/AV:Z/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H`)
		t.Logf("got: %v", err)
		var me *MetricError
		if !errors.As(err, &me) {
			t.Fatal("want: *MetricError")
		}
		if me.Metric != "AV" || me.Value != "Z" {
			t.Errorf("got: %#v", me)
		}
		if !errors.Is(err, ErrMalformedVector) {
			t.Error("want: unwrap to ErrMalformedVector")
		}
	})
}
