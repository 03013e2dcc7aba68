package cpe

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func valueAny() Value         { return Value{Kind: ValueAny} }
func valueNA() Value          { return Value{Kind: ValueNA} }
func valueSet(v string) Value { return Value{Kind: ValueSet, V: v} }

func TestUnbindFS(t *testing.T) {
	t.Parallel()
	tt := []struct {
		In   string
		Want WFN
	}{
		{
			In: `cpe:2.3:a:microsoft:internet_explorer:8.0.6001:beta:*:*:*:*:*:*`,
			Want: WFN{Attr: [NumAttr]Value{
				valueSet("a"), valueSet("microsoft"), valueSet("internet_explorer"),
				valueSet("8.0.6001"), valueSet("beta"),
				valueAny(), valueAny(), valueAny(), valueAny(), valueAny(), valueAny(),
			}},
		},
		{
			In: `cpe:2.3:a:hp:insight_diagnostics:7.4.0.1570:-:*:*:online:win2003:x64:*`,
			Want: WFN{Attr: [NumAttr]Value{
				valueSet("a"), valueSet("hp"), valueSet("insight_diagnostics"),
				valueSet("7.4.0.1570"), valueNA(), valueAny(), valueAny(),
				valueSet("online"), valueSet("win2003"), valueSet("x64"), valueAny(),
			}},
		},
		// quoting is stripped on parse
		{
			In: `cpe:2.3:a:foo\!bar:big\$money_2010:*:*:*:*:special:ipod_touch:80gb:*`,
			Want: WFN{Attr: [NumAttr]Value{
				valueSet("a"), valueSet("foo!bar"), valueSet("big$money_2010"),
				valueAny(), valueAny(), valueAny(), valueAny(),
				valueSet("special"), valueSet("ipod_touch"), valueSet("80gb"), valueAny(),
			}},
		},
		// CPE wildcard encoding
		{
			In: `cpe:2.3:a:vendor:pro%02:8.%01:*:*:*:*:*:*:*`,
			Want: WFN{Attr: [NumAttr]Value{
				valueSet("a"), valueSet("vendor"), valueSet("pro*"), valueSet("8.?"),
				valueAny(), valueAny(), valueAny(), valueAny(), valueAny(), valueAny(), valueAny(),
			}},
		},
	}
	for _, tc := range tt {
		got, err := Unbind(tc.In)
		if err != nil {
			t.Errorf("Unbind(%q): %v", tc.In, err)
			continue
		}
		if !cmp.Equal(got, tc.Want) {
			t.Error(cmp.Diff(got, tc.Want))
		}
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	// Dictionary-style strings survive an unbind/bind cycle byte-for-byte.
	vecs := []string{
		`cpe:2.3:a:microsoft:internet_explorer:8.0.6001:beta:*:*:*:*:*:*`,
		`cpe:2.3:a:hp:insight_diagnostics:7.4.0.1570:-:*:*:online:win2003:x64:*`,
		`cpe:2.3:a:foo\!bar:big\$money_2010:*:*:*:*:special:ipod_touch:80gb:*`,
		`cpe:2.3:a:paloaltonetworks:cortex_xdr_agent:*:*:*:*:critical_environment:*:*:*`,
		`cpe:2.3:o:linux:linux_kernel:5.15.0:*:*:*:*:*:*:*`,
		`cpe:2.3:h:cisco:firepower_9300:-:*:*:*:*:*:*:*`,
	}
	for _, in := range vecs {
		w, err := Unbind(in)
		if err != nil {
			t.Errorf("Unbind(%q): %v", in, err)
			continue
		}
		if got := w.BindFS(); got != in {
			t.Errorf("round trip: got: %q, want: %q", got, in)
		}
	}
}

func TestUnbindWFN(t *testing.T) {
	t.Parallel()
	in := `wfn:[part="a",vendor="microsoft",product="internet_explorer",version="8\.0\.6001",update="beta",edition=ANY,language=ANY,sw_edition=ANY,target_sw=ANY,target_hw=ANY,other=NA]`
	want := WFN{Attr: [NumAttr]Value{
		valueSet("a"), valueSet("microsoft"), valueSet("internet_explorer"),
		valueSet("8.0.6001"), valueSet("beta"),
		valueAny(), valueAny(), valueAny(), valueAny(), valueAny(), valueNA(),
	}}
	got, err := Unbind(in)
	if err != nil {
		t.Fatalf("Unbind(%q): %v", in, err)
	}
	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(got, want))
	}
}

func TestUnbindErrors(t *testing.T) {
	t.Parallel()
	tt := []struct {
		In   string
		Want error
	}{
		{`cpe:/a:microsoft:internet_explorer:8.0.6001:beta`, ErrInvalidPrefix},
		{`cpe:2.3:a:microsoft:internet_explorer`, ErrInvalidPrefix},
		{`cpe:2.3:a:microsoft:internet_explorer:1:2:3:4:5:6:7:8:9`, ErrInvalidPrefix},
		{`cpe:2.3:x:vendor:product:*:*:*:*:*:*:*:*`, ErrInvalidPart},
		{`cpe:2.3:-:vendor:product:*:*:*:*:*:*:*:*`, ErrInvalidPart},
		{`wfn:[part="a",vendor="v"]`, ErrInvalidWfn},
		{`wfn:[part="a",part="o",vendor="v",product="p",version=ANY,update=ANY,edition=ANY,language=ANY,sw_edition=ANY,target_sw=ANY,target_hw=ANY]`, ErrInvalidWfn},
		{`wfn:[bogus="a"]`, ErrInvalidWfn},
		{"cpe:2.3:a:\xff\xfe:product:*:*:*:*:*:*:*:*", ErrUTF8},
	}
	for _, tc := range tt {
		_, err := Unbind(tc.In)
		t.Logf("Unbind(%q): %v", tc.In, err)
		if !errors.Is(err, tc.Want) {
			t.Errorf("Unbind(%q): want: %v", tc.In, tc.Want)
		}
	}
}

func TestMarshaling(t *testing.T) {
	t.Parallel()
	in := `cpe:2.3:a:hp:insight_diagnostics:7.4.0.1570:-:*:*:online:win2003:x64:*`
	var w WFN
	if err := w.UnmarshalText([]byte(in)); err != nil {
		t.Fatal(err)
	}
	got, err := w.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != in {
		t.Errorf("got: %q, want: %q", got, in)
	}
	dv, err := w.Value()
	if err != nil {
		t.Fatal(err)
	}
	if dv != in {
		t.Errorf("driver value: got: %q, want: %q", dv, in)
	}
	var rt WFN
	if err := rt.Scan(dv); err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(w, rt) {
		t.Error(cmp.Diff(w, rt))
	}

	var unset WFN
	if b, err := unset.MarshalText(); err != nil || len(b) != 0 {
		t.Errorf("unset: got: %q, %v", b, err)
	}
}
