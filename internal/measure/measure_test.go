package measure

import (
	"encoding/json"
	"testing"
)

func TestParse(t *testing.T) {
	want := func(f float64) *float64 { return &f }

	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{"temperature with unit", "18.4 °C", want(18.4)},
		{"humidity with unit", "65 %", want(65.0)},
		{"unit without space", "21.5°C", want(21.5)},
		{"negative", "-3.2", want(-3.2)},
		{"explicit plus", "+7", want(7.0)},
		{"leading decimal point", ".5", want(0.5)},
		{"whitespace trimmed", "  42.0  ", want(42.0)},
		{"plain integer string", "400", want(400.0)},
		{"nil", nil, nil},
		{"empty string", "", nil},
		{"whitespace only", "   ", nil},
		{"no numeric prefix", "abc", nil},
		{"unit before number", "°C 18.4", nil},
		{"lone sign", "-", nil},
		{"numeric float64", 42.0, want(42.0)},
		{"numeric int", 42, want(42.0)},
		{"json number", json.Number("19.25"), want(19.25)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.in)
			switch {
			case got == nil && tt.want == nil:
			case got == nil || tt.want == nil:
				t.Errorf("Parse(%v) = %v; want %v", tt.in, fmtPtr(got), fmtPtr(tt.want))
			case *got != *tt.want:
				t.Errorf("Parse(%v) = %v; want %v", tt.in, *got, *tt.want)
			}
		})
	}
}

func TestParse_PrefixOnly(t *testing.T) {
	// Only the leading number counts; a second number after the unit is ignored.
	got := Parse("12.5 out of 100")
	if got == nil || *got != 12.5 {
		t.Fatalf("Parse = %v; want 12.5", fmtPtr(got))
	}
}

func fmtPtr(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
