package erc20

import (
	"math/big"
	"testing"
)

func TestParseUnits(t *testing.T) {
	cases := []struct {
		in       string
		decimals uint8
		want     string
	}{
		{"1000", 18, "1000000000000000000000"},
		{"2.5", 6, "2500000"},
		{".5", 2, "50"},
		{"7", 0, "7"},
	}
	for _, tc := range cases {
		got, err := ParseUnits(tc.in, tc.decimals)
		if err != nil {
			t.Fatalf("ParseUnits(%q): %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseUnits(%q, %d) = %s, want %s", tc.in, tc.decimals, got, tc.want)
		}
	}

	for _, bad := range []string{"", "-1", "1.234", "abc", "1.2.3", ".", "+1", "+.5", " . "} {
		if _, err := ParseUnits(bad, 2); err == nil {
			t.Fatalf("ParseUnits(%q) expected error", bad)
		}
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		value    *big.Int
		decimals uint8
		want     string
	}{
		{tokenUnits(1000), 18, "1000"},
		{big.NewInt(2500000), 6, "2.5"},
		{big.NewInt(5), 3, "0.005"},
		{big.NewInt(-150), 2, "-1.5"},
		{nil, 18, "0"},
	}
	for _, tc := range cases {
		if got := FormatUnits(tc.value, tc.decimals); got != tc.want {
			t.Fatalf("FormatUnits(%v, %d) = %s, want %s", tc.value, tc.decimals, got, tc.want)
		}
	}
}
