package money

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Amount
		ok   bool
	}{
		{"", 0, true},
		{"0", 0, true},
		{"100", 10000, true},
		{"1234.5", 123450, true},
		{"1234.56", 123456, true},
		{".50", 50, true},
		{" 42 ", 4200, true},
		{"1234.567", 0, false},
		{"-5", 0, false},
		{"1.2.3", 0, false},
		{"12a", 0, false},
		{"12.", 0, false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("Parse(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   Amount
		want string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{123450, "1234.50"},
		{-150, "-1.50"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Fatalf("String(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFromDollars(t *testing.T) {
	if FromDollars(50000) != 5000000 {
		t.Fatal("FromDollars(50000)")
	}
	if FromDollars(1).Dollars() != 1.0 {
		t.Fatal("Dollars round trip")
	}
}
