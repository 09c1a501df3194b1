package currency

import "testing"

func TestFormat(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "$0"},
		{25000, "$25.000"},
		{1500000, "$1.500.000"},
		{-12500, "-$12.500"},
		{999, "$999"},
	}

	for _, tt := range tests {
		if got := Format(tt.amount); got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestFormatSigned(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
		tone   string
	}{
		{12500, "+$12.500", "positive"},
		{-12500, "-$12.500", "negative"},
		{0, "$0", "zero"},
	}

	for _, tt := range tests {
		if got := FormatSigned(tt.amount); got != tt.want {
			t.Errorf("FormatSigned(%d) = %q, want %q", tt.amount, got, tt.want)
		}
		if got := Tone(tt.amount); got != tt.tone {
			t.Errorf("Tone(%d) = %q, want %q", tt.amount, got, tt.tone)
		}
	}
}
