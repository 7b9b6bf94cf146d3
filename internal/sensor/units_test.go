package sensor

import (
	"math"
	"testing"
)

func TestToCelsius(t *testing.T) {
	tests := []struct {
		f    float64
		want float64
	}{
		{32, 0},
		{212, 100},
		{-40, -40},
		{98.6, 37},
		{0, -17.7777777778},
	}

	for _, tt := range tests {
		got := ToCelsius(tt.f)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ToCelsius(%v) = %v, want %v", tt.f, got, tt.want)
		}
	}
}

func TestToFahrenheit_RoundTrip(t *testing.T) {
	for _, f := range []float64{-50, 0, 32, 68.4, 150} {
		got := ToFahrenheit(ToCelsius(f))
		if math.Abs(got-f) > 1e-9 {
			t.Errorf("ToFahrenheit(ToCelsius(%v)) = %v", f, got)
		}
	}
}
