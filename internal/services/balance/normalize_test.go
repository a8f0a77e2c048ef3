package balance

import "testing"

func TestNormalizeQuota(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{"one million units", 1000000, 2.00},
		{"half million units", 500000, 1.00},
		{"rounds half up", 1255000, 2.51},
		{"rounds down below half", 1252499, 2.50},
		{"zero", 0, 0},
		{"large balance", 750000000, 1500.00},
		{"small raw value rounds to cents", 1000, 0.00},
		{"sub-cent raw value", 2499, 0.00},
		{"just over half a cent", 2500, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeQuota(tt.raw); got != tt.want {
				t.Errorf("NormalizeQuota(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
