package sampler

import (
	"reflect"
	"testing"
)

func TestTimestamps(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		interval float64
		expected []float64
	}{
		{
			name:     "Even grid",
			duration: 30,
			interval: 10,
			expected: []float64{0, 10, 20, 30},
		},
		{
			name:     "Duration between grid points",
			duration: 25,
			interval: 10,
			expected: []float64{0, 10, 20},
		},
		{
			name:     "Duration shorter than interval",
			duration: 4,
			interval: 10,
			expected: []float64{0},
		},
		{
			name:     "Fractional interval",
			duration: 1,
			interval: 0.5,
			expected: []float64{0, 0.5, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Timestamps(tt.duration, tt.interval)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Timestamps(%v, %v) = %v, expected %v",
					tt.duration, tt.interval, got, tt.expected)
			}
		})
	}
}
