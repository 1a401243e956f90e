package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBudget(t *testing.T) {
	ptr := func(n int64) *int64 { return &n }
	tests := []struct {
		in      string
		min     int64
		max     *int64
		wantErr bool
	}{
		{in: "5000", min: 5000, max: ptr(5000)},
		{in: "$5,000", min: 5000, max: ptr(5000)},
		{in: "3000-6000", min: 3000, max: ptr(6000)},
		{in: "$3,000 - $6,000", min: 3000, max: ptr(6000)},
		{in: "10000+", min: 10000},
		{in: "$10k+", min: 10000},
		{in: "under 2000", min: 0, max: ptr(2000)},
		{in: "Less than $1,500", min: 0, max: ptr(1500)},
		{in: "2.5k", min: 2500, max: ptr(2500)},
		{in: "", wantErr: true},
		{in: "lots", wantErr: true},
		{in: "6000-3000", wantErr: true},
		{in: "-500", wantErr: true},
		{in: "under", wantErr: true},
		{in: "100000k", min: 100_000_000, max: ptr(100_000_000)},
		{in: "9999999999999999k", wantErr: true},
		{in: "99999999999999999999", wantErr: true},
		{in: "1e300k", wantErr: true},
		{in: "under 100000.5k", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBudget(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.min, got.Min)
			assert.Equal(t, tt.max, got.Max)
		})
	}
}
