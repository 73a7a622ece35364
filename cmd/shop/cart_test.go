package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw      string
		expected int
		wantErr  bool
	}{
		{"3", 3, false},
		{" 7 ", 7, false},
		{"0", 0, false},
		{"3abc", 0, true},
		{"2.5", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			quantity, err := parseQuantity(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "is not a number")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, quantity)
		})
	}
}
