package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProgressSnapshot(t *testing.T) {
	tests := []struct {
		completed, total int
		want             int
	}{
		{0, 0, 0},
		{1, 4, 25},
		{1, 3, 33},
		{2, 3, 67},
		{3, 4, 75},
		{199, 200, 99},
		{200, 200, 100},
	}
	for _, tt := range tests {
		got := NewProgressSnapshot(tt.completed, tt.total)
		assert.Equal(t, tt.want, got.Percentage, "%d/%d", tt.completed, tt.total)
	}
}
