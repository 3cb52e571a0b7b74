package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToInt(t *testing.T) {
	tests := []struct {
		name    string
		val     any
		want    int
		wantErr bool
	}{
		{"Int", 3, 3, false},
		{"Int64", int64(3000), 3000, false},
		{"NumericString", " 42 ", 42, false},
		{"Garbage", "abc", 0, true},
		{"Bool", true, 0, true},
		{"Nil", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToInt(tt.val)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToString(t *testing.T) {
	s, err := ToString("metrics")
	assert.NoError(t, err)
	assert.Equal(t, "metrics", s)

	_, err = ToString(12)
	assert.Error(t, err)
}

func TestToBool(t *testing.T) {
	tests := []struct {
		name    string
		val     any
		want    bool
		wantErr bool
	}{
		{"True", true, true, false},
		{"One", 1, true, false},
		{"Zero", 0, false, false},
		{"Two", 2, false, true},
		{"StringTrue", "TRUE", true, false},
		{"StringFalse", "false", false, false},
		{"StringGarbage", "yes", false, true},
		{"Nil", nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBool(tt.val)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
