package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPlaceholderName(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("0b9d3d5e-3c1f-4f7e-9d55-2a8f0c1e6b11")

	tests := []struct {
		name string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"0b9d3d5e-3c1f-4f7e-9d55-2a8f0c1e6b11", true},
		{"0B9D3D5E-3C1F-4F7E-9D55-2A8F0C1E6B11", true},
		{uuid.NewString(), true},
		{"Untitled", true},
		{"Untitled Style", true},
		{"untitled style 4", true},
		{"Style 12", true},
		{"style-7", true},
		{"Imported Style", true},
		{"imported_style_3", true},
		{"New Style 2", true},
		{"Warm Brutalism", false},
		{"Style Guide for Acme", false},
		{"Untitled but real", false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, IsPlaceholderName(tc.name, id), "name %q", tc.name)
	}
}

func TestStyle_NeedsAssets(t *testing.T) {
	t.Parallel()

	style, err := NewStyle("Neon", "uploads/neon.png")
	require.NoError(t, err)

	assert.True(t, style.NeedsAssets(3), "pending style needs assets")

	style.AssetStatus = AssetStatusComplete
	style.AssetKeys = []string{"a", "b"}
	assert.True(t, style.NeedsAssets(3), "complete but short")

	style.AssetKeys = append(style.AssetKeys, "c")
	assert.False(t, style.NeedsAssets(3))

	style.AssetStatus = AssetStatusNone
	assert.True(t, style.NeedsAssets(3), "missing status")
}

func TestNewStyle(t *testing.T) {
	t.Parallel()

	style, err := NewStyle("", "uploads/a.png")
	require.NoError(t, err)
	assert.Equal(t, "Untitled Style", style.Name)
	assert.True(t, style.NeedsNameRepair())

	_, err = NewStyle("x", "")
	assert.ErrorIs(t, err, ErrEmptyImageKey)
}
