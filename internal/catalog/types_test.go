package catalog

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAttributesKeepInsertionOrder(t *testing.T) {
	t.Parallel()

	var attrs Attributes
	attrs = attrs.Set("size", "M")
	attrs = attrs.Set("color", "red")
	attrs = attrs.Set("size", "L")

	require.Equal(t, []string{"size", "color"}, attrs.Names())
	require.Equal(t, []string{"L", "red"}, attrs.Values())
	v, ok := attrs.Get("color")
	require.True(t, ok)
	require.Equal(t, "red", v)
	_, ok = attrs.Get("material")
	require.False(t, ok)
}

func TestWarnings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		product *ProductRecord
		want    []string
	}{
		{
			name:    "nil",
			product: nil,
		},
		{
			name: "complete simple",
			product: &ProductRecord{
				Kind: KindSimple, Name: "Mug", RegularPrice: "9.99", Images: []string{"https://x/a.jpg"},
			},
		},
		{
			name: "variable without variations",
			product: &ProductRecord{
				Kind: KindVariable, Name: "Shirt", Images: []string{"https://x/a.jpg"},
			},
			want: []string{WarnVariableWithoutVariations},
		},
		{
			name:    "empty simple",
			product: &ProductRecord{Kind: KindSimple},
			want:    []string{WarnMissingName, WarnMissingPrice, WarnMissingImages},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.product.Warnings())
		})
	}
}

func TestErrorsUnwrap(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	discovery := fmt.Errorf("run: %w", &DiscoveryError{Site: "https://shop.test", Err: ErrNoSitemapFound})
	require.ErrorIs(t, discovery, ErrNoSitemapFound)
	var de *DiscoveryError
	require.ErrorAs(t, discovery, &de)
	require.Equal(t, "https://shop.test", de.Site)

	extraction := &ExtractionError{URL: "https://shop.test/product/a", Attempt: 2, Err: base}
	require.ErrorIs(t, extraction, base)
	require.Contains(t, extraction.Error(), "attempt 2")

	require.ErrorIs(t, &WriteError{Path: "out.csv", Err: base}, base)
	require.ErrorIs(t, &ResourceCleanupError{Worker: 1, Err: base}, base)
}
