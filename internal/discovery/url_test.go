package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsProductURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{url: "https://shop.test/product/mug", want: true},
		{url: "https://shop.test/products/mug", want: true},
		{url: "https://shop.test/fr/product/mug", want: false},
		{url: "https://shop.test/shop/mug", want: false},
		{url: "https://shop.test/product/ab/", want: false},
		{url: "https://shop.test/product/Mug-XL", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, IsProductURL(tt.url))
		})
	}
}

func TestNormalizeSiteRoot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{name: "trailing slash", in: "https://Shop.Test/", want: "https://shop.test"},
		{name: "default port", in: "http://shop.test:80/store/", want: "http://shop.test/store"},
		{name: "query and fragment", in: "https://shop.test/?a=1#top", want: "https://shop.test"},
		{name: "missing scheme", in: "shop.test", wantErr: "site url must start with"},
		{name: "bad scheme", in: "ftp://shop.test", wantErr: "site url must start with"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeSiteRoot(tt.in)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				require.ErrorContains(t, ValidateSiteURL(tt.in), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
