package headless

import (
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestNewSessionFactoryValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSessionFactory(Config{NavigationTimeout: -time.Second})
	require.Error(t, err)

	f, err := NewSessionFactory(Config{})
	require.NoError(t, err)
	require.Equal(t, defaultNavigationTimeout, f.cfg.NavigationTimeout)
}

func TestAllocatorOptionsGrowWithConfig(t *testing.T) {
	t.Parallel()

	base, err := NewSessionFactory(Config{Headless: true})
	require.NoError(t, err)
	custom, err := NewSessionFactory(Config{Headless: true, ExecPath: "/usr/bin/chromium", UserAgent: "catalog-bot"})
	require.NoError(t, err)

	require.Len(t, custom.allocatorOptions(), len(base.allocatorOptions())+2)
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	headers := toNetworkHeaders(http.Header{
		"X-Multi":  {"a", "b"},
		"X-Single": {"one"},
		"X-Empty":  {},
	})
	require.Equal(t, "one", headers["X-Single"])
	require.Equal(t, []string{"a", "b"}, headers["X-Multi"])
	_, ok := headers["X-Empty"]
	require.False(t, ok)
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  404,
			URL:     "https://shop.test/product/gone",
			Headers: network.Headers{"X-Request-ID": "abc"},
		},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 200, URL: "https://shop.test/iframe"},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 200},
	})

	status, headers, url := meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, 404, status)
	require.Equal(t, "abc", headers.Get("X-Request-ID"))
	require.Equal(t, "https://shop.test/product/gone", url)

	meta = newResponseMeta()
	status, _, url = meta.snapshotWithFallbacks("https://req", "https://final")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://final", url)

	_, _, url = newResponseMeta().snapshotWithFallbacks("https://req", "")
	require.Equal(t, "https://req", url)
}
