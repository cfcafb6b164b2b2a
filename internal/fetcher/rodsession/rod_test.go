package rodsession

import (
	"context"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/require"
)

func TestNewSessionFactoryDefaults(t *testing.T) {
	t.Parallel()

	f := NewSessionFactory(Config{})
	require.Equal(t, defaultNavigationTimeout, f.cfg.NavigationTimeout)

	f = NewSessionFactory(Config{NavigationTimeout: time.Second})
	require.Equal(t, time.Second, f.cfg.NavigationTimeout)
}

func TestLauncherFlags(t *testing.T) {
	t.Parallel()

	l := NewSessionFactory(Config{Headless: true, ExecPath: "/opt/chrome"}).launcher()
	require.True(t, l.Has("headless"))
	require.Equal(t, "AutomationControlled", l.Get("disable-blink-features"))
}

func TestOpenFailsForUnreachableRemote(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewSessionFactory(Config{RemoteURL: "ws://127.0.0.1:1/devtools/browser/none"}).Open(ctx)
	require.Error(t, err)
}

func TestDocumentResponseTracksMainFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		events     []*proto.NetworkResponseReceived
		wantStatus int
		wantURL    string
	}{
		{
			name:       "no response falls back",
			wantStatus: 200,
			wantURL:    "https://shop.test/product/mug",
		},
		{
			name: "not found document",
			events: []*proto.NetworkResponseReceived{
				{Type: proto.NetworkResourceTypeScript, FrameID: "main", Response: &proto.NetworkResponse{Status: 200, URL: "https://shop.test/app.js"}},
				{Type: proto.NetworkResourceTypeDocument, FrameID: "main", Response: &proto.NetworkResponse{Status: 404, URL: "https://shop.test/product/mug"}},
			},
			wantStatus: 404,
			wantURL:    "https://shop.test/product/mug",
		},
		{
			name: "iframe documents are ignored",
			events: []*proto.NetworkResponseReceived{
				{Type: proto.NetworkResourceTypeDocument, FrameID: "ads", Response: &proto.NetworkResponse{Status: 500, URL: "https://ads.test/frame"}},
				{Type: proto.NetworkResourceTypeDocument, FrameID: "main", Response: &proto.NetworkResponse{Status: 200, URL: "https://shop.test/product/mug/"}},
			},
			wantStatus: 200,
			wantURL:    "https://shop.test/product/mug/",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			doc := &documentResponse{frame: "main"}
			for _, e := range tc.events {
				doc.observe(e)
			}
			status, url := doc.result("https://shop.test/product/mug")
			require.Equal(t, tc.wantStatus, status)
			require.Equal(t, tc.wantURL, url)
		})
	}
}

func TestDocumentResponseStopsAfterMainDocument(t *testing.T) {
	t.Parallel()

	doc := &documentResponse{frame: "main"}
	require.False(t, doc.observe(&proto.NetworkResponseReceived{Type: proto.NetworkResourceTypeImage, Response: &proto.NetworkResponse{Status: 200}}))
	require.True(t, doc.observe(&proto.NetworkResponseReceived{
		Type: proto.NetworkResourceTypeDocument, FrameID: "main", Response: &proto.NetworkResponse{Status: 503},
	}))
	status, _ := doc.result("https://shop.test/")
	require.Equal(t, 503, status)
}
