package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/catalog-scraper/internal/progress"
)

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	runID := progress.UUIDToBytes(uuid.New())
	batch := []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StagePageDone, URL: "https://shop.test/product/a/"},
		{RunID: runID, TS: time.Now(), Stage: progress.StagePageFailed, URL: "https://shop.test/product/b/", Attempt: 3, Note: "timeout"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.All()
	require.Len(t, entries, 1, "debug events are filtered at info level")
	fields := entries[0].ContextMap()
	require.Equal(t, "PAGE_FAILED", fields["stage"])
	require.Equal(t, "timeout", fields["note"])
	require.EqualValues(t, 3, fields["attempt"])
	require.Equal(t, uuid.UUID(runID).String(), fields["run_id"])
}
