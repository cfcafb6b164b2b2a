package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage names the milestone an Event reports.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageRunDone     Stage = "RUN_DONE"
	StageRunError    Stage = "RUN_ERROR"
	StageDiscovered  Stage = "DISCOVERED"
	StageWorkerStart Stage = "WORKER_START"
	StageWorkerStop  Stage = "WORKER_STOP"
	StagePageDone    Stage = "PAGE_DONE"
	StagePageRetry   Stage = "PAGE_RETRY"
	StagePageFailed  Stage = "PAGE_FAILED"
	StageRateDelay   Stage = "RATE_DELAY"
	StageExportDone  Stage = "EXPORT_DONE"
)

// Event is one progress milestone of a scrape run.
type Event struct {
	// RunID is the 16-byte form of the run's UUID.
	RunID [16]byte
	TS    time.Time
	Stage Stage
	// Site is the host label of the shop being scraped.
	Site string
	URL  string
	// Worker is the 1-based worker id for worker and page stages.
	Worker  int
	Attempt int
	// Count carries stage-specific totals: discovered URLs, exported rows,
	// extracted variations.
	Count int64
	Dur   time.Duration
	// Note holds short context such as error text or the variation source.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError, StageDiscovered, StageExportDone:
	case StageWorkerStart, StageWorkerStop:
		if e.Worker <= 0 {
			return errors.New("worker stages require a worker id")
		}
	case StagePageDone, StagePageRetry, StagePageFailed:
		if e.URL == "" {
			return fmt.Errorf("%s requires url", e.Stage)
		}
	case StageRateDelay:
		if e.Site == "" {
			return errors.New("rate delay requires site")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID returns the run id as a uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
