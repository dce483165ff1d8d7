// Package jobs contains the background task definitions and the Asynq worker
// bootstrap. The API enqueues; the worker binary processes.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskChallanPDF renders a single delivery challan to PDF.
	TaskChallanPDF = "challan:pdf"
	// TaskChallanArchive bundles several challan PDFs into one archive.
	TaskChallanArchive = "challan:archive"
	// TaskIdempotencyCleanup prunes stale idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// ChallanPDFPayload identifies the challan to render.
type ChallanPDFPayload struct {
	ChallanID int64 `json:"challan_id"`
}

// NewChallanPDFTask constructs the render task.
func NewChallanPDFTask(challanID int64) (*asynq.Task, error) {
	data, err := json.Marshal(ChallanPDFPayload{ChallanID: challanID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChallanPDF, data, asynq.Queue(QueueDefault)), nil
}

// ChallanArchivePayload identifies the challans to bundle.
type ChallanArchivePayload struct {
	ChallanIDs []int64 `json:"challan_ids"`
}

// NewChallanArchiveTask constructs the archive task.
func NewChallanArchiveTask(challanIDs []int64) (*asynq.Task, error) {
	data, err := json.Marshal(ChallanArchivePayload{ChallanIDs: challanIDs})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChallanArchive, data, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload carries scheduling metadata.
type IdempotencyCleanupPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewIdempotencyCleanupTask constructs the nightly cleanup task.
func NewIdempotencyCleanupTask(at time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault)), nil
}
