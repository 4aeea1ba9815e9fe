package audit

import (
	"context"
	"time"

	"github.com/nerrad567/devicemgr/internal/device"
)

// writeTimeout bounds each journal insert.
const writeTimeout = 5 * time.Second

// Logger is the subset of logging.Logger the recorder needs.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder appends every registry change to a Repository.
// Insert failures are logged and counted; they never fail the mutation.
type Recorder struct {
	ctx      context.Context //nolint:containedctx // Observer callbacks carry no context
	repo     Repository
	source   string
	logger   Logger
	failures int
}

// NewRecorder creates a Recorder tagging entries with source.
// ctx bounds every insert; cancelling it stops further writes.
func NewRecorder(ctx context.Context, repo Repository, source string) *Recorder {
	return &Recorder{ctx: ctx, repo: repo, source: source, logger: noopLogger{}}
}

// SetLogger sets the logger used for insert failures.
func (r *Recorder) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Failures returns the number of changes that could not be journalled.
func (r *Recorder) Failures() int {
	return r.failures
}

// DeviceChanged implements device.Observer.
func (r *Recorder) DeviceChanged(c device.Change) {
	ctx, cancel := context.WithTimeout(r.ctx, writeTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, NewEntry(c, r.source)); err != nil {
		r.failures++
		r.logger.Warn("failed to journal device change",
			"op", string(c.Op),
			"device_id", c.Device.ID,
			"error", err,
		)
	}
}
