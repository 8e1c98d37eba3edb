package pipeline

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Failure is a per-item error with enough identity to find the offending
// input: an event hash, raw key, source ID or athlete ID.
type Failure struct {
	Stage string
	Item  string
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Stage, f.Item, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Failures accumulates per-item failures across a run. It is safe for
// concurrent use.
type Failures struct {
	mu    sync.Mutex
	items []Failure
}

// Record logs the failure and keeps it for the run report. A nil Failures
// only logs.
func (fs *Failures) Record(stage, item string, err error) {
	zap.L().Error("item failed",
		zap.String("stage", stage),
		zap.String("item", item),
		zap.Error(err),
	)
	if fs == nil {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.items = append(fs.items, Failure{Stage: stage, Item: item, Err: err})
}

// List returns the failures recorded so far, in recording order.
func (fs *Failures) List() []Failure {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]Failure(nil), fs.items...)
}

// Len returns the number of failures recorded.
func (fs *Failures) Len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.items)
}
