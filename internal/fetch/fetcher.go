// Package fetch retrieves message details concurrently.
package fetch

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshsymonds/gmail-checker/internal/gmail"
)

const maxDefaultWorkers = 32

// FetchError records a failed fetch of a single message.
type FetchError struct {
	ID  gmail.MessageID
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch message %s: %v", e.ID, e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

// Result is the outcome for one id; exactly one of Detail or Err is meaningful.
type Result struct {
	Detail Detail
	Err    error
}

// Fetcher fans out one Get call per message id.
type Fetcher struct {
	Client   gmail.Client
	Workers  int            // <= 0 selects DefaultWorkers
	Location *time.Location // nil means time.Local
}

// NewFetcher returns a Fetcher with the default pool width.
func NewFetcher(client gmail.Client) *Fetcher {
	return &Fetcher{Client: client, Location: time.Local}
}

// DefaultWorkers mirrors a typical thread-pool default: NumCPU+4, capped at 32.
func DefaultWorkers() int {
	return min(maxDefaultWorkers, runtime.NumCPU()+4)
}

// FetchAll fetches every id and returns once all fetches have settled.
// results[i] corresponds to ids[i]; a failed fetch never affects its siblings.
func (f *Fetcher) FetchAll(ctx context.Context, ids []gmail.MessageID) []Result {
	results := make([]Result, len(ids))
	if len(ids) == 0 {
		return results
	}
	workers := f.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			msg, err := f.Client.Get(ctx, id)
			if err != nil {
				results[i] = Result{Err: &FetchError{ID: id, Err: err}}
				return nil
			}
			if msg.ID == "" {
				msg.ID = id
			}
			results[i] = Result{Detail: ParseDetail(msg, f.Location)}
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; failures live in results
	return results
}
