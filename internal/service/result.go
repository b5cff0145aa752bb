package service

import (
	"errors"
	"fmt"

	"dayahead/internal/model"
	"dayahead/internal/planner"
	"dayahead/internal/storage"
)

// BackendOutcome is the result of one backend's upsert of a chunk.
type BackendOutcome struct {
	Backend string
	Summary storage.Summary
	Err     error
}

// ChunkResult describes one fetched window. Err is set when the document could
// not be fetched or interpreted; backend failures are only in Backends.
type ChunkResult struct {
	Window   planner.Window
	Records  int
	Err      error
	Backends []BackendOutcome
}

// Failed reports whether the chunk or any backend failed.
func (c ChunkResult) Failed() bool {
	if c.Err != nil {
		return true
	}
	for _, b := range c.Backends {
		if b.Err != nil {
			return true
		}
	}
	return false
}

// Result aggregates an on-demand synchronization.
type Result struct {
	PassID string
	Pair   model.DomainPair
	Chunks []ChunkResult
}

// Failed reports whether any chunk failed.
func (r Result) Failed() bool {
	for _, c := range r.Chunks {
		if c.Failed() {
			return true
		}
	}
	return false
}

// Records returns the number of expanded records across chunks.
func (r Result) Records() int {
	total := 0
	for _, c := range r.Chunks {
		total += c.Records
	}
	return total
}

// Err joins every chunk and backend error, or nil.
func (r Result) Err() error {
	var errs []error
	for _, c := range r.Chunks {
		if c.Err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w",
				c.Window.Start.Format("2006-01-02T15:04Z"), c.Window.End.Format("2006-01-02T15:04Z"), c.Err))
		}
		for _, b := range c.Backends {
			if b.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", b.Backend, b.Err))
			}
		}
	}
	return errors.Join(errs...)
}
