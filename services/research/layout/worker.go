// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianResearch/services/research/export"
)

var (
	// ErrWorkerStopped is returned for submissions against a stopped
	// worker, and delivered as Response.Err for requests still queued
	// at stop time.
	ErrWorkerStopped = errors.New("layout worker stopped")

	// ErrMissingRequestID rejects a submission without a request id.
	// The id is how callers match and discard superseded responses, so
	// it is mandatory.
	ErrMissingRequestID = errors.New("layout request without request id")
)

// Request is one layout computation order.
type Request struct {
	// RequestID is the caller-supplied correlation id. Responses carry
	// it back so overlapping in-flight requests are never confused.
	RequestID string `json:"request_id"`

	// Nodes, Edges are the view to lay out.
	Nodes []export.ViewNode `json:"nodes"`
	Edges []export.ViewEdge `json:"edges"`
}

// Response is the result of one layout computation.
type Response struct {
	// RequestID echoes the request's correlation id.
	RequestID string `json:"request_id"`

	// Layout is the computed layout, nil when Err is set.
	Layout *Layout `json:"layout,omitempty"`

	// Err is the computation failure, nil on success. Requests do not
	// observe cancellation; a superseded request completes normally
	// and its response is discarded by the caller via RequestID.
	Err error `json:"-"`
}

// workItem pairs a request with its reply channel. The submit-time
// context rides along so spans parent into the caller's trace.
type workItem struct {
	ctx   context.Context
	req   Request
	reply chan Response
}

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	// Workers is the number of computation goroutines.
	// Default: 2
	Workers int

	// QueueSize is the pending request buffer.
	// Default: 16
	QueueSize int
}

// DefaultWorkerOptions returns sensible defaults.
func DefaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		Workers:   2,
		QueueSize: 16,
	}
}

// WorkerOption is a functional option for configuring a Worker.
type WorkerOption func(*WorkerOptions)

// WithWorkers sets the number of computation goroutines.
func WithWorkers(n int) WorkerOption {
	return func(o *WorkerOptions) {
		if n > 0 {
			o.Workers = n
		}
	}
}

// WithQueueSize sets the pending request buffer size.
func WithQueueSize(n int) WorkerOption {
	return func(o *WorkerOptions) {
		if n > 0 {
			o.QueueSize = n
		}
	}
}

// Worker offloads layout computation from session goroutines.
//
// # Description
//
// The only asynchrony boundary around the graph core. Submit queues a
// request and returns a single-use reply channel; a pool goroutine
// computes through the shared cache and delivers exactly one Response.
// There is no per-request cancellation: a caller that no longer wants
// a result drops it by request id.
//
// # Thread Safety
//
// Safe for concurrent use.
type Worker struct {
	cache   *Cache
	options WorkerOptions

	requests chan workItem
	quit     chan struct{}
	wg       sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWorker creates a layout worker over the given cache. A nil cache
// gets a default cache and engine.
func NewWorker(cache *Cache, opts ...WorkerOption) *Worker {
	if cache == nil {
		cache = NewCache(nil)
	}
	options := DefaultWorkerOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Worker{
		cache:    cache,
		options:  options,
		requests: make(chan workItem, options.QueueSize),
		quit:     make(chan struct{}),
	}
}

// Start launches the computation goroutines. Idempotent.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		for i := 0; i < w.options.Workers; i++ {
			w.wg.Add(1)
			go w.run()
		}
	})
}

// Stop shuts the pool down and waits for in-flight computations.
// Requests still queued are answered with ErrWorkerStopped. Idempotent.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	w.wg.Wait()
}

// Submit queues a layout request.
//
// # Outputs
//
//   - <-chan Response: Buffered channel delivering exactly one
//     response for this request.
//   - error: ErrMissingRequestID for an unidentifiable request,
//     ErrWorkerStopped after Stop, or the context error if ctx ends
//     while the queue is full.
func (w *Worker) Submit(ctx context.Context, req Request) (<-chan Response, error) {
	if req.RequestID == "" {
		return nil, ErrMissingRequestID
	}

	reply := make(chan Response, 1)
	item := workItem{ctx: ctx, req: req, reply: reply}

	select {
	case <-w.quit:
		return nil, ErrWorkerStopped
	default:
	}

	select {
	case w.requests <- item:
		return reply, nil
	case <-w.quit:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// QueueDepth returns the number of requests waiting for a goroutine.
func (w *Worker) QueueDepth() int {
	return len(w.requests)
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.quit:
			w.drain()
			return
		case item := <-w.requests:
			w.process(item)
		}
	}
}

// drain answers queued requests after stop so no reply channel is left
// hanging.
func (w *Worker) drain() {
	for {
		select {
		case item := <-w.requests:
			item.reply <- Response{RequestID: item.req.RequestID, Err: ErrWorkerStopped}
		default:
			return
		}
	}
}

func (w *Worker) process(item workItem) {
	ctx, span := startLayoutSpan(item.ctx, "Compute", len(item.req.Nodes), len(item.req.Edges))
	defer span.End()

	start := time.Now()
	layout, err := w.cache.Layout(ctx, item.req.Nodes, item.req.Edges)
	recordComputeLatency(ctx, time.Since(start), len(item.req.Nodes))
	if err != nil {
		span.RecordError(err)
	}

	item.reply <- Response{RequestID: item.req.RequestID, Layout: layout, Err: err}
}
