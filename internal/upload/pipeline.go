// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

// Package upload transfers batches of video files to the wall server one at
// a time. Sequential transfer is deliberate: it bounds bandwidth and gives
// deterministic, debuggable per-file progress. File N+1 never starts before
// file N reaches a terminal state.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wallwatch/wallwatch/internal/logging"
	"github.com/wallwatch/wallwatch/internal/metrics"
	"github.com/wallwatch/wallwatch/internal/models"
	"github.com/wallwatch/wallwatch/internal/state"
)

// ErrFileTimeout marks a transfer that exceeded the per-file bound. It is
// that file's failure, never the batch's.
var ErrFileTimeout = errors.New("upload: per-file timeout exceeded")

// File is one batch item: a name and an opener yielding its content. The
// opener lets the pipeline defer holding file handles until the item's turn.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// Event is one progress notification. Events for a given file arrive in
// order: a starting event at 0%, proportional progress during transfer,
// then exactly one terminal event.
type Event struct {
	TaskID   string
	FileName string
	Index    int
	Status   models.UploadStatus
	// Progress is the file's own completion in [0,100].
	Progress float64
	// Overall is the batch completion in [0,1], recomputed on every
	// byte-level tick as (completed files + current fraction) / total.
	Overall float64
	Err     error
}

// FailedFile records one failed item in the batch result.
type FailedFile struct {
	FileName string `json:"filename"`
	Error    string `json:"error"`
}

// Summary is the batch result's aggregate count block.
type Summary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BatchResult is the final outcome of one batch.
type BatchResult struct {
	Successful []string                 `json:"successful"`
	Failed     []FailedFile             `json:"failed"`
	Summary    Summary                  `json:"summary"`
	Durations  map[string]time.Duration `json:"durations"`
}

// Config configures the pipeline.
type Config struct {
	// FileTimeout bounds each individual transfer.
	FileTimeout time.Duration

	// TerminalGrace is how long a finished task stays in the active set
	// before being swept, so the dashboard can show the terminal state.
	TerminalGrace time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FileTimeout:   5 * time.Minute,
		TerminalGrace: 3 * time.Second,
	}
}

// Pipeline uploads batches sequentially and tracks task state for the
// dashboard. One batch runs at a time.
type Pipeline struct {
	session *state.Session
	cfg     Config

	mu      sync.Mutex
	tasks   map[string]*models.UploadTask
	order   []string
	running bool

	// sweep timers for terminal tasks, canceled on Close.
	sweepWG sync.WaitGroup
	closed  chan struct{}
	once    sync.Once
}

// NewPipeline creates an upload pipeline bound to the session.
func NewPipeline(session *state.Session, cfg Config) *Pipeline {
	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = DefaultConfig().FileTimeout
	}
	if cfg.TerminalGrace < 0 {
		cfg.TerminalGrace = 0
	}
	return &Pipeline{
		session: session,
		cfg:     cfg,
		tasks:   make(map[string]*models.UploadTask),
		closed:  make(chan struct{}),
	}
}

// Tasks returns a snapshot of the active task set in submission order.
func (p *Pipeline) Tasks() []models.UploadTask {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.UploadTask, 0, len(p.order))
	for _, id := range p.order {
		if t, ok := p.tasks[id]; ok {
			out = append(out, *t)
		}
	}
	return out
}

// Close stops terminal-grace sweepers. In-flight batches finish on their
// own context.
func (p *Pipeline) Close() {
	p.once.Do(func() { close(p.closed) })
	p.sweepWG.Wait()
}

// Run transfers the batch strictly in submission order, emitting events on
// the returned channel. The channel closes after the final terminal event.
// Per-file failures are isolated; the batch always runs to completion
// unless ctx is canceled, in which case remaining files fail with the
// context error.
func (p *Pipeline) Run(ctx context.Context, files []File) (<-chan Event, <-chan BatchResult, error) {
	if len(files) == 0 {
		return nil, nil, errors.New("upload: empty batch")
	}
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, nil, errors.New("upload: batch already running")
	}
	p.running = true
	p.mu.Unlock()

	events := make(chan Event, len(files)*4)
	result := make(chan BatchResult, 1)

	go func() {
		defer close(events)
		defer close(result)
		defer func() {
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
		}()
		result <- p.runBatch(ctx, files, events)
	}()

	return events, result, nil
}

// RunWithCallback adapts the event channel to a callback for callers that
// prefer observer style, blocking until the batch completes.
func (p *Pipeline) RunWithCallback(ctx context.Context, files []File, onEvent func(Event)) (BatchResult, error) {
	events, result, err := p.Run(ctx, files)
	if err != nil {
		return BatchResult{}, err
	}
	for ev := range events {
		if onEvent != nil {
			onEvent(ev)
		}
	}
	return <-result, nil
}

func (p *Pipeline) runBatch(ctx context.Context, files []File, events chan<- Event) BatchResult {
	res := BatchResult{
		Durations: make(map[string]time.Duration, len(files)),
	}
	res.Summary.Total = len(files)
	total := float64(len(files))

	start := time.Now()
	for i, f := range files {
		taskID := uuid.NewString()
		p.addTask(taskID, f)

		completed := float64(i)
		emit := func(status models.UploadStatus, progress float64, err error) {
			events <- Event{
				TaskID:   taskID,
				FileName: f.Name,
				Index:    i,
				Status:   status,
				Progress: progress,
				Overall:  (completed + progress/100) / total,
				Err:      err,
			}
		}

		p.setTask(taskID, func(t *models.UploadTask) {
			t.Status = models.UploadUploading
			t.Active = true
		})
		emit(models.UploadUploading, 0, nil)

		// Progress ticks run on the transport's writer goroutine and can
		// outlive the transfer call when it fails mid-stream. Once the file
		// settles, late ticks are dropped so they cannot reach the event
		// channel after it closes.
		var tickMu sync.Mutex
		settled := false
		fileStart := time.Now()
		err := p.transfer(ctx, f, func(pct float64) {
			tickMu.Lock()
			defer tickMu.Unlock()
			if settled {
				return
			}
			p.setTask(taskID, func(t *models.UploadTask) { t.Progress = pct })
			emit(models.UploadUploading, pct, nil)
		})
		tickMu.Lock()
		settled = true
		tickMu.Unlock()
		dur := time.Since(fileStart)
		res.Durations[f.Name] = dur
		metrics.UploadDuration.Observe(dur.Seconds())

		if err != nil {
			res.Failed = append(res.Failed, FailedFile{FileName: f.Name, Error: err.Error()})
			res.Summary.Failed++
			metrics.UploadFiles.WithLabelValues("failed").Inc()
			p.finishTask(taskID, models.UploadFailed, err, dur)
			logging.Error().Err(err).Str("file", f.Name).Msg("upload failed")
			emit(models.UploadFailed, 100, err)
			continue
		}

		res.Successful = append(res.Successful, f.Name)
		res.Summary.Successful++
		metrics.UploadFiles.WithLabelValues("completed").Inc()
		p.finishTask(taskID, models.UploadCompleted, nil, dur)
		// Asset list entry only on confirmed success.
		p.session.Cache.AddVideo(f.Name)
		emit(models.UploadCompleted, 100, nil)
	}

	logging.Info().
		Int("total", res.Summary.Total).
		Int("successful", res.Summary.Successful).
		Int("failed", res.Summary.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("upload batch finished")
	return res
}

// transfer uploads one file under the per-file timeout, mapping deadline
// expiry to ErrFileTimeout.
func (p *Pipeline) transfer(ctx context.Context, f File, onPct func(float64)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	fileCtx, cancel := context.WithTimeout(ctx, p.cfg.FileTimeout)
	defer cancel()

	// sent is cumulative; the counter wants per-tick deltas.
	var lastSent int64
	err = p.session.Transport.UploadVideo(fileCtx, f.Name, rc, f.Size, func(sent, totalBytes int64) {
		metrics.UploadBytes.Add(float64(sent - lastSent))
		lastSent = sent
		if totalBytes > 0 {
			onPct(100 * float64(sent) / float64(totalBytes))
		}
	})
	if err != nil {
		if fileCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return ErrFileTimeout
		}
		return err
	}
	return nil
}

func (p *Pipeline) addTask(id string, f File) {
	p.mu.Lock()
	p.tasks[id] = &models.UploadTask{
		ID:       id,
		FileName: f.Name,
		Size:     f.Size,
		Status:   models.UploadQueued,
	}
	p.order = append(p.order, id)
	p.mu.Unlock()
}

func (p *Pipeline) setTask(id string, mutate func(*models.UploadTask)) {
	p.mu.Lock()
	if t, ok := p.tasks[id]; ok {
		mutate(t)
	}
	p.mu.Unlock()
}

// finishTask records the terminal state and schedules the task's removal
// from the active set after the grace period.
func (p *Pipeline) finishTask(id string, status models.UploadStatus, err error, dur time.Duration) {
	p.setTask(id, func(t *models.UploadTask) {
		t.Status = status
		t.Active = false
		t.Progress = 100
		t.Duration = dur
		if err != nil {
			t.Error = err.Error()
		}
	})

	p.sweepWG.Add(1)
	go func() {
		defer p.sweepWG.Done()
		select {
		case <-time.After(p.cfg.TerminalGrace):
		case <-p.closed:
		}
		p.mu.Lock()
		delete(p.tasks, id)
		for i, oid := range p.order {
			if oid == id {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
		p.mu.Unlock()
	}()
}
