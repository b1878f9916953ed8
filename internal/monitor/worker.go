package monitor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"railmon/internal/metrics"
	"railmon/internal/query"
)

// NotifyResult is the outcome of notifying one alert.
type NotifyResult struct {
	Alert     query.Alert
	MessageID string
	Error     error
}

// worker represents a single worker in the notification pool.
//
// Lifecycle:
//  1. Start: Begin listening on the jobs channel
//  2. Process: Translate the complaint text and send the Telegram alert
//  3. Result: Send the result to the results channel
//  4. Stop: Exit when the jobs channel is closed
type worker struct {
	id      int
	jobs    <-chan query.Alert
	results chan<- NotifyResult
	ctx     context.Context
	m       *Monitor
	wg      *sync.WaitGroup
}

// workerPool manages a pool of concurrent notification workers.
//
// Telegram sends are rate limited by the client, so the pool mostly
// overlaps translation calls with sends.
type workerPool struct {
	jobs    chan query.Alert
	results chan NotifyResult
	wg      sync.WaitGroup
}

// newWorkerPool creates and starts workerCount workers.
func newWorkerPool(ctx context.Context, m *Monitor, workerCount int) *workerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	zap.S().Debugf("  → Creating worker pool with %d workers...", workerCount)

	pool := &workerPool{
		jobs:    make(chan query.Alert, 100),
		results: make(chan NotifyResult, 100),
	}

	for i := 0; i < workerCount; i++ {
		w := &worker{
			id:      i + 1,
			jobs:    pool.jobs,
			results: pool.results,
			ctx:     ctx,
			m:       m,
			wg:      &pool.wg,
		}
		pool.wg.Add(1)
		go w.start()
	}

	return pool
}

// submit adds an alert to the queue. It blocks while the buffer is full.
func (p *workerPool) submit(a query.Alert) {
	p.jobs <- a
}

// close stops accepting jobs, waits for the workers and closes results.
func (p *workerPool) close() {
	close(p.jobs)
	p.wg.Wait()
	close(p.results)
}

func (w *worker) start() {
	defer w.wg.Done()

	for job := range w.jobs {
		// After cancellation the remaining jobs are drained as failures so
		// close() never blocks.
		if err := w.ctx.Err(); err != nil {
			w.results <- NotifyResult{Alert: job, Error: err}
			continue
		}

		zap.S().Debugf("  [Worker #%d] Notifying complaint %s", w.id, job.Complaint.ID)
		result := w.process(job)
		w.results <- result

		if result.Error != nil {
			zap.S().Warnf("  [Worker #%d] ✗ Failed to notify %s: %v", w.id, job.Complaint.ID, result.Error)
			metrics.AlertsNotified.WithLabelValues(string(job.Priority), "error").Inc()
		} else {
			zap.S().Infof("  [Worker #%d] ✓ Notified %s (%s)", w.id, job.Complaint.ID, job.Priority)
			metrics.AlertsNotified.WithLabelValues(string(job.Priority), "ok").Inc()
		}
	}
}

// process translates the complaint text when a translator is configured and
// sends the alert. A failed translation still sends the original text.
func (w *worker) process(a query.Alert) NotifyResult {
	translation := ""
	if w.m.translator != nil && a.Complaint.Text != "" {
		out, err := w.m.translator.Translate(w.ctx, a.Complaint.Text)
		if err != nil {
			zap.S().Warnf("  ⚠️  Translation failed for %s: %v", a.Complaint.ID, err)
		} else if out != a.Complaint.Text {
			translation = out
		}
	}

	messageID, err := w.m.notifier.SendAlertMessage(w.ctx, a, translation)
	if err != nil {
		return NotifyResult{Alert: a, Error: fmt.Errorf("send alert: %w", err)}
	}
	return NotifyResult{Alert: a, MessageID: messageID}
}
