// Package monitor watches the complaint backend and pushes emergency alerts
// to Telegram.
//
// Each cycle:
//  1. Fetch every complaint (admin view)
//  2. Derive emergency alerts from the ones not resolved yet
//  3. Notify alerts that were never sent, through a worker pool
//  4. Save the sent alerts in storage
//  5. Reconcile: alerts whose complaint is now resolved (or gone) are
//     edited to RESOLVED and forgotten
package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"railmon/internal/complaint"
	"railmon/internal/health"
	"railmon/internal/metrics"
	"railmon/internal/query"
	"railmon/internal/storage"
)

// Source lists complaints.
type Source interface {
	AllComplaints(ctx context.Context) ([]complaint.Complaint, error)
}

// Notifier delivers alerts.
type Notifier interface {
	SendAlertMessage(ctx context.Context, a query.Alert, translation string) (string, error)
	MarkResolved(ctx context.Context, messageID, originalText, resolution, by string) error
	SendCriticalAlert(ctx context.Context, errorType, errorMsg string, retryCount int) error
}

// Translator translates complaint text.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Options configures a Monitor.
type Options struct {
	Interval    time.Duration
	MaxFailures int
	Workers     int
	Keywords    []string
	Threshold   float64
}

// Monitor runs fetch cycles.
type Monitor struct {
	source     Source
	notifier   Notifier
	translator Translator
	store      *storage.Storage
	engine     *query.Engine
	health     *health.Monitor
	opts       Options
}

// New creates a Monitor. translator and hm may be nil.
func New(source Source, notifier Notifier, translator Translator, store *storage.Storage, engine *query.Engine, hm *health.Monitor, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	if opts.MaxFailures < 1 {
		opts.MaxFailures = 3
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if engine == nil {
		engine = query.New()
	}
	return &Monitor{
		source:     source,
		notifier:   notifier,
		translator: translator,
		store:      store,
		engine:     engine,
		health:     hm,
		opts:       opts,
	}
}

// Result summarizes one cycle.
type Result struct {
	Fetched    int
	Actionable int
	Alerts     int
	Notified   int
	Failed     int
	Reconciled int
}

// RunOnce performs a single fetch cycle.
//
// A failed notification is not saved, so it is retried next cycle.
func (m *Monitor) RunOnce(ctx context.Context) (Result, error) {
	var res Result

	complaints, err := m.source.AllComplaints(ctx)
	if err != nil {
		metrics.FetchCycles.WithLabelValues("error").Inc()
		return res, fmt.Errorf("fetch complaints: %w", err)
	}
	res.Fetched = len(complaints)

	actionable := make([]complaint.Complaint, 0, len(complaints))
	for _, c := range complaints {
		if c.Status != complaint.StatusResolved {
			actionable = append(actionable, c)
		}
	}
	res.Actionable = len(actionable)

	alerts := m.engine.DeriveEmergencyAlerts(actionable, m.opts.Keywords, m.opts.Threshold, 0)
	res.Alerts = len(alerts)

	var fresh []query.Alert
	for _, a := range alerts {
		if m.store.IsNew(a.Complaint.ID) {
			fresh = append(fresh, a)
		}
	}

	if len(fresh) > 0 {
		zap.S().Infof("🆕 %d new emergency alert(s) of %d", len(fresh), len(alerts))
		records := m.notify(ctx, fresh)
		res.Notified = len(records)
		res.Failed = len(fresh) - len(records)

		if err := m.store.SaveMultiple(records); err != nil {
			metrics.FetchCycles.WithLabelValues("error").Inc()
			return res, fmt.Errorf("save alerts: %w", err)
		}
	} else {
		zap.S().Info("✓ No new emergency alerts")
	}

	res.Reconciled = m.reconcile(ctx, complaints)

	metrics.FetchCycles.WithLabelValues("ok").Inc()
	return res, nil
}

// notify fans alerts out to the worker pool and returns records for the
// ones that were delivered.
func (m *Monitor) notify(ctx context.Context, alerts []query.Alert) []storage.Record {
	pool := newWorkerPool(ctx, m, m.opts.Workers)

	go func() {
		for _, a := range alerts {
			pool.submit(a)
		}
		pool.close()
	}()

	now := m.engine.Now()
	records := make([]storage.Record, 0, len(alerts))
	for r := range pool.results {
		if r.Error != nil {
			continue
		}
		records = append(records, storage.Record{
			ComplaintID: r.Alert.Complaint.ID,
			MessageID:   r.MessageID,
			Priority:    r.Alert.Priority,
			Status:      r.Alert.Complaint.Status,
			NotifiedAt:  now,
		})
	}
	return records
}

// reconcile closes alerts whose complaint was resolved or removed on the
// backend, and records status changes for the rest. It returns the number of
// alerts closed.
func (m *Monitor) reconcile(ctx context.Context, complaints []complaint.Complaint) int {
	byID := make(map[string]complaint.Complaint, len(complaints))
	for _, c := range complaints {
		byID[c.ID] = c
	}

	closed := 0
	for _, rec := range m.store.All() {
		c, ok := byID[rec.ComplaintID]

		if ok && c.Status != complaint.StatusResolved {
			if c.Status.Valid() && c.Status != rec.Status {
				if _, err := m.store.UpdateStatus(rec.ComplaintID, c.Status); err != nil {
					zap.S().Warnf("⚠️  Failed to record status for %s: %v", rec.ComplaintID, err)
				}
			}
			continue
		}

		summary := fmt.Sprintf("Complaint %s is no longer listed", rec.ComplaintID)
		resolution := ""
		by := ""
		if ok {
			summary = fmt.Sprintf("Complaint %s | Train %s | %s | %s", c.ID, c.TrainNumber, c.Route(), c.Classification)
			resolution = c.Resolution
			by = c.AssignedTo
		}

		if rec.MessageID != "" {
			if err := m.notifier.MarkResolved(ctx, rec.MessageID, summary, resolution, by); err != nil {
				zap.S().Warnf("⚠️  Failed to mark alert %s resolved: %v", rec.ComplaintID, err)
			}
		}
		removed, err := m.store.RemoveIfExists(rec.ComplaintID)
		if err != nil {
			zap.S().Warnf("⚠️  Failed to remove %s from storage: %v", rec.ComplaintID, err)
			continue
		}
		if removed {
			closed++
			zap.S().Infof("🗑️  Complaint %s resolved, alert closed", rec.ComplaintID)
		}
	}
	return closed
}

// Run calls RunOnce immediately and then every Interval until ctx is
// cancelled. After MaxFailures consecutive failures one critical alert is
// sent; the counter resets on the next success.
func (m *Monitor) Run(ctx context.Context) error {
	zap.S().Infof("⏰ Starting monitor loop - will check every %v", m.opts.Interval)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		zap.S().Infof("📬 Fetching complaints... (%s)", time.Now().Format("2006-01-02 15:04:05"))
		res, err := m.RunOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if err != nil {
			failures++
			zap.S().Errorf("❌ Fetch cycle failed (%d/%d): %v", failures, m.opts.MaxFailures, err)
			if failures == m.opts.MaxFailures {
				if alertErr := m.notifier.SendCriticalAlert(ctx, "Fetch failure", err.Error(), failures); alertErr != nil {
					zap.S().Errorf("❌ %v", alertErr)
				}
			}
		} else {
			failures = 0
			zap.S().Infof("✅ Cycle done: fetched=%d actionable=%d alerts=%d notified=%d failed=%d closed=%d",
				res.Fetched, res.Actionable, res.Alerts, res.Notified, res.Failed, res.Reconciled)
		}
		if m.health != nil {
			m.health.RecordFetch(err, m.store.Len())
		}
		zap.S().Info("═══════════════════════════════════════════════════════════")

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
