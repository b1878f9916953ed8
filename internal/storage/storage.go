// Package storage remembers which complaints already have a live Telegram
// alert.
//
// This package implements a two-tier storage system:
//  1. CSV file for persistence (survives restarts)
//  2. In-memory map for O(1) lookups
//
// All operations are protected by a mutex and safe for concurrent use.
package storage

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"railmon/internal/complaint"
	"railmon/internal/metrics"
)

// bufferSize for buffered I/O (64KB)
const bufferSize = 64 * 1024

var header = []string{"complaint_id", "message_id", "priority", "status", "notified_at"}

// Record is one complaint with a live alert.
//
// Fields:
//   - ComplaintID: Backend complaint id
//   - MessageID: Telegram message id, used to edit the alert later
//   - Priority: Critical or High at the time of notification
//   - Status: Last status the monitor saw
//   - NotifiedAt: When the alert was sent
type Record struct {
	ComplaintID string
	MessageID   string
	Priority    complaint.Priority
	Status      complaint.Status
	NotifiedAt  time.Time
}

func (r Record) row() []string {
	notified := ""
	if !r.NotifiedAt.IsZero() {
		notified = r.NotifiedAt.UTC().Format(time.RFC3339)
	}
	return []string{r.ComplaintID, r.MessageID, string(r.Priority), string(r.Status), notified}
}

func recordFromRow(row []string) (Record, bool) {
	if len(row) == 0 || row[0] == "" {
		return Record{}, false
	}
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	r := Record{
		ComplaintID: row[0],
		MessageID:   get(1),
		Priority:    complaint.Priority(get(2)),
		Status:      complaint.Status(get(3)),
	}
	if t, err := time.Parse(time.RFC3339, get(4)); err == nil {
		r.NotifiedAt = t
	}
	return r, true
}

// Storage provides thread-safe storage for alert records.
//
// Data flow:
//
//	Read:   CSV → map on startup → served from the map
//	Write:  append to CSV → update the map
//	Delete: remove from the map → rewrite the CSV
type Storage struct {
	mu      sync.Mutex
	path    string
	records map[string]Record
}

// New creates a Storage backed by path and loads any existing records.
//
// A missing file is normal on first run. A corrupt file is logged and
// treated as empty so the monitor can still start.
func New(path string) *Storage {
	s := &Storage{path: path, records: make(map[string]Record)}
	s.loadFromFile()
	metrics.TrackedAlerts.Set(float64(len(s.records)))
	return s
}

// Path returns the CSV file path.
func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) loadFromFile() {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			zap.S().Infof("📋 No alert file at %s yet, starting empty", s.path)
		} else {
			zap.S().Warnf("⚠️  Failed to open alert file: %v", err)
		}
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	count := 0
	for i := 0; ; i++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				zap.S().Warnf("⚠️  Failed to read alert file: %v", err)
				break
			}
			zap.S().Warnf("⚠️  Skipping unreadable row in %s: %v", s.path, err)
			continue
		}
		if i == 0 && len(row) > 0 && row[0] == header[0] {
			continue
		}
		if r, ok := recordFromRow(row); ok {
			s.records[r.ComplaintID] = r
			count++
		}
	}

	zap.S().Infof("📚 Loaded %d tracked alert(s) from storage", count)
}

// IsNew reports whether complaintID has no record yet.
func (s *Storage) IsNew(complaintID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[complaintID]
	return !ok
}

// Get returns the record for complaintID.
func (s *Storage) Get(complaintID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[complaintID]
	return r, ok
}

// GetMessageID returns the Telegram message id, or "" if not tracked.
func (s *Storage) GetMessageID(complaintID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[complaintID].MessageID
}

// Len returns the number of tracked complaints.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// All returns every record sorted by complaint id.
func (s *Storage) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Storage) sortedLocked() []Record {
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ComplaintID < out[j].ComplaintID })
	return out
}

// SaveMultiple appends records to the CSV in one write and then updates
// the map. Nothing is kept in memory if the write fails. A record whose id
// is already tracked replaces the old one.
func (s *Storage) SaveMultiple(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	replacing := false
	for _, r := range records {
		if _, ok := s.records[r.ComplaintID]; ok {
			replacing = true
			break
		}
	}
	if replacing {
		next := make(map[string]Record, len(s.records)+len(records))
		for id, r := range s.records {
			next[id] = r
		}
		for _, r := range records {
			next[r.ComplaintID] = r
		}
		prev := s.records
		s.records = next
		if err := s.rewriteFile(); err != nil {
			s.records = prev
			return err
		}
		metrics.TrackedAlerts.Set(float64(len(s.records)))
		return nil
	}

	if err := s.appendFile(records); err != nil {
		return err
	}
	for _, r := range records {
		s.records[r.ComplaintID] = r
	}
	metrics.TrackedAlerts.Set(float64(len(s.records)))
	return nil
}

// UpdateStatus records the latest status seen for a tracked complaint.
// It reports false when the complaint is not tracked.
func (s *Storage) UpdateStatus(complaintID string, status complaint.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[complaintID]
	if !ok {
		return false, nil
	}
	if r.Status == status {
		return true, nil
	}
	r.Status = status
	s.records[complaintID] = r
	return true, s.rewriteFile()
}

// Remove deletes a record and rewrites the file.
func (s *Storage) Remove(complaintID string) error {
	_, err := s.RemoveIfExists(complaintID)
	return err
}

// RemoveIfExists atomically checks for and removes a record, so two
// goroutines resolving the same complaint remove it only once.
//
// Returns:
//   - bool: true if the record was removed, false if it didn't exist
//   - error: File I/O error, nil on success
func (s *Storage) RemoveIfExists(complaintID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[complaintID]; !ok {
		return false, nil
	}
	delete(s.records, complaintID)
	metrics.TrackedAlerts.Set(float64(len(s.records)))
	return true, s.rewriteFile()
}

// appendFile writes rows to the end of the file, adding the header when the
// file is new. Caller must hold the lock.
func (s *Storage) appendFile(records []Record) error {
	if err := ensureDir(s.path); err != nil {
		return err
	}
	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open alert file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat alert file: %w", err)
	}

	buffered := bufio.NewWriterSize(file, bufferSize)
	writer := csv.NewWriter(buffered)
	if info.Size() == 0 {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	for _, r := range records {
		if err := writer.Write(r.row()); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buffered.Flush()
}

// rewriteFile replaces the file with the in-memory records, writing to a
// temporary file first so a crash never leaves a half-written CSV.
// Caller must hold the lock.
func (s *Storage) rewriteFile() error {
	if err := ensureDir(s.path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp alert file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	buffered := bufio.NewWriterSize(tmp, bufferSize)
	writer := csv.NewWriter(buffered)
	if err := writer.Write(header); err != nil {
		tmp.Close()
		return err
	}
	for _, r := range s.sortedLocked() {
		if err := writer.Write(r.row()); err != nil {
			tmp.Close()
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := buffered.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
