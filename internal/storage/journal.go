package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry is one line of the activity journal.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	TabID     int       `json:"tab_id,omitempty"`
	Detail    any       `json:"detail,omitempty"`
}

// Journal writes entries asynchronously as JSON lines into
// baseDir/<date>/journal.jsonl, rotating by size with lumberjack.
type Journal struct {
	baseDir   string
	maxSizeMB int

	writeCh chan Entry
	done    chan struct{}
	wg      sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
}

// NewJournal starts a journal writer. bufferSize bounds queued entries;
// entries beyond it are dropped rather than blocking the caller.
func NewJournal(baseDir string, bufferSize, maxSizeMB int) *Journal {
	j := &Journal{
		baseDir:   baseDir,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan Entry, bufferSize),
		done:      make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writeLoop()
	return j
}

// Record queues an entry. A zero Timestamp is filled with the current time.
func (j *Journal) Record(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case <-j.done:
		return fmt.Errorf("journal is closed")
	default:
	}
	select {
	case j.writeCh <- e:
		return nil
	default:
		slog.Warn("journal buffer full, dropping entry", "kind", e.Kind)
		return fmt.Errorf("buffer full")
	}
}

// Close stops the writer after flushing queued entries.
func (j *Journal) Close() error {
	close(j.done)
	j.wg.Wait()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.logger != nil {
		return j.logger.Close()
	}
	return nil
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()
	for {
		select {
		case e := <-j.writeCh:
			j.write(e)
		case <-j.done:
			for {
				select {
				case e := <-j.writeCh:
					j.write(e)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) write(e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("journal marshal failed", "kind", e.Kind, "error", err)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	date := e.Timestamp.UTC().Format("2006-01-02")
	if j.logger == nil || date != j.currentDate {
		if err := j.rotateLocked(date); err != nil {
			slog.Error("journal rotate failed", "date", date, "error", err)
			return
		}
	}
	if _, err := j.logger.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "kind", e.Kind, "error", err)
	}
}

func (j *Journal) rotateLocked(date string) error {
	if j.logger != nil {
		if err := j.logger.Close(); err != nil {
			slog.Debug("journal close previous file failed", "error", err)
		}
		j.logger = nil
	}

	dir := filepath.Join(j.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	j.logger = &lumberjack.Logger{
		Filename:   filepath.Join(dir, "journal.jsonl"),
		MaxSize:    j.maxSizeMB,
		MaxBackups: 20,
		MaxAge:     30,
	}
	j.currentDate = date
	slog.Debug("journal file opened", "dir", dir)
	return nil
}
