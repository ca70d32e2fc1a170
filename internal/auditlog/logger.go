package auditlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one audit record for a single control-plane request.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	Request       string    `json:"request"`         // e.g. "iface.add", "ip4.route.add"
	Target        string    `json:"target,omitempty"` // interface name/id, prefix, etc.
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	PrevHash      string    `json:"prev_hash,omitempty"`
	Hash          string    `json:"hash,omitempty"`
}

// Logger appends Events to a file as JSON lines, mirroring each record to
// stderr for journald capture. When a non-nil HMAC key is supplied, each
// record's Hash covers the previous record's Hash, forming a tamper-evident
// chain — breaking any single record invalidates every record after it.
type Logger struct {
	file     *os.File
	key      []byte
	mu       sync.Mutex
	lastHash string
}

// New opens (creating if needed) the audit log at path. key may be nil to
// disable hash chaining.
func New(path string, key []byte) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &Logger{file: file, key: key}, nil
}

// Record appends one event, stamping its timestamp, correlation id (if
// unset), and chain hash. The caller supplies everything else.
func (l *Logger) Record(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Timestamp = time.Now()
	if e.CorrelationID == "" {
		e.CorrelationID = uuid.NewString()
	}
	e.PrevHash = l.lastHash
	e.Hash = computeRowHash(l.key, l.lastHash, e)
	l.lastHash = e.Hash

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, string(data))
	return l.file.Sync()
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// Success is a convenience wrapper for a successful request.
func (l *Logger) Success(request, target string, d time.Duration) {
	l.Record(Event{Request: request, Target: target, Success: true, DurationMS: d.Milliseconds()})
}

// Failure is a convenience wrapper for a failed request.
func (l *Logger) Failure(request, target string, d time.Duration, err error) {
	ev := Event{Request: request, Target: target, Success: false, DurationMS: d.Milliseconds()}
	if err != nil {
		ev.Error = err.Error()
	}
	l.Record(ev)
}
