package delivery

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// FailureLog persists failures as JSON lines ({doc_id, error, at}), one per
// rejected document, appended as they occur. Safe for concurrent use.
type FailureLog struct {
	mu sync.Mutex
	f  *os.File
}

// OpenFailureLog opens (appending) or creates the failure log file.
func OpenFailureLog(path string) (*FailureLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open failure log: %w", err)
	}
	return &FailureLog{f: f}, nil
}

type failureLine struct {
	DocID string    `json:"doc_id"`
	Err   string    `json:"error"`
	At    time.Time `json:"at"`
}

// Record implements FailureRecorder. Write errors are swallowed: the failure
// log must never take down a delivery run.
func (l *FailureLog) Record(docID, errMsg string) {
	line, err := json.Marshal(failureLine{DocID: docID, Err: errMsg, At: time.Now().UTC()})
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.f.Write(append(line, '\n'))
}

// Close flushes and closes the underlying file.
func (l *FailureLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
