package sessions

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// LogEntry is one record in the append-only message log.
type LogEntry struct {
	SessionID string    `json:"sessionId"`
	MessageID int       `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
}

// Logger appends user messages to logs.json. Writes go through a
// read-merge-write cycle so concurrent sessions sharing the file do
// not clobber each other's records.
type Logger struct {
	mu        sync.Mutex
	paths     *Paths
	sessionID string
	messageID int
}

// NewLogger opens the message log for one session, continuing the
// session's message numbering if records already exist.
func NewLogger(paths *Paths, sessionID string) (*Logger, error) {
	if err := paths.Ensure(); err != nil {
		return nil, err
	}
	l := &Logger{paths: paths, sessionID: sessionID}

	entries, err := l.readAll()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.SessionID == sessionID && e.MessageID >= l.messageID {
			l.messageID = e.MessageID + 1
		}
	}
	return l, nil
}

// Log appends one record.
func (l *Logger) Log(entryType, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readAll()
	if err != nil {
		return err
	}
	entries = append(entries, LogEntry{
		SessionID: l.sessionID,
		MessageID: l.messageID,
		Timestamp: time.Now().UTC(),
		Type:      entryType,
		Message:   message,
	})
	l.messageID++

	return l.writeAll(entries)
}

// Entries returns this session's records in message order.
func (l *Logger) Entries() ([]LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.readAll()
	if err != nil {
		return nil, err
	}
	var out []LogEntry
	for _, e := range all {
		if e.SessionID == l.sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *Logger) readAll() ([]LogEntry, error) {
	data, err := os.ReadFile(l.paths.LogFile())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read message log: %w", err)
	}
	var entries []LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt log must not take the session down; start fresh.
		return nil, nil
	}
	return entries, nil
}

func (l *Logger) writeAll(entries []LogEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode message log: %w", err)
	}
	tmp := l.paths.LogFile() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write message log: %w", err)
	}
	return os.Rename(tmp, l.paths.LogFile())
}
