package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeRunStarted   EventType = "run_started"
	EventTypeRunCompleted EventType = "run_completed"
	EventTypeRunFailed    EventType = "run_failed"
	EventTypeRunRejected  EventType = "run_rejected"
	EventTypeHeartbeat    EventType = "heartbeat"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging. Terminal run events are also
// appended to a JSONL file so failures survive a dashboard session.
type Logger struct {
	runLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		runLogPath: filepath.Join("logs", "runs.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeRunCompleted || evt.Type == EventTypeRunFailed {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.runLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.runLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.runLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.runLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.runLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogRunStarted(runID, trigger string) {
	l.Log(Event{
		Type:  EventTypeRunStarted,
		RunID: runID,
		Data:  map[string]string{"trigger": trigger},
	})
}

func (l *Logger) LogRunCompleted(runID string, count int, elapsed time.Duration) {
	l.Log(Event{
		Type:  EventTypeRunCompleted,
		RunID: runID,
		Data: map[string]any{
			"records":    count,
			"elapsed_ms": elapsed.Milliseconds(),
		},
	})
}

func (l *Logger) LogRunFailed(runID, kind, message string) {
	l.Log(Event{
		Type:  EventTypeRunFailed,
		RunID: runID,
		Data: map[string]string{
			"kind":    kind,
			"message": message,
		},
	})
}

func (l *Logger) LogRunRejected(trigger string) {
	l.Log(Event{
		Type: EventTypeRunRejected,
		Data: map[string]string{"trigger": trigger, "reason": "busy"},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}
