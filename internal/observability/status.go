package observability

import (
	"sync"
	"time"
)

type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseFetching   Phase = "FETCHING"
	PhasePersisting Phase = "PERSISTING"
)

type SystemStatus struct {
	mu            sync.RWMutex
	CurrentPhase  Phase
	ActiveRun     string
	Progress      int
	RowCount      int
	Message       string
	MessageUntil  time.Time
	LastHeartbeat time.Time
}

// Snapshot is a copy of the system status safe to read without locking.
type Snapshot struct {
	Phase         Phase
	ActiveRun     string
	Progress      int
	RowCount      int
	Message       string
	LastHeartbeat time.Time
}

var globalStatus = &SystemStatus{
	CurrentPhase:  PhaseIdle,
	LastHeartbeat: time.Now(),
}

// SetPhase updates the pipeline phase and the run it belongs to.
func SetPhase(phase Phase, runID string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CurrentPhase = phase
	globalStatus.ActiveRun = runID
	if phase == PhaseIdle {
		globalStatus.ActiveRun = ""
	}
}

// SetProgress records the latest progress value in [0,100].
func SetProgress(p int) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.Progress = p
}

// SetRowCount records how many rows the last successful run delivered.
func SetRowCount(n int) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.RowCount = n
}

// SetMessage shows a status message. A zero duration keeps the message
// until it is replaced; otherwise it expires after d.
func SetMessage(msg string, d time.Duration) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.Message = msg
	if d > 0 {
		globalStatus.MessageUntil = time.Now().Add(d)
	} else {
		globalStatus.MessageUntil = time.Time{}
	}
}

// GetStatus retrieves a copy of the global system status. An expired
// transient message reads back as empty.
func GetStatus() Snapshot {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	msg := globalStatus.Message
	if !globalStatus.MessageUntil.IsZero() && time.Now().After(globalStatus.MessageUntil) {
		msg = ""
	}
	return Snapshot{
		Phase:         globalStatus.CurrentPhase,
		ActiveRun:     globalStatus.ActiveRun,
		Progress:      globalStatus.Progress,
		RowCount:      globalStatus.RowCount,
		Message:       msg,
		LastHeartbeat: globalStatus.LastHeartbeat,
	}
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
