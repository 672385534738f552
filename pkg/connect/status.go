package connect

import (
	"fmt"
	"time"
)

// StateRunning is the Connect framework's healthy state for both connectors
// and tasks.
const StateRunning = "RUNNING"

// ConnectorState is the overall state block of a status document.
type ConnectorState struct {
	State    string `json:"state"`
	WorkerID string `json:"worker_id,omitempty"`
}

// TaskStatus is the state of a single connector task.
type TaskStatus struct {
	State    string `json:"state"`
	WorkerID string `json:"worker_id,omitempty"`
	Trace    string `json:"trace,omitempty"`
	ID       int    `json:"id"`
}

// Status is the document returned by GET /connectors/{name}/status.
type Status struct {
	Name      string         `json:"name"`
	Type      string         `json:"type,omitempty"`
	Connector ConnectorState `json:"connector"`
	Tasks     []TaskStatus   `json:"tasks"`
}

// Ready reports whether the connector and every task are RUNNING. Task order
// is irrelevant. A connector with no tasks yet is not ready: Connect reports
// RUNNING on the connector object before task assignment, and zero tasks move
// zero data.
func (s *Status) Ready() bool {
	if s == nil || s.Connector.State != StateRunning || len(s.Tasks) == 0 {
		return false
	}
	for _, t := range s.Tasks {
		if t.State != StateRunning {
			return false
		}
	}
	return true
}

// FailedTasks returns the tasks not in RUNNING state, for diagnostics.
func (s *Status) FailedTasks() []TaskStatus {
	var out []TaskStatus
	for _, t := range s.Tasks {
		if t.State != StateRunning {
			out = append(out, t)
		}
	}
	return out
}

// NotReadyError reports a readiness gate that timed out. It is distinct from
// transport errors and from APIError: the deadline elapsed without the
// connector (and all tasks) reaching RUNNING.
type NotReadyError struct {
	// Last is the most recent status observed, nil if none was ever fetched.
	Last *Status
	// LastErr is the most recent check error, nil once checks succeed.
	LastErr error
	Name    string
	Timeout time.Duration
}

func (e *NotReadyError) Error() string {
	switch {
	case e.Last != nil && e.LastErr == nil:
		return fmt.Sprintf("connector %q not running after %s: connector=%s tasks=%d (%d not running)",
			e.Name, e.Timeout, e.Last.Connector.State, len(e.Last.Tasks), len(e.Last.FailedTasks()))
	case e.LastErr != nil:
		return fmt.Sprintf("connector %q not running after %s: last check error: %v", e.Name, e.Timeout, e.LastErr)
	default:
		return fmt.Sprintf("connector %q not running after %s", e.Name, e.Timeout)
	}
}
