package audittest

import (
	"context"
	"sync"

	"github.com/tenderd/tenderd/tenderd/audit"
)

func NewMock() *MockAuditor {
	return &MockAuditor{}
}

type MockAuditor struct {
	mutex     sync.Mutex
	auditLogs []audit.Log
	exportErr error
}

// SetExportError makes every following Export fail with err without
// recording the log.
func (a *MockAuditor) SetExportError(err error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.exportErr = err
}

var _ audit.Auditor = (*MockAuditor)(nil)

// ResetLogs removes all audit logs from the mock auditor.
func (a *MockAuditor) ResetLogs() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.auditLogs = nil
}

func (a *MockAuditor) AuditLogs() []audit.Log {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	logs := make([]audit.Log, len(a.auditLogs))
	copy(logs, a.auditLogs)
	return logs
}

// Contains returns true if some exported log matches every non-zero field
// of expected.
func (a *MockAuditor) Contains(expected audit.Log) bool {
	for _, l := range a.AuditLogs() {
		if expected.Action != "" && l.Action != expected.Action {
			continue
		}
		if expected.ResourceType != "" && l.ResourceType != expected.ResourceType {
			continue
		}
		if expected.ResourceID != "" && l.ResourceID != expected.ResourceID {
			continue
		}
		if expected.Reason != "" && l.Reason != expected.Reason {
			continue
		}
		if expected.StatusTo != "" && l.StatusTo != expected.StatusTo {
			continue
		}
		return true
	}
	return false
}

func (a *MockAuditor) Export(_ context.Context, alog audit.Log) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.exportErr != nil {
		return a.exportErr
	}
	a.auditLogs = append(a.auditLogs, alog)
	return nil
}
