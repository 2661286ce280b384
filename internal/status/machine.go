package status

import (
	"sync"

	"go.uber.org/zap"

	"medword/internal/pkg/apperr"
)

type Status string

const (
	Idle         Status = "idle"
	Initializing Status = "initializing"
	Ready        Status = "ready"
	Loading      Status = "loading"
	Error        Status = "error"
)

// Op is the kind of operation a transition belongs to. A store that failed in
// one kind of operation only leaves the error state by retrying that kind.
type Op string

const (
	OpInitialize Op = "initialize"
	OpRequest    Op = "request"
)

type Snapshot struct {
	Status    Status `json:"status"`
	LastError string `json:"last_error,omitempty"`
	FailedOp  Op     `json:"failed_op,omitempty"`
}

// Machine is the per-store gate deciding which operations are accepted.
type Machine struct {
	name   string
	logger *zap.Logger

	mu       sync.Mutex
	status   Status
	lastErr  string
	failedOp Op
	active   Op
}

func New(name string, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		name:   name,
		logger: logger.Named("status"),
		status: Idle,
	}
}

// NewReady returns a machine already walked through idle → initializing →
// ready, for stores without an initialization step of their own.
func NewReady(name string, logger *zap.Logger) *Machine {
	m := New(name, logger)
	_ = m.Begin(OpInitialize)
	_ = m.Succeed()
	return m
}

func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{Status: m.status, LastError: m.lastErr, FailedOp: m.failedOp}
}

// Begin moves the machine into initializing or loading. Operations started
// while another one is in flight are rejected with a Busy error.
func (m *Machine) Begin(op Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	const action = "begin operation"
	switch m.status {
	case Initializing, Loading:
		return apperr.Busy(action, "another operation is in progress")
	}

	var next Status
	switch op {
	case OpInitialize:
		switch m.status {
		case Idle:
		case Error:
			if m.failedOp != OpInitialize {
				return apperr.Busy(action, "store is in error after a failed request")
			}
		default:
			return apperr.Busy(action, "store is already initialized")
		}
		next = Initializing
	case OpRequest:
		switch m.status {
		case Ready:
		case Error:
			if m.failedOp != OpRequest {
				return apperr.Busy(action, "store failed to initialize")
			}
		default:
			return apperr.Busy(action, "store is not initialized")
		}
		next = Loading
	default:
		return apperr.Validation(action, "unknown operation "+string(op))
	}

	m.transition(next)
	m.active = op
	return nil
}

func (m *Machine) Succeed() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != Initializing && m.status != Loading {
		return apperr.Validation("complete operation", "no operation in progress")
	}
	m.lastErr = ""
	m.failedOp = ""
	m.active = ""
	m.transition(Ready)
	return nil
}

func (m *Machine) Fail(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != Initializing && m.status != Loading {
		return apperr.Validation("fail operation", "no operation in progress")
	}
	m.lastErr = apperr.Message(err)
	if m.lastErr == "" {
		m.lastErr = "operation failed"
	}
	m.failedOp = m.active
	m.active = ""
	m.transition(Error)
	return nil
}

// Recover moves a machine whose initialization failed to ready. It reports
// whether a transition happened; any other state is left untouched.
func (m *Machine) Recover() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != Error || m.failedOp != OpInitialize {
		return false
	}
	m.lastErr = ""
	m.failedOp = ""
	m.active = ""
	m.transition(Ready)
	return true
}

// Reset returns the machine to idle. Used on store reset and teardown.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = ""
	m.failedOp = ""
	m.active = ""
	m.transition(Idle)
}

func (m *Machine) transition(next Status) {
	if m.status == next {
		return
	}
	m.logger.Debug("status transition",
		zap.String("store", m.name),
		zap.String("from", string(m.status)),
		zap.String("to", string(next)),
	)
	m.status = next
}
