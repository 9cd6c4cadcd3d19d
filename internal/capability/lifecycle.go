package capability

import (
	"context"
	"sync"
	"time"

	"github.com/lexiqai/assist-gateway/internal/observability"
)

// State is the initialization state of a capability
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateDisabled:
		return "disabled"
	}
	return "unknown"
}

// InitFunc performs the provider setup for a capability
type InitFunc func(ctx context.Context) error

// Lifecycle guards the one-time initialization of a service handle.
// A failed initialization is sticky: later calls return the same error
// without running the provider setup again. A caller that gives up while
// the setup is failing leaves the lifecycle uninitialized instead.
type Lifecycle struct {
	name    string
	init    InitFunc
	timeout time.Duration

	initMu sync.Mutex // serializes Initialize calls

	mu    sync.RWMutex
	state State
	err   error
}

// NewLifecycle creates a lifecycle in the uninitialized state
func NewLifecycle(name string, init InitFunc) *Lifecycle {
	l := &Lifecycle{name: name, init: init}
	observability.SetCapabilityState(name, int(StateUninitialized))
	return l
}

// NewDisabledLifecycle creates a lifecycle that always reports reason
func NewDisabledLifecycle(name, reason string) *Lifecycle {
	l := &Lifecycle{name: name, state: StateDisabled, err: Disabled(name, reason)}
	observability.SetCapabilityState(name, int(StateDisabled))
	return l
}

// WithInitTimeout bounds the provider setup. Setup runs detached from the
// caller's context, so without a timeout it may run as long as the
// provider takes.
func (l *Lifecycle) WithInitTimeout(d time.Duration) *Lifecycle {
	l.timeout = d
	return l
}

// Initialize runs the setup once. Concurrent callers wait for the first one.
func (l *Lifecycle) Initialize(ctx context.Context) error {
	l.initMu.Lock()
	defer l.initMu.Unlock()

	switch state, err := l.State(); state {
	case StateReady:
		return nil
	case StateFailed, StateDisabled:
		return err
	}

	l.setState(StateInitializing, nil)
	logger := observability.GetLogger().With().Str("capability", l.name).Logger()
	logger.Info().Msg("Initializing capability")

	if l.init != nil {
		if err := l.runInit(ctx); err != nil {
			if ctx.Err() != nil {
				l.setState(StateUninitialized, nil)
				logger.Warn().Err(err).Msg("Capability initialization abandoned by caller")
				return Unavailable(l.name, "initialization interrupted", ctx.Err())
			}
			if KindOf(err) == KindUnknown {
				err = Unavailable(l.name, "initialization failed", err)
			}
			if KindOf(err) == KindDisabled {
				l.setState(StateDisabled, err)
			} else {
				l.setState(StateFailed, err)
			}
			logger.Error().Err(err).Msg("Capability initialization failed")
			return err
		}
	}

	l.setState(StateReady, nil)
	logger.Info().Msg("Capability ready")
	return nil
}

func (l *Lifecycle) runInit(ctx context.Context) error {
	initCtx := context.WithoutCancel(ctx)
	if l.timeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(initCtx, l.timeout)
		defer cancel()
	}
	return l.init(initCtx)
}

// IsInitialized reports whether Initialize has completed successfully
func (l *Lifecycle) IsInitialized() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateReady
}

// State returns the current state and the initialization error, if any
func (l *Lifecycle) State() (State, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state, l.err
}

// Name returns the capability name
func (l *Lifecycle) Name() string {
	return l.name
}

func (l *Lifecycle) setState(s State, err error) {
	l.mu.Lock()
	l.state = s
	l.err = err
	l.mu.Unlock()
	observability.SetCapabilityState(l.name, int(s))
}
