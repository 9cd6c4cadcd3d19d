package capability

import (
	"context"
	"sort"
	"sync"
)

// Capability names used across the gateway
const (
	Summarization = "summarization"
	TTS           = "tts"
	OCR           = "ocr"
	Translation   = "translation"
)

// Info describes the provider behind a service
type Info struct {
	Provider           string   `json:"provider,omitempty"`
	Model              string   `json:"model,omitempty"`
	Device             string   `json:"device,omitempty"`
	SupportedLanguages []string `json:"supported_languages,omitempty"`
}

// Status is the health view of one capability
type Status struct {
	Info
	Loaded bool   `json:"loaded"`
	State  string `json:"state"`
	Error  string `json:"error,omitempty"`
}

// Service is implemented by every capability service wrapper
type Service interface {
	Name() string
	Initialize(ctx context.Context) error
	IsInitialized() bool
	State() (State, error)
	Info() Info
}

// Registry holds the service objects built at startup, keyed by capability
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Service)}
}

// Register adds or replaces a service
func (r *Registry) Register(s Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[s.Name()] = s
}

// Get returns the service registered under name
func (r *Registry) Get(name string) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[name]
	return s, ok
}

// Names returns the registered capability names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InitializeAll initializes every service and returns the failures by name
func (r *Registry) InitializeAll(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for _, name := range r.Names() {
		s, _ := r.Get(name)
		if err := s.Initialize(ctx); err != nil {
			failures[name] = err
		}
	}
	return failures
}

// Statuses snapshots every service without triggering initialization
func (r *Registry) Statuses() map[string]Status {
	out := make(map[string]Status)
	for _, name := range r.Names() {
		s, _ := r.Get(name)
		state, err := s.State()
		st := Status{
			Info:   s.Info(),
			Loaded: s.IsInitialized(),
			State:  state.String(),
		}
		if err != nil {
			st.Error = err.Error()
		}
		out[name] = st
	}
	return out
}
