package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/p-n-ai/pai-planner/internal/platform/metrics"
)

// Backend selects one of the configured provider slots.
type Backend int

const (
	BackendPrimary Backend = iota
	BackendSecondary
	BackendTertiary
)

func (b Backend) String() string {
	switch b {
	case BackendPrimary:
		return "primary"
	case BackendSecondary:
		return "secondary"
	case BackendTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// ParseBackend parses a backend slot name.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary", "":
		return BackendPrimary, nil
	case "secondary":
		return BackendSecondary, nil
	case "tertiary":
		return BackendTertiary, nil
	}
	return 0, fmt.Errorf("unknown backend %q", s)
}

const defaultTimeout = 30 * time.Second

// errLocalRateLimit is reported when the client-side limiter rejects a call.
var errLocalRateLimit = errors.New("client-side rate limit exceeded")

type slot struct {
	name     string
	provider Provider
	limiter  *rate.Limiter
}

// Adapter sends prompt specs to the provider registered for a backend slot.
// It never retries across slots; choosing a backend is the caller's policy.
type Adapter struct {
	mu      sync.RWMutex
	slots   map[Backend]*slot
	timeout time.Duration
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithTimeout bounds every provider call.
func WithTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAdapter creates an adapter with no backends registered.
func NewAdapter(opts ...AdapterOption) *Adapter {
	a := &Adapter{
		slots:   make(map[Backend]*slot),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register assigns a provider to a backend slot, replacing any previous one.
func (a *Adapter) Register(backend Backend, name string, provider Provider) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.slots[backend] = &slot{name: name, provider: provider}
	slog.Info("generation backend registered", "backend", backend.String(), "provider", name)
}

// SetRateLimit limits calls to a backend to perMinute, with the given burst.
// Calls beyond the limit fail immediately as RateLimited.
func (a *Adapter) SetRateLimit(backend Backend, perMinute, burst int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.slots[backend]
	if !ok || perMinute <= 0 {
		return
	}
	if burst <= 0 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

// HasBackend reports whether a provider is registered for the slot.
func (a *Adapter) HasBackend(backend Backend) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.slots[backend]
	return ok
}

// ProviderName returns the provider registered for the slot, or "".
func (a *Adapter) ProviderName(backend Backend) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if s, ok := a.slots[backend]; ok {
		return s.name
	}
	return ""
}

// Generate calls the backend's provider once. Every failure is a *GenerationError.
func (a *Adapter) Generate(ctx context.Context, spec PromptSpec, backend Backend) (RawContent, error) {
	a.mu.RLock()
	s, ok := a.slots[backend]
	a.mu.RUnlock()

	if !ok {
		return RawContent{}, a.fail(backend, "", KindUnavailable, fmt.Errorf("no provider registered"))
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return RawContent{}, a.fail(backend, s.name, KindRateLimited, errLocalRateLimit)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.provider.Complete(callCtx, spec.Request())
	metrics.GenerationDuration.WithLabelValues(backend.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return RawContent{}, a.fail(backend, s.name, classify(err), err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return RawContent{}, a.fail(backend, s.name, KindInvalidResponse, fmt.Errorf("empty content"))
	}

	slog.Debug("generation completed",
		"backend", backend.String(),
		"provider", s.name,
		"model", resp.Model,
		"task", spec.Task.String(),
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
	)

	return RawContent{
		Text:     resp.Content,
		Backend:  backend,
		Provider: s.name,
		Model:    resp.Model,
	}, nil
}

func (a *Adapter) fail(backend Backend, provider string, kind Kind, err error) error {
	metrics.GenerationErrors.WithLabelValues(backend.String(), kind.String()).Inc()
	slog.Warn("generation failed",
		"backend", backend.String(),
		"provider", provider,
		"kind", kind.String(),
		"error", err,
	)
	return &GenerationError{Backend: backend, Provider: provider, Kind: kind, Err: err}
}
