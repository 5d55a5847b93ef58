package llm

import (
	"context"
	"fmt"
	"sync"
)

// MinAPIKeyLength is the shortest key Configure accepts.
const MinAPIKeyLength = 10

// Slot holds the active chat provider and lets it be replaced at runtime.
// The zero value is an empty slot.
type Slot struct {
	mu       sync.RWMutex
	provider Provider
	build    func(apiKey string) (Provider, error)
}

// NewSlot returns a slot holding p (which may be nil). build constructs a
// replacement provider from a key supplied via Configure.
func NewSlot(p Provider, build func(apiKey string) (Provider, error)) *Slot {
	return &Slot{provider: p, build: build}
}

// Available reports whether a provider is installed.
func (s *Slot) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider != nil
}

// Provider returns the installed provider or ErrNotConfigured.
func (s *Slot) Provider() (Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider == nil {
		return nil, ErrNotConfigured
	}
	return s.provider, nil
}

// Configure replaces the installed provider with one built from apiKey.
func (s *Slot) Configure(apiKey string) error {
	if len(apiKey) < MinAPIKeyLength {
		return fmt.Errorf("api key must be at least %d characters", MinAPIKeyLength)
	}
	if s.build == nil {
		return fmt.Errorf("%w: slot has no builder", ErrNotConfigured)
	}
	p, err := s.build(apiKey)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.provider = p
	s.mu.Unlock()
	return nil
}

// Complete forwards to the installed provider.
func (s *Slot) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	p, err := s.Provider()
	if err != nil {
		return nil, err
	}
	return p.Complete(ctx, req)
}

// Name returns the installed provider's name, or "none".
func (s *Slot) Name() string {
	p, err := s.Provider()
	if err != nil {
		return "none"
	}
	return p.Name()
}
