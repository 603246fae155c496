// Package llm provides an OpenAI-compatible chat client with provider failover
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/pillpal/internal/config"
)

// ProviderManager manages multiple LLM providers with failover
type ProviderManager struct {
	providers []ProviderConfig
	mu        sync.RWMutex
	logger    *zap.Logger
}

// ProviderConfig holds provider configuration with priority
type ProviderConfig struct {
	Name     string
	Client   *Client
	Priority int // Lower = higher priority
	LastErr  error
	LastUsed time.Time
}

// NewProviderManager creates a new provider manager
func NewProviderManager(logger *zap.Logger) *ProviderManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderManager{logger: logger}
}

// FromConfig registers every provider with an API key. The default provider
// is tried first.
func FromConfig(cfg *config.Config, logger *zap.Logger) *ProviderManager {
	pm := NewProviderManager(logger)
	for name, p := range cfg.LLM.Providers {
		if p.APIKey == "" || p.BaseURL == "" {
			continue
		}
		priority := 10
		if name == cfg.LLM.DefaultProvider {
			priority = 0
		}
		pm.AddProvider(name, NewClient(name, p), priority)
	}
	return pm
}

// AddProvider adds a provider to the manager
func (pm *ProviderManager) AddProvider(name string, client *Client, priority int) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.providers = append(pm.providers, ProviderConfig{
		Name:     name,
		Client:   client,
		Priority: priority,
	})

	sort.SliceStable(pm.providers, func(i, j int) bool {
		if pm.providers[i].Priority != pm.providers[j].Priority {
			return pm.providers[i].Priority < pm.providers[j].Priority
		}
		return pm.providers[i].Name < pm.providers[j].Name
	})
}

// Len returns the number of registered providers
func (pm *ProviderManager) Len() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.providers)
}

// SimpleChat tries each provider in priority order until one answers
func (pm *ProviderManager) SimpleChat(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	pm.mu.RLock()
	providers := append([]ProviderConfig(nil), pm.providers...)
	pm.mu.RUnlock()

	if len(providers) == 0 {
		return "", fmt.Errorf("no LLM provider configured")
	}

	var lastErr error
	for i, p := range providers {
		result, err := p.Client.SimpleChat(ctx, systemPrompt, userMessage)
		pm.record(p.Name, err)
		if err == nil {
			if i > 0 {
				pm.logger.Info("Failover successful",
					zap.String("provider", p.Name),
					zap.Int("attempt", i+1),
				)
			}
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
		pm.logger.Warn("Provider failed, trying next",
			zap.String("provider", p.Name),
			zap.Error(err),
		)
	}

	return "", fmt.Errorf("all providers failed, last error: %w", lastErr)
}

func (pm *ProviderManager) record(name string, err error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	for i := range pm.providers {
		if pm.providers[i].Name == name {
			pm.providers[i].LastErr = err
			if err == nil {
				pm.providers[i].LastUsed = time.Now()
			}
			return
		}
	}
}

// ProviderStatus is a provider's health as seen by the manager
type ProviderStatus struct {
	Name     string    `json:"name"`
	Model    string    `json:"model"`
	Priority int       `json:"priority"`
	Healthy  bool      `json:"healthy"`
	Circuit  string    `json:"circuit"`
	LastUsed time.Time `json:"last_used"`
}

// GetProviderStatus returns status of all providers
func (pm *ProviderManager) GetProviderStatus() []ProviderStatus {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	status := make([]ProviderStatus, 0, len(pm.providers))
	for _, p := range pm.providers {
		status = append(status, ProviderStatus{
			Name:     p.Name,
			Model:    p.Client.GetModel(),
			Priority: p.Priority,
			Healthy:  p.LastErr == nil,
			Circuit:  p.Client.State(),
			LastUsed: p.LastUsed,
		})
	}
	return status
}
