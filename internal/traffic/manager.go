package traffic

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficeta/trafficeta/internal/provider/resilience"
)

// Settings are the runtime-adjustable manager options.
type Settings struct {
	// Enabled turns live traffic on. When false TrafficData always returns nil.
	Enabled bool

	// ProviderPriority lists provider keys in preference order.
	ProviderPriority []string

	// FallbackToSynthetic selects the synthetic provider when no prioritised
	// provider is available, and offers it as a last failover target.
	FallbackToSynthetic bool

	// AutoRefreshInterval drives ShouldRefresh and SelectionDue (default: 60s).
	AutoRefreshInterval time.Duration
}

// DefaultSettings returns live traffic enabled with TomTom, HERE and the
// synthetic generator in that order.
func DefaultSettings() Settings {
	return Settings{
		Enabled:             true,
		ProviderPriority:    []string{ProviderTomTom, ProviderHERE, ProviderSynthetic},
		FallbackToSynthetic: true,
		AutoRefreshInterval: 60 * time.Second,
	}
}

// ManagerConfig holds configuration for the traffic manager.
type ManagerConfig struct {
	Settings

	// Providers are the constructed backends, keyed by their Name().
	Providers []Provider

	// Health, when set, contributes circuit breaker state to ProviderStatus.
	Health *resilience.Registry

	// Logger for manager operations.
	Logger zerolog.Logger

	// Now overrides the clock for tests.
	Now func() time.Time
}

// Manager selects one active provider by priority, serves traffic data
// through it and fails over once per request when a provider breaks its
// contract. It is safe for concurrent use.
type Manager struct {
	providers map[string]Provider
	order     []string
	health    *resilience.Registry
	logger    zerolog.Logger
	now       func() time.Time

	mu          sync.RWMutex
	settings    Settings
	active      string
	lastRefresh time.Time
	lastSelect  time.Time
}

// NewManager creates a manager and selects the initial active provider.
func NewManager(cfg ManagerConfig) *Manager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		providers: make(map[string]Provider, len(cfg.Providers)),
		health:    cfg.Health,
		logger:    cfg.Logger,
		now:       now,
		settings:  normalizeSettings(cfg.Settings),
	}
	for _, p := range cfg.Providers {
		if p == nil {
			continue
		}
		name := p.Name()
		if _, dup := m.providers[name]; !dup {
			m.order = append(m.order, name)
		}
		m.providers[name] = p
		m.logger.Info().Str("provider", name).Msg("traffic provider registered")
	}

	m.SelectActiveProvider()
	return m
}

func normalizeSettings(s Settings) Settings {
	if s.AutoRefreshInterval <= 0 {
		s.AutoRefreshInterval = 60 * time.Second
	}
	s.ProviderPriority = append([]string(nil), s.ProviderPriority...)
	return s
}

// SelectActiveProvider picks the first available provider in priority order,
// falling back to the synthetic provider when allowed. It returns the chosen
// key, or "" when none qualifies.
func (m *Manager) SelectActiveProvider() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectLocked()
}

func (m *Manager) selectLocked() string {
	m.lastSelect = m.now()
	for _, name := range m.settings.ProviderPriority {
		if p, ok := m.providers[name]; ok && m.available(p) {
			m.active = name
			m.logger.Info().Str("provider", name).Msg("active traffic provider")
			return name
		}
	}

	if p, ok := m.providers[ProviderSynthetic]; ok && m.settings.FallbackToSynthetic && m.available(p) {
		m.active = ProviderSynthetic
		m.logger.Warn().Msg("no live traffic providers available, using synthetic provider")
		return ProviderSynthetic
	}

	m.active = ""
	m.logger.Error().Msg("no traffic providers available")
	return ""
}

// ActiveProvider returns the current active provider key.
func (m *Manager) ActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// TrafficData returns traffic data for the route, or nil when traffic is
// disabled, no provider is active, or every attempt broke the provider
// contract. Upstream failures surface as fallback data, never as nil.
func (m *Manager) TrafficData(ctx context.Context, coords []Coordinate, routeID string) *Data {
	m.mu.RLock()
	enabled, active := m.settings.Enabled, m.active
	m.mu.RUnlock()

	if !enabled || active == "" {
		return nil
	}

	data, err := m.fetch(ctx, m.providers[active], coords, routeID)
	if err == nil {
		m.markRefreshed()
		return data
	}
	m.logger.Error().Err(err).Str("provider", active).Str("route_id", routeID).Msg("traffic provider failed")

	next := m.failover(active)
	if next == "" {
		return nil
	}

	data, err = m.fetch(ctx, m.providers[next], coords, routeID)
	if err != nil {
		m.logger.Error().Err(err).Str("provider", next).Str("route_id", routeID).Msg("fallback traffic provider failed")
		return nil
	}
	m.markRefreshed()
	return data
}

// failover switches away from failed to the next available provider and
// returns its key. If another request already switched, the current active
// provider is reused.
func (m *Manager) failover(failed string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != failed && m.active != "" {
		return m.active
	}

	candidates := m.settings.ProviderPriority
	if m.settings.FallbackToSynthetic && !slices.Contains(candidates, ProviderSynthetic) {
		candidates = append(append([]string(nil), candidates...), ProviderSynthetic)
	}

	for _, name := range candidates {
		if name == failed {
			continue
		}
		p, ok := m.providers[name]
		if !ok || !m.available(p) {
			continue
		}
		m.active = name
		m.lastSelect = m.now()
		m.logger.Warn().Str("from", failed).Str("to", name).Msg("switched traffic provider")
		return name
	}
	return ""
}

func (m *Manager) fetch(ctx context.Context, p Provider, coords []Coordinate, routeID string) (data *Data, err error) {
	if p == nil {
		return nil, fmt.Errorf("%w: provider not registered", ErrContractViolation)
	}
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = fmt.Errorf("%w: %s panicked: %v", ErrContractViolation, p.Name(), r)
		}
	}()

	data, err = p.FetchTrafficData(ctx, coords, routeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrContractViolation, p.Name(), err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrContractViolation, p.Name(), ErrNilData)
	}
	return data, nil
}

func (m *Manager) available(p Provider) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Str("provider", p.Name()).Interface("panic", r).Msg("availability check panicked")
			ok = false
		}
	}()
	return p.IsAvailable()
}

func (m *Manager) markRefreshed() {
	m.mu.Lock()
	m.lastRefresh = m.now()
	m.mu.Unlock()
}

// ShouldRefresh reports whether the auto-refresh interval has elapsed since
// the last successful fetch.
func (m *Manager) ShouldRefresh() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastRefresh.IsZero() {
		return true
	}
	return m.now().Sub(m.lastRefresh) >= m.settings.AutoRefreshInterval
}

// SelectionDue reports whether the auto-refresh interval has elapsed since
// the active provider was last chosen, by selection or failover. Successful
// fetches do not reset it, so a failed-over manager still gets the chance to
// promote a recovered higher-priority provider.
func (m *Manager) SelectionDue() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now().Sub(m.lastSelect) >= m.settings.AutoRefreshInterval
}

// TrafficMultiplier derives a bounded duration multiplier from jam factor,
// incident count and speed deficit. Nil data gives 1.0.
func (m *Manager) TrafficMultiplier(d *Data) float64 {
	if d == nil {
		return 1.0
	}

	jam := 1.0 + d.OverallJamFactor

	incidents := 1.0
	if d.IncidentCount > 0 {
		incidents += math.Min(0.2, float64(d.IncidentCount)*0.1)
	}

	speed := 1.0
	if d.AverageSpeedKmh < DefaultSpeedKmh {
		speed += (1.0 - d.AverageSpeedKmh/DefaultSpeedKmh) * 0.6
	}

	return clamp(jam*incidents*speed, 0.6, 2.2)
}

// TrafficConditions projects d into the form consumed by the ETA model.
func (m *Manager) TrafficConditions(d *Data) Conditions {
	if d == nil {
		return DisabledConditions()
	}

	updated := d.LastUpdated
	incidents := make([]IncidentSummary, 0, len(d.Incidents))
	for _, inc := range d.Incidents {
		incidents = append(incidents, IncidentSummary{
			Type:        inc.Type,
			Severity:    inc.Severity,
			Description: inc.Description,
		})
	}

	return Conditions{
		LiveTrafficEnabled: true,
		JamFactor:          d.OverallJamFactor,
		IncidentCount:      d.IncidentCount,
		AverageSpeedKmh:    d.AverageSpeedKmh,
		Provider:           d.Provider,
		LastUpdated:        &updated,
		Incidents:          incidents,
	}
}

// ProviderStatus is the diagnostic view of one provider.
type ProviderStatus struct {
	Name      string
	Available bool
	Cache     CacheStats
	Health    *resilience.ProviderHealth
}

// Status is a diagnostic snapshot of the manager.
type Status struct {
	Enabled        bool
	ActiveProvider string
	LastRefresh    *time.Time
	Providers      []ProviderStatus
}

// ProviderStatus returns a snapshot of the manager and every registered
// provider. It has no side effects.
func (m *Manager) ProviderStatus() Status {
	m.mu.RLock()
	status := Status{
		Enabled:        m.settings.Enabled,
		ActiveProvider: m.active,
	}
	if !m.lastRefresh.IsZero() {
		last := m.lastRefresh
		status.LastRefresh = &last
	}
	m.mu.RUnlock()

	status.Providers = make([]ProviderStatus, 0, len(m.order))
	for _, name := range m.order {
		p := m.providers[name]
		ps := ProviderStatus{
			Name:      name,
			Available: m.available(p),
			Cache:     p.CacheStats(),
		}
		if m.health != nil {
			ps.Health = m.health.Health(name)
		}
		status.Providers = append(status.Providers, ps)
	}
	return status
}

// ClearAllCaches clears every provider's route cache.
func (m *Manager) ClearAllCaches() {
	for _, name := range m.order {
		m.providers[name].ClearCache()
	}
	m.logger.Info().Msg("cleared all traffic provider caches")
}

// Settings returns a copy of the current settings.
func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.settings
	s.ProviderPriority = append([]string(nil), s.ProviderPriority...)
	return s
}

// UpdateConfig replaces the settings and re-selects the active provider.
func (m *Manager) UpdateConfig(s Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = normalizeSettings(s)
	m.selectLocked()
	m.logger.Info().Bool("enabled", s.Enabled).Strs("priority", s.ProviderPriority).Msg("updated traffic manager configuration")
}
