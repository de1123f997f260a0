package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ragd/internal/domain"
	"ragd/internal/infra/config"
)

// Lister is the provider-facing slice of the gateway the manager needs.
type Lister interface {
	ListTools(ctx context.Context, providerID string) ([]domain.ToolDescriptor, error)
	ListResources(ctx context.Context, providerID string) ([]domain.ResourceDescriptor, error)
}

// Manager populates and refreshes the registry. It never fails process
// startup: a provider that cannot be reached is recorded as a warning and
// retried on the next scheduled run, and a previously persisted snapshot is
// restored so known capabilities stay servable.
type Manager struct {
	providers []config.ProviderConfig
	lister    Lister
	registry  *Registry
	store     *SnapshotStore
	interval  time.Duration
	timeout   time.Duration
	metrics   domain.Metrics
	logger    *zap.Logger
}

type ManagerOptions struct {
	Providers []config.ProviderConfig
	Lister    Lister
	Registry  *Registry
	Store     *SnapshotStore
	Interval  time.Duration
	Timeout   time.Duration
	Metrics   domain.Metrics
	Logger    *zap.Logger
}

func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Duration(config.DefaultRefreshSeconds) * time.Second
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultDiscoverySeconds) * time.Second
	}
	return &Manager{
		providers: opts.Providers,
		lister:    opts.Lister,
		registry:  opts.Registry,
		store:     opts.Store,
		interval:  interval,
		timeout:   timeout,
		metrics:   metrics,
		logger:    logger.Named("discovery"),
	}
}

// Restore loads the persisted snapshot into the registry, if one exists.
// Called before Run so a restart with all providers down still serves
// previously known capabilities.
func (m *Manager) Restore() bool {
	if m.store == nil {
		return false
	}
	snap, ok, err := m.store.Load()
	if err != nil {
		m.logger.Warn("restore persisted snapshot failed", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	m.registry.Replace(snap)
	m.logger.Info("registry restored from persisted snapshot",
		zap.Time("takenAt", snap.TakenAt),
		zap.Int("providers", len(snap.Providers)),
	)
	return true
}

// Run performs an immediate discovery pass and then refreshes on a fixed
// schedule until the context is canceled. Runs independently of connection
// acceptance.
func (m *Manager) Run(ctx context.Context) {
	m.refresh(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

func (m *Manager) refresh(ctx context.Context) {
	snap, failed := m.Discover(ctx)
	if len(snap.Providers) == 0 {
		// Nothing reachable: keep whatever snapshot is installed.
		m.logger.Warn("discovery run produced no capabilities", zap.Int("failedProviders", failed))
		return
	}
	m.registry.Replace(snap)
	if m.store != nil {
		if err := m.store.Save(snap); err != nil {
			m.logger.Warn("persist snapshot failed", zap.Error(err))
		}
	}
	m.logger.Info("registry refreshed",
		zap.Int("providers", len(snap.Providers)),
		zap.Int("failedProviders", failed),
	)
}

// Discover queries every configured provider under a bounded timeout. A
// provider failure is isolated: it is logged, counted, and excluded from the
// snapshot without aborting discovery for the remaining providers.
func (m *Manager) Discover(ctx context.Context) (*domain.RegistrySnapshot, int) {
	snap := &domain.RegistrySnapshot{
		Providers: make(map[string]domain.ProviderCapabilities, len(m.providers)),
		TakenAt:   time.Now().UTC(),
	}

	failed := 0
	for _, provider := range m.providers {
		caps, err := m.discoverProvider(ctx, provider.ID)
		m.metrics.ObserveDiscovery(provider.ID, err)
		if err != nil {
			failed++
			m.logger.Warn("provider discovery failed",
				zap.String("provider", provider.ID),
				zap.Error(err),
			)
			continue
		}
		snap.Providers[provider.ID] = caps
		m.logger.Debug("provider discovered",
			zap.String("provider", provider.ID),
			zap.Int("tools", len(caps.Tools)),
			zap.Int("resources", len(caps.Resources)),
		)
	}
	return snap, failed
}

func (m *Manager) discoverProvider(ctx context.Context, providerID string) (domain.ProviderCapabilities, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	tools, err := m.lister.ListTools(callCtx, providerID)
	if err != nil {
		return domain.ProviderCapabilities{}, err
	}
	resources, err := m.lister.ListResources(callCtx, providerID)
	if err != nil {
		return domain.ProviderCapabilities{}, err
	}
	return domain.ProviderCapabilities{Tools: tools, Resources: resources}, nil
}
