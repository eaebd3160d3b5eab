package sqlintel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/schemasense/engine/pkg/adapters/datasource"
	"github.com/schemasense/engine/pkg/apperrors"
	"github.com/schemasense/engine/pkg/config"
	"github.com/schemasense/engine/pkg/logging"
	"github.com/schemasense/engine/pkg/retry"
)

// InitManager is the process-wide singleton that owns schema reflection
// lifecycle: a shallow reflect at startup so the service becomes usable
// quickly, followed by a background full reflect that swaps in a richer
// SchemaCard without blocking any in-flight tool call. Phases advance
// monotonically except for the FAILED/STOPPED terminal states, which a
// fresh InitManager must be constructed to recover from.
type InitManager struct {
	cfg        *config.Config
	dialect    string
	logger     *zap.Logger
	discoverer datasource.SchemaDiscoverer
	store      *CardStore

	mu    sync.RWMutex
	state InitState

	explorer atomic.Pointer[Explorer]

	enrichOnce sync.Once
}

// NewInitManager builds an InitManager bound to the given dialect and
// config. It does not connect to anything until Start is called. store may
// be nil, in which case the schema card and its embeddings are never
// persisted to the metadata database (lexical/embedding retrieval is
// unaffected; a persisted card is never read back at startup either way).
func NewInitManager(cfg *config.Config, dialect string, logger *zap.Logger, store *CardStore) *InitManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InitManager{
		cfg:     cfg,
		dialect: dialect,
		logger:  logger.Named("initmgr"),
		store:   store,
		state:   InitState{Phase: InitPhaseIdle},
	}
}

// Start spawns exactly one background worker that takes the service from
// IDLE to READY (or FAILED). It returns immediately; callers poll Status or
// block on WaitReady.
func (m *InitManager) Start(ctx context.Context) {
	m.setPhase(InitPhaseStarting, func(s *InitState) {
		now := time.Now()
		s.StartedAt = &now
		s.Attempts++
	})
	go m.runStartup(ctx)
}

// runStartup drives the strict engine -> connectivity -> reflection ->
// profile -> graph -> embeddings -> indices -> READY -> enrichment sequence.
// Each stage after connectivity runs synchronously on this goroutine so the
// phase can only flip to READY once embeddings/indices/lexicon (built by
// Warmup) actually exist; enrichment and card persistence are the only steps
// allowed to continue in the background after READY.
func (m *InitManager) runStartup(ctx context.Context) {
	// The target database may still be coming up (common right after a
	// container restart), so the initial connect-and-ping is retried a
	// handful of times with backoff before the service gives up and fails.
	discoverer, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (datasource.SchemaDiscoverer, error) {
		d, err := datasource.NewSchemaDiscoverer(ctx, m.dialect, m.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := d.Ping(ctx); err != nil {
			_ = d.Close()
			return nil, err
		}
		return d, nil
	})
	if err != nil {
		m.fail(fmt.Errorf("%w: connect: %s", apperrors.ErrSchemaReflection, logging.SanitizeError(err)))
		return
	}
	m.discoverer = discoverer
	m.setPhase(InitPhaseRunning, nil)

	shallowCfg := m.cfg.Reflection
	shallowCfg.FastStartup = true
	reflector := NewReflector(discoverer, shallowCfg, m.logger)
	card, err := reflector.Reflect(ctx)
	if err != nil {
		m.fail(err)
		return
	}

	explorer := NewExplorer(card, m.cfg, m.logger)
	explorer.SetCardStore(m.store)
	explorer.BuildGraph()
	m.explorer.Store(explorer)

	// Warmup builds embeddings, the semantic index, and the token lexicon;
	// the service is not READY until this has actually completed.
	warmupCtx := context.Background()
	explorer.Warmup(warmupCtx)

	now := time.Now()
	m.mu.Lock()
	m.state.Phase = InitPhaseReady
	m.state.CompletedAt = &now
	m.mu.Unlock()

	go explorer.Persist(context.Background())
	go m.runEnrichment(context.Background())
}

// runEnrichment re-runs the full (non-fast-startup) reflection pipeline
// after the service has already gone READY, then atomically swaps in the
// richer card. It runs at most once per InitManager lifetime; a later
// re-enrich would need a fresh trigger (e.g. a future config-reload tool),
// which this service does not expose.
func (m *InitManager) runEnrichment(ctx context.Context) {
	m.enrichOnce.Do(func() {
		now := time.Now()
		m.mu.Lock()
		m.state.EnrichmentInProgress = true
		m.state.EnrichmentStartedAt = &now
		m.mu.Unlock()

		fullCfg := m.cfg.Reflection
		fullCfg.FastStartup = false
		fullCfg.MaxTablesAtStartup = 0
		reflector := NewReflector(m.discoverer, fullCfg, m.logger)
		card, err := reflector.Reflect(ctx)

		m.mu.Lock()
		completed := time.Now()
		m.state.EnrichmentInProgress = false
		m.state.EnrichmentCompletedAt = &completed
		if err != nil {
			m.state.EnrichmentError = err.Error()
			m.mu.Unlock()
			m.logger.Warn("background enrichment failed, keeping fast-startup card", zap.Error(err))
			return
		}
		m.mu.Unlock()

		explorer := NewExplorer(card, m.cfg, m.logger)
		explorer.SetCardStore(m.store)
		explorer.BuildGraph()
		explorer.Warmup(ctx)
		m.explorer.Store(explorer)
		explorer.Persist(ctx)
		m.logger.Info("enrichment complete, card swapped", zap.String("reflection_hash", card.ReflectionHash))
	})
}

func (m *InitManager) fail(err error) {
	m.mu.Lock()
	m.state.Phase = InitPhaseFailed
	m.state.ErrorMessage = err.Error()
	m.mu.Unlock()
	m.logger.Error("startup failed", zap.Error(err))
}

func (m *InitManager) setPhase(phase InitPhase, mutate func(*InitState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Phase = phase
	if mutate != nil {
		mutate(&m.state)
	}
}

// Status returns the current lifecycle phase and counters.
func (m *InitManager) Status() InitState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Explorer returns the current Explorer, or ErrNotReady if the service has
// not completed its initial reflection (or has failed/stopped).
func (m *InitManager) Explorer() (*Explorer, error) {
	m.mu.RLock()
	phase := m.state.Phase
	errMsg := m.state.ErrorMessage
	m.mu.RUnlock()

	if NotReadyPhases[phase] {
		return nil, fmt.Errorf("%w: phase=%s", apperrors.ErrNotReady, phase)
	}
	if phase == InitPhaseFailed {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSchemaReflection, errMsg)
	}
	if phase == InitPhaseStopped {
		return nil, fmt.Errorf("%w: service stopped", apperrors.ErrNotReady)
	}
	explorer := m.explorer.Load()
	if explorer == nil {
		return nil, fmt.Errorf("%w: explorer not yet built", apperrors.ErrNotReady)
	}
	return explorer, nil
}

// Shutdown disposes database resources and transitions to STOPPED. It is
// safe to call even if Start never completed.
func (m *InitManager) Shutdown() {
	m.mu.Lock()
	m.state.Phase = InitPhaseStopped
	m.mu.Unlock()
	if m.discoverer != nil {
		if err := m.discoverer.Close(); err != nil {
			m.logger.Warn("error closing discoverer on shutdown", zap.Error(err))
		}
	}
}

// Describe renders a human-readable status line for the init status tool.
func (m *InitManager) Describe() string {
	s := m.Status()
	switch s.Phase {
	case InitPhaseIdle:
		return "schema index has not started"
	case InitPhaseStarting:
		return "schema index is connecting to the database"
	case InitPhaseRunning:
		return "schema index is performing its initial reflection"
	case InitPhaseReady:
		if s.EnrichmentInProgress {
			return "schema index is ready; background enrichment in progress"
		}
		return "schema index is ready"
	case InitPhaseFailed:
		return "schema index failed to initialize: " + s.ErrorMessage
	case InitPhaseStopped:
		return "schema index has been stopped"
	default:
		return "unknown phase"
	}
}
