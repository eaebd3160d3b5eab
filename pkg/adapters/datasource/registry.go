package datasource

import (
	"context"
	"fmt"
	"sync"
)

// DatasourceAdapterInfo describes a registered dialect for diagnostics/status output.
type DatasourceAdapterInfo struct {
	Dialect     string `json:"dialect"`
	DisplayName string `json:"display_name"`
}

type registration struct {
	info              DatasourceAdapterInfo
	discovererFactory DiscovererFactory
	executorFactory   ExecutorFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// Register is called by each dialect package's init() function.
// Thread-safe for concurrent init() calls.
func Register(info DatasourceAdapterInfo, discovererFactory DiscovererFactory, executorFactory ExecutorFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[info.Dialect] = registration{
		info:              info,
		discovererFactory: discovererFactory,
		executorFactory:   executorFactory,
	}
}

// RegisteredDialects returns info for all compiled-in dialects.
func RegisteredDialects() []DatasourceAdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]DatasourceAdapterInfo, 0, len(registry))
	for _, reg := range registry {
		out = append(out, reg.info)
	}
	return out
}

// NewSchemaDiscoverer constructs a SchemaDiscoverer for the given dialect.
func NewSchemaDiscoverer(ctx context.Context, dialect, databaseURL string) (SchemaDiscoverer, error) {
	registryMu.RLock()
	reg, ok := registry[dialect]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported dialect: %s (not compiled in)", dialect)
	}
	return reg.discovererFactory(ctx, databaseURL)
}

// NewQueryExecutor constructs a QueryExecutor for the given dialect.
func NewQueryExecutor(ctx context.Context, dialect, databaseURL string) (QueryExecutor, error) {
	registryMu.RLock()
	reg, ok := registry[dialect]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported dialect: %s (not compiled in)", dialect)
	}
	return reg.executorFactory(ctx, databaseURL)
}

// IsRegistered reports whether a dialect has a compiled-in adapter.
func IsRegistered(dialect string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dialect]
	return ok
}
