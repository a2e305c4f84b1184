package datasource

import (
	"net/http"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// AdapterInfo describes a registered adapter for discovery by clients.
type AdapterInfo struct {
	Type        models.DataSourceType `json:"type"`
	DisplayName string                `json:"display_name"`
	Description string                `json:"description"`
	Icon        string                `json:"icon"`
}

// Deps are the shared resources handed to adapter factories.
type Deps struct {
	Pools      *PoolManager
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Registration contains info + factory for one data source type.
type Registration struct {
	Info    AdapterInfo
	Factory func(deps Deps) Adapter
}

var (
	registryMu sync.RWMutex
	registry   = make(map[models.DataSourceType]Registration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(t models.DataSourceType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[t]
	return ok
}

func lookup(t models.DataSourceType) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[t]
	return reg, ok
}
