package datasource

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// AdapterFactory hands out adapters from the registry. Dispatch is by type only.
type AdapterFactory interface {
	// Get returns the adapter for t, or a ConfigurationError when no adapter
	// for t is compiled in.
	Get(t models.DataSourceType) (Adapter, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []AdapterInfo
}

type registryFactory struct {
	deps     Deps
	mu       sync.Mutex
	adapters map[models.DataSourceType]Adapter
}

// NewAdapterFactory returns a factory backed by the global registry. Adapters
// are built on first use and reused afterwards.
func NewAdapterFactory(deps Deps) AdapterFactory {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &registryFactory{
		deps:     deps,
		adapters: make(map[models.DataSourceType]Adapter),
	}
}

func (f *registryFactory) Get(t models.DataSourceType) (Adapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if a, ok := f.adapters[t]; ok {
		return a, nil
	}
	reg, ok := lookup(t)
	if !ok {
		return nil, apperrors.NewConfigurationError(string(t), "unsupported data source type", nil)
	}
	a := reg.Factory(f.deps)
	f.adapters[t] = a
	return a, nil
}

func (f *registryFactory) ListTypes() []AdapterInfo {
	return RegisteredAdapters()
}

var _ AdapterFactory = (*registryFactory)(nil)
