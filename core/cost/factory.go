package cost

import "github.com/courierops/dispatchd/core/factory"

// Config selects and configures the cost provider.
type Config struct {
	Provider factory.ModuleConfig `json:"provider"`
	// Cache memoizes matrices for identical location sets between cycles.
	Cache bool `json:"cache"`
}

var providerRegistry = factory.NewRegistry[Provider]()

// RegisterProvider adds a cost provider factory identified by name.
func RegisterProvider(name string, f factory.Factory[Provider]) error {
	return providerRegistry.Register(name, f)
}

// NewProvider creates a Provider from the provided configuration.
func NewProvider(cfg Config) (Provider, error) {
	p, err := providerRegistry.Create(cfg.Provider)
	if err != nil {
		return nil, err
	}
	if cfg.Cache {
		p = NewCached(p)
	}
	return p, nil
}
