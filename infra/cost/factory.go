package cost

import (
	"time"

	corecost "github.com/courierops/dispatchd/core/cost"
	"github.com/courierops/dispatchd/core/factory"
)

// init registers the built-in cost providers. The haversine provider is for
// simulation only and must be selected explicitly.
func init() {
	_ = corecost.RegisterProvider("haversine", func(conf map[string]any) (corecost.Provider, error) {
		var c struct {
			SpeedMPS float64 `json:"speed_mps"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewHaversine(c.SpeedMPS), nil
	})

	_ = corecost.RegisterProvider("osrm", func(conf map[string]any) (corecost.Provider, error) {
		var c struct {
			BaseURL        string  `json:"base_url"`
			TimeoutSeconds int     `json:"timeout_seconds"`
			ReqPerSec      float64 `json:"req_per_sec"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewOSRM(c.BaseURL, time.Duration(c.TimeoutSeconds)*time.Second, c.ReqPerSec), nil
	})

	_ = corecost.RegisterProvider("google", func(conf map[string]any) (corecost.Provider, error) {
		var c struct {
			APIKey string `json:"api_key"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewGoogle(c.APIKey)
	})
}
