package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	speed float64
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry[*fakeProvider]()
	require.NoError(t, reg.Register("fake", func(conf map[string]any) (*fakeProvider, error) {
		var c struct {
			Speed float64 `json:"speed"`
		}
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &fakeProvider{speed: c.Speed}, nil
	}))

	p, err := reg.Create(ModuleConfig{Type: "fake", Conf: map[string]any{"speed": 8.5}})
	require.NoError(t, err)
	assert.Equal(t, 8.5, p.speed)

	_, err = reg.Create(ModuleConfig{Type: "missing"})
	assert.Error(t, err)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry[int]()
	f := func(map[string]any) (int, error) { return 1, nil }
	require.NoError(t, reg.Register("one", f))
	assert.Error(t, reg.Register("one", f))
	assert.Error(t, reg.Register("nil", nil))
	assert.Contains(t, reg.Types(), "one")
}
