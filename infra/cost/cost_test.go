package cost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corecost "github.com/courierops/dispatchd/core/cost"
	"github.com/courierops/dispatchd/core/model"
)

func TestHaversineMatrixSymmetry(t *testing.T) {
	p := NewHaversine(10)
	locs := []model.Location{
		{Lat: 19.07, Lon: 72.87},
		{Lat: 19.08, Lon: 72.88},
		{Lat: 19.09, Lon: 72.89},
	}
	m, err := p.Matrix(context.Background(), locs)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, time.Duration(0), m.Duration(1, 1))
	assert.Equal(t, m.DistanceM(0, 2), m.DistanceM(2, 0))
	assert.Greater(t, m.Duration(0, 2), m.Duration(0, 1))
}

func osrmBody(n int) string {
	row := func() string {
		s := ""
		for j := 0; j < n; j++ {
			if j > 0 {
				s += ","
			}
			s += "60"
		}
		return s
	}
	rows := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			rows += ","
		}
		rows += "[" + row() + "]"
	}
	return fmt.Sprintf(`{"code":"Ok","durations":[%s],"distances":[%s]}`, rows, rows)
}

func TestOSRMMatrix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/table/v1/driving/")
		fmt.Fprint(w, osrmBody(2))
	}))
	defer srv.Close()

	o := NewOSRM(srv.URL, time.Second, 0)
	m, err := o.Matrix(context.Background(), []model.Location{{Lat: 1, Lon: 2}, {Lat: 3, Lon: 4}})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, m.Duration(0, 1))
}

func TestOSRMServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	o := NewOSRM(srv.URL, time.Second, 0)
	_, err := o.Matrix(context.Background(), []model.Location{{Lat: 1, Lon: 2}})
	assert.ErrorIs(t, err, corecost.ErrUnavailable)
}

func TestOSRMNoRouteIsInvalidLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"code":"Ok","durations":[[0,null],[null,0]],"distances":[[0,null],[null,0]]}`)
	}))
	defer srv.Close()

	o := NewOSRM(srv.URL, time.Second, 0)
	_, err := o.Matrix(context.Background(), []model.Location{{Lat: 1, Lon: 2}, {Lat: 90, Lon: 0}})
	assert.ErrorIs(t, err, corecost.ErrInvalidLocation)
}

func TestOSRMConnectionRefusedIsUnavailable(t *testing.T) {
	o := NewOSRM("http://127.0.0.1:1", 200*time.Millisecond, 0)
	_, err := o.Matrix(context.Background(), []model.Location{{Lat: 1, Lon: 2}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, corecost.ErrUnavailable))
}
