package archive

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierops/dispatchd/core/model"
)

func TestArchivedRequestKeepsFractionalSize(t *testing.T) {
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	doc := newArchivedRequest(model.Request{
		ID:       "r1",
		Status:   model.RequestDelivered,
		Size:     2.5,
		Priority: 1,
	}, at)
	assert.Equal(t, 2.5, doc.Size)

	payload, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"size":2.5`)
	assert.Contains(t, string(payload), `"status":"delivered"`)
}
