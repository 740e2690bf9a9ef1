package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierops/dispatchd/core/model"
)

func sampleRequests() []model.Request {
	deadline := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return []model.Request{
		{ID: "r1", Status: model.RequestDelivered, AssignedTo: "d1", Size: 3, CreatedAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)},
		{ID: "r2", Status: model.RequestFailed, FailReason: "capacity_exceeded", Size: 9, Priority: 2, CreatedAt: time.Date(2025, 6, 1, 8, 5, 0, 0, time.UTC), Deadline: &deadline},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRequests()))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "id", recs[0][0])
	assert.Equal(t, []string{"r1", "delivered", "", "d1", "3", "0", "2025-06-01T08:00:00Z", ""}, recs[1])
	assert.Equal(t, "capacity_exceeded", recs[2][2])
	assert.Equal(t, "2025-06-01T10:00:00Z", recs[2][7])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleRequests()))
	out := buf.String()
	assert.True(t, strings.Contains(out, `"r1"`))
	assert.True(t, strings.Contains(out, `"capacity_exceeded"`))
}
