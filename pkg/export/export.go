// Package export writes terminal request records to JSON or CSV for
// reporting and offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/courierops/dispatchd/core/model"
)

// WriteJSON writes the requests to w as a JSON array.
func WriteJSON(w io.Writer, reqs []model.Request) error {
	return json.NewEncoder(w).Encode(reqs)
}

// WriteCSV writes the requests to w as CSV with a header row.
func WriteCSV(w io.Writer, reqs []model.Request) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "status", "fail_reason", "driver", "size", "priority", "created_at", "deadline"}); err != nil {
		return err
	}
	for _, r := range reqs {
		deadline := ""
		if r.Deadline != nil {
			deadline = r.Deadline.Format(time.RFC3339)
		}
		rec := []string{
			r.ID,
			r.Status.String(),
			r.FailReason,
			r.AssignedTo,
			strconv.FormatFloat(r.Size, 'f', -1, 64),
			strconv.Itoa(r.Priority),
			r.CreatedAt.Format(time.RFC3339),
			deadline,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
