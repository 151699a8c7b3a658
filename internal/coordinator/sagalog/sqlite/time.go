package sqlite

import (
	"fmt"
	"time"
)

// SQLite has no datetime type; rows store RFC3339 TEXT in UTC with a fixed
// nine-digit fraction, so ORDER BY on the column is chronological.
const storedLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedLayout)
}

func parseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}
