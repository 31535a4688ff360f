package db

import (
	"database/sql"
	"fmt"
	"time"
)

// timeLayout is the on-disk timestamp format: UTC, millisecond precision,
// lexically sortable.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Accept RFC 3339 written by older builds or by hand.
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}

// timeToNullString converts a nullable time to a column value.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func stringToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func floatToNull(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// timeCol scans a NOT NULL timestamp column.
type timeCol struct{ dst *time.Time }

func (c timeCol) Scan(src any) error {
	var s sql.NullString
	if err := s.Scan(src); err != nil {
		return err
	}
	if !s.Valid {
		return fmt.Errorf("unexpected NULL timestamp")
	}
	t, err := parseTime(s.String)
	if err != nil {
		return err
	}
	*c.dst = t
	return nil
}

// nullTimeCol scans a nullable timestamp column into a *time.Time.
type nullTimeCol struct{ dst **time.Time }

func (c nullTimeCol) Scan(src any) error {
	var s sql.NullString
	if err := s.Scan(src); err != nil {
		return err
	}
	if !s.Valid || s.String == "" {
		*c.dst = nil
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return err
	}
	*c.dst = &t
	return nil
}

// nullStringCol scans a nullable text column into a *string.
type nullStringCol struct{ dst **string }

func (c nullStringCol) Scan(src any) error {
	var s sql.NullString
	if err := s.Scan(src); err != nil {
		return err
	}
	if !s.Valid {
		*c.dst = nil
		return nil
	}
	v := s.String
	*c.dst = &v
	return nil
}

// nullFloatCol scans a nullable real column into a *float64.
type nullFloatCol struct{ dst **float64 }

func (c nullFloatCol) Scan(src any) error {
	var f sql.NullFloat64
	if err := f.Scan(src); err != nil {
		return err
	}
	if !f.Valid {
		*c.dst = nil
		return nil
	}
	v := f.Float64
	*c.dst = &v
	return nil
}
