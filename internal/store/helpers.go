package store

import (
	"database/sql"
	"time"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows, so the scan
// helpers work for single lookups and list iteration alike.
type rowScanner interface {
	Scan(dest ...any) error
}

// Timestamps are stored as REAL unix seconds so ordering and arithmetic
// stay plain SQL. These helpers convert at the scan/exec boundary.

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func timeFromUnix(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second))).UTC()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
