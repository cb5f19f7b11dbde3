package domain

import "time"

// SyncStats holds statistics about a sync operation.
type SyncStats struct {
	Fetched   int
	Created   int
	Updated   int
	Skipped   int
	Published int
	Duration  time.Duration
}

// Saved returns the number of posts written during the cycle.
func (s *SyncStats) Saved() int {
	return s.Created + s.Updated
}
