package models

import "time"

// SyncResult summarizes one synchronization run of one connection.
type SyncResult struct {
	ItemID          string    `json:"itemId"`
	Imported        int       `json:"imported"`
	AlreadySynced   int       `json:"alreadySynced"`
	Duplicates      int       `json:"duplicates"`
	Errors          int       `json:"errors"`
	Reconciled      int       `json:"reconciled"`
	ReconcileErrors int       `json:"reconcileErrors"`
	Failed          bool      `json:"failed"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
}

// Fail marks the run as failed with err.
func (r *SyncResult) Fail(err error) {
	r.Failed = true
	if err != nil {
		r.Error = err.Error()
	}
}
