package models

import "time"

// BalanceRecord is the last known normalized balance for one
// "{account}_{method}" key. Owned exclusively by the balance tracker and
// overwritten after every successful balance fetch.
type BalanceRecord struct {
	Quota     float64   `json:"quota"`
	Used      float64   `json:"used"`
	Timestamp time.Time `json:"timestamp"`
}
