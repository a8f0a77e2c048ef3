package models

import "time"

// AuthResult is the tagged outcome of one authentication attempt. Use the
// Authenticated / AuthFailed constructors rather than building it by hand.
type AuthResult struct {
	Authenticated bool
	Cookies       map[string]string
	UserID        string
	Username      string
	Reason        string
}

// Authenticated builds a successful result. UserID and username may be
// empty; identity resolution is opportunistic and its failure does not
// fail authentication.
func Authenticated(cookies map[string]string, userID, username string) *AuthResult {
	return &AuthResult{
		Authenticated: true,
		Cookies:       cookies,
		UserID:        userID,
		Username:      username,
	}
}

// AuthFailed builds a failed result carrying the causal reason.
func AuthFailed(reason string) *AuthResult {
	return &AuthResult{Reason: reason}
}

// UserBalance is a normalized (dollar) quota/used pair.
type UserBalance struct {
	Quota float64 `json:"quota"`
	Used  float64 `json:"used"`
}

// BalanceDelta is the movement against the previously persisted record.
// Recharge is (quota+used) - (old_quota+old_used): top-ups net of usage.
type BalanceDelta struct {
	Recharge    float64 `json:"recharge"`
	UsedChange  float64 `json:"used_change"`
	QuotaChange float64 `json:"quota_change"`
}

// IsZero reports whether nothing moved since the last run.
func (d BalanceDelta) IsZero() bool {
	return d.Recharge == 0 && d.UsedChange == 0 && d.QuotaChange == 0
}

// CheckInOutcome records one (account, auth method) attempt for the run
// report. Not persisted beyond the run and the optional history archive.
type CheckInOutcome struct {
	Account   string        `json:"account"`
	Provider  string        `json:"provider"`
	Method    AuthMethod    `json:"method"`
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	Balance   *UserBalance  `json:"balance,omitempty"`
	Delta     *BalanceDelta `json:"delta,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// RunReport aggregates all outcomes of one process invocation.
type RunReport struct {
	ID           string           `json:"id"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	Outcomes     []CheckInOutcome `json:"outcomes"`
	SuccessCount int              `json:"success_count"`
	TotalCount   int              `json:"total_count"`
	BalanceHash  string           `json:"balance_hash,omitempty"`
}

// AnySuccess reports whether at least one (account, method) succeeded;
// this drives the process exit code.
func (r *RunReport) AnySuccess() bool {
	return r.SuccessCount > 0
}

// AllSuccess reports whether every attempted combination succeeded.
func (r *RunReport) AllSuccess() bool {
	return r.TotalCount > 0 && r.SuccessCount == r.TotalCount
}
