package models

// IngestResult is the single-date invocation result.
type IngestResult struct {
	Date     string   `json:"date"`
	Success  bool     `json:"success"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// BackfillProgress is the run-scoped state of a backfill. It is owned
// by the controller for the duration of one run and never persisted.
type BackfillProgress struct {
	Total           int
	Processed       int
	Succeeded       int
	Failed          int
	Errors          []string
	CredentialIndex int
}

// BackfillSummary is returned to the caller when a backfill completes.
// The caller decides whether to re-run failed dates.
type BackfillSummary struct {
	Start       string   `json:"start"`
	End         string   `json:"end"`
	TradingDays int      `json:"trading_days"`
	Succeeded   int      `json:"succeeded"`
	Failed      int      `json:"failed"`
	Errors      []string `json:"errors,omitempty"`
}
