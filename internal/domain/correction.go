package domain

import "time"

// CorrectionProposal is a field-level edit proposed by an external
// corrector (the Secretary AI or a manual edit UI). Proposal sources never
// mutate state directly; they go through priority arbitration.
type CorrectionProposal struct {
	CorrectedValue string
	Field          string
	ProposedAt     time.Time
	Reason         string
	SessionID      string
	Source         Source
	UserID         string
}

// AICorrection is the append-only audit record of an applied correction.
// Rows are never mutated except flipping Reverted.
type AICorrection struct {
	CorrectedValue string
	CreatedAt      time.Time
	Date           string
	Field          string
	ID             string
	OriginalValue  string
	Reason         string
	Reverted       bool
	SessionID      string
	Source         Source
	UserID         string
}
