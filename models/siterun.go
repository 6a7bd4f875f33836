package models

import "time"

type SiteState string

const (
	SiteStatePending    SiteState = "pending"
	SiteStateConnecting SiteState = "connecting"
	SiteStateFetching   SiteState = "fetching"
	SiteStateParsing    SiteState = "parsing"
	SiteStateOK         SiteState = "ok"
	SiteStateError      SiteState = "error"
	SiteStateSkipped    SiteState = "skipped"
	SiteStateCancelled  SiteState = "cancelled"
)

func (s SiteState) Terminal() bool {
	switch s {
	case SiteStateOK, SiteStateError, SiteStateSkipped, SiteStateCancelled:
		return true
	}
	return false
}

type PassLevel string

const (
	PassStrict      PassLevel = "strict"
	PassRelaxed     PassLevel = "relaxed"
	PassOpportunity PassLevel = "opportunity"
)

// Pass attempt outcomes.
const (
	PassOutcomeOK     = "ok"
	PassOutcomeEmpty  = "empty"
	PassOutcomeCached = "cached"
	PassOutcomeError  = "error"
)

// PassAttempt records one relaxation pass against one source.
type PassAttempt struct {
	Pass      PassLevel     `json:"pass"`
	Strategy  string        `json:"strategy,omitempty"`
	Outcome   string        `json:"outcome"`
	ItemCount int           `json:"item_count"`
	Duration  time.Duration `json:"duration"`
	Note      string        `json:"note,omitempty"`

	// ErrorClass carries the fetch failure class (transient, blocked,
	// fatal) when the pass errored.
	ErrorClass string `json:"error_class,omitempty"`
}

// SiteRun is the record of one source's execution within one search job.
// Mutated only by the SiteRunner that owns it; immutable once terminal.
type SiteRun struct {
	Source     string        `json:"source"`
	State      SiteState     `json:"state"`
	Passes     []PassAttempt `json:"passes,omitempty"`
	ItemCount  int           `json:"item_count"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	ErrorClass string        `json:"error_class,omitempty"`

	// Note carries non-fatal diagnostics such as a skip reason for a
	// disabled source or a parser-drift observation.
	Note string `json:"note,omitempty"`
}
