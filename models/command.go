package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdSearchNow CommandType = "search_now"
	CmdRunSaved  CommandType = "run_saved"
	CmdPause     CommandType = "pause"
	CmdResume    CommandType = "resume"
)

// Command is a one-shot instruction dropped into the operational store by an
// external tool and picked up by the scheduler's poll loop.
type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	SavedSearchID int64 `json:"saved_search_id,omitempty"`
}

// SavedSearch is a recurring search re-executed by the scheduler.
type SavedSearch struct {
	ID        int64          `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	Owner     string         `json:"owner" db:"owner"`
	Criteria  SearchCriteria `json:"criteria" db:"criteria"`
	Active    bool           `json:"active" db:"active"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	LastRunAt *time.Time     `json:"last_run_at" db:"last_run_at"`
}
