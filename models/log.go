package models

import "time"

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type SearchLog struct {
	ID        int64     `json:"id" db:"id"`
	JobID     *string   `json:"job_id" db:"job_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
	SourceID  string    `json:"source_id" db:"source_id"`
}
