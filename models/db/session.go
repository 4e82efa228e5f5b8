package db

import "time"

// SessionRecord is the journal row written when a session ends. The active
// registry never reads it back; it exists for history queries only.
type SessionRecord struct {
	SessionId    string    `json:"sessionId" gorm:"primaryKey;column:session_id" db:"session_id"`
	UserId       string    `json:"userId" gorm:"column:user_id;index" db:"user_id"`
	StartedAt    time.Time `json:"startedAt" gorm:"column:started_at" db:"started_at"`
	EndedAt      time.Time `json:"endedAt" gorm:"column:ended_at" db:"ended_at"`
	DurationSecs int64     `json:"durationSecs" gorm:"column:duration_secs" db:"duration_secs"`
	Destinations string    `json:"destinations" gorm:"column:destinations" db:"destinations"`
}

func (SessionRecord) TableName() string {
	return "session_records"
}
