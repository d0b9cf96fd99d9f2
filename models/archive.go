// File: models/archive.go
package models

import "time"

// SessionArchive is the record written when a session completes.
type SessionArchive struct {
	Session    LiveSession       `json:"session"`
	Queue      []QueueItem       `json:"queue"`
	Decisions  []AttemptDecision `json:"decisions"`
	ArchivedAt time.Time         `json:"archivedAt"`
}
