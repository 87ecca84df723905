package queue

import "github.com/nikhilbhutani/kokorotts/internal/models"

const (
	TypeHistoryRecord = "history:record"
	TypeArtifactSweep = "artifact:sweep"
)

type HistoryRecordPayload struct {
	UserID int64               `json:"user_id"`
	Entry  models.HistoryEntry `json:"entry"`
}

type ArtifactSweepPayload struct {
	MaxAgeSeconds int64 `json:"max_age_seconds"`
}
