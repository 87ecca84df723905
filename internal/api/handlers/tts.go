package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/nikhilbhutani/kokorotts/internal/auth"
	"github.com/nikhilbhutani/kokorotts/internal/models"
	"github.com/nikhilbhutani/kokorotts/internal/tts"
)

// Generator produces one audio artifact per call.
type Generator interface {
	Generate(ctx context.Context, text string) (*tts.Artifact, error)
}

// HistoryRecorder persists a synthesis for an identified user. Both the user
// repository and the task queue client satisfy it.
type HistoryRecorder interface {
	RecordHistory(ctx context.Context, userID int64, entry models.HistoryEntry) error
}

type TTSHandler struct {
	gen     Generator
	voice   string
	history HistoryRecorder
	logger  *slog.Logger
	now     func() time.Time
}

func NewTTSHandler(gen Generator, voice string, history HistoryRecorder, logger *slog.Logger) *TTSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TTSHandler{gen: gen, voice: voice, history: history, logger: logger, now: time.Now}
}

type ttsRequest struct {
	Text *string `json:"text"`
}

type ttsResponse struct {
	AudioFile string `json:"audio_file"`
}

// Synthesize turns {"text": ...} into {"audio_file": "/outputs/<name>.wav"}.
func (h *TTSHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := decodeJSON(w, r, &req, false); err != nil || req.Text == nil {
		writeDetail(w, http.StatusUnprocessableEntity, msgInvalidBody)
		return
	}

	text, err := tts.ValidateText(*req.Text)
	switch {
	case errors.Is(err, tts.ErrEmptyText):
		writeDetail(w, http.StatusBadRequest, msgEmptyText)
		return
	case errors.Is(err, tts.ErrTextTooLong):
		writeDetail(w, http.StatusUnprocessableEntity, msgTextTooLong)
		return
	}

	art, err := h.gen.Generate(r.Context(), text)
	if err != nil {
		status, msg := synthesisStatus(err)
		writeDetail(w, status, msg)
		return
	}

	// History is best effort; it never changes the response.
	if user := auth.UserFromContext(r.Context()); user != nil && h.history != nil {
		entry := models.HistoryEntry{
			Text:      text,
			Voice:     h.voice,
			CreatedAt: h.now().UTC(),
			AudioFile: art.URL,
		}
		if err := h.history.RecordHistory(r.Context(), user.ID, entry); err != nil {
			h.logger.WarnContext(r.Context(), "failed to record history",
				"user_id", user.ID, "artifact", art.FileName, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, ttsResponse{AudioFile: art.URL})
}

func synthesisStatus(err error) (int, string) {
	switch {
	case errors.Is(err, tts.ErrTimeout):
		return http.StatusGatewayTimeout, msgTimeout
	case errors.Is(err, tts.ErrKilled):
		return http.StatusInternalServerError, msgOutOfMemory
	case errors.Is(err, tts.ErrArtifactMissing):
		return http.StatusInternalServerError, msgArtifactMissing
	case errors.Is(err, tts.ErrEmptyText):
		return http.StatusBadRequest, msgEmptyText
	case errors.Is(err, tts.ErrTextTooLong):
		return http.StatusUnprocessableEntity, msgTextTooLong
	default:
		return http.StatusInternalServerError, msgGenerationFail
	}
}
