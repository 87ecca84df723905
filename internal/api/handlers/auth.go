package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/kokorotts/internal/auth"
	"github.com/nikhilbhutani/kokorotts/internal/models"
)

type AuthHandler struct {
	svc    *auth.Service
	logger *slog.Logger
}

func NewAuthHandler(svc *auth.Service, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{svc: svc, logger: logger}
}

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, msgInvalidBody)
		return
	}

	session, err := h.svc.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		var perr *auth.PasswordError
		switch {
		case errors.As(err, &perr):
			writeDetail(w, http.StatusBadRequest, perr.Message)
		case errors.Is(err, auth.ErrEmailTaken):
			writeDetail(w, http.StatusBadRequest, msgEmailTaken)
		case errors.Is(err, auth.ErrInvalidEmail):
			writeDetail(w, http.StatusUnprocessableEntity, msgInvalidEmail)
		case errors.Is(err, auth.ErrInvalidName):
			writeDetail(w, http.StatusUnprocessableEntity, msgNameTooLong)
		case errors.Is(err, auth.ErrFieldTooLong):
			writeDetail(w, http.StatusUnprocessableEntity, msgFieldTooLong)
		default:
			h.internal(w, r, "register failed", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, msgInvalidBody)
		return
	}

	session, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, msgBadCredentials)
		case errors.Is(err, auth.ErrForbidden):
			writeDetail(w, http.StatusForbidden, msgInactive)
		default:
			h.internal(w, r, "login failed", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// Me returns the authenticated user's public profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, user.Public())
}

func (h *AuthHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var update models.Preferences
	if err := decodeJSON(w, r, &update, true); err != nil {
		if isUnknownField(err) {
			writeDetail(w, http.StatusUnprocessableEntity, msgInvalidPrefs)
			return
		}
		writeDetail(w, http.StatusUnprocessableEntity, msgInvalidBody)
		return
	}

	prefs, err := h.svc.UpdatePreferences(r.Context(), auth.UserFromContext(r.Context()), update)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPreferences) {
			writeDetail(w, http.StatusUnprocessableEntity, msgInvalidPrefs)
			return
		}
		h.internal(w, r, "update preferences failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Préférences mises à jour",
		"preferences": prefs,
	})
}

func (h *AuthHandler) AddFavoriteVoice(w http.ResponseWriter, r *http.Request) {
	voice := chi.URLParam(r, "name")

	favorites, err := h.svc.AddFavoriteVoice(r.Context(), auth.UserFromContext(r.Context()), voice)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidVoice) {
			writeDetail(w, http.StatusBadRequest, msgInvalidVoice)
			return
		}
		h.internal(w, r, "add favorite voice failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":         "Voix ajoutée aux favoris",
		"favorite_voices": favorites,
	})
}

func (h *AuthHandler) internal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg, "error", err)
	writeDetail(w, http.StatusInternalServerError, msgInternal)
}
