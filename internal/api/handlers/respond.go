package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Client-facing messages.
const (
	msgInternal        = "Erreur interne du serveur"
	msgInvalidBody     = "Corps de requête invalide"
	msgEmptyText       = "Le texte ne peut pas être vide."
	msgTextTooLong     = "Le texte ne doit pas dépasser 500 caractères."
	msgGenerationFail  = "La génération audio a échoué."
	msgOutOfMemory     = "La génération audio a été interrompue par le système (mémoire insuffisante). Veuillez réessayer avec un texte plus court."
	msgArtifactMissing = "Le fichier audio n'a pas été généré."
	msgTimeout         = "La génération audio a pris trop de temps. Veuillez réessayer avec un texte plus court."
	msgEmailTaken      = "Cet email est déjà utilisé"
	msgInvalidEmail    = "Adresse email invalide"
	msgNameTooLong     = "Le nom ne doit pas dépasser 255 caractères"
	msgFieldTooLong    = "Valeur trop longue"
	msgBadCredentials  = "Email ou mot de passe incorrect"
	msgInactive        = "Compte désactivé"
	msgInvalidVoice    = "Nom de voix invalide"
	msgInvalidPrefs    = "Préférences invalides"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// decodeJSON reads one JSON object from the body into dst. With strict set,
// unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, strict bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func isUnknownField(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "json: unknown field")
}
