package models

import (
	"time"
)

type User struct {
	ID             int64          `json:"id" db:"id"`
	Email          string         `json:"email" db:"email"`
	HashedPassword string         `json:"-" db:"hashed_password"`
	Name           *string        `json:"name" db:"name"`
	IsActive       bool           `json:"is_active" db:"is_active"`
	IsVerified     bool           `json:"is_verified" db:"is_verified"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty" db:"updated_at"`
	LastLogin      *time.Time     `json:"last_login" db:"last_login"`
	FavoriteVoices []string       `json:"favorite_voices" db:"favorite_voices"`
	History        []HistoryEntry `json:"history" db:"history"`
	Credits        *int           `json:"credits" db:"credits"`
	Preferences    Preferences    `json:"preferences" db:"preferences"`
}

// HistoryEntry records one synthesis performed by an identified user.
type HistoryEntry struct {
	Text      string    `json:"text"`
	Voice     string    `json:"voice"`
	CreatedAt time.Time `json:"created_at"`
	AudioFile string    `json:"audio_file"`
}

// Preferences holds the recognized per-user settings. Nil fields are unset.
type Preferences struct {
	DefaultVoice *string  `json:"default_voice,omitempty"`
	DefaultSpeed *float64 `json:"default_speed,omitempty"`
	Language     *string  `json:"language,omitempty"`
}

// Merge returns p with every field set in update overwritten.
func (p Preferences) Merge(update Preferences) Preferences {
	if update.DefaultVoice != nil {
		p.DefaultVoice = update.DefaultVoice
	}
	if update.DefaultSpeed != nil {
		p.DefaultSpeed = update.DefaultSpeed
	}
	if update.Language != nil {
		p.Language = update.Language
	}
	return p
}

// PublicUser is the outward representation of a User; it never carries the
// password hash or the history.
type PublicUser struct {
	ID             int64       `json:"id"`
	Email          string      `json:"email"`
	Name           *string     `json:"name"`
	IsActive       bool        `json:"is_active"`
	IsVerified     bool        `json:"is_verified"`
	CreatedAt      *time.Time  `json:"created_at"`
	LastLogin      *time.Time  `json:"last_login"`
	FavoriteVoices []string    `json:"favorite_voices"`
	Credits        *int        `json:"credits"`
	Preferences    Preferences `json:"preferences"`
}

func (u *User) Public() PublicUser {
	favorites := u.FavoriteVoices
	if favorites == nil {
		favorites = []string{}
	}
	var created *time.Time
	if !u.CreatedAt.IsZero() {
		c := u.CreatedAt
		created = &c
	}
	return PublicUser{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		IsActive:       u.IsActive,
		IsVerified:     u.IsVerified,
		CreatedAt:      created,
		LastLogin:      u.LastLogin,
		FavoriteVoices: favorites,
		Credits:        u.Credits,
		Preferences:    u.Preferences,
	}
}
