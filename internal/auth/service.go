package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nikhilbhutani/kokorotts/internal/models"
	"github.com/nikhilbhutani/kokorotts/internal/users"
)

var voiceNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Session is what register and login hand back to the client.
type Session struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	User        models.PublicUser `json:"user"`
}

// Service is the credential store: registration, login, bearer token
// authentication and the authenticated profile mutations.
type Service struct {
	repo   users.Repository
	tokens *TokenIssuer
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo users.Repository, tokens *TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, logger: logger, now: time.Now}
}

// Register validates the password, rejects a known email and stores a new
// active user with a bcrypt hash.
func (s *Service) Register(ctx context.Context, email, password string, name *string) (*Session, error) {
	email = strings.TrimSpace(email)
	if len(email) > users.MaxFieldLength {
		return nil, ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, " <>") {
		return nil, ErrInvalidEmail
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if utf8.RuneCountInString(trimmed) > users.MaxFieldLength {
			return nil, ErrInvalidName
		}
		name = &trimmed
		if trimmed == "" {
			name = nil
		}
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, users.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.Create(ctx, &models.User{
		Email:          email,
		HashedPassword: hash,
		Name:           name,
		IsActive:       true,
		FavoriteVoices: []string{},
		History:        []models.HistoryEntry{},
	})
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		if errors.Is(err, users.ErrValueTooLong) {
			return nil, fmt.Errorf("%w: %w", ErrFieldTooLong, err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID)
	return s.session(u)
}

// Login verifies credentials. Unknown email and wrong password produce the
// same ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !VerifyPassword(password, u.HashedPassword) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrForbidden
	}

	now := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	u.LastLogin = &now

	s.logger.InfoContext(ctx, "user logged in", "user_id", u.ID)
	return s.session(u)
}

// Authenticate resolves a bearer token to its user. Invalid or expired
// tokens and vanished users yield ErrUnauthorized; inactive users ErrForbidden.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	id, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %d no longer exists", ErrUnauthorized, id)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrForbidden
	}
	return u, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, u *models.User, update models.Preferences) (models.Preferences, error) {
	if err := validatePreferences(update); err != nil {
		return models.Preferences{}, err
	}
	prefs, err := s.repo.UpdatePreferences(ctx, u.ID, update)
	if err != nil {
		return models.Preferences{}, fmt.Errorf("update preferences: %w", err)
	}
	return prefs, nil
}

// AddFavoriteVoice appends voice to the user's favorites unless already present.
func (s *Service) AddFavoriteVoice(ctx context.Context, u *models.User, voice string) ([]string, error) {
	if !voiceNameRe.MatchString(voice) {
		return nil, ErrInvalidVoice
	}
	favorites, err := s.repo.AddFavoriteVoice(ctx, u.ID, voice)
	if err != nil {
		return nil, fmt.Errorf("add favorite voice: %w", err)
	}
	return favorites, nil
}

func (s *Service) session(u *models.User) (*Session, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: token, TokenType: "bearer", User: u.Public()}, nil
}

func validatePreferences(p models.Preferences) error {
	if p.DefaultVoice != nil && !voiceNameRe.MatchString(*p.DefaultVoice) {
		return fmt.Errorf("%w: default_voice", ErrInvalidPreferences)
	}
	if p.DefaultSpeed != nil {
		v := *p.DefaultSpeed
		if math.IsNaN(v) || v < 0.5 || v > 2.0 {
			return fmt.Errorf("%w: default_speed must be between 0.5 and 2.0", ErrInvalidPreferences)
		}
	}
	if p.Language != nil && (len(*p.Language) == 0 || len(*p.Language) > 16) {
		return fmt.Errorf("%w: language", ErrInvalidPreferences)
	}
	return nil
}
