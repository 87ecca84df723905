package users

import (
	"context"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/nikhilbhutani/kokorotts/internal/models"
)

// MemoryRepository is an in-process Repository used by `serve --memory`
// and by tests. Nothing survives a restart.
type MemoryRepository struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*models.User
	byEmail map[string]int64
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[int64]*models.User),
		byEmail: make(map[string]int64),
		now:     time.Now,
	}
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func (r *MemoryRepository) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if utf8.RuneCountInString(u.Email) > MaxFieldLength || (u.Name != nil && utf8.RuneCountInString(*u.Name) > MaxFieldLength) {
		return nil, ErrValueTooLong
	}
	if _, ok := r.byEmail[u.Email]; ok {
		return nil, ErrEmailTaken
	}
	r.nextID++
	stored := cloneUser(u)
	stored.ID = r.nextID
	stored.CreatedAt = r.now().UTC()
	stored.FavoriteVoices = nonNilStrings(stored.FavoriteVoices)
	stored.History = nonNilHistory(stored.History)
	r.byID[stored.ID] = stored
	r.byEmail[stored.Email] = stored.ID
	return cloneUser(stored), nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *MemoryRepository) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	return r.mutate(id, func(u *models.User) {
		u.LastLogin = &at
	})
}

func (r *MemoryRepository) UpdatePreferences(_ context.Context, id int64, update models.Preferences) (models.Preferences, error) {
	var merged models.Preferences
	err := r.mutate(id, func(u *models.User) {
		u.Preferences = u.Preferences.Merge(update)
		merged = u.Preferences
	})
	return merged, err
}

func (r *MemoryRepository) AddFavoriteVoice(_ context.Context, id int64, voice string) ([]string, error) {
	var favorites []string
	err := r.mutate(id, func(u *models.User) {
		if !slices.Contains(u.FavoriteVoices, voice) {
			u.FavoriteVoices = append(u.FavoriteVoices, voice)
		}
		favorites = slices.Clone(u.FavoriteVoices)
	})
	return favorites, err
}

func (r *MemoryRepository) RecordHistory(_ context.Context, id int64, entry models.HistoryEntry) error {
	return r.mutate(id, func(u *models.User) {
		u.History = append(u.History, entry)
	})
}

// SetActive flips the active flag; there is no HTTP surface for it.
func (r *MemoryRepository) SetActive(id int64, active bool) error {
	return r.mutate(id, func(u *models.User) { u.IsActive = active })
}

func (r *MemoryRepository) mutate(id int64, fn func(u *models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(u)
	now := r.now().UTC()
	u.UpdatedAt = &now
	return nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.FavoriteVoices = slices.Clone(u.FavoriteVoices)
	c.History = slices.Clone(u.History)
	if u.Credits != nil {
		v := *u.Credits
		c.Credits = &v
	}
	return &c
}
