package users

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/kokorotts/internal/models"
)

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	u, err := repo.Create(ctx, &models.User{Email: "a@example.com", HashedPassword: "h", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", byID.Email)

	byEmail, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = repo.GetByEmail(ctx, "A@example.com")
	assert.ErrorIs(t, err, ErrNotFound, "emails are case-sensitive as stored")
}

func TestMemoryRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.Create(ctx, &models.User{Email: "dup@example.com"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.User{Email: "dup@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestMemoryRepository_EnforcesColumnLimits(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.Create(ctx, &models.User{Email: strings.Repeat("a", 300) + "@example.com"})
	assert.ErrorIs(t, err, ErrValueTooLong)

	name := strings.Repeat("é", MaxFieldLength+1)
	_, err = repo.Create(ctx, &models.User{Email: "n@example.com", Name: &name})
	assert.ErrorIs(t, err, ErrValueTooLong)

	name = strings.Repeat("é", MaxFieldLength)
	_, err = repo.Create(ctx, &models.User{Email: "n@example.com", Name: &name})
	assert.NoError(t, err)
}

func TestMemoryRepository_FavoriteVoiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	u, err := repo.Create(ctx, &models.User{Email: "f@example.com"})
	require.NoError(t, err)

	favs, err := repo.AddFavoriteVoice(ctx, u.ID, "ff_siwis")
	require.NoError(t, err)
	assert.Equal(t, []string{"ff_siwis"}, favs)

	favs, err = repo.AddFavoriteVoice(ctx, u.ID, "ff_siwis")
	require.NoError(t, err)
	assert.Equal(t, []string{"ff_siwis"}, favs)

	favs, err = repo.AddFavoriteVoice(ctx, u.ID, "af_bella")
	require.NoError(t, err)
	assert.Equal(t, []string{"ff_siwis", "af_bella"}, favs)

	_, err = repo.AddFavoriteVoice(ctx, 999, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_RecordHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	u, err := repo.Create(ctx, &models.User{Email: "h@example.com"})
	require.NoError(t, err)

	entry := models.HistoryEntry{Text: "salut", Voice: "ff_siwis", CreatedAt: time.Now(), AudioFile: "/outputs/x.wav"}
	require.NoError(t, repo.RecordHistory(ctx, u.ID, entry))
	require.NoError(t, repo.RecordHistory(ctx, u.ID, entry))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, got.History, 2)
	assert.Nil(t, got.Credits)

	assert.ErrorIs(t, repo.RecordHistory(ctx, 999, entry), ErrNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	u, err := repo.Create(ctx, &models.User{Email: "c@example.com"})
	require.NoError(t, err)

	u.FavoriteVoices = append(u.FavoriteVoices, "leak")
	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.FavoriteVoices)
}
