package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/kokorotts/internal/database"
	"github.com/nikhilbhutani/kokorotts/internal/models"
)

const (
	uniqueViolation  = "23505"
	stringTruncation = "22001"
)

const userColumns = `id, email, hashed_password, name, is_active, is_verified, created_at, updated_at,
	last_login, favorite_voices, history, credits, preferences`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	favorites, err := json.Marshal(nonNilStrings(u.FavoriteVoices))
	if err != nil {
		return nil, fmt.Errorf("marshal favorite voices: %w", err)
	}
	history, err := json.Marshal(nonNilHistory(u.History))
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	prefs, err := json.Marshal(u.Preferences)
	if err != nil {
		return nil, fmt.Errorf("marshal preferences: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, hashed_password, name, is_active, is_verified, favorite_voices, history, credits, preferences)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, $9::jsonb)
		RETURNING `+userColumns,
		u.Email, u.HashedPassword, u.Name, u.IsActive, u.IsVerified,
		string(favorites), string(history), u.Credits, string(prefs),
	)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return nil, ErrEmailTaken
			case stringTruncation:
				return nil, fmt.Errorf("%w: %s", ErrValueTooLong, pgErr.Message)
			}
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $2, updated_at = now() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdatePreferences(ctx context.Context, id int64, update models.Preferences) (models.Preferences, error) {
	var merged models.Preferences
	err := database.WithTx(ctx, r.pool, func(ctx context.Context, tx database.DBTX) error {
		var raw []byte
		err := tx.QueryRow(ctx, `SELECT preferences FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("select preferences: %w", err)
		}

		var current models.Preferences
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("decode preferences: %w", err)
			}
		}
		merged = current.Merge(update)

		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("marshal preferences: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET preferences = $2::jsonb, updated_at = now() WHERE id = $1`, id, string(data)); err != nil {
			return fmt.Errorf("update preferences: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Preferences{}, err
	}
	return merged, nil
}

func (r *PostgresRepository) AddFavoriteVoice(ctx context.Context, id int64, voice string) ([]string, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		UPDATE users
		SET favorite_voices = CASE
				WHEN favorite_voices @> jsonb_build_array($2::text) THEN favorite_voices
				ELSE favorite_voices || jsonb_build_array($2::text)
			END,
			updated_at = now()
		WHERE id = $1
		RETURNING favorite_voices`, id, voice).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("add favorite voice: %w", err)
	}

	var favorites []string
	if err := json.Unmarshal(raw, &favorites); err != nil {
		return nil, fmt.Errorf("decode favorite voices: %w", err)
	}
	return nonNilStrings(favorites), nil
}

func (r *PostgresRepository) RecordHistory(ctx context.Context, id int64, entry models.HistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET history = history || jsonb_build_array($2::jsonb),
			updated_at = now()
		WHERE id = $1`, id, string(data))
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u                         models.User
		favorites, history, prefs []byte
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.HashedPassword, &u.Name, &u.IsActive, &u.IsVerified,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLogin, &favorites, &history, &u.Credits, &prefs,
	)
	if err != nil {
		return nil, err
	}

	if len(favorites) > 0 {
		if err := json.Unmarshal(favorites, &u.FavoriteVoices); err != nil {
			return nil, fmt.Errorf("decode favorite voices: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &u.History); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	u.FavoriteVoices = nonNilStrings(u.FavoriteVoices)
	u.History = nonNilHistory(u.History)
	return &u, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilHistory(h []models.HistoryEntry) []models.HistoryEntry {
	if h == nil {
		return []models.HistoryEntry{}
	}
	return h
}
