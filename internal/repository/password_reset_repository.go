package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

// PasswordResetRepository manages password reset token persistence.
type PasswordResetRepository interface {
	Create(ctx context.Context, token *domain.PasswordResetToken) error
	GetByToken(ctx context.Context, token string) (*domain.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
}

type passwordResetRepository struct {
	db DBTX
}

// NewPasswordResetRepository constructs repository.
func NewPasswordResetRepository(db DBTX) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	const query = `
        INSERT INTO password_reset_tokens (account_id, token, expires_at)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		token.AccountID,
		token.Token,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func (r *passwordResetRepository) GetByToken(ctx context.Context, tokenStr string) (*domain.PasswordResetToken, error) {
	const query = `
        SELECT id, account_id, token, expires_at, used_at, created_at
        FROM password_reset_tokens WHERE token=$1`
	var token domain.PasswordResetToken
	if err := r.db.QueryRow(ctx, query, tokenStr).Scan(
		&token.ID,
		&token.AccountID,
		&token.Token,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrResetTokenInvalid
		}
		return nil, err
	}
	return &token, nil
}

// MarkUsed consumes the token once; a second call reports it invalid.
func (r *passwordResetRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	const query = `
        UPDATE password_reset_tokens SET used_at=$2
        WHERE id=$1 AND used_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrResetTokenInvalid
	}
	return nil
}

type memoryPasswordResetRepository struct {
	mu      sync.Mutex
	byToken map[string]*domain.PasswordResetToken
}

// NewMemoryPasswordResetRepository returns a process-local implementation.
func NewMemoryPasswordResetRepository() PasswordResetRepository {
	return &memoryPasswordResetRepository{byToken: make(map[string]*domain.PasswordResetToken)}
}

func (r *memoryPasswordResetRepository) Create(_ context.Context, token *domain.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token.ID = uuid.NewString()
	token.CreatedAt = time.Now().UTC()
	stored := *token
	r.byToken[token.Token] = &stored
	return nil
}

func (r *memoryPasswordResetRepository) GetByToken(_ context.Context, tokenStr string) (*domain.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byToken[tokenStr]
	if !ok {
		return nil, domain.ErrResetTokenInvalid
	}
	token := *stored
	return &token, nil
}

func (r *memoryPasswordResetRepository) MarkUsed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, stored := range r.byToken {
		if stored.ID != id {
			continue
		}
		if stored.UsedAt != nil {
			return domain.ErrResetTokenInvalid
		}
		usedAt := at
		stored.UsedAt = &usedAt
		return nil
	}
	return domain.ErrResetTokenInvalid
}
