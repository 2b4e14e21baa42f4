package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

const uniqueViolation = "23505"

// DBTX is the subset of pgx used by the Postgres repositories.
// *pgxpool.Pool and pgx.Tx both satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository defines persistence access for marketplace accounts.
// Create and SetPassword run the password hashing gate before writing.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	// SetPassword replaces only the password hash and clears lockout state in one write.
	SetPassword(ctx context.Context, id string, credential domain.Credential) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	ListSellers(ctx context.Context, filter SellerFilter) ([]domain.Account, error)
	IncrementLoginAttempts(ctx context.Context, id string, now time.Time) (domain.LoginState, error)
	ResetLoginAttempts(ctx context.Context, id string) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
	UpdateVerification(ctx context.Context, id string, from domain.VerificationStatus, next domain.Verification) error
	SetActive(ctx context.Context, id string, active bool) error
}

// SellerFilter defines query params for seller listing.
type SellerFilter struct {
	Status *domain.VerificationStatus
	Limit  int
	Offset int
}

// beforeSave seals pending plaintext and refuses to persist anything but a hash.
func beforeSave(account *domain.Account, hasher domain.PasswordHasher) error {
	return sealCredential(&account.Password, hasher)
}

func sealCredential(credential *domain.Credential, hasher domain.PasswordHasher) error {
	if credential.IsZero() {
		return domain.ErrMissingCredential
	}
	if err := credential.Seal(hasher); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if credential.Modified() {
		return domain.ErrUnsealedCredential
	}
	if credential.IsZero() {
		return domain.ErrMissingCredential
	}
	return nil
}

type accountRepository struct {
	db     DBTX
	hasher domain.PasswordHasher
	policy domain.LockoutPolicy
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(db DBTX, hasher domain.PasswordHasher, policy domain.LockoutPolicy) AccountRepository {
	return &accountRepository{db: db, hasher: hasher, policy: policy}
}

const accountColumns = `
        id, kind, name, email, password_hash, login_attempts, lock_until, active, last_login_at,
        store_name, verification_status, verification_reason, verification_updated_at, verification_updated_by,
        created_at, updated_at`

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	if err := beforeSave(account, r.hasher); err != nil {
		return err
	}

	const query = `
        INSERT INTO accounts (kind, name, email, password_hash, active,
            store_name, verification_status, verification_reason, verification_updated_at, verification_updated_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`

	seller := sellerColumns(account)
	err := r.db.QueryRow(ctx, query,
		account.Kind,
		account.Name,
		account.Email,
		account.Password.Hash(),
		account.Active,
		seller.storeName,
		seller.status,
		seller.reason,
		seller.updatedAt,
		seller.updatedBy,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	return mapWriteError(err)
}

func (r *accountRepository) SetPassword(ctx context.Context, id string, credential domain.Credential) error {
	if err := sealCredential(&credential, r.hasher); err != nil {
		return err
	}

	const query = `
        UPDATE accounts SET password_hash=$2, login_attempts=0, lock_until=NULL, updated_at=NOW()
        WHERE id=$1`
	return r.execOne(ctx, query, id, credential.Hash())
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email=$1`
	return scanAccount(r.db.QueryRow(ctx, query, domain.NormalizeEmail(email)))
}

func (r *accountRepository) ListSellers(ctx context.Context, filter SellerFilter) ([]domain.Account, error) {
	var (
		clauses = []string{"kind = $1"}
		args    = []any{domain.AccountKindSeller}
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("verification_status = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE %s ORDER BY created_at ASC LIMIT $%d OFFSET $%d`,
		accountColumns, strings.Join(clauses, " AND "), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// IncrementLoginAttempts applies one failed attempt in a single statement so concurrent
// failures cannot lose updates. All CASE branches read the pre-update row.
func (r *accountRepository) IncrementLoginAttempts(ctx context.Context, id string, now time.Time) (domain.LoginState, error) {
	const query = `
        UPDATE accounts SET
            login_attempts = CASE
                WHEN lock_until IS NOT NULL AND lock_until <= $2::timestamptz THEN 1
                ELSE login_attempts + 1
            END,
            lock_until = CASE
                WHEN lock_until IS NOT NULL AND lock_until <= $2::timestamptz THEN NULL
                WHEN lock_until IS NULL AND login_attempts + 1 >= $3 THEN $4::timestamptz
                ELSE lock_until
            END,
            updated_at = NOW()
        WHERE id=$1
        RETURNING login_attempts, lock_until`

	var state domain.LoginState
	err := r.db.QueryRow(ctx, query, id, now, r.policy.MaxAttempts, now.Add(r.policy.LockDuration)).
		Scan(&state.Attempts, &state.LockUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LoginState{}, domain.ErrAccountNotFound
	}
	return state, err
}

func (r *accountRepository) ResetLoginAttempts(ctx context.Context, id string) error {
	const query = `
        UPDATE accounts SET login_attempts=0, lock_until=NULL, updated_at=NOW()
        WHERE id=$1`
	return r.execOne(ctx, query, id)
}

func (r *accountRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	const query = `
        UPDATE accounts SET login_attempts=0, lock_until=NULL, last_login_at=$2, updated_at=NOW()
        WHERE id=$1`
	return r.execOne(ctx, query, id, at)
}

func (r *accountRepository) UpdateVerification(ctx context.Context, id string, from domain.VerificationStatus, next domain.Verification) error {
	const query = `
        UPDATE accounts SET verification_status=$3, verification_reason=$4,
            verification_updated_at=$5, verification_updated_by=$6, updated_at=NOW()
        WHERE id=$1 AND kind='SELLER' AND verification_status=$2`

	cmd, err := r.db.Exec(ctx, query, id, from, next.Status, nullable(next.Reason), next.UpdatedAt, nullable(next.UpdatedBy))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: status changed concurrently", domain.ErrInvalidTransition)
	}
	return nil
}

// SetActive toggles the kill switch. Reactivation also clears lockout state.
func (r *accountRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `
        UPDATE accounts SET active=$2,
            login_attempts = CASE WHEN $2 THEN 0 ELSE login_attempts END,
            lock_until = CASE WHEN $2 THEN NULL ELSE lock_until END,
            updated_at=NOW()
        WHERE id=$1`
	return r.execOne(ctx, query, id, active)
}

func (r *accountRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account   domain.Account
		hash      string
		storeName *string
		status    *string
		reason    *string
		updatedAt *time.Time
		updatedBy *string
	)
	if err := row.Scan(
		&account.ID,
		&account.Kind,
		&account.Name,
		&account.Email,
		&hash,
		&account.Login.Attempts,
		&account.Login.LockUntil,
		&account.Active,
		&account.LastLoginAt,
		&storeName,
		&status,
		&reason,
		&updatedAt,
		&updatedBy,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}

	account.Password = domain.StoredCredential(hash)
	if account.Kind == domain.AccountKindSeller {
		account.Seller = &domain.SellerProfile{
			StoreName: deref(storeName),
			Verification: domain.Verification{
				Status:    domain.VerificationStatus(deref(status)),
				Reason:    deref(reason),
				UpdatedAt: updatedAt,
				UpdatedBy: deref(updatedBy),
			},
		}
	}
	return &account, nil
}

type sellerRow struct {
	storeName *string
	status    *domain.VerificationStatus
	reason    *string
	updatedAt *time.Time
	updatedBy *string
}

func sellerColumns(account *domain.Account) sellerRow {
	if account.Seller == nil {
		return sellerRow{}
	}
	v := account.Seller.Verification
	return sellerRow{
		storeName: &account.Seller.StoreName,
		status:    &v.Status,
		reason:    nullable(v.Reason),
		updatedAt: v.UpdatedAt,
		updatedBy: nullable(v.UpdatedBy),
	}
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrAccountNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrEmailTaken
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
