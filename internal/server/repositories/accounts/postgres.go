// Package accounts persists user accounts, their wallet custody and their
// outstanding one-time-code challenge.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/walletkeeper/internal/common"
	"github.com/dmitrijs2005/walletkeeper/internal/dbx"
	"github.com/dmitrijs2005/walletkeeper/internal/server/models"
)

const accountColumns = `id, email, handle, full_name, password_hash, wallet_address,
		 encrypted_private_key, mnemonic, role, otp_code, otp_flow, otp_expires_at,
		 created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a                          models.Account
		handle, address, key, mnem sql.NullString
		otpCode, otpFlow           sql.NullString
		otpExpires                 sql.NullTime
	)

	err := row.Scan(&a.ID, &a.Email, &handle, &a.FullName, &a.PasswordHash, &address,
		&key, &mnem, &a.Role, &otpCode, &otpFlow, &otpExpires, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Handle = nullable(handle)
	a.WalletAddress = nullable(address)
	a.EncryptedPrivateKey = nullable(key)
	a.Mnemonic = nullable(mnem)

	// a flow this build does not know cannot be answered
	if otpCode.Valid && otpExpires.Valid && models.Flow(otpFlow.String).Valid() {
		a.Challenge = models.Challenge{
			Flow:      models.Flow(otpFlow.String),
			Code:      otpCode.String,
			ExpiresAt: otpExpires.Time,
		}
	}

	return &a, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {

	query :=
		`INSERT INTO accounts (email, handle, full_name, password_hash, wallet_address,
		 encrypted_private_key, mnemonic, role)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		account.Email, account.Handle, account.FullName, account.PasswordHash,
		account.WalletAddress, account.EncryptedPrivateKey, account.Mnemonic, account.Role,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, `lower(email) = lower($1)`, email)
}

func (r *PostgresRepository) GetByAddress(ctx context.Context, address string) (*models.Account, error) {
	return r.getOne(ctx, `lower(wallet_address) = lower($1)`, address)
}

// SetChallenge overwrites whatever challenge is outstanding.
func (r *PostgresRepository) SetChallenge(ctx context.Context, id string, c models.Challenge) error {
	if !c.Flow.Valid() {
		return fmt.Errorf("unknown challenge flow %q", c.Flow)
	}

	query :=
		`UPDATE accounts
		 SET otp_code = $2, otp_flow = $3, otp_expires_at = $4, updated_at = now()
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, c.Code, string(c.Flow), c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return requireOneRow(res, common.ErrorNotFound)
}

// ConsumeChallenge clears a matching, unexpired challenge and applies the
// optional password change in one statement. Returns common.ErrorNotFound
// when nothing matched.
func (r *PostgresRepository) ConsumeChallenge(ctx context.Context, m ChallengeMatch) (*models.Account, error) {
	var keyCond string
	switch m.Key {
	case ByEmail:
		keyCond = `lower(email) = lower($1)`
	case ByAddress:
		keyCond = `lower(wallet_address) = lower($1)`
	default:
		return nil, fmt.Errorf("unknown lookup key %d", m.Key)
	}

	query :=
		`UPDATE accounts
		 SET otp_code = NULL, otp_flow = NULL, otp_expires_at = NULL,
		     password_hash = COALESCE($5, password_hash), updated_at = now()
		 WHERE ` + keyCond + ` AND otp_code = $2 AND otp_flow = $3 AND otp_expires_at > $4
		 RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query,
		m.Value, m.Code, string(m.Flow), m.Now, m.NewPasswordHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// SetCustody stores a keypair for an account that holds none yet.
func (r *PostgresRepository) SetCustody(ctx context.Context, id, address, encryptedKey string) error {
	query :=
		`UPDATE accounts
		 SET wallet_address = $2, encrypted_private_key = $3, updated_at = now()
		 WHERE id = $1 AND wallet_address IS NULL AND encrypted_private_key IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, id, address, encryptedKey)
	if err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}

	return requireOneRow(res, common.ErrConflict)
}

func (r *PostgresRepository) ListWithCustody(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		 WHERE wallet_address IS NOT NULL
		 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func requireOneRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return none
	}
	return nil
}
