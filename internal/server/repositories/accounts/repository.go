package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/walletkeeper/internal/server/models"
)

// LookupKey selects the column a challenge is consumed by.
type LookupKey int

const (
	ByEmail LookupKey = iota
	ByAddress
)

// ChallengeMatch describes a one-time code answer. NewPasswordHash, when
// set, is written in the same statement that clears the challenge.
type ChallengeMatch struct {
	Key             LookupKey
	Value           string
	Flow            models.Flow
	Code            string
	Now             time.Time
	NewPasswordHash *string
}

type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByAddress(ctx context.Context, address string) (*models.Account, error)
	SetChallenge(ctx context.Context, id string, challenge models.Challenge) error
	ConsumeChallenge(ctx context.Context, match ChallengeMatch) (*models.Account, error)
	SetCustody(ctx context.Context, id, address, encryptedKey string) error
	ListWithCustody(ctx context.Context) ([]*models.Account, error)
}
