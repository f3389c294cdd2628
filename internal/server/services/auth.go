package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/walletkeeper/internal/common"
	"github.com/dmitrijs2005/walletkeeper/internal/cryptox"
	"github.com/dmitrijs2005/walletkeeper/internal/logging"
	"github.com/dmitrijs2005/walletkeeper/internal/server/auth"
	"github.com/dmitrijs2005/walletkeeper/internal/server/config"
	"github.com/dmitrijs2005/walletkeeper/internal/server/models"
	"github.com/dmitrijs2005/walletkeeper/internal/server/notify"
	"github.com/dmitrijs2005/walletkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/walletkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/walletkeeper/internal/wallet"
)

// RegisterResult is returned once, at account creation. Mnemonic is never
// exposed again.
type RegisterResult struct {
	Token    string
	Address  string
	Mnemonic string
}

type Session struct {
	Token   string
	Address string
}

// MnemonicSession additionally carries the decrypted private key so the
// client can sign locally.
type MnemonicSession struct {
	Session
	PrivateKey string
}

// AuthService implements registration and the login, reset and
// mnemonic-login flows. Each flow is two steps: the first proves a primary
// credential and mails a one-time code, the second consumes the code.
type AuthService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	cipher          SecretCipher
	wallets         WalletFactory
	notifier        notify.Notifier
	logger          logging.Logger
	jwtSecret       []byte
	sessionValidity time.Duration
	codeValidity    time.Duration
	upstreamTimeout time.Duration

	now     func() time.Time
	newCode func() (string, error)
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cipher SecretCipher, wallets WalletFactory,
	notifier notify.Notifier, cfg *config.Config, logger logging.Logger) *AuthService {
	return &AuthService{
		db:              db,
		repomanager:     m,
		cipher:          cipher,
		wallets:         wallets,
		notifier:        notifier,
		logger:          logger.With("module", "auth"),
		jwtSecret:       []byte(cfg.SecretKey),
		sessionValidity: cfg.SessionValidity,
		codeValidity:    cfg.CodeValidity,
		upstreamTimeout: cfg.UpstreamTimeout,
		now:             time.Now,
		newCode: func() (string, error) {
			return common.RandomDigits(common.OTPLength)
		},
	}
}

// Register creates an account with a freshly generated custodial wallet.
func (s *AuthService) Register(ctx context.Context, fullName, email, password string) (*RegisterResult, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, fmt.Errorf("%w: full name is required", common.ErrValidation)
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	gen, err := s.wallets.Generate()
	if err != nil {
		return nil, fmt.Errorf("error generating wallet: %w", err)
	}

	sealed, err := s.cipher.Seal(gen.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("error sealing private key: %w", err)
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	account := &models.Account{
		Email:               email,
		FullName:            fullName,
		PasswordHash:        hash,
		WalletAddress:       &gen.Address,
		EncryptedPrivateKey: &sealed,
		Mnemonic:            &gen.Mnemonic,
		Role:                models.RoleUser,
	}

	account, err = s.repomanager.Accounts(s.db).Create(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("error creating account: %w", err)
	}

	token, err := s.issueToken(account.ID)
	if err != nil {
		return nil, err
	}

	nctx, cancel := withUpstreamTimeout(ctx, s.upstreamTimeout)
	defer cancel()
	if err := s.notifier.SendWelcome(nctx, email, fullName); err != nil {
		s.logger.Warn(ctx, "welcome email failed", "account_id", account.ID, "error", err)
	}

	s.logger.Info(ctx, "account registered", "account_id", account.ID, "address", gen.Address)

	return &RegisterResult{Token: token, Address: gen.Address, Mnemonic: gen.Mnemonic}, nil
}

// BeginLogin checks email and password and mails a login code.
func (s *AuthService) BeginLogin(ctx context.Context, email, password string) error {
	account, err := s.accountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			cryptox.BurnPasswordCheck(password)
		}
		return err
	}

	if !cryptox.CheckPassword(account.PasswordHash, password) {
		return common.ErrInvalidCredentials
	}

	return s.issueChallenge(ctx, account, models.FlowLogin)
}

// CompleteLogin consumes a login code and starts a session.
func (s *AuthService) CompleteLogin(ctx context.Context, email, code string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.consume(ctx, accounts.ChallengeMatch{
		Key: accounts.ByEmail, Value: email, Flow: models.FlowLogin, Code: code,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.issueToken(account.ID)
	if err != nil {
		return nil, err
	}

	return &Session{Token: token, Address: account.Address()}, nil
}

// BeginReset mails a password reset code.
func (s *AuthService) BeginReset(ctx context.Context, email string) error {
	account, err := s.accountByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.issueChallenge(ctx, account, models.FlowReset)
}

// CompleteReset re-checks the code and stores the new password in the same
// write that clears the challenge.
func (s *AuthService) CompleteReset(ctx context.Context, email, code, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	email = strings.ToLower(strings.TrimSpace(email))

	if !common.IsDigits(code, common.OTPLength) {
		return common.ErrInvalidOrExpiredCode
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	account, err := s.consume(ctx, accounts.ChallengeMatch{
		Key: accounts.ByEmail, Value: email, Flow: models.FlowReset, Code: code,
		NewPasswordHash: &hash,
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "password reset", "account_id", account.ID)

	nctx, cancel := withUpstreamTimeout(ctx, s.upstreamTimeout)
	defer cancel()
	if err := s.notifier.SendResetConfirmation(nctx, account.Email); err != nil {
		s.logger.Warn(ctx, "reset confirmation email failed", "account_id", account.ID, "error", err)
	}

	return nil
}

// BeginMnemonicLogin derives the address of mnemonic and mails a code to
// the account holding it. A malformed phrase and an unknown address fail
// the same way.
func (s *AuthService) BeginMnemonicLogin(ctx context.Context, mnemonic string) error {
	kp, err := s.wallets.Derive(mnemonic)
	if err != nil {
		if errors.Is(err, wallet.ErrInvalidMnemonic) {
			return common.ErrInvalidCredentials
		}
		return fmt.Errorf("error deriving wallet: %w", err)
	}

	account, err := s.repomanager.Accounts(s.db).GetByAddress(ctx, kp.Address)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidCredentials
		}
		return fmt.Errorf("error loading account: %w", err)
	}

	return s.issueChallenge(ctx, account, models.FlowLoginMnemonic)
}

// CompleteMnemonicLogin consumes the code and returns a session together
// with the stored private key.
func (s *AuthService) CompleteMnemonicLogin(ctx context.Context, mnemonic, code string) (*MnemonicSession, error) {
	kp, err := s.wallets.Derive(mnemonic)
	if err != nil {
		if errors.Is(err, wallet.ErrInvalidMnemonic) {
			return nil, common.ErrInvalidOrExpiredCode
		}
		return nil, fmt.Errorf("error deriving wallet: %w", err)
	}

	account, err := s.consume(ctx, accounts.ChallengeMatch{
		Key: accounts.ByAddress, Value: kp.Address, Flow: models.FlowLoginMnemonic, Code: code,
	})
	if err != nil {
		return nil, err
	}

	if account.EncryptedPrivateKey == nil {
		return nil, fmt.Errorf("%w: account %s holds no key", common.ErrorInternal, account.ID)
	}

	privateKey, err := s.cipher.Open(*account.EncryptedPrivateKey)
	if err != nil {
		s.logger.Error(ctx, "stored key cannot be opened", "account_id", account.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	token, err := s.issueToken(account.ID)
	if err != nil {
		return nil, err
	}

	return &MnemonicSession{
		Session:    Session{Token: token, Address: account.Address()},
		PrivateKey: privateKey,
	}, nil
}

// VerifySession resolves a bearer token to a live account. Tokens of
// deleted accounts are rejected.
func (s *AuthService) VerifySession(ctx context.Context, token string) (*models.Account, error) {
	accountID, err := auth.GetAccountIDFromToken(token, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}

	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error loading account: %w", err)
	}

	return account, nil
}

func (s *AuthService) accountByEmail(ctx context.Context, email string) (*models.Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, common.ErrInvalidCredentials
	}

	account, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error loading account: %w", err)
	}
	return account, nil
}

// issueChallenge stores a new code, superseding any outstanding one, and
// mails it. A delivery failure leaves the stored challenge in place.
func (s *AuthService) issueChallenge(ctx context.Context, account *models.Account, flow models.Flow) error {
	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("error generating code: %w", err)
	}

	challenge := models.Challenge{Flow: flow, Code: code, ExpiresAt: s.now().Add(s.codeValidity)}
	if err := s.repomanager.Accounts(s.db).SetChallenge(ctx, account.ID, challenge); err != nil {
		return fmt.Errorf("error storing challenge: %w", err)
	}

	nctx, cancel := withUpstreamTimeout(ctx, s.upstreamTimeout)
	defer cancel()

	if err := s.notifier.SendCode(nctx, account.Email, flow, code); err != nil {
		s.logger.Warn(ctx, "code delivery failed", "account_id", account.ID, "flow", string(flow), "error", err)
		return fmt.Errorf("%w: code delivery failed", common.ErrUpstream)
	}

	s.logger.Info(ctx, "challenge issued", "account_id", account.ID, "flow", string(flow))
	return nil
}

func (s *AuthService) consume(ctx context.Context, m accounts.ChallengeMatch) (*models.Account, error) {
	if !common.IsDigits(m.Code, common.OTPLength) || m.Value == "" {
		return nil, common.ErrInvalidOrExpiredCode
	}
	m.Now = s.now()

	account, err := s.repomanager.Accounts(s.db).ConsumeChallenge(ctx, m)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrExpiredCode
		}
		return nil, fmt.Errorf("error consuming challenge: %w", err)
	}
	return account, nil
}

func (s *AuthService) issueToken(accountID string) (string, error) {
	token, err := auth.GenerateToken(accountID, s.jwtSecret, s.sessionValidity, s.now())
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return token, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	return email, nil
}

func validatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", common.ErrValidation)
	}
	if len(password) > 72 {
		return fmt.Errorf("%w: password is too long", common.ErrValidation)
	}
	return nil
}
