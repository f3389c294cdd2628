package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/walletkeeper/internal/common"
	"github.com/dmitrijs2005/walletkeeper/internal/cryptox"
	"github.com/dmitrijs2005/walletkeeper/internal/dbx"
	"github.com/dmitrijs2005/walletkeeper/internal/logging"
	"github.com/dmitrijs2005/walletkeeper/internal/server/chain"
	"github.com/dmitrijs2005/walletkeeper/internal/server/config"
	"github.com/dmitrijs2005/walletkeeper/internal/server/locker"
	"github.com/dmitrijs2005/walletkeeper/internal/server/models"
	"github.com/dmitrijs2005/walletkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/walletkeeper/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/walletkeeper/internal/server/repositories/linkedwallets"
	"github.com/dmitrijs2005/walletkeeper/internal/wallet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	cryptox.PasswordCost = bcrypt.MinCost
}

// --- accounts ---

type fakeAccounts struct {
	mu     sync.Mutex
	byID   map[string]*models.Account
	getErr error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byID: make(map[string]*models.Account)}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	return &c
}

func (f *fakeAccounts) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, x := range f.byID {
		if strings.EqualFold(x.Email, a.Email) {
			return nil, common.ErrConflict
		}
		if a.WalletAddress != nil && strings.EqualFold(x.Address(), *a.WalletAddress) {
			return nil, common.ErrConflict
		}
	}

	c := cloneAccount(a)
	c.ID = uuid.NewString()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = c.CreatedAt
	f.byID[c.ID] = c
	return cloneAccount(c), nil
}

func (f *fakeAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneAccount(a), nil
}

func (f *fakeAccounts) find(key accounts.LookupKey, value string) *models.Account {
	for _, a := range f.byID {
		switch key {
		case accounts.ByEmail:
			if strings.EqualFold(a.Email, value) {
				return a
			}
		case accounts.ByAddress:
			if a.WalletAddress != nil && strings.EqualFold(*a.WalletAddress, value) {
				return a
			}
		}
	}
	return nil
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a := f.find(accounts.ByEmail, email); a != nil {
		return cloneAccount(a), nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccounts) GetByAddress(_ context.Context, address string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if a := f.find(accounts.ByAddress, address); a != nil {
		return cloneAccount(a), nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccounts) SetChallenge(_ context.Context, id string, ch models.Challenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.Challenge = ch
	return nil
}

func (f *fakeAccounts) ConsumeChallenge(_ context.Context, m accounts.ChallengeMatch) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.find(m.Key, m.Value)
	if a == nil || !challengeMatches(a.Challenge, m) {
		return nil, common.ErrorNotFound
	}
	a.Challenge = models.Challenge{}
	if m.NewPasswordHash != nil {
		a.PasswordHash = *m.NewPasswordHash
	}
	return cloneAccount(a), nil
}

// challengeMatches mirrors the WHERE clause of the postgres ConsumeChallenge.
func challengeMatches(c models.Challenge, m accounts.ChallengeMatch) bool {
	return c.IsIssued() && c.Flow == m.Flow && c.Code == m.Code && c.ExpiresAt.After(m.Now)
}

func (f *fakeAccounts) SetCustody(_ context.Context, id, address, encryptedKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	if a.WalletAddress != nil || a.EncryptedPrivateKey != nil {
		return common.ErrConflict
	}
	if f.find(accounts.ByAddress, address) != nil {
		return common.ErrConflict
	}
	a.WalletAddress = &address
	a.EncryptedPrivateKey = &encryptedKey
	return nil
}

func (f *fakeAccounts) ListWithCustody(context.Context) ([]*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Account
	for _, a := range f.byID {
		if a.HasCustody() {
			out = append(out, cloneAccount(a))
		}
	}
	return out, nil
}

func (f *fakeAccounts) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
}

func (f *fakeAccounts) challenge(id string) models.Challenge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Challenge
}

// --- ledger ---

type fakeLedger struct {
	mu        sync.Mutex
	entries   []*models.LedgerEntry
	createErr error
	getErr    error
}

func (f *fakeLedger) Create(_ context.Context, e *models.LedgerEntry) (*models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.byHash(e.TxHash) != nil {
		return nil, common.ErrConflict
	}
	return f.add(e), nil
}

func (f *fakeLedger) InsertIfAbsent(_ context.Context, e *models.LedgerEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byHash(e.TxHash) != nil {
		return false, nil
	}
	f.add(e)
	return true, nil
}

func (f *fakeLedger) GetStatusByHash(_ context.Context, hash string) (models.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	e := f.byHash(hash)
	if e == nil {
		return "", common.ErrorNotFound
	}
	return e.Status, nil
}

func (f *fakeLedger) AdvancePending(_ context.Context, hash string, status models.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.byHash(hash)
	if e == nil || e.Status != models.StatusPending {
		return false, nil
	}
	e.Status = status
	return true, nil
}

func (f *fakeLedger) ListByOwner(_ context.Context, owner string, d models.Direction) ([]*models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.LedgerEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.OwnerID == owner && (d == "" || e.Direction == d) {
			c := *e
			out = append(out, &c)
		}
	}
	// newest first, later inserts win ties
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeLedger) byHash(hash string) *models.LedgerEntry {
	for _, e := range f.entries {
		if e.TxHash == hash {
			return e
		}
	}
	return nil
}

func (f *fakeLedger) add(e *models.LedgerEntry) *models.LedgerEntry {
	c := *e
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	f.entries = append(f.entries, &c)
	out := c
	return &out
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// --- linked wallets ---

type fakeLinked struct {
	mu      sync.Mutex
	wallets []*models.LinkedWallet
}

func (f *fakeLinked) Create(_ context.Context, w *models.LinkedWallet) (*models.LinkedWallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.wallets {
		if x.OwnerID == w.OwnerID && strings.EqualFold(x.Address, w.Address) {
			return nil, common.ErrConflict
		}
	}
	c := *w
	c.ID = uuid.NewString()
	c.LinkedAt = time.Now()
	f.wallets = append(f.wallets, &c)
	out := c
	return &out, nil
}

func (f *fakeLinked) GetByIDForOwner(_ context.Context, id, owner string) (*models.LinkedWallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.wallets {
		if w.ID == id && w.OwnerID == owner {
			c := *w
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeLinked) ListByOwner(_ context.Context, owner string) ([]*models.LinkedWallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.LinkedWallet
	for _, w := range f.wallets {
		if w.OwnerID == owner {
			c := *w
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeRepoManager struct {
	accounts *fakeAccounts
	ledger   *fakeLedger
	linked   *fakeLinked
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{accounts: newFakeAccounts(), ledger: &fakeLedger{}, linked: &fakeLinked{}}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository           { return m.accounts }
func (m *fakeRepoManager) Ledger(dbx.DBTX) ledger.Repository               { return m.ledger }
func (m *fakeRepoManager) LinkedWallets(dbx.DBTX) linkedwallets.Repository { return m.linked }

// --- notifier ---

type sentCode struct {
	To   string
	Flow models.Flow
	Code string
}

type fakeNotifier struct {
	mu       sync.Mutex
	codes    []sentCode
	welcomes []string
	resets   []string
	fail     error
}

func (n *fakeNotifier) SendCode(_ context.Context, to string, flow models.Flow, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.codes = append(n.codes, sentCode{To: to, Flow: flow, Code: code})
	return nil
}

func (n *fakeNotifier) SendResetConfirmation(_ context.Context, to string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.resets = append(n.resets, to)
	return nil
}

func (n *fakeNotifier) SendWelcome(_ context.Context, to, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.welcomes = append(n.welcomes, to)
	return nil
}

func (n *fakeNotifier) lastCode(t *testing.T) sentCode {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.codes, "no code was sent")
	return n.codes[len(n.codes)-1]
}

func (n *fakeNotifier) codeCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.codes)
}

// --- chain ---

type fakeChain struct {
	mu          sync.Mutex
	balance     decimal.Decimal
	transfers   []chain.Transfer
	balanceErr  error
	historyErr  error
	sendErr     error
	sendHash    string
	sent        []string
	historyHits int
}

func (c *fakeChain) Balance(context.Context, string) (decimal.Decimal, error) {
	if c.balanceErr != nil {
		return decimal.Zero, c.balanceErr
	}
	return c.balance, nil
}

func (c *fakeChain) History(context.Context, string) ([]chain.Transfer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.historyHits++
	if c.historyErr != nil {
		return nil, c.historyErr
	}
	return append([]chain.Transfer(nil), c.transfers...), nil
}

func (c *fakeChain) SendTransfer(_ context.Context, privateKeyHex, _ string, _ decimal.Decimal) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return "", c.sendErr
	}
	c.sent = append(c.sent, privateKeyHex)
	return c.sendHash, nil
}

// --- wiring ---

var errBoom = errors.New("boom")

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:       "test-secret",
		SessionValidity: time.Hour,
		CodeValidity:    10 * time.Minute,
		ChainName:       "sepolia",
		UpstreamTimeout: 5 * time.Second,
	}
}

func newTestCipher(t *testing.T) *cryptox.SecretCipher {
	t.Helper()
	c, err := cryptox.NewSecretCipher(cryptox.GenerateMasterKey())
	require.NoError(t, err)
	return c
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

type fixture struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	rm       *fakeRepoManager
	notifier *fakeNotifier
	chain    *fakeChain
	cipher   *cryptox.SecretCipher
	auth     *AuthService
	wallets  *WalletService
	recon    *ReconcileService
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock := newMockDB(t)
	cfg := testConfig()
	f := &fixture{
		db:       db,
		mock:     mock,
		rm:       newFakeRepoManager(),
		notifier: &fakeNotifier{},
		chain:    &fakeChain{sendHash: "0xsent"},
		cipher:   newTestCipher(t),
		clock:    &fakeClock{now: time.Now().UTC()},
	}
	factory := wallet.NewFactory()
	log := logging.Nop()

	f.auth = NewAuthService(db, f.rm, f.cipher, factory, f.notifier, cfg, log)
	f.auth.now = f.clock.Now
	f.wallets = NewWalletService(db, f.rm, f.cipher, factory, f.chain, cfg, log)
	f.recon = NewReconcileService(db, f.rm, f.chain, locker.NewKeyedMutex(), cfg, log)
	return f
}

// register creates an account and returns its id together with the result.
func (f *fixture) register(t *testing.T, email string) (string, *RegisterResult) {
	t.Helper()
	res, err := f.auth.Register(context.Background(), "Test User", email, "hunter2")
	require.NoError(t, err)
	a, err := f.rm.accounts.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return a.ID, res
}
