// Package httpapi publishes the account and wallet services as a JSON API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/walletkeeper/internal/logging"
	"github.com/dmitrijs2005/walletkeeper/internal/server/models"
	"github.com/dmitrijs2005/walletkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const shutdownTimeout = 10 * time.Second

type AuthAPI interface {
	Register(ctx context.Context, fullName, email, password string) (*services.RegisterResult, error)
	BeginLogin(ctx context.Context, email, password string) error
	CompleteLogin(ctx context.Context, email, code string) (*services.Session, error)
	BeginReset(ctx context.Context, email string) error
	CompleteReset(ctx context.Context, email, code, newPassword string) error
	BeginMnemonicLogin(ctx context.Context, mnemonic string) error
	CompleteMnemonicLogin(ctx context.Context, mnemonic, code string) (*services.MnemonicSession, error)
	VerifySession(ctx context.Context, token string) (*models.Account, error)
}

type WalletAPI interface {
	ImportWallet(ctx context.Context, accountID, mnemonic string) (string, error)
	LinkWallet(ctx context.Context, accountID, walletType, address string) (*models.LinkedWallet, error)
	ListLinked(ctx context.Context, accountID string) ([]*models.LinkedWallet, error)
	Balance(ctx context.Context, accountID, walletID string) (*services.WalletBalance, error)
	Send(ctx context.Context, accountID, to, amount string) (*services.SendResult, error)
	SimulateBuy(ctx context.Context, accountID, usd string) (*models.LedgerEntry, error)
	Transactions(ctx context.Context, accountID string) ([]*models.LedgerEntry, error)
	Received(ctx context.Context, accountID string) ([]*models.LedgerEntry, error)
	ReceiveAddress(ctx context.Context, accountID string) (string, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, accountID, walletRef string) (*services.ReconcileResult, error)
}

type Server struct {
	address     string
	logger      logging.Logger
	auth        AuthAPI
	wallets     WalletAPI
	reconciler  Reconciler
	corsOrigins []string
}

func NewServer(address string, l logging.Logger, a AuthAPI, w WalletAPI, r Reconciler, corsOrigins []string) *Server {
	return &Server{
		address:     address,
		logger:      l.With("module", "http_server"),
		auth:        a,
		wallets:     w,
		reconciler:  r,
		corsOrigins: corsOrigins,
	}
}

// Routes builds the router. Exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleBeginLogin)
		r.Post("/login/verify", s.handleCompleteLogin)
		r.Post("/reset", s.handleBeginReset)
		r.Post("/reset/verify", s.handleCompleteReset)
		r.Post("/mnemonic", s.handleBeginMnemonicLogin)
		r.Post("/mnemonic/verify", s.handleCompleteMnemonicLogin)
	})

	r.Route("/api/wallets", func(r chi.Router) {
		r.Use(s.bearerAuth)
		r.Post("/import", s.handleImport)
		r.Post("/link", s.handleLink)
		r.Get("/my-wallets", s.handleMyWallets)
		r.Get("/balance/{walletID}", s.handleBalance)
		r.Get("/sync", s.handleSync)
		r.Get("/sync/{walletID}", s.handleSync)
		r.Post("/send", s.handleSend)
		r.Post("/buy-dummy", s.handleBuy)
		r.Get("/transactions", s.handleTransactions)
		r.Get("/received", s.handleReceived)
		r.Get("/receive-address", s.handleReceiveAddress)
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
