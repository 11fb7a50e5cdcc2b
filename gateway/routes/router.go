package routes

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nftfi/gateway"
	"nftfi/gateway/middleware"
	"nftfi/native/token"
)

// Devnet exposes the in-process token collaborators. Nil disables the
// /v1/devnet routes.
type Devnet struct {
	Funds *token.Ledger
	NFTs  *token.Collection
}

type Config struct {
	Dispatcher    *gateway.Dispatcher
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Devnet        *Devnet
	Logger        *slog.Logger
}

type handlers struct {
	d      *gateway.Dispatcher
	devnet *Devnet
	logger *slog.Logger
}

func New(cfg Config) (http.Handler, error) {
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("routes: dispatcher required")
	}
	if cfg.Authenticator == nil {
		return nil, fmt.Errorf("routes: authenticator required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &handlers{d: cfg.Dispatcher, devnet: cfg.Devnet, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware)
		r.Handle("/metrics", cfg.Observability.MetricsHandler())
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.RateLimiter != nil {
			v1.Use(cfg.RateLimiter.Middleware())
		}
		v1.Use(cfg.Authenticator.Middleware())

		v1.Post("/pools", h.createPool)
		v1.Get("/pools/{poolID}", h.getPool)
		v1.Post("/pools/{poolID}/fund", h.fundPool)
		v1.Post("/pools/{poolID}/close", h.closePool)

		v1.Get("/loans/{loanID}", h.getLoan)
		v1.Get("/loans/{loanID}/repayments", h.listRepayments)

		v1.Post("/purchases", h.purchaseNFT)
		v1.Get("/purchases", h.listPurchases)
		v1.Get("/purchases/export", h.exportPurchases)
		v1.Get("/purchases/{purchaseID}", h.getPurchase)
		v1.Post("/purchases/{purchaseID}/complete", h.completePurchase)
		v1.Post("/purchases/{purchaseID}/cancel", h.cancelPurchase)
		v1.Get("/purchases/{purchaseID}/quote", h.quote)
		v1.Post("/purchases/{purchaseID}/repay", h.repayLoan)
		v1.Post("/purchases/{purchaseID}/claim", h.claimNFT)

		v1.Get("/escrows/{address}", h.getEscrow)

		v1.Post("/liquidations", h.startLiquidation)
		v1.Get("/liquidations/{liquidationID}", h.getLiquidation)
		v1.Post("/liquidations/{liquidationID}/complete", h.completeLiquidation)
		v1.Post("/liquidations/{liquidationID}/refund", h.refundBorrower)

		v1.Get("/admin/status", h.status)
		v1.Post("/admin/pause", h.togglePause)
		v1.Post("/admin/transfer", h.transferAdmin)

		if h.devnet != nil {
			h.mountDevnet(v1)
		}
	})
	return r, nil
}
