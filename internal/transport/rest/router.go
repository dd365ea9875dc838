package rest

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/courier-fulfillment/internal/auth"
	"github.com/frahmantamala/courier-fulfillment/internal/branchscan"
	"github.com/frahmantamala/courier-fulfillment/internal/payment"
	"github.com/frahmantamala/courier-fulfillment/internal/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/transport"
	"github.com/frahmantamala/courier-fulfillment/internal/transport/middleware"
	"github.com/frahmantamala/courier-fulfillment/internal/transport/swagger"
	"github.com/frahmantamala/courier-fulfillment/internal/user"
)

type Handlers struct {
	Shipments  *shipment.Handler
	Courier    *shipment.CourierHandler
	BranchScan *branchscan.Handler
	Webhook    *payment.WebhookHandler
	Users      *user.Handler
	Health     map[string]Pinger
}

type Options struct {
	AllowedOrigins string
	OpenAPIPath    string
	// FilesDir is served under /files; empty disables it.
	FilesDir string
}

func NewRouter(h Handlers, tokens auth.TokenValidator, opts Options, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()
	health := NewHealthHandler(transport.NewBaseHandler(logger), h.Health)

	router.Use(middleware.RequestID)
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS(opts.AllowedOrigins))

	if opts.OpenAPIPath != "" {
		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, opts.OpenAPIPath)
		})
		router.Handle("/swagger/*", swagger.Handler())
	}
	if opts.FilesDir != "" {
		router.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(noListing{http.Dir(opts.FilesDir)})))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.Health)
		r.Get("/ping", health.Ping)

		// The gateway authenticates with X-Callback-Token, not a bearer token.
		r.Post("/shipments/webhook", h.Webhook.HandlePaymentCallback)

		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Authenticate(tokens))

			pr.Get("/me", h.Users.GetCurrentUser)

			pr.Route("/shipments", func(sr chi.Router) {
				sr.Post("/", h.Shipments.CreateShipment)
				sr.Get("/", h.Shipments.ListShipments)
				sr.Get("/{id}", h.Shipments.GetShipment)
			})

			pr.Route("/history", func(hr chi.Router) {
				hr.Get("/", h.Shipments.ListHistory)
				hr.Get("/{id}", h.Shipments.GetHistory)
			})

			pr.Route("/courier", func(cr chi.Router) {
				cr.Get("/shipments", h.Courier.ListShipments)
				for _, action := range shipment.CourierActions {
					cr.Post("/"+string(action)+"/{trackingNumber}", h.Courier.Act(action))
				}
			})

			pr.Route("/shipment-branch", func(br chi.Router) {
				br.Post("/scan", h.BranchScan.Scan)
				br.Get("/logs", h.BranchScan.ListLogs)
			})
		})
	})

	return router
}

// noListing hides directory indexes under /files.
type noListing struct {
	fs http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
