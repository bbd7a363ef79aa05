// Package tenderd serves the tenant-scoped HTTP API. Every
// organization-scoped route resolves the caller's active organization
// before any handler runs, and every handler reaches the database through
// the authorizing store.
package tenderd

import (
	"net/http"
	"time"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/tenderd/audit"
	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/database/dbauthz"
	"github.com/tenderd/tenderd/tenderd/database/dbmetrics"
	"github.com/tenderd/tenderd/tenderd/httpapi"
	"github.com/tenderd/tenderd/tenderd/httpmw"
	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/tenant"
	"github.com/tenderd/tenderd/tenderd/tracing"
	"github.com/tenderd/tenderd/tenderd/transition"
)

type Options struct {
	Logger slog.Logger
	// Database is the unwrapped store. The API wraps it with dbauthz.
	Database database.Store
	// Sessions defaults to Database.
	Sessions           tenant.SessionStore
	Auditor            audit.Auditor
	PrometheusRegistry *prometheus.Registry
	TracerProvider     trace.TracerProvider
	Clock              quartz.Clock
	SessionDuration    time.Duration

	// APIRateLimit is the number of requests per minute allowed for each
	// session. Zero disables the limit.
	APIRateLimit int
	// OnboardingURL, when set, is where requests without an active
	// organization are redirected.
	OnboardingURL string
	// CORSAllowedOrigins enables browser access to the API from these
	// origins.
	CORSAllowedOrigins []string
}

type API struct {
	*Options

	// Database is the authorizing store handlers must use.
	Database    database.Store
	Authorizer  *rbac.StrictAuthorizer
	Resolver    *tenant.Resolver
	Transitions *transition.Service
	RootHandler chi.Router
}

func New(options *Options) *API {
	if options.PrometheusRegistry == nil {
		options.PrometheusRegistry = prometheus.NewRegistry()
	}
	if options.Auditor == nil {
		options.Auditor = audit.NewNop()
	}
	if options.Clock == nil {
		options.Clock = quartz.NewReal()
	}
	db := dbmetrics.NewQueryMetrics(options.Database, options.Logger.Named("dbmetrics"), options.PrometheusRegistry)
	if options.Sessions == nil {
		options.Sessions = db
	}

	registry := rbac.BuiltinRegistry()
	authorizer := rbac.NewAuthorizer(registry,
		database.Memberships(db),
		database.Snapshots(db),
		options.PrometheusRegistry,
	)
	authzDB := dbauthz.New(db, authorizer, options.Logger.Named("authz_querier"), options.Auditor)

	api := &API{
		Options:    options,
		Database:   authzDB,
		Authorizer: authorizer,
		Resolver: tenant.New(tenant.Options{
			Sessions:        options.Sessions,
			Members:         database.Memberships(db),
			Logger:          options.Logger,
			Clock:           options.Clock,
			SessionDuration: options.SessionDuration,
		}),
		Transitions: transition.New(transition.Options{
			Database:   authzDB,
			Authorizer: authorizer,
			Registry:   registry,
			Auditor:    options.Auditor,
			Logger:     options.Logger,
		}),
	}

	r := chi.NewRouter()
	r.Use(
		tracing.StatusWriterMiddleware,
		httpmw.AttachRequestID,
		httpmw.Recover(options.Logger),
		tracing.Middleware(options.TracerProvider),
		httpmw.Logger(options.Logger.Named("http")),
	)
	r.Get("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		httpapi.Write(r.Context(), rw, http.StatusOK, httpapi.Response{Message: "OK"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if len(options.CORSAllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   options.CORSAllowedOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
				AllowedHeaders:   []string{"Content-Type", tenant.SessionTokenHeader},
				ExposedHeaders:   []string{httpmw.RequestIDHeader},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		r.Use(httpmw.RateLimit(options.APIRateLimit, time.Minute))
		r.NotFound(func(rw http.ResponseWriter, r *http.Request) {
			httpapi.Write(r.Context(), rw, http.StatusNotFound, httpapi.Response{
				Message: "Route not found.",
			})
		})

		r.Route("/sessions/me", func(r chi.Router) {
			r.Use(httpmw.ExtractSession(api.Resolver))
			r.Put("/organization", api.switchOrganization)
			r.Delete("/", api.logout)
		})

		r.Route("/organizations", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(httpmw.ExtractSession(api.Resolver))
				r.Get("/", api.myOrganizations)
				r.Post("/", api.postOrganization)
			})

			r.Route("/{organization}", func(r chi.Router) {
				r.Use(
					httpmw.ExtractOrganizationParam(db),
					httpmw.ResolveTenant(api.Resolver, options.OnboardingURL),
				)
				r.Get("/", api.organization)
				r.Delete("/", api.deleteOrganization)
				r.Post("/ownership", api.transferOwnership)
				r.Put("/members/{user}/role", api.putMemberRole)

				r.Route("/tenders", func(r chi.Router) {
					r.Post("/", api.postTender)
					r.Route("/{tender}", func(r chi.Router) {
						r.Get("/", api.tender)
						r.Delete("/", api.deleteTender)
						r.Put("/status", api.putTenderStatus)
						r.Post("/award", api.postTenderAward)
					})
				})
				r.Route("/projects/{project}", func(r chi.Router) {
					r.Get("/", api.project)
					r.Put("/status", api.putProjectStatus)
					r.Post("/purchase-orders", api.postPurchaseOrder)
				})
				r.Route("/purchase-orders/{purchaseorder}", func(r chi.Router) {
					r.Get("/", api.purchaseOrder)
					r.Put("/status", api.putPurchaseOrderStatus)
				})
			})
		})
	})

	api.RootHandler = r
	return api
}
