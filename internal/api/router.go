// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/vallum-project/vallum/internal/audit"
	"github.com/vallum-project/vallum/internal/authn"
	"github.com/vallum-project/vallum/internal/authz"
	"github.com/vallum-project/vallum/internal/config"
	"github.com/vallum-project/vallum/internal/middleware"
	"github.com/vallum-project/vallum/internal/registry"
	"github.com/vallum-project/vallum/internal/scoped"
	"github.com/vallum-project/vallum/internal/tenancy"
	"github.com/vallum-project/vallum/internal/websocket"
)

// Server binds the HTTP surface to the mediation layer. All state it holds
// is request-independent; per-request tenant contexts are resolved inside
// the handlers and never cached.
type Server struct {
	resolver    *tenancy.Resolver
	registry    registry.Registry
	provisioner *registry.Provisioner
	db          *sql.DB
	catalog     *scoped.Catalog
	recorder    *audit.Recorder
	hub         *websocket.Hub

	auth      authn.Authenticator
	challenge string
	authz     *authz.Middleware

	cors      config.ServerConfig
	rateLimit config.RateLimitConfig
	ready     func() error
	version   string
}

// Options carries the dependencies for a Server. Hub and Ready are
// optional; everything else must be set.
type Options struct {
	Resolver    *tenancy.Resolver
	Registry    registry.Registry
	Provisioner *registry.Provisioner
	DB          *sql.DB
	Catalog     *scoped.Catalog
	Recorder    *audit.Recorder
	Hub         *websocket.Hub

	Auth      authn.Authenticator
	Challenge string
	Enforcer  *authz.Enforcer

	Server    config.ServerConfig
	RateLimit config.RateLimitConfig

	// Ready reports readiness for /readyz; nil means always ready.
	Ready   func() error
	Version string
}

// NewServer wires the route handlers onto their dependencies.
func NewServer(opts Options) *Server {
	return &Server{
		resolver:    opts.Resolver,
		registry:    opts.Registry,
		provisioner: opts.Provisioner,
		db:          opts.DB,
		catalog:     opts.Catalog,
		recorder:    opts.Recorder,
		hub:         opts.Hub,
		auth:        opts.Auth,
		challenge:   opts.Challenge,
		authz:       authz.NewMiddleware(opts.Enforcer),
		cors:        opts.Server,
		rateLimit:   opts.RateLimit,
		ready:       opts.Ready,
		version:     opts.Version,
	}
}

// Handler builds the chi router. Operational endpoints (health, metrics,
// swagger) stay outside the authenticated group; everything under /api/v1
// requires an authenticated principal and a role grant for its route group.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cors.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", authn.OrgHeader, middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.rateLimit.Enabled {
		r.Use(httprate.Limit(
			s.rateLimit.RequestsPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))
	}
	r.Use(middleware.Prometheus)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authn.Middleware(s.auth, s.challenge))

		r.Route("/orgs", func(r chi.Router) {
			r.With(s.authz.Require(authz.ObjectOrgs, authz.ActionWrite)).
				Post("/", s.handleProvisionOrg)
			r.With(s.authz.Require(authz.ObjectOrgs, authz.ActionDelete)).
				Delete("/{orgID}", s.handleOffboardOrg)
			r.With(s.authz.Require(authz.ObjectOrgs, authz.ActionRead)).
				Get("/{orgID}", s.handleGetOrg)
			r.With(s.authz.Require(authz.ObjectOrgs, authz.ActionRead)).
				Get("/", s.handleListOrgs)
		})

		r.With(s.authz.Require(authz.ObjectCatalog, authz.ActionRead)).
			Get("/catalog", s.handleCatalog)

		r.Route("/entities/{type}", func(r chi.Router) {
			r.Use(s.authz.RequireForMethod(authz.ObjectEntities))
			r.Get("/", s.handleListEntities)
			r.Post("/", s.handleCreateEntity)
			r.Get("/{id}", s.handleGetEntity)
			r.Put("/{id}", s.handleUpdateEntity)
			r.Delete("/{id}", s.handleDeleteEntity)
		})

		r.Route("/audit", func(r chi.Router) {
			r.With(s.authz.Require(authz.ObjectAudit, authz.ActionRead)).
				Get("/entries", s.handleAuditEntries)
			r.With(s.authz.Require(authz.ObjectAudit, authz.ActionRead)).
				Get("/entries/{id}", s.handleAuditEntry)
			r.With(s.authz.Require(authz.ObjectAudit, authz.ActionRead)).
				Get("/stats", s.handleAuditStats)
			r.With(s.authz.Require(authz.ObjectExport, authz.ActionRead)).
				Get("/export", s.handleAuditExport)
			r.With(s.authz.Require(authz.ObjectTail, authz.ActionRead)).
				Get("/tail", s.handleAuditTail)
		})
	})

	return r
}

// resolve derives the tenant context for the current request from the
// authenticated principal and the requested organization header.
func (s *Server) resolve(r *http.Request) (*tenancy.Context, error) {
	p, ok := authn.PrincipalFromContext(r.Context())
	if !ok {
		return nil, tenancy.ErrUnauthenticated
	}
	return s.resolver.Resolve(r.Context(), p, authn.RequestedOrg(r))
}
