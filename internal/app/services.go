package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/backoffice/internal/accounts"
	"github.com/odyssey-erp/backoffice/internal/audit"
	"github.com/odyssey-erp/backoffice/internal/dashboard"
	"github.com/odyssey-erp/backoffice/internal/inventory"
	"github.com/odyssey-erp/backoffice/internal/masterdata/products"
	"github.com/odyssey-erp/backoffice/internal/masterdata/taxes"
	"github.com/odyssey-erp/backoffice/internal/observability"
	"github.com/odyssey-erp/backoffice/internal/orgs"
	"github.com/odyssey-erp/backoffice/internal/platform/cache"
	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/procurement"
	"github.com/odyssey-erp/backoffice/internal/sales"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Infra holds the connections shared by the HTTP server and the worker.
type Infra struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// OpenInfra connects to PostgreSQL and Redis.
func OpenInfra(ctx context.Context, cfg *Config) (*Infra, error) {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	client, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Infra{Pool: pool, Redis: client}, nil
}

// Close releases both connections.
func (i *Infra) Close(logger *slog.Logger) {
	if err := i.Redis.Close(); err != nil {
		logger.Warn("redis close", slog.Any("error", err))
	}
	i.Pool.Close()
}

// Services bundles every domain service of the back office.
type Services struct {
	Orgs        *orgs.Resolver
	Products    *products.Service
	Taxes       *taxes.Service
	Inventory   *inventory.Service
	Accounts    *accounts.Service
	Sales       *sales.Service
	Procurement *procurement.Service
	Dashboard   *dashboard.Service
	Audit       *shared.AuditLogger
	Timeline    *audit.Service
	Idempotency *shared.IdempotencyStore
}

// ServiceDeps are the runtime collaborators not owned by Services.
type ServiceDeps struct {
	Config    *Config
	Infra     *Infra
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Publisher procurement.ReceiptPublisher
}

// NewServices wires repositories, caches and services.
func NewServices(deps ServiceDeps) *Services {
	cfg, pool := deps.Config, deps.Infra.Pool
	jsonCache := cache.NewJSONCache(deps.Infra.Redis, cfg.CatalogCacheTTL)
	auditLogger := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)

	productRepo := products.NewRepository(pool)
	catalog := products.NewCatalog(productRepo, jsonCache)
	productService := products.NewService(productRepo, catalog, deps.Logger)
	taxService := taxes.NewService(taxes.NewRepository(pool))
	inventoryService := inventory.NewService(inventory.NewRepository(pool))
	accountService := accounts.NewService(accounts.NewRepository(pool), auditLogger, deps.Metrics, deps.Logger, cfg.DefaultPaymentTermsDays)

	salesService := sales.NewService(sales.NewRepository(pool), catalog, taxService, accountService, auditLogger, deps.Metrics, deps.Logger)
	procurementService := procurement.NewService(procurement.NewRepository(pool), procurement.Deps{
		Catalog:     catalog,
		Taxes:       taxService,
		Inventory:   inventoryService,
		Accounts:    accountService,
		Locks:       shared.NewLocker(deps.Infra.Redis, cfg.ReceiptLockTTL),
		Idempotency: idempotency,
		Audit:       auditLogger,
		Publisher:   deps.Publisher,
		Metrics:     deps.Metrics,
		Logger:      deps.Logger,
	})

	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		deps.Logger.Warn("invalid locale, using English", slog.String("locale", cfg.Locale))
		tag = language.English
	}

	return &Services{
		Orgs:        orgs.NewResolver(orgs.NewRepository(pool), jsonCache),
		Products:    productService,
		Taxes:       taxService,
		Inventory:   inventoryService,
		Accounts:    accountService,
		Sales:       salesService,
		Procurement: procurementService,
		Dashboard:   dashboard.NewService(salesService, procurementService, accountService, tag),
		Audit:       auditLogger,
		Timeline:    audit.NewService(audit.NewRepository(pool)),
		Idempotency: idempotency,
	}
}
