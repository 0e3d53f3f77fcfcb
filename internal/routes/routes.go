package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tallyvault/tallyvault/internal/bank"
	"github.com/tallyvault/tallyvault/internal/config"
	"github.com/tallyvault/tallyvault/internal/goals"
	"github.com/tallyvault/tallyvault/internal/ledger"
	"github.com/tallyvault/tallyvault/internal/middleware"
	"github.com/tallyvault/tallyvault/internal/notification"
	"github.com/tallyvault/tallyvault/internal/pin"
	"github.com/tallyvault/tallyvault/internal/reports"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Store  *ledger.Store
	Syncer *ledger.Syncer
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	pins := pin.NewVerifier(d.Store)
	notifier := notification.NewFeedNotifier(d.Store, d.Logger)
	bankSvc := bank.NewService(d.Store, d.Syncer, pins, notifier)
	goalSvc := goals.NewService(d.Store, d.Syncer)

	bankHandler := bank.NewHandler(bankSvc)
	goalHandler := goals.NewHandler(goalSvc)
	reportHandler := reports.NewHandler(d.Store)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterBankRoutes(api, bankHandler)
	RegisterReportRoutes(api, reportHandler)
	RegisterGoalRoutes(api, goalHandler)

	return nil
}
