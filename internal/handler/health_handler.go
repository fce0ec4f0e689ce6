package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// BrokerChecker reports broker connectivity, implemented by the RabbitMQ
// client.
type BrokerChecker interface {
	Ping(ctx context.Context) error
}

func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client, broker BrokerChecker) {
	app.Get("/livez", LivezHandler())
	app.Get("/healthz", HealthzHandler(sqlDB, rdb, broker))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

// HealthzHandler checks every backing dependency of the dispatch path. Redis
// and the broker are degraded-but-up dependencies (the dispatcher fails open
// on them), so only postgres being down makes the service unhealthy.
func HealthzHandler(sqlDB *sql.DB, rdb *redis.Client, broker BrokerChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		pgErr := sqlDB.PingContext(ctx)
		redisErr := rdb.Ping(ctx).Err()
		var brokerErr error
		if broker != nil {
			brokerErr = broker.Ping(ctx)
		}

		checks := fiber.Map{
			"postgres": checkStatus(pgErr),
			"redis":    checkStatus(redisErr),
			"rabbitmq": checkStatus(brokerErr),
		}

		status := "healthy"
		statusCode := fiber.StatusOK
		switch {
		case pgErr != nil:
			status = "unhealthy"
			statusCode = fiber.StatusServiceUnavailable
		case redisErr != nil || brokerErr != nil:
			status = "degraded"
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}

func checkStatus(err error) string {
	if err != nil {
		return "down"
	}
	return "ok"
}
