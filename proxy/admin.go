package proxy

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/cipherbob/pkg/metrics"
)

// newAdminApp builds the metrics-only app served on Config.MetricsListen.
// It is never mounted on the public listener.
func newAdminApp(collector *metrics.Collector) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))

	return app
}
