// Package logging routes slog through OpenTelemetry.
package logging

import (
	"context"
	"log/slog"
	"os"

	slogutil "github.com/webitel/webitel-go-kit/infra/otel/log/bridge/slog"
	otelsdk "github.com/webitel/webitel-go-kit/infra/otel/sdk"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/sdk/resource"

	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/log/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/log/stdout"
)

const levelEnv = "OTEL_LOG_LEVEL"

// Level reads the log level from OTEL_LOG_LEVEL, info when unset or invalid.
func Level() slog.Level {
	var level slog.LevelVar
	level.Set(slog.LevelInfo)
	if input := os.Getenv(levelEnv); input != "" {
		if err := level.UnmarshalText([]byte(input)); err != nil {
			level.Set(slog.LevelInfo)
		}
	}
	return level.Level()
}

// Setup configures the OpenTelemetry SDK for service and makes slog.Default
// write through it. The returned func flushes and stops the exporters.
func Setup(ctx context.Context, service *resource.Resource) (func(context.Context) error, error) {
	var verbose slog.LevelVar
	verbose.Set(Level())

	shutdown, err := otelsdk.Configure(
		ctx,
		otelsdk.WithResource(service),
		otelsdk.WithLogBridge(func() {
			slog.SetDefault(slog.New(
				slogutil.WithLevel(&verbose, otelslog.NewHandler("slog")),
			))
		}),
	)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "inspection_exporter.otel.setup_done", slog.String("level", verbose.Level().String()))
	return shutdown, nil
}
