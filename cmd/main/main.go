package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	conf "github.com/webitel/inspection-exporter/config"
	"github.com/webitel/inspection-exporter/internal/app"
	"github.com/webitel/inspection-exporter/internal/domain/model"
	logging "github.com/webitel/inspection-exporter/internal/otel"

	// ------------ logging ------------ //
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	// -------------------- plugin(s) -------------------- //
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/log/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/log/stdout"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/metric/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/metric/stdout"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/trace/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/trace/stdout"
)

func main() {
	os.Exit(run())
}

func run() int {
	config, err := conf.LoadConfig()
	if err != nil {
		slog.Error("inspection_exporter.main.configuration_error", slog.String("error", err.Error()))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// slog + OTEL logging
	service := resource.NewSchemaless(
		semconv.ServiceName(model.AppServiceName),
		semconv.ServiceVersion(model.CurrentVersion),
		semconv.ServiceInstanceID(config.Consul.Id),
		semconv.ServiceNamespace(model.NamespaceName),
	)
	shutdown, err := logging.Setup(ctx, service)
	if err != nil {
		slog.Error("inspection_exporter.main.otel_setup_error", slog.String("error", err.Error()))
		return 1
	}

	application, err := app.New(ctx, config, shutdown)
	if err != nil {
		slog.Error("inspection_exporter.main.application_initialization_error", slog.String("error", err.Error()))
		_ = shutdown(context.Background())
		return 1
	}

	slog.Debug("inspection_exporter.main.configuration_loaded",
		slog.String("http_addr", config.HTTP.Addr),
		slog.String("consul", config.Consul.Address),
		slog.String("consul_id", config.Consul.Id),
		slog.String("storage", config.Storage.Provider),
		slog.Int("workers", config.Export.Workers),
	)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("inspection_exporter.main.starting_application")
		errCh <- application.Start(ctx)
	}()

	code := 0
	select {
	case <-ctx.Done():
		slog.Info("inspection_exporter.main.received_stop_signal")
	case err := <-errCh:
		slog.Error("inspection_exporter.main.application_start_error", slog.String("error", err.Error()))
		code = 1
	}
	_ = application.Stop()
	return code
}
