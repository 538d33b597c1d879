package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds the metrics pipeline settings.
type Config struct {
	Enabled     bool
	ServiceName string
	Interval    time.Duration
	Writer      io.Writer // stdout exporter target; nil skips the exporter
}

// Provider owns the SDK meter provider. A disabled Provider hands out a
// no-op provider.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	config        Config
	out           io.Closer
}

// New builds the meter provider. Extra readers are attached alongside the
// periodic stdout exporter.
func New(cfg Config, readers ...sdkmetric.Reader) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.Writer != nil {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Writer))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		var opts []sdkmetric.PeriodicReaderOption
		if cfg.Interval > 0 {
			opts = append(opts, sdkmetric.WithInterval(cfg.Interval))
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp, opts...))
	}
	if len(readers) == 0 {
		return nil, errors.New("metrics enabled but no writer or reader configured")
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	return p, nil
}

// Start builds an enabled provider exporting to path, or to fallback when
// path is empty, and installs it as the global meter provider.
func Start(serviceName string, interval time.Duration, path string, fallback io.Writer) (*Provider, error) {
	cfg := Config{Enabled: true, ServiceName: serviceName, Interval: interval, Writer: fallback}
	var f *os.File
	if path != "" {
		var err error
		f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("error opening metrics file: %w", err)
		}
		cfg.Writer = f
	}
	p, err := New(cfg)
	if err != nil {
		if f != nil {
			_ = f.Close()
		}
		return nil, err
	}
	if f != nil {
		p.out = f
	}
	otel.SetMeterProvider(p.meterProvider)
	return p, nil
}

// MeterProvider returns the SDK provider, or a no-op one when disabled.
func (p *Provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return noop.NewMeterProvider()
	}
	return p.meterProvider
}

// Enabled reports whether metrics are recorded.
func (p *Provider) Enabled() bool {
	return p.meterProvider != nil
}

// Flush exports everything recorded so far.
func (p *Provider) Flush(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	if err := p.meterProvider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("metric flush failed: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the readers. Call it on exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	err := p.meterProvider.Shutdown(ctx)
	if p.out != nil {
		err = errors.Join(err, p.out.Close())
	}
	if err != nil {
		return fmt.Errorf("metric shutdown failed: %w", err)
	}
	return nil
}
