// Package telemetry installs the process-wide OpenTelemetry meter provider
// that backs the engine's instruments.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Config holds metric export settings. With Enabled false, New installs
// nothing and the instruments stay no-ops.
type Config struct {
	Enabled     bool
	ServiceName string
	WorldID     string
	Interval    time.Duration

	// Writer receives one JSON document per export. Required when Reader
	// is nil.
	Writer io.Writer
	// Reader replaces the periodic stdout reader; tests pass a manual one.
	Reader sdkmetric.Reader
}

type Provider struct {
	mp     *sdkmetric.MeterProvider
	config Config
}

// New builds the meter provider and makes it the global one. Call it before
// constructing the engine so its instruments bind to the SDK directly.
func New(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "xcombat"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}

	reader := cfg.Reader
	if reader == nil {
		if cfg.Writer == nil {
			return nil, errors.New("metrics enabled but no writer configured")
		}
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Writer))
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.Interval))
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", cfg.ServiceName)}
	if cfg.WorldID != "" {
		attrs = append(attrs, attribute.String("xcombat.world_id", cfg.WorldID))
	}
	p.mp = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(attrs...)),
	)
	otel.SetMeterProvider(p.mp)
	p.config = cfg
	return p, nil
}

func (p *Provider) Enabled() bool { return p.mp != nil }

// Flush exports whatever the readers hold now.
func (p *Provider) Flush(ctx context.Context) error {
	if p.mp == nil {
		return nil
	}
	if err := p.mp.ForceFlush(ctx); err != nil {
		return fmt.Errorf("metric flush failed: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the provider. Safe on a disabled provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.mp == nil {
		return nil
	}
	if err := p.mp.Shutdown(ctx); err != nil {
		return fmt.Errorf("metric shutdown failed: %w", err)
	}
	return nil
}
