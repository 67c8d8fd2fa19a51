package engine

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "xcombat.dev/internal/sim/engine"

var bgCtx = context.Background()

// EngineMetrics is a read-only view of the tick loop. It is written by the
// tick goroutine and read from HTTP handlers and tests.
type EngineMetrics struct {
	Tick        uint64      `json:"tick"`
	StepMS      float64     `json:"step_ms"`
	Projectiles int         `json:"projectiles"`
	Thrown      int         `json:"thrown"`
	Vehicles    int         `json:"vehicles"`
	Tasks       int         `json:"tasks"`
	ErrorCount  int         `json:"error_count"`
	ResetTotal  uint64      `json:"reset_total"`
	Dropped     uint64      `json:"dropped_batches"`
	QueueDepths QueueDepths `json:"queue_depths"`
}

type QueueDepths struct {
	Inputs   int `json:"inputs"`
	Requests int `json:"requests"`
	Reload   int `json:"reload"`
	Crawl    int `json:"crawl"`
	Deaths   int `json:"deaths"`
}

func (e *Engine) Metrics() EngineMetrics {
	v := e.metrics.Load()
	if v == nil {
		return EngineMetrics{}
	}
	m, ok := v.(EngineMetrics)
	if !ok {
		return EngineMetrics{}
	}
	return m
}

func (e *Engine) liveProjectiles() int {
	n := 0
	for _, ws := range e.worlds {
		n += ws.Projectiles.Len()
	}
	return n
}

func (e *Engine) publishMetrics(stepMS float64) {
	thrown := 0
	for _, ws := range e.worlds {
		thrown += len(ws.Thrown)
	}
	vehicles := 0
	if e.vehicles != nil {
		vehicles = e.vehicles.Len()
	}
	e.metrics.Store(EngineMetrics{
		Tick:        e.tick.Load(),
		StepMS:      stepMS,
		Projectiles: e.liveProjectiles(),
		Thrown:      thrown,
		Vehicles:    vehicles,
		Tasks:       e.runner.Active(),
		ErrorCount:  e.errorCount,
		ResetTotal:  e.resetTotal,
		Dropped:     e.emitter.dropped.Load(),
		QueueDepths: QueueDepths{
			Inputs:   e.inputs.Len(),
			Requests: e.req.depth(),
			Reload:   e.reloadFinished.Len() + e.reloadCancelled.Len(),
			Crawl:    e.crawlFinished.Len() + e.crawlCancelled.Len(),
			Deaths:   len(e.deaths),
		},
	})
}

// instruments are the OpenTelemetry views of the same signals. They are
// no-ops unless the process installs a meter provider.
type instruments struct {
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	resets   metric.Int64Counter
	world    metric.MeasurementOption
}

func newInstruments(e *Engine, logger *log.Logger) *instruments {
	inst, err := buildInstruments(e)
	if err != nil {
		logger.Printf("WARN engine: otel instruments disabled: %v", err)
		return noopInstruments()
	}
	return inst
}

func buildInstruments(e *Engine) (*instruments, error) {
	meter := otel.Meter(instrumentationName)
	inst := &instruments{world: metric.WithAttributes(attribute.String("world_id", e.cfg.WorldID))}

	var err error
	inst.duration, err = meter.Float64Histogram("engine.tick.duration",
		metric.WithDescription("Wall time of one engine tick"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("creating tick duration histogram: %w", err)
	}
	inst.errors, err = meter.Int64Counter("engine.tick.errors",
		metric.WithDescription("Ticks that ended in a recovered panic"))
	if err != nil {
		return nil, fmt.Errorf("creating tick error counter: %w", err)
	}
	inst.resets, err = meter.Int64Counter("engine.tick.resets",
		metric.WithDescription("Clean slate resets after repeated tick errors"))
	if err != nil {
		return nil, fmt.Errorf("creating reset counter: %w", err)
	}
	gauge, err := meter.Int64ObservableGauge("engine.projectiles.live",
		metric.WithDescription("Projectiles in flight across all worlds"))
	if err != nil {
		return nil, fmt.Errorf("creating projectile gauge: %w", err)
	}
	// Read from the published snapshot; the callback runs off the tick
	// goroutine.
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, int64(e.Metrics().Projectiles), inst.world)
		return nil
	}, gauge)
	if err != nil {
		return nil, fmt.Errorf("registering projectile gauge: %w", err)
	}
	return inst, nil
}

func noopInstruments() *instruments {
	meter := noop.NewMeterProvider().Meter(instrumentationName)
	h, _ := meter.Float64Histogram("engine.tick.duration")
	c, _ := meter.Int64Counter("engine.tick.errors")
	r, _ := meter.Int64Counter("engine.tick.resets")
	return &instruments{duration: h, errors: c, resets: r, world: metric.WithAttributes()}
}
