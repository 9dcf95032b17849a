package telemetry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig configures gorm instrumentation
type DBConfig struct {
	TraceEnabled       bool
	LogFullSQL         bool // keep bind variables in span statements
	SlowQueryThreshold time.Duration
	DBName             string
}

type queryStartKey struct{}

// DBInstrumentation is a gorm plugin that counts queries, records their
// latency, observes the connection pool and, with tracing on, registers
// otelgorm and flags slow statements on their spans.
type DBInstrumentation struct {
	cfg      DBConfig
	logger   *zap.Logger
	meter    metric.Meter
	queries  *Counter
	duration *Histogram
	slow     *Counter
	pool     metric.Registration
}

// NewDBInstrumentation creates the plugin; install it with db.Use
func NewDBInstrumentation(meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBInstrumentation, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.DBName == "" {
		cfg.DBName = "postgresql"
	}

	d := &DBInstrumentation{cfg: cfg, logger: logger, meter: meter}
	var err error
	if d.queries, err = NewCounter(meter, "db_query_total", "Database queries by operation and table", "{query}"); err != nil {
		return nil, err
	}
	if d.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if d.slow, err = NewCounter(meter, "db_slow_query_total", "Queries slower than the slow query threshold", "{query}"); err != nil {
		return nil, err
	}
	return d, nil
}

// Name implements gorm.Plugin
func (d *DBInstrumentation) Name() string { return "gl:instrumentation" }

// Initialize implements gorm.Plugin
func (d *DBInstrumentation) Initialize(db *gorm.DB) error {
	if d.cfg.TraceEnabled {
		opts := []otelgorm.Option{otelgorm.WithDBName(d.cfg.DBName)}
		if !d.cfg.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return err
		}
	}

	cb := db.Callback()
	if err := errors.Join(
		cb.Create().Before("gorm:create").Register("gl:before_create", d.before),
		cb.Create().After("gorm:create").Register("gl:after_create", d.after("INSERT")),
		cb.Query().Before("gorm:query").Register("gl:before_query", d.before),
		cb.Query().After("gorm:query").Register("gl:after_query", d.after("SELECT")),
		cb.Update().Before("gorm:update").Register("gl:before_update", d.before),
		cb.Update().After("gorm:update").Register("gl:after_update", d.after("UPDATE")),
		cb.Delete().Before("gorm:delete").Register("gl:before_delete", d.before),
		cb.Delete().After("gorm:delete").Register("gl:after_delete", d.after("DELETE")),
		cb.Row().Before("gorm:row").Register("gl:before_row", d.before),
		cb.Row().After("gorm:row").Register("gl:after_row", d.after("")),
		cb.Raw().Before("gorm:raw").Register("gl:before_raw", d.before),
		cb.Raw().After("gorm:raw").Register("gl:after_raw", d.after("")),
	); err != nil {
		return err
	}

	if err := d.observePool(db); err != nil {
		return err
	}

	d.logger.Info("database instrumentation enabled",
		zap.Bool("tracing", d.cfg.TraceEnabled),
		zap.Duration("slow_query_threshold", d.cfg.SlowQueryThreshold),
	)
	return nil
}

func (d *DBInstrumentation) observePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	conns, err := d.meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Pooled connections by state"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}
	d.pool, err = d.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(conns, int64(stats.InUse), metric.WithAttributes(AttrDBPoolState.String("in_use")))
		o.ObserveInt64(conns, int64(stats.Idle), metric.WithAttributes(AttrDBPoolState.String("idle")))
		o.ObserveInt64(conns, int64(stats.MaxOpenConnections), metric.WithAttributes(AttrDBPoolState.String("max")))
		return nil
	}, conns)
	return err
}

// Close stops observing the connection pool
func (d *DBInstrumentation) Close() error {
	if d.pool == nil {
		return nil
	}
	return d.pool.Unregister()
}

func (d *DBInstrumentation) before(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, queryStartKey{}, time.Now())
}

func (d *DBInstrumentation) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		op := operation
		if op == "" {
			op = operationOf(db.Statement.SQL.String())
		}
		d.record(db, op)
	}
}

func (d *DBInstrumentation) record(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	table := db.Statement.Table
	if table == "" {
		table = "unknown"
	}

	d.queries.Inc(ctx, AttrDBOperation.String(operation), AttrDBTable.String(table))
	d.duration.RecordDuration(ctx, elapsed, AttrDBOperation.String(operation))
	slow := elapsed > d.cfg.SlowQueryThreshold
	if slow {
		d.slow.Inc(ctx, AttrDBTable.String(table))
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String("db.sql.table", table),
		attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
	)
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}
	if slow {
		span.SetAttributes(attribute.Bool("db.slow_query", true))
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", d.cfg.SlowQueryThreshold.Milliseconds()),
		))
	}
}

func operationOf(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "OTHER"
	}
	switch op := strings.ToUpper(fields[0]); op {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return op
	case "WITH":
		return "SELECT"
	default:
		return "OTHER"
	}
}
