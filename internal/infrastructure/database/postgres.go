// Package database provides the history row store. PostgresHistory is the
// durable backend; MemoryHistory is the in-process fallback used when the
// database is disabled or unreachable at startup.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/climaops/weather-service/internal/core/domain"
	"github.com/climaops/weather-service/internal/core/ports"
	"github.com/climaops/weather-service/internal/observability"
)

type PostgresHistory struct {
	db        *sql.DB
	telemetry *observability.Telemetry
	logger    *zap.Logger
}

type Config struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	Database              string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

func NewPostgresHistory(cfg Config, telemetry *observability.Telemetry, logger *zap.Logger) (*PostgresHistory, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnectionMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(db, logger); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &PostgresHistory{
		db:        db,
		telemetry: telemetry,
		logger:    logger,
	}, nil
}

// Record appends one lookup row. The store assigns id and created_at.
func (p *PostgresHistory) Record(ctx context.Context, query *domain.WeatherQuery) error {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "History.Record")
	defer span.End()

	span.SetAttributes(
		attribute.String("history.city", query.City),
		attribute.Bool("history.cached", query.Cached),
	)

	stmt := `
        INSERT INTO weather_queries (
            city, ip_address, temperature, description, country,
            humidity, pressure, wind_speed, cached
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, created_at
    `

	start := time.Now()
	err := p.db.QueryRowContext(ctx, stmt,
		query.City,
		query.IPAddress,
		query.Temperature,
		query.Description,
		query.Country,
		query.Humidity,
		query.Pressure,
		query.WindSpeed,
		query.Cached,
	).Scan(&query.ID, &query.CreatedAt)

	duration := time.Since(start)
	p.telemetry.RecordDBQuery(ctx, "insert", "weather_queries", duration, err)

	if err != nil {
		p.logger.Error("failed to record weather query",
			zap.Error(err),
			zap.String("city", query.City),
			zap.Duration("duration", duration),
		)
		span.RecordError(err)
		return err
	}

	p.logger.Debug("weather query recorded",
		zap.String("city", query.City),
		zap.Bool("cached", query.Cached),
		zap.Duration("duration", duration),
	)

	return nil
}

// GetHistory returns up to limit rows for a city, newest first. City
// matching is case-insensitive so "london" and "London" share a history.
func (p *PostgresHistory) GetHistory(ctx context.Context, city string, limit int) ([]domain.WeatherQuery, error) {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "History.Get")
	defer span.End()

	span.SetAttributes(
		attribute.String("history.city", city),
		attribute.Int("history.limit", limit),
	)

	stmt := `
        SELECT id, city, ip_address, temperature, description, country,
               humidity, pressure, wind_speed, cached, created_at
        FROM weather_queries
        WHERE LOWER(city) = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `

	start := time.Now()
	rows, err := p.db.QueryContext(ctx, stmt, domain.NormalizeCity(city), limit)
	duration := time.Since(start)

	p.telemetry.RecordDBQuery(ctx, "select", "weather_queries", duration, err)

	if err != nil {
		p.logger.Error("failed to query weather history",
			zap.Error(err),
			zap.String("city", city),
		)
		span.RecordError(err)
		return nil, err
	}

	defer rows.Close()

	var queries []domain.WeatherQuery

	for rows.Next() {
		var q domain.WeatherQuery

		if err := rows.Scan(
			&q.ID,
			&q.City,
			&q.IPAddress,
			&q.Temperature,
			&q.Description,
			&q.Country,
			&q.Humidity,
			&q.Pressure,
			&q.WindSpeed,
			&q.Cached,
			&q.CreatedAt,
		); err != nil {
			span.RecordError(err)
			return nil, err
		}

		queries = append(queries, q)
	}

	return queries, rows.Err()
}

// PruneToLimit keeps the maxPerCity newest rows per city and deletes the
// rest. Each city is pruned by a single DELETE whose keep-set subquery is
// evaluated inside the statement, so rows inserted afterwards are never
// deleted and the returned count covers only rows removed here. A failure
// on one city is logged and the sweep continues with the next.
func (p *PostgresHistory) PruneToLimit(ctx context.Context, maxPerCity int) (int64, error) {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "History.PruneToLimit")
	defer span.End()

	span.SetAttributes(attribute.Int("history.max_per_city", maxPerCity))

	cities, err := p.distinctCities(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	stmt := `
        DELETE FROM weather_queries
        WHERE city = $1
          AND id NOT IN (
              SELECT id FROM weather_queries
              WHERE city = $1
              ORDER BY created_at DESC, id DESC
              LIMIT $2
          )
    `

	var deleted int64
	var failures int

	for _, city := range cities {
		start := time.Now()
		result, err := p.db.ExecContext(ctx, stmt, city, maxPerCity)
		duration := time.Since(start)

		p.telemetry.RecordDBQuery(ctx, "delete", "weather_queries", duration, err)

		if err != nil {
			failures++

			p.logger.Error("failed to prune city history",
				zap.Error(err),
				zap.String("city", city),
			)

			continue
		}

		rows, err := result.RowsAffected()
		if err != nil {
			failures++

			p.logger.Error("failed to count pruned rows",
				zap.Error(err),
				zap.String("city", city),
			)

			continue
		}

		if rows > 0 {
			p.logger.Debug("pruned city history",
				zap.String("city", city),
				zap.Int64("deleted", rows),
			)
		}

		deleted += rows
	}

	span.SetAttributes(
		attribute.Int64("history.deleted", deleted),
		attribute.Int("history.failures", failures),
	)

	if failures > 0 {
		return deleted, fmt.Errorf("prune failed for %d of %d cities", failures, len(cities))
	}

	return deleted, nil
}

// PruneOlderThan deletes rows created before now minus age.
func (p *PostgresHistory) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "History.PruneOlderThan")
	defer span.End()

	cutoff := time.Now().Add(-age)
	span.SetAttributes(attribute.String("history.cutoff", cutoff.Format(time.RFC3339)))

	start := time.Now()
	result, err := p.db.ExecContext(ctx,
		`DELETE FROM weather_queries WHERE created_at < $1`, cutoff)
	duration := time.Since(start)

	p.telemetry.RecordDBQuery(ctx, "delete", "weather_queries", duration, err)

	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	return result.RowsAffected()
}

// Stats aggregates lookup counters across all cities.
func (p *PostgresHistory) Stats(ctx context.Context) (*ports.HistoryStats, error) {
	stmt := `
        SELECT
            COUNT(*) AS total_queries,
            COALESCE(SUM(CASE WHEN cached THEN 1 ELSE 0 END), 0) AS cached_queries,
            COUNT(DISTINCT city) AS distinct_cities,
            MAX(created_at) AS last_query_at
        FROM weather_queries
    `

	var stats ports.HistoryStats
	var lastQueryAt sql.NullTime

	start := time.Now()
	err := p.db.QueryRowContext(ctx, stmt).Scan(
		&stats.TotalQueries,
		&stats.CachedQueries,
		&stats.DistinctCities,
		&lastQueryAt,
	)
	duration := time.Since(start)

	p.telemetry.RecordDBQuery(ctx, "select", "weather_queries", duration, err)

	if err != nil {
		return nil, err
	}

	if lastQueryAt.Valid {
		stats.LastQueryAt = lastQueryAt.Time
	}

	return &stats, nil
}

func (p *PostgresHistory) distinctCities(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT city FROM weather_queries`)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var cities []string

	for rows.Next() {
		var city string

		if err := rows.Scan(&city); err != nil {
			return nil, err
		}

		cities = append(cities, city)
	}

	return cities, rows.Err()
}

func (p *PostgresHistory) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresHistory) Close() error {
	return p.db.Close()
}
