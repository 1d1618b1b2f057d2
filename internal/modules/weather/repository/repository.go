package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"sensorhub-server/internal/config"
	"sensorhub-server/internal/modules/weather/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/get-latest-readings.sql
var getLatestReadingsSQL string

//go:embed sql/get-readings-since.sql
var getReadingsSinceSQL string

//go:embed sql/get-stats.sql
var getStatsSQL string

// sqliteTimeLayout is fixed-width so that TEXT timestamps sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

var ErrInvalidArgument = errors.New("invalid argument")

// StorageError wraps every failure coming from the database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

type WeatherRepository interface {
	InsertReading(ctx context.Context, r types.NewReading) (int64, error)
	GetLatestReadings(ctx context.Context, limit int) ([]types.Reading, error)
	GetReadingsByTimeRange(ctx context.Context, hours int) ([]types.Reading, error)
	GetStats(ctx context.Context, hours int) (types.StatsWindow, error)
}

type Option func(*repositoryImpl)

// WithClock replaces time.Now for timestamp assignment and window cutoffs.
func WithClock(now func() time.Time) Option {
	return func(r *repositoryImpl) { r.now = now }
}

type repositoryImpl struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

func NewRepository(db *sql.DB, dialect string, opts ...Option) WeatherRepository {
	r := &repositoryImpl{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *repositoryImpl) InsertReading(ctx context.Context, in types.NewReading) (int64, error) {
	ts := r.now()
	if in.Timestamp != nil {
		ts = *in.Timestamp
	}

	// Two decimals, matching DECIMAL(5,2) on MySQL so both backends store the same value.
	res, err := r.db.ExecContext(ctx, insertReadingSQL,
		roundTo(in.Temperature, 2),
		roundTo(in.Humidity, 2),
		in.LightValue,
		r.timeArg(ts),
	)
	if err != nil {
		return 0, &StorageError{Op: "insert reading", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &StorageError{Op: "insert reading: last insert id", Err: err}
	}
	return id, nil
}

func (r *repositoryImpl) GetLatestReadings(ctx context.Context, limit int) ([]types.Reading, error) {
	if limit <= 0 {
		return nil, &StorageError{Op: "latest readings", Err: fmt.Errorf("%w: limit must be > 0, got %d", ErrInvalidArgument, limit)}
	}
	rows, err := r.db.QueryContext(ctx, getLatestReadingsSQL, limit)
	if err != nil {
		return nil, &StorageError{Op: "latest readings", Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close latest readings rows", "error", err)
		}
	}()
	out, err := scanReadings(rows)
	if err != nil {
		return nil, &StorageError{Op: "latest readings", Err: err}
	}
	return out, nil
}

func (r *repositoryImpl) GetReadingsByTimeRange(ctx context.Context, hours int) ([]types.Reading, error) {
	if hours <= 0 {
		return nil, &StorageError{Op: "readings by time range", Err: fmt.Errorf("%w: hours must be > 0, got %d", ErrInvalidArgument, hours)}
	}
	rows, err := r.db.QueryContext(ctx, getReadingsSinceSQL, r.timeArg(r.cutoff(hours)))
	if err != nil {
		return nil, &StorageError{Op: "readings by time range", Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()
	out, err := scanReadings(rows)
	if err != nil {
		return nil, &StorageError{Op: "readings by time range", Err: err}
	}
	return out, nil
}

func (r *repositoryImpl) GetStats(ctx context.Context, hours int) (types.StatsWindow, error) {
	if hours <= 0 {
		return types.StatsWindow{}, &StorageError{Op: "stats", Err: fmt.Errorf("%w: hours must be > 0, got %d", ErrInvalidArgument, hours)}
	}

	var (
		stats                     types.StatsWindow
		avgT, minT, maxT          sql.NullFloat64
		avgH, minH, maxH          sql.NullFloat64
		avgL                      sql.NullFloat64
		minL, maxL                sql.NullInt64
		firstReading, lastReading nullTime
	)
	err := r.db.QueryRowContext(ctx, getStatsSQL, r.timeArg(r.cutoff(hours))).Scan(
		&stats.TotalReadings,
		&avgT, &minT, &maxT,
		&avgH, &minH, &maxH,
		&avgL, &minL, &maxL,
		&firstReading, &lastReading,
	)
	if err != nil {
		return types.StatsWindow{}, &StorageError{Op: "stats", Err: err}
	}

	stats.AvgTemp = floatPtr(avgT)
	stats.MinTemp = floatPtr(minT)
	stats.MaxTemp = floatPtr(maxT)
	stats.AvgHumidity = floatPtr(avgH)
	stats.MinHumidity = floatPtr(minH)
	stats.MaxHumidity = floatPtr(maxH)
	stats.AvgLight = floatPtr(avgL)
	stats.MinLight = intPtr(minL)
	stats.MaxLight = intPtr(maxL)
	stats.FirstReading = firstReading.ptr()
	stats.LastReading = lastReading.ptr()
	return stats, nil
}

func (r *repositoryImpl) cutoff(hours int) time.Time {
	return r.now().Add(-time.Duration(hours) * time.Hour)
}

// timeArg encodes t the way the dialect's timestamp column stores it.
func (r *repositoryImpl) timeArg(t time.Time) any {
	if r.dialect == config.DriverMySQL {
		return t.UTC()
	}
	return t.UTC().Format(sqliteTimeLayout)
}

func scanReadings(rows *sql.Rows) ([]types.Reading, error) {
	out := []types.Reading{}
	for rows.Next() {
		var rec types.Reading
		var ts nullTime
		if err := rows.Scan(&rec.ID, &rec.Temperature, &rec.Humidity, &rec.LightValue, &ts); err != nil {
			return nil, err
		}
		rec.Timestamp = ts.Time
		out = append(out, rec)
	}
	return out, rows.Err()
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func roundTo(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
