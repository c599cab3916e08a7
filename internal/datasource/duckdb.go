package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-indicator/internal/logger"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// DuckDBSource reads tick history through an in-process DuckDB instance.
// The dataset file is exposed as a view; LoadSymbol materializes one ordered
// snapshot per call, so concurrent sessions never share mutable state.
type DuckDBSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBSource creates a data source backed by an in-memory DuckDB
// database. Call Initialize to attach a dataset file.
func NewDuckDBSource(logger *logger.Logger) (*DuckDBSource, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	return &DuckDBSource{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Initialize implements DataSource. The file format is picked from the
// extension; anything other than .csv is read as parquet.
func (d *DuckDBSource) Initialize(path string) error {
	d.logger.Debug("initializing duckdb data source", zap.String("path", path))

	_, err := d.db.Exec(`DROP VIEW IF EXISTS ticks;`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDatasetLoadFailed, "failed to drop existing view", err)
	}

	reader := "read_parquet"
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		reader = "read_csv_auto"
	}

	// CREATE VIEW is not expressible with squirrel, raw SQL here.
	query := fmt.Sprintf(`
		CREATE VIEW ticks AS
		SELECT symbol, time, price, volume, quote_volume
		FROM %s('%s');
	`, reader, path)

	_, err = d.db.Exec(query)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeDatasetLoadFailed, err, "failed to create view over %s", path)
	}

	return nil
}

// LoadSymbol implements DataSource.
func (d *DuckDBSource) LoadSymbol(ctx context.Context, symbol string, r types.TimeRange) ([]types.Tick, error) {
	query := d.sq.Select("symbol", "time", "price", "volume", "quote_volume").
		From("ticks").
		Where(squirrel.Eq{"symbol": symbol}).
		Where(squirrel.GtOrEq{"time": r.Start}).
		Where(squirrel.LtOrEq{"time": r.End}).
		OrderBy("time ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build load query", err)
	}

	rows, err := d.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to load ticks for %s", symbol)
	}
	defer rows.Close()

	var ticks []types.Tick

	for rows.Next() {
		var t types.Tick

		if err := rows.Scan(&t.Symbol, &t.Time, &t.Price, &t.Volume, &t.QuoteVolume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan tick", err)
		}

		ticks = append(ticks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "tick query iteration failed", err)
	}

	ticks = types.DedupTicks(ticks)

	d.logger.Debug("loaded symbol snapshot",
		zap.String("symbol", symbol),
		zap.Int("ticks", len(ticks)))

	return ticks, nil
}

// ReadAll implements DataSource.
func (d *DuckDBSource) ReadAll(symbol string, r optional.Option[types.TimeRange]) iter.Seq2[types.Tick, error] {
	return func(yield func(types.Tick, error) bool) {
		query := d.sq.Select("symbol", "time", "price", "volume", "quote_volume").
			From("ticks").
			Where(squirrel.Eq{"symbol": symbol})

		if r.IsSome() {
			bounds := r.Unwrap()
			query = query.
				Where(squirrel.GtOrEq{"time": bounds.Start}).
				Where(squirrel.LtOrEq{"time": bounds.End})
		}

		query = query.OrderBy("time ASC")

		sqlStr, args, err := query.ToSql()
		if err != nil {
			yield(types.Tick{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err))

			return
		}

		rows, err := d.db.Query(sqlStr, args...)
		if err != nil {
			yield(types.Tick{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query ticks", err))

			return
		}
		defer rows.Close()

		for rows.Next() {
			var t types.Tick

			if err := rows.Scan(&t.Symbol, &t.Time, &t.Price, &t.Volume, &t.QuoteVolume); err != nil {
				yield(types.Tick{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan tick", err))

				return
			}

			if !yield(t, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.Tick{}, errors.Wrap(errors.ErrCodeQueryFailed, "tick query iteration failed", err))
		}
	}
}

// Count implements DataSource.
func (d *DuckDBSource) Count(symbol string, r optional.Option[types.TimeRange]) (int, error) {
	query := d.sq.Select("COUNT(*)").
		From("ticks").
		Where(squirrel.Eq{"symbol": symbol})

	if r.IsSome() {
		bounds := r.Unwrap()
		query = query.
			Where(squirrel.GtOrEq{"time": bounds.Start}).
			Where(squirrel.LtOrEq{"time": bounds.End})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRow(sqlStr, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count ticks", err)
	}

	return count, nil
}

// Range implements DataSource.
func (d *DuckDBSource) Range(symbol string) (types.TimeRange, error) {
	query := d.sq.Select("MIN(time)", "MAX(time)").
		From("ticks").
		Where(squirrel.Eq{"symbol": symbol})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return types.TimeRange{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build range query", err)
	}

	var start, end sql.NullFloat64
	if err := d.db.QueryRow(sqlStr, args...).Scan(&start, &end); err != nil {
		return types.TimeRange{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query range", err)
	}

	if !start.Valid || !end.Valid {
		return types.TimeRange{}, errors.Newf(errors.ErrCodeDataNotFound, "no ticks for symbol %s", symbol)
	}

	return types.TimeRange{Start: start.Float64, End: end.Float64}, nil
}

// Symbols implements DataSource.
func (d *DuckDBSource) Symbols() ([]string, error) {
	rows, err := d.db.Query(`SELECT DISTINCT symbol FROM ticks ORDER BY symbol;`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query symbols", err)
	}
	defer rows.Close()

	var symbols []string

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan symbol", err)
		}

		symbols = append(symbols, s)
	}

	return symbols, rows.Err()
}

// Close implements DataSource.
func (d *DuckDBSource) Close() error {
	return d.db.Close()
}
