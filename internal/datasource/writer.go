package datasource

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/rxtech-lab/argo-indicator/internal/logger"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// DatasetWriter accumulates fetched ticks in a DuckDB table and exports the
// result as a dataset file. Used by the fetch command.
type DatasetWriter struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
	count  int
}

// NewDatasetWriter creates a writer backed by an in-memory DuckDB database.
func NewDatasetWriter(logger *logger.Logger) (*DatasetWriter, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	_, err = db.Exec(`
		CREATE TABLE ticks (
			symbol VARCHAR NOT NULL,
			time DOUBLE NOT NULL,
			price DOUBLE NOT NULL,
			volume DOUBLE NOT NULL,
			quote_volume DOUBLE NOT NULL
		);
	`)
	if err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to create ticks table", err)
	}

	return &DatasetWriter{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Write appends a batch of ticks.
func (w *DatasetWriter) Write(ticks []types.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	insert := w.sq.Insert("ticks").
		Columns("symbol", "time", "price", "volume", "quote_volume")

	for _, t := range ticks {
		insert = insert.Values(t.Symbol, t.Time, t.Price, t.Volume, t.QuoteVolume)
	}

	sqlStr, args, err := insert.ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to build insert", err)
	}

	if _, err := w.db.Exec(sqlStr, args...); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert ticks", err)
	}

	w.count += len(ticks)

	return nil
}

// Count returns the number of ticks written so far.
func (w *DatasetWriter) Count() int {
	return w.count
}

// ExportParquet writes the accumulated ticks to a parquet file, ordered by
// symbol and time with duplicate timestamps collapsed to the last row seen.
func (w *DatasetWriter) ExportParquet(path string) error {
	query := fmt.Sprintf(`
		COPY (
			SELECT symbol, time,
				last(price ORDER BY rowid) AS price,
				last(volume ORDER BY rowid) AS volume,
				last(quote_volume ORDER BY rowid) AS quote_volume
			FROM ticks
			GROUP BY symbol, time
			ORDER BY symbol, time
		) TO '%s' (FORMAT PARQUET);
	`, path)

	if _, err := w.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to export parquet to %s", path)
	}

	return nil
}

// Close releases the underlying database.
func (w *DatasetWriter) Close() error {
	return w.db.Close()
}
