package sink

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-indicator/internal/logger"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// DuckDBSink persists computed points to a DuckDB file. Points accumulate in
// a bounded buffer and are inserted in one statement per batch; undefined
// points are stored as NULL values so the output grid stays complete.
type DuckDBSink struct {
	db        *sql.DB
	logger    *logger.Logger
	sq        squirrel.StatementBuilderType
	flushSize int

	mu     sync.Mutex
	buf    []bufferedPoint
	closed bool
}

type bufferedPoint struct {
	key   types.SeriesKey
	point types.ComputedPoint
}

// NewDuckDBSink opens (or creates) the sink database at path. An empty path
// uses an in-memory database.
func NewDuckDBSink(path string, flushSize int, logger *logger.Logger) (*DuckDBSink, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeWriteFailed, "failed to open sink database", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS points (
			session_id VARCHAR NOT NULL,
			symbol VARCHAR NOT NULL,
			category VARCHAR NOT NULL,
			variant_id VARCHAR NOT NULL,
			time DOUBLE NOT NULL,
			value DOUBLE
		);
	`)
	if err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeWriteFailed, "failed to create points table", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id VARCHAR PRIMARY KEY,
			symbol VARCHAR NOT NULL,
			category VARCHAR NOT NULL,
			variant_id VARCHAR NOT NULL,
			mode VARCHAR NOT NULL,
			state VARCHAR NOT NULL,
			error VARCHAR,
			points_written BIGINT NOT NULL
		);
	`)
	if err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeWriteFailed, "failed to create sessions table", err)
	}

	return &DuckDBSink{
		db:        db,
		logger:    logger,
		sq:        squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		flushSize: flushSize,
		buf:       make([]bufferedPoint, 0, flushSize),
	}, nil
}

// Write implements PointWriter. Writing the same (key, time) again replaces
// the buffered entry instead of appending, so a write retried after a failed
// flush persists exactly one row.
func (s *DuckDBSink) Write(key types.SeriesKey, point types.ComputedPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.ErrCodeSinkClosed, "sink is closed")
	}

	replaced := false

	for i := len(s.buf) - 1; i >= 0; i-- {
		if s.buf[i].key == key && s.buf[i].point.Time == point.Time {
			s.buf[i].point = point
			replaced = true

			break
		}
	}

	if !replaced {
		s.buf = append(s.buf, bufferedPoint{key: key, point: point})
	}

	if len(s.buf) >= s.flushSize {
		return s.flushLocked()
	}

	return nil
}

// Flush implements PointWriter.
func (s *DuckDBSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.ErrCodeSinkClosed, "sink is closed")
	}

	return s.flushLocked()
}

func (s *DuckDBSink) flushLocked() error {
	if len(s.buf) == 0 {
		return nil
	}

	insert := s.sq.Insert("points").
		Columns("session_id", "symbol", "category", "variant_id", "time", "value")

	for _, b := range s.buf {
		var value any
		if b.point.Value.IsSome() {
			value = b.point.Value.Unwrap()
		}

		insert = insert.Values(
			b.key.SessionID,
			b.key.Symbol,
			string(b.key.Category),
			b.key.VariantID,
			b.point.Time,
			value,
		)
	}

	sqlStr, args, err := insert.ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeFlushFailed, "failed to build insert", err)
	}

	if _, err := s.db.Exec(sqlStr, args...); err != nil {
		return errors.Wrap(errors.ErrCodeFlushFailed, "failed to insert points", err)
	}

	s.logger.Debug("flushed points", zap.Int("count", len(s.buf)))
	s.buf = s.buf[:0]

	return nil
}

// ReadPoints returns the stored series for one variant of a session in time
// order. Used by the verify command to compare batch and replay output.
func (s *DuckDBSink) ReadPoints(sessionID, symbol, variantID string) ([]types.ComputedPoint, error) {
	query := s.sq.Select("time", "value").
		From("points").
		Where(squirrel.Eq{
			"session_id": sessionID,
			"symbol":     symbol,
			"variant_id": variantID,
		}).
		OrderBy("time ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build points query", err)
	}

	rows, err := s.db.Query(sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query points", err)
	}
	defer rows.Close()

	var points []types.ComputedPoint

	for rows.Next() {
		var (
			at    float64
			value sql.NullFloat64
		)

		if err := rows.Scan(&at, &value); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan point", err)
		}

		p := types.ComputedPoint{Time: at, Value: optional.None[float64]()}
		if value.Valid {
			p.Value = optional.Some(value.Float64)
		}

		points = append(points, p)
	}

	return points, rows.Err()
}

// SessionRecord is the durable lifecycle row for one session. A series whose
// session row is not COMPLETED is partial output.
type SessionRecord struct {
	SessionID     string
	Symbol        string
	Category      types.Category
	VariantID     string
	Mode          types.Mode
	State         types.SessionState
	Error         string
	PointsWritten int64
}

// WriteSessionState upserts the session's lifecycle row.
func (s *DuckDBSink) WriteSessionState(rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.ErrCodeSinkClosed, "sink is closed")
	}

	insert := s.sq.Insert("sessions").
		Options("OR REPLACE").
		Columns("session_id", "symbol", "category", "variant_id", "mode", "state", "error", "points_written").
		Values(
			rec.SessionID,
			rec.Symbol,
			string(rec.Category),
			rec.VariantID,
			string(rec.Mode),
			string(rec.State),
			rec.Error,
			rec.PointsWritten,
		)

	sqlStr, args, err := insert.ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to build session upsert", err)
	}

	if _, err := s.db.Exec(sqlStr, args...); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to upsert session state", err)
	}

	return nil
}

// ReadSessionState returns the stored lifecycle row for a session.
func (s *DuckDBSink) ReadSessionState(sessionID string) (SessionRecord, error) {
	query := s.sq.Select("session_id", "symbol", "category", "variant_id", "mode", "state", "error", "points_written").
		From("sessions").
		Where(squirrel.Eq{"session_id": sessionID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return SessionRecord{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build session query", err)
	}

	var (
		rec      SessionRecord
		category string
		mode     string
		state    string
	)

	row := s.db.QueryRow(sqlStr, args...)
	if err := row.Scan(&rec.SessionID, &rec.Symbol, &category, &rec.VariantID, &mode, &state, &rec.Error, &rec.PointsWritten); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionRecord{}, errors.Newf(errors.ErrCodeSessionNotFound, "no session row for %s", sessionID)
		}

		return SessionRecord{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan session row", err)
	}

	rec.Category = types.Category(category)
	rec.Mode = types.Mode(mode)
	rec.State = types.SessionState(state)

	return rec, nil
}

// ExportParquet writes one parquet file per series of the session into dir,
// named {category}_{variantId}.parquet. Returns the paths written.
func (s *DuckDBSink) ExportParquet(sessionID, dir string) ([]string, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT DISTINCT category, variant_id FROM points WHERE session_id = $1 ORDER BY category, variant_id;`,
		sessionID,
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to list series", err)
	}
	defer rows.Close()

	type series struct{ category, variantID string }

	var all []series

	for rows.Next() {
		var sr series
		if err := rows.Scan(&sr.category, &sr.variantID); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan series", err)
		}

		all = append(all, sr)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "series query iteration failed", err)
	}

	var paths []string

	for _, sr := range all {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.parquet", sr.category, sr.variantID))

		// COPY cannot be parameterized, values are interpolated. They come
		// from our own table, not from user input.
		query := fmt.Sprintf(`
			COPY (
				SELECT symbol, time, value FROM points
				WHERE session_id = '%s' AND category = '%s' AND variant_id = '%s'
				ORDER BY symbol, time
			) TO '%s' (FORMAT PARQUET);
		`, sessionID, sr.category, sr.variantID, path)

		if _, err := s.db.Exec(query); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to export %s", path)
		}

		paths = append(paths, path)
	}

	return paths, nil
}

// Close implements PointWriter. It flushes the remaining buffer first.
func (s *DuckDBSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	if err := s.flushLocked(); err != nil {
		return err
	}

	s.closed = true

	return s.db.Close()
}
