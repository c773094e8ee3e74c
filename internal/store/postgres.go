package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/ppiankov/carbonintel/internal/logging"
	"github.com/ppiankov/carbonintel/internal/model"
	"go.uber.org/zap"
)

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore keeps records in a Postgres table: the full record as JSONB
// plus indexed columns for the fields queries filter on
type PostgresStore struct {
	db     *sql.DB
	table  string
	logger *zap.Logger
}

// NewPostgresStore wires an existing sql.DB
func NewPostgresStore(db *sql.DB, table string) (*PostgresStore, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{db: db, table: table, logger: zap.NewNop()}, nil
}

// OpenPostgres connects with the lib/pq driver and ensures the schema exists
func OpenPostgres(ctx context.Context, dsn, table string, logger *zap.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: empty dsn")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %s", logging.SanitizeError(err))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %s", logging.SanitizeError(err))
	}

	s, err := NewPostgresStore(db, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger = logger
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("connected to postgres",
		zap.String("dsn", logging.SanitizeConnectionString(dsn)),
		zap.String("table", table),
	)
	return s, nil
}

// EnsureSchema creates the records table and its indexes if missing
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) schema() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
              id TEXT PRIMARY KEY,
              kind TEXT NOT NULL,
              company_norm TEXT NOT NULL,
              announcement_date DATE NOT NULL,
              investors TEXT[] NOT NULL DEFAULT '{}',
              record JSONB NOT NULL,
              updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
          )`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_date_idx ON %s (announcement_date DESC)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_similarity_idx ON %s (kind, company_norm, announcement_date)`, s.table, s.table),
	}
}

// Get loads the record with the given id
func (s *PostgresStore) Get(ctx context.Context, id string) (model.Record, error) {
	query, args, err := s.getQuery(id)
	if err != nil {
		return model.Record{}, fmt.Errorf("build get: %w", err)
	}

	var raw []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if err == sql.ErrNoRows {
		return model.Record{}, ErrNotFound
	}
	if err != nil {
		return model.Record{}, fmt.Errorf("get record: %w", err)
	}
	return decodeRecord(raw)
}

// Put upserts rec in a single statement
func (s *PostgresStore) Put(ctx context.Context, rec model.Record) error {
	query, args, err := s.putQuery(rec)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Scan streams every row and returns the matching records ordered by id
func (s *PostgresStore) Scan(ctx context.Context, pred func(model.Record) bool) ([]model.Record, error) {
	return s.ScanFilter(ctx, Filter{}, pred)
}

// ScanFilter pushes f into the WHERE clause so the indexed columns narrow
// the rows before pred runs. Undecodable rows are logged and skipped.
func (s *PostgresStore) ScanFilter(ctx context.Context, f Filter, pred func(model.Record) bool) ([]model.Record, error) {
	query, args, err := s.scanQuery(f)
	if err != nil {
		return nil, fmt.Errorf("build scan: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}

	var out []model.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			s.logger.Warn("skipping undecodable row", zap.Error(err))
			continue
		}
		if pred(rec) {
			out = append(out, rec)
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}
	return out, nil
}

// Close closes the database handle
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) getQuery(id string) (string, []interface{}, error) {
	return psql.Select("record").From(s.table).Where(sq.Eq{"id": id}).ToSql()
}

func (s *PostgresStore) scanQuery(f Filter) (string, []interface{}, error) {
	q := psql.Select("record").From(s.table)
	if f.Kind != "" {
		q = q.Where(sq.Eq{"kind": string(f.Kind)})
	}
	if f.Company != "" {
		q = q.Where(sq.Eq{"company_norm": model.NormalizeCompany(f.Company)})
	}
	if !f.On.IsZero() {
		q = q.Where(sq.Eq{"announcement_date": model.Day(f.On)})
	}
	if !f.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"announcement_date": model.Day(f.Since)})
	}
	return q.OrderBy("id").ToSql()
}

func (s *PostgresStore) putQuery(rec model.Record) (string, []interface{}, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", nil, fmt.Errorf("marshal record: %w", err)
	}

	var investors []string
	if rec.Funding != nil {
		investors = rec.Funding.Investors
	}
	if investors == nil {
		investors = []string{}
	}

	return psql.Insert(s.table).
		Columns("id", "kind", "company_norm", "announcement_date", "investors", "record").
		Values(
			rec.ID,
			string(rec.Kind),
			model.NormalizeCompany(rec.Company),
			model.Day(rec.AnnouncementDate),
			pq.StringArray(investors),
			raw,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE
              SET kind = EXCLUDED.kind,
                  company_norm = EXCLUDED.company_norm,
                  announcement_date = EXCLUDED.announcement_date,
                  investors = EXCLUDED.investors,
                  record = EXCLUDED.record,
                  updated_at = NOW()`).
		ToSql()
}

func decodeRecord(raw []byte) (model.Record, error) {
	var rec model.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return rec, nil
}
