package export

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/riskset/pkg/logger"
	"github.com/okian/riskset/pkg/metrics"
)

// DefaultTable receives pairs when no table is configured.
const DefaultTable = "case_control_pairs"

var pgColumns = []string{
	"run_id",
	"case_id", "case_pnr", "case_birth_date", "case_treatment_date",
	"control_id", "control_pnr", "control_birth_date",
	"birth_date_diff_days", "mother_age_diff_days", "father_age_diff_days",
}

// PostgresWriter bulk loads pair rows with COPY.
type PostgresWriter struct {
	pool   *pgxpool.Pool
	table  string
	logger logger.Logger
}

// PostgresOption configures a PostgresWriter.
type PostgresOption func(*PostgresWriter)

// WithTable sets the destination table.
func WithTable(name string) PostgresOption {
	return func(w *PostgresWriter) {
		if name != "" {
			w.table = name
		}
	}
}

// WithPostgresLogger sets the logger.
func WithPostgresLogger(l logger.Logger) PostgresOption {
	return func(w *PostgresWriter) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewPostgresWriter connects to dsn and checks the connection.
func NewPostgresWriter(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresWriter, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse connection: %w", ErrExport, err)
	}
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrExport, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrExport, err)
	}

	w := &PostgresWriter{pool: pool, table: DefaultTable, logger: logger.Discard()}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Table returns the destination table name.
func (w *PostgresWriter) Table() string { return w.table }

// EnsureTable creates the destination table when it does not exist.
func (w *PostgresWriter) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id               text   NOT NULL,
	case_id              bigint NOT NULL,
	case_pnr             text   NOT NULL,
	case_birth_date      date   NOT NULL,
	case_treatment_date  date,
	control_id           bigint NOT NULL,
	control_pnr          text   NOT NULL,
	control_birth_date   date   NOT NULL,
	birth_date_diff_days bigint NOT NULL,
	mother_age_diff_days bigint,
	father_age_diff_days bigint
)`, pgx.Identifier{w.table}.Sanitize())

	if _, err := w.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("%w: create table %s: %w", ErrExport, w.table, err)
	}
	return nil
}

func pgDate(d civil.Date) time.Time { return d.In(time.UTC) }

func pgDiff(d NullDiff) any {
	if !d.Valid {
		return nil
	}
	return d.Days
}

// WritePairs copies rows tagged with runID into the table and returns the row count.
func (w *PostgresWriter) WritePairs(ctx context.Context, runID string, rows []PairRow) (int64, error) {
	start := time.Now()
	copied, err := w.pool.CopyFrom(ctx,
		pgx.Identifier{w.table},
		pgColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := &rows[i]
			var treatment any
			if r.CaseTreatmentDate.Valid {
				treatment = pgDate(r.CaseTreatmentDate.Date)
			}
			return []any{
				runID,
				int64(r.CaseID), r.CasePNR, pgDate(r.CaseBirthDate), treatment,
				int64(r.ControlID), r.ControlPNR, pgDate(r.ControlBirthDate),
				r.BirthDiff, pgDiff(r.MotherDiff), pgDiff(r.FatherDiff),
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: copy into %s: %w", ErrExport, w.table, err)
	}

	metrics.RecordExportRows(FormatPG, int(copied))
	w.logger.Info(ctx, "pairs copied to postgres",
		logger.String("table", w.table),
		logger.Int64("rows", copied),
		logger.Duration("took", time.Since(start)),
	)
	return copied, nil
}

// Close releases the connection pool.
func (w *PostgresWriter) Close() {
	w.pool.Close()
}
