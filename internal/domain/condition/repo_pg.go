package condition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/condition-server/internal/platform/fhir"
)

// pgUniqueViolation is the SQLSTATE for a primary key or unique clash.
const pgUniqueViolation = "23505"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PGRepository stores conditions in Postgres. Codings live in the
// condition_coding child table, ordered by seq.
type PGRepository struct{ pool *pgxpool.Pool }

func NewPGRepository(pool *pgxpool.Pool) *PGRepository { return &PGRepository{pool: pool} }

const condCols = `id, clinical_status, onset_datetime, subject_id, created_at, updated_at`

func scanCondition(row pgx.Row) (*Condition, error) {
	var c Condition
	var onset *time.Time
	if err := row.Scan(&c.ID, &c.ClinicalStatus, &onset, &c.SubjectID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if onset != nil {
		wall := wallClock(*onset)
		c.Onset = &wall
	}
	return &c, nil
}

func (r *PGRepository) Create(ctx context.Context, c *Condition) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ClinicalStatus == "" {
		c.ClinicalStatus = StatusUnknown
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO condition (id, clinical_status, onset_datetime, subject_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		c.ID, c.ClinicalStatus, c.Onset, c.SubjectID).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert condition: %w", err)
	}

	for i, cd := range c.Codes {
		if _, err := tx.Exec(ctx, `
			INSERT INTO condition_coding (condition_id, seq, system, code, display)
			VALUES ($1, $2, $3, $4, $5)`,
			c.ID, i, cd.System, cd.Code, cd.Display); err != nil {
			return fmt.Errorf("insert condition coding: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Seed inserts records with their own timestamps, skipping ids that already
// exist. It returns how many rows were inserted.
func (r *PGRepository) Seed(ctx context.Context, records ...*Condition) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, c := range records {
		created := c.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO condition (id, clinical_status, onset_datetime, subject_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (id) DO NOTHING`,
			c.ID, c.ClinicalStatus, c.Onset, c.SubjectID, created)
		if err != nil {
			return inserted, fmt.Errorf("seed condition %s: %w", c.ID, err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		for i, cd := range c.Codes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO condition_coding (condition_id, seq, system, code, display)
				VALUES ($1, $2, $3, $4, $5)`,
				c.ID, i, cd.System, cd.Code, cd.Display); err != nil {
				return inserted, fmt.Errorf("seed condition coding: %w", err)
			}
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return inserted, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*Condition, error) {
	c, err := scanCondition(r.pool.QueryRow(ctx, `SELECT `+condCols+` FROM condition WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get condition: %w", err)
	}
	if err := loadCodings(ctx, r.pool, []*Condition{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PGRepository) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Condition, int, error) {
	qb := buildSearchQuery(params)

	var total int
	if err := r.pool.QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conditions: %w", err)
	}

	rows, err := r.pool.Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("search conditions: %w", err)
	}
	defer rows.Close()
	items := []*Condition{}
	for rows.Next() {
		c, err := scanCondition(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := loadCodings(ctx, r.pool, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// buildSearchQuery translates search criteria into SQL. Code tokens are
// matched against the coding table through EXISTS.
func buildSearchQuery(params SearchParams) *fhir.SearchQuery {
	qb := fhir.NewSearchQuery("condition", condCols)
	if params.ID != "" {
		qb.AddEqual("id", params.ID)
	}
	if params.SubjectID != "" {
		qb.AddEqual("subject_id", params.SubjectID)
	}
	if params.ClinicalStatus != "" {
		qb.AddEqual("clinical_status", string(params.ClinicalStatus))
	}
	if params.Code != "" {
		clause, args, _ := fhir.TokenSearchClause("cc.system", "cc.code", params.Code, qb.Idx())
		qb.Add(`EXISTS (SELECT 1 FROM condition_coding cc WHERE cc.condition_id = condition.id AND `+clause+`)`, args...)
	}
	qb.OrderBy("created_at DESC, id ASC")
	return qb
}

func loadCodings(ctx context.Context, q queryable, items []*Condition) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[string]*Condition, len(items))
	ids := make([]string, 0, len(items))
	for _, c := range items {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	rows, err := q.Query(ctx, `
		SELECT condition_id, system, code, display
		FROM condition_coding
		WHERE condition_id = ANY($1)
		ORDER BY condition_id, seq`, ids)
	if err != nil {
		return fmt.Errorf("load condition codings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var cd Coding
		if err := rows.Scan(&id, &cd.System, &cd.Code, &cd.Display); err != nil {
			return err
		}
		if c, ok := byID[id]; ok {
			c.Codes = append(c.Codes, cd)
		}
	}
	return rows.Err()
}
