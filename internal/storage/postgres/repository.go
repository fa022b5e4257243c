package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/events"
)

var (
	ErrNotInitialized = errors.New("database not initialized")
	ErrNotFound       = errors.New("payment result not found")
)

// ResultRecord is one journaled payment result.
type ResultRecord struct {
	ID                uuid.UUID
	ListURL           string
	Code              string
	ResultInfo        string
	InteractionCode   string
	InteractionReason string
	Error             string
	OccurredAt        time.Time
}

// RecordFromEvent maps a published result onto a journal row.
func RecordFromEvent(id uuid.UUID, occurredAt time.Time, ev events.ResultEvent) ResultRecord {
	rec := ResultRecord{
		ID:         id,
		ListURL:    ev.ListURL,
		Code:       string(ev.Code),
		ResultInfo: ev.ResultInfo,
		Error:      ev.Error,
		OccurredAt: occurredAt.UTC(),
	}
	if ev.Interaction != nil {
		rec.InteractionCode = ev.Interaction.Code
		rec.InteractionReason = ev.Interaction.Reason
	}
	return rec
}

// Repository is a thin wrapper around *sql.DB intended for dependency injection.
type Repository struct {
	DB  *sql.DB
	log *zap.Logger
}

func NewRepository(db *sql.DB, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{DB: db, log: logger.Named("journal")}
}

// InsertResult stores a result. Inserting the same ID twice is a no-op, so
// redelivered messages are journaled once. inserted reports whether a row
// was written.
func (r *Repository) InsertResult(ctx context.Context, rec ResultRecord) (inserted bool, err error) {
	if r.DB == nil {
		return false, ErrNotInitialized
	}
	query := `
		INSERT INTO payment_results (id, list_url, code, result_info, interaction_code, interaction_reason, error, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := r.DB.ExecContext(ctx, query,
		rec.ID, rec.ListURL, rec.Code, rec.ResultInfo,
		rec.InteractionCode, rec.InteractionReason, rec.Error, rec.OccurredAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert payment result: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		r.log.Debug("duplicate result skipped", zap.String("id", rec.ID.String()))
		return false, nil
	}
	r.log.Info("result journaled", zap.String("id", rec.ID.String()), zap.String("code", rec.Code))
	return true, nil
}

// LatestResult returns the most recent result of a list.
func (r *Repository) LatestResult(ctx context.Context, listURL string) (ResultRecord, error) {
	if r.DB == nil {
		return ResultRecord{}, ErrNotInitialized
	}
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, list_url, code, result_info, interaction_code, interaction_reason, error, occurred_at
		FROM payment_results
		WHERE list_url = $1
		ORDER BY occurred_at DESC
		LIMIT 1
	`, listURL)

	var rec ResultRecord
	err := row.Scan(&rec.ID, &rec.ListURL, &rec.Code, &rec.ResultInfo,
		&rec.InteractionCode, &rec.InteractionReason, &rec.Error, &rec.OccurredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ResultRecord{}, ErrNotFound
	}
	if err != nil {
		return ResultRecord{}, fmt.Errorf("failed to query payment result: %w", err)
	}
	return rec, nil
}

// CountByCode returns how many results were journaled per result code.
func (r *Repository) CountByCode(ctx context.Context) (map[string]int, error) {
	if r.DB == nil {
		return nil, ErrNotInitialized
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT code, COUNT(*) FROM payment_results GROUP BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to count payment results: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("failed to scan result count: %w", err)
		}
		out[code] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result counts: %w", err)
	}
	return out, nil
}
