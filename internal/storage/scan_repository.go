package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "github.com/rescan/internal/errors"
	"github.com/rescan/internal/models"
	"github.com/rescan/internal/types"
)

// MaxFeedbackLength bounds the free-form feedback attached to a scan
const MaxFeedbackLength = 1000

// ScanRepository handles the append-only scan history
type ScanRepository struct {
	q         querier
	maxLength int
}

// NewScanRepository creates a new scan repository
func NewScanRepository(db *DB, maxAddressLength int) *ScanRepository {
	return &ScanRepository{q: db.SQL(), maxLength: maxAddressLength}
}

// WithTx returns a repository bound to tx
func (r *ScanRepository) WithTx(tx *sql.Tx) *ScanRepository {
	return &ScanRepository{q: tx, maxLength: r.maxLength}
}

const scanColumns = `id, address_key, material_type, is_recyclable, confidence,
	points_awarded, feedback, feedback_at, created_at`

func validateScanInput(input *models.ScanInput) error {
	if input == nil {
		return apperrors.NewValidationError("scan", "input is required")
	}
	if strings.TrimSpace(input.AddressKey) == "" {
		return apperrors.NewInvalidAddressError(input.AddressKey, "address must not be empty")
	}
	material := strings.TrimSpace(input.MaterialType)
	if material == "" {
		return apperrors.NewValidationError("material_type", "must not be empty")
	}
	if utf8.RuneCountInString(material) > types.MaxMaterialTypeLength {
		return apperrors.NewValidationError("material_type",
			fmt.Sprintf("must be at most %d characters", types.MaxMaterialTypeLength))
	}
	if input.Confidence < 0 || input.Confidence > 1 {
		return apperrors.NewValidationError("confidence", "must be between 0 and 1")
	}
	if input.PointsAwarded < 0 {
		return apperrors.NewInvalidDeltaError(input.PointsAwarded)
	}
	return nil
}

// Insert appends a scan for an existing address. It never touches the
// address balance.
func (r *ScanRepository) Insert(ctx context.Context, input *models.ScanInput) (*models.ScanRecord, error) {
	if err := validateScanInput(input); err != nil {
		return nil, err
	}

	rec := &models.ScanRecord{
		ID:            uuid.NewString(),
		AddressKey:    input.AddressKey,
		MaterialType:  strings.TrimSpace(input.MaterialType),
		IsRecyclable:  input.IsRecyclable,
		Confidence:    input.Confidence,
		PointsAwarded: input.PointsAwarded,
		CreatedAt:     time.Now().UTC(),
	}

	query := `
		INSERT INTO scans (id, address_key, material_type, is_recyclable, confidence, points_awarded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.ExecContext(ctx, query,
		rec.ID,
		rec.AddressKey,
		rec.MaterialType,
		rec.IsRecyclable,
		rec.Confidence,
		rec.PointsAwarded,
		rec.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, apperrors.NewNotFoundError("address", rec.AddressKey)
		}
		return nil, classify("insert scan", err)
	}

	return rec, nil
}

// Get retrieves a scan by id
func (r *ScanRepository) Get(ctx context.Context, id string) (*models.ScanRecord, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = $1`

	rec, err := scanRecord(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("scan", id)
		}
		return nil, classify("get scan", err)
	}
	return rec, nil
}

// ListByAddress returns scans for an address, newest first. An address
// with no scans (or no row at all) yields an empty slice.
func (r *ScanRepository) ListByAddress(ctx context.Context, address string, limit, offset int) ([]*models.ScanRecord, error) {
	key, err := NormalizeAddress(address, r.maxLength)
	if err != nil {
		return nil, err
	}
	page := types.Pagination{Limit: limit, Offset: offset}.Normalize()

	query := `
		SELECT ` + scanColumns + `
		FROM scans
		WHERE address_key = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.q.QueryContext(ctx, query, key, page.Limit, page.Offset)
	if err != nil {
		return nil, classify("list scans", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	scans := make([]*models.ScanRecord, 0, page.Limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, classify("list scans", err)
		}
		scans = append(scans, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list scans", err)
	}

	return scans, nil
}

// AttachFeedback records user feedback on a scan. Repeating the same
// feedback leaves the stored row, including feedback_at, unchanged.
func (r *ScanRepository) AttachFeedback(ctx context.Context, id string, feedback string) (*models.ScanRecord, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, apperrors.NewValidationError("feedback", "must not be empty")
	}
	if utf8.RuneCountInString(feedback) > MaxFeedbackLength {
		return nil, apperrors.NewValidationError("feedback",
			fmt.Sprintf("must be at most %d characters", MaxFeedbackLength))
	}

	query := `
		UPDATE scans
		SET feedback = $1, feedback_at = $2
		WHERE id = $3 AND (feedback IS NULL OR feedback <> $1)
	`
	if _, err := r.q.ExecContext(ctx, query, feedback, time.Now().UTC(), id); err != nil {
		return nil, classify("attach feedback", err)
	}

	// Zero rows affected means either a missing scan or an identical
	// repeat; Get tells them apart.
	return r.Get(ctx, id)
}

// SumPointsByAddress returns the total points awarded by, and the number
// of, scans recorded for an address key
func (r *ScanRepository) SumPointsByAddress(ctx context.Context, addressKey string) (int64, int64, error) {
	query := `
		SELECT CAST(COALESCE(SUM(points_awarded), 0) AS BIGINT), COUNT(*)
		FROM scans
		WHERE address_key = $1
	`
	var sum, count int64
	if err := r.q.QueryRowContext(ctx, query, addressKey).Scan(&sum, &count); err != nil {
		return 0, 0, classify("sum scan points", err)
	}
	return sum, count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ScanRecord, error) {
	var (
		rec        models.ScanRecord
		feedback   sql.NullString
		feedbackAt sql.NullTime
	)
	err := row.Scan(
		&rec.ID,
		&rec.AddressKey,
		&rec.MaterialType,
		&rec.IsRecyclable,
		&rec.Confidence,
		&rec.PointsAwarded,
		&feedback,
		&feedbackAt,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt = rec.CreatedAt.UTC()
	if feedback.Valid {
		rec.Feedback = &feedback.String
	}
	if feedbackAt.Valid {
		t := feedbackAt.Time.UTC()
		rec.FeedbackAt = &t
	}
	return &rec, nil
}
