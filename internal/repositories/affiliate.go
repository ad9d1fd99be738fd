package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/affmigrate/internal/models"
)

// AffiliateRepository persists [models.Affiliate] records.
type AffiliateRepository struct {
	db *sql.DB
}

// NewAffiliateRepository creates a new AffiliateRepository with the given database connection
func NewAffiliateRepository(db *sql.DB) *AffiliateRepository {
	return &AffiliateRepository{db: db}
}

// InsertAffiliate inserts aff and returns its generated ID, which is also set on aff.
//
// No uniqueness check is made on user_id.
func (r *AffiliateRepository) InsertAffiliate(ctx context.Context, aff *models.Affiliate) (int64, error) {
	if err := aff.Validate(); err != nil {
		return 0, fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO affiliates (user_id, status, payment_email, date_registered)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query, aff.UserID, string(aff.Status), aff.PaymentEmail, aff.DateRegistered)
	if err != nil {
		return 0, fmt.Errorf("failed to insert affiliate: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get affiliate id: %w", err)
	}

	aff.ID = id
	return id, nil
}

// AffiliateUserIDs returns the user id of every affiliate, ordered by affiliate id.
func (r *AffiliateRepository) AffiliateUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT user_id FROM affiliates ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query affiliate user ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan affiliate user id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// List retrieves affiliates, optionally filtered by status.
func (r *AffiliateRepository) List(ctx context.Context, status models.AffiliateStatus) ([]*models.Affiliate, error) {
	query := `
		SELECT id, user_id, status, payment_email, date_registered
		FROM affiliates
	`
	args := []any{}

	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query affiliates: %w", err)
	}
	defer rows.Close()

	var affiliates []*models.Affiliate
	for rows.Next() {
		var (
			aff    models.Affiliate
			status string
		)
		if err := rows.Scan(&aff.ID, &aff.UserID, &status, &aff.PaymentEmail, &aff.DateRegistered); err != nil {
			return nil, fmt.Errorf("failed to scan affiliate: %w", err)
		}
		aff.Status = models.AffiliateStatus(status)
		affiliates = append(affiliates, &aff)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return affiliates, nil
}

// Count returns the number of affiliate records.
func (r *AffiliateRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM affiliates").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count affiliates: %w", err)
	}
	return count, nil
}
