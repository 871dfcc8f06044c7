package repository

import (
	"database/sql"
	"fmt"
	"time"

	"dealroom/internal/models"
)

// AuditRepository handles activity audit database operations. The table is
// append-only; there are no update or delete methods.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit entry
func (r *AuditRepository) Create(entry *models.ActivityAudit) error {
	query := `
		INSERT INTO activity_audits (user_id, user_email, action, resource, document_id,
		                             deal_id, effective_level, decision, details,
		                             ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	now := time.Now()
	err := r.db.QueryRow(
		query,
		entry.UserID,
		entry.UserEmail,
		entry.Action,
		entry.Resource,
		entry.DocumentID,
		entry.DealID,
		entry.EffectiveLevel,
		entry.Decision,
		entry.Details,
		entry.IPAddress,
		entry.UserAgent,
		now,
	).Scan(&entry.ID)

	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	entry.CreatedAt = now
	return nil
}

// AuditFilters holds filter parameters for audit queries
type AuditFilters struct {
	UserID     *uint
	DealID     *uint
	DocumentID *uint
	Action     string
	Decision   string
	From       *time.Time
	To         *time.Time
}

// GetAll retrieves audit entries matching the filters, newest first
func (r *AuditRepository) GetAll(filters AuditFilters, limit, offset int) ([]models.ActivityAudit, error) {
	query := `
		SELECT id, user_id, user_email, action, resource, document_id, deal_id,
		       effective_level, decision, details, ip_address, user_agent, created_at
		FROM activity_audits
		WHERE 1=1
	`

	args := []interface{}{}
	argPos := 1

	if filters.UserID != nil {
		query += fmt.Sprintf(` AND user_id = $%d`, argPos)
		args = append(args, *filters.UserID)
		argPos++
	}

	if filters.DealID != nil {
		query += fmt.Sprintf(` AND deal_id = $%d`, argPos)
		args = append(args, *filters.DealID)
		argPos++
	}

	if filters.DocumentID != nil {
		query += fmt.Sprintf(` AND document_id = $%d`, argPos)
		args = append(args, *filters.DocumentID)
		argPos++
	}

	if filters.Action != "" {
		query += fmt.Sprintf(` AND action = $%d`, argPos)
		args = append(args, filters.Action)
		argPos++
	}

	if filters.Decision != "" {
		query += fmt.Sprintf(` AND decision = $%d`, argPos)
		args = append(args, filters.Decision)
		argPos++
	}

	if filters.From != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, argPos)
		args = append(args, *filters.From)
		argPos++
	}

	if filters.To != nil {
		query += fmt.Sprintf(` AND created_at <= $%d`, argPos)
		args = append(args, *filters.To)
		argPos++
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.ActivityAudit
	for rows.Next() {
		var entry models.ActivityAudit
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.UserEmail,
			&entry.Action,
			&entry.Resource,
			&entry.DocumentID,
			&entry.DealID,
			&entry.EffectiveLevel,
			&entry.Decision,
			&entry.Details,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Count returns the number of audit entries matching the filters
func (r *AuditRepository) Count(filters AuditFilters) (int, error) {
	query := `SELECT COUNT(*) FROM activity_audits WHERE 1=1`

	args := []interface{}{}
	argPos := 1

	if filters.UserID != nil {
		query += fmt.Sprintf(` AND user_id = $%d`, argPos)
		args = append(args, *filters.UserID)
		argPos++
	}

	if filters.DealID != nil {
		query += fmt.Sprintf(` AND deal_id = $%d`, argPos)
		args = append(args, *filters.DealID)
		argPos++
	}

	if filters.DocumentID != nil {
		query += fmt.Sprintf(` AND document_id = $%d`, argPos)
		args = append(args, *filters.DocumentID)
		argPos++
	}

	if filters.Action != "" {
		query += fmt.Sprintf(` AND action = $%d`, argPos)
		args = append(args, filters.Action)
		argPos++
	}

	if filters.Decision != "" {
		query += fmt.Sprintf(` AND decision = $%d`, argPos)
		args = append(args, filters.Decision)
		argPos++
	}

	if filters.From != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, argPos)
		args = append(args, *filters.From)
		argPos++
	}

	if filters.To != nil {
		query += fmt.Sprintf(` AND created_at <= $%d`, argPos)
		args = append(args, *filters.To)
	}

	var count int
	if err := r.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}

// CountReferencesToDocument reports whether any audit entry references a
// document. Documents with audit history cannot be deleted.
func (r *AuditRepository) CountReferencesToDocument(documentID uint) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM activity_audits WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count document references: %w", err)
	}
	return count, nil
}
