package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"dealroom/internal/models"
)

var (
	ErrRequestNotFound  = errors.New("access request not found")
	ErrRequestDuplicate = errors.New("pending request already exists")
	ErrRequestDecided   = errors.New("access request already decided")
)

// AccessRequestRepository handles access escalation request operations
type AccessRequestRepository struct {
	db *sql.DB
}

// NewAccessRequestRepository creates a new access request repository
func NewAccessRequestRepository(db *sql.DB) *AccessRequestRepository {
	return &AccessRequestRepository{db: db}
}

const requestColumns = `
	id, user_id, company_id, current_level, requested_level, reason,
	status, reviewer_id, decided_at, created_at, updated_at
`

func scanRequest(row interface{ Scan(...interface{}) error }) (*models.AccessRequest, error) {
	req := &models.AccessRequest{}
	err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.CompanyID,
		&req.CurrentLevel,
		&req.RequestedLevel,
		&req.Reason,
		&req.Status,
		&req.ReviewerID,
		&req.DecidedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	return req, err
}

// Create inserts a new pending request. The partial unique index on
// (user_id, company_id, requested_level) WHERE status = 'pending' makes a
// concurrent duplicate a unique violation, reported as ErrRequestDuplicate.
func (r *AccessRequestRepository) Create(req *models.AccessRequest) error {
	query := `
		INSERT INTO access_requests (user_id, company_id, current_level, requested_level,
		                             reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now()
	req.Status = models.RequestPending
	err := r.db.QueryRow(
		query,
		req.UserID,
		req.CompanyID,
		req.CurrentLevel,
		req.RequestedLevel,
		req.Reason,
		req.Status,
		now,
		now,
	).Scan(&req.ID)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrRequestDuplicate
		}
		return fmt.Errorf("failed to create access request: %w", err)
	}

	req.CreatedAt = now
	req.UpdatedAt = now
	return nil
}

// GetByID retrieves an access request by ID
func (r *AccessRequestRepository) GetByID(id uint) (*models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = $1`

	req, err := scanRequest(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get access request: %w", err)
	}

	return req, nil
}

// Decide flips a pending request to approved or denied. The WHERE clause
// only matches the pending row, so the second of two racing reviewers gets
// ErrRequestDecided and the first decision stands.
func (r *AccessRequestRepository) Decide(id uint, status models.RequestStatus, reviewerID uint) error {
	query := `
		UPDATE access_requests
		SET status = $1, reviewer_id = $2, decided_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.db.Exec(query, status, reviewerID, time.Now(), id, models.RequestPending)
	if err != nil {
		return fmt.Errorf("failed to decide access request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM access_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check request existence: %w", err)
		}
		if !exists {
			return ErrRequestNotFound
		}
		return ErrRequestDecided
	}

	return nil
}

// GetApprovedLevels returns the requested levels of all approved requests
// for (user, company). The disclosure gate folds these into the effective
// level computation.
func (r *AccessRequestRepository) GetApprovedLevels(userID, companyID uint) ([]string, error) {
	query := `
		SELECT requested_level
		FROM access_requests
		WHERE user_id = $1 AND company_id = $2 AND status = $3
	`

	rows, err := r.db.Query(query, userID, companyID, models.RequestApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to get approved levels: %w", err)
	}
	defer rows.Close()

	var levels []string
	for rows.Next() {
		var level string
		if err := rows.Scan(&level); err != nil {
			return nil, fmt.Errorf("failed to scan level: %w", err)
		}
		levels = append(levels, level)
	}

	return levels, rows.Err()
}

// GetByUser retrieves all requests filed by a user, newest first
func (r *AccessRequestRepository) GetByUser(userID uint) ([]models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get access requests: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// GetPending retrieves all pending requests, oldest first, for the review
// queue
func (r *AccessRequestRepository) GetPending(limit, offset int) ([]models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE status = $1 ORDER BY created_at LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(query, models.RequestPending, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending requests: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

func collectRequests(rows *sql.Rows) ([]models.AccessRequest, error) {
	var requests []models.AccessRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access request: %w", err)
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// InvalidateApproved flips all approved requests for (user, company) to
// denied. Called when NDA revocation is configured to reset escalations.
func (r *AccessRequestRepository) InvalidateApproved(userID, companyID uint, reviewerID uint) (int64, error) {
	query := `
		UPDATE access_requests
		SET status = $1, reviewer_id = $2, updated_at = $3
		WHERE user_id = $4 AND company_id = $5 AND status = $6
	`

	result, err := r.db.Exec(query, models.RequestDenied, reviewerID, time.Now(), userID, companyID, models.RequestApproved)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate approved requests: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return affected, nil
}
