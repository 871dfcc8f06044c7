package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dealroom/internal/models"
)

var (
	ErrDealNotFound  = errors.New("deal not found")
	ErrPhaseConflict = errors.New("deal phase changed concurrently")
)

// DealRepository handles deal database operations
type DealRepository struct {
	db *sql.DB
}

// NewDealRepository creates a new deal repository
func NewDealRepository(db *sql.DB) *DealRepository {
	return &DealRepository{db: db}
}

const dealColumns = `
	id, company_id, name, current_phase, phase_version, published_at,
	listing_received_at, listing_approved_at, data_room_complete_at,
	created_at, updated_at
`

func scanDeal(row interface{ Scan(...interface{}) error }) (*models.Deal, error) {
	deal := &models.Deal{}
	err := row.Scan(
		&deal.ID,
		&deal.CompanyID,
		&deal.Name,
		&deal.CurrentPhase,
		&deal.PhaseVersion,
		&deal.PublishedAt,
		&deal.ListingReceivedAt,
		&deal.ListingApprovedAt,
		&deal.DataRoomCompleteAt,
		&deal.CreatedAt,
		&deal.UpdatedAt,
	)
	return deal, err
}

// Create creates a new deal in the initial phase and opens its first stage
// history entry in the same transaction.
func (r *DealRepository) Create(deal *models.Deal) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	now := time.Now()
	deal.CurrentPhase = models.PhaseListingReceived
	deal.PhaseVersion = 1
	deal.ListingReceivedAt = &now

	query := `
		INSERT INTO deals (company_id, name, current_phase, phase_version, listing_received_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err = tx.QueryRow(
		query,
		deal.CompanyID,
		deal.Name,
		deal.CurrentPhase,
		deal.PhaseVersion,
		deal.ListingReceivedAt,
		now,
		now,
	).Scan(&deal.ID)
	if err != nil {
		return fmt.Errorf("failed to create deal: %w", err)
	}

	historyQuery := `
		INSERT INTO deal_stage_history (deal_id, phase, entered_at, triggered_by)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(historyQuery, deal.ID, deal.CurrentPhase, now, models.TriggeredByManual); err != nil {
		return fmt.Errorf("failed to record initial stage history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deal creation: %w", err)
	}

	deal.CreatedAt = now
	deal.UpdatedAt = now
	return nil
}

// GetByID retrieves a deal by ID
func (r *DealRepository) GetByID(id uint) (*models.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`

	deal, err := scanDeal(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrDealNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}

	return deal, nil
}

// GetByCompanyID retrieves all deals for a company
func (r *DealRepository) GetByCompanyID(companyID uint) ([]models.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE company_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deals: %w", err)
	}
	defer rows.Close()

	return collectDeals(rows)
}

// GetAll retrieves all deals, optionally restricted to active phases.
// Viewers never see deals still in preparation.
func (r *DealRepository) GetAll(activeOnly bool) ([]models.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals`
	if activeOnly {
		query += ` WHERE published_at IS NOT NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get deals: %w", err)
	}
	defer rows.Close()

	return collectDeals(rows)
}

func collectDeals(rows *sql.Rows) ([]models.Deal, error) {
	var deals []models.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, *deal)
	}
	return deals, rows.Err()
}

// ApplyPhaseTransition moves a deal from fromPhase to toPhase with optimistic
// concurrency: the update only applies if the deal is still in fromPhase.
// The matching stage history rows (close old, open new) are written in the
// same transaction, so history and current phase can never diverge.
// publishedAt is set when the transition is the publish bridge; milestone
// stamps are written by the caller via SetMilestone before publish.
func (r *DealRepository) ApplyPhaseTransition(dealID uint, fromPhase, toPhase models.DealPhase, triggeredBy string, publishedAt *time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	now := time.Now()

	query := `
		UPDATE deals
		SET current_phase = $1, phase_version = phase_version + 1, updated_at = $2
		WHERE id = $3 AND current_phase = $4
	`
	args := []interface{}{toPhase, now, dealID, fromPhase}

	if publishedAt != nil {
		query = `
			UPDATE deals
			SET current_phase = $1, phase_version = phase_version + 1, updated_at = $2, published_at = $5
			WHERE id = $3 AND current_phase = $4
		`
		args = append(args, *publishedAt)
	}

	result, err := tx.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update deal phase: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		// Either the deal doesn't exist or someone else moved it first.
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM deals WHERE id = $1)`, dealID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check deal existence: %w", err)
		}
		if !exists {
			return ErrDealNotFound
		}
		return ErrPhaseConflict
	}

	// Partial days count as full days.
	closeQuery := `
		UPDATE deal_stage_history
		SET exited_at = $1,
		    duration_days = CEIL(EXTRACT(EPOCH FROM ($1 - entered_at)) / 86400)::int
		WHERE deal_id = $2 AND phase = $3 AND exited_at IS NULL
	`
	if _, err := tx.Exec(closeQuery, now, dealID, fromPhase); err != nil {
		return fmt.Errorf("failed to close stage history: %w", err)
	}

	openQuery := `
		INSERT INTO deal_stage_history (deal_id, phase, entered_at, triggered_by)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(openQuery, dealID, toPhase, now, triggeredBy); err != nil {
		return fmt.Errorf("failed to open stage history: %w", err)
	}

	return tx.Commit()
}

// SetMilestone stamps a milestone timestamp only if it has not been set
// before. Repeat visits to a phase never move the original stamp.
func (r *DealRepository) SetMilestone(dealID uint, column string, at time.Time) error {
	// Column names come from a fixed set in the workflow service, never from
	// user input.
	switch column {
	case "listing_received_at", "listing_approved_at", "data_room_complete_at":
	default:
		return fmt.Errorf("unknown milestone column: %s", column)
	}

	query := fmt.Sprintf(`
		UPDATE deals
		SET %s = $1, updated_at = $2
		WHERE id = $3 AND %s IS NULL
	`, column, column)

	_, err := r.db.Exec(query, at, time.Now(), dealID)
	if err != nil {
		return fmt.Errorf("failed to set milestone: %w", err)
	}

	return nil
}

// GetStageHistory retrieves a deal's stage history, oldest first
func (r *DealRepository) GetStageHistory(dealID uint) ([]models.StageHistoryEntry, error) {
	query := `
		SELECT id, deal_id, phase, entered_at, exited_at, duration_days, triggered_by
		FROM deal_stage_history
		WHERE deal_id = $1
		ORDER BY entered_at, id
	`

	rows, err := r.db.Query(query, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage history: %w", err)
	}
	defer rows.Close()

	var entries []models.StageHistoryEntry
	for rows.Next() {
		var entry models.StageHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.DealID,
			&entry.Phase,
			&entry.EnteredAt,
			&entry.ExitedAt,
			&entry.DurationDays,
			&entry.TriggeredBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stage history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		slog.Error("Failed to rollback transaction", "error", err)
	}
}
