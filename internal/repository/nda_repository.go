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
	ErrNdaNotFound   = errors.New("NDA record not found")
	ErrNdaConflict   = errors.New("concurrent NDA acceptance")
	ErrNdaNotActive  = errors.New("NDA record is not active")
	ErrTokenNotFound = errors.New("extension token not found")
	ErrTokenConsumed = errors.New("extension token already consumed")
)

// uniqueViolation is the Postgres error code raised when the partial unique
// index on active NDA records rejects a second active row.
const uniqueViolation = "23505"

// NdaRepository handles NDA acceptance records and extension tokens
type NdaRepository struct {
	db *sql.DB
}

// NewNdaRepository creates a new NDA repository
func NewNdaRepository(db *sql.DB) *NdaRepository {
	return &NdaRepository{db: db}
}

const ndaColumns = `
	id, user_id, company_id, status, signed_at, expires_at,
	signer_name, signer_email, signature_text, content_snapshot,
	created_at, updated_at
`

func scanNda(row interface{ Scan(...interface{}) error }) (*models.NdaRecord, error) {
	nda := &models.NdaRecord{}
	err := row.Scan(
		&nda.ID,
		&nda.UserID,
		&nda.CompanyID,
		&nda.Status,
		&nda.SignedAt,
		&nda.ExpiresAt,
		&nda.SignerName,
		&nda.SignerEmail,
		&nda.SignatureText,
		&nda.ContentSnapshot,
		&nda.CreatedAt,
		&nda.UpdatedAt,
	)
	return nda, err
}

// Accept supersedes any currently active record for (user, company) and
// inserts the new acceptance, both in one transaction. The partial unique
// index on active records turns a lost race into a unique violation, which
// is surfaced as ErrNdaConflict so the caller can retry.
func (r *NdaRepository) Accept(nda *models.NdaRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	now := time.Now()

	supersedeQuery := `
		UPDATE nda_records
		SET status = $1, updated_at = $2
		WHERE user_id = $3 AND company_id = $4 AND status = $5
	`
	if _, err := tx.Exec(supersedeQuery, models.NdaSuperseded, now, nda.UserID, nda.CompanyID, models.NdaActive); err != nil {
		return fmt.Errorf("failed to supersede previous NDA: %w", err)
	}

	insertQuery := `
		INSERT INTO nda_records (user_id, company_id, status, signed_at, expires_at,
		                         signer_name, signer_email, signature_text, content_snapshot,
		                         created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	nda.Status = models.NdaActive
	err = tx.QueryRow(
		insertQuery,
		nda.UserID,
		nda.CompanyID,
		nda.Status,
		nda.SignedAt,
		nda.ExpiresAt,
		nda.SignerName,
		nda.SignerEmail,
		nda.SignatureText,
		nda.ContentSnapshot,
		now,
		now,
	).Scan(&nda.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrNdaConflict
		}
		return fmt.Errorf("failed to insert NDA record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrNdaConflict
		}
		return fmt.Errorf("failed to commit NDA acceptance: %w", err)
	}

	nda.CreatedAt = now
	nda.UpdatedAt = now
	return nil
}

// GetByID retrieves an NDA record by ID
func (r *NdaRepository) GetByID(id uint) (*models.NdaRecord, error) {
	query := `SELECT ` + ndaColumns + ` FROM nda_records WHERE id = $1`

	nda, err := scanNda(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNdaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get NDA record: %w", err)
	}

	return nda, nil
}

// GetActive retrieves the single active record for (user, company), if any.
// The record may still be lapsed by expiry; callers check IsLapsed.
func (r *NdaRepository) GetActive(userID, companyID uint) (*models.NdaRecord, error) {
	query := `SELECT ` + ndaColumns + ` FROM nda_records WHERE user_id = $1 AND company_id = $2 AND status = $3`

	nda, err := scanNda(r.db.QueryRow(query, userID, companyID, models.NdaActive))
	if err == sql.ErrNoRows {
		return nil, ErrNdaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active NDA: %w", err)
	}

	return nda, nil
}

// GetHistory retrieves all records for (user, company), newest first.
// Superseded and revoked records stay forever.
func (r *NdaRepository) GetHistory(userID, companyID uint) ([]models.NdaRecord, error) {
	query := `SELECT ` + ndaColumns + ` FROM nda_records WHERE user_id = $1 AND company_id = $2 ORDER BY signed_at DESC, id DESC`

	rows, err := r.db.Query(query, userID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get NDA history: %w", err)
	}
	defer rows.Close()

	var records []models.NdaRecord
	for rows.Next() {
		nda, err := scanNda(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan NDA record: %w", err)
		}
		records = append(records, *nda)
	}

	return records, rows.Err()
}

// MarkExpired flips an active record to expired. Used when a read observes
// that the expiry has passed; the flip is cosmetic since reads already treat
// a lapsed record as inactive.
func (r *NdaRepository) MarkExpired(id uint) error {
	query := `
		UPDATE nda_records
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	_, err := r.db.Exec(query, models.NdaExpired, time.Now(), id, models.NdaActive)
	if err != nil {
		return fmt.Errorf("failed to mark NDA expired: %w", err)
	}

	return nil
}

// Revoke flips an active record to revoked. Only active records can be
// revoked; revoking an already-terminal record reports ErrNdaNotActive.
func (r *NdaRepository) Revoke(id uint) error {
	query := `
		UPDATE nda_records
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.Exec(query, models.NdaRevoked, time.Now(), id, models.NdaActive)
	if err != nil {
		return fmt.Errorf("failed to revoke NDA: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNdaNotActive
	}

	return nil
}

// ExtendExpiry pushes the expiry of a record forward. A record that lapsed
// by time (status active or already flipped to expired) is reactivated; a
// revoked or superseded record is not.
func (r *NdaRepository) ExtendExpiry(id uint, newExpiry time.Time) error {
	query := `
		UPDATE nda_records
		SET expires_at = $1, status = $4, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`

	result, err := r.db.Exec(query, newExpiry, time.Now(), id, models.NdaActive, models.NdaExpired)
	if err != nil {
		// Reactivating a lapsed record collides with the single-active
		// index when a newer acceptance exists.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrNdaConflict
		}
		return fmt.Errorf("failed to extend NDA expiry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNdaNotActive
	}

	return nil
}

// CreateExtensionToken stores a single-use extension token for an NDA record
func (r *NdaRepository) CreateExtensionToken(token *models.NdaExtensionToken) error {
	query := `
		INSERT INTO nda_extension_tokens (nda_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	now := time.Now()
	err := r.db.QueryRow(query, token.NdaID, token.Token, token.ExpiresAt, now).Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("failed to create extension token: %w", err)
	}

	token.CreatedAt = now
	return nil
}

// GetExtensionToken retrieves an extension token by its value
func (r *NdaRepository) GetExtensionToken(token string) (*models.NdaExtensionToken, error) {
	query := `
		SELECT id, nda_id, token, expires_at, used_at, created_at
		FROM nda_extension_tokens
		WHERE token = $1
	`

	t := &models.NdaExtensionToken{}
	err := r.db.QueryRow(query, token).Scan(
		&t.ID,
		&t.NdaID,
		&t.Token,
		&t.ExpiresAt,
		&t.UsedAt,
		&t.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get extension token: %w", err)
	}

	return t, nil
}

// ConsumeExtensionToken marks a token used if and only if it is still
// unused. Two concurrent redemptions race on the same row; rows-affected
// tells the loser apart, so a token extends exactly one expiry exactly once.
func (r *NdaRepository) ConsumeExtensionToken(tokenID uint) error {
	query := `
		UPDATE nda_extension_tokens
		SET used_at = $1
		WHERE id = $2 AND used_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), tokenID)
	if err != nil {
		return fmt.Errorf("failed to consume extension token: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrTokenConsumed
	}

	return nil
}
