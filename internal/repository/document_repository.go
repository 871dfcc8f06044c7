package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dealroom/internal/models"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrFolderNotFound     = errors.New("folder not found")
	ErrDocumentReferenced = errors.New("document is referenced by audit entries")
)

// DocumentRepository handles document and folder database operations
type DocumentRepository struct {
	db *sql.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateFolder creates a new data room folder
func (r *DocumentRepository) CreateFolder(folder *models.Folder) error {
	query := `
		INSERT INTO folders (deal_id, name, is_required, is_not_applicable, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	now := time.Now()
	err := r.db.QueryRow(
		query,
		folder.DealID,
		folder.Name,
		folder.IsRequired,
		folder.IsNotApplicable,
		now,
		now,
	).Scan(&folder.ID)

	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	folder.CreatedAt = now
	folder.UpdatedAt = now
	return nil
}

// GetFolderByID retrieves a folder by ID
func (r *DocumentRepository) GetFolderByID(id uint) (*models.Folder, error) {
	query := `
		SELECT id, deal_id, name, is_required, is_not_applicable, created_at, updated_at
		FROM folders
		WHERE id = $1
	`

	folder := &models.Folder{}
	err := r.db.QueryRow(query, id).Scan(
		&folder.ID,
		&folder.DealID,
		&folder.Name,
		&folder.IsRequired,
		&folder.IsNotApplicable,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	return folder, nil
}

// GetFoldersByDealID retrieves all folders for a deal
func (r *DocumentRepository) GetFoldersByDealID(dealID uint) ([]models.Folder, error) {
	query := `
		SELECT id, deal_id, name, is_required, is_not_applicable, created_at, updated_at
		FROM folders
		WHERE deal_id = $1
		ORDER BY name
	`

	rows, err := r.db.Query(query, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to get folders: %w", err)
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		var folder models.Folder
		if err := rows.Scan(
			&folder.ID,
			&folder.DealID,
			&folder.Name,
			&folder.IsRequired,
			&folder.IsNotApplicable,
			&folder.CreatedAt,
			&folder.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, folder)
	}

	return folders, rows.Err()
}

// SetFolderNotApplicable marks a required folder as not applicable for the
// completeness check
func (r *DocumentRepository) SetFolderNotApplicable(folderID uint, notApplicable bool) error {
	query := `
		UPDATE folders
		SET is_not_applicable = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.Exec(query, notApplicable, time.Now(), folderID)
	if err != nil {
		return fmt.Errorf("failed to update folder: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrFolderNotFound
	}

	return nil
}

// Create creates a new document
func (r *DocumentRepository) Create(doc *models.Document) error {
	query := `
		INSERT INTO documents (deal_id, folder_id, uploader_id, name, storage_location,
		                       content_type, size_bytes, required_access_level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	now := time.Now()
	err := r.db.QueryRow(
		query,
		doc.DealID,
		doc.FolderID,
		doc.UploaderID,
		doc.Name,
		doc.StorageLocation,
		doc.ContentType,
		doc.SizeBytes,
		doc.RequiredAccessLevel,
		now,
		now,
	).Scan(&doc.ID)

	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	doc.CreatedAt = now
	doc.UpdatedAt = now
	return nil
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(id uint) (*models.Document, error) {
	query := `
		SELECT id, deal_id, folder_id, uploader_id, name, storage_location,
		       content_type, size_bytes, required_access_level, created_at, updated_at
		FROM documents
		WHERE id = $1
	`

	doc := &models.Document{}
	err := r.db.QueryRow(query, id).Scan(
		&doc.ID,
		&doc.DealID,
		&doc.FolderID,
		&doc.UploaderID,
		&doc.Name,
		&doc.StorageLocation,
		&doc.ContentType,
		&doc.SizeBytes,
		&doc.RequiredAccessLevel,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// GetByDealID retrieves all documents for a deal
func (r *DocumentRepository) GetByDealID(dealID uint) ([]models.Document, error) {
	query := `
		SELECT id, deal_id, folder_id, uploader_id, name, storage_location,
		       content_type, size_bytes, required_access_level, created_at, updated_at
		FROM documents
		WHERE deal_id = $1
		ORDER BY folder_id, name
	`

	rows, err := r.db.Query(query, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(
			&doc.ID,
			&doc.DealID,
			&doc.FolderID,
			&doc.UploaderID,
			&doc.Name,
			&doc.StorageLocation,
			&doc.ContentType,
			&doc.SizeBytes,
			&doc.RequiredAccessLevel,
			&doc.CreatedAt,
			&doc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// UpdateRequiredAccessLevel changes the disclosure tier a document requires.
// Takes effect on the next authorization check; already-issued handles
// remain valid until they expire.
func (r *DocumentRepository) UpdateRequiredAccessLevel(docID uint, level string) error {
	query := `
		UPDATE documents
		SET required_access_level = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.Exec(query, level, time.Now(), docID)
	if err != nil {
		return fmt.Errorf("failed to update required access level: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDocumentNotFound
	}

	return nil
}

// Delete removes a document unless any audit entry references it. Audited
// access history must stay resolvable.
func (r *DocumentRepository) Delete(id uint) error {
	query := `
		DELETE FROM documents
		WHERE id = $1
		  AND NOT EXISTS (SELECT 1 FROM activity_audits WHERE document_id = $1)
	`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check document existence: %w", err)
		}
		if !exists {
			return ErrDocumentNotFound
		}
		return ErrDocumentReferenced
	}

	return nil
}

// GetCompleteness reports which required folders of a deal hold at least one
// document. Not-applicable folders are excluded from the requirement.
func (r *DocumentRepository) GetCompleteness(dealID uint) (*models.DataRoomCompleteness, error) {
	query := `
		SELECT f.id, EXISTS(SELECT 1 FROM documents d WHERE d.folder_id = f.id)
		FROM folders f
		WHERE f.deal_id = $1 AND f.is_required = true AND f.is_not_applicable = false
	`

	rows, err := r.db.Query(query, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to get completeness: %w", err)
	}
	defer rows.Close()

	result := &models.DataRoomCompleteness{}
	for rows.Next() {
		var folderID uint
		var populated bool
		if err := rows.Scan(&folderID, &populated); err != nil {
			return nil, fmt.Errorf("failed to scan completeness row: %w", err)
		}
		result.TotalRequired++
		if populated {
			result.PopulatedRequired++
		} else {
			result.MissingFolderIDs = append(result.MissingFolderIDs, folderID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.IsComplete = result.PopulatedRequired == result.TotalRequired
	return result, nil
}
