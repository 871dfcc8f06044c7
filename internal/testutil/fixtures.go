package testutil

import (
	"database/sql"
	"testing"
	"time"

	"dealroom/internal/accesslevel"
	"dealroom/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// Fixtures holds test data
type Fixtures struct {
	DB            *sql.DB
	AdminUser     *models.User
	StaffUser     *models.User
	ViewerUser    *models.User
	Company       *models.Company
	Deal          *models.Deal
	PublishedDeal *models.Deal
	TeaserFolder  *models.Folder
	CimFolder     *models.Folder
	TeaserDoc     *models.Document
	CimDoc        *models.Document
	FinancialsDoc *models.Document
}

// SetupFixtures creates test data: one user per role, a company, a deal in
// preparation and a published deal with a small data room
func SetupFixtures(t *testing.T, db *sql.DB) *Fixtures {
	t.Helper()

	fixtures := &Fixtures{
		DB: db,
	}

	fixtures.AdminUser = CreateUser(t, db, "admin@test.com", models.RoleAdmin)
	fixtures.StaffUser = CreateUser(t, db, "staff@test.com", models.RoleStaff)
	fixtures.ViewerUser = CreateUser(t, db, "viewer@test.com", models.RoleViewer)

	fixtures.Company = CreateCompany(t, db, "Acme Holdings")
	fixtures.Deal = CreateDeal(t, db, fixtures.Company.ID, "Project Alpha", models.PhaseDataRoomBuild, nil)

	publishedAt := time.Now().Add(-24 * time.Hour)
	fixtures.PublishedDeal = CreateDeal(t, db, fixtures.Company.ID, "Project Beta", models.PhaseLiveActive, &publishedAt)

	fixtures.TeaserFolder = CreateFolder(t, db, fixtures.PublishedDeal.ID, "Teaser", true)
	fixtures.CimFolder = CreateFolder(t, db, fixtures.PublishedDeal.ID, "CIM", true)

	fixtures.TeaserDoc = CreateDocument(t, db, fixtures.PublishedDeal.ID, fixtures.TeaserFolder.ID, fixtures.StaffUser.ID, "teaser.pdf", accesslevel.Teaser)
	fixtures.CimDoc = CreateDocument(t, db, fixtures.PublishedDeal.ID, fixtures.CimFolder.ID, fixtures.StaffUser.ID, "cim.pdf", accesslevel.CIM)
	fixtures.FinancialsDoc = CreateDocument(t, db, fixtures.PublishedDeal.ID, fixtures.CimFolder.ID, fixtures.StaffUser.ID, "financials.xlsx", accesslevel.Financials)

	return fixtures
}

// Cleanup removes all test data
func (f *Fixtures) Cleanup(t *testing.T) {
	t.Helper()

	// Cleanup is handled by container termination
	// Data is not persisted between tests
}

// CreateUser creates a user with the given role
func CreateUser(t *testing.T, db *sql.DB, email, role string) *models.User {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	var user models.User
	err = db.QueryRow(`
		INSERT INTO users (email, password_hash, first_name, last_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING id, email, first_name, last_name, role, is_active, created_at, updated_at
	`, email, string(hashedPassword), "Test", "User", role).Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName,
		&user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}

	return &user
}

// CreateCompany creates a test company
func CreateCompany(t *testing.T, db *sql.DB, name string) *models.Company {
	t.Helper()

	var company models.Company
	err := db.QueryRow(`
		INSERT INTO companies (name)
		VALUES ($1)
		RETURNING id, name, created_at, updated_at
	`, name).Scan(&company.ID, &company.Name, &company.CreatedAt, &company.UpdatedAt)

	if err != nil {
		t.Fatalf("Failed to create company %s: %v", name, err)
	}

	return &company
}

// CreateDeal creates a test deal in the given phase, with an open stage
// history row so phase transitions find something to close
func CreateDeal(t *testing.T, db *sql.DB, companyID uint, name string, phase models.DealPhase, publishedAt *time.Time) *models.Deal {
	t.Helper()

	var deal models.Deal
	err := db.QueryRow(`
		INSERT INTO deals (company_id, name, current_phase, phase_version, published_at, listing_received_at)
		VALUES ($1, $2, $3, 1, $4, $5)
		RETURNING id, company_id, name, current_phase, phase_version, published_at,
			listing_received_at, listing_approved_at, data_room_complete_at, created_at, updated_at
	`, companyID, name, phase, publishedAt, time.Now().Add(-72*time.Hour)).Scan(
		&deal.ID, &deal.CompanyID, &deal.Name, &deal.CurrentPhase, &deal.PhaseVersion,
		&deal.PublishedAt, &deal.ListingReceivedAt, &deal.ListingApprovedAt,
		&deal.DataRoomCompleteAt, &deal.CreatedAt, &deal.UpdatedAt,
	)

	if err != nil {
		t.Fatalf("Failed to create deal %s: %v", name, err)
	}

	_, err = db.Exec(`
		INSERT INTO deal_stage_history (deal_id, phase, entered_at, triggered_by)
		VALUES ($1, $2, $3, $4)
	`, deal.ID, phase, time.Now().Add(-72*time.Hour), models.TriggeredByManual)

	if err != nil {
		t.Fatalf("Failed to create stage history for deal %s: %v", name, err)
	}

	return &deal
}

// CreateFolder creates a data room folder
func CreateFolder(t *testing.T, db *sql.DB, dealID uint, name string, required bool) *models.Folder {
	t.Helper()

	var folder models.Folder
	err := db.QueryRow(`
		INSERT INTO folders (deal_id, name, is_required)
		VALUES ($1, $2, $3)
		RETURNING id, deal_id, name, is_required, is_not_applicable, created_at, updated_at
	`, dealID, name, required).Scan(
		&folder.ID, &folder.DealID, &folder.Name, &folder.IsRequired,
		&folder.IsNotApplicable, &folder.CreatedAt, &folder.UpdatedAt,
	)

	if err != nil {
		t.Fatalf("Failed to create folder %s: %v", name, err)
	}

	return &folder
}

// CreateDocument creates a document at the given disclosure tier
func CreateDocument(t *testing.T, db *sql.DB, dealID, folderID, uploaderID uint, name string, level accesslevel.Level) *models.Document {
	t.Helper()

	var doc models.Document
	err := db.QueryRow(`
		INSERT INTO documents (deal_id, folder_id, uploader_id, name, storage_location, content_type, size_bytes, required_access_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, deal_id, folder_id, uploader_id, name, storage_location,
			content_type, size_bytes, required_access_level, created_at, updated_at
	`, dealID, folderID, uploaderID, name, "s3://dealroom-test/"+name, "application/pdf", 1024, level).Scan(
		&doc.ID, &doc.DealID, &doc.FolderID, &doc.UploaderID, &doc.Name,
		&doc.StorageLocation, &doc.ContentType, &doc.SizeBytes,
		&doc.RequiredAccessLevel, &doc.CreatedAt, &doc.UpdatedAt,
	)

	if err != nil {
		t.Fatalf("Failed to create document %s: %v", name, err)
	}

	return &doc
}

// CreateActiveNda inserts an active NDA acceptance for the user and company
func CreateActiveNda(t *testing.T, db *sql.DB, userID, companyID uint, expiresAt *time.Time) *models.NdaRecord {
	t.Helper()

	var record models.NdaRecord
	err := db.QueryRow(`
		INSERT INTO nda_records (user_id, company_id, status, signed_at, expires_at, signer_name, signer_email, signature_text)
		VALUES ($1, $2, 'active', $3, $4, 'Test Signer', 'signer@test.com', 'Test Signer')
		RETURNING id, user_id, company_id, status, signed_at, expires_at,
			signer_name, signer_email, signature_text, content_snapshot, created_at, updated_at
	`, userID, companyID, time.Now(), expiresAt).Scan(
		&record.ID, &record.UserID, &record.CompanyID, &record.Status,
		&record.SignedAt, &record.ExpiresAt, &record.SignerName, &record.SignerEmail,
		&record.SignatureText, &record.ContentSnapshot, &record.CreatedAt, &record.UpdatedAt,
	)

	if err != nil {
		t.Fatalf("Failed to create NDA record: %v", err)
	}

	return &record
}

// CreateApprovedRequest inserts an already-approved escalation request
func CreateApprovedRequest(t *testing.T, db *sql.DB, userID, companyID, reviewerID uint, level accesslevel.Level) *models.AccessRequest {
	t.Helper()

	var request models.AccessRequest
	err := db.QueryRow(`
		INSERT INTO access_requests (user_id, company_id, current_level, requested_level, reason, status, reviewer_id, decided_at)
		VALUES ($1, $2, 'public', $3, 'test', 'approved', $4, $5)
		RETURNING id, user_id, company_id, current_level, requested_level, reason,
			status, reviewer_id, decided_at, created_at, updated_at
	`, userID, companyID, level, reviewerID, time.Now()).Scan(
		&request.ID, &request.UserID, &request.CompanyID, &request.CurrentLevel,
		&request.RequestedLevel, &request.Reason, &request.Status,
		&request.ReviewerID, &request.DecidedAt, &request.CreatedAt, &request.UpdatedAt,
	)

	if err != nil {
		t.Fatalf("Failed to create access request: %v", err)
	}

	return &request
}
