package models

import (
	"time"

	"dealroom/internal/accesslevel"
)

// User represents a platform user
type User struct {
	ID           uint      `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Role         string    `json:"role" db:"role"` // admin, staff, viewer
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Fixed role enum. Roles are deliberately not a dynamic RBAC table.
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleViewer = "viewer"
)

// IsStaff reports whether the user may see deals still in preparation
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleStaff
}

// Company represents a sell-side company whose documents are under disclosure control
type Company struct {
	ID        uint      `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DealPhase is a named step in a deal's lifecycle. A deal moves through the
// preparation sequence, crosses into the active sequence exactly once via
// publish, and never returns.
type DealPhase string

const (
	PhaseListingReceived      DealPhase = "listing_received"
	PhaseUnderReview          DealPhase = "under_review"
	PhaseListingApproved      DealPhase = "listing_approved"
	PhaseDataRoomBuild        DealPhase = "data_room_build"
	PhaseQACompliance         DealPhase = "qa_compliance"
	PhaseReadyForDistribution DealPhase = "ready_for_distribution"

	PhaseLiveActive   DealPhase = "live_active"
	PhaseUnderLOI     DealPhase = "under_loi"
	PhaseDueDiligence DealPhase = "due_diligence"
	PhaseClosing      DealPhase = "closing"
	PhaseClosed       DealPhase = "closed"
)

// PreparationPhases and ActivePhases hold the two phase sequences in order.
// Successor computation in the workflow service derives from these slices;
// the order is not re-declared anywhere else.
var (
	PreparationPhases = []DealPhase{
		PhaseListingReceived,
		PhaseUnderReview,
		PhaseListingApproved,
		PhaseDataRoomBuild,
		PhaseQACompliance,
		PhaseReadyForDistribution,
	}
	ActivePhases = []DealPhase{
		PhaseLiveActive,
		PhaseUnderLOI,
		PhaseDueDiligence,
		PhaseClosing,
		PhaseClosed,
	}
)

// IsPreparation reports whether the phase belongs to the preparation sequence
func (p DealPhase) IsPreparation() bool {
	for _, phase := range PreparationPhases {
		if phase == p {
			return true
		}
	}
	return false
}

// IsActive reports whether the phase belongs to the active sequence
func (p DealPhase) IsActive() bool {
	for _, phase := range ActivePhases {
		if phase == p {
			return true
		}
	}
	return false
}

// TriggeredBy values record whether a phase transition was system- or operator-driven
const (
	TriggeredByAuto   = "auto"
	TriggeredByManual = "manual"
)

// Deal represents an M&A deal listing. PhaseVersion is the optimistic
// concurrency counter for phase transitions: a transition only applies when
// the phase it read is still current.
type Deal struct {
	ID                 uint       `json:"id" db:"id"`
	CompanyID          uint       `json:"company_id" db:"company_id"`
	Name               string     `json:"name" db:"name"`
	CurrentPhase       DealPhase  `json:"current_phase" db:"current_phase"`
	PhaseVersion       int        `json:"phase_version" db:"phase_version"`
	PublishedAt        *time.Time `json:"published_at,omitempty" db:"published_at"`
	ListingReceivedAt  *time.Time `json:"listing_received_at,omitempty" db:"listing_received_at"`
	ListingApprovedAt  *time.Time `json:"listing_approved_at,omitempty" db:"listing_approved_at"`
	DataRoomCompleteAt *time.Time `json:"data_room_complete_at,omitempty" db:"data_room_complete_at"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// StageHistoryEntry records the span a deal spent in one phase. DurationDays
// is computed when the phase is exited and frozen thereafter.
type StageHistoryEntry struct {
	ID           uint       `json:"id" db:"id"`
	DealID       uint       `json:"deal_id" db:"deal_id"`
	Phase        DealPhase  `json:"phase" db:"phase"`
	EnteredAt    time.Time  `json:"entered_at" db:"entered_at"`
	ExitedAt     *time.Time `json:"exited_at,omitempty" db:"exited_at"`
	DurationDays *int       `json:"duration_days,omitempty" db:"duration_days"`
	TriggeredBy  string     `json:"triggered_by" db:"triggered_by"` // auto, manual
}

// Folder groups documents within a deal's data room
type Folder struct {
	ID              uint      `json:"id" db:"id"`
	DealID          uint      `json:"deal_id" db:"deal_id"`
	Name            string    `json:"name" db:"name"`
	IsRequired      bool      `json:"is_required" db:"is_required"`
	IsNotApplicable bool      `json:"is_not_applicable" db:"is_not_applicable"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Document represents a confidential document in a deal's data room
type Document struct {
	ID                  uint              `json:"id" db:"id"`
	DealID              uint              `json:"deal_id" db:"deal_id"`
	FolderID            uint              `json:"folder_id" db:"folder_id"`
	UploaderID          uint              `json:"uploader_id" db:"uploader_id"`
	Name                string            `json:"name" db:"name"`
	StorageLocation     string            `json:"-" db:"storage_location"`
	ContentType         string            `json:"content_type" db:"content_type"`
	SizeBytes           int64             `json:"size_bytes" db:"size_bytes"`
	RequiredAccessLevel accesslevel.Level `json:"required_access_level" db:"required_access_level"`
	CreatedAt           time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" db:"updated_at"`
}

// NdaStatus is the lifecycle state of an NDA acceptance record
type NdaStatus string

const (
	NdaActive     NdaStatus = "active"
	NdaExpired    NdaStatus = "expired"
	NdaRevoked    NdaStatus = "revoked"
	NdaSuperseded NdaStatus = "superseded"
)

// NdaRecord represents one NDA acceptance by a user for a company. The
// signature fields and content snapshot are immutable: the accepted text is
// copied at signing time so later template edits never alter what was agreed.
// Records are never hard-deleted.
type NdaRecord struct {
	ID              uint       `json:"id" db:"id"`
	UserID          uint       `json:"user_id" db:"user_id"`
	CompanyID       uint       `json:"company_id" db:"company_id"`
	Status          NdaStatus  `json:"status" db:"status"`
	SignedAt        time.Time  `json:"signed_at" db:"signed_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty" db:"expires_at"` // nil = never expires
	SignerName      string     `json:"signer_name" db:"signer_name"`
	SignerEmail     string     `json:"signer_email" db:"signer_email"`
	SignatureText   string     `json:"signature_text" db:"signature_text"`
	ContentSnapshot string     `json:"content_snapshot" db:"content_snapshot"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// IsLapsed reports whether the record's expiry has passed at the given
// instant. Expiry is computed at read time; no background job flips status.
func (n *NdaRecord) IsLapsed(now time.Time) bool {
	return n.ExpiresAt != nil && now.After(*n.ExpiresAt)
}

// SignerInfo carries the immutable signature data captured at acceptance
type SignerInfo struct {
	SignerName      string `json:"signer_name"`
	SignerEmail     string `json:"signer_email"`
	SignatureText   string `json:"signature_text"`
	ContentSnapshot string `json:"content_snapshot"`
}

// NdaExtensionToken is a single-use token authorizing one expiry extension of
// one NDA record. Tokens are generated and delivered externally; this engine
// only validates and consumes them.
type NdaExtensionToken struct {
	ID        uint       `json:"id" db:"id"`
	NdaID     uint       `json:"nda_id" db:"nda_id"`
	Token     string     `json:"token" db:"token"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// RequestStatus is the decision state of an access escalation request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

// AccessRequest represents a viewer's request to escalate their disclosure
// tier for a company. Decided exactly once; immutable after decision.
type AccessRequest struct {
	ID             uint              `json:"id" db:"id"`
	UserID         uint              `json:"user_id" db:"user_id"`
	CompanyID      uint              `json:"company_id" db:"company_id"`
	CurrentLevel   accesslevel.Level `json:"current_level" db:"current_level"`
	RequestedLevel accesslevel.Level `json:"requested_level" db:"requested_level"`
	Reason         string            `json:"reason" db:"reason"`
	Status         RequestStatus     `json:"status" db:"status"`
	ReviewerID     *uint             `json:"reviewer_id,omitempty" db:"reviewer_id"`
	DecidedAt      *time.Time        `json:"decided_at,omitempty" db:"decided_at"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// ActivityAudit is an append-only log entry for disclosure decisions and
// phase transitions. Entries are never updated or deleted.
type ActivityAudit struct {
	ID             uint               `json:"id" db:"id"`
	UserID         *uint              `json:"user_id,omitempty" db:"user_id"`
	UserEmail      *string            `json:"user_email,omitempty" db:"user_email"`
	Action         string             `json:"action" db:"action"`
	Resource       string             `json:"resource" db:"resource"`
	DocumentID     *uint              `json:"document_id,omitempty" db:"document_id"`
	DealID         *uint              `json:"deal_id,omitempty" db:"deal_id"`
	EffectiveLevel *accesslevel.Level `json:"effective_level,omitempty" db:"effective_level"`
	Decision       *string            `json:"decision,omitempty" db:"decision"`
	Details        string             `json:"details,omitempty" db:"details"`
	IPAddress      string             `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      string             `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
}

// Audit decision values
const (
	DecisionGranted = "granted"
	DecisionDenied  = "denied"
)

// RetrievalHandle is a short-validity authorization artifact for a single
// document, issued on a granted access decision. Not reusable after expiry.
type RetrievalHandle struct {
	Token      string    `json:"token"`
	DocumentID uint      `json:"document_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Denial reason codes surfaced by the disclosure gate
const (
	ReasonDealNotPublished        = "deal_not_published"
	ReasonNdaRequired             = "nda_required"
	ReasonInsufficientAccessLevel = "insufficient_access_level"
)

// AccessDecision is the outcome of an authorization check. Denials are a
// normal result, not an error: Granted is false and Reason identifies the
// gate that blocked access so the UI can offer the next step.
type AccessDecision struct {
	Granted        bool              `json:"granted"`
	Reason         string            `json:"reason,omitempty"`
	EffectiveLevel accesslevel.Level `json:"effective_level"`
	RequiredLevel  accesslevel.Level `json:"required_level"`
	Handle         *RetrievalHandle  `json:"handle,omitempty"`
}

// DataRoomCompleteness reports how many required folders of a deal hold at
// least one document. Folders flagged not-applicable are excluded. Feeds the
// readiness check out of data_room_build; it never affects the access gate.
type DataRoomCompleteness struct {
	TotalRequired     int    `json:"total_required"`
	PopulatedRequired int    `json:"populated_required"`
	MissingFolderIDs  []uint `json:"missing_folder_ids,omitempty"`
	IsComplete        bool   `json:"is_complete"`
}
