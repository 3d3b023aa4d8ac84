package models

import "time"

// Fulfillment statuses for a service request.
const (
	StatusPaymentConfirmed = "payment_confirmed"
	StatusPendingContact   = "pending_contact"
	StatusTeamAssigned     = "team_assigned"
	StatusInProgress       = "in_progress"
	StatusCompleted        = "completed"
	StatusCancelled        = "cancelled"
)

// Payment statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Affiliate statuses.
const (
	AffiliateStatusActive   = "active"
	AffiliateStatusInactive = "inactive"
)

// SentinelAffiliateID is the reserved "no affiliate" identity. Tracking and
// commission code never needs a null case: absent or invalid attribution
// resolves here.
const SentinelAffiliateID = "direct"

// Tracking event types.
const (
	TrackingEventSignup          = "signup"
	TrackingEventPropertyContact = "property_contact"
	TrackingEventPayment         = "payment"
)

// Commission config categories and types.
const (
	CategoryCA      = "ca"
	CategoryLegal   = "legal"
	CategoryOther   = "other"
	CategoryDefault = "default"

	CommissionTypePercentage = "percentage"
	CommissionTypeFixed      = "fixed"
)

// Commission statuses.
const (
	CommissionStatusPending   = "pending"
	CommissionStatusApproved  = "approved"
	CommissionStatusPaid      = "paid"
	CommissionStatusCancelled = "cancelled"
)

// Service is a purchasable paid service.
type Service struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Category  string    `db:"category" json:"category"`
	BasePrice int64     `db:"base_price" json:"base_price"`
	Currency  string    `db:"currency" json:"currency"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ServiceTier is an optional pricing tier within a service.
type ServiceTier struct {
	ID        int64     `db:"id" json:"id"`
	ServiceID int64     `db:"service_id" json:"service_id"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ServiceRequest is one purchase attempt/fulfillment record. Amounts are in
// minor units. The reference code and id are immutable after creation.
type ServiceRequest struct {
	ID            int64      `db:"id" json:"id"`
	ReferenceCode string     `db:"reference_code" json:"reference_code"`
	ServiceID     int64      `db:"service_id" json:"service_id"`
	ServiceTierID *int64     `db:"service_tier_id" json:"service_tier_id,omitempty"`
	CustomerName  string     `db:"customer_name" json:"customer_name"`
	CustomerEmail string     `db:"customer_email" json:"customer_email"`
	CustomerPhone string     `db:"customer_phone" json:"customer_phone"`
	Requirements  string     `db:"requirements" json:"requirements"`
	Gateway       string     `db:"gateway" json:"gateway"`
	Amount        int64      `db:"amount" json:"amount"`
	Currency      string     `db:"currency" json:"currency"`
	PaymentStatus string     `db:"payment_status" json:"payment_status"`
	TransactionID *string    `db:"transaction_id" json:"transaction_id,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	Status        string     `db:"status" json:"status"`
	ProviderID    *int64     `db:"provider_id" json:"provider_id,omitempty"`
	AffiliateCode *string    `db:"affiliate_code" json:"affiliate_code,omitempty"`
	AffiliateID   *string    `db:"affiliate_id" json:"affiliate_id,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// StatusHistoryEntry is the append-only audit record of one transition.
// FromStatus is nil for the creation event.
type StatusHistoryEntry struct {
	ID               int64     `db:"id" json:"id"`
	ServiceRequestID int64     `db:"service_request_id" json:"service_request_id"`
	FromStatus       *string   `db:"from_status" json:"from_status,omitempty"`
	ToStatus         string    `db:"to_status" json:"to_status"`
	ActorID          *string   `db:"actor_id" json:"actor_id,omitempty"`
	Notes            *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Affiliate is a referral partner. The sentinel row is immutable and
// non-deletable.
type Affiliate struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TrackingEvent is an immutable attribution record. AffiliateID is always a
// resolved identifier, never raw caller input.
type TrackingEvent struct {
	ID          string    `db:"id" json:"id"`
	AffiliateID string    `db:"affiliate_id" json:"affiliate_id"`
	EventType   string    `db:"event_type" json:"event_type"`
	UserID      *int64    `db:"user_id" json:"user_id,omitempty"`
	PropertyID  *int64    `db:"property_id" json:"property_id,omitempty"`
	Metadata    []byte    `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CommissionConfig is a commission rule, keyed by service category with a
// fallback to the default category. Value is a whole percent for percentage
// rules, minor units for fixed rules.
type CommissionConfig struct {
	ID        int64     `db:"id" json:"id"`
	Category  string    `db:"category" json:"category"`
	Type      string    `db:"type" json:"type"`
	Value     int64     `db:"value" json:"value"`
	Currency  string    `db:"currency" json:"currency"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AffiliateCommission is one computed commission owed to an affiliate for
// one service request. At most one exists per request (unique constraint);
// corrections require a new record, never in-place recomputation.
type AffiliateCommission struct {
	ID               int64     `db:"id" json:"id"`
	AffiliateID      string    `db:"affiliate_id" json:"affiliate_id"`
	ServiceRequestID int64     `db:"service_request_id" json:"service_request_id"`
	Amount           int64     `db:"amount" json:"amount"`
	Currency         string    `db:"currency" json:"currency"`
	Status           string    `db:"status" json:"status"`
	SourceAmount     int64     `db:"source_amount" json:"source_amount"`
	SourceCurrency   string    `db:"source_currency" json:"source_currency"`
	Notes            *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// GatewayConfig is a persisted payment gateway configuration. The active one
// is the default-flagged row, else the newest active row; environment
// variables are the fallback when no row exists.
type GatewayConfig struct {
	ID            int64     `db:"id" json:"id"`
	Gateway       string    `db:"gateway" json:"gateway"`
	KeyID         string    `db:"key_id" json:"-"`
	KeySecret     string    `db:"key_secret" json:"-"`
	WebhookSecret string    `db:"webhook_secret" json:"-"`
	IsDefault     bool      `db:"is_default" json:"is_default"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
