// Package entity defines the upstream records the gateway moves around.
// Fields mirror the upstream JSON; dates are kept as the raw upstream
// strings because their format differs between resources.
package entity

import (
	"github.com/shopspring/decimal"
)

// Entity is satisfied by every record type. The cache layer uses it to patch
// and remove records by id.
type Entity interface {
	EntityID() ID
}

type Site struct {
	ID         ID              `json:"id"`
	BusinessID ID              `json:"business_id,omitempty"`
	Name       string          `json:"name"`
	Location   string          `json:"location,omitempty"`
	OwnerID    ID              `json:"owner_id,omitempty"`
	Status     string          `json:"status,omitempty"`
	Budget     decimal.Decimal `json:"budget"`
	StartDate  string          `json:"start_date,omitempty"`
}

func (s Site) EntityID() ID { return s.ID }

type Material struct {
	ID           ID              `json:"id"`
	SiteID       ID              `json:"site_id"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit,omitempty"`
	Rate         decimal.Decimal `json:"rate"`
	Amount       decimal.Decimal `json:"amount"`
	Supplier     string          `json:"supplier,omitempty"`
	PurchaseDate string          `json:"purchase_date,omitempty"`
	Image        string          `json:"image,omitempty"`
	Notes        string          `json:"notes,omitempty"`
}

func (m Material) EntityID() ID { return m.ID }

type Owner struct {
	ID      ID     `json:"id"`
	SiteID  ID     `json:"site_id,omitempty"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

func (o Owner) EntityID() ID { return o.ID }

type MasonAdvance struct {
	ID          ID              `json:"id"`
	SiteID      ID              `json:"site_id"`
	MasonName   string          `json:"mason_name"`
	Phone       string          `json:"phone,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	AdvanceDate string          `json:"advance_date,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

func (m MasonAdvance) EntityID() ID { return m.ID }

type LaborEntry struct {
	ID        ID              `json:"id"`
	SiteID    ID              `json:"site_id"`
	WorkDate  string          `json:"work_date,omitempty"`
	LaborType string          `json:"labor_type"`
	Workers   int             `json:"workers"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    decimal.Decimal `json:"amount"`
	Notes     string          `json:"notes,omitempty"`
}

func (l LaborEntry) EntityID() ID { return l.ID }

type OwnerLog struct {
	ID          ID     `json:"id"`
	OwnerID     ID     `json:"owner_id"`
	SiteID      ID     `json:"site_id,omitempty"`
	Description string `json:"description"`
	LogDate     string `json:"log_date,omitempty"`
}

func (o OwnerLog) EntityID() ID { return o.ID }

type OwnerPaymentLog struct {
	ID          ID              `json:"id"`
	OwnerID     ID              `json:"owner_id"`
	SiteID      ID              `json:"site_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentMode string          `json:"payment_mode,omitempty"`
	PaymentDate string          `json:"payment_date,omitempty"`
	Reference   string          `json:"reference,omitempty"`
}

func (o OwnerPaymentLog) EntityID() ID { return o.ID }

type PricingPlan struct {
	ID        ID              `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Interval  string          `json:"interval,omitempty"`
	SiteLimit int             `json:"site_limit"`
	UserLimit int             `json:"user_limit"`
	Features  []string        `json:"features,omitempty"`
	IsActive  bool            `json:"is_active"`
}

func (p PricingPlan) EntityID() ID { return p.ID }

type Business struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	PlanID  ID     `json:"plan_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

func (b Business) EntityID() ID { return b.ID }

type User struct {
	ID         ID     `json:"id"`
	BusinessID ID     `json:"business_id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Role       string `json:"role"`
	IsActive   bool   `json:"is_active"`
}

func (u User) EntityID() ID { return u.ID }

// RazorpaySetting holds the payment gateway credentials of a business.
// KeySecret is write-only from the dashboard's point of view; see Redacted.
type RazorpaySetting struct {
	ID        ID     `json:"id"`
	KeyID     string `json:"key_id"`
	KeySecret string `json:"key_secret,omitempty"`
	Mode      string `json:"mode,omitempty"`
	IsActive  bool   `json:"is_active"`
}

func (r RazorpaySetting) EntityID() ID { return r.ID }

// Redacted hides all but the last four characters of the secret.
func (r RazorpaySetting) Redacted() RazorpaySetting {
	if n := len(r.KeySecret); n > 4 {
		r.KeySecret = "****" + r.KeySecret[n-4:]
	} else if n > 0 {
		r.KeySecret = "****"
	}
	return r
}
