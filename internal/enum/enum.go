package enum

// ── Roles (ordered by rank, highest first) ──

const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleSupervisor = "supervisor"
	RoleStaff      = "staff"
)

// ── Upstream resources ──

const (
	ResourceSites            = "sites"
	ResourceMaterials        = "materials"
	ResourceOwners           = "owners"
	ResourceMasonAdvances    = "mason-advances"
	ResourceLaborEntries     = "labor-entries"
	ResourceOwnerLogs        = "owner-logs"
	ResourceOwnerPaymentLogs = "owner-payment-logs"
	ResourcePricingPlans     = "pricing-plans"
	ResourceBusinesses       = "businesses"
	ResourceUsers            = "users"
	ResourceRazorpaySettings = "razorpay-settings"
)

// ── Cache operations ──

const (
	OpList   = "list"
	OpDetail = "detail"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// AllSites is the site_id value meaning "every site of the business".
const AllSites = "0"

// ── Payment modes ──

const (
	PaymentModeCash   = "cash"
	PaymentModeUPI    = "upi"
	PaymentModeBank   = "bank_transfer"
	PaymentModeCheque = "cheque"
)
