package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы строки аудита nabezky_requests.
const (
	RequestStatusPending   = "pending"
	RequestStatusCompleted = "completed"
	RequestStatusFailed    = "failed"
)

// Voucher validity classes encoded in the period digit.
const (
	VoucherTypeSeasonal = "seasonal"
	VoucherType3Day     = "3day"
	VoucherTypeUnknown  = "unknown"
)

// VoucherInfo is the decoded form of a 12-digit voucher code.
type VoucherInfo struct {
	Season  int
	Region  int
	Period  int
	Random  string
	Expires *time.Time
	Type    string
}

// Voucher is a single voucher as issued by the Nabezky API.
// Expires is a unix timestamp; nil means "3 days after first use".
type Voucher struct {
	Number  string `json:"number"`
	Type    string `json:"type"`
	Expires *int64 `json:"expires"`
}

// VoucherData is the payload of a successful generation response,
// persisted verbatim on the order.
type VoucherData struct {
	Vouchers         []Voucher `json:"vouchers"`
	IsRegisteredUser bool      `json:"is_registered_user"`
	UserUID          string    `json:"user_uid"`
	AccessGranted    bool      `json:"access_granted"`
	Email            string    `json:"email"`
}

// OrderItem is one matched line item of a storefront order.
type OrderItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
}

// OrderVoucherRequest is the order_data payload of the generation call.
// Built once per order, immutable after construction. Wire keys follow
// what the Nabezky endpoint expects from WooCommerce installations.
type OrderVoucherRequest struct {
	OrderID      int64           `json:"order_id"`
	Email        string          `json:"email"`
	Amount       decimal.Decimal `json:"amount"`
	Products     []OrderItem     `json:"products"`
	SiteURL      string          `json:"wp_site_url"`
	CallbackURL  string          `json:"callback_url"`
	OrderDate    string          `json:"order_date"`
	CustomerName string          `json:"customer_name"`
	RegionID     int             `json:"region_id"`
}

// RequestRecord is one row of the nabezky_requests audit table.
type RequestRecord struct {
	ID               uint64
	OrderID          int64
	NabezkyRequestID *string
	Status           string
	Data             *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// VoucherOrder is the per-order metadata row. ProcessedAt doubles as the
// idempotency claim: its presence, regardless of value, gates reprocessing.
type VoucherOrder struct {
	OrderID      int64
	Email        string
	CustomerName string
	OrderDate    *time.Time
	ProcessedAt  time.Time
	VoucherData  *string
	UpdatedAt    time.Time
}
