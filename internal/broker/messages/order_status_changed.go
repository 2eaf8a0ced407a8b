package messages

import (
	"time"

	"github.com/nabezky/VoucherBox/internal/models"
)

// OrderStatusChanged is emitted by the storefront whenever an order moves
// to a new status. The message carries a full order snapshot so the
// connector never calls back into the shop.
type OrderStatusChanged struct {
	OrderID   int64  `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`

	Email        string     `json:"email"`
	CustomerName string     `json:"customer_name"`
	OrderDate    *time.Time `json:"order_date,omitempty"`
	SiteURL      string     `json:"site_url,omitempty"`

	Items []models.OrderItem `json:"items,omitempty"`
}
