package messages

import "github.com/nabezky/VoucherBox/internal/models"

// Statuses carried by VoucherUpdated.
const (
	VoucherUpdateIssued = "issued"
	VoucherUpdateFailed = "failed"
)

// VoucherUpdated is published after an order's voucher request settles,
// one way or the other.
type VoucherUpdated struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`

	VoucherData *models.VoucherData `json:"voucher_data,omitempty"`
	Error       *string             `json:"error,omitempty"`
}
