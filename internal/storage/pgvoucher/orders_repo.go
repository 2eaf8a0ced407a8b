package pgvoucher

import (
	"context"
	"time"

	"github.com/nabezky/VoucherBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ClaimOrder помечает заказ обрабатываемым ровно один раз.
// INSERT ... ON CONFLICT DO NOTHING: второй вызов для того же заказа
// (повторная доставка события, второй хук статуса) вернёт claimed=false.
func (s *Storage) ClaimOrder(ctx context.Context, orderID int64, email, customerName string, orderDate *time.Time, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
INSERT INTO voucher_orders (order_id, email, customer_name, order_date, processed_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (order_id) DO NOTHING
`, orderID, email, customerName, orderDate, now.UTC())
	if err != nil {
		return false, errors.Wrap(err, "claim order")
	}
	return tag.RowsAffected() == 1, nil
}

// SaveVoucherData persists the raw voucher payload on the order.
func (s *Storage) SaveVoucherData(ctx context.Context, orderID int64, voucherJSON string) error {
	_, err := s.db.Exec(ctx, `
UPDATE voucher_orders SET voucher_data = $2, updated_at = now() WHERE order_id = $1
`, orderID, voucherJSON)
	return errors.Wrap(err, "save voucher data")
}

// GetOrder returns the per-order metadata row, or nil when the order was
// never claimed.
func (s *Storage) GetOrder(ctx context.Context, orderID int64) (*models.VoucherOrder, error) {
	var o models.VoucherOrder
	err := s.db.QueryRow(ctx, `
SELECT order_id, email, customer_name, order_date, processed_at, voucher_data, updated_at
FROM voucher_orders
WHERE order_id = $1
`, orderID).Scan(&o.OrderID, &o.Email, &o.CustomerName, &o.OrderDate, &o.ProcessedAt, &o.VoucherData, &o.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select voucher order")
	}
	return &o, nil
}
