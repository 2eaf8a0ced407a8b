package pgvoucher

import (
	"context"
	"time"

	"github.com/nabezky/VoucherBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// UpsertRequest records the lifecycle of one order's voucher request.
// order_id уникален: повторная запись перетирает предыдущую (last write wins).
func (s *Storage) UpsertRequest(ctx context.Context, orderID int64, requestID *string, status, dataJSON string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
INSERT INTO nabezky_requests (order_id, nabezky_request_id, status, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (order_id)
DO UPDATE SET nabezky_request_id = EXCLUDED.nabezky_request_id,
              status = EXCLUDED.status,
              data = EXCLUDED.data,
              updated_at = EXCLUDED.updated_at
`, orderID, requestID, status, dataJSON, now)
	return errors.Wrap(err, "upsert nabezky request")
}

// MarkRequestStatus updates only the status (and optionally the payload
// snapshot) of an existing audit row.
func (s *Storage) MarkRequestStatus(ctx context.Context, orderID int64, status string, dataJSON *string) error {
	var err error
	if dataJSON != nil {
		_, err = s.db.Exec(ctx, `
UPDATE nabezky_requests SET status = $2, data = $3, updated_at = now() WHERE order_id = $1
`, orderID, status, *dataJSON)
	} else {
		_, err = s.db.Exec(ctx, `
UPDATE nabezky_requests SET status = $2, updated_at = now() WHERE order_id = $1
`, orderID, status)
	}
	return errors.Wrap(err, "mark nabezky request")
}

// GetRequestByOrderID returns the audit row for an order, or nil.
func (s *Storage) GetRequestByOrderID(ctx context.Context, orderID int64) (*models.RequestRecord, error) {
	var r models.RequestRecord
	err := s.db.QueryRow(ctx, `
SELECT id, order_id, nabezky_request_id, status, data, created_at, updated_at
FROM nabezky_requests
WHERE order_id = $1
`, orderID).Scan(&r.ID, &r.OrderID, &r.NabezkyRequestID, &r.Status, &r.Data, &r.CreatedAt, &r.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select nabezky request")
	}
	return &r, nil
}
