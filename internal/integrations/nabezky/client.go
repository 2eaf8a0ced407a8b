package nabezky

import (
	"context"
	"fmt"

	"github.com/nabezky/VoucherBox/internal/models"
)

// ProtocolError reports an answer from the Nabezky API that cannot be used:
// a non-200 status, an unparseable body, or a body missing voucher_data.
type ProtocolError struct {
	StatusCode int
	Reason     string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("nabezky api: %s (http %d)", e.Reason, e.StatusCode)
}

type Client interface {
	GenerateVouchers(ctx context.Context, order models.OrderVoucherRequest) (models.VoucherData, error)
}

// Prober issues the lightweight checks used by connection diagnostics.
// Each probe returns the numeric response status; a transport failure is an error.
type Prober interface {
	ProbeBase(ctx context.Context) (int, error)
	ProbeEndpoint(ctx context.Context) (int, error)
	ProbeAuth(ctx context.Context, regionID int) (int, error)
}
