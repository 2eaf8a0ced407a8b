package fake

import (
	"context"
	"testing"

	"github.com/nabezky/VoucherBox/internal/models"
	"github.com/nabezky/VoucherBox/internal/vouchercode"
	"github.com/stretchr/testify/require"
)

func TestFakeClient_Deterministic(t *testing.T) {
	f := New()
	order := models.OrderVoucherRequest{OrderID: 42, Email: "a@b.com", RegionID: 2}

	first, err := f.GenerateVouchers(context.Background(), order)
	require.NoError(t, err)
	require.Len(t, first.Vouchers, 1)
	require.True(t, vouchercode.IsValidFormat(first.Vouchers[0].Number))
	require.True(t, first.AccessGranted)

	second, err := f.GenerateVouchers(context.Background(), order)
	require.NoError(t, err)
	require.Equal(t, first.Vouchers[0].Number, second.Vouchers[0].Number)
}

func TestFakeClient_RegionClamped(t *testing.T) {
	f := New()
	data, err := f.GenerateVouchers(context.Background(), models.OrderVoucherRequest{OrderID: 1, Email: "x@y.z", RegionID: 500})
	require.NoError(t, err)
	require.True(t, vouchercode.IsValidFormat(data.Vouchers[0].Number))
}
