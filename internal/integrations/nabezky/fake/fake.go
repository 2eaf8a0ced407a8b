package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/http"
	"time"

	"github.com/nabezky/VoucherBox/internal/models"
	"github.com/nabezky/VoucherBox/internal/vouchercode"
)

// FakeClient — локальная заглушка Nabezky API (для демо и тестов без сети).
// Ваучеры детерминированы по (order_id, email): один и тот же заказ всегда
// получает один и тот же номер.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) GenerateVouchers(ctx context.Context, order models.OrderVoucherRequest) (models.VoucherData, error) {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%d|%s", order.OrderID, order.Email)
	v := h.Sum32()

	period := vouchercode.PeriodSeasonal
	if v%2 == 1 {
		period = vouchercode.PeriodThreeDay
	}

	region := order.RegionID
	if region < 1 || region > 99 {
		region = 1
	}

	now := time.Now()
	code, err := vouchercode.Build(region, period, now, rand.New(rand.NewSource(int64(v))))
	if err != nil {
		return models.VoucherData{}, err
	}

	info, err := vouchercode.Decode(code, now)
	if err != nil {
		return models.VoucherData{}, err
	}

	var expires *int64
	if info.Expires != nil {
		ts := info.Expires.Unix()
		expires = &ts
	}

	return models.VoucherData{
		Vouchers: []models.Voucher{
			{Number: code, Type: info.Type, Expires: expires},
		},
		// Каждый пятый "покупатель" считается зарегистрированным на nabezky.sk.
		IsRegisteredUser: v%5 == 0,
		UserUID:          fmt.Sprintf("fake-%d", v),
		AccessGranted:    true,
		Email:            order.Email,
	}, nil
}

// Probes always succeed so the diagnostics pipeline can be exercised offline.
func (f *FakeClient) ProbeBase(ctx context.Context) (int, error) { return http.StatusOK, nil }

func (f *FakeClient) ProbeEndpoint(ctx context.Context) (int, error) { return http.StatusOK, nil }

func (f *FakeClient) ProbeAuth(ctx context.Context, regionID int) (int, error) {
	return http.StatusOK, nil
}
