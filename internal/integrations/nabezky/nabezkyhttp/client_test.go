package nabezkyhttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nabezky/VoucherBox/internal/integrations/nabezky"
	"github.com/nabezky/VoucherBox/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testOrder() models.OrderVoucherRequest {
	return models.OrderVoucherRequest{
		OrderID: 1001,
		Email:   "a@b.com",
		Amount:  decimal.NewFromFloat(45.00),
		Products: []models.OrderItem{
			{ProductID: 7, ProductName: "Season pass", Quantity: 1, Total: decimal.NewFromFloat(45.00)},
		},
		SiteURL:     "https://eshop.example.com",
		CallbackURL: "https://eshop.example.com/nabezky/callback",
		OrderDate:   "2024-11-15 10:30:00",
		RegionID:    2,
	}
}

func TestClient_GenerateVouchers_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/nabezky/woocommerce-voucher-generation", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &req))
		require.JSONEq(t, `"secret-token"`, string(req["access_token"]))
		require.Contains(t, string(req["order_data"]), `"order_id":1001`)
		require.Contains(t, string(req["order_data"]), `"a@b.com"`)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "voucher_data": {
    "vouchers": [{"number":"102012345678","type":"seasonal","expires":1745964000}],
    "is_registered_user": true,
    "user_uid": "uid-77",
    "access_granted": true,
    "email": "a@b.com"
  }
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-token")
	data, err := c.GenerateVouchers(context.Background(), testOrder())
	require.NoError(t, err)
	require.Len(t, data.Vouchers, 1)
	require.Equal(t, "102012345678", data.Vouchers[0].Number)
	require.Equal(t, "seasonal", data.Vouchers[0].Type)
	require.NotNil(t, data.Vouchers[0].Expires)
	require.True(t, data.IsRegisteredUser)
	require.Equal(t, "a@b.com", data.Email)
}

func TestClient_GenerateVouchers_non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.GenerateVouchers(context.Background(), testOrder())

	var perr *nabezky.ProtocolError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, http.StatusBadGateway, perr.StatusCode)
}

func TestClient_GenerateVouchers_unparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.GenerateVouchers(context.Background(), testOrder())

	var perr *nabezky.ProtocolError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, http.StatusOK, perr.StatusCode)
}

func TestClient_GenerateVouchers_missingVoucherData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.GenerateVouchers(context.Background(), testOrder())

	var perr *nabezky.ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestClient_GenerateVouchers_transportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // закрыли заранее — транспортная ошибка

	c := New(srv.URL, "tok")
	_, err := c.GenerateVouchers(context.Background(), testOrder())
	require.Error(t, err)

	var perr *nabezky.ProtocolError
	require.False(t, errors.As(err, &perr))
}

func TestClient_Probes(t *testing.T) {
	var gotBase, gotEndpoint, gotAuth *http.Request
	var authBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			gotBase = r
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodOptions:
			gotEndpoint = r
			w.WriteHeader(http.StatusMethodNotAllowed)
		case r.Method == http.MethodPost:
			gotAuth = r
			authBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	c.now = func() time.Time { return time.Unix(1731662400, 0) }

	code, err := c.ProbeBase(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "/", gotBase.URL.Path)

	code, err = c.ProbeEndpoint(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, code)
	require.Equal(t, "/services/woocommerce-voucher-generation", gotEndpoint.URL.Path)

	code, err = c.ProbeAuth(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "/services/woocommerce-voucher-generation", gotAuth.URL.Path)
	require.Contains(t, string(authBody), `"test_mode":true`)
	require.Contains(t, string(authBody), `"TEST-1731662400"`)
	require.Contains(t, string(authBody), `"test@example.com"`)
}
