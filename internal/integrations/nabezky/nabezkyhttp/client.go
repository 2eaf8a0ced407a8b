package nabezkyhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nabezky/VoucherBox/internal/integrations/nabezky"
	"github.com/nabezky/VoucherBox/internal/models"
	"github.com/pkg/errors"
)

const (
	generationPath = "/nabezky/woocommerce-voucher-generation"
	// Путь probe-запросов исторически отличается от боевого endpoint —
	// так настроен сервер Nabezky, не унифицировать без подтверждения.
	probePath = "/services/woocommerce-voucher-generation"

	generateTimeout      = 30 * time.Second
	baseProbeTimeout     = 10 * time.Second
	endpointProbeTimeout = 15 * time.Second
	authProbeTimeout     = 20 * time.Second
)

type Client struct {
	apiURL string
	token  string
	httpc  *http.Client
	now    func() time.Time
}

func New(apiURL, accessToken string) *Client {
	if apiURL == "" {
		apiURL = "https://nabezky.sk"
	}
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  accessToken,
		// Таймаут у каждого вызова свой, поэтому на клиенте его нет.
		httpc: &http.Client{},
		now:   time.Now,
	}
}

type generateRequest struct {
	AccessToken string `json:"access_token"`
	OrderData   any    `json:"order_data"`
}

type generateResponse struct {
	VoucherData *models.VoucherData `json:"voucher_data"`
}

func (c *Client) GenerateVouchers(ctx context.Context, order models.OrderVoucherRequest) (models.VoucherData, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{AccessToken: c.token, OrderData: order})
	if err != nil {
		return models.VoucherData{}, errors.Wrap(err, "marshal order data")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+generationPath, bytes.NewReader(body))
	if err != nil {
		return models.VoucherData{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return models.VoucherData{}, errors.Wrap(err, "voucher generation request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.VoucherData{}, errors.Wrap(err, "read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return models.VoucherData{}, &nabezky.ProtocolError{StatusCode: resp.StatusCode, Reason: "unexpected status"}
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return models.VoucherData{}, &nabezky.ProtocolError{StatusCode: resp.StatusCode, Reason: "unparseable response body"}
	}
	if gr.VoucherData == nil {
		return models.VoucherData{}, &nabezky.ProtocolError{StatusCode: resp.StatusCode, Reason: "voucher_data missing in response"}
	}

	return *gr.VoucherData, nil
}

// ProbeBase checks that the API host answers at all (HEAD to the base URL).
func (c *Client) ProbeBase(ctx context.Context) (int, error) {
	return c.probe(ctx, http.MethodHead, c.apiURL, nil, baseProbeTimeout)
}

// ProbeEndpoint checks that the generation endpoint exists (OPTIONS).
// 405 от сервера здесь тоже полезный сигнал: endpoint существует.
func (c *Client) ProbeEndpoint(ctx context.Context) (int, error) {
	return c.probe(ctx, http.MethodOptions, c.apiURL+probePath, nil, endpointProbeTimeout)
}

// ProbeAuth sends a clearly-marked zero-amount test order to exercise the
// token without generating a real voucher.
func (c *Client) ProbeAuth(ctx context.Context, regionID int) (int, error) {
	payload := generateRequest{
		AccessToken: c.token,
		OrderData: map[string]any{
			"test_mode": true,
			"email":     "test@example.com",
			"amount":    0,
			"order_id":  fmt.Sprintf("TEST-%d", c.now().Unix()),
			"region_id": regionID,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, errors.Wrap(err, "marshal test payload")
	}
	return c.probe(ctx, http.MethodPost, c.apiURL+probePath, body, authProbeTimeout)
}

func (c *Client) probe(ctx context.Context, method, url string, body []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, errors.Wrap(err, "new request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "%s %s", method, url)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
