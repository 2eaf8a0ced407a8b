package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nabezky/VoucherBox/internal/api/connectorapi"
	"github.com/nabezky/VoucherBox/internal/mailer"
	"github.com/nabezky/VoucherBox/internal/models"
	"github.com/nabezky/VoucherBox/internal/render"
	"github.com/nabezky/VoucherBox/internal/services/diagnostics"
	"github.com/nabezky/VoucherBox/internal/services/processor"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct{}

func (r *fakeRepo) ClaimOrder(ctx context.Context, orderID int64, email, customerName string, orderDate *time.Time, now time.Time) (bool, error) {
	return true, nil
}
func (r *fakeRepo) SaveVoucherData(ctx context.Context, orderID int64, voucherJSON string) error {
	return nil
}
func (r *fakeRepo) UpsertRequest(ctx context.Context, orderID int64, requestID *string, status, dataJSON string) error {
	return nil
}
func (r *fakeRepo) MarkRequestStatus(ctx context.Context, orderID int64, status string, dataJSON *string) error {
	return nil
}
func (r *fakeRepo) GetOrder(ctx context.Context, orderID int64) (*models.VoucherOrder, error) {
	return nil, nil
}

type fakeClient struct{}

func (c *fakeClient) GenerateVouchers(ctx context.Context, order models.OrderVoucherRequest) (models.VoucherData, error) {
	return models.VoucherData{}, nil
}

type fakeProber struct{}

func (p *fakeProber) ProbeBase(ctx context.Context) (int, error)             { return 200, nil }
func (p *fakeProber) ProbeEndpoint(ctx context.Context) (int, error)         { return 200, nil }
func (p *fakeProber) ProbeAuth(ctx context.Context, regionID int) (int, error) { return 200, nil }

type fakeConsumer struct{}

func (c fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunVoucherAPI_SwaggerAndStatsServed(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	log := slog.Default()
	repo := &fakeRepo{}
	renderer := render.New("https://mapy.nabezky.sk/")
	proc := processor.New(repo, &fakeClient{}, mailer.New(mailer.Config{}), renderer, nil, nil, log, processor.Config{})
	api := connectorapi.New(connectorapi.Opts{
		Store:    repo,
		Renderer: renderer,
		Diag:     diagnostics.New(&fakeProber{}, log),
		Log:      log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := voucherAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   sw,
		topic:         "t",
		consumerGroup: "g",
		onListen:      func(httpAddr string) { addrCh <- httpAddr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runVoucherAPI(ctx, opts, proc, api, fakeConsumer{})
	}()

	httpAddr := <-addrCh

	resp, err := http.Get("http://" + httpAddr + "/swagger.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "\"swagger\"")

	resp2, err := http.Get("http://" + httpAddr + "/stats")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, 200, resp2.StatusCode)
	stats, _ := io.ReadAll(resp2.Body)
	require.Contains(t, string(stats), "totalEvents")

	cancel()
	require.Error(t, <-errCh)
}
