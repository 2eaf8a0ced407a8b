package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nabezky/VoucherBox/config"
	"github.com/nabezky/VoucherBox/internal/api/connectorapi"
	"github.com/nabezky/VoucherBox/internal/broker/kafka"
	"github.com/nabezky/VoucherBox/internal/cache/rediscache"
	"github.com/nabezky/VoucherBox/internal/integrations/nabezky"
	"github.com/nabezky/VoucherBox/internal/integrations/nabezky/fake"
	"github.com/nabezky/VoucherBox/internal/integrations/nabezky/nabezkyhttp"
	"github.com/nabezky/VoucherBox/internal/mailer"
	"github.com/nabezky/VoucherBox/internal/render"
	"github.com/nabezky/VoucherBox/internal/services/diagnostics"
	"github.com/nabezky/VoucherBox/internal/services/processor"
	"github.com/nabezky/VoucherBox/internal/storage/pgvoucher"
)

type voucherAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   voucherAPIOpts

	proc     *processor.Processor
	api      *connectorapi.API
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapVoucherAPI() *voucherAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.VoucherBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.VoucherBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "voucherbox"
	}
	orderTopic := cfg.Kafka.OrderStatusTopicName
	if orderTopic == "" {
		orderTopic = "order.status.changed"
	}
	voucherTopic := cfg.Kafka.VoucherUpdatedTopicName
	if voucherTopic == "" {
		voucherTopic = "voucher.updated"
	}
	cacheTTL := time.Duration(cfg.VoucherBox.VoucherCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	pollWindow := time.Duration(cfg.VoucherBox.StatusPollTimeoutSeconds) * time.Second
	if pollWindow <= 0 {
		pollWindow = 120 * time.Second
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	var client nabezky.Client
	var prober nabezky.Prober
	httpClient := nabezkyhttp.New(cfg.Nabezky.APIURL, cfg.Nabezky.AccessToken)
	if cfg.Nabezky.Mode == "fake" {
		fc := fake.New()
		client, prober = fc, fc
	} else {
		client, prober = httpClient, httpClient
	}

	log := slog.Default()
	renderer := render.New(cfg.Nabezky.MapURL)
	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
		UseSSL:   cfg.SMTP.UseSSL,
		UseTLS:   cfg.SMTP.UseTLS,
		Enabled:  cfg.SMTP.Enabled,
	})

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, orderTopic, consumerGroup)
	producer := kafka.NewProducer(brokers)

	proc := processor.New(st, client, mail, renderer, producer, rc, log, processor.Config{
		Enabled:             cfg.Nabezky.Enabled,
		AccessToken:         cfg.Nabezky.AccessToken,
		Products:            cfg.Nabezky.Products,
		DefaultRegionID:     cfg.Nabezky.DefaultRegionID,
		SiteURL:             cfg.Nabezky.SiteURL,
		CallbackURL:         cfg.Nabezky.CallbackURL,
		SupportEmail:        cfg.Nabezky.SupportEmail,
		VoucherUpdatedTopic: voucherTopic,
		CacheTTL:            cacheTTL,
	})

	diag := diagnostics.New(prober, log)
	api := connectorapi.New(connectorapi.Opts{
		Store:    st,
		Cache:    rc,
		RL:       rl,
		Renderer: renderer,
		Diag:     diag,
		DiagCfg: diagnostics.Config{
			Enabled:         cfg.Nabezky.Enabled,
			APIURL:          cfg.Nabezky.APIURL,
			MapURL:          cfg.Nabezky.MapURL,
			AccessToken:     cfg.Nabezky.AccessToken,
			Products:        cfg.Nabezky.Products,
			DefaultRegionID: cfg.Nabezky.DefaultRegionID,
		},
		Log:                log,
		AdminToken:         cfg.VoucherBox.AdminToken,
		MapURL:             cfg.Nabezky.MapURL,
		PollWindow:         pollWindow,
		RateLimitPerMinute: int64(cfg.VoucherBox.RateLimitPerMinute),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &voucherAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: voucherAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         orderTopic,
			consumerGroup: consumerGroup,
		},
		proc:     proc,
		api:      api,
		consumer: consumer,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgvoucher.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgvoucher.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *voucherAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *voucherAPIApp) Run() error {
	return runVoucherAPI(a.ctx, a.opts, a.proc, a.api, a.consumer)
}
