package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nabezky/VoucherBox/internal/broker/messages"
	"github.com/nabezky/VoucherBox/internal/integrations/nabezky"
	"github.com/nabezky/VoucherBox/internal/mailer"
	"github.com/nabezky/VoucherBox/internal/models"
	"github.com/nabezky/VoucherBox/internal/render"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Order statuses that trigger voucher generation. Everything else is
// logged and dropped.
var qualifyingStatuses = map[string]struct{}{
	"processing": {},
	"completed":  {},
}

const orderDateLayout = "2006-01-02 15:04:05"

type Repository interface {
	ClaimOrder(ctx context.Context, orderID int64, email, customerName string, orderDate *time.Time, now time.Time) (bool, error)
	SaveVoucherData(ctx context.Context, orderID int64, voucherJSON string) error
	UpsertRequest(ctx context.Context, orderID int64, requestID *string, status, dataJSON string) error
	MarkRequestStatus(ctx context.Context, orderID int64, status string, dataJSON *string) error
}

type VoucherCache interface {
	SetVoucherData(ctx context.Context, orderID int64, data models.VoucherData, ttl time.Duration) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Config is the connector slice of configuration the processor needs.
type Config struct {
	Enabled         bool
	AccessToken     string
	Products        []int64
	DefaultRegionID int
	SiteURL         string
	CallbackURL     string
	SupportEmail    string

	VoucherUpdatedTopic string
	CacheTTL            time.Duration
}

type Processor struct {
	repo     Repository
	client   nabezky.Client
	mail     mailer.Mailer
	renderer *render.Renderer
	producer Producer
	cache    VoucherCache
	log      *slog.Logger

	cfg      Config
	products map[int64]struct{}
	now      func() time.Time

	startedAtUnixNano int64
	totalEvents       atomic.Int64
	totalSkipped      atomic.Int64
	totalIssued       atomic.Int64
	totalFailed       atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(repo Repository, client nabezky.Client, mail mailer.Mailer, renderer *render.Renderer, producer Producer, cache VoucherCache, log *slog.Logger, cfg Config) *Processor {
	products := make(map[int64]struct{}, len(cfg.Products))
	for _, id := range cfg.Products {
		products[id] = struct{}{}
	}
	return &Processor{
		repo:     repo,
		client:   client,
		mail:     mail,
		renderer: renderer,
		producer: producer,
		cache:    cache,
		log:      log,
		cfg:      cfg,
		products: products,
		now:      time.Now,

		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

type Stats struct {
	StartedAt    time.Time `json:"startedAt"`
	TotalEvents  int64     `json:"totalEvents"`
	TotalSkipped int64     `json:"totalSkipped"`
	TotalIssued  int64     `json:"totalIssued"`
	TotalFailed  int64     `json:"totalFailed"`
	LastError    string    `json:"lastError,omitempty"`
}

func (p *Processor) Stats() Stats {
	st := Stats{
		StartedAt:    time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalEvents:  p.totalEvents.Load(),
		TotalSkipped: p.totalSkipped.Load(),
		TotalIssued:  p.totalIssued.Load(),
		TotalFailed:  p.totalFailed.Load(),
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Processor) recordError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}

// HandleEvent is the kafka consumer handler. A non-nil return means the
// message is NOT committed and will be redelivered, so only
// infrastructure failures (storage down) propagate; every domain outcome
// including the failure path settles the message.
func (p *Processor) HandleEvent(ctx context.Context, _, value []byte) error {
	var msg messages.OrderStatusChanged
	if err := json.Unmarshal(value, &msg); err != nil {
		// кривое сообщение никогда не станет валидным, коммитим и едем дальше
		p.log.Error("unparseable order event", "error", err.Error())
		return nil
	}
	if err := p.Process(ctx, msg); err != nil {
		p.recordError(err)
		return err
	}
	return nil
}

// Process runs the per-order state machine: Unseen -> Processing ->
// {Completed | Failed}, терминальные состояния липкие за счёт claim.
func (p *Processor) Process(ctx context.Context, msg messages.OrderStatusChanged) error {
	p.totalEvents.Add(1)
	log := p.log.With("order_id", msg.OrderID, "status", msg.NewStatus)

	if msg.OrderID == 0 {
		log.Error("order event without order_id")
		p.totalSkipped.Add(1)
		return nil
	}
	if _, ok := qualifyingStatuses[msg.NewStatus]; !ok {
		log.Info("order status does not qualify")
		p.totalSkipped.Add(1)
		return nil
	}

	// claim до любых внешних вызовов: повторная доставка того же заказа
	// дальше этой точки не пройдёт
	claimed, err := p.repo.ClaimOrder(ctx, msg.OrderID, msg.Email, msg.CustomerName, msg.OrderDate, p.now())
	if err != nil {
		return errors.Wrap(err, "claim order")
	}
	if !claimed {
		log.Info("order already processed")
		p.totalSkipped.Add(1)
		return nil
	}

	// выключенный коннектор всё равно съедает claim, включение задним
	// числом не переобрабатывает старые заказы
	if !p.cfg.Enabled {
		log.Info("connector disabled, order claimed without processing")
		p.totalSkipped.Add(1)
		return nil
	}

	matched := p.matchItems(msg.Items)
	if len(matched) == 0 {
		log.Info("no voucher products in order")
		p.totalSkipped.Add(1)
		return nil
	}

	order := p.buildRequest(msg, matched)

	requestID := uuid.NewString()
	snapshot, err := json.Marshal(order)
	if err != nil {
		return errors.Wrap(err, "marshal order snapshot")
	}
	if err := p.repo.UpsertRequest(ctx, msg.OrderID, &requestID, models.RequestStatusPending, string(snapshot)); err != nil {
		return errors.Wrap(err, "audit pending")
	}

	if p.cfg.AccessToken == "" {
		log.Error("access token not configured")
		return p.failurePath(ctx, msg, "access token not configured")
	}

	data, err := p.client.GenerateVouchers(ctx, order)
	if err != nil {
		log.Error("voucher generation failed", "error", err.Error())
		return p.failurePath(ctx, msg, err.Error())
	}

	if len(data.Vouchers) == 0 {
		// аномалия: API ответил успехом без ваучеров. Аудит остаётся
		// pending, письма нет, показывать клиенту нечего.
		log.Warn("voucher_data present but vouchers empty")
		p.totalSkipped.Add(1)
		return nil
	}

	return p.successPath(ctx, msg, data)
}

func (p *Processor) matchItems(items []models.OrderItem) []models.OrderItem {
	var matched []models.OrderItem
	for _, it := range items {
		if _, ok := p.products[it.ProductID]; ok {
			matched = append(matched, it)
		}
	}
	return matched
}

func (p *Processor) buildRequest(msg messages.OrderStatusChanged, matched []models.OrderItem) models.OrderVoucherRequest {
	amount := decimal.Zero
	for _, it := range matched {
		amount = amount.Add(it.Total)
	}

	orderDate := ""
	if msg.OrderDate != nil {
		orderDate = msg.OrderDate.UTC().Format(orderDateLayout)
	}
	siteURL := msg.SiteURL
	if siteURL == "" {
		siteURL = p.cfg.SiteURL
	}

	return models.OrderVoucherRequest{
		OrderID:      msg.OrderID,
		Email:        msg.Email,
		Amount:       amount,
		Products:     matched,
		SiteURL:      siteURL,
		CallbackURL:  p.cfg.CallbackURL,
		OrderDate:    orderDate,
		CustomerName: msg.CustomerName,
		RegionID:     p.cfg.DefaultRegionID,
	}
}

func (p *Processor) failurePath(ctx context.Context, msg messages.OrderStatusChanged, reason string) error {
	p.totalFailed.Add(1)
	log := p.log.With("order_id", msg.OrderID)

	detail, _ := json.Marshal(map[string]string{"error": reason})
	detailStr := string(detail)
	if err := p.repo.MarkRequestStatus(ctx, msg.OrderID, models.RequestStatusFailed, &detailStr); err != nil {
		return errors.Wrap(err, "audit failed status")
	}

	// клиент в любом случае получает письмо, пусть и без ваучеров
	body, err := p.renderer.FallbackEmail(msg.CustomerName, msg.OrderID, p.cfg.SupportEmail)
	if err == nil {
		if err := p.mail.Send(ctx, msg.Email, "Your order is being processed", body); err != nil {
			log.Warn("fallback email not sent", "error", err.Error())
		}
	} else {
		log.Error("render fallback email", "error", err.Error())
	}

	p.publishUpdate(ctx, messages.VoucherUpdated{
		OrderID: msg.OrderID,
		Status:  messages.VoucherUpdateFailed,
		Error:   &reason,
	})
	return nil
}

func (p *Processor) successPath(ctx context.Context, msg messages.OrderStatusChanged, data models.VoucherData) error {
	log := p.log.With("order_id", msg.OrderID)

	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshal voucher data")
	}
	payloadStr := string(payload)

	if err := p.repo.SaveVoucherData(ctx, msg.OrderID, payloadStr); err != nil {
		return errors.Wrap(err, "save voucher data")
	}
	if err := p.repo.MarkRequestStatus(ctx, msg.OrderID, models.RequestStatusCompleted, &payloadStr); err != nil {
		return errors.Wrap(err, "audit completed status")
	}

	if p.cache != nil && p.cfg.CacheTTL > 0 {
		if err := p.cache.SetVoucherData(ctx, msg.OrderID, data, p.cfg.CacheTTL); err != nil {
			log.Warn("voucher cache not updated", "error", err.Error())
		}
	}

	body, err := p.renderer.VoucherEmail(msg.CustomerName, msg.OrderID, data)
	if err == nil {
		if err := p.mail.Send(ctx, msg.Email, "Your cross-country skiing vouchers", body); err != nil {
			log.Warn("voucher email not sent", "error", err.Error())
		}
	} else {
		log.Error("render voucher email", "error", err.Error())
	}

	p.publishUpdate(ctx, messages.VoucherUpdated{
		OrderID:     msg.OrderID,
		Status:      messages.VoucherUpdateIssued,
		VoucherData: &data,
	})

	p.totalIssued.Add(1)
	log.Info("vouchers issued", "count", len(data.Vouchers))
	return nil
}

func (p *Processor) publishUpdate(ctx context.Context, upd messages.VoucherUpdated) {
	if p.producer == nil || p.cfg.VoucherUpdatedTopic == "" {
		return
	}
	b, err := json.Marshal(upd)
	if err != nil {
		p.log.Error("marshal voucher.updated", "error", err.Error())
		return
	}
	key := []byte(fmt.Sprintf("%d", upd.OrderID))
	if err := p.producer.Publish(ctx, p.cfg.VoucherUpdatedTopic, key, b); err != nil {
		p.log.Error("publish voucher.updated", "order_id", upd.OrderID, "error", err.Error())
		p.recordError(err)
	}
}
