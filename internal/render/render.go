package render

import (
	"bytes"
	"html/template"
	"time"

	"github.com/nabezky/VoucherBox/internal/models"
	"github.com/nabezky/VoucherBox/internal/vouchercode"
	"github.com/pkg/errors"
)

// Renderer produces the voucher HTML fragment shared by the email body and
// the voucher-info endpoint, plus the full email wrappers around it.
type Renderer struct {
	mapURL string

	fragment *template.Template
	email    *template.Template
	fallback *template.Template
}

type voucherView struct {
	Number     string
	TypeLabel  string
	ExpiryLine string
	MapLink    string
}

type fragmentView struct {
	Vouchers         []voucherView
	IsRegisteredUser bool
}

type emailView struct {
	CustomerName string
	OrderID      int64
	Body         template.HTML
}

type fallbackView struct {
	CustomerName string
	OrderID      int64
	SupportEmail string
}

const fragmentTpl = `<div class="nabezky-vouchers">
{{range .Vouchers}}<div class="nabezky-voucher">
  <p class="voucher-number"><strong>{{.Number}}</strong></p>
  <p class="voucher-type">{{.TypeLabel}}</p>
  <p class="voucher-expiry">{{.ExpiryLine}}</p>
  {{if .MapLink}}<p class="voucher-map"><a href="{{.MapLink}}">Open the trail map</a></p>{{end}}
</div>
{{end}}{{if .IsRegisteredUser}}<p class="nabezky-bonus">As a registered Nabezky user you also received bonus access on your account.</p>
{{end}}</div>`

const emailTpl = `<html><body>
<p>Hello {{if .CustomerName}}{{.CustomerName}}{{else}}there{{end}},</p>
<p>Thank you for your order #{{.OrderID}}. Your cross-country skiing vouchers are ready:</p>
{{.Body}}
<p>Enjoy the trails!</p>
</body></html>`

const fallbackTpl = `<html><body>
<p>Hello {{if .CustomerName}}{{.CustomerName}}{{else}}there{{end}},</p>
<p>We received your order #{{.OrderID}}, but the voucher service could not issue your vouchers automatically.</p>
<p>Our team has been notified and will send your vouchers manually.{{if .SupportEmail}} If you have questions, write to <a href="mailto:{{.SupportEmail}}">{{.SupportEmail}}</a>.{{end}}</p>
</body></html>`

func New(mapURL string) *Renderer {
	return &Renderer{
		mapURL:   mapURL,
		fragment: template.Must(template.New("fragment").Parse(fragmentTpl)),
		email:    template.Must(template.New("email").Parse(emailTpl)),
		fallback: template.Must(template.New("fallback").Parse(fallbackTpl)),
	}
}

func typeLabel(t string) string {
	switch t {
	case models.VoucherTypeSeasonal:
		return "Seasonal Pass"
	case models.VoucherType3Day:
		return "3-Day Access"
	default:
		return "Voucher"
	}
}

func expiryLine(v models.Voucher) string {
	if v.Expires != nil {
		return "Valid until " + time.Unix(*v.Expires, 0).UTC().Format("January 2, 2006")
	}
	if v.Type == models.VoucherType3Day {
		return "Valid for 3 days after first use"
	}
	return "See your account for validity details"
}

// VoucherFragment renders the shared voucher block for an email or the
// voucher-info endpoint. Map links silently degrade to empty on a bad
// map_url, the voucher itself still shows.
func (r *Renderer) VoucherFragment(data models.VoucherData) (string, error) {
	view := fragmentView{IsRegisteredUser: data.IsRegisteredUser}
	for _, v := range data.Vouchers {
		link := ""
		if r.mapURL != "" {
			if u, err := vouchercode.MapAccessURL(r.mapURL, v.Number, data.Email, nil); err == nil {
				link = u
			}
		}
		view.Vouchers = append(view.Vouchers, voucherView{
			Number:     v.Number,
			TypeLabel:  typeLabel(v.Type),
			ExpiryLine: expiryLine(v),
			MapLink:    link,
		})
	}

	var buf bytes.Buffer
	if err := r.fragment.Execute(&buf, view); err != nil {
		return "", errors.Wrap(err, "render voucher fragment")
	}
	return buf.String(), nil
}

// VoucherEmail renders the full voucher notification email body.
func (r *Renderer) VoucherEmail(customerName string, orderID int64, data models.VoucherData) (string, error) {
	body, err := r.VoucherFragment(data)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err = r.email.Execute(&buf, emailView{
		CustomerName: customerName,
		OrderID:      orderID,
		Body:         template.HTML(body),
	})
	if err != nil {
		return "", errors.Wrap(err, "render voucher email")
	}
	return buf.String(), nil
}

// FallbackEmail renders the manual-processing notice sent when voucher
// generation fails.
func (r *Renderer) FallbackEmail(customerName string, orderID int64, supportEmail string) (string, error) {
	var buf bytes.Buffer
	err := r.fallback.Execute(&buf, fallbackView{
		CustomerName: customerName,
		OrderID:      orderID,
		SupportEmail: supportEmail,
	})
	if err != nil {
		return "", errors.Wrap(err, "render fallback email")
	}
	return buf.String(), nil
}
