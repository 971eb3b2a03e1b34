package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josima5/venda-projetos-sub001/pkg/config"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
)

//go:embed templates/*.html
var templateFS embed.FS

type templateConfig struct {
	file    string
	subject string
}

var templateConfigs = map[enums.MailTemplate]templateConfig{
	enums.MailTemplatePending: {
		file:    "templates/order_pending.html",
		subject: "Recebemos seu pedido %s",
	},
	enums.MailTemplatePaid: {
		file:    "templates/order_paid.html",
		subject: "Pagamento aprovado - pedido %s",
	},
	enums.MailTemplateCanceled: {
		file:    "templates/order_canceled.html",
		subject: "Pedido %s cancelado",
	},
	enums.MailTemplateRefunded: {
		file:    "templates/order_refunded.html",
		subject: "Pagamento estornado - pedido %s",
	},
	enums.MailTemplateChargeback: {
		file:    "templates/order_chargeback.html",
		subject: "Contestação de pagamento - pedido %s",
	},
}

// Message is a rendered email ready to be queued.
type Message struct {
	To      []string
	From    string
	ReplyTo string
	Subject string
	HTML    string
}

type templateData struct {
	Subject      string
	CustomerName string
	OrderRef     string
	ProjectTitle string
	Addons       []addonLine
	Total        string
	InitPoint    string
	PaidAt       string
	SupportURL   string
}

type addonLine struct {
	Label string
	Price string
}

// Renderer turns an order into one of the transactional emails.
type Renderer struct {
	templates  map[enums.MailTemplate]*template.Template
	from       string
	replyTo    string
	supportURL string
}

func NewRenderer(cfg config.MailConfig) (*Renderer, error) {
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("mail from address required")
	}
	tmpls := make(map[enums.MailTemplate]*template.Template, len(templateConfigs))
	for name, tc := range templateConfigs {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", tc.file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		tmpls[name] = tmpl
	}
	return &Renderer{
		templates:  tmpls,
		from:       cfg.From,
		replyTo:    cfg.ReplyTo,
		supportURL: cfg.SupportURL,
	}, nil
}

// Render builds the email for the given order. The order must carry an email.
func (r *Renderer) Render(name enums.MailTemplate, order models.Order) (Message, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail template %q", name)
	}
	to := strings.TrimSpace(order.Customer.Email)
	if to == "" {
		return Message{}, fmt.Errorf("order %s has no customer email", order.ID)
	}

	ref := OrderRef(order)
	data := templateData{
		Subject:      fmt.Sprintf(templateConfigs[name].subject, ref),
		CustomerName: firstName(order.Customer.Name),
		OrderRef:     ref,
		ProjectTitle: order.ProjectTitle,
		Total:        FormatBRL(order.Total),
		InitPoint:    order.Payment.InitPoint,
		SupportURL:   r.supportURL,
	}
	for _, addon := range order.Addons {
		data.Addons = append(data.Addons, addonLine{Label: addon.Label, Price: FormatBRL(addon.Price)})
	}
	if order.PaidAt != nil {
		data.PaidAt = order.PaidAt.In(saoPaulo()).Format("02/01/2006 15:04")
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}

	return Message{
		To:      []string{to},
		From:    r.from,
		ReplyTo: r.replyTo,
		Subject: data.Subject,
		HTML:    buf.String(),
	}, nil
}

// OrderRef is the short order reference shown to customers.
func OrderRef(order models.Order) string {
	return strings.ToUpper(strings.ReplaceAll(order.ID.String(), "-", "")[:8])
}

// FormatBRL renders an amount as Brazilian reais, e.g. "R$ 1.234,50".
func FormatBRL(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(digit)
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%s", sign, grouped.String(), cents)
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "cliente"
	}
	return fields[0]
}

func saoPaulo() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}
