// Package checkout turns a checkout request into a pending order and a
// payable gateway preference.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/josima5/venda-projetos-sub001/internal/orders"
	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
	"github.com/josima5/venda-projetos-sub001/pkg/enums"
	pkgerrors "github.com/josima5/venda-projetos-sub001/pkg/errors"
	"github.com/josima5/venda-projetos-sub001/pkg/gateway"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
	"github.com/josima5/venda-projetos-sub001/pkg/types"
)

type PreferenceCreator interface {
	CreatePreference(ctx context.Context, req gateway.PreferenceRequest) (*gateway.Preference, error)
}

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	AttachPreference(ctx context.Context, id uuid.UUID, preferenceID, initPoint string) (*models.Order, error)
}

type Customer struct {
	Name    string
	Email   string
	Phone   string
	TaxID   string
	Address types.ContactAddress
}

type Payment struct {
	Method       string
	Installments int
}

// Request is a validated checkout submission. Client prices are never read.
type Request struct {
	ProjectID   string
	AddonIDs    []string
	Customer    Customer
	Payment     Payment
	OwnerUserID string
}

type Result struct {
	OrderID      uuid.UUID
	InitPoint    string
	PreferenceID string
}

type Config struct {
	NotificationURL     string
	FrontendURL         string
	StatementDescriptor string
}

type ServiceParams struct {
	Catalog CatalogRepository
	Orders  OrderStore
	Gateway PreferenceCreator
	Logger  *logger.Logger
	Config  Config
}

type Service struct {
	catalog CatalogRepository
	orders  OrderStore
	gateway PreferenceCreator
	logg    *logger.Logger
	cfg     Config
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		catalog: params.Catalog,
		orders:  params.Orders,
		gateway: params.Gateway,
		logg:    params.Logger,
		cfg:     params.Config,
	}, nil
}

// Create prices the request, stores the pending order and attaches a gateway
// preference to it.
func (s *Service) Create(ctx context.Context, req Request) (*Result, error) {
	projectID := strings.TrimSpace(req.ProjectID)
	if projectID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "projectId is required")
	}
	if strings.TrimSpace(req.Customer.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}

	project, err := s.catalog.FindProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "project %s not found", projectID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load project")
	}

	quote, err := PriceProject(project, req.AddonIDs)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:           uuid.New(),
		ProjectID:    project.ID,
		ProjectTitle: project.Title,
		BasePrice:    quote.BasePrice,
		Addons:       quote.Addons,
		AddonsTotal:  quote.AddonsTotal,
		Total:        quote.Total,
		Customer: models.OrderCustomer{
			Name:    strings.TrimSpace(req.Customer.Name),
			Email:   strings.TrimSpace(req.Customer.Email),
			Phone:   strings.TrimSpace(req.Customer.Phone),
			TaxID:   strings.TrimSpace(req.Customer.TaxID),
			Address: req.Customer.Address,
		},
		Payment: models.OrderPayment{
			Method:       strings.TrimSpace(req.Payment.Method),
			Installments: req.Payment.Installments,
		},
	}
	if owner := strings.TrimSpace(req.OwnerUserID); owner != "" {
		order.OwnerUserID = &owner
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	if err := s.orders.Create(ctx, order); err != nil {
		if !orders.IsPostProcessError(err) {
			return nil, err
		}
		s.logg.Warn(ctx, "order created but post-processing failed")
	}

	pref, err := s.gateway.CreatePreference(ctx, s.preferenceRequest(order, quote, req))
	if err != nil {
		return nil, err
	}
	initPoint := pref.RedirectURL()

	if _, err := s.orders.AttachPreference(ctx, order.ID, pref.ID, initPoint); err != nil {
		if !orders.IsPostProcessError(err) {
			return nil, err
		}
		s.logg.Warn(ctx, "preference attached but post-processing failed")
	}

	s.logg.Info(s.logg.WithField(ctx, "preference_id", pref.ID), "checkout created")
	return &Result{OrderID: order.ID, InitPoint: initPoint, PreferenceID: pref.ID}, nil
}

func (s *Service) preferenceRequest(order *models.Order, quote Quote, req Request) gateway.PreferenceRequest {
	prefReq := gateway.PreferenceRequest{
		Items: []gateway.Item{{
			ID:          order.ProjectID,
			Title:       order.ProjectTitle,
			Description: quote.Describe(order.ProjectTitle),
			Quantity:    1,
			UnitPrice:   order.Total,
			CurrencyID:  enums.CurrencyBRL.String(),
		}},
		Payer:               buildPayer(req.Customer),
		ExternalReference:   order.ID.String(),
		NotificationURL:     s.cfg.NotificationURL,
		StatementDescriptor: s.cfg.StatementDescriptor,
		Metadata:            map[string]any{"order_id": order.ID.String(), "project_id": order.ProjectID},
		IdempotencyKey:      IdempotencyKey(order.ID),
	}
	if req.Payment.Installments > 1 {
		prefReq.PaymentMethods = &gateway.PaymentMethods{
			Installments:        req.Payment.Installments,
			DefaultInstallments: req.Payment.Installments,
		}
	}
	if back := backURLs(s.cfg.FrontendURL, order.ID); back != nil {
		prefReq.BackURLs = back
		prefReq.AutoReturn = "approved"
	}
	return prefReq
}

// IdempotencyKey is the gateway idempotency key for an order's preference.
func IdempotencyKey(orderID uuid.UUID) string {
	return "order-" + orderID.String()
}

func backURLs(frontend string, orderID uuid.UUID) *gateway.BackURLs {
	base := strings.TrimRight(strings.TrimSpace(frontend), "/")
	if base == "" {
		return nil
	}
	q := url.Values{}
	q.Set("orderId", orderID.String())
	suffix := "?" + q.Encode()
	return &gateway.BackURLs{
		Success: base + "/checkout/sucesso" + suffix,
		Failure: base + "/checkout/falha" + suffix,
		Pending: base + "/checkout/pendente" + suffix,
	}
}
