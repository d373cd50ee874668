package accounts

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Handler exposes receivable and payable endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validator *httpx.Validator) *Handler {
	return &Handler{logger: logger, service: service, validator: validator}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/aging", h.aging)
	r.Get("/{id}", h.get)
	r.Get("/{id}/payments", h.listPayments)
	r.Post("/{id}/payments", h.registerPayment)
	r.Put("/payments/{paymentID}", h.editPayment)
	r.Delete("/payments/{paymentID}", h.deletePayment)
}

type paymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method" validate:"omitempty,oneof=cash transfer check credit_card debit_card other"`
	PaymentDate     shared.Date     `json:"payment_date"`
	ReferenceNumber string          `json:"reference_number" validate:"max=64"`
	Notes           string          `json:"notes" validate:"max=500"`
}

func (req paymentRequest) input() PaymentInput {
	return PaymentInput{
		Amount:          req.Amount,
		Method:          Method(strings.ToLower(req.Method)),
		PaymentDate:     req.PaymentDate,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
	}
}

type paymentResult struct {
	Payment Payment `json:"payment"`
	Account Account `json:"account"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	filter := ListFilter{
		Kind:    Kind(strings.ToUpper(q.Get("kind"))),
		Status:  Status(strings.ToUpper(q.Get("status"))),
		Page:    httpx.QueryInt(r, "page", 1),
		PerPage: httpx.QueryInt(r, "per_page", 0),
	}
	items, page, err := h.service.List(r.Context(), orgID, filter)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"items": items, "pagination": page})
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	kind := Kind(strings.ToUpper(r.URL.Query().Get("kind")))
	if kind == "" {
		kind = KindReceivable
	}
	bucket, err := h.service.Aging(r.Context(), orgID, kind, asOf)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"kind": kind, "as_of": shared.NewDate(asOf), "buckets": bucket, "total": bucket.Total()})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := h.scope(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	acc, err := h.service.Get(r.Context(), orgID, id)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, acc)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := h.scope(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	payments, err := h.service.ListPayments(r.Context(), orgID, id)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, payments)
}

func (h *Handler) registerPayment(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := h.scope(r, "id")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	req, err := h.decode(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	payment, acc, err := h.service.RegisterPayment(r.Context(), orgID, id, req.input())
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, paymentResult{Payment: payment, Account: acc})
}

func (h *Handler) editPayment(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := h.scope(r, "paymentID")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	req, err := h.decode(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	payment, acc, err := h.service.EditPayment(r.Context(), orgID, id, req.input())
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, paymentResult{Payment: payment, Account: acc})
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := h.scope(r, "paymentID")
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	acc, err := h.service.DeletePayment(r.Context(), orgID, id)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, acc)
}

func (h *Handler) scope(r *http.Request, param string) (int64, int64, error) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		return 0, 0, err
	}
	id, err := httpx.PathID(r, param)
	return orgID, id, err
}

func (h *Handler) decode(r *http.Request) (paymentRequest, error) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return req, err
	}
	return req, h.validator.Struct(req)
}
