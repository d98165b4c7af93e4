package warehouse

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ghalla-erp/ghalla-erp/internal/excelx"
	"github.com/ghalla-erp/ghalla-erp/internal/platform/httpx"
	"github.com/ghalla-erp/ghalla-erp/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/receipts", h.ListReceipts)
	r.Get("/receipts/{id}", h.ShowReceipt)
	r.Post("/receipts", h.CreateReceipt)
	r.Get("/delivery-orders", h.ListOrders)
	r.Get("/delivery-orders/{id}", h.ShowOrder)
	r.Post("/delivery-orders", h.CreateOrder)
	r.Post("/deliveries", h.RecordDelivery)
	r.Get("/inventory", h.Inventory)
}

type receiptRequest struct {
	ReceiptInput
	ReceiptDate string `json:"receipt_date"`
}

func (h *Handler) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(req.ReceiptInput); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.ReceiptDate != "" {
		date, err := excelx.ParseJalali(req.ReceiptDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid receipt date")
			return
		}
		req.ReceiptInput.ReceiptDate = date
	}
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		req.ReceiptInput.ActorID = actor.ID
	}

	rec, err := h.service.CreateReceipt(r.Context(), req.ReceiptInput)
	if err != nil {
		if errors.Is(err, ErrInvalidWeight) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		if errors.Is(err, ErrDuplicateReceipt) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
			return
		}
		h.logger.Error("create receipt", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) ShowReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid receipt id")
		return
	}
	rec, err := h.service.GetReceipt(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrReceiptNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ReceiptFilter{Type: ReceiptType(q.Get("type"))}
	filter.WarehouseID, _ = strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	filter.ProductID, _ = strconv.ParseInt(q.Get("product_id"), 10, 64)
	filter.SupplierID, _ = strconv.ParseInt(q.Get("supplier_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	receipts, err := h.service.ListReceipts(r.Context(), filter)
	if err != nil {
		h.logger.Error("list receipts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipts": receipts})
}

type orderRequest struct {
	OrderInput
	IssueDate string `json:"issue_date"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(req.OrderInput); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.IssueDate != "" {
		date, err := excelx.ParseJalali(req.IssueDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid issue date")
			return
		}
		req.OrderInput.IssueDate = date
	}
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		req.OrderInput.ActorID = actor.ID
	}

	order, err := h.service.CreateOrder(r.Context(), req.OrderInput)
	if err != nil {
		if errors.Is(err, ErrInvalidWeight) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("create delivery order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) ShowOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	warehouseID, _ := strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	orders, err := h.service.ListOrders(r.Context(), warehouseID, limit, offset)
	if err != nil {
		h.logger.Error("list delivery orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"delivery_orders": orders})
}

type deliveryRequest struct {
	DeliveryInput
	DeliveredAt string `json:"delivered_at"`
}

func (h *Handler) RecordDelivery(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(req.DeliveryInput); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.DeliveredAt != "" {
		at, err := excelx.ParseJalali(req.DeliveredAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid delivery date")
			return
		}
		req.DeliveryInput.DeliveredAt = at
	}
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		req.DeliveryInput.ActorID = actor.ID
	}

	d, err := h.service.RecordDelivery(r.Context(), req.DeliveryInput)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidWeight):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		case errors.Is(err, ErrOrderNotFound):
			httpx.RespondError(w, httpx.ErrNotFound)
		default:
			h.logger.Error("record delivery", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	warehouseID, _ := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	rows, err := h.service.GetInventory(r.Context(), warehouseID)
	if err != nil {
		h.logger.Error("get inventory", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"inventory": rows})
}
