package marketplace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"

	"github.com/ghalla-erp/ghalla-erp/internal/excelx"
	"github.com/ghalla-erp/ghalla-erp/internal/platform/httpx"
	"github.com/ghalla-erp/ghalla-erp/internal/shared"
)

const maxUploadBytes = 20 << 20

// ImportQueue hands large uploads to the background worker.
type ImportQueue interface {
	EnqueueImportPurchases(ctx context.Context, saleID, actorID int64, workbook []byte) error
}

type Handler struct {
	logger    *slog.Logger
	service   *Service
	summaries *SummaryCache
	queue     ImportQueue
	validate  *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, summaries *SummaryCache, queue ImportQueue) *Handler {
	return &Handler{logger: logger, service: service, summaries: summaries, queue: queue, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/marketplace", func(r chi.Router) {
		r.Get("/offers", h.ListOffers)
		r.Get("/offers/{id}", h.ShowOffer)
		r.Post("/offers", h.CreateOffer)
		r.Patch("/offers/{id}", h.UpdateOffer)
		r.Post("/offers/{id}/status", h.TransitionOffer)
		r.Post("/offers/{id}/sales", h.CreateSale)

		r.Get("/sales", h.ListSales)
		r.Get("/sales/{id}", h.ShowSale)
		r.Get("/sales/{id}/summary", h.SaleSummary)
		r.Get("/sales/{id}/purchases", h.ListPurchases)
		r.Post("/sales/{id}/purchases", h.CreatePurchase)
		r.Get("/sales/{id}/purchases/export", h.ExportPurchases)
		r.Post("/sales/{id}/purchases/upload", h.UploadPurchases)

		r.Get("/purchases/template", h.PurchaseTemplate)
		r.Delete("/purchases/{id}", h.DeletePurchase)
		r.Get("/purchases/{id}/addresses", h.ListAddresses)
		r.Get("/purchases/{id}/addresses/export", h.ExportAddresses)
		r.Post("/purchases/{id}/addresses/upload", h.UploadAddresses)

		r.Post("/addresses/{id}/status", h.UpdateAddressStatus)
		r.Post("/dispatch", h.Dispatch)
	})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	offers, err := h.service.ListOffers(r.Context(), OfferStatus(q.Get("status")), limit, offset)
	if err != nil {
		h.logger.Error("list offers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"offers": offers})
}

func (h *Handler) ShowOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid offer id")
		return
	}
	offer, err := h.service.GetOffer(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, offer)
}

func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var input OfferInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		input.ActorID = actor.ID
	}
	offer, err := h.service.CreateOffer(r.Context(), input)
	if err != nil {
		h.logger.Error("create offer", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, offer)
}

func (h *Handler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid offer id")
		return
	}
	var updates map[string]interface{}
	if err := httpx.DecodeJSON(r, &updates); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	offer, err := h.service.UpdateOffer(r.Context(), id, updates)
	if err != nil {
		switch {
		case errors.Is(err, ErrOfferNotFound):
			httpx.RespondError(w, httpx.ErrNotFound)
		case errors.Is(err, ErrOfferLocked):
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		default:
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		}
		return
	}
	httpx.JSON(w, http.StatusOK, offer)
}

func (h *Handler) TransitionOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid offer id")
		return
	}
	var body struct {
		Status OfferStatus `json:"status" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil || body.Status == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "status required")
		return
	}
	var actorID int64
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		actorID = actor.ID
	}
	offer, err := h.service.TransitionOffer(r.Context(), id, body.Status, actorID)
	if err != nil {
		switch {
		case errors.Is(err, ErrOfferNotFound):
			httpx.RespondError(w, httpx.ErrNotFound)
		case errors.Is(err, ErrInvalidStatus):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("transition offer", slog.Any("error", err), slog.Int64("id", id))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, offer)
}

func (h *Handler) UpdateAddressStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid address id")
		return
	}
	var body struct {
		Status AddressStatus `json:"status" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil || body.Status == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "status required")
		return
	}
	var actorID int64
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		actorID = actor.ID
	}
	addr, err := h.service.UpdateAddressStatus(r.Context(), id, body.Status, actorID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAddressNotFound):
			httpx.RespondError(w, httpx.ErrNotFound)
		case errors.Is(err, ErrInvalidStatus):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("update address status", slog.Any("error", err), slog.Int64("id", id))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, addr)
}

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid offer id")
		return
	}
	var actorID int64
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		actorID = actor.ID
	}
	sale, err := h.service.CreateSale(r.Context(), id, actorID)
	if err != nil {
		switch {
		case errors.Is(err, ErrOfferNotFound):
			httpx.RespondError(w, httpx.ErrNotFound)
		case errors.Is(err, ErrOfferNotActive):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("create sale", slog.Any("error", err), slog.Int64("offer_id", id))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	sales, err := h.service.ListSales(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (h *Handler) ShowSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSaleNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) SaleSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}
	summary, err := h.summaries.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSaleNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("sale summary", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}
	purchases, err := h.service.ListPurchases(r.Context(), id)
	if err != nil {
		h.logger.Error("list purchases", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": purchases})
}

type purchaseRequest struct {
	PurchaseInput
	PurchaseDate string `json:"purchase_date"`
}

func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}
	var req purchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	req.PurchaseInput.SaleID = saleID
	if err := h.validate.Struct(req.PurchaseInput); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.PurchaseDate != "" {
		date, err := excelx.ParseJalali(req.PurchaseDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase date")
			return
		}
		req.PurchaseInput.PurchaseDate = date
	}
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		req.PurchaseInput.ActorID = actor.ID
	}

	p, err := h.service.CreatePurchase(r.Context(), req.PurchaseInput)
	if err != nil {
		switch {
		case errors.Is(err, ErrSaleNotFound):
			httpx.RespondError(w, httpx.ErrNotFound)
		case errors.Is(err, ErrDuplicateNumber):
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
		case errors.Is(err, ErrCottageMismatch), errors.Is(err, ErrOversell):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("create purchase", slog.Any("error", err))
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) DeletePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase id")
		return
	}
	var actorID int64
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		actorID = actor.ID
	}
	if err := h.service.DeletePurchase(r.Context(), id, actorID); err != nil {
		if errors.Is(err, ErrPurchaseNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("delete purchase", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PurchaseTemplate(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.PurchaseTemplate()
	if err != nil {
		h.logger.Error("purchase template", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	writeWorkbook(w, f, "purchase-template.xlsx")
}

func (h *Handler) ExportPurchases(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}
	f, err := h.service.ExportPurchases(r.Context(), id)
	if err != nil {
		h.logger.Error("export purchases", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	writeWorkbook(w, f, fmt.Sprintf("sale-%d-purchases.xlsx", id))
}

func (h *Handler) UploadPurchases(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}
	data, ok := h.uploadBytes(w, r)
	if !ok {
		return
	}

	var actorID int64
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		actorID = actor.ID
	}

	if r.URL.Query().Get("async") == "1" && h.queue != nil {
		if err := h.queue.EnqueueImportPurchases(r.Context(), id, actorID, data); err != nil {
			h.logger.Error("queue purchases upload", slog.Any("error", err), slog.Int64("id", id))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]any{"queued": true})
		return
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "could not read workbook")
		return
	}
	defer f.Close()

	result, err := h.service.ImportPurchases(r.Context(), id, f, actorID)
	if err != nil {
		var missing *excelx.MissingHeadersError
		if errors.As(err, &missing) {
			httpx.BatchProblem(w, "Missing Headers", missing.Fields)
			return
		}
		h.logger.Error("upload purchases", slog.Any("error", err), slog.Int64("id", id))
		httpx.Problem(w, http.StatusBadRequest, "Upload Failed", err.Error())
		return
	}
	status := http.StatusOK
	if len(result.Errors) > 0 && result.Created == 0 {
		status = http.StatusBadRequest
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase id")
		return
	}
	addresses, err := h.service.ListAddresses(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrPurchaseNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("list addresses", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"addresses": addresses})
}

func (h *Handler) ExportAddresses(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase id")
		return
	}
	f, err := h.service.ExportAddresses(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrPurchaseNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("export addresses", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	writeWorkbook(w, f, fmt.Sprintf("purchase-%d-addresses.xlsx", id))
}

func (h *Handler) UploadAddresses(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase id")
		return
	}
	f, ok := h.openUpload(w, r)
	if !ok {
		return
	}
	defer f.Close()

	var actorID int64
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		actorID = actor.ID
	}
	result, err := h.service.ImportAddresses(r.Context(), id, f, actorID)
	if err != nil {
		var missing *excelx.MissingHeadersError
		if errors.As(err, &missing) {
			httpx.BatchProblem(w, "Missing Headers", missing.Fields)
			return
		}
		if errors.Is(err, ErrPurchaseNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("upload addresses", slog.Any("error", err), slog.Int64("id", id))
		httpx.Problem(w, http.StatusBadRequest, "Upload Failed", err.Error())
		return
	}
	status := http.StatusOK
	if len(result.Errors) > 0 && result.Created == 0 {
		status = http.StatusBadRequest
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AddressIDs []int64 `json:"address_ids" validate:"required,min=1"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var actorID int64
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		actorID = actor.ID
	}
	orders, err := h.service.Dispatch(r.Context(), body.AddressIDs, actorID)
	if err != nil {
		h.logger.Error("dispatch addresses", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Dispatch Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"orders": orders})
}

func (h *Handler) uploadBytes(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "expected multipart form upload")
		return nil, false
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "file field required")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "could not read upload")
		return nil, false
	}
	return data, true
}

func (h *Handler) openUpload(w http.ResponseWriter, r *http.Request) (*excelize.File, bool) {
	data, ok := h.uploadBytes(w, r)
	if !ok {
		return nil, false
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "could not read workbook")
		return nil, false
	}
	return f, true
}

func writeWorkbook(w http.ResponseWriter, f *excelize.File, filename string) {
	defer f.Close()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_ = f.Write(w)
}
