package stock

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/almacen-erp/almacen/internal/platform/httpx"
	"github.com/almacen-erp/almacen/internal/shared"
)

const idempotencyHeader = "Idempotency-Key"

// Handler exposes the stock engine over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers stock engine routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/restock", h.restock)
	r.Post("/adjust", h.adjust)
	r.Post("/transfer", h.transfer)
	r.Post("/sale", h.sale)
	r.Delete("/items/{productID}/{roomID}", h.removeItem)
	r.Get("/ledger", h.ledger)
}

type restockForm struct {
	ProductID     int64    `json:"product_id" validate:"required,gt=0"`
	RoomID        int64    `json:"room_id" validate:"required,gt=0"`
	Quantity      float64  `json:"quantity" validate:"gt=0"`
	UnitCost      *float64 `json:"unit_cost,omitempty" validate:"omitempty,gte=0"`
	SupplierID    int64    `json:"supplier_id,omitempty"`
	InvoiceNumber string   `json:"invoice_number,omitempty" validate:"max=64"`
	Notes         string   `json:"notes,omitempty" validate:"max=500"`
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	var form restockForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "product_id, room_id and a positive quantity are required")
		return
	}
	res, err := h.service.Restock(r.Context(), principal, RestockInput{
		ProductID:      form.ProductID,
		RoomID:         form.RoomID,
		Quantity:       form.Quantity,
		UnitCost:       form.UnitCost,
		SupplierID:     form.SupplierID,
		InvoiceNumber:  form.InvoiceNumber,
		Notes:          form.Notes,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		h.logger.Error("restock failed", slog.Int64("product_id", form.ProductID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

type adjustForm struct {
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	RoomID      int64   `json:"room_id" validate:"required,gt=0"`
	NewQuantity float64 `json:"new_quantity" validate:"gte=0"`
	Notes       string  `json:"notes,omitempty" validate:"max=500"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	var form adjustForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "product_id, room_id and a non-negative new_quantity are required")
		return
	}
	res, err := h.service.AdjustQuantity(r.Context(), principal, AdjustInput{
		ProductID:      form.ProductID,
		RoomID:         form.RoomID,
		NewQuantity:    form.NewQuantity,
		Notes:          form.Notes,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		h.logger.Error("adjust failed", slog.Int64("product_id", form.ProductID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

type transferForm struct {
	ProductID    int64   `json:"product_id" validate:"required,gt=0"`
	SourceRoomID int64   `json:"source_room_id" validate:"required,gt=0"`
	DestRoomID   int64   `json:"dest_room_id" validate:"required,gt=0"`
	Quantity     float64 `json:"quantity" validate:"gt=0"`
	Notes        string  `json:"notes,omitempty" validate:"max=500"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	var form transferForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "product_id, both rooms and a positive quantity are required")
		return
	}
	res, err := h.service.Transfer(r.Context(), principal, TransferInput{
		ProductID:      form.ProductID,
		SourceRoomID:   form.SourceRoomID,
		DestRoomID:     form.DestRoomID,
		Quantity:       form.Quantity,
		Notes:          form.Notes,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		h.logger.Error("transfer failed", slog.Int64("product_id", form.ProductID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

type saleForm struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	Notes     string  `json:"notes,omitempty" validate:"max=500"`
}

func (h *Handler) sale(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	var form saleForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "product_id and a positive quantity are required")
		return
	}
	res, err := h.service.RecordSale(r.Context(), principal, SaleInput{
		ProductID:      form.ProductID,
		Quantity:       form.Quantity,
		Notes:          form.Notes,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		h.logger.Error("sale failed", slog.Int64("product_id", form.ProductID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "invalid product id")
		return
	}
	roomID, err := strconv.ParseInt(chi.URLParam(r, "roomID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "invalid room id")
		return
	}
	res, err := h.service.RemoveItem(r.Context(), principal, productID, roomID)
	if err != nil {
		h.logger.Error("remove item failed", slog.Int64("product_id", productID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

type ledgerResponse struct {
	Transactions []Transaction `json:"transactions"`
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	q := r.URL.Query()

	var filter LedgerFilter
	var err error
	if v := q.Get("product_id"); v != "" {
		if filter.ProductID, err = strconv.ParseInt(v, 10, 64); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "product_id must be an integer")
			return
		}
	}
	if v := q.Get("room_id"); v != "" {
		if filter.RoomID, err = strconv.ParseInt(v, 10, 64); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "room_id must be an integer")
			return
		}
	}
	if v := q.Get("from"); v != "" {
		if filter.From, err = time.Parse(time.RFC3339, v); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "from must be an RFC 3339 timestamp")
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if filter.To, err = time.Parse(time.RFC3339, v); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "to must be an RFC 3339 timestamp")
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "limit must be an integer")
			return
		}
	}

	txs, err := h.service.Ledger(r.Context(), principal, filter)
	if err != nil {
		h.logger.Error("ledger list failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if txs == nil {
		txs = []Transaction{}
	}
	httpx.JSON(w, http.StatusOK, ledgerResponse{Transactions: txs})
}
