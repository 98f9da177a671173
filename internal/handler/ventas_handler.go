package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"ventas-sync/internal/domain"
	"ventas-sync/internal/repository"
	"ventas-sync/internal/service"
	"ventas-sync/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type VentasHandler struct {
	service  *service.VentasService
	validate *validator.Validate
}

func NewVentasHandler(service *service.VentasService) *VentasHandler {
	return &VentasHandler{
		service:  service,
		validate: validator.New(),
	}
}

// List returns the current in-memory view. `?refresh=true` forces a reload
// through the reconciler first; `?cliente=` filters by client name. The
// response is tagged with the source tier the view came from.
func (h *VentasHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		if _, err := h.service.Refresh(r.Context()); err != nil {
			response.InternalError(w, "Failed to load ventas")
			return
		}
	}

	var ventas []domain.Venta
	if cliente := r.URL.Query().Get("cliente"); cliente != "" {
		ventas = h.service.ByCliente(cliente)
	} else {
		ventas = h.service.List()
	}
	if ventas == nil {
		ventas = []domain.Venta{}
	}

	response.JSONFromSource(w, http.StatusOK, ventas, string(h.service.LastSource()))
}

func (h *VentasHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateVentaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	venta, err := h.service.Create(r.Context(), &req)
	if err != nil {
		if isValidationError(err) {
			response.BadRequest(w, err.Error())
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.Created(w, venta)
}

func (h *VentasHandler) UpdatePagado(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req domain.UpdatePagadoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.service.UpdatePagado(r.Context(), id, *req.Pagado); err != nil {
		if errors.Is(err, repository.ErrVentaNotFound) {
			response.NotFound(w, "Venta not found")
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.Success(w, map[string]bool{"pagado": *req.Pagado})
}

func (h *VentasHandler) AddAbono(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req domain.AddAbonoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}
	if !req.Monto.IsPositive() {
		response.BadRequest(w, "abono monto must be positive")
		return
	}

	venta, err := h.service.AddAbono(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, repository.ErrVentaNotFound) {
			response.NotFound(w, "Venta not found")
			return
		}
		if errors.Is(err, service.ErrSinConexion) {
			response.Error(w, http.StatusServiceUnavailable, "Abonos require connectivity")
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.Success(w, venta)
}

func (h *VentasHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req domain.UpdateVentaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	venta, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, repository.ErrVentaNotFound) {
			response.NotFound(w, "Venta not found")
			return
		}
		if errors.Is(err, service.ErrSinConexion) {
			response.Error(w, http.StatusServiceUnavailable, "Edits require connectivity")
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.Success(w, venta)
}

func (h *VentasHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrVentaNotFound) {
			response.NotFound(w, "Venta not found")
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.Success(w, map[string]string{"deleted": id})
}

// ListFailed exposes creates that reached neither the remote store nor the
// offline queue, so the user can retry or discard them.
func (h *VentasHandler) ListFailed(w http.ResponseWriter, r *http.Request) {
	failed := h.service.FailedItems()
	if failed == nil {
		failed = []service.FailedVenta{}
	}
	response.Success(w, failed)
}

func (h *VentasHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	venta, err := h.service.RetryFailed(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrVentaNotFound) {
			response.NotFound(w, "Failed item not found")
			return
		}
		response.InternalError(w, err.Error())
		return
	}

	response.Success(w, venta)
}

func (h *VentasHandler) DiscardFailed(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !h.service.DiscardFailed(id) {
		response.NotFound(w, "Failed item not found")
		return
	}
	response.Success(w, map[string]string{"discarded": id})
}

func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrClienteVacio) ||
		errors.Is(err, domain.ErrSinProductos) ||
		errors.Is(err, domain.ErrPagoExcedente)
}
