package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"ventas-sync/internal/domain"
	"ventas-sync/internal/service"
	"ventas-sync/pkg/response"

	"github.com/go-playground/validator/v10"
)

type AuthHandler struct {
	service  *service.AuthService
	validate *validator.Validate
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	resp, err := h.service.Login(&req)
	if err != nil {
		if errors.Is(err, service.ErrPINInvalido) {
			response.Unauthorized(w, "Invalid PIN")
			return
		}
		response.InternalError(w, "Failed to log in")
		return
	}

	response.Success(w, resp)
}
