package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"customer-service/internal/api/handler/dto"
	mw "customer-service/internal/api/middleware"
	"customer-service/internal/domain/customer"
	"customer-service/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
)

type CustomerHandler struct {
	service customer.CustomerService
	logger  *slog.Logger
}

func NewCustomerHandler(s customer.CustomerService, l *slog.Logger) *CustomerHandler {
	if s == nil {
		panic("customer service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &CustomerHandler{
		service: s,
		logger:  l.With("component", "CustomerHandler"),
	}
}

func getCustomerIDFromURL(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		return "", fmt.Errorf("%w: customer id not found in URL path", apperrors.ErrInvalidArgument)
	}
	return id, nil
}

// logLevelFor keeps expected client-side failures out of the error log.
func logLevelFor(err error) slog.Level {
	if statusFor(err) >= http.StatusInternalServerError {
		return slog.LevelError
	}
	return slog.LevelWarn
}

// Health handles GET /customer/health
// @Summary Check document store connectivity
// @Tags Health
// @Produce json
// @Success 200 {object} dto.StatusResponse "Store reachable"
// @Failure 500 {object} dto.ErrorResponse "Store unreachable"
// @Router /customer/health [get]
func (h *CustomerHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CheckHealth(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "Health check failed", slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.StatusResponse{Status: "ok", Message: "Connected to document store"})
}

// AddCustomer handles POST /customer/add
// @Summary Add a customer
// @Description Creates a customer record. The id is generated when omitted. Username must be unique.
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body dto.CustomerRequest true "Customer to add"
// @Success 201 {object} dto.CustomerResponse "Customer created"
// @Header 201 {string} Location "Path of the new customer"
// @Failure 400 {object} dto.ErrorResponse "Invalid payload, or duplicate id or username"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customer/add [post]
func (h *CustomerHandler) AddCustomer(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Received add customer request")

	var req dto.CustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	created, err := h.service.AddCustomer(r.Context(), req.ToDomain())
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to add customer", slog.Any("error", err))
		respondError(w, err)
		return
	}

	w.Header().Set("Location", locationFor(r, created.ID))
	h.logger.InfoContext(r.Context(), "Customer added successfully", slog.String("customerID", created.ID))
	respondJSON(w, http.StatusCreated, dto.NewCustomerResponse(created))
}

// locationFor turns ".../customer/add" into ".../customer/{id}".
func locationFor(r *http.Request, id string) string {
	return path.Dir(r.URL.Path) + "/" + url.PathEscape(id)
}

// UpdateCustomer handles POST /customer/update/{id}
// @Summary Update own customer record
// @Description Replaces the record. The caller must own it and the body id must match the path id. The stored revision is always used.
// @Tags Customers
// @Accept json
// @Produce json
// @Param id path string true "Customer ID"
// @Param request body dto.CustomerRequest true "Replacement record"
// @Success 200 {object} dto.CustomerResponse "Customer updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid payload or no caller identity"
// @Failure 401 {object} dto.ErrorResponse "Caller does not own this record"
// @Failure 403 {object} dto.ErrorResponse "Caller lacks security context"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 409 {object} dto.ErrorResponse "Record changed concurrently"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customer/update/{id} [post]
// @Security BearerAuth
func (h *CustomerHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := getCustomerIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.CustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	caller := mw.IdentityFromContext(r.Context())
	updated, err := h.service.UpdateCustomer(r.Context(), caller, id, req.ToDomain())
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to update customer", slog.String("customerID", id), slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer updated successfully", slog.String("customerID", id))
	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(updated))
}

// SearchCustomers handles GET /customer/search
// @Summary Search customers by username
// @Tags Customers
// @Produce json
// @Param username query string true "Exact username"
// @Success 200 {array} dto.CustomerResponse "Matching customers, possibly empty"
// @Failure 400 {object} dto.ErrorResponse "Missing username"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customer/search [get]
func (h *CustomerHandler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")

	found, err := h.service.SearchByUsername(r.Context(), username)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to search customers", slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewCustomerResponses(found))
}

// GetCustomer handles GET /customer/{id}
// @Summary Look up a customer by id
// @Tags Customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {array} dto.CustomerResponse "Matching customers, possibly empty"
// @Failure 400 {object} dto.ErrorResponse "Missing id"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customer/{id} [get]
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := getCustomerIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	found, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to get customer", slog.String("customerID", id), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewCustomerResponses(found))
}

// DeleteCustomer handles POST /customer/delete/{id}
// @Summary Delete a customer
// @Tags Customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} dto.StatusResponse "Customer deleted"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 409 {object} dto.ErrorResponse "Record changed concurrently"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customer/delete/{id} [post]
func (h *CustomerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := getCustomerIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.service.DeleteCustomer(r.Context(), id); err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to delete customer", slog.String("customerID", id), slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer deleted successfully", slog.String("customerID", id))
	respondJSON(w, http.StatusOK, dto.StatusResponse{Status: "deleted", Message: fmt.Sprintf("Customer %s deleted", id)})
}

// ListCustomers handles GET /customer/list
// @Summary List all customers
// @Tags Customers
// @Produce json
// @Success 200 {array} dto.CustomerResponse "All customers, possibly empty"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customer/list [get]
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	resp := make([]dto.CustomerResponse, 0)
	for c, err := range h.service.ListCustomers(r.Context()) {
		if err != nil {
			h.logger.ErrorContext(r.Context(), "Service failed to list customers", slog.Any("error", err))
			respondError(w, err)
			return
		}
		resp = append(resp, dto.NewCustomerResponse(c))
	}

	h.logger.InfoContext(r.Context(), "Customers listed", slog.Int("count", len(resp)))
	respondJSON(w, http.StatusOK, resp)
}
