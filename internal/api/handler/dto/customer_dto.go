package dto

import (
	"customer-service/internal/domain/customer"
)

// CustomerRequest is the body accepted by add and update. The revision is
// accepted for compatibility but never trusted.
type CustomerRequest struct {
	ID        string `json:"_id,omitempty"`
	Rev       string `json:"_rev,omitempty"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	ImageURL  string `json:"imageUrl"`
}

func (r *CustomerRequest) ToDomain() *customer.Customer {
	return &customer.Customer{
		ID:        r.ID,
		Rev:       r.Rev,
		Username:  r.Username,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		ImageURL:  r.ImageURL,
	}
}

// CustomerResponse omits the password.
type CustomerResponse struct {
	ID        string `json:"_id"`
	Rev       string `json:"_rev"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	ImageURL  string `json:"imageUrl"`
}

func NewCustomerResponse(cust *customer.Customer) CustomerResponse {
	if cust == nil {
		return CustomerResponse{}
	}
	return CustomerResponse{
		ID:        cust.ID,
		Rev:       cust.Rev,
		Username:  cust.Username,
		FirstName: cust.FirstName,
		LastName:  cust.LastName,
		Email:     cust.Email,
		ImageURL:  cust.ImageURL,
	}
}

func NewCustomerResponses(customers []*customer.Customer) []CustomerResponse {
	resp := make([]CustomerResponse, 0, len(customers))
	for _, c := range customers {
		resp = append(resp, NewCustomerResponse(c))
	}
	return resp
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	CustomerID      string `json:"customerId"`
	SecurityContext bool   `json:"securityContext"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}
