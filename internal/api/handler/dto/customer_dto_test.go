package dto

import (
	"encoding/json"
	"testing"

	"customer-service/internal/domain/customer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerRequestToDomain(t *testing.T) {
	req := CustomerRequest{
		ID:        "876",
		Rev:       "3-abc",
		Username:  "yooyo",
		Password:  "secret",
		FirstName: "Yo",
		LastName:  "Yo",
		Email:     "yooyo@example.com",
		ImageURL:  "http://img/876.png",
	}

	assert.Equal(t, &customer.Customer{
		ID:        "876",
		Rev:       "3-abc",
		Username:  "yooyo",
		Password:  "secret",
		FirstName: "Yo",
		LastName:  "Yo",
		Email:     "yooyo@example.com",
		ImageURL:  "http://img/876.png",
	}, req.ToDomain())
}

func TestCustomerResponseOmitsPassword(t *testing.T) {
	resp := NewCustomerResponse(&customer.Customer{ID: "876", Rev: "1-a", Username: "yooyo", Password: "secret"})

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), "password")
	assert.Contains(t, string(raw), `"_id":"876"`)
}

func TestNewCustomerResponses(t *testing.T) {
	assert.Equal(t, []CustomerResponse{}, NewCustomerResponses(nil))

	got := NewCustomerResponses([]*customer.Customer{{ID: "1"}, {ID: "2"}})
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[1].ID)
	assert.Equal(t, CustomerResponse{}, NewCustomerResponse(nil))
}
