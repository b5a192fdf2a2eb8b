package customer_test

import (
	"fmt"
	"testing"

	"customer-service/internal/domain/customer"
	"customer-service/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
)

func TestAuthorizeMutation(t *testing.T) {
	tests := []struct {
		name     string
		caller   *customer.Identity
		target   string
		expected error
	}{
		{"No identity", nil, "876", apperrors.ErrUnauthenticated},
		{"Missing security context", &customer.Identity{CustomerID: "876"}, "876", apperrors.ErrForbidden},
		{"Other customer", &customer.Identity{CustomerID: "123", SecurityContext: true}, "876", apperrors.ErrUnauthorized},
		{"Own record", &customer.Identity{CustomerID: "876", SecurityContext: true}, "876", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := customer.AuthorizeMutation(tt.caller, tt.target)
			if tt.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestAuthorizeMutation_AnyOtherCallerIsUnauthorized(t *testing.T) {
	for i := 0; i < 50; i++ {
		caller := &customer.Identity{CustomerID: fmt.Sprintf("caller-%d", i), SecurityContext: true}
		target := fmt.Sprintf("target-%d", i)
		assert.ErrorIs(t, customer.AuthorizeMutation(caller, target), apperrors.ErrUnauthorized)
	}
}
