package customer

import (
	"fmt"

	"customer-service/internal/pkg/apperrors"
)

// Identity is the already-validated caller claim handed to the core.
type Identity struct {
	CustomerID      string
	SecurityContext bool
}

// AuthorizeMutation allows a caller to change only its own record. The three
// failure kinds are kept distinct so the boundary can map them separately.
func AuthorizeMutation(caller *Identity, targetID string) error {
	if caller == nil {
		return fmt.Errorf("%w: no caller identity supplied", apperrors.ErrUnauthenticated)
	}
	if !caller.SecurityContext {
		return fmt.Errorf("%w: caller lacks the required security context", apperrors.ErrForbidden)
	}
	if caller.CustomerID != targetID {
		return fmt.Errorf("%w: caller %s may not modify customer %s", apperrors.ErrUnauthorized, caller.CustomerID, targetID)
	}
	return nil
}
