package customer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"customer-service/internal/event"
	"customer-service/internal/infrastructure/monitoring"
	"customer-service/internal/pkg/apperrors"
	"customer-service/internal/pkg/docstore"

	"github.com/google/uuid"
)

const (
	inputValidationPassed = "Input validation passed"
	customerNotFound      = "Customer not found"
)

type CustomerService interface {
	AddCustomer(ctx context.Context, payload *Customer) (*Customer, error)
	UpdateCustomer(ctx context.Context, caller *Identity, id string, payload *Customer) (*Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	SearchByUsername(ctx context.Context, username string) ([]*Customer, error)
	GetCustomer(ctx context.Context, id string) ([]*Customer, error)
	ListCustomers(ctx context.Context) iter.Seq2[*Customer, error]
	CheckHealth(ctx context.Context) error
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	coll    docstore.Collection
	queries *QueryBuilder
	guard   *ConsistencyGuard
	pub     event.EventPublisher
	logger  *slog.Logger
}

func NewCustomerService(coll docstore.Collection, eventPublisher event.EventPublisher, logger *slog.Logger) CustomerService {
	if coll == nil {
		panic("customer collection cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if eventPublisher == nil {
		logger.Warn("No event publisher provided to NewCustomerService, customer events will not be published")
		eventPublisher = event.NoopPublisher{}
	}

	return &customerService{
		coll:    coll,
		queries: NewQueryBuilder(coll, logger),
		guard:   NewConsistencyGuard(coll, logger),
		pub:     eventPublisher,
		logger:  logger.With(slog.String("component", "customerService")),
	}
}

func NewCustomerEventPayload(cust *Customer) event.CustomerEventPayload {
	if cust == nil {
		return event.CustomerEventPayload{}
	}
	return event.CustomerEventPayload{
		CustomerID: cust.ID,
		Revision:   cust.Rev,
		Username:   cust.Username,
		FirstName:  cust.FirstName,
		LastName:   cust.LastName,
		Email:      cust.Email,
		ImageURL:   cust.ImageURL,
	}
}

// NewCustomerID returns a 32 character hex id, the shape document stores
// assign when the client does not supply one.
func NewCustomerID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *customerService) AddCustomer(ctx context.Context, payload *Customer) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to add customer")

	if payload == nil {
		return nil, fmt.Errorf("%w: customer payload is required", apperrors.ErrInvalidArgument)
	}
	if strings.TrimSpace(payload.Username) == "" {
		s.logger.WarnContext(ctx, "Validation failed: username is empty")
		return nil, apperrors.NewValidationError("username", "cannot be empty")
	}
	log := s.logger.With(slog.String("username", payload.Username))
	log.DebugContext(ctx, inputValidationPassed)

	if payload.ID != "" {
		exists, err := s.coll.Contains(ctx, payload.ID)
		if err != nil {
			log.ErrorContext(ctx, "Failed to check for existing id", slog.Any("error", err))
			return nil, apperrors.WrapStoreError(apperrors.ErrStoreUnavailable, err, "failed to check customer id")
		}
		if exists {
			log.WarnContext(ctx, "Customer id already exists", "id", payload.ID)
			return nil, fmt.Errorf("%w: customer with id %s already exists", apperrors.ErrAlreadyExists, payload.ID)
		}
	}

	matches, err := s.queries.FindByUsername(ctx, payload.Username)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		log.WarnContext(ctx, "Username already exists")
		return nil, fmt.Errorf("%w: username %s already exists", apperrors.ErrAlreadyExists, payload.Username)
	}

	cust := payload.Clone()
	cust.Rev = ""
	if cust.ID == "" {
		cust.ID = NewCustomerID()
	}

	rev, err := s.coll.Insert(ctx, cust.ID, cust)
	if err != nil {
		switch {
		case errors.Is(err, docstore.ErrDocumentExists):
			log.WarnContext(ctx, "Lost race on customer id", "id", cust.ID)
			return nil, fmt.Errorf("%w: customer with id %s already exists", apperrors.ErrAlreadyExists, cust.ID)
		case errors.Is(err, docstore.ErrDuplicateKey):
			log.WarnContext(ctx, "Lost race on username")
			return nil, fmt.Errorf("%w: username %s already exists", apperrors.ErrAlreadyExists, cust.Username)
		}
		log.ErrorContext(ctx, "Store failed to insert customer", slog.Any("error", err))
		return nil, apperrors.WrapStoreError(apperrors.ErrStoreUnavailable, err, "failed to save new customer")
	}
	cust.Rev = rev

	log = log.With(slog.String("customerID", cust.ID))
	log.InfoContext(ctx, "Successfully added customer, publishing creation event")
	s.publishCreated(ctx, cust)
	return cust, nil
}

func (s *customerService) UpdateCustomer(ctx context.Context, caller *Identity, id string, payload *Customer) (*Customer, error) {
	log := s.logger.With(slog.String("customerID", id))
	log.InfoContext(ctx, "Attempting to update customer")

	if err := AuthorizeMutation(caller, id); err != nil {
		log.WarnContext(ctx, "Update rejected by authorization gate", slog.Any("error", err))
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: customer payload is required", apperrors.ErrInvalidArgument)
	}
	if payload.ID != id {
		log.WarnContext(ctx, "Payload id does not match target", "payloadID", payload.ID)
		return nil, fmt.Errorf("%w: payload id %q does not match customer %s", apperrors.ErrUnauthorized, payload.ID, id)
	}

	merged, err := s.guard.PrepareUpdate(ctx, id, payload)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Write(ctx, merged); err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "Successfully updated customer")
	s.publishUpdated(ctx, merged)
	return merged, nil
}

func (s *customerService) DeleteCustomer(ctx context.Context, id string) error {
	log := s.logger.With(slog.String("customerID", id))
	log.InfoContext(ctx, "Attempting to delete customer")

	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: customer id is required", apperrors.ErrInvalidArgument)
	}

	current, err := s.guard.PrepareDelete(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.WarnContext(ctx, customerNotFound)
		}
		return err
	}
	if err := s.guard.Remove(ctx, current); err != nil {
		return err
	}

	log.InfoContext(ctx, "Successfully deleted customer")
	s.publishDeleted(ctx, id)
	return nil
}

func (s *customerService) SearchByUsername(ctx context.Context, username string) ([]*Customer, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username is required", apperrors.ErrInvalidArgument)
	}
	return s.queries.FindByUsername(ctx, username)
}

func (s *customerService) GetCustomer(ctx context.Context, id string) ([]*Customer, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: customer id is required", apperrors.ErrInvalidArgument)
	}
	return s.queries.FindByID(ctx, id)
}

func (s *customerService) ListCustomers(ctx context.Context) iter.Seq2[*Customer, error] {
	return s.queries.FindAll(ctx)
}

func (s *customerService) CheckHealth(ctx context.Context) error {
	if err := s.coll.Info(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Store health check failed", slog.Any("error", err))
		return apperrors.WrapStoreError(apperrors.ErrStoreUnavailable, err, "document store is unreachable")
	}
	return nil
}

func (s *customerService) publishCreated(ctx context.Context, cust *Customer) {
	monitoring.RecordCustomerEvent("created")
	evt := event.CustomerCreatedEvent{Timestamp: time.Now(), Payload: NewCustomerEventPayload(cust)}
	if err := s.pub.PublishCustomerCreated(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "Customer created, but FAILED to publish creation event", "customerID", cust.ID, slog.Any("error", err))
	}
}

func (s *customerService) publishUpdated(ctx context.Context, cust *Customer) {
	monitoring.RecordCustomerEvent("updated")
	evt := event.CustomerUpdatedEvent{Timestamp: time.Now(), Payload: NewCustomerEventPayload(cust)}
	if err := s.pub.PublishCustomerUpdated(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "Customer updated, but FAILED to publish update event", "customerID", cust.ID, slog.Any("error", err))
	}
}

func (s *customerService) publishDeleted(ctx context.Context, id string) {
	monitoring.RecordCustomerEvent("deleted")
	evt := event.CustomerDeletedEvent{Timestamp: time.Now(), CustomerID: id}
	if err := s.pub.PublishCustomerDeleted(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "Customer deleted, but FAILED to publish deletion event", "customerID", id, slog.Any("error", err))
	}
}
