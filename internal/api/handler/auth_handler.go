package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"customer-service/internal/api/handler/dto"
	mw "customer-service/internal/api/middleware"
	"customer-service/internal/config"
	"customer-service/internal/pkg/apperrors"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

type AuthHandler struct {
	cfg    config.AuthConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthHandler(cfg config.AuthConfig, l *slog.Logger) *AuthHandler {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return &AuthHandler{
		cfg:    cfg,
		logger: l.With("component", "AuthHandler"),
		now:    time.Now,
	}
}

// GenerateBearerToken issues a token naming the caller and whether it holds a
// security context.
//
// @Summary Generate a JWT bearer token
// @Description Issues an HS256 token whose subject is the customer id. Present it as "Authorization: Bearer <token>" on update requests.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.TokenRequest true "Caller identity"
// @Success 200 {object} dto.TokenResponse "Token successfully generated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request parameters"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/token [post]
func (h *AuthHandler) GenerateBearerToken(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" {
		respondError(w, apperrors.NewValidationError("customerId", "customerId is required"))
		return
	}

	claims := jwt.MapClaims{
		"sub":                   req.CustomerID,
		mw.ClaimSecurityContext: req.SecurityContext,
		"exp":                   h.now().Add(h.cfg.TokenTTL).Unix(),
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to sign token", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: signing token: %v", apperrors.ErrInternalServer, err))
		return
	}

	h.logger.InfoContext(r.Context(), "Issued bearer token", slog.String("customerID", req.CustomerID))
	respondJSON(w, http.StatusOK, dto.TokenResponse{
		Token:     tokenString,
		ExpiresIn: int64(h.cfg.TokenTTL.Seconds()),
	})
}
