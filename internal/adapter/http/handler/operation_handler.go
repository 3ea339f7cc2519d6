package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HeaderIdempotencyKey carries the optional client idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// OperationHandler exposes the operation dispatcher.
type OperationHandler struct {
	dispatcher ports.OperationDispatcher
}

func NewOperationHandler(dispatcher ports.OperationDispatcher) *OperationHandler {
	return &OperationHandler{dispatcher: dispatcher}
}

// Execute handles POST /api/v1/operations.
func (h *OperationHandler) Execute(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var body dto.OperationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	key := c.GetHeader(HeaderIdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		response.Error(c, apperror.Validation("Idempotency-Key is too long"))
		return
	}

	req, err := toOperationRequest(userID, body)
	if err != nil {
		response.Error(c, err)
		return
	}
	req.IdempotencyKey = key

	result, err := h.dispatcher.Execute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

func toOperationRequest(actor uuid.UUID, body dto.OperationRequest) (ports.OperationRequest, error) {
	req := ports.OperationRequest{
		Kind:              domain.OperationKind(body.Kind),
		Actor:             actor,
		ActorKind:         domain.Kind(body.PayerKind),
		CounterpartyEmail: body.CounterpartyEmail,
		Utility: domain.UtilityBill{
			Type:        domain.UtilityType(body.UtilityType),
			MeterNumber: body.MeterNumber,
			PhoneNumber: body.PhoneNumber,
		},
	}
	if body.Amount != "" {
		amount, err := decimal.NewFromString(body.Amount)
		if err != nil {
			return req, apperror.ErrInvalidAmount()
		}
		req.Amount = amount
	}
	if body.ProductID != "" {
		id, err := uuid.Parse(body.ProductID)
		if err != nil {
			return req, apperror.Validation("Invalid product id")
		}
		req.ProductID = id
	}
	return req, nil
}
