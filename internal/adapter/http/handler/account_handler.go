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
)

const defaultPageSize = 20

// AccountHandler handles account opening and read-side endpoints.
type AccountHandler struct {
	accountSvc ports.AccountService
}

func NewAccountHandler(accountSvc ports.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// Open handles POST /api/v1/accounts.
func (h *AccountHandler) Open(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	account, err := h.accountSvc.OpenAccount(c.Request.Context(), userID, domain.Kind(req.Kind))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewAccountResponse(account))
}

// GetBalance handles GET /api/v1/accounts/:kind/balance.
func (h *AccountHandler) GetBalance(c *gin.Context) {
	userID, kind, ok := accountPath(c)
	if !ok {
		return
	}

	account, err := h.accountSvc.GetBalance(c.Request.Context(), userID, kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAccountResponse(account))
}

// ListHistory handles GET /api/v1/accounts/:kind/history?page=&page_size=.
func (h *AccountHandler) ListHistory(c *gin.Context) {
	userID, kind, ok := accountPath(c)
	if !ok {
		return
	}
	page, pageSize, ok := bindPage(c)
	if !ok {
		return
	}

	entries, total, err := h.accountSvc.ListHistory(c.Request.Context(), userID, kind, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewHistoryListResponse(entries, total, page, pageSize))
}

// accountPath reads the caller and the :kind segment, writing the error response itself.
func accountPath(c *gin.Context) (userID uuid.UUID, kind domain.Kind, ok bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return id, "", false
	}
	kind, ok = domain.ParseKind(c.Param("kind"))
	if !ok {
		response.Error(c, apperror.Validation("Unknown account kind"))
		return id, "", false
	}
	return id, kind, true
}

func bindPage(c *gin.Context) (page, pageSize int, ok bool) {
	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return 0, 0, false
	}
	page, pageSize = q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return page, pageSize, true
}
