package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJSONContext(method, target string, body any, user *uuid.UUID) (*gin.Context, *httptest.ResponseRecorder) {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	if user != nil {
		c.Set(middleware.CtxUserID, *user)
	}
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "missing data in %s", w.Body.String())
	return data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// --- Operation Handler Tests ---

func TestExecute_CashIn(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dispatcher := mocks.NewMockOperationDispatcher(ctrl)
	h := NewOperationHandler(dispatcher)

	userID := uuid.New()
	opID := uuid.New()
	consumerBal := decimal.RequireFromString("100.00")

	dispatcher.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.OperationRequest) (*domain.OperationResult, error) {
			assert.Equal(t, domain.OperationCashIn, req.Kind)
			assert.Equal(t, userID, req.Actor)
			assert.Equal(t, "100.00", req.Amount.StringFixed(2))
			assert.Equal(t, "consumer@example.com", req.CounterpartyEmail)
			assert.Equal(t, "key-1", req.IdempotencyKey)
			return &domain.OperationResult{
				Success:               true,
				OperationID:           opID,
				Operation:             domain.OperationCashIn,
				Amount:                req.Amount,
				NewSourceBalance:      decimal.RequireFromString("400.00"),
				NewDestinationBalance: &consumerBal,
				Message:               "Successfully cashed-in 100.00 to consumer@example.com.",
			}, nil
		})

	c, w := newJSONContext(http.MethodPost, "/api/v1/operations", dto.OperationRequest{
		Kind:              "cash_in",
		Amount:            "100.00",
		CounterpartyEmail: "consumer@example.com",
	}, &userID)
	c.Request.Header.Set(HeaderIdempotencyKey, "key-1")

	h.Execute(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["success"])
	assert.Equal(t, opID.String(), data["operation_id"])
	assert.Equal(t, "Successfully cashed-in 100.00 to consumer@example.com.", data["message"])
}

func TestExecute_UtilityAndPurchaseMapping(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dispatcher := mocks.NewMockOperationDispatcher(ctrl)
	h := NewOperationHandler(dispatcher)
	userID := uuid.New()
	productID := uuid.New()

	var got []ports.OperationRequest
	dispatcher.EXPECT().Execute(gomock.Any(), gomock.Any()).Times(2).DoAndReturn(
		func(_ context.Context, req ports.OperationRequest) (*domain.OperationResult, error) {
			got = append(got, req)
			return &domain.OperationResult{Success: true}, nil
		})

	c, w := newJSONContext(http.MethodPost, "/", dto.OperationRequest{
		Kind:        "utility_payment",
		Amount:      "12.5",
		PayerKind:   "agent",
		UtilityType: "electricity",
		MeterNumber: "M-100",
	}, &userID)
	h.Execute(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newJSONContext(http.MethodPost, "/", dto.OperationRequest{
		Kind:      "purchase",
		ProductID: productID.String(),
	}, &userID)
	h.Execute(c)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, got, 2)
	assert.Equal(t, domain.KindAgent, got[0].ActorKind)
	assert.Equal(t, domain.UtilityElectricity, got[0].Utility.Type)
	assert.Equal(t, "M-100", got[0].Utility.MeterNumber)
	assert.Equal(t, "12.50", got[0].Amount.StringFixed(2))
	assert.Equal(t, productID, got[1].ProductID)
	assert.True(t, got[1].Amount.IsZero())
	assert.Empty(t, got[1].IdempotencyKey)
}

func TestExecute_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewOperationHandler(mocks.NewMockOperationDispatcher(ctrl))
	userID := uuid.New()

	tests := []struct {
		name string
		body dto.OperationRequest
	}{
		{"missing kind", dto.OperationRequest{Amount: "1"}},
		{"three decimals", dto.OperationRequest{Kind: "cash_in", Amount: "1.001"}},
		{"bad product id", dto.OperationRequest{Kind: "purchase", ProductID: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newJSONContext(http.MethodPost, "/", tt.body, &userID)
			h.Execute(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "validation_error", decodeError(t, w)["error_kind"])
		})
	}
}

func TestExecute_IdempotencyKeyTooLong(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewOperationHandler(mocks.NewMockOperationDispatcher(ctrl))
	userID := uuid.New()

	c, w := newJSONContext(http.MethodPost, "/", dto.OperationRequest{Kind: "cash_in", Amount: "1"}, &userID)
	c.Request.Header.Set(HeaderIdempotencyKey, string(bytes.Repeat([]byte("k"), maxIdempotencyKeyLen+1)))
	h.Execute(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecute_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewOperationHandler(mocks.NewMockOperationDispatcher(ctrl))
	c, w := newJSONContext(http.MethodPost, "/", dto.OperationRequest{Kind: "cash_in", Amount: "1"}, nil)
	h.Execute(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExecute_DispatcherErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"insufficient funds", apperror.ErrInsufficientFunds(), http.StatusPaymentRequired, "insufficient_funds"},
		{"counterparty", apperror.ErrCounterpartyNotFound("Consumer"), http.StatusNotFound, "counterparty_not_found"},
		{"conflict", apperror.ErrConcurrencyConflict(errors.New("40001")), http.StatusConflict, "concurrency_conflict"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "unexpected_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			dispatcher := mocks.NewMockOperationDispatcher(ctrl)
			dispatcher.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil, tt.err)
			h := NewOperationHandler(dispatcher)

			userID := uuid.New()
			c, w := newJSONContext(http.MethodPost, "/", dto.OperationRequest{
				Kind: "cash_out", Amount: "5", CounterpartyEmail: "agent@example.com",
			}, &userID)
			h.Execute(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, tt.wantKind, resp["error_kind"])
			assert.NotContains(t, w.Body.String(), "40001", "internal cause must not leak")
		})
	}
}

// --- Account Handler Tests ---

func TestOpenAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountSvc := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(accountSvc)
	userID := uuid.New()

	account := domain.NewAccount(userID, domain.KindMerchant)
	accountSvc.EXPECT().OpenAccount(gomock.Any(), userID, domain.KindMerchant).Return(account, nil)

	c, w := newJSONContext(http.MethodPost, "/api/v1/accounts", dto.OpenAccountRequest{Kind: "merchant"}, &userID)
	h.Open(c)

	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, account.ID.String(), data["id"])
	assert.Equal(t, "0.00", data["balance"])
	assert.Equal(t, "merchant", data["kind"])
}

func TestOpenAccount_Duplicate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountSvc := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(accountSvc)
	userID := uuid.New()

	accountSvc.EXPECT().OpenAccount(gomock.Any(), userID, domain.KindAgent).Return(nil, apperror.ErrAccountExists("Agent"))

	c, w := newJSONContext(http.MethodPost, "/", dto.OpenAccountRequest{Kind: "agent"}, &userID)
	h.Open(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "LED_008", decodeError(t, w)["error_code"])
}

func TestGetBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountSvc := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(accountSvc)
	userID := uuid.New()

	account := domain.NewAccount(userID, domain.KindConsumer)
	account.Balance = decimal.RequireFromString("42.5")
	accountSvc.EXPECT().GetBalance(gomock.Any(), userID, domain.KindConsumer).Return(account, nil)

	c, w := newJSONContext(http.MethodGet, "/api/v1/accounts/consumer/balance", nil, &userID)
	c.Params = gin.Params{{Key: "kind", Value: "consumer"}}
	h.GetBalance(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42.50", decodeData(t, w)["balance"])
}

func TestGetBalance_UnknownKind(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAccountHandler(mocks.NewMockAccountService(ctrl))
	userID := uuid.New()

	c, w := newJSONContext(http.MethodGet, "/", nil, &userID)
	c.Params = gin.Params{{Key: "kind", Value: "admin"}}
	h.GetBalance(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListHistory_Paging(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountSvc := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(accountSvc)
	userID := uuid.New()

	entries := []domain.HistoryEntry{{
		ID:          uuid.New(),
		OperationID: uuid.New(),
		Operation:   domain.OperationPurchase,
		Amount:      decimal.RequireFromString("3"),
		Description: "Purchase: Tea from shop1",
		CreatedAt:   time.Now(),
	}}
	accountSvc.EXPECT().ListHistory(gomock.Any(), userID, domain.KindConsumer, 2, 5).Return(entries, int64(6), nil)

	c, w := newJSONContext(http.MethodGet, "/api/v1/accounts/consumer/history?page=2&page_size=5", nil, &userID)
	c.Params = gin.Params{{Key: "kind", Value: "consumer"}}
	h.ListHistory(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(6), data["total"])
	assert.Equal(t, float64(2), data["total_pages"])
	items := data["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "3.00", items[0].(map[string]any)["amount"])
}

func TestListHistory_DefaultsAndBadQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountSvc := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(accountSvc)
	userID := uuid.New()

	accountSvc.EXPECT().ListHistory(gomock.Any(), userID, domain.KindAgent, 1, defaultPageSize).Return(nil, int64(0), nil)

	c, w := newJSONContext(http.MethodGet, "/api/v1/accounts/agent/history", nil, &userID)
	c.Params = gin.Params{{Key: "kind", Value: "agent"}}
	h.ListHistory(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeData(t, w)["items"])

	c, w = newJSONContext(http.MethodGet, "/api/v1/accounts/agent/history?page_size=1000", nil, &userID)
	c.Params = gin.Params{{Key: "kind", Value: "agent"}}
	h.ListHistory(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Product Handler Tests ---

func TestCreateProduct(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalogSvc := mocks.NewMockCatalogService(ctrl)
	h := NewProductHandler(catalogSvc)
	userID := uuid.New()
	merchantAccount := uuid.New()

	catalogSvc.EXPECT().CreateProduct(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CreateProductRequest) (*domain.Product, error) {
			assert.Equal(t, userID, req.Merchant)
			assert.Equal(t, "  Tea & Biscuits ", req.Name, "text reaches the service unescaped")
			assert.Equal(t, "2.25", req.Price.StringFixed(2))
			return &domain.Product{
				ID:        uuid.New(),
				Name:      req.Name,
				Price:     req.Price,
				OwnerID:   merchantAccount,
				CreatedAt: time.Now(),
			}, nil
		})

	c, w := newJSONContext(http.MethodPost, "/api/v1/products", dto.ProductRequest{
		Name:  "  Tea & Biscuits ",
		Price: "2.25",
	}, &userID)
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "2.25", data["price"])
	assert.Equal(t, merchantAccount.String(), data["owner_account_id"])
}

func TestCreateProduct_NotMerchant(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalogSvc := mocks.NewMockCatalogService(ctrl)
	h := NewProductHandler(catalogSvc)
	userID := uuid.New()

	catalogSvc.EXPECT().CreateProduct(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrAccountNotFound("Merchant"))

	c, w := newJSONContext(http.MethodPost, "/", dto.ProductRequest{Name: "Tea", Price: "1"}, &userID)
	h.Create(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "account_not_found", decodeError(t, w)["error_kind"])
}

func TestGetProduct(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalogSvc := mocks.NewMockCatalogService(ctrl)
	h := NewProductHandler(catalogSvc)

	id := uuid.New()
	catalogSvc.EXPECT().GetProduct(gomock.Any(), id).Return(nil, apperror.ErrNotFound("Product"))

	c, w := newJSONContext(http.MethodGet, "/", nil, nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newJSONContext(http.MethodGet, "/", nil, nil)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	h.Get(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListProducts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalogSvc := mocks.NewMockCatalogService(ctrl)
	h := NewProductHandler(catalogSvc)

	products := []domain.Product{
		{ID: uuid.New(), Name: "A", Price: decimal.NewFromInt(1)},
		{ID: uuid.New(), Name: "B", Price: decimal.NewFromInt(2)},
	}
	catalogSvc.EXPECT().ListProducts(gomock.Any(), 1, 2).Return(products, int64(3), nil)

	c, w := newJSONContext(http.MethodGet, "/api/v1/products?page_size=2", nil, nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Len(t, data["items"], 2)
	assert.Equal(t, float64(2), data["total_pages"])
}

func TestListMine(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalogSvc := mocks.NewMockCatalogService(ctrl)
	h := NewProductHandler(catalogSvc)
	userID := uuid.New()

	catalogSvc.EXPECT().ListOwnedProducts(gomock.Any(), userID).Return([]domain.Product{{ID: uuid.New(), Name: "Mine"}}, nil)

	c, w := newJSONContext(http.MethodGet, "/api/v1/products/mine", nil, &userID)
	h.ListMine(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(1), data["total"])
}

// --- Health Check Tests ---

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck()(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	db := mocks.NewMockHealthChecker(ctrl)
	db.EXPECT().Ping(gomock.Any()).Return(nil)
	db.EXPECT().Name().Return("postgresql").AnyTimes()
	cache := mocks.NewMockHealthChecker(ctrl)
	cache.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))
	cache.EXPECT().Name().Return("redis").AnyTimes()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(db, cache)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp struct {
		Status       string                      `json:"status"`
		Dependencies map[string]dependencyStatus `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "healthy", resp.Dependencies["postgresql"].Status)
	assert.Equal(t, "unhealthy", resp.Dependencies["redis"].Status)
}

func TestUpdateProduct(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalogSvc := mocks.NewMockCatalogService(ctrl)
	h := NewProductHandler(catalogSvc)
	userID := uuid.New()
	id := uuid.New()

	catalogSvc.EXPECT().UpdateProduct(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.UpdateProductRequest) (*domain.Product, error) {
			assert.Equal(t, userID, req.Merchant)
			assert.Equal(t, id, req.ProductID)
			assert.Equal(t, "Tom & Jerry's DVD", req.Name)
			return &domain.Product{ID: id, Name: req.Name, Price: req.Price, CreatedAt: time.Now()}, nil
		})

	c, w := newJSONContext(http.MethodPut, "/", dto.ProductRequest{Name: "Tom & Jerry's DVD", Price: "9.99"}, &userID)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	h.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "Tom & Jerry's DVD", data["name"])
	assert.Equal(t, "9.99", data["price"])
}

func TestUpdateProduct_BadInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewProductHandler(mocks.NewMockCatalogService(ctrl))
	userID := uuid.New()

	c, w := newJSONContext(http.MethodPut, "/", dto.ProductRequest{Name: "x", Price: "1"}, &userID)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	h.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newJSONContext(http.MethodPut, "/", dto.ProductRequest{Name: "x"}, &userID)
	c.Params = gin.Params{{Key: "id", Value: uuid.NewString()}}
	h.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteProduct(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalogSvc := mocks.NewMockCatalogService(ctrl)
	h := NewProductHandler(catalogSvc)
	userID := uuid.New()
	id := uuid.New()

	catalogSvc.EXPECT().DeleteProduct(gomock.Any(), userID, id).Return(nil)
	c, w := newJSONContext(http.MethodDelete, "/", nil, &userID)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	h.Delete(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeData(t, w)["deleted"])

	catalogSvc.EXPECT().DeleteProduct(gomock.Any(), userID, id).Return(apperror.ErrForbidden("Only the owning merchant can change this product"))
	c, w = newJSONContext(http.MethodDelete, "/", nil, &userID)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	h.Delete(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decodeError(t, w)["error_kind"])
}
