package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductHandler handles the merchant catalog endpoints.
type ProductHandler struct {
	catalogSvc ports.CatalogService
}

func NewProductHandler(catalogSvc ports.CatalogService) *ProductHandler {
	return &ProductHandler{catalogSvc: catalogSvc}
}

// Create handles POST /api/v1/products.
func (h *ProductHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	req, price, ok := bindProduct(c)
	if !ok {
		return
	}

	product, err := h.catalogSvc.CreateProduct(c.Request.Context(), ports.CreateProductRequest{
		Merchant:    userID,
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewProductResponse(product))
}

// List handles GET /api/v1/products?page=&page_size=.
func (h *ProductHandler) List(c *gin.Context) {
	page, pageSize, ok := bindPage(c)
	if !ok {
		return
	}

	products, total, err := h.catalogSvc.ListProducts(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewProductListResponse(products, total, page, pageSize))
}

// Get handles GET /api/v1/products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("Invalid product id"))
		return
	}

	product, err := h.catalogSvc.GetProduct(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewProductResponse(product))
}

// ListMine handles GET /api/v1/products/mine.
func (h *ProductHandler) ListMine(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	products, err := h.catalogSvc.ListOwnedProducts(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewProductListResponse(products, int64(len(products)), 1, len(products)))
}

// Update handles PUT /api/v1/products/:id.
func (h *ProductHandler) Update(c *gin.Context) {
	userID, id, ok := ownerPath(c)
	if !ok {
		return
	}
	req, price, ok := bindProduct(c)
	if !ok {
		return
	}

	product, err := h.catalogSvc.UpdateProduct(c.Request.Context(), ports.UpdateProductRequest{
		Merchant:    userID,
		ProductID:   id,
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewProductResponse(product))
}

// Delete handles DELETE /api/v1/products/:id.
func (h *ProductHandler) Delete(c *gin.Context) {
	userID, id, ok := ownerPath(c)
	if !ok {
		return
	}
	if err := h.catalogSvc.DeleteProduct(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": id.String(), "deleted": true})
}

func ownerPath(c *gin.Context) (userID, id uuid.UUID, ok bool) {
	userID, ok = middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return userID, id, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("Invalid product id"))
		return userID, id, false
	}
	return userID, id, true
}

func bindProduct(c *gin.Context) (dto.ProductRequest, decimal.Decimal, bool) {
	var req dto.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return req, decimal.Decimal{}, false
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		response.Error(c, apperror.Validation("Invalid price"))
		return req, decimal.Decimal{}, false
	}
	return req, price, true
}
