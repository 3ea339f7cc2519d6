package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// catalogService implements ports.CatalogService.
type catalogService struct {
	products ports.ProductRepository
	resolver ports.AccountResolver
	log      zerolog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(products ports.ProductRepository, resolver ports.AccountResolver, log zerolog.Logger) ports.CatalogService {
	return &catalogService{
		products: products,
		resolver: resolver,
		log:      log,
	}
}

// CreateProduct adds a product owned by the merchant's account.
func (s *catalogService) CreateProduct(ctx context.Context, req ports.CreateProductRequest) (*domain.Product, error) {
	name, err := validateProduct(req.Name, req.Price)
	if err != nil {
		return nil, err
	}

	merchant, err := s.resolver.Resolve(ctx, req.Merchant, domain.KindMerchant)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		OwnerID:     merchant.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create product: %w", err))
	}

	s.log.Info().
		Str("product_id", product.ID.String()).
		Str("merchant_account", merchant.ID.String()).
		Str("price", product.Price.StringFixed(domain.MoneyScale)).
		Msg("product created")

	return product, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if p == nil {
		return nil, apperror.ErrNotFound("Product")
	}
	return p, nil
}

func (s *catalogService) ListProducts(ctx context.Context, page, pageSize int) ([]domain.Product, int64, error) {
	page, pageSize, err := pageBounds(page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	products, total, err := s.products.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return products, total, nil
}

// ListOwnedProducts lists the products of the identity's merchant account.
func (s *catalogService) ListOwnedProducts(ctx context.Context, identity uuid.UUID) ([]domain.Product, error) {
	merchant, err := s.resolver.Resolve(ctx, identity, domain.KindMerchant)
	if err != nil {
		return nil, err
	}
	products, err := s.products.ListByOwner(ctx, merchant.ID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return products, nil
}

// UpdateProduct replaces name, description and price of a product the
// merchant owns. Later purchases debit the new price; history keeps the old text.
func (s *catalogService) UpdateProduct(ctx context.Context, req ports.UpdateProductRequest) (*domain.Product, error) {
	name, err := validateProduct(req.Name, req.Price)
	if err != nil {
		return nil, err
	}
	product, err := s.ownedProduct(ctx, req.Merchant, req.ProductID)
	if err != nil {
		return nil, err
	}

	product.Name = name
	product.Description = strings.TrimSpace(req.Description)
	product.Price = req.Price
	product.UpdatedAt = time.Now().UTC()
	if err := s.products.Update(ctx, product); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperror.ErrNotFound("Product")
		}
		return nil, apperror.InternalError(err)
	}

	s.log.Info().
		Str("product_id", product.ID.String()).
		Str("price", product.Price.StringFixed(domain.MoneyScale)).
		Msg("product updated")
	return product, nil
}

// DeleteProduct removes a product the merchant owns.
func (s *catalogService) DeleteProduct(ctx context.Context, merchant, id uuid.UUID) error {
	if _, err := s.ownedProduct(ctx, merchant, id); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return apperror.ErrNotFound("Product")
		}
		return apperror.InternalError(err)
	}
	s.log.Info().Str("product_id", id.String()).Msg("product deleted")
	return nil
}

// ownedProduct loads a product and checks it belongs to the identity's merchant account.
func (s *catalogService) ownedProduct(ctx context.Context, identity, id uuid.UUID) (*domain.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	merchant, err := s.resolver.Resolve(ctx, identity, domain.KindMerchant)
	if err != nil {
		return nil, err
	}
	if product.OwnerID != merchant.ID {
		return nil, apperror.ErrForbidden("Only the owning merchant can change this product")
	}
	return product, nil
}

func validateProduct(name string, price decimal.Decimal) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.Validation("Product name is required")
	}
	if !domain.ValidAmount(price) {
		return "", apperror.Validation("Price must be positive with at most two decimal places")
	}
	return name, nil
}
