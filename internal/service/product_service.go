package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"shop-orders/internal/models"
	"shop-orders/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	maxProductNameLength = 255
	priceScale           = 2
)

// largest value products.price (NUMERIC(10,2)) can hold
var maxProductPrice = decimal.RequireFromString("99999999.99")

// ProductStore is the catalog persistence
type ProductStore interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, page, pageSize int) ([]models.Product, int, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, id int64, upd models.ProductUpdate) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// ProductCache holds recently read products
type ProductCache interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, bool, error)
	SetProduct(ctx context.Context, product *models.Product, ttl time.Duration) error
	DeleteProducts(ctx context.Context, ids ...int64) error
}

// ProductService handles catalog operations with a read-through cache
type ProductService struct {
	store      ProductStore
	cache      ProductCache
	cacheTTL   time.Duration
	pagination Pagination
	logger     *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(store ProductStore, cache ProductCache, cacheTTL time.Duration, pagination Pagination) *ProductService {
	return &ProductService{
		store:      store,
		cache:      cache,
		cacheTTL:   cacheTTL,
		pagination: pagination,
		logger:     util.GetLogger(),
	}
}

// CreateProductRequest represents a request to create a product
type CreateProductRequest struct {
	Name        string           `json:"name" binding:"required,max=255"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	Stock       *int             `json:"stock" binding:"omitempty,min=0"`
	Active      *bool            `json:"active"`
}

// UpdateProductRequest holds the fields to change. Nil fields keep their value.
type UpdateProductRequest struct {
	Name        *string          `json:"name" binding:"omitempty,max=255"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" binding:"omitempty,min=0"`
	Active      *bool            `json:"active"`
}

// GetProduct returns a product, from the cache when possible
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.GetProduct", attribute.Int64("product_id", id))
	defer span.End()

	cached, ok, err := s.cache.GetProduct(ctx, id)
	switch {
	case err != nil:
		util.ProductCacheRequestsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Product cache read failed, falling back to DB",
			zap.Int64("product_id", id),
			zap.Error(err))
	case ok:
		util.ProductCacheRequestsTotal.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		util.ProductCacheRequestsTotal.WithLabelValues("miss").Inc()
	}

	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetProduct(ctx, product, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache product", zap.Int64("product_id", id), zap.Error(err))
	}
	return product, nil
}

// ListProducts returns one page of the catalog
func (s *ProductService) ListProducts(ctx context.Context, page, pageSize int) (models.Page[models.Product], error) {
	page, pageSize = s.pagination.normalize(page, pageSize)

	products, total, err := s.store.ListProducts(ctx, page, pageSize)
	if err != nil {
		return models.Page[models.Product]{}, err
	}
	return models.NewPage(products, page, pageSize, total), nil
}

// CreateProduct adds a product. Stock defaults to 0 and active to true.
func (s *ProductService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()

	product := &models.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Active:      true,
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	if req.Price == nil {
		return nil, models.NewValidationError("price", "is required")
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.store.CreateProduct(ctx, product); err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// UpdateProduct changes only the given fields of an existing product
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, req *UpdateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateProduct", attribute.Int64("product_id", id))
	defer span.End()

	upd := models.ProductUpdate{
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Active:      req.Active,
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		upd.Name = &name
	}

	if err := validateProductUpdate(upd); err != nil {
		return nil, err
	}

	product, err := s.store.UpdateProduct(ctx, id, upd)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			util.RecordError(span, err)
		}
		return nil, err
	}
	s.evict(ctx, id)

	s.logger.Info("Product updated", zap.Int64("product_id", id))
	return product, nil
}

// DeleteProduct removes a product. Past order items keep their snapshot.
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "ProductService.DeleteProduct", attribute.Int64("product_id", id))
	defer span.End()

	if err := s.store.DeleteProduct(ctx, id); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			util.RecordError(span, err)
		}
		return err
	}
	s.evict(ctx, id)

	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

func (s *ProductService) evict(ctx context.Context, id int64) {
	if err := s.cache.DeleteProducts(ctx, id); err != nil {
		s.logger.Warn("Failed to evict cached product", zap.Int64("product_id", id), zap.Error(err))
	}
}

func validateProduct(p *models.Product) error {
	if err := validateName(p.Name); err != nil {
		return err
	}
	if err := validatePrice(p.Price); err != nil {
		return err
	}
	return validateStock(p.Stock)
}

func validateProductUpdate(upd models.ProductUpdate) error {
	if upd.Name != nil {
		if err := validateName(*upd.Name); err != nil {
			return err
		}
	}
	if upd.Price != nil {
		if err := validatePrice(*upd.Price); err != nil {
			return err
		}
	}
	if upd.Stock != nil {
		return validateStock(*upd.Stock)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return models.NewValidationError("name", "must not be empty")
	}
	if len(name) > maxProductNameLength {
		return models.NewValidationError("name", "must be at most %d characters", maxProductNameLength)
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return models.NewValidationError("price", "must not be negative")
	}
	if !price.Equal(price.Round(priceScale)) {
		return models.NewValidationError("price", "must have at most %d decimal places", priceScale)
	}
	if price.GreaterThan(maxProductPrice) {
		return models.NewValidationError("price", "must be at most %s", maxProductPrice.StringFixed(priceScale))
	}
	return nil
}

func validateStock(stock int) error {
	if stock < 0 {
		return models.NewValidationError("stock", "must not be negative")
	}
	return nil
}
