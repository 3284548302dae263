package services

import (
	"context"
	"errors"
	"strings"

	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/repository"
	"mutaengine_back_end/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// decimal(10,2)
var maxPrice = decimal.New(1, 8)

// ProductInput : champs nil = inchangés (PATCH)
type ProductInput struct {
	Title       *string          `json:"title"`
	Price       *decimal.Decimal `json:"price"`
	Description *string          `json:"description"`
	ImageURL    *string          `json:"image_url"`
	Category    *string          `json:"category"`
	Rating      *float64         `json:"rating"`
}

type CatalogService struct {
	products repository.ProductRepository
	audit    utils.AuditLogger
}

func NewCatalogService(products repository.ProductRepository, audit utils.AuditLogger) *CatalogService {
	return &CatalogService{products: products, audit: audit}
}

func (s *CatalogService) List(ctx context.Context) ([]models.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, utils.Internal(err, "liste produits")
	}
	return products, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, utils.NotFound("Product not found")
	}
	if err != nil {
		return nil, utils.Internal(err, "lecture produit")
	}
	return product, nil
}

func (s *CatalogService) Create(ctx context.Context, actor models.User, in ProductInput) (*models.Product, error) {
	if in.Title == nil || in.Price == nil {
		return nil, utils.Validationf("title and price are required")
	}
	product := &models.Product{ID: uuid.NewString()}
	apply(product, in)
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, utils.Internal(err, "création produit")
	}
	s.audit.Record(ctx, utils.NewAuditEntry(actor, utils.ActionProductCreate, utils.ResourceProduct, product.ID, nil, product))
	return product, nil
}

// Update : full exige title et price (PUT), sinon mise à jour partielle
func (s *CatalogService) Update(ctx context.Context, actor models.User, id string, in ProductInput, full bool) (*models.Product, error) {
	if full && (in.Title == nil || in.Price == nil) {
		return nil, utils.Validationf("title and price are required")
	}
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *product
	apply(product, in)
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.products.Save(ctx, product); err != nil {
		return nil, utils.Internal(err, "mise à jour produit")
	}
	s.audit.Record(ctx, utils.NewAuditEntry(actor, utils.ActionProductUpdate, utils.ResourceProduct, product.ID, before, product))
	return product, nil
}

func (s *CatalogService) Delete(ctx context.Context, actor models.User, id string) error {
	err := s.products.Delete(ctx, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		return utils.NotFound("Product not found")
	}
	if err != nil {
		return utils.Internal(err, "suppression produit")
	}
	s.audit.Record(ctx, utils.NewAuditEntry(actor, utils.ActionProductDelete, utils.ResourceProduct, id, nil, nil))
	return nil
}

func apply(p *models.Product, in ProductInput) {
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.ImageURL != nil {
		p.ImageURL = *in.ImageURL
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Rating != nil {
		p.Rating = *in.Rating
	}
}

func validateProduct(p *models.Product) error {
	if p.Title == "" {
		return utils.Validationf("title may not be blank")
	}
	if !p.Price.IsPositive() {
		return utils.Validationf("price must be greater than 0")
	}
	if !p.Price.Equal(p.Price.Round(2)) {
		return utils.Validationf("price may not have more than 2 decimal places")
	}
	if p.Price.GreaterThanOrEqual(maxPrice) {
		return utils.Validationf("price may not have more than 10 digits")
	}
	return nil
}
