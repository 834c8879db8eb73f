package cart

import (
	"context"
	"errors"

	"github.com/anshgupta/storekart-backend/internal/products"
	"github.com/anshgupta/storekart-backend/pkg/db/models"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Line is one cart entry resolved against the live catalog. UnitPrice is
// the variant price when a variant is set, otherwise the product price.
type Line struct {
	Item      models.CartItem
	Product   models.Product
	Variant   *models.Variant
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Cart is the user's resolved cart with the pre-discount subtotal.
type Cart struct {
	Lines    []Line
	Subtotal decimal.Decimal
}

// ServiceParams groups dependencies for the cart service.
type ServiceParams struct {
	CartRepo    *Repository
	ProductRepo *products.Repository
}

// Service exposes cart mutation and resolution.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (Cart, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, variantID *uuid.UUID, quantity int) (*models.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, userID, lineID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
	WithTx(tx *gorm.DB) Service
}

type service struct {
	cartRepo    *Repository
	productRepo *products.Repository
}

// NewService builds a cart service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.CartRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart repo is required")
	}
	if params.ProductRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product repo is required")
	}
	return &service{cartRepo: params.CartRepo, productRepo: params.ProductRepo}, nil
}

// WithTx rebinds the service to a transaction.
func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{cartRepo: s.cartRepo.WithTx(tx), productRepo: s.productRepo.WithTx(tx)}
}

// GetCart resolves every line against the catalog and totals them up.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (Cart, error) {
	if userID == uuid.Nil {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	items, err := s.cartRepo.ListForUser(ctx, userID)
	if err != nil {
		return Cart{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}

	cart := Cart{Lines: make([]Line, 0, len(items)), Subtotal: decimal.Zero}
	for _, item := range items {
		line, err := s.resolveLine(ctx, item)
		if err != nil {
			return Cart{}, err
		}
		cart.Lines = append(cart.Lines, line)
		cart.Subtotal = money.Round2(cart.Subtotal.Add(line.LineTotal))
	}
	return cart, nil
}

// AddItem validates the target and merges into an existing line when the
// same product/variant pair is already carted.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, variantID *uuid.UUID, quantity int) (*models.CartItem, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	if err := s.validateTarget(ctx, productID, variantID); err != nil {
		return nil, err
	}

	existing, err := s.cartRepo.FindLine(ctx, userID, productID, variantID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
	if existing != nil {
		newQty := existing.Quantity + quantity
		if err := s.cartRepo.UpdateQuantity(ctx, existing.ID, newQty); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
		existing.Quantity = newQty
		return existing, nil
	}

	item := &models.CartItem{
		UserID:    userID,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
	}
	if err := s.cartRepo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
	}
	return item, nil
}

// UpdateQuantity overwrites a line's quantity. Removal is explicit, not a
// zero-quantity update.
func (s *service) UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if _, err := s.ownedLine(ctx, userID, lineID); err != nil {
		return err
	}
	if err := s.cartRepo.UpdateQuantity(ctx, lineID, quantity); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	return nil
}

// RemoveItem deletes a line owned by the user.
func (s *service) RemoveItem(ctx context.Context, userID, lineID uuid.UUID) error {
	if _, err := s.ownedLine(ctx, userID, lineID); err != nil {
		return err
	}
	if err := s.cartRepo.Delete(ctx, lineID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	return nil
}

// Clear empties the user's cart.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := s.cartRepo.DeleteAllForUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) ownedLine(ctx context.Context, userID, lineID uuid.UUID) (*models.CartItem, error) {
	if userID == uuid.Nil || lineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and line id are required")
	}
	item, err := s.cartRepo.FindByID(ctx, userID, lineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "cart line not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
	return item, nil
}

func (s *service) validateTarget(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) error {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	if product.HasVariants && variantID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant is required for this product")
	}
	if !product.HasVariants && variantID != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product has no variants")
	}
	if variantID != nil {
		if _, err := s.productRepo.FindVariant(ctx, productID, *variantID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "variant not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
		}
	}
	return nil
}

func (s *service) resolveLine(ctx context.Context, item models.CartItem) (Line, error) {
	product, err := s.productRepo.FindByID(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Line{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product no longer exists")
		}
		return Line{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	line := Line{Item: item, Product: *product, UnitPrice: product.Price}
	if item.VariantID != nil {
		variant, err := s.productRepo.FindVariant(ctx, item.ProductID, *item.VariantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Line{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "variant no longer exists")
			}
			return Line{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
		}
		line.Variant = variant
		line.UnitPrice = variant.Price
	}

	line.LineTotal = money.Round2(line.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	return line, nil
}
