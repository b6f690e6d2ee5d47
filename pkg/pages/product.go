package pages

import (
	"context"

	"github.com/thesyncim/shopcheck/pkg/resilient"
)

// ProductPage is the detail page of one product.
type ProductPage struct {
	*Base
}

// NewProductPage returns the product page object.
func NewProductPage(b *Base) *ProductPage {
	return &ProductPage{Base: b}
}

// VerifyLoaded asserts that the product details are on screen.
func (p *ProductPage) VerifyLoaded(ctx context.Context) error {
	checks := []struct{ sel, what string }{
		{ProductName, "product name"},
		{ProductImage, "product image"},
		{ProductPrice, "product price"},
		{BackToProducts, "back to products button"},
	}
	for _, c := range checks {
		if !p.IsVisible(ctx, c.sel, p.probe) {
			return resilient.Assertf("%s is not visible", c.what)
		}
	}
	return nil
}

// Details returns the displayed product.
func (p *ProductPage) Details(ctx context.Context) (Product, error) {
	var (
		out Product
		err error
	)
	if out.Name, err = p.text(ctx, ProductName); err != nil {
		return Product{}, err
	}
	if out.Description, err = p.text(ctx, ProductDesc); err != nil {
		return Product{}, err
	}
	if out.Price, err = p.text(ctx, ProductPrice); err != nil {
		return Product{}, err
	}
	return out, nil
}

// AddToCart adds the product, retried until the Remove button shows.
func (p *ProductPage) AddToCart(ctx context.Context) error {
	return p.clickWithRetry(ctx, p.policies.AddToCart, ProductAddButton, p.inCart)
}

// RemoveFromCart removes the product, retried until the Add button shows.
func (p *ProductPage) RemoveFromCart(ctx context.Context) error {
	return p.clickWithRetry(ctx, p.policies.AddToCart, ProductRemoveButton,
		func(ctx context.Context) (bool, error) {
			return p.d.Visible(ctx, ProductAddButton)
		})
}

func (p *ProductPage) inCart(ctx context.Context) (bool, error) {
	return p.d.Visible(ctx, ProductRemoveButton)
}

// IsInCart reports whether the Remove button is showing.
func (p *ProductPage) IsInCart(ctx context.Context) bool {
	return p.IsVisible(ctx, ProductRemoveButton, p.probe)
}

// BackToProducts returns to the inventory.
func (p *ProductPage) BackToProducts(ctx context.Context) error {
	return p.click(ctx, BackToProducts)
}
