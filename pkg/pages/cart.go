package pages

import (
	"context"

	"github.com/thesyncim/shopcheck/pkg/resilient"
)

// CartPage lists the cart contents.
type CartPage struct {
	*Base
}

// NewCartPage returns the cart page object.
func NewCartPage(b *Base) *CartPage {
	return &CartPage{Base: b}
}

// Open navigates straight to the cart.
func (p *CartPage) Open(ctx context.Context) error {
	return p.NavigateTo(ctx, "cart.html")
}

// VerifyLoaded asserts that the cart is on screen.
func (p *CartPage) VerifyLoaded(ctx context.Context) error {
	if !p.IsVisible(ctx, CartContainer, p.probe) {
		return resilient.Assertf("cart container is not visible")
	}
	if !p.IsVisible(ctx, CheckoutButton, p.probe) {
		return resilient.Assertf("checkout button is not visible")
	}
	return nil
}

// ItemCount returns the number of line items.
func (p *CartPage) ItemCount(ctx context.Context) (int, error) {
	return p.d.Count(ctx, CartItem)
}

// ItemNames returns the line item names in order.
func (p *CartPage) ItemNames(ctx context.Context) ([]string, error) {
	return p.d.Texts(ctx, ItemName)
}

// ItemPrices returns the line item price labels in order.
func (p *CartPage) ItemPrices(ctx context.Context) ([]string, error) {
	return p.d.Texts(ctx, ItemPrice)
}

// RemoveItem removes the named line item. Removing an item that is not in
// the cart does nothing.
func (p *CartPage) RemoveItem(ctx context.Context, name string) error {
	btn := RemoveButton(name)
	return p.clickWithRetry(ctx, p.policies.AddToCart, btn,
		func(ctx context.Context) (bool, error) {
			n, err := p.d.Count(ctx, btn)
			return n == 0, err
		})
}

// ContinueShopping returns to the inventory.
func (p *CartPage) ContinueShopping(ctx context.Context) error {
	return p.click(ctx, ContinueShopping)
}

// Checkout starts the checkout flow.
func (p *CartPage) Checkout(ctx context.Context) error {
	return p.click(ctx, CheckoutButton)
}
