package pages

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/thesyncim/shopcheck/pkg/browser"
	"github.com/thesyncim/shopcheck/pkg/resilient"
)

// Product is one product as rendered by the storefront.
type Product struct {
	Name        string
	Price       string
	Description string
}

// InventoryPage is the product grid shown after login.
type InventoryPage struct {
	*Base
}

// NewInventoryPage returns the inventory page object.
func NewInventoryPage(b *Base) *InventoryPage {
	return &InventoryPage{Base: b}
}

// Open navigates straight to the inventory. The session must already be
// logged in.
func (p *InventoryPage) Open(ctx context.Context) error {
	return p.NavigateTo(ctx, "inventory.html")
}

// VerifyLoaded asserts that the inventory is on screen.
func (p *InventoryPage) VerifyLoaded(ctx context.Context) error {
	if err := p.VerifyURL(ctx, p.URLFor("inventory.html")); err != nil {
		return err
	}
	for _, sel := range []string{AppLogo, InventoryContainer, CartLink} {
		if !p.IsVisible(ctx, sel, p.probe) {
			return resilient.Assertf("%s is not visible", sel)
		}
	}
	return nil
}

// HeaderTitle returns the logo text.
func (p *InventoryPage) HeaderTitle(ctx context.Context) (string, error) {
	return p.text(ctx, AppLogo)
}

// Sort picks a sort option (SortNameAsc and friends). The selection is
// retried until the dropdown shows option and the grid is in that order.
func (p *InventoryPage) Sort(ctx context.Context, option string) error {
	if !validSort(option) {
		return resilient.Assertf("unknown sort option %q", option)
	}
	p.log.Info("sorting products", "option", option)
	return p.selectWithRetry(ctx, p.policies.Sort, SortSelect, browser.Value(option),
		func(ctx context.Context) (bool, error) { return p.sortedBy(ctx, option) })
}

func validSort(option string) bool {
	switch option {
	case SortNameAsc, SortNameDesc, SortPriceAsc, SortPriceDesc:
		return true
	}
	return false
}

func (p *InventoryPage) sortedBy(ctx context.Context, option string) (bool, error) {
	v, err := p.d.InputValue(ctx, SortSelect)
	if err != nil || v != option {
		return false, err
	}
	return p.inOrder(ctx, option)
}

func (p *InventoryPage) inOrder(ctx context.Context, option string) (bool, error) {
	switch option {
	case SortNameAsc, SortNameDesc:
		names, err := p.ProductNames(ctx)
		if err != nil {
			return false, err
		}
		if option == SortNameDesc {
			slices.Reverse(names)
		}
		return slices.IsSorted(names), nil
	case SortPriceAsc, SortPriceDesc:
		prices, err := p.prices(ctx)
		if err != nil {
			return false, err
		}
		if option == SortPriceDesc {
			slices.Reverse(prices)
		}
		return slices.IsSorted(prices), nil
	default:
		return false, resilient.Assertf("unknown sort option %q", option)
	}
}

func (p *InventoryPage) prices(ctx context.Context) ([]float64, error) {
	raw, err := p.ProductPrices(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(raw))
	for _, s := range raw {
		v, err := parsePrice(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// SortValue returns the selected sort option.
func (p *InventoryPage) SortValue(ctx context.Context) (string, error) {
	return p.d.InputValue(ctx, SortSelect)
}

// ProductNames returns the product names in display order.
func (p *InventoryPage) ProductNames(ctx context.Context) ([]string, error) {
	return p.d.Texts(ctx, ItemName)
}

// ProductPrices returns the price labels in display order.
func (p *InventoryPage) ProductPrices(ctx context.Context) ([]string, error) {
	return p.d.Texts(ctx, ItemPrice)
}

// ProductCount returns how many products are displayed.
func (p *InventoryPage) ProductCount(ctx context.Context) (int, error) {
	return p.d.Count(ctx, InventoryItem)
}

// ProductInfo returns the product at index i in display order. An index
// past the grid is an AssertionError.
func (p *InventoryPage) ProductInfo(ctx context.Context, i int) (Product, error) {
	n, err := p.ProductCount(ctx)
	if err != nil {
		return Product{}, err
	}
	if i < 0 || i >= n {
		return Product{}, resilient.Assertf("product index %d is out of range (%d products)", i, n)
	}
	names, err := p.d.Texts(ctx, ItemName)
	if err != nil {
		return Product{}, err
	}
	prices, err := p.d.Texts(ctx, ItemPrice)
	if err != nil {
		return Product{}, err
	}
	descs, err := p.d.Texts(ctx, ItemDesc)
	if err != nil {
		return Product{}, err
	}
	if i >= len(names) || i >= len(prices) || i >= len(descs) {
		return Product{}, resilient.Transient(fmt.Errorf("product %d not fully rendered", i))
	}
	return Product{Name: names[i], Price: prices[i], Description: descs[i]}, nil
}

// AddToCart adds the named product. The click is retried until the
// product's Remove button shows; a product already in the cart is left
// alone.
func (p *InventoryPage) AddToCart(ctx context.Context, name string) error {
	p.log.Info("adding product to cart", "product", name)
	return p.clickWithRetry(ctx, p.policies.AddToCart, AddButton(name),
		func(ctx context.Context) (bool, error) { return p.inCart(ctx, name) })
}

// AddToCartByIndex adds the product at index i in display order.
func (p *InventoryPage) AddToCartByIndex(ctx context.Context, i int) error {
	info, err := p.ProductInfo(ctx, i)
	if err != nil {
		return err
	}
	return p.AddToCart(ctx, info.Name)
}

// AddAllToCart adds each named product in turn.
func (p *InventoryPage) AddAllToCart(ctx context.Context, names []string) error {
	for _, name := range names {
		if err := p.AddToCart(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFromCart removes the named product, retried until its Add button
// is back.
func (p *InventoryPage) RemoveFromCart(ctx context.Context, name string) error {
	p.log.Info("removing product from cart", "product", name)
	return p.clickWithRetry(ctx, p.policies.AddToCart, RemoveButton(name),
		func(ctx context.Context) (bool, error) {
			in, err := p.inCart(ctx, name)
			return !in, err
		})
}

// inCart probes the product's buttons without waiting. A product with
// neither button on a rendered grid does not exist.
func (p *InventoryPage) inCart(ctx context.Context, name string) (bool, error) {
	in, err := p.d.Visible(ctx, RemoveButton(name))
	if err != nil || in {
		return in, err
	}
	add, err := p.d.Count(ctx, AddButton(name))
	if err != nil || add > 0 {
		return false, err
	}
	items, err := p.d.Count(ctx, InventoryItem)
	if err != nil {
		return false, err
	}
	if items > 0 {
		return false, resilient.Assertf("no product named %q on the page", name)
	}
	return false, nil
}

// IsInCart reports whether the named product shows a Remove button.
func (p *InventoryPage) IsInCart(ctx context.Context, name string) bool {
	return p.IsVisible(ctx, RemoveButton(name), time.Second)
}

// CartCount returns the number on the cart badge, 0 without a badge.
func (p *InventoryPage) CartCount(ctx context.Context) (int, error) {
	shown, err := p.d.Visible(ctx, CartBadge)
	if err != nil || !shown {
		return 0, err
	}
	s, err := p.d.Text(ctx, CartBadge)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, resilient.Assertf("cart badge %q is not a number", s)
	}
	return n, nil
}

// VerifyCartCount asserts the cart badge count, allowing the badge the
// probe timeout to settle.
func (p *InventoryPage) VerifyCartCount(ctx context.Context, want int) error {
	var got int
	unmet := false
	err := p.expect(ctx, func(ctx context.Context) (bool, error) {
		n, err := p.CartCount(ctx)
		got = n
		unmet = err == nil && n != want
		return n == want, err
	}, "expected cart count %d", want)
	var ae *resilient.AssertionError
	if unmet && errors.As(err, &ae) {
		return resilient.Assertf("expected cart count %d, but got %d", want, got)
	}
	return err
}

// VerifySortedByName asserts alphabetical order.
func (p *InventoryPage) VerifySortedByName(ctx context.Context, ascending bool) error {
	option, label := SortNameAsc, "A-Z"
	if !ascending {
		option, label = SortNameDesc, "Z-A"
	}
	return p.verifyOrder(ctx, option, "products not sorted "+label)
}

// VerifySortedByPrice asserts price order.
func (p *InventoryPage) VerifySortedByPrice(ctx context.Context, ascending bool) error {
	option, label := SortPriceAsc, "low to high"
	if !ascending {
		option, label = SortPriceDesc, "high to low"
	}
	return p.verifyOrder(ctx, option, "prices not sorted "+label)
}

func (p *InventoryPage) verifyOrder(ctx context.Context, option, msg string) error {
	err := p.expect(ctx, func(ctx context.Context) (bool, error) {
		return p.inOrder(ctx, option)
	}, "%s", msg)
	var ae *resilient.AssertionError
	if errors.As(err, &ae) {
		names, _ := p.ProductNames(ctx)
		return resilient.Assertf("%s: %v", msg, names)
	}
	return err
}

// OpenProduct opens the detail page of the named product.
func (p *InventoryPage) OpenProduct(ctx context.Context, name string) error {
	if err := p.d.WaitFor(ctx, ItemName, browser.StateVisible); err != nil {
		return err
	}
	return p.d.ClickText(ctx, ItemName, name)
}

// OpenCart clicks the cart icon.
func (p *InventoryPage) OpenCart(ctx context.Context) error {
	return p.click(ctx, CartLink)
}

// OpenMenu opens the burger menu.
func (p *InventoryPage) OpenMenu(ctx context.Context) error {
	if err := p.click(ctx, MenuButton); err != nil {
		return err
	}
	return p.d.WaitFor(ctx, MenuPanel, browser.StateVisible)
}

// CloseMenu closes the burger menu if it is open.
func (p *InventoryPage) CloseMenu(ctx context.Context) error {
	open, err := p.d.Visible(ctx, MenuClose)
	if err != nil || !open {
		return err
	}
	if err := p.click(ctx, MenuClose); err != nil {
		return err
	}
	return p.d.WaitFor(ctx, MenuPanel, browser.StateHidden)
}

// Logout signs out through the menu.
func (p *InventoryPage) Logout(ctx context.Context) error {
	if err := p.OpenMenu(ctx); err != nil {
		return err
	}
	return p.click(ctx, LogoutLink)
}

// ResetAppState empties the cart through the menu.
func (p *InventoryPage) ResetAppState(ctx context.Context) error {
	if err := p.OpenMenu(ctx); err != nil {
		return err
	}
	if err := p.click(ctx, ResetLink); err != nil {
		return err
	}
	return p.CloseMenu(ctx)
}
