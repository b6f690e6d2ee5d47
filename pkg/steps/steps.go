// Package steps is the behavior layer of the suite. A Shopper carries the
// page objects and scenario context of one test and exposes the
// Given/When/Then steps the scenarios are written in.
package steps

import (
	"context"

	"github.com/thesyncim/shopcheck/pkg/pages"
	"github.com/thesyncim/shopcheck/pkg/resilient"
)

// Login outcomes accepted by ThenLoginResult.
const (
	ResultSuccess            = "success"
	ResultLockedOut          = "locked_out"
	ResultInvalidCredentials = "invalid_credentials"
	ResultUsernameRequired   = "username_required"
	ResultPasswordRequired   = "password_required"
)

var sortLabels = map[string]string{
	"Name (A to Z)":       pages.SortNameAsc,
	"Name (Z to A)":       pages.SortNameDesc,
	"Price (low to high)": pages.SortPriceAsc,
	"Price (high to low)": pages.SortPriceDesc,
}

// SortOption maps a dropdown label to its option value.
func SortOption(label string) (string, error) {
	v, ok := sortLabels[label]
	if !ok {
		return "", resilient.Assertf("unknown sort option %q", label)
	}
	return v, nil
}

// Shopper is the world of one scenario.
type Shopper struct {
	Login     *pages.LoginPage
	Inventory *pages.InventoryPage
	Product   *pages.ProductPage
	Cart      *pages.CartPage
	Checkout  *pages.CheckoutPage

	// Username and Password are the credentials of the last login step.
	Username string
	Password string
}

// NewShopper builds the page objects on b.
func NewShopper(b *pages.Base) *Shopper {
	return &Shopper{
		Login:     pages.NewLoginPage(b),
		Inventory: pages.NewInventoryPage(b),
		Product:   pages.NewProductPage(b),
		Cart:      pages.NewCartPage(b),
		Checkout:  pages.NewCheckoutPage(b),
	}
}

// GivenOnLoginPage opens the login page and checks it rendered.
func (s *Shopper) GivenOnLoginPage(ctx context.Context) error {
	if err := s.Login.Open(ctx); err != nil {
		return err
	}
	return s.Login.VerifyLoaded(ctx)
}

// GivenLoggedInAsStandardUser logs in through the form.
func (s *Shopper) GivenLoggedInAsStandardUser(ctx context.Context) error {
	if err := s.Login.Open(ctx); err != nil {
		return err
	}
	if err := s.WhenLoginWith(ctx, pages.StandardUser, pages.ValidPassword); err != nil {
		return err
	}
	return s.Login.VerifySuccessfulLogin(ctx)
}

// GivenOnHomePage checks that the inventory is showing.
func (s *Shopper) GivenOnHomePage(ctx context.Context) error {
	return s.Inventory.VerifyLoaded(ctx)
}

// GivenProductInCart puts name in the cart.
func (s *Shopper) GivenProductInCart(ctx context.Context, name string) error {
	if err := s.Inventory.AddToCart(ctx, name); err != nil {
		return err
	}
	if !s.Inventory.IsInCart(ctx, name) {
		return resilient.Assertf("%s should be in cart", name)
	}
	return nil
}

// WhenLoginWith submits the login form and remembers the credentials.
func (s *Shopper) WhenLoginWith(ctx context.Context, username, password string) error {
	s.Username, s.Password = username, password
	return s.Login.Login(ctx, username, password)
}

// WhenSubmitEmptyLogin clicks login without credentials.
func (s *Shopper) WhenSubmitEmptyLogin(ctx context.Context) error {
	s.Username, s.Password = "", ""
	return s.Login.SubmitEmpty(ctx)
}

// WhenAddProducts adds each product to the cart.
func (s *Shopper) WhenAddProducts(ctx context.Context, names ...string) error {
	return s.Inventory.AddAllToCart(ctx, names)
}

// WhenRemoveProduct removes name from the cart.
func (s *Shopper) WhenRemoveProduct(ctx context.Context, name string) error {
	return s.Inventory.RemoveFromCart(ctx, name)
}

// WhenSortBy sorts by a dropdown label such as "Name (A to Z)".
func (s *Shopper) WhenSortBy(ctx context.Context, label string) error {
	option, err := SortOption(label)
	if err != nil {
		return err
	}
	return s.Inventory.Sort(ctx, option)
}

// WhenOpenCart clicks the cart icon.
func (s *Shopper) WhenOpenCart(ctx context.Context) error {
	return s.Inventory.OpenCart(ctx)
}

// ThenRedirectedToInventory checks the post-login redirect.
func (s *Shopper) ThenRedirectedToInventory(ctx context.Context) error {
	return s.Login.VerifySuccessfulLogin(ctx)
}

// ThenSeeInventory checks that products are listed.
func (s *Shopper) ThenSeeInventory(ctx context.Context) error {
	if err := s.Inventory.VerifyLoaded(ctx); err != nil {
		return err
	}
	n, err := s.Inventory.ProductCount(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return resilient.Assertf("no products are visible")
	}
	return nil
}

// ThenErrorMessage checks the login error text.
func (s *Shopper) ThenErrorMessage(ctx context.Context, msg string) error {
	return s.Login.VerifyLoginError(ctx, msg)
}

// ThenOnLoginPage checks that the browser stayed on the login page.
func (s *Shopper) ThenOnLoginPage(ctx context.Context) error {
	return s.Login.VerifyStillOnLoginPage(ctx)
}

// ThenCartBadge checks the cart badge count.
func (s *Shopper) ThenCartBadge(ctx context.Context, n int) error {
	return s.Inventory.VerifyCartCount(ctx, n)
}

// ThenSorted checks the grid order for a dropdown label.
func (s *Shopper) ThenSorted(ctx context.Context, label string) error {
	option, err := SortOption(label)
	if err != nil {
		return err
	}
	switch option {
	case pages.SortNameAsc:
		return s.Inventory.VerifySortedByName(ctx, true)
	case pages.SortNameDesc:
		return s.Inventory.VerifySortedByName(ctx, false)
	case pages.SortPriceAsc:
		return s.Inventory.VerifySortedByPrice(ctx, true)
	default:
		return s.Inventory.VerifySortedByPrice(ctx, false)
	}
}

// ThenOnCartPage checks the cart URL and layout.
func (s *Shopper) ThenOnCartPage(ctx context.Context) error {
	if err := s.Cart.VerifyURL(ctx, "cart.html"); err != nil {
		return err
	}
	return s.Cart.VerifyLoaded(ctx)
}

// ThenCartHasItems checks the number of cart lines.
func (s *Shopper) ThenCartHasItems(ctx context.Context, n int) error {
	got, err := s.Cart.ItemCount(ctx)
	if err != nil {
		return err
	}
	if got != n {
		return resilient.Assertf("should have %d items in cart, found %d", n, got)
	}
	return nil
}

// ThenLoginResult checks the outcome of the last login. A successful
// login is logged out again so the next case starts clean.
func (s *Shopper) ThenLoginResult(ctx context.Context, result string) error {
	switch result {
	case ResultSuccess:
		if err := s.Login.VerifySuccessfulLogin(ctx); err != nil {
			return err
		}
		if err := s.Inventory.VerifyLoaded(ctx); err != nil {
			return err
		}
		return s.Inventory.Logout(ctx)
	case ResultLockedOut:
		return s.Login.VerifyLockedOut(ctx)
	case ResultInvalidCredentials:
		return s.Login.VerifyInvalidCredentials(ctx)
	case ResultUsernameRequired:
		return s.Login.VerifyLoginError(ctx, pages.ErrUsernameRequired)
	case ResultPasswordRequired:
		return s.Login.VerifyLoginError(ctx, pages.ErrPasswordRequired)
	default:
		return resilient.Assertf("unknown result type %q", result)
	}
}
