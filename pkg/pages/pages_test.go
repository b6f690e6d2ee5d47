package pages_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/shopcheck/pkg/pages"
	"github.com/thesyncim/shopcheck/pkg/pages/pagestest"
	"github.com/thesyncim/shopcheck/pkg/resilient"
)

const (
	backpack  = "Sauce Labs Backpack"
	bikeLight = "Sauce Labs Bike Light"
)

func newBase(t *testing.T) (*pagestest.Shop, *pages.Base) {
	t.Helper()
	shop := pagestest.New()
	fast := resilient.Policy{MaxAttempts: 3, PerAttemptTimeout: 300 * time.Millisecond, BackoffDelay: 5 * time.Millisecond}
	b := pages.NewBase(shop, pagestest.BaseURL,
		pages.WithPolicies(pages.Policies{Default: fast, Login: fast, AddToCart: fast, Sort: fast}),
		pages.WithProbeTimeout(200*time.Millisecond),
		pages.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return shop, b
}

func loggedIn(t *testing.T) (*pagestest.Shop, *pages.InventoryPage) {
	t.Helper()
	shop, b := newBase(t)
	shop.LogIn(pages.StandardUser)
	return shop, pages.NewInventoryPage(b)
}

func assertionError(t *testing.T, err error) {
	t.Helper()
	var ae *resilient.AssertionError
	require.ErrorAs(t, err, &ae)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "sauce-labs-backpack", pages.Slug(backpack))
	assert.Equal(t, "test.allthethings()-t-shirt-(red)", pages.Slug("Test.allTheThings() T-Shirt (Red)"))
	assert.Equal(t, "[data-test='add-to-cart-sauce-labs-backpack']", pages.AddButton(backpack))
	assert.Equal(t, "[data-test='remove-sauce-labs-backpack']", pages.RemoveButton(backpack))
}

func TestLogin_Success(t *testing.T) {
	ctx := context.Background()
	shop, b := newBase(t)
	login := pages.NewLoginPage(b)

	require.NoError(t, login.Open(ctx))
	require.NoError(t, login.VerifyLoaded(ctx))
	require.NoError(t, login.Login(ctx, pages.StandardUser, pages.ValidPassword))
	require.NoError(t, login.VerifySuccessfulLogin(ctx))
	require.NoError(t, pages.NewInventoryPage(b).VerifyLoaded(ctx))

	assert.Equal(t, 1, shop.Clicks(pages.LoginButton))
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		pass     string
		expected string
	}{
		{"locked out", pages.LockedOutUser, pages.ValidPassword, pages.ErrLockedOut},
		{"unknown user", "invalid_user", pages.ValidPassword, pages.ErrInvalidCredentials},
		{"wrong password", pages.StandardUser, "wrong_password", pages.ErrInvalidCredentials},
		{"empty username", "", pages.ValidPassword, pages.ErrUsernameRequired},
		{"empty password", pages.StandardUser, "", pages.ErrPasswordRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			shop, b := newBase(t)
			login := pages.NewLoginPage(b)
			require.NoError(t, login.Open(ctx))

			require.NoError(t, login.Login(ctx, tt.user, tt.pass))
			require.NoError(t, login.VerifyLoginError(ctx, tt.expected))
			require.NoError(t, login.VerifyStillOnLoginPage(ctx))
			assert.Equal(t, 1, shop.Clicks(pages.LoginButton), "error shown, no resubmission")
		})
	}
}

func TestLogin_WrongExpectedErrorIsAssertion(t *testing.T) {
	ctx := context.Background()
	_, b := newBase(t)
	login := pages.NewLoginPage(b)
	require.NoError(t, login.Open(ctx))
	require.NoError(t, login.Login(ctx, pages.LockedOutUser, pages.ValidPassword))

	assertionError(t, login.VerifyInvalidCredentials(ctx))
	assertionError(t, login.VerifySuccessfulLogin(ctx))
}

func TestLogin_RetriesTransientClick(t *testing.T) {
	ctx := context.Background()
	shop, b := newBase(t)
	login := pages.NewLoginPage(b)
	require.NoError(t, login.Open(ctx))

	shop.FailClicks(pages.LoginButton, 1)
	require.NoError(t, login.Login(ctx, pages.StandardUser, pages.ValidPassword))
	require.NoError(t, login.VerifySuccessfulLogin(ctx))
	assert.Equal(t, 1, shop.Clicks(pages.LoginButton))
}

func TestLogin_SecondAttemptClearsOldError(t *testing.T) {
	ctx := context.Background()
	_, b := newBase(t)
	login := pages.NewLoginPage(b)
	require.NoError(t, login.Open(ctx))

	require.NoError(t, login.Login(ctx, "invalid_user", pages.ValidPassword))
	require.NoError(t, login.VerifyInvalidCredentials(ctx))

	require.NoError(t, login.Login(ctx, pages.StandardUser, pages.ValidPassword))
	require.NoError(t, login.VerifySuccessfulLogin(ctx))
}

func TestLogin_KeyboardAndForm(t *testing.T) {
	ctx := context.Background()
	_, b := newBase(t)
	login := pages.NewLoginPage(b)
	require.NoError(t, login.Open(ctx))

	user, pass, err := login.Placeholders(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Username", user)
	assert.Equal(t, "Password", pass)

	enabled, err := login.IsLoginButtonEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, login.ClearForm(ctx))
	require.NoError(t, login.LoginWithKeyboard(ctx, pages.StandardUser, pages.ValidPassword))
	require.NoError(t, login.VerifySuccessfulLogin(ctx))
}

func TestLogin_ClearError(t *testing.T) {
	ctx := context.Background()
	_, b := newBase(t)
	login := pages.NewLoginPage(b)
	require.NoError(t, login.Open(ctx))
	require.NoError(t, login.SubmitEmpty(ctx))

	msg, err := login.ErrorMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg, pages.ErrUsernameRequired)

	require.NoError(t, login.ClearError(ctx))
	msg, err = login.ErrorMessage(ctx)
	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestInventory_AddToCart(t *testing.T) {
	ctx := context.Background()
	shop, inv := loggedIn(t)

	require.NoError(t, inv.AddToCart(ctx, backpack))
	assert.True(t, inv.IsInCart(ctx, backpack))
	require.NoError(t, inv.VerifyCartCount(ctx, 1))
	assert.Equal(t, 1, shop.Clicks(pages.AddButton(backpack)))

	// Post-condition already holds: no second click.
	require.NoError(t, inv.AddToCart(ctx, backpack))
	assert.Equal(t, 1, shop.Clicks(pages.AddButton(backpack)))
	assert.Equal(t, []string{backpack}, shop.CartNames())
}

func TestInventory_AddToCartWaitsForLateRender(t *testing.T) {
	ctx := context.Background()
	shop, inv := loggedIn(t)
	shop.SetRenderDelay(50 * time.Millisecond)

	require.NoError(t, inv.AddToCart(ctx, backpack))
	assert.Equal(t, 1, shop.Clicks(pages.AddButton(backpack)), "late effect must not trigger a second click")
	require.NoError(t, inv.VerifyCartCount(ctx, 1))
}

func TestInventory_AddToCartRetriesTransientClicks(t *testing.T) {
	ctx := context.Background()
	shop, inv := loggedIn(t)
	shop.FailClicks(pages.AddButton(backpack), 2)

	require.NoError(t, inv.AddToCart(ctx, backpack))
	assert.Equal(t, []string{backpack}, shop.CartNames())
}

func TestInventory_AddToCartExhausts(t *testing.T) {
	ctx := context.Background()
	shop, inv := loggedIn(t)
	shop.FailClicks(pages.AddButton(backpack), 10)

	err := inv.AddToCart(ctx, backpack)
	re, ok := resilient.IsExhausted(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, 3, re.Attempts)
	assert.ErrorIs(t, err, resilient.ErrTransient)
	assert.Empty(t, shop.CartNames())
}

func TestInventory_AddUnknownProductIsAssertion(t *testing.T) {
	ctx := context.Background()
	shop, inv := loggedIn(t)

	err := inv.AddToCart(ctx, "Sauce Labs Teleporter")
	assertionError(t, err)
	assert.Zero(t, shop.Clicks(pages.AddButton("Sauce Labs Teleporter")))
}

func TestInventory_UnreadableBadgeIsAssertion(t *testing.T) {
	ctx := context.Background()
	shop, inv := loggedIn(t)
	require.NoError(t, inv.AddToCart(ctx, backpack))
	shop.SetBadgeText("1 item")

	n, err := inv.CartCount(ctx)
	assertionError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, err.Error(), `cart badge "1 item" is not a number`)

	err = inv.VerifyCartCount(ctx, 1)
	assertionError(t, err)
	assert.Contains(t, err.Error(), "is not a number")
	assert.NotContains(t, err.Error(), "but got 0")
}

func TestInventory_VerifyCartCountReportsMismatch(t *testing.T) {
	ctx := context.Background()
	_, inv := loggedIn(t)
	require.NoError(t, inv.AddToCart(ctx, backpack))

	err := inv.VerifyCartCount(ctx, 2)
	assertionError(t, err)
	assert.Contains(t, err.Error(), "expected cart count 2, but got 1")
}

func TestInventory_RemoveFromCart(t *testing.T) {
	ctx := context.Background()
	shop, inv := loggedIn(t)

	require.NoError(t, inv.AddAllToCart(ctx, []string{backpack, bikeLight}))
	require.NoError(t, inv.VerifyCartCount(ctx, 2))

	require.NoError(t, inv.RemoveFromCart(ctx, backpack))
	require.NoError(t, inv.VerifyCartCount(ctx, 1))
	assert.Equal(t, []string{bikeLight}, shop.CartNames())

	// Not in the cart: nothing to click.
	require.NoError(t, inv.RemoveFromCart(ctx, backpack))
	assert.Equal(t, 1, shop.Clicks(pages.RemoveButton(backpack)))

	assertionError(t, inv.VerifyCartCount(ctx, 3))
}

func TestInventory_Sort(t *testing.T) {
	tests := []struct {
		option string
		verify func(ctx context.Context, inv *pages.InventoryPage) error
	}{
		{pages.SortNameDesc, func(ctx context.Context, inv *pages.InventoryPage) error { return inv.VerifySortedByName(ctx, false) }},
		{pages.SortPriceAsc, func(ctx context.Context, inv *pages.InventoryPage) error { return inv.VerifySortedByPrice(ctx, true) }},
		{pages.SortPriceDesc, func(ctx context.Context, inv *pages.InventoryPage) error { return inv.VerifySortedByPrice(ctx, false) }},
		{pages.SortNameAsc, func(ctx context.Context, inv *pages.InventoryPage) error { return inv.VerifySortedByName(ctx, true) }},
	}
	for _, tt := range tests {
		t.Run(tt.option, func(t *testing.T) {
			ctx := context.Background()
			shop, inv := loggedIn(t)
			shop.SetRenderDelay(20 * time.Millisecond)

			require.NoError(t, inv.Sort(ctx, tt.option))
			require.NoError(t, tt.verify(ctx, inv))

			got, err := inv.SortValue(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.option, got)
		})
	}
}

func TestInventory_SortAlreadyAppliedDoesNotSelect(t *testing.T) {
	ctx := context.Background()
	shop, inv := loggedIn(t)

	require.NoError(t, inv.Sort(ctx, pages.SortNameAsc))
	assert.Zero(t, shop.Clicks(pages.SortSelect))
}

func TestInventory_SortUnknownOption(t *testing.T) {
	ctx := context.Background()
	shop, inv := loggedIn(t)

	assertionError(t, inv.Sort(ctx, "random"))
	assert.Zero(t, shop.Clicks(pages.SortSelect))
}

func TestInventory_WrongOrderIsAssertion(t *testing.T) {
	ctx := context.Background()
	_, inv := loggedIn(t)
	require.NoError(t, inv.Sort(ctx, pages.SortPriceAsc))

	assertionError(t, inv.VerifySortedByName(ctx, true))
}

func TestInventory_ProductInfo(t *testing.T) {
	ctx := context.Background()
	_, inv := loggedIn(t)

	n, err := inv.ProductCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	info, err := inv.ProductInfo(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, backpack, info.Name)
	assert.Equal(t, "$29.99", info.Price)
	assert.NotEmpty(t, info.Description)

	_, err = inv.ProductInfo(ctx, 6)
	assertionError(t, err)
	assert.Equal(t, resilient.KindAssertion, resilient.Classify(err))
}

func TestInventory_AddToCartByIndex(t *testing.T) {
	ctx := context.Background()
	shop, inv := loggedIn(t)

	require.NoError(t, inv.AddToCartByIndex(ctx, 1))
	assert.Equal(t, []string{bikeLight}, shop.CartNames())

	assertionError(t, inv.AddToCartByIndex(ctx, 99))
}

func TestInventory_MenuResetAndLogout(t *testing.T) {
	ctx := context.Background()
	shop, inv := loggedIn(t)
	require.NoError(t, inv.AddToCart(ctx, backpack))

	require.NoError(t, inv.ResetAppState(ctx))
	assert.Empty(t, shop.CartNames())
	require.NoError(t, inv.VerifyCartCount(ctx, 0))

	require.NoError(t, inv.Logout(ctx))
	require.NoError(t, pages.NewLoginPage(inv.Base).VerifyLoaded(ctx))
}

func TestProductPage(t *testing.T) {
	ctx := context.Background()
	shop, inv := loggedIn(t)

	require.NoError(t, inv.OpenProduct(ctx, bikeLight))
	product := pages.NewProductPage(inv.Base)
	require.NoError(t, product.VerifyLoaded(ctx))

	details, err := product.Details(ctx)
	require.NoError(t, err)
	assert.Equal(t, bikeLight, details.Name)
	assert.Equal(t, "$9.99", details.Price)

	require.NoError(t, product.AddToCart(ctx))
	assert.True(t, product.IsInCart(ctx))
	require.NoError(t, product.RemoveFromCart(ctx))
	assert.Empty(t, shop.CartNames())

	require.NoError(t, product.BackToProducts(ctx))
	require.NoError(t, inv.VerifyLoaded(ctx))
}

func TestCartAndCheckout(t *testing.T) {
	ctx := context.Background()
	shop, inv := loggedIn(t)
	require.NoError(t, inv.AddAllToCart(ctx, []string{backpack, bikeLight}))
	require.NoError(t, inv.OpenCart(ctx))

	cart := pages.NewCartPage(inv.Base)
	require.NoError(t, cart.VerifyLoaded(ctx))
	names, err := cart.ItemNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{backpack, bikeLight}, names)
	prices, err := cart.ItemPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"$29.99", "$9.99"}, prices)

	require.NoError(t, cart.Checkout(ctx))
	checkout := pages.NewCheckoutPage(inv.Base)

	require.NoError(t, checkout.FillInformation(ctx, "John", "", "12345"))
	require.NoError(t, checkout.Continue(ctx))
	msg, err := checkout.ErrorMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Error: Last Name is required", msg)

	require.NoError(t, checkout.FillInformation(ctx, "John", "Doe", "12345"))
	require.NoError(t, checkout.Continue(ctx))
	total, err := checkout.ItemTotal(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 39.98, total, 0.001)

	require.NoError(t, checkout.Finish(ctx))
	require.NoError(t, checkout.VerifyComplete(ctx))
	assert.Equal(t, 1, shop.Orders())
	assert.Empty(t, shop.CartNames())
}

func TestCart_RemoveItem(t *testing.T) {
	ctx := context.Background()
	shop, inv := loggedIn(t)
	require.NoError(t, inv.AddAllToCart(ctx, []string{backpack, bikeLight}))

	cart := pages.NewCartPage(inv.Base)
	require.NoError(t, cart.Open(ctx))
	require.NoError(t, cart.RemoveItem(ctx, backpack))

	n, err := cart.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{bikeLight}, shop.CartNames())

	require.NoError(t, cart.ContinueShopping(ctx))
	require.NoError(t, inv.VerifyLoaded(ctx))
}

func TestProtectedPageRedirectsToLogin(t *testing.T) {
	ctx := context.Background()
	_, b := newBase(t)
	inv := pages.NewInventoryPage(b)

	require.NoError(t, inv.Open(ctx))
	assertionError(t, inv.VerifyLoaded(ctx))
	require.NoError(t, pages.NewLoginPage(b).VerifyStillOnLoginPage(ctx))
}
