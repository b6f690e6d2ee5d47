package pages

import (
	"context"
	"fmt"
	"strings"

	"github.com/thesyncim/shopcheck/pkg/browser"
)

// Driver is the part of *browser.Page the page objects use.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	WaitFor(ctx context.Context, selector string, state browser.State) error
	WaitURLChange(ctx context.Context, from string) error

	Click(ctx context.Context, selector string) error
	ClickText(ctx context.Context, selector, text string) error
	Fill(ctx context.Context, selector, value string) error
	Select(ctx context.Context, selector string, opt browser.Option) error
	Press(ctx context.Context, selector, key string) error

	Text(ctx context.Context, selector string) (string, error)
	Texts(ctx context.Context, selector string) ([]string, error)
	Attribute(ctx context.Context, selector, name string) (string, bool, error)
	InputValue(ctx context.Context, selector string) (string, error)
	Count(ctx context.Context, selector string) (int, error)
	Visible(ctx context.Context, selector string) (bool, error)
	Enabled(ctx context.Context, selector string) (bool, error)

	Screenshot(ctx context.Context) ([]byte, error)
}

var _ Driver = (*browser.Page)(nil)

// Login page.
const (
	LoginUsername    = "[data-test='username']"
	LoginPassword    = "[data-test='password']"
	LoginButton      = "[data-test='login-button']"
	LoginError       = "[data-test='error']"
	LoginErrorButton = ".error-button"
	LoginLogo        = ".login_logo"
	LoginContainer   = "#login_button_container"
)

// Inventory page.
const (
	AppLogo            = ".app_logo"
	InventoryContainer = "#inventory_container"
	CartLink           = ".shopping_cart_link"
	CartBadge          = ".shopping_cart_badge"
	MenuButton         = "#react-burger-menu-btn"
	MenuPanel          = ".bm-menu"
	MenuClose          = "#react-burger-cross-btn"
	LogoutLink         = "#logout_sidebar_link"
	ResetLink          = "#reset_sidebar_link"
	SortSelect         = "[data-test='product_sort_container']"
	InventoryItem      = ".inventory_item"
	ItemName           = ".inventory_item_name"
	ItemPrice          = ".inventory_item_price"
	ItemDesc           = ".inventory_item_desc"
)

// Product detail page.
const (
	BackToProducts      = "[data-test='back-to-products']"
	ProductImage        = ".inventory_details_img"
	ProductName         = "[data-test='inventory-item-name']"
	ProductDesc         = "[data-test='inventory-item-desc']"
	ProductPrice        = "[data-test='inventory-item-price']"
	ProductAddButton    = "[data-test*='add-to-cart']"
	ProductRemoveButton = "[data-test*='remove']"
)

// Cart page.
const (
	CartItem         = ".cart_item"
	CartContainer    = "#cart_contents_container"
	CheckoutButton   = "[data-test='checkout']"
	ContinueShopping = "[data-test='continue-shopping']"
)

// Checkout pages.
const (
	FirstNameInput  = "[data-test='firstName']"
	LastNameInput   = "[data-test='lastName']"
	PostalCodeInput = "[data-test='postalCode']"
	ContinueButton  = "[data-test='continue']"
	CancelButton    = "[data-test='cancel']"
	FinishButton    = "[data-test='finish']"
	CheckoutError   = "[data-test='error']"
	SubtotalLabel   = ".summary_subtotal_label"
	CompleteHeader  = ".complete-header"
)

// Sort option values of SortSelect.
const (
	SortNameAsc   = "az"
	SortNameDesc  = "za"
	SortPriceAsc  = "lohi"
	SortPriceDesc = "hilo"
)

// Slug turns a product name into its data-test suffix:
// "Sauce Labs Backpack" becomes "sauce-labs-backpack".
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// AddButton is the inventory add-to-cart button of the named product.
func AddButton(name string) string {
	return fmt.Sprintf("[data-test='add-to-cart-%s']", Slug(name))
}

// RemoveButton is the remove button of the named product, on the
// inventory and cart pages.
func RemoveButton(name string) string {
	return fmt.Sprintf("[data-test='remove-%s']", Slug(name))
}
