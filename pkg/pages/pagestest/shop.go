// Package pagestest provides an in-memory storefront that implements
// pages.Driver, so page objects and steps can be tested without Chrome.
//
// The fake renders the same locators as the real storefront. Cart and
// sort changes become visible only after a configurable render delay,
// and clicks can be made to fail transiently, which is enough to drive
// the retry paths of the page objects deterministically.
package pagestest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/thesyncim/shopcheck/pkg/browser"
	"github.com/thesyncim/shopcheck/pkg/fixtures"
	"github.com/thesyncim/shopcheck/pkg/pages"
	"github.com/thesyncim/shopcheck/pkg/resilient"
)

// BaseURL is the address the fake pretends to serve.
const BaseURL = "http://shop.test/"

var errCovered = errors.New("element is covered by another element")

type view struct {
	cart []int
	sort string
}

func (v view) clone() view {
	return view{cart: slices.Clone(v.cart), sort: v.sort}
}

func (v view) has(id int) bool { return slices.Contains(v.cart, id) }

type node struct {
	sels    []string
	text    string
	value   string
	attrs   map[string]string
	hidden  bool
	onClick func()
}

func (n node) matches(sel string) bool { return slices.Contains(n.sels, sel) }

// Shop is a fake storefront. The zero value is not usable; call New.
type Shop struct {
	mu sync.Mutex

	products []fixtures.Product
	delay    time.Duration
	changed  time.Time
	actual   view
	shown    view

	page     string
	itemID   int
	user     string
	errMsg   string
	menuOpen bool
	inputs   map[string]string
	orders   int

	clicks map[string]int
	fail   map[string]int
	badge  string
}

// New returns a fake storefront showing the login page.
func New() *Shop {
	return &Shop{
		products: fixtures.Catalog(),
		actual:   view{sort: pages.SortNameAsc},
		shown:    view{sort: pages.SortNameAsc},
		page:     "/",
		inputs:   map[string]string{},
		clicks:   map[string]int{},
		fail:     map[string]int{},
	}
}

var _ pages.Driver = (*Shop)(nil)

// SetRenderDelay sets how long cart and sort changes take to show.
func (s *Shop) SetRenderDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// SetBadgeText makes the cart badge render text instead of the item
// count while the cart is not empty.
func (s *Shop) SetBadgeText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.badge = text
}

// FailClicks makes the next n clicks on selector fail transiently
// without effect.
func (s *Shop) FailClicks(selector string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[selector] = n
}

// Clicks returns how many clicks on selector reached the page.
func (s *Shop) Clicks(selector string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clicks[selector]
}

// CartNames returns the product names in the cart, ignoring render lag.
func (s *Shop) CartNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, id := range s.actual.cart {
		if p, ok := s.product(id); ok {
			out = append(out, p.Name)
		}
	}
	return out
}

// Orders returns how many orders were placed.
func (s *Shop) Orders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders
}

// LogIn signs user in and shows the inventory.
func (s *Shop) LogIn(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.page = "/inventory.html"
}

// current returns what the page shows right now.
func (s *Shop) current() view {
	if time.Since(s.changed) >= s.delay {
		s.shown = s.actual.clone()
	}
	return s.shown
}

func (s *Shop) mutate(fn func(v *view)) {
	s.shown = s.current()
	fn(&s.actual)
	s.changed = time.Now()
	if s.delay <= 0 {
		s.shown = s.actual.clone()
	}
}

func (s *Shop) product(id int) (fixtures.Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return fixtures.Product{}, false
}

func (s *Shop) sorted(order string) []fixtures.Product {
	out := slices.Clone(s.products)
	switch order {
	case pages.SortNameAsc:
		slices.SortStableFunc(out, func(a, b fixtures.Product) int { return strings.Compare(a.Name, b.Name) })
	case pages.SortNameDesc:
		slices.SortStableFunc(out, func(a, b fixtures.Product) int { return strings.Compare(b.Name, a.Name) })
	case pages.SortPriceAsc:
		slices.SortStableFunc(out, func(a, b fixtures.Product) int { return cmpPrice(a.Price, b.Price) })
	case pages.SortPriceDesc:
		slices.SortStableFunc(out, func(a, b fixtures.Product) int { return cmpPrice(b.Price, a.Price) })
	}
	return out
}

func cmpPrice(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// dom renders the current page.
func (s *Shop) dom() []node {
	v := s.current()
	var out []node
	header := func() {
		out = append(out,
			node{sels: []string{pages.AppLogo}, text: pages.Title},
			node{sels: []string{pages.CartLink}, onClick: func() { s.page = "/cart.html" }},
			node{sels: []string{pages.MenuButton}, onClick: func() { s.menuOpen = true }},
			node{sels: []string{pages.MenuPanel}, hidden: !s.menuOpen},
			node{sels: []string{pages.MenuClose}, hidden: !s.menuOpen, onClick: func() { s.menuOpen = false }},
			node{sels: []string{pages.LogoutLink}, hidden: !s.menuOpen, onClick: s.logout},
			node{sels: []string{pages.ResetLink}, hidden: !s.menuOpen, onClick: func() {
				s.mutate(func(v *view) { v.cart = nil })
			}},
		)
		if len(v.cart) > 0 {
			badge := strconv.Itoa(len(v.cart))
			if s.badge != "" {
				badge = s.badge
			}
			out = append(out, node{sels: []string{pages.CartBadge}, text: badge})
		}
	}
	cartButton := func(p fixtures.Product) node {
		id := p.ID
		if v.has(id) {
			return node{
				sels: []string{pages.RemoveButton(p.Name), pages.ProductRemoveButton},
				text: "Remove",
				onClick: func() {
					s.mutate(func(v *view) {
						v.cart = slices.DeleteFunc(v.cart, func(c int) bool { return c == id })
					})
				},
			}
		}
		return node{
			sels: []string{pages.AddButton(p.Name), pages.ProductAddButton},
			text: "Add to cart",
			onClick: func() {
				s.mutate(func(v *view) {
					if !v.has(id) {
						v.cart = append(v.cart, id)
					}
				})
			},
		}
	}

	switch s.page {
	case "/":
		out = append(out,
			node{sels: []string{pages.LoginContainer}},
			node{sels: []string{pages.LoginLogo}, text: pages.Title},
			node{sels: []string{pages.LoginUsername}, value: s.inputs[pages.LoginUsername], attrs: map[string]string{"placeholder": "Username"}},
			node{sels: []string{pages.LoginPassword}, value: s.inputs[pages.LoginPassword], attrs: map[string]string{"placeholder": "Password"}},
			node{sels: []string{pages.LoginButton}, value: "Login", onClick: s.submitLogin},
		)
		if s.errMsg != "" {
			out = append(out,
				node{sels: []string{pages.LoginError}, text: s.errMsg},
				node{sels: []string{pages.LoginErrorButton}, onClick: func() { s.errMsg = "" }},
			)
		}
	case "/inventory.html":
		header()
		out = append(out,
			node{sels: []string{pages.InventoryContainer}},
			node{sels: []string{pages.SortSelect}, value: v.sort},
		)
		for _, p := range s.sorted(v.sort) {
			id := p.ID
			out = append(out,
				node{sels: []string{pages.InventoryItem}},
				node{sels: []string{pages.ItemName}, text: p.Name, onClick: func() {
					s.page, s.itemID = "/inventory-item.html", id
				}},
				node{sels: []string{pages.ItemDesc}, text: p.Description},
				node{sels: []string{pages.ItemPrice}, text: p.PriceLabel()},
				cartButton(p),
			)
		}
	case "/inventory-item.html":
		header()
		p, ok := s.product(s.itemID)
		if !ok {
			break
		}
		out = append(out,
			node{sels: []string{pages.BackToProducts}, onClick: func() { s.page = "/inventory.html" }},
			node{sels: []string{pages.ProductImage}},
			node{sels: []string{pages.ProductName}, text: p.Name},
			node{sels: []string{pages.ProductDesc}, text: p.Description},
			node{sels: []string{pages.ProductPrice}, text: p.PriceLabel()},
			cartButton(p),
		)
	case "/cart.html":
		header()
		out = append(out,
			node{sels: []string{pages.CartContainer}},
			node{sels: []string{pages.CheckoutButton}, onClick: func() { s.page = "/checkout-step-one.html" }},
			node{sels: []string{pages.ContinueShopping}, onClick: func() { s.page = "/inventory.html" }},
		)
		for _, id := range v.cart {
			p, _ := s.product(id)
			out = append(out,
				node{sels: []string{pages.CartItem}},
				node{sels: []string{pages.ItemName}, text: p.Name},
				node{sels: []string{pages.ItemPrice}, text: p.PriceLabel()},
				cartButton(p),
			)
		}
	case "/checkout-step-one.html":
		header()
		for _, sel := range []string{pages.FirstNameInput, pages.LastNameInput, pages.PostalCodeInput} {
			out = append(out, node{sels: []string{sel}, value: s.inputs[sel]})
		}
		out = append(out,
			node{sels: []string{pages.ContinueButton}, onClick: s.checkoutContinue},
			node{sels: []string{pages.CancelButton}, onClick: func() { s.page = "/cart.html" }},
		)
		if s.errMsg != "" {
			out = append(out, node{sels: []string{pages.CheckoutError}, text: s.errMsg})
		}
	case "/checkout-step-two.html":
		header()
		var total float64
		for _, id := range v.cart {
			p, _ := s.product(id)
			total += p.Price
		}
		out = append(out,
			node{sels: []string{pages.SubtotalLabel}, text: fmt.Sprintf("Item total: $%.2f", total)},
			node{sels: []string{pages.FinishButton}, onClick: s.finish},
			node{sels: []string{pages.CancelButton}, onClick: func() { s.page = "/inventory.html" }},
		)
	case "/checkout-complete.html":
		header()
		out = append(out, node{sels: []string{pages.CompleteHeader}, text: "Thank you for your order!"})
	}
	return out
}

func (s *Shop) submitLogin() {
	user, pass := s.inputs[pages.LoginUsername], s.inputs[pages.LoginPassword]
	switch {
	case user == "":
		s.errMsg = "Epic sadface: Username is required"
	case pass == "":
		s.errMsg = "Epic sadface: Password is required"
	case pass != pages.ValidPassword || !validUser(user):
		s.errMsg = "Epic sadface: Username and password do not match any user in this service"
	case user == pages.LockedOutUser:
		s.errMsg = "Epic sadface: Sorry, this user has been locked out."
	default:
		s.errMsg = ""
		s.user = user
		s.page = "/inventory.html"
	}
}

func validUser(u string) bool {
	switch u {
	case pages.StandardUser, pages.LockedOutUser, pages.ProblemUser, pages.PerformanceGlitchUser:
		return true
	}
	return false
}

func (s *Shop) logout() {
	s.user, s.menuOpen, s.page = "", false, "/"
	s.inputs = map[string]string{}
}

func (s *Shop) checkoutContinue() {
	switch {
	case s.inputs[pages.FirstNameInput] == "":
		s.errMsg = "Error: First Name is required"
	case s.inputs[pages.LastNameInput] == "":
		s.errMsg = "Error: Last Name is required"
	case s.inputs[pages.PostalCodeInput] == "":
		s.errMsg = "Error: Postal Code is required"
	default:
		s.errMsg = ""
		s.page = "/checkout-step-two.html"
	}
}

func (s *Shop) finish() {
	s.orders++
	s.mutate(func(v *view) { v.cart = nil })
	s.page = "/checkout-complete.html"
}

func (s *Shop) find(sel string) []node {
	var out []node
	for _, n := range s.dom() {
		if n.matches(sel) {
			out = append(out, n)
		}
	}
	return out
}

// await polls until pred finds a match or ctx ends, and returns the
// first matching node with the lock held.
func (s *Shop) await(ctx context.Context, op, sel string, pred func(n node) bool) (node, error) {
	for {
		s.mu.Lock()
		for _, n := range s.find(sel) {
			if pred(n) {
				return n, nil
			}
		}
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return node{}, resilient.Transient(fmt.Errorf("%s %s: %w", op, sel, ctx.Err()))
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func visible(n node) bool { return !n.hidden }
func attached(node) bool { return true }

func (s *Shop) Navigate(_ context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", raw, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := u.Path
	if path == "" {
		path = "/"
	}
	s.menuOpen, s.errMsg = false, ""
	if path != "/" && s.user == "" {
		s.page = "/"
		s.errMsg = fmt.Sprintf("Epic sadface: You can only access '%s' when you are logged in.", path)
		return nil
	}
	if path == "/inventory-item.html" {
		id, _ := strconv.Atoi(u.Query().Get("id"))
		s.itemID = id
	}
	s.page = path
	return nil
}

func (s *Shop) URL(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := strings.TrimRight(BaseURL, "/") + s.page
	if s.page == "/inventory-item.html" {
		u += "?id=" + strconv.Itoa(s.itemID)
	}
	return u, nil
}

func (s *Shop) Title(context.Context) (string, error) { return pages.Title, nil }

func (s *Shop) WaitFor(ctx context.Context, sel string, state browser.State) error {
	if state == browser.StateHidden {
		for {
			s.mu.Lock()
			shown := false
			for _, n := range s.find(sel) {
				shown = shown || visible(n)
			}
			s.mu.Unlock()
			if !shown {
				return nil
			}
			select {
			case <-ctx.Done():
				return resilient.Transient(fmt.Errorf("wait hidden %s: %w", sel, ctx.Err()))
			case <-time.After(2 * time.Millisecond):
			}
		}
	}
	pred := visible
	if state == browser.StateAttached {
		pred = attached
	}
	_, err := s.await(ctx, "wait "+state.String(), sel, pred)
	if err == nil {
		s.mu.Unlock()
	}
	return err
}

func (s *Shop) WaitURLChange(ctx context.Context, from string) error {
	for {
		u, _ := s.URL(ctx)
		if u != from {
			return nil
		}
		select {
		case <-ctx.Done():
			return resilient.Transient(fmt.Errorf("wait url change from %s: %w", from, ctx.Err()))
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (s *Shop) Click(ctx context.Context, sel string) error {
	n, err := s.await(ctx, "click", sel, visible)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.click(sel, n)
}

func (s *Shop) click(sel string, n node) error {
	if s.fail[sel] > 0 {
		s.fail[sel]--
		return resilient.Transient(fmt.Errorf("click %s: %w", sel, errCovered))
	}
	s.clicks[sel]++
	if n.onClick != nil {
		n.onClick()
	}
	return nil
}

func (s *Shop) ClickText(ctx context.Context, sel, text string) error {
	n, err := s.await(ctx, "click", sel, func(n node) bool {
		return visible(n) && strings.Contains(n.text, text)
	})
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.click(sel, n)
}

func (s *Shop) Fill(ctx context.Context, sel, value string) error {
	if _, err := s.await(ctx, "fill", sel, visible); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.inputs[sel] = value
	return nil
}

func (s *Shop) Select(ctx context.Context, sel string, opt browser.Option) error {
	if _, err := s.await(ctx, "select", sel, visible); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if sel != pages.SortSelect {
		return fmt.Errorf("select %s: not a select element", sel)
	}
	labels := map[string]string{
		"Name (A to Z)":       pages.SortNameAsc,
		"Name (Z to A)":       pages.SortNameDesc,
		"Price (low to high)": pages.SortPriceAsc,
		"Price (high to low)": pages.SortPriceDesc,
	}
	values := []string{pages.SortNameAsc, pages.SortNameDesc, pages.SortPriceAsc, pages.SortPriceDesc}

	var value string
	switch opt.By {
	case browser.ByValue:
		if !slices.Contains(values, opt.Value) {
			return resilient.Transient(fmt.Errorf("select %s: no option with value %q", sel, opt.Value))
		}
		value = opt.Value
	case browser.ByLabel:
		v, ok := labels[opt.Value]
		if !ok {
			return resilient.Transient(fmt.Errorf("select %s: no option labeled %q", sel, opt.Value))
		}
		value = v
	case browser.ByIndex:
		if opt.Index < 0 || opt.Index >= len(values) {
			return fmt.Errorf("select %s: option index %d out of range", sel, opt.Index)
		}
		value = values[opt.Index]
	}
	s.clicks[sel]++
	s.mutate(func(v *view) { v.sort = value })
	return nil
}

func (s *Shop) Press(ctx context.Context, sel, key string) error {
	if _, err := s.await(ctx, "press", sel, visible); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if key == "Enter" && (sel == pages.LoginPassword || sel == pages.LoginUsername) {
		s.submitLogin()
	}
	return nil
}

func (s *Shop) Text(ctx context.Context, sel string) (string, error) {
	n, err := s.await(ctx, "text", sel, attached)
	if err != nil {
		return "", err
	}
	s.mu.Unlock()
	return n.text, nil
}

func (s *Shop) Texts(_ context.Context, sel string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []string{}
	for _, n := range s.find(sel) {
		out = append(out, n.text)
	}
	return out, nil
}

func (s *Shop) Attribute(ctx context.Context, sel, name string) (string, bool, error) {
	n, err := s.await(ctx, "attribute", sel, attached)
	if err != nil {
		return "", false, err
	}
	s.mu.Unlock()
	v, ok := n.attrs[name]
	return v, ok, nil
}

func (s *Shop) InputValue(ctx context.Context, sel string) (string, error) {
	n, err := s.await(ctx, "value", sel, attached)
	if err != nil {
		return "", err
	}
	s.mu.Unlock()
	return n.value, nil
}

func (s *Shop) Count(_ context.Context, sel string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.find(sel)), nil
}

func (s *Shop) Visible(_ context.Context, sel string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.find(sel) {
		if visible(n) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Shop) Enabled(_ context.Context, sel string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.find(sel)) == 0 {
		return false, fmt.Errorf("enabled %s: %w", sel, browser.ErrNotFound)
	}
	return true, nil
}

// Screenshot returns a PNG signature; the fake has nothing to draw.
func (s *Shop) Screenshot(context.Context) ([]byte, error) {
	return []byte("\x89PNG\r\n\x1a\n"), nil
}
