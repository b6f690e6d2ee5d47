package shop

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thesyncim/shopcheck/pkg/fixtures"
)

// Accounts. Every account shares one password.
const (
	standardUser    = "standard_user"
	lockedOutUser   = "locked_out_user"
	problemUser     = "problem_user"
	glitchUser      = "performance_glitch_user"
	accountPassword = "secret_sauce"
)

// Login errors, as the storefront words them.
const (
	msgUsernameRequired = "Epic sadface: Username is required"
	msgPasswordRequired = "Epic sadface: Password is required"
	msgNoMatch          = "Epic sadface: Username and password do not match any user in this service"
	msgLockedOut        = "Epic sadface: Sorry, this user has been locked out."
)

// Checkout errors.
const (
	msgFirstNameRequired  = "Error: First Name is required"
	msgLastNameRequired   = "Error: Last Name is required"
	msgPostalCodeRequired = "Error: Postal Code is required"
)

// checkLogin returns the error shown for the credentials, or "".
func checkLogin(user, pass string) string {
	switch {
	case user == "":
		return msgUsernameRequired
	case pass == "":
		return msgPasswordRequired
	case pass != accountPassword:
		return msgNoMatch
	}
	switch user {
	case standardUser, problemUser, glitchUser:
		return ""
	case lockedOutUser:
		return msgLockedOut
	}
	return msgNoMatch
}

type checkoutInfo struct {
	FirstName, LastName, PostalCode string
}

func (c checkoutInfo) problem() string {
	switch {
	case strings.TrimSpace(c.FirstName) == "":
		return msgFirstNameRequired
	case strings.TrimSpace(c.LastName) == "":
		return msgLastNameRequired
	case strings.TrimSpace(c.PostalCode) == "":
		return msgPostalCodeRequired
	}
	return ""
}

type session struct {
	user string
	cart []int // product ids in the order they were added
	info checkoutInfo
}

// apiUser is one record of the users API.
type apiUser struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar"`
}

var seedUsers = [][2]string{
	{"George", "Bluth"}, {"Janet", "Weaver"}, {"Emma", "Wong"}, {"Eve", "Holt"},
	{"Charles", "Morris"}, {"Tracey", "Ramos"}, {"Michael", "Lawson"}, {"Lindsay", "Ferguson"},
	{"Tobias", "Funke"}, {"Byron", "Fields"}, {"George", "Edwards"}, {"Rachel", "Howell"},
}

type store struct {
	mu       sync.Mutex
	products []fixtures.Product
	sessions map[string]*session
	orders   []string
	users    []apiUser
	nextUser int
}

func newStore() *store {
	st := &store{
		products: fixtures.Catalog(),
		sessions: map[string]*session{},
	}
	for i, n := range seedUsers {
		id := i + 1
		st.users = append(st.users, apiUser{
			ID:        id,
			Email:     strings.ToLower(n[0]+"."+n[1]) + "@reqres.in",
			FirstName: n[0],
			LastName:  n[1],
			Avatar:    fmt.Sprintf("https://reqres.in/img/faces/%d-image.jpg", id),
		})
	}
	st.nextUser = len(st.users) + 1
	return st
}

func (st *store) product(id int) (fixtures.Product, bool) {
	for _, p := range st.products {
		if p.ID == id {
			return p, true
		}
	}
	return fixtures.Product{}, false
}

// newSession registers a logged-in session and returns its id.
func (st *store) newSession(user string) string {
	id := uuid.NewString()
	st.mu.Lock()
	st.sessions[id] = &session{user: user}
	st.mu.Unlock()
	return id
}

func (st *store) endSession(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// view runs fn on the session under the store lock. It reports false for
// unknown sessions.
func (st *store) view(id string, fn func(s *session)) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return false
	}
	fn(s)
	return true
}

func (st *store) addToCart(s *session, id int) error {
	if _, ok := st.product(id); !ok {
		return fmt.Errorf("unknown product %d", id)
	}
	if !slices.Contains(s.cart, id) {
		s.cart = append(s.cart, id)
	}
	return nil
}

func removeFromCart(s *session, id int) {
	s.cart = slices.DeleteFunc(s.cart, func(c int) bool { return c == id })
}

func (st *store) cartProducts(s *session) []fixtures.Product {
	out := make([]fixtures.Product, 0, len(s.cart))
	for _, id := range s.cart {
		if p, ok := st.product(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// placeOrder empties the cart and records an order id.
func (st *store) placeOrder(s *session) string {
	id := uuid.NewString()
	s.cart = nil
	s.info = checkoutInfo{}
	st.orders = append(st.orders, id)
	return id
}

func (st *store) orderIDs() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return slices.Clone(st.orders)
}

// Users API.

func (st *store) userPage(page, perPage int) (users []apiUser, total int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	total = len(st.users)
	start := (page - 1) * perPage
	if start >= total || start < 0 {
		return []apiUser{}, total
	}
	end := min(start+perPage, total)
	return slices.Clone(st.users[start:end]), total
}

func (st *store) user(id int) (apiUser, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, u := range st.users {
		if u.ID == id {
			return u, true
		}
	}
	return apiUser{}, false
}

// createUser allocates an id for a created record. Like the public demo
// API, created records are acknowledged but not listed.
func (st *store) createUser() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := st.nextUser
	st.nextUser++
	return strconv.Itoa(id)
}

func timestamp(t time.Time) string { return t.UTC().Format("2006-01-02T15:04:05.000Z") }
