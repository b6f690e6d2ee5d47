// Package fixtures holds the suite's test data: the storefront catalog,
// login cases, accounts and checkout forms.
package fixtures

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Product is a catalog entry.
type Product struct {
	ID          int     `yaml:"id"`
	Name        string  `yaml:"name"`
	Price       float64 `yaml:"price"`
	Description string  `yaml:"description"`
}

// PriceLabel renders the price the way the storefront does ("$29.99").
func (p Product) PriceLabel() string { return fmt.Sprintf("$%.2f", p.Price) }

var loadCatalog = sync.OnceValues(func() ([]Product, error) {
	return ParseCatalog(catalogYAML)
})

// ParseCatalog decodes a catalog document.
func ParseCatalog(data []byte) ([]Product, error) {
	var doc struct {
		Products []Product `yaml:"products"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Products) == 0 {
		return nil, errors.New("parse catalog: no products")
	}
	seen := make(map[int]bool, len(doc.Products))
	for _, p := range doc.Products {
		if seen[p.ID] {
			return nil, fmt.Errorf("parse catalog: duplicate product id %d", p.ID)
		}
		seen[p.ID] = true
	}
	return doc.Products, nil
}

// Catalog returns the embedded catalog in its default display order. The
// embedded file is checked by tests, so an error here means a broken build.
func Catalog() []Product {
	products, err := loadCatalog()
	if err != nil {
		panic(err)
	}
	return slices.Clone(products)
}

// ProductByName looks a product up by its exact name.
func ProductByName(name string) (Product, bool) {
	for _, p := range Catalog() {
		if p.Name == name {
			return p, true
		}
	}
	return Product{}, false
}

// ProductByID looks a product up by id.
func ProductByID(id int) (Product, bool) {
	for _, p := range Catalog() {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// Cheapest returns the lowest-priced product.
func Cheapest() Product {
	return slices.MinFunc(Catalog(), func(a, b Product) int { return cmpFloat(a.Price, b.Price) })
}

// MostExpensive returns the highest-priced product.
func MostExpensive() Product {
	return slices.MaxFunc(Catalog(), func(a, b Product) int { return cmpFloat(a.Price, b.Price) })
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// LoginCase is one row of the data-driven login test.
type LoginCase struct {
	Username       string
	Password       string
	ExpectedResult string
}

// LoginCasesFile is the file LoginCases looks for.
const LoginCasesFile = "login_test_data.csv"

// DefaultLoginCases is used when no CSV file is available.
func DefaultLoginCases() []LoginCase {
	return []LoginCase{
		{"standard_user", "secret_sauce", "success"},
		{"locked_out_user", "secret_sauce", "locked_out"},
		{"problem_user", "secret_sauce", "success"},
		{"performance_glitch_user", "secret_sauce", "success"},
		{"invalid_user", "secret_sauce", "invalid_credentials"},
		{"standard_user", "wrong_password", "invalid_credentials"},
		{"", "secret_sauce", "username_required"},
		{"standard_user", "", "password_required"},
	}
}

// LoginCases reads login_test_data.csv from dir. A missing or malformed
// file falls back to DefaultLoginCases; malformed files are logged.
func LoginCases(dir string, log *slog.Logger) []LoginCase {
	if log == nil {
		log = slog.Default()
	}
	path := filepath.Join(dir, LoginCasesFile)
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Error("open login cases", "path", path, "error", err)
		}
		return DefaultLoginCases()
	}
	defer f.Close()

	cases, err := ReadLoginCases(f)
	if err != nil {
		log.Error("read login cases", "path", path, "error", err)
		return DefaultLoginCases()
	}
	return cases
}

// ReadLoginCases parses CSV with a username,password,expected_result
// header. Columns may come in any order.
func ReadLoginCases(r io.Reader) ([]LoginCase, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{"username", "password", "expected_result"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var out []LoginCase
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(out)+1, err)
		}
		out = append(out, LoginCase{
			Username:       rec[col["username"]],
			Password:       rec[col["password"]],
			ExpectedResult: rec[col["expected_result"]],
		})
	}
	if len(out) == 0 {
		return nil, errors.New("no login cases")
	}
	return out, nil
}

// User is a storefront account.
type User struct {
	Username string
	Password string
	Kind     string
}

var validUsers = []User{
	{"standard_user", "secret_sauce", "standard"},
	{"problem_user", "secret_sauce", "problem"},
	{"performance_glitch_user", "secret_sauce", "performance"},
}

var invalidUsers = []User{
	{"locked_out_user", "secret_sauce", "locked_out"},
	{"invalid_user", "secret_sauce", "invalid_credentials"},
	{"standard_user", "wrong_password", "invalid_credentials"},
	{"", "secret_sauce", "username_required"},
	{"standard_user", "", "password_required"},
}

// ValidUser returns the account of the given kind (standard, problem,
// performance), or the standard user for unknown kinds.
func ValidUser(kind string) User {
	for _, u := range validUsers {
		if u.Kind == kind {
			return u
		}
	}
	return validUsers[0]
}

// InvalidUser returns credentials producing the given login error, or
// the locked-out user for unknown kinds.
func InvalidUser(errorKind string) User {
	for _, u := range invalidUsers {
		if u.Kind == errorKind {
			return u
		}
	}
	return invalidUsers[0]
}

// CheckoutInfo is the customer form of checkout step one.
type CheckoutInfo struct {
	FirstName  string
	LastName   string
	PostalCode string
}

// ValidCheckout returns a complete form.
func ValidCheckout() CheckoutInfo {
	return CheckoutInfo{FirstName: "John", LastName: "Doe", PostalCode: "12345"}
}

// InvalidCheckout returns a form missing the field named by errorKind
// (first_name_required, last_name_required, postal_code_required), and
// the first of those for unknown kinds. The second value is the error
// the storefront shows for it.
func InvalidCheckout(errorKind string) (CheckoutInfo, string) {
	info := ValidCheckout()
	switch errorKind {
	case "last_name_required":
		info.LastName = ""
		return info, "Error: Last Name is required"
	case "postal_code_required":
		info.PostalCode = ""
		return info, "Error: Postal Code is required"
	default:
		info.FirstName = ""
		return info, "Error: First Name is required"
	}
}

// Profile is a generated customer.
type Profile struct {
	FirstName string
	LastName  string
	Email     string
	Username  string
	Password  string
	Job       string
}

var (
	firstNames = []string{"Ada", "Grace", "Linus", "Margaret", "Ken", "Barbara", "Dennis", "Frances"}
	lastNames  = []string{"Lovelace", "Hopper", "Torvalds", "Hamilton", "Thompson", "Liskov", "Ritchie", "Allen"}
	jobs       = []string{"leader", "engineer", "tester", "designer"}
)

// FakeUser generates a unique profile. Names are picked from a small
// pool; the username and email carry a random suffix.
func FakeUser() Profile {
	id := uuid.New()
	b := id[:]
	first := firstNames[int(b[0])%len(firstNames)]
	last := lastNames[int(b[1])%len(lastNames)]
	suffix := strings.ReplaceAll(id.String(), "-", "")[:12]
	username := strings.ToLower(first) + "_" + suffix
	return Profile{
		FirstName: first,
		LastName:  last,
		Email:     username + "@example.com",
		Username:  username,
		Password:  "P@" + suffix,
		Job:       jobs[int(b[2])%len(jobs)],
	}
}
