package shop

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/shopcheck/pkg/apispec"
)

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newTestShop(t *testing.T, mutate ...func(*Config)) (*Server, *client) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.GlitchDelay = 20 * time.Millisecond
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, m := range mutate {
		m(&cfg)
	}
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return srv, &client{t: t, base: ts.URL, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path, body string) (*http.Response, string) {
	c.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	require.NoError(c.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, string(data)
}

func (c *client) form(path string, values url.Values) (*http.Response, string) {
	c.t.Helper()
	resp, err := c.http.PostForm(c.base+path, values)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, string(data)
}

func (c *client) login(user string) {
	c.t.Helper()
	resp, body := c.do(http.MethodPost, "/api/login", `{"username":"`+user+`","password":"secret_sauce"}`)
	require.Equal(c.t, http.StatusOK, resp.StatusCode, body)
}

func TestLoginPage(t *testing.T) {
	_, c := newTestShop(t)
	resp, body := c.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	for _, want := range []string{`data-test="username"`, `data-test="password"`, `data-test="login-button"`, `class="login_logo"`, `id="login_button_container"`, `data-render-delay="300"`} {
		assert.Contains(t, body, want)
	}
	assert.NotContains(t, body, `data-test="error"`)

	resp, body = c.do(http.MethodGet, "/static/app.js", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "/api/login")
}

func TestLoginAPI(t *testing.T) {
	tests := []struct {
		user, pass string
		status     int
		msg        string
	}{
		{"standard_user", "secret_sauce", http.StatusOK, ""},
		{"problem_user", "secret_sauce", http.StatusOK, ""},
		{"performance_glitch_user", "secret_sauce", http.StatusOK, ""},
		{"locked_out_user", "secret_sauce", http.StatusUnauthorized, msgLockedOut},
		{"invalid_user", "secret_sauce", http.StatusUnauthorized, msgNoMatch},
		{"standard_user", "wrong_password", http.StatusUnauthorized, msgNoMatch},
		{"", "secret_sauce", http.StatusUnauthorized, msgUsernameRequired},
		{"standard_user", "", http.StatusUnauthorized, msgPasswordRequired},
	}
	for _, tt := range tests {
		t.Run(tt.user+"/"+tt.pass, func(t *testing.T) {
			_, c := newTestShop(t)
			in, _ := json.Marshal(map[string]string{"username": tt.user, "password": tt.pass})
			resp, body := c.do(http.MethodPost, "/api/login", string(in))
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.msg != "" {
				assert.JSONEq(t, `{"error":"`+tt.msg+`"}`, body)
			}
		})
	}
}

func TestGlitchUserIsSlow(t *testing.T) {
	_, c := newTestShop(t, func(cfg *Config) { cfg.GlitchDelay = 100 * time.Millisecond })
	start := time.Now()
	c.login("performance_glitch_user")
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestProtectedPagesRedirect(t *testing.T) {
	_, c := newTestShop(t)
	for _, p := range protected {
		resp, body := c.do(http.MethodGet, p, "")
		assert.Equal(t, "/", resp.Request.URL.Path, p)
		assert.Contains(t, body, "Epic sadface: You can only access &#39;"+p+"&#39; when you are logged in.")
	}
}

func TestInventoryAndItem(t *testing.T) {
	_, c := newTestShop(t)
	c.login("standard_user")

	resp, body := c.do(http.MethodGet, "/inventory.html", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 6, strings.Count(body, `class="inventory_item"`))
	assert.Contains(t, body, `data-test="add-to-cart-sauce-labs-backpack"`)
	assert.Contains(t, body, `data-test="product_sort_container"`)
	assert.NotContains(t, body, `class="shopping_cart_badge"`)

	_, body = c.do(http.MethodGet, "/inventory-item.html?id=4", "")
	assert.Contains(t, body, `data-test="inventory-item-name">Sauce Labs Backpack<`)
	assert.Contains(t, body, `data-test="inventory-item-price">$29.99<`)

	_, body = c.do(http.MethodGet, "/inventory-item.html?id=99", "")
	assert.Contains(t, body, "ITEM NOT FOUND")
}

func TestCartAPI(t *testing.T) {
	_, c := newTestShop(t)

	resp, _ := c.do(http.MethodPost, "/api/cart", `{"id":4}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	c.login("standard_user")
	_, body := c.do(http.MethodPost, "/api/cart", `{"id":4}`)
	assert.JSONEq(t, `{"items":[4]}`, body)
	_, body = c.do(http.MethodPost, "/api/cart", `{"id":0}`)
	assert.JSONEq(t, `{"items":[4,0]}`, body)
	_, body = c.do(http.MethodPost, "/api/cart", `{"id":4}`)
	assert.JSONEq(t, `{"items":[4,0]}`, body, "adding twice is a no-op")

	resp, _ = c.do(http.MethodPost, "/api/cart", `{"id":99}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = c.do(http.MethodPost, "/api/cart", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = c.do(http.MethodGet, "/inventory.html", "")
	assert.Contains(t, body, `<span class="shopping_cart_badge">2</span>`)
	assert.Contains(t, body, `data-test="remove-sauce-labs-backpack"`)

	_, body = c.do(http.MethodDelete, "/api/cart/4", "")
	assert.JSONEq(t, `{"items":[0]}`, body)
	_, body = c.do(http.MethodGet, "/api/cart", "")
	assert.JSONEq(t, `{"items":[0]}`, body)
	_, body = c.do(http.MethodDelete, "/api/cart", "")
	assert.JSONEq(t, `{"items":[]}`, body)
}

func TestCheckoutFlow(t *testing.T) {
	srv, c := newTestShop(t)
	c.login("standard_user")
	c.do(http.MethodPost, "/api/cart", `{"id":4}`)
	c.do(http.MethodPost, "/api/cart", `{"id":0}`)

	_, body := c.do(http.MethodGet, "/cart.html", "")
	assert.Equal(t, 2, strings.Count(body, `class="cart_item"`))
	assert.Contains(t, body, `data-test="checkout"`)

	_, body = c.form("/checkout-step-one.html", url.Values{"firstName": {"John"}, "postalCode": {"12345"}})
	assert.Contains(t, body, `<h3 data-test="error">Error: Last Name is required</h3>`)
	assert.Contains(t, body, `value="John"`)

	resp, body := c.form("/checkout-step-one.html", url.Values{"firstName": {"John"}, "lastName": {"Doe"}, "postalCode": {"12345"}})
	assert.Equal(t, "/checkout-step-two.html", resp.Request.URL.Path)
	assert.Contains(t, body, `<div class="summary_subtotal_label">Item total: $39.98</div>`)
	assert.Contains(t, body, `Tax: $3.20`)
	assert.Contains(t, body, `Total: $43.18`)

	resp, body = c.form("/checkout/finish", nil)
	assert.Equal(t, "/checkout-complete.html", resp.Request.URL.Path)
	assert.Contains(t, body, `<h2 class="complete-header">Thank you for your order!</h2>`)

	orders := srv.Orders()
	require.Len(t, orders, 1)
	assert.Contains(t, body, orders[0])

	_, body = c.do(http.MethodGet, "/api/cart", "")
	assert.JSONEq(t, `{"items":[]}`, body)
}

func TestLogout(t *testing.T) {
	_, c := newTestShop(t)
	c.login("standard_user")

	resp, _ := c.do(http.MethodGet, "/logout", "")
	assert.Equal(t, "/", resp.Request.URL.Path)

	resp, _ = c.do(http.MethodGet, "/inventory.html", "")
	assert.Equal(t, "/", resp.Request.URL.Path)
}

func TestUsersAPI(t *testing.T) {
	_, c := newTestShop(t)

	resp, body := c.do(http.MethodGet, "/api/users?page=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, apispec.ValidateJSON(apispec.SchemaUserList, []byte(body)))
	var list struct {
		Page int       `json:"page"`
		Data []apiUser `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	assert.Equal(t, 2, list.Page)
	require.Len(t, list.Data, 6)
	assert.Equal(t, 7, list.Data[0].ID)

	_, body = c.do(http.MethodGet, "/api/users?page=3", "")
	assert.JSONEq(t, `{"page":3,"per_page":6,"total":12,"total_pages":2,"data":[]}`, body)

	resp, body = c.do(http.MethodGet, "/api/users/2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, apispec.ValidateJSON(apispec.SchemaSingleUser, []byte(body)))
	assert.Contains(t, body, `"email":"janet.weaver@reqres.in"`)
	assert.Contains(t, body, `"avatar":"https://`)

	resp, body = c.do(http.MethodGet, "/api/users/23", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{}`, body)

	resp, body = c.do(http.MethodPost, "/api/users", `{"name":"Test User","job":"QA Engineer"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NoError(t, apispec.ValidateJSON(apispec.SchemaCreated, []byte(body)))
	assert.Contains(t, body, `"name":"Test User"`)

	resp, body = c.do(http.MethodPut, "/api/users/2", `{"name":"Updated Name","job":"Senior QA Engineer"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, apispec.ValidateJSON(apispec.SchemaUpdated, []byte(body)))

	resp, body = c.do(http.MethodDelete, "/api/users/2", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, body)

	resp, _ = c.do(http.MethodGet, "/api/invalid-endpoint", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/api/users?page=zero", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = c.do(http.MethodGet, "/api/openapi.yaml", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "openapi: 3.0.3")
}

func TestGlitchLoginHonorsCancel(t *testing.T) {
	_, c := newTestShop(t, func(cfg *Config) { cfg.GlitchDelay = time.Minute })
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/login",
		strings.NewReader(`{"username":"performance_glitch_user","password":"secret_sauce"}`))
	require.NoError(t, err)
	_, err = c.http.Do(req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
