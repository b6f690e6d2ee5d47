package shop

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/thesyncim/shopcheck/pkg/fixtures"
)

const sessionCookie = "session-id"

// protected pages redirect to the login page without a session.
var protected = []string{
	"/inventory.html",
	"/inventory-item.html",
	"/cart.html",
	"/checkout-step-one.html",
	"/checkout-step-two.html",
	"/checkout-complete.html",
}

type handler struct {
	cfg   Config
	store *store
	log   *slog.Logger
}

func (h *handler) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.login)
	mux.HandleFunc("GET /logout", h.logout)
	mux.HandleFunc("GET /inventory.html", h.withSession(h.inventory))
	mux.HandleFunc("GET /inventory-item.html", h.withSession(h.item))
	mux.HandleFunc("GET /cart.html", h.withSession(h.cart))
	mux.HandleFunc("GET /checkout-step-one.html", h.withSession(h.checkoutOne))
	mux.HandleFunc("POST /checkout-step-one.html", h.withSession(h.submitCheckout))
	mux.HandleFunc("GET /checkout-step-two.html", h.withSession(h.checkoutTwo))
	mux.HandleFunc("POST /checkout/finish", h.withSession(h.finish))
	mux.HandleFunc("GET /checkout-complete.html", h.withSession(h.complete))
	mux.HandleFunc("GET /static/app.js", static("text/javascript; charset=utf-8", appJS))
	mux.HandleFunc("GET /static/site.css", static("text/css; charset=utf-8", siteCSS))

	h.apiRoutes(mux)
	return h.logged(mux)
}

// logged logs one line per request at debug level.
func (h *handler) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func static(contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, id string)

// withSession sends requests without a live session back to the login
// page, which explains why.
func (h *handler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.sessionID(r)
		if !ok {
			http.Redirect(w, r, "/?denied="+url.QueryEscape(r.URL.Path), http.StatusSeeOther)
			return
		}
		next(w, r, id)
	}
}

func (h *handler) sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	return c.Value, h.store.view(c.Value, func(*session) {})
}

type productView struct {
	fixtures.Product
	Slug   string
	InCart bool
}

type pageData struct {
	RenderDelayMS int64
	CartCount     int
	Error         string

	Products []productView
	Product  *productView
	Info     checkoutInfo
	Subtotal string
	Tax      string
	Total    string
	OrderID  string
}

func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

func money(v float64) string { return fmt.Sprintf("$%.2f", v) }

// data builds the template data shared by the logged-in pages.
func (h *handler) data(s *session) pageData {
	return pageData{
		RenderDelayMS: h.cfg.RenderDelay.Milliseconds(),
		CartCount:     len(s.cart),
	}
}

func (h *handler) view(p fixtures.Product, s *session) productView {
	return productView{Product: p, Slug: slug(p.Name), InCart: slices.Contains(s.cart, p.ID)}
}

func (h *handler) render(w http.ResponseWriter, name string, data pageData) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.log.Error("render page", "page", name, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	data := pageData{RenderDelayMS: h.cfg.RenderDelay.Milliseconds()}
	if denied := r.URL.Query().Get("denied"); slices.Contains(protected, denied) {
		data.Error = fmt.Sprintf("Epic sadface: You can only access '%s' when you are logged in.", denied)
	}
	h.render(w, "login", data)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.sessionID(r); ok {
		h.store.endSession(id)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *handler) inventory(w http.ResponseWriter, r *http.Request, id string) {
	var data pageData
	h.store.view(id, func(s *session) {
		data = h.data(s)
		for _, p := range h.store.products {
			data.Products = append(data.Products, h.view(p, s))
		}
	})
	h.render(w, "inventory", data)
}

func (h *handler) item(w http.ResponseWriter, r *http.Request, id string) {
	pid, err := strconv.Atoi(r.URL.Query().Get("id"))
	var data pageData
	h.store.view(id, func(s *session) {
		data = h.data(s)
		if err != nil {
			return
		}
		if p, ok := h.store.product(pid); ok {
			v := h.view(p, s)
			data.Product = &v
		}
	})
	h.render(w, "item", data)
}

func (h *handler) cart(w http.ResponseWriter, r *http.Request, id string) {
	var data pageData
	h.store.view(id, func(s *session) {
		data = h.data(s)
		for _, p := range h.store.cartProducts(s) {
			data.Products = append(data.Products, h.view(p, s))
		}
	})
	h.render(w, "cart", data)
}

func (h *handler) checkoutOne(w http.ResponseWriter, r *http.Request, id string) {
	var data pageData
	h.store.view(id, func(s *session) {
		data = h.data(s)
		data.Info = s.info
	})
	h.render(w, "checkout-one", data)
}

func (h *handler) submitCheckout(w http.ResponseWriter, r *http.Request, id string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	info := checkoutInfo{
		FirstName:  r.PostForm.Get("firstName"),
		LastName:   r.PostForm.Get("lastName"),
		PostalCode: r.PostForm.Get("postalCode"),
	}
	msg := info.problem()
	var data pageData
	h.store.view(id, func(s *session) {
		s.info = info
		data = h.data(s)
		data.Info = info
		data.Error = msg
	})
	if msg != "" {
		h.render(w, "checkout-one", data)
		return
	}
	http.Redirect(w, r, "/checkout-step-two.html", http.StatusSeeOther)
}

func (h *handler) checkoutTwo(w http.ResponseWriter, r *http.Request, id string) {
	var data pageData
	var subtotal float64
	h.store.view(id, func(s *session) {
		data = h.data(s)
		for _, p := range h.store.cartProducts(s) {
			data.Products = append(data.Products, h.view(p, s))
			subtotal += p.Price
		}
	})
	tax := math.Round(subtotal*8) / 100 // 8%
	data.Subtotal, data.Tax, data.Total = money(subtotal), money(tax), money(subtotal+tax)
	h.render(w, "checkout-two", data)
}

func (h *handler) finish(w http.ResponseWriter, r *http.Request, id string) {
	var order string
	h.store.view(id, func(s *session) { order = h.store.placeOrder(s) })
	h.log.Info("order placed", "order", order)
	http.Redirect(w, r, "/checkout-complete.html?order="+url.QueryEscape(order), http.StatusSeeOther)
}

func (h *handler) complete(w http.ResponseWriter, r *http.Request, id string) {
	var data pageData
	h.store.view(id, func(s *session) { data = h.data(s) })
	data.OrderID = r.URL.Query().Get("order")
	h.render(w, "complete", data)
}
