package shop

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/thesyncim/shopcheck/pkg/apispec"
)

const usersPerPage = 6

func (h *handler) apiRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", h.apiLogin)

	mux.HandleFunc("GET /api/cart", h.apiSession(h.getCart))
	mux.HandleFunc("POST /api/cart", h.apiSession(h.addCart))
	mux.HandleFunc("DELETE /api/cart", h.apiSession(h.resetCart))
	mux.HandleFunc("DELETE /api/cart/{id}", h.apiSession(h.removeCart))

	mux.HandleFunc("GET /api/users", h.listUsers)
	mux.HandleFunc("POST /api/users", h.createUser)
	mux.HandleFunc("GET /api/users/{id}", h.getUser)
	mux.HandleFunc("PUT /api/users/{id}", h.updateUser)
	mux.HandleFunc("PATCH /api/users/{id}", h.updateUser)
	mux.HandleFunc("DELETE /api/users/{id}", h.deleteUser)

	mux.HandleFunc("GET /api/openapi.yaml", static("application/yaml", string(apispec.Raw())))
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func apiError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) apiLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apiError(w, http.StatusBadRequest, "invalid login request")
		return
	}
	if in.Username == glitchUser && h.cfg.GlitchDelay > 0 {
		select {
		case <-time.After(h.cfg.GlitchDelay):
		case <-r.Context().Done():
			return
		}
	}
	if msg := checkLogin(in.Username, in.Password); msg != "" {
		apiError(w, http.StatusUnauthorized, msg)
		return
	}
	id := h.store.newSession(in.Username)
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	h.log.Info("user logged in", "user", in.Username)
	writeJSON(w, http.StatusOK, map[string]string{"username": in.Username})
}

type cartBody struct {
	Items []int `json:"items"`
}

// apiSession rejects API calls without a live session.
func (h *handler) apiSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.sessionID(r)
		if !ok {
			apiError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		next(w, r, id)
	}
}

func (h *handler) getCart(w http.ResponseWriter, r *http.Request, id string) {
	var out cartBody
	h.store.view(id, func(s *session) { out.Items = append([]int{}, s.cart...) })
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) addCart(w http.ResponseWriter, r *http.Request, id string) {
	var in struct {
		ID *int `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ID == nil {
		apiError(w, http.StatusBadRequest, "product id is required")
		return
	}
	var (
		out cartBody
		err error
	)
	h.store.view(id, func(s *session) {
		err = h.store.addToCart(s, *in.ID)
		out.Items = append([]int{}, s.cart...)
	})
	if err != nil {
		apiError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) removeCart(w http.ResponseWriter, r *http.Request, id string) {
	pid, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		apiError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var out cartBody
	h.store.view(id, func(s *session) {
		removeFromCart(s, pid)
		out.Items = append([]int{}, s.cart...)
	})
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) resetCart(w http.ResponseWriter, r *http.Request, id string) {
	h.store.view(id, func(s *session) { s.cart = nil })
	writeJSON(w, http.StatusOK, cartBody{Items: []int{}})
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			apiError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = n
	}
	users, total := h.store.userPage(page, usersPerPage)
	writeJSON(w, http.StatusOK, map[string]any{
		"page":        page,
		"per_page":    usersPerPage,
		"total":       total,
		"total_pages": (total + usersPerPage - 1) / usersPerPage,
		"data":        users,
	})
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	u, ok := h.store.user(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": u})
}

type userInput struct {
	Name string `json:"name,omitempty"`
	Job  string `json:"job,omitempty"`
}

// decodeUser reads an optional user body; an empty body is allowed.
func decodeUser(w http.ResponseWriter, r *http.Request) (userInput, bool) {
	var in userInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		apiError(w, http.StatusBadRequest, "invalid user")
		return in, false
	}
	return in, true
}

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"name":      in.Name,
		"job":       in.Job,
		"id":        h.store.createUser(),
		"createdAt": timestamp(time.Now()),
	})
}

func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":      in.Name,
		"job":       in.Job,
		"updatedAt": timestamp(time.Now()),
	})
}

func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
