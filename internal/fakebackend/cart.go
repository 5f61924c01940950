package fakebackend

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type mergeRequest struct {
	LocalCart []lineJSON `json:"localCart" validate:"dive"`
}

type saveRequest struct {
	Cart []lineJSON `json:"cart" validate:"dive"`
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	p, ok := s.products[id]
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "Product not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"product": p})
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())
	s.mu.Lock()
	items, ok := s.carts[u.ID]
	out := cloneCart(items)
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "Cart not found")
		return
	}
	respondJSON(w, http.StatusOK, cartJSON{Items: out})
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())
	s.mu.Lock()
	s.carts[u.ID] = []lineJSON{}
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

// mergeCart adds the client's anonymous cart onto the stored one, summing
// quantities of shared products and keeping the stored price.
func (s *Server) mergeCart(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if !s.decode(w, r, &req) {
		return
	}
	u := currentUser(r.Context())

	s.mu.Lock()
	merged := foldLines(append(cloneCart(s.carts[u.ID]), req.LocalCart...))
	s.carts[u.ID] = merged
	out := cloneCart(merged)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, cartJSON{Items: out})
}

func (s *Server) saveCart(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !s.decode(w, r, &req) {
		return
	}
	u := currentUser(r.Context())

	s.mu.Lock()
	saved := foldLines(req.Cart)
	s.carts[u.ID] = saved
	out := cloneCart(saved)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, cartJSON{Items: out})
}

func foldLines(lines []lineJSON) []lineJSON {
	out := make([]lineJSON, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

func cloneCart(lines []lineJSON) []lineJSON {
	out := make([]lineJSON, len(lines))
	copy(out, lines)
	return out
}
