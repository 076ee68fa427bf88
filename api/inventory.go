package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	"github.com/tanpawarit/kirana-assistant/store"
)

type saleRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", store.DefaultListLimit)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	products, err := s.deps.Inventory.ListProducts(r.Context(), offset, limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if products == nil {
		products = []store.Product{}
	}
	writeJSON(w, r, http.StatusOK, products)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var in store.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := s.deps.Inventory.CreateProduct(r.Context(), in)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, p)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var in store.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := s.deps.Inventory.UpdateProduct(r.Context(), id, in)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.deps.Inventory.DeleteProduct(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bulkMerge(w http.ResponseWriter, r *http.Request) {
	var inputs []store.ProductInput
	if err := decodeJSON(r, &inputs); err != nil {
		writeErr(w, r, err)
		return
	}
	products, err := s.deps.Inventory.BulkMerge(r.Context(), inputs)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, products)
}

func (s *Server) bulkShelf(w http.ResponseWriter, r *http.Request) {
	var items []store.ShelfAssignment
	if err := decodeJSON(r, &items); err != nil {
		writeErr(w, r, err)
		return
	}
	n, err := s.deps.Inventory.UpdateShelfPositions(r.Context(), items)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{"updated": n})
}

func (s *Server) listSales(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", store.DefaultListLimit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	sales, err := s.deps.Inventory.ListSales(r.Context(), limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if sales == nil {
		sales = []store.SaleView{}
	}
	writeJSON(w, r, http.StatusOK, sales)
}

// recordSale goes through the same transaction as a chat sale.
func (s *Server) recordSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	receipt, err := s.deps.Inventory.RecordSale(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, receipt)
}

func (s *Server) seed(w http.ResponseWriter, r *http.Request) {
	seeded, err := s.deps.Inventory.Seed(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"seeded": seeded})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid product id", contractx.ErrValidation)
	}
	return id, nil
}
