package collabstub

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/adapters/httpclient"
)

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves every collaborator contract from one router. The paths do
// not overlap, so a single base URL can stand in for all five services.
func (s *Stub) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(s.failing(httpclient.ServiceCatalog))
		r.Get("/item/{id}", s.getItem)
		r.Post("/item/{id}/decrease-stock", s.decreaseStockHandler)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.failing(httpclient.ServiceIdentity))
		r.Get("/user/{id}", s.getUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.failing(httpclient.ServiceLicensing))
		r.Get("/licenses", s.listLicenses)
		r.Get("/license/{id}", s.getLicense)
		r.Post("/license/{id}/assign", s.assignLicense)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.failing(httpclient.ServiceLibrary))
		r.Post("/entries", s.createEntry)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.failing(httpclient.ServiceReviews))
		r.Get("/rating/{itemId}", s.getRating)
	})
	return r
}

func (s *Stub) failing(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if status := s.failure(service); status != 0 {
				writeError(w, status, service+" is failing on purpose")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Stub) getItem(w http.ResponseWriter, r *http.Request) {
	it, ok := s.item(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, httpclient.ItemDTO{
		ID:     it.ID,
		Name:   it.Name,
		Price:  it.Price,
		Stock:  it.Stock,
		Status: it.Status,
		Active: it.Active,
	})
}

func (s *Stub) decreaseStockHandler(w http.ResponseWriter, r *http.Request) {
	var req httpclient.DecreaseStockDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be a positive integer")
		return
	}

	id := chi.URLParam(r, "id")
	stock, err := s.decreaseStock(id, req.Quantity)
	switch {
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, errConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeJSON(w, http.StatusOK, httpclient.StockDTO{ID: id, Stock: stock})
	}
}

func (s *Stub) getUser(w http.ResponseWriter, r *http.Request) {
	u, ok := s.user(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, httpclient.UserDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	})
}

func (s *Stub) listLicenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if state := q.Get("state"); state != "" && state != StateFree {
		writeJSON(w, http.StatusOK, []httpclient.LicenseDTO{})
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	free := s.freeLicenses(q.Get("itemId"), limit)
	out := make([]httpclient.LicenseDTO, 0, len(free))
	for _, l := range free {
		out = append(out, licenseDTO(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Stub) getLicense(w http.ResponseWriter, r *http.Request) {
	l, ok := s.license(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "license not found")
		return
	}
	writeJSON(w, http.StatusOK, licenseDTO(l))
}

func (s *Stub) assignLicense(w http.ResponseWriter, r *http.Request) {
	var req httpclient.AssignLicenseDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderLineID == "" {
		writeError(w, http.StatusBadRequest, "orderLineId is required")
		return
	}

	l, err := s.assign(chi.URLParam(r, "id"), req.OrderLineID)
	switch {
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "license not found")
	case errors.Is(err, errConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeJSON(w, http.StatusOK, licenseDTO(l))
	}
}

func (s *Stub) createEntry(w http.ResponseWriter, r *http.Request) {
	var req httpclient.EntryDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "userId and itemId are required")
		return
	}

	e, err := s.addEntry(Entry{
		UserID: req.UserID,
		ItemID: req.ItemID,
		Name:   req.Metadata.Name,
		Price:  req.Metadata.Price,
	})
	if errors.Is(err, errConflict) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, httpclient.EntryDTO{
		ID:     e.ID,
		UserID: e.UserID,
		ItemID: e.ItemID,
		Metadata: httpclient.EntryMetadataDTO{
			Name:  e.Name,
			Price: e.Price,
		},
	})
}

func (s *Stub) getRating(w http.ResponseWriter, r *http.Request) {
	rt := s.rating(chi.URLParam(r, "itemId"))
	writeJSON(w, http.StatusOK, httpclient.RatingDTO{Average: rt.Average, Count: rt.Count})
}

func licenseDTO(l License) httpclient.LicenseDTO {
	return httpclient.LicenseDTO{
		ID:        l.ID,
		Key:       l.Key,
		ExpiresAt: l.ExpiresAt.Format(httpclient.DateLayout),
		State:     l.State,
		ItemID:    l.ItemID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
