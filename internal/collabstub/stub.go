// Package collabstub is an in-memory stand-in for the catalog, identity,
// licensing, library and reviews services. It speaks the same JSON contracts
// the order service consumes and is used for local runs and end-to-end tests.
package collabstub

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Item struct {
	ID     string
	Name   string
	Price  decimal.Decimal
	Stock  int
	Status string
	Active bool
}

type User struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Role      string
	Status    string
	CreatedAt time.Time
}

type License struct {
	ID          string
	Key         string
	ExpiresAt   time.Time
	State       string
	ItemID      string
	OrderLineID string
}

type Entry struct {
	ID     string
	UserID string
	ItemID string
	Name   string
	Price  decimal.Decimal
}

type Rating struct {
	Average decimal.Decimal
	Count   int
}

const (
	StateFree  = "free"
	StateBound = "bound"
)

// Stub holds the state of every fake collaborator behind one mutex.
type Stub struct {
	mu       sync.Mutex
	items    map[string]*Item
	users    map[string]*User
	licenses map[string]*License
	entries  map[string]*Entry
	ratings  map[string]Rating
	// failures maps a service name to a forced HTTP status.
	failures map[string]int
}

func New() *Stub {
	return &Stub{
		items:    make(map[string]*Item),
		users:    make(map[string]*User),
		licenses: make(map[string]*License),
		entries:  make(map[string]*Entry),
		ratings:  make(map[string]Rating),
		failures: make(map[string]int),
	}
}

// Seeded returns a stub with a small demo catalog.
func Seeded() *Stub {
	s := New()
	s.AddUser(User{ID: "user_1", Name: "Ada Lovelace", Email: "ada@example.com", Role: "CUSTOMER", Status: "ACTIVE"})
	s.AddUser(User{ID: "user_2", Name: "Alan Turing", Email: "alan@example.com", Role: "CUSTOMER", Status: "ACTIVE"})

	s.AddItem(Item{ID: "game_1", Name: "Hollow Knight", Price: decimal.RequireFromString("30.00"), Stock: 15, Active: true})
	s.AddItem(Item{ID: "game_2", Name: "Celeste", Price: decimal.RequireFromString("19.99"), Stock: 10, Active: true})
	s.AddItem(Item{ID: "game_3", Name: "Outer Wilds", Price: decimal.RequireFromString("24.99"), Stock: 0, Active: true})

	s.AddLicense(License{Key: "HK-AAAA-1111", ExpiresAt: mustDate("2026-01-01"), ItemID: "game_1"})
	s.AddLicense(License{Key: "HK-BBBB-2222", ExpiresAt: mustDate("2025-06-01"), ItemID: "game_1"})
	s.AddLicense(License{Key: "CE-CCCC-3333", ExpiresAt: mustDate("2027-03-15"), ItemID: "game_2"})

	s.SetRating("game_1", decimal.RequireFromString("4.80"), 120)
	s.SetRating("game_2", decimal.RequireFromString("4.60"), 85)
	return s
}

func (s *Stub) AddItem(it Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.Status == "" {
		it.Status = "AVAILABLE"
	}
	s.items[it.ID] = &it
}

func (s *Stub) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = &u
}

// AddLicense registers a key. Empty ID and State default to a uuid and free.
func (s *Stub) AddLicense(l License) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.State == "" {
		l.State = StateFree
	}
	s.licenses[l.ID] = &l
	return l.ID
}

func (s *Stub) SetRating(itemID string, avg decimal.Decimal, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings[itemID] = Rating{Average: avg, Count: count}
}

// Fail makes every route of service answer with status. Zero clears it.
func (s *Stub) Fail(service string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, service)
		return
	}
	s.failures[service] = status
}

func (s *Stub) failure(service string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[service]
}

func (s *Stub) Stock(itemID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[itemID]; ok {
		return it.Stock
	}
	return 0
}

// Entries returns userID's library, ordered by item id.
func (s *Stub) Entries(userID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

// BoundLicenses returns the keys of itemID that are no longer free.
func (s *Stub) BoundLicenses(itemID string) []License {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []License
	for _, l := range s.licenses {
		if l.ItemID == itemID && l.State == StateBound {
			out = append(out, *l)
		}
	}
	return out
}

func (s *Stub) item(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

func (s *Stub) user(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

var (
	errNotFound = errors.New("not found")
	errConflict = errors.New("conflict")
)

// decreaseStock is all-or-nothing: a request above the current stock leaves
// it untouched.
func (s *Stub) decreaseStock(itemID string, qty int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[itemID]
	if !ok {
		return 0, errNotFound
	}
	if it.Stock < qty {
		slog.Info("stub: insufficient stock", "item_id", itemID, "available", it.Stock, "requested", qty)
		return 0, fmt.Errorf("%w: only %d left of %s", errConflict, it.Stock, itemID)
	}
	it.Stock -= qty
	slog.Info("stub: stock decreased", "item_id", itemID, "quantity", qty, "stock", it.Stock)
	return it.Stock, nil
}

func (s *Stub) freeLicenses(itemID string, limit int) []License {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []License
	for _, l := range s.licenses {
		if l.ItemID == itemID && l.State == StateFree {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Stub) assign(licenseID, lineID string) (License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.licenses[licenseID]
	if !ok {
		return License{}, errNotFound
	}
	if l.State != StateFree {
		return License{}, fmt.Errorf("%w: license %s already bound", errConflict, licenseID)
	}
	l.State = StateBound
	l.OrderLineID = lineID
	return *l, nil
}

func (s *Stub) license(id string) (License, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.licenses[id]
	if !ok {
		return License{}, false
	}
	return *l, true
}

func (s *Stub) addEntry(e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := e.UserID + "/" + e.ItemID
	if _, ok := s.entries[key]; ok {
		return Entry{}, fmt.Errorf("%w: %s already owns %s", errConflict, e.UserID, e.ItemID)
	}
	e.ID = uuid.NewString()
	s.entries[key] = &e
	return e, nil
}

func (s *Stub) rating(itemID string) Rating {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.ratings[itemID]; ok {
		return r
	}
	return Rating{Average: decimal.Zero}
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
