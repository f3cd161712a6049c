package demo

import (
	"slices"
	"strconv"
	"sync"

	"github.com/advdv/bpipe"
	"github.com/cockroachdb/errors"
)

// ErrUnknown is returned when a user or item does not exist.
var ErrUnknown = bpipe.NewError(bpipe.CodeNotFound, errors.New("no such record"))

// Item is something that can be listed, fetched, created and deleted.
type Item struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Tags  []string `json:"tags,omitempty"`
}

// User is an account with the fields from the model-binding example.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Email string `json:"email"`
}

// Store keeps users and items in memory.
type Store struct {
	mu     sync.RWMutex
	items  map[string]Item
	order  []string
	users  map[string]User
	nextID int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{items: map[string]Item{}, users: map[string]User{}}
}

func (s *Store) id() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

// AddItem stores an item under a fresh id.
func (s *Store) AddItem(it Item) Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	it.ID = s.id()
	it.Tags = slices.Clone(it.Tags)
	s.items[it.ID] = it
	s.order = append(s.order, it.ID)

	return it
}

// Item returns the item with the given id.
func (s *Store) Item(id string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return Item{}, errors.Wrapf(ErrUnknown, "item %q", id)
	}
	return it, nil
}

// Items returns one page of items in insertion order. Pages start at 1.
func (s *Store) Items(page, limit int) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Item{}
	start := (page - 1) * limit
	if start < 0 || start >= len(s.order) {
		return out
	}

	end := min(start+limit, len(s.order))
	for _, id := range s.order[start:end] {
		out = append(out, s.items[id])
	}

	return out
}

// DeleteItem removes an item.
func (s *Store) DeleteItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return errors.Wrapf(ErrUnknown, "item %q", id)
	}
	delete(s.items, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })

	return nil
}

// AddUser stores a user under a fresh id.
func (s *Store) AddUser(u User) User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.ID = s.id()
	s.users[u.ID] = u

	return u
}

// User returns the user with the given id.
func (s *Store) User(id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, errors.Wrapf(ErrUnknown, "user %q", id)
	}
	return u, nil
}
