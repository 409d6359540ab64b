package profile

// Store exposes profile retrieval for HTTP handlers and the session registry.
type Store interface {
	List() []Profile
	FindByID(id string) (Profile, bool)
	Default() Profile
}

// MemoryStore implements Store with an in-memory slice. The first item is the default.
type MemoryStore struct {
	items []Profile
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied profiles.
// An empty list falls back to the built-in EURO-Bot profile.
func NewMemoryStore(items []Profile) *MemoryStore {
	if len(items) == 0 {
		items = []Profile{Default()}
	}
	return &MemoryStore{items: append([]Profile(nil), items...)}
}

// List returns the configured profiles.
func (s *MemoryStore) List() []Profile {
	return append([]Profile(nil), s.items...)
}

// FindByID looks up a profile by identifier.
func (s *MemoryStore) FindByID(id string) (Profile, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Profile{}, false
}

// Default returns the profile used when a session does not ask for one.
func (s *MemoryStore) Default() Profile {
	return s.items[0]
}
