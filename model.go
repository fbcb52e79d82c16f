package hayabib

import (
	"iter"
	"slices"
	"time"
)

// Reserved collection ids. They collide with routes of the original
// application and can never name a collection.
const (
	ReservedNew    = "new"
	ReservedImport = "import"
)

// IsReservedID reports whether id is one of the reserved tokens.
func IsReservedID(id string) bool { return id == ReservedNew || id == ReservedImport }

// Collection is one bibliography: metadata plus its entry map.
type Collection struct {
	Metadata CollectionMetadata
	Entries  *EntryMap
}

// CollectionMetadata describes a collection. ID is its storage identity.
type CollectionMetadata struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// EnsureEntries returns the collection's entry map, allocating it when nil.
func (c *Collection) EnsureEntries() *EntryMap {
	if c.Entries == nil {
		c.Entries = NewEntryMap()
	}
	return c.Entries
}

// EntryMap maps citation keys to entries and remembers insertion order.
// The zero value is not usable; use NewEntryMap.
type EntryMap struct {
	keys  []string
	items map[string]*Entry
}

// NewEntryMap returns an empty map.
func NewEntryMap() *EntryMap {
	return &EntryMap{items: make(map[string]*Entry)}
}

// Len returns the number of entries.
func (m *EntryMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the entry keys in insertion order.
func (m *EntryMap) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// Get returns the entry stored under key.
func (m *EntryMap) Get(key string) (*Entry, bool) {
	if m == nil {
		return nil, false
	}
	e, ok := m.items[key]
	return e, ok
}

// Has reports whether key is present.
func (m *EntryMap) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores e under key. New keys are appended; existing keys keep their slot.
func (m *EntryMap) Set(key string, e *Entry) {
	if _, ok := m.items[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.items[key] = e
}

// Delete removes key and reports whether it was present.
func (m *EntryMap) Delete(key string) bool {
	if m == nil {
		return false
	}
	if _, ok := m.items[key]; !ok {
		return false
	}
	delete(m.items, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
	return true
}

// Rename moves the entry at from to key to, keeping its position. It fails
// when from is absent or to is already taken.
func (m *EntryMap) Rename(from, to string) bool {
	e, ok := m.items[from]
	if !ok || from == to {
		return ok
	}
	if _, taken := m.items[to]; taken {
		return false
	}
	i := slices.Index(m.keys, from)
	m.keys[i] = to
	delete(m.items, from)
	m.items[to] = e
	return true
}

// All iterates entries in insertion order.
func (m *EntryMap) All() iter.Seq2[string, *Entry] {
	return func(yield func(string, *Entry) bool) {
		if m == nil {
			return
		}
		for _, k := range m.keys {
			if !yield(k, m.items[k]) {
				return
			}
		}
	}
}

// Entry is one bibliographic reference. Type is mandatory for entries at the
// top of a collection and optional for parents. Pointer fields are nil when
// absent.
//
// Extra keeps every field the model does not know, and every known field
// whose value has a shape the model cannot represent, exactly as decoded.
type Entry struct {
	Type            string
	Title           *FormattableString
	Author          *People
	Date            *Date
	Parent          *Parents
	Abstract        *FormattableString
	Genre           *FormattableString
	Editor          *People
	Affiliated      []Affiliated
	CallNumber      *FormattableString
	Publisher       *Publisher
	Location        *FormattableString
	Organization    *FormattableString
	Issue           *Numeric
	Volume          *Numeric
	VolumeTotal     *int64
	Chapter         *Numeric
	Edition         *Numeric
	PageRange       *Numeric
	PageTotal       *int64
	TimeRange       *string
	Runtime         *string
	URL             *URL
	SerialNumber    *SerialNumber
	Language        *string
	Archive         *FormattableString
	ArchiveLocation *FormattableString
	Note            *FormattableString
	Extra           map[string]any
}

// DefaultEntryType is assumed for parents that omit type.
const DefaultEntryType = "misc"

// EffectiveType returns the entry type, falling back to DefaultEntryType.
func (e *Entry) EffectiveType() string {
	if e.Type == "" {
		return DefaultEntryType
	}
	return e.Type
}

// Parents returns the parent entries, if any.
func (e *Entry) Parents() []*Entry {
	if e.Parent == nil {
		return nil
	}
	return e.Parent.Items
}
