package schema

import (
	"fmt"
	"sync/atomic"
)

// Holder publishes the current Description to concurrent readers.
//
// Readers call Load and keep the returned pointer for the whole of one
// translation; a reload swaps in a new Description and never mutates the
// one readers may still hold.
type Holder struct {
	current atomic.Pointer[Description]
	path    string
}

// NewHolder returns a Holder publishing desc.
func NewHolder(desc *Description) *Holder {
	h := &Holder{}
	h.current.Store(desc)
	return h
}

// LoadHolder reads the schema at path and remembers the path for Reload.
func LoadHolder(path string) (*Holder, error) {
	desc, err := Load(path)
	if err != nil {
		return nil, err
	}
	h := NewHolder(desc)
	h.path = path
	return h, nil
}

// Load returns the current description.
func (h *Holder) Load() *Description {
	return h.current.Load()
}

// Swap publishes desc and returns the previous description.
func (h *Holder) Swap(desc *Description) *Description {
	return h.current.Swap(desc)
}

// Reload re-reads the file the Holder was loaded from. On error the current
// description stays published.
func (h *Holder) Reload() (*Description, error) {
	if h.path == "" {
		return nil, fmt.Errorf("reload schema: holder was not loaded from a file")
	}
	desc, err := Load(h.path)
	if err != nil {
		return nil, err
	}
	h.current.Store(desc)
	return desc, nil
}
