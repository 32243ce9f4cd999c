package state

import "sync"

type memory struct {
	mm *sync.Map
}

// NewMemoryStore keeps state in process memory only.
func NewMemoryStore() Store {
	return newMemory()
}

func newMemory() *memory {
	return &memory{mm: &sync.Map{}}
}

func (m *memory) fields(ns Namespace, create bool) *sync.Map {
	if fields, ok := m.mm.Load(ns); ok {
		return fields.(*sync.Map)
	}
	if !create {
		return nil
	}
	fields, _ := m.mm.LoadOrStore(ns, &sync.Map{})
	return fields.(*sync.Map)
}

func (m *memory) Get(ns Namespace, field string) ([]byte, bool, error) {
	fields := m.fields(ns, false)
	if fields == nil {
		return nil, false, nil
	}
	value, ok := fields.Load(field)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value.([]byte)...), true, nil
}

func (m *memory) Set(ns Namespace, field string, value []byte) error {
	m.fields(ns, true).Store(field, append([]byte(nil), value...))
	return nil
}

func (m *memory) Clear(ns Namespace, field string) error {
	if fields := m.fields(ns, false); fields != nil {
		fields.Delete(field)
	}
	return nil
}

func (m *memory) ClearNamespace(ns Namespace) error {
	m.mm.Delete(ns)
	return nil
}

func (m *memory) has(ns Namespace, field string) bool {
	fields := m.fields(ns, false)
	if fields == nil {
		return false
	}
	_, ok := fields.Load(field)
	return ok
}

// Namespaces lists the namespaces holding at least one field.
func (m *memory) Namespaces() []Namespace {
	var namespaces []Namespace
	m.mm.Range(func(key, value any) bool {
		empty := true
		value.(*sync.Map).Range(func(any, any) bool {
			empty = false
			return false
		})
		if !empty {
			namespaces = append(namespaces, key.(Namespace))
		}
		return true
	})
	return namespaces
}

func (m *memory) Close() error {
	m.mm = &sync.Map{}
	return nil
}
