// Package symbols holds the variable table of one compilation.
//
// Entries are created on first use and found case-insensitively afterwards.
// Creation and lookup take the table lock; reference count changes on an
// already bound variable are atomic and never take the lock, so parser
// workers can bind identifiers concurrently.
package symbols

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// DataType is the interpretation of a variable's slot.
type DataType int

const (
	Numeric DataType = iota
	ID
)

func (dt DataType) String() string {
	switch dt {
	case Numeric:
		return "numeric"
	case ID:
		return "id"
	default:
		return "unknown"
	}
}

// Variable is one data segment slot.
type Variable struct {
	ID         int
	Name       string
	IsConstant bool
	IsInput    bool
	IsOutput   bool
	DataType   DataType
	VectorSize int
	Value      float64 // valid when IsConstant

	refs int32
}

// ReferenceCount returns the number of live uses.
func (v *Variable) ReferenceCount() int {
	return int(atomic.LoadInt32(&v.refs))
}

func (v *Variable) String() string {
	flags := ""
	if v.IsConstant {
		flags += "c"
	}
	if v.IsInput {
		flags += "i"
	}
	if v.IsOutput {
		flags += "o"
	}
	return fmt.Sprintf("%s#%d[%s refs=%d]", v.Name, v.ID, flags, v.ReferenceCount())
}

// Table is the variable table.
type Table struct {
	mu     sync.Mutex
	byName map[string]*Variable
	order  []*Variable
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{byName: make(map[string]*Variable)}
}

// Lookup finds a variable by name.
func (t *Table) Lookup(name string) (*Variable, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.byName[strings.ToLower(name)]
	return v, ok
}

// GetOrCreate returns the variable called name, creating it when missing.
// The boolean result is true when the variable was created by this call.
func (t *Table) GetOrCreate(name string) (*Variable, bool) {
	key := strings.ToLower(name)

	t.mu.Lock()
	defer t.mu.Unlock()

	if v, ok := t.byName[key]; ok {
		return v, false
	}
	v := &Variable{ID: len(t.order), Name: name, VectorSize: 1}
	t.byName[key] = v
	t.order = append(t.order, v)
	return v, true
}

// GetOrCreateConstant returns the constant variable holding value. Constants
// are keyed by their canonical literal text, so 0.50 and .5 share a slot.
func (t *Table) GetOrCreateConstant(value float64) *Variable {
	v, created := t.GetOrCreate(FormatConstant(value))
	if created {
		v.IsConstant = true
		v.Value = value
	}
	return v
}

// Touch records one more use of v.
func (t *Table) Touch(v *Variable) {
	atomic.AddInt32(&v.refs, 1)
}

// Release records one less use of v.
func (t *Table) Release(v *Variable) {
	if atomic.AddInt32(&v.refs, -1) < 0 {
		atomic.StoreInt32(&v.refs, 0)
	}
}

// Remove deletes v from the table.
func (t *Table) Remove(v *Variable) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.byName, strings.ToLower(v.Name))
	for i, o := range t.order {
		if o == v {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Variables returns the variables in creation order (or id order once
// Renumber ran).
func (t *Table) Variables() []*Variable {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Variable, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of variables.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// Renumber assigns dense ids following the order given by rank; variables
// not ranked keep their relative creation order after the ranked ones.
func (t *Table) Renumber(rank func(v *Variable) (int, bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	type ranked struct {
		v     *Variable
		r     int
		ok    bool
		index int
	}
	list := make([]ranked, len(t.order))
	for i, v := range t.order {
		r, ok := rank(v)
		list[i] = ranked{v: v, r: r, ok: ok, index: i}
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.ok != b.ok {
			return a.ok
		}
		if a.ok && a.r != b.r {
			return a.r < b.r
		}
		return a.index < b.index
	})
	for i, e := range list {
		e.v.ID = i
		t.order[i] = e.v
	}
}

// FormatConstant renders a constant value in its canonical literal form.
func FormatConstant(value float64) string {
	return strconv.FormatFloat(float64(float32(value)), 'g', -1, 32)
}
