package symbols

import (
	"sync"
	"testing"
)

func TestGetOrCreate(t *testing.T) {
	table := NewTable()

	a, created := table.GetOrCreate("Speed")
	if !created || a.ID != 0 || a.VectorSize != 1 {
		t.Fatalf("first GetOrCreate wrong. got=%s created=%t", a, created)
	}
	b, created := table.GetOrCreate("SPEED")
	if created || b != a {
		t.Errorf("lookup must be case-insensitive")
	}
	if v, ok := table.Lookup("speed"); !ok || v != a {
		t.Errorf("Lookup wrong. got=%v", v)
	}
	if table.Len() != 1 {
		t.Errorf("length wrong. expected=1, got=%d", table.Len())
	}
}

func TestConstants(t *testing.T) {
	tests := []struct {
		value    float64
		expected string
	}{
		{2, "2"},
		{-3, "-3"},
		{0.25, "0.25"},
		{1.0 / 3.0, "0.33333334"},
		{1e20, "1e+20"},
	}

	table := NewTable()
	for i, tt := range tests {
		if got := FormatConstant(tt.value); got != tt.expected {
			t.Errorf("tests[%d] - FormatConstant(%v) wrong. expected=%q, got=%q", i, tt.value, tt.expected, got)
		}
		v := table.GetOrCreateConstant(tt.value)
		if !v.IsConstant || v.Name != tt.expected || v.Value != tt.value {
			t.Errorf("tests[%d] - constant wrong. got=%s value=%v", i, v, v.Value)
		}
	}

	if table.GetOrCreateConstant(2.0) != table.GetOrCreateConstant(2) {
		t.Errorf("equal constants must share a slot")
	}
}

func TestReferenceCount(t *testing.T) {
	table := NewTable()
	v, _ := table.GetOrCreate("x")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table.Touch(v)
		}()
	}
	wg.Wait()

	if got := v.ReferenceCount(); got != 50 {
		t.Errorf("reference count wrong. expected=50, got=%d", got)
	}
	for i := 0; i < 60; i++ {
		table.Release(v)
	}
	if got := v.ReferenceCount(); got != 0 {
		t.Errorf("reference count must not go negative. got=%d", got)
	}
}

func TestRemoveAndRenumber(t *testing.T) {
	table := NewTable()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		table.GetOrCreate(name)
	}
	c, _ := table.Lookup("c")
	table.Remove(c)
	if _, ok := table.Lookup("c"); ok {
		t.Fatalf("removed variable still found")
	}

	rank := map[string]int{"e": 0, "b": 1}
	table.Renumber(func(v *Variable) (int, bool) {
		r, ok := rank[v.Name]
		return r, ok
	})

	expected := []string{"e", "b", "a", "d"}
	vars := table.Variables()
	if len(vars) != len(expected) {
		t.Fatalf("variable count wrong. expected=%d, got=%d", len(expected), len(vars))
	}
	for i, name := range expected {
		if vars[i].Name != name || vars[i].ID != i {
			t.Errorf("vars[%d] wrong. expected=%s#%d, got=%s#%d", i, name, i, vars[i].Name, vars[i].ID)
		}
	}
}
