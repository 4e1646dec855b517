package grid

import "fmt"

// Coord is an (x, y) cell address. Validity depends on the grid size.
type Coord struct {
	X int
	Y int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Pair is a single key/value attribute.
type Pair struct {
	Key   string
	Value Value
}

// P is shorthand for building a Pair.
func P(key string, v Value) Pair {
	return Pair{Key: key, Value: v}
}

// Attributes is the ordered attribute list stored at one coordinate.
// Keys are not required to be unique; lookups and updates act on the
// first pair whose key matches.
type Attributes []Pair

// Get returns the value of the first pair with the given key.
func (a Attributes) Get(key string) (Value, bool) {
	for _, p := range a {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// Set replaces the value of the first pair with the given key, keeping its
// position, or appends a new pair when no key matches. The returned slice
// must be used in place of a, as with append.
func (a Attributes) Set(key string, v Value) Attributes {
	for i := range a {
		if a[i].Key == key {
			a[i].Value = v
			return a
		}
	}
	return append(a, Pair{Key: key, Value: v})
}

// Clone returns an independent copy of a. A non-nil empty list clones to a
// non-nil empty list so that "present but empty" survives copying.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	copy(out, a)
	return out
}

// Equal reports whether a and o hold the same pairs in the same order.
func (a Attributes) Equal(o Attributes) bool {
	if len(a) != len(o) {
		return false
	}
	for i := range a {
		if a[i].Key != o[i].Key || !a[i].Value.Equal(o[i].Value) {
			return false
		}
	}
	return true
}
