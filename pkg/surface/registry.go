package surface

import (
	"fmt"
	"slices"
	"sync"
)

// Resolver looks surfaces up by number.
type Resolver interface {
	Resolve(n Number) (Surface, error)
}

// Registrar is a Resolver that can also issue new numbers.
type Registrar interface {
	Resolver
	Register(s Surface) (Number, error)
}

// Registry is the sole owner of surfaces in a build session. Numbers are
// issued monotonically and never reused. It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	next     Number
	surfaces map[Number]Surface
}

var _ Registrar = (*Registry)(nil)

// NewRegistry returns an empty registry whose first number is 1.
func NewRegistry() *Registry {
	return NewRegistryFrom(1)
}

// NewRegistryFrom returns an empty registry whose first number is start.
// Values below 1 are treated as 1.
func NewRegistryFrom(start Number) *Registry {
	if start < 1 {
		start = 1
	}
	return &Registry{
		next:     start,
		surfaces: make(map[Number]Surface),
	}
}

// Register validates s, normalizes its direction vectors and stores it under
// the next unused number.
func (r *Registry) Register(s Surface) (Number, error) {
	ns, err := normalize(s)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	r.surfaces[n] = ns
	r.next++
	return n, nil
}

// Restore stores s under a caller-chosen number, as when reloading a saved
// session. The counter is advanced past n so later registrations never
// collide with it.
func (r *Registry) Restore(n Number, s Surface) error {
	if n < 1 {
		return fmt.Errorf("restore surface %d: number must be positive", n)
	}
	ns, err := normalize(s)
	if err != nil {
		return fmt.Errorf("restore surface %d: %w", n, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.surfaces[n]; exists {
		return fmt.Errorf("restore surface %d: number already in use", n)
	}
	r.surfaces[n] = ns
	if n >= r.next {
		r.next = n + 1
	}
	return nil
}

// Resolve returns the surface registered under n.
func (r *Registry) Resolve(n Number) (Surface, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.surfaces[n]
	if !ok {
		return nil, &UnknownSurfaceError{Number: n}
	}
	return s, nil
}

// Next returns the number the next Register call will issue.
func (r *Registry) Next() Number {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// Len returns the number of registered surfaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.surfaces)
}

// Numbers returns every registered number in ascending order.
func (r *Registry) Numbers() []Number {
	r.mu.Lock()
	nums := make([]Number, 0, len(r.surfaces))
	for n := range r.surfaces {
		nums = append(nums, n)
	}
	r.mu.Unlock()

	slices.Sort(nums)
	return nums
}
