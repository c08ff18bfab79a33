package setup

import (
	"net/url"
	"slices"
	"sync"

	"github.com/pkg/errors"
)

var ErrSchemeNotRegistered = errors.New("scheme not registered")

// Registry maps URI schemes to the factories able to handle them. Adapters
// register themselves from their init function.
type Registry[T any] struct {
	factories map[string]T
	mutex     sync.RWMutex
}

func (r *Registry[T]) Register(scheme string, factory T) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.factories[scheme] = factory
}

func (r *Registry[T]) Get(scheme string) (T, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	factory, exists := r.factories[scheme]

	return factory, exists
}

// From parses the given URI and returns the factory registered for its
// scheme.
func (r *Registry[T]) From(rawURI string) (T, *url.URL, error) {
	var zero T

	u, err := url.Parse(rawURI)
	if err != nil {
		return zero, nil, errors.Wrapf(err, "could not parse uri '%s'", rawURI)
	}

	factory, exists := r.Get(u.Scheme)
	if !exists {
		return zero, nil, errors.Wrapf(ErrSchemeNotRegistered, "no factory for scheme '%s' (available: %v)", u.Scheme, r.Schemes())
	}

	return factory, u, nil
}

func (r *Registry[T]) Schemes() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	schemes := make([]string, 0, len(r.factories))
	for s := range r.factories {
		schemes = append(schemes, s)
	}

	slices.Sort(schemes)

	return schemes
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		factories: make(map[string]T),
	}
}
