package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/bornholm/sectioncache/internal/core/port"
	"github.com/pkg/errors"
)

// ObjectStore keeps objects per type, in insertion order.
type ObjectStore struct {
	objects map[string][]model.Object
	mutex   sync.RWMutex
}

// Objects implements port.ObjectStore.
func (s *ObjectStore) Objects(ctx context.Context, query *model.Query) ([]model.Object, error) {
	s.mutex.RLock()
	objects := slices.Clone(s.objects[query.ObjectTypeName])
	s.mutex.RUnlock()

	results, err := query.Apply(objects)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return results, nil
}

func (s *ObjectStore) Add(objectTypeName string, objects ...model.Object) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.objects[objectTypeName] = append(s.objects[objectTypeName], objects...)
}

// Replace swaps every object of the given type.
func (s *ObjectStore) Replace(objectTypeName string, objects ...model.Object) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.objects[objectTypeName] = slices.Clone(objects)
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{
		objects: make(map[string][]model.Object),
	}
}

var _ port.ObjectStore = &ObjectStore{}
