package core

import (
	"sort"
	"sync"
)

// Scene is the authoritative object registry. All mutation goes through
// its mutex; id allocation and insertion happen under the same hold so
// concurrent spawns cannot race.
type Scene struct {
	mu      sync.Mutex
	nextID  int64
	objects map[int64]*NetworkGameObject
}

// NewScene constructs an empty scene. Ids start at 1.
func NewScene() *Scene {
	return &Scene{
		nextID:  1,
		objects: make(map[int64]*NetworkGameObject),
	}
}

// Spawn allocates a fresh id, inserts the object and returns a copy of
// it. Ids are strictly increasing and never reused, including after the
// object is removed.
func (s *Scene) Spawn(ownerID string, prefab PrefabID, position Vec2) NetworkGameObject {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := &NetworkGameObject{
		ID:        s.nextID,
		OwnerID:   ownerID,
		PrefabID:  prefab,
		Transform: DefaultTransform(position),
	}
	s.nextID++
	s.objects[obj.ID] = obj
	return *obj
}

// Get returns a copy of the object and whether it exists.
func (s *Scene) Get(id int64) (NetworkGameObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[id]
	if !ok {
		return NetworkGameObject{}, false
	}
	return *obj, true
}

// UpdateTransform replaces the stored pose for id. Returns false if the
// object is gone, which callers treat as a stale update.
func (s *Scene) UpdateTransform(id int64, t Transform) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[id]
	if !ok {
		return false
	}
	obj.Transform = t
	return true
}

// Remove deletes the object if present. Removing an unknown id is a
// no-op so duplicate disconnect cleanups stay harmless.
func (s *Scene) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, id)
}

// RemoveOwnedBy deletes every object owned by ownerID and returns the
// removed ids in ascending order.
func (s *Scene) RemoveOwnedBy(ownerID string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []int64
	for id, obj := range s.objects {
		if obj.OwnerID == ownerID {
			removed = append(removed, id)
			delete(s.objects, id)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return removed
}

// Snapshot returns copies of all objects sorted by id. Safe to iterate
// while other connections mutate the scene.
func (s *Scene) Snapshot() []NetworkGameObject {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]NetworkGameObject, 0, len(s.objects))
	for _, obj := range s.objects {
		out = append(out, *obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len reports the number of live objects.
func (s *Scene) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
