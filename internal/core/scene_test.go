package core

import (
	"fmt"
	"sync"
	"testing"
)

func TestSceneIDsAreMonotonicAndNeverReused(t *testing.T) {
	s := NewScene()

	a := s.Spawn("c1", 1, Vec2{X: 1, Y: 2})
	b := s.Spawn("c1", 1, Vec2{})
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("expected ids 1,2 got %d,%d", a.ID, b.ID)
	}

	s.Remove(a.ID)
	c := s.Spawn("c2", 2, Vec2{})
	if c.ID != 3 {
		t.Fatalf("expected id 3 after removal, got %d", c.ID)
	}
}

func TestSceneRemoveIsIdempotent(t *testing.T) {
	s := NewScene()
	obj := s.Spawn("c1", 1, Vec2{})

	s.Remove(obj.ID)
	s.Remove(obj.ID)
	s.Remove(999)

	if s.Len() != 0 {
		t.Fatalf("expected empty scene, got %d objects", s.Len())
	}
}

func TestSceneUpdateTransform(t *testing.T) {
	s := NewScene()
	obj := s.Spawn("c1", 1, Vec2{X: 3, Y: 4})

	pose := Transform{Position: Vec2{X: 5, Y: 4}, Scale: Vec2{X: 1, Y: 1}, Rotation: 90}
	if !s.UpdateTransform(obj.ID, pose) {
		t.Fatalf("expected update to succeed")
	}

	got, ok := s.Get(obj.ID)
	if !ok {
		t.Fatalf("object disappeared")
	}
	if got.Transform != pose {
		t.Fatalf("unexpected transform: %+v", got.Transform)
	}

	if s.UpdateTransform(999, pose) {
		t.Fatalf("expected update for unknown id to fail")
	}
}

func TestSceneRemoveOwnedBy(t *testing.T) {
	s := NewScene()
	s.Spawn("c1", 1, Vec2{})
	s.Spawn("c2", 1, Vec2{})
	s.Spawn("c1", 1, Vec2{})

	removed := s.RemoveOwnedBy("c1")
	if len(removed) != 2 || removed[0] != 1 || removed[1] != 3 {
		t.Fatalf("unexpected removed ids: %v", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 object left, got %d", s.Len())
	}

	if again := s.RemoveOwnedBy("c1"); len(again) != 0 {
		t.Fatalf("expected no removals on second pass, got %v", again)
	}
}

func TestSceneSnapshotIsACopy(t *testing.T) {
	s := NewScene()
	s.Spawn("c1", 1, Vec2{})
	s.Spawn("c1", 2, Vec2{})

	snap := s.Snapshot()
	if len(snap) != 2 || snap[0].ID != 1 || snap[1].ID != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	// Mutating the scene after the snapshot must not affect it.
	s.RemoveOwnedBy("c1")
	if len(snap) != 2 {
		t.Fatalf("snapshot changed under mutation")
	}
}

func TestConcurrentSpawnsAllocateUniqueIDs(t *testing.T) {
	s := NewScene()

	const workers, perWorker = 8, 50
	ids := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(owner string) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				ids <- s.Spawn(owner, 1, Vec2{}).ID
			}
		}(fmt.Sprintf("c%d", i))
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	var max int64
	for id := range ids {
		if seen[id] {
			t.Fatalf("id %d allocated twice", id)
		}
		seen[id] = true
		if id > max {
			max = id
		}
	}
	const total = workers * perWorker
	if len(seen) != total || max != total {
		t.Fatalf("expected %d ids up to %d, got %d up to %d", total, total, len(seen), max)
	}
	if s.Len() != total {
		t.Fatalf("scene holds %d objects, want %d", s.Len(), total)
	}
}

func TestConcurrentSpawnAndOwnerCleanup(t *testing.T) {
	s := NewScene()

	const spawns = 100
	var mu sync.Mutex
	removed := make(map[int64]bool)
	record := func(ids []int64) {
		mu.Lock()
		defer mu.Unlock()
		for _, id := range ids {
			if removed[id] {
				t.Errorf("id %d removed twice", id)
			}
			removed[id] = true
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < spawns; i++ {
			s.Spawn("c1", 1, Vec2{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			record(s.RemoveOwnedBy("c1"))
		}
	}()
	wg.Wait()
	record(s.RemoveOwnedBy("c1"))

	if len(removed) != spawns {
		t.Fatalf("removed %d objects, want %d", len(removed), spawns)
	}
	if s.Len() != 0 {
		t.Fatalf("scene still holds %d objects", s.Len())
	}
}
