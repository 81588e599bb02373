package core

// Vec2 is a 2D vector.
type Vec2 struct {
	X float64
	Y float64
}

// PrefabID selects an object's kind and appearance. Opaque to the server;
// the client resolves it against its local prefab table.
type PrefabID int32

// Transform is a rigid 2D pose. Rotation is in degrees. Values are not
// bounds-checked.
type Transform struct {
	Position Vec2
	Scale    Vec2
	Rotation float64
	FlipX    bool
	FlipY    bool
}

// DefaultTransform returns a pose at the given position with unit scale.
func DefaultTransform(position Vec2) Transform {
	return Transform{
		Position: position,
		Scale:    Vec2{X: 1, Y: 1},
	}
}

// NetworkGameObject is a replicated scene object. The id is allocated by
// the scene and never reused within a server run; OwnerID is the
// connection that spawned it and decides cleanup on disconnect.
type NetworkGameObject struct {
	ID        int64
	OwnerID   string
	PrefabID  PrefabID
	Transform Transform
}
