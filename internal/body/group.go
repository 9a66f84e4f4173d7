package body

// GroupFilter refines layer filtering between bodies.
type GroupFilter interface {
	CanCollide(a, b CollisionGroup) bool
}

type CollisionGroup struct {
	Filter     GroupFilter
	GroupID    uint32
	SubGroupID uint32
}

const InvalidGroup = ^uint32(0)

// CanCollide applies the filters of both groups; a nil filter allows everything.
func (g CollisionGroup) CanCollide(other CollisionGroup) bool {
	if g.Filter != nil && !g.Filter.CanCollide(g, other) {
		return false
	}
	if other.Filter != nil && !other.Filter.CanCollide(other, g) {
		return false
	}
	return true
}

// GroupFilterTable disables collisions between chosen sub-groups of the
// same group, e.g. adjacent links of a ragdoll. Bodies in different groups
// always collide.
type GroupFilterTable struct {
	n    uint32
	bits []bool
}

func NewGroupFilterTable(numSubGroups uint32) *GroupFilterTable {
	t := &GroupFilterTable{n: numSubGroups, bits: make([]bool, numSubGroups*numSubGroups)}
	for i := range t.bits {
		t.bits[i] = true
	}
	return t
}

func (t *GroupFilterTable) DisableCollision(a, b uint32) {
	if a < t.n && b < t.n {
		t.bits[a*t.n+b] = false
		t.bits[b*t.n+a] = false
	}
}

func (t *GroupFilterTable) EnableCollision(a, b uint32) {
	if a < t.n && b < t.n {
		t.bits[a*t.n+b] = true
		t.bits[b*t.n+a] = true
	}
}

func (t *GroupFilterTable) CanCollide(a, b CollisionGroup) bool {
	if a.GroupID != b.GroupID || a.GroupID == InvalidGroup {
		return true
	}
	if a.SubGroupID >= t.n || b.SubGroupID >= t.n {
		return true
	}
	return t.bits[a.SubGroupID*t.n+b.SubGroupID]
}
