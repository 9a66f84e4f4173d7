package body

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/shape"
)

func newTestStore(t *testing.T, maxBodies uint) *Store {
	t.Helper()
	s, err := NewStore(maxBodies, 4, layers.DefaultTable())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func boxSettings(y float64, motion MotionType, layer layers.ObjectLayer) CreationSettings {
	return NewCreationSettings(shape.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}, 0.05),
		mgl64.Vec3{0, y, 0}, mgl64.QuatIdent(), motion, layer)
}

func TestBodyIDPacking(t *testing.T) {
	id := NewBodyID(12345, 7)
	if id.Index() != 12345 || id.Sequence() != 7 {
		t.Fatalf("got index %d seq %d", id.Index(), id.Sequence())
	}
	top := NewBodyID(MaxBodies, 255)
	if top.IsInvalid() {
		t.Error("largest valid id collides with InvalidBodyID")
	}
	if !InvalidBodyID.IsInvalid() {
		t.Error("InvalidBodyID not invalid")
	}
}

func TestCreateAddLockRead(t *testing.T) {
	s := newTestStore(t, 16)
	bi := s.Interface()

	id, err := bi.Create(boxSettings(2, Dynamic, layers.Moving))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	lock := s.Locks().LockRead(id)
	if !lock.Succeeded() || lock.SucceededAndIsInBroadPhase() {
		t.Fatalf("before Add: succeeded=%v inBP=%v", lock.Succeeded(), lock.SucceededAndIsInBroadPhase())
	}
	lock.Release()

	if err := bi.Add(id, Activate); err != nil {
		t.Fatalf("Add: %v", err)
	}
	lock = s.Locks().LockRead(id)
	defer lock.Release()
	if !lock.SucceededAndIsInBroadPhase() {
		t.Fatal("expected SucceededAndIsInBroadPhase after Add")
	}
	if got := lock.Body().Position(); got != (mgl64.Vec3{0, 2, 0}) {
		t.Errorf("position = %v", got)
	}
	lock.Release()
	lock.Release()

	if err := bi.Add(id, Activate); !errors.Is(err, ErrAlreadyAdded) {
		t.Errorf("second Add: got %v, want ErrAlreadyAdded", err)
	}
}

func TestStaleHandleAfterReuse(t *testing.T) {
	s := newTestStore(t, 4)
	bi := s.Interface()

	old, err := bi.CreateAndAdd(boxSettings(0, Dynamic, layers.Moving), Activate)
	if err != nil {
		t.Fatal(err)
	}
	if err := bi.Remove(old); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	fresh, err := bi.Create(boxSettings(5, Dynamic, layers.Moving))
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Index() != old.Index() {
		t.Fatalf("slot not reused: old %v fresh %v", old, fresh)
	}
	if fresh == old {
		t.Fatal("generation did not advance")
	}

	lock := s.Locks().LockRead(old)
	if lock.Succeeded() {
		t.Error("stale handle locked")
	}
	lock.Release()

	if _, err := bi.GetPosition(old); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("GetPosition(stale) = %v", err)
	}
	if err := bi.SetUserData(old, 1); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("SetUserData(stale) = %v", err)
	}
	if err := bi.Remove(old); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Remove(stale) = %v", err)
	}
	if bi.IsActive(old) {
		t.Error("stale handle reported active")
	}

	// the failed lock must not leave the shard held
	w := s.Locks().LockWrite(fresh)
	if !w.Succeeded() {
		t.Error("fresh handle failed")
	}
	w.Release()

	never := NewBodyID(3, 0)
	if _, err := bi.GetUserData(never); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("never-created id: %v", err)
	}
	if l := s.Locks().LockRead(InvalidBodyID); l.Succeeded() {
		t.Error("InvalidBodyID locked")
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreationSettings)
		want   error
	}{
		{"nil shape", func(c *CreationSettings) { c.Shape = nil }, ErrInvalidShape},
		{"degenerate box", func(c *CreationSettings) { c.Shape = shape.NewBox(mgl64.Vec3{0, 1, 1}, 0) }, ErrInvalidShape},
		{"zero sphere", func(c *CreationSettings) { c.Shape = shape.NewSphere(0) }, ErrInvalidShape},
		{"layer out of range", func(c *CreationSettings) { c.ObjectLayer = layers.NumDefaultLayers }, layers.ErrInvalidLayer},
		{"negative friction", func(c *CreationSettings) { c.Friction = -1 }, ErrInvalidSettings},
		{"zero velocity limit", func(c *CreationSettings) { c.MaxLinearVelocity = 0 }, ErrInvalidSettings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, 4)
			cs := boxSettings(0, Dynamic, layers.Moving)
			tt.mutate(&cs)
			id, err := s.Interface().Create(cs)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if id != InvalidBodyID {
				t.Errorf("id = %v on failure", id)
			}
			if s.NumBodies() != 0 {
				t.Errorf("NumBodies = %d", s.NumBodies())
			}
		})
	}
}

func TestTooManyBodies(t *testing.T) {
	s := newTestStore(t, 2)
	bi := s.Interface()
	for i := 0; i < 2; i++ {
		if _, err := bi.Create(boxSettings(0, Dynamic, layers.Moving)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := bi.Create(boxSettings(0, Dynamic, layers.Moving)); !errors.Is(err, ErrTooManyBodies) {
		t.Fatalf("got %v", err)
	}
}

func TestAddDontActivateIsInBroadPhaseButSleeping(t *testing.T) {
	s := newTestStore(t, 4)
	bi := s.Interface()

	id, err := bi.CreateAndAdd(boxSettings(1, Dynamic, layers.Moving), DontActivate)
	if err != nil {
		t.Fatal(err)
	}
	lock := s.Locks().LockRead(id)
	inBP := lock.SucceededAndIsInBroadPhase()
	lock.Release()
	if !inBP {
		t.Error("DontActivate body not in broad phase")
	}
	if !s.BroadPhase().Contains(id.Index()) {
		t.Error("broad phase has no proxy")
	}
	if bi.IsActive(id) || s.NumActiveBodies() != 0 {
		t.Error("DontActivate body is active")
	}

	if err := bi.ActivateBody(id); err != nil {
		t.Fatal(err)
	}
	if !bi.IsActive(id) {
		t.Error("ActivateBody did not wake the body")
	}
}

func TestStaticNeverActive(t *testing.T) {
	s := newTestStore(t, 4)
	bi := s.Interface()
	id, err := bi.CreateAndAdd(boxSettings(0, Static, layers.NonMoving), Activate)
	if err != nil {
		t.Fatal(err)
	}
	if bi.IsActive(id) {
		t.Error("static body active after Add")
	}
	if err := bi.SetLinearVelocity(id, mgl64.Vec3{1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if v, _ := bi.GetLinearVelocity(id); v != (mgl64.Vec3{}) {
		t.Errorf("static body moved: %v", v)
	}
}

func TestSetLinearVelocityWakes(t *testing.T) {
	s := newTestStore(t, 4)
	bi := s.Interface()
	id, _ := bi.CreateAndAdd(boxSettings(0, Dynamic, layers.Moving), DontActivate)

	if err := bi.SetLinearVelocity(id, mgl64.Vec3{0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if bi.IsActive(id) {
		t.Error("zero velocity woke the body")
	}
	if err := bi.SetLinearVelocity(id, mgl64.Vec3{0, 1000, 0}); err != nil {
		t.Fatal(err)
	}
	if !bi.IsActive(id) {
		t.Error("velocity did not wake the body")
	}
	v, _ := bi.GetLinearVelocity(id)
	if l := v.Len(); l > 500+1e-9 {
		t.Errorf("velocity not clamped: %v", l)
	}
}

func TestRemoveFromWorldKeepsBody(t *testing.T) {
	s := newTestStore(t, 4)
	bi := s.Interface()
	id, _ := bi.CreateAndAdd(boxSettings(0, Dynamic, layers.Moving), Activate)

	if err := bi.Destroy(id); !errors.Is(err, ErrAlreadyAdded) {
		t.Errorf("Destroy while added: %v", err)
	}
	if err := bi.RemoveFromWorld(id); err != nil {
		t.Fatal(err)
	}
	if err := bi.RemoveFromWorld(id); !errors.Is(err, ErrNotAdded) {
		t.Errorf("second RemoveFromWorld: %v", err)
	}
	if s.NumActiveBodies() != 0 || s.BroadPhase().Count() != 0 {
		t.Errorf("active=%d proxies=%d", s.NumActiveBodies(), s.BroadPhase().Count())
	}
	if err := bi.ActivateBody(id); !errors.Is(err, ErrNotAdded) {
		t.Errorf("ActivateBody detached: %v", err)
	}
	if _, err := bi.GetPosition(id); err != nil {
		t.Errorf("detached body lookup: %v", err)
	}
	if err := bi.Destroy(id); err != nil {
		t.Fatal(err)
	}
	if s.NumBodies() != 0 {
		t.Errorf("NumBodies = %d", s.NumBodies())
	}
}

func TestActiveBodiesRestartable(t *testing.T) {
	s := newTestStore(t, 8)
	bi := s.Interface()
	want := map[BodyID]bool{}
	for i := 0; i < 3; i++ {
		id, err := bi.CreateAndAdd(boxSettings(float64(i), Dynamic, layers.Moving), Activate)
		if err != nil {
			t.Fatal(err)
		}
		want[id] = true
	}

	seq := s.ActiveBodies()
	for pass := 0; pass < 2; pass++ {
		got := map[BodyID]bool{}
		for id := range seq {
			// locking inside the loop must not deadlock on the active set
			lock := s.Locks().LockRead(id)
			if !lock.Succeeded() {
				t.Errorf("active id %v failed to lock", id)
			}
			lock.Release()
			got[id] = true
		}
		if len(got) != len(want) {
			t.Fatalf("pass %d: got %d ids, want %d", pass, len(got), len(want))
		}
	}

	for id := range seq {
		_ = bi.DeactivateBody(id)
		break
	}
	n := 0
	for range seq {
		n++
	}
	if n != 2 {
		t.Errorf("after deactivate: %d ids", n)
	}
}

func TestConcurrentReadersWriterBlocks(t *testing.T) {
	s := newTestStore(t, 4)
	id, err := s.Interface().CreateAndAdd(boxSettings(0, Dynamic, layers.Moving), Activate)
	if err != nil {
		t.Fatal(err)
	}

	const readers = 8
	var held sync.WaitGroup
	held.Add(readers)
	release := make(chan struct{})
	var done sync.WaitGroup

	for i := 0; i < readers; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			lock := s.Locks().LockRead(id)
			defer lock.Release()
			if !lock.Succeeded() {
				t.Error("reader failed")
			}
			held.Done()
			<-release
		}()
	}
	// every reader holds the shard at the same time
	held.Wait()

	var writerIn atomic.Bool
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		lock := s.Locks().LockWrite(id)
		writerIn.Store(true)
		lock.Body().SetUserData(42)
		lock.Release()
	}()

	time.Sleep(20 * time.Millisecond)
	if writerIn.Load() {
		t.Fatal("writer acquired while readers held the lock")
	}
	close(release)
	done.Wait()

	select {
	case <-writerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("writer never acquired")
	}
	if tag, _ := s.Interface().GetUserData(id); tag != 42 {
		t.Errorf("user data = %d", tag)
	}
}

func TestMutexCount(t *testing.T) {
	tests := []struct {
		in   uint
		want uint
	}{
		{1, 1},
		{3, 4},
		{8, 8},
		{9, 16},
		{100, 128},
	}
	for _, tt := range tests {
		if got := mutexCount(tt.in); got != tt.want {
			t.Errorf("mutexCount(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	auto := mutexCount(0)
	if auto == 0 || auto&(auto-1) != 0 {
		t.Errorf("auto count %d not a power of two", auto)
	}
}

func TestLockMultiSharedShard(t *testing.T) {
	s := newTestStore(t, 16)
	bi := s.Interface()
	var ids []BodyID
	for i := 0; i < 6; i++ {
		id, _ := bi.CreateAndAdd(boxSettings(float64(i), Dynamic, layers.Moving), Activate)
		ids = append(ids, id)
	}
	// 4 shards, so ids[0] and ids[4] share one
	if s.Locks().MutexIndex(ids[0]) != s.Locks().MutexIndex(ids[4]) {
		t.Fatal("expected shared shard")
	}

	ml := s.Locks().LockMultiWrite(ids[4], ids[0], ids[1], NewBodyID(9, 3))
	if ml.Bodies[0] == nil || ml.Bodies[1] == nil || ml.Bodies[2] == nil {
		t.Error("live bodies missing")
	}
	if ml.Bodies[3] != nil {
		t.Error("stale id resolved")
	}
	ml.Release()
	ml.Release()

	s.Locks().LockAll()
	s.Locks().UnlockAll()
	if !s.Locks().Read(ids[0], func(*Body) {}) {
		t.Error("read after UnlockAll failed")
	}
}

func TestGroupFilterTable(t *testing.T) {
	ft := NewGroupFilterTable(3)
	ft.DisableCollision(0, 1)

	tests := []struct {
		name string
		a, b CollisionGroup
		want bool
	}{
		{"same group disabled pair", CollisionGroup{ft, 1, 0}, CollisionGroup{ft, 1, 1}, false},
		{"same group enabled pair", CollisionGroup{ft, 1, 0}, CollisionGroup{ft, 1, 2}, true},
		{"different groups", CollisionGroup{ft, 1, 0}, CollisionGroup{ft, 2, 1}, true},
		{"no filter", CollisionGroup{}, CollisionGroup{}, true},
		{"one side filtered", CollisionGroup{GroupID: 1, SubGroupID: 1}, CollisionGroup{ft, 1, 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.CanCollide(tt.b); got != tt.want {
				t.Errorf("CanCollide = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMassFromShape(t *testing.T) {
	s := newTestStore(t, 4)
	bi := s.Interface()

	cs := boxSettings(0, Dynamic, layers.Moving)
	cs.MassOverride = 10
	id, _ := bi.Create(cs)
	b, err := s.TryGetBody(id)
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Mass(); got < 10-1e-9 || got > 10+1e-9 {
		t.Errorf("mass = %v", got)
	}

	st, _ := bi.Create(boxSettings(0, Static, layers.NonMoving))
	sb, _ := s.TryGetBody(st)
	if sb.InverseMass() != 0 {
		t.Error("static body has finite mass")
	}
}
