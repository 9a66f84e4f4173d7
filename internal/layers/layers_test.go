package layers

import (
	"errors"
	"testing"
)

func TestResolveIsTotalAndPure(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		layer ObjectLayer
		want  BroadPhaseLayer
	}{
		{Unused1, BPUnused},
		{Unused4, BPUnused},
		{NonMoving, BPNonMoving},
		{Moving, BPMoving},
		{Debris, BPDebris},
		{Sensor, BPSensor},
	}

	for _, tt := range tests {
		for i := 0; i < 3; i++ {
			got, err := table.Resolve(tt.layer)
			if err != nil {
				t.Fatalf("Resolve(%d) failed: %v", tt.layer, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%d) = %d, want %d", tt.layer, got, tt.want)
			}
		}
	}
}

func TestResolveOutOfRange(t *testing.T) {
	table := DefaultTable()
	for _, layer := range []ObjectLayer{NumDefaultLayers, 100, 0xffff} {
		if _, err := table.Resolve(layer); !errors.Is(err, ErrInvalidLayer) {
			t.Errorf("Resolve(%d) err = %v, want ErrInvalidLayer", layer, err)
		}
	}
}

func TestNewTableRejectsBadMapping(t *testing.T) {
	if _, err := NewTable([]BroadPhaseLayer{0, 3}, 2); !errors.Is(err, ErrInvalidMapping) {
		t.Errorf("expected ErrInvalidMapping, got %v", err)
	}
	if _, err := NewTable(nil, 0); !errors.Is(err, ErrInvalidMapping) {
		t.Errorf("expected ErrInvalidMapping for zero layers, got %v", err)
	}
}

func TestTableCopiesMapping(t *testing.T) {
	mapping := []BroadPhaseLayer{0, 1}
	table, err := NewTable(mapping, 2)
	if err != nil {
		t.Fatal(err)
	}
	mapping[0] = 1
	if bp, _ := table.Resolve(0); bp != 0 {
		t.Error("table should not alias the caller's mapping")
	}
}

func TestDefaultPairFilterSymmetric(t *testing.T) {
	for a := ObjectLayer(0); a < NumDefaultLayers; a++ {
		for b := ObjectLayer(0); b < NumDefaultLayers; b++ {
			if DefaultPairFilter(a, b) != DefaultPairFilter(b, a) {
				t.Errorf("pair filter not symmetric for (%d, %d)", a, b)
			}
		}
	}
}

func TestDefaultFiltersAgree(t *testing.T) {
	table := DefaultTable()
	// a pair allowed by the pair filter must also pass the broad-phase filter
	for a := ObjectLayer(0); a < NumDefaultLayers; a++ {
		for b := ObjectLayer(0); b < NumDefaultLayers; b++ {
			if !DefaultPairFilter(a, b) {
				continue
			}
			bp, _ := table.Resolve(b)
			if !DefaultObjectVsBroadPhase(a, bp) {
				t.Errorf("layer %s may collide with %s but skips its broad-phase layer", table.Name(a), table.Name(b))
			}
		}
	}
}

func TestPairMatrix(t *testing.T) {
	m, err := NewPairMatrix(3, [2]ObjectLayer{0, 1}, [2]ObjectLayer{2, 2})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		a, b ObjectLayer
		want bool
	}{
		{0, 1, true},
		{1, 0, true},
		{2, 2, true},
		{0, 0, false},
		{1, 2, false},
		{5, 0, false},
	}
	f := m.Filter()
	for _, tt := range tests {
		if got := f(tt.a, tt.b); got != tt.want {
			t.Errorf("Collides(%d, %d) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}

	if _, err := NewPairMatrix(2, [2]ObjectLayer{0, 4}); !errors.Is(err, ErrInvalidLayer) {
		t.Errorf("expected ErrInvalidLayer, got %v", err)
	}
}

func TestObjectVsBroadPhaseFromPairs(t *testing.T) {
	table, err := NewTable([]BroadPhaseLayer{0, 1, 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	m, _ := NewPairMatrix(3, [2]ObjectLayer{0, 2})
	f := ObjectVsBroadPhaseFromPairs(table, m)

	if !f(0, 1) {
		t.Error("layer 0 collides with layer 2 which lives in bp 1")
	}
	if f(0, 0) {
		t.Error("layer 0 collides with nothing in bp 0")
	}
	if !f(2, 0) {
		t.Error("layer 2 collides with layer 0 which lives in bp 0")
	}
	if f(1, 0) || f(1, 1) {
		t.Error("layer 1 collides with nothing")
	}
}

func TestName(t *testing.T) {
	table := DefaultTable()
	if table.Name(Moving) != "moving" {
		t.Errorf("Name(Moving) = %q", table.Name(Moving))
	}
	if table.Name(42) != "layer42" {
		t.Errorf("Name(42) = %q", table.Name(42))
	}
}

func TestLookup(t *testing.T) {
	table := DefaultTable()
	if l, ok := table.Lookup("debris"); !ok || l != Debris {
		t.Errorf("Lookup(debris) = %d, %v", l, ok)
	}
	if _, ok := table.Lookup("nope"); ok {
		t.Error("Lookup(nope) succeeded")
	}
}
