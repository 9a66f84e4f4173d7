package layers

import "fmt"

type ObjectLayer uint16

type BroadPhaseLayer uint8

// ObjectVsBroadPhaseLayerFilter reports whether bodies in an object layer
// should be tested against the proxies stored under a broad-phase layer.
type ObjectVsBroadPhaseLayerFilter func(layer ObjectLayer, bp BroadPhaseLayer) bool

// ObjectLayerPairFilter reports whether two object layers may collide.
// Implementations must be symmetric.
type ObjectLayerPairFilter func(a, b ObjectLayer) bool

// Table maps object layers to broad-phase layers. It is immutable once built.
type Table struct {
	toBroadPhase []BroadPhaseLayer
	numBP        uint
	names        []string
}

func NewTable(mapping []BroadPhaseLayer, numBroadPhaseLayers uint) (*Table, error) {
	if numBroadPhaseLayers == 0 {
		return nil, fmt.Errorf("%w: no broad-phase layers", ErrInvalidMapping)
	}
	for i, bp := range mapping {
		if uint(bp) >= numBroadPhaseLayers {
			return nil, fmt.Errorf("%w: object layer %d maps to %d (have %d)", ErrInvalidMapping, i, bp, numBroadPhaseLayers)
		}
	}
	m := make([]BroadPhaseLayer, len(mapping))
	copy(m, mapping)
	return &Table{toBroadPhase: m, numBP: numBroadPhaseLayers}, nil
}

// WithNames returns a copy of the table carrying display names for its
// object layers. Missing names fall back to the numeric layer.
func (t *Table) WithNames(names ...string) *Table {
	c := *t
	c.names = append([]string(nil), names...)
	return &c
}

func (t *Table) NumLayers() uint           { return uint(len(t.toBroadPhase)) }
func (t *Table) NumBroadPhaseLayers() uint { return t.numBP }

func (t *Table) Resolve(layer ObjectLayer) (BroadPhaseLayer, error) {
	if uint(layer) >= uint(len(t.toBroadPhase)) {
		return 0, fmt.Errorf("%w: %d (table has %d layers)", ErrInvalidLayer, layer, len(t.toBroadPhase))
	}
	return t.toBroadPhase[layer], nil
}

// Valid reports whether the layer resolves.
func (t *Table) Valid(layer ObjectLayer) bool {
	return uint(layer) < uint(len(t.toBroadPhase))
}

func (t *Table) Name(layer ObjectLayer) string {
	if int(layer) < len(t.names) && t.names[layer] != "" {
		return t.names[layer]
	}
	return fmt.Sprintf("layer%d", layer)
}

// Lookup finds the object layer carrying name.
func (t *Table) Lookup(name string) (ObjectLayer, bool) {
	for i, n := range t.names {
		if n == name && i < len(t.toBroadPhase) {
			return ObjectLayer(i), true
		}
	}
	return 0, false
}
