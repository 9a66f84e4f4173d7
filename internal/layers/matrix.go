package layers

// PairMatrix is a closed pair filter built from an explicit list of
// colliding layer pairs. Pairs are symmetric.
type PairMatrix struct {
	n    int
	bits []bool
}

func NewPairMatrix(numLayers uint, pairs ...[2]ObjectLayer) (*PairMatrix, error) {
	m := &PairMatrix{n: int(numLayers), bits: make([]bool, numLayers*numLayers)}
	for _, p := range pairs {
		if int(p[0]) >= m.n || int(p[1]) >= m.n {
			return nil, ErrInvalidLayer
		}
		m.bits[int(p[0])*m.n+int(p[1])] = true
		m.bits[int(p[1])*m.n+int(p[0])] = true
	}
	return m, nil
}

func (m *PairMatrix) Collides(a, b ObjectLayer) bool {
	if int(a) >= m.n || int(b) >= m.n {
		return false
	}
	return m.bits[int(a)*m.n+int(b)]
}

func (m *PairMatrix) Filter() ObjectLayerPairFilter { return m.Collides }

// ObjectVsBroadPhaseFromPairs derives the broad-phase filter implied by a
// pair matrix: a layer is tested against a broad-phase bucket when it
// collides with at least one object layer mapped into that bucket.
func ObjectVsBroadPhaseFromPairs(t *Table, m *PairMatrix) ObjectVsBroadPhaseLayerFilter {
	nl, nbp := int(t.NumLayers()), int(t.NumBroadPhaseLayers())
	allowed := make([]bool, nl*nbp)
	for a := 0; a < nl; a++ {
		for b := 0; b < nl; b++ {
			if !m.Collides(ObjectLayer(a), ObjectLayer(b)) {
				continue
			}
			bp, _ := t.Resolve(ObjectLayer(b))
			allowed[a*nbp+int(bp)] = true
		}
	}
	return func(layer ObjectLayer, bp BroadPhaseLayer) bool {
		if int(layer) >= nl || int(bp) >= nbp {
			return false
		}
		return allowed[int(layer)*nbp+int(bp)]
	}
}
