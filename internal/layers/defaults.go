package layers

// Object layers of the default table. The four unused values keep object
// and broad-phase layer numbers from coinciding.
const (
	Unused1 ObjectLayer = iota
	Unused2
	Unused3
	Unused4
	NonMoving
	Moving
	Debris // collides only with NonMoving
	Sensor // collides only with Moving
	NumDefaultLayers
)

const (
	BPNonMoving BroadPhaseLayer = iota
	BPMoving
	BPDebris
	BPSensor
	BPUnused
	NumDefaultBroadPhaseLayers
)

var defaultTable = func() *Table {
	t, err := NewTable([]BroadPhaseLayer{
		Unused1:   BPUnused,
		Unused2:   BPUnused,
		Unused3:   BPUnused,
		Unused4:   BPUnused,
		NonMoving: BPNonMoving,
		Moving:    BPMoving,
		Debris:    BPDebris,
		Sensor:    BPSensor,
	}, uint(NumDefaultBroadPhaseLayers))
	if err != nil {
		panic(err)
	}
	return t.WithNames("unused1", "unused2", "unused3", "unused4", "non_moving", "moving", "debris", "sensor")
}()

// DefaultTable returns the shared default mapping. Tables are immutable so
// the same instance is handed to every caller.
func DefaultTable() *Table { return defaultTable }

func DefaultObjectVsBroadPhase(layer ObjectLayer, bp BroadPhaseLayer) bool {
	switch layer {
	case NonMoving:
		return bp == BPMoving || bp == BPDebris
	case Moving:
		return bp == BPNonMoving || bp == BPMoving || bp == BPSensor
	case Debris:
		return bp == BPNonMoving
	case Sensor:
		return bp == BPMoving
	default:
		return false
	}
}

func DefaultPairFilter(a, b ObjectLayer) bool {
	switch a {
	case NonMoving:
		return b == Moving || b == Debris
	case Moving:
		return b == NonMoving || b == Moving || b == Sensor
	case Debris:
		return b == NonMoving
	case Sensor:
		return b == Moving
	default:
		return false
	}
}
