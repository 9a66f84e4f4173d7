package body

import "fmt"

// BodyID packs a 23-bit slot index and an 8-bit generation into one word.
type BodyID uint32

const (
	InvalidBodyID BodyID = 0xffffffff

	indexBits     = 23
	indexMask     = 1<<indexBits - 1
	sequenceShift = 24

	// MaxBodies is the largest store capacity an id can address.
	MaxBodies = indexMask
)

func NewBodyID(index uint32, sequence uint8) BodyID {
	return BodyID(uint32(sequence)<<sequenceShift | index&indexMask)
}

func (id BodyID) Index() uint32   { return uint32(id) & indexMask }
func (id BodyID) Sequence() uint8 { return uint8(uint32(id) >> sequenceShift) }
func (id BodyID) IsInvalid() bool { return id == InvalidBodyID }

func (id BodyID) String() string {
	if id.IsInvalid() {
		return "invalid"
	}
	return fmt.Sprintf("%d#%d", id.Index(), id.Sequence())
}
