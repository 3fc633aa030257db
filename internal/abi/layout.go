package abi

import "fmt"

// Limb is one fixed-width integer slot of a word, and the unit of the
// canonical input tape.
type Limb = uint64

// LimbsPerWord is the number of limbs held by a single VM word.
const LimbsPerWord = 4

// Word is the VM's atomic addressable memory unit.
type Word [LimbsPerWord]Limb

// Address is a word index into VM memory.
// It is a distinct type so word addresses never mix with byte offsets or
// limb counts.
type Address uint64

// Offset returns a+n, reporting false if the addition overflows.
func (a Address) Offset(n uint64) (Address, bool) {
	sum := uint64(a) + n
	if sum < uint64(a) {
		return 0, false
	}
	return Address(sum), true
}

// String formats the address as a decimal word index.
func (a Address) String() string {
	return fmt.Sprintf("%d", uint64(a))
}

// Memory layout constants. These are shared with the code generator that
// emits the target program; a change here is a layout version bump.
const (
	// PrimitiveWidth is the width of Boolean, UInt32, Int32, UInt64 and Float32.
	PrimitiveWidth = 1

	// HashWidth is the width of a Hash; all four limbs are used.
	HashWidth = 1

	// NullableFlagWidth is the presence-flag word preceding a Nullable's payload.
	NullableFlagWidth = 1

	// StringHeaderWidth is the header of String, Bytes and CollectionReference:
	// [length, dataPtr].
	StringHeaderWidth = 2

	// ArrayHeaderWidth is the header of an Array: [reserved, length, dataPtr].
	ArrayHeaderWidth = 3

	// MapHeaderWidth is a key-array header followed by a value-array header.
	MapHeaderWidth = 2 * ArrayHeaderWidth

	// PublicKeyHeaderWidth is [kty, crv, alg, use, extraPtr].
	PublicKeyHeaderWidth = 5

	// PublicKeyCoordinateBytes is the size of each of the x and y coordinates.
	PublicKeyCoordinateBytes = 32

	// PublicKeyPayloadWords is the out-of-line payload: x then y, one byte per word.
	PublicKeyPayloadWords = 2 * PublicKeyCoordinateBytes
)

// Offsets of header slots, relative to the address of the value.
const (
	StringLengthOffset = 0
	StringDataOffset   = 1

	ArrayReservedOffset = 0
	ArrayLengthOffset   = 1
	ArrayDataOffset     = 2

	// The value-array header starts immediately after the key-array header.
	MapKeyLengthOffset   = ArrayLengthOffset
	MapKeyDataOffset     = ArrayDataOffset
	MapValueLengthOffset = ArrayHeaderWidth + ArrayLengthOffset
	MapValueDataOffset   = ArrayHeaderWidth + ArrayDataOffset

	PublicKeyKtyOffset   = 0
	PublicKeyCrvOffset   = 1
	PublicKeyAlgOffset   = 2
	PublicKeyUseOffset   = 3
	PublicKeyExtraOffset = 4
)

// Width returns the number of words t occupies at its own address.
func Width(t *Type) uint64 {
	return t.Width()
}
