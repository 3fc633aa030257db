package abi

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Kty is the JWK key type enumerant.
type Kty uint8

// Crv is the JWK curve enumerant.
type Crv uint8

// Alg is the JWK algorithm enumerant.
type Alg uint8

// Use is the JWK public key use enumerant.
type Use uint8

// Enumerant values as stored in memory and on the tape. Zero is reserved
// so an unwritten header never decodes as a valid key.
const (
	KtyEC Kty = 1

	CrvSecp256k1 Crv = 1

	AlgES256K Alg = 1

	UseSig Use = 1
)

var (
	ktyNames = map[Kty]string{KtyEC: "EC"}
	crvNames = map[Crv]string{CrvSecp256k1: "secp256k1"}
	algNames = map[Alg]string{AlgES256K: "ES256K"}
	useNames = map[Use]string{UseSig: "sig"}
)

func (k Kty) String() string { return enumString(ktyNames, k) }
func (c Crv) String() string { return enumString(crvNames, c) }
func (a Alg) String() string { return enumString(algNames, a) }
func (u Use) String() string { return enumString(useNames, u) }

// Valid reports whether the enumerant is defined.
func (k Kty) Valid() bool {
	_, ok := ktyNames[k]
	return ok
}

// Valid reports whether the enumerant is defined.
func (c Crv) Valid() bool {
	_, ok := crvNames[c]
	return ok
}

// Valid reports whether the enumerant is defined.
func (a Alg) Valid() bool {
	_, ok := algNames[a]
	return ok
}

// Valid reports whether the enumerant is defined.
func (u Use) Valid() bool {
	_, ok := useNames[u]
	return ok
}

// ParseKty resolves a JWK "kty" name.
func ParseKty(s string) (Kty, bool) { return enumParse(ktyNames, s) }

// ParseCrv resolves a JWK "crv" name.
func ParseCrv(s string) (Crv, bool) { return enumParse(crvNames, s) }

// ParseAlg resolves a JWK "alg" name.
func ParseAlg(s string) (Alg, bool) { return enumParse(algNames, s) }

// ParseUse resolves a JWK "use" name.
func ParseUse(s string) (Use, bool) { return enumParse(useNames, s) }

func enumString[E ~uint8](names map[E]string, e E) string {
	if n, ok := names[e]; ok {
		return n
	}
	return fmt.Sprintf("%d", uint8(e))
}

func enumParse[E ~uint8](names map[E]string, s string) (E, bool) {
	for e, n := range names {
		if n == s {
			return e, true
		}
	}
	return 0, false
}

// EnumFromLimb converts a memory or tape limb to an enumerant, reporting
// false if the limb is outside the defined range.
func EnumFromLimb[E ~uint8](limb Limb, valid func(E) bool) (E, bool) {
	if limb > 0xff {
		return 0, false
	}
	e := E(limb)
	return e, valid(e)
}

// PublicKey is a secp256k1 public key in the JWK-like form used by the
// target program: four enumerants and the affine x/y coordinates,
// big-endian.
type PublicKey struct {
	Kty Kty
	Crv Crv
	Alg Alg
	Use Use
	X   [PublicKeyCoordinateBytes]byte
	Y   [PublicKeyCoordinateBytes]byte
}

func (PublicKey) Kind() Kind { return KindPublicKey }
func (PublicKey) abiValue()  {}

func (k PublicKey) validateEnums(path []string) error {
	switch {
	case !k.Kty.Valid():
		return NewError(CodeInvalidEnumValue, append(path, "kty"), "undefined kty %d", uint8(k.Kty))
	case !k.Crv.Valid():
		return NewError(CodeInvalidEnumValue, append(path, "crv"), "undefined crv %d", uint8(k.Crv))
	case !k.Alg.Valid():
		return NewError(CodeInvalidEnumValue, append(path, "alg"), "undefined alg %d", uint8(k.Alg))
	case !k.Use.Valid():
		return NewError(CodeInvalidEnumValue, append(path, "use"), "undefined use %d", uint8(k.Use))
	}
	return nil
}

// Payload returns the 64 out-of-line payload bytes: x followed by y.
func (k PublicKey) Payload() []byte {
	out := make([]byte, 0, PublicKeyPayloadWords)
	out = append(out, k.X[:]...)
	return append(out, k.Y[:]...)
}

// PublicKeyFromECDSA converts a secp256k1 key to its ABI form with the
// default enumerants.
func PublicKeyFromECDSA(pub *ecdsa.PublicKey) PublicKey {
	// 0x04 || X || Y
	raw := crypto.FromECDSAPub(pub)
	k := PublicKey{Kty: KtyEC, Crv: CrvSecp256k1, Alg: AlgES256K, Use: UseSig}
	copy(k.X[:], raw[1:1+PublicKeyCoordinateBytes])
	copy(k.Y[:], raw[1+PublicKeyCoordinateBytes:])
	return k
}

// ECDSA converts the key back to a secp256k1 public key. It fails with
// CodeInvalidKeyEncoding if (x, y) is not a point on the curve.
func (k PublicKey) ECDSA() (*ecdsa.PublicKey, error) {
	if err := k.validateEnums(nil); err != nil {
		return nil, err
	}
	raw := make([]byte, 0, 1+PublicKeyPayloadWords)
	raw = append(raw, 0x04)
	raw = append(raw, k.Payload()...)
	pub, err := crypto.UnmarshalPubkey(raw)
	if err != nil {
		return nil, NewError(CodeInvalidKeyEncoding, nil, "point is not on secp256k1").WithCause(err)
	}
	return pub, nil
}
