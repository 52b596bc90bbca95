// Package identity holds the worker's public identity and the opaque
// signing capability used to authenticate every outbound frame.
//
// The signing primitive and the public key are treated as external,
// opaque collaborators (spec.md §1): this package defines the interfaces
// the rest of the module depends on, plus one concrete, swappable
// implementation backed by stdlib Ed25519 so the module is runnable.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
)

// PK is the worker's 32-byte public identity.
type PK [32]byte

// String returns the stable, printable form of the public key.
func (pk PK) String() string {
	return base58.Encode(pk[:])
}

// Signature is the textual encoding produced by Sign. Its byte length is
// not fixed by this package; callers consume it as "the remainder of the
// frame" per the wire format in spec.md §4.1.
type Signature string

// Signer signs bytes with a held private key and reports its PK.
type Signer interface {
	PublicKey() PK
	Sign(message []byte) (Signature, error)
}

// Ed25519Signer is a Signer backed by stdlib Ed25519. It is the bundled
// default; any Signer implementation is interchangeable.
type Ed25519Signer struct {
	pk  PK
	key ed25519.PrivateKey
}

// NewEd25519Signer generates a fresh keypair.
func NewEd25519Signer() (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate ed25519 key")
	}
	var pk PK
	copy(pk[:], pub)
	return &Ed25519Signer{pk: pk, key: priv}, nil
}

// LoadEd25519Signer builds a signer from a 64-byte seed-concatenated key,
// as produced by ed25519.PrivateKey's own encoding.
func LoadEd25519Signer(raw []byte) (*Ed25519Signer, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("expected %d byte key, got %d", ed25519.PrivateKeySize, len(raw))
	}
	key := ed25519.PrivateKey(raw)
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unable to derive public key")
	}
	var pk PK
	copy(pk[:], pub)
	return &Ed25519Signer{pk: pk, key: key}, nil
}

// PublicKey implements Signer.
func (s *Ed25519Signer) PublicKey() PK { return s.pk }

// Sign implements Signer. The signature's printable form is base58, mirroring
// the encoding the teacher's crypto package uses for keys and addresses.
func (s *Ed25519Signer) Sign(message []byte) (Signature, error) {
	sig := ed25519.Sign(s.key, message)
	return Signature(base58.Encode(sig)), nil
}
