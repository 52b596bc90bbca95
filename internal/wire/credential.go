package wire

import (
	"encoding/binary"

	"github.com/make-os/kitminer/internal/hashfamily"
	"github.com/make-os/kitminer/internal/identity"
	"github.com/pkg/errors"
)

// Binder produces authenticated frames by delegating to a Signer. It
// retains no state between calls (spec.md §4.2).
type Binder struct {
	signer identity.Signer
}

// NewBinder wraps a Signer.
func NewBinder(signer identity.Signer) *Binder {
	return &Binder{signer: signer}
}

// AuthMessage returns the 8-byte little-endian encoding of a timestamp, the
// message signed both for the handshake Authorization header and for Ready
// frames.
func AuthMessage(timestamp uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], timestamp)
	return b[:]
}

// SignTimestamp signs an 8-byte little-endian timestamp, used both to build
// the handshake's Basic-Auth password and to build a Ready frame.
func (b *Binder) SignTimestamp(timestamp uint64) (identity.Signature, error) {
	sig, err := b.signer.Sign(AuthMessage(timestamp))
	if err != nil {
		return "", errors.Wrap(err, "sign timestamp")
	}
	return sig, nil
}

// Ready produces a Ready frame for the given wall-clock timestamp.
func (b *Binder) Ready(timestamp uint64) ([]byte, error) {
	sig, err := b.SignTimestamp(timestamp)
	if err != nil {
		return nil, err
	}
	return EncodeReady(b.signer.PublicKey(), timestamp, sig), nil
}

// BestSolution produces a BestSolution frame for the given best record.
func (b *Binder) BestSolution(digest hashfamily.Digest, nonce uint64) ([]byte, error) {
	msg := BestSolutionMessage(digest, nonce)
	sig, err := b.signer.Sign(msg)
	if err != nil {
		return nil, errors.Wrap(err, "sign best solution")
	}
	return EncodeBestSolution(digest, nonce, b.signer.PublicKey(), sig), nil
}

// PublicKey returns the bound signer's public key.
func (b *Binder) PublicKey() identity.PK { return b.signer.PublicKey() }
