// Package wire implements the binary framing crossing the session
// (spec.md §4.1): decoding inbound StartMining frames, and encoding the
// outbound Ready and BestSolution frames.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/make-os/kitminer/internal/hashfamily"
	"github.com/make-os/kitminer/internal/identity"
)

// Message-type discriminants, shared by both directions of the session.
const (
	TypeStartMining  byte = 0x00
	TypeReady        byte = 0x00
	TypeBestSolution byte = 0x02
)

// PartitionStride is the nonce stride between each thread's starting point
// (spec.md §3, §4.4). Fixed by contract, not configurable.
const PartitionStride = 10_000

// minStartMiningLen is the historical boundary check preserved from the
// source implementation (spec.md §9 Open Question): frames shorter than
// this are rejected even though the documented layout needs 57 bytes
// once the leading type byte is included.
const minStartMiningLen = 49

// ErrMalformedFrame is returned when an inbound frame cannot be decoded.
var ErrMalformedFrame = fmt.Errorf("wire: malformed frame")

// StartMining is the job dispatched by the coordinator.
type StartMining struct {
	Challenge     [32]byte
	CutoffSeconds uint64
	NonceStart    uint64
	NonceEnd      uint64
}

// DecodeStartMining decodes a binary StartMining payload, including its
// leading type byte. b[0] must be TypeStartMining; callers are expected to
// have already dispatched on the type byte, but this is re-checked here.
func DecodeStartMining(b []byte) (StartMining, error) {
	var m StartMining
	if len(b) < minStartMiningLen {
		return m, fmt.Errorf("%w: StartMining frame too short (%d bytes)", ErrMalformedFrame, len(b))
	}
	if b[0] != TypeStartMining {
		return m, fmt.Errorf("%w: unexpected type byte 0x%02x", ErrMalformedFrame, b[0])
	}

	i := 1
	copy(m.Challenge[:], b[i:i+32])
	i += 32

	// Defensive: the 49-byte floor above predates the 57-byte minimum this
	// layout actually requires (type+challenge+cutoff+start+end). Bounds-check
	// each field read instead of trusting the length floor.
	if len(b) < i+8 {
		return m, fmt.Errorf("%w: StartMining frame missing cutoff", ErrMalformedFrame)
	}
	m.CutoffSeconds = binary.LittleEndian.Uint64(b[i : i+8])
	i += 8

	if len(b) < i+8 {
		return m, fmt.Errorf("%w: StartMining frame missing nonce start", ErrMalformedFrame)
	}
	m.NonceStart = binary.LittleEndian.Uint64(b[i : i+8])
	i += 8

	if len(b) < i+8 {
		return m, fmt.Errorf("%w: StartMining frame missing nonce end", ErrMalformedFrame)
	}
	m.NonceEnd = binary.LittleEndian.Uint64(b[i : i+8])

	return m, nil
}

// EncodeReady builds the Ready frame: type ‖ PK ‖ LE timestamp ‖ signature-ASCII.
func EncodeReady(pk identity.PK, timestamp uint64, sig identity.Signature) []byte {
	out := make([]byte, 0, 1+32+8+len(sig))
	out = append(out, TypeReady)
	out = append(out, pk[:]...)
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], timestamp)
	out = append(out, ts[:]...)
	out = append(out, []byte(sig)...)
	return out
}

// EncodeBestSolution builds the BestSolution frame: type ‖ digest ‖ LE nonce
// ‖ PK ‖ signature-ASCII of (digest ‖ nonce).
func EncodeBestSolution(digest hashfamily.Digest, nonce uint64, pk identity.PK, sig identity.Signature) []byte {
	out := make([]byte, 0, 1+16+8+32+len(sig))
	out = append(out, TypeBestSolution)
	out = append(out, digest[:]...)
	var nb [8]byte
	binary.LittleEndian.PutUint64(nb[:], nonce)
	out = append(out, nb[:]...)
	out = append(out, pk[:]...)
	out = append(out, []byte(sig)...)
	return out
}

// BestSolutionMessage returns the 24-byte payload that gets signed for a
// BestSolution frame: digest ‖ nonce, little-endian.
func BestSolutionMessage(digest hashfamily.Digest, nonce uint64) []byte {
	msg := make([]byte, 24)
	copy(msg[:16], digest[:])
	binary.LittleEndian.PutUint64(msg[16:24], nonce)
	return msg
}
