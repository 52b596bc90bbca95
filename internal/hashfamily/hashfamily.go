// Package hashfamily defines the opaque hash function H (spec.md §1, §4.4)
// and bundles one concrete, swappable implementation so the repository
// builds and tests end-to-end without an external proprietary hash.
package hashfamily

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// DigestSize is the width, in bytes, of every digest H produces.
const DigestSize = 16

// Digest is one 16-byte hash output.
type Digest [DigestSize]byte

// Scratch is a per-thread reusable buffer for H's input and output bytes;
// callers hold one Scratch per search thread (spec.md §4.4, §9). Hashes
// still allocates the Result slice it returns on every call.
type Scratch struct {
	buf [32 + 8]byte
	out [blake2b.Size256]byte
}

// NewScratch allocates one reusable scratch buffer.
func NewScratch() *Scratch {
	return &Scratch{}
}

// Family computes one or more (Digest, difficulty) outputs for a given
// (challenge, nonce) pair, reusing scratch across calls.
type Family interface {
	Hashes(challenge [32]byte, nonce uint64, scratch *Scratch) []Result
}

// Result pairs a digest with its scalar difficulty.
type Result struct {
	Digest     Digest
	Difficulty uint32
}

// Blake2bFamily is the bundled default Family. It derives a single digest
// per (challenge, nonce) from blake2b-256 and scores it by counting leading
// zero bits, a standard proof-of-work difficulty function. Swap this
// implementation to change H; nothing else in the module depends on it.
type Blake2bFamily struct{}

// NewBlake2bFamily returns the bundled default hash family.
func NewBlake2bFamily() Blake2bFamily { return Blake2bFamily{} }

// Hashes implements Family.
func (Blake2bFamily) Hashes(challenge [32]byte, nonce uint64, scratch *Scratch) []Result {
	copy(scratch.buf[:32], challenge[:])
	binary.LittleEndian.PutUint64(scratch.buf[32:40], nonce)

	sum := blake2b.Sum256(scratch.buf[:])
	scratch.out = sum

	var d Digest
	copy(d[:], sum[:DigestSize])

	return []Result{{Digest: d, Difficulty: leadingZeroBits(sum[:])}}
}

// leadingZeroBits counts the number of leading zero bits across b.
func leadingZeroBits(b []byte) uint32 {
	var n uint32
	for _, v := range b {
		if v == 0 {
			n += 8
			continue
		}
		for mask := byte(0x80); mask > 0; mask >>= 1 {
			if v&mask != 0 {
				return n
			}
			n++
		}
	}
	return n
}
