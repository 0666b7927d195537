package zkvm

import (
	"crypto/hmac"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// InstanceKey is the per-instance cryptographic key used to MAC-tag
// snapshots (spec §4.3). Generated with crypto/rand, the same primitive
// the corpus uses for secure token generation elsewhere.
type InstanceKey [32]byte

// NewInstanceKey generates a fresh random key.
func NewInstanceKey() (InstanceKey, error) {
	var k InstanceKey
	if _, err := rand.Read(k[:]); err != nil {
		return InstanceKey{}, fmt.Errorf("generate instance key: %w", err)
	}
	return k, nil
}

// Zero overwrites the key material; key material is zeroed first during
// arena teardown (spec §4.3).
func (k *InstanceKey) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// Snapshot is a tagged capture of ZKVM-visible state for persistence or
// debugging (spec §4.3).
type Snapshot struct {
	State []byte
	Tag   []byte
}

// ErrIntegrityMismatch is returned when a snapshot's tag does not match
// its state under the instance key (spec §4.3, §7 "Sandbox integrity
// failure").
var ErrIntegrityMismatch = fmt.Errorf("snapshot integrity tag mismatch")

// Seal produces a tagged Snapshot of state under key using blake2b's
// keyed-hash mode.
func Seal(key InstanceKey, state []byte) (Snapshot, error) {
	mac, err := blake2b.New256(key[:])
	if err != nil {
		return Snapshot{}, fmt.Errorf("init snapshot mac: %w", err)
	}
	mac.Write(state)
	return Snapshot{State: append([]byte(nil), state...), Tag: mac.Sum(nil)}, nil
}

// Verify recomputes the MAC over snap.State under key and compares it to
// snap.Tag in constant time. Snapshots with mismatching tags are
// rejected at load (spec §4.3).
func Verify(key InstanceKey, snap Snapshot) error {
	mac, err := blake2b.New256(key[:])
	if err != nil {
		return fmt.Errorf("init snapshot mac: %w", err)
	}
	mac.Write(snap.State)
	want := mac.Sum(nil)
	if !hmac.Equal(want, snap.Tag) {
		return ErrIntegrityMismatch
	}
	return nil
}
