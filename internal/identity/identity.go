// Package identity manages the node's persistent cryptographic identity:
// a 32-byte Ed25519 secret key on disk and the NodeID (public key)
// derived from it.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// SecretKeySize is the exact on-disk size of the secret key file, per
// the invariant that a wrong-size file must abort initialization rather
// than be silently regenerated.
const SecretKeySize = ed25519.SeedSize // 32

// NodeID is the public half of the persistent identity: the node's
// Ed25519 public key. It is the sole peer identifier carried on tickets
// and announcements.
type NodeID [ed25519.PublicKeySize]byte

// String renders the NodeID as lowercase hex.
func (n NodeID) String() string {
	return hex.EncodeToString(n[:])
}

// IsZero reports whether n is the zero value (never a valid identity).
func (n NodeID) IsZero() bool {
	return n == NodeID{}
}

// NodeIDFromBytes validates and wraps a 32-byte public key.
func NodeIDFromBytes(b []byte) (NodeID, error) {
	var id NodeID
	if len(b) != len(id) {
		return id, fmt.Errorf("identity: node id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Identity bundles the raw Ed25519 keys with the libp2p PrivKey used to
// bind the endpoint, so that every consumer of the identity sees the
// same NodeID regardless of which layer (wire protocol vs. application
// payloads) is asking for it.
type Identity struct {
	Seed    [SecretKeySize]byte
	priv    ed25519.PrivateKey
	NodeID  NodeID
	p2pPriv libp2pcrypto.PrivKey
}

// PeerID returns the libp2p peer.ID corresponding to this identity's
// public key, for use when dialling or listening on the endpoint.
func (id *Identity) PeerID() (peer.ID, error) {
	return peer.IDFromPrivateKey(id.p2pPriv)
}

// PrivKey returns the libp2p private key used by the endpoint.
func (id *Identity) PrivKey() libp2pcrypto.PrivKey {
	return id.p2pPriv
}

// checkKeyFilePermissions verifies that a key file is not readable by
// group or others before it is trusted.
func checkKeyFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot stat key file %s: %w", path, err)
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return fmt.Errorf("key file %s has insecure permissions %04o (expected 0600)", path, mode)
	}
	return nil
}

// LoadOrCreate loads the 32-byte secret key at path, or generates and
// persists a new one via a CSPRNG if the file does not exist. A file
// that exists but is not exactly 32 bytes is a fatal InitializationError
// — wrong-size keys are never silently regenerated.
func LoadOrCreate(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := checkKeyFilePermissions(path); err != nil {
			return nil, &InitializationError{Op: "load secret key", Err: err}
		}
		if len(data) != SecretKeySize {
			return nil, &InitializationError{
				Op:  "load secret key",
				Err: fmt.Errorf("secret key file %s has incorrect size: expected %d bytes, found %d", path, SecretKeySize, len(data)),
			}
		}
		return fromSeed(data)

	case os.IsNotExist(err):
		var seed [SecretKeySize]byte
		if _, err := rand.Read(seed[:]); err != nil {
			return nil, &InitializationError{Op: "generate secret key", Err: err}
		}
		if parent := filepath.Dir(path); parent != "." {
			if err := os.MkdirAll(parent, 0700); err != nil {
				return nil, &InitializationError{Op: "create data dir", Err: err}
			}
		}
		if err := os.WriteFile(path, seed[:], 0600); err != nil {
			return nil, &InitializationError{Op: "persist secret key", Err: err}
		}
		return fromSeed(seed[:])

	default:
		return nil, &InitializationError{Op: "load secret key", Err: err}
	}
}

func fromSeed(seed []byte) (*Identity, error) {
	priv := ed25519.NewKeyFromSeed(seed) // 64 bytes: seed || pubkey
	pub := priv.Public().(ed25519.PublicKey)

	nodeID, err := NodeIDFromBytes(pub)
	if err != nil {
		return nil, &InitializationError{Op: "derive node id", Err: err}
	}

	// The libp2p Ed25519 private key wire format is the same 64-byte
	// seed||pubkey layout stdlib ed25519 uses, so the on-disk 32-byte
	// seed and the libp2p identity used to bind the endpoint derive
	// from the exact same key material.
	p2pPriv, err := libp2pcrypto.UnmarshalEd25519PrivateKey(priv)
	if err != nil {
		return nil, &InitializationError{Op: "wrap libp2p identity", Err: err}
	}

	id := &Identity{NodeID: nodeID, p2pPriv: p2pPriv}
	copy(id.Seed[:], seed)
	id.priv = priv
	return id, nil
}
