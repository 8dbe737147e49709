package trust

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
)

var (
	ErrUnsigned   = errors.New("trust: feed is not signed")
	ErrNoKeyring  = errors.New("trust: no keyring available")
	ErrBadKeyring = errors.New("trust: unreadable keyring")
)

// Signature is the verification result for one signature on a feed.
type Signature struct {
	Fingerprint string
	Valid       bool
	Err         error
}

func (s Signature) String() string {
	if s.Valid {
		return "valid signature from " + s.Fingerprint
	}
	if s.Err != nil {
		return "bad signature: " + s.Err.Error()
	}
	return "bad signature"
}

// Checker verifies a downloaded feed's signatures and strips the signature
// wrapping, returning the signed payload.
type Checker interface {
	Check(data []byte) (content []byte, sigs []Signature, err error)
}

// KeyringChecker verifies clearsigned feeds against a directory of armored
// public keys.
type KeyringChecker struct {
	keyring openpgp.EntityList
}

// OpenKeyring loads every armored key file (*.asc, *.gpg) under dir. An
// empty or missing directory yields a checker that can only report unknown
// signers.
func OpenKeyring(dir string) (*KeyringChecker, error) {
	checker := &KeyringChecker{}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return checker, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKeyring, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".asc" && ext != ".gpg" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadKeyring, err)
		}
		keys, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadKeyring, entry.Name(), err)
		}
		checker.keyring = append(checker.keyring, keys...)
	}
	return checker, nil
}

// AddKeys extends the keyring in memory; used by tests and by key import.
func (c *KeyringChecker) AddKeys(keys openpgp.EntityList) {
	c.keyring = append(c.keyring, keys...)
}

// Check decodes a clearsigned feed. The returned content is the signed
// payload; sigs describes each signature found. A signature by an unknown
// key or with a broken digest is reported as invalid, not as a hard error;
// the caller owns the trust decision.
func (c *KeyringChecker) Check(data []byte) ([]byte, []Signature, error) {
	block, _ := clearsign.Decode(data)
	if block == nil {
		return nil, nil, ErrUnsigned
	}

	signer, err := block.VerifySignature(c.keyring, nil)
	if err != nil {
		return block.Plaintext, []Signature{{Err: err}}, nil
	}
	return block.Plaintext, []Signature{{
		Fingerprint: Fingerprint(signer),
		Valid:       true,
	}}, nil
}

// Fingerprint formats an entity's primary-key fingerprint the way the
// trust database stores it.
func Fingerprint(entity *openpgp.Entity) string {
	return fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint)
}
