package radio

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/dmitrijs2005/mclink/internal/filex"
	"github.com/dmitrijs2005/mclink/internal/logging"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

// GenerateIdentity creates a fresh node key pair. The 64-byte private key
// travels verbatim in ExportPrivateKey and ImportPrivateKey frames.
func GenerateIdentity() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	return priv, nil
}

// ValidIdentity reports whether key is a well-formed pair: 64 bytes whose
// public half matches the one derived from the seed half.
func ValidIdentity(key ed25519.PrivateKey) bool {
	if len(key) != frame.PrivateKeySize {
		return false
	}
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	return bytes.Equal(derived[ed25519.SeedSize:], key[ed25519.SeedSize:])
}

// LoadOrCreateIdentity reads a hex-encoded key pair from path, generating
// and persisting a new one when the file does not exist yet. An empty path
// yields an ephemeral identity.
func LoadOrCreateIdentity(path string, logger logging.Logger) (ed25519.PrivateKey, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if path == "" {
		logger.Info("using ephemeral identity")
		return GenerateIdentity()
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		key, err := decodeIdentity(raw)
		if err != nil {
			return nil, fmt.Errorf("identity file %s: %w", path, err)
		}
		logger.Info("identity loaded", "path", path)
		return key, nil
	case errors.Is(err, fs.ErrNotExist):
		key, err := GenerateIdentity()
		if err != nil {
			return nil, err
		}
		if err := writeIdentity(path, key); err != nil {
			return nil, err
		}
		logger.Info("identity generated", "path", path)
		return key, nil
	default:
		return nil, fmt.Errorf("identity file %s: %w", path, err)
	}
}

func decodeIdentity(raw []byte) (ed25519.PrivateKey, error) {
	s := strings.TrimSpace(string(raw))
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	key := ed25519.PrivateKey(b)
	if !ValidIdentity(key) {
		return nil, errors.New("not a valid key pair")
	}
	return key, nil
}

func writeIdentity(path string, key ed25519.PrivateKey) error {
	if err := filex.EnsureParentDir(path); err != nil {
		return fmt.Errorf("identity file %s: %w", path, err)
	}
	data := hex.EncodeToString(key) + "\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		return fmt.Errorf("identity file %s: %w", path, err)
	}
	return nil
}

func (n *Node) sign(payload []byte) [frame.SignatureSize]byte {
	var sig [frame.SignatureSize]byte
	copy(sig[:], ed25519.Sign(n.identity, payload))
	return sig
}
