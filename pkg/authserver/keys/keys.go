// Package keys manages the server's JWT signing key: an RS256 private key
// generated on first start, persisted in the state file, and exposed in
// public JWK-set form for the JWKS endpoint.
//
// The key is the only state that survives restarts; tokens do not.
package keys

import (
	"bufio"
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/google/renameio/v2"

	"github.com/doorman-auth/doorman/pkg/logger"
)

// Algorithm is the only signing algorithm the server advertises.
const Algorithm = "RS256"

// rsaBits is the modulus size of generated keys.
const rsaBits = 2048

// privateKeyDirective is the state-file keyword the JWK is stored under.
const privateKeyDirective = "PrivateKey"

// Manager holds the signing key and its derived public JWK set. It is
// immutable after Load, so no locking is needed.
type Manager struct {
	path  string
	key   *rsa.PrivateKey
	keyID string
	jwks  *jose.JSONWebKeySet
}

// Load reads the signing key from the state file, generating and persisting
// a fresh RS256 key when the file or directive is missing.
func Load(path string) (*Manager, error) {
	key, err := readStateFile(path)
	if err != nil {
		return nil, err
	}

	if key == nil {
		logger.Infow("generating new signing key", "algorithm", Algorithm, "state", path)
		key, err = rsa.GenerateKey(rand.Reader, rsaBits)
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		if err := writeStateFile(path, key); err != nil {
			return nil, err
		}
	}

	keyID, err := thumbprint(key)
	if err != nil {
		return nil, err
	}

	public := jose.JSONWebKey{
		Key:       key.Public(),
		KeyID:     keyID,
		Algorithm: Algorithm,
		Use:       "sig",
	}

	return &Manager{
		path:  path,
		key:   key,
		keyID: keyID,
		jwks:  &jose.JSONWebKeySet{Keys: []jose.JSONWebKey{public}},
	}, nil
}

// KeyID returns the RFC 7638 thumbprint identifying the key.
func (m *Manager) KeyID() string {
	return m.keyID
}

// PublicJWKS returns the public JWK set for the JWKS endpoint.
func (m *Manager) PublicJWKS() *jose.JSONWebKeySet {
	return m.jwks
}

// Private returns the private signing key.
func (m *Manager) Private() *rsa.PrivateKey {
	return m.key
}

// readStateFile looks for the PrivateKey directive in the state file.
// A missing file or directive returns a nil key without error.
func readStateFile(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		keyword, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		if !ok || !strings.EqualFold(keyword, privateKeyDirective) {
			continue
		}

		var jwk jose.JSONWebKey
		if err := jwk.UnmarshalJSON([]byte(value)); err != nil {
			return nil, fmt.Errorf("bad %s in state file: %w", privateKeyDirective, err)
		}
		key, ok := jwk.Key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%s in state file is not an RSA private key", privateKeyDirective)
		}
		return key, nil
	}
	return nil, scanner.Err()
}

// writeStateFile persists the key as a JWK, atomically (temp file + rename)
// with mode 0600.
func writeStateFile(path string, key *rsa.PrivateKey) error {
	keyID, err := thumbprint(key)
	if err != nil {
		return err
	}

	jwk := jose.JSONWebKey{
		Key:       key,
		KeyID:     keyID,
		Algorithm: Algorithm,
		Use:       "sig",
	}
	encoded, err := json.Marshal(jwk)
	if err != nil {
		return fmt.Errorf("failed to encode signing key: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	line := fmt.Sprintf("%s %s\n", privateKeyDirective, encoded)
	if err := renameio.WriteFile(path, []byte(line), 0o600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

func thumbprint(key *rsa.PrivateKey) (string, error) {
	jwk := jose.JSONWebKey{Key: key.Public()}
	tp, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to derive key id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(tp), nil
}
