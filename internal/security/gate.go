// Package security provides the gate the engine routes authentication
// and at-rest encryption through.
package security

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/calder-labs/hypermem/internal/model"
)

// Credentials is what a caller presents to authenticate.
type Credentials struct {
	IdentityID string
	Token      string
}

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	Authenticated bool
	IdentityID    string
}

// Gate is the security collaborator contract.
type Gate interface {
	Authenticate(cred Credentials) (AuthResult, error)
	Authorize(identityID, resource, action string) bool
	Encrypt(plain []byte) ([]byte, error)
	Decrypt(cipher []byte) ([]byte, error)
}

// AEADGate implements Gate with XChaCha20-Poly1305. The key is derived
// from a passphrase with HKDF-SHA256; ciphertexts carry their random
// nonce as a prefix.
type AEADGate struct {
	aead  cipher.AEAD
	token []byte
}

// NewAEADGate creates a gate from a passphrase and a static API token.
func NewAEADGate(passphrase, token string) (*AEADGate, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(passphrase), []byte("hypermem/state"), nil)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	return &AEADGate{aead: aead, token: []byte(token)}, nil
}

// Authenticate checks the presented token in constant time.
func (g *AEADGate) Authenticate(cred Credentials) (AuthResult, error) {
	if subtle.ConstantTimeCompare([]byte(cred.Token), g.token) != 1 {
		return AuthResult{}, fmt.Errorf("%w: bad token", model.ErrSecurity)
	}
	return AuthResult{Authenticated: true, IdentityID: cred.IdentityID}, nil
}

// Authorize allows any authenticated identity. Resource/action level
// policy belongs to deployments that wrap the gate.
func (g *AEADGate) Authorize(identityID, resource, action string) bool {
	return identityID != ""
}

// Encrypt seals plain under a fresh random nonce.
func (g *AEADGate) Encrypt(plain []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", model.ErrSecurity, err)
	}
	return g.aead.Seal(nonce, nonce, plain, nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (g *AEADGate) Decrypt(cipher []byte) ([]byte, error) {
	if len(cipher) < chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: ciphertext too short", model.ErrSecurity)
	}
	nonce, sealed := cipher[:chacha20poly1305.NonceSizeX], cipher[chacha20poly1305.NonceSizeX:]
	plain, err := g.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt: %v", model.ErrSecurity, err)
	}
	return plain, nil
}
