package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF expansion labels. One AEAD key per data direction: the "client" key
// protects records flowing client→server, the "server" key server→client.
var (
	infoClientKey = []byte("client master key")
	infoServerKey = []byte("server master key")

	labelClientBase = []byte("client")
	labelServerBase = []byte("server")
)

// SessionSecrets holds the key material derived once per session, at the
// transition into the established state. It is never regenerated within a
// session; a new session requires a full new handshake.
type SessionSecrets struct {
	// ClientKey seals records sent by the client.
	ClientKey [AEADKeySize]byte

	// ServerKey seals records sent by the server.
	ServerKey [AEADKeySize]byte

	// ClientBase is the nonce base for client→server records.
	ClientBase [AEADNonceSize]byte

	// ServerBase is the nonce base for server→client records.
	ServerBase [AEADNonceSize]byte
}

// DeriveSessionSecrets runs HKDF-HMAC-SHA-256 over the X25519 shared secret
// with the concatenated handshake nonces as salt, expanding one AES-128-GCM
// key per direction.
//
// The nonce bases are SHA-256 digests over a direction label and the salt,
// truncated to the AEAD nonce size. The bases only need to be unique per
// session (the counter guarantees uniqueness within it); they carry no
// secrecy requirement.
func DeriveSessionSecrets(sharedSecret []byte, clientNonce, serverNonce [HandshakeNonceSize]byte) (*SessionSecrets, error) {
	salt := make([]byte, 0, 2*HandshakeNonceSize)
	salt = append(salt, clientNonce[:]...)
	salt = append(salt, serverNonce[:]...)

	secrets := &SessionSecrets{}

	for _, dir := range []struct {
		info []byte
		key  []byte
	}{
		{infoClientKey, secrets.ClientKey[:]},
		{infoServerKey, secrets.ServerKey[:]},
	} {
		r := hkdf.New(sha256.New, sharedSecret, salt, dir.info)
		if _, err := io.ReadFull(r, dir.key); err != nil {
			secrets.Wipe()
			return nil, fmt.Errorf("failed to derive session key: %w", err)
		}
	}

	copy(secrets.ClientBase[:], nonceBase(labelClientBase, salt))
	copy(secrets.ServerBase[:], nonceBase(labelServerBase, salt))

	return secrets, nil
}

// nonceBase derives a per-session, per-direction nonce base.
func nonceBase(label, salt []byte) []byte {
	h := sha256.New()
	h.Write(label)
	h.Write(salt)
	return h.Sum(nil)[:AEADNonceSize]
}

// NewAEAD constructs the AES-128-GCM cipher for a derived session key.
func NewAEAD(key [AEADKeySize]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

// DirectionSecrets is the key material for one data direction.
type DirectionSecrets struct {
	Key  [AEADKeySize]byte
	Base [AEADNonceSize]byte
}

// Client returns the key material protecting client→server records.
func (s *SessionSecrets) Client() DirectionSecrets {
	return DirectionSecrets{Key: s.ClientKey, Base: s.ClientBase}
}

// Server returns the key material protecting server→client records.
func (s *SessionSecrets) Server() DirectionSecrets {
	return DirectionSecrets{Key: s.ServerKey, Base: s.ServerBase}
}

// Wipe erases all key material. The nonce bases are not secret but are
// cleared along with the keys.
func (s *SessionSecrets) Wipe() {
	Wipe(s.ClientKey[:])
	Wipe(s.ServerKey[:])
	Wipe(s.ClientBase[:])
	Wipe(s.ServerBase[:])
}
