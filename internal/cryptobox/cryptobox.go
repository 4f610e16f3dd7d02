// Package cryptobox implements field-level symmetric encryption with key
// versioning. Every sensitive value persisted by the engine passes through a
// Box before storage and after retrieval; the wire shape is
// "keyVersion:iv:ciphertext" with base64 IV and ciphertext segments.
package cryptobox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeySize is the fixed AES-256 key length in bytes. Arbitrary-length
	// key material is normalized to this size.
	KeySize = 32

	fieldSeparator = ":"
	fieldSegments  = 3
)

var (
	// ErrValidation marks rejected input before any cipher call.
	ErrValidation = errors.New("cryptobox: invalid input")
	// ErrFormat marks a structurally malformed encrypted field: wrong
	// segment count, undecodable segment or wrong IV length.
	ErrFormat = errors.New("cryptobox: malformed encrypted field")
	// ErrKey marks a decryption that decoded cleanly but failed with the
	// supplied key material, including exhaustion of a whole key ring.
	ErrKey = errors.New("cryptobox: decryption failed")
)

// EncryptedField is the persisted form of an encrypted value. A value is
// either exactly the keyVersion:iv:ciphertext triple or it is plaintext that
// never reaches storage; there is no partial encryption.
type EncryptedField string

// Key pairs a version label with normalized 32-byte secret material.
type Key struct {
	Version string
	secret  []byte
}

// NewKey builds a key from arbitrary-length material: longer input is
// truncated to 32 bytes, shorter input is zero-padded. Callers should avoid
// relying on padding for security-critical keys.
func NewKey(version string, material []byte) (Key, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return Key{}, fmt.Errorf("%w: key version cannot be empty", ErrValidation)
	}
	if strings.Contains(version, fieldSeparator) {
		return Key{}, fmt.Errorf("%w: key version cannot contain %q", ErrValidation, fieldSeparator)
	}
	if len(material) == 0 {
		return Key{}, fmt.Errorf("%w: key material cannot be empty", ErrValidation)
	}

	secret := make([]byte, KeySize)
	copy(secret, material)
	return Key{Version: version, secret: secret}, nil
}

// KeyRing holds the current encryption key and the ordered previous keys
// still accepted for decryption during rotation.
type KeyRing struct {
	Current  Key
	Previous []Key
}

// Box performs encryption with the ring's current key and fallback
// decryption across the whole ring. A Box carries no mutable state and is
// safe for concurrent use.
type Box struct {
	ring KeyRing
}

// New constructs a Box from a key ring.
func New(ring KeyRing) (*Box, error) {
	if len(ring.Current.secret) != KeySize {
		return nil, fmt.Errorf("%w: current key is not initialized", ErrValidation)
	}
	for _, k := range ring.Previous {
		if len(k.secret) != KeySize {
			return nil, fmt.Errorf("%w: previous key %q is not initialized", ErrValidation, k.Version)
		}
	}
	return &Box{ring: ring}, nil
}

// CurrentVersion returns the version label new ciphertexts are written with.
func (b *Box) CurrentVersion() string { return b.ring.Current.Version }

// Encrypt encrypts a plaintext scalar with the current key using AES-256-CBC
// and a freshly generated IV.
func (b *Box) Encrypt(plaintext string) (EncryptedField, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: plaintext cannot be empty", ErrValidation)
	}
	return seal(b.ring.Current, []byte(plaintext))
}

// EncryptJSON marshals a value to JSON and encrypts the blob.
func (b *Box) EncryptJSON(v interface{}) (EncryptedField, error) {
	if v == nil {
		return "", fmt.Errorf("%w: value cannot be nil", ErrValidation)
	}
	blob, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: marshal value: %v", ErrValidation, err)
	}
	return seal(b.ring.Current, blob)
}

// Decrypt decrypts a field with the current key only. Rotation-aware callers
// should prefer DecryptWithFallback.
func (b *Box) Decrypt(field EncryptedField) (string, error) {
	plaintext, err := open(b.ring.Current, field)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// DecryptWithFallback tries the current key first and then each previous key
// in ring order. The first success wins; the version of the key that
// succeeded is reported so callers can decide whether re-encryption is due.
func (b *Box) DecryptWithFallback(field EncryptedField) (string, string, error) {
	plaintext, err := open(b.ring.Current, field)
	if err == nil {
		return string(plaintext), b.ring.Current.Version, nil
	}
	if errors.Is(err, ErrFormat) || errors.Is(err, ErrValidation) {
		return "", "", err
	}
	for _, key := range b.ring.Previous {
		plaintext, err = open(key, field)
		if err == nil {
			return string(plaintext), key.Version, nil
		}
	}
	return "", "", fmt.Errorf("%w: no key in ring could decrypt field", ErrKey)
}

// DecryptJSON decrypts a field via fallback and unmarshals the blob into out.
func (b *Box) DecryptJSON(field EncryptedField, out interface{}) error {
	plaintext, _, err := b.DecryptWithFallback(field)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(plaintext), out); err != nil {
		return fmt.Errorf("%w: unmarshal decrypted value: %v", ErrFormat, err)
	}
	return nil
}

// ReencryptToCurrent decrypts a field via fallback and, when a previous key
// was needed, re-encrypts it with the current key. Fields already readable
// with the current key are returned untouched, which makes repeated
// migration sweeps idempotent. The returned flag reports whether the field
// was rewritten.
func (b *Box) ReencryptToCurrent(field EncryptedField) (EncryptedField, bool, error) {
	plaintext, version, err := b.DecryptWithFallback(field)
	if err != nil {
		return "", false, err
	}
	if version == b.ring.Current.Version {
		return field, false, nil
	}
	rewrapped, err := seal(b.ring.Current, []byte(plaintext))
	if err != nil {
		return "", false, err
	}
	return rewrapped, true, nil
}

// IsEncrypted reports whether a value has the structural shape of an
// encrypted field: correct separator count and decodable segments. It is not
// a cryptographic verification and a positive result is no proof of
// authenticity.
func IsEncrypted(value string) bool {
	parts := strings.Split(value, fieldSeparator)
	if len(parts) != fieldSegments {
		return false
	}
	if strings.TrimSpace(parts[0]) == "" {
		return false
	}
	iv, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(iv) != aes.BlockSize {
		return false
	}
	ct, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return false
	}
	return true
}

// GenerateKey returns fresh 32-byte key material hex-encoded for operator
// use. The engine itself never generates or stores keys.
func GenerateKey() (string, error) {
	material := make([]byte, KeySize)
	if _, err := rand.Read(material); err != nil {
		return "", fmt.Errorf("generate key material: %w", err)
	}
	return hex.EncodeToString(material), nil
}

func seal(key Key, plaintext []byte) (EncryptedField, error) {
	block, err := aes.NewCipher(key.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := padPKCS7(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	field := key.Version + fieldSeparator +
		base64.StdEncoding.EncodeToString(iv) + fieldSeparator +
		base64.StdEncoding.EncodeToString(ciphertext)
	return EncryptedField(field), nil
}

func open(key Key, field EncryptedField) ([]byte, error) {
	if field == "" {
		return nil, fmt.Errorf("%w: encrypted field cannot be empty", ErrValidation)
	}

	parts := strings.Split(string(field), fieldSeparator)
	if len(parts) != fieldSegments {
		return nil, fmt.Errorf("%w: expected %d segments, got %d", ErrFormat, fieldSegments, len(parts))
	}
	iv, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: iv segment: %v", ErrFormat, err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: iv length %d", ErrFormat, len(iv))
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext segment: %v", ErrFormat, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", ErrFormat, len(ciphertext))
	}

	block, err := aes.NewCipher(key.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := unpadPKCS7(plaintext, aes.BlockSize)
	if err != nil {
		// A wrong key decodes bytes but yields garbage padding.
		return nil, err
	}
	return unpadded, nil
}

func padPKCS7(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: invalid padded length", ErrKey)
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("%w: invalid padding", ErrKey)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("%w: invalid padding", ErrKey)
		}
	}
	return data[:len(data)-padding], nil
}
