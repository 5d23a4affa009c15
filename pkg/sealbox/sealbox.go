// Package sealbox encrypts small records at rest with a passphrase.
//
// Keys are derived with Argon2id and records are sealed with
// XChaCha20-Poly1305. The encoded form is self-describing:
//
//	$sealbox$v=19$m=65536,t=3,p=2$<salt>$<nonce||ciphertext>
package sealbox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const prefix = "$sealbox$"

var (
	ErrInvalidBox          = errors.New("invalid sealed box format")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
	ErrDecrypt             = errors.New("failed to open sealed box")
)

// Params defines the Argon2id parameters used to derive the sealing key
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
}

// DefaultParams returns the parameters used for new boxes
func DefaultParams() *Params {
	return &Params{
		Memory:      64 * 1024, // 64 MB
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
	}
}

// Seal encrypts plaintext under passphrase
func Seal(plaintext []byte, passphrase string, params *Params) (string, error) {
	if params == nil {
		params = DefaultParams()
	}

	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt, params))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := aead.Seal(nonce, nonce, plaintext, nil)

	return fmt.Sprintf(
		"%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		prefix,
		argon2.Version,
		params.Memory,
		params.Iterations,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(box),
	), nil
}

// Open decrypts a box produced by Seal
func Open(encoded, passphrase string) ([]byte, error) {
	params, salt, box, err := decode(encoded)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt, params))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(box) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrInvalidBox
	}

	nonce, ciphertext := box[:aead.NonceSize()], box[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// IsSealed reports whether data looks like a sealed box
func IsSealed(data []byte) bool {
	return strings.HasPrefix(string(data), prefix)
}

func deriveKey(passphrase string, salt []byte, params *Params) []byte {
	return argon2.IDKey(
		[]byte(passphrase),
		salt,
		params.Iterations,
		params.Memory,
		params.Parallelism,
		chacha20poly1305.KeySize,
	)
}

func decode(encoded string) (*Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "sealbox" {
		return nil, nil, nil, ErrInvalidBox
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, nil, ErrInvalidBox
	}
	if version != argon2.Version {
		return nil, nil, nil, ErrIncompatibleVersion
	}

	params := &Params{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return nil, nil, nil, ErrInvalidBox
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, ErrInvalidBox
	}
	params.SaltLength = uint32(len(salt))

	box, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, ErrInvalidBox
	}

	return params, salt, box, nil
}
