package backup

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// Sealed archives wrap the ZIP in a passphrase-derived AEAD envelope so a
// backup carrying account credentials can sit on shared storage.
//
// Layout: magic || salt(16) || nonce(24) || ciphertext.
var sealMagic = []byte("RBAKSEAL1\x00")

const (
	sealSaltLen = 16
	// scrypt parameters, interactive-use grade
	sealScryptN = 1 << 15
	sealScryptR = 8
	sealScryptP = 1
)

// ErrPassphraseRequired is returned when opening a sealed archive without
// a passphrase.
var ErrPassphraseRequired = errors.New("archive is sealed; a passphrase is required")

// ErrWrongPassphrase is returned when the envelope fails to authenticate.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted sealed archive")

// IsSealed reports whether raw bytes carry the seal envelope.
func IsSealed(raw []byte) bool {
	return bytes.HasPrefix(raw, sealMagic)
}

// Seal encrypts archive bytes under a passphrase.
func Seal(raw []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}

	salt := make([]byte, sealSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key, err := scrypt.Key([]byte(passphrase), salt, sealScryptN, sealScryptR, sealScryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealMagic)+len(salt)+len(nonce)+len(raw)+aead.Overhead())
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, raw, sealMagic), nil
}

// Unseal decrypts a sealed archive.
func Unseal(raw []byte, passphrase string) ([]byte, error) {
	if !IsSealed(raw) {
		return nil, errors.New("not a sealed archive")
	}
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	body := raw[len(sealMagic):]
	if len(body) < sealSaltLen+chacha20poly1305.NonceSizeX {
		return nil, ErrWrongPassphrase
	}
	salt := body[:sealSaltLen]
	nonce := body[sealSaltLen : sealSaltLen+chacha20poly1305.NonceSizeX]
	ciphertext := body[sealSaltLen+chacha20poly1305.NonceSizeX:]

	key, err := scrypt.Key([]byte(passphrase), salt, sealScryptN, sealScryptR, sealScryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	plain, err := aead.Open(nil, nonce, ciphertext, sealMagic)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plain, nil
}
