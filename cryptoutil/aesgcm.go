// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2Iterations is the work factor used to stretch a keystore
	// password into an AES key.
	PBKDF2Iterations = 150_000
	// SaltSize is the random salt length DeriveKey expects.
	SaltSize = 16
	// KeySize is the derived AES-256 key length.
	KeySize = 32
)

// ErrCiphertextTooShort is returned by AESGCMEncrypter.Decrypt when the
// input is shorter than one GCM nonce.
var ErrCiphertextTooShort = errors.New("cryptoutil: ciphertext too short")

// DeriveKey stretches password into a KeySize-byte AES key with
// PBKDF2-HMAC-SHA256, the construction the keystore uses to encrypt
// identity seeds and wallet master seeds at rest.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// AESGCMEncrypter implements Encrypter over AES-256-GCM. Encrypt prepends
// the random nonce to its output so Decrypt needs only the key.
type AESGCMEncrypter struct{}

var _ Encrypter = AESGCMEncrypter{}

func (AESGCMEncrypter) Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (AESGCMEncrypter) Decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
