// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhtp-network/zhtp/cryptoutil"
)

// seedFile is the on-disk, password-encrypted layout for an identity or
// wallet seed. Mirrors the salt/nonce-prepended-ciphertext/cleartext-hex
// shape a PBKDF2+AES-GCM keystore conventionally uses, adapted to hold
// whichever raw seed the caller is protecting rather than a BIP-39
// mnemonic.
type seedFile struct {
	Salt       string `json:"salt"`
	Ciphertext string `json:"ciphertext"`
}

var errWrongPassword = errors.New("zhtpd: wrong password or corrupted keystore file")

// writeEncryptedSeed encrypts seed under password and writes it to path
// with owner-only permissions.
func writeEncryptedSeed(path string, seed []byte, password string) error {
	salt := make([]byte, cryptoutil.SaltSize)
	if err := readRandom(salt); err != nil {
		return err
	}
	key := cryptoutil.DeriveKey(password, salt)
	ciphertext, err := (cryptoutil.AESGCMEncrypter{}).Encrypt(seed, key)
	if err != nil {
		return fmt.Errorf("zhtpd: encrypt seed: %w", err)
	}
	data, err := json.MarshalIndent(seedFile{
		Salt:       hex.EncodeToString(salt),
		Ciphertext: hex.EncodeToString(ciphertext),
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("zhtpd: create keystore dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// readEncryptedSeed decrypts the seed stored at path with password.
func readEncryptedSeed(path, password string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sf seedFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return nil, fmt.Errorf("zhtpd: corrupted keystore file: %w", err)
	}
	salt, err := hex.DecodeString(sf.Salt)
	if err != nil {
		return nil, fmt.Errorf("zhtpd: corrupted keystore file: %w", err)
	}
	ciphertext, err := hex.DecodeString(sf.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("zhtpd: corrupted keystore file: %w", err)
	}
	key := cryptoutil.DeriveKey(password, salt)
	seed, err := (cryptoutil.AESGCMEncrypter{}).Decrypt(ciphertext, key)
	if err != nil {
		return nil, errWrongPassword
	}
	return seed, nil
}

// rewriteEncryptedSeed decrypts path with oldPassword and re-encrypts the
// recovered seed under newPassword, used by "identity set-password" and
// "wallet set-password".
func rewriteEncryptedSeed(path, oldPassword, newPassword string) error {
	seed, err := readEncryptedSeed(path, oldPassword)
	if err != nil {
		return err
	}
	return writeEncryptedSeed(path, seed, newPassword)
}
