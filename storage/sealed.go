package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters for record sealing.
	Argon2Time        = 3
	Argon2Memory      = 64 * 1024 // 64 MB
	Argon2Parallelism = 4
	Argon2KeyLen      = 32

	// Sealed format sizes.
	SaltLen     = 16
	NonceLen    = 12
	ChecksumLen = 4
)

// Seal encrypts data with Argon2id + AES-256-GCM.
//
// Output format: salt(16B) || nonce(12B) || AES-GCM(argon2id(password,salt), nonce, data||checksum)
//
// The checksum is SHA256(data)[:4] for verifying correct decryption.
func Seal(data []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, ErrPasswordRequired
	}

	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("storage: failed to generate salt: %w", err)
	}
	gcm, err := sealCipher(password, salt)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	plaintext := make([]byte, len(data)+ChecksumLen)
	copy(plaintext, data)
	copy(plaintext[len(data):], sum[:ChecksumLen])

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("storage: failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	result := make([]byte, 0, SaltLen+NonceLen+len(ciphertext))
	result = append(result, salt...)
	result = append(result, nonce...)
	result = append(result, ciphertext...)
	return result, nil
}

// Unseal reverses Seal. A wrong password yields ErrDecryptionFailed.
func Unseal(sealed []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if len(sealed) < SaltLen+NonceLen+ChecksumLen {
		return nil, ErrDecryptionFailed
	}

	salt := sealed[:SaltLen]
	nonce := sealed[SaltLen : SaltLen+NonceLen]
	ciphertext := sealed[SaltLen+NonceLen:]

	gcm, err := sealCipher(password, salt)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(plaintext) < ChecksumLen {
		return nil, ErrDecryptionFailed
	}

	data := plaintext[:len(plaintext)-ChecksumLen]
	sum := sha256.Sum256(data)
	if subtle.ConstantTimeCompare(sum[:ChecksumLen], plaintext[len(data):]) != 1 {
		return nil, ErrChecksumMismatch
	}
	return data, nil
}

func sealCipher(password string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("storage: AES cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("storage: GCM creation failed: %w", err)
	}
	return gcm, nil
}
