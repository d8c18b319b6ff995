package certstore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pkcs12"
)

// Store holds encrypted A1 certificates (.pfx) and their passphrases on disk.
// Layout: <dir>/<taxid>.pfx.enc and <dir>/<taxid>.pwd.enc. The store is
// read-only to the automation engine; writes happen through the import CLI
// and the certificate upload endpoint.
type Store struct {
	dir  string
	aead cipher.AEAD
}

// KeyEnvVar names the environment variable carrying the base64-encoded
// 32-byte encryption key.
const KeyEnvVar = "CERT_STORE_KEY"

// New creates a store rooted at dir with the given base64-encoded key.
// The directory is created if it does not exist.
func New(dir, keyBase64 string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("certificate store directory is empty")
	}
	if keyBase64 == "" {
		return nil, fmt.Errorf("%s is required but not set", KeyEnvVar)
	}

	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid certificate store key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("certificate store key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create certificate store directory: %w", err)
	}

	return &Store{dir: dir, aead: aead}, nil
}

// GenerateKey returns a new random store key, base64-encoded.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// NormalizeTaxID strips formatting punctuation from a tax id and validates
// that the result is 14 digits.
func NormalizeTaxID(taxID string) (string, error) {
	cleaned := strings.NewReplacer(".", "", "/", "", "-", "", " ", "").Replace(strings.TrimSpace(taxID))
	if len(cleaned) != 14 {
		return "", fmt.Errorf("invalid tax id %q: want 14 digits", taxID)
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("invalid tax id %q: want 14 digits", taxID)
		}
	}
	return cleaned, nil
}

// Save encrypts and stores the certificate bytes and passphrase for a tax id.
// It does not validate that the bytes decode as PKCS#12; call Validate first
// when importing user-supplied material.
func (s *Store) Save(taxID string, pfx []byte, passphrase string) error {
	id, err := NormalizeTaxID(taxID)
	if err != nil {
		return err
	}
	if len(pfx) == 0 {
		return &InvalidCertificateError{Message: "certificate bytes are empty"}
	}

	encPfx, err := s.seal(pfx)
	if err != nil {
		return fmt.Errorf("failed to encrypt certificate: %w", err)
	}
	encPwd, err := s.seal([]byte(passphrase))
	if err != nil {
		return fmt.Errorf("failed to encrypt passphrase: %w", err)
	}

	if err := os.WriteFile(s.pfxPath(id), encPfx, 0o600); err != nil {
		return fmt.Errorf("failed to write certificate file: %w", err)
	}
	if err := os.WriteFile(s.pwdPath(id), encPwd, 0o600); err != nil {
		return fmt.Errorf("failed to write passphrase file: %w", err)
	}
	return nil
}

// Load reads and decrypts the certificate bytes and passphrase for a tax id.
// Returns ErrNotFound if nothing is stored, or a DecryptionError when the
// stored material cannot be decrypted with the store key.
func (s *Store) Load(taxID string) ([]byte, string, error) {
	id, err := NormalizeTaxID(taxID)
	if err != nil {
		return nil, "", err
	}

	encPfx, err := os.ReadFile(s.pfxPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("tax id %s: %w", id, ErrNotFound)
		}
		return nil, "", fmt.Errorf("failed to read certificate file: %w", err)
	}
	encPwd, err := os.ReadFile(s.pwdPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("tax id %s: %w", id, ErrNotFound)
		}
		return nil, "", fmt.Errorf("failed to read passphrase file: %w", err)
	}

	pfx, err := s.open(encPfx)
	if err != nil {
		return nil, "", &DecryptionError{TaxID: id, Cause: err}
	}
	pwd, err := s.open(encPwd)
	if err != nil {
		return nil, "", &DecryptionError{TaxID: id, Cause: err}
	}
	return pfx, string(pwd), nil
}

// Has reports whether a certificate is stored for the tax id.
func (s *Store) Has(taxID string) bool {
	id, err := NormalizeTaxID(taxID)
	if err != nil {
		return false
	}
	_, err = os.Stat(s.pfxPath(id))
	return err == nil
}

// Validate checks that the certificate bytes decode as a PKCS#12 bundle with
// the given passphrase.
func Validate(pfx []byte, passphrase string) error {
	if len(pfx) == 0 {
		return &InvalidCertificateError{Message: "certificate bytes are empty"}
	}
	if _, err := pkcs12.ToPEM(pfx, passphrase); err != nil {
		return &InvalidCertificateError{Message: "PKCS#12 decode failed", Cause: err}
	}
	return nil
}

func (s *Store) pfxPath(id string) string {
	return filepath.Join(s.dir, id+".pfx.enc")
}

func (s *Store) pwdPath(id string) string {
	return filepath.Join(s.dir, id+".pwd.enc")
}

// seal encrypts plaintext with a random nonce prefix.
func (s *Store) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *Store) open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < s.aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, payload := ciphertext[:s.aead.NonceSize()], ciphertext[s.aead.NonceSize():]
	return s.aead.Open(nil, nonce, payload, nil)
}
