package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"labelscraper/pkg/store"
)

const (
	fileVersion      = 2
	saltSize         = 32
	keySize          = 32
	kdfIterations    = 100000
	passphraseEnvVar = "LABELSCRAPER_PASSPHRASE"
)

// sealedFile is the on-disk form of the credential file. Byte slices are base64 in JSON.
type sealedFile struct {
	Version  int       `json:"version"`
	Salt     []byte    `json:"salt"`
	Nonce    []byte    `json:"nonce"`
	Sealed   []byte    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// EncryptedFileStore keeps every profile in one AES-GCM sealed file
type EncryptedFileStore struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

// NewEncryptedFileStore opens the credential file at path. The passphrase comes
// from LABELSCRAPER_PASSPHRASE or a generated .passphrase file next to it.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := loadPassphrase(filepath.Join(filepath.Dir(path), ".passphrase"))
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}

	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// Store saves creds under creds.Profile, replacing any previous entry
func (e *EncryptedFileStore) Store(creds *Credentials) error {
	if creds == nil || creds.Profile == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	profiles, err := e.read()
	if err != nil {
		return err
	}
	profiles[creds.Profile] = *creds
	return e.write(profiles)
}

// Retrieve returns the credentials saved for profile
func (e *EncryptedFileStore) Retrieve(profile string) (*Credentials, error) {
	if profile == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	profiles, err := e.read()
	if err != nil {
		return nil, err
	}
	creds, ok := profiles[profile]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &creds, nil
}

// Delete removes profile. The file itself goes away with the last profile.
func (e *EncryptedFileStore) Delete(profile string) error {
	if profile == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	profiles, err := e.read()
	if err != nil {
		return err
	}
	if _, ok := profiles[profile]; !ok {
		return ErrCredentialsNotFound
	}
	delete(profiles, profile)

	if len(profiles) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credential file: %w", err)
		}
		return nil
	}
	return e.write(profiles)
}

// Exists reports whether profile has saved credentials
func (e *EncryptedFileStore) Exists(profile string) bool {
	creds, err := e.Retrieve(profile)
	return err == nil && creds != nil
}

// read decrypts the credential file. A missing file holds no profiles.
func (e *EncryptedFileStore) read() (map[string]Credentials, error) {
	profiles := make(map[string]Credentials)

	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return profiles, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var file sealedFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}
	if file.Version != fileVersion {
		return nil, fmt.Errorf("unsupported credential file version %d", file.Version)
	}

	gcm, err := newGCM(e.passphrase, file.Salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, file.Nonce, file.Sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential file: %w", err)
	}

	if err := json.Unmarshal(plaintext, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return profiles, nil
}

// write seals profiles under a fresh salt and nonce and replaces the file
func (e *EncryptedFileStore) write(profiles map[string]Credentials) error {
	plaintext, err := json.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	file := sealedFile{
		Version:  fileVersion,
		Salt:     make([]byte, saltSize),
		Modified: time.Now(),
	}
	if _, err := rand.Read(file.Salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(e.passphrase, file.Salt)
	if err != nil {
		return err
	}
	file.Nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(file.Nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	file.Sealed = gcm.Seal(nil, file.Nonce, plaintext, nil)

	content, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential file: %w", err)
	}
	return store.WriteFileAtomic(e.path, content, 0600)
}

// newGCM derives the file key from the passphrase with PBKDF2-SHA256
func newGCM(passphrase, salt []byte) (cipher.AEAD, error) {
	if len(salt) != saltSize {
		return nil, errors.New("credential file has an invalid salt")
	}
	key := pbkdf2.Key(passphrase, salt, kdfIterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return gcm, nil
}

// loadPassphrase prefers the environment, then the passphrase file, generating it on first use
func loadPassphrase(path string) ([]byte, error) {
	if pass := os.Getenv(passphraseEnvVar); pass != "" {
		return []byte(pass), nil
	}

	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return content, nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := []byte(base64.RawURLEncoding.EncodeToString(raw))

	if err := store.WriteFileAtomic(path, passphrase, 0600); err != nil {
		return nil, fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}
