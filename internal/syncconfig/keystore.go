package syncconfig

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/evans/recall/internal/crypto"
)

// Keystore is the secure key-value boundary holding the per-user master key
// and the device fingerprint. The default is a 0600 file under the config
// dir; platforms with hardware-backed storage provide their own impl.
type Keystore interface {
	MasterKey() ([]byte, error)
	Fingerprint() (string, error)
}

// keystoreFile is the on-disk shape of the file keystore.
type keystoreFile struct {
	MasterKey   string `json:"master_key"`  // hex
	KeySalt     string `json:"key_salt"`    // hex, salt the master key was derived with
	Fingerprint string `json:"fingerprint"` // hex, stable across re-registration
}

// FileKeystore stores key material at ~/.config/recall/keystore.json (0600).
type FileKeystore struct {
	path string
}

// OpenKeystore returns the file-backed keystore, creating key material on
// first use from a random device secret.
func OpenKeystore() (*FileKeystore, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return &FileKeystore{path: filepath.Join(dir, "keystore.json")}, nil
}

func (ks *FileKeystore) load() (*keystoreFile, error) {
	data, err := os.ReadFile(ks.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}
	return &kf, nil
}

func (ks *FileKeystore) save(kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ks.path, data, 0600)
}

// ensure creates the keystore on first use: a random device secret is run
// through Argon2id to produce the master key, then discarded. The key never
// leaves this file and is never transmitted.
func (ks *FileKeystore) ensure() (*keystoreFile, error) {
	kf, err := ks.load()
	if err != nil {
		return nil, err
	}
	if kf != nil {
		return kf, nil
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("random device secret: %w", err)
	}
	key, salt, err := crypto.DeriveMasterKey(hex.EncodeToString(secret))
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w", err)
	}

	fp := make([]byte, 16)
	if _, err := rand.Read(fp); err != nil {
		return nil, fmt.Errorf("random fingerprint: %w", err)
	}

	kf = &keystoreFile{
		MasterKey:   hex.EncodeToString(key),
		KeySalt:     hex.EncodeToString(salt),
		Fingerprint: hex.EncodeToString(fp),
	}
	if err := ks.save(kf); err != nil {
		return nil, fmt.Errorf("save keystore: %w", err)
	}
	return kf, nil
}

// MasterKey returns the per-user symmetric master key, creating it on first use.
func (ks *FileKeystore) MasterKey() ([]byte, error) {
	kf, err := ks.ensure()
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(kf.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(key) != crypto.KeyLen {
		return nil, fmt.Errorf("master key must be %d bytes", crypto.KeyLen)
	}
	return key, nil
}

// Fingerprint returns the device fingerprint, creating it on first use.
// It distinguishes registered devices independent of reinstalls of auth state.
func (ks *FileKeystore) Fingerprint() (string, error) {
	kf, err := ks.ensure()
	if err != nil {
		return "", err
	}
	return kf.Fingerprint, nil
}
