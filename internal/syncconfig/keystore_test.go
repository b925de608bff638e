package syncconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/evans/recall/internal/crypto"
)

func TestKeystoreCreatesOnFirstUse(t *testing.T) {
	home := isolateHome(t)

	ks, err := OpenKeystore()
	if err != nil {
		t.Fatalf("OpenKeystore failed: %v", err)
	}

	key, err := ks.MasterKey()
	if err != nil {
		t.Fatalf("MasterKey failed: %v", err)
	}
	if len(key) != crypto.KeyLen {
		t.Errorf("key length: got %d", len(key))
	}

	info, err := os.Stat(filepath.Join(home, ".config", "recall", "keystore.json"))
	if err != nil {
		t.Fatalf("keystore file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("keystore perms: got %o, want 0600", perm)
	}
}

func TestKeystoreStableAcrossOpens(t *testing.T) {
	isolateHome(t)

	ks1, _ := OpenKeystore()
	key1, err := ks1.MasterKey()
	if err != nil {
		t.Fatalf("MasterKey failed: %v", err)
	}
	fp1, _ := ks1.Fingerprint()

	ks2, _ := OpenKeystore()
	key2, _ := ks2.MasterKey()
	fp2, _ := ks2.Fingerprint()

	if !bytes.Equal(key1, key2) {
		t.Error("master key changed between opens")
	}
	if fp1 != fp2 || fp1 == "" {
		t.Errorf("fingerprint changed: %q vs %q", fp1, fp2)
	}
}
