package encryption

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gss-go/internal/config"
)

const testPassphrase = "correct horse battery staple"

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return NewAgeEncryptor(config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "keys", "gss.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "gss.key"),
	})
}

func setupAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	e := newTestAgeEncryptor(t)
	if err := e.Setup(testPassphrase); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return e
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()

	t.Run("creates key files", func(t *testing.T) {
		e := newTestAgeEncryptor(t)
		if e.IsConfigured() {
			t.Error("IsConfigured() = true before Setup, want false")
		}
		if err := e.Setup(testPassphrase); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if !e.IsConfigured() {
			t.Error("IsConfigured() = false after Setup, want true")
		}

		info, err := os.Stat(e.privateKeyPath)
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("private key mode = %v, want 0600", info.Mode().Perm())
		}

		pub, err := e.PublicKey()
		if err != nil {
			t.Fatalf("PublicKey() error = %v", err)
		}
		if !strings.HasPrefix(pub, "age1") {
			t.Errorf("PublicKey() = %q, want age1 prefix", pub)
		}
	})

	t.Run("refuses to overwrite keys", func(t *testing.T) {
		e := setupAgeEncryptor(t)
		err := e.Setup(testPassphrase)
		if !errors.Is(err, ErrKeysExist) {
			t.Errorf("Setup() error = %v, want ErrKeysExist", err)
		}
	})

	t.Run("rejects empty passphrase", func(t *testing.T) {
		e := newTestAgeEncryptor(t)
		if err := e.Setup(""); err == nil {
			t.Error("Setup(\"\") expected error")
		}
	})
}

func TestAgeEncryptor_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	e := setupAgeEncryptor(t)
	dc, err := e.Unlock(testPassphrase)
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "png header", input: []byte("\x89PNG\r\n\x1a\n")},
		{name: "empty", input: []byte{}},
		{name: "large", input: bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 50000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var encrypted bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &encrypted); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(tt.input) > 0 && bytes.Contains(encrypted.Bytes(), tt.input) {
				t.Error("ciphertext contains the plaintext")
			}

			var decrypted bytes.Buffer
			if err := dc.Decrypt(bytes.NewReader(encrypted.Bytes()), &decrypted); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(decrypted.Bytes(), tt.input) {
				t.Errorf("round-trip failed: got %d bytes, want %d bytes", decrypted.Len(), len(tt.input))
			}
		})
	}
}

func TestAgeEncryptor_Unlock(t *testing.T) {
	t.Parallel()

	t.Run("wrong passphrase", func(t *testing.T) {
		e := setupAgeEncryptor(t)
		if _, err := e.Unlock("wrong"); err == nil {
			t.Error("Unlock() with wrong passphrase should return error")
		}
	})

	t.Run("before setup", func(t *testing.T) {
		e := newTestAgeEncryptor(t)
		if _, err := e.Unlock(testPassphrase); err == nil {
			t.Error("Unlock() before Setup should return error")
		}
	})
}

func TestAgeEncryptor_EncryptBeforeSetup(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	var buf bytes.Buffer
	if err := e.Encrypt(strings.NewReader("data"), &buf); err == nil {
		t.Error("Encrypt() before Setup should return error")
	}
}

func TestDecryptFile(t *testing.T) {
	t.Parallel()

	e := setupAgeEncryptor(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "Beta 2024.07.02 20.05.00.000 +0200 auto.png.age")

	var encrypted bytes.Buffer
	if err := e.Encrypt(strings.NewReader("pixels"), &encrypted); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if err := os.WriteFile(src, encrypted.Bytes(), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	dc, err := e.Unlock(testPassphrase)
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	dst, err := DecryptFile(dc, src, "")
	if err != nil {
		t.Fatalf("DecryptFile() error = %v", err)
	}
	if dst != strings.TrimSuffix(src, ".age") {
		t.Errorf("dst = %q", dst)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "pixels" {
		t.Errorf("content = %q, want %q", data, "pixels")
	}

	if _, err := DecryptFile(dc, src, ""); err == nil {
		t.Error("DecryptFile() should not overwrite an existing file")
	}
	if _, err := DecryptFile(dc, dst, ""); err == nil {
		t.Error("DecryptFile() expected error for a name without .age")
	}
}
