package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"filippo.io/age"
	"gopkg.in/yaml.v2"
)

const (
	documentVersion   = 1
	defaultWorkFactor = 15
	ageMaxWorkFactor  = 22
)

// ErrWrongPassphrase is returned when the vault file cannot be opened with
// the configured passphrase.
var ErrWrongPassphrase = errors.New("vault: wrong passphrase")

type document struct {
	Version int               `yaml:"version"`
	Entries map[string]string `yaml:"entries"`
}

// FileStore keeps all entries in one age-encrypted YAML file. Every write
// replaces the file atomically.
type FileStore struct {
	path       string
	passphrase string
	workFactor int

	mu sync.Mutex
}

var _ BatchStore = (*FileStore)(nil)

// NewFileStore. workFactor is the scrypt log2(N), 0 picks the default.
func NewFileStore(path, passphrase string, workFactor int) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("vault: file path is empty")
	}
	if passphrase == "" {
		return nil, errors.New("vault: passphrase is empty")
	}
	if workFactor <= 0 {
		workFactor = defaultWorkFactor
	}
	return &FileStore{path: path, passphrase: passphrase, workFactor: workFactor}, nil
}

// Path ...
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Save(ctx context.Context, key, value string) error {
	return f.SaveAll(ctx, map[string]string{key: value})
}

func (f *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := doc.Entries[key]
	return v, ok, nil
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	return f.DeleteAll(ctx, key)
}

func (f *FileStore) SaveAll(_ context.Context, kv map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	for k, v := range kv {
		doc.Entries[k] = v
	}
	return f.write(doc)
}

func (f *FileStore) DeleteAll(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := doc.Entries[k]; ok {
			delete(doc.Entries, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.write(doc)
}

// read returns an empty document when the file does not exist yet.
func (f *FileStore) read() (document, error) {
	doc := document{Version: documentVersion, Entries: map[string]string{}}

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("vault: reading %s: %w", f.path, err)
	}

	identity, err := age.NewScryptIdentity(f.passphrase)
	if err != nil {
		return doc, fmt.Errorf("vault: scrypt identity: %w", err)
	}
	if f.workFactor > ageMaxWorkFactor {
		identity.SetMaxWorkFactor(f.workFactor)
	}

	r, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) || errors.Is(err, age.ErrIncorrectIdentity) {
			return doc, ErrWrongPassphrase
		}
		return doc, fmt.Errorf("vault: decrypting %s: %w", f.path, err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return doc, fmt.Errorf("vault: reading decrypted %s: %w", f.path, err)
	}

	if err := yaml.Unmarshal(plain, &doc); err != nil {
		return doc, fmt.Errorf("vault: decoding %s: %w", f.path, err)
	}
	if doc.Entries == nil {
		doc.Entries = map[string]string{}
	}
	return doc, nil
}

func (f *FileStore) write(doc document) (err error) {
	doc.Version = documentVersion
	plain, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("vault: encoding: %w", err)
	}

	recipient, err := age.NewScryptRecipient(f.passphrase)
	if err != nil {
		return fmt.Errorf("vault: scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(f.workFactor)

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return fmt.Errorf("vault: creating encryptor: %w", err)
	}
	if _, err := w.Write(plain); err != nil {
		return fmt.Errorf("vault: encrypting: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("vault: finalizing encryption: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("vault: creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".vault-*")
	if err != nil {
		return fmt.Errorf("vault: temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("vault: chmod: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("vault: writing: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("vault: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("vault: replacing %s: %w", f.path, err)
	}
	return nil
}
