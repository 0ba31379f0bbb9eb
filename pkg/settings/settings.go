// Package settings persists oneDev credentials as a flat yaml file with the
// keys url, email, token and projectPath.
package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"

	"github.com/BingHanLin/vscode-oneDev-browser/pkg/onedev"
)

// Keys understood by Get and Set.
const (
	KeyURL         = "url"
	KeyEmail       = "email"
	KeyToken       = "token"
	KeyProjectPath = "projectPath"
)

// Keys lists every key in file order.
var Keys = []string{KeyURL, KeyEmail, KeyToken, KeyProjectPath}

// Store reads and writes the whole credential record at once.
type Store interface {
	Load() (onedev.Credentials, error)
	Save(onedev.Credentials) error
}

// LocalFault is a failure to read or write the settings file.
type LocalFault struct {
	Op  string
	Err error
}

func (e *LocalFault) Error() string {
	return fmt.Sprintf("settings %s: %s", e.Op, e.Err)
}

func (e *LocalFault) Unwrap() error { return e.Err }

// FileStore is a Store backed by a yaml file. Writes replace the file
// atomically, so readers never see a partially written record.
type FileStore struct {
	path string
	m    sync.Mutex
}

// NewFileStore creates a store for path, expanding a leading ~. The path is
// made absolute so it compares equal to the names Watch sees.
func NewFileStore(path string) (*FileStore, error) {
	realpath, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	realpath, err = filepath.Abs(realpath)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: realpath}, nil
}

// Path is the absolute location of the settings file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the record. A missing file is an empty record.
func (s *FileStore) Load() (onedev.Credentials, error) {
	s.m.Lock()
	defer s.m.Unlock()
	return s.load()
}

// Save replaces the record.
func (s *FileStore) Save(creds onedev.Credentials) error {
	s.m.Lock()
	defer s.m.Unlock()
	return s.save(creds)
}

// Get returns the value of a single key, and whether it is set.
func (s *FileStore) Get(key string) (string, bool, error) {
	creds, err := s.Load()
	if err != nil {
		return "", false, err
	}
	field, err := fieldFor(&creds, key)
	if err != nil {
		return "", false, err
	}
	return *field, len(*field) > 0, nil
}

// Set updates a single key, leaving the others untouched.
func (s *FileStore) Set(key, value string) error {
	s.m.Lock()
	defer s.m.Unlock()

	creds, err := s.load()
	if err != nil {
		return err
	}
	field, err := fieldFor(&creds, key)
	if err != nil {
		return err
	}
	*field = value
	return s.save(creds)
}

func fieldFor(creds *onedev.Credentials, key string) (*string, error) {
	switch key {
	case KeyURL:
		return &creds.URL, nil
	case KeyEmail:
		return &creds.Email, nil
	case KeyToken:
		return &creds.Token, nil
	case KeyProjectPath:
		return &creds.ProjectPath, nil
	}
	return nil, fmt.Errorf("unknown settings key %q", key)
}

func (s *FileStore) load() (onedev.Credentials, error) {
	var creds onedev.Credentials

	yml, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return creds, nil
	}
	if err != nil {
		return creds, &LocalFault{Op: "read", Err: err}
	}

	if err := yaml.Unmarshal(yml, &creds); err != nil {
		return onedev.Credentials{}, &LocalFault{Op: "parse", Err: err}
	}
	return creds, nil
}

func (s *FileStore) save(creds onedev.Credentials) error {
	yml, err := yaml.Marshal(creds)
	if err != nil {
		return &LocalFault{Op: "encode", Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &LocalFault{Op: "write", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return &LocalFault{Op: "write", Err: err}
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(yml); err != nil {
		_ = tmp.Close()
		return &LocalFault{Op: "write", Err: err}
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return &LocalFault{Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &LocalFault{Op: "write", Err: err}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return &LocalFault{Op: "write", Err: err}
	}
	return nil
}

// Watch calls onChange with the new record whenever the settings file changes
// on disk, until ctx is done. Events that leave the record unchanged are
// skipped.
func (s *FileStore) Watch(ctx context.Context, onChange func(onedev.Credentials)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	// watch the directory: saves replace the file, which drops a file watch
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return err
	}

	last, _ := s.Load()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			creds, err := s.Load()
			if err != nil || creds == last {
				continue
			}
			last = creds
			onChange(creds)
		}
	}
}
