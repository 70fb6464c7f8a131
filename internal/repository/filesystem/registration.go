package filesystem

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cardshop/internal/domain"
)

const metaFile = "meta.json"

// RegistrationStore keeps registration records under <root>/<owner_id>/<credential>/.
// A record exists once its meta.json is in place; images are written before it.
type RegistrationStore struct {
	root string
}

// NewRegistrationStore creates a store rooted at dir
func NewRegistrationStore(dir string) *RegistrationStore {
	return &RegistrationStore{root: dir}
}

// SaveImage stores the index-th registration image and returns its path
func (s *RegistrationStore) SaveImage(ownerID int64, cred domain.Credential, index int, r io.Reader) (string, error) {
	dir, err := s.recordDir(ownerID, cred)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, "images", strconv.Itoa(index)+".jpg")
	if err := writeFileAtomic(path, r); err != nil {
		return "", fmt.Errorf("save registration image: %w", err)
	}
	return path, nil
}

// Save writes the record's meta.json, replacing any previous version
func (s *RegistrationStore) Save(rec *domain.RegistrationRecord) error {
	dir, err := s.recordDir(rec.OwnerID, rec.Credential)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode registration: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(dir, metaFile), &buf); err != nil {
		return fmt.Errorf("save registration: %w", err)
	}
	return nil
}

// Find loads the record registered under cred, whichever owner holds it
func (s *RegistrationStore) Find(cred domain.Credential) (*domain.RegistrationRecord, error) {
	if err := checkCredential(cred); err != nil {
		return nil, err
	}

	owners, err := s.owners()
	if err != nil {
		return nil, err
	}

	for _, owner := range owners {
		path := filepath.Join(s.root, owner, cred.Secret(), metaFile)
		rec, err := loadRecord(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rec.Credential = cred
		return rec, nil
	}

	return nil, fmt.Errorf("registration %s: %w", cred, domain.ErrNotFound)
}

// Discover lists the credentials of every complete record. A missing root yields none.
func (s *RegistrationStore) Discover() ([]domain.Credential, error) {
	owners, err := s.owners()
	if err != nil {
		return nil, err
	}

	var creds []domain.Credential
	for _, owner := range owners {
		entries, err := os.ReadDir(filepath.Join(s.root, owner))
		if err != nil {
			return nil, fmt.Errorf("failed to read owner directory: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if _, err := os.Stat(filepath.Join(s.root, owner, e.Name(), metaFile)); err != nil {
				continue
			}
			creds = append(creds, domain.Credential(e.Name()))
		}
	}

	return creds, nil
}

func (s *RegistrationStore) owners() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registrations: %w", err)
	}

	var owners []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := strconv.ParseInt(e.Name(), 10, 64); err != nil {
			continue
		}
		owners = append(owners, e.Name())
	}
	sort.Strings(owners)
	return owners, nil
}

func (s *RegistrationStore) recordDir(ownerID int64, cred domain.Credential) (string, error) {
	if err := checkCredential(cred); err != nil {
		return "", err
	}
	return filepath.Join(s.root, strconv.FormatInt(ownerID, 10), cred.Secret()), nil
}

func loadRecord(path string) (*domain.RegistrationRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var rec domain.RegistrationRecord
	if err := json.NewDecoder(file).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode registration: %w", err)
	}
	return &rec, nil
}

// checkCredential rejects credentials that cannot be used as a single path element
func checkCredential(cred domain.Credential) error {
	raw := cred.Secret()
	if raw == "" || raw == "." || raw == ".." || strings.ContainsAny(raw, `/\`) || strings.TrimSpace(raw) != raw {
		return domain.NewValidationError("credential", "credential cannot be used as a directory name")
	}
	return nil
}
