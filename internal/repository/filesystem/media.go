package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

// MediaStore keeps card images and purchase screenshots. Every write gets a fresh file name.
type MediaStore struct {
	root string
}

// NewMediaStore creates a media store rooted at dir
func NewMediaStore(dir string) *MediaStore {
	return &MediaStore{root: dir}
}

// SaveCardImage stores a card image for shopID and returns its path
func (s *MediaStore) SaveCardImage(shopID int64, r io.Reader) (string, error) {
	return s.save(filepath.Join(s.root, "cards", strconv.FormatInt(shopID, 10)), r)
}

// SavePurchaseEvidence stores a payment screenshot for cardID and returns its path
func (s *MediaStore) SavePurchaseEvidence(cardID int64, r io.Reader) (string, error) {
	return s.save(filepath.Join(s.root, "evidence", strconv.FormatInt(cardID, 10)), r)
}

// Remove deletes a stored file; a missing file is not an error
func (s *MediaStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove media: %w", err)
	}
	return nil
}

func (s *MediaStore) save(dir string, r io.Reader) (string, error) {
	path := filepath.Join(dir, uuid.NewString()+".jpg")
	if err := writeFileAtomic(path, r); err != nil {
		return "", fmt.Errorf("save media: %w", err)
	}
	return path, nil
}
