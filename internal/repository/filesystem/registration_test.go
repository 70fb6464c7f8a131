package filesystem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cardshop/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationStore_SaveAndFind(t *testing.T) {
	root := t.TempDir()
	store := NewRegistrationStore(root)

	imagePath, err := store.SaveImage(101, "shop-abc", 1, strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "101", "shop-abc", "images", "1.jpg"), imagePath)

	rec := &domain.RegistrationRecord{
		OwnerID:    101,
		Credential: "shop-abc",
		Contact:    "+15550000",
		Plan:       domain.PlanSingle,
		Items:      []domain.RegistrationItem{{ImagePath: imagePath, Title: "Card1", Price: 39.0}},
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(rec))

	found, err := store.Find("shop-abc")
	require.NoError(t, err)
	assert.Equal(t, int64(101), found.OwnerID)
	assert.Equal(t, domain.Credential("shop-abc"), found.Credential)
	assert.Equal(t, "+15550000", found.Contact)
	assert.Equal(t, domain.PlanSingle, found.Plan)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Card1", found.Items[0].Title)
	assert.Equal(t, 39.0, found.Items[0].Price)
	assert.Equal(t, imagePath, found.Items[0].ImagePath)
	assert.True(t, rec.CreatedAt.Equal(found.CreatedAt))

	data, err := os.ReadFile(filepath.Join(root, "101", "shop-abc", "meta.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"credential"`)
	assert.Contains(t, string(data), `"timestamp"`)

	creds, err := store.Discover()
	require.NoError(t, err)
	assert.Equal(t, []domain.Credential{"shop-abc"}, creds)
}

func TestRegistrationStore_Find_NotFound(t *testing.T) {
	store := NewRegistrationStore(t.TempDir())

	rec, err := store.Find("missing-token")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, rec)
}

func TestRegistrationStore_Discover(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		store := NewRegistrationStore(filepath.Join(t.TempDir(), "nope"))
		creds, err := store.Discover()
		assert.NoError(t, err)
		assert.Empty(t, creds)
	})

	t.Run("skips incomplete records", func(t *testing.T) {
		root := t.TempDir()
		store := NewRegistrationStore(root)

		// images written, meta.json never landed
		_, err := store.SaveImage(5, "half-done", 1, strings.NewReader("x"))
		require.NoError(t, err)

		for _, cred := range []domain.Credential{"tok-a", "tok-b"} {
			require.NoError(t, store.Save(&domain.RegistrationRecord{
				OwnerID:    7,
				Credential: cred,
				Contact:    "c",
				Plan:       domain.PlanFull,
			}))
		}

		// stray files are ignored
		require.NoError(t, os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0o644))
		require.NoError(t, os.MkdirAll(filepath.Join(root, "not-an-owner", "tok-z"), 0o755))

		creds, err := store.Discover()
		require.NoError(t, err)
		assert.ElementsMatch(t, []domain.Credential{"tok-a", "tok-b"}, creds)
	})
}

func TestRegistrationStore_RejectsUnsafeCredential(t *testing.T) {
	store := NewRegistrationStore(t.TempDir())

	for _, cred := range []domain.Credential{"", "..", "a/b", `a\b`, " padded "} {
		t.Run(string(cred), func(t *testing.T) {
			_, err := store.SaveImage(1, cred, 1, strings.NewReader("x"))
			assert.ErrorIs(t, err, domain.ErrValidation)

			err = store.Save(&domain.RegistrationRecord{OwnerID: 1, Credential: cred})
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestRegistrationStore_SaveOverwrites(t *testing.T) {
	store := NewRegistrationStore(t.TempDir())

	rec := &domain.RegistrationRecord{OwnerID: 1, Credential: "tok", Contact: "old", Plan: domain.PlanSingle}
	require.NoError(t, store.Save(rec))

	rec.Contact = "new"
	require.NoError(t, store.Save(rec))

	found, err := store.Find("tok")
	require.NoError(t, err)
	assert.Equal(t, "new", found.Contact)
}
