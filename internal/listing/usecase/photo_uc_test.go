package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citylistings/listing-service/internal/listing/domain"
)

type photoFixture struct {
	uc       *PhotoUsecase
	storage  *memStorage
	photos   *memPhotoRepo
	listings *memListingRepo
}

func newPhotoFixture() *photoFixture {
	storage := newMemStorage()
	photos := newMemPhotoRepo()
	listings := newMemListingRepo()
	return &photoFixture{
		uc:       NewPhotoUsecase(storage, photos, listings, testLogger(), time.Hour),
		storage:  storage,
		photos:   photos,
		listings: listings,
	}
}

func (f *photoFixture) createListing(t *testing.T, ownerID string) *domain.Listing {
	t.Helper()
	listing := &domain.Listing{OwnerID: ownerID, Title: "t", Phone: "+447700900123"}
	require.NoError(t, f.listings.Create(context.Background(), listing))
	return listing
}

func TestUploadPhotos(t *testing.T) {
	ctx := context.Background()

	t.Run("first upload in an empty scope becomes main", func(t *testing.T) {
		f := newPhotoFixture()
		saved, err := f.uc.UploadPhotos(ctx, "u1", "", [][]byte{[]byte("a"), []byte("b")})
		require.NoError(t, err)
		require.Len(t, saved, 2)
		assert.True(t, saved[0].IsMain)
		assert.False(t, saved[1].IsMain)
	})

	t.Run("upload into a non-empty scope adds no second main", func(t *testing.T) {
		f := newPhotoFixture()
		_, err := f.uc.UploadPhotos(ctx, "u1", "", [][]byte{[]byte("a")})
		require.NoError(t, err)
		_, err = f.uc.UploadPhotos(ctx, "u1", "", [][]byte{[]byte("b")})
		require.NoError(t, err)

		scope := domain.PhotoScope{OwnerID: "u1"}
		assert.Len(t, f.photos.mains(scope), 1)
	})

	t.Run("sixth photo in a scope is rejected", func(t *testing.T) {
		f := newPhotoFixture()
		files := make([][]byte, 5)
		for i := range files {
			files[i] = []byte(fmt.Sprintf("img-%d", i))
		}
		_, err := f.uc.UploadPhotos(ctx, "u1", "", files)
		require.NoError(t, err)

		_, err = f.uc.UploadPhotos(ctx, "u1", "", [][]byte{[]byte("one too many")})
		assert.ErrorIs(t, err, domain.ErrPhotoLimitReached)
	})

	t.Run("upload to a foreign listing is rejected", func(t *testing.T) {
		f := newPhotoFixture()
		listing := f.createListing(t, "owner")
		_, err := f.uc.UploadPhotos(ctx, "intruder", listing.ID, [][]byte{[]byte("a")})
		assert.ErrorIs(t, err, domain.ErrListingNotFound)
		assert.Empty(t, f.storage.ops, "nothing may hit storage for a rejected caller")
	})

	t.Run("listing-scoped uploads count separately from unattached uploads", func(t *testing.T) {
		f := newPhotoFixture()
		listing := f.createListing(t, "u1")

		files := make([][]byte, 5)
		for i := range files {
			files[i] = []byte(fmt.Sprintf("img-%d", i))
		}
		_, err := f.uc.UploadPhotos(ctx, "u1", listing.ID, files)
		require.NoError(t, err)

		saved, err := f.uc.UploadPhotos(ctx, "u1", "", [][]byte{[]byte("unattached")})
		require.NoError(t, err)
		assert.Len(t, saved, 1)
	})
}

func TestListPhotos(t *testing.T) {
	ctx := context.Background()
	f := newPhotoFixture()

	saved, err := f.uc.UploadPhotos(ctx, "u1", "", [][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)

	views, err := f.uc.ListPhotos(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, views, 2)

	// Main first, each with a signed URL rather than a bare key.
	assert.Equal(t, saved[0].ID, views[0].ID)
	assert.True(t, views[0].IsMain)
	for _, v := range views {
		assert.Contains(t, v.SignedURL, "https://cdn.test/bucket/")
		assert.Contains(t, v.SignedURL, "?sig=")
	}
}

func TestDeletePhoto(t *testing.T) {
	ctx := context.Background()

	t.Run("deleting the main promotes exactly one survivor", func(t *testing.T) {
		f := newPhotoFixture()
		saved, err := f.uc.UploadPhotos(ctx, "u1", "", [][]byte{[]byte("a"), []byte("b"), []byte("c")})
		require.NoError(t, err)
		require.True(t, saved[0].IsMain)

		_, err = f.uc.DeletePhoto(ctx, saved[0].ID, "u1")
		require.NoError(t, err)

		scope := domain.PhotoScope{OwnerID: "u1"}
		mains := f.photos.mains(scope)
		require.Len(t, mains, 1)
		assert.Equal(t, saved[1].ID, mains[0].ID, "oldest survivor becomes main")
	})

	t.Run("object delete precedes row delete", func(t *testing.T) {
		f := newPhotoFixture()
		saved, err := f.uc.UploadPhotos(ctx, "u1", "", [][]byte{[]byte("a")})
		require.NoError(t, err)

		_, err = f.uc.DeletePhoto(ctx, saved[0].ID, "u1")
		require.NoError(t, err)

		require.Len(t, f.storage.ops, 2)
		assert.Equal(t, "upload:"+saved[0].ObjectKey, f.storage.ops[0])
		assert.Equal(t, "delete:"+saved[0].ObjectKey, f.storage.ops[1])
		_, err = f.photos.FindOwned(ctx, saved[0].ID, "u1")
		assert.ErrorIs(t, err, domain.ErrPhotoNotFound)
	})

	t.Run("cannot delete someone else's photo", func(t *testing.T) {
		f := newPhotoFixture()
		saved, err := f.uc.UploadPhotos(ctx, "u1", "", [][]byte{[]byte("a")})
		require.NoError(t, err)

		_, err = f.uc.DeletePhoto(ctx, saved[0].ID, "intruder")
		assert.ErrorIs(t, err, domain.ErrPhotoNotFound)
	})
}

func TestSetMainPhoto(t *testing.T) {
	ctx := context.Background()

	t.Run("moves the main flag within the scope", func(t *testing.T) {
		f := newPhotoFixture()
		saved, err := f.uc.UploadPhotos(ctx, "u1", "", [][]byte{[]byte("a"), []byte("b"), []byte("c")})
		require.NoError(t, err)

		_, err = f.uc.SetMainPhoto(ctx, saved[2].ID, "u1")
		require.NoError(t, err)

		mains := f.photos.mains(domain.PhotoScope{OwnerID: "u1"})
		require.Len(t, mains, 1)
		assert.Equal(t, saved[2].ID, mains[0].ID)
	})

	t.Run("ownership is enforced", func(t *testing.T) {
		f := newPhotoFixture()
		saved, err := f.uc.UploadPhotos(ctx, "u1", "", [][]byte{[]byte("a")})
		require.NoError(t, err)

		_, err = f.uc.SetMainPhoto(ctx, saved[0].ID, "intruder")
		assert.ErrorIs(t, err, domain.ErrPhotoNotFound)
	})
}
