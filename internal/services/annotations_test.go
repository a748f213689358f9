package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataUpsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	doc := f.createDocument(t, owner, "", "a.txt")

	_, err := f.metadata.Set(ctx, doc.ID, owner, "year", "2020")
	require.NoError(t, err)
	entry, err := f.metadata.Set(ctx, doc.ID, owner, " year ", "2021")
	require.NoError(t, err)
	assert.Equal(t, "year", entry.Key)
	assert.Equal(t, "2021", entry.Value)

	entries, err := f.metadata.List(ctx, doc.ID, owner)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2021", entries[0].Value)
}

func TestMetadataValidationAndPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	doc := f.createDocument(t, owner, "", "a.txt")

	_, err := f.metadata.Set(ctx, doc.ID, owner, "   ", "x")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.metadata.Set(ctx, doc.ID, uuid.New(), "year", "2020")
	assert.ErrorIs(t, err, ErrPermission)

	_, err = f.metadata.List(ctx, doc.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMetadataRemoveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	doc := f.createDocument(t, owner, "", "a.txt")

	_, err := f.metadata.Set(ctx, doc.ID, owner, "b", "2")
	require.NoError(t, err)
	_, err = f.metadata.Set(ctx, doc.ID, owner, "a", "1")
	require.NoError(t, err)

	require.NoError(t, f.metadata.Remove(ctx, doc.ID, owner, "b"))
	require.NoError(t, f.metadata.Remove(ctx, doc.ID, owner, "b"))
	require.NoError(t, f.metadata.Remove(ctx, doc.ID, owner, "missing"))

	entries, err := f.metadata.List(ctx, doc.ID, owner)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Key)
}

func TestNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	doc := f.createDocument(t, owner, "", "a.txt")

	_, err := f.notes.Add(ctx, doc.ID, owner, "  \n ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.notes.Add(ctx, doc.ID, uuid.New(), "hi")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := f.notes.Add(ctx, doc.ID, owner, " first ")
	require.NoError(t, err)
	assert.Equal(t, "first", first.Body)
	time.Sleep(2 * time.Millisecond)
	_, err = f.notes.Add(ctx, doc.ID, owner, "second")
	require.NoError(t, err)

	notes, err := f.notes.List(ctx, doc.ID, owner)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "first", notes[0].Body)
	assert.Equal(t, "second", notes[1].Body)

	assert.ErrorIs(t, f.notes.Delete(ctx, doc.ID, owner, uuid.New()), ErrNotFound)
	require.NoError(t, f.notes.Delete(ctx, doc.ID, owner, first.ID))

	notes, err = f.notes.List(ctx, doc.ID, owner)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "second", notes[0].Body)
}

func TestGetOrCreateNormalizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.tags.GetOrCreate(ctx, "  Invoices ")
	require.NoError(t, err)
	b, err := f.tags.GetOrCreate(ctx, "invoices")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "invoices", a.Name)

	_, err = f.tags.GetOrCreate(ctx, "   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetOrCreateConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]uuid.UUID, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tag, err := f.tags.GetOrCreate(ctx, "shared")
			errs[i] = err
			if tag != nil {
				ids[i] = tag.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, int64(1), f.countRows(t, &models.Tag{}, "name = ?", "shared"))
}

func TestAssignTwiceUpdatesColor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	doc := f.createDocument(t, owner, "", "a.txt")

	first, err := f.tags.Assign(ctx, doc.ID, "Tax", owner, "")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTagColor, first.Color)
	assert.Equal(t, "tax", first.Tag.Name)

	second, err := f.tags.Assign(ctx, doc.ID, "tax", owner, "#1976D2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "#1976d2", second.Color)

	assert.Equal(t, int64(1), f.countRows(t, &models.DocumentTag{}, "document_id = ?", doc.ID))

	_, err = f.tags.Assign(ctx, doc.ID, "tax", owner, "blue")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAssignConcurrentUsersCoexist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	doc := f.createDocument(t, owner, "", "a.txt")

	// Both users need read access to the document.
	f.tags.opts.policy = allowAll{}

	users := []uuid.UUID{owner, uuid.New()}
	errs := make([]error, len(users))
	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(i int, u uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.tags.Assign(ctx, doc.ID, "urgent", u, "")
		}(i, u)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), f.countRows(t, &models.DocumentTag{}, "document_id = ?", doc.ID))
	assert.Equal(t, int64(1), f.countRows(t, &models.Tag{}, "name = ?", "urgent"))

	mine, err := f.tags.ListForDocument(ctx, doc.ID, &users[1])
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, users[1], mine[0].OwnerID)

	all, err := f.tags.ListForDocument(ctx, doc.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, f.tags.Unassign(ctx, doc.ID, "URGENT", users[1]))
	all, err = f.tags.ListForDocument(ctx, doc.ID, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, owner, all[0].OwnerID)
}

func TestAssignRequiresReadAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.createDocument(t, uuid.New(), "", "a.txt")

	_, err := f.tags.Assign(ctx, doc.ID, "tax", uuid.New(), "")
	assert.ErrorIs(t, err, ErrPermission)

	_, err = f.tags.Assign(ctx, uuid.New(), "tax", uuid.New(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTagKeepsDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	doc := f.createDocument(t, owner, "", "a.txt")

	_, err := f.tags.Assign(ctx, doc.ID, "old", owner, "")
	require.NoError(t, err)

	require.NoError(t, f.tags.DeleteTag(ctx, "OLD"))
	assert.Equal(t, int64(0), f.countRows(t, &models.DocumentTag{}, "document_id = ?", doc.ID))
	assert.Equal(t, int64(1), f.countRows(t, &models.Document{}, "id = ?", doc.ID))

	assert.ErrorIs(t, f.tags.DeleteTag(ctx, "old"), ErrNotFound)

	tags, err := f.tags.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

// allowAll lets any authenticated user read and write.
type allowAll struct{}

func (allowAll) CanRead(_ context.Context, userID uuid.UUID, _ Ownable) bool {
	return userID != uuid.Nil
}

func (allowAll) CanWrite(_ context.Context, userID uuid.UUID, _ Ownable) bool {
	return userID != uuid.Nil
}
