package services

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDocument(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	doc, err := f.docs.Create(context.Background(), owner, CreateDocumentInput{
		Files: []FileUpload{upload("report.final.pdf", "pdf"), upload("notes.txt", "txt")},
	})
	require.NoError(t, err)

	assert.Equal(t, owner, doc.OwnerID)
	assert.Equal(t, "report.final", doc.Title)
	require.Len(t, doc.Files, 2)
	assert.Equal(t, "report.final.pdf", doc.Files[0].OriginalFilename)
	assert.Equal(t, int64(3), doc.Files[0].Size)
	assert.Equal(t, 2, f.blobs.count())
	assert.Equal(t, int64(2), f.countRows(t, &models.DocumentFile{}, "document_id = ?", doc.ID))
	assert.Equal(t, int64(1), f.countRows(t, &models.Activity{}, "document_id = ? AND activity_type = ?", doc.ID, models.ActivityDocumentCreated))
}

func TestCreateDocumentKeepsExplicitTitle(t *testing.T) {
	f := newFixture(t)
	doc := f.createDocument(t, uuid.New(), "  Tax return  ", "scan.png")
	assert.Equal(t, "Tax return", doc.Title)
}

func TestCreateDocumentTitleFromDotfile(t *testing.T) {
	f := newFixture(t)
	doc := f.createDocument(t, uuid.New(), "", ".env")
	assert.Equal(t, ".env", doc.Title)
}

func TestCreateDocumentValidation(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	tests := []struct {
		name  string
		owner uuid.UUID
		files []FileUpload
		want  error
	}{
		{"no files", owner, nil, ErrValidation},
		{"empty file", owner, []FileUpload{upload("a.txt", "")}, ErrValidation},
		{"blank filename", owner, []FileUpload{upload("  ", "x")}, ErrValidation},
		{"anonymous owner", uuid.Nil, []FileUpload{upload("a.txt", "x")}, ErrPermission},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.docs.Create(context.Background(), tt.owner, CreateDocumentInput{Files: tt.files})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, 0, f.blobs.count())
	assert.Equal(t, int64(0), f.countRows(t, &models.Document{}, "1 = 1"))
}

func TestCreateDocumentCompensatesBlobs(t *testing.T) {
	f := newFixture(t)
	f.blobs.failAfter = 1

	_, err := f.docs.Create(context.Background(), uuid.New(), CreateDocumentInput{
		Files: []FileUpload{upload("a.txt", "a"), upload("b.txt", "b")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBlobStoreDown)

	assert.Equal(t, 0, f.blobs.count())
	assert.Equal(t, int64(0), f.countRows(t, &models.Document{}, "1 = 1"))
	assert.Equal(t, int64(0), f.countRows(t, &models.DocumentFile{}, "1 = 1"))
}

func TestCreateDocumentRollbackRemovesBlobs(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Migrator().DropTable(&models.DocumentFile{}))

	_, err := f.docs.Create(context.Background(), uuid.New(), CreateDocumentInput{
		Files: []FileUpload{upload("a.txt", "a")},
	})
	require.Error(t, err)

	assert.Equal(t, 0, f.blobs.count())
	assert.Equal(t, int64(0), f.countRows(t, &models.Document{}, "1 = 1"))
}

func TestAddFiles(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	doc := f.createDocument(t, owner, "", "a.txt")

	added, err := f.docs.AddFiles(context.Background(), doc.ID, owner, []FileUpload{upload("b.txt", "b"), upload("c.txt", "c")})
	require.NoError(t, err)
	assert.Len(t, added, 2)
	assert.Equal(t, int64(3), f.countRows(t, &models.DocumentFile{}, "document_id = ?", doc.ID))

	_, err = f.docs.AddFiles(context.Background(), doc.ID, owner, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.docs.AddFiles(context.Background(), doc.ID, uuid.New(), []FileUpload{upload("d.txt", "d")})
	assert.ErrorIs(t, err, ErrPermission)

	_, err = f.docs.AddFiles(context.Background(), uuid.New(), owner, []FileUpload{upload("d.txt", "d")})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 3, f.blobs.count())
}

func TestRemoveFile(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	doc := f.createDocument(t, owner, "", "a.txt", "b.txt")
	first, second := doc.Files[0], doc.Files[1]

	err := f.docs.RemoveFile(context.Background(), doc.ID, uuid.New(), first.ID)
	assert.ErrorIs(t, err, ErrPermission)

	err = f.docs.RemoveFile(context.Background(), doc.ID, owner, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.docs.RemoveFile(context.Background(), doc.ID, owner, first.ID))
	assert.Equal(t, int64(1), f.countRows(t, &models.DocumentFile{}, "document_id = ?", doc.ID))
	assert.False(t, f.blobs.has(first.StorageKey))

	err = f.docs.RemoveFile(context.Background(), doc.ID, owner, second.ID)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Equal(t, int64(1), f.countRows(t, &models.DocumentFile{}, "document_id = ?", doc.ID))
	assert.True(t, f.blobs.has(second.StorageKey))
}

func TestDeleteDocument(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	ctx := context.Background()
	doc := f.createDocument(t, owner, "", "a.txt", "b.txt")

	_, err := f.metadata.Set(ctx, doc.ID, owner, "year", "2020")
	require.NoError(t, err)
	_, err = f.notes.Add(ctx, doc.ID, owner, "first")
	require.NoError(t, err)
	_, err = f.tags.Assign(ctx, doc.ID, "tax", owner, "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.docs.Delete(ctx, doc.ID, uuid.New()), ErrPermission)

	require.NoError(t, f.docs.Delete(ctx, doc.ID, owner))

	assert.Equal(t, int64(0), f.countRows(t, &models.Document{}, "id = ?", doc.ID))
	for _, model := range []interface{}{&models.DocumentFile{}, &models.DocumentMetadata{}, &models.DocumentNote{}, &models.DocumentTag{}} {
		assert.Equal(t, int64(0), f.countRows(t, model, "document_id = ?", doc.ID))
	}
	assert.Equal(t, 0, f.blobs.count())
	assert.Equal(t, int64(1), f.countRows(t, &models.Tag{}, "name = ?", "tax"))

	assert.ErrorIs(t, f.docs.Delete(ctx, doc.ID, owner), ErrNotFound)
}

func TestDeleteDocumentRollsBackMidCascade(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	ctx := context.Background()
	doc := f.createDocument(t, owner, "", "a.txt", "b.txt")

	_, err := f.notes.Add(ctx, doc.ID, owner, "keep me")
	require.NoError(t, err)
	_, err = f.tags.Assign(ctx, doc.ID, "tax", owner, "")
	require.NoError(t, err)

	// Tags and notes go before metadata, so the failure hits a started cascade.
	require.NoError(t, f.db.Migrator().DropTable(&models.DocumentMetadata{}))

	require.Error(t, f.docs.Delete(ctx, doc.ID, owner))

	assert.Equal(t, int64(1), f.countRows(t, &models.Document{}, "id = ?", doc.ID))
	assert.Equal(t, int64(1), f.countRows(t, &models.DocumentNote{}, "document_id = ?", doc.ID))
	assert.Equal(t, int64(1), f.countRows(t, &models.DocumentTag{}, "document_id = ?", doc.ID))
	assert.Equal(t, int64(2), f.countRows(t, &models.DocumentFile{}, "document_id = ?", doc.ID))
	assert.Equal(t, 2, f.blobs.count())
	for _, file := range doc.Files {
		assert.True(t, f.blobs.has(file.StorageKey))
	}
}

func TestUpdateDocument(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	doc := f.createDocument(t, owner, "", "a.txt")

	title, desc := "Renamed", "  about things "
	updated, err := f.docs.Update(context.Background(), doc.ID, owner, UpdateDocumentInput{Title: &title, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "about things", updated.Description)

	blank := "   "
	_, err = f.docs.Update(context.Background(), doc.ID, owner, UpdateDocumentInput{Title: &blank})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.docs.Update(context.Background(), doc.ID, uuid.New(), UpdateDocumentInput{Title: &title})
	assert.ErrorIs(t, err, ErrPermission)
}

func TestOpenFile(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	doc := f.createDocument(t, owner, "", "hello.txt")

	rc, file, err := f.docs.OpenFile(context.Background(), doc.ID, owner, doc.Files[0].ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "content of hello.txt", string(data))
	assert.Equal(t, "hello.txt", file.OriginalFilename)

	_, _, err = f.docs.OpenFile(context.Background(), doc.ID, uuid.New(), doc.Files[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
