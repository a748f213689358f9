package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sergiovlezh/documents-manager/internal/database"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errBlobStoreDown = errors.New("blob store unavailable")

// memBlobStore keeps blobs in memory. failAfter makes every Put after the
// given number of successful ones fail.
type memBlobStore struct {
	mu        sync.Mutex
	blobs     map[string]memBlob
	puts      int
	failAfter int
}

type memBlob struct {
	info BlobInfo
	data []byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: map[string]memBlob{}, failAfter: -1}
}

func (m *memBlobStore) Put(_ context.Context, r io.Reader, _ int64, filename, contentType string) (BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter >= 0 && m.puts >= m.failAfter {
		return BlobInfo{}, errBlobStoreDown
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return BlobInfo{}, err
	}
	m.puts++
	info := BlobInfo{
		Key:         NewStorageKey(filename),
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
	}
	m.blobs[info.Key] = memBlob{info: info, data: data}
	return info, nil
}

func (m *memBlobStore) Get(_ context.Context, key string) (io.ReadCloser, BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, BlobInfo{}, notFoundError("blob %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(b.data)), b.info, nil
}

func (m *memBlobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memBlobStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

func (m *memBlobStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.ConnectSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func upload(filename, content string) FileUpload {
	return FileUpload{
		Filename:    filename,
		ContentType: "text/plain",
		Size:        int64(len(content)),
		Content:     strings.NewReader(content),
	}
}

// fixture bundles every service over one database and blob store.
type fixture struct {
	db       *gorm.DB
	blobs    *memBlobStore
	docs     *DocumentService
	metadata *MetadataService
	notes    *NoteService
	tags     *TagService
	merge    *MergeService
	query    *QueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	blobs := newMemBlobStore()
	return &fixture{
		db:       db,
		blobs:    blobs,
		docs:     NewDocumentService(db, blobs),
		metadata: NewMetadataService(db),
		notes:    NewNoteService(db),
		tags:     NewTagService(db),
		merge:    NewMergeService(db),
		query:    NewQueryService(db),
	}
}

func (f *fixture) createDocument(t *testing.T, owner uuid.UUID, title string, filenames ...string) *models.Document {
	t.Helper()
	files := make([]FileUpload, len(filenames))
	for i, name := range filenames {
		files[i] = upload(name, "content of "+name)
	}
	doc, err := f.docs.Create(context.Background(), owner, CreateDocumentInput{Title: title, Files: files})
	require.NoError(t, err)
	return doc
}

func (f *fixture) countRows(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
