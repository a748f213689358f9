package services

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const indexQueueSize = 256

type indexJob struct {
	reindex []uuid.UUID
	remove  []string
}

// IndexQueue applies search index updates on a single worker, in the order
// they were queued. A reindex runs against the database state at the time
// the worker picks it up, so a later removal always wins.
type IndexQueue struct {
	db      *gorm.DB
	indexer Indexer

	mu      sync.Mutex
	closed  bool
	jobs    chan indexJob
	pending sync.WaitGroup
	done    chan struct{}
}

func NewIndexQueue(db *gorm.DB, indexer Indexer) *IndexQueue {
	q := &IndexQueue{
		db:      db,
		indexer: indexer,
		jobs:    make(chan indexJob, indexQueueSize),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Reindex queues a refresh of the given documents.
func (q *IndexQueue) Reindex(ids ...uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	q.enqueue(indexJob{reindex: append([]uuid.UUID(nil), ids...)})
}

// Remove queues the removal of the given documents from the index.
func (q *IndexQueue) Remove(ids ...uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	q.enqueue(indexJob{remove: keys})
}

// Flush blocks until every job queued so far has been applied.
func (q *IndexQueue) Flush() {
	q.pending.Wait()
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (q *IndexQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	<-q.done
}

func (q *IndexQueue) enqueue(job indexJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		log.Warn().Msg("index queue closed, dropping index update")
		return
	}
	q.pending.Add(1)
	q.jobs <- job
}

func (q *IndexQueue) run() {
	defer close(q.done)
	for job := range q.jobs {
		q.apply(job)
		q.pending.Done()
	}
}

func (q *IndexQueue) apply(job indexJob) {
	if len(job.reindex) > 0 {
		docs, err := LoadSearchDocuments(q.db, job.reindex)
		if err != nil {
			log.Error().Err(err).Msg("failed to load documents for indexing")
			return
		}
		if err := q.indexer.IndexDocuments(docs); err != nil {
			log.Error().Err(err).Int("count", len(docs)).Msg("failed to index documents")
		}
	}
	if len(job.remove) > 0 {
		if err := q.indexer.DeleteDocuments(job.remove); err != nil {
			log.Error().Err(err).Strs("document_ids", job.remove).Msg("failed to remove documents from index")
		}
	}
}
