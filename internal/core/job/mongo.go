package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"compressor/internal/platform/mongodb"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const jobsCollection = "jobs"

type jobDocument struct {
	ID        string    `bson:"_id"`
	Status    string    `bson:"status"`
	Data      string    `bson:"data"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps one document per job. The data field holds the same
// JSON text as the SQL store so product order is preserved.
type MongoStore struct {
	conn mongodb.Connection
	now  func() time.Time
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(conn mongodb.Connection) *MongoStore {
	return &MongoStore{conn: conn, now: func() time.Time { return time.Now().UTC() }}
}

func (s *MongoStore) Get(ctx context.Context, jobID string) (*Job, error) {
	var doc jobDocument
	err := s.conn.Collection(jobsCollection).FindOne(ctx, bson.M{"_id": jobID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return doc.toJob()
}

// Put reads the current document, checks the transition, then replaces it
// only while it is still non-terminal. A concurrent finalization turns the
// upsert into a duplicate key error, reported as ErrAlreadyFinalized.
func (s *MongoStore) Put(ctx context.Context, jobID string, status Status, payload Payload) error {
	current, err := s.Get(ctx, jobID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		current = nil
	}

	if err := CheckTransition(jobID, current, status); err != nil {
		return err
	}

	next := build(jobID, current, status, payload, s.now())
	data, err := encodeData(next)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", jobID, err)
	}

	doc := jobDocument{
		ID:        jobID,
		Status:    string(next.Status),
		Data:      string(data),
		CreatedAt: next.CreatedAt,
		UpdatedAt: next.UpdatedAt,
	}
	filter := bson.M{
		"_id":    jobID,
		"status": bson.M{"$nin": bson.A{string(StatusCompleted), string(StatusFailed)}},
	}
	if current == nil {
		filter = bson.M{"_id": jobID}
	}

	_, err = s.conn.Collection(jobsCollection).ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyFinalized, jobID)
		}
		return fmt.Errorf("replace job %s: %w", jobID, err)
	}
	return nil
}

func (d jobDocument) toJob() (*Job, error) {
	j := &Job{
		JobID:     d.ID,
		Status:    Status(d.Status),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	if err := decodeData(j, []byte(d.Data)); err != nil {
		return nil, err
	}
	return j, nil
}
