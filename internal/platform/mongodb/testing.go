package mongodb

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TestingConnection points at a throwaway database that is dropped when the
// test finishes. It reads COMPRESSOR_TEST_MONGO_URI.
type TestingConnection struct {
	database string
	client   *mongo.Client
}

var _ Connection = (*TestingConnection)(nil)

func NewTestingConnection(t *testing.T) *TestingConnection {
	uri := os.Getenv("COMPRESSOR_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("COMPRESSOR_TEST_MONGO_URI not set")
	}

	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("Cannot connect to mongodb: %s", err)
	}

	conn := &TestingConnection{database: "test_" + uuid.NewString(), client: client}
	t.Cleanup(func() {
		ctx := context.Background()
		if err := client.Database(conn.database).Drop(ctx); err != nil {
			t.Errorf("Cannot drop testing database %q: %s", conn.database, err)
		}
		_ = client.Disconnect(ctx)
	})
	return conn
}

func (c *TestingConnection) Collection(name string) *mongo.Collection {
	return c.client.Database(c.database).Collection(name)
}
