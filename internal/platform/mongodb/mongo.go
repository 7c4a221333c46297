package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connection hands out collections of a single database.
type Connection interface {
	Collection(name string) *mongo.Collection
}

type Config struct {
	URI      string
	Database string
}

type Client struct {
	config Config
	client *mongo.Client
}

var _ Connection = (*Client)(nil)

func Connect(ctx context.Context, config Config) (*Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	c := &Client{config: config, client: client}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return c, nil
}

func (c *Client) Collection(name string) *mongo.Collection {
	return c.client.Database(c.config.Database).Collection(name)
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

func (c *Client) Disconnect(ctx context.Context) error { return c.client.Disconnect(ctx) }
