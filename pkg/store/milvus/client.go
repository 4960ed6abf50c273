package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Config holds Milvus connection settings
type Config struct {
	Address  string // e.g. "localhost:19530"
	Username string
	Password string
}

// Client wraps the Milvus SDK connection used by the vector index
type Client struct {
	conn client.Client
}

// ivfNlist is the number of IVF clusters in the embedding index. The episode
// corpus stays in the tens of thousands, so 128 keeps recall high.
const ivfNlist = 128

// NewClient connects to Milvus
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	conn, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", cfg.Address, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// HasCollection reports whether the collection exists
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	return c.conn.HasCollection(ctx, name)
}

// CreateIndex builds an IVF_FLAT cosine index over the given vector field
func (c *Client) CreateIndex(ctx context.Context, collection, field string) error {
	idx, err := entity.NewIndexIvfFlat(entity.COSINE, ivfNlist)
	if err != nil {
		return fmt.Errorf("failed to build index definition: %w", err)
	}
	if err := c.conn.CreateIndex(ctx, collection, field, idx, false); err != nil {
		return fmt.Errorf("failed to create index on %s.%s: %w", collection, field, err)
	}
	return nil
}

// LoadCollection loads the collection into memory so it can be searched
func (c *Client) LoadCollection(ctx context.Context, collection string) error {
	return c.conn.LoadCollection(ctx, collection, false)
}

// ReleaseCollection evicts the collection from memory
func (c *Client) ReleaseCollection(ctx context.Context, collection string) error {
	return c.conn.ReleaseCollection(ctx, collection)
}

// DropCollection removes the collection and its data
func (c *Client) DropCollection(ctx context.Context, collection string) error {
	return c.conn.DropCollection(ctx, collection)
}
