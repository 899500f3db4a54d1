// Package db manages MongoDB connections and collections.
package db

import (
	"context" // For connection timeout/cancellation
	"fmt"     // Error formatting
	"time"    // Duration for timeouts

	"go.mongodb.org/mongo-driver/v2/bson"           // Index key documents
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"  // MongoDB options
	"go.mongodb.org/mongo-driver/v2/mongo/readpref" // MongoDB read preference
)

// Collection names shared with the scheduling and profile services that
// write the same database.
const (
	ChatListsCollection = "chatlists"
	ChatsCollection     = "chats"
	SchedulesCollection = "jadwals"
)

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused)
	client *mongo.Client

	// db is the application database; collections are accessed through it
	db *mongo.Database
}

// New connects to MongoDB and returns a Client bound to database name.
func New(ctx context.Context, mongoURI, name string) (*Client, error) {
	// SetConnectTimeout: fail fast if MongoDB is unreachable
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	// This doesn't actually connect yet, just creates the client
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// If ping doesn't complete in 5 seconds, fail
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(name),
	}, nil
}

// ChatListsCollection returns the conversation (chat list) collection.
func (c *Client) ChatListsCollection() *mongo.Collection {
	return c.db.Collection(ChatListsCollection)
}

// ChatsCollection returns the chat message collection.
func (c *Client) ChatsCollection() *mongo.Collection {
	return c.db.Collection(ChatsCollection)
}

// SchedulesCollection returns the consultation schedule collection. It is
// owned by the scheduling service and only read here.
func (c *Client) SchedulesCollection() *mongo.Collection {
	return c.db.Collection(SchedulesCollection)
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the chat queries rely on.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// ===== CHATLISTS COLLECTION INDEX =====
	// Used by: participant-pair lookup ($all on participants.user) and chat lists
	chatListIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants.user", Value: 1}}},
		{Keys: bson.D{{Key: "lastMessageDate", Value: -1}}},
	}
	if _, err := c.ChatListsCollection().Indexes().CreateMany(ctx, chatListIndexes); err != nil {
		return fmt.Errorf("failed to create chatlists indexes: %w", err)
	}

	// ===== CHATS COLLECTION INDEX =====
	// Composite index: (senderId, receiverId, waktu) serves history in both directions
	messageIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}, {Key: "waktu", Value: -1}}},
	}
	if _, err := c.ChatsCollection().Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("failed to create chats indexes: %w", err)
	}

	return nil
}
