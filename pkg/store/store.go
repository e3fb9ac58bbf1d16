// Package store archives processed episodes in MongoDB. The archive is a
// best-effort history for later search; it is optional and never on the
// critical path, so a run without MONGO_URI proceeds with a disabled store.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"podwatch/pkg/domain"
)

// Client wraps the MongoDB connection for the episode archive. A nil or
// disabled client is safe to call; every method becomes a no-op.
type Client struct {
	mongoClient *mongo.Client
	collection  *mongo.Collection
}

// NewClient connects to the episode archive. An empty connection string
// returns a disabled client.
func NewClient(ctx context.Context, connectionString, databaseName, collectionName string) (*Client, error) {
	if connectionString == "" {
		return &Client{}, nil
	}

	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Client{
		mongoClient: mongoClient,
		collection:  mongoClient.Database(databaseName).Collection(collectionName),
	}, nil
}

// Enabled reports whether the archive is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.collection != nil
}

// Close closes the MongoDB connection.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// SaveEpisode upserts an episode keyed by podcast and GUID, so reprocessing
// an episode overwrites its record instead of duplicating it.
func (c *Client) SaveEpisode(ctx context.Context, episode *domain.Episode) error {
	if !c.Enabled() {
		return nil
	}

	filter := bson.M{"podcast_id": episode.PodcastID, "guid": episode.GUID}
	update := bson.M{"$set": episode}
	opts := options.Update().SetUpsert(true)

	_, err := c.collection.UpdateOne(ctx, filter, update, opts)
	return err
}

// ProcessedGUIDs returns the set of episode GUIDs already archived for a
// podcast.
func (c *Client) ProcessedGUIDs(ctx context.Context, podcastID string) (map[string]bool, error) {
	if !c.Enabled() {
		return map[string]bool{}, nil
	}

	cursor, err := c.collection.Find(ctx, bson.M{"podcast_id": podcastID},
		options.Find().SetProjection(bson.M{"guid": 1, "_id": 0}))
	if err != nil {
		return nil, fmt.Errorf("query episode guids: %w", err)
	}
	defer cursor.Close(ctx)

	guids := make(map[string]bool)
	for cursor.Next(ctx) {
		var result struct {
			GUID string `bson:"guid"`
		}
		if err := cursor.Decode(&result); err != nil {
			continue
		}
		if result.GUID != "" {
			guids[result.GUID] = true
		}
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return guids, nil
}
