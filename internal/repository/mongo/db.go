package mongo

import (
	"alcyxob/workout-planner/internal/repository"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// Transactions need a replica set (a single-node one is enough).
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the primary: the connection may succeed while the server is unresponsive.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	err = client.Ping(pingCtx, readpref.Primary())
	if err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// mongoTxManager implements repository.TxManager with client sessions.
type mongoTxManager struct {
	client *mongo.Client
}

// NewTxManager creates a transaction manager bound to the client.
func NewTxManager(client *mongo.Client) repository.TxManager {
	return &mongoTxManager{client: client}
}

// WithTransaction runs fn in a multi-document transaction. The driver retries
// fn on transient transaction errors (write conflicts between two requests on
// the same plan), so fn must be safe to re-run.
func (m *mongoTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// EnsureIndexes creates the indexes of every collection. Call during startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	steps := []func(context.Context, *mongo.Collection) error{
		EnsureUserIndexes,
		EnsurePlanIndexes,
		EnsureScheduleIndexes,
		EnsureSessionIndexes,
		EnsureProgressIndexes,
	}
	names := []string{userCollectionName, planCollectionName, scheduleCollectionName, sessionCollectionName, progressCollectionName}
	for i, ensure := range steps {
		if err := ensure(ctx, db.Collection(names[i])); err != nil {
			return fmt.Errorf("indexes for %s: %w", names[i], err)
		}
	}
	return nil
}
