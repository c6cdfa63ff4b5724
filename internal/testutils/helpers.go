// Package testutils holds shared integration-test fixtures.
package testutils

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	mongoOnce sync.Once
	mongoURI  string
	mongoErr  error
)

// MongoURI returns the URI of a MongoDB container shared by the test binary.
// Tests are skipped when the container cannot be started (e.g. no Docker).
func MongoURI(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}

	mongoOnce.Do(func() {
		mongoURI, mongoErr = startMongo()
	})
	if mongoErr != nil {
		t.Skipf("skipping MongoDB integration test: %v", mongoErr)
	}
	return mongoURI
}

func startMongo() (uri string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	// testcontainers panics on some hosts without a usable Docker socket.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("starting MongoDB container panicked: %v", r)
		}
	}()

	container, err := testcontainers.Run(
		ctx, "mongo:7",
		testcontainers.WithExposedPorts("27017/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("27017/tcp").WithStartupTimeout(2*time.Minute),
		),
	)
	if err != nil {
		return "", fmt.Errorf("start MongoDB container: %w", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		_ = container.Terminate(context.Background())
		return "", fmt.Errorf("MongoDB container endpoint: %w", err)
	}
	return "mongodb://" + endpoint, nil
}
