package session

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"passage/cmd/identity/ids"
)

// Integration tests are opt-in and require PASSAGE_TEST_MONGO_URL pointing at
// a replica set (RemoveDevice runs in a transaction).

func TestMongoStore_Contract(t *testing.T) {
	client := mustConnectTestMongo(t)

	runStoreContract(t, func(t *testing.T) Store {
		id, err := ids.NewULID(time.Now())
		require.NoError(t, err)
		db := "passage_it_" + strings.ToLower(id)

		st, err := NewMongoStore(client, db, "")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, st.EnsureIndexes(ctx))

		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = client.Database(db).Drop(ctx)
		})
		return st
	})
}

func mustConnectTestMongo(t *testing.T) *mongo.Client {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("PASSAGE_TEST_MONGO_URL"))
	if raw == "" {
		t.Skip("integration test skipped: PASSAGE_TEST_MONGO_URL is not set")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(raw))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		t.Skipf("integration test skipped: MongoDB unreachable: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	})
	return client
}
