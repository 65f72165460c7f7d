package pg

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eternisai/chat-relay/internal/conversation"
	"github.com/eternisai/chat-relay/internal/storage/storetest"
)

// Set POSTGRES_TEST_URL to a disposable database to run the contract.
func TestStoreContract(t *testing.T) {
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}

	db, err := InitDatabase(url, PoolConfig{MaxOpenConns: 4, MaxIdleConns: 2, ConnMaxIdleTime: 1, ConnMaxLifetime: 5})
	require.NoError(t, err)
	s := NewStore(db)
	t.Cleanup(func() {
		_, _ = db.DB.Exec(`DELETE FROM conversations WHERE user_id LIKE 'user-%'`)
		_ = db.DB.Close()
	})

	storetest.Run(t, func(t *testing.T) conversation.Store { return s })
}
