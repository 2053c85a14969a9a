package indexer

import (
	"os"
	"testing"

	"github.com/mvp-joe/symgraph/internal/storage"
)

// TestMain initializes the sqlite-vec extension for every test that opens a
// store.
func TestMain(m *testing.M) {
	storage.InitVectorExtension()
	os.Exit(m.Run())
}
