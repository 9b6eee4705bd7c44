package testsupport

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hiddenhill/api/internal/db"
)

// NewTestDB opens a migrated in-memory SQLite database private to the test.
// Every call gets its own shared-cache name so parallel tests never see each
// other's rows.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	url := fmt.Sprintf("sqlite:///file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := db.New(db.Options{URL: url, LogLevel: logger.Silent})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close(gdb)
	})
	return gdb
}
