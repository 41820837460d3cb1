package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/go-cmp/cmp"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/bibleai/internal/domain"
)

// test DB helper
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestKV_PutGetOverwriteDelete(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if _, ok, err := GetKV(ctx, db, "missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := PutKV(ctx, db, "a", "1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := PutKV(ctx, db, "a", "2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := GetKV(ctx, db, "a")
	if err != nil || !ok || v != "2" {
		t.Fatalf("get after overwrite: v=%q ok=%v err=%v", v, ok, err)
	}

	var n int64
	db.Model(&domain.KVEntry{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected a single row per key, got %d", n)
	}

	if err := DeleteKV(ctx, db, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := DeleteKV(ctx, db, "a"); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}
	if _, ok, _ := GetKV(ctx, db, "a"); ok {
		t.Fatal("key should be gone")
	}
}

func TestKV_ErrorWhenTableMissing(t *testing.T) {
	db := newRepoDB(t)
	if err := db.Migrator().DropTable(&domain.KVEntry{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, _, err := GetKV(context.Background(), db, "a"); err == nil {
		t.Fatal("expected error from missing table")
	}
}

func TestMessages_AppendListKeepsOrderAndScope(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	now := time.UnixMilli(1700000000000)
	user := domain.NewMessage(domain.RoleUser, "What is grace?", now, 0)
	reply := domain.NewMessage(domain.RoleModel, "Grace is unmerited favor.", now, 1)
	reply.FollowUps = []string{"Where is grace in Romans?"}
	reply.References = []domain.BibleReference{{Ref: "Ephesians 2:8", Text: "For it is by grace...", Chapter: "Ephesians 2"}}

	for _, m := range []domain.ChatMessage{user, reply} {
		if err := AppendMessage(ctx, db, "s1", domain.SurfacePastor, m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	// Another scope must not leak in.
	if err := AppendMessage(ctx, db, "s2", domain.SurfacePastor, user); err != nil {
		t.Fatalf("append other session: %v", err)
	}
	if err := AppendMessage(ctx, db, "s1", domain.SurfacePrayer, user); err != nil {
		t.Fatalf("append other surface: %v", err)
	}

	got, err := ListMessages(ctx, db, "s1", domain.SurfacePastor)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []domain.ChatMessage{user, reply}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}
