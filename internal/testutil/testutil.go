// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/backoffice/internal/actor"
	"github.com/smallbiznis/backoffice/internal/authorization"
	"github.com/smallbiznis/backoffice/internal/migration"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Epoch is the fixed start time used by fake clocks in tests.
var Epoch = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

// NewDB opens a private in-memory sqlite database with the full schema. The
// pool is capped at one connection so transactions serialize like row locks.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// NewNode returns a snowflake generator for test fixtures.
func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// As returns a context acting as role with the given id.
func As(role actor.Role, id snowflake.ID) context.Context {
	return actor.WithActor(context.Background(), actor.Actor{Role: role, ID: id})
}

// NewAuthz returns the production role table.
func NewAuthz(t testing.TB) authorization.Service {
	t.Helper()

	enforcer, err := authorization.NewEnforcer()
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	return authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})
}
