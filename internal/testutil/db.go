// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/khanghh/mcpauth/model"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// NewTestDB opens a private in-memory SQLite database with every model migrated.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	return NewPrefixedTestDB(t, "")
}

// NewPrefixedTestDB is NewTestDB with every table name carrying tablePrefix.
func NewPrefixedTestDB(t testing.TB, tablePrefix string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{TablePrefix: tablePrefix, SingularTable: true},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := model.AutoMigrate(db, true); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// Fixture is a small two-tenant data set: alice and bob in acme, carol in globex.
type Fixture struct {
	Acme, Globex      model.Organization
	Alice, Bob, Carol model.User
}

func Seed(t testing.TB, db *gorm.DB) *Fixture {
	t.Helper()
	f := &Fixture{
		Acme:   model.Organization{ID: 100, Name: "Acme", Slug: "acme"},
		Globex: model.Organization{ID: 200, Name: "Globex", Slug: "globex"},
		Alice:  model.User{ID: 1, Username: "alice", FullName: "Alice Anders", Email: "alice@acme.test"},
		Bob:    model.User{ID: 2, Username: "bob", FullName: "Bob Brown", Email: "bob@acme.test"},
		Carol:  model.User{ID: 3, Username: "carol", FullName: "Carol Chen", Email: "carol@globex.test"},
	}
	MustCreate(t, db, &f.Acme, &f.Globex, &f.Alice, &f.Bob, &f.Carol)
	MustCreate(t, db,
		&model.Membership{UserID: f.Alice.ID, OrganizationID: f.Acme.ID, Role: "owner"},
		&model.Membership{UserID: f.Bob.ID, OrganizationID: f.Acme.ID, Role: "member"},
		&model.Membership{UserID: f.Carol.ID, OrganizationID: f.Globex.ID, Role: "owner"},
	)
	return f
}

// MustCreate inserts rows for test setup, failing the test on error.
func MustCreate(t testing.TB, db *gorm.DB, values ...interface{}) {
	t.Helper()
	for _, v := range values {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("seed %T: %v", v, err)
		}
	}
}
