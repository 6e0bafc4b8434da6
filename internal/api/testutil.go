package api

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/mirelhart/cantus/internal/audit"
	"github.com/mirelhart/cantus/internal/catalog"
	"github.com/mirelhart/cantus/internal/credit"
	"github.com/mirelhart/cantus/internal/database"
	"github.com/mirelhart/cantus/internal/identity"
	"github.com/mirelhart/cantus/internal/logging"
)

// testRouter builds a Router backed by an in-memory database for handler
// tests. Only referenced from _test.go files.
func testRouter(t *testing.T) (*Router, *identity.Service) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	logManager, _ := logging.NewManager(logging.Config{Level: "error", Format: "text"})
	t.Cleanup(func() { _ = logManager.Close() })

	identitySvc := identity.NewService(db, logger)
	router := NewRouter(RouterDeps{
		IdentityService: identitySvc,
		CatalogService:  catalog.NewService(db),
		CreditLedger:    credit.NewLedger(db),
		AuditService:    audit.NewService(db, logger),
		LogManager:      logManager,
		DB:              db,
		Logger:          logger,
	})
	return router, identitySvc
}

// addTestIdentity creates an identity and returns it with its primary name ID.
func addTestIdentity(t *testing.T, svc *identity.Service, kind identity.Kind, name string) (*identity.Identity, string) {
	t.Helper()
	ident, err := svc.CreateIdentity(context.Background(), kind, name)
	if err != nil {
		t.Fatalf("creating identity %q: %v", name, err)
	}
	names, err := svc.Names(context.Background(), ident.ID)
	if err != nil || len(names) == 0 {
		t.Fatalf("listing names for %q: %v", name, err)
	}
	return ident, names[0].ID
}
