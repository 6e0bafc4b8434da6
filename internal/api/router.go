package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/mirelhart/cantus/internal/api/middleware"
	"github.com/mirelhart/cantus/internal/audit"
	"github.com/mirelhart/cantus/internal/catalog"
	"github.com/mirelhart/cantus/internal/credit"
	"github.com/mirelhart/cantus/internal/identity"
	"github.com/mirelhart/cantus/internal/logging"
)

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	IdentityService *identity.Service
	CatalogService  *catalog.Service
	CreditLedger    *credit.Ledger
	AuditService    *audit.Service
	LogManager      *logging.Manager
	DB              *sql.DB
	Logger          *slog.Logger
	BasePath        string
}

// Router sets up all HTTP routes for the application.
type Router struct {
	identityService *identity.Service
	catalogService  *catalog.Service
	creditLedger    *credit.Ledger
	auditService    *audit.Service
	logManager      *logging.Manager
	db              *sql.DB
	logger          *slog.Logger
	basePath        string
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		identityService: deps.IdentityService,
		catalogService:  deps.CatalogService,
		creditLedger:    deps.CreditLedger,
		auditService:    deps.AuditService,
		logManager:      deps.LogManager,
		db:              deps.DB,
		logger:          deps.Logger,
		basePath:        deps.BasePath,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	mutationRL := middleware.NewMutationRateLimiter()
	mux := http.NewServeMux()
	bp := r.basePath

	mux.HandleFunc("GET "+bp+"/api/v1/health", r.handleHealth)

	// Identity routes
	mux.HandleFunc("POST "+bp+"/api/v1/identities", r.handleCreateIdentity)
	mux.HandleFunc("GET "+bp+"/api/v1/identities/{id}", r.handleGetIdentity)
	mux.HandleFunc("GET "+bp+"/api/v1/identities/{id}/names", r.handleListNames)
	mux.HandleFunc("GET "+bp+"/api/v1/identities/{id}/resolve", r.handleResolveIdentity)
	mux.HandleFunc("PUT "+bp+"/api/v1/identities/{id}/kind", r.handleSetKind)
	mux.HandleFunc("POST "+bp+"/api/v1/identities/{id}/aliases", r.handleAddAlias)
	mux.HandleFunc("POST "+bp+"/api/v1/identities/{id}/aliases/confirm", r.handleConfirmAddAlias)

	// Membership routes
	mux.HandleFunc("GET "+bp+"/api/v1/identities/{id}/members", r.handleListMembers)
	mux.HandleFunc("PUT "+bp+"/api/v1/identities/{id}/members/{memberId}", r.handleAddMember)
	mux.HandleFunc("DELETE "+bp+"/api/v1/identities/{id}/members/{memberId}", r.handleRemoveMember)
	mux.HandleFunc("GET "+bp+"/api/v1/identities/{id}/groups", r.handleListGroups)

	// Name routes
	mux.HandleFunc("GET "+bp+"/api/v1/names", r.handleSearchNames)
	mux.HandleFunc("GET "+bp+"/api/v1/names/{id}", r.handleGetName)
	mux.HandleFunc("GET "+bp+"/api/v1/names/{id}/resolve", r.handleResolveName)
	mux.HandleFunc("PUT "+bp+"/api/v1/names/{id}", r.handleRename)
	mux.HandleFunc("POST "+bp+"/api/v1/names/{id}/rename/confirm", r.handleConfirmRename)

	// History-rewriting routes (rate limited)
	mux.HandleFunc("POST "+bp+"/api/v1/names/merge", wrapRL(r.handleMerge, mutationRL))
	mux.HandleFunc("POST "+bp+"/api/v1/names/consume", wrapRL(r.handleConsume, mutationRL))
	mux.HandleFunc("POST "+bp+"/api/v1/names/{id}/unlink", wrapRL(r.handleUnlinkAlias, mutationRL))

	// Catalog routes
	mux.HandleFunc("GET "+bp+"/api/v1/albums", r.handleListAlbums)
	mux.HandleFunc("POST "+bp+"/api/v1/albums", r.handleCreateAlbum)
	mux.HandleFunc("GET "+bp+"/api/v1/albums/{id}", r.handleGetAlbum)
	mux.HandleFunc("GET "+bp+"/api/v1/albums/{id}/songs", r.handleListAlbumSongs)
	mux.HandleFunc("POST "+bp+"/api/v1/songs", r.handleCreateSong)
	mux.HandleFunc("GET "+bp+"/api/v1/songs/{id}", r.handleGetSong)

	// Credit routes
	mux.HandleFunc("GET "+bp+"/api/v1/roles", r.handleListRoles)
	mux.HandleFunc("POST "+bp+"/api/v1/songs/{id}/credits", r.handleAddSongCredit)
	mux.HandleFunc("DELETE "+bp+"/api/v1/songs/{id}/credits", r.handleRemoveSongCredit)
	mux.HandleFunc("POST "+bp+"/api/v1/albums/{id}/credits", r.handleAddAlbumCredit)
	mux.HandleFunc("DELETE "+bp+"/api/v1/albums/{id}/credits", r.handleRemoveAlbumCredit)

	// Audit and settings routes
	mux.HandleFunc("GET "+bp+"/api/v1/audit", r.handleListAudit)
	mux.HandleFunc("GET "+bp+"/api/v1/settings/logging", r.handleGetLogging)
	mux.HandleFunc("PUT "+bp+"/api/v1/settings/logging", r.handleUpdateLogging)

	// Apply logging to all requests
	return middleware.Logging(r.logger)(mux)
}

// wrapRL wraps a handler function with the mutation rate limiter.
func wrapRL(fn http.HandlerFunc, rl *middleware.MutationRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rl.Middleware(fn).ServeHTTP(w, r)
	}
}
