package identity

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mirelhart/cantus/internal/event"
)

// Service is the only component that mutates identities, names, credits and
// memberships. Every operation runs as a single transaction: either the
// whole graph change commits or none of it does, so readers never observe
// credits pointing at a half-moved name.
type Service struct {
	db     *sql.DB
	logger *slog.Logger
	bus    *event.Bus
}

// NewService creates an identity service.
func NewService(db *sql.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// SetEventBus wires an event bus for mutation notifications.
func (s *Service) SetEventBus(bus *event.Bus) {
	s.bus = bus
}

func (s *Service) publish(t event.Type, data map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Event{Type: t, Data: data})
}

// RenameStatus reports how a rename request ended.
type RenameStatus string

// Rename statuses.
const (
	RenameApplied   RenameStatus = "applied"
	RenameCollision RenameStatus = "collision"
)

// RenameOutcome is the result of Rename. Collision is set when Status is
// RenameCollision; the caller must confirm before any merge happens.
type RenameOutcome struct {
	Status    RenameStatus `json:"status"`
	Collision *Collision   `json:"collision,omitempty"`
}

// AliasStatus reports how an add-alias request ended.
type AliasStatus string

// Alias statuses.
const (
	AliasAdded        AliasStatus = "added"
	AliasMerged       AliasStatus = "merged"
	AliasNeedsConfirm AliasStatus = "needs_confirmation"
)

// AliasOutcome is the result of AddAlias. NameID identifies the name now
// (or already) attached to the identity; Collision is set when the existing
// spelling carries credits and merging needs confirmation.
type AliasOutcome struct {
	Status    AliasStatus `json:"status"`
	NameID    string      `json:"name_id,omitempty"`
	Collision *Collision  `json:"collision,omitempty"`
}

// CreateIdentity creates a new identity with its initial primary name.
// A spelling already owned by another identity is rejected with ErrCollision;
// linking an existing spelling is AddAlias's job.
func (s *Service) CreateIdentity(ctx context.Context, kind Kind, initialName string) (*Identity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid identity kind %q", kind)
	}
	initialName = strings.TrimSpace(initialName)
	if initialName == "" {
		return nil, fmt.Errorf("initial name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	collision, err := resolveCollision(ctx, tx, initialName, "")
	if err != nil {
		return nil, err
	}
	if collision != nil {
		return nil, fmt.Errorf("spelling %q already owned by identity %s: %w",
			collision.Text, collision.IdentityID, ErrCollision)
	}

	ident, err := insertIdentity(ctx, tx, kind)
	if err != nil {
		return nil, err
	}
	n, err := insertName(ctx, tx, ident.ID, initialName, true)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing create: %w", err)
	}

	s.publish(event.IdentityCreated, map[string]any{
		"identity_id": ident.ID,
		"kind":        string(kind),
		"name_id":     n.ID,
		"name":        n.Text,
	})
	return ident, nil
}

// Merge makes the source name an alias of the identity owning the target
// name. The source identity's entire name set moves over and the emptied
// source identity is deleted. Credits are untouched: they keep referencing
// the same name rows, which now live under the target identity.
func (s *Service) Merge(ctx context.Context, sourceNameID, targetNameID string) error {
	if sourceNameID == targetNameID {
		return fmt.Errorf("merging name %s into itself: %w", sourceNameID, ErrSelfReference)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	source, err := getName(ctx, tx, sourceNameID)
	if err != nil {
		return err
	}
	target, err := getName(ctx, tx, targetNameID)
	if err != nil {
		return err
	}

	// Already aliases of each other.
	if source.IdentityID == target.IdentityID {
		return nil
	}

	if err := s.mergeIdentities(ctx, tx, source.IdentityID, target.IdentityID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing merge: %w", err)
	}

	s.logger.Info("merged identities",
		slog.String("source_name", source.Text),
		slog.String("target_identity", target.IdentityID))
	s.publish(event.IdentityMerged, map[string]any{
		"source_name_id":     sourceNameID,
		"source_identity_id": source.IdentityID,
		"target_identity_id": target.IdentityID,
	})
	return nil
}

// mergeIdentities re-parents every name of sourceIdentityID to
// targetIdentityID, deletes the emptied source identity, and settles primary
// integrity on the target. Runs inside the caller's transaction.
func (s *Service) mergeIdentities(ctx context.Context, tx *sql.Tx, sourceIdentityID, targetIdentityID string) error {
	if err := reparentNames(ctx, tx, sourceIdentityID, targetIdentityID); err != nil {
		return err
	}
	if err := deleteIdentity(ctx, tx, sourceIdentityID); err != nil {
		return err
	}
	return enforcePrimaryIntegrity(ctx, tx, targetIdentityID)
}

// Consume has the same graph effect as Merge except the source name row is
// deleted after its credits are repointed to the target identity's primary
// name. This is typo-fix semantics: the old spelling should not linger as a
// selectable alias. Role-aware repointing (choosing a role-matching name
// instead of the primary) is a possible extension; the primary is always
// used today.
func (s *Service) Consume(ctx context.Context, sourceNameID, targetNameID string) error {
	if sourceNameID == targetNameID {
		return fmt.Errorf("consuming name %s into itself: %w", sourceNameID, ErrSelfReference)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	source, err := getName(ctx, tx, sourceNameID)
	if err != nil {
		return err
	}
	target, err := getName(ctx, tx, targetNameID)
	if err != nil {
		return err
	}

	if source.IdentityID != target.IdentityID {
		if err := reparentNames(ctx, tx, source.IdentityID, target.IdentityID); err != nil {
			return err
		}
		if err := deleteIdentity(ctx, tx, source.IdentityID); err != nil {
			return err
		}
	}

	// Repoint the source name's credits to the surviving identity's primary
	// name. The target name is always a candidate, so an empty result here
	// means the name table is inconsistent; fail rather than drop credits.
	var repointTo string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM artist_names
		WHERE identity_id = ? AND id != ?
		ORDER BY is_primary DESC, (promoted_at IS NULL), promoted_at DESC, created_at, id
		LIMIT 1
	`, target.IdentityID, sourceNameID).Scan(&repointTo)
	if err != nil {
		return fmt.Errorf("no repoint target for credits of name %s: %w", sourceNameID, ErrIntegrityViolation)
	}

	if err := repointCredits(ctx, tx, sourceNameID, repointTo); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM artist_names WHERE id = ?`, sourceNameID); err != nil {
		return fmt.Errorf("deleting consumed name: %w", err)
	}

	if err := enforcePrimaryIntegrity(ctx, tx, target.IdentityID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing consume: %w", err)
	}

	s.logger.Info("consumed name",
		slog.String("source_name", source.Text),
		slog.String("target_identity", target.IdentityID))
	s.publish(event.IdentityConsumed, map[string]any{
		"source_name_id":     sourceNameID,
		"source_text":        source.Text,
		"target_identity_id": target.IdentityID,
		"repointed_to":       repointTo,
	})
	return nil
}

// UnlinkAlias carves a name out of its identity into a brand-new identity
// of the same kind. The name row and all its credits are untouched; only
// ownership changes. Returns the new identity.
func (s *Service) UnlinkAlias(ctx context.Context, nameID string) (*Identity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := getName(ctx, tx, nameID)
	if err != nil {
		return nil, err
	}
	oldIdent, err := getIdentity(ctx, tx, n.IdentityID)
	if err != nil {
		return nil, err
	}

	newIdent, err := insertIdentity(ctx, tx, oldIdent.Kind)
	if err != nil {
		return nil, err
	}
	if err := reparentName(ctx, tx, nameID, newIdent.ID, true); err != nil {
		return nil, err
	}

	// The old identity either promotes a replacement primary or, if this
	// was its only name, goes away entirely: an identity with zero names
	// must never persist.
	remaining, err := countNames(ctx, tx, oldIdent.ID)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		if err := deleteIdentity(ctx, tx, oldIdent.ID); err != nil {
			return nil, err
		}
	} else if err := enforcePrimaryIntegrity(ctx, tx, oldIdent.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing unlink: %w", err)
	}

	s.logger.Info("unlinked name into new identity",
		slog.String("name", n.Text),
		slog.String("new_identity", newIdent.ID))
	s.publish(event.NameUnlinked, map[string]any{
		"name_id":         nameID,
		"old_identity_id": oldIdent.ID,
		"new_identity_id": newIdent.ID,
	})
	return newIdent, nil
}

// Rename changes the spelling of an existing name. A collision with any
// other name row is always surfaced as RenameCollision and never silently
// merged: the user asked to fix one artist's spelling, not to link two
// artists. A pure case change of the same row applies in place.
func (s *Service) Rename(ctx context.Context, nameID, newText string) (*RenameOutcome, error) {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return nil, fmt.Errorf("new name text is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := getName(ctx, tx, nameID)
	if err != nil {
		return nil, err
	}

	collision, err := resolveCollision(ctx, tx, newText, nameID)
	if err != nil {
		return nil, err
	}
	if collision != nil {
		// No writes have happened; the rollback is a no-op and both names'
		// owners are untouched until the caller confirms.
		return &RenameOutcome{Status: RenameCollision, Collision: collision}, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		UPDATE artist_names SET text = ?, fold_key = ?, sort_key = ?, updated_at = ?
		WHERE id = ?
	`, newText, FoldKey(newText), SortKeyFor(newText), now, nameID); err != nil {
		return nil, fmt.Errorf("renaming name: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing rename: %w", err)
	}

	s.publish(event.NameRenamed, map[string]any{
		"name_id":  nameID,
		"old_text": n.Text,
		"new_text": newText,
	})
	return &RenameOutcome{Status: RenameApplied}, nil
}

// ConfirmRename completes a rename that collided with an existing spelling.
// The renaming name's identity is consumed into the existing spelling's
// identity: the canonical spelling already in the library wins, and the
// user's edit is treated as "this is the same artist".
func (s *Service) ConfirmRename(ctx context.Context, nameID, collidingNameID string) error {
	return s.Consume(ctx, nameID, collidingNameID)
}

// AddAlias attaches a spelling to an identity as an explicit alias. A free
// spelling becomes a new non-primary name. A colliding spelling with no
// credits is silently merged in: there is no history to lose. A colliding
// spelling that carries credits needs confirmation, since merging makes
// that history appear under this identity.
func (s *Service) AddAlias(ctx context.Context, identityID, aliasText string) (*AliasOutcome, error) {
	aliasText = strings.TrimSpace(aliasText)
	if aliasText == "" {
		return nil, fmt.Errorf("alias text is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := getIdentity(ctx, tx, identityID); err != nil {
		return nil, err
	}

	collision, err := resolveCollision(ctx, tx, aliasText, "")
	if err != nil {
		return nil, err
	}

	switch {
	case collision == nil:
		n, err := insertName(ctx, tx, identityID, aliasText, false)
		if err != nil {
			return nil, err
		}
		if err := enforcePrimaryIntegrity(ctx, tx, identityID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing alias: %w", err)
		}
		s.publish(event.AliasAdded, map[string]any{
			"identity_id": identityID,
			"name_id":     n.ID,
			"text":        aliasText,
		})
		return &AliasOutcome{Status: AliasAdded, NameID: n.ID}, nil

	case collision.IdentityID == identityID:
		// Spelling already attached to this identity.
		return &AliasOutcome{Status: AliasAdded, NameID: collision.NameID}, nil

	case !collision.HasBaggage():
		if err := s.mergeIdentities(ctx, tx, collision.IdentityID, identityID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing alias merge: %w", err)
		}
		s.publish(event.IdentityMerged, map[string]any{
			"source_name_id":     collision.NameID,
			"source_identity_id": collision.IdentityID,
			"target_identity_id": identityID,
		})
		return &AliasOutcome{Status: AliasMerged, NameID: collision.NameID}, nil

	default:
		return &AliasOutcome{Status: AliasNeedsConfirm, Collision: collision}, nil
	}
}

// ConfirmAddAlias completes an AddAlias that needed confirmation because the
// existing spelling carries credits.
func (s *Service) ConfirmAddAlias(ctx context.Context, identityID, collidingNameID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := getIdentity(ctx, tx, identityID); err != nil {
		return err
	}
	colliding, err := getName(ctx, tx, collidingNameID)
	if err != nil {
		return err
	}
	if colliding.IdentityID == identityID {
		return nil
	}

	if err := s.mergeIdentities(ctx, tx, colliding.IdentityID, identityID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing alias merge: %w", err)
	}

	s.publish(event.IdentityMerged, map[string]any{
		"source_name_id":     collidingNameID,
		"source_identity_id": colliding.IdentityID,
		"target_identity_id": identityID,
	})
	return nil
}

// SetKind changes an identity between person and group. Membership rows
// that would become invalid under the new kind are cleared in the same
// transaction, never left dangling.
func (s *Service) SetKind(ctx context.Context, identityID string, kind Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("invalid identity kind %q", kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ident, err := getIdentity(ctx, tx, identityID)
	if err != nil {
		return err
	}
	if ident.Kind == kind {
		return nil
	}

	// A person cannot have members; a group cannot be a member.
	var clearColumn string
	if kind == KindPerson {
		clearColumn = "group_identity_id"
	} else {
		clearColumn = "member_identity_id"
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM group_memberships WHERE `+clearColumn+` = ?`, identityID); err != nil {
		return fmt.Errorf("clearing invalid memberships: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		`UPDATE identities SET kind = ?, updated_at = ? WHERE id = ?`,
		string(kind), now, identityID); err != nil {
		return fmt.Errorf("updating identity kind: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing kind change: %w", err)
	}

	s.publish(event.KindChanged, map[string]any{
		"identity_id": identityID,
		"old_kind":    string(ident.Kind),
		"new_kind":    string(kind),
	})
	return nil
}

// GetIdentity retrieves an identity by ID.
func (s *Service) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	return getIdentity(ctx, s.db, id)
}

// GetName retrieves a name by ID.
func (s *Service) GetName(ctx context.Context, id string) (*ArtistName, error) {
	return getName(ctx, s.db, id)
}

// Names returns all names of an identity, primary first.
func (s *Service) Names(ctx context.Context, identityID string) ([]ArtistName, error) {
	return listNames(ctx, s.db, identityID)
}

// SearchNames finds names whose case-folded text contains the case-folded
// query, primary names first.
func (s *Service) SearchNames(ctx context.Context, query string) ([]ArtistName, error) {
	pattern := "%" + FoldKey(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+nameColumns+` FROM artist_names WHERE fold_key LIKE ?`+nameOrder+` LIMIT 50`,
		pattern)
	if err != nil {
		return nil, fmt.Errorf("searching names: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var names []ArtistName
	for rows.Next() {
		n, err := scanName(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		names = append(names, *n)
	}
	return names, rows.Err()
}
