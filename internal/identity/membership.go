package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mirelhart/cantus/internal/event"
)

// AddMember links a person identity into a group identity. Both ends are
// kind-checked: a mismatch is ErrTypeMismatch, never a silent no-op. Adding
// an existing link is idempotent. The model is strictly two-level (group
// contains person), so cycles are impossible by construction; nested groups
// would need ancestor-chain cycle detection before insert.
func (s *Service) AddMember(ctx context.Context, groupID, memberID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	group, err := getIdentity(ctx, tx, groupID)
	if err != nil {
		return err
	}
	member, err := getIdentity(ctx, tx, memberID)
	if err != nil {
		return err
	}

	if group.Kind != KindGroup {
		return fmt.Errorf("identity %s is %s, not a group: %w", groupID, group.Kind, ErrTypeMismatch)
	}
	if member.Kind != KindPerson {
		return fmt.Errorf("identity %s is %s, not a person: %w", memberID, member.Kind, ErrTypeMismatch)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO group_memberships (group_identity_id, member_identity_id, created_at)
		VALUES (?, ?, ?)
	`, groupID, memberID, now); err != nil {
		return fmt.Errorf("inserting membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing membership: %w", err)
	}

	s.publish(event.MemberAdded, map[string]any{
		"group_identity_id":  groupID,
		"member_identity_id": memberID,
	})
	return nil
}

// RemoveMember deletes a group membership link. Names and credits are not
// touched: a person's song credits survive leaving a group.
func (s *Service) RemoveMember(ctx context.Context, groupID, memberID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM group_memberships
		WHERE group_identity_id = ? AND member_identity_id = ?
	`, groupID, memberID)
	if err != nil {
		return fmt.Errorf("deleting membership: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("membership %s -> %s: %w", groupID, memberID, ErrNotFound)
	}

	s.logger.Debug("removed group member",
		slog.String("group", groupID), slog.String("member", memberID))
	s.publish(event.MemberRemoved, map[string]any{
		"group_identity_id":  groupID,
		"member_identity_id": memberID,
	})
	return nil
}

// ListMembers returns the person identities belonging to a group.
func (s *Service) ListMembers(ctx context.Context, groupID string) ([]Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedIdentityColumns("i")+` FROM identities i
		JOIN group_memberships gm ON i.id = gm.member_identity_id
		WHERE gm.group_identity_id = ?
		ORDER BY i.created_at, i.id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var members []Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		members = append(members, *ident)
	}
	return members, rows.Err()
}

// ListGroups returns the group identities a person belongs to.
func (s *Service) ListGroups(ctx context.Context, memberID string) ([]Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedIdentityColumns("i")+` FROM identities i
		JOIN group_memberships gm ON i.id = gm.group_identity_id
		WHERE gm.member_identity_id = ?
		ORDER BY i.created_at, i.id
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var groups []Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		groups = append(groups, *ident)
	}
	return groups, rows.Err()
}

// prefixedIdentityColumns returns identityColumns qualified with a table alias.
func prefixedIdentityColumns(table string) string {
	return table + ".id, " + table + ".kind, " + table + ".created_at, " + table + ".updated_at"
}
