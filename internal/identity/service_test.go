package identity

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mirelhart/cantus/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()
	db := setupTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(db, logger), db
}

// mustCreate creates an identity and returns it with its primary name.
func mustCreate(t *testing.T, svc *Service, kind Kind, name string) (*Identity, *ArtistName) {
	t.Helper()
	ctx := context.Background()
	ident, err := svc.CreateIdentity(ctx, kind, name)
	if err != nil {
		t.Fatalf("CreateIdentity(%q): %v", name, err)
	}
	names, err := svc.Names(ctx, ident.ID)
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 1 || !names[0].IsPrimary {
		t.Fatalf("expected a single primary name for %q, got %+v", name, names)
	}
	return ident, &names[0]
}

// insertSong inserts a bare song row and returns its ID.
func insertSong(t *testing.T, db *sql.DB, title string) string {
	t.Helper()
	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.Exec(`
		INSERT INTO songs (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)
	`, id, title, now, now)
	if err != nil {
		t.Fatalf("inserting song: %v", err)
	}
	return id
}

// creditSong attaches a performer credit to a name.
func creditSong(t *testing.T, db *sql.DB, songID, nameID string) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.Exec(`
		INSERT INTO song_credits (song_id, name_id, role_id, created_at)
		VALUES (?, ?, 'performer', ?)
	`, songID, nameID, now)
	if err != nil {
		t.Fatalf("inserting song credit: %v", err)
	}
}

// songCreditNameIDs returns the name IDs credited on a song.
func songCreditNameIDs(t *testing.T, db *sql.DB, songID string) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name_id FROM song_credits WHERE song_id = ? ORDER BY name_id`, songID)
	if err != nil {
		t.Fatalf("querying song credits: %v", err)
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scanning credit: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

// assertOnePrimary fails unless the identity has exactly one primary name.
func assertOnePrimary(t *testing.T, svc *Service, identityID string) *ArtistName {
	t.Helper()
	names, err := svc.Names(context.Background(), identityID)
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	var primary *ArtistName
	count := 0
	for i := range names {
		if names[i].IsPrimary {
			primary = &names[i]
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one primary name, got %d of %d names", count, len(names))
	}
	return primary
}

func TestCreateIdentity(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	ident, name := mustCreate(t, svc, KindPerson, "Nick Cave")
	if ident.Kind != KindPerson {
		t.Errorf("expected person, got %s", ident.Kind)
	}
	if name.Text != "Nick Cave" {
		t.Errorf("expected text preserved, got %q", name.Text)
	}
	if name.FoldKey != "nick cave" {
		t.Errorf("expected folded key, got %q", name.FoldKey)
	}

	if _, err := svc.CreateIdentity(ctx, Kind("orchestra"), "X"); err == nil {
		t.Error("expected error for invalid kind")
	}
	if _, err := svc.CreateIdentity(ctx, KindPerson, "   "); err == nil {
		t.Error("expected error for blank name")
	}
}

func TestCreateIdentity_SpellingTaken(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	mustCreate(t, svc, KindPerson, "Björk")

	// Case variations fold to the same key and are the same spelling.
	_, err := svc.CreateIdentity(ctx, KindPerson, "BJÖRK")
	if !errors.Is(err, ErrCollision) {
		t.Fatalf("expected ErrCollision, got %v", err)
	}
}

func TestMerge_MovesNamesKeepsCredits(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()

	source, sourceName := mustCreate(t, svc, KindPerson, "Cat Stevens")
	target, targetName := mustCreate(t, svc, KindPerson, "Yusuf Islam")

	song := insertSong(t, db, "Father and Son")
	creditSong(t, db, song, sourceName.ID)

	if err := svc.Merge(ctx, sourceName.ID, targetName.ID); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	// Source identity is gone; its name now lives under the target.
	if _, err := svc.GetIdentity(ctx, source.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected source identity deleted, got %v", err)
	}
	moved, err := svc.GetName(ctx, sourceName.ID)
	if err != nil {
		t.Fatalf("GetName: %v", err)
	}
	if moved.IdentityID != target.ID {
		t.Errorf("expected name under target identity, got %s", moved.IdentityID)
	}

	// The credit still references the original spelling.
	ids := songCreditNameIDs(t, db, song)
	if len(ids) != 1 || ids[0] != sourceName.ID {
		t.Errorf("expected credit untouched on %s, got %v", sourceName.ID, ids)
	}

	// The target's original primary survives as the single primary.
	primary := assertOnePrimary(t, svc, target.ID)
	if primary.ID != targetName.ID {
		t.Errorf("expected target primary to stay, got %q", primary.Text)
	}
}

func TestMerge_SelfAndSameIdentity(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	_, name := mustCreate(t, svc, KindPerson, "Moby")
	if err := svc.Merge(ctx, name.ID, name.ID); !errors.Is(err, ErrSelfReference) {
		t.Errorf("expected ErrSelfReference, got %v", err)
	}

	ident, primary := mustCreate(t, svc, KindPerson, "Richard Hall")
	outcome, err := svc.AddAlias(ctx, ident.ID, "Voodoo Child")
	if err != nil {
		t.Fatalf("AddAlias: %v", err)
	}
	// Merging two names of the same identity is a no-op, not an error.
	if err := svc.Merge(ctx, outcome.NameID, primary.ID); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
	assertOnePrimary(t, svc, ident.ID)
}

func TestMerge_UnknownName(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	_, name := mustCreate(t, svc, KindPerson, "Beck")
	if err := svc.Merge(ctx, name.ID, uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConsume_RemovesSpellingAndRepointsCredits(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()

	source, sourceName := mustCreate(t, svc, KindGroup, "Nirvan")
	target, targetName := mustCreate(t, svc, KindGroup, "Nirvana")

	song := insertSong(t, db, "Lithium")
	creditSong(t, db, song, sourceName.ID)

	if err := svc.Consume(ctx, sourceName.ID, targetName.ID); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	// The typo spelling is gone entirely.
	if _, err := svc.GetName(ctx, sourceName.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected consumed name deleted, got %v", err)
	}
	if _, err := svc.GetIdentity(ctx, source.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected source identity deleted, got %v", err)
	}

	// Its credit now references the target's primary name.
	ids := songCreditNameIDs(t, db, song)
	if len(ids) != 1 || ids[0] != targetName.ID {
		t.Errorf("expected credit repointed to %s, got %v", targetName.ID, ids)
	}
	assertOnePrimary(t, svc, target.ID)
}

func TestConsume_CollapsesDuplicateCredits(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()

	_, sourceName := mustCreate(t, svc, KindGroup, "Led Zepelin")
	_, targetName := mustCreate(t, svc, KindGroup, "Led Zeppelin")

	// Both spellings hold the same credit tuple on the same song.
	song := insertSong(t, db, "Kashmir")
	creditSong(t, db, song, sourceName.ID)
	creditSong(t, db, song, targetName.ID)

	if err := svc.Consume(ctx, sourceName.ID, targetName.ID); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	// The repointed credit collapses into the existing one.
	ids := songCreditNameIDs(t, db, song)
	if len(ids) != 1 || ids[0] != targetName.ID {
		t.Errorf("expected one collapsed credit on %s, got %v", targetName.ID, ids)
	}
}

func TestConsume_WithinSameIdentity(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()

	ident, primary := mustCreate(t, svc, KindPerson, "Elliott Smith")
	outcome, err := svc.AddAlias(ctx, ident.ID, "Eliott Smith")
	if err != nil {
		t.Fatalf("AddAlias: %v", err)
	}

	song := insertSong(t, db, "Needle in the Hay")
	creditSong(t, db, song, outcome.NameID)

	if err := svc.Consume(ctx, outcome.NameID, primary.ID); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	if _, err := svc.GetName(ctx, outcome.NameID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected typo alias deleted, got %v", err)
	}
	ids := songCreditNameIDs(t, db, song)
	if len(ids) != 1 || ids[0] != primary.ID {
		t.Errorf("expected credit on primary, got %v", ids)
	}
	assertOnePrimary(t, svc, ident.ID)
}

func TestUnlinkAlias_SplitsWithCreditsIntact(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()

	// One identity wrongly holds two different artists' spellings.
	ident, primary := mustCreate(t, svc, KindPerson, "P!nk")
	outcome, err := svc.AddAlias(ctx, ident.ID, "Pink")
	if err != nil {
		t.Fatalf("AddAlias: %v", err)
	}

	song := insertSong(t, db, "A Girl Like You")
	creditSong(t, db, song, outcome.NameID)

	created, err := svc.UnlinkAlias(ctx, outcome.NameID)
	if err != nil {
		t.Fatalf("UnlinkAlias: %v", err)
	}
	if created.Kind != KindPerson {
		t.Errorf("expected new identity to inherit kind person, got %s", created.Kind)
	}

	// The unlinked name keeps its exact text and becomes the new primary.
	moved, err := svc.GetName(ctx, outcome.NameID)
	if err != nil {
		t.Fatalf("GetName: %v", err)
	}
	if moved.IdentityID != created.ID {
		t.Errorf("expected name under new identity, got %s", moved.IdentityID)
	}
	if moved.Text != "Pink" {
		t.Errorf("expected text preserved, got %q", moved.Text)
	}
	if !moved.IsPrimary {
		t.Error("expected unlinked name to be primary of its new identity")
	}

	// Credits follow the name; the old identity keeps its own primary.
	ids := songCreditNameIDs(t, db, song)
	if len(ids) != 1 || ids[0] != outcome.NameID {
		t.Errorf("expected credit to stay on unlinked name, got %v", ids)
	}
	oldPrimary := assertOnePrimary(t, svc, ident.ID)
	if oldPrimary.ID != primary.ID {
		t.Errorf("expected old identity to keep %q as primary, got %q", primary.Text, oldPrimary.Text)
	}
}

func TestUnlinkAlias_LastNameDeletesIdentity(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	ident, name := mustCreate(t, svc, KindPerson, "Aphex Twin")

	created, err := svc.UnlinkAlias(ctx, name.ID)
	if err != nil {
		t.Fatalf("UnlinkAlias: %v", err)
	}

	// No identity with zero names survives.
	if _, err := svc.GetIdentity(ctx, ident.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected emptied identity deleted, got %v", err)
	}
	assertOnePrimary(t, svc, created.ID)
}

func TestRename_Applied(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	ident, name := mustCreate(t, svc, KindGroup, "The Batles")

	outcome, err := svc.Rename(ctx, name.ID, "The Beatles")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if outcome.Status != RenameApplied {
		t.Fatalf("expected applied, got %s", outcome.Status)
	}

	renamed, err := svc.GetName(ctx, name.ID)
	if err != nil {
		t.Fatalf("GetName: %v", err)
	}
	if renamed.Text != "The Beatles" {
		t.Errorf("expected new text, got %q", renamed.Text)
	}
	if renamed.FoldKey != "the beatles" {
		t.Errorf("expected refolded key, got %q", renamed.FoldKey)
	}
	if renamed.SortKey != "beatles, the" {
		t.Errorf("expected rotated sort key, got %q", renamed.SortKey)
	}
	assertOnePrimary(t, svc, ident.ID)
}

func TestRename_CaseOnlyChange(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	_, name := mustCreate(t, svc, KindGroup, "queen")

	// A pure case change folds to the same key as the row itself; it must
	// apply in place, not collide with itself.
	outcome, err := svc.Rename(ctx, name.ID, "Queen")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if outcome.Status != RenameApplied {
		t.Fatalf("expected applied, got %s", outcome.Status)
	}

	renamed, err := svc.GetName(ctx, name.ID)
	if err != nil {
		t.Fatalf("GetName: %v", err)
	}
	if renamed.Text != "Queen" {
		t.Errorf("expected cased text, got %q", renamed.Text)
	}
}

func TestRename_CollisionNeverSilentlyMerges(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()

	// A double-space typo is a distinct spelling from the clean one.
	badIdent, badName := mustCreate(t, svc, KindPerson, "Tom  Waits")
	goodIdent, goodName := mustCreate(t, svc, KindPerson, "Tom Waits")

	song := insertSong(t, db, "Downtown Train")
	creditSong(t, db, song, badName.ID)

	outcome, err := svc.Rename(ctx, badName.ID, "Tom Waits")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if outcome.Status != RenameCollision {
		t.Fatalf("expected collision, got %s", outcome.Status)
	}
	if outcome.Collision == nil || outcome.Collision.NameID != goodName.ID {
		t.Fatalf("expected collision with %s, got %+v", goodName.ID, outcome.Collision)
	}

	// Nothing changed: both spellings and both identities are intact.
	unchanged, err := svc.GetName(ctx, badName.ID)
	if err != nil {
		t.Fatalf("GetName: %v", err)
	}
	if unchanged.Text != "Tom  Waits" {
		t.Errorf("expected text untouched after collision, got %q", unchanged.Text)
	}
	if _, err := svc.GetIdentity(ctx, badIdent.ID); err != nil {
		t.Errorf("expected source identity intact, got %v", err)
	}

	// Confirming consumes the typo spelling into the existing one.
	if err := svc.ConfirmRename(ctx, badName.ID, goodName.ID); err != nil {
		t.Fatalf("ConfirmRename: %v", err)
	}
	if _, err := svc.GetName(ctx, badName.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected typo spelling deleted, got %v", err)
	}
	if _, err := svc.GetIdentity(ctx, badIdent.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected typo identity deleted, got %v", err)
	}
	ids := songCreditNameIDs(t, db, song)
	if len(ids) != 1 || ids[0] != goodName.ID {
		t.Errorf("expected credit repointed to %s, got %v", goodName.ID, ids)
	}
	assertOnePrimary(t, svc, goodIdent.ID)
}

func TestAddAlias_FreeSpelling(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	ident, primary := mustCreate(t, svc, KindPerson, "David Bowie")

	outcome, err := svc.AddAlias(ctx, ident.ID, "Ziggy Stardust")
	if err != nil {
		t.Fatalf("AddAlias: %v", err)
	}
	if outcome.Status != AliasAdded {
		t.Fatalf("expected added, got %s", outcome.Status)
	}

	alias, err := svc.GetName(ctx, outcome.NameID)
	if err != nil {
		t.Fatalf("GetName: %v", err)
	}
	if alias.IsPrimary {
		t.Error("expected new alias to be non-primary")
	}
	got := assertOnePrimary(t, svc, ident.ID)
	if got.ID != primary.ID {
		t.Errorf("expected original primary to stay, got %q", got.Text)
	}
}

func TestAddAlias_AlreadyAttached(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	ident, primary := mustCreate(t, svc, KindPerson, "Madonna")

	outcome, err := svc.AddAlias(ctx, ident.ID, "MADONNA")
	if err != nil {
		t.Fatalf("AddAlias: %v", err)
	}
	if outcome.Status != AliasAdded || outcome.NameID != primary.ID {
		t.Errorf("expected no-op pointing at existing name, got %+v", outcome)
	}
}

func TestAddAlias_SilentMergeWithoutBaggage(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	ident, _ := mustCreate(t, svc, KindPerson, "Prince")
	other, otherName := mustCreate(t, svc, KindPerson, "TAFKAP")

	// The colliding spelling has no credits, so it folds in silently.
	outcome, err := svc.AddAlias(ctx, ident.ID, "tafkap")
	if err != nil {
		t.Fatalf("AddAlias: %v", err)
	}
	if outcome.Status != AliasMerged {
		t.Fatalf("expected merged, got %s", outcome.Status)
	}
	if outcome.NameID != otherName.ID {
		t.Errorf("expected merged name %s, got %s", otherName.ID, outcome.NameID)
	}

	if _, err := svc.GetIdentity(ctx, other.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected merged identity deleted, got %v", err)
	}
	names, err := svc.Names(ctx, ident.ID)
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("expected 2 names after merge, got %d", len(names))
	}
	assertOnePrimary(t, svc, ident.ID)
}

func TestAddAlias_BaggageNeedsConfirmation(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()

	ident, _ := mustCreate(t, svc, KindGroup, "Black Sabbath")
	other, otherName := mustCreate(t, svc, KindGroup, "Earth")

	song := insertSong(t, db, "The Rebel")
	creditSong(t, db, song, otherName.ID)

	outcome, err := svc.AddAlias(ctx, ident.ID, "Earth")
	if err != nil {
		t.Fatalf("AddAlias: %v", err)
	}
	if outcome.Status != AliasNeedsConfirm {
		t.Fatalf("expected needs_confirmation, got %s", outcome.Status)
	}
	if outcome.Collision == nil || outcome.Collision.CreditCount != 1 {
		t.Fatalf("expected collision with 1 credit, got %+v", outcome.Collision)
	}

	// Nothing merged yet.
	if _, err := svc.GetIdentity(ctx, other.ID); err != nil {
		t.Errorf("expected colliding identity intact, got %v", err)
	}

	if err := svc.ConfirmAddAlias(ctx, ident.ID, otherName.ID); err != nil {
		t.Fatalf("ConfirmAddAlias: %v", err)
	}
	if _, err := svc.GetIdentity(ctx, other.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected identity merged away, got %v", err)
	}

	// The credit still references the original spelling, now an alias here.
	merged, err := svc.GetName(ctx, otherName.ID)
	if err != nil {
		t.Fatalf("GetName: %v", err)
	}
	if merged.IdentityID != ident.ID {
		t.Errorf("expected name under %s, got %s", ident.ID, merged.IdentityID)
	}
	ids := songCreditNameIDs(t, db, song)
	if len(ids) != 1 || ids[0] != otherName.ID {
		t.Errorf("expected credit untouched, got %v", ids)
	}
	assertOnePrimary(t, svc, ident.ID)
}

func TestSetKind_ClearsInvalidMemberships(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	group, _ := mustCreate(t, svc, KindGroup, "Fugazi")
	person, _ := mustCreate(t, svc, KindPerson, "Ian MacKaye")

	if err := svc.AddMember(ctx, group.ID, person.ID); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	// Turning the group into a person drops its member links.
	if err := svc.SetKind(ctx, group.ID, KindPerson); err != nil {
		t.Fatalf("SetKind: %v", err)
	}
	members, err := svc.ListMembers(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("expected no members after kind change, got %d", len(members))
	}

	got, err := svc.GetIdentity(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if got.Kind != KindPerson {
		t.Errorf("expected person, got %s", got.Kind)
	}
}

func TestSearchNames(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	mustCreate(t, svc, KindGroup, "Sigur Rós")
	mustCreate(t, svc, KindGroup, "Sigur Rós Tribute Band")
	mustCreate(t, svc, KindGroup, "Mogwai")

	names, err := svc.SearchNames(ctx, "SIGUR")
	if err != nil {
		t.Fatalf("SearchNames: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(names))
	}

	names, err = svc.SearchNames(ctx, "slint")
	if err != nil {
		t.Fatalf("SearchNames: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no matches, got %d", len(names))
	}
}
