package detector

import (
	"testing"
	"time"

	"taskforge-sync-server/internal/domain"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func makeRev(revID, deviceID string, seq int64, at time.Time, fields domain.Fields) *domain.Revision {
	r := &domain.Revision{
		DocumentID: "doc1",
		RevisionID: revID,
		DeviceID:   deviceID,
		Sequence:   seq,
		Fields:     fields,
		ModifiedAt: at,
	}
	r.Checksum = r.ComputeChecksum()
	return r
}

func makeTombstone(revID, deviceID string, seq int64, at time.Time) *domain.Revision {
	r := makeRev(revID, deviceID, seq, at, domain.Fields{})
	r.Deleted = true
	r.Checksum = r.ComputeChecksum()
	return r
}

func TestDetect_SingleRevisionNoConflict(t *testing.T) {
	d := New()

	c, err := d.Detect("doc1", []*domain.Revision{
		makeRev("r1", "deviceX", 1, baseTime, domain.Fields{"title": domain.StringValue("Buy milk")}),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c != nil {
		t.Fatalf("expected no conflict, got %v", c.Type)
	}
}

func TestDetect_LinearHistoryNoConflict(t *testing.T) {
	d := New()

	c, err := d.Detect("doc1", []*domain.Revision{
		makeRev("r1", "deviceX", 1, baseTime, domain.Fields{"title": domain.StringValue("Buy milk")}),
		makeRev("r2", "deviceX", 2, baseTime.Add(time.Minute), domain.Fields{"title": domain.StringValue("Buy oat milk")}),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c != nil {
		t.Fatalf("expected no conflict for linear history, got %v", c.Type)
	}
}

func TestDetect_EditEdit(t *testing.T) {
	d := New()

	a := makeRev("r1", "deviceX", 1, baseTime.Add(10*time.Second), domain.Fields{
		"title":    domain.StringValue("Buy milk"),
		"priority": domain.StringValue("low"),
	})
	b := makeRev("r2", "deviceY", 1, baseTime.Add(12*time.Second), domain.Fields{
		"title":    domain.StringValue("Buy milk"),
		"priority": domain.StringValue("high"),
	})

	c, err := d.Detect("doc1", []*domain.Revision{a, b})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c == nil {
		t.Fatal("expected a conflict")
	}
	if c.Type != domain.ConflictEditEdit {
		t.Errorf("expected edit_edit, got %v", c.Type)
	}
	if len(c.ConflictingFields) != 1 || c.ConflictingFields[0] != "priority" {
		t.Errorf("expected conflicting fields [priority], got %v", c.ConflictingFields)
	}
	if c.Local.DeviceID == c.Remote.DeviceID {
		t.Error("expected contenders from distinct devices")
	}
}

func TestDetect_MergeCandidateForDisjointChanges(t *testing.T) {
	d := New()

	base := makeRev("r0", "deviceX", 1, baseTime, domain.Fields{
		"title":    domain.StringValue("Buy milk"),
		"due_date": domain.StringValue("2025-06-10"),
		"tags":     domain.ListValue(),
	})
	a := makeRev("r1", "deviceX", 2, baseTime.Add(time.Minute), domain.Fields{
		"title":    domain.StringValue("Buy milk"),
		"due_date": domain.StringValue("2025-06-12"),
		"tags":     domain.ListValue(),
	})
	b := makeRev("r2", "deviceY", 2, baseTime.Add(2*time.Minute), domain.Fields{
		"title":    domain.StringValue("Buy milk"),
		"due_date": domain.StringValue("2025-06-10"),
		"tags":     domain.ListValue(domain.ListItem{Key: "urgent", Value: domain.StringValue("urgent")}),
	})

	c, err := d.Detect("doc1", []*domain.Revision{base, a, b})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c == nil {
		t.Fatal("expected a conflict")
	}
	if c.Type != domain.ConflictMergeCandidate {
		t.Errorf("expected merge_candidate, got %v", c.Type)
	}
	if c.Base == nil || c.Base.RevisionID != "r0" {
		t.Errorf("expected base r0, got %v", c.Base)
	}
}

func TestDetect_OverlappingChangesAreEditEdit(t *testing.T) {
	d := New()

	base := makeRev("r0", "deviceX", 1, baseTime, domain.Fields{
		"title": domain.StringValue("Buy milk"),
	})
	a := makeRev("r1", "deviceX", 2, baseTime.Add(time.Minute), domain.Fields{
		"title": domain.StringValue("Buy oat milk"),
	})
	b := makeRev("r2", "deviceY", 2, baseTime.Add(2*time.Minute), domain.Fields{
		"title": domain.StringValue("Buy soy milk"),
	})

	c, err := d.Detect("doc1", []*domain.Revision{base, a, b})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c == nil || c.Type != domain.ConflictEditEdit {
		t.Fatalf("expected edit_edit, got %v", c)
	}
}

func TestDetect_IdenticalConcurrentEditsNoConflict(t *testing.T) {
	d := New()

	fields := domain.Fields{"title": domain.StringValue("Buy milk")}
	a := makeRev("r1", "deviceX", 1, baseTime, fields)
	b := makeRev("r2", "deviceY", 1, baseTime.Add(time.Second), fields)

	c, err := d.Detect("doc1", []*domain.Revision{a, b})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c != nil {
		t.Fatalf("expected no conflict for identical edits, got %v", c.Type)
	}
}

func TestDetect_EditDelete(t *testing.T) {
	d := New()

	base := makeRev("r0", "deviceX", 1, baseTime, domain.Fields{
		"title":       domain.StringValue("Buy milk"),
		"description": domain.StringValue("2 liters"),
	})
	tomb := makeTombstone("r1", "deviceX", 2, baseTime.Add(time.Minute))
	edit := makeRev("r2", "deviceY", 2, baseTime.Add(2*time.Minute), domain.Fields{
		"title":       domain.StringValue("Buy milk"),
		"description": domain.StringValue("3 liters"),
	})

	c, err := d.Detect("doc1", []*domain.Revision{base, tomb, edit})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c == nil || c.Type != domain.ConflictEditDelete {
		t.Fatalf("expected edit_delete, got %v", c)
	}
	if len(c.ConflictingFields) != 1 || c.ConflictingFields[0] != "description" {
		t.Errorf("expected conflicting fields from the live edit, got %v", c.ConflictingFields)
	}
}

func TestDetect_BothDeletedNoConflict(t *testing.T) {
	d := New()

	c, err := d.Detect("doc1", []*domain.Revision{
		makeTombstone("r1", "deviceX", 1, baseTime),
		makeTombstone("r2", "deviceY", 1, baseTime.Add(time.Second)),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c != nil {
		t.Fatalf("expected no conflict for double deletion, got %v", c.Type)
	}
}

func TestDetect_ChecksumMismatchOverridesEverything(t *testing.T) {
	d := New()

	base := makeRev("r0", "deviceX", 1, baseTime, domain.Fields{"title": domain.StringValue("Buy milk")})
	tomb := makeTombstone("r1", "deviceX", 2, baseTime.Add(time.Minute))
	corrupted := makeRev("r2", "deviceY", 2, baseTime.Add(2*time.Minute), domain.Fields{
		"title": domain.StringValue("Buy milk"),
	})
	corrupted.Checksum = "deadbeef"

	c, err := d.Detect("doc1", []*domain.Revision{base, tomb, corrupted})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c == nil || c.Type != domain.ConflictChecksumMismatch {
		t.Fatalf("expected checksum_mismatch to take precedence, got %v", c)
	}
}

func TestDetect_MalformedRevisionIsIntegrityConflict(t *testing.T) {
	d := New()

	good := makeRev("r1", "deviceX", 1, baseTime, domain.Fields{"title": domain.StringValue("Buy milk")})
	bad := makeRev("r2", "", 1, baseTime.Add(time.Second), domain.Fields{"title": domain.StringValue("Buy milk")})

	c, err := d.Detect("doc1", []*domain.Revision{good, bad})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c == nil || c.Type != domain.ConflictChecksumMismatch {
		t.Fatalf("expected integrity conflict for malformed revision, got %v", c)
	}
}

func TestDetect_SequenceGapIsVersionMismatch(t *testing.T) {
	d := New()

	base := makeRev("r0", "deviceX", 1, baseTime, domain.Fields{"title": domain.StringValue("Buy milk")})
	a := makeRev("r1", "deviceX", 4, baseTime.Add(time.Minute), domain.Fields{"title": domain.StringValue("Buy oat milk")})
	b := makeRev("r2", "deviceY", 4, baseTime.Add(2*time.Minute), domain.Fields{"title": domain.StringValue("Buy soy milk")})

	c, err := d.Detect("doc1", []*domain.Revision{base, a, b})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c == nil || c.Type != domain.ConflictVersionMismatch {
		t.Fatalf("expected version_mismatch, got %v", c)
	}
}

func TestDetect_SequenceGapWithSingleHead(t *testing.T) {
	d := New()

	// seq 2 never arrived; the surviving history only looks linear
	a := makeRev("r1", "deviceX", 1, baseTime, domain.Fields{"title": domain.StringValue("Buy milk")})
	b := makeRev("r2", "deviceX", 3, baseTime.Add(time.Minute), domain.Fields{"title": domain.StringValue("Buy oat milk")})

	c, err := d.Detect("doc1", []*domain.Revision{a, b})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c == nil || c.Type != domain.ConflictVersionMismatch {
		t.Fatalf("expected version_mismatch for a gapped single-head history, got %v", c)
	}
	if c.Remote == nil || c.Remote.RevisionID != "r2" {
		t.Errorf("expected the head as remote, got %v", c.Remote)
	}
	if c.Local == nil || c.Local.RevisionID != "r1" {
		t.Errorf("expected the newest prior revision as local, got %v", c.Local)
	}
	if superseded := c.SupersededIDs(); len(superseded) != 2 {
		t.Errorf("expected both revisions superseded, got %v", superseded)
	}
}

func TestDetect_PairwiseReductionKeepsAllContenders(t *testing.T) {
	d := New()

	base := makeRev("r0", "deviceA", 1, baseTime, domain.Fields{"title": domain.StringValue("Buy milk")})
	revs := []*domain.Revision{
		base,
		makeRev("r1", "deviceA", 2, baseTime.Add(1*time.Minute), domain.Fields{"title": domain.StringValue("v1")}),
		makeRev("r2", "deviceB", 2, baseTime.Add(2*time.Minute), domain.Fields{"title": domain.StringValue("v2")}),
		makeRev("r3", "deviceC", 2, baseTime.Add(3*time.Minute), domain.Fields{"title": domain.StringValue("v3")}),
	}

	c, err := d.Detect("doc1", revs)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c == nil {
		t.Fatal("expected a conflict")
	}
	if len(c.ContenderIDs) != 3 {
		t.Errorf("expected all 3 contenders tracked, got %v", c.ContenderIDs)
	}
	if c.Remote.RevisionID != "r3" {
		t.Errorf("expected newest contender as remote, got %s", c.Remote.RevisionID)
	}
	if c.Local.RevisionID != "r2" {
		t.Errorf("expected second newest from distinct device as local, got %s", c.Local.RevisionID)
	}
	superseded := c.SupersededIDs()
	if len(superseded) != 4 {
		t.Errorf("expected base plus contenders superseded, got %v", superseded)
	}
}
