package detector

import (
	"sort"
	"time"

	"taskforge-sync-server/internal/domain"

	"github.com/google/uuid"
)

// Detector classifies divergence in a document's known revision set. It never
// mutates anything; the same input always yields the same conflict shape.
type Detector struct{}

func New() *Detector {
	return &Detector{}
}

// Detect produces zero or one conflict for the given revision set.
//
// Classification order: integrity problems first (a malformed revision or a
// checksum that does not match its own fields taints everything else), then
// sequence gaps, then tombstone-vs-edit, then field comparison.
func (d *Detector) Detect(documentID string, revs []*domain.Revision) (*domain.Conflict, error) {
	if len(revs) < 2 {
		return nil, nil
	}

	sorted := make([]*domain.Revision, len(revs))
	copy(sorted, revs)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		if !a.ModifiedAt.Equal(b.ModifiedAt) {
			return a.ModifiedAt.Before(b.ModifiedAt)
		}
		return a.DeviceID < b.DeviceID
	})

	if c := d.integrityConflict(documentID, sorted); c != nil {
		return c, nil
	}

	base, contenders := splitBaseline(sorted)

	// A hole in the sequence range flags the set even when only one head
	// remains: the missing intermediate revision means the visible history
	// cannot be trusted as linear.
	if sequenceGap(sorted) {
		local, remote := gapPair(sorted, contenders)
		return d.newConflict(documentID, domain.ConflictVersionMismatch, base, local, remote, contenders,
			domain.DiffFields(local, remote)), nil
	}

	// Linear history: every sequence held by exactly one revision means each
	// is a descendant of the previous; nothing diverged.
	if len(contenders) < 2 {
		return nil, nil
	}

	local, remote := reduce(contenders)

	localDeleted, remoteDeleted := local.Deleted, remote.Deleted
	if localDeleted && remoteDeleted {
		// both devices deleted the document; nothing to reconcile
		return nil, nil
	}
	if localDeleted || remoteDeleted {
		live := local
		if localDeleted {
			live = remote
		}
		return d.newConflict(documentID, domain.ConflictEditDelete, base, local, remote, contenders,
			live.ChangedFields(base)), nil
	}

	diff := domain.DiffFields(local, remote)
	if len(diff) == 0 {
		// concurrent but identical edits
		return nil, nil
	}

	ctype := domain.ConflictEditEdit
	if base != nil && disjointChanges(base, local, remote) {
		ctype = domain.ConflictMergeCandidate
	}
	return d.newConflict(documentID, ctype, base, local, remote, contenders, diff), nil
}

// integrityConflict reports the first malformed or checksum-violating
// revision. Integrity overrides every other classification.
func (d *Detector) integrityConflict(documentID string, sorted []*domain.Revision) *domain.Conflict {
	for _, rev := range sorted {
		if rev.Malformed() == nil && rev.ChecksumValid() {
			continue
		}
		var other *domain.Revision
		for i := len(sorted) - 1; i >= 0; i-- {
			if sorted[i] != rev {
				other = sorted[i]
				break
			}
		}
		return d.newConflict(documentID, domain.ConflictChecksumMismatch, nil, rev, other, sorted,
			domain.DiffFields(rev, other))
	}
	return nil
}

func (d *Detector) newConflict(documentID string, ctype domain.ConflictType, base, local, remote *domain.Revision, contenders []*domain.Revision, conflicting []string) *domain.Conflict {
	ids := make([]string, 0, len(contenders))
	for _, rev := range contenders {
		ids = append(ids, rev.RevisionID)
	}
	sort.Strings(ids)

	return &domain.Conflict{
		ID:                uuid.New().String(),
		DocumentID:        documentID,
		Type:              ctype,
		Status:            domain.StatusDetected,
		Base:              base,
		Local:             local,
		Remote:            remote,
		ContenderIDs:      ids,
		ConflictingFields: conflicting,
		DetectedAt:        time.Now(),
	}
}

// splitBaseline separates the common baseline from the concurrent heads. The
// baseline is the unique newest revision every contender descends from; the
// contenders are all revisions sharing the highest sequence.
func splitBaseline(sorted []*domain.Revision) (*domain.Revision, []*domain.Revision) {
	maxSeq := sorted[len(sorted)-1].Sequence

	var contenders []*domain.Revision
	for _, rev := range sorted {
		if rev.Sequence == maxSeq {
			contenders = append(contenders, rev)
		}
	}

	var base *domain.Revision
	for _, rev := range sorted {
		if rev.Sequence < maxSeq {
			if base == nil || rev.Sequence > base.Sequence {
				base = rev
			} else if rev.Sequence == base.Sequence {
				// two revisions at the baseline sequence: ancestry is ambiguous
				return nil, contenders
			}
		}
	}
	return base, contenders
}

// sequenceGap reports a hole in the contiguous sequence range, meaning an
// intermediate revision never arrived and the baseline cannot be trusted.
func sequenceGap(sorted []*domain.Revision) bool {
	prev := sorted[0].Sequence
	for _, rev := range sorted[1:] {
		if rev.Sequence > prev+1 {
			return true
		}
		prev = rev.Sequence
	}
	return false
}

// gapPair picks the conflict pair for a gapped sequence range. With two or
// more heads the usual reduction applies; with a single head the pair is the
// head against the newest revision before it.
func gapPair(sorted []*domain.Revision, contenders []*domain.Revision) (local, remote *domain.Revision) {
	if len(contenders) >= 2 {
		return reduce(contenders)
	}
	return sorted[len(sorted)-2], sorted[len(sorted)-1]
}

// reduce picks the two most recent contenders from distinct devices as the
// conflict pair. Local is the earlier of the two, remote the later.
func reduce(contenders []*domain.Revision) (local, remote *domain.Revision) {
	ordered := make([]*domain.Revision, len(contenders))
	copy(ordered, contenders)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.ModifiedAt.Equal(b.ModifiedAt) {
			return a.ModifiedAt.After(b.ModifiedAt)
		}
		return a.DeviceID > b.DeviceID
	})

	remote = ordered[0]
	for _, rev := range ordered[1:] {
		if rev.DeviceID != remote.DeviceID {
			local = rev
			break
		}
	}
	if local == nil {
		local = ordered[1]
	}
	return local, remote
}

func disjointChanges(base, local, remote *domain.Revision) bool {
	localChanged := local.ChangedFields(base)
	remoteSet := make(map[string]bool)
	for _, name := range remote.ChangedFields(base) {
		remoteSet[name] = true
	}
	for _, name := range localChanged {
		if remoteSet[name] {
			// both touched it; identical values were already filtered out of
			// the diff, so any shared name with differing values is overlap
			lv, hasL := local.Fields[name]
			rv, hasR := remote.Fields[name]
			if hasL != hasR || (hasL && !lv.Equal(rv)) {
				return false
			}
		}
	}
	return true
}
