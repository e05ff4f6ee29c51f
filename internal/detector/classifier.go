package detector

import (
	"errors"
	"time"

	"taskforge-sync-server/internal/domain"
	"taskforge-sync-server/internal/strategy"
)

// FieldClasses buckets document fields for severity scoring. Anything not
// listed counts as bookkeeping.
type FieldClasses struct {
	Identity    []string
	Scheduling  []string
	Descriptive []string
}

func DefaultFieldClasses() FieldClasses {
	return FieldClasses{
		Identity:    []string{"title", "name", "status"},
		Scheduling:  []string{"due_date", "priority", "completed"},
		Descriptive: []string{"description", "notes", "tags", "subtasks"},
	}
}

// Classifier assigns severity and decides auto-resolution eligibility. When a
// conflict is auto-resolvable it also computes the suggested resolution
// eagerly, so consumers can apply it without recomputation.
type Classifier struct {
	classes        FieldClasses
	newerThreshold time.Duration
}

func NewClassifier(classes FieldClasses, newerThreshold time.Duration) *Classifier {
	return &Classifier{classes: classes, newerThreshold: newerThreshold}
}

func (cl *Classifier) Classify(c *domain.Conflict) {
	c.Severity = cl.severity(c)
	c.AutoResolvable = cl.autoResolvable(c)
	c.SuggestedResolution = nil

	if !c.AutoResolvable {
		c.Status = domain.StatusAwaitingDecision
		return
	}

	suggestion, err := cl.suggest(c)
	if err != nil {
		// a suggestion we cannot compute safely is not auto-resolvable
		c.AutoResolvable = false
		c.Status = domain.StatusAwaitingDecision
		return
	}
	c.SuggestedResolution = suggestion
}

func (cl *Classifier) severity(c *domain.Conflict) domain.Severity {
	// data-integrity and ordering problems are always critical
	if c.Type == domain.ConflictChecksumMismatch || c.Type == domain.ConflictVersionMismatch {
		return domain.SeverityCritical
	}

	fields := make(map[string]bool, len(c.ConflictingFields))
	for _, name := range c.ConflictingFields {
		fields[name] = true
	}
	if anyIn(fields, cl.classes.Identity) {
		return domain.SeverityCritical
	}
	if anyIn(fields, cl.classes.Scheduling) {
		return domain.SeverityHigh
	}
	if anyIn(fields, cl.classes.Descriptive) {
		return domain.SeverityMedium
	}
	return domain.SeverityLow
}

func (cl *Classifier) autoResolvable(c *domain.Conflict) bool {
	switch c.Type {
	case domain.ConflictMergeCandidate:
		// disjoint field changes merge without loss
		return true
	case domain.ConflictEditEdit:
		if c.Severity == domain.SeverityLow {
			return true
		}
		if c.Severity == domain.SeverityCritical {
			return false
		}
		return cl.unambiguouslyNewer(c.Local, c.Remote)
	default:
		// edit-delete, version and checksum mismatches always need a decision
		return false
	}
}

// unambiguouslyNewer reports whether one side's edit is newer than the other
// by more than the configured threshold.
func (cl *Classifier) unambiguouslyNewer(local, remote *domain.Revision) bool {
	if cl.newerThreshold <= 0 {
		return false
	}
	gap := local.ModifiedAt.Sub(remote.ModifiedAt)
	if gap < 0 {
		gap = -gap
	}
	return gap > cl.newerThreshold
}

// suggest computes the eager resolution via the field-level merge. For
// edit-edit conflicts eligible through the newer-edit rule, fields the merge
// escalates are filled from the last-write-wins winner.
func (cl *Classifier) suggest(c *domain.Conflict) (*domain.Merged, error) {
	merge := &strategy.FieldMerge{}
	merged, err := merge.Apply(c)
	if err == nil {
		return merged, nil
	}

	var unres *strategy.UnresolvedFieldsError
	if !errors.As(err, &unres) || c.Type != domain.ConflictEditEdit {
		return nil, err
	}

	winner := (&strategy.LastWriteWins{}).Winner(c.Local, c.Remote)
	out := unres.Partial
	for _, name := range unres.Fields {
		if v, ok := winner.Fields[name]; ok {
			out[name] = v.Clone()
		} else {
			delete(out, name)
		}
	}
	return &domain.Merged{Fields: out}, nil
}

func anyIn(set map[string]bool, names []string) bool {
	for _, name := range names {
		if set[name] {
			return true
		}
	}
	return false
}
