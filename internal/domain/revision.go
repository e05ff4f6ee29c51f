package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// Revision is one immutable snapshot of a document as seen by the sync layer.
// Sequence is a per-document counter assigned by the record store; it is
// informative locally but carries no cross-device ordering.
type Revision struct {
	DocumentID string    `json:"document_id"`
	RevisionID string    `json:"revision_id"`
	DeviceID   string    `json:"device_id"`
	Sequence   int64     `json:"sequence"`
	Fields     Fields    `json:"fields"`
	ModifiedAt time.Time `json:"modified_at"`
	Checksum   string    `json:"checksum"`
	Deleted    bool      `json:"deleted"`
}

func (r *Revision) ComputeChecksum() string {
	sum := sha256.Sum256(r.Fields.Canonical())
	return hex.EncodeToString(sum[:])
}

func (r *Revision) ChecksumValid() bool {
	return r.Checksum == r.ComputeChecksum()
}

// Malformed reports a structural problem that makes the revision untrustworthy.
func (r *Revision) Malformed() error {
	if r.DocumentID == "" {
		return fmt.Errorf("revision missing document id")
	}
	if r.RevisionID == "" {
		return fmt.Errorf("revision missing revision id")
	}
	if r.DeviceID == "" {
		return fmt.Errorf("revision missing device id")
	}
	if r.ModifiedAt.IsZero() {
		return fmt.Errorf("revision missing modification time")
	}
	for name, v := range r.Fields {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	return nil
}

func (r *Revision) Clone() *Revision {
	out := *r
	out.Fields = r.Fields.Clone()
	return &out
}

// ChangedFields lists field names added, removed or altered relative to base.
// A nil base means no common ancestor is known and every field counts as changed.
func (r *Revision) ChangedFields(base *Revision) []string {
	if base == nil {
		names := make([]string, 0, len(r.Fields))
		for name := range r.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	}

	set := make(map[string]bool)
	for name, v := range r.Fields {
		bv, ok := base.Fields[name]
		if !ok || !v.Equal(bv) {
			set[name] = true
		}
	}
	for name := range base.Fields {
		if _, ok := r.Fields[name]; !ok {
			set[name] = true
		}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DiffFields lists field names present with different values in a and b,
// including fields only one of them carries.
func DiffFields(a, b *Revision) []string {
	set := make(map[string]bool)
	for name, av := range a.Fields {
		bv, ok := b.Fields[name]
		if !ok || !av.Equal(bv) {
			set[name] = true
		}
	}
	for name := range b.Fields {
		if _, ok := a.Fields[name]; !ok {
			set[name] = true
		}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldSpec constrains one document field for structural validation.
type FieldSpec struct {
	Kind     FieldKind
	Required bool
}

// Schema is the structural contract a merged document must satisfy before it
// can be written back, the same checks the record store applies to any write.
type Schema map[string]FieldSpec

func (s Schema) Validate(fields Fields) error {
	for name, spec := range s {
		v, ok := fields[name]
		if !ok {
			if spec.Required {
				return fmt.Errorf("required field %q is missing", name)
			}
			continue
		}
		if v.Kind != spec.Kind {
			return fmt.Errorf("field %q has kind %q, want %q", name, v.Kind, spec.Kind)
		}
	}
	for name, v := range fields {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	return nil
}

// TaskSchema is the default schema for the task records this service syncs.
func TaskSchema() Schema {
	return Schema{
		"title":           {Kind: FieldString, Required: true},
		"status":          {Kind: FieldString},
		"priority":        {Kind: FieldString},
		"due_date":        {Kind: FieldString},
		"completed":       {Kind: FieldBool},
		"completed_count": {Kind: FieldCounter},
		"description":     {Kind: FieldString},
		"notes":           {Kind: FieldString},
		"tags":            {Kind: FieldList},
		"subtasks":        {Kind: FieldList},
	}
}
