package strategy

import (
	"errors"
	"sort"

	"taskforge-sync-server/internal/domain"
)

// FieldMerge performs a three-way merge against the conflict's baseline.
// Fields changed on only one side take that side's value; fields both sides
// changed to the same value take it; list fields union-merge by identity key;
// counter fields take the maximum. Fields both sides changed to different
// values are returned in an UnresolvedFieldsError for per-field escalation.
type FieldMerge struct{}

func (s *FieldMerge) Name() domain.ResolutionStrategy {
	return domain.StrategyFieldMerge
}

func (s *FieldMerge) Apply(c *domain.Conflict) (*domain.Merged, error) {
	local, remote := c.Local, c.Remote
	if local == nil || remote == nil {
		return nil, errors.New("field merge needs both contending revisions")
	}
	if local.Deleted || remote.Deleted {
		return nil, ErrTombstoneContender
	}

	var baseFields domain.Fields
	if c.Base != nil {
		baseFields = c.Base.Fields
	}

	out := make(domain.Fields)
	var unresolved []string

	for _, name := range unionNames(baseFields, local.Fields, remote.Fields) {
		bv, hasBase := baseFields[name]
		lv, hasLocal := local.Fields[name]
		rv, hasRemote := remote.Fields[name]

		localChanged := changed(hasBase, bv, hasLocal, lv)
		remoteChanged := changed(hasBase, bv, hasRemote, rv)

		switch {
		case !localChanged && !remoteChanged:
			if hasBase {
				out[name] = bv.Clone()
			}

		case localChanged && !remoteChanged:
			if hasLocal {
				out[name] = lv.Clone()
			}
			// field removed locally: omit

		case !localChanged && remoteChanged:
			if hasRemote {
				out[name] = rv.Clone()
			}

		default: // both changed
			if hasLocal && hasRemote && lv.Equal(rv) {
				out[name] = lv.Clone()
				continue
			}
			if hasLocal && hasRemote && lv.Kind == domain.FieldCounter && rv.Kind == domain.FieldCounter {
				out[name] = domain.CounterValue(maxFloat(lv.Num, rv.Num))
				continue
			}
			if hasLocal && hasRemote && lv.Kind == domain.FieldList && rv.Kind == domain.FieldList {
				var baseList []domain.ListItem
				if hasBase && bv.Kind == domain.FieldList {
					baseList = bv.List
				}
				merged, ok := mergeLists(baseList, lv.List, rv.List)
				if ok {
					out[name] = domain.ListValue(merged...)
					continue
				}
			}
			unresolved = append(unresolved, name)
		}
	}

	if len(unresolved) > 0 {
		sort.Strings(unresolved)
		return nil, &UnresolvedFieldsError{Fields: unresolved, Partial: out}
	}
	return &domain.Merged{Fields: out}, nil
}

func changed(hasBase bool, base domain.FieldValue, has bool, v domain.FieldValue) bool {
	if hasBase != has {
		return true
	}
	if !has {
		return false
	}
	return !v.Equal(base)
}

// mergeLists union-merges two list values by identity key. Ordering keeps
// local's items first, then remote-only items in remote order. It reports
// !ok on ambiguous duplicates: both sides carrying the same key with
// different content that neither inherited from the baseline.
func mergeLists(base, local, remote []domain.ListItem) ([]domain.ListItem, bool) {
	baseByKey := itemsByKey(base)
	localByKey := itemsByKey(local)
	remoteByKey := itemsByKey(remote)

	// pick decides one identity key: the item to keep (keep=false means the
	// key was deleted), and ok=false on an ambiguous duplicate.
	pick := func(key string) (item domain.ListItem, keep, ok bool) {
		li, inLocal := localByKey[key]
		ri, inRemote := remoteByKey[key]
		bi, inBase := baseByKey[key]

		switch {
		case inLocal && inRemote:
			if li.Value.Equal(ri.Value) {
				return li, true, true
			}
			if inBase && li.Value.Equal(bi.Value) {
				return ri, true, true
			}
			if inBase && ri.Value.Equal(bi.Value) {
				return li, true, true
			}
			return domain.ListItem{}, false, false // ambiguous duplicate
		case inLocal:
			if inBase && li.Value.Equal(bi.Value) {
				return domain.ListItem{}, false, true // remote deleted it
			}
			if inBase {
				return domain.ListItem{}, false, false // local edited, remote deleted
			}
			return li, true, true // local addition
		case inRemote:
			if inBase && ri.Value.Equal(bi.Value) {
				return domain.ListItem{}, false, true
			}
			if inBase {
				return domain.ListItem{}, false, false
			}
			return ri, true, true
		default:
			return domain.ListItem{}, false, true
		}
	}

	var out []domain.ListItem
	seen := make(map[string]bool)
	for _, src := range [][]domain.ListItem{local, remote} {
		for _, item := range src {
			if seen[item.Key] {
				continue
			}
			seen[item.Key] = true
			picked, keep, ok := pick(item.Key)
			if !ok {
				return nil, false
			}
			if keep {
				out = append(out, cloneItem(picked))
			}
		}
	}
	return out, true
}

func itemsByKey(items []domain.ListItem) map[string]domain.ListItem {
	m := make(map[string]domain.ListItem, len(items))
	for _, item := range items {
		m[item.Key] = item
	}
	return m
}

func cloneItem(item domain.ListItem) domain.ListItem {
	return domain.ListItem{Key: item.Key, Value: item.Value.Clone()}
}

func unionNames(sets ...domain.Fields) []string {
	seen := make(map[string]bool)
	for _, set := range sets {
		for name := range set {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
