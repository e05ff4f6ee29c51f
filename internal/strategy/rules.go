package strategy

import (
	"errors"
	"sort"

	"taskforge-sync-server/internal/domain"
)

// RuleSet resolves fields by an ordered list of user-defined rules, evaluated
// top-down; the first rule matching a field wins. Fields no rule matches fall
// through to the field-level merge.
type RuleSet struct {
	Rules []domain.MergeRule
}

func (s *RuleSet) Name() domain.ResolutionStrategy {
	return domain.StrategyRuleSet
}

func (s *RuleSet) Apply(c *domain.Conflict) (*domain.Merged, error) {
	local, remote := c.Local, c.Remote
	if local == nil || remote == nil {
		return nil, errors.New("rule set needs both contending revisions")
	}
	if local.Deleted || remote.Deleted {
		return nil, ErrTombstoneContender
	}

	decided := make(domain.Fields)
	for _, name := range unionNames(local.Fields, remote.Fields) {
		for _, rule := range s.Rules {
			if rule.Field != name {
				continue
			}
			if !s.matches(rule.Condition, name, c) {
				continue
			}
			if v, ok := s.act(rule.Action, name, c); ok {
				decided[name] = v
			}
			break // first matching rule wins, even when the action yields nothing
		}
	}

	merged, err := (&FieldMerge{}).Apply(c)
	if err != nil {
		var unres *UnresolvedFieldsError
		if !errors.As(err, &unres) {
			return nil, err
		}
		// rules may have decided the escalated fields
		var remaining []string
		for _, name := range unres.Fields {
			if _, ok := decided[name]; !ok {
				remaining = append(remaining, name)
			}
		}
		if len(remaining) > 0 {
			sort.Strings(remaining)
			return nil, &UnresolvedFieldsError{Fields: remaining, Partial: unres.Partial}
		}
		merged = &domain.Merged{Fields: unres.Partial}
	}

	for name, v := range decided {
		merged.Fields[name] = v.Clone()
	}
	return merged, nil
}

func (s *RuleSet) matches(cond domain.RuleCondition, name string, c *domain.Conflict) bool {
	lv, hasLocal := c.Local.Fields[name]
	rv, hasRemote := c.Remote.Fields[name]

	switch cond {
	case domain.ConditionAlways:
		return true
	case domain.ConditionDiffers:
		if hasLocal != hasRemote {
			return true
		}
		return hasLocal && !lv.Equal(rv)
	case domain.ConditionOneEmpty:
		localEmpty := !hasLocal || lv.IsEmpty()
		remoteEmpty := !hasRemote || rv.IsEmpty()
		return localEmpty != remoteEmpty
	default:
		return false
	}
}

func (s *RuleSet) act(action domain.RuleAction, name string, c *domain.Conflict) (domain.FieldValue, bool) {
	lv, hasLocal := c.Local.Fields[name]
	rv, hasRemote := c.Remote.Fields[name]

	switch action {
	case domain.ActionPreferNewer:
		winner := (&LastWriteWins{}).Winner(c.Local, c.Remote)
		v, ok := winner.Fields[name]
		return v, ok
	case domain.ActionPreferNonEmpty:
		if hasLocal && !lv.IsEmpty() {
			return lv, true
		}
		return rv, hasRemote
	case domain.ActionPreferLocal:
		return lv, hasLocal
	case domain.ActionPreferRemote:
		return rv, hasRemote
	case domain.ActionPreferMax:
		if !hasLocal {
			return rv, hasRemote
		}
		if !hasRemote {
			return lv, true
		}
		if lv.Num >= rv.Num {
			return lv, true
		}
		return rv, true
	default:
		return domain.FieldValue{}, false
	}
}
