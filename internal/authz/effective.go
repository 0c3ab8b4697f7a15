// Copyright 2026 The SalonHub Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz

import (
	"cmp"
	"slices"
)

// Match is the outcome of checking an effective set for one (resource, action).
type Match int

const (
	// MatchNone means no held action on the resource dominates the required one.
	MatchNone Match = iota
	// MatchConditionFailed means dominating grants exist but every one of
	// them carries conditions and none matched the supplied context.
	MatchConditionFailed
	// MatchGranted means the basic check passed.
	MatchGranted
)

type effectiveEntry struct {
	id            string
	resource      string
	action        Action
	unconditional bool
	conditions    []Conditions
	seen          map[string]struct{}
}

// EffectivePermissionSet is the deduplicated union of a principal's live
// grants, keyed by (resource, action). When a pair arrives more than once an
// unconditional occurrence wins; otherwise the distinct condition sets are kept
// and ORed at check time. The zero value is empty and ready to use.
type EffectivePermissionSet struct {
	entries map[CatalogEntry]*effectiveEntry
}

// NewEffectivePermissionSet merges permission lists into one set.
func NewEffectivePermissionSet(lists ...[]Permission) *EffectivePermissionSet {
	s := &EffectivePermissionSet{}
	for _, list := range lists {
		for _, p := range list {
			s.Add(p)
		}
	}
	return s
}

// Add merges one permission into the set. Permissions with an unknown action
// are ignored.
func (s *EffectivePermissionSet) Add(p Permission) {
	if !p.Action.Valid() {
		return
	}
	if s.entries == nil {
		s.entries = make(map[CatalogEntry]*effectiveEntry)
	}
	key := CatalogEntry{Resource: p.Resource, Action: p.Action}
	e, ok := s.entries[key]
	if !ok {
		e = &effectiveEntry{id: p.ID, resource: p.Resource, action: p.Action}
		s.entries[key] = e
	}
	if e.unconditional {
		return
	}
	if len(p.Conditions) == 0 {
		e.unconditional = true
		e.conditions = nil
		e.seen = nil
		return
	}
	ck := p.Conditions.Key()
	if e.seen == nil {
		e.seen = make(map[string]struct{})
	}
	if _, dup := e.seen[ck]; dup {
		return
	}
	e.seen[ck] = struct{}{}
	e.conditions = append(e.conditions, p.Conditions.Clone())
}

// Len returns the number of distinct (resource, action) pairs.
func (s *EffectivePermissionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Check runs the hierarchy and condition steps for one request. A nil attrs
// means the caller supplied no context, in which case conditions are skipped.
func (s *EffectivePermissionSet) Check(resource string, required Action, attrs Attributes) Match {
	if s == nil {
		return MatchNone
	}
	dominated := false
	for key, e := range s.entries {
		if key.Resource != resource || !key.Action.Satisfies(required) {
			continue
		}
		dominated = true
		if e.unconditional || attrs == nil {
			return MatchGranted
		}
		for _, c := range e.conditions {
			if c.Matches(attrs) {
				return MatchGranted
			}
		}
	}
	if dominated {
		return MatchConditionFailed
	}
	return MatchNone
}

// AllowsUnconditionally reports whether an unconditional grant on resource
// dominates the required action.
func (s *EffectivePermissionSet) AllowsUnconditionally(resource string, required Action) bool {
	if s == nil {
		return false
	}
	for key, e := range s.entries {
		if key.Resource == resource && e.unconditional && key.Action.Satisfies(required) {
			return true
		}
	}
	return false
}

// Permissions flattens the set, ordered by resource then action. A pair held
// under several condition sets yields one Permission per set.
func (s *EffectivePermissionSet) Permissions() []Permission {
	if s == nil {
		return []Permission{}
	}
	out := make([]Permission, 0, len(s.entries))
	for _, e := range s.entries {
		if e.unconditional {
			out = append(out, Permission{ID: e.id, Resource: e.resource, Action: e.action})
			continue
		}
		for _, c := range e.conditions {
			out = append(out, Permission{ID: e.id, Resource: e.resource, Action: e.action, Conditions: c.Clone()})
		}
	}
	slices.SortFunc(out, func(a, b Permission) int {
		return cmp.Or(
			cmp.Compare(a.Resource, b.Resource),
			cmp.Compare(a.Action.Level(), b.Action.Level()),
			cmp.Compare(a.Conditions.Key(), b.Conditions.Key()),
		)
	})
	return out
}
