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
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a scalar used in conditions and request attributes: a string, a
// number, a bool or null. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

func String(s string) Value  { return Value{kind: KindString, str: s} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Null() Value            { return Value{} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// AsString returns the string payload and whether v is a string.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// Equal is strict: values of different kinds are never equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "null"
	}
}

// MarshalJSON encodes the value as its native JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts JSON scalars only; objects and arrays are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty value")
	}
	switch data[0] {
	case 'n':
		*v = Null()
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
		return nil
	case '{', '[':
		return fmt.Errorf("unsupported value %s: only string, number, bool and null are allowed", data)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Number(n)
		return nil
	}
}

// Attributes is request-scoped context supplied by the caller of a check.
type Attributes map[string]Value

// Context keys with contextual overlay rules.
const (
	AttrOwnerID  = "ownerId"
	AttrBranchID = "branchId"
	AttrTenantID = "tenantId"
)

// Conditions are exact-match constraints attached to a grant.
type Conditions map[string]Value

// Matches reports whether every condition key is present in attrs with an
// equal value. Empty conditions always match.
func (c Conditions) Matches(attrs Attributes) bool {
	for k, want := range c {
		got, ok := attrs[k]
		if !ok || !want.Equal(got) {
			return false
		}
	}
	return true
}

// Equal compares two condition sets key by key.
func (c Conditions) Equal(o Conditions) bool {
	return maps.EqualFunc(c, o, Value.Equal)
}

// Key is a canonical rendering used to deduplicate condition sets.
func (c Conditions) Key() string {
	keys := slices.Sorted(maps.Keys(c))
	var sb strings.Builder
	for _, k := range keys {
		v := c[k]
		fmt.Fprintf(&sb, "%q=%d:%s;", k, v.kind, v.String())
	}
	return sb.String()
}

// Clone returns an independent copy, or nil for empty conditions.
func (c Conditions) Clone() Conditions {
	if len(c) == 0 {
		return nil
	}
	return maps.Clone(c)
}
