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
	"encoding/json"
	"fmt"
)

// Action is an operation on a resource. Actions are totally ordered:
// READ < WRITE < DELETE < MANAGE.
type Action string

const (
	ActionRead   Action = "READ"
	ActionWrite  Action = "WRITE"
	ActionDelete Action = "DELETE"
	ActionManage Action = "MANAGE"
)

// Actions lists every action in ascending order.
var Actions = []Action{ActionRead, ActionWrite, ActionDelete, ActionManage}

// Level returns the rank of the action, or 0 for an unknown action.
func (a Action) Level() int {
	switch a {
	case ActionRead:
		return 1
	case ActionWrite:
		return 2
	case ActionDelete:
		return 3
	case ActionManage:
		return 4
	default:
		return 0
	}
}

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	return a.Level() > 0
}

// Satisfies reports whether holding a authorizes the required action.
// It is the only place actions are compared.
func (a Action) Satisfies(required Action) bool {
	held := a.Level()
	need := required.Level()
	if held == 0 || need == 0 {
		return false
	}
	return held >= need
}

// ParseAction converts an exact upper-case action name.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	return a, nil
}

// UnmarshalJSON rejects unknown action names.
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
