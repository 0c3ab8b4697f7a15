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

package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action identifies a mutating administration action recorded in the audit trail.
type Action string

const (
	ActionAssignRole       Action = "ASSIGN_ROLE"
	ActionRemoveRole       Action = "REMOVE_ROLE"
	ActionGrantPermission  Action = "GRANT_PERMISSION"
	ActionRevokePermission Action = "REVOKE_PERMISSION"
)

// Metadata keys used by administration entries.
const (
	AttrRoleID       = "role_id"
	AttrRoleName     = "role_name"
	AttrPermissionID = "permission_id"
	AttrAction       = "action"
	AttrConditions   = "conditions"
	AttrExpiresAt    = "expires_at"
	AttrTenantID     = "tenant_id"
	AttrEmail        = "email"
	AttrReplaced     = "replaced_expired"
)

// Entry is a write-once record of an administration action. It is persisted in
// the same transaction as the change it describes.
type Entry struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	ActorID   string         `json:"actor_id"`
	Action    Action         `json:"action"`
	TargetID  string         `json:"target_id"`
	Resource  string         `json:"resource"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewEntry builds an entry with a fresh time-ordered ID.
func NewEntry(tenantID, actorID string, action Action, targetID, resource string, metadata map[string]any, at time.Time) *Entry {
	return &Entry{
		ID:        uuid.Must(uuid.NewV7()).String(),
		TenantID:  tenantID,
		ActorID:   actorID,
		Action:    action,
		TargetID:  targetID,
		Resource:  resource,
		Metadata:  metadata,
		CreatedAt: at,
	}
}
