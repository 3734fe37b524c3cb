package messages

import "time"

type ChangeKind string

const (
	ChangeCreated         ChangeKind = "created"
	ChangeIdentityChanged ChangeKind = "identity_changed"
)

// KickboardChanged is published after a sync run persisted a change worth telling people about.
type KickboardChanged struct {
	Kind          ChangeKind `json:"kind"`
	RunID         string     `json:"run_id,omitempty"`
	KickboardCode string     `json:"kickboard_code"`
	KickboardID   string     `json:"kickboard_id"`

	PrevKickboardID *string `json:"prev_kickboard_id,omitempty"`

	Mode        string `json:"mode,omitempty"`
	FranchiseID string `json:"franchise_id,omitempty"`
	RegionID    string `json:"region_id,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`

	// Text is the human readable line sent to chat webhooks.
	Text string `json:"text"`
}
