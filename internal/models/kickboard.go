package models

import (
	"fmt"
	"time"
)

// Mode is the operational state of a kickboard.
type Mode int16

const (
	ModeReady        Mode = 0
	ModeInUse        Mode = 1
	ModeBroken       Mode = 2
	ModeCollected    Mode = 3
	ModeUnregistered Mode = 4
	ModeDisabled     Mode = 5
)

func (m Mode) String() string {
	switch m {
	case ModeReady:
		return "READY"
	case ModeInUse:
		return "INUSE"
	case ModeBroken:
		return "BROKEN"
	case ModeCollected:
		return "COLLECTED"
	case ModeUnregistered:
		return "UNREGISTERED"
	case ModeDisabled:
		return "DISABLED"
	default:
		return fmt.Sprintf("Mode(%d)", int16(m))
	}
}

// Bypassed reports whether the mode is owned by another system.
// The sync job never overwrites a bypassed mode.
func (m Mode) Bypassed() bool {
	return m == ModeUnregistered || m == ModeBroken || m == ModeDisabled
}

// LostLevel is the escalation tier of a missing kickboard. FIRST is the mildest.
type LostLevel int16

const (
	LostFinal  LostLevel = 0
	LostThird  LostLevel = 1
	LostSecond LostLevel = 2
	LostFirst  LostLevel = 3
)

func (l LostLevel) String() string {
	switch l {
	case LostFinal:
		return "FINAL"
	case LostThird:
		return "THIRD"
	case LostSecond:
		return "SECOND"
	case LostFirst:
		return "FIRST"
	default:
		return fmt.Sprintf("LostLevel(%d)", int16(l))
	}
}

// CollectReason says why a kickboard was pulled from the field.
type CollectReason int16

const (
	CollectBattery  CollectReason = 0
	CollectLocation CollectReason = 1
	CollectBroken   CollectReason = 2
	CollectOther    CollectReason = 3
)

func (c CollectReason) String() string {
	switch c {
	case CollectBattery:
		return "BATTERY"
	case CollectLocation:
		return "LOCATION"
	case CollectBroken:
		return "BROKEN"
	case CollectOther:
		return "OTHER"
	default:
		return fmt.Sprintf("CollectReason(%d)", int16(c))
	}
}

// Kickboard is the canonical record of a device.
type Kickboard struct {
	ID             uint64
	KickboardID    string // hardware identity (IMEI)
	KickboardCode  string
	FranchiseID    string
	RegionID       string
	Mode           Mode
	Lost           *LostLevel
	MaxSpeed       *int32
	Collect        *CollectReason
	HelmetID       *string
	DisconnectedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SourceKickboard is one document of the fleet inventory snapshot.
type SourceKickboard struct {
	KickboardID   string
	KickboardCode string `validate:"len=6"`
	CanRide       bool
	Deploy        bool
}

// DisplayName is the "CODE(IMEI)" form used in logs and notifications.
func (s SourceKickboard) DisplayName() string {
	return fmt.Sprintf("%s(%s)", s.KickboardCode, s.KickboardID)
}

type KickboardCreateInput struct {
	KickboardID   string
	KickboardCode string
	FranchiseID   string
	RegionID      string
	Mode          Mode
}
