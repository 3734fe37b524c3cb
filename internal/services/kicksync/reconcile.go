package kicksync

import (
	"github.com/BearBump/KickSync/internal/models"
)

type ActionKind int

const (
	ActionCreate ActionKind = iota + 1
	ActionUpdate
)

func (k ActionKind) String() string {
	switch k {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Changes lists what an update action changes on the record. Prev* fields are
// set only when the corresponding value changes.
type Changes struct {
	PrevKickboardID     *string
	PrevMode            *models.Mode
	FranchiseBackfilled bool
	RegionBackfilled    bool
}

func (c Changes) Empty() bool {
	return c.PrevKickboardID == nil && c.PrevMode == nil && !c.FranchiseBackfilled && !c.RegionBackfilled
}

type Action struct {
	Kind   ActionKind
	Source models.SourceKickboard

	// ActionCreate
	Create models.KickboardCreateInput

	// ActionUpdate: a copy of the stored record with Changes applied.
	Record  *models.Kickboard
	Changes Changes
}

type Plan struct {
	Actions   []Action
	Unchanged int
}

// TargetMode derives the mode from the source flags. Later rules win:
// READY, then INUSE when the board can't be ridden, then COLLECTED when it isn't deployed.
func TargetMode(doc models.SourceKickboard) models.Mode {
	mode := models.ModeReady
	if !doc.CanRide {
		mode = models.ModeInUse
	}
	if !doc.Deploy {
		mode = models.ModeCollected
	}
	return mode
}

// Reconcile matches normalized documents to stored records by kickboard code.
// It never mutates records; update actions carry their own copy.
func Reconcile(docs []models.SourceKickboard, records []*models.Kickboard, defs DefaultReferences) Plan {
	byCode := make(map[string]*models.Kickboard, len(records))
	for _, r := range records {
		if _, ok := byCode[r.KickboardCode]; !ok {
			byCode[r.KickboardCode] = r
		}
	}

	var plan Plan
	for _, doc := range docs {
		mode := TargetMode(doc)
		existing, ok := byCode[doc.KickboardCode]
		if !ok {
			plan.Actions = append(plan.Actions, Action{
				Kind:   ActionCreate,
				Source: doc,
				Create: models.KickboardCreateInput{
					KickboardID:   doc.KickboardID,
					KickboardCode: doc.KickboardCode,
					FranchiseID:   defs.FranchiseID,
					RegionID:      defs.RegionID,
					Mode:          mode,
				},
			})
			continue
		}

		updated, changes := diff(existing, doc, mode, defs)
		if changes.Empty() {
			plan.Unchanged++
			continue
		}
		plan.Actions = append(plan.Actions, Action{
			Kind:    ActionUpdate,
			Source:  doc,
			Record:  updated,
			Changes: changes,
		})
	}
	return plan
}

// diff checks identity, backfill and mode independently. A bypassed mode
// blocks only the mode change.
func diff(existing *models.Kickboard, doc models.SourceKickboard, mode models.Mode, defs DefaultReferences) (*models.Kickboard, Changes) {
	k := *existing
	var ch Changes

	if k.KickboardID != doc.KickboardID {
		prev := k.KickboardID
		ch.PrevKickboardID = &prev
		k.KickboardID = doc.KickboardID
	}
	if k.FranchiseID == "" && defs.FranchiseID != "" {
		k.FranchiseID = defs.FranchiseID
		ch.FranchiseBackfilled = true
	}
	if k.RegionID == "" && defs.RegionID != "" {
		k.RegionID = defs.RegionID
		ch.RegionBackfilled = true
	}
	if !k.Mode.Bypassed() && k.Mode != mode {
		prev := k.Mode
		ch.PrevMode = &prev
		k.Mode = mode
	}
	return &k, ch
}
