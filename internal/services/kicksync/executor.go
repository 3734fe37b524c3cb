package kicksync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/KickSync/internal/broker/messages"
	"github.com/BearBump/KickSync/internal/models"
	"github.com/pkg/errors"
)

// BatchSize is how many actions run at once. A batch must settle completely
// before the next one starts.
const BatchSize = 50

type Store interface {
	Init(ctx context.Context) error
	FindAll(ctx context.Context) ([]*models.Kickboard, error)
	Create(ctx context.Context, in models.KickboardCreateInput) (*models.Kickboard, error)
	Save(ctx context.Context, k *models.Kickboard) error
}

type Notifier interface {
	Notify(ctx context.Context, ev messages.KickboardChanged) error
}

type ExecResult struct {
	Created      int
	Updated      int
	Failed       int
	NotifyFailed int
	Batches      []int
}

type Executor struct {
	store         Store
	notifier      Notifier
	actionTimeout time.Duration
	runID         string
	log           *slog.Logger
	now           func() time.Time
}

func NewExecutor(store Store, notifier Notifier, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{store: store, notifier: notifier, log: log, now: time.Now}
}

func (e *Executor) WithActionTimeout(d time.Duration) *Executor {
	e.actionTimeout = d
	return e
}

func (e *Executor) WithRunID(id string) *Executor {
	e.runID = id
	return e
}

// Execute applies actions in batches of BatchSize. A failing action is logged
// and counted; it never stops its batch or the remaining batches. Only a
// canceled ctx stops execution early.
func (e *Executor) Execute(ctx context.Context, actions []Action) (ExecResult, error) {
	var res ExecResult
	var created, updated, failed, notifyFailed atomic.Int64

	for start := 0; start < len(actions); start += BatchSize {
		if err := ctx.Err(); err != nil {
			res.Failed = int(failed.Load()) + len(actions) - start
			res.Created, res.Updated, res.NotifyFailed = int(created.Load()), int(updated.Load()), int(notifyFailed.Load())
			return res, err
		}
		end := min(start+BatchSize, len(actions))
		batch := actions[start:end]
		res.Batches = append(res.Batches, len(batch))

		var wg sync.WaitGroup
		for _, a := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				persistErr, notifyErr := e.apply(ctx, a)
				switch {
				case persistErr != nil:
					failed.Add(1)
					e.log.Error("apply kickboard action",
						"action", a.Kind.String(), "kickboard", a.Source.DisplayName(), "error", persistErr.Error())
					return
				case a.Kind == ActionCreate:
					created.Add(1)
				default:
					updated.Add(1)
				}
				if notifyErr != nil {
					notifyFailed.Add(1)
					e.log.Warn("notify kickboard change",
						"action", a.Kind.String(), "kickboard", a.Source.DisplayName(), "error", notifyErr.Error())
				}
			}()
		}
		wg.Wait()
	}

	res.Created, res.Updated = int(created.Load()), int(updated.Load())
	res.Failed, res.NotifyFailed = int(failed.Load()), int(notifyFailed.Load())
	return res, nil
}

// apply persists one action and then, only if that succeeded, notifies.
func (e *Executor) apply(ctx context.Context, a Action) (persistErr, notifyErr error) {
	switch a.Kind {
	case ActionCreate:
		return e.create(ctx, a)
	case ActionUpdate:
		return e.update(ctx, a)
	default:
		return errors.Errorf("unknown action kind %d", a.Kind), nil
	}
}

func (e *Executor) create(ctx context.Context, a Action) (error, error) {
	actx, cancel := e.withTimeout(ctx)
	k, err := e.store.Create(actx, a.Create)
	cancel()
	if err != nil {
		return errors.Wrap(err, "create kickboard"), nil
	}

	dn := a.Source.DisplayName()
	e.log.Info("kickboard created", "kickboard", dn, "mode", k.Mode.String(),
		"franchise_id", k.FranchiseID, "region_id", k.RegionID)

	return nil, e.notify(ctx, messages.KickboardChanged{
		Kind:          messages.ChangeCreated,
		KickboardCode: k.KickboardCode,
		KickboardID:   k.KickboardID,
		Mode:          k.Mode.String(),
		FranchiseID:   k.FranchiseID,
		RegionID:      k.RegionID,
		Text:          fmt.Sprintf("킥보드 / %s 킥보드를 생성하였습니다.", dn),
	})
}

func (e *Executor) update(ctx context.Context, a Action) (error, error) {
	actx, cancel := e.withTimeout(ctx)
	err := e.store.Save(actx, a.Record)
	cancel()
	if err != nil {
		return errors.Wrap(err, "save kickboard"), nil
	}

	dn := a.Source.DisplayName()
	ch := a.Changes
	if ch.FranchiseBackfilled {
		e.log.Info("kickboard franchise backfilled", "kickboard", dn, "franchise_id", a.Record.FranchiseID)
	}
	if ch.RegionBackfilled {
		e.log.Info("kickboard region backfilled", "kickboard", dn, "region_id", a.Record.RegionID)
	}
	if ch.PrevMode != nil {
		e.log.Info("kickboard mode changed", "kickboard", dn,
			"transition", fmt.Sprintf("%s -> %s", ch.PrevMode, a.Record.Mode))
	}
	if ch.PrevKickboardID == nil {
		return nil, nil
	}

	changed := fmt.Sprintf("%s -> %s", *ch.PrevKickboardID, a.Record.KickboardID)
	e.log.Info("kickboard imei changed", "kickboard", dn, "transition", changed)
	return nil, e.notify(ctx, messages.KickboardChanged{
		Kind:            messages.ChangeIdentityChanged,
		KickboardCode:   a.Record.KickboardCode,
		KickboardID:     a.Record.KickboardID,
		PrevKickboardID: ch.PrevKickboardID,
		Mode:            a.Record.Mode.String(),
		FranchiseID:     a.Record.FranchiseID,
		RegionID:        a.Record.RegionID,
		Text:            fmt.Sprintf("킥보드 / %s 킥보드의 IMEI 값이 변경되었습니다. (%s)", dn, changed),
	})
}

func (e *Executor) notify(ctx context.Context, ev messages.KickboardChanged) error {
	if e.notifier == nil {
		return nil
	}
	ev.RunID = e.runID
	ev.OccurredAt = e.now().UTC()

	nctx, cancel := e.withTimeout(ctx)
	defer cancel()
	if err := e.notifier.Notify(nctx, ev); err != nil {
		return errors.Wrap(err, "notify")
	}
	return nil
}

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.actionTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.actionTimeout)
}
