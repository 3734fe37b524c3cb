package kicksync

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/KickSync/internal/broker/messages"
	"github.com/BearBump/KickSync/internal/models"
)

type call struct {
	op               string
	code             string
	completedAtStart int
}

// memStore keeps kickboards in memory and records how calls overlap.
type memStore struct {
	mu     sync.Mutex
	byCode map[string]*models.Kickboard
	nextID uint64

	delay     time.Duration
	createErr map[string]error
	saveErr   map[string]error
	initErr   error
	findErr   error

	inFlight    int
	maxInFlight int
	completed   int
	calls       []call
	saves       int
	creates     int
}

func newMemStore(records ...*models.Kickboard) *memStore {
	s := &memStore{byCode: map[string]*models.Kickboard{}, createErr: map[string]error{}, saveErr: map[string]error{}}
	for _, r := range records {
		s.nextID++
		cp := *r
		if cp.ID == 0 {
			cp.ID = s.nextID
		}
		s.byCode[cp.KickboardCode] = &cp
	}
	return s
}

func (s *memStore) enter(op, code string) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.calls = append(s.calls, call{op: op, code: code, completedAtStart: s.completed})
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
}

func (s *memStore) leave() {
	s.mu.Lock()
	s.inFlight--
	s.completed++
	s.mu.Unlock()
}

func (s *memStore) Init(ctx context.Context) error { return s.initErr }

func (s *memStore) FindAll(ctx context.Context) ([]*models.Kickboard, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Kickboard, 0, len(s.byCode))
	for _, k := range s.byCode {
		cp := *k
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Create(ctx context.Context, in models.KickboardCreateInput) (*models.Kickboard, error) {
	s.enter("create", in.KickboardCode)
	defer s.leave()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.createErr[in.KickboardCode]; err != nil {
		return nil, err
	}
	if _, ok := s.byCode[in.KickboardCode]; ok {
		return nil, errors.New("duplicate kickboard code")
	}
	s.nextID++
	s.creates++
	k := &models.Kickboard{
		ID:            s.nextID,
		KickboardID:   in.KickboardID,
		KickboardCode: in.KickboardCode,
		FranchiseID:   in.FranchiseID,
		RegionID:      in.RegionID,
		Mode:          in.Mode,
	}
	s.byCode[k.KickboardCode] = k
	cp := *k
	return &cp, nil
}

func (s *memStore) Save(ctx context.Context, k *models.Kickboard) error {
	s.enter("save", k.KickboardCode)
	defer s.leave()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveErr[k.KickboardCode]; err != nil {
		return err
	}
	s.saves++
	cp := *k
	s.byCode[k.KickboardCode] = &cp
	return nil
}

func (s *memStore) get(code string) *models.Kickboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.byCode[code]
	if k == nil {
		return nil
	}
	cp := *k
	return &cp
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []messages.KickboardChanged
	failOn map[string]error
}

func (n *recordingNotifier) Notify(ctx context.Context, ev messages.KickboardChanged) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.failOn[ev.KickboardCode]; err != nil {
		return err
	}
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Text)
	}
	sort.Strings(out)
	return out
}

type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) count(substr string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), substr)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	b := &logBuffer{}
	return slog.New(slog.NewTextHandler(b, nil)), b
}

func doc(code, id string, canRide, deploy bool) models.SourceKickboard {
	return models.SourceKickboard{KickboardID: id, KickboardCode: code, CanRide: canRide, Deploy: deploy}
}

func strPtr(s string) *string { return &s }
