package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/BearBump/KickSync/config"
	"github.com/BearBump/KickSync/internal/broker/messages"
	docfake "github.com/BearBump/KickSync/internal/integrations/docstore/fake"
	idfake "github.com/BearBump/KickSync/internal/integrations/identity/fake"
	"github.com/BearBump/KickSync/internal/integrations/identity/internalhttp"
	"github.com/BearBump/KickSync/internal/models"
	"github.com/BearBump/KickSync/internal/notify"
	"github.com/BearBump/KickSync/internal/services/kicksync"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	rows map[string]*models.Kickboard
	next uint64
}

func newMemStore() *memStore { return &memStore{rows: map[string]*models.Kickboard{}} }

func (s *memStore) Init(ctx context.Context) error { return nil }

func (s *memStore) FindAll(ctx context.Context) ([]*models.Kickboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Kickboard, 0, len(s.rows))
	for _, k := range s.rows {
		cp := *k
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) Create(ctx context.Context, in models.KickboardCreateInput) (*models.Kickboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	k := &models.Kickboard{ID: s.next, KickboardID: in.KickboardID, KickboardCode: in.KickboardCode,
		FranchiseID: in.FranchiseID, RegionID: in.RegionID, Mode: in.Mode}
	s.rows[k.KickboardCode] = k
	cp := *k
	return &cp, nil
}

func (s *memStore) Save(ctx context.Context, k *models.Kickboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *k
	s.rows[k.KickboardCode] = &cp
	return nil
}

type captureNotifier struct {
	mu     sync.Mutex
	events []messages.KickboardChanged
}

func (n *captureNotifier) Notify(ctx context.Context, ev messages.KickboardChanged) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

type mockSecrets struct{ mock.Mock }

func (m *mockSecrets) Resolve(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func testFactories(st kicksync.Store, src kicksync.Source, n kicksync.Notifier) syncFactories {
	f := defaultSyncFactories()
	f.newStore = func(ctx context.Context, cfg *config.Config) (kicksync.Store, func(), error) {
		return st, nil, nil
	}
	f.newSource = func(ctx context.Context, cfg *config.Config) (kicksync.Source, func(), error) {
		return src, nil, nil
	}
	f.newNotifier = func(cfg *config.Config) (kicksync.Notifier, func()) {
		return n, nil
	}
	f.newSecrets = func(ctx context.Context, cfg *config.Config) (secretResolver, error) {
		return nil, errors.New("secrets not expected")
	}
	return f
}

func fakeCfg() *config.Config {
	return &config.Config{
		Firestore: config.FirestoreConfig{Mode: "fake"},
		Identity:  config.IdentityConfig{Mode: "fake", FakeFranchiseID: "F1", FakeRegionID: "R1"},
		Sync:      config.SyncConfig{ActionTimeoutSeconds: 5},
	}
}

func TestDefaultSyncFactories_Identity(t *testing.T) {
	f := defaultSyncFactories()

	ic, err := f.newIdentity(fakeCfg())
	require.NoError(t, err)
	_, ok := ic.(*idfake.FakeClient)
	require.True(t, ok)

	cfg := &config.Config{Identity: config.IdentityConfig{
		Mode:             "http",
		FranchiseBaseURL: "http://franchise",
		LocationBaseURL:  "http://location",
		TokenSecret:      "s",
		TokenTTLSeconds:  60,
		RequestTimeoutMs: 1000,
	}}
	ic, err = f.newIdentity(cfg)
	require.NoError(t, err)
	_, ok = ic.(*internalhttp.Client)
	require.True(t, ok)

	cfg.Identity.TokenSecret = ""
	_, err = f.newIdentity(cfg)
	require.Error(t, err)
}

func TestDefaultSyncFactories_Notifier(t *testing.T) {
	f := defaultSyncFactories()

	n, closeFn := f.newNotifier(&config.Config{})
	_, ok := n.(notify.Nop)
	require.True(t, ok)
	closeFn()

	n, closeFn = f.newNotifier(&config.Config{
		Webhook: config.WebhookConfig{URL: "http://hooks.local/x"},
		Kafka:   config.KafkaConfig{Host: "localhost", Port: 9092, KickboardChangedTopicName: "kickboard.changed"},
	})
	m, ok := n.(notify.Multi)
	require.True(t, ok)
	require.Len(t, m, 2)
	closeFn()
}

func TestDefaultSyncFactories_CacheDisabledWithoutRedis(t *testing.T) {
	c, closeFn := defaultSyncFactories().newCache(&config.Config{Identity: config.IdentityConfig{DefaultsCacheTTLSec: 60}})
	require.Nil(t, c)
	require.Nil(t, closeFn)
}

func TestDefaultSyncFactories_FakeSourceFromFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(p, []byte(`[{"id":"IMEI1","code":"ABC123","can_ride":true,"deploy":true}]`), 0o600))

	cfg := fakeCfg()
	cfg.Firestore.SnapshotFile = p
	src, _, err := defaultSyncFactories().newSource(context.Background(), cfg)
	require.NoError(t, err)
	docs, err := src.ListKickboards(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "ABC123", docs[0].KickboardCode)
}

func TestResolveSecrets(t *testing.T) {
	sm := &mockSecrets{}
	sm.On("Resolve", mock.Anything, "prod/db#url").Return("postgres://secret/db", nil).Once()
	sm.On("Resolve", mock.Anything, "prod/webhook").Return("https://hooks/secret", nil).Once()

	f := defaultSyncFactories()
	f.newSecrets = func(ctx context.Context, cfg *config.Config) (secretResolver, error) { return sm, nil }

	cfg := &config.Config{
		Database: config.DatabaseConfig{URLSecretID: "prod/db#url"},
		Webhook:  config.WebhookConfig{URLSecretID: "prod/webhook"},
		Identity: config.IdentityConfig{TokenSecret: "explicit", TokenSecretID: "unused"},
	}
	require.NoError(t, resolveSecrets(context.Background(), cfg, f))
	require.Equal(t, "postgres://secret/db", cfg.DatabaseURL())
	require.Equal(t, "https://hooks/secret", cfg.Webhook.URL)
	require.Equal(t, "explicit", cfg.Identity.TokenSecret)
	sm.AssertExpectations(t)
}

func TestResolveSecrets_NothingToResolve(t *testing.T) {
	f := defaultSyncFactories()
	f.newSecrets = func(ctx context.Context, cfg *config.Config) (secretResolver, error) {
		t.Fatal("secrets client must not be created")
		return nil, nil
	}
	cfg := &config.Config{Database: config.DatabaseConfig{URL: "postgres://x", URLSecretID: "ignored"}}
	require.NoError(t, resolveSecrets(context.Background(), cfg, f))
}

func TestRunOnce_CreatesAndNotifies(t *testing.T) {
	st := newMemStore()
	n := &captureNotifier{}
	src := docfake.New(models.SourceKickboard{KickboardID: "IMEI1", KickboardCode: "ABC123", CanRide: true, Deploy: true})

	sum, err := RunOnce(context.Background(), fakeCfg(), testFactories(st, src, n))
	require.NoError(t, err)
	require.Equal(t, 1, sum.Created)
	require.Equal(t, "F1", st.rows["ABC123"].FranchiseID)
	require.Len(t, n.events, 1)
	require.Equal(t, "킥보드 / ABC123(IMEI1) 킥보드를 생성하였습니다.", n.events[0].Text)
}

func TestRunOnce_StoreFactoryError(t *testing.T) {
	f := testFactories(nil, docfake.New(), notify.Nop{})
	f.newStore = func(ctx context.Context, cfg *config.Config) (kicksync.Store, func(), error) {
		return nil, nil, errors.New("dial tcp: refused")
	}
	_, err := RunOnce(context.Background(), fakeCfg(), f)
	require.ErrorContains(t, err, "record store")
}

func TestBuildService_CleanupOnSourceError(t *testing.T) {
	closed := false
	f := testFactories(newMemStore(), nil, notify.Nop{})
	f.newStore = func(ctx context.Context, cfg *config.Config) (kicksync.Store, func(), error) {
		return newMemStore(), func() { closed = true }, nil
	}
	f.newSource = func(ctx context.Context, cfg *config.Config) (kicksync.Source, func(), error) {
		return nil, nil, errors.New("no credentials")
	}
	_, _, err := buildService(context.Background(), fakeCfg(), f)
	require.Error(t, err)
	require.True(t, closed)
}

func TestRootCmd_RunOncePrintsSummary(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(snap, []byte(`[{"id":"IMEI1","code":"ABC123","can_ride":false,"deploy":true}]`), 0o600))
	cfgPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
firestore:
  mode: fake
  snapshot_file: "`+snap+`"
identity:
  mode: fake
  fake_franchise_id: "F1"
  fake_region_id: "R1"
`), 0o600))

	st := newMemStore()
	f := defaultSyncFactories()
	f.newStore = func(ctx context.Context, cfg *config.Config) (kicksync.Store, func(), error) {
		return st, nil, nil
	}

	var out bytes.Buffer
	cmd := newRootCmd(f)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "--env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var sum kicksync.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &sum))
	require.Equal(t, 1, sum.Created)
	require.Equal(t, models.ModeInUse, st.rows["ABC123"].Mode)
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "warn", "json")
	log.Info("hidden")
	log.Warn("shown", "k", "v")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)
}
