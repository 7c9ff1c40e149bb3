package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"mun_dashboard/internal/models"
	"mun_dashboard/internal/persist"
	"mun_dashboard/internal/prep"
	"mun_dashboard/internal/repository"
	repomodels "mun_dashboard/internal/repository/models"
	"mun_dashboard/internal/session"
	"mun_dashboard/internal/storage"
)

type testEnv struct {
	t     *testing.T
	repos *repository.Repositories
	local *storage.LocalStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.NewSQLiteDB("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	local, err := storage.NewLocalStore("")
	require.NoError(t, err)
	t.Cleanup(func() {
		local.Close()
		db.Close()
	})
	return &testEnv{t: t, repos: repository.NewRepositories(db), local: local}
}

func (e *testEnv) services() *Services {
	return e.servicesWith(e.repos)
}

// servicesWith 建立共用本機儲存的服務，測試結束時關閉所有會期
func (e *testEnv) servicesWith(repos *repository.Repositories) *Services {
	svc := NewServices(Options{
		Repos:   repos,
		Local:   e.local,
		Persist: persist.Options{LocalDebounce: time.Hour, RemoteDebounce: time.Hour},
	})
	e.t.Cleanup(func() { svc.CloseAll(context.Background()) })
	return svc
}

// remoteCountries 讀出遠端文件中的代表國家
func (e *testEnv) remoteCountries(userID string) ([]string, int64) {
	e.t.Helper()
	doc, err := e.repos.Document.Find(context.Background(), repomodels.KindChair, userID)
	require.NoError(e.t, err)
	state, err := session.DecodeDocument([]byte(doc.Data))
	require.NoError(e.t, err)
	countries := []string{}
	for _, p := range state.Delegates {
		countries = append(countries, p.Country)
	}
	return countries, doc.Revision
}

// unreachableDocuments 讀取遠端文件時一律失敗
type unreachableDocuments struct {
	repository.DocumentRepository
}

func (unreachableDocuments) Find(context.Context, string, string) (*repomodels.Document, error) {
	return nil, errors.New("connection refused")
}

func TestIdentityKey(t *testing.T) {
	assert.Equal(t, "user:42", Identity{UserID: "42", DeviceID: "d"}.Key())
	assert.Equal(t, "device:d", Identity{DeviceID: "d"}.Key())
	assert.True(t, Identity{UserID: "42"}.SignedIn())
	assert.False(t, Identity{DeviceID: "d"}.SignedIn())
}

func TestChairSessionPersistsRemotely(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := Identity{UserID: "chair-1"}

	svc := env.services()
	cs, err := svc.Chair.Open(ctx, id)
	require.NoError(t, err)
	require.NoError(t, cs.Store.SetTopic("Space debris"))
	_, err = cs.Store.AddParticipant(models.Participant{Country: "France"})
	require.NoError(t, err)

	again, err := svc.Chair.Session(ctx, id)
	require.NoError(t, err)
	assert.Same(t, cs, again)

	require.NoError(t, svc.Chair.Close(ctx, id))

	doc, err := env.repos.Document.Find(ctx, repomodels.KindChair, "chair-1")
	require.NoError(t, err)
	assert.Equal(t, session.SchemaVersion, doc.SchemaVersion)
	assert.Equal(t, int64(1), doc.Revision)

	// 新的服務實例從遠端載入
	reopened, err := env.services().Chair.Open(ctx, id)
	require.NoError(t, err)
	st := reopened.Store.Snapshot()
	assert.Equal(t, "Space debris", st.Topic)
	require.Len(t, st.Delegates, 1)
	assert.Equal(t, "France", st.Delegates[0].Country)
}

func TestDeviceSessionUsesLocalOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := Identity{DeviceID: "tablet"}

	svc := env.services()
	cs, err := svc.Chair.Open(ctx, id)
	require.NoError(t, err)
	require.NoError(t, cs.Store.SetCommittee("WHO"))
	require.NoError(t, svc.Chair.Save(ctx, id))
	require.NoError(t, svc.CloseAll(ctx))

	_, err = env.local.Get(storage.ChairKey(id.Key()))
	require.NoError(t, err)
	_, err = env.repos.Document.Find(ctx, repomodels.KindChair, "tablet")
	assert.ErrorIs(t, err, repository.ErrDocumentNotFound)

	reopened, err := env.services().Chair.Open(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "WHO", reopened.Store.Snapshot().Committee)
}

func TestCorruptLocalCopyFallsBackToDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := Identity{DeviceID: "broken"}
	require.NoError(t, env.local.Put(storage.ChairKey(id.Key()), []byte("{not json")))

	cs, err := env.services().Chair.Open(ctx, id)
	require.NoError(t, err)
	st := cs.Store.Snapshot()
	assert.Equal(t, models.DefaultCommittee, st.Committee)
	assert.Equal(t, models.DefaultTopic, st.Topic)
	assert.Empty(t, st.Delegates)
}

func TestChairActivityLog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := Identity{UserID: "chair-2"}

	svc := env.services()
	cs, err := svc.Chair.Open(ctx, id)
	require.NoError(t, err)
	defer svc.CloseAll(ctx)

	require.NoError(t, svc.Chair.StartSession(ctx, cs))

	p, err := cs.Store.AddParticipant(models.Participant{Country: "France"})
	require.NoError(t, err)
	present := models.RollCallPresent
	require.NoError(t, cs.Store.UpdateParticipant(p.ID, models.ParticipantPatch{RollCallStatus: &present}))
	m, err := cs.Store.AddMotion("Open debate", models.MotionTypeMotion)
	require.NoError(t, err)
	require.NoError(t, cs.Store.StartVote(m.ID))
	require.NoError(t, cs.Store.RecordVote(p.ID, models.BallotYes))

	result, err := svc.Chair.EndVote(ctx, cs)
	require.NoError(t, err)
	assert.Equal(t, models.MotionStatusPassed, result.Status)

	_, err = svc.Chair.EndVote(ctx, cs)
	assert.ErrorIs(t, err, session.ErrNoVoteInProgress)

	// 失敗的狀態變更不寫紀錄
	assert.ErrorIs(t, svc.Chair.SetMotionStatus(ctx, cs, m.ID, models.MotionStatusTabled), session.ErrIllegalTransition)

	activities, err := svc.Chair.Activity(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, ActivitySessionStart, activities[0].Type)
	assert.Equal(t, ActivityVoteEnded, activities[1].Type)
	assert.Equal(t, m.ID, activities[1].MotionID)
	assert.Equal(t, "passed 1-0-0", activities[1].Content)
}

func TestDelegateSessionRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := Identity{UserID: "delegate-1"}

	svc := env.services()
	ds, err := svc.Delegate.Open(ctx, id)
	require.NoError(t, err)
	country := "Brazil"
	require.NoError(t, ds.Store.UpdateActive(prep.ConferencePatch{Country: &country}))
	_, err = ds.Store.AddConference()
	require.NoError(t, err)
	require.NoError(t, svc.Delegate.Close(ctx, id))

	// 關閉未開啟的會期不做事
	require.NoError(t, svc.Delegate.Close(ctx, id))

	reopened, err := env.services().Delegate.Open(ctx, id)
	require.NoError(t, err)
	st := reopened.Store.Snapshot()
	require.Len(t, st.Conferences, 2)
	assert.Equal(t, "Brazil", st.Conferences[0].Country)
	assert.Equal(t, st.Conferences[1].ID, st.ActiveConferenceID)
}

func TestWithoutDatabase(t *testing.T) {
	ctx := context.Background()
	svc := NewServices(Options{Persist: persist.Options{LocalDebounce: time.Hour}})
	id := Identity{UserID: "offline"}

	cs, err := svc.Chair.Open(ctx, id)
	require.NoError(t, err)
	require.NoError(t, svc.Chair.StartSession(ctx, cs))

	activities, err := svc.Chair.Activity(ctx, id, 0)
	require.NoError(t, err)
	assert.Empty(t, activities)
	require.NoError(t, svc.CloseAll(ctx))
}

func TestSecondWriterCannotOverwrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := Identity{UserID: "chair-1"}

	first, second := env.services(), env.services()
	a, err := first.Chair.Open(ctx, id)
	require.NoError(t, err)
	b, err := second.Chair.Open(ctx, id)
	require.NoError(t, err)

	_, err = a.Store.AddParticipant(models.Participant{Country: "France"})
	require.NoError(t, err)
	require.NoError(t, first.Chair.Save(ctx, id))

	// b 沒看過 a 的寫入，儲存必須失敗而不是覆蓋
	_, err = b.Store.AddParticipant(models.Participant{Country: "Japan"})
	require.NoError(t, err)
	err = second.Chair.Save(ctx, id)
	require.ErrorIs(t, err, persist.ErrStale)
	assert.ErrorIs(t, err, repository.ErrStaleRevision)
	assert.True(t, b.Stale())

	_, err = b.Store.AddParticipant(models.Participant{Country: "Kenya"})
	require.NoError(t, err)
	assert.ErrorIs(t, second.Chair.Save(ctx, id), persist.ErrStale)

	countries, revision := env.remoteCountries("chair-1")
	assert.Equal(t, []string{"France"}, countries)
	assert.Equal(t, int64(1), revision)

	// a 仍然可以繼續寫入
	_, err = a.Store.AddParticipant(models.Participant{Country: "Chad"})
	require.NoError(t, err)
	require.NoError(t, first.Chair.Save(ctx, id))
	countries, revision = env.remoteCountries("chair-1")
	assert.Equal(t, []string{"France", "Chad"}, countries)
	assert.Equal(t, int64(2), revision)
	assert.False(t, a.Stale())
}

func TestLocalFallbackDoesNotOverwriteRemote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := Identity{UserID: "chair-3"}

	online := env.services()
	cs, err := online.Chair.Open(ctx, id)
	require.NoError(t, err)
	_, err = cs.Store.AddParticipant(models.Participant{Country: "France"})
	require.NoError(t, err)
	require.NoError(t, online.Chair.Close(ctx, id))

	// 遠端讀取失敗時改用本機副本，但不知道遠端版本，不能覆蓋遠端
	offline := env.servicesWith(&repository.Repositories{
		Document: unreachableDocuments{env.repos.Document},
		Activity: env.repos.Activity,
	})
	fallback, err := offline.Chair.Open(ctx, id)
	require.NoError(t, err)
	require.Len(t, fallback.Store.Snapshot().Delegates, 1)

	_, err = fallback.Store.AddParticipant(models.Participant{Country: "Peru"})
	require.NoError(t, err)
	assert.ErrorIs(t, offline.Chair.Save(ctx, id), persist.ErrStale)

	countries, revision := env.remoteCountries("chair-3")
	assert.Equal(t, []string{"France"}, countries)
	assert.Equal(t, int64(1), revision)

	// 本機副本仍保留最新的編輯
	data, err := env.local.Get(storage.ChairKey(id.Key()))
	require.NoError(t, err)
	local, err := session.DecodeDocument(data)
	require.NoError(t, err)
	assert.Len(t, local.Delegates, 2)
}

func TestCloseStopsPersisters(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	svc := NewServices(Options{Persist: persist.Options{LocalDebounce: time.Hour, Interval: time.Minute}})
	ids := []Identity{{DeviceID: "a"}, {DeviceID: "b"}}
	for _, id := range ids {
		_, err := svc.Chair.Open(ctx, id)
		require.NoError(t, err)
		_, err = svc.Delegate.Open(ctx, id)
		require.NoError(t, err)
	}

	for _, id := range ids {
		require.NoError(t, svc.Chair.Close(ctx, id))
		require.NoError(t, svc.Delegate.Close(ctx, id))
	}
}

func TestIdleSessionsAreClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewServices(Options{
		Local:       env.local,
		Persist:     persist.Options{LocalDebounce: time.Hour},
		IdleTimeout: time.Hour,
	})
	defer svc.CloseAll(ctx)
	clock := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	svc.Chair.now = func() time.Time { return clock }

	old := Identity{DeviceID: "old"}
	cs, err := svc.Chair.Open(ctx, old)
	require.NoError(t, err)
	require.NoError(t, cs.Store.SetCommittee("WHO"))

	clock = clock.Add(30 * time.Minute)
	_, err = svc.Chair.Open(ctx, Identity{DeviceID: "recent"})
	require.NoError(t, err)
	again, err := svc.Chair.Session(ctx, old)
	require.NoError(t, err)
	assert.Same(t, cs, again)

	// 開啟其他會期時關閉閒置超過一小時的會期，並寫入本機
	clock = clock.Add(2 * time.Hour)
	_, err = svc.Chair.Open(ctx, Identity{DeviceID: "new"})
	require.NoError(t, err)

	data, err := env.local.Get(storage.ChairKey(old.Key()))
	require.NoError(t, err)
	state, err := session.DecodeDocument(data)
	require.NoError(t, err)
	assert.Equal(t, "WHO", state.Committee)

	reopened, err := svc.Chair.Open(ctx, old)
	require.NoError(t, err)
	assert.NotSame(t, cs, reopened)
	assert.Equal(t, "WHO", reopened.Store.Snapshot().Committee)
}
