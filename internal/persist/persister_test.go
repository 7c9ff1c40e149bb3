package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"mun_dashboard/internal/metrics"
)

// recordingSaver 記錄每次寫入的版本與內容，可設定要回傳的錯誤
type recordingSaver struct {
	mu       sync.Mutex
	attempts int
	writes   []int64
	data     [][]byte
	errs     []error
	reject   error // 設定時每次寫入都回傳
}

func (s *recordingSaver) Save(_ context.Context, revision int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.reject != nil {
		return s.reject
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return err
		}
	}
	s.writes = append(s.writes, revision)
	s.data = append(s.data, data)
	return nil
}

func (s *recordingSaver) failNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
}

func (s *recordingSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *recordingSaver) rejectAll(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = err
}

func (s *recordingSaver) tries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *recordingSaver) revisions() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.writes...)
}

type counterSnapshot struct {
	mu sync.Mutex
	n  int
}

func (c *counterSnapshot) set(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = n
}

func (c *counterSnapshot) snapshot() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return []byte(fmt.Sprintf(`{"n":%d}`, c.n)), nil
}

func fastOptions() Options {
	return Options{
		LocalDebounce:  20 * time.Millisecond,
		RemoteDebounce: 60 * time.Millisecond,
		Interval:       0,
	}
}

// counterValue 從 registry 讀出 persist_writes_total 的值
func counterValue(t *testing.T, reg *prometheus.Registry, target, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "mun_dashboard_persist_writes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["target"] == target && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestDebounceCoalescesWrites(t *testing.T) {
	defer goleak.VerifyNone(t)

	state := &counterSnapshot{}
	local, remote := &recordingSaver{}, &recordingSaver{}
	p := New(state.snapshot, local, remote, fastOptions())
	defer p.Close()

	for i := 1; i <= 5; i++ {
		state.set(i)
		p.Notify()
	}

	require.Eventually(t, func() bool { return local.count() == 1 && remote.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, local.count())
	assert.Equal(t, 1, remote.count())

	// 本機收到目前已確認的遠端版本，遠端寫入下一個版本
	assert.Equal(t, []int64{0}, local.revisions())
	assert.Equal(t, []int64{1}, remote.revisions())
	assert.Equal(t, int64(1), p.Revision())
	assert.Equal(t, `{"n":5}`, string(remote.data[0]))
	assert.False(t, p.Dirty())
}

func TestLocalOnlyWithoutRemote(t *testing.T) {
	defer goleak.VerifyNone(t)

	state := &counterSnapshot{}
	local := &recordingSaver{}
	p := New(state.snapshot, local, nil, fastOptions())
	defer p.Close()

	p.Notify()
	require.Eventually(t, func() bool { return local.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, p.Dirty())
}

func TestFlushWritesImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)

	state := &counterSnapshot{}
	local, remote := &recordingSaver{}, &recordingSaver{}
	opts := Options{LocalDebounce: time.Hour, RemoteDebounce: time.Hour}
	p := New(state.snapshot, local, remote, opts)
	defer p.Close()

	p.Notify()
	require.NoError(t, p.Flush(context.Background()))
	assert.Equal(t, 1, local.count())
	assert.Equal(t, 1, remote.count())
	assert.Equal(t, int64(1), p.Revision())
	assert.False(t, p.Dirty())
}

func TestFailedWriteStaysDirty(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := prometheus.NewRegistry()
	state := &counterSnapshot{}
	local, remote := &recordingSaver{}, &recordingSaver{}
	opts := Options{LocalDebounce: time.Hour, RemoteDebounce: time.Hour, Metrics: metrics.New(reg)}
	p := New(state.snapshot, local, remote, opts)
	defer p.Close()

	boom := errors.New("connection refused")
	remote.failNext(boom)
	p.Notify()

	err := p.Flush(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, local.count())
	assert.Equal(t, 0, remote.count())
	assert.True(t, p.Dirty())
	assert.Equal(t, 1.0, counterValue(t, reg, TargetRemote, "error"))
	assert.Equal(t, 1.0, counterValue(t, reg, TargetLocal, "ok"))

	// 失敗的寫入不消耗版本號
	require.NoError(t, p.Flush(context.Background()))
	assert.Equal(t, []int64{1}, remote.revisions())
	assert.False(t, p.Dirty())
}

func TestIntervalRetriesFailedRemote(t *testing.T) {
	defer goleak.VerifyNone(t)

	state := &counterSnapshot{}
	local, remote := &recordingSaver{}, &recordingSaver{}
	remote.failNext(errors.New("timeout"))
	opts := Options{
		LocalDebounce:  10 * time.Millisecond,
		RemoteDebounce: 10 * time.Millisecond,
		Interval:       30 * time.Millisecond,
	}
	p := New(state.snapshot, local, remote, opts)
	defer p.Close()

	p.Notify()
	require.Eventually(t, func() bool { return remote.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, p.Dirty())
}

func TestStaleRemoteIsReportedAndStaysDirty(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := prometheus.NewRegistry()
	state := &counterSnapshot{}
	local, remote := &recordingSaver{}, &recordingSaver{}
	opts := Options{
		LocalDebounce:   10 * time.Millisecond,
		RemoteDebounce:  10 * time.Millisecond,
		InitialRevision: 3,
		Metrics:         metrics.New(reg),
	}
	p := New(state.snapshot, local, remote, opts)
	defer p.Close()

	remote.rejectAll(fmt.Errorf("%w: stored revision 5", ErrStale))
	p.Notify()

	err := p.Flush(context.Background())
	require.ErrorIs(t, err, ErrStale)
	assert.True(t, p.Dirty())
	assert.True(t, p.Stale())
	assert.Equal(t, int64(3), p.Revision())
	assert.GreaterOrEqual(t, counterValue(t, reg, TargetRemote, "stale"), 1.0)

	// 衝突後 debounce 不再自動寫遠端，本機照常寫入
	tries := remote.tries()
	written := local.count()
	p.Notify()
	require.Eventually(t, func() bool { return local.count() > written }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, tries, remote.tries())
	assert.True(t, p.Dirty())

	// 明確的 Flush 會再試一次
	remote.rejectAll(nil)
	require.NoError(t, p.Flush(context.Background()))
	assert.Equal(t, []int64{4}, remote.revisions())
	assert.False(t, p.Stale())
	assert.False(t, p.Dirty())
}

func TestInitialRevision(t *testing.T) {
	defer goleak.VerifyNone(t)

	state := &counterSnapshot{}
	remote := &recordingSaver{}
	p := New(state.snapshot, nil, remote, Options{InitialRevision: 41})
	defer p.Close()

	require.NoError(t, p.Flush(context.Background()))
	assert.Equal(t, []int64{42}, remote.revisions())
}

func TestNoWritesAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	state := &counterSnapshot{}
	local := &recordingSaver{}
	p := New(state.snapshot, local, nil, fastOptions())

	p.Notify()
	p.Close()
	p.Notify()
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, 0, local.count())
	assert.ErrorIs(t, p.Flush(context.Background()), ErrClosed)

	// 重複關閉不會卡住
	p.Close()
}

func TestFlushHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	state := &counterSnapshot{}
	block := make(chan struct{})
	slow := SaverFunc(func(ctx context.Context, _ int64, _ []byte) error {
		select {
		case <-block:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	p := New(state.snapshot, slow, nil, Options{LocalDebounce: time.Hour})
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Flush(ctx), context.DeadlineExceeded)
	close(block)
}
