// Package persist 負責把會期狀態寫入本機與遠端儲存。
//
// 狀態變更只呼叫 Notify；實際寫入由單一 worker 依 debounce 與定期檢查觸發，
// 因此同一份文件的寫入永遠依序進行。遠端寫入帶著載入時的版本號做樂觀鎖檢查：
// 其他寫入者搶先更新時寫入失敗 (ErrStale)，狀態保持未寫入，直到明確的 Flush 回報給呼叫端。
package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mun_dashboard/internal/logging"
	"mun_dashboard/internal/metrics"
)

var ErrClosed = errors.New("persister 已關閉")

// ErrStale 由遠端 Saver 回傳，表示其他寫入者已更新文件；
// 之後的自動寫入暫停，Flush 會回傳這個錯誤
var ErrStale = errors.New("遠端文件已被其他寫入者更新")

const (
	TargetLocal  = "local"
	TargetRemote = "remote"
)

// Saver 寫入一份已編碼的文件。
// 遠端寫入的 revision 是新的版本號，只有已存版本恰好是 revision-1 時才能寫入；
// 本機寫入收到的是目前已確認的遠端版本。
type Saver interface {
	Save(ctx context.Context, revision int64, data []byte) error
}

// SaverFunc 讓一般函式實作 Saver
type SaverFunc func(ctx context.Context, revision int64, data []byte) error

func (f SaverFunc) Save(ctx context.Context, revision int64, data []byte) error {
	return f(ctx, revision, data)
}

// SnapshotFunc 取得目前狀態的編碼結果
type SnapshotFunc func() ([]byte, error)

type Options struct {
	LocalDebounce  time.Duration
	RemoteDebounce time.Duration
	// Interval 定期檢查，遠端 (及本機) 有未寫入的變更時補寫；<= 0 關閉
	Interval     time.Duration
	WriteTimeout time.Duration
	// InitialRevision 載入的遠端文件版本，沒有遠端文件時為 0
	InitialRevision int64
	Metrics         *metrics.Metrics
	Logger          *logrus.Entry
}

func DefaultOptions() Options {
	return Options{
		LocalDebounce:  time.Second,
		RemoteDebounce: 3 * time.Second,
		Interval:       5 * time.Minute,
		WriteTimeout:   10 * time.Second,
	}
}

type flushRequest struct {
	ctx   context.Context
	reply chan error
}

type Persister struct {
	snapshot SnapshotFunc
	local    Saver
	remote   Saver
	opts     Options
	log      *logrus.Entry

	mu          sync.Mutex
	changes     uint64
	localSaved  uint64
	remoteSaved uint64
	revision    int64 // 最後確認寫入 (或載入) 的遠端版本
	stale       bool
	localTimer  *time.Timer
	remoteTimer *time.Timer
	closed      bool

	localDue  chan struct{}
	remoteDue chan struct{}
	flushes   chan flushRequest
	stop      chan struct{}
	done      chan struct{}
}

// New 建立 persister 並啟動 worker；remote 為 nil 時只寫本機
func New(snapshot SnapshotFunc, local, remote Saver, opts Options) *Persister {
	def := DefaultOptions()
	if opts.LocalDebounce <= 0 {
		opts.LocalDebounce = def.LocalDebounce
	}
	if opts.RemoteDebounce <= 0 {
		opts.RemoteDebounce = def.RemoteDebounce
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logging.Log)
	}

	p := &Persister{
		snapshot:  snapshot,
		local:     local,
		remote:    remote,
		opts:      opts,
		log:       log,
		revision:  opts.InitialRevision,
		localDue:  make(chan struct{}, 1),
		remoteDue: make(chan struct{}, 1),
		flushes:   make(chan flushRequest),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

// Notify 標記狀態已變更並重新計時 debounce
func (p *Persister) Notify() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.changes++
	if p.local != nil {
		p.localTimer = rearm(p.localTimer, p.opts.LocalDebounce, p.localDue)
	}
	if p.remote != nil {
		p.remoteTimer = rearm(p.remoteTimer, p.opts.RemoteDebounce, p.remoteDue)
	}
}

func rearm(t *time.Timer, d time.Duration, due chan struct{}) *time.Timer {
	if t != nil {
		t.Stop()
	}
	return time.AfterFunc(d, func() {
		select {
		case due <- struct{}{}:
		default:
		}
	})
}

// Dirty 本機或遠端是否還有未寫入的變更
func (p *Persister) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.localDirtyLocked() || p.remoteDirtyLocked()
}

func (p *Persister) localDirtyLocked() bool {
	return p.local != nil && p.localSaved < p.changes
}

func (p *Persister) remoteDirtyLocked() bool {
	return p.remote != nil && p.remoteSaved < p.changes
}

// Revision 最後確認寫入 (或載入) 的遠端版本
func (p *Persister) Revision() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revision
}

// Stale 遠端是否因其他寫入者而拒絕了這個會期的寫入
func (p *Persister) Stale() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stale
}

// Flush 立即寫入本機與遠端，回傳寫入錯誤
func (p *Persister) Flush(ctx context.Context) error {
	req := flushRequest{ctx: ctx, reply: make(chan error, 1)}
	select {
	case p.flushes <- req:
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 停止計時器與 worker；返回後不會再有任何寫入
func (p *Persister) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	if p.localTimer != nil {
		p.localTimer.Stop()
	}
	if p.remoteTimer != nil {
		p.remoteTimer.Stop()
	}
	p.mu.Unlock()

	close(p.stop)
	<-p.done
}

func (p *Persister) run() {
	defer close(p.done)

	var tick <-chan time.Time
	if p.opts.Interval > 0 {
		ticker := time.NewTicker(p.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-p.stop:
			return
		case <-p.localDue:
			p.write(context.Background(), true, false, false)
		case <-p.remoteDue:
			p.write(context.Background(), false, true, false)
		case <-tick:
			p.write(context.Background(), true, true, false)
		case req := <-p.flushes:
			req.reply <- p.write(req.ctx, true, true, true)
		}
	}
}

// write 取得快照並寫入指定目標；force 為 false 時只寫有變更的目標
func (p *Persister) write(ctx context.Context, toLocal, toRemote, force bool) error {
	p.mu.Lock()
	toLocal = toLocal && p.local != nil && (force || p.localDirtyLocked())
	// 遠端衝突後只有 Flush 會再嘗試
	toRemote = toRemote && p.remote != nil && (force || (!p.stale && p.remoteDirtyLocked()))
	if !toLocal && !toRemote {
		p.mu.Unlock()
		return nil
	}
	revision := p.revision
	changes := p.changes
	p.mu.Unlock()

	data, err := p.snapshot()
	if err != nil {
		p.log.WithError(err).Error("無法編碼狀態")
		return fmt.Errorf("snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.WriteTimeout)
	defer cancel()

	var errs []error
	if toLocal {
		if err := p.save(ctx, TargetLocal, p.local, revision, data); err != nil {
			errs = append(errs, err)
		} else {
			p.markSaved(&p.localSaved, changes)
		}
	}
	if toRemote {
		next := revision + 1
		if err := p.save(ctx, TargetRemote, p.remote, next, data); err != nil {
			errs = append(errs, err)
			if errors.Is(err, ErrStale) {
				p.mu.Lock()
				p.stale = true
				p.mu.Unlock()
			}
		} else {
			p.mu.Lock()
			p.revision = next
			p.stale = false
			p.mu.Unlock()
			p.markSaved(&p.remoteSaved, changes)
		}
	}
	return errors.Join(errs...)
}

func (p *Persister) save(ctx context.Context, target string, s Saver, revision int64, data []byte) error {
	err := s.Save(ctx, revision, data)
	entry := p.log.WithFields(logrus.Fields{"target": target, "revision": revision})
	switch {
	case err == nil:
		p.opts.Metrics.PersistWrites.WithLabelValues(target, "ok").Inc()
		entry.Debug("狀態已寫入")
		return nil
	case errors.Is(err, ErrStale):
		p.opts.Metrics.PersistWrites.WithLabelValues(target, "stale").Inc()
		entry.WithError(err).Warn("遠端已被其他寫入者更新，暫停自動寫入")
	default:
		p.opts.Metrics.PersistWrites.WithLabelValues(target, "error").Inc()
		entry.WithError(err).Error("寫入失敗，稍後重試")
	}
	return fmt.Errorf("%s save: %w", target, err)
}

func (p *Persister) markSaved(saved *uint64, changes uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if changes > *saved {
		*saved = changes
	}
}
