package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mun_dashboard/internal/logging"
	"mun_dashboard/internal/metrics"
	"mun_dashboard/internal/models"
	"mun_dashboard/internal/persist"
	"mun_dashboard/internal/repository"
	repomodels "mun_dashboard/internal/repository/models"
	"mun_dashboard/internal/session"
	"mun_dashboard/internal/storage"
)

// Activity 類型
const (
	ActivityVoteEnded    = "vote_ended"
	ActivityMotionStatus = "motion_status"
	ActivitySessionStart = "session_started"
	ActivitySessionStop  = "session_stopped"
)

// ChairSession 一個主席的開啟中會期
type ChairSession struct {
	Identity  Identity
	Store     *session.Store
	persister *persist.Persister

	// broadcastMu 讓快照依變更順序送出
	broadcastMu sync.Mutex
	lastUsed    time.Time
}

// Stale 遠端文件是否已被其他寫入者更新
func (cs *ChairSession) Stale() bool {
	return cs.persister.Stale()
}

type ChairService struct {
	mu       sync.Mutex
	sessions map[string]*ChairSession

	docs     *documentStore
	activity repository.ActivityRepository
	ws       *WebSocketService
	metrics  *metrics.Metrics
	abstain  session.AbstainPolicy
	idle     time.Duration
	now      func() time.Time
}

// NewChairService 建立主席服務；idle > 0 時超過該時間未使用的會期會在下次開啟會期時關閉
func NewChairService(repos *repository.Repositories, local *storage.LocalStore, ws *WebSocketService, m *metrics.Metrics, opts persist.Options, abstain session.AbstainPolicy, idle time.Duration) *ChairService {
	if m == nil {
		m = metrics.Discard()
	}
	s := &ChairService{
		sessions: make(map[string]*ChairSession),
		docs: &documentStore{
			kind:          repomodels.KindChair,
			schemaVersion: session.SchemaVersion,
			localKey:      storage.ChairKey,
			local:         local,
			opts:          opts,
			metrics:       m,
		},
		ws:      ws,
		metrics: m,
		abstain: abstain,
		idle:    idle,
		now:     time.Now,
	}
	if repos != nil {
		s.docs.docs = repos.Document
		s.activity = repos.Activity
	}
	return s
}

// Open 載入 (或回傳已開啟的) 會期並接上持久化與廣播
func (s *ChairService) Open(ctx context.Context, id Identity) (*ChairSession, error) {
	s.evictIdle(ctx, id.Key())

	s.mu.Lock()
	defer s.mu.Unlock()

	key := id.Key()
	if cs, ok := s.sessions[key]; ok {
		cs.lastUsed = s.now()
		return cs, nil
	}

	src := s.docs.load(ctx, id)
	state := models.DefaultChairState()
	if src.data != nil {
		decoded, err := session.DecodeDocument(src.data)
		if err != nil {
			s.docs.logger(id).WithError(err).Warn("文件無法解析，使用預設狀態")
		}
		state = decoded
	}

	store := session.NewStore(
		session.WithState(state),
		session.WithAbstainPolicy(s.abstain),
		session.WithClock(func() time.Time { return s.now().UTC() }),
	)
	cs := &ChairSession{Identity: id, Store: store, lastUsed: s.now()}
	cs.persister = s.docs.newPersister(id, src.revision, func() ([]byte, error) {
		return session.EncodeDocument(store.Snapshot())
	})
	store.OnChange(func() {
		cs.persister.Notify()
		if s.ws == nil {
			return
		}
		// 在鎖內取快照，後送出的快照一定不比先送出的舊
		cs.broadcastMu.Lock()
		defer cs.broadcastMu.Unlock()
		s.ws.BroadcastState(key, store.Snapshot())
	})

	s.sessions[key] = cs
	s.metrics.OpenSessions.WithLabelValues(repomodels.KindChair).Inc()
	s.docs.logger(id).WithField("source", src.source).Info("會期已開啟")
	return cs, nil
}

// Session 取得會期，尚未開啟時自動開啟
func (s *ChairService) Session(ctx context.Context, id Identity) (*ChairSession, error) {
	return s.Open(ctx, id)
}

// Save 立即寫入本機與遠端
func (s *ChairService) Save(ctx context.Context, id Identity) error {
	cs, err := s.Open(ctx, id)
	if err != nil {
		return err
	}
	return cs.persister.Flush(ctx)
}

// Close 寫入並關閉會期；未開啟時不做事
func (s *ChairService) Close(ctx context.Context, id Identity) error {
	s.mu.Lock()
	cs, ok := s.sessions[id.Key()]
	delete(s.sessions, id.Key())
	s.mu.Unlock()

	if !ok {
		return nil
	}
	s.metrics.OpenSessions.WithLabelValues(repomodels.KindChair).Dec()
	return closePersister(ctx, cs.persister)
}

// evictIdle 關閉超過 idle 未使用的會期 (keep 除外)
func (s *ChairService) evictIdle(ctx context.Context, keep string) {
	if s.idle <= 0 {
		return
	}
	cutoff := s.now().Add(-s.idle)

	s.mu.Lock()
	var idle []*ChairSession
	for key, cs := range s.sessions {
		if key != keep && cs.lastUsed.Before(cutoff) {
			idle = append(idle, cs)
			delete(s.sessions, key)
		}
	}
	s.mu.Unlock()

	for _, cs := range idle {
		s.metrics.OpenSessions.WithLabelValues(repomodels.KindChair).Dec()
		if err := closePersister(ctx, cs.persister); err != nil {
			s.docs.logger(cs.Identity).WithError(err).Warn("關閉閒置會期時寫入失敗")
		} else {
			s.docs.logger(cs.Identity).Info("已關閉閒置會期")
		}
	}
}

func (s *ChairService) CloseAll(ctx context.Context) error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*ChairSession)
	s.mu.Unlock()

	var errs []error
	for key, cs := range sessions {
		s.metrics.OpenSessions.WithLabelValues(repomodels.KindChair).Dec()
		if err := closePersister(ctx, cs.persister); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// EndVote 結束投票並記錄結果
func (s *ChairService) EndVote(ctx context.Context, cs *ChairSession) (models.Motion, error) {
	motion, err := cs.Store.EndVote()
	if err != nil || motion.ID == "" {
		return motion, err
	}
	s.metrics.VotesCompleted.WithLabelValues(string(motion.Status)).Inc()

	content := string(motion.Status)
	if motion.Votes != nil {
		content = fmt.Sprintf("%s %d-%d-%d", motion.Status, motion.Votes.Yes, motion.Votes.No, motion.Votes.Abstain)
	}
	s.record(ctx, cs.Identity, ActivityVoteEnded, motion.ID, content)
	return motion, nil
}

func (s *ChairService) SetMotionStatus(ctx context.Context, cs *ChairSession, id string, status models.MotionStatus) error {
	if err := cs.Store.SetMotionStatus(id, status); err != nil {
		return err
	}
	s.record(ctx, cs.Identity, ActivityMotionStatus, id, string(status))
	return nil
}

func (s *ChairService) StartSession(ctx context.Context, cs *ChairSession) error {
	if err := cs.Store.StartSession(); err != nil {
		return err
	}
	s.record(ctx, cs.Identity, ActivitySessionStart, "", cs.Store.Snapshot().Committee)
	return nil
}

func (s *ChairService) StopSession(ctx context.Context, cs *ChairSession) error {
	if err := cs.Store.StopSession(); err != nil {
		return err
	}
	s.record(ctx, cs.Identity, ActivitySessionStop, "", cs.Store.Snapshot().Committee)
	return nil
}

// Activity 會期紀錄；沒有資料庫時回傳空清單
func (s *ChairService) Activity(ctx context.Context, id Identity, limit int) ([]repomodels.Activity, error) {
	if s.activity == nil {
		return []repomodels.Activity{}, nil
	}
	return s.activity.FindByUserID(ctx, id.Key(), limit)
}

// record 寫入會期紀錄；失敗只記 log，不影響狀態變更
func (s *ChairService) record(ctx context.Context, id Identity, kind, motionID, content string) {
	if s.activity == nil {
		return
	}
	err := s.activity.Create(ctx, &repomodels.Activity{
		UserID:    id.Key(),
		Type:      kind,
		MotionID:  motionID,
		Content:   content,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		logging.Log.WithError(err).WithField("identity", id.Key()).Warn("無法寫入會期紀錄")
	}
}
