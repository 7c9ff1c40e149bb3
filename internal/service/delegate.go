package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mun_dashboard/internal/metrics"
	"mun_dashboard/internal/persist"
	"mun_dashboard/internal/prep"
	"mun_dashboard/internal/repository"
	repomodels "mun_dashboard/internal/repository/models"
	"mun_dashboard/internal/storage"
)

// DelegateSession 一位代表開啟中的準備資料
type DelegateSession struct {
	Identity  Identity
	Store     *prep.Store
	persister *persist.Persister
	lastUsed  time.Time
}

type DelegateService struct {
	mu       sync.Mutex
	sessions map[string]*DelegateSession

	docs    *documentStore
	metrics *metrics.Metrics
	idle    time.Duration
	now     func() time.Time
}

func NewDelegateService(repos *repository.Repositories, local *storage.LocalStore, m *metrics.Metrics, opts persist.Options, idle time.Duration) *DelegateService {
	if m == nil {
		m = metrics.Discard()
	}
	s := &DelegateService{
		sessions: make(map[string]*DelegateSession),
		docs: &documentStore{
			kind:          repomodels.KindDelegate,
			schemaVersion: prep.SchemaVersion,
			localKey:      storage.DelegateKey,
			local:         local,
			opts:          opts,
			metrics:       m,
		},
		metrics: m,
		idle:    idle,
		now:     time.Now,
	}
	if repos != nil {
		s.docs.docs = repos.Document
	}
	return s
}

func (s *DelegateService) Open(ctx context.Context, id Identity) (*DelegateSession, error) {
	s.evictIdle(ctx, id.Key())

	s.mu.Lock()
	defer s.mu.Unlock()

	key := id.Key()
	if ds, ok := s.sessions[key]; ok {
		ds.lastUsed = s.now()
		return ds, nil
	}

	src := s.docs.load(ctx, id)
	var opts []prep.Option
	if src.data != nil {
		state, err := prep.DecodeDocument(src.data)
		if err != nil {
			s.docs.logger(id).WithError(err).Warn("文件無法解析，使用預設狀態")
		}
		opts = append(opts, prep.WithState(state))
	}

	store := prep.NewStore(opts...)
	ds := &DelegateSession{Identity: id, Store: store, lastUsed: s.now()}
	ds.persister = s.docs.newPersister(id, src.revision, func() ([]byte, error) {
		return prep.EncodeDocument(store.Snapshot())
	})
	store.OnChange(ds.persister.Notify)

	s.sessions[key] = ds
	s.metrics.OpenSessions.WithLabelValues(repomodels.KindDelegate).Inc()
	s.docs.logger(id).WithField("source", src.source).Info("準備資料已開啟")
	return ds, nil
}

func (s *DelegateService) Session(ctx context.Context, id Identity) (*DelegateSession, error) {
	return s.Open(ctx, id)
}

func (s *DelegateService) Save(ctx context.Context, id Identity) error {
	ds, err := s.Open(ctx, id)
	if err != nil {
		return err
	}
	return ds.persister.Flush(ctx)
}

func (s *DelegateService) Close(ctx context.Context, id Identity) error {
	s.mu.Lock()
	ds, ok := s.sessions[id.Key()]
	delete(s.sessions, id.Key())
	s.mu.Unlock()

	if !ok {
		return nil
	}
	s.metrics.OpenSessions.WithLabelValues(repomodels.KindDelegate).Dec()
	return closePersister(ctx, ds.persister)
}

func (s *DelegateService) evictIdle(ctx context.Context, keep string) {
	if s.idle <= 0 {
		return
	}
	cutoff := s.now().Add(-s.idle)

	s.mu.Lock()
	var idle []*DelegateSession
	for key, ds := range s.sessions {
		if key != keep && ds.lastUsed.Before(cutoff) {
			idle = append(idle, ds)
			delete(s.sessions, key)
		}
	}
	s.mu.Unlock()

	for _, ds := range idle {
		s.metrics.OpenSessions.WithLabelValues(repomodels.KindDelegate).Dec()
		if err := closePersister(ctx, ds.persister); err != nil {
			s.docs.logger(ds.Identity).WithError(err).Warn("關閉閒置準備資料時寫入失敗")
		}
	}
}

func (s *DelegateService) CloseAll(ctx context.Context) error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*DelegateSession)
	s.mu.Unlock()

	var errs []error
	for key, ds := range sessions {
		s.metrics.OpenSessions.WithLabelValues(repomodels.KindDelegate).Dec()
		if err := closePersister(ctx, ds.persister); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
