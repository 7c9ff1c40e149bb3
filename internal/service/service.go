package service

import (
	"context"
	"errors"
	"time"

	"mun_dashboard/internal/metrics"
	"mun_dashboard/internal/persist"
	"mun_dashboard/internal/repository"
	"mun_dashboard/internal/session"
	"mun_dashboard/internal/storage"
)

type Services struct {
	Chair     *ChairService
	Delegate  *DelegateService
	WebSocket *WebSocketService
}

// Options 建立 Services 所需的設定；Repos 或 Local 為 nil 時停用對應儲存
type Options struct {
	Repos         *repository.Repositories
	Local         *storage.LocalStore
	Metrics       *metrics.Metrics
	Persist       persist.Options
	AbstainPolicy session.AbstainPolicy
	// IdleTimeout 超過此時間未使用的會期會被關閉；<= 0 表示只在明確關閉或停機時關閉
	IdleTimeout time.Duration
}

func NewServices(opts Options) *Services {
	ws := NewWebSocketService()
	return &Services{
		Chair:     NewChairService(opts.Repos, opts.Local, ws, opts.Metrics, opts.Persist, opts.AbstainPolicy, opts.IdleTimeout),
		Delegate:  NewDelegateService(opts.Repos, opts.Local, opts.Metrics, opts.Persist, opts.IdleTimeout),
		WebSocket: ws,
	}
}

// CloseAll 寫入並關閉所有開啟中的會期
func (s *Services) CloseAll(ctx context.Context) error {
	return errors.Join(s.Chair.CloseAll(ctx), s.Delegate.CloseAll(ctx))
}
