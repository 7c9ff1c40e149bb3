package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"mun_dashboard/internal/logging"
	"mun_dashboard/internal/metrics"
	"mun_dashboard/internal/persist"
	"mun_dashboard/internal/repository"
	repomodels "mun_dashboard/internal/repository/models"
	"mun_dashboard/internal/storage"
)

// documentStore 負責單一類型文件的載入與 persister 建立，chair 與 delegate 共用
type documentStore struct {
	kind          string
	schemaVersion int
	localKey      func(identity string) []byte
	docs          repository.DocumentRepository
	local         *storage.LocalStore
	opts          persist.Options
	metrics       *metrics.Metrics
}

// loaded 載入結果；data 為 nil 表示沒有任何已存文件
type loaded struct {
	data     []byte
	revision int64
	source   string
}

// load 登入使用者優先讀遠端，失敗或沒有文件時退回本機副本
func (d *documentStore) load(ctx context.Context, id Identity) loaded {
	log := d.logger(id)

	if id.SignedIn() && d.docs != nil {
		doc, err := d.docs.Find(ctx, d.kind, id.UserID)
		switch {
		case err == nil:
			return loaded{data: []byte(doc.Data), revision: doc.Revision, source: persist.TargetRemote}
		case errors.Is(err, repository.ErrDocumentNotFound):
			log.Debug("遠端沒有文件")
		default:
			log.WithError(err).Warn("讀取遠端文件失敗，改用本機副本")
		}
	}

	if d.local != nil {
		data, err := d.local.Get(d.localKey(id.Key()))
		switch {
		case err == nil:
			return loaded{data: data, source: persist.TargetLocal}
		case errors.Is(err, storage.ErrNotFound):
		default:
			log.WithError(err).Warn("讀取本機副本失敗")
		}
	}
	return loaded{}
}

func (d *documentStore) newPersister(id Identity, revision int64, snapshot persist.SnapshotFunc) *persist.Persister {
	opts := d.opts
	opts.InitialRevision = revision
	opts.Metrics = d.metrics
	opts.Logger = d.logger(id)

	var local, remote persist.Saver
	if d.local != nil {
		key := d.localKey(id.Key())
		local = persist.SaverFunc(func(_ context.Context, _ int64, data []byte) error {
			return d.local.Put(key, data)
		})
	}
	if id.SignedIn() && d.docs != nil {
		remote = persist.SaverFunc(func(ctx context.Context, revision int64, data []byte) error {
			err := d.docs.Save(ctx, &repomodels.Document{
				Kind:          d.kind,
				UserID:        id.UserID,
				Data:          string(data),
				SchemaVersion: d.schemaVersion,
				Revision:      revision,
			})
			if errors.Is(err, repository.ErrStaleRevision) {
				return fmt.Errorf("%w: %w", persist.ErrStale, err)
			}
			return err
		})
	}
	return persist.New(snapshot, local, remote, opts)
}

func (d *documentStore) logger(id Identity) *logrus.Entry {
	return logging.Log.WithFields(logrus.Fields{"kind": d.kind, "identity": id.Key()})
}

// closePersister 寫入最後狀態後停止
func closePersister(ctx context.Context, p *persist.Persister) error {
	err := p.Flush(ctx)
	p.Close()
	return err
}
