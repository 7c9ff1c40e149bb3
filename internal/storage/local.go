package storage

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrNotFound 本機儲存沒有這個 key
var ErrNotFound = errors.New("找不到本機資料")

const (
	ChairKeyPrefix    = "mun-dashboard-chair-state/"
	DelegateKeyPrefix = "mun-dashboard-delegate-state/"
)

func ChairKey(identity string) []byte {
	return []byte(ChairKeyPrefix + identity)
}

func DelegateKey(identity string) []byte {
	return []byte(DelegateKeyPrefix + identity)
}

// LocalStore 本機備援儲存，保存每個身分最後一份文件
type LocalStore struct {
	db *badger.DB
}

// NewLocalStore dir 為空時使用記憶體模式
func NewLocalStore(dir string) (*LocalStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	return &LocalStore{db: db}, nil
}

func (s *LocalStore) Put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *LocalStore) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return out, err
}

func (s *LocalStore) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}
