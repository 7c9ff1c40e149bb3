// Package session 保存一個委員會會議的即時狀態，並提供點名、動議、表決、
// 發言名單與紀律紀錄的操作。
//
// 所有操作都是同步的記憶體內修改。無法執行的操作 (未知的 id、空白輸入、
// 不可表決的程序問題等) 會回傳對應的錯誤，且狀態保持不變；呼叫端可以忽略這些錯誤。
// 狀態成功改變後會呼叫 change hook，由服務層負責持久化與廣播。
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"mun_dashboard/internal/models"
	"mun_dashboard/internal/utils"
)

var (
	ErrParticipantNotFound = errors.New("找不到代表")
	ErrMotionNotFound      = errors.New("找不到動議")
	ErrSpeakerNotFound     = errors.New("找不到發言者")
	ErrEmptyInput          = errors.New("輸入不可為空白")
	ErrInvalidStatus       = errors.New("無效的狀態")
	ErrInvalidMotionType   = errors.New("無效的動議類型")
	ErrInvalidBallot       = errors.New("無效的選票")
	ErrInvalidFeedback     = errors.New("無效的回饋類型")
	ErrInvalidDuration     = errors.New("發言時間必須大於零")
	ErrInvalidChecklist    = errors.New("無效的清單種類")
	ErrInvalidCrisisList   = errors.New("無效的危機清單")
	ErrIllegalTransition   = errors.New("不合法的動議狀態轉換")
	ErrPointNotVotable     = errors.New("程序問題不能表決")
	ErrVoteInProgress      = errors.New("動議正在表決中")
	ErrNoVoteInProgress    = errors.New("目前沒有進行中的表決")
	ErrNotEligible         = errors.New("缺席的代表不能投票")
	ErrAbstainNotAllowed   = errors.New("出席且投票的代表不能棄權")
	ErrNoMatchingStrike    = errors.New("沒有符合的警告紀錄")
)

// AbstainPolicy 決定「出席且投票」的代表能否投棄權票
type AbstainPolicy int

const (
	// AbstainRejectPresentAndVoting 拒絕 present-and-voting 代表的棄權票
	AbstainRejectPresentAndVoting AbstainPolicy = iota
	// AbstainAllowAll 任何出席的代表都可以棄權
	AbstainAllowAll
)

func (p AbstainPolicy) String() string {
	switch p {
	case AbstainAllowAll:
		return "allow-all"
	default:
		return "reject-present-and-voting"
	}
}

// ParseAbstainPolicy 解析設定檔中的棄權政策
func ParseAbstainPolicy(s string) (AbstainPolicy, error) {
	switch s {
	case "", "reject-present-and-voting":
		return AbstainRejectPresentAndVoting, nil
	case "allow-all":
		return AbstainAllowAll, nil
	}
	return AbstainRejectPresentAndVoting, fmt.Errorf("unknown abstain policy %q", s)
}

// Store 一個委員會會議的狀態容器，由服務層擁有並在關閉會議時釋放
type Store struct {
	mu       sync.RWMutex
	state    models.ChairState
	now      func() time.Time
	newID    func() string
	abstain  AbstainPolicy
	onChange func()
}

type Option func(*Store)

// WithClock 替換時間來源 (測試用)
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator 替換 id 產生器 (測試用)
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func WithAbstainPolicy(p AbstainPolicy) Option {
	return func(s *Store) { s.abstain = p }
}

// WithState 以既有狀態 (通常來自 DecodeDocument) 建立 store
func WithState(state models.ChairState) Option {
	return func(s *Store) { s.state = state.Clone() }
}

// NewStore 建立會議狀態，未指定時使用預設值
func NewStore(opts ...Option) *Store {
	s := &Store{
		state:   models.DefaultChairState(),
		now:     time.Now,
		newID:   utils.NewID,
		abstain: AbstainRejectPresentAndVoting,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange 設定狀態改變後的 hook，hook 在鎖外執行
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Store) AbstainPolicy() AbstainPolicy {
	return s.abstain
}

// Snapshot 回傳整個狀態樹的深層複製
func (s *Store) Snapshot() models.ChairState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Restore 以載入的狀態覆蓋目前狀態，不觸發 change hook
func (s *Store) Restore(state models.ChairState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
}

// update 在寫鎖內執行 fn；fn 回傳錯誤時不得修改狀態
func (s *Store) update(fn func(st *models.ChairState) error) error {
	s.mu.Lock()
	err := fn(&s.state)
	hook := s.onChange
	s.mu.Unlock()

	if err == nil && hook != nil {
		hook()
	}
	return err
}

func (s *Store) read(fn func(st *models.ChairState)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.state)
}

func findParticipant(st *models.ChairState, id string) int {
	for i := range st.Delegates {
		if st.Delegates[i].ID == id {
			return i
		}
	}
	return -1
}

func findMotion(st *models.ChairState, id string) int {
	for i := range st.Motions {
		if st.Motions[i].ID == id {
			return i
		}
	}
	return -1
}

func findSpeaker(st *models.ChairState, id string) int {
	for i := range st.Speakers {
		if st.Speakers[i].ID == id {
			return i
		}
	}
	return -1
}
