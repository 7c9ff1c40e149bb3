// Package prep 保存代表端的會議準備資料：多場會議與目前選取的會議。
package prep

import (
	"errors"
	"strings"
	"sync"
	"time"

	"mun_dashboard/internal/models"
	"mun_dashboard/internal/utils"
)

var (
	ErrConferenceNotFound = errors.New("找不到會議")
	ErrIndexOutOfRange    = errors.New("索引超出範圍")
	ErrUnknownChecklist   = errors.New("未知的清單項目")
	ErrEmptyInput         = errors.New("輸入不可為空白")
	ErrInvalidDate        = errors.New("無效的日期")
)

// Store 代表端準備資料的容器，永遠至少有一場會議
type Store struct {
	mu       sync.RWMutex
	state    models.DelegateState
	newID    func() string
	onChange func()
}

type Option func(*Store)

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithState 以載入的狀態建立 store
func WithState(state models.DelegateState) Option {
	return func(s *Store) { s.state = state.Clone() }
}

func NewStore(opts ...Option) *Store {
	s := &Store{newID: utils.NewID}
	for _, opt := range opts {
		opt(s)
	}
	normalize(&s.state, s.newID)
	return s
}

// normalize 保證至少有一場會議且 active 指向存在的會議
func normalize(st *models.DelegateState, newID func() string) {
	if len(st.Conferences) == 0 {
		st.Conferences = []models.Conference{models.NewConference(newID())}
	}
	if indexOf(st, st.ActiveConferenceID) < 0 {
		st.ActiveConferenceID = st.Conferences[0].ID
	}
}

func indexOf(st *models.DelegateState, id string) int {
	for i := range st.Conferences {
		if st.Conferences[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Store) Snapshot() models.DelegateState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Store) Restore(state models.DelegateState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
	normalize(&s.state, s.newID)
}

func (s *Store) update(fn func(st *models.DelegateState) error) error {
	s.mu.Lock()
	err := fn(&s.state)
	hook := s.onChange
	s.mu.Unlock()

	if err == nil && hook != nil {
		hook()
	}
	return err
}

// updateActive 修改目前選取的會議
func (s *Store) updateActive(fn func(c *models.Conference) error) error {
	return s.update(func(st *models.DelegateState) error {
		idx := indexOf(st, st.ActiveConferenceID)
		if idx < 0 {
			return ErrConferenceNotFound
		}
		return fn(&st.Conferences[idx])
	})
}

// Active 目前選取的會議
func (s *Store) Active() models.Conference {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Conferences[indexOf(&s.state, s.state.ActiveConferenceID)].Clone()
}

// AddConference 新增會議並設為目前會議
func (s *Store) AddConference() (models.Conference, error) {
	var c models.Conference
	err := s.update(func(st *models.DelegateState) error {
		c = models.NewConference(s.newID())
		st.Conferences = append(st.Conferences, c)
		st.ActiveConferenceID = c.ID
		return nil
	})
	return c, err
}

// RemoveConference 刪除會議；刪到最後一場時補上一場新的
func (s *Store) RemoveConference(id string) error {
	return s.update(func(st *models.DelegateState) error {
		idx := indexOf(st, id)
		if idx < 0 {
			return ErrConferenceNotFound
		}
		st.Conferences = append(st.Conferences[:idx:idx], st.Conferences[idx+1:]...)
		normalize(st, s.newID)
		return nil
	})
}

func (s *Store) SetActiveConference(id string) error {
	return s.update(func(st *models.DelegateState) error {
		if indexOf(st, id) < 0 {
			return ErrConferenceNotFound
		}
		st.ActiveConferenceID = id
		return nil
	})
}

// ConferencePatch 目前會議的欄位修改，nil 表示不變
type ConferencePatch struct {
	Name                  *string   `json:"name,omitempty"`
	Country               *string   `json:"country,omitempty"`
	DelegateEmail         *string   `json:"delegateEmail,omitempty"`
	StanceOverview        *string   `json:"stanceOverview,omitempty"`
	CommitteeCount        *int      `json:"committeeCount,omitempty"`
	Committees            *[]string `json:"committees,omitempty"`
	CountdownDate         *string   `json:"countdownDate,omitempty"`
	ConferenceEndDate     *string   `json:"conferenceEndDate,omitempty"`
	PositionPaperDeadline *string   `json:"positionPaperDeadline,omitempty"`
}

// UpdateActive 套用欄位修改；委員會數量限制在 0..20，日期必須可解析 (或為空)
func (s *Store) UpdateActive(patch ConferencePatch) error {
	for _, d := range []*string{patch.CountdownDate, patch.ConferenceEndDate, patch.PositionPaperDeadline} {
		if d != nil && *d != "" {
			if _, err := ParseDate(*d); err != nil {
				return ErrInvalidDate
			}
		}
	}
	return s.updateActive(func(c *models.Conference) error {
		if patch.Name != nil {
			c.Name = *patch.Name
		}
		if patch.Country != nil {
			c.Country = *patch.Country
		}
		if patch.DelegateEmail != nil {
			c.DelegateEmail = *patch.DelegateEmail
		}
		if patch.StanceOverview != nil {
			c.StanceOverview = *patch.StanceOverview
		}
		if patch.CommitteeCount != nil {
			c.CommitteeCount = clamp(*patch.CommitteeCount, 0, models.MaxCommitteeCount)
		}
		if patch.Committees != nil {
			c.Committees = append([]string{}, (*patch.Committees)...)
		}
		if patch.CountdownDate != nil {
			c.CountdownDate = *patch.CountdownDate
		}
		if patch.ConferenceEndDate != nil {
			c.ConferenceEndDate = *patch.ConferenceEndDate
		}
		if patch.PositionPaperDeadline != nil {
			c.PositionPaperDeadline = *patch.PositionPaperDeadline
		}
		return nil
	})
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func (s *Store) AddMatrixEntry(entry models.MatrixEntry) error {
	entry.Committee = strings.TrimSpace(entry.Committee)
	if entry.Committee == "" {
		return ErrEmptyInput
	}
	return s.updateActive(func(c *models.Conference) error {
		c.CommitteeMatrix = append(c.CommitteeMatrix, entry)
		return nil
	})
}

func (s *Store) RemoveMatrixEntry(index int) error {
	return s.updateActive(func(c *models.Conference) error {
		return removeAt(&c.CommitteeMatrix, index)
	})
}

// ToggleChecklist 切換固定清單中的一項
func (s *Store) ToggleChecklist(key string) error {
	if !models.IsChecklistKey(key) {
		return ErrUnknownChecklist
	}
	return s.updateActive(func(c *models.Conference) error {
		if c.Checklist == nil {
			c.Checklist = models.DefaultChecklist()
		}
		c.Checklist[key] = !c.Checklist[key]
		return nil
	})
}

// SourceList 來源清單種類
type SourceList string

const (
	TrustedSources SourceList = "trusted"
	NationSources  SourceList = "nation"
)

func sourceTarget(c *models.Conference, list SourceList) *[]string {
	switch list {
	case TrustedSources:
		return &c.TrustedSources
	case NationSources:
		return &c.NationSources
	}
	return nil
}

func (s *Store) AddSource(list SourceList, source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return ErrEmptyInput
	}
	return s.updateActive(func(c *models.Conference) error {
		target := sourceTarget(c, list)
		if target == nil {
			return ErrUnknownChecklist
		}
		*target = append(*target, source)
		return nil
	})
}

func (s *Store) RemoveSource(list SourceList, index int) error {
	return s.updateActive(func(c *models.Conference) error {
		target := sourceTarget(c, list)
		if target == nil {
			return ErrUnknownChecklist
		}
		return removeAt(target, index)
	})
}

func (s *Store) AddResource(name, url string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyInput
	}
	return s.updateActive(func(c *models.Conference) error {
		c.UploadedResources = append(c.UploadedResources, models.Resource{Name: name, URL: strings.TrimSpace(url)})
		return nil
	})
}

func (s *Store) RemoveResource(index int) error {
	return s.updateActive(func(c *models.Conference) error {
		return removeAt(&c.UploadedResources, index)
	})
}

func removeAt[T any](list *[]T, index int) error {
	if index < 0 || index >= len(*list) {
		return ErrIndexOutOfRange
	}
	*list = append((*list)[:index:index], (*list)[index+1:]...)
	return nil
}

// dateLayouts 接受 RFC3339 與 datetime-local 輸入的格式
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate 解析會議日期，沒有時區的輸入視為 UTC
func ParseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Countdowns 計算目前會議各個日期的倒數；未設定的日期不列出
func (s *Store) Countdowns(now time.Time) []models.Countdown {
	c := s.Active()
	targets := []struct{ label, value string }{
		{"conference", c.CountdownDate},
		{"conferenceEnd", c.ConferenceEndDate},
		{"positionPaper", c.PositionPaperDeadline},
	}
	out := []models.Countdown{}
	for _, t := range targets {
		if t.value == "" {
			continue
		}
		at, err := ParseDate(t.value)
		if err != nil {
			continue
		}
		out = append(out, countdown(t.label, t.value, at.Sub(now)))
	}
	return out
}

func countdown(label, target string, d time.Duration) models.Countdown {
	cd := models.Countdown{Label: label, Target: target}
	if d <= 0 {
		cd.Passed = true
		return cd
	}
	total := int(d / time.Second)
	cd.Days = total / 86400
	cd.Hours = total % 86400 / 3600
	cd.Minutes = total % 3600 / 60
	cd.Seconds = total % 60
	return cd
}
