package session

import (
	"time"

	"mun_dashboard/internal/models"
)

// AddToSpeakers 將代表加入發言名單，保存國家與姓名的快照與目前的預設發言時間
func (s *Store) AddToSpeakers(participantID string) (models.Speaker, error) {
	var sp models.Speaker
	err := s.update(func(st *models.ChairState) error {
		idx := findParticipant(st, participantID)
		if idx < 0 {
			return ErrParticipantNotFound
		}
		p := st.Delegates[idx]
		sp = models.Speaker{
			ID:         s.newID(),
			DelegateID: p.ID,
			Country:    p.Country,
			Name:       p.Name,
			Duration:   st.SpeakerDuration,
		}
		st.Speakers = append(st.Speakers, sp)
		return nil
	})
	return sp, err
}

// RemoveFromSpeakers 從名單移除；移除目前發言者時一併清除
func (s *Store) RemoveFromSpeakers(id string) error {
	return s.update(func(st *models.ChairState) error {
		idx := findSpeaker(st, id)
		if idx < 0 {
			return ErrSpeakerNotFound
		}
		st.Speakers = append(st.Speakers[:idx:idx], st.Speakers[idx+1:]...)
		if st.ActiveSpeaker != nil && st.ActiveSpeaker.ID == id {
			st.ActiveSpeaker = nil
		}
		return nil
	})
}

// SetActiveSpeaker 指定目前發言者並記錄開始時間，其餘全部取消發言；
// id 為空字串時只清除目前發言者
func (s *Store) SetActiveSpeaker(id string) error {
	return s.update(func(st *models.ChairState) error {
		idx := -1
		if id != "" {
			if idx = findSpeaker(st, id); idx < 0 {
				return ErrSpeakerNotFound
			}
		}
		for i := range st.Speakers {
			st.Speakers[i].Speaking = false
		}
		if idx < 0 {
			st.ActiveSpeaker = nil
			return nil
		}
		start := s.now().UnixMilli()
		st.Speakers[idx].Speaking = true
		st.Speakers[idx].StartTime = &start
		active := st.Speakers[idx]
		active.StartTime = &start
		st.ActiveSpeaker = &active
		return nil
	})
}

func (s *Store) ActiveSpeaker() (models.Speaker, bool) {
	var (
		sp models.Speaker
		ok bool
	)
	s.read(func(st *models.ChairState) {
		if st.ActiveSpeaker != nil {
			sp, ok = *st.ActiveSpeaker, true
			if sp.StartTime != nil {
				start := *sp.StartTime
				sp.StartTime = &start
			}
		}
	})
	return sp, ok
}

func (s *Store) Speakers() []models.Speaker {
	var out []models.Speaker
	s.read(func(st *models.ChairState) {
		out = st.Clone().Speakers
	})
	return out
}

// SpeakerClock 目前發言者已用與剩餘的秒數
func (s *Store) SpeakerClock() (models.SpeakerClock, bool) {
	sp, ok := s.ActiveSpeaker()
	if !ok || sp.StartTime == nil {
		return models.SpeakerClock{}, false
	}
	elapsed := int(s.now().Sub(time.UnixMilli(*sp.StartTime)) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := sp.Duration - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return models.SpeakerClock{
		SpeakerID: sp.ID,
		Elapsed:   elapsed,
		Remaining: remaining,
		Overtime:  elapsed > sp.Duration,
	}, true
}

// SetSpeakerDuration 設定新加入發言者的預設時間 (秒)
func (s *Store) SetSpeakerDuration(seconds int) error {
	if seconds <= 0 {
		return ErrInvalidDuration
	}
	return s.update(func(st *models.ChairState) error {
		st.SpeakerDuration = seconds
		return nil
	})
}
