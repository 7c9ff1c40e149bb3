package session

import (
	"sort"
	"strings"

	"mun_dashboard/internal/models"
)

// AddStrike 為代表新增一筆違規紀錄；未知的代表不會產生孤兒紀錄
func (s *Store) AddStrike(participantID, strikeType string) error {
	strikeType = strings.TrimSpace(strikeType)
	if strikeType == "" {
		return ErrEmptyInput
	}
	return s.update(func(st *models.ChairState) error {
		if findParticipant(st, participantID) < 0 {
			return ErrParticipantNotFound
		}
		st.DelegateStrikes = append(st.DelegateStrikes, models.Strike{
			DelegateID: participantID,
			Type:       strikeType,
			Timestamp:  s.now().UTC(),
		})
		return nil
	})
}

// RemoveStrike 移除最近一筆符合的紀錄
func (s *Store) RemoveStrike(participantID, strikeType string) error {
	strikeType = strings.TrimSpace(strikeType)
	return s.update(func(st *models.ChairState) error {
		for i := len(st.DelegateStrikes) - 1; i >= 0; i-- {
			x := st.DelegateStrikes[i]
			if x.DelegateID == participantID && x.Type == strikeType {
				st.DelegateStrikes = append(st.DelegateStrikes[:i:i], st.DelegateStrikes[i+1:]...)
				return nil
			}
		}
		return ErrNoMatchingStrike
	})
}

func (s *Store) StrikeCount(participantID, strikeType string) int {
	n := 0
	s.read(func(st *models.ChairState) {
		for _, x := range st.DelegateStrikes {
			if x.DelegateID == participantID && x.Type == strikeType {
				n++
			}
		}
	})
	return n
}

// StrikeCountsByType 依類型統計代表的警告數
func (s *Store) StrikeCountsByType(participantID string) map[string]int {
	counts := map[string]int{}
	s.read(func(st *models.ChairState) {
		for _, x := range st.DelegateStrikes {
			if x.DelegateID == participantID {
				counts[x.Type]++
			}
		}
	})
	return counts
}

// IsFlagged 同類型警告是否已達門檻
func (s *Store) IsFlagged(participantID, strikeType string) bool {
	return s.StrikeCount(participantID, strikeType) >= models.StrikeThreshold
}

// FlaggedTypes 已達門檻的警告類型 (排序)
func (s *Store) FlaggedTypes(participantID string) []string {
	flagged := []string{}
	for t, n := range s.StrikeCountsByType(participantID) {
		if n >= models.StrikeThreshold {
			flagged = append(flagged, t)
		}
	}
	sort.Strings(flagged)
	return flagged
}

func (s *Store) Strikes(participantID string) []models.Strike {
	out := []models.Strike{}
	s.read(func(st *models.ChairState) {
		for _, x := range st.DelegateStrikes {
			if x.DelegateID == participantID {
				out = append(out, x)
			}
		}
	})
	return out
}

func (s *Store) AddFeedback(participantID string, feedbackType models.FeedbackType) error {
	if !feedbackType.Valid() {
		return ErrInvalidFeedback
	}
	return s.update(func(st *models.ChairState) error {
		if findParticipant(st, participantID) < 0 {
			return ErrParticipantNotFound
		}
		st.DelegateFeedback = append(st.DelegateFeedback, models.Feedback{
			DelegateID: participantID,
			Type:       feedbackType,
			Timestamp:  s.now().UTC(),
		})
		return nil
	})
}

// FeedbackCountsByType 回傳兩種回饋的數量 (沒有紀錄時為零)
func (s *Store) FeedbackCountsByType(participantID string) map[models.FeedbackType]int {
	counts := map[models.FeedbackType]int{
		models.FeedbackCompliment: 0,
		models.FeedbackConcern:    0,
	}
	s.read(func(st *models.ChairState) {
		for _, x := range st.DelegateFeedback {
			if x.DelegateID == participantID {
				counts[x.Type]++
			}
		}
	})
	return counts
}

func (s *Store) Feedback(participantID string) []models.Feedback {
	out := []models.Feedback{}
	s.read(func(st *models.ChairState) {
		for _, x := range st.DelegateFeedback {
			if x.DelegateID == participantID {
				out = append(out, x)
			}
		}
	})
	return out
}
