package session

import (
	"strings"

	"mun_dashboard/internal/models"
)

// AddParticipant 新增代表並產生新的 id；國家/姓名不要求唯一 (雙代表團)
func (s *Store) AddParticipant(p models.Participant) (models.Participant, error) {
	p.Country = strings.TrimSpace(p.Country)
	if p.Country == "" {
		return models.Participant{}, ErrEmptyInput
	}
	if p.RollCallStatus != "" && !p.RollCallStatus.Valid() {
		return models.Participant{}, ErrInvalidStatus
	}

	err := s.update(func(st *models.ChairState) error {
		p.ID = s.newID()
		st.Delegates = append(st.Delegates, p)
		return nil
	})
	return p, err
}

// RemoveParticipant 移除代表，並連帶刪除其警告、回饋與進行中表決的選票
func (s *Store) RemoveParticipant(id string) error {
	return s.update(func(st *models.ChairState) error {
		idx := findParticipant(st, id)
		if idx < 0 {
			return ErrParticipantNotFound
		}
		st.Delegates = append(st.Delegates[:idx:idx], st.Delegates[idx+1:]...)

		strikes := st.DelegateStrikes[:0:0]
		for _, x := range st.DelegateStrikes {
			if x.DelegateID != id {
				strikes = append(strikes, x)
			}
		}
		st.DelegateStrikes = strikes

		feedback := st.DelegateFeedback[:0:0]
		for _, x := range st.DelegateFeedback {
			if x.DelegateID != id {
				feedback = append(feedback, x)
			}
		}
		st.DelegateFeedback = feedback

		delete(st.DelegateVotes, id)
		return nil
	})
}

// UpdateParticipant 淺層合併 patch 欄位
func (s *Store) UpdateParticipant(id string, patch models.ParticipantPatch) error {
	if patch.RollCallStatus != nil && !patch.RollCallStatus.Valid() {
		return ErrInvalidStatus
	}
	return s.update(func(st *models.ChairState) error {
		idx := findParticipant(st, id)
		if idx < 0 {
			return ErrParticipantNotFound
		}
		p := &st.Delegates[idx]
		if patch.Country != nil {
			p.Country = strings.TrimSpace(*patch.Country)
		}
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Email != nil {
			p.Email = *patch.Email
		}
		if patch.Committee != nil {
			p.Committee = *patch.Committee
		}
		if patch.RollCallStatus != nil {
			p.RollCallStatus = *patch.RollCallStatus
			p.Present = nil
			// 缺席的代表不在可投票名單內
			if p.RollCallStatus == models.RollCallAbsent {
				delete(st.DelegateVotes, id)
			}
		}
		return nil
	})
}

func (s *Store) Participants() []models.Participant {
	var out []models.Participant
	s.read(func(st *models.ChairState) {
		out = st.Clone().Delegates
	})
	return out
}

func (s *Store) Participant(id string) (models.Participant, bool) {
	var (
		p  models.Participant
		ok bool
	)
	s.read(func(st *models.ChairState) {
		if idx := findParticipant(st, id); idx >= 0 {
			p, ok = st.Delegates[idx], true
		}
	})
	return p, ok
}

// SetRollCallComplete 標記點名是否完成
func (s *Store) SetRollCallComplete(done bool) error {
	return s.update(func(st *models.ChairState) error {
		st.RollCallComplete = done
		return nil
	})
}

func (s *Store) RollCallSummary() models.RollCallSummary {
	var sum models.RollCallSummary
	s.read(func(st *models.ChairState) {
		for _, p := range st.Delegates {
			switch p.Status() {
			case models.RollCallPresent:
				sum.Present++
			case models.RollCallPresentAndVoting:
				sum.PresentAndVoting++
			default:
				sum.Absent++
			}
		}
		sum.Total = len(st.Delegates)
	})
	return sum
}
