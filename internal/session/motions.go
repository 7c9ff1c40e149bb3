package session

import (
	"strings"

	"mun_dashboard/internal/models"
)

// AddMotion 新增狀態為 active 的動議；空白文字不會新增
func (s *Store) AddMotion(text string, motionType models.MotionType) (models.Motion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Motion{}, ErrEmptyInput
	}
	if !motionType.Valid() {
		return models.Motion{}, ErrInvalidMotionType
	}

	var m models.Motion
	err := s.update(func(st *models.ChairState) error {
		m = models.Motion{
			ID:        s.newID(),
			Text:      text,
			Type:      motionType,
			Timestamp: s.now().UTC(),
			Status:    models.MotionStatusActive,
		}
		st.Motions = append(st.Motions, m)
		return nil
	})
	return m, err
}

// StarMotion 切換星號，與狀態無關
func (s *Store) StarMotion(id string) error {
	return s.update(func(st *models.ChairState) error {
		idx := findMotion(st, id)
		if idx < 0 {
			return ErrMotionNotFound
		}
		st.Motions[idx].Starred = !st.Motions[idx].Starred
		return nil
	})
}

// SetMotionStatus 依轉換表變更狀態：只有 active 可以轉為 passed/failed/tabled，
// 終止狀態不可再變更；表決中的動議必須先結束表決
func (s *Store) SetMotionStatus(id string, status models.MotionStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	return s.update(func(st *models.ChairState) error {
		idx := findMotion(st, id)
		if idx < 0 {
			return ErrMotionNotFound
		}
		if st.VoteInProgress != nil && st.VoteInProgress.ID == id {
			return ErrVoteInProgress
		}
		if !models.CanTransition(st.Motions[idx].Status, status) {
			return ErrIllegalTransition
		}
		st.Motions[idx].Status = status
		return nil
	})
}

func (s *Store) Motions() []models.Motion {
	var out []models.Motion
	s.read(func(st *models.ChairState) {
		out = st.Clone().Motions
	})
	return out
}

func (s *Store) Motion(id string) (models.Motion, bool) {
	var (
		m  models.Motion
		ok bool
	)
	s.read(func(st *models.ChairState) {
		if idx := findMotion(st, id); idx >= 0 {
			m, ok = st.Motions[idx], true
			if m.Votes != nil {
				tally := *m.Votes
				m.Votes = &tally
			}
		}
	})
	return m, ok
}

// Score 動議與程序問題的統計
func (s *Store) Score() models.MotionScore {
	var score models.MotionScore
	s.read(func(st *models.ChairState) {
		for _, m := range st.Motions {
			switch m.Status {
			case models.MotionStatusPassed:
				score.Passed++
			case models.MotionStatusFailed:
				score.Failed++
			case models.MotionStatusTabled:
				score.Tabled++
			}
			if m.Type == models.MotionTypePoint {
				score.Points++
			} else {
				score.Motions++
			}
		}
		score.Total = len(st.Motions)
	})
	return score
}

// StartVote 開始表決；程序問題與非 active 的動議會被拒絕。
// 已有進行中的表決時直接取代，不排隊。
func (s *Store) StartVote(motionID string) error {
	return s.update(func(st *models.ChairState) error {
		idx := findMotion(st, motionID)
		if idx < 0 {
			return ErrMotionNotFound
		}
		m := st.Motions[idx]
		if m.Type == models.MotionTypePoint {
			return ErrPointNotVotable
		}
		if m.Status != models.MotionStatusActive {
			return ErrIllegalTransition
		}
		st.VoteInProgress = &m
		st.DelegateVotes = map[string]models.Ballot{}
		return nil
	})
}

// RecordVote 記錄 (或覆寫) 代表的選票，後寫入者為準
func (s *Store) RecordVote(participantID string, ballot models.Ballot) error {
	if !ballot.Valid() {
		return ErrInvalidBallot
	}
	return s.update(func(st *models.ChairState) error {
		if st.VoteInProgress == nil {
			return ErrNoVoteInProgress
		}
		idx := findParticipant(st, participantID)
		if idx < 0 {
			return ErrParticipantNotFound
		}
		status := st.Delegates[idx].Status()
		if status == models.RollCallAbsent {
			return ErrNotEligible
		}
		if ballot == models.BallotAbstain &&
			status == models.RollCallPresentAndVoting &&
			s.abstain == AbstainRejectPresentAndVoting {
			return ErrAbstainNotAllowed
		}
		if st.DelegateVotes == nil {
			st.DelegateVotes = map[string]models.Ballot{}
		}
		st.DelegateVotes[participantID] = ballot
		return nil
	})
}

func tally(votes map[string]models.Ballot) models.Tally {
	var t models.Tally
	for _, v := range votes {
		switch v {
		case models.BallotYes:
			t.Yes++
		case models.BallotNo:
			t.No++
		case models.BallotAbstain:
			t.Abstain++
		}
	}
	return t
}

// EndVote 結算表決並寫回動議：贊成嚴格多於反對才通過，平手或零票為否決。
// 表決的動議已不存在時只清除表決，回傳零值的 Motion
func (s *Store) EndVote() (models.Motion, error) {
	var result models.Motion
	err := s.update(func(st *models.ChairState) error {
		if st.VoteInProgress == nil {
			return ErrNoVoteInProgress
		}
		t := tally(st.DelegateVotes)
		idx := findMotion(st, st.VoteInProgress.ID)
		st.VoteInProgress = nil
		st.DelegateVotes = map[string]models.Ballot{}
		if idx < 0 {
			return nil
		}
		st.Motions[idx].Votes = &t
		st.Motions[idx].Status = t.Outcome()
		result = st.Motions[idx]
		return nil
	})
	return result, err
}

// VoteInProgress 回傳進行中表決的即時統計
func (s *Store) VoteInProgress() (models.VoteProgress, bool) {
	var (
		p  models.VoteProgress
		ok bool
	)
	s.read(func(st *models.ChairState) {
		if st.VoteInProgress == nil {
			return
		}
		ok = true
		p.MotionID = st.VoteInProgress.ID
		p.Text = st.VoteInProgress.Text
		p.Tally = tally(st.DelegateVotes)
		p.Recorded = len(st.DelegateVotes)
		for _, d := range st.Delegates {
			if d.Status() != models.RollCallAbsent {
				p.Eligible++
			}
		}
	})
	return p, ok
}

// Ballots 進行中表決的選票複本
func (s *Store) Ballots() map[string]models.Ballot {
	out := map[string]models.Ballot{}
	s.read(func(st *models.ChairState) {
		for k, v := range st.DelegateVotes {
			out[k] = v
		}
	})
	return out
}
