package session

import (
	"strings"

	"mun_dashboard/internal/models"
)

func (s *Store) SetCommittee(committee string) error {
	return s.update(func(st *models.ChairState) error {
		st.Committee = strings.TrimSpace(committee)
		return nil
	})
}

func (s *Store) SetTopic(topic string) error {
	return s.update(func(st *models.ChairState) error {
		st.Topic = strings.TrimSpace(topic)
		return nil
	})
}

// SetUniverse 虛構委員會的世界觀 (例如 Star Wars)，顯示在議題之前
func (s *Store) SetUniverse(universe string) error {
	return s.update(func(st *models.ChairState) error {
		st.Universe = strings.TrimSpace(universe)
		return nil
	})
}

func (s *Store) SetChairName(name string) error {
	return s.update(func(st *models.ChairState) error {
		st.ChairName = strings.TrimSpace(name)
		return nil
	})
}

func (s *Store) SetChairEmail(email string) error {
	return s.update(func(st *models.ChairState) error {
		st.ChairEmail = strings.TrimSpace(email)
		return nil
	})
}

// StartSession 開始會議並記錄開始時間
func (s *Store) StartSession() error {
	return s.update(func(st *models.ChairState) error {
		now := s.now().UTC()
		st.SessionStarted = true
		st.SessionStartTime = &now
		return nil
	})
}

func (s *Store) StopSession() error {
	return s.update(func(st *models.ChairState) error {
		st.SessionStarted = false
		st.SessionStartTime = nil
		return nil
	})
}

// CrisisList 危機追蹤的清單種類
type CrisisList string

const (
	CrisisSlides   CrisisList = "slides"
	CrisisSpeakers CrisisList = "speakers"
	CrisisFacts    CrisisList = "facts"
	CrisisPathways CrisisList = "pathways"
)

func crisisTarget(st *models.ChairState, list CrisisList) *[]string {
	switch list {
	case CrisisSlides:
		return &st.CrisisSlides
	case CrisisSpeakers:
		return &st.CrisisSpeakers
	case CrisisFacts:
		return &st.CrisisFacts
	case CrisisPathways:
		return &st.CrisisPathways
	}
	return nil
}

// AddCrisisItem 在指定的危機清單尾端加入一筆
func (s *Store) AddCrisisItem(list CrisisList, item string) error {
	item = strings.TrimSpace(item)
	if item == "" {
		return ErrEmptyInput
	}
	return s.update(func(st *models.ChairState) error {
		target := crisisTarget(st, list)
		if target == nil {
			return ErrInvalidCrisisList
		}
		*target = append(*target, item)
		return nil
	})
}

func (s *Store) AddCrisisSlide(slide string) error     { return s.AddCrisisItem(CrisisSlides, slide) }
func (s *Store) AddCrisisSpeaker(speaker string) error { return s.AddCrisisItem(CrisisSpeakers, speaker) }
func (s *Store) AddCrisisFact(fact string) error       { return s.AddCrisisItem(CrisisFacts, fact) }
func (s *Store) AddCrisisPathway(pathway string) error { return s.AddCrisisItem(CrisisPathways, pathway) }

// AddToArchive 封存一份文件
func (s *Store) AddToArchive(docType, name, content string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyInput
	}
	return s.update(func(st *models.ChairState) error {
		st.Archive = append(st.Archive, models.ArchiveEntry{
			Type:    strings.TrimSpace(docType),
			Name:    name,
			Content: content,
		})
		return nil
	})
}

// ChecklistKind 主席的流程清單或準備清單
type ChecklistKind string

const (
	ChecklistFlow ChecklistKind = "flow"
	ChecklistPrep ChecklistKind = "prep"
)

func checklistTarget(st *models.ChairState, kind ChecklistKind) *map[string]bool {
	switch kind {
	case ChecklistFlow:
		return &st.FlowChecklist
	case ChecklistPrep:
		return &st.PrepChecklist
	}
	return nil
}

// ToggleStep 切換清單步驟的完成狀態
func (s *Store) ToggleStep(kind ChecklistKind, step string) error {
	step = strings.TrimSpace(step)
	if step == "" {
		return ErrEmptyInput
	}
	return s.update(func(st *models.ChairState) error {
		target := checklistTarget(st, kind)
		if target == nil {
			return ErrInvalidChecklist
		}
		if *target == nil {
			*target = map[string]bool{}
		}
		(*target)[step] = !(*target)[step]
		return nil
	})
}

func (s *Store) IsStepDone(kind ChecklistKind, step string) bool {
	done := false
	s.read(func(st *models.ChairState) {
		if target := checklistTarget(st, kind); target != nil {
			done = (*target)[step]
		}
	})
	return done
}

func (s *Store) ResetChecklist(kind ChecklistKind) error {
	return s.update(func(st *models.ChairState) error {
		target := checklistTarget(st, kind)
		if target == nil {
			return ErrInvalidChecklist
		}
		*target = map[string]bool{}
		return nil
	})
}

func (s *Store) ToggleFlowStep(step string) error { return s.ToggleStep(ChecklistFlow, step) }
func (s *Store) IsFlowStepDone(step string) bool  { return s.IsStepDone(ChecklistFlow, step) }
func (s *Store) ResetFlowChecklist() error        { return s.ResetChecklist(ChecklistFlow) }
func (s *Store) TogglePrepStep(step string) error { return s.ToggleStep(ChecklistPrep, step) }
func (s *Store) IsPrepStepDone(step string) bool  { return s.IsStepDone(ChecklistPrep, step) }
func (s *Store) ResetPrepChecklist() error        { return s.ResetChecklist(ChecklistPrep) }

// SetDelegationEmoji 覆寫代表團的旗幟表情；空字串代表移除覆寫
func (s *Store) SetDelegationEmoji(delegation, emoji string) error {
	delegation = strings.TrimSpace(delegation)
	if delegation == "" {
		return ErrEmptyInput
	}
	return s.update(func(st *models.ChairState) error {
		if st.EmojiOverrides == nil {
			st.EmojiOverrides = map[string]string{}
		}
		if emoji == "" {
			delete(st.EmojiOverrides, delegation)
		} else {
			st.EmojiOverrides[delegation] = emoji
		}
		return nil
	})
}

// DelegationEmoji 回傳覆寫的表情，沒有覆寫時為空字串
func (s *Store) DelegationEmoji(delegation string) string {
	var emoji string
	s.read(func(st *models.ChairState) {
		emoji = st.EmojiOverrides[delegation]
	})
	return emoji
}
