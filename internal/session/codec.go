package session

import (
	"fmt"

	"mun_dashboard/internal/models"
	"mun_dashboard/internal/utils"
)

// SchemaVersion 目前主席文件的版本
const SchemaVersion = 1

// migrations[v] 將版本 v 的文件升級到 v+1
var migrations = map[int]func(utils.RawDocument) error{
	0: migrateLegacyPresence,
}

type document struct {
	SchemaVersion int `json:"schemaVersion"`
	models.ChairState
}

// EncodeDocument 將狀態樹編碼為持久化文件
func EncodeDocument(state models.ChairState) ([]byte, error) {
	return utils.Marshal(document{SchemaVersion: SchemaVersion, ChairState: state})
}

// DecodeDocument 解碼持久化文件。每個欄位獨立解碼，缺少或型別錯誤的欄位使用預設值，
// 最後修復違反不變量的資料 (孤兒紀錄、懸空的表決等)。
// 只有整份文件不是 JSON 物件時才回傳錯誤，此時同時回傳預設狀態。
func DecodeDocument(data []byte) (models.ChairState, error) {
	state := models.DefaultChairState()
	raw, err := utils.ParseDocument(data)
	if err != nil {
		return state, fmt.Errorf("decode chair document: %w", err)
	}

	version := 0
	utils.Field(raw, "schemaVersion", &version)
	for v := version; v < SchemaVersion; v++ {
		if migrate, ok := migrations[v]; ok {
			if err := migrate(raw); err != nil {
				return state, fmt.Errorf("migrate chair document v%d: %w", v, err)
			}
		}
	}

	utils.Field(raw, "committee", &state.Committee)
	utils.Field(raw, "topic", &state.Topic)
	utils.Field(raw, "universe", &state.Universe)
	utils.Field(raw, "sessionStarted", &state.SessionStarted)
	utils.Field(raw, "sessionStartTime", &state.SessionStartTime)
	utils.Field(raw, "speakerDuration", &state.SpeakerDuration)
	utils.Field(raw, "rollCallComplete", &state.RollCallComplete)
	utils.Field(raw, "chairName", &state.ChairName)
	utils.Field(raw, "chairEmail", &state.ChairEmail)

	utils.Each(raw, "delegates", func(p models.Participant) {
		state.Delegates = append(state.Delegates, p)
	})
	utils.Each(raw, "delegateStrikes", func(x models.Strike) {
		state.DelegateStrikes = append(state.DelegateStrikes, x)
	})
	utils.Each(raw, "delegateFeedback", func(x models.Feedback) {
		state.DelegateFeedback = append(state.DelegateFeedback, x)
	})
	utils.Each(raw, "motions", func(m models.Motion) {
		state.Motions = append(state.Motions, m)
	})
	utils.Each(raw, "speakers", func(sp models.Speaker) {
		state.Speakers = append(state.Speakers, sp)
	})
	utils.Field(raw, "activeSpeaker", &state.ActiveSpeaker)
	utils.Field(raw, "voteInProgress", &state.VoteInProgress)

	utils.Slice(raw, "crisisSlides", &state.CrisisSlides)
	utils.Slice(raw, "crisisSpeakers", &state.CrisisSpeakers)
	utils.Slice(raw, "crisisFacts", &state.CrisisFacts)
	utils.Slice(raw, "crisisPathways", &state.CrisisPathways)
	utils.Each(raw, "archive", func(a models.ArchiveEntry) {
		state.Archive = append(state.Archive, a)
	})

	utils.Map(raw, "delegateVotes", &state.DelegateVotes)
	utils.Map(raw, "flowChecklist", &state.FlowChecklist)
	utils.Map(raw, "prepChecklist", &state.PrepChecklist)
	utils.Map(raw, "delegationEmojiOverrides", &state.EmojiOverrides)

	repair(&state)
	return state, nil
}

// migrateLegacyPresence v0 -> v1：舊版的 present 布林值轉為點名狀態
func migrateLegacyPresence(raw utils.RawDocument) error {
	var delegates []map[string]any
	if !utils.Field(raw, "delegates", &delegates) {
		return nil
	}
	for _, d := range delegates {
		if d == nil {
			continue
		}
		if s, _ := d["rollCallStatus"].(string); models.RollCallStatus(s).Valid() {
			delete(d, "present")
			continue
		}
		if present, _ := d["present"].(bool); present {
			d["rollCallStatus"] = string(models.RollCallPresent)
		} else {
			d["rollCallStatus"] = string(models.RollCallAbsent)
		}
		delete(d, "present")
	}
	b, err := utils.Marshal(delegates)
	if err != nil {
		return err
	}
	raw["delegates"] = b
	return nil
}

// repair 修正載入後違反不變量的資料
func repair(st *models.ChairState) {
	known := make(map[string]bool, len(st.Delegates))
	delegates := st.Delegates[:0]
	for _, p := range st.Delegates {
		if p.ID == "" || known[p.ID] {
			continue
		}
		if p.RollCallStatus != "" && !p.RollCallStatus.Valid() {
			p.RollCallStatus = models.RollCallAbsent
		}
		known[p.ID] = true
		delegates = append(delegates, p)
	}
	st.Delegates = delegates

	strikes := st.DelegateStrikes[:0]
	for _, x := range st.DelegateStrikes {
		if known[x.DelegateID] && x.Type != "" {
			strikes = append(strikes, x)
		}
	}
	st.DelegateStrikes = strikes

	feedback := st.DelegateFeedback[:0]
	for _, x := range st.DelegateFeedback {
		if known[x.DelegateID] && x.Type.Valid() {
			feedback = append(feedback, x)
		}
	}
	st.DelegateFeedback = feedback

	motions := st.Motions[:0]
	for _, m := range st.Motions {
		if m.ID == "" {
			continue
		}
		if !m.Type.Valid() {
			m.Type = models.MotionTypeMotion
		}
		if !m.Status.Valid() {
			m.Status = models.MotionStatusActive
		}
		motions = append(motions, m)
	}
	st.Motions = motions

	if st.SpeakerDuration <= 0 {
		st.SpeakerDuration = models.DefaultSpeakerDuration
	}

	repairVote(st, known)
	repairSpeakers(st)
}

// repairVote 表決必須指向存在、可表決且仍為 active 的動議
func repairVote(st *models.ChairState, known map[string]bool) {
	if st.VoteInProgress != nil {
		idx := findMotion(st, st.VoteInProgress.ID)
		if idx < 0 || st.Motions[idx].Type == models.MotionTypePoint || st.Motions[idx].Status != models.MotionStatusActive {
			st.VoteInProgress = nil
		} else {
			m := st.Motions[idx]
			st.VoteInProgress = &m
		}
	}
	if st.VoteInProgress == nil {
		st.DelegateVotes = map[string]models.Ballot{}
		return
	}
	for id, b := range st.DelegateVotes {
		if !known[id] || !b.Valid() {
			delete(st.DelegateVotes, id)
		}
	}
}

// repairSpeakers 最多只能有一位發言者，且 activeSpeaker 必須在名單內
func repairSpeakers(st *models.ChairState) {
	activeID := ""
	if st.ActiveSpeaker != nil {
		activeID = st.ActiveSpeaker.ID
	}
	if activeID == "" || findSpeaker(st, activeID) < 0 {
		activeID = ""
		for _, sp := range st.Speakers {
			if sp.Speaking {
				activeID = sp.ID
				break
			}
		}
	}
	st.ActiveSpeaker = nil
	for i := range st.Speakers {
		st.Speakers[i].Speaking = st.Speakers[i].ID == activeID
		if st.Speakers[i].Speaking {
			active := st.Speakers[i]
			if active.StartTime != nil {
				start := *active.StartTime
				active.StartTime = &start
			}
			st.ActiveSpeaker = &active
		}
	}
}
