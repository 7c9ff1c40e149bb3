package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mun_dashboard/internal/models"
	"mun_dashboard/internal/service"
	"mun_dashboard/internal/session"
)

// ChairHandler 處理主席會期的請求
type ChairHandler struct {
	chairService *service.ChairService
}

func NewChairHandler(chairService *service.ChairService) *ChairHandler {
	return &ChairHandler{chairService: chairService}
}

// session 取得請求者的會期；失敗時已寫入回應
func (h *ChairHandler) session(c *gin.Context) (*service.ChairSession, bool) {
	id, ok := identity(c)
	if !ok {
		return nil, false
	}
	cs, err := h.chairService.Session(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return cs, true
}

// mutate 執行修改後回傳最新狀態
func (h *ChairHandler) mutate(c *gin.Context, status int, fn func(cs *service.ChairSession) error) {
	cs, ok := h.session(c)
	if !ok {
		return
	}
	if err := fn(cs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, cs.Store.Snapshot())
}

func (h *ChairHandler) GetState(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cs.Store.Snapshot())
}

// UpdateCommittee 修改委員會、議題、世界觀與主席資料；未提供的欄位不變
func (h *ChairHandler) UpdateCommittee(c *gin.Context) {
	var input struct {
		Committee  *string `json:"committee"`
		Topic      *string `json:"topic"`
		Universe   *string `json:"universe"`
		ChairName  *string `json:"chairName"`
		ChairEmail *string `json:"chairEmail"`
	}
	if !bindJSON(c, &input) {
		return
	}
	h.mutate(c, http.StatusOK, func(cs *service.ChairSession) error {
		setters := []struct {
			value *string
			set   func(string) error
		}{
			{input.Committee, cs.Store.SetCommittee},
			{input.Topic, cs.Store.SetTopic},
			{input.Universe, cs.Store.SetUniverse},
			{input.ChairName, cs.Store.SetChairName},
			{input.ChairEmail, cs.Store.SetChairEmail},
		}
		for _, s := range setters {
			if s.value == nil {
				continue
			}
			if err := s.set(*s.value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (h *ChairHandler) StartSession(c *gin.Context) {
	h.mutate(c, http.StatusOK, func(cs *service.ChairSession) error {
		return h.chairService.StartSession(c.Request.Context(), cs)
	})
}

func (h *ChairHandler) StopSession(c *gin.Context) {
	h.mutate(c, http.StatusOK, func(cs *service.ChairSession) error {
		return h.chairService.StopSession(c.Request.Context(), cs)
	})
}

func (h *ChairHandler) AddParticipant(c *gin.Context) {
	var input models.Participant
	if !bindJSON(c, &input) {
		return
	}
	cs, ok := h.session(c)
	if !ok {
		return
	}
	p, err := cs.Store.AddParticipant(input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ChairHandler) UpdateParticipant(c *gin.Context) {
	var patch models.ParticipantPatch
	if !bindJSON(c, &patch) {
		return
	}
	cs, ok := h.session(c)
	if !ok {
		return
	}
	if err := cs.Store.UpdateParticipant(c.Param("id"), patch); err != nil {
		respondError(c, err)
		return
	}
	p, _ := cs.Store.Participant(c.Param("id"))
	c.JSON(http.StatusOK, p)
}

func (h *ChairHandler) RemoveParticipant(c *gin.Context) {
	h.mutate(c, http.StatusOK, func(cs *service.ChairSession) error {
		return cs.Store.RemoveParticipant(c.Param("id"))
	})
}

func (h *ChairHandler) CompleteRollCall(c *gin.Context) {
	var input struct {
		Complete *bool `json:"complete"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &input) {
		return
	}
	done := input.Complete == nil || *input.Complete
	h.mutate(c, http.StatusOK, func(cs *service.ChairSession) error {
		return cs.Store.SetRollCallComplete(done)
	})
}

func (h *ChairHandler) RollCall(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cs.Store.RollCallSummary())
}

func (h *ChairHandler) AddMotion(c *gin.Context) {
	var input struct {
		Text string            `json:"text"`
		Type models.MotionType `json:"type"`
	}
	if !bindJSON(c, &input) {
		return
	}
	if input.Type == "" {
		input.Type = models.MotionTypeMotion
	}
	cs, ok := h.session(c)
	if !ok {
		return
	}
	m, err := cs.Store.AddMotion(input.Text, input.Type)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *ChairHandler) StarMotion(c *gin.Context) {
	h.mutate(c, http.StatusOK, func(cs *service.ChairSession) error {
		return cs.Store.StarMotion(c.Param("id"))
	})
}

func (h *ChairHandler) SetMotionStatus(c *gin.Context) {
	var input struct {
		Status models.MotionStatus `json:"status" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	h.mutate(c, http.StatusOK, func(cs *service.ChairSession) error {
		return h.chairService.SetMotionStatus(c.Request.Context(), cs, c.Param("id"), input.Status)
	})
}

func (h *ChairHandler) StartVote(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}
	if err := cs.Store.StartVote(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	progress, _ := cs.Store.VoteInProgress()
	c.JSON(http.StatusOK, progress)
}

func (h *ChairHandler) RecordVote(c *gin.Context) {
	var input struct {
		ParticipantID string        `json:"participantId" binding:"required"`
		Ballot        models.Ballot `json:"ballot" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	cs, ok := h.session(c)
	if !ok {
		return
	}
	if err := cs.Store.RecordVote(input.ParticipantID, input.Ballot); err != nil {
		respondError(c, err)
		return
	}
	progress, _ := cs.Store.VoteInProgress()
	c.JSON(http.StatusOK, progress)
}

func (h *ChairHandler) EndVote(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}
	m, err := h.chairService.EndVote(c.Request.Context(), cs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *ChairHandler) VoteProgress(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}
	progress, ok := cs.Store.VoteInProgress()
	if !ok {
		respondError(c, session.ErrNoVoteInProgress)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": progress, "ballots": cs.Store.Ballots()})
}

type strikeInput struct {
	Type string `json:"type" binding:"required"`
}

func (h *ChairHandler) AddStrike(c *gin.Context) {
	var input strikeInput
	if !bindJSON(c, &input) {
		return
	}
	h.discipline(c, func(cs *service.ChairSession) error {
		return cs.Store.AddStrike(c.Param("id"), input.Type)
	})
}

func (h *ChairHandler) RemoveStrike(c *gin.Context) {
	strikeType := c.Query("type")
	h.discipline(c, func(cs *service.ChairSession) error {
		return cs.Store.RemoveStrike(c.Param("id"), strikeType)
	})
}

func (h *ChairHandler) AddFeedback(c *gin.Context) {
	var input struct {
		Type models.FeedbackType `json:"type" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	h.discipline(c, func(cs *service.ChairSession) error {
		return cs.Store.AddFeedback(c.Param("id"), input.Type)
	})
}

func (h *ChairHandler) Discipline(c *gin.Context) {
	h.discipline(c, func(*service.ChairSession) error { return nil })
}

// discipline 執行修改後回傳該代表的警告與回饋統計
func (h *ChairHandler) discipline(c *gin.Context, fn func(cs *service.ChairSession) error) {
	cs, ok := h.session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if _, ok := cs.Store.Participant(id); !ok {
		respondError(c, session.ErrParticipantNotFound)
		return
	}
	if err := fn(cs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"strikes":      cs.Store.StrikeCountsByType(id),
		"flaggedTypes": cs.Store.FlaggedTypes(id),
		"feedback":     cs.Store.FeedbackCountsByType(id),
	})
}

func (h *ChairHandler) AddSpeaker(c *gin.Context) {
	var input struct {
		ParticipantID string `json:"participantId" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	cs, ok := h.session(c)
	if !ok {
		return
	}
	sp, err := cs.Store.AddToSpeakers(input.ParticipantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sp)
}

func (h *ChairHandler) RemoveSpeaker(c *gin.Context) {
	h.mutate(c, http.StatusOK, func(cs *service.ChairSession) error {
		return cs.Store.RemoveFromSpeakers(c.Param("id"))
	})
}

// SetActiveSpeaker 空白 speakerId 表示清除目前發言者
func (h *ChairHandler) SetActiveSpeaker(c *gin.Context) {
	var input struct {
		SpeakerID string `json:"speakerId"`
	}
	if !bindJSON(c, &input) {
		return
	}
	h.mutate(c, http.StatusOK, func(cs *service.ChairSession) error {
		return cs.Store.SetActiveSpeaker(input.SpeakerID)
	})
}

func (h *ChairHandler) SetSpeakerDuration(c *gin.Context) {
	var input struct {
		Seconds int `json:"seconds"`
	}
	if !bindJSON(c, &input) {
		return
	}
	h.mutate(c, http.StatusOK, func(cs *service.ChairSession) error {
		return cs.Store.SetSpeakerDuration(input.Seconds)
	})
}

func (h *ChairHandler) SpeakerClock(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}
	clock, ok := cs.Store.SpeakerClock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "目前沒有發言者"})
		return
	}
	c.JSON(http.StatusOK, clock)
}

func (h *ChairHandler) AddCrisisItem(c *gin.Context) {
	var input struct {
		Item string `json:"item"`
	}
	if !bindJSON(c, &input) {
		return
	}
	h.mutate(c, http.StatusOK, func(cs *service.ChairSession) error {
		return cs.Store.AddCrisisItem(session.CrisisList(c.Param("list")), input.Item)
	})
}

func (h *ChairHandler) AddToArchive(c *gin.Context) {
	var input models.ArchiveEntry
	if !bindJSON(c, &input) {
		return
	}
	h.mutate(c, http.StatusCreated, func(cs *service.ChairSession) error {
		return cs.Store.AddToArchive(input.Type, input.Name, input.Content)
	})
}

func (h *ChairHandler) ToggleChecklistStep(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}
	kind := session.ChecklistKind(c.Param("kind"))
	step := c.Param("step")
	if err := cs.Store.ToggleStep(kind, step); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": step, "done": cs.Store.IsStepDone(kind, step)})
}

func (h *ChairHandler) ResetChecklist(c *gin.Context) {
	h.mutate(c, http.StatusOK, func(cs *service.ChairSession) error {
		return cs.Store.ResetChecklist(session.ChecklistKind(c.Param("kind")))
	})
}

// SetEmoji 空白 emoji 表示移除覆寫
func (h *ChairHandler) SetEmoji(c *gin.Context) {
	var input struct {
		Delegation string `json:"delegation" binding:"required"`
		Emoji      string `json:"emoji"`
	}
	if !bindJSON(c, &input) {
		return
	}
	h.mutate(c, http.StatusOK, func(cs *service.ChairSession) error {
		return cs.Store.SetDelegationEmoji(input.Delegation, input.Emoji)
	})
}

func (h *ChairHandler) Score(c *gin.Context) {
	cs, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cs.Store.Score())
}

func (h *ChairHandler) Save(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.chairService.Save(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已儲存"})
}

// CloseSession 寫入並關閉會期 (離開主席頁面時呼叫)
func (h *ChairHandler) CloseSession(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.chairService.Close(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "會期已關閉"})
}

func (h *ChairHandler) Activity(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	activities, err := h.chairService.Activity(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}
