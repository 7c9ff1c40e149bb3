package models

import "time"

// RollCallStatus 點名狀態
type RollCallStatus string

const (
	RollCallAbsent           RollCallStatus = "absent"
	RollCallPresent          RollCallStatus = "present"            // 出席，可棄權
	RollCallPresentAndVoting RollCallStatus = "present-and-voting" // 出席且必須投票
)

func (s RollCallStatus) Valid() bool {
	switch s {
	case RollCallAbsent, RollCallPresent, RollCallPresentAndVoting:
		return true
	}
	return false
}

// Participant 表示委員會中的一位代表
type Participant struct {
	ID        string `json:"id"`
	Country   string `json:"country"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Committee string `json:"committee,omitempty"`
	// Present 是舊版的出席布林值，只在沒有 RollCallStatus 時使用
	Present        *bool          `json:"present,omitempty"`
	RollCallStatus RollCallStatus `json:"rollCallStatus,omitempty"`
}

// Status 回傳實際的點名狀態；舊版布林值只對應 present/absent
func (p Participant) Status() RollCallStatus {
	if p.RollCallStatus.Valid() {
		return p.RollCallStatus
	}
	if p.Present != nil && *p.Present {
		return RollCallPresent
	}
	return RollCallAbsent
}

// ParticipantPatch 是 UpdateParticipant 的淺層合併欄位，nil 表示不變
type ParticipantPatch struct {
	Country        *string         `json:"country,omitempty"`
	Name           *string         `json:"name,omitempty"`
	Email          *string         `json:"email,omitempty"`
	Committee      *string         `json:"committee,omitempty"`
	RollCallStatus *RollCallStatus `json:"rollCallStatus,omitempty"`
}

// StrikeThreshold 同類型警告達到此數量即標記該代表
const StrikeThreshold = 3

// Strike 是一次代表違規紀錄
type Strike struct {
	DelegateID string    `json:"delegateId"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
}

type FeedbackType string

const (
	FeedbackCompliment FeedbackType = "compliment"
	FeedbackConcern    FeedbackType = "concern"
)

func (t FeedbackType) Valid() bool {
	return t == FeedbackCompliment || t == FeedbackConcern
}

type Feedback struct {
	DelegateID string       `json:"delegateId"`
	Type       FeedbackType `json:"type"`
	Timestamp  time.Time    `json:"timestamp"`
}

// RollCallSummary 點名統計
type RollCallSummary struct {
	Present          int `json:"present"`
	PresentAndVoting int `json:"presentAndVoting"`
	Absent           int `json:"absent"`
	Total            int `json:"total"`
}
