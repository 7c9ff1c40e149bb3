package models

// Speaker 發言名單中的一筆，國家與姓名為加入時的快照
type Speaker struct {
	ID         string `json:"id"`
	DelegateID string `json:"delegateId"`
	Country    string `json:"country"`
	Name       string `json:"name"`
	Duration   int    `json:"duration"`            // 秒
	StartTime  *int64 `json:"startTime,omitempty"` // unix 毫秒
	Speaking   bool   `json:"speaking"`
}

// SpeakerClock 目前發言者的計時
type SpeakerClock struct {
	SpeakerID string `json:"speakerId"`
	Elapsed   int    `json:"elapsed"`
	Remaining int    `json:"remaining"`
	Overtime  bool   `json:"overtime"`
}
