package models

import "time"

type MotionType string

const (
	MotionTypeMotion MotionType = "motion"
	MotionTypePoint  MotionType = "point" // 程序性問題，不能表決
)

func (t MotionType) Valid() bool {
	return t == MotionTypeMotion || t == MotionTypePoint
}

// MotionStatus 動議狀態，active 為初始狀態，其餘皆為終止狀態
type MotionStatus string

const (
	MotionStatusActive MotionStatus = "active"
	MotionStatusPassed MotionStatus = "passed"
	MotionStatusFailed MotionStatus = "failed"
	MotionStatusTabled MotionStatus = "tabled"
)

func (s MotionStatus) Valid() bool {
	switch s {
	case MotionStatusActive, MotionStatusPassed, MotionStatusFailed, MotionStatusTabled:
		return true
	}
	return false
}

func (s MotionStatus) Terminal() bool {
	return s == MotionStatusPassed || s == MotionStatusFailed || s == MotionStatusTabled
}

// motionTransitions 合法的狀態轉換表
var motionTransitions = map[MotionStatus][]MotionStatus{
	MotionStatusActive: {MotionStatusPassed, MotionStatusFailed, MotionStatusTabled},
}

// CanTransition 判斷 from -> to 是否為合法轉換
func CanTransition(from, to MotionStatus) bool {
	for _, next := range motionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Ballot string

const (
	BallotYes     Ballot = "yes"
	BallotNo      Ballot = "no"
	BallotAbstain Ballot = "abstain"
)

func (b Ballot) Valid() bool {
	return b == BallotYes || b == BallotNo || b == BallotAbstain
}

// Tally 表決結果
type Tally struct {
	Yes     int `json:"yes"`
	No      int `json:"no"`
	Abstain int `json:"abstain"`
}

// Outcome 贊成票必須嚴格多於反對票才通過，平手或零票皆為否決
func (t Tally) Outcome() MotionStatus {
	if t.Yes > t.No {
		return MotionStatusPassed
	}
	return MotionStatusFailed
}

// Motion 表示一個動議或程序問題
type Motion struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Type      MotionType   `json:"type"`
	Starred   bool         `json:"starred"`
	Timestamp time.Time    `json:"timestamp"`
	Status    MotionStatus `json:"status"`
	Votes     *Tally       `json:"votes,omitempty"`
}

// VoteProgress 進行中表決的即時統計
type VoteProgress struct {
	MotionID string `json:"motionId"`
	Text     string `json:"text"`
	Tally
	Recorded int `json:"recorded"`
	Eligible int `json:"eligible"`
}

// MotionScore 動議統計
type MotionScore struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Tabled  int `json:"tabled"`
	Total   int `json:"total"`
	Motions int `json:"motions"`
	Points  int `json:"points"`
}
