package models

import (
	"time"

	"gorm.io/gorm"
)

// Activity 會期紀錄：投票結果、動議狀態、會期開始與結束
type Activity struct {
	gorm.Model
	UserID    string    `gorm:"index;size:128" json:"userId"`
	Type      string    `gorm:"size:32" json:"type"`
	MotionID  string    `gorm:"size:64" json:"motionId,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}
