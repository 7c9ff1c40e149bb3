package models

import "time"

// Document 類型
const (
	KindChair    = "chair"
	KindDelegate = "delegate"
)

// Document 每個使用者每種類型一份的 JSON 文件
type Document struct {
	Kind          string    `gorm:"primaryKey;size:16" json:"kind"`
	UserID        string    `gorm:"primaryKey;size:128" json:"userId"`
	Data          string    `gorm:"type:text;not null" json:"-"`
	SchemaVersion int       `gorm:"not null;default:0" json:"schemaVersion"`
	Revision      int64     `gorm:"not null;default:0" json:"revision"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
