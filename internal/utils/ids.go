package utils

import "github.com/google/uuid"

// NewID 產生時間排序的 UUID (v7)，失敗時退回隨機 v4
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
