package service

// Identity 請求者身分：登入使用者 (有遠端儲存) 或僅有裝置 ID
type Identity struct {
	UserID   string
	DeviceID string
}

func (i Identity) SignedIn() bool {
	return i.UserID != ""
}

// Key 在 registry、本機儲存與 websocket 房間中使用的唯一鍵
func (i Identity) Key() string {
	if i.SignedIn() {
		return "user:" + i.UserID
	}
	return "device:" + i.DeviceID
}
