package models

// MatrixEntry 委員會矩陣的一列：委員會、名字、代表團
type MatrixEntry struct {
	Committee  string `json:"committee"`
	FirstName  string `json:"firstName"`
	Delegation string `json:"delegation"`
}

// Resource 代表上傳或連結的參考資料
type Resource struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// ChecklistKeys 代表準備清單的固定項目，順序即顯示順序
var ChecklistKeys = []string{
	"positionPaper",
	"researchTopic",
	"researchCountryStance",
	"researchResolutions",
	"researchAllies",
	"researchNews",
	"positionPaperDraft",
	"positionPaperFinal",
	"positionPaperSubmit",
	"openingSpeechDraft",
	"openingSpeechTimed",
	"openingSpeech",
	"modSpeeches",
	"modCaucusPoints",
	"knowRules",
	"knowAgenda",
	"materialsReady",
}

// IsChecklistKey 判斷 key 是否為已知的清單項目
func IsChecklistKey(key string) bool {
	for _, k := range ChecklistKeys {
		if k == key {
			return true
		}
	}
	return false
}

// DefaultChecklist 全部未完成的清單
func DefaultChecklist() map[string]bool {
	out := make(map[string]bool, len(ChecklistKeys))
	for _, k := range ChecklistKeys {
		out[k] = false
	}
	return out
}

// MaxCommitteeCount 一場會議可登記的委員會數量上限
const MaxCommitteeCount = 20

// Conference 代表一場代表準備中的會議
type Conference struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Country               string          `json:"country"`
	DelegateEmail         string          `json:"delegateEmail"`
	StanceOverview        string          `json:"stanceOverview"`
	CommitteeCount        int             `json:"committeeCount"`
	Committees            []string        `json:"committees"`
	CommitteeMatrix       []MatrixEntry   `json:"committeeMatrixEntries"`
	CountdownDate         string          `json:"countdownDate"`
	ConferenceEndDate     string          `json:"conferenceEndDate"`
	PositionPaperDeadline string          `json:"positionPaperDeadline"`
	Checklist             map[string]bool `json:"checklist"`
	TrustedSources        []string        `json:"trustedSources"`
	NationSources         []string        `json:"nationSources"`
	UploadedResources     []Resource      `json:"uploadedResources"`
}

const DefaultConferenceName = "New Conference"

// NewConference 以預設值建立會議
func NewConference(id string) Conference {
	return Conference{
		ID:                id,
		Name:              DefaultConferenceName,
		Committees:        []string{},
		CommitteeMatrix:   []MatrixEntry{},
		Checklist:         DefaultChecklist(),
		TrustedSources:    []string{},
		NationSources:     []string{},
		UploadedResources: []Resource{},
	}
}

// Clone 深層複製
func (c Conference) Clone() Conference {
	out := c
	out.Committees = append([]string{}, c.Committees...)
	out.CommitteeMatrix = append([]MatrixEntry{}, c.CommitteeMatrix...)
	out.Checklist = cloneMap(c.Checklist)
	out.TrustedSources = append([]string{}, c.TrustedSources...)
	out.NationSources = append([]string{}, c.NationSources...)
	out.UploadedResources = append([]Resource{}, c.UploadedResources...)
	return out
}

// DelegateState 代表端的持久化文件：會議清單與目前選取的會議
type DelegateState struct {
	Conferences        []Conference `json:"conferences"`
	ActiveConferenceID string       `json:"activeConferenceId"`
}

func (s DelegateState) Clone() DelegateState {
	out := DelegateState{
		Conferences:        make([]Conference, len(s.Conferences)),
		ActiveConferenceID: s.ActiveConferenceID,
	}
	for i, c := range s.Conferences {
		out.Conferences[i] = c.Clone()
	}
	return out
}

// Countdown 距離某個日期的剩餘時間
type Countdown struct {
	Label   string `json:"label"`
	Target  string `json:"target"`
	Days    int    `json:"days"`
	Hours   int    `json:"hours"`
	Minutes int    `json:"minutes"`
	Seconds int    `json:"seconds"`
	Passed  bool   `json:"passed"`
}
