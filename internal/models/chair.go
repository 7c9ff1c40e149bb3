package models

import "time"

// ArchiveEntry 封存的文件 (立場文件、決議草案等)
type ArchiveEntry struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content,omitempty"`
}

// ChairState 一個委員會會議的完整狀態樹，也是持久化文件的內容
type ChairState struct {
	Committee        string            `json:"committee"`
	Topic            string            `json:"topic"`
	Universe         string            `json:"universe"`
	SessionStarted   bool              `json:"sessionStarted"`
	SessionStartTime *time.Time        `json:"sessionStartTime"`
	Delegates        []Participant     `json:"delegates"`
	DelegateStrikes  []Strike          `json:"delegateStrikes"`
	DelegateFeedback []Feedback        `json:"delegateFeedback"`
	Motions          []Motion          `json:"motions"`
	Speakers         []Speaker         `json:"speakers"`
	ActiveSpeaker    *Speaker          `json:"activeSpeaker"`
	SpeakerDuration  int               `json:"speakerDuration"`
	RollCallComplete bool              `json:"rollCallComplete"`
	CrisisSlides     []string          `json:"crisisSlides"`
	CrisisSpeakers   []string          `json:"crisisSpeakers"`
	CrisisFacts      []string          `json:"crisisFacts"`
	CrisisPathways   []string          `json:"crisisPathways"`
	Archive          []ArchiveEntry    `json:"archive"`
	VoteInProgress   *Motion           `json:"voteInProgress"`
	DelegateVotes    map[string]Ballot `json:"delegateVotes"`
	FlowChecklist    map[string]bool   `json:"flowChecklist"`
	PrepChecklist    map[string]bool   `json:"prepChecklist"`
	EmojiOverrides   map[string]string `json:"delegationEmojiOverrides"`
	ChairName        string            `json:"chairName"`
	ChairEmail       string            `json:"chairEmail"`
}

const (
	DefaultCommittee       = "UNSC"
	DefaultTopic           = "Cybersecurity and International Peace"
	DefaultSpeakerDuration = 60
)

// DefaultChairState 開啟主席會議時的初始狀態
func DefaultChairState() ChairState {
	return ChairState{
		Committee:        DefaultCommittee,
		Topic:            DefaultTopic,
		Delegates:        []Participant{},
		DelegateStrikes:  []Strike{},
		DelegateFeedback: []Feedback{},
		Motions:          []Motion{},
		Speakers:         []Speaker{},
		SpeakerDuration:  DefaultSpeakerDuration,
		CrisisSlides:     []string{},
		CrisisSpeakers:   []string{},
		CrisisFacts:      []string{},
		CrisisPathways:   []string{},
		Archive:          []ArchiveEntry{},
		DelegateVotes:    map[string]Ballot{},
		FlowChecklist:    map[string]bool{},
		PrepChecklist:    map[string]bool{},
		EmojiOverrides:   map[string]string{},
	}
}

// Clone 深層複製，讓呼叫端拿到的快照不會與 store 共用底層陣列
func (s ChairState) Clone() ChairState {
	out := s
	out.SessionStartTime = clonePtr(s.SessionStartTime)
	out.Delegates = make([]Participant, len(s.Delegates))
	for i, p := range s.Delegates {
		p.Present = clonePtr(p.Present)
		out.Delegates[i] = p
	}
	out.DelegateStrikes = append([]Strike{}, s.DelegateStrikes...)
	out.DelegateFeedback = append([]Feedback{}, s.DelegateFeedback...)
	out.Motions = make([]Motion, len(s.Motions))
	for i, m := range s.Motions {
		out.Motions[i] = m.clone()
	}
	out.Speakers = make([]Speaker, len(s.Speakers))
	for i, sp := range s.Speakers {
		out.Speakers[i] = sp.clone()
	}
	if s.ActiveSpeaker != nil {
		sp := s.ActiveSpeaker.clone()
		out.ActiveSpeaker = &sp
	}
	out.CrisisSlides = append([]string{}, s.CrisisSlides...)
	out.CrisisSpeakers = append([]string{}, s.CrisisSpeakers...)
	out.CrisisFacts = append([]string{}, s.CrisisFacts...)
	out.CrisisPathways = append([]string{}, s.CrisisPathways...)
	out.Archive = append([]ArchiveEntry{}, s.Archive...)
	if s.VoteInProgress != nil {
		m := s.VoteInProgress.clone()
		out.VoteInProgress = &m
	}
	out.DelegateVotes = cloneMap(s.DelegateVotes)
	out.FlowChecklist = cloneMap(s.FlowChecklist)
	out.PrepChecklist = cloneMap(s.PrepChecklist)
	out.EmojiOverrides = cloneMap(s.EmojiOverrides)
	return out
}

func (m Motion) clone() Motion {
	m.Votes = clonePtr(m.Votes)
	return m
}

func (s Speaker) clone() Speaker {
	s.StartTime = clonePtr(s.StartTime)
	return s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
