package session

import (
	"slices"

	"huijin-agent/internal/domain"
)

// Phase is the cosmetic loading indicator shown while a reply is pending.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseSearching
	PhaseGenerating
)

func (p Phase) String() string {
	switch p {
	case PhaseSearching:
		return "searching"
	case PhaseGenerating:
		return "generating"
	default:
		return "none"
	}
}

type NoticeKind int

const (
	NoticeSuccess NoticeKind = iota
	NoticeError
)

// Notice is a transient notification. ID distinguishes successive notices
// with the same text.
type Notice struct {
	ID   uint64
	Kind NoticeKind
	Text string
}

// State is a snapshot of the conversation as the view sees it.
type State struct {
	Messages  []domain.Message
	Input     string
	SessionID string
	Loading   bool
	Phase     Phase
	Countdown int
	Notice    *Notice
}

func (s State) clone() State {
	s.Messages = slices.Clone(s.Messages)
	if s.Notice != nil {
		n := *s.Notice
		s.Notice = &n
	}
	return s
}

// Suggestions are the canned prompts offered while the conversation is empty.
var Suggestions = []string{
	"介绍汇金国际商务社区",
	"介绍DeepSeek最新动态",
	"提供企业政策服务咨询",
	"拱墅区1+N政策简要介绍",
}
