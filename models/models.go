package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/zxcv8096-dotcom/line-tool/fault"
)

// Mode tells which shape a survey (and the session walking it) has.
type Mode string

const (
	ModeBranch Mode = "branch"
	ModeLinear Mode = "linear"
)

// Option is one tappable answer on a branch node. An empty Next marks the
// node as terminal.
type Option struct {
	Label string `json:"t"`
	Tag   string `json:"tag,omitempty"`
	Next  string `json:"next,omitempty"`
}

// Node is one question in a branch survey graph.
type Node struct {
	Prompt  string   `json:"q"`
	Options []Option `json:"options"`
}

// Question is one step of a linear survey. Options are plain labels.
type Question struct {
	Prompt  string   `json:"q"`
	Options []string `json:"a"`
}

// Survey is a named definition. Exactly one of Nodes/Questions is set; the
// shape is inferred once at decode time and fixed in Mode.
type Survey struct {
	Name      string
	Title     string
	Mode      Mode
	Start     string
	Nodes     map[string]Node
	Questions []Question
	Closing   string
}

// DisplayTitle is what prompts and report cards show.
func (s *Survey) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Name
}

type surveyPayload struct {
	Title     string          `json:"title"`
	Start     string          `json:"start"`
	Nodes     map[string]Node `json:"nodes"`
	Questions []Question      `json:"questions"`
	Final     *struct {
		Text string `json:"text"`
	} `json:"final"`
}

// DecodeSurvey parses a stored definition and infers its shape from the
// presence of nodes vs questions. A payload with neither shape (or broken
// JSON) is malformed; callers treat that the same as not found.
func DecodeSurvey(name string, raw []byte) (*Survey, error) {
	var p surveyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fault.ErrMalformed
	}

	s := &Survey{
		Name:  name,
		Title: strings.TrimSpace(p.Title),
	}
	if p.Final != nil {
		s.Closing = strings.TrimSpace(p.Final.Text)
	}

	switch {
	case len(p.Nodes) > 0:
		s.Mode = ModeBranch
		s.Nodes = p.Nodes
		s.Start = strings.TrimSpace(p.Start)
		if s.Start == "" {
			s.Start = "q1"
		}
	case len(p.Questions) > 0:
		s.Mode = ModeLinear
		s.Questions = p.Questions
	default:
		return nil, fault.ErrMalformed
	}
	return s, nil
}

// Answer is one recorded step of a session's trail.
type Answer struct {
	Question string `json:"q"`
	Text     string `json:"a"`
	Tag      string `json:"tag,omitempty"`
	NodeID   string `json:"nodeId,omitempty"`
	Index    int    `json:"qIndex,omitempty"`
	At       int64  `json:"ts"`
}

// Session is the ephemeral per-user progress record. One session per user;
// starting a new survey overwrites whatever was there.
type Session struct {
	Active     bool     `json:"active"`
	Mode       Mode     `json:"mode"`
	SurveyName string   `json:"surveyName"`
	NodeID     string   `json:"nodeId,omitempty"`
	QIndex     int      `json:"qIndex"`
	Answers    []Answer `json:"answers"`
	FocusArea  string   `json:"focusArea,omitempty"`
	StartedAt  int64    `json:"startedAt"`
	UpdatedAt  int64    `json:"updatedAt"`
}

// NewSession starts a session at the survey's entry position.
func NewSession(s *Survey, now time.Time) *Session {
	sess := &Session{
		Active:     true,
		Mode:       s.Mode,
		SurveyName: s.Name,
		Answers:    []Answer{},
		StartedAt:  now.UnixMilli(),
		UpdatedAt:  now.UnixMilli(),
	}
	if s.Mode == ModeBranch {
		sess.NodeID = s.Start
	}
	return sess
}

// Lead is the durable snapshot written once when a session completes.
type Lead struct {
	UserID     string   `json:"userId"`
	SurveyName string   `json:"surveyName"`
	Mode       Mode     `json:"mode"`
	Answers    []Answer `json:"answers"`
	Report     string   `json:"report"`
	FocusArea  string   `json:"focusArea,omitempty"`
	CreatedAt  int64    `json:"createdAt"`
}

// NormalizeKeyword strips all whitespace and case-folds. Applied on both
// write and read so the keyword map stays idempotent under re-insertion.
func NormalizeKeyword(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
