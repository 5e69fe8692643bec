package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zxcv8096-dotcom/line-tool/fault"
)

func TestDecodeSurveyBranch(t *testing.T) {
	raw := []byte(`{
		"title": "Wellness Check",
		"start": "q1",
		"nodes": {
			"q1": {"q": "How do you sleep?", "options": [{"t": "Well", "next": "q2"}, {"t": "Badly", "tag": "sleep", "next": "q2"}]},
			"q2": {"q": "Done?", "options": [{"t": "Yes"}]}
		},
		"final": {"text": "Thanks for answering!"}
	}`)

	s, err := DecodeSurvey("wellness", raw)
	assert.NoError(t, err)
	assert.Equal(t, ModeBranch, s.Mode)
	assert.Equal(t, "wellness", s.Name)
	assert.Equal(t, "Wellness Check", s.DisplayTitle())
	assert.Equal(t, "q1", s.Start)
	assert.Len(t, s.Nodes, 2)
	assert.Equal(t, "Thanks for answering!", s.Closing)
	assert.Empty(t, s.Questions)
}

func TestDecodeSurveyBranchDefaultStart(t *testing.T) {
	raw := []byte(`{"nodes": {"q1": {"q": "Hi?", "options": [{"t": "Yes"}]}}}`)
	s, err := DecodeSurvey("s", raw)
	assert.NoError(t, err)
	assert.Equal(t, "q1", s.Start)
	assert.Equal(t, "s", s.DisplayTitle())
}

func TestDecodeSurveyLinear(t *testing.T) {
	raw := []byte(`{"title": "Quick", "questions": [{"q": "Age?", "a": ["<20", "20+"]}]}`)
	s, err := DecodeSurvey("quick", raw)
	assert.NoError(t, err)
	assert.Equal(t, ModeLinear, s.Mode)
	assert.Len(t, s.Questions, 1)
	assert.Empty(t, s.Nodes)
}

func TestDecodeSurveyMalformed(t *testing.T) {
	cases := map[string][]byte{
		"broken json": []byte(`{not json`),
		"no shape":    []byte(`{"title": "empty"}`),
		"scalar":      []byte(`42`),
		"both empty":  []byte(`{"nodes": {}, "questions": []}`),
	}
	for name, raw := range cases {
		_, err := DecodeSurvey("x", raw)
		assert.ErrorIs(t, err, fault.ErrMalformed, name)
	}
}

func TestNewSession(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	branch := &Survey{Name: "b", Mode: ModeBranch, Start: "intro"}
	sess := NewSession(branch, now)
	assert.True(t, sess.Active)
	assert.Equal(t, ModeBranch, sess.Mode)
	assert.Equal(t, "intro", sess.NodeID)
	assert.Equal(t, int64(1700000000000), sess.StartedAt)
	assert.NotNil(t, sess.Answers)

	linear := &Survey{Name: "l", Mode: ModeLinear}
	sess = NewSession(linear, now)
	assert.Equal(t, 0, sess.QIndex)
	assert.Empty(t, sess.NodeID)
}

func TestNormalizeKeyword(t *testing.T) {
	assert.Equal(t, "foo", NormalizeKeyword("  Foo "))
	assert.Equal(t, "foobar", NormalizeKeyword("Foo  Bar"))
	assert.Equal(t, "foobar", NormalizeKeyword("foo\tbar\n"))

	// Idempotent: normalizing twice changes nothing.
	k := NormalizeKeyword(" Sleep  Check ")
	assert.Equal(t, k, NormalizeKeyword(k))
}
