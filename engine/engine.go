// Package engine drives users through keyword-triggered surveys: routing
// inbound events, advancing sessions, scoring answers and shipping reports.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zxcv8096-dotcom/line-tool/fault"
	"github.com/zxcv8096-dotcom/line-tool/line"
	"github.com/zxcv8096-dotcom/line-tool/models"
	"github.com/zxcv8096-dotcom/line-tool/store"
)

// Webhook event shapes as delivered by the channel.
type (
	EventSource struct {
		UserID string `json:"userId"`
	}

	MessagePayload struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}

	PostbackPayload struct {
		Data string `json:"data"`
	}

	Event struct {
		Type       string           `json:"type"`
		ReplyToken string           `json:"replyToken"`
		Source     EventSource      `json:"source"`
		Message    *MessagePayload  `json:"message,omitempty"`
		Postback   *PostbackPayload `json:"postback,omitempty"`
	}

	WebhookBody struct {
		Events []Event `json:"events"`
	}
)

// User-facing notices. Short, never fatal.
const (
	msgTapOption     = "Please tap one of the options below 👇"
	msgStaleOption   = "That option is no longer valid. Please send the survey keyword to start over."
	msgSurveyMissing = "This survey has no data yet (it may not be saved in the back office)."
	msgNoReportYet   = "You haven't completed a survey yet. Send a survey keyword to get started."
	msgBrokenStep    = "This survey is missing one of its steps. Please contact the administrator."
	msgBadBranchData = "Survey data is missing or malformed (nodes)."
	msgBadLinearData = "Survey data is missing or malformed (questions)."
)

// Engine owns the session state machine. Events for the same user are
// serialized on a per-user lock so concurrent webhook deliveries cannot lose
// session updates.
type Engine struct {
	surveys  *store.SurveyStore
	keywords *store.KeywordMapStore
	sessions *store.SessionStore
	leads    *store.LeadStore
	client   *line.Client
	log      *zap.SugaredLogger

	reportCommand string
	now           func() time.Time

	mu     sync.Mutex
	userMu map[string]*sync.Mutex
}

func New(surveys *store.SurveyStore, keywords *store.KeywordMapStore, sessions *store.SessionStore, leads *store.LeadStore, client *line.Client, reportCommand string, log *zap.SugaredLogger) *Engine {
	if reportCommand == "" {
		reportCommand = "report"
	}
	return &Engine{
		surveys:       surveys,
		keywords:      keywords,
		sessions:      sessions,
		leads:         leads,
		client:        client,
		log:           log,
		reportCommand: models.NormalizeKeyword(reportCommand),
		now:           time.Now,
		userMu:        make(map[string]*sync.Mutex),
	}
}

// SetClock overrides the engine's clock. Test hook.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// HandleEvent processes one inbound event to completion.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) error {
	userID := ev.Source.UserID
	if userID == "" {
		return nil
	}
	unlock := e.lockUser(userID)
	defer unlock()

	switch {
	case ev.Type == "postback" && ev.Postback != nil && ev.Postback.Data != "":
		return e.handlePostback(ctx, ev)
	case ev.Type == "message" && ev.Message != nil && ev.Message.Type == "text":
		return e.handleMessage(ctx, ev)
	default:
		return nil
	}
}

func (e *Engine) handleMessage(ctx context.Context, ev Event) error {
	userID := ev.Source.UserID
	text := strings.TrimSpace(ev.Message.Text)
	if text == "" {
		return nil
	}

	sess, err := e.loadSession(ctx, userID)
	if err != nil {
		return err
	}

	// An active session first: typed text may be an option label for the
	// current position.
	var activeSurvey *models.Survey
	if sess != nil && sess.Active && sess.SurveyName != "" {
		survey, err := e.surveys.Get(ctx, sess.SurveyName)
		if err != nil && !errors.Is(err, fault.ErrNotFound) {
			return err
		}
		// A vanished survey leaves activeSurvey nil so the user falls
		// through to the keyword path instead of being stuck.
		switch {
		case err == nil && survey.Mode == models.ModeBranch && sess.Mode == models.ModeBranch:
			if node, ok := survey.Nodes[sess.NodeID]; ok {
				for _, opt := range node.Options {
					if strings.TrimSpace(opt.Label) == text {
						return e.applyBranchAnswer(ctx, ev.ReplyToken, userID, survey, sess, node, opt)
					}
				}
			}
			activeSurvey = survey
		case err == nil && survey.Mode == models.ModeLinear && sess.Mode == models.ModeLinear:
			if sess.QIndex >= 0 && sess.QIndex < len(survey.Questions) {
				q := survey.Questions[sess.QIndex]
				for _, opt := range q.Options {
					if strings.TrimSpace(opt) == text {
						return e.applyLinearAnswer(ctx, ev.ReplyToken, userID, survey, sess, q, opt)
					}
				}
			}
			activeSurvey = survey
		}
	}

	if activeSurvey == nil && models.NormalizeKeyword(text) == e.reportCommand {
		return e.replayReport(ctx, ev.ReplyToken, userID, sess)
	}

	name, ok, err := e.keywords.Resolve(ctx, text)
	if err != nil {
		return err
	}
	if ok {
		survey, err := e.surveys.Get(ctx, name)
		if errors.Is(err, fault.ErrNotFound) {
			return e.client.ReplyText(ctx, ev.ReplyToken, msgSurveyMissing)
		}
		if err != nil {
			return err
		}
		// A keyword always starts fresh, silently discarding whatever
		// session was in progress.
		sess = models.NewSession(survey, e.now())
		if err := e.sessions.Put(ctx, userID, sess); err != nil {
			return err
		}
		return e.sendPrompt(ctx, ev.ReplyToken, survey, sess)
	}

	if activeSurvey != nil {
		// Mid-survey free text that matches nothing: nudge and repeat the
		// current question without advancing.
		return e.sendPrompt(ctx, ev.ReplyToken, activeSurvey, sess, line.NewText(msgTapOption))
	}
	return nil
}

// replayReport re-renders the report from the stored terminal session. No
// new lead is recorded; scoring is pure so the bytes come out identical.
func (e *Engine) replayReport(ctx context.Context, replyToken, userID string, sess *models.Session) error {
	if sess == nil || len(sess.Answers) == 0 {
		return e.client.ReplyText(ctx, replyToken, msgNoReportYet)
	}
	survey, err := e.surveys.Get(ctx, sess.SurveyName)
	if errors.Is(err, fault.ErrNotFound) {
		survey = &models.Survey{Name: sess.SurveyName, Mode: sess.Mode}
	} else if err != nil {
		return err
	}
	report := BuildReport(survey, sess)
	return e.client.SendReport(ctx, replyToken, userID, survey.DisplayTitle(), report)
}

func (e *Engine) handlePostback(ctx context.Context, ev Event) error {
	userID := ev.Source.UserID
	pb, ok := ParsePostback(ev.Postback.Data)
	if !ok {
		return nil
	}

	survey, err := e.surveys.Get(ctx, pb.Survey)
	if err != nil && !errors.Is(err, fault.ErrNotFound) {
		return err
	}
	if err != nil || survey.Mode != pb.Mode {
		msg := msgBadBranchData
		if pb.Mode == models.ModeLinear {
			msg = msgBadLinearData
		}
		return e.client.ReplyText(ctx, ev.ReplyToken, msg)
	}

	// The postback carries its own position and is authoritative: a missing,
	// stale or mismatched session is rebuilt rather than failing the tap.
	sess, err := e.loadSession(ctx, userID)
	if err != nil {
		return err
	}
	if sess == nil || !sess.Active || sess.SurveyName != pb.Survey {
		sess = models.NewSession(survey, e.now())
	}
	sess.Mode = pb.Mode

	if pb.Mode == models.ModeBranch {
		sess.NodeID = pb.NodeID
		node, ok := survey.Nodes[pb.NodeID]
		if !ok || pb.Option < 0 || pb.Option >= len(node.Options) {
			return e.staleSelection(ctx, ev.ReplyToken, userID,
				fmt.Errorf("node %q option %d: %w", pb.NodeID, pb.Option, fault.ErrStaleSelection))
		}
		return e.applyBranchAnswer(ctx, ev.ReplyToken, userID, survey, sess, node, node.Options[pb.Option])
	}

	sess.QIndex = pb.QIndex
	if pb.QIndex < 0 || pb.QIndex >= len(survey.Questions) {
		return e.staleSelection(ctx, ev.ReplyToken, userID,
			fmt.Errorf("question %d of %d: %w", pb.QIndex, len(survey.Questions), fault.ErrStaleSelection))
	}
	q := survey.Questions[pb.QIndex]
	if pb.Option < 0 || pb.Option >= len(q.Options) {
		return e.staleSelection(ctx, ev.ReplyToken, userID,
			fmt.Errorf("question %d option %d: %w", pb.QIndex, pb.Option, fault.ErrStaleSelection))
	}
	return e.applyLinearAnswer(ctx, ev.ReplyToken, userID, survey, sess, q, q.Options[pb.Option])
}

func (e *Engine) applyBranchAnswer(ctx context.Context, replyToken, userID string, survey *models.Survey, sess *models.Session, node models.Node, opt models.Option) error {
	// Step bound: no acyclic path through the graph is longer than the node
	// count, so anything past that is a cycle in the definition.
	if len(sess.Answers) >= len(survey.Nodes) {
		return e.staleSelection(ctx, replyToken, userID,
			fmt.Errorf("survey %q: %d answers over %d nodes: %w",
				survey.Name, len(sess.Answers), len(survey.Nodes), fault.ErrStaleSelection))
	}

	now := e.now()
	qText := strings.TrimSpace(node.Prompt)
	aText := strings.TrimSpace(opt.Label)
	sess.Answers = append(sess.Answers, models.Answer{
		Question: qText,
		Text:     aText,
		Tag:      strings.TrimSpace(opt.Tag),
		NodeID:   sess.NodeID,
		At:       now.UnixMilli(),
	})
	e.captureFocusArea(sess, qText, aText)
	sess.UpdatedAt = now.UnixMilli()

	next := strings.TrimSpace(opt.Next)
	if next == "" {
		sess.NodeID = ""
		return e.finish(ctx, replyToken, userID, survey, sess)
	}
	sess.NodeID = next
	if err := e.sessions.Put(ctx, userID, sess); err != nil {
		return err
	}
	return e.sendPrompt(ctx, replyToken, survey, sess)
}

func (e *Engine) applyLinearAnswer(ctx context.Context, replyToken, userID string, survey *models.Survey, sess *models.Session, q models.Question, answer string) error {
	now := e.now()
	qText := strings.TrimSpace(q.Prompt)
	aText := strings.TrimSpace(answer)
	sess.Answers = append(sess.Answers, models.Answer{
		Question: qText,
		Text:     aText,
		Index:    sess.QIndex,
		At:       now.UnixMilli(),
	})
	e.captureFocusArea(sess, qText, aText)
	sess.UpdatedAt = now.UnixMilli()

	sess.QIndex++
	if sess.QIndex >= len(survey.Questions) {
		return e.finish(ctx, replyToken, userID, survey, sess)
	}
	if err := e.sessions.Put(ctx, userID, sess); err != nil {
		return err
	}
	return e.sendPrompt(ctx, replyToken, survey, sess)
}

// finish moves the session to terminal state: extended-TTL save, report
// send, the one lead snapshot, and the optional closing push.
func (e *Engine) finish(ctx context.Context, replyToken, userID string, survey *models.Survey, sess *models.Session) error {
	sess.Active = false
	if err := e.sessions.Put(ctx, userID, sess); err != nil {
		return err
	}

	report := BuildReport(survey, sess)
	if err := e.client.SendReport(ctx, replyToken, userID, survey.DisplayTitle(), report); err != nil {
		// The lead still gets recorded; the user can replay the report.
		e.log.Warnw("report delivery failed", "survey", survey.Name, "error", err)
	}

	lead := &models.Lead{
		UserID:     userID,
		SurveyName: sess.SurveyName,
		Mode:       sess.Mode,
		Answers:    sess.Answers,
		Report:     report,
		FocusArea:  sess.FocusArea,
		CreatedAt:  e.now().UnixMilli(),
	}
	if err := e.leads.Put(ctx, lead); err != nil {
		return fault.NewInternalError("record lead", err)
	}

	if survey.Closing != "" {
		if err := e.client.Push(ctx, userID, survey.Closing); err != nil {
			e.log.Debugw("closing push failed", "survey", survey.Name, "error", err)
		}
	}
	return nil
}

func (e *Engine) captureFocusArea(sess *models.Session, question, answer string) {
	if sess.FocusArea == "" && answer != "" && IsFocusQuestion(question) {
		sess.FocusArea = answer
	}
}

// staleSelection recovers from an out-of-date tap: notify, then clear the
// session so the next keyword starts clean.
func (e *Engine) staleSelection(ctx context.Context, replyToken, userID string, cause error) error {
	e.log.Infow("recovering stale selection", "userId", userID, "cause", cause)
	if err := e.client.ReplyText(ctx, replyToken, msgStaleOption); err != nil {
		e.log.Debugw("stale-option notice failed", "error", err)
	}
	return e.sessions.Delete(ctx, userID)
}

// sendPrompt replies with the current position's question and its options as
// quick replies. Extra messages (e.g. the tap nudge) ride in the same reply.
func (e *Engine) sendPrompt(ctx context.Context, replyToken string, survey *models.Survey, sess *models.Session, extra ...any) error {
	msg, ok := promptMessage(survey, sess)
	if !ok {
		return e.client.ReplyText(ctx, replyToken, msgBrokenStep)
	}
	msgs := append(extra, any(msg))
	return e.client.Reply(ctx, replyToken, msgs...)
}

func promptMessage(survey *models.Survey, sess *models.Session) (line.TextMessage, bool) {
	if survey.Mode == models.ModeBranch {
		nodeID := sess.NodeID
		if nodeID == "" {
			nodeID = survey.Start
		}
		node, ok := survey.Nodes[nodeID]
		if !ok {
			return line.TextMessage{}, false
		}
		items := make([]line.QuickReplyItem, 0, len(node.Options))
		for idx, opt := range node.Options {
			data := fmt.Sprintf("SV|B|%s|%s|%d", survey.Name, nodeID, idx)
			items = append(items, line.PostbackItem(opt.Label, data))
		}
		return line.NewQuickReplyText(promptText(survey, node.Prompt), items), true
	}

	if sess.QIndex < 0 || sess.QIndex >= len(survey.Questions) {
		return line.TextMessage{}, false
	}
	q := survey.Questions[sess.QIndex]
	items := make([]line.QuickReplyItem, 0, len(q.Options))
	for idx, opt := range q.Options {
		data := fmt.Sprintf("SV|L|%s|%d|%d", survey.Name, sess.QIndex, idx)
		items = append(items, line.PostbackItem(opt, data))
	}
	return line.NewQuickReplyText(promptText(survey, q.Prompt), items), true
}

func promptText(survey *models.Survey, prompt string) string {
	p := strings.TrimSpace(prompt)
	if p == "" {
		p = "(question not set)"
	}
	return fmt.Sprintf("[%s]\n\n%s", survey.DisplayTitle(), p)
}

// Postback is the decoded position a tapped option carries.
type Postback struct {
	Mode   models.Mode
	Survey string
	NodeID string
	QIndex int
	Option int
}

// ParsePostback decodes the pipe-delimited payload:
// SV|B|<survey>|<nodeId>|<optionIndex> or SV|L|<survey>|<questionIndex>|<optionIndex>.
func ParsePostback(data string) (*Postback, bool) {
	parts := strings.Split(data, "|")
	if len(parts) != 5 || parts[0] != "SV" {
		return nil, false
	}
	opt, err := strconv.Atoi(parts[4])
	if err != nil {
		return nil, false
	}
	switch parts[1] {
	case "B":
		return &Postback{Mode: models.ModeBranch, Survey: parts[2], NodeID: parts[3], Option: opt}, true
	case "L":
		qIdx, err := strconv.Atoi(parts[3])
		if err != nil {
			return nil, false
		}
		return &Postback{Mode: models.ModeLinear, Survey: parts[2], QIndex: qIdx, Option: opt}, true
	default:
		return nil, false
	}
}

func (e *Engine) loadSession(ctx context.Context, userID string) (*models.Session, error) {
	sess, err := e.sessions.Get(ctx, userID)
	if errors.Is(err, fault.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (e *Engine) lockUser(userID string) func() {
	e.mu.Lock()
	m, ok := e.userMu[userID]
	if !ok {
		m = &sync.Mutex{}
		e.userMu[userID] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}
