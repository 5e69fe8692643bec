package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zxcv8096-dotcom/line-tool/fault"
)

const DefaultAPIBase = "https://api.line.me"

// Placeholders used when the profile lookup fails; a missing profile must
// never block a report send.
const (
	placeholderName   = "friend"
	placeholderAvatar = "https://via.placeholder.com/96"
)

// Profile is the subset of the channel profile the report card needs.
type Profile struct {
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl"`
}

// Client wraps outbound calls to the messaging channel. All sends share one
// rate limiter sized to the channel's per-minute ceiling.
type Client struct {
	httpClient *http.Client
	base       string
	token      string
	limiter    *rate.Limiter
	log        *zap.SugaredLogger
}

func NewClient(token, base string, log *zap.SugaredLogger) *Client {
	if base == "" {
		base = DefaultAPIBase
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		base:       base,
		token:      token,
		limiter:    rate.NewLimiter(rate.Limit(30), 60),
		log:        log,
	}
}

// Reply sends up to 5 messages against a single-use reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, messages ...any) error {
	if len(messages) > 5 {
		messages = messages[:5]
	}
	body := map[string]any{
		"replyToken": replyToken,
		"messages":   messages,
	}
	return c.post(ctx, "/v2/bot/message/reply", body)
}

// ReplyText is the plain single-text convenience used for prompts and user
// facing notices.
func (c *Client) ReplyText(ctx context.Context, replyToken, text string) error {
	return c.Reply(ctx, replyToken, NewText(text))
}

// Push sends a user-targeted text outside any reply token.
func (c *Client) Push(ctx context.Context, userID, text string) error {
	body := map[string]any{
		"to":       userID,
		"messages": []any{NewText(text)},
	}
	return c.post(ctx, "/v2/bot/message/push", body)
}

// Profile fetches the user's display name and avatar.
func (c *Client) Profile(ctx context.Context, userID string) (*Profile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v2/bot/profile/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("profile fetch status %d", resp.StatusCode)
	}
	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SendReport delivers the completion report: the rich card with a freshly
// fetched profile, degraded to capped plain text if the channel rejects the
// card. Exactly one of the two goes out.
func (c *Client) SendReport(ctx context.Context, replyToken, userID, title, report string) error {
	name, avatar := placeholderName, placeholderAvatar
	if prof, err := c.Profile(ctx, userID); err == nil {
		if prof.DisplayName != "" {
			name = prof.DisplayName
		}
		if prof.PictureURL != "" {
			avatar = prof.PictureURL
		}
	} else {
		c.log.Debugw("profile lookup failed, using placeholder", "error", err)
	}

	flex := ReportBubble(name, avatar, title, report)
	if err := c.Reply(ctx, replyToken, flex); err != nil {
		c.log.Warnw("rich report rejected, falling back to text", "error", err)
		text := report
		if r := []rune(text); len(r) > fallbackBudgetRunes {
			text = string(r[:fallbackBudgetRunes]) + "…"
		}
		return c.Reply(ctx, replyToken, NewText(text))
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		sendErr := fmt.Errorf("%w: %s status %d: %s", fault.ErrDelivery, path, resp.StatusCode, string(detail))
		// 4xx is the channel refusing the payload (expired reply token,
		// oversized message), not an outage on our side.
		if resp.StatusCode < 500 {
			return fault.NewClientError("channel rejected request", sendErr)
		}
		return fault.NewInternalError("channel request failed", sendErr)
	}
	return nil
}
