// Package store holds the repositories the engine is wired with. Each one is
// a thin namespace over the shared key-value store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/zxcv8096-dotcom/line-tool/fault"
	"github.com/zxcv8096-dotcom/line-tool/kv"
	"github.com/zxcv8096-dotcom/line-tool/models"
)

const (
	SurveyPrefix  = "survey:def:"
	LeadPrefix    = "survey:lead:"
	SessionPrefix = "survey:session:"
	KeywordMapKey = "survey:kwmap"
)

// Session lifetimes: short while answering, extended after completion so a
// one-time report replay still works, then gone.
const (
	ActiveSessionTTL   = 6 * time.Hour
	TerminalSessionTTL = 24 * time.Hour
)

// SurveyStore loads and deletes survey definitions.
type SurveyStore struct {
	kv kv.Store
}

func NewSurveyStore(s kv.Store) *SurveyStore {
	return &SurveyStore{kv: s}
}

// Get loads and shape-checks a definition. A payload that is neither branch
// nor linear is reported as not found, same as an absent key.
func (s *SurveyStore) Get(ctx context.Context, name string) (*models.Survey, error) {
	raw, err := s.kv.Get(ctx, SurveyPrefix+name)
	if err != nil {
		return nil, err
	}
	survey, err := models.DecodeSurvey(name, []byte(raw))
	if errors.Is(err, fault.ErrMalformed) {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return survey, nil
}

func (s *SurveyStore) Delete(ctx context.Context, name string) error {
	return s.kv.Delete(ctx, SurveyPrefix+name)
}

// KeywordMapStore owns the single whole-map keyword table.
type KeywordMapStore struct {
	kv kv.Store
}

func NewKeywordMapStore(s kv.Store) *KeywordMapStore {
	return &KeywordMapStore{kv: s}
}

// Get returns the normalized map. A missing or unreadable table reads as
// empty rather than failing keyword routing.
func (s *KeywordMapStore) Get(ctx context.Context) (map[string]string, error) {
	raw, err := s.kv.Get(ctx, KeywordMapKey)
	if errors.Is(err, fault.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]string{}, nil
	}
	return normalizeMap(m), nil
}

// Put stores the map with every keyword normalized. Last write wins per
// keyword.
func (s *KeywordMapStore) Put(ctx context.Context, m map[string]string) error {
	raw, err := json.Marshal(normalizeMap(m))
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, KeywordMapKey, string(raw), 0)
}

// Resolve maps a normalized keyword to a survey name.
func (s *KeywordMapStore) Resolve(ctx context.Context, keyword string) (string, bool, error) {
	m, err := s.Get(ctx)
	if err != nil {
		return "", false, err
	}
	name, ok := m[models.NormalizeKeyword(keyword)]
	return name, ok, nil
}

// Prune drops every entry pointing at the given survey. Used by the compound
// survey delete so no keyword keeps routing to a dead definition.
func (s *KeywordMapStore) Prune(ctx context.Context, surveyName string) error {
	m, err := s.Get(ctx)
	if err != nil {
		return err
	}
	for kw, name := range m {
		if name == surveyName {
			delete(m, kw)
		}
	}
	return s.Put(ctx, m)
}

func normalizeMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		nk := models.NormalizeKeyword(k)
		if nk == "" {
			continue
		}
		out[nk] = v
	}
	return out
}

// SessionStore keeps the single per-user progress record.
type SessionStore struct {
	kv kv.Store
}

func NewSessionStore(s kv.Store) *SessionStore {
	return &SessionStore{kv: s}
}

// Get returns the user's session. A record that no longer parses reads as
// absent; the engine then starts fresh.
func (s *SessionStore) Get(ctx context.Context, userID string) (*models.Session, error) {
	raw, err := s.kv.Get(ctx, SessionPrefix+userID)
	if err != nil {
		return nil, err
	}
	var sess models.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fault.ErrNotFound
	}
	return &sess, nil
}

// Put writes the session with the TTL matching its state: active sessions
// are short-lived, terminal ones stay around long enough for a replay.
func (s *SessionStore) Put(ctx context.Context, userID string, sess *models.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ttl := TerminalSessionTTL
	if sess.Active {
		ttl = ActiveSessionTTL
	}
	return s.kv.Put(ctx, SessionPrefix+userID, string(raw), ttl)
}

func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	return s.kv.Delete(ctx, SessionPrefix+userID)
}

// LeadStore appends completed-session snapshots.
type LeadStore struct {
	kv kv.Store
}

func NewLeadStore(s kv.Store) *LeadStore {
	return &LeadStore{kv: s}
}

// Put writes the lead keyed by completion timestamp and user id, which keeps
// leads unique and naturally ordered.
func (s *LeadStore) Put(ctx context.Context, lead *models.Lead) error {
	raw, err := json.Marshal(lead)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%s:%s", LeadPrefix, strconv.FormatInt(lead.CreatedAt, 10), lead.UserID)
	return s.kv.Put(ctx, key, string(raw), 0)
}
