package relay

import (
	"sync"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
)

// Step is the onboarding wizard position. Steps advance in a fixed order;
// AdvanceStep rejects anything that is not the direct successor.
type Step int

const (
	StepNone Step = iota
	StepName
	StepCategory
	StepBio
	StepLogo
	StepPlan
	StepPaymentPending
)

func (s Step) String() string {
	switch s {
	case StepNone:
		return "none"
	case StepName:
		return "name"
	case StepCategory:
		return "category"
	case StepBio:
		return "bio"
	case StepLogo:
		return "logo"
	case StepPlan:
		return "plan"
	case StepPaymentPending:
		return "payment_pending"
	}
	return "unknown"
}

// ProfileSnapshot is the scratch profile accumulated during onboarding.
// Each step only sets its own field.
type ProfileSnapshot struct {
	Name     string
	Category models.Category
	Bio      string
	LogoRef  *string
}

// Session is per end-user ephemeral state. It lives only in process memory;
// a restart legitimately drops in-flight onboarding and pending replies.
type Session struct {
	BoundOwnerIdentity *int64
	Step               Step
	Draft              ProfileSnapshot

	// PendingReplyTarget is single-shot: set when an owner taps reply,
	// consumed by exactly one TakePendingReply.
	PendingReplyTarget *int64
}

const sessionShards = 32

type sessionShard struct {
	mu sync.Mutex
	m  map[int64]*Session
}

// SessionStore is an in-memory, sharded map of sessions keyed by end-user
// identity. All operations are O(1) expected and safe for concurrent use.
type SessionStore struct {
	shards [sessionShards]sessionShard
}

func NewSessionStore() *SessionStore {
	s := &SessionStore{}
	for i := range s.shards {
		s.shards[i].m = make(map[int64]*Session)
	}
	return s
}

func (s *SessionStore) shard(userID int64) *sessionShard {
	return &s.shards[uint64(userID)%sessionShards]
}

// get returns the live session for userID, creating it if absent.
// Caller must hold the shard lock.
func (sh *sessionShard) get(userID int64) *Session {
	sess, ok := sh.m[userID]
	if !ok {
		sess = &Session{}
		sh.m[userID] = sess
	}
	return sess
}

// Get returns a copy of the user's session, a zero-value Session if absent.
func (s *SessionStore) Get(userID int64) Session {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sess, ok := sh.m[userID]; ok {
		return *sess
	}
	return Session{}
}

func (s *SessionStore) BindOwner(userID, ownerIdentity int64) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	id := ownerIdentity
	sh.get(userID).BoundOwnerIdentity = &id
}

func (s *SessionStore) ClearBinding(userID int64) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.get(userID).BoundOwnerIdentity = nil
}

// BeginOnboarding resets scratch fields and places the user at the NAME step.
func (s *SessionStore) BeginOnboarding(userID int64) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess := sh.get(userID)
	sess.Draft = ProfileSnapshot{}
	sess.Step = StepName
}

// AdvanceStep moves the wizard to step, applying update to the scratch
// profile first. Fails with ErrInvalidStepTransition unless step is the
// direct successor of the current step.
func (s *SessionStore) AdvanceStep(userID int64, step Step, update func(*ProfileSnapshot)) error {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess := sh.get(userID)
	if step != sess.Step+1 {
		return ErrInvalidStepTransition
	}
	if update != nil {
		update(&sess.Draft)
	}
	sess.Step = step
	return nil
}

// CompleteOnboarding returns the accumulated profile and clears all wizard
// state. Fails with ErrIncompleteOnboarding if required fields are unset,
// leaving the session untouched.
func (s *SessionStore) CompleteOnboarding(userID int64) (ProfileSnapshot, error) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess := sh.get(userID)
	if sess.Draft.Name == "" || sess.Draft.Category == "" {
		return ProfileSnapshot{}, ErrIncompleteOnboarding
	}
	snap := sess.Draft
	sess.Draft = ProfileSnapshot{}
	sess.Step = StepNone
	return snap, nil
}

// AbandonOnboarding drops wizard state without completing it.
func (s *SessionStore) AbandonOnboarding(userID int64) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess := sh.get(userID)
	sess.Draft = ProfileSnapshot{}
	sess.Step = StepNone
}

func (s *SessionStore) SetPendingReply(ownerUserID, targetUserID int64) {
	sh := s.shard(ownerUserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	target := targetUserID
	sh.get(ownerUserID).PendingReplyTarget = &target
}

// HasPendingReply reports whether a reply target is armed without
// consuming it.
func (s *SessionStore) HasPendingReply(ownerUserID int64) bool {
	sh := s.shard(ownerUserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.m[ownerUserID]
	return ok && sess.PendingReplyTarget != nil
}

// TakePendingReply consumes the pending reply target. The second call
// returns false until SetPendingReply is called again.
func (s *SessionStore) TakePendingReply(ownerUserID int64) (int64, bool) {
	sh := s.shard(ownerUserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess := sh.get(ownerUserID)
	if sess.PendingReplyTarget == nil {
		return 0, false
	}
	target := *sess.PendingReplyTarget
	sess.PendingReplyTarget = nil
	return target, true
}
