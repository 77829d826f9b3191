package dialogue

import "sync"

type Phase int

const (
	// PhaseFields walks the schema steps in order.
	PhaseFields Phase = iota
	// PhasePhotos collects photo references until completion.
	PhasePhotos
	// PhaseReview offers publish / edit / cancel.
	PhaseReview
	// PhaseEditing waits for exactly one replacement value for
	// EditingKey, then returns to review.
	PhaseEditing
)

// Session is the ephemeral per-actor dialogue state. Everything the
// actor has answered already lives in the offer store; the session
// only remembers where in the flow the actor stands. A process crash
// loses sessions, not data.
type Session struct {
	ActorID     int64
	ActorHandle string
	ChatID      int64
	OfferID     int64

	Phase Phase
	Step  int
	// AwaitingCustom marks the nested free-text wait on the current
	// step after the custom escape; the step index does not advance.
	AwaitingCustom bool
	// ChoosingField marks the field-menu wait during review.
	ChoosingField bool
	EditingKey    string
	PhotoCount    int
}

// SessionStore keeps at most one live session per actor. It replaces
// the ad hoc global dictionaries of the older bot variants so the
// one-session invariant is enforced in a single place.
type SessionStore struct {
	mu      sync.Mutex
	byActor map[int64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{byActor: make(map[int64]*Session)}
}

func (s *SessionStore) Get(actorID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byActor[actorID]
	return sess, ok
}

// Put installs the actor's session, replacing any previous one. The
// replaced session is returned so the caller can clean up its draft.
func (s *SessionStore) Put(sess *Session) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.byActor[sess.ActorID]
	s.byActor[sess.ActorID] = sess
	return old
}

func (s *SessionStore) Delete(actorID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byActor, actorID)
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byActor)
}
