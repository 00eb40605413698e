package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/malonaz/inquirex/internal/persist"
	"github.com/malonaz/inquirex/internal/types"
)

const (
	// StateKey holds conversations and settings.
	StateKey = "inquire-x-storage"
	// QuestionsKey holds the cached AI generated recommended questions.
	QuestionsKey = "inquire-x-ai-questions"

	stateVersion = 0
)

var (
	// ErrConversationNotFound is returned when adding a message to an unknown conversation.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrInvalidRole is returned when adding a message with an unknown role.
	ErrInvalidRole = errors.New("invalid message role")
)

// State is an immutable snapshot of the store. Callers must not modify it.
type State struct {
	// Most recent first.
	Conversations         []types.Conversation
	CurrentConversationID string
	Settings              types.Settings
}

// Listener is notified after every mutation with the resulting state.
type Listener func(State)

// persistedState mirrors the persisted app state blob.
type persistedState struct {
	State   persistedAppState `json:"state"`
	Version int               `json:"version"`
}

type persistedAppState struct {
	Conversations []types.Conversation `json:"conversations"`
	Settings      json.RawMessage      `json:"settings,omitempty"`
}

// Store owns the conversations and the settings.
type Store struct {
	logger    *zap.Logger
	persister *persister
	now       func() time.Time

	mu        sync.RWMutex
	state     State
	questions []string

	// Held while listeners run so they observe mutations in order.
	notifyMu       sync.Mutex
	listeners      map[int]Listener
	nextListenerID int
}

// New loads the persisted state from provider and returns a store writing back to it.
func New(ctx context.Context, provider persist.Provider, logger *zap.Logger) (*Store, error) {
	s := &Store{
		logger:    logger,
		now:       time.Now,
		listeners: map[int]Listener{},
		state: State{
			Conversations: []types.Conversation{},
			Settings:      types.DefaultSettings(),
		},
	}
	if err := s.load(ctx, provider); err != nil {
		return nil, err
	}
	s.persister = newPersister(provider, logger)
	go s.persister.run()
	return s, nil
}

func (s *Store) load(ctx context.Context, provider persist.Provider) error {
	blob, ok, err := provider.Get(ctx, StateKey)
	if err != nil {
		return errors.Wrap(err, "reading app state")
	}
	if ok {
		persisted := &persistedState{}
		if err := json.Unmarshal([]byte(blob), persisted); err != nil {
			// A corrupt blob must not lock the user out of the app.
			s.logger.Warn("discarding unreadable app state", zap.Error(err))
		} else {
			settings := types.DefaultSettings()
			if len(persisted.State.Settings) > 0 {
				if err := json.Unmarshal(persisted.State.Settings, &settings); err != nil {
					s.logger.Warn("discarding unreadable settings", zap.Error(err))
					settings = types.DefaultSettings()
				}
			}
			if persisted.State.Conversations != nil {
				s.state.Conversations = persisted.State.Conversations
			}
			s.state.Settings = settings
		}
	}

	blob, ok, err = provider.Get(ctx, QuestionsKey)
	if err != nil {
		return errors.Wrap(err, "reading cached questions")
	}
	if ok {
		var questions []string
		if err := json.Unmarshal([]byte(blob), &questions); err != nil {
			s.logger.Warn("discarding unreadable cached questions", zap.Error(err))
		} else {
			s.questions = questions
		}
	}
	s.logger.Debug("loaded app state", zap.Int("conversations", len(s.state.Conversations)))
	return nil
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Settings returns a copy of the current settings.
func (s *Store) Settings() types.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Settings.Clone()
}

// Conversation returns a copy of the conversation with the given id.
func (s *Store) Conversation(id string) (types.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := findConversation(s.state.Conversations, id)
	if i < 0 {
		return types.Conversation{}, false
	}
	return s.state.Conversations[i].Clone(), true
}

// CurrentConversation returns a copy of the current conversation, if any.
func (s *Store) CurrentConversation() (types.Conversation, bool) {
	s.mu.RLock()
	id := s.state.CurrentConversationID
	s.mu.RUnlock()
	if id == "" {
		return types.Conversation{}, false
	}
	return s.Conversation(id)
}

// Subscribe registers a listener invoked after every mutation.
// Listeners must not mutate the store. The returned function unregisters it.
func (s *Store) Subscribe(listener Listener) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners[id] = listener
	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.listeners, id)
	}
}

// Flush blocks until every mutation made before the call is persisted.
// It returns the last persistence error, if any.
func (s *Store) Flush() error {
	return s.persister.flush()
}

// Close flushes pending writes and stops the background writer.
// The persistence provider is not closed.
func (s *Store) Close() error {
	return s.persister.close()
}

// update applies fn to a copy of the state. If fn returns true, the copy
// replaces the state, is scheduled for persistence and listeners are notified.
func (s *Store) update(fn func(state *State) bool) bool {
	s.mu.Lock()
	next := s.state
	if !fn(&next) {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.persister.enqueue(StateKey, func() (string, error) { return encodeState(next) })
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	for _, listener := range s.listeners {
		listener(next)
	}
	return true
}

func encodeState(state State) (string, error) {
	conversations := state.Conversations
	if conversations == nil {
		conversations = []types.Conversation{}
	}
	settings, err := json.Marshal(state.Settings)
	if err != nil {
		return "", errors.Wrap(err, "marshaling settings")
	}
	bytes, err := json.Marshal(&persistedState{
		State:   persistedAppState{Conversations: conversations, Settings: settings},
		Version: stateVersion,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshaling app state")
	}
	return string(bytes), nil
}
