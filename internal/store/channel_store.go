package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"sync"
	"time"

	"lumen-chat/go-client/internal/securestore"
	"lumen-chat/go-client/pkg/models"
)

var ErrMessageKeyRequired = errors.New("message key is required")

// ChannelStore is the normalized store: flat id-keyed maps of channels
// and messages, with channel membership expressed as an ordered id list.
// Every mutation happens under the lock as a single step, so concurrent
// callers never observe a torn id list; the lock is never held across I/O
// other than the local snapshot write.
type ChannelStore struct {
	mu       sync.RWMutex
	channels map[string]models.Channel
	messages map[string]models.Message
	path     string
	secret   string
}

func NewChannelStore() *ChannelStore {
	return &ChannelStore{
		channels: make(map[string]models.Channel),
		messages: make(map[string]models.Message),
	}
}

// NewPersistentChannelStore loads state from an encrypted snapshot file
// and persists every committed mutation back to it.
func NewPersistentChannelStore(path, passphrase string) (*ChannelStore, error) {
	path, passphrase = securestore.NormalizeStorageConfig(path, passphrase)
	s := &ChannelStore{
		channels: make(map[string]models.Channel),
		messages: make(map[string]models.Message),
		path:     path,
		secret:   passphrase,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// UpsertChannel inserts or updates a channel. An existing channel keeps
// its message id list; callers mutate the list only through the id-list
// primitives.
func (s *ChannelStore) UpsertChannel(ch models.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.channels[ch.ID]; ok {
		ch.MessageIDs = existing.MessageIDs
	}
	next := cloneChannelsMap(s.channels)
	next[ch.ID] = ch
	if err := s.persistSnapshotLocked(next, s.messages); err != nil {
		return err
	}
	s.channels = next
	return nil
}

// TrackChannel ensures a channel entry exists without disturbing one
// that already does.
func (s *ChannelStore) TrackChannel(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channelID]; ok {
		return nil
	}
	next := cloneChannelsMap(s.channels)
	next[channelID] = models.Channel{ID: channelID}
	if err := s.persistSnapshotLocked(next, s.messages); err != nil {
		return err
	}
	s.channels = next
	return nil
}

func (s *ChannelStore) UpsertMessage(msg models.Message) error {
	key := msg.Key()
	if key == "" {
		return ErrMessageKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneMessagesMap(s.messages)
	next[key] = msg
	if err := s.persistSnapshotLocked(s.channels, next); err != nil {
		return err
	}
	s.messages = next
	return nil
}

// AppendMessageIDs appends ids to the channel's list tail, skipping any
// id already present. Merges are a set union keyed by id, so replaying
// the same page is a no-op.
func (s *ChannelStore) AppendMessageIDs(channelID string, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	fresh := dedupeAgainst(ch.MessageIDs, ids)
	if len(fresh) == 0 {
		return nil
	}
	merged := make([]string, 0, len(ch.MessageIDs)+len(fresh))
	merged = append(merged, ch.MessageIDs...)
	merged = append(merged, fresh...)
	return s.commitMessageIDsLocked(channelID, ch, merged)
}

// PrependMessageIDs splices older-history ids in front of the current
// head, preserving their given order and skipping duplicates.
func (s *ChannelStore) PrependMessageIDs(channelID string, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	fresh := dedupeAgainst(ch.MessageIDs, ids)
	if len(fresh) == 0 {
		return nil
	}
	merged := make([]string, 0, len(ch.MessageIDs)+len(fresh))
	merged = append(merged, fresh...)
	merged = append(merged, ch.MessageIDs...)
	return s.commitMessageIDsLocked(channelID, ch, merged)
}

func (s *ChannelStore) RemoveMessageID(channelID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return false, nil
	}
	idx := indexOf(ch.MessageIDs, id)
	if idx < 0 {
		return false, nil
	}
	merged := make([]string, 0, len(ch.MessageIDs)-1)
	merged = append(merged, ch.MessageIDs[:idx]...)
	merged = append(merged, ch.MessageIDs[idx+1:]...)
	if err := s.commitMessageIDsLocked(channelID, ch, merged); err != nil {
		return false, err
	}
	return true, nil
}

// ReplaceMessageID swaps oldID for newID at the same list position and
// drops the entity stored under oldID. If newID is already listed (a
// push echo landed during the swap's network round trip) the stale entry
// is removed instead, keeping canonical ids unique.
func (s *ChannelStore) ReplaceMessageID(channelID, oldID, newID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return false, nil
	}
	idx := indexOf(ch.MessageIDs, oldID)
	if idx < 0 {
		return false, nil
	}
	var merged []string
	if oldID != newID && indexOf(ch.MessageIDs, newID) >= 0 {
		merged = make([]string, 0, len(ch.MessageIDs)-1)
		merged = append(merged, ch.MessageIDs[:idx]...)
		merged = append(merged, ch.MessageIDs[idx+1:]...)
	} else {
		merged = append([]string(nil), ch.MessageIDs...)
		merged[idx] = newID
	}

	nextChannels := cloneChannelsMap(s.channels)
	ch.MessageIDs = merged
	nextChannels[channelID] = ch
	nextMessages := s.messages
	if oldID != newID {
		nextMessages = cloneMessagesMap(s.messages)
		delete(nextMessages, oldID)
	}
	if err := s.persistSnapshotLocked(nextChannels, nextMessages); err != nil {
		return false, err
	}
	s.channels = nextChannels
	s.messages = nextMessages
	return true, nil
}

// SnapshotMessageIDs returns a copy of the channel's id list for later
// rollback.
func (s *ChannelStore) SnapshotMessageIDs(channelID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	return append([]string(nil), ch.MessageIDs...)
}

// RestoreMessageIDs replaces the channel's id list with a previously
// taken snapshot.
func (s *ChannelStore) RestoreMessageIDs(channelID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	return s.commitMessageIDsLocked(channelID, ch, append([]string(nil), ids...))
}

// DropMessage deletes a message entity without touching any id list.
func (s *ChannelStore) DropMessage(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[key]; !ok {
		return nil
	}
	next := cloneMessagesMap(s.messages)
	delete(next, key)
	if err := s.persistSnapshotLocked(s.channels, next); err != nil {
		return err
	}
	s.messages = next
	return nil
}

// PatchMessage applies an in-place mutation to a stored message. The
// patch runs inside the lock and must not block.
func (s *ChannelStore) PatchMessage(key string, patch func(*models.Message)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[key]
	if !ok {
		return false, nil
	}
	patch(&msg)
	next := cloneMessagesMap(s.messages)
	next[key] = msg
	if err := s.persistSnapshotLocked(s.channels, next); err != nil {
		return false, err
	}
	s.messages = next
	return true, nil
}

// PatchByOptimisticID patches the message carrying the given optimistic
// token in the channel's list, whether it is still provisional or has
// already been canonicalized. No-op if the message is gone.
func (s *ChannelStore) PatchByOptimisticID(channelID, optimisticID string, patch func(*models.Message)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return false, nil
	}
	for _, id := range ch.MessageIDs {
		msg, ok := s.messages[id]
		if !ok || msg.OptimisticID != optimisticID {
			continue
		}
		patch(&msg)
		next := cloneMessagesMap(s.messages)
		next[id] = msg
		if err := s.persistSnapshotLocked(s.channels, next); err != nil {
			return false, err
		}
		s.messages = next
		return true, nil
	}
	return false, nil
}

// PendingByOptimisticID finds a still-provisional entry in the channel's
// list matching the correlation token.
func (s *ChannelStore) PendingByOptimisticID(channelID, optimisticID string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[channelID]
	if !ok || optimisticID == "" {
		return models.Message{}, false
	}
	for _, id := range ch.MessageIDs {
		msg, ok := s.messages[id]
		if ok && msg.Provisional() && msg.OptimisticID == optimisticID {
			return msg, true
		}
	}
	return models.Message{}, false
}

// MarkHistoryLoaded records a completed initial/refresh fetch.
func (s *ChannelStore) MarkHistoryLoaded(channelID string, hasMore bool) error {
	return s.patchChannel(channelID, func(ch *models.Channel) {
		ch.HasMore = hasMore
		ch.HasLoadedMessages = true
		ch.ShouldSyncChannels = true
	})
}

func (s *ChannelStore) SetHasMore(channelID string, hasMore bool) error {
	return s.patchChannel(channelID, func(ch *models.Channel) {
		ch.HasMore = hasMore
		ch.ShouldSyncChannels = true
	})
}

// SetLastMessage advances the cached tail pointer.
func (s *ChannelStore) SetLastMessage(channelID, messageID string, createdAt time.Time) error {
	return s.patchChannel(channelID, func(ch *models.Channel) {
		ch.LastMessageID = messageID
		if createdAt.After(ch.LastMessageCreatedAt) {
			ch.LastMessageCreatedAt = createdAt
		}
	})
}

// RecomputeLastMessage rescans the id list from the tail so the cached
// pointer stays consistent after a removal.
func (s *ChannelStore) RecomputeLastMessage(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	ch.LastMessageID = ""
	ch.LastMessageCreatedAt = time.Time{}
	for i := len(ch.MessageIDs) - 1; i >= 0; i-- {
		if msg, ok := s.messages[ch.MessageIDs[i]]; ok {
			ch.LastMessageID = msg.Key()
			ch.LastMessageCreatedAt = msg.CreatedAt
			break
		}
	}
	next := cloneChannelsMap(s.channels)
	next[channelID] = ch
	if err := s.persistSnapshotLocked(next, s.messages); err != nil {
		return err
	}
	s.channels = next
	return nil
}

func (s *ChannelStore) ApplyUnreadDelta(channelID string, delta int) error {
	return s.patchChannel(channelID, func(ch *models.Channel) {
		ch.UnreadCount += delta
		if ch.UnreadCount < 0 {
			ch.UnreadCount = 0
		}
	})
}

func (s *ChannelStore) MarkRead(channelID string) error {
	return s.patchChannel(channelID, func(ch *models.Channel) {
		ch.UnreadCount = 0
	})
}

// MarkSyncRequired asks the real-time layer to (re)attach its
// subscription; forced after every fetch.
func (s *ChannelStore) MarkSyncRequired(channelID string) error {
	return s.patchChannel(channelID, func(ch *models.Channel) {
		ch.ShouldSyncChannels = true
	})
}

func (s *ChannelStore) ClearSyncFlag(channelID string) error {
	return s.patchChannel(channelID, func(ch *models.Channel) {
		ch.ShouldSyncChannels = false
	})
}

func (s *ChannelStore) Channel(channelID string) (models.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return models.Channel{}, false
	}
	ch.MessageIDs = append([]string(nil), ch.MessageIDs...)
	return ch, true
}

func (s *ChannelStore) Message(key string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[key]
	return msg, ok
}

func (s *ChannelStore) ContainsMessageID(channelID, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[channelID]
	return ok && indexOf(ch.MessageIDs, id) >= 0
}

func (s *ChannelStore) ChannelCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels)
}

func (s *ChannelStore) patchChannel(channelID string, patch func(*models.Channel)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	patch(&ch)
	next := cloneChannelsMap(s.channels)
	next[channelID] = ch
	if err := s.persistSnapshotLocked(next, s.messages); err != nil {
		return err
	}
	s.channels = next
	return nil
}

func (s *ChannelStore) commitMessageIDsLocked(channelID string, ch models.Channel, ids []string) error {
	next := cloneChannelsMap(s.channels)
	ch.MessageIDs = ids
	next[channelID] = ch
	if err := s.persistSnapshotLocked(next, s.messages); err != nil {
		return err
	}
	s.channels = next
	return nil
}

type persistedState struct {
	Version  int                       `json:"version"`
	Channels map[string]models.Channel `json:"channels"`
	Messages map[string]models.Message `json:"messages"`
}

func (s *ChannelStore) load() error {
	if !securestore.IsStorageConfigured(s.path, s.secret) {
		return nil
	}
	plaintext, err := securestore.ReadDecryptedFile(s.path, s.secret)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	var state persistedState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return err
	}
	if state.Version != 1 {
		return errors.New("channel store persistence payload is invalid")
	}
	if state.Channels != nil {
		s.channels = state.Channels
	}
	if state.Messages != nil {
		s.messages = state.Messages
	}
	return nil
}

func (s *ChannelStore) persistSnapshotLocked(channels map[string]models.Channel, messages map[string]models.Message) error {
	if !securestore.IsStorageConfigured(s.path, s.secret) {
		return nil
	}
	return securestore.WriteEncryptedJSON(s.path, s.secret, persistedState{
		Version:  1,
		Channels: channels,
		Messages: messages,
	})
}

func cloneChannelsMap(in map[string]models.Channel) map[string]models.Channel {
	out := make(map[string]models.Channel, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneMessagesMap(in map[string]models.Message) map[string]models.Message {
	out := make(map[string]models.Message, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func dedupeAgainst(existing, candidates []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(candidates))
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	fresh := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, id)
	}
	return fresh
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
