package store

import "lumen-chat/go-client/pkg/models"

// Denormalize expands a channel's id list into ordered message objects.
// It is a pure read: ids without a stored entity are skipped, and the
// returned value shares no state with the store.
func (s *ChannelStore) Denormalize(channelID string) (models.DenormalizedChannel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return models.DenormalizedChannel{}, false
	}
	out := models.DenormalizedChannel{Channel: ch}
	out.MessageIDs = append([]string(nil), ch.MessageIDs...)
	out.Messages = make([]models.Message, 0, len(ch.MessageIDs))
	for _, id := range ch.MessageIDs {
		if msg, ok := s.messages[id]; ok {
			out.Messages = append(out.Messages, msg)
		}
	}
	return out, true
}
