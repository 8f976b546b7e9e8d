package rpc

import (
	"encoding/json"
	"net/http"
)

func (s *Server) dispatchMessageRPC(r *http.Request, method string, rawParams json.RawMessage) (any, *rpcError, bool) {
	switch method {
	case "message.send":
		p, err := decodeMessageSendParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams(), true
		}
		msg, sendErr := s.service.Send(r.Context(), p.ChannelID, p.Text, p.MentionedUserIDs, p.ParentMessageID)
		if sendErr != nil {
			return nil, rpcServiceError(-32210, sendErr), true
		}
		return msg, nil, true
	case "message.edit":
		p, err := decodeMessageEditParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams(), true
		}
		msg, editErr := s.service.EditMessage(r.Context(), p.ChannelID, p.MessageID, p.Text, p.MentionedUserIDs)
		if editErr != nil {
			return nil, rpcServiceError(-32215, editErr), true
		}
		return msg, nil, true
	case "message.delete":
		channelID, messageID, err := decodeTwoStringParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams(), true
		}
		if deleteErr := s.service.DeleteMessage(r.Context(), channelID, messageID); deleteErr != nil {
			return nil, rpcServiceError(-32220, deleteErr), true
		}
		return map[string]bool{"deleted": true}, nil, true
	default:
		return nil, nil, false
	}
}

func (s *Server) dispatchChannelRPC(r *http.Request, method string, rawParams json.RawMessage) (any, *rpcError, bool) {
	switch method {
	case "channel.fetch":
		channelID, before, err := decodeChannelFetchParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams(), true
		}
		if fetchErr := s.service.Fetch(r.Context(), channelID, before); fetchErr != nil {
			return nil, rpcServiceError(-32230, fetchErr), true
		}
		out, _ := s.service.Denormalize(channelID)
		return out, nil, true
	case "channel.fetchNew":
		channelID, err := decodeSingleStringParam(rawParams)
		if err != nil {
			return nil, rpcInvalidParams(), true
		}
		count, fetchErr := s.service.FetchNew(r.Context(), channelID)
		if fetchErr != nil {
			return nil, rpcServiceError(-32235, fetchErr), true
		}
		return map[string]int{"new_messages": count}, nil, true
	case "channel.messages":
		channelID, err := decodeSingleStringParam(rawParams)
		if err != nil {
			return nil, rpcInvalidParams(), true
		}
		out, ok := s.service.Denormalize(channelID)
		if !ok {
			return nil, &rpcError{Code: -32240, Message: "channel not found"}, true
		}
		return out, nil, true
	case "channel.setActive":
		p, err := decodeActiveChannelParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams(), true
		}
		s.service.SetActiveChannel(p.ChannelID, p.Focused)
		return map[string]bool{"ok": true}, nil, true
	default:
		return nil, nil, false
	}
}

func (s *Server) dispatchUploadRPC(r *http.Request, method string, rawParams json.RawMessage) (any, *rpcError, bool) {
	if method != "upload.batch" {
		return nil, nil, false
	}
	channelID, parentMessageID, items, err := decodeUploadBatchParams(rawParams)
	if err != nil {
		return nil, rpcInvalidParams(), true
	}
	results, batchErr := s.service.UploadBatch(r.Context(), channelID, parentMessageID, items)
	if batchErr != nil {
		return nil, rpcServiceError(-32250, batchErr), true
	}
	return results, nil, true
}

// Push entry points feed server-originated events into the reconciler.
// They never fail: duplicates and unknown ids are absorbed.
func (s *Server) dispatchPushRPC(method string, rawParams json.RawMessage) (any, *rpcError, bool) {
	switch method {
	case "push.message.new":
		p, err := decodePushMessageParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams(), true
		}
		s.service.ReceiveNewMessage(p.ChannelID, p.Message)
		return map[string]bool{"accepted": true}, nil, true
	case "push.message.edit":
		p, err := decodePushEditParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams(), true
		}
		s.service.ReceiveEdit(p.ChannelID, p.MessageID, p.Patch)
		return map[string]bool{"accepted": true}, nil, true
	case "push.message.delete":
		channelID, messageID, err := decodeTwoStringParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams(), true
		}
		s.service.ReceiveDelete(channelID, messageID)
		return map[string]bool{"accepted": true}, nil, true
	default:
		return nil, nil, false
	}
}

func (s *Server) dispatchDiagnosticsRPC(method string, rawParams json.RawMessage) (any, *rpcError, bool) {
	switch method {
	case "notifications.poll":
		fromSeq, err := decodeNotificationsPollParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams(), true
		}
		replay, _, cancel := s.service.SubscribeNotifications(fromSeq)
		cancel()
		return replay, nil, true
	case "metrics.snapshot":
		return s.service.MetricsSnapshot(), nil, true
	default:
		return nil, nil, false
	}
}
