package rpc

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"lumen-chat/go-client/internal/domains/contracts"
	"lumen-chat/go-client/pkg/models"
)

func decodeSingleStringParam(raw json.RawMessage) (string, error) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 1 && arr[0] != "" {
		return arr[0], nil
	}
	return "", errInvalidParams
}

func decodeTwoStringParams(raw json.RawMessage) (string, string, error) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 2 && arr[0] != "" && arr[1] != "" {
		return arr[0], arr[1], nil
	}
	return "", "", errInvalidParams
}

type messageSendParams struct {
	ChannelID        string   `json:"channel_id"`
	Text             string   `json:"text"`
	MentionedUserIDs []string `json:"mentioned_user_ids,omitempty"`
	ParentMessageID  string   `json:"parent_message_id,omitempty"`
}

func decodeMessageSendParams(raw json.RawMessage) (messageSendParams, error) {
	var p messageSendParams
	if err := json.Unmarshal(raw, &p); err != nil || strings.TrimSpace(p.ChannelID) == "" {
		return messageSendParams{}, errInvalidParams
	}
	return p, nil
}

type messageEditParams struct {
	ChannelID        string   `json:"channel_id"`
	MessageID        string   `json:"message_id"`
	Text             string   `json:"text"`
	MentionedUserIDs []string `json:"mentioned_user_ids,omitempty"`
}

func decodeMessageEditParams(raw json.RawMessage) (messageEditParams, error) {
	var p messageEditParams
	if err := json.Unmarshal(raw, &p); err != nil || strings.TrimSpace(p.ChannelID) == "" || strings.TrimSpace(p.MessageID) == "" {
		return messageEditParams{}, errInvalidParams
	}
	return p, nil
}

type channelFetchParams struct {
	ChannelID string `json:"channel_id"`
	Before    string `json:"before,omitempty"`
}

func decodeChannelFetchParams(raw json.RawMessage) (string, *time.Time, error) {
	var p channelFetchParams
	if err := json.Unmarshal(raw, &p); err != nil || strings.TrimSpace(p.ChannelID) == "" {
		return "", nil, errInvalidParams
	}
	if strings.TrimSpace(p.Before) == "" {
		return p.ChannelID, nil, nil
	}
	before, err := time.Parse(time.RFC3339Nano, p.Before)
	if err != nil {
		return "", nil, errInvalidParams
	}
	return p.ChannelID, &before, nil
}

type activeChannelParams struct {
	ChannelID string `json:"channel_id"`
	Focused   bool   `json:"focused"`
}

func decodeActiveChannelParams(raw json.RawMessage) (activeChannelParams, error) {
	var p activeChannelParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return activeChannelParams{}, errInvalidParams
	}
	return p, nil
}

type uploadBatchItemParam struct {
	Name             string `json:"name,omitempty"`
	MimeType         string `json:"mime_type,omitempty"`
	DataBase64       string `json:"data_base64,omitempty"`
	ExternalURL      string `json:"external_url,omitempty"`
	ExternalMimeType string `json:"external_mime_type,omitempty"`
	ExternalName     string `json:"external_name,omitempty"`
}

type uploadBatchParams struct {
	ChannelID       string                 `json:"channel_id"`
	ParentMessageID string                 `json:"parent_message_id,omitempty"`
	Items           []uploadBatchItemParam `json:"items"`
}

func decodeUploadBatchParams(raw json.RawMessage) (string, string, []contracts.UploadBatchItem, error) {
	var p uploadBatchParams
	if err := json.Unmarshal(raw, &p); err != nil || strings.TrimSpace(p.ChannelID) == "" || len(p.Items) == 0 {
		return "", "", nil, errInvalidParams
	}
	items := make([]contracts.UploadBatchItem, 0, len(p.Items))
	for _, item := range p.Items {
		if strings.TrimSpace(item.ExternalURL) != "" {
			items = append(items, contracts.UploadBatchItem{
				ExternalURL:      item.ExternalURL,
				ExternalMimeType: item.ExternalMimeType,
				ExternalName:     item.ExternalName,
			})
			continue
		}
		data, err := base64.StdEncoding.DecodeString(item.DataBase64)
		if err != nil {
			return "", "", nil, errInvalidParams
		}
		items = append(items, contracts.UploadBatchItem{
			File: &contracts.FileUpload{Name: item.Name, MimeType: item.MimeType, Data: data},
		})
	}
	return p.ChannelID, p.ParentMessageID, items, nil
}

type pushMessageParams struct {
	ChannelID string         `json:"channel_id"`
	Message   models.Message `json:"message"`
}

func decodePushMessageParams(raw json.RawMessage) (pushMessageParams, error) {
	var p pushMessageParams
	if err := json.Unmarshal(raw, &p); err != nil || strings.TrimSpace(p.ChannelID) == "" {
		return pushMessageParams{}, errInvalidParams
	}
	return p, nil
}

type pushEditParams struct {
	ChannelID string                 `json:"channel_id"`
	MessageID string                 `json:"message_id"`
	Patch     contracts.MessagePatch `json:"patch"`
}

func decodePushEditParams(raw json.RawMessage) (pushEditParams, error) {
	var p pushEditParams
	if err := json.Unmarshal(raw, &p); err != nil || strings.TrimSpace(p.ChannelID) == "" || strings.TrimSpace(p.MessageID) == "" {
		return pushEditParams{}, errInvalidParams
	}
	return p, nil
}

type notificationsPollParams struct {
	FromSeq int64 `json:"from_seq"`
}

func decodeNotificationsPollParams(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var p notificationsPollParams
	if err := json.Unmarshal(raw, &p); err != nil || p.FromSeq < 0 {
		return 0, errInvalidParams
	}
	return p.FromSeq, nil
}
