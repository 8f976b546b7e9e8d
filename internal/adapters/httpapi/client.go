package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lumen-chat/go-client/internal/domains/contracts"
	"lumen-chat/go-client/pkg/models"
)

const defaultRequestTimeout = 30 * time.Second

// Client implements the chat backend boundary over HTTP JSON with
// bearer-token auth. Transport failures come back categorized as
// network errors, rejected requests as api errors, so the pipelines
// upstream can tell a retryable failure from a refusal.
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	httpClient *http.Client
}

type Options struct {
	BaseURL  string
	Token    string
	PageSize int
	Timeout  time.Duration
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRequestTimeout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		pageSize:   opts.PageSize,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

func (c *Client) FetchMessages(ctx context.Context, channelID string, before *time.Time) (models.MessagePage, error) {
	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", c.pageSize))
	if before != nil {
		query.Set("before", before.UTC().Format(time.RFC3339Nano))
	}
	var page models.MessagePage
	err := c.doJSON(ctx, http.MethodGet, "/api/channels/"+url.PathEscape(channelID)+"/messages?"+query.Encode(), nil, &page)
	return page, err
}

func (c *Client) FetchNewMessages(ctx context.Context, channelID string, after time.Time) (models.MessagePage, error) {
	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", c.pageSize))
	if !after.IsZero() {
		query.Set("after", after.UTC().Format(time.RFC3339Nano))
	}
	var page models.MessagePage
	err := c.doJSON(ctx, http.MethodGet, "/api/channels/"+url.PathEscape(channelID)+"/messages?"+query.Encode(), nil, &page)
	return page, err
}

func (c *Client) SendMessage(ctx context.Context, req contracts.SendMessageRequest) (models.Message, error) {
	body := map[string]any{
		"text":          req.Text,
		"optimistic_id": req.OptimisticID,
	}
	if len(req.MentionedUserIDs) > 0 {
		body["mentioned_user_ids"] = req.MentionedUserIDs
	}
	if req.ParentMessageID != "" {
		body["parent_message_id"] = req.ParentMessageID
	}
	var msg models.Message
	err := c.doJSON(ctx, http.MethodPost, "/api/channels/"+url.PathEscape(req.ChannelID)+"/messages", body, &msg)
	return msg, err
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID, text string, mentionedUserIDs []string) (models.Message, error) {
	body := map[string]any{"text": text}
	if len(mentionedUserIDs) > 0 {
		body["mentioned_user_ids"] = mentionedUserIDs
	}
	var msg models.Message
	err := c.doJSON(ctx, http.MethodPatch, "/api/channels/"+url.PathEscape(channelID)+"/messages/"+url.PathEscape(messageID), body, &msg)
	return msg, err
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/channels/"+url.PathEscape(channelID)+"/messages/"+url.PathEscape(messageID), nil, nil)
}

func (c *Client) UploadMedia(ctx context.Context, req contracts.UploadMediaRequest) (models.Message, error) {
	fields := map[string]string{
		"optimistic_id":   req.OptimisticID,
		"root_message_id": req.RootMessageID,
		"width":           fmt.Sprintf("%d", req.Width),
		"height":          fmt.Sprintf("%d", req.Height),
	}
	var msg models.Message
	err := c.doMultipart(ctx, "/api/channels/"+url.PathEscape(req.ChannelID)+"/media", req.File, fields, &msg)
	return msg, err
}

func (c *Client) UploadAttachment(ctx context.Context, file contracts.FileUpload) (models.FileDescriptor, error) {
	var descriptor models.FileDescriptor
	err := c.doMultipart(ctx, "/api/files", file, nil, &descriptor)
	return descriptor, err
}

func (c *Client) SendFileMessage(ctx context.Context, req contracts.SendFileMessageRequest) (models.Message, error) {
	body := map[string]any{
		"file_id":       req.File.ID,
		"optimistic_id": req.OptimisticID,
	}
	if req.RootMessageID != "" {
		body["root_message_id"] = req.RootMessageID
	}
	var msg models.Message
	err := c.doJSON(ctx, http.MethodPost, "/api/channels/"+url.PathEscape(req.ChannelID)+"/file-messages", body, &msg)
	return msg, err
}

func (c *Client) SendExternalMessage(ctx context.Context, req contracts.SendExternalMessageRequest) (models.Message, error) {
	body := map[string]any{
		"url":           req.URL,
		"mime_type":     req.MimeType,
		"name":          req.Name,
		"optimistic_id": req.OptimisticID,
	}
	if req.RootMessageID != "" {
		body["root_message_id"] = req.RootMessageID
	}
	var msg models.Message
	err := c.doJSON(ctx, http.MethodPost, "/api/channels/"+url.PathEscape(req.ChannelID)+"/external-messages", body, &msg)
	return msg, err
}

func (c *Client) ResolveLinkPreview(ctx context.Context, rawURL string) (models.LinkPreview, error) {
	query := url.Values{}
	query.Set("url", rawURL)
	var preview models.LinkPreview
	err := c.doJSON(ctx, http.MethodGet, "/api/link-preview?"+query.Encode(), nil, &preview)
	return preview, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) doMultipart(ctx context.Context, path string, file contracts.FileUpload, fields map[string]string, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, err)
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, err)
		}
	}
	if file.MimeType != "" {
		if err := writer.WriteField("mime_type", file.MimeType); err != nil {
			return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, err)
		}
	}
	if err := writer.Close(); err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, decodeAPIError(resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Error != "" {
			return fmt.Errorf("api: %s (%d)", payload.Error, resp.StatusCode)
		}
		if payload.Message != "" {
			return fmt.Errorf("api: %s (%d)", payload.Message, resp.StatusCode)
		}
	}
	return fmt.Errorf("api: unexpected status %d", resp.StatusCode)
}
