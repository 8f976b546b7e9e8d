package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lumen-chat/go-client/internal/domains/contracts"
	"lumen-chat/go-client/pkg/models"
)

type fakeSyncService struct {
	sendCalls  int
	lastSend   []string
	sendErr    error
	pushedNew  []string
	deleted    []string
	fetchCalls int
}

func (f *fakeSyncService) Send(ctx context.Context, channelID, text string, mentionedUserIDs []string, parentMessageID string) (models.Message, error) {
	f.sendCalls++
	f.lastSend = []string{channelID, text, parentMessageID}
	if f.sendErr != nil {
		return models.Message{}, f.sendErr
	}
	return models.Message{ID: "m1", ChannelID: channelID, Text: text, SendStatus: models.SendStatusSuccess}, nil
}

func (f *fakeSyncService) EditMessage(ctx context.Context, channelID, messageID, text string, mentionedUserIDs []string) (models.Message, error) {
	return models.Message{ID: messageID, ChannelID: channelID, Text: text, Edited: true}, nil
}

func (f *fakeSyncService) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSyncService) Fetch(ctx context.Context, channelID string, before *time.Time) error {
	f.fetchCalls++
	return nil
}

func (f *fakeSyncService) FetchNew(ctx context.Context, channelID string) (int, error) {
	return 2, nil
}

func (f *fakeSyncService) Denormalize(channelID string) (models.DenormalizedChannel, bool) {
	if channelID == "ghost" {
		return models.DenormalizedChannel{}, false
	}
	out := models.DenormalizedChannel{}
	out.ID = channelID
	out.Messages = []models.Message{{ID: "m1", ChannelID: channelID}}
	return out, true
}

func (f *fakeSyncService) UploadBatch(ctx context.Context, channelID, parentMessageID string, items []contracts.UploadBatchItem) ([]contracts.UploadResult, error) {
	results := make([]contracts.UploadResult, len(items))
	return results, nil
}

func (f *fakeSyncService) ReceiveNewMessage(channelID string, msg models.Message) {
	f.pushedNew = append(f.pushedNew, msg.ID)
}

func (f *fakeSyncService) ReceiveEdit(channelID, messageID string, patch contracts.MessagePatch) {}

func (f *fakeSyncService) ReceiveDelete(channelID, messageID string) {}

func (f *fakeSyncService) SetActiveChannel(channelID string, focused bool) {}

func (f *fakeSyncService) SubscribeNotifications(fromSeq int64) ([]contracts.NotificationEvent, <-chan contracts.NotificationEvent, func()) {
	replay := []contracts.NotificationEvent{{Seq: fromSeq + 1, Method: "notify.message.new"}}
	ch := make(chan contracts.NotificationEvent)
	return replay, ch, func() {}
}

func (f *fakeSyncService) MetricsSnapshot() models.MetricsSnapshot {
	return models.MetricsSnapshot{TrackedChannels: 3}
}

func newTestServer(t *testing.T) (*Server, *fakeSyncService) {
	t.Helper()
	svc := &fakeSyncService{}
	return newServerWithService(DefaultRPCAddr, svc, "test-token", true), svc
}

func doRPC(t *testing.T, s *Server, body string, headers map[string]string) (*httptest.ResponseRecorder, rpcResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Lumen-RPC-Token", "test-token")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.HandleRPC(rec, req)

	var resp rpcResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, resp
}

func TestRPCRejectsMissingToken(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.HandleRPC(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRPCAcceptsBearerToken(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"health_check"}`))
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	s.HandleRPC(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRPCMessageSendDispatch(t *testing.T) {
	s, svc := newTestServer(t)
	_, resp := doRPC(t, s, `{"jsonrpc":"2.0","id":1,"method":"message.send","params":{"channel_id":"C","text":"hi"}}`, nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if svc.sendCalls != 1 || svc.lastSend[0] != "C" || svc.lastSend[1] != "hi" {
		t.Fatalf("service not invoked correctly: %v", svc.lastSend)
	}
}

func TestRPCMessageSendValidationErrorCode(t *testing.T) {
	s, svc := newTestServer(t)
	svc.sendErr = contracts.WrapCategorizedError(contracts.ErrorCategoryValidation, errors.New("empty body"))
	_, resp := doRPC(t, s, `{"jsonrpc":"2.0","id":1,"method":"message.send","params":{"channel_id":"C","text":""}}`, nil)
	if resp.Error == nil || resp.Error.Code != -32211 {
		t.Fatalf("expected validation code -32211, got %+v", resp.Error)
	}
}

func TestRPCInvalidParams(t *testing.T) {
	s, _ := newTestServer(t)
	_, resp := doRPC(t, s, `{"jsonrpc":"2.0","id":1,"method":"message.send","params":{"text":"hi"}}`, nil)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected invalid params, got %+v", resp.Error)
	}
}

func TestRPCMethodNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	_, resp := doRPC(t, s, `{"jsonrpc":"2.0","id":1,"method":"message.explode","params":[]}`, nil)
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("expected method not found, got %+v", resp.Error)
	}
}

func TestRPCIdempotencyReplaysCachedResponse(t *testing.T) {
	s, svc := newTestServer(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"message.send","params":{"channel_id":"C","text":"hi"}}`
	headers := map[string]string{rpcIdempotencyHeader: "key-1"}

	doRPC(t, s, body, headers)
	doRPC(t, s, body, headers)

	if svc.sendCalls != 1 {
		t.Fatalf("idempotent replay hit the service %d times", svc.sendCalls)
	}
}

func TestRPCIdempotencyKeyConflict(t *testing.T) {
	s, _ := newTestServer(t)
	headers := map[string]string{rpcIdempotencyHeader: "key-1"}

	doRPC(t, s, `{"jsonrpc":"2.0","id":1,"method":"message.send","params":{"channel_id":"C","text":"one"}}`, headers)
	_, resp := doRPC(t, s, `{"jsonrpc":"2.0","id":2,"method":"message.send","params":{"channel_id":"C","text":"two"}}`, headers)

	if resp.Error == nil || resp.Error.Code != -32090 {
		t.Fatalf("expected idempotency conflict, got %+v", resp.Error)
	}
}

func TestRPCPushMessageNew(t *testing.T) {
	s, svc := newTestServer(t)
	_, resp := doRPC(t, s, `{"jsonrpc":"2.0","id":1,"method":"push.message.new","params":{"channel_id":"C","message":{"id":"m9","channel_id":"C"}}}`, nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if len(svc.pushedNew) != 1 || svc.pushedNew[0] != "m9" {
		t.Fatalf("push not forwarded: %v", svc.pushedNew)
	}
}

func TestRPCChannelMessagesUnknown(t *testing.T) {
	s, _ := newTestServer(t)
	_, resp := doRPC(t, s, `{"jsonrpc":"2.0","id":1,"method":"channel.messages","params":["ghost"]}`, nil)
	if resp.Error == nil || resp.Error.Code != -32240 {
		t.Fatalf("expected channel not found, got %+v", resp.Error)
	}
}

func TestRPCUnsupportedAPIVersion(t *testing.T) {
	s, _ := newTestServer(t)
	_, resp := doRPC(t, s, `{"jsonrpc":"2.0","id":1,"method":"health_check","api_version":99}`, nil)
	if resp.Error == nil || resp.Error.Code != -32080 {
		t.Fatalf("expected version rejection, got %+v", resp.Error)
	}
}

func TestRPCNotificationsPoll(t *testing.T) {
	s, _ := newTestServer(t)
	_, resp := doRPC(t, s, `{"jsonrpc":"2.0","id":1,"method":"notifications.poll","params":{"from_seq":5}}`, nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	events, ok := resp.Result.([]any)
	if !ok || len(events) != 1 {
		t.Fatalf("unexpected replay payload: %+v", resp.Result)
	}
}

func TestRPCStreamReplaysAndLimits(t *testing.T) {
	s, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/rpc/stream?cursor=0", nil).WithContext(ctx)
	req.Header.Set("X-Lumen-RPC-Token", "test-token")
	rec := httptest.NewRecorder()
	s.HandleRPCStream(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "notify.message.new") {
		t.Fatalf("replay event not streamed: %q", body)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/event-stream") {
		t.Fatalf("unexpected content type: %q", rec.Header().Get("Content-Type"))
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.HandleHealth(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}
