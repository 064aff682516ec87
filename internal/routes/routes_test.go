package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"yorae/internal/config"
	"yorae/internal/dto"
	"yorae/internal/logger"
	"yorae/internal/model"
	"yorae/internal/repository/sqlite"
	"yorae/internal/service/camera"
	"yorae/internal/service/chat"
	"yorae/internal/service/photo"
	"yorae/internal/service/session"
	"yorae/internal/service/websocket"

	ws "github.com/gorilla/websocket"
	"gocv.io/x/gocv"
)

// ========================================
// Test Setup Helpers
// ========================================

type fakeChatClient struct{}

func (fakeChatClient) SendChatTurn(ctx context.Context, history []model.ChatMessage) (string, error) {
	return "베이킹소다를 뿌려보세요. 요래됐슴당!", nil
}

type testServer struct {
	handler http.Handler
	machine *session.Machine
	source  *camera.Source
	static  string
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	l := logger.NewWithWriter(io.Discard)
	cfg := &config.Config{
		StaticDirectory: t.TempDir(),
		DefaultCamera:   "phone",
	}

	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	normalizer := photo.NewNormalizer(1280, 80, l)
	compositor := photo.NewCompositor(photo.CompositorOptions{Target: 1080, Quality: 90, Locale: "ko", Rounded: true}, l)
	machine := session.NewMachine(sqlite.NewSessionRepository(db), normalizer, compositor, l, session.Options{})
	machine.Restore()

	hub := websocket.NewHubService(l)
	machine.OnChange(func(s session.Snapshot) { hub.Publish(websocket.TypeSession, s) })
	source := camera.NewSource(cfg.DefaultCamera, 0, hub, l)
	conversation := chat.NewConversation(fakeChatClient{}, time.Second, l)

	return &testServer{
		handler: SetupRoutes(cfg, l, machine, source, conversation, hub),
		machine: machine,
		source:  source,
		static:  cfg.StaticDirectory,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) session.Snapshot {
	t.Helper()

	var snap session.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Invalid snapshot %q: %v", rec.Body.String(), err)
	}
	return snap
}

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 160, 30, 0), height, width, gocv.MatTypeCV8UC3)
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out
}

// ========================================
// Session Endpoint Tests
// ========================================

func TestSessionFlow(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodGet, "/api/session", nil)
	if rec.Code != http.StatusOK || decodeSnapshot(t, rec).Stage != model.StageHome {
		t.Fatalf("Expected HOME, got %d %s", rec.Code, rec.Body.String())
	}

	if rec := s.do(t, http.MethodPost, "/api/session/finish", nil); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for finish from HOME, got %d", rec.Code)
	}

	if rec := s.do(t, http.MethodPost, "/api/session/start", nil); decodeSnapshot(t, rec).Stage != model.StageBeforeCapture {
		t.Fatalf("Expected BEFORE_CAPTURE, got %s", rec.Body.String())
	}

	if rec := s.do(t, http.MethodPost, "/api/session/capture", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a camera frame, got %d", rec.Code)
	}

	s.source.Push("phone", testJPEG(t, 640, 480))
	rec = s.do(t, http.MethodPost, "/api/session/capture", nil)
	if rec.Code != http.StatusOK || decodeSnapshot(t, rec).Stage != model.StageCleaning {
		t.Fatalf("Expected CLEANING, got %d %s", rec.Code, rec.Body.String())
	}

	if rec := s.do(t, http.MethodPost, "/api/session/finish", nil); decodeSnapshot(t, rec).Stage != model.StageAfterCapture {
		t.Fatalf("Expected AFTER_CAPTURE, got %s", rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/api/session/capture", testJPEG(t, 640, 480))
	snap := decodeSnapshot(t, rec)
	if rec.Code != http.StatusOK || snap.Stage != model.StageResult || !snap.HasMerged {
		t.Fatalf("Expected RESULT with merged image, got %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/session/image/merged", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected merged image, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "yorae_result.jpg") {
		t.Errorf("Expected attachment header, got %q", rec.Header().Get("Content-Disposition"))
	}
	size, err := photo.Dimensions(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("Merged image is not decodable: %v", err)
	}
	if size.X != 1080 {
		t.Errorf("Expected stacked layout width 1080, got %d", size.X)
	}

	if rec := s.do(t, http.MethodPost, "/api/session/reset", nil); decodeSnapshot(t, rec).Stage != model.StageHome {
		t.Fatalf("Expected HOME after reset, got %s", rec.Body.String())
	}
	if rec := s.do(t, http.MethodGet, "/api/session/image/merged", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after reset, got %d", rec.Code)
	}
}

func TestCaptureRejectsUndecodableAfterPhoto(t *testing.T) {
	s := setupServer(t)

	s.do(t, http.MethodPost, "/api/session/start", nil)
	s.do(t, http.MethodPost, "/api/session/capture", testJPEG(t, 320, 240))
	s.do(t, http.MethodPost, "/api/session/finish", nil)

	rec := s.do(t, http.MethodPost, "/api/session/capture", []byte("definitely not a jpeg"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d %s", rec.Code, rec.Body.String())
	}
	if s.machine.Stage() != model.StageAfterCapture {
		t.Errorf("Expected AFTER_CAPTURE, got %s", s.machine.Stage())
	}
}

func TestCancelEndpoints(t *testing.T) {
	s := setupServer(t)

	s.do(t, http.MethodPost, "/api/session/start", nil)
	s.do(t, http.MethodPost, "/api/session/capture", testJPEG(t, 320, 240))

	if rec := s.do(t, http.MethodPost, "/api/session/cancel", nil); !decodeSnapshot(t, rec).CancelPending {
		t.Fatalf("Expected pending cancel, got %s", rec.Body.String())
	}
	if rec := s.do(t, http.MethodPost, "/api/session/cancel/dismiss", nil); decodeSnapshot(t, rec).CancelPending {
		t.Fatalf("Expected cancel dismissed, got %s", rec.Body.String())
	}
	if rec := s.do(t, http.MethodPost, "/api/session/cancel/confirm", nil); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for confirm without request, got %d", rec.Code)
	}

	s.do(t, http.MethodPost, "/api/session/cancel", nil)
	if rec := s.do(t, http.MethodPost, "/api/session/cancel/confirm", nil); decodeSnapshot(t, rec).Stage != model.StageHome {
		t.Errorf("Expected HOME after confirm, got %s", rec.Body.String())
	}
}

func TestReplaceBeforeRequiresBody(t *testing.T) {
	s := setupServer(t)

	s.do(t, http.MethodPost, "/api/session/start", nil)
	s.do(t, http.MethodPost, "/api/session/capture", testJPEG(t, 320, 240))

	if rec := s.do(t, http.MethodPost, "/api/session/before", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without body, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/session/before", testJPEG(t, 240, 320)); rec.Code != http.StatusOK {
		t.Errorf("Expected before photo replaced, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownImageKind(t *testing.T) {
	s := setupServer(t)

	if rec := s.do(t, http.MethodGet, "/api/session/image/thumbnail", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestCameraWebsocketIngress(t *testing.T) {
	s := setupServer(t)
	server := httptest.NewServer(s.handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/camera?id=phone"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial camera endpoint: %v", err)
	}
	defer conn.Close()

	frame := testJPEG(t, 320, 240)
	if err := conn.WriteMessage(ws.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("Failed to send text message: %v", err)
	}
	if err := conn.WriteMessage(ws.BinaryMessage, frame); err != nil {
		t.Fatalf("Failed to send frame: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if f, ok := s.source.Latest("phone"); ok {
			if !bytes.Equal(f.Data, frame) {
				t.Error("Stored frame differs from the sent one")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for camera frame")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// ========================================
// Chat Endpoint Tests
// ========================================

func TestChatEndpoints(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/chat/enter", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected chat entered, got %d", rec.Code)
	}
	if s.machine.Stage() != model.StageChat {
		t.Errorf("Expected CHAT, got %s", s.machine.Stage())
	}

	rec = s.do(t, http.MethodPost, "/api/chat/messages", []byte(`{"text":"곰팡이 제거 방법?"}`))
	var data dto.ChatData
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("Invalid chat response %q: %v", rec.Body.String(), err)
	}
	if len(data.Messages) != 3 || data.Messages[0].Text != chat.Greeting {
		t.Errorf("Unexpected transcript %+v", data.Messages)
	}

	if rec := s.do(t, http.MethodPost, "/api/chat/messages", []byte(`{"text":"   "}`)); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for blank message, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/chat/messages", []byte(`not json`)); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", rec.Code)
	}

	s.do(t, http.MethodPost, "/api/session/back", nil)
	s.do(t, http.MethodPost, "/api/chat/enter", nil)
	rec = s.do(t, http.MethodGet, "/api/chat/messages", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("Invalid chat response: %v", err)
	}
	if len(data.Messages) != 1 {
		t.Errorf("Expected a fresh conversation, got %d messages", len(data.Messages))
	}
}

func TestChatRequiresChatMode(t *testing.T) {
	s := setupServer(t)
	body := []byte(`{"text":"곰팡이 제거 방법?"}`)

	rec := s.do(t, http.MethodPost, "/api/chat/messages", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409 from HOME, got %d", rec.Code)
	}
	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid error response %q: %v", rec.Body.String(), err)
	}
	if resp.Stage != string(model.StageHome) {
		t.Errorf("Expected stage HOME in error, got %q", resp.Stage)
	}

	if rec := s.do(t, http.MethodPost, "/api/session/start", nil); rec.Code != http.StatusOK {
		t.Fatalf("Expected session started, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/chat/messages", body); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 from BEFORE_CAPTURE, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/chat/messages", nil)
	var data dto.ChatData
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("Invalid chat response: %v", err)
	}
	if len(data.Messages) != 1 {
		t.Errorf("Expected no turns outside chat mode, got %d messages", len(data.Messages))
	}
}

// ========================================
// Static and Log Endpoint Tests
// ========================================

func TestStaticFallback(t *testing.T) {
	s := setupServer(t)

	if err := os.WriteFile(filepath.Join(s.static, "index.html"), []byte("<html>yorae</html>"), 0644); err != nil {
		t.Fatalf("Failed to write index: %v", err)
	}

	rec := s.do(t, http.MethodGet, "/result", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "yorae") {
		t.Errorf("Expected index fallback, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestLogEndpoints(t *testing.T) {
	s := setupServer(t)

	if rec := s.do(t, http.MethodGet, "/logs/verbose", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown level, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/logs/info", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for writer-backed logger, got %d", rec.Code)
	}
}
