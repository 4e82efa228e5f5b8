package controlapi

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/polycast/relay/biz/service"
	"github.com/polycast/relay/internal/auth"
	"github.com/polycast/relay/internal/configs"
	custerror "github.com/polycast/relay/internal/error"
	custws "github.com/polycast/relay/internal/ws"
	"github.com/polycast/relay/models/rest"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestSessions(out *syncBuffer) *service.SessionService {
	return service.NewSessionService(
		service.WithRegistry(service.NewSessionRegistry()),
		service.WithCommandCompiler(func(destination rest.Destination) *exec.Cmd {
			cmd := exec.Command("cat")
			if out != nil {
				cmd.Stdout = out
			}
			return cmd
		}),
		service.WithRelayConfigs(&configs.RelayConfigs{
			ChunkQueueSize: 16,
			LiveAfterMs:    20,
			StopGraceMs:    500,
		}))
}

func dialControl(t *testing.T, sessions *service.SessionService) *websocket.Conn {
	t.Helper()
	verifier := auth.VerifierFunc(func(ctx context.Context, token string) (string, error) {
		if token == "valid-token" {
			return "alice", nil
		}
		return "", custerror.FormatUnauthenticated("token rejected")
	})
	server := custws.NewWebSocketServer(
		custws.WithGlobalConfigs(&configs.HttpConfigs{Name: "control-test"}),
		custws.WithPoolSize(4),
		custws.WithHandlerFactory(func(conn *custws.Connection) custws.ConnectionHandler {
			return NewControlSession(conn, verifier, sessions)
		}))

	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %s", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendText(t *testing.T, conn *websocket.Conn, msg map[string]interface{}) {
	t.Helper()
	encoded, err := sonic.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %s", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, encoded); err != nil {
		t.Fatalf("write failed: %s", err)
	}
}

func readReply(t *testing.T, conn *websocket.Conn) map[string]string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second * 2))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %s", err)
	}
	reply := map[string]string{}
	if err := sonic.Unmarshal(payload, &reply); err != nil {
		t.Fatalf("unmarshal failed: %s", err)
	}
	return reply
}

func authenticate(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	sendText(t, conn, map[string]interface{}{"type": "authenticate", "token": "valid-token"})
	reply := readReply(t, conn)
	if reply["type"] != "authenticated" || reply["userId"] != "alice" {
		t.Fatalf("unexpected authenticate reply: %v", reply)
	}
}

func Test_ControlSession_RequiresAuthentication(t *testing.T) {
	conn := dialControl(t, newTestSessions(nil))

	for _, msgType := range []string{"stream_start", "stream_stop", "ping"} {
		sendText(t, conn, map[string]interface{}{"type": msgType})
		reply := readReply(t, conn)
		if reply["type"] != "error" || reply["message"] != "authentication required" {
			t.Fatalf("%s before auth: unexpected reply %v", msgType, reply)
		}
	}
}

func Test_ControlSession_UnknownMessageType(t *testing.T) {
	conn := dialControl(t, newTestSessions(nil))

	sendText(t, conn, map[string]interface{}{"type": "bogus"})
	reply := readReply(t, conn)
	if reply["type"] != "error" || reply["message"] != "Unknown message type: bogus" {
		t.Fatalf("unexpected reply: %v", reply)
	}
}

func Test_ControlSession_BadTokenKeepsConnectionOpen(t *testing.T) {
	conn := dialControl(t, newTestSessions(nil))

	sendText(t, conn, map[string]interface{}{"type": "authenticate", "token": "wrong"})
	reply := readReply(t, conn)
	if reply["type"] != "error" || reply["message"] != "authentication failed" {
		t.Fatalf("unexpected reply: %v", reply)
	}

	// the peer may retry on the same connection
	authenticate(t, conn)

	sendText(t, conn, map[string]interface{}{"type": "ping"})
	if reply := readReply(t, conn); reply["type"] != "pong" {
		t.Fatalf("expected pong, got %v", reply)
	}
}

func Test_ControlSession_BinaryRouting(t *testing.T) {
	out := &syncBuffer{}
	sessions := newTestSessions(out)
	conn := dialControl(t, sessions)

	// frames before authentication are dropped without an answer
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("early")); err != nil {
		t.Fatalf("write failed: %s", err)
	}

	authenticate(t, conn)

	// authenticated but no session yet, still dropped
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("early")); err != nil {
		t.Fatalf("write failed: %s", err)
	}
	sendText(t, conn, map[string]interface{}{"type": "ping"})
	if reply := readReply(t, conn); reply["type"] != "pong" {
		t.Fatalf("expected pong, got %v", reply)
	}

	if _, err := sessions.StartSession(context.Background(), "alice", &rest.StartSessionRequest{
		Destinations: []rest.Destination{{
			Platform:  "rtmp",
			Name:      "main",
			StreamUrl: "rtmp://a.example/live",
			StreamKey: "key",
		}},
	}); err != nil {
		t.Fatalf("start failed: %s", err)
	}

	for _, chunk := range []string{"one ", "two"} {
		if err := conn.WriteMessage(websocket.BinaryMessage, []byte(chunk)); err != nil {
			t.Fatalf("write failed: %s", err)
		}
	}

	sendText(t, conn, map[string]interface{}{"type": "stream_stop"})
	reply := readReply(t, conn)
	if reply["type"] != "stream_stopped" || reply["status"] != "success" {
		t.Fatalf("unexpected stop reply: %v", reply)
	}

	deadline := time.Now().Add(time.Second * 2)
	for out.String() != "one two" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond * 10)
	}
	if out.String() != "one two" {
		t.Fatalf("frames lost or reordered: %q", out.String())
	}
	if _, found := sessions.Registry().Lookup("alice"); found {
		t.Fatal("session still registered after stream_stop")
	}
}

func Test_ControlSession_DisconnectStopsSession(t *testing.T) {
	sessions := newTestSessions(nil)
	conn := dialControl(t, sessions)
	authenticate(t, conn)

	if _, err := sessions.StartSession(context.Background(), "alice", &rest.StartSessionRequest{
		Destinations: []rest.Destination{{
			Platform:  "rtmp",
			Name:      "main",
			StreamUrl: "rtmp://a.example/live",
			StreamKey: "key",
		}},
	}); err != nil {
		t.Fatalf("start failed: %s", err)
	}

	conn.Close()

	deadline := time.Now().Add(time.Second * 2)
	for time.Now().Before(deadline) {
		if _, found := sessions.Registry().Lookup("alice"); !found {
			return
		}
		time.Sleep(time.Millisecond * 10)
	}
	t.Fatal("disconnect did not tear the session down")
}
