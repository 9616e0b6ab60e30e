package viewserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/debugger/debuggertest"
	"github.com/dshills/dbgview/internal/editor"
	"github.com/dshills/dbgview/internal/loop"
	"github.com/dshills/dbgview/internal/notify"
	"github.com/dshills/dbgview/internal/panel"
)

type fixture struct {
	loop   *loop.Loop
	proxy  *debuggertest.Proxy
	panel  *panel.Panel
	server *Server
	http   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{loop: loop.New(), proxy: debuggertest.New()}
	p, err := panel.New(panel.Options{
		Loop:      f.loop,
		Workspace: editor.NewMemory(editor.MapFileSystem{"/p/a.go": "a\nb\nc\n"}),
		Notifier:  &notify.Recorder{},
	})
	if err != nil {
		t.Fatalf("panel.New: %v", err)
	}
	if err := p.Activate(debugger.StaticController(f.proxy)); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	f.panel = p
	f.server = New(Options{Loop: f.loop, Panel: p, PushInterval: 5 * time.Millisecond})
	f.server.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.loop.Run(ctx)
	}()
	f.http = httptest.NewServer(f.server.Handler())

	t.Cleanup(func() {
		f.http.Close()
		_ = f.server.Close()
		cancel()
		<-done
	})
	return f
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// onLoop runs fn on the loop and waits for it.
func (f *fixture) onLoop(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	if err := f.loop.Post(func() { fn(); close(done) }); err != nil {
		t.Fatalf("Post: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not run posted function")
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(Message) bool) Message {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if match(m) {
			return m
		}
	}
}

func isSnapshot(m Message) bool { return m.Type == MsgSnapshot }

func TestServer_InitialSnapshot(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	m := readUntil(t, conn, isSnapshot)
	if !m.Snapshot.Active || m.Snapshot.Layout != panel.DefaultLayout() {
		t.Errorf("initial snapshot = %+v", m.Snapshot)
	}
}

func TestServer_BroadcastsChanges(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readUntil(t, conn, isSnapshot)

	f.onLoop(t, func() {
		f.proxy.EmitTarget(debugger.TargetEvent{Type: debugger.TargetOutput, Message: "one\n"})
		f.proxy.EmitTarget(debugger.TargetEvent{Type: debugger.TargetOutput, Message: "two\n"})
	})

	m := readUntil(t, conn, func(m Message) bool {
		return isSnapshot(m) && len(m.Snapshot.Console) == 2
	})
	if m.Snapshot.Console[1] != "two" {
		t.Errorf("console = %q", m.Snapshot.Console)
	}
}

func TestServer_Commands(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readUntil(t, conn, isSnapshot)

	tests := []struct {
		cmd     string
		wantOK  bool
		wantErr string
	}{
		{`{"id":"1","name":"set-section","side":"right","section":"console"}`, true, ""},
		{`{"id":"2","name":"set-section","side":"left","section":"console"}`, false, "invalid section placement"},
		{`{"id":"3","name":"select-frame"}`, false, "missing argument"},
		{`{"id":"4","name":"rewind"}`, false, "unknown command"},
		{`{"id":"5","name":"expand","path":["nope"]}`, false, "no variable"},
		{`not json`, false, "invalid command"},
	}
	for _, tt := range tests {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.cmd)); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
		m := readUntil(t, conn, func(m Message) bool { return m.Type == MsgResult })
		if m.OK != tt.wantOK || !strings.Contains(m.Error, tt.wantErr) {
			t.Errorf("%s -> %+v", tt.cmd, m)
		}
	}

	var layout panel.Layout
	f.onLoop(t, func() { layout = f.panel.Layout() })
	if layout.Right != panel.SectionConsole || layout.Left != panel.SectionScope {
		t.Errorf("layout = %+v", layout)
	}
}

func TestServer_CloseDisconnectsClients(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readUntil(t, conn, isSnapshot)

	if err := f.server.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	if n := f.server.Clients(); n != 0 {
		t.Errorf("clients = %d after Close", n)
	}
}

func TestExecute_Validation(t *testing.T) {
	p, err := panel.New(panel.Options{Loop: loop.New(), Workspace: editor.NewMemory(editor.MapFileSystem{})})
	if err != nil {
		t.Fatal(err)
	}
	level := 0
	tests := []struct {
		cmd  Command
		want error
	}{
		{Command{Name: CmdSelectFrame}, ErrMissingArgument},
		{Command{Name: CmdSelectFrame, Level: &level}, panel.ErrNotActive},
		{Command{Name: CmdCollapse}, ErrMissingArgument},
		{Command{Name: CmdOpenBreakpoint}, ErrMissingArgument},
		{Command{Name: CmdSetSection, Side: "left"}, ErrMissingArgument},
		{Command{Name: "bogus"}, ErrUnknownCommand},
	}
	for _, tt := range tests {
		if err := Execute(p, tt.cmd); !errors.Is(err, tt.want) {
			t.Errorf("Execute(%+v) = %v, want %v", tt.cmd, err, tt.want)
		}
	}
}

func TestMessage_JSON(t *testing.T) {
	data, err := json.Marshal(Message{Type: MsgResult, ID: "7", Error: "boom"})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != `{"type":"result","id":"7","error":"boom"}` {
		t.Errorf("json = %s", got)
	}
}
