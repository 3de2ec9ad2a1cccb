package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func dialTest(t *testing.T, srv *Server) (*websocket.Conn, context.Context) {
	t.Helper()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	// Give the server a moment to register the connection.
	time.Sleep(50 * time.Millisecond)
	return conn, ctx
}

func TestServerAcceptsConnection(t *testing.T) {
	srv := New(0) // port 0 = pick any free port
	msgs := srv.Messages()

	conn, ctx := dialTest(t, srv)

	event := IncomingMsg{Type: TypeTabCreated}
	data, _ := json.Marshal(event)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case msg := <-msgs:
		if msg.Type != TypeTabCreated {
			t.Errorf("got type %q, want tabCreated", msg.Type)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestServerSendsCommand(t *testing.T) {
	srv := New(0)
	conn, ctx := dialTest(t, srv)

	cmd := OutgoingMsg{ID: "cmd-1", Action: ActionCloseTabs, TabIDs: []int{42}}
	srv.Send(cmd)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got OutgoingMsg
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != "cmd-1" || got.Action != ActionCloseTabs {
		t.Errorf("got %+v, want cmd-1/closeTabs", got)
	}
}

func TestSendWithoutConnectionIsNoop(t *testing.T) {
	srv := New(0)

	if err := srv.Send(OutgoingMsg{Action: ActionTabAnalyzed}); err != nil {
		t.Errorf("Send with no connection should be a no-op, got %v", err)
	}
}

func TestRequestWithoutConnectionFails(t *testing.T) {
	srv := New(0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := srv.Request(ctx, OutgoingMsg{Action: ActionListTabs}); err == nil {
		t.Error("expected error when no extension is connected")
	}
}

func TestRequestRoundTrip(t *testing.T) {
	srv := New(0)
	conn, ctx := dialTest(t, srv)

	// Echo peer: reply to listTabs with a tabList carrying the same id.
	go func() {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd OutgoingMsg
		if err := json.Unmarshal(data, &cmd); err != nil {
			return
		}
		reply, _ := json.Marshal(map[string]any{
			"type": TypeTabList,
			"id":   cmd.ID,
			"tabs": []map[string]any{{"id": 1, "url": "https://example.com", "title": "E"}},
		})
		conn.Write(ctx, websocket.MessageText, reply)
	}()

	reply, err := srv.Request(ctx, OutgoingMsg{Action: ActionListTabs})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	tabs, err := ParseTabList(reply)
	if err != nil {
		t.Fatalf("ParseTabList: %v", err)
	}
	if len(tabs) != 1 || tabs[0].ID != 1 {
		t.Errorf("unexpected tabs: %+v", tabs)
	}
}

func TestRequestTimesOut(t *testing.T) {
	srv := New(0)
	dialTest(t, srv) // connected peer that never replies

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := srv.Request(ctx, OutgoingMsg{Action: ActionExtractContent, TabID: 3})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Error("Request did not respect context deadline")
	}
}

func TestRequestErrorReply(t *testing.T) {
	srv := New(0)
	conn, ctx := dialTest(t, srv)

	go func() {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd OutgoingMsg
		if err := json.Unmarshal(data, &cmd); err != nil {
			return
		}
		reply, _ := json.Marshal(map[string]any{
			"type":  TypeContentResult,
			"id":    cmd.ID,
			"error": "tab is gone",
		})
		conn.Write(ctx, websocket.MessageText, reply)
	}()

	_, err := srv.Request(ctx, OutgoingMsg{Action: ActionExtractContent, TabID: 3})
	if err == nil || !strings.Contains(err.Error(), "tab is gone") {
		t.Errorf("expected reply error, got %v", err)
	}
}
