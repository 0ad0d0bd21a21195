package rpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func headServer(t *testing.T, pings *atomic.Int64) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetPingHandler(func(string) error {
			pings.Add(1)
			return nil
		})

		// Subscribe request, then confirmation and one head.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"jsonrpc":"2.0","id":1,"result":"0xsub1"}`))
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0xsub1","result":{"number":"0x2a","hash":"0xhead"}}}`))

		// Keep reading so ping control frames get processed.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestHeadFeedDeliversHeadsAndKeepsConnectionAlive(t *testing.T) {
	var pings atomic.Int64
	srv := headServer(t, &pings)
	defer srv.Close()

	cfg := DefaultHeadFeedConfig()
	cfg.PingInterval = 20 * time.Millisecond

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	feed, err := NewHeadFeed(context.Background(), endpoint, &cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewHeadFeed: %v", err)
	}
	defer feed.Close()

	select {
	case head := <-feed.Heads():
		if head.Number != 42 {
			t.Errorf("head number = %d, want 42", head.Number)
		}
		if head.Hash != "0xhead" {
			t.Errorf("head hash = %q, want 0xhead", head.Hash)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for head")
	}

	deadline := time.Now().Add(2 * time.Second)
	for pings.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no ping frames received")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
