package caster

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/r2northstar/recsync/pkg/announce"
	"github.com/r2northstar/recsync/pkg/record"
	"github.com/r2northstar/recsync/pkg/wire"
)

func newPipe() (*wire.Conn, *wire.Conn) {
	a, b := net.Pipe()
	return wire.NewConn(a), wire.NewConn(b)
}

// TestGreetSendsClientGreetAfterServerGreet covers the handshake transition
// from the spec: ServerGreet -> ClientGreet{serv_key}.
func TestGreetSendsClientGreetAfterServerGreet(t *testing.T) {
	client, server := newPipe()
	ann := announce.Announcement{ServerKey: 0xDEADBEEF}

	errc := make(chan error, 1)
	go func() { errc <- greet(client, ann) }()

	if err := server.WriteMessage(wire.MsgServerGreet{}); err != nil {
		t.Fatalf("write ServerGreet: %v", err)
	}

	m, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("read ClientGreet: %v", err)
	}
	cg, ok := m.(wire.MsgClientGreet)
	if !ok {
		t.Fatalf("got %T, want MsgClientGreet", m)
	}
	if cg.ServKey != ann.ServerKey {
		t.Errorf("ServKey = %#x, want %#x", cg.ServKey, ann.ServerKey)
	}

	if err := <-errc; err != nil {
		t.Fatalf("greet: %v", err)
	}
}

func TestGreetRejectsUnexpectedFirstMessage(t *testing.T) {
	client, server := newPipe()

	errc := make(chan error, 1)
	go func() { errc <- greet(client, announce.Announcement{}) }()

	if err := server.WriteMessage(wire.MsgPing{Nonce: 1}); err != nil {
		t.Fatalf("write Ping: %v", err)
	}

	if err := <-errc; err == nil {
		t.Fatal("expected error for unexpected first message")
	}
}

// TestUploadSequence covers scenario S6's upload phase: one record with one
// property, verifying emission order and recid assignment.
func TestUploadSequence(t *testing.T) {
	recs := []record.Record{
		{Name: "DEV:R", Type: "ai", Properties: map[string]string{"desc": "x"}},
	}
	e := &Engine{records: recs}

	client, server := newPipe()

	errc := make(chan error, 1)
	go func() { errc <- e.upload(client) }()

	var got []wire.Message
	for i := 0; i < 3; i++ {
		m, err := server.ReadMessage()
		if err != nil {
			t.Fatalf("read message %d: %v", i, err)
		}
		got = append(got, m)
	}

	if err := <-errc; err != nil {
		t.Fatalf("upload: %v", err)
	}

	want := []wire.Message{
		wire.MsgAddRecord{RecID: 100, Atype: wire.RecordPrimary, RType: "ai", RName: "DEV:R"},
		wire.MsgAddInfo{RecID: 100, Key: "desc", Value: "x"},
		wire.MsgUploadDone{},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}

// TestUploadEmitsAliasBeforeProperties checks the record/alias/properties
// ordering invariant when both an alias and properties are present.
func TestUploadEmitsAliasBeforeProperties(t *testing.T) {
	recs := []record.Record{
		{Name: "DEV:R", Type: "ai", Alias: "DEV:ALIAS", Properties: map[string]string{"k": "v"}},
	}
	e := &Engine{records: recs}

	client, server := newPipe()
	errc := make(chan error, 1)
	go func() { errc <- e.upload(client) }()

	msgs := make([]wire.Message, 0, 4)
	for i := 0; i < 4; i++ {
		m, err := server.ReadMessage()
		if err != nil {
			t.Fatalf("read message %d: %v", i, err)
		}
		msgs = append(msgs, m)
	}
	if err := <-errc; err != nil {
		t.Fatalf("upload: %v", err)
	}

	primary, ok := msgs[0].(wire.MsgAddRecord)
	if !ok || primary.Atype != wire.RecordPrimary {
		t.Fatalf("message 0 = %#v, want primary AddRecord", msgs[0])
	}
	alias, ok := msgs[1].(wire.MsgAddRecord)
	if !ok || alias.Atype != wire.RecordAlias || alias.RecID != primary.RecID {
		t.Fatalf("message 1 = %#v, want alias AddRecord sharing recid %d", msgs[1], primary.RecID)
	}
	if _, ok := msgs[2].(wire.MsgAddInfo); !ok {
		t.Fatalf("message 2 = %#v, want AddInfo", msgs[2])
	}
	if _, ok := msgs[3].(wire.MsgUploadDone); !ok {
		t.Fatalf("message 3 = %#v, want UploadDone", msgs[3])
	}
}

// TestUploadAssignsInjectiveRecIDs covers the record-id assignment invariant
// across a multi-record inventory.
func TestUploadAssignsInjectiveRecIDs(t *testing.T) {
	recs := []record.Record{
		{Name: "A", Type: "t"},
		{Name: "B", Type: "t"},
		{Name: "C", Type: "t"},
	}
	e := &Engine{records: recs}

	client, server := newPipe()
	errc := make(chan error, 1)
	go func() { errc <- e.upload(client) }()

	seen := map[uint32]bool{}
	for i := 0; i < len(recs); i++ {
		m, err := server.ReadMessage()
		if err != nil {
			t.Fatalf("read message %d: %v", i, err)
		}
		ar, ok := m.(wire.MsgAddRecord)
		if !ok {
			t.Fatalf("message %d = %#v, want AddRecord", i, m)
		}
		if seen[ar.RecID] {
			t.Fatalf("recid %d reused", ar.RecID)
		}
		seen[ar.RecID] = true
		if want := record.ID(i); ar.RecID != want {
			t.Errorf("record %d recid = %d, want %d", i, ar.RecID, want)
		}
	}
	if _, err := server.ReadMessage(); err != nil {
		t.Fatalf("read UploadDone: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("upload: %v", err)
	}
}

// TestPingPongEchoesNonce covers scenario S5/testable-property 4: the only
// frame written in reply to a Ping is a Pong carrying the same nonce.
func TestPingPongEchoesNonce(t *testing.T) {
	e := &Engine{cfg: defaultConfig()}
	client, server := newPipe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.pingpong(ctx, client)
		close(done)
	}()

	if err := server.WriteMessage(wire.MsgPing{Nonce: 42}); err != nil {
		t.Fatalf("write Ping: %v", err)
	}
	m, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("read Pong: %v", err)
	}
	pong, ok := m.(wire.MsgPong)
	if !ok || pong.Nonce != 42 {
		t.Fatalf("got %#v, want MsgPong{Nonce: 42}", m)
	}

	cancel()
	server.NetConn().Close()
	<-done
}

// TestPingPongDropsSessionOnUnexpectedMessage checks that any non-Ping
// message ends the ping/pong loop without a reply.
func TestPingPongDropsSessionOnUnexpectedMessage(t *testing.T) {
	e := &Engine{cfg: defaultConfig()}
	client, server := newPipe()

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		e.pingpong(ctx, client)
		close(done)
	}()

	if err := server.WriteMessage(wire.MsgUploadDone{}); err != nil {
		t.Fatalf("write UploadDone: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pingpong did not return after unexpected message")
	}
}

func TestNewRejectsInvalidRecords(t *testing.T) {
	_, err := New([]record.Record{{Type: "ai"}})
	if err == nil {
		t.Fatal("expected error for record with empty name")
	}
}

