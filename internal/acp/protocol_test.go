package acp

import (
	"bufio"
	"encoding/json"
	"io"
	"testing"
)

// newLoopback wires a Conn's writer directly back into a fake-agent reader so
// tests can script request/response exchanges without a real subprocess.
func newLoopback(t *testing.T, handle func(rpcMessage, func(rpcMessage))) (*Conn, func()) {
	t.Helper()
	clientR, agentW := io.Pipe()
	agentR, clientW := io.Pipe()

	go func() {
		scanner := bufio.NewScanner(agentR)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			var msg rpcMessage
			if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
				continue
			}
			handle(msg, func(reply rpcMessage) {
				data, _ := json.Marshal(reply)
				agentW.Write(append(data, '\n'))
			})
		}
	}()

	conn := NewConn(clientR, clientW)
	return conn, func() { clientW.Close(); agentW.Close() }
}

func TestConnCallReceivesResponse(t *testing.T) {
	conn, closeAll := newLoopback(t, func(msg rpcMessage, reply func(rpcMessage)) {
		if msg.Method == "initialize" {
			result, _ := json.Marshal(map[string]string{"agentName": "test-agent"})
			reply(rpcMessage{JSONRPC: "2.0", ID: msg.ID, Result: result})
		}
	})
	defer closeAll()

	result, err := conn.Call("initialize", map[string]string{"x": "y"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var decoded struct{ AgentName string `json:"agentName"` }
	if err := json.Unmarshal(result, &decoded); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if decoded.AgentName != "test-agent" {
		t.Errorf("AgentName = %q, want test-agent", decoded.AgentName)
	}
}

func TestConnCallReceivesError(t *testing.T) {
	conn, closeAll := newLoopback(t, func(msg rpcMessage, reply func(rpcMessage)) {
		reply(rpcMessage{JSONRPC: "2.0", ID: msg.ID, Error: &rpcError{Code: -1, Message: "boom"}})
	})
	defer closeAll()

	_, err := conn.Call("whatever", nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestConnNotificationsForwarded(t *testing.T) {
	clientR, agentW := io.Pipe()
	agentR, clientW := io.Pipe()
	defer agentR.Close()

	conn := NewConn(clientR, clientW)

	go func() {
		data, _ := json.Marshal(rpcMessage{JSONRPC: "2.0", Method: "session/update", Params: json.RawMessage(`{"x":1}`)})
		agentW.Write(append(data, '\n'))
	}()

	msg := <-conn.Notifications()
	if msg.Method != "session/update" {
		t.Errorf("Method = %q, want session/update", msg.Method)
	}

	clientW.Close()
	agentW.Close()
}
