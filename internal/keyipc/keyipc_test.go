package keyipc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
)

// startKeyServer runs a one-connection frontend stand-in and returns its
// Info descriptor.
func startKeyServer(t *testing.T, token string, key []byte, refuse bool) Info {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				line, err := bufio.NewReader(conn).ReadBytes('\n')
				if err != nil {
					return
				}
				var req request
				var resp response
				if json.Unmarshal(bytes.TrimSpace(line), &req) != nil ||
					req.Action != "get_key" || req.Token != token || refuse {
					resp = response{Status: "error", Msg: "invalid"}
				} else {
					resp = response{Status: "ok", KeyB64: base64.StdEncoding.EncodeToString(key)}
				}
				raw, _ := json.Marshal(resp)
				_, _ = conn.Write(append(raw, '\n'))
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return Info{Host: "127.0.0.1", Port: addr.Port, Token: token}
}

func TestFetch(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	info := startKeyServer(t, "deadbeef", key, false)

	got, err := Fetch(context.Background(), info)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, key) {
		t.Error("fetched key does not match")
	}
}

func TestFetchWrongToken(t *testing.T) {
	info := startKeyServer(t, "deadbeef", bytes.Repeat([]byte{1}, 32), false)
	info.Token = "wrong"

	_, err := Fetch(context.Background(), info)
	if !errors.Is(err, ErrRefused) {
		t.Fatalf("err = %v, want ErrRefused", err)
	}
}

func TestFetchRejectsShortKey(t *testing.T) {
	info := startKeyServer(t, "deadbeef", []byte("too short"), false)
	if _, err := Fetch(context.Background(), info); err == nil {
		t.Fatal("accepted undersized key material")
	}
}

func TestFetchWithRetryRefusalIsTerminal(t *testing.T) {
	info := startKeyServer(t, "deadbeef", bytes.Repeat([]byte{1}, 32), true)
	_, err := FetchWithRetry(context.Background(), info)
	if !errors.Is(err, ErrRefused) {
		t.Fatalf("err = %v, want ErrRefused without retries", err)
	}
}

func TestFetchWithRetryCancel(t *testing.T) {
	// Port from a closed listener: every attempt fails to connect.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FetchWithRetry(ctx, Info{Host: "127.0.0.1", Port: port, Token: "x"})
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
}

func TestReadInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.ipc.json")
	if err := os.WriteFile(path, []byte(`{"host":"127.0.0.1","port":4242,"token":"abc"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	info, err := ReadInfo(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Host != "127.0.0.1" || info.Port != 4242 || info.Token != "abc" {
		t.Errorf("info = %+v", info)
	}
}

func TestReadInfoIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.ipc.json")
	for _, raw := range []string{`{}`, `{"host":"x"}`, `{"host":"x","port":-1,"token":"t"}`, `not json`} {
		if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadInfo(path); err == nil {
			t.Errorf("ReadInfo accepted %q", raw)
		}
	}
}
