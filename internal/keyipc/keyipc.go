// Package keyipc retrieves the data encryption key from the frontend over a
// short-lived local TCP exchange. The daemon is the client; the frontend
// writes an info file with the listener address and a one-time token, and
// answers exactly one newline-terminated JSON request per connection.
package keyipc

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"hindsight/internal/crypto"
)

const (
	// attemptTimeout bounds the connect plus request/response exchange.
	attemptTimeout = 2 * time.Second
	// maxAttempts bounds the retry loop; with the linear backoff below the
	// whole chain gives up after roughly five seconds.
	maxAttempts = 8
	backoffStep = 150 * time.Millisecond
	backoffCap  = 1 * time.Second
)

// ErrRefused reports that the frontend answered with an error status.
var ErrRefused = errors.New("key retrieval refused by frontend")

// Info is the connection descriptor the frontend writes next to the wrapped
// key payload.
type Info struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Token string `json:"token"`
}

// ReadInfo loads a connection descriptor from path.
func ReadInfo(path string) (Info, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return Info{}, fmt.Errorf("parse IPC info file: %w", err)
	}
	if info.Host == "" || info.Port <= 0 || info.Token == "" {
		return Info{}, fmt.Errorf("incomplete IPC info file %s", path)
	}
	return info, nil
}

type request struct {
	Action string `json:"action"`
	Token  string `json:"token"`
}

type response struct {
	Status string `json:"status"`
	KeyB64 string `json:"key_b64,omitempty"`
	Msg    string `json:"msg,omitempty"`
}

// Fetch performs one key-retrieval exchange and returns the decoded key.
func Fetch(ctx context.Context, info Info) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	var dialer net.Dialer
	addr := net.JoinHostPort(info.Host, strconv.Itoa(info.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial key server: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	line, err := json.Marshal(request{Action: "get_key", Token: info.Token})
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("send key request: %w", err)
	}

	reply, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read key response: %w", err)
	}
	var resp response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return nil, fmt.Errorf("parse key response: %w", err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("%w: %s", ErrRefused, resp.Msg)
	}

	key, err := base64.StdEncoding.DecodeString(resp.KeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode key material: %w", err)
	}
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("key material is %d bytes, want %d", len(key), crypto.KeySize)
	}
	return key, nil
}

// FetchWithRetry runs Fetch with a linearly increasing backoff between
// attempts. A frontend refusal is terminal; connection errors retry.
func FetchWithRetry(ctx context.Context, info Info) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		key, err := Fetch(ctx, info)
		if err == nil {
			return key, nil
		}
		if errors.Is(err, ErrRefused) {
			return nil, err
		}
		lastErr = err

		backoff := time.Duration(attempt) * backoffStep
		if backoff > backoffCap {
			backoff = backoffCap
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, fmt.Errorf("key retrieval failed after %d attempts: %w", maxAttempts, lastErr)
}
