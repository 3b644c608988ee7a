package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// Reply is a Response as seen by the client, with Data left encoded.
type Reply struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals Data into out. An empty payload leaves out untouched.
func (r Reply) Decode(out interface{}) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, out)
}

// Err returns the server-side failure as an error.
func (r Reply) Err() error {
	if r.Success {
		return nil
	}
	return errors.New(r.Message)
}

// Call sends one command and waits for its reply.
func Call(socketPath string, cmd Command, timeout time.Duration) (Reply, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to connect to daemon socket %s: %w", socketPath, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))

	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return Reply{}, fmt.Errorf("failed to send command: %w", err)
	}
	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("failed to read response: %w", err)
	}
	return reply, nil
}

// DecodeArgs converts the generic Args of a decoded Command into out.
func DecodeArgs(input interface{}, out interface{}) error {
	if input == nil {
		return nil
	}
	data, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal args map: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal args into struct: %w", err)
	}
	return nil
}
