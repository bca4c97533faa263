// Package realtimetest provides an in-memory Peer for tests.
package realtimetest

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"careportal/internal/protocol"
)

// Recorder is a Peer that keeps every frame it is sent.
type Recorder struct {
	id     string
	userID string

	mu     sync.Mutex
	frames []protocol.Frame
}

// NewRecorder creates a recorder session for userID.
func NewRecorder(userID string) *Recorder {
	return &Recorder{id: uuid.NewString(), userID: userID}
}

func (r *Recorder) SessionID() string { return r.id }
func (r *Recorder) UserID() string    { return r.userID }

func (r *Recorder) Send(payload []byte) error {
	var f protocol.Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return err
	}
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	return nil
}

// Events returns the frames received with the given event name.
func (r *Recorder) Events(name string) []protocol.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.Frame
	for _, f := range r.frames {
		if f.Event == name {
			out = append(out, f)
		}
	}
	return out
}

// Count returns how many frames with the given event name were received.
func (r *Recorder) Count(name string) int {
	return len(r.Events(name))
}

// Wait blocks until a frame named name has arrived and decodes its payload into v.
func (r *Recorder) Wait(t testing.TB, name string, v any) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if frames := r.Events(name); len(frames) > 0 {
			if v != nil {
				if err := frames[0].Decode(v); err != nil {
					t.Fatalf("decode %s: %v", name, err)
				}
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", name)
}

// Settle gives asynchronous broadcasts time to land before asserting absence.
func Settle() {
	time.Sleep(100 * time.Millisecond)
}
