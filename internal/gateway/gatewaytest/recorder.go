// Package gatewaytest provides an in-memory gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aether-games/echoes-engine/internal/domain"
	"github.com/aether-games/echoes-engine/internal/gateway"
)

// Sent is a recorded outbound message.
type Sent struct {
	ID  gateway.MessageID
	To  gateway.Recipient
	Msg gateway.Message
}

// Recorder records every message and can be told to fail for recipients.
type Recorder struct {
	mu      sync.Mutex
	seq     int
	sent    []Sent
	edits   []Sent
	failFor map[gateway.Recipient]bool
}

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{failFor: make(map[gateway.Recipient]bool)}
}

// FailFor makes every delivery to r fail.
func (r *Recorder) FailFor(to gateway.Recipient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFor[to] = true
}

// Send implements gateway.Gateway.
func (r *Recorder) Send(_ context.Context, to gateway.Recipient, msg gateway.Message) (gateway.MessageID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[to] {
		return "", domain.ErrRecipientOffline
	}
	r.seq++
	id := gateway.MessageID(fmt.Sprintf("m%d", r.seq))
	r.sent = append(r.sent, Sent{ID: id, To: to, Msg: msg})
	return id, nil
}

// Edit implements gateway.Gateway.
func (r *Recorder) Edit(_ context.Context, to gateway.Recipient, id gateway.MessageID, msg gateway.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[to] {
		return domain.ErrMessageNotEditable
	}
	r.edits = append(r.edits, Sent{ID: id, To: to, Msg: msg})
	return nil
}

// Sent returns a copy of everything sent so far.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Edits returns a copy of every edit so far.
func (r *Recorder) Edits() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.edits...)
}

// To returns the messages sent to a recipient.
func (r *Recorder) To(to gateway.Recipient) []Sent {
	var out []Sent
	for _, s := range r.Sent() {
		if s.To == to {
			out = append(out, s)
		}
	}
	return out
}

// WithPrefix returns messages whose buttons carry tokens with the prefix.
func (r *Recorder) WithPrefix(prefix string) []Sent {
	var out []Sent
	for _, s := range r.Sent() {
		for _, b := range s.Msg.Buttons {
			if strings.HasPrefix(b.Token, prefix) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Contains reports whether any message to the recipient contains text.
func (r *Recorder) Contains(to gateway.Recipient, text string) bool {
	for _, s := range r.To(to) {
		if strings.Contains(s.Msg.Text, text) {
			return true
		}
	}
	return false
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.edits = nil
}
