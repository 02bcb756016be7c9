// Package gateway defines the messaging transport the engine talks through.
package gateway

import (
	"context"
	"fmt"
	"log"
)

// RecipientKind distinguishes the shared group from a private chat.
type RecipientKind string

const (
	KindGroup  RecipientKind = "group"
	KindPlayer RecipientKind = "player"
)

// Recipient addresses a message.
type Recipient struct {
	Kind RecipientKind `json:"kind"`
	ID   string        `json:"id"`
}

// Group addresses the session's shared chat.
func Group(id string) Recipient { return Recipient{Kind: KindGroup, ID: id} }

// Player addresses a player's private chat.
func Player(id string) Recipient { return Recipient{Kind: KindPlayer, ID: id} }

func (r Recipient) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// Button is an interactive choice carrying an opaque callback token.
type Button struct {
	Label string `json:"label"`
	Token string `json:"token"`
}

// Message is an outbound prompt or announcement.
type Message struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons,omitempty"`
}

// MessageID identifies a sent message so it can be edited.
type MessageID string

// Gateway delivers messages. Implementations return an error when a single
// recipient cannot be reached; callers decide whether that matters.
type Gateway interface {
	Send(ctx context.Context, to Recipient, msg Message) (MessageID, error)
	Edit(ctx context.Context, to Recipient, id MessageID, msg Message) error
}

// Envelope pairs a message with its recipient.
type Envelope struct {
	To  Recipient
	Msg Message
	// OnSent, if set, receives the id of the delivered message.
	OnSent func(MessageID)
}

// Warning records a delivery failure inside a batch.
type Warning struct {
	To  Recipient
	Err error
}

// Deliver sends every envelope in order. A failure for one recipient is
// logged and collected; it never stops the rest of the batch.
func Deliver(ctx context.Context, gw Gateway, batch []Envelope) []Warning {
	var warnings []Warning
	for _, env := range batch {
		id, err := gw.Send(ctx, env.To, env.Msg)
		if err != nil {
			log.Printf("WARN: could not deliver to %s: %v", env.To, err)
			warnings = append(warnings, Warning{To: env.To, Err: err})
			continue
		}
		if env.OnSent != nil {
			env.OnSent(id)
		}
	}
	return warnings
}

// EditQuietly edits a message and logs instead of failing.
func EditQuietly(ctx context.Context, gw Gateway, to Recipient, id MessageID, msg Message) {
	if id == "" {
		return
	}
	if err := gw.Edit(ctx, to, id, msg); err != nil {
		log.Printf("WARN: could not edit %s on %s: %v", id, to, err)
	}
}
