package models

import "time"

// DedupKind selects how a channel remembers which inbound messages it has processed
type DedupKind string

const (
	// DedupKindMonotonic keeps the highest processed numeric id (Telegram update_id)
	DedupKindMonotonic DedupKind = "monotonic"
	// DedupKindIDSet keeps a bounded set of recently processed ids (WhatsApp/Slack message ids)
	DedupKindIDSet DedupKind = "id_set"
)

// InboundMessage is a channel message after provider specific parsing
type InboundMessage struct {
	Provider   string
	DedupKind  DedupKind
	DedupID    string
	ChatID     string
	ReplyToID  string // channel-native message or thread the reply attaches to
	SenderID   string
	SenderName string
	Text       string
	ReceivedAt time.Time
}

type ReservationOutcome string

const (
	ReservationAccepted  ReservationOutcome = "accepted"
	ReservationDuplicate ReservationOutcome = "duplicate"
	// ReservationSkipped means the channel is not connected; nothing was reserved
	ReservationSkipped   ReservationOutcome = "skipped"
)

// InboundResult is what a channel use case reports back to its webhook handler
type InboundResult struct {
	Outcome ReservationOutcome
	Replied bool
}

// ChatRequest is the text forwarded to the chat core
type ChatRequest struct {
	Provider string
	ChatID   string
	ThreadID string
	Sender   string
	Text     string
}

// ChatReply is the chat core answer
type ChatReply struct {
	Text     string
	ThreadID string
}
