package conversation

import "context"

// ReplyMessenger delivers router replies back to the contact.
type ReplyMessenger interface {
	SendReply(ctx context.Context, reply OutboundReply) error
}

// OutboundReply carries one text payload for a contact.
type OutboundReply struct {
	JobID    string
	To       string
	Body     string
	Sequence int
}
