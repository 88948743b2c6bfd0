package ingest

import "context"

// FetchedMessage is one unseen message as delivered by the mailbox. Raw
// holds the complete BODY[] literal, the only byte source used for
// decoding.
type FetchedMessage struct {
	UID    uint32
	SeqNum uint32
	Raw    []byte
}

// Mailbox is the part of the mail connection a scan needs.
type Mailbox interface {
	// FetchUnseen searches unseen messages and fetches them, calling fn
	// for each as it arrives. With markSeen the fetch itself sets the
	// seen flag. It returns the number of messages delivered.
	FetchUnseen(ctx context.Context, markSeen bool, fn func(FetchedMessage)) (int, error)
	// MarkSeen sets the seen flag on the given UIDs.
	MarkSeen(ctx context.Context, uids []uint32) error
}
