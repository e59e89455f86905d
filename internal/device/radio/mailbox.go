package radio

import (
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

// maxMailbox bounds the unread message queue the way constrained firmware
// does; the oldest message is dropped when the box overflows.
const maxMailbox = 32

func (n *Node) syncNextMessage() []frame.Response {
	if len(n.mailbox) == 0 {
		return []frame.Response{frame.NoMoreMessages{}}
	}
	next := n.mailbox[0]
	n.mailbox = n.mailbox[1:]
	return []frame.Response{next}
}

func (n *Node) enqueueMessage(msg frame.Response) {
	if len(n.mailbox) >= maxMailbox {
		n.logger.Warn("mailbox full, dropping oldest message")
		n.mailbox = n.mailbox[1:]
	}
	n.mailbox = append(n.mailbox, msg)
	n.emitPush(frame.MsgWaiting{})
}

// InjectContactMessage drops a direct message from the given sender into
// the mailbox, as if it arrived over the air, and raises MsgWaiting.
func (n *Node) InjectContactMessage(from [frame.PublicKeySize]byte, pathLen byte, text string, ts uint32) {
	var prefix [frame.PrefixSize]byte
	copy(prefix[:], from[:frame.PrefixSize])

	n.mu.Lock()
	defer n.mu.Unlock()
	n.enqueueMessage(frame.ContactMsg{
		Prefix:          prefix,
		PathLen:         pathLen,
		TxtType:         frame.TxtTypePlain,
		SenderTimestamp: ts,
		Text:            text,
	})
}

// InjectChannelMessage drops a group message for a channel slot into the
// mailbox and raises MsgWaiting.
func (n *Node) InjectChannelMessage(idx int8, text string, ts uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enqueueMessage(frame.ChannelMsg{
		ChannelIdx:      idx,
		PathLen:         0xFF,
		TxtType:         frame.TxtTypePlain,
		SenderTimestamp: ts,
		Text:            text,
	})
}

// MailboxLen reports how many messages wait to be synced.
func (n *Node) MailboxLen() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.mailbox)
}
