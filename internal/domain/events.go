package domain

// Real-time event names shared with web clients.
const (
	EventGetOnlineUsers    = "getOnlineUsers"    // server->all snapshot, or client->server pull
	EventNewMessage        = "newMessage"        // persisted message to receiver and sender
	EventUnreadCountUpdate = "unreadCountUpdate" // receiver's badge for one sender moved
	EventMessageRead       = "messageRead"       // receiver marked its inbox read
)

type UnreadCountPayload struct {
	From string `json:"from"`
}
