package domain

// InboundMessage is a chat message event as received from the platform.
type InboundMessage struct {
	User            string
	BotID           string
	SubType         string
	Channel         string
	Text            string
	TimeStamp       string
	ThreadTimeStamp string
}

// OutboundMessage is a reply to deliver. ThreadTS, when set, posts into that
// thread; TS names the message to rewrite for updates.
type OutboundMessage struct {
	Channel  string
	Text     string
	ThreadTS string
	TS       string
}
