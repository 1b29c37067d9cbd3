package natsbus

import "fmt"

// Topic patterns for gateway event pub/sub.

func TopicChatStarted(swarmID string) string {
	return fmt.Sprintf("events.chat.%s.started", swarmID)
}

func TopicChatCompleted(swarmID string) string {
	return fmt.Sprintf("events.chat.%s.completed", swarmID)
}

func TopicChatFailed(swarmID string) string {
	return fmt.Sprintf("events.chat.%s.failed", swarmID)
}

const (
	TopicEventsAll    = "events.>"
	TopicEventsChat   = "events.chat.>"
	TopicUsageFlushed = "events.usage.flushed"
)
