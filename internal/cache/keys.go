package cache

import "fmt"

// RateLimitKey is the per-principal request counter for the current window.
func RateLimitKey(principal string) string {
	return fmt.Sprintf("ratelimit:%s", principal)
}

// EventStreamKey is the Redis stream holding change events for a topic.
func EventStreamKey(topic string) string {
	return fmt.Sprintf("events:%s", topic)
}
