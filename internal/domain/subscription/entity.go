// Package subscription contains the domain model for channel subscriptions:
// (chat server, channel, course) bindings that cause scheduled pushes.
package subscription

// Subscription binds a chat-server channel to a tracked course.
// No two subscriptions share the same (ServerID, ChannelID, CourseID).
type Subscription struct {
	ServerID    string `json:"server"`
	ServerName  string `json:"serverName"`
	ChannelID   string `json:"channel"`
	ChannelName string `json:"channelName"`
	CourseID    string `json:"course"`
	CourseName  string `json:"courseName"`
}

// Key identifies a subscription uniquely.
type Key struct {
	ServerID  string
	ChannelID string
	CourseID  string
}

// Key returns the subscription's unique key.
func (s Subscription) Key() Key {
	return Key{ServerID: s.ServerID, ChannelID: s.ChannelID, CourseID: s.CourseID}
}

// Destination is a resolved delivery target for the fan-out router.
type Destination struct {
	ServerID  string
	ChannelID string
}

// Destination returns the subscription's delivery target.
func (s Subscription) Destination() Destination {
	return Destination{ServerID: s.ServerID, ChannelID: s.ChannelID}
}
