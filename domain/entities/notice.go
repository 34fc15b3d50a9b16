package entities

import "time"

// NoticeKind classifies a user-facing failure
type NoticeKind string

const (
	NoticeNetworkFailure    NoticeKind = "network_failure"
	NoticePermissionDenied  NoticeKind = "permission_denied"
	NoticePreconditionUnmet NoticeKind = "precondition_unmet"
)

// NoticeChannel names the component a notice came from
type NoticeChannel string

const (
	ChannelChat    NoticeChannel = "chat"
	ChannelVoice   NoticeChannel = "voice"
	ChannelImage   NoticeChannel = "image"
	ChannelCapture NoticeChannel = "capture"
	ChannelGraph   NoticeChannel = "graph"
)

// Notice is a transient message shown to the user
type Notice struct {
	ID        string        `json:"id"`
	Kind      NoticeKind    `json:"kind"`
	Channel   NoticeChannel `json:"channel"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"created_at"`
}

// ExpiredAt reports whether the notice is no longer displayed at now
func (n Notice) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(n.CreatedAt) >= ttl
}
