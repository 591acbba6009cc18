// Package gewe wraps the GeWe messaging REST API. The rest of the gateway
// treats it as a fallible remote collaborator: send a message, download a
// media payload, nothing else.
package gewe

import "context"

// Client is the outbound surface of the messaging provider.
type Client interface {
	// SendText sends a plain text message. ats lists wxids to @-mention
	// (group chats only); empty means no mentions.
	SendText(ctx context.Context, appID, toWxid, content string, ats []string) error

	// SendImage sends an image by URL.
	SendImage(ctx context.Context, appID, toWxid, imgURL string) error

	// SendAppMsg sends a raw appmsg XML payload (quoted replies, cards).
	SendAppMsg(ctx context.Context, appID, toWxid, appmsgXML string) error

	// Download* fetch the media of a received message. contentXML is the
	// raw Content of the originating event.
	DownloadImage(ctx context.Context, appID, contentXML string) ([]byte, error)
	DownloadVoice(ctx context.Context, appID, contentXML string, msgID int64) ([]byte, error)
	DownloadVideo(ctx context.Context, appID, contentXML string) ([]byte, error)
	DownloadEmoji(ctx context.Context, appID, contentXML string) ([]byte, error)
	DownloadFile(ctx context.Context, appID, contentXML string) ([]byte, error)
}

// TokenFunc resolves the API token for a bot appId.
type TokenFunc func(appID string) string
