// Package channels defines the chat transport boundary. The pipeline only
// talks to a transport through the Channel interface: it receives inbound
// messages and uses a small set of send primitives plus file download.
package channels

import (
	"context"
	"errors"
	"time"
)

// MessageType identifies the kind of message content.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVoice    MessageType = "voice"
	MessageAudio    MessageType = "audio"
	MessageVideo    MessageType = "video"
	MessageDocument MessageType = "document"
	MessageSticker  MessageType = "sticker"
)

// Activity is a chat action shown to the user while a reply is prepared.
type Activity string

const (
	ActivityTyping         Activity = "typing"
	ActivityUploadPhoto    Activity = "upload_photo"
	ActivityUploadDocument Activity = "upload_document"
	ActivityRecordVoice    Activity = "record_voice"
)

var (
	// ErrChannelDisconnected is returned by send operations before Connect.
	ErrChannelDisconnected = errors.New("channel disconnected")

	// ErrMediaDownloadFailed is returned when an attachment cannot be fetched.
	ErrMediaDownloadFailed = errors.New("media download failed")
)

// Channel is a chat transport.
type Channel interface {
	// Name returns the transport identifier (e.g. "telegram").
	Name() string

	// Connect starts receiving messages.
	Connect(ctx context.Context) error

	// Disconnect stops receiving and closes the Receive channel.
	Disconnect() error

	// Receive returns the stream of inbound messages.
	Receive() <-chan *IncomingMessage

	SendText(ctx context.Context, chatID, text string) error
	SendDocument(ctx context.Context, chatID string, file File) error
	SendVoice(ctx context.Context, chatID string, file File) error
	SendPhoto(ctx context.Context, chatID string, file File) error

	// SendMediaRef re-sends media the platform already holds, by reference.
	SendMediaRef(ctx context.Context, chatID string, ref MediaRef) error

	// SendActivity shows a chat action such as "typing".
	SendActivity(ctx context.Context, chatID string, activity Activity) error

	// Download fetches an attachment by its platform file id.
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// IncomingMessage is a message received from a transport.
type IncomingMessage struct {
	// ID is the message identifier in the source channel.
	ID string

	// Channel identifies the source transport.
	Channel string

	// From is the sender identifier.
	From string

	// FromName is the sender display name, if known.
	FromName string

	// ChatID is where replies go.
	ChatID string

	Type    MessageType
	Content string

	Timestamp time.Time

	// Media describes the attachment, if any.
	Media *MediaInfo

	// ReplyTo is the message this one answers, if any.
	ReplyTo *IncomingMessage
}

// MediaInfo describes an attachment of an incoming message.
type MediaInfo struct {
	Type     MessageType
	FileID   string
	MimeType string
	FileSize int64
	Filename string
}

// Ref returns a reference that re-sends this attachment.
func (m *IncomingMessage) Ref() (MediaRef, bool) {
	if m == nil || m.Media == nil || m.Media.FileID == "" {
		return MediaRef{}, false
	}
	return MediaRef{Type: m.Media.Type, FileID: m.Media.FileID, Caption: m.Content}, true
}

// File is an outbound attachment.
type File struct {
	Data     []byte
	Filename string
	MimeType string
	Caption  string
}

// MediaRef points at media stored by the platform.
type MediaRef struct {
	Type    MessageType
	FileID  string
	Caption string
}
