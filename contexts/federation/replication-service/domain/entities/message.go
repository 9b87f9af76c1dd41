package entities

import (
	"strings"
	"time"

	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
)

const DefaultMessageType = "text"

// SenderDescriptor identifies a remote author without a local account.
type SenderDescriptor struct {
	Handle   string
	Username string
	Domain   string
}

// NewSenderDescriptor fills a missing handle as username@domain.
func NewSenderDescriptor(handle string, username string, domain string) (SenderDescriptor, error) {
	username = strings.TrimSpace(username)
	domain = strings.ToLower(strings.TrimSpace(domain))
	handle = strings.TrimSpace(handle)
	if username == "" || domain == "" {
		return SenderDescriptor{}, domainerrors.Malformed("sender username and domain are required")
	}
	if handle == "" {
		handle = username + "@" + domain
	}
	return SenderDescriptor{Handle: handle, Username: username, Domain: domain}, nil
}

// Message is immutable once mirrored.
type Message struct {
	MessageID         string
	ChannelID         string
	FederatedSource   string
	Content           string
	MessageType       string
	MediaURLs         []string
	MediaMetadata     map[string]any
	OriginDomain      string
	IsFederatedMirror bool
	Sender            SenderDescriptor
	SentAt            time.Time
	CreatedAt         time.Time
}

type MessageAttrs struct {
	Content       string
	MessageType   string
	MediaURLs     []string
	MediaMetadata map[string]any
	OriginDomain  string
	SentAt        time.Time
}

func (a MessageAttrs) Validate() error {
	if strings.TrimSpace(a.Content) == "" && len(a.MediaURLs) == 0 {
		return domainerrors.Malformed("message needs content or media")
	}
	return nil
}

// NewMirrorMessage builds the row inserted for a first delivery.
func NewMirrorMessage(
	messageID string,
	channel Channel,
	federatedSource string,
	sender SenderDescriptor,
	attrs MessageAttrs,
	now time.Time,
) Message {
	messageType := strings.TrimSpace(attrs.MessageType)
	if messageType == "" {
		messageType = DefaultMessageType
	}
	sentAt := attrs.SentAt.UTC()
	if attrs.SentAt.IsZero() {
		sentAt = now.UTC()
	}
	return Message{
		MessageID:         messageID,
		ChannelID:         channel.ChannelID,
		FederatedSource:   federatedSource,
		Content:           attrs.Content,
		MessageType:       messageType,
		MediaURLs:         append([]string(nil), attrs.MediaURLs...),
		MediaMetadata:     cloneMetadata(attrs.MediaMetadata),
		OriginDomain:      attrs.OriginDomain,
		IsFederatedMirror: true,
		Sender:            sender,
		SentAt:            sentAt,
		CreatedAt:         now.UTC(),
	}
}

func (m Message) Clone() Message {
	m.MediaURLs = append([]string(nil), m.MediaURLs...)
	m.MediaMetadata = cloneMetadata(m.MediaMetadata)
	return m
}

func cloneMetadata(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
