package entities

import (
	"strings"
	"time"
)

type ConversationKind string

const ConversationKindChannel ConversationKind = "channel"

// Channel is a conversation of kind channel owned by exactly one server.
type Channel struct {
	ChannelID         string
	ServerID          string
	Kind              ConversationKind
	FederatedSource   string
	IsFederatedMirror bool
	Name              string
	Description       string
	Topic             string
	Position          int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type ChannelAttrs struct {
	Name        string
	Description string
	Topic       string
	Position    int
}

func (c Channel) Apply(attrs ChannelAttrs, now time.Time) Channel {
	c.Name = strings.TrimSpace(attrs.Name)
	c.Description = attrs.Description
	c.Topic = attrs.Topic
	c.Position = attrs.Position
	c.Kind = ConversationKindChannel
	c.IsFederatedMirror = true
	c.UpdatedAt = now.UTC()
	return c
}
