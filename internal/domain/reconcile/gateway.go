package reconcile

import (
	"context"
	"time"
)

// Permission bits use the chat platform's numeric values.
type Permission int64

const (
	PermManageChannels Permission = 1 << 4
	PermView           Permission = 1 << 10
	PermSend           Permission = 1 << 11
	PermManageMessages Permission = 1 << 13
	PermEmbedLinks     Permission = 1 << 14
	PermAttachFiles    Permission = 1 << 15
	PermReadHistory    Permission = 1 << 16
)

type OverwriteType int

const (
	OverwriteRole OverwriteType = iota
	OverwriteMember
)

type Overwrite struct {
	ID    string
	Type  OverwriteType
	Allow Permission
	Deny  Permission
}

type ChannelKind int

const (
	KindText ChannelKind = iota
	KindCategory
)

type Channel struct {
	ID       string
	Name     string
	Kind     ChannelKind
	ParentID string
	Position int
}

type ChannelSpec struct {
	Name       string
	Kind       ChannelKind
	ParentID   string
	Overwrites []Overwrite
}

// Position moves a channel or category to an absolute slot.
type Position struct {
	ChannelID string
	Position  int
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
	ImageURL    string
	Timestamp   time.Time
}

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Message struct {
	Content string
	Embeds  []Embed
	// MentionUsers limits which user mentions in Content actually ping.
	MentionUsers []string
	File         *Attachment
}

// Posted is a message already present in a channel.
type Posted struct {
	ID         string
	AuthorID   string
	AuthorName string
	Content    string
	Embeds     []Embed
	Pinned     bool
	Timestamp  time.Time
}

// Gateway is the narrow surface of the chat platform the engine drives.
// Every call may fail; the engine treats failures as not yet converged.
type Gateway interface {
	SelfID() string

	GuildChannels(ctx context.Context, guildID string) ([]Channel, error)
	Channel(ctx context.Context, channelID string) (Channel, error)
	CreateChannel(ctx context.Context, guildID string, spec ChannelSpec) (Channel, error)
	MoveChannel(ctx context.Context, channelID, parentID string) error
	RenameChannel(ctx context.Context, channelID, name string) error
	SetOverwrites(ctx context.Context, channelID string, overwrites []Overwrite) error
	Reorder(ctx context.Context, guildID string, positions []Position) error
	DeleteChannel(ctx context.Context, channelID string) error

	Send(ctx context.Context, channelID string, msg Message) (string, error)
	Edit(ctx context.Context, channelID, messageID string, msg Message) error
	Pin(ctx context.Context, channelID, messageID string) error
	Pinned(ctx context.Context, channelID string) ([]Posted, error)
	// Recent returns up to limit messages, newest first.
	Recent(ctx context.Context, channelID string, limit int) ([]Posted, error)
}
