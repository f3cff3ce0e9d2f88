// Package notify posts committed governance events to chat channels.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/stake-plus/dao-governance/src/governance"
	"github.com/stake-plus/dao-governance/src/logging"
)

// ChannelSender is the part of a discordgo session the notifier needs.
type ChannelSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts one embed per event to a channel.
type Discord struct {
	sender    ChannelSender
	channelID string
	types     map[governance.EventType]bool
	log       *zap.Logger
}

// DefaultDiscordEvents are the proposal lifecycle events worth a message.
var DefaultDiscordEvents = []governance.EventType{
	governance.EventProposalCreated,
	governance.EventProposalSucceeded,
	governance.EventProposalDefeated,
	governance.EventProposalExecuted,
	governance.EventProposalCancelled,
	governance.EventConfigChanged,
	governance.EventTreasuryTransfer,
}

// NewDiscord returns a notifier posting the given event types, or
// DefaultDiscordEvents when none are given.
func NewDiscord(sender ChannelSender, channelID string, log *zap.Logger, types ...governance.EventType) *Discord {
	if len(types) == 0 {
		types = DefaultDiscordEvents
	}
	set := make(map[governance.EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Discord{sender: sender, channelID: channelID, types: set, log: log}
}

// OpenDiscord connects a bot session with token.
func OpenDiscord(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("discord open: %w", err)
	}
	return s, nil
}

func (d *Discord) Publish(ctx context.Context, evt governance.Event) error {
	if !d.types[evt.Type] {
		return nil
	}
	msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embedFor(evt)}}
	_, err := d.sender.ChannelMessageSendComplex(d.channelID, msg, discordgo.WithContext(ctx))
	if logging.IsRateLimit(err) {
		d.log.Warn("discord rate limited, dropping event", zap.String("event", string(evt.Type)))
		return nil
	}
	return err
}

func embedFor(evt governance.Event) *discordgo.MessageEmbed {
	title := string(evt.Type)
	if evt.ProposalID != nil {
		title = fmt.Sprintf("%s #%d", evt.Type, *evt.ProposalID)
	}

	e := &discordgo.MessageEmbed{
		Title:     title,
		Color:     colorFor(evt.Type),
		Timestamp: evt.At.UTC().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "unit " + evt.UnitID},
	}
	if evt.Actor != "" {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "actor", Value: evt.Actor, Inline: true})
	}

	keys := make([]string, 0, len(evt.Attrs))
	for k := range evt.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := strings.TrimSpace(evt.Attrs[k])
		if v == "" {
			continue
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: k, Value: WrapURLsNoEmbed(v), Inline: true})
	}
	return e
}

func colorFor(t governance.EventType) int {
	switch t {
	case governance.EventProposalSucceeded, governance.EventProposalExecuted:
		return 0x2ecc71
	case governance.EventProposalDefeated, governance.EventProposalCancelled:
		return 0xe74c3c
	default:
		return 0x3498db
	}
}
