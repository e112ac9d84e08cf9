// Package slack provides Slack bot integration using Socket Mode.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/brunovale/deputado-bot/internal/config"
)

// maxReplyLength is the chunk size for outgoing replies. Longer replies are
// split; the first chunk goes out as a threaded reply, the rest as plain
// sends, order preserved.
const maxReplyLength = 2000

// MessageHandler is called when the bot receives a message to process.
type MessageHandler func(ctx context.Context, msg *IncomingMessage) (*OutgoingMessage, error)

// IncomingMessage represents a message received by the bot.
type IncomingMessage struct {
	// Text is the message content (with bot mention stripped)
	Text string
	// UserID is the Slack user ID of the sender
	UserID string
	// Username is the sender's display name
	Username string
	// ChannelID is the channel where the message was sent
	ChannelID string
	// ThreadTS is the enclosing thread timestamp; empty outside threads
	ThreadTS string
	// EventTS is the timestamp of the triggering message
	EventTS string
	// IsDM indicates if this is a direct message
	IsDM bool
	// IsSlash indicates the text came from a slash command
	IsSlash bool
}

// replyThread returns the timestamp replies should thread under. DM replies
// go straight to the conversation.
func (m *IncomingMessage) replyThread() string {
	if m.ThreadTS != "" {
		return m.ThreadTS
	}
	if m.IsDM {
		return ""
	}
	return m.EventTS
}

// OutgoingMessage represents a message to send.
type OutgoingMessage struct {
	// Text is the message content
	Text string
	// ThreadTS is the thread timestamp to reply in
	ThreadTS string
}

// Bot manages the Slack connection and event handling.
type Bot struct {
	client       *slack.Client
	socketClient *socketmode.Client
	handler      MessageHandler
	botUserID    string
	logger       *slog.Logger

	namesMu sync.Mutex
	names   map[string]string // user ID -> display name
}

// NewBot creates a new Slack bot instance.
func NewBot(cfg *config.Config, handler MessageHandler, logger *slog.Logger) (*Bot, error) {
	client := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)

	socketClient := socketmode.New(
		client,
		socketmode.OptionDebug(cfg.LogLevel == "debug"),
	)

	// Get bot user ID for mention detection
	authTest, err := client.AuthTest()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate with Slack: %w", err)
	}

	return &Bot{
		client:       client,
		socketClient: socketClient,
		handler:      handler,
		botUserID:    authTest.UserID,
		logger:       logger,
		names:        make(map[string]string),
	}, nil
}

// Run starts the bot and blocks until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	go b.handleEvents(ctx)

	b.logger.Info("starting Slack bot", "bot_user_id", b.botUserID)
	return b.socketClient.RunContext(ctx)
}

// handleEvents processes incoming Socket Mode events.
func (b *Bot) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-b.socketClient.Events:
			b.handleEvent(ctx, evt)
		}
	}
}

// handleEvent routes a single event to the appropriate handler.
func (b *Bot) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		b.handleEventsAPI(ctx, evt)
	case socketmode.EventTypeSlashCommand:
		b.handleSlashCommand(ctx, evt)
	case socketmode.EventTypeConnecting:
		b.logger.Info("connecting to Slack...")
	case socketmode.EventTypeConnected:
		b.logger.Info("connected to Slack")
	case socketmode.EventTypeConnectionError:
		b.logger.Error("connection error", "error", evt.Data)
	}
}

// handleEventsAPI processes Events API events (mentions, DMs).
func (b *Bot) handleEventsAPI(ctx context.Context, evt socketmode.Event) {
	eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}

	b.socketClient.Ack(*evt.Request)

	switch eventsAPIEvent.Type {
	case slackevents.CallbackEvent:
		b.handleCallbackEvent(ctx, eventsAPIEvent)
	}
}

// handleCallbackEvent processes callback events.
func (b *Bot) handleCallbackEvent(ctx context.Context, evt slackevents.EventsAPIEvent) {
	switch innerEvent := evt.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		b.handleAppMention(ctx, innerEvent)
	case *slackevents.MessageEvent:
		b.handleMessageEvent(ctx, innerEvent)
	}
}

// handleAppMention processes @bot mentions.
func (b *Bot) handleAppMention(ctx context.Context, evt *slackevents.AppMentionEvent) {
	text := b.stripBotMention(evt.Text)

	msg := &IncomingMessage{
		Text:      text,
		UserID:    evt.User,
		Username:  b.displayName(evt.User),
		ChannelID: evt.Channel,
		ThreadTS:  evt.ThreadTimeStamp,
		EventTS:   evt.TimeStamp,
		IsDM:      false,
	}

	go b.processMessage(ctx, msg)
}

// handleMessageEvent processes direct messages.
func (b *Bot) handleMessageEvent(ctx context.Context, evt *slackevents.MessageEvent) {
	// Ignore bot messages and message changes
	if evt.BotID != "" || evt.SubType != "" {
		return
	}

	// Only handle DMs (channel type "im")
	if evt.ChannelType != "im" {
		return
	}

	msg := &IncomingMessage{
		Text:      evt.Text,
		UserID:    evt.User,
		Username:  b.displayName(evt.User),
		ChannelID: evt.Channel,
		ThreadTS:  evt.ThreadTimeStamp,
		EventTS:   evt.TimeStamp,
		IsDM:      true,
	}

	go b.processMessage(ctx, msg)
}

// handleSlashCommand processes /deputado commands.
func (b *Bot) handleSlashCommand(ctx context.Context, evt socketmode.Event) {
	cmd, ok := evt.Data.(slack.SlashCommand)
	if !ok {
		return
	}

	b.socketClient.Ack(*evt.Request)

	if cmd.Command != "/deputado" {
		return
	}

	msg := &IncomingMessage{
		Text:      cmd.Text,
		UserID:    cmd.UserID,
		Username:  b.displayName(cmd.UserID),
		ChannelID: cmd.ChannelID,
		ThreadTS:  "", // Slash commands don't have threads
		IsDM:      false,
		IsSlash:   true,
	}

	go b.processMessage(ctx, msg)
}

// processMessage sends a message to the handler and posts the response. It
// runs on its own goroutine per turn so a slow completion in one conversation
// does not stall the event loop for the others.
func (b *Bot) processMessage(ctx context.Context, msg *IncomingMessage) {
	b.logger.Debug("processing message",
		"user", msg.UserID,
		"channel", msg.ChannelID,
		"text", msg.Text,
	)

	response, err := b.handler(ctx, msg)
	if err != nil {
		b.logger.Error("handler error", "error", err)
		response = &OutgoingMessage{
			Text:     replyGenericError,
			ThreadTS: msg.replyThread(),
		}
	}
	if response == nil {
		return
	}

	if err := b.sendMessage(msg.ChannelID, response); err != nil {
		b.logger.Error("failed to send message", "error", err)
	}
}

// sendMessage posts a message to a channel, splitting long replies into
// chunks of at most maxReplyLength characters.
func (b *Bot) sendMessage(channelID string, msg *OutgoingMessage) error {
	chunks := splitReply(msg.Text, maxReplyLength)
	for i, chunk := range chunks {
		options := []slack.MsgOption{
			slack.MsgOptionText(chunk, false),
		}
		// Only the first chunk is threaded as a reply.
		if i == 0 && msg.ThreadTS != "" {
			options = append(options, slack.MsgOptionTS(msg.ThreadTS))
		}
		if _, _, err := b.client.PostMessage(channelID, options...); err != nil {
			return err
		}
	}
	return nil
}

// displayName resolves a user's display name, caching results.
func (b *Bot) displayName(userID string) string {
	b.namesMu.Lock()
	name, ok := b.names[userID]
	b.namesMu.Unlock()
	if ok {
		return name
	}

	user, err := b.client.GetUserInfo(userID)
	if err != nil {
		b.logger.Warn("failed to look up user", "user", userID, "error", err)
		return ""
	}

	name = user.Profile.DisplayName
	if name == "" {
		name = user.RealName
	}
	if name == "" {
		name = user.Name
	}

	b.namesMu.Lock()
	b.names[userID] = name
	b.namesMu.Unlock()
	return name
}

// stripBotMention removes the bot mention from message text.
func (b *Bot) stripBotMention(text string) string {
	mention := fmt.Sprintf("<@%s>", b.botUserID)
	text = strings.Replace(text, mention, "", 1)
	return strings.TrimSpace(text)
}

// GetBotUserID returns the bot's Slack user ID.
func (b *Bot) GetBotUserID() string {
	return b.botUserID
}
