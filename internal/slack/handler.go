// Package slack provides the message handler that drives the conversation
// pipeline.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/brunovale/deputado-bot/internal/ai"
	"github.com/brunovale/deputado-bot/internal/config"
	"github.com/brunovale/deputado-bot/internal/store"
)

// User-visible replies.
const (
	replyGenericError = "❌ Desculpe, ocorreu um erro ao processar sua mensagem."
	replyEmptyPrompt  = "⚠️ Por favor, forneça uma mensagem para conversar."
	replyCleared      = "🧹 Histórico de conversa limpo."
	replyNothingClear = "Não há histórico para limpar."
	replyPersonaSet   = "✅ Personalidade atualizada."
	replyConfigSet    = "✅ Configuração atualizada."
)

// Completer obtains chat completions. Satisfied by *ai.Gateway.
type Completer interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
	Models(ctx context.Context) ([]string, error)
}

// Handler turns incoming messages into completions: it resolves the
// conversation buffer, records the user turn, obtains a reply, and records
// the assistant turn. It also parses prefix commands.
type Handler struct {
	registry  *store.Registry
	completer Completer
	persona   *ai.Persona
	cfg       *config.Config
	prefix    string
	logger    *slog.Logger
}

// NewHandler creates a new message handler.
func NewHandler(
	cfg *config.Config,
	registry *store.Registry,
	completer Completer,
	persona *ai.Persona,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		registry:  registry,
		completer: completer,
		persona:   persona,
		cfg:       cfg,
		prefix:    cfg.CommandPrefix,
		logger:    logger,
	}
}

// HandleMessage processes an incoming message. Prefixed text is parsed as a
// command; everything else is a conversation turn.
func (h *Handler) HandleMessage(ctx context.Context, msg *IncomingMessage) (*OutgoingMessage, error) {
	h.logger.Info("handling message",
		"user", msg.UserID,
		"channel", msg.ChannelID,
		"thread", msg.ThreadTS,
	)

	text := strings.TrimSpace(msg.Text)
	if cmd, args, ok := h.parseCommand(text); ok {
		return h.runCommand(ctx, msg, cmd, args)
	}
	// Slash command text carries no prefix; accept bare subcommands there.
	if msg.IsSlash {
		if cmd, args, ok := splitFirstWord(text); ok && knownCommands[cmd] {
			return h.runCommand(ctx, msg, cmd, args)
		}
	}

	if text == "" {
		return h.reply(msg, replyEmptyPrompt), nil
	}
	return h.chat(ctx, msg, text)
}

// chat runs one conversation turn through the buffer and the gateway.
func (h *Handler) chat(ctx context.Context, msg *IncomingMessage, text string) (*OutgoingMessage, error) {
	buf := h.registry.GetOrCreate(ctx, h.conversationID(msg))
	buf.AppendUser(ctx, msg.UserID, msg.Username, text)

	response, err := h.completer.Complete(ctx, buf.ExportForCompletion())
	if err != nil {
		// The user's turn stays recorded so a retry has full context; no
		// assistant turn is appended.
		h.logger.Error("completion failed", "channel", msg.ChannelID, "error", err)
		return h.reply(msg, replyGenericError), nil
	}

	buf.AppendAssistant(ctx, response)
	return h.reply(msg, response), nil
}

var knownCommands = map[string]bool{
	"ajuda":         true,
	"conversar":     true,
	"limpar":        true,
	"personalidade": true,
	"modelos":       true,
	"config":        true,
}

// splitFirstWord separates the leading word from the rest of the text.
func splitFirstWord(text string) (first, rest string, ok bool) {
	if text == "" {
		return "", "", false
	}
	parts := strings.SplitN(text, " ", 2)
	first = strings.ToLower(parts[0])
	if len(parts) == 2 {
		rest = strings.TrimSpace(parts[1])
	}
	return first, rest, true
}

// parseCommand splits prefixed text into a command and its argument string.
func (h *Handler) parseCommand(text string) (cmd, args string, ok bool) {
	if h.prefix == "" || !strings.HasPrefix(text, h.prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(text, h.prefix)
	if rest == "" {
		return "", "", false
	}
	parts := strings.SplitN(rest, " ", 2)
	cmd = strings.ToLower(parts[0])
	if len(parts) == 2 {
		args = strings.TrimSpace(parts[1])
	}
	return cmd, args, true
}

func (h *Handler) runCommand(ctx context.Context, msg *IncomingMessage, cmd, args string) (*OutgoingMessage, error) {
	switch cmd {
	case "ajuda":
		return h.reply(msg, h.helpText()), nil
	case "conversar":
		if args == "" {
			return h.reply(msg, replyEmptyPrompt), nil
		}
		return h.chat(ctx, msg, args)
	case "limpar":
		if h.registry.Clear(ctx, h.conversationID(msg)) {
			return h.reply(msg, replyCleared), nil
		}
		return h.reply(msg, replyNothingClear), nil
	case "personalidade":
		return h.personaCommand(msg, args), nil
	case "modelos":
		return h.modelsCommand(ctx, msg), nil
	case "config":
		return h.configCommand(msg, args), nil
	default:
		return h.reply(msg, fmt.Sprintf("⚠️ Comando desconhecido: %s. Use %sajuda.",
			formatInlineCode(h.prefix+cmd), h.prefix)), nil
	}
}

func (h *Handler) personaCommand(msg *IncomingMessage, args string) *OutgoingMessage {
	if args == "" {
		preview := truncateText(h.persona.Get(), 500)
		return h.reply(msg, "Personalidade atual:\n"+formatCodeBlock(preview))
	}
	h.persona.Set(args)
	return h.reply(msg, replyPersonaSet)
}

func (h *Handler) modelsCommand(ctx context.Context, msg *IncomingMessage) *OutgoingMessage {
	models, err := h.completer.Models(ctx)
	if err != nil {
		h.logger.Error("failed to list models", "error", err)
		return h.reply(msg, "❌ Não foi possível listar os modelos disponíveis.")
	}
	if len(models) == 0 {
		return h.reply(msg, "Nenhum modelo disponível.")
	}
	const maxListed = 30
	if len(models) > maxListed {
		models = models[:maxListed]
	}
	return h.reply(msg, "Modelos disponíveis:\n"+formatCodeBlock(strings.Join(models, "\n")))
}

// configCommand updates one setting: "config <chave> <valor>".
func (h *Handler) configCommand(msg *IncomingMessage, args string) *OutgoingMessage {
	parts := strings.SplitN(args, " ", 2)
	if len(parts) != 2 || parts[0] == "" || strings.TrimSpace(parts[1]) == "" {
		return h.reply(msg, fmt.Sprintf("⚠️ Uso: %sconfig <chave> <valor>. Chaves: %s",
			h.prefix, strings.Join(config.Updatable(), ", ")))
	}

	key := strings.ToLower(parts[0])
	value := parseConfigValue(strings.TrimSpace(parts[1]))
	if err := h.cfg.Update(map[string]any{key: value}); err != nil {
		h.logger.Error("failed to update config", "key", key, "error", err)
		return h.reply(msg, fmt.Sprintf("❌ Erro ao atualizar configuração: %v", err))
	}
	return h.reply(msg, replyConfigSet)
}

// parseConfigValue keeps numeric settings numeric in the persisted file.
func parseConfigValue(raw string) any {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// conversationID derives the buffer identity: the thread when present,
// otherwise the channel.
func (h *Handler) conversationID(msg *IncomingMessage) string {
	if msg.ThreadTS != "" {
		return msg.ChannelID + ":" + msg.ThreadTS
	}
	return msg.ChannelID
}

func (h *Handler) reply(msg *IncomingMessage, text string) *OutgoingMessage {
	return &OutgoingMessage{Text: text, ThreadTS: msg.replyThread()}
}

func (h *Handler) helpText() string {
	p := h.prefix
	return strings.Join([]string{
		"📚 *Comandos disponíveis:*",
		fmt.Sprintf("%sajuda - mostra esta mensagem", p),
		fmt.Sprintf("%sconversar <mensagem> - conversa com a IA", p),
		fmt.Sprintf("%slimpar - limpa o histórico de conversa atual", p),
		fmt.Sprintf("%spersonalidade [nova] - mostra ou altera a personalidade", p),
		fmt.Sprintf("%smodelos - lista os modelos disponíveis", p),
		fmt.Sprintf("%sconfig <chave> <valor> - atualiza uma configuração", p),
		"Ou me mencione em qualquer mensagem para conversar!",
	}, "\n")
}
