package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleConversation processes multi-step conversations
func (b *Bot) handleConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Command {
	case "add":
		b.handleAddConversation(ctx, message, state)
	default:
		state.Step = -1
	}

	if state.Step == -1 {
		b.clearState(message.From.ID)
	}
}

// handleAddConversation waits for the book line; a malformed line keeps the conversation open
func (b *Bot) handleAddConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Step {
	case 1:
		if b.addBook(ctx, message, message.Text) {
			state.Step = -1
		}
	}
}
