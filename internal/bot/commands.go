package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"bookrec/internal/activity"
	"bookrec/internal/models"
	"bookrec/internal/storage"
)

const listLimit = 10

const helpText = `Welcome to the reading companion!

Available commands:
/add <book_id> | <title> | <author> | <genre> - Add a book to your library
/rate <book_id> <1-10> - Rate a book
/finish <book_id> - Mark a book as completed
/similar - Readers with a taste like yours
/recommend - Books your similar readers loved
/trending - Books trending right now
/trending_similar - What similar readers picked up this month
/genre <name> - Most popular books in a genre
/achievements - Your achievements
/progress - Your points and level`

// handleStart registers the reader and shows help
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	profile := models.UserProfile{
		UserID:   readerID(message.From.ID),
		Username: message.From.UserName,
	}
	if err := b.svc.DB.UpsertUser(ctx, profile); err != nil {
		b.logger.Error("Failed to register user", zap.Error(err), zap.String("user_id", profile.UserID))
	}
	b.reply(message.Chat.ID, helpText)
}

// handleAdd adds a book from arguments or starts the add conversation
func (b *Bot) handleAdd(ctx context.Context, message *tgbotapi.Message) {
	args := strings.TrimSpace(message.CommandArguments())
	if args == "" {
		b.setState(message.From.ID, &ConversationState{
			Command: "add",
			Step:    1,
			Data:    make(map[string]string),
		})
		b.reply(message.Chat.ID, "📖 Send the book as: book_id | title | author | genre")
		return
	}
	b.addBook(ctx, message, args)
}

func (b *Bot) addBook(ctx context.Context, message *tgbotapi.Message, args string) bool {
	entry, err := parseAddArgs(args)
	if err != nil {
		b.reply(message.Chat.ID, "❌ "+err.Error())
		return false
	}
	entry.UserID = readerID(message.From.ID)

	err = b.svc.Tracker.AddBook(ctx, entry)
	if errors.Is(err, activity.ErrAlreadyAdded) {
		b.reply(message.Chat.ID, fmt.Sprintf("%q is already in your library. Use /rate or /finish to update it.", entry.Title))
		return true
	}
	if err != nil {
		b.logger.Error("Failed to add book",
			zap.Error(err),
			zap.String("user_id", entry.UserID),
			zap.String("book_id", entry.BookID),
		)
		b.reply(message.Chat.ID, fmt.Sprintf("Error adding book: %v", err))
		return false
	}

	b.reply(message.Chat.ID, fmt.Sprintf("✅ Added %q to your library", entry.Title))
	return true
}

// parseAddArgs reads "book_id | title | author | genre"; author and genre are optional
func parseAddArgs(args string) (models.UserBookEntry, error) {
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 || len(parts) > 4 || parts[0] == "" || parts[1] == "" {
		return models.UserBookEntry{}, errors.New("expected: book_id | title | author | genre")
	}

	entry := models.UserBookEntry{BookID: parts[0], Title: parts[1], Status: models.StatusReading}
	if len(parts) > 2 {
		entry.Author = parts[2]
	}
	if len(parts) > 3 {
		entry.Genre = parts[3]
	}
	return entry, nil
}

// handleRate rates from arguments or offers the reader's books as buttons
func (b *Bot) handleRate(ctx context.Context, message *tgbotapi.Message) {
	fields := strings.Fields(message.CommandArguments())
	if len(fields) == 0 {
		b.showBookPicker(ctx, message, rateCallbackPrefix, "⭐ Select a book to rate:")
		return
	}
	if len(fields) != 2 {
		b.reply(message.Chat.ID, "Usage: /rate <book_id> <1-10>")
		return
	}

	rating, err := strconv.Atoi(fields[1])
	if err != nil {
		b.reply(message.Chat.ID, "❌ Rating must be a number from 1 to 10")
		return
	}
	b.rateBook(ctx, message.Chat.ID, message.From.ID, fields[0], rating)
}

func (b *Bot) rateBook(ctx context.Context, chatID, telegramID int64, bookID string, rating int) {
	userID := readerID(telegramID)
	err := b.svc.Tracker.RateBook(ctx, userID, bookID, rating)
	switch {
	case err == nil:
		b.reply(chatID, fmt.Sprintf("⭐ Rated %s: %d/10", bookID, rating))
	case errors.Is(err, activity.ErrInvalidRating):
		b.reply(chatID, "❌ Rating must be a number from 1 to 10")
	case errors.Is(err, storage.ErrNotFound):
		b.reply(chatID, fmt.Sprintf("Book %s is not in your library. Add it with /add first.", bookID))
	default:
		b.logger.Error("Failed to rate book", zap.Error(err), zap.String("user_id", userID), zap.String("book_id", bookID))
		b.reply(chatID, fmt.Sprintf("Error rating book: %v", err))
	}
}

// handleFinish marks a book completed
func (b *Bot) handleFinish(ctx context.Context, message *tgbotapi.Message) {
	bookID := strings.TrimSpace(message.CommandArguments())
	if bookID == "" {
		b.showBookPicker(ctx, message, finishCallbackPrefix, "✅ Select the book you finished:")
		return
	}
	b.finishBook(ctx, message.Chat.ID, message.From.ID, bookID)
}

func (b *Bot) finishBook(ctx context.Context, chatID, telegramID int64, bookID string) {
	userID := readerID(telegramID)
	err := b.svc.Tracker.FinishBook(ctx, userID, bookID)
	switch {
	case err == nil:
		b.reply(chatID, fmt.Sprintf("🎉 Marked %s as completed", bookID))
	case errors.Is(err, storage.ErrNotFound):
		b.reply(chatID, fmt.Sprintf("Book %s is not in your library.", bookID))
	default:
		b.logger.Error("Failed to finish book", zap.Error(err), zap.String("user_id", userID), zap.String("book_id", bookID))
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
	}
}

// showBookPicker lists the reader's library as inline buttons
func (b *Bot) showBookPicker(ctx context.Context, message *tgbotapi.Message, prefix, prompt string) {
	books, err := b.svc.DB.GetCollection(ctx, readerID(message.From.ID))
	if err != nil {
		b.logger.Error("Failed to load collection", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.reply(message.Chat.ID, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(books) == 0 {
		b.reply(message.Chat.ID, "Your library is empty. Add a book with /add.")
		return
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, prompt)
	msg.ReplyMarkup = bookKeyboard(books, prefix)
	b.sendMessage(msg)
}

func (b *Bot) handleSimilar(ctx context.Context, message *tgbotapi.Message) {
	similar, err := b.svc.Engine.FindSimilarUsers(ctx, readerID(message.From.ID), listLimit)
	if err != nil {
		b.replyError(message, "find similar readers", err)
		return
	}
	b.reply(message.Chat.ID, formatSimilarUsers(similar))
}

func (b *Bot) handleRecommend(ctx context.Context, message *tgbotapi.Message) {
	recs, err := b.svc.Engine.GetCollaborativeRecommendations(ctx, readerID(message.From.ID), listLimit)
	if err != nil {
		b.replyError(message, "build recommendations", err)
		return
	}
	b.reply(message.Chat.ID, formatRecommendations(recs))
}

func (b *Bot) handleTrending(ctx context.Context, message *tgbotapi.Message) {
	books, err := b.svc.Scorer.GetTrendingBooks(ctx, listLimit)
	if err != nil {
		b.replyError(message, "load trending books", err)
		return
	}
	b.reply(message.Chat.ID, formatPopularity("🔥 Trending now", books))
}

func (b *Bot) handleTrendingSimilar(ctx context.Context, message *tgbotapi.Message) {
	books, err := b.svc.Engine.GetTrendingAmongSimilarUsers(ctx, readerID(message.From.ID), listLimit)
	if err != nil {
		b.replyError(message, "load trending among similar readers", err)
		return
	}
	b.reply(message.Chat.ID, formatTrendingSimilar(books))
}

func (b *Bot) handleGenre(ctx context.Context, message *tgbotapi.Message) {
	genre := strings.TrimSpace(message.CommandArguments())
	if genre == "" {
		b.reply(message.Chat.ID, "Usage: /genre <name>")
		return
	}
	books, err := b.svc.Scorer.GetPopularBooksByGenre(ctx, genre, listLimit)
	if err != nil {
		b.replyError(message, "load popular books", err)
		return
	}
	b.reply(message.Chat.ID, formatPopularity("📚 Popular in "+genre, books))
}

func (b *Bot) handleAchievements(ctx context.Context, message *tgbotapi.Message) {
	records, err := b.svc.Evaluator.GetUserAchievements(ctx, readerID(message.From.ID))
	if err != nil {
		b.replyError(message, "load achievements", err)
		return
	}
	b.reply(message.Chat.ID, formatAchievements(b.svc.Evaluator.Catalog(), records))
}

func (b *Bot) handleProgress(ctx context.Context, message *tgbotapi.Message) {
	progress, err := b.svc.Evaluator.GetUserProgress(ctx, readerID(message.From.ID))
	if err != nil {
		b.replyError(message, "load progress", err)
		return
	}
	b.reply(message.Chat.ID, formatProgress(progress))
}

func (b *Bot) replyError(message *tgbotapi.Message, action string, err error) {
	b.logger.Error("Failed to "+action, zap.Error(err), zap.Int64("user_id", message.From.ID))
	b.reply(message.Chat.ID, fmt.Sprintf("Error: %v", err))
}
