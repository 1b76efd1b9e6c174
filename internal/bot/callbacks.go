package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bookrec/internal/models"
)

const (
	rateCallbackPrefix   = "rate:"
	starsCallbackPrefix  = "stars:"
	finishCallbackPrefix = "finish:"
)

// bookKeyboard lays out library entries two per row
func bookKeyboard(books []models.UserBookEntry, prefix string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var currentRow []tgbotapi.InlineKeyboardButton
	for _, book := range books {
		label := book.Title
		if label == "" {
			label = book.BookID
		}
		currentRow = append(currentRow, tgbotapi.NewInlineKeyboardButtonData(label, prefix+book.BookID))
		if len(currentRow) == 2 {
			rows = append(rows, currentRow)
			currentRow = nil
		}
	}
	if len(currentRow) > 0 {
		rows = append(rows, currentRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ratingKeyboard offers 1-10 in two rows of five
func ratingKeyboard(bookID string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for start := 1; start <= 10; start += 5 {
		var row []tgbotapi.InlineKeyboardButton
		for n := start; n < start+5; n++ {
			data := fmt.Sprintf("%s%s:%d", starsCallbackPrefix, bookID, n)
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(n), data))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// handleRateBookCallback asks for a rating of the chosen book
func (b *Bot) handleRateBookCallback(query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		return
	}
	bookID := strings.TrimPrefix(query.Data, rateCallbackPrefix)
	msg := tgbotapi.NewMessage(query.Message.Chat.ID, fmt.Sprintf("How would you rate %s?", bookID))
	msg.ReplyMarkup = ratingKeyboard(bookID)
	b.sendMessage(msg)
}

// handleStarsCallback applies "stars:<book_id>:<n>"
func (b *Bot) handleStarsCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		return
	}
	payload := strings.TrimPrefix(query.Data, starsCallbackPrefix)
	sep := strings.LastIndex(payload, ":")
	if sep <= 0 {
		return
	}
	rating, err := strconv.Atoi(payload[sep+1:])
	if err != nil {
		return
	}
	b.rateBook(ctx, query.Message.Chat.ID, query.From.ID, payload[:sep], rating)
}

func (b *Bot) handleFinishCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		return
	}
	bookID := strings.TrimPrefix(query.Data, finishCallbackPrefix)
	b.finishBook(ctx, query.Message.Chat.ID, query.From.ID, bookID)
}
