package bot

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"bookrec/internal/achievements"
	"bookrec/internal/activity"
	"bookrec/internal/recommend"
	"bookrec/internal/storage"
	"bookrec/internal/trending"
)

// Services are the components the bot exposes as commands
type Services struct {
	DB        storage.Storage
	Engine    *recommend.Engine
	Scorer    *trending.Scorer
	Evaluator *achievements.Evaluator
	Tracker   *activity.Tracker
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api          *tgbotapi.BotAPI
	svc          Services
	allowedUsers map[int64]bool
	states       map[int64]*ConversationState
	statesMu     sync.Mutex
	logger       *zap.Logger
}

// ConversationState tracks the state of multi-step commands
type ConversationState struct {
	Command string
	Step    int
	Data    map[string]string
}
