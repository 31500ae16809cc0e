package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"routine-planner/internal/model"
	"routine-planner/internal/recurrence"
	"routine-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageCategory
	stageRepeat
	stageRepeatValue
	stageDueTime
	stageStartTime
	stageDeadline
)

type conversationState struct {
	stage  conversationStage
	repeat repeatKind
	input  service.TaskInput
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}
	b.log.Debug("conversation step", zap.Int("stage", int(state.stage)), zap.Int64("from", msg.From.ID))

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title cannot be empty.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a short description (or skip).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Pick a category or type your own (or skip).", categoryKeyboard())
	case stageCategory:
		if !isSkipInput(text) {
			state.input.Category = text
		}
		state.stage = stageRepeat
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 How does it repeat?", repeatKeyboard())
	case stageRepeat:
		kind, ok := parseRepeatKind(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Pick one of the options below.", repeatKeyboard())
		}
		state.repeat = kind
		if kind == repeatNone {
			state.stage = stageDeadline
			return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Due date as <code>2025-11-30</code> or <code>2025-11-30 18:00</code> (or skip).", skipKeyboard())
		}
		state.stage = stageRepeatValue
		return b.sendWithReplyMarkup(msg.Chat.ID, repeatPrompt(kind), cancelKeyboard())
	case stageRepeatValue:
		mode, err := parseRepeatValue(state.repeat, text)
		if err == nil {
			err = recurrence.ValidateMode(mode)
		}
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("%s\n%s", escape(err.Error()), repeatPrompt(state.repeat)), cancelKeyboard())
		}
		state.input.Repeat = mode
		state.stage = stageDueTime
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Due time as <code>21:00</code> (skip keeps the current time).", skipKeyboard())
	case stageDueTime:
		if !isSkipInput(text) {
			clock, err := model.ParseTimeOfDay(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Use the format <code>21:00</code> or skip.", skipKeyboard())
			}
			state.input.DueTime = clock
		}
		state.stage = stageStartTime
		return b.sendWithReplyMarkup(msg.Chat.ID, "🕘 Earliest time it can be done, e.g. <code>07:00</code> (or skip).", skipKeyboard())
	case stageStartTime:
		if !isSkipInput(text) {
			clock, err := model.ParseTimeOfDay(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Use the format <code>07:00</code> or skip.", skipKeyboard())
			}
			state.input.StartTime = clock
		}
		b.clearConversation(msg.From.ID)
		return b.finishTaskCreation(ctx, msg.From, state.input, msg.Chat.ID)
	case stageDeadline:
		if !isSkipInput(text) {
			due, err := parseDeadline(text, b.clock().Location())
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Cannot read the date. Use <code>2025-11-30</code> or skip.", skipKeyboard())
			}
			state.input.DueDate = &due
		}
		b.clearConversation(msg.From.ID)
		return b.finishTaskCreation(ctx, msg.From, state.input, msg.Chat.ID)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "The dialog was reset. Try /newtask again.")
	}
}

func repeatPrompt(kind repeatKind) string {
	switch kind {
	case repeatInterval:
		return "📆 Every how many days? (1 means daily)"
	case repeatWeekdays:
		return "📅 On which weekdays? e.g. <code>mon, wed, fri</code>"
	case repeatTimesPerWeek:
		return "🎯 How many times a week? (1–7)"
	default:
		return ""
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, from *tgbotapi.User, input service.TaskInput, chatID int64) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	now := b.clock()
	task, err := b.taskSvc.CreateTask(ctx, user, input, now)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not save the task: %s", escape(err.Error())))
	}

	msg := tgbotapi.NewMessage(chatID, formatCreated(*task, now.Location()))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}
