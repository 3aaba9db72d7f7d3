package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"daily-driver/internal/cache"
	"daily-driver/internal/config"
	"daily-driver/internal/model"
	"daily-driver/internal/service"
	"daily-driver/internal/session"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageCategoryName
	stageFirstTask
	stageTaskText
)

const (
	cbOpenPrefix    = "open:"
	cbDeleteCat     = "delcat:"
	cbConfirmPrefix = "confirm:"
	cbCancelPrefix  = "cancel:"
	cbDeleteTask    = "deltask:"
)

const (
	btnSkip             = "⏭️ Skip"
	btnCancelDialog     = "⏪ Cancel"
	menuLabelHome       = "🏠 Home"
	menuLabelCategories = "📂 Categories"
	menuLabelNew        = "➕ New category"
	menuLabelRecent     = "🕘 Recent"
)

type conversationState struct {
	stage      conversationStage
	name       string
	categoryID string
}

type homeMessage struct {
	chatID    int64
	messageID int
}

// Deps are the sync core pieces the bot drives.
type Deps struct {
	Cache    *cache.UserData
	Sessions *session.Manager
	Tokens   *session.TokenIssuer
	Profiles *service.ProfileService
	Mutator  *service.Mutator
	Recent   *service.RecentTasks
}

// Bot is the Telegram view over the signed-in user's data.
type Bot struct {
	api     *tgbotapi.BotAPI
	deps    Deps
	log     logrus.FieldLogger
	ownerID int64
	timeout time.Duration

	homeDirty chan struct{}

	mu            sync.Mutex
	conversations map[int64]*conversationState
	confirmations map[int64]string
	selected      map[int64]string
	home          homeMessage
	lastChat      int64
}

func New(cfg config.Config, deps Deps, log logrus.FieldLogger) (*Bot, error) {
	if cfg.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_TOKEN is required")
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.WithField("account", api.Self.UserName).Info("bot authorized")

	return &Bot{
		api:           api,
		deps:          deps,
		log:           log,
		ownerID:       cfg.TelegramOwnerID,
		timeout:       cfg.OperationTimeout,
		homeDirty:     make(chan struct{}, 1),
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]string),
		selected:      make(map[int64]string),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	unsubscribe := b.deps.Cache.Subscribe(func(*model.UserData) {
		select {
		case b.homeDirty <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()
	go b.homeLoop(ctx)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.WithError(err).Warn("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.WithError(err).Warn("handle message")
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !b.allowed(msg.From.ID) {
		return b.sendText(msg.Chat.ID, "This bot is private.")
	}
	b.rememberChat(msg.Chat.ID)

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.WithFields(logrus.Fields{"from": msg.From.ID, "command": msg.Command()}).Info("command")
		return b.handleCommand(ctx, msg)
	}

	if b.getConversation(msg.From.ID) != nil {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Try /home or /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start", "help":
		return b.handleHelp(msg)
	case "login":
		return b.handleLogin(ctx, msg)
	case "logout":
		return b.handleLogout(msg)
	case "home":
		return b.sendHome(msg.Chat.ID)
	case "categories":
		return b.handleCategories(msg.Chat.ID, msg.CommandArguments())
	case "newcategory":
		return b.startNewCategory(msg)
	case "addtask":
		return b.handleAddTask(ctx, msg)
	case "recent":
		return b.sendText(msg.Chat.ID, formatRecent(b.deps.Recent.Project()))
	case "profile":
		return b.handleProfile(msg.Chat.ID)
	case "refresh":
		return b.handleRefresh(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Daily Driver</b>\n" +
		"• /login &lt;token&gt; sign in\n" +
		"• /home overview of categories and recent tasks\n" +
		"• /categories [search] list categories\n" +
		"• /newcategory create a category\n" +
		"• /addtask [text] add a task to the open category\n" +
		"• /recent latest tasks\n" +
		"• /profile your account\n" +
		"• /refresh reload your data\n" +
		"• /logout sign out\n" +
		"• /cancel stop the current input"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleLogin(ctx context.Context, msg *tgbotapi.Message) error {
	token := strings.TrimSpace(msg.CommandArguments())
	if token == "" {
		return b.sendText(msg.Chat.ID, "Send your token: /login &lt;token&gt;")
	}
	// The token should not stay in the chat history.
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		b.log.WithError(err).Debug("delete login message")
	}

	userID, err := b.deps.Tokens.Verify(token)
	if err != nil {
		b.log.WithError(err).WithField("from", msg.From.ID).Warn("login rejected")
		return b.sendText(msg.Chat.ID, "⚠️ That token is not valid.")
	}
	b.deps.Sessions.SignIn(userID)
	b.resetView(msg.From.ID)

	if snap := b.deps.Cache.Read(); snap == nil || snap.ID != userID {
		// Bind logs the reason; surface it through a direct load.
		loadCtx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		if err := b.deps.Profiles.Load(loadCtx, userID); err != nil {
			return b.sendOutcome(msg.Chat.ID, err, "")
		}
	}
	return b.sendHome(msg.Chat.ID)
}

func (b *Bot) handleLogout(msg *tgbotapi.Message) error {
	b.deps.Sessions.SignOut()
	b.resetView(msg.From.ID)
	b.mu.Lock()
	b.home = homeMessage{}
	b.mu.Unlock()
	return b.sendText(msg.Chat.ID, "👋 Signed out.")
}

func (b *Bot) handleProfile(chatID int64) error {
	snap := b.deps.Cache.Read()
	if snap == nil {
		return b.sendOutcome(chatID, b.notReady(), "")
	}
	return b.sendText(chatID, formatProfile(snap))
}

func (b *Bot) handleRefresh(ctx context.Context, msg *tgbotapi.Message) error {
	opCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.deps.Profiles.Refresh(opCtx); err != nil {
		return b.sendOutcome(msg.Chat.ID, err, "")
	}
	return b.sendHome(msg.Chat.ID)
}

func (b *Bot) sendHome(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, b.homeText())
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	sent, err := b.api.Send(msg)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.home = homeMessage{chatID: chatID, messageID: sent.MessageID}
	b.mu.Unlock()
	return nil
}

func (b *Bot) homeText() string {
	return formatHome(b.deps.Cache.Read(), b.deps.Recent.Project(), time.Now())
}

// homeLoop keeps the last home message in step with the cache.
func (b *Bot) homeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.homeDirty:
		}

		b.mu.Lock()
		home := b.home
		b.mu.Unlock()
		if home.messageID == 0 {
			continue
		}

		edit := tgbotapi.NewEditMessageText(home.chatID, home.messageID, b.homeText())
		edit.ParseMode = tgbotapi.ModeHTML
		if _, err := b.api.Send(edit); err != nil {
			b.log.WithError(err).Debug("update home message")
		}
	}
}

func (b *Bot) handleCategories(chatID int64, query string) error {
	snap := b.deps.Cache.Read()
	if snap == nil {
		return b.sendOutcome(chatID, b.notReady(), "")
	}
	filtered := service.FilterCategories(snap.Categories, query)
	text := formatCategoryList(filtered, query)
	if len(filtered) == 0 {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, categoryListKeyboard(filtered))
}

func (b *Bot) startNewCategory(msg *tgbotapi.Message) error {
	if b.deps.Cache.Read() == nil {
		return b.sendOutcome(msg.Chat.ID, b.notReady(), "")
	}
	b.setConversation(msg.From.ID, &conversationState{stage: stageCategoryName})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New category.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleAddTask(ctx context.Context, msg *tgbotapi.Message) error {
	categoryID := b.getSelected(msg.From.ID)
	if categoryID == "" {
		return b.sendText(msg.Chat.ID, "Open a category first: /categories")
	}
	if text := strings.TrimSpace(msg.CommandArguments()); text != "" {
		return b.addTask(ctx, msg.Chat.ID, categoryID, text)
	}
	b.setConversation(msg.From.ID, &conversationState{stage: stageTaskText, categoryID: categoryID})
	return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ What is the task?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageCategoryName:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The name cannot be empty.", cancelKeyboard())
		}
		state.name = text
		state.stage = stageFirstTask
		return b.sendWithReplyMarkup(msg.Chat.ID, "<b>Step 2:</b> add a first task, or skip.", skipKeyboard())
	case stageFirstTask:
		firstTask := text
		if isSkipInput(text) {
			firstTask = ""
		}
		b.clearConversation(msg.From.ID)
		return b.addCategory(ctx, msg.From.ID, msg.Chat.ID, state.name, firstTask)
	case stageTaskText:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The task cannot be empty.", cancelKeyboard())
		}
		b.clearConversation(msg.From.ID)
		return b.addTask(ctx, msg.Chat.ID, state.categoryID, text)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Dialog reset. Start again with /newcategory.")
	}
}

func (b *Bot) addCategory(ctx context.Context, userID, chatID int64, name, firstTask string) error {
	opCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	category, err := b.deps.Mutator.AddCategory(opCtx, name, firstTask)
	if err != nil {
		return b.sendOutcome(chatID, err, "")
	}
	b.setSelected(userID, category.ID)
	if err := b.sendOutcome(chatID, nil, fmt.Sprintf("✅ Category «%s» created.", escape(category.Name))); err != nil {
		return err
	}
	return b.sendCategory(chatID, category.ID)
}

func (b *Bot) addTask(ctx context.Context, chatID int64, categoryID, text string) error {
	opCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	task, err := b.deps.Mutator.AddTaskToCategory(opCtx, categoryID, text)
	if err != nil {
		return b.sendOutcome(chatID, err, "")
	}
	if err := b.sendOutcome(chatID, nil, fmt.Sprintf("✅ Added «%s».", escape(task.Task))); err != nil {
		return err
	}
	return b.sendCategory(chatID, categoryID)
}

func (b *Bot) sendCategory(chatID int64, categoryID string) error {
	snap := b.deps.Cache.Read()
	if snap == nil {
		return b.sendOutcome(chatID, b.notReady(), "")
	}
	idx := model.FindCategory(snap.Categories, categoryID)
	if idx < 0 {
		return b.sendText(chatID, "That category no longer exists.")
	}
	category := snap.Categories[idx]
	msg := tgbotapi.NewMessage(chatID, formatCategory(category))
	msg.ParseMode = tgbotapi.ModeHTML
	if kb, ok := taskKeyboard(category); ok {
		msg.ReplyMarkup = kb
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.WithError(err).Debug("callback ack")
	}
	if !b.allowed(cb.From.ID) {
		return nil
	}

	chatID := cb.Message.Chat.ID
	action, arg := parseCallback(cb.Data)
	b.log.WithFields(logrus.Fields{"from": cb.From.ID, "action": action, "arg": arg}).Info("callback")

	switch action {
	case cbOpenPrefix:
		b.setSelected(cb.From.ID, arg)
		return b.sendCategory(chatID, arg)
	case cbDeleteCat:
		return b.askDeleteCategory(chatID, cb.From.ID, arg)
	case cbConfirmPrefix:
		return b.confirmDeleteCategory(ctx, chatID, cb.From.ID, arg)
	case cbCancelPrefix:
		b.clearConfirmation(cb.From.ID)
		return b.sendText(chatID, "Kept it.")
	case cbDeleteTask:
		return b.removeTask(ctx, chatID, arg)
	default:
		return nil
	}
}

func (b *Bot) askDeleteCategory(chatID, userID int64, categoryID string) error {
	snap := b.deps.Cache.Read()
	if snap == nil {
		return b.sendOutcome(chatID, b.notReady(), "")
	}
	idx := model.FindCategory(snap.Categories, categoryID)
	if idx < 0 {
		return b.sendText(chatID, "That category no longer exists.")
	}
	category := snap.Categories[idx]
	b.setConfirmation(userID, categoryID)
	text := fmt.Sprintf("Delete «%s» and its %s?", escape(category.Name), plural(len(category.Tasks), "task"))
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard(categoryID))
}

func (b *Bot) confirmDeleteCategory(ctx context.Context, chatID, userID int64, categoryID string) error {
	pending, ok := b.getConfirmation(userID)
	b.clearConfirmation(userID)
	if !ok || pending != categoryID {
		return b.sendText(chatID, "This confirmation has expired.")
	}

	opCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.deps.Mutator.RemoveCategory(opCtx, categoryID); err != nil {
		return b.sendOutcome(chatID, err, "")
	}
	if b.getSelected(userID) == categoryID {
		b.setSelected(userID, "")
	}
	return b.sendOutcome(chatID, nil, "🗑 Category deleted.")
}

func (b *Bot) removeTask(ctx context.Context, chatID int64, taskID string) error {
	categoryID, task, ok := findTask(b.deps.Cache.Read(), taskID)
	if !ok {
		return b.sendText(chatID, "That task no longer exists.")
	}

	opCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.deps.Mutator.RemoveTask(opCtx, categoryID, taskID); err != nil {
		return b.sendOutcome(chatID, err, "")
	}
	if err := b.sendOutcome(chatID, nil, fmt.Sprintf("🗑 Removed «%s».", escape(task.Task))); err != nil {
		return err
	}
	return b.sendCategory(chatID, categoryID)
}

// SendRecentDigest sends the latest tasks to the owner chat.
func (b *Bot) SendRecentDigest(ctx context.Context) error {
	chatID := b.digestChat()
	if chatID == 0 {
		return nil
	}
	if _, ok := b.deps.Sessions.CurrentUser(); !ok {
		return service.ErrNotAuthenticated
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	text := "☀️ <b>Your recent tasks</b>\n\n" + formatRecent(b.deps.Recent.Project())
	return b.sendText(chatID, text)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelHome):
		return true, b.sendHome(msg.Chat.ID)
	case strings.ToLower(menuLabelCategories):
		return true, b.handleCategories(msg.Chat.ID, "")
	case strings.ToLower(menuLabelNew):
		return true, b.startNewCategory(msg)
	case strings.ToLower(menuLabelRecent):
		return true, b.sendText(msg.Chat.ID, formatRecent(b.deps.Recent.Project()))
	default:
		return false, nil
	}
}

// notReady explains why there is no data to show.
func (b *Bot) notReady() error {
	if _, ok := b.deps.Sessions.CurrentUser(); !ok {
		return service.ErrNotAuthenticated
	}
	return service.ErrNotLoaded
}

func (b *Bot) sendOutcome(chatID int64, err error, success string) error {
	outcome := service.Describe(err)
	if outcome.OK {
		if success == "" {
			success = outcome.Message
		}
		return b.sendText(chatID, success)
	}
	return b.sendText(chatID, "⚠️ "+escape(outcome.Message))
}

func (b *Bot) allowed(userID int64) bool {
	return b.ownerID == 0 || b.ownerID == userID
}

func (b *Bot) rememberChat(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastChat = chatID
}

func (b *Bot) digestChat() int64 {
	if b.ownerID != 0 {
		return b.ownerID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastChat
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) resetView(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
	delete(b.confirmations, userID)
	delete(b.selected, userID)
}

func (b *Bot) getConfirmation(userID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.confirmations[userID]
	return id, ok
}

func (b *Bot) setConfirmation(userID int64, categoryID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = categoryID
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) getSelected(userID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selected[userID]
}

func (b *Bot) setSelected(userID int64, categoryID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if categoryID == "" {
		delete(b.selected, userID)
		return
	}
	b.selected[userID] = categoryID
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

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}
