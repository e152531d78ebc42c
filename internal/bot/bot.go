package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"desk-agenda/internal/model"
	"desk-agenda/internal/repository"
	"desk-agenda/internal/service"
	pkgLog "desk-agenda/pkg/log"
)

const (
	cbTogglePrefix = "toggle:"
	cbDeletePrefix = "delete:"

	sessionTTL  = 15 * time.Minute
	sessionSize = 256
)

// telegramAPI is the subset of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the Telegram front-end of the agenda. Every call into the task
// store happens under the shared agenda lock.
type Bot struct {
	l           pkgLog.Logger
	api         telegramAPI
	userRepo    *repository.UserRepository
	taskSvc     *service.TaskService
	reminderSvc *service.ReminderService
	lock        sync.Locker
	now         func() time.Time
	limiter     *rate.Limiter

	// Per-chat /add dialogs and the last listing shown, so row numbers in
	// /done and /delete refer to what the user saw.
	dialogs  *expirable.LRU[int64, *addDialog]
	listings *expirable.LRU[int64, []model.Task]
}

func New(token string, messagesPerSecond float64, userRepo *repository.UserRepository, taskSvc *service.TaskService, reminderSvc *service.ReminderService, lock sync.Locker, now func() time.Time, l pkgLog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	l.Infof(context.Background(), "Bot authorized on account %s", api.Self.UserName)
	return newBot(api, messagesPerSecond, userRepo, taskSvc, reminderSvc, lock, now, l), nil
}

func newBot(api telegramAPI, messagesPerSecond float64, userRepo *repository.UserRepository, taskSvc *service.TaskService, reminderSvc *service.ReminderService, lock sync.Locker, now func() time.Time, l pkgLog.Logger) *Bot {
	return &Bot{
		l:           l,
		api:         api,
		userRepo:    userRepo,
		taskSvc:     taskSvc,
		reminderSvc: reminderSvc,
		lock:        lock,
		now:         now,
		limiter:     rate.NewLimiter(rate.Limit(messagesPerSecond), 1),
		dialogs:     expirable.NewLRU[int64, *addDialog](sessionSize, nil, sessionTTL),
		listings:    expirable.NewLRU[int64, []model.Task](sessionSize, nil, sessionTTL),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.l.Info(ctx, "Start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.l.Errorf(ctx, "Failed to handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.l.Errorf(ctx, "Failed to handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.l.Debugf(ctx, "Command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if dialog, ok := b.dialogs.Get(msg.Chat.ID); ok {
		return b.handleDialog(ctx, msg.Chat.ID, dialog, msg.Text)
	}

	return b.sendText(ctx, msg.Chat.ID, "No entendí el mensaje. Usa /add para crear una tarea o /help para ver los comandos.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "stop":
		return b.handleStop(ctx, msg)
	case "help":
		return b.sendText(ctx, chatID, helpText)
	case "tasks":
		return b.sendTaskList(ctx, chatID)
	case "add":
		b.dialogs.Add(chatID, &addDialog{})
		return b.sendText(ctx, chatID, promptName)
	case "done":
		return b.handleToggle(ctx, chatID, msg.CommandArguments())
	case "delete":
		return b.handleDelete(ctx, chatID, msg.CommandArguments())
	case "report":
		return b.sendText(ctx, chatID, b.summary())
	case "export":
		return b.handleExport(ctx, chatID, msg.CommandArguments())
	case "import":
		return b.handleImport(ctx, chatID, msg.CommandArguments())
	case "cancel":
		b.dialogs.Remove(chatID)
		return b.sendText(ctx, chatID, "⏪ Creación de tarea cancelada.")
	default:
		return b.sendText(ctx, chatID, "Comando no soportado. Consulta /help.")
	}
}

const helpText = "ℹ️ <b>Comandos</b>\n" +
	"• /tasks — lista de tareas\n" +
	"• /add — crear una tarea paso a paso\n" +
	"• /done &lt;n&gt; — marcar o desmarcar la tarea n\n" +
	"• /delete &lt;n&gt; — borrar la tarea n\n" +
	"• /report — resumen de tareas\n" +
	"• /export &lt;ruta&gt; — exportar tareas a un archivo\n" +
	"• /import &lt;ruta&gt; — importar tareas de un archivo\n" +
	"• /start, /stop — activar o desactivar avisos\n" +
	"• /cancel — cancelar la creación en curso"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg); err != nil {
		return err
	}
	if err := b.userRepo.SetSubscribed(ctx, msg.From.ID, true); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "amigo"
	}
	text := fmt.Sprintf("👋 ¡Hola, %s! Recibirás los avisos y resúmenes de tu agenda.\n\n%s", html.EscapeString(name), helpText)
	return b.sendText(ctx, msg.Chat.ID, text)
}

func (b *Bot) handleStop(ctx context.Context, msg *tgbotapi.Message) error {
	err := b.userRepo.SetSubscribed(ctx, msg.From.ID, false)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return b.sendText(ctx, msg.Chat.ID, "🔕 Avisos desactivados. Usa /start para volver a activarlos.")
}

func (b *Bot) handleDialog(ctx context.Context, chatID int64, dialog *addDialog, text string) error {
	now := b.now()
	prompt := dialog.step(text, civil.DateOf(now))
	if !dialog.done() {
		b.dialogs.Add(chatID, dialog)
		return b.sendText(ctx, chatID, prompt)
	}
	b.dialogs.Remove(chatID)

	task, err := dialog.task()
	if err != nil {
		return b.sendText(ctx, chatID, fmt.Sprintf("No se pudo crear la tarea: %s", html.EscapeString(err.Error())))
	}

	b.lock.Lock()
	err = b.taskSvc.Add(ctx, task)
	b.lock.Unlock()
	if err != nil {
		b.l.Errorf(ctx, "Failed to add task %q: %v", task.Name, err)
		if !errors.Is(err, repository.ErrPersist) {
			return b.sendText(ctx, chatID, fmt.Sprintf("No se pudo crear la tarea: %s", html.EscapeString(err.Error())))
		}
		if sendErr := b.sendText(ctx, chatID, "⚠️ Tarea creada pero no se pudo guardar en disco."); sendErr != nil {
			return sendErr
		}
	} else {
		b.l.Infof(ctx, "Task created %s", task)
		row := service.RowFor(task, now)
		if err := b.sendText(ctx, chatID, "✅ <b>Tarea guardada</b>\n"+service.FormatRow(row)); err != nil {
			return err
		}
	}
	return b.sendTaskList(ctx, chatID)
}

func (b *Bot) handleToggle(ctx context.Context, chatID int64, arg string) error {
	task, ok, err := b.listed(ctx, chatID, arg, "/done")
	if !ok {
		return err
	}

	now := b.now()
	today := civil.DateOf(now)
	b.lock.Lock()
	current, found, err := b.taskSvc.ToggleCompletion(ctx, task, today)
	b.lock.Unlock()

	if !found {
		return b.sendText(ctx, chatID, "La tarea ya no existe. Vuelve a pedir /tasks.")
	}
	if err != nil {
		return b.sendText(ctx, chatID, "⚠️ Cambio aplicado pero no se pudo guardar en disco.")
	}

	if err := b.sendText(ctx, chatID, "🔄 "+service.FormatRow(service.RowFor(current, now))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID)
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, arg string) error {
	task, ok, err := b.listed(ctx, chatID, arg, "/delete")
	if !ok {
		return err
	}

	b.lock.Lock()
	err = b.taskSvc.Remove(ctx, task)
	b.lock.Unlock()

	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return b.sendText(ctx, chatID, "La tarea ya no existe. Vuelve a pedir /tasks.")
	case err != nil:
		return b.sendText(ctx, chatID, "⚠️ Tarea borrada pero no se pudo guardar en disco.")
	}
	if err := b.sendText(ctx, chatID, fmt.Sprintf("🗑 Tarea «%s» borrada.", html.EscapeString(task.Name))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID)
}

// listed resolves a 1-based row number against the last listing shown to
// chatID. When ok is false the user has already been answered.
func (b *Bot) listed(ctx context.Context, chatID int64, arg, command string) (model.Task, bool, error) {
	n, err := parseRowNumber(arg)
	if err != nil {
		return model.Task{}, false, b.sendText(ctx, chatID, fmt.Sprintf("Indica el número de la tarea: %s 2", command))
	}
	listing, ok := b.listings.Get(chatID)
	if !ok || n > len(listing) {
		return model.Task{}, false, b.sendText(ctx, chatID, "No encuentro esa fila. Pide /tasks y vuelve a intentarlo.")
	}
	return listing[n-1], true, nil
}

func (b *Bot) handleExport(ctx context.Context, chatID int64, arg string) error {
	path := strings.TrimSpace(arg)
	if path == "" {
		return b.sendText(ctx, chatID, "Indica la ruta: /export /home/yo/tareas.json")
	}

	b.lock.Lock()
	err := b.taskSvc.Export(ctx, path)
	b.lock.Unlock()
	if err != nil {
		b.l.Errorf(ctx, "Failed to export to %s: %v", path, err)
		return b.sendText(ctx, chatID, fmt.Sprintf("No se pudo exportar: %s", html.EscapeString(err.Error())))
	}
	return b.sendText(ctx, chatID, fmt.Sprintf("📤 Tareas exportadas a <code>%s</code>.", html.EscapeString(path)))
}

func (b *Bot) handleImport(ctx context.Context, chatID int64, arg string) error {
	path := strings.TrimSpace(arg)
	if path == "" {
		return b.sendText(ctx, chatID, "Indica la ruta: /import /home/yo/tareas.json")
	}

	b.lock.Lock()
	n, collisions, err := b.taskSvc.Import(ctx, path)
	b.lock.Unlock()
	switch {
	case errors.Is(err, repository.ErrImport):
		return b.sendText(ctx, chatID, fmt.Sprintf("No se pudo importar: %s", html.EscapeString(err.Error())))
	case err != nil:
		return b.sendText(ctx, chatID, fmt.Sprintf("📥 %d tareas importadas pero no se pudieron guardar en disco.", n))
	}

	text := fmt.Sprintf("📥 %d tareas importadas.", n)
	if collisions > 0 {
		text += fmt.Sprintf(" %d ya existían con el mismo nombre, fecha, hora y tipo.", collisions)
	}
	return b.sendText(ctx, chatID, text)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.l.Warnf(ctx, "Failed to ack callback: %v", err)
	}

	chatID := cb.Message.Chat.ID
	switch {
	case strings.HasPrefix(cb.Data, cbTogglePrefix):
		return b.handleToggle(ctx, chatID, strings.TrimPrefix(cb.Data, cbTogglePrefix))
	case strings.HasPrefix(cb.Data, cbDeletePrefix):
		return b.handleDelete(ctx, chatID, strings.TrimPrefix(cb.Data, cbDeletePrefix))
	default:
		return nil
	}
}

// sendTaskList shows the display-ordered tasks and remembers the order for
// row numbers.
func (b *Bot) sendTaskList(ctx context.Context, chatID int64) error {
	now := b.now()
	b.lock.Lock()
	tasks := b.taskSvc.ListForDisplay(now)
	b.lock.Unlock()

	b.listings.Add(chatID, tasks)
	if len(tasks) == 0 {
		return b.sendText(ctx, chatID, "No hay tareas. Crea una con /add.")
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Tareas</b>\n\n")
	buttons := make([][]tgbotapi.InlineKeyboardButton, 0, len(tasks))
	for i, task := range tasks {
		n := i + 1
		builder.WriteString(fmt.Sprintf("%d. %s\n", n, service.FormatRow(service.RowFor(task, now))))

		toggle := fmt.Sprintf("✅ %d · %s", n, shortTitle(task.Name, 20))
		if task.Completed {
			toggle = fmt.Sprintf("↩️ %d · %s", n, shortTitle(task.Name, 20))
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(toggle, cbTogglePrefix+strconv.Itoa(n)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+strconv.Itoa(n)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	return b.send(ctx, msg)
}

func (b *Bot) summary() string {
	now := b.now()
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.reminderSvc.Summary(now)
}

// NotifyAlert sends a fired alert to every subscribed chat. It is called by
// the alert sweep, which already holds the agenda lock.
func (b *Bot) NotifyAlert(ctx context.Context, task model.Task, now time.Time) error {
	row := service.RowFor(task, now)
	text := fmt.Sprintf("🔔 <b>Aviso</b>\n%s", service.FormatRow(row))
	return b.Broadcast(ctx, text)
}

// Broadcast sends text to every subscribed chat and returns the first
// delivery error.
func (b *Bot) Broadcast(ctx context.Context, text string) error {
	users, err := b.userRepo.ListSubscribed(ctx)
	if err != nil {
		return err
	}
	var firstErr error
	for _, user := range users {
		if err := b.sendText(ctx, user.ChatID, text); err != nil {
			b.l.Warnf(ctx, "Failed to send to chat %d: %v", user.ChatID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (b *Bot) ensureUser(ctx context.Context, msg *tgbotapi.Message) (*model.User, error) {
	from := msg.From
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, msg.Chat.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return b.send(ctx, msg)
}

func (b *Bot) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := b.api.Send(msg)
	return err
}

func parseRowNumber(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("row %d out of range", n)
	}
	return n, nil
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
