package bot

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mattn/go-runewidth"

	"audience-bot/cmd/bot/config"
	"audience-bot/internal/adapters/parser"
	"audience-bot/internal/storage"
)

const (
	startCommand   = "start"
	helpCommand    = "help"
	resetCommand   = "reset"
	statusCommand  = "status"
	processCommand = "process"

	// Telegram не принимает сообщения длиннее 4096 символов.
	maxMessageLength = 4096
)

const startText = "Этот бот принимает файлы истории Telegram-чата и собирает список участников.\n" +
	"Отправьте файлы истории чата в формате JSON или HTML. После загрузки файлов используйте /process."

const helpTextTemplate = "Команды:\n" +
	"/start – приветствие.\n" +
	"/help или ? – справка по форматам и лимитам.\n" +
	"/reset – очистить текущую сессию.\n" +
	"/status – количество загруженных файлов.\n" +
	"/process [chat|file] – построить отчёт (текст или Excel); опционально указать формат доставки.\n\n" +
	"Сессия: корзина ваших загрузок до вызова /process или /reset; хранится до %d минут.\n" +
	"Лимиты на одну сессию: до %d файлов, каждый ≤ %d МБ. " +
	"Формат отчёта: текст, если участников ≤ %d; иначе Excel.\n" +
	"Формат данных: JSON — предпочтителен (есть user_id, точная дедупликация). " +
	"HTML — поддерживается, но беден данными (только отображаемые имена), возможны дубли. " +
	"Рекомендуем присылать JSON и не смешивать форматы данных в одной сессии."

const (
	resetText        = "Сессия очищена, можете загрузить новые файлы истории чата."
	noFilesText      = "Файлы истории чата не загружены. Отправьте данные, прежде чем вызывать /process."
	sessionLimitText = "Достигнут лимит файлов. Удали старые и попробуй снова."
	sizeLimitText    = "Файл превышает максимальный допустимый размер."
	mixedFormatText  = "В одной сессии нельзя смешивать разные форматы данных (JSON и HTML). " +
		"Заверши обработку /process или сбрось сессию /reset, затем загружай файлы одного формата данных."
	unknownFormatText = "Формат файла не похож на файл истории Telegram-чата (JSON/HTML). Проверьте данные и попробуйте снова."
)

// Bot представляет собой основной объект Telegram-бота.
type Bot struct {
	api          *tgbotapi.BotAPI
	cfg          config.BotConfig
	serverClient *ServerClient
	taskStore    *TaskStore
	sessions     *SessionStore
	tempStore    storage.TempStorage
	logger       *slog.Logger
}

// NewBot создает и инициализирует новый экземпляр бота.
func NewBot(cfg config.BotConfig, serverClient *ServerClient, taskStore *TaskStore, sessions *SessionStore, tempStore storage.TempStorage, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}

	logger.Info("Authorized on account", slog.String("username", api.Self.UserName))

	return &Bot{
		api:          api,
		cfg:          cfg,
		serverClient: serverClient,
		taskStore:    taskStore,
		sessions:     sessions,
		tempStore:    tempStore,
		logger:       logger,
	}, nil
}

// Start запускает основной цикл обработки обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Context cancelled, stopping bot...")
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if msg.Document != nil {
		b.handleDocument(ctx, msg)
		return
	}

	if strings.TrimSpace(msg.Text) == "?" {
		b.replyText(msg.Chat.ID, b.helpText())
		return
	}

	b.replyText(msg.Chat.ID, "Отправьте файл истории чата (JSON или HTML) либо команду /help.")
}

// handleCommand обрабатывает команды.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case startCommand:
		b.sessions.Clear(chatID)
		b.replyText(chatID, startText)
	case helpCommand:
		b.replyText(chatID, b.helpText())
	case resetCommand:
		b.sessions.Clear(chatID)
		b.replyText(chatID, resetText)
	case statusCommand:
		session := b.sessions.Get(chatID)
		if len(session.Files) == 0 {
			b.replyText(chatID, "Файлы не загружены.")
			return
		}
		b.replyText(chatID, fmt.Sprintf("Загружено %d файлов. /process → запуск обработки.", len(session.Files)))
	case processCommand:
		b.handleProcess(ctx, msg)
	default:
		b.replyText(chatID, "Я не знаю такой команды.")
	}
}

// helpText подставляет текущие лимиты в шаблон справки.
func (b *Bot) helpText() string {
	return fmt.Sprintf(helpTextTemplate,
		b.cfg.SessionTTLMinutes,
		b.cfg.MaxFiles,
		b.cfg.MaxFileSizeMB,
		b.cfg.ReportTextThreshold,
	)
}

// handleDocument принимает файл экспорта в сессию чата.
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	logger := b.logger.With(slog.Int64("chat_id", chatID))

	if _, ok := b.taskStore.Get(chatID); ok {
		logger.Warn("user tried to upload a file while a task is active")
		b.replyText(chatID, "Пожалуйста, подождите завершения предыдущей задачи, прежде чем загружать новые файлы.")
		return
	}

	session := b.sessions.Get(chatID)
	if len(session.Files) >= b.cfg.MaxFiles {
		logger.Info("upload rejected", slog.String("reason", "max_files"))
		b.replyText(chatID, sessionLimitText)
		return
	}
	if msg.Document.FileSize > b.cfg.MaxFileSizeMB<<20 {
		logger.Info("upload rejected", slog.String("reason", "file_size"), slog.Int("size", msg.Document.FileSize))
		b.replyText(chatID, sizeLimitText)
		return
	}

	content, err := b.downloadDocument(msg.Document)
	if err != nil {
		logger.Error("failed to download document", slog.String("error", err.Error()))
		b.replyText(chatID, "Не удалось скачать файл. Попробуйте отправить его еще раз.")
		return
	}

	if len(content) > b.cfg.MaxFileSizeMB<<20 {
		logger.Info("upload rejected", slog.String("reason", "file_size"), slog.Int("size", len(content)))
		b.replyText(chatID, sizeLimitText)
		return
	}

	formatClass, err := detectFormatClass(content)
	if err != nil {
		logger.Info("upload rejected", slog.String("reason", "unknown_format"), slog.String("file_name", msg.Document.FileName))
		b.replyText(chatID, unknownFormatText)
		return
	}
	if session.ExportFormat != "" && session.ExportFormat != formatClass {
		logger.Info("upload rejected",
			slog.String("reason", "mixed_format"),
			slog.String("expected_format", session.ExportFormat),
			slog.String("got_format", formatClass),
		)
		b.replyText(chatID, mixedFormatText)
		return
	}

	ref, err := b.tempStore.Save(msg.Document.FileName, content, msg.Document.MimeType)
	if err != nil {
		logger.Error("failed to save uploaded file", slog.String("error", err.Error()))
		b.replyText(chatID, "Не удалось сохранить файл. Пожалуйста, попробуйте позже.")
		return
	}

	session.AddFile(ref)
	if session.ExportFormat == "" {
		session.ExportFormat = formatClass
	}
	b.sessions.Save(session)

	logger.Info("upload accepted", slog.String("file_name", msg.Document.FileName), slog.Int("size", len(content)))
	b.replyText(chatID, fmt.Sprintf("Файл '%s' загружен (%d).", msg.Document.FileName, len(session.Files)))
}

// downloadDocument скачивает документ из Telegram целиком.
func (b *Bot) downloadDocument(doc *tgbotapi.Document) ([]byte, error) {
	fileURL, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file direct url: %w", err)
	}

	resp, err := http.Get(fileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// detectFormatClass сводит формат файла к логическому классу для
// UX-ограничения "не смешивать форматы": JSON и ZIP — один класс.
func detectFormatClass(content []byte) (string, error) {
	format, err := parser.DetectFormat(content)
	if err != nil {
		return "", err
	}
	if format == parser.FormatHTML {
		return FormatClassHTML, nil
	}
	return FormatClassStructured, nil
}

// handleProcess запускает обработку накопленной сессии на бэкенде.
func (b *Bot) handleProcess(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	logger := b.logger.With(slog.Int64("chat_id", chatID))

	if _, ok := b.taskStore.Get(chatID); ok {
		logger.Warn("user tried to start a new task while another is active")
		b.replyText(chatID, "Пожалуйста, подождите завершения предыдущей задачи, прежде чем начинать новую.")
		return
	}

	session := b.sessions.Get(chatID)
	if len(session.Files) == 0 {
		b.replyText(chatID, noFilesText)
		return
	}

	target := strings.TrimSpace(msg.CommandArguments()) // "", "chat" или "file"

	files := make([]DocumentFile, 0, len(session.Files))
	for _, ref := range session.Files {
		content, err := b.tempStore.Read(ref)
		if err != nil {
			logger.Error("failed to read session file", slog.String("error", err.Error()))
			b.sessions.Clear(chatID)
			b.replyText(chatID, "Не удалось обработать файлы истории чата. Попробуй позже.")
			return
		}
		files = append(files, DocumentFile{Name: ref.Filename, Content: bytes.NewReader(content)})
	}

	startResp, err := b.serverClient.StartTask(ctx, files)
	if err != nil {
		logger.Error("failed to start task on backend", slog.String("error", err.Error()))
		b.replyText(chatID, "Не удалось начать обработку файлов на сервере. Пожалуйста, попробуйте позже.")
		return
	}

	// Сессия выполнила свое назначение: блобы удаляются сразу.
	b.sessions.Clear(chatID)

	taskID := startResp.TaskID
	logger = logger.With(slog.String("task_id", taskID))
	logger.Info("task started on backend")

	b.taskStore.Set(chatID, taskID)
	go b.pollTaskStatus(context.Background(), chatID, taskID, target) // Новый контекст: опрос живет дольше запроса

	b.replyText(chatID, "✅ Файлы получены и поставлены в очередь на обработку. Ожидайте результата.")
}

// pollTaskStatus асинхронно опрашивает статус задачи на бэкенд-сервере.
func (b *Bot) pollTaskStatus(ctx context.Context, chatID int64, taskID, target string) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("task_id", taskID))
	defer b.taskStore.Delete(chatID) // Гарантированно удаляем задачу по завершении.

	ticker := time.NewTicker(time.Duration(b.cfg.PollingIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Warn("polling cancelled by context")
			return
		case <-ticker.C:
			logger.Debug("polling task status")
			status, err := b.serverClient.GetTaskStatus(ctx, taskID)
			if err != nil {
				logger.Error("failed to get task status", slog.String("error", err.Error()))
				continue
			}

			switch status.Status {
			case "completed":
				logger.Info("task completed")
				b.deliverReport(ctx, chatID, taskID, target)
				return
			case "failed":
				logger.Warn("task failed", slog.String("reason", status.ErrorMessage))
				b.replyText(chatID, fmt.Sprintf("Произошла ошибка при обработке файлов: %s", status.ErrorMessage))
				return
			case "pending", "processing":
				logger.Debug("task is in progress", slog.String("status", status.Status))
			default:
				logger.Warn("unknown task status", slog.String("status", status.Status))
			}
		}
	}
}

// deliverReport получает готовый отчет и отправляет его пользователю.
func (b *Bot) deliverReport(ctx context.Context, chatID int64, taskID, target string) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("task_id", taskID))

	report, err := b.serverClient.GetReport(ctx, taskID)
	if err != nil {
		logger.Error("failed to fetch report", slog.String("error", err.Error()))
		b.replyText(chatID, "Не удалось получить отчет для выполненной задачи. Пожалуйста, попробуйте позже.")
		return
	}

	if report.Format == "excel" {
		if target == "chat" {
			b.replyText(chatID, "Слишком много участников для текста. Отправляем файл.")
		}
		b.sendExcelReport(chatID, report)
		return
	}

	if report.Text == "" {
		b.replyText(chatID, "Отчёт пуст.")
		return
	}

	if target == "file" {
		b.replyText(chatID, "Отчёт небольшой, отправляем текст в чат (Excel не требуется).")
	}
	b.sendTextReport(chatID, report)
}

// sendExcelReport отправляет табличный отчет как документ.
func (b *Bot) sendExcelReport(chatID int64, report *ReportResponse) {
	fileName := fmt.Sprintf("audience-report_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	fileBytes := tgbotapi.FileBytes{
		Name:  fileName,
		Bytes: report.ExcelBytes,
	}

	msg := tgbotapi.NewDocument(chatID, fileBytes)
	msg.Caption = fmt.Sprintf("Анализ завершен. Найдено %d участников.", report.ParticipantCount)
	b.sendMessage(msg)
}

// sendTextReport отправляет текстовый отчет моноширинным блоком.
// Сообщение длиннее лимита Telegram уходит текстовым файлом.
func (b *Bot) sendTextReport(chatID int64, report *ReportResponse) {
	lineWidth := b.cfg.Render.User + b.cfg.Render.Name

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Найдено %d участников.\n", report.ParticipantCount))
	sb.WriteString("<pre><code>")
	for _, line := range strings.Split(report.Text, "\n") {
		clean := html.EscapeString(strings.ToValidUTF8(line, ""))
		for _, wrapped := range wrapString(clean, lineWidth) {
			sb.WriteString(wrapped)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("</code></pre>")

	text := sb.String()
	if len(text) > maxMessageLength {
		b.logger.Warn("сгенерированный текст слишком длинный, отправка в виде файла", "length", len(text))
		b.sendReportAsTextFile(chatID, report)
		return
	}

	reply := tgbotapi.NewMessage(chatID, text)
	reply.ParseMode = tgbotapi.ModeHTML
	b.sendMessage(reply)
}

// sendReportAsTextFile отправляет текстовый отчет в виде файла.
func (b *Bot) sendReportAsTextFile(chatID int64, report *ReportResponse) {
	fileName := fmt.Sprintf("audience-report_%s.txt", time.Now().Format("2006-01-02_15-04-05"))
	fileBytes := tgbotapi.FileBytes{
		Name:  fileName,
		Bytes: []byte(report.Text),
	}

	msg := tgbotapi.NewDocument(chatID, fileBytes)
	msg.Caption = fmt.Sprintf("Анализ завершен. Найдено %d участников. Список слишком большой для одного сообщения, поэтому он прикреплен в виде файла.", report.ParticipantCount)
	b.sendMessage(msg)
}

func (b *Bot) replyText(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send message", slog.String("error", err.Error()))
	}
}

// wrapString разбивает строку на части заданной ширины с учетом
// реальной ширины рун. Перенос идет по границам слов; слово длиннее
// ширины ломается посередине.
func wrapString(s string, width int) []string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return []string{s}
	}

	var lines []string
	words := strings.Fields(s)

	if len(words) == 0 { // Строка из одних пробелов
		runes := []rune(s)
		for len(runes) > 0 {
			i := 0
			currentWidth := 0
			for i < len(runes) {
				rw := runewidth.RuneWidth(runes[i])
				if currentWidth+rw > width {
					break
				}
				currentWidth += rw
				i++
			}
			lines = append(lines, string(runes[:i]))
			runes = runes[i:]
		}
		if len(lines) == 0 {
			return []string{""}
		}
		return lines
	}

	var currentLine strings.Builder
	for _, word := range words {
		wordWidth := runewidth.StringWidth(word)

		if wordWidth > width {
			if currentLine.Len() > 0 {
				lines = append(lines, currentLine.String())
				currentLine.Reset()
			}

			runes := []rune(word)
			for len(runes) > 0 {
				i := 0
				currentWidth := 0
				for i < len(runes) {
					rw := runewidth.RuneWidth(runes[i])
					if currentWidth+rw > width {
						break
					}
					currentWidth += rw
					i++
				}
				lines = append(lines, string(runes[:i]))
				runes = runes[i:]
			}
			continue
		}

		lineLen := runewidth.StringWidth(currentLine.String())
		if lineLen > 0 && lineLen+1+wordWidth > width {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
		}

		if currentLine.Len() > 0 {
			currentLine.WriteString(" ")
		}
		currentLine.WriteString(word)
	}

	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	return lines
}
