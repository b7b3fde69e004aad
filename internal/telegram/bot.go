package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-trip-planner/internal/config"
	"ai-trip-planner/internal/metrics"
	"ai-trip-planner/internal/planner"
	"ai-trip-planner/internal/poi"
)

// pollInterval is how often the bot re-reads session state while a plan is
// being generated.
const pollInterval = 2 * time.Second

// Bot is a Telegram front-end for the planning pipeline. Users request a trip
// with /plan and the bot edits its reply as the pipeline advances.
type Bot struct {
	api          *tgbotapi.BotAPI
	repo         *planner.SessionRepository
	runner       *planner.Runner
	metricsStore *metrics.Store
	cfg          *config.Config
}

// NewBot initializes the Telegram bot.
func NewBot(cfg *config.Config, repo *planner.SessionRepository, runner *planner.Runner, metricsStore *metrics.Store) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	log.Printf("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:          api,
		repo:         repo,
		runner:       runner,
		metricsStore: metricsStore,
		cfg:          cfg,
	}, nil
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			if !b.authorized(update.Message.From.ID) {
				log.Printf("Unauthorized access attempt from UserID: %d (@%s)",
					update.Message.From.ID, update.Message.From.UserName)
				continue
			}
			go b.processMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) authorized(userID int64) bool {
	return b.cfg.TelegramAllowUserID == 0 || b.cfg.TelegramAllowUserID == userID
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	switch {
	case strings.HasPrefix(msg.Text, "/plan"):
		b.handlePlan(ctx, msg)
	case strings.HasPrefix(msg.Text, "/metrics"):
		b.handleMetrics(ctx, msg.Chat.ID)
	case strings.HasPrefix(msg.Text, "/start"), strings.HasPrefix(msg.Text, "/help"):
		b.reply(msg.Chat.ID, helpText)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

const helpText = `*Trip Planner Bot*

/plan <destination> <start> <end> <styles> - plan a trip
    example: /plan Tokyo 2026-04-01 2026-04-03 foodie,photography
    styles: photography, chilling, foodie, exercise
/metrics - token usage for the last week
/help - this message`

// parsePlanArgs turns "/plan Tokyo 2026-04-01 2026-04-03 foodie,photography"
// into session parameters. The destination may span several words.
func parsePlanArgs(text string) (destination string, start, end time.Time, personas []poi.Persona, err error) {
	fields := strings.Fields(text)
	if len(fields) < 5 {
		return "", time.Time{}, time.Time{}, nil,
			fmt.Errorf("usage: /plan <destination> <start> <end> <styles>")
	}

	personaField := fields[len(fields)-1]
	endField := fields[len(fields)-2]
	startField := fields[len(fields)-3]
	destination = strings.Join(fields[1:len(fields)-3], " ")

	start, err = time.Parse("2006-01-02", startField)
	if err != nil {
		return "", time.Time{}, time.Time{}, nil, fmt.Errorf("bad start date %q, want YYYY-MM-DD", startField)
	}
	end, err = time.Parse("2006-01-02", endField)
	if err != nil {
		return "", time.Time{}, time.Time{}, nil, fmt.Errorf("bad end date %q, want YYYY-MM-DD", endField)
	}

	for _, raw := range strings.Split(personaField, ",") {
		p, ok := poi.ParsePersona(strings.TrimSpace(raw))
		if !ok {
			return "", time.Time{}, time.Time{}, nil, fmt.Errorf("unknown travel style %q", raw)
		}
		personas = append(personas, p)
	}
	return destination, start, end, personas, nil
}

func (b *Bot) handlePlan(ctx context.Context, msg *tgbotapi.Message) {
	destination, start, end, personas, err := parsePlanArgs(msg.Text)
	if err != nil {
		b.reply(msg.Chat.ID, err.Error())
		return
	}

	session, err := planner.NewSession(destination, start, end, personas, poi.Constraints{}, 5)
	if err != nil {
		b.reply(msg.Chat.ID, err.Error())
		return
	}
	if err := b.repo.Create(ctx, session); err != nil {
		log.Printf("telegram: failed to create session: %v", err)
		b.reply(msg.Chat.ID, "Something went wrong starting your plan.")
		return
	}

	statusMsg := tgbotapi.NewMessage(msg.Chat.ID,
		fmt.Sprintf("🗺 Planning your trip to *%s*...", destination))
	statusMsg.ParseMode = "Markdown"
	sent, err := b.api.Send(statusMsg)
	if err != nil {
		log.Printf("telegram: failed to send reply: %v", err)
		return
	}

	b.runner.Start(session)
	b.watchSession(ctx, session.ID, msg.Chat.ID, sent.MessageID)
}

var stageLines = map[planner.Stage]string{
	planner.StageScraping:  "🔍 Discovering points of interest...",
	planner.StageVerifying: "🕵️ Verifying each location...",
	planner.StageRouting:   "🧭 Optimising daily routes...",
	planner.StageExporting: "📄 Generating your itinerary...",
}

// watchSession polls the session until it reaches a terminal stage, editing
// the status message on every stage change.
func (b *Bot) watchSession(ctx context.Context, sessionID string, chatID int64, messageID int) {
	lastStage := planner.StagePending
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		session, err := b.repo.Get(ctx, sessionID)
		if err != nil {
			log.Printf("telegram: session %s vanished: %v", sessionID, err)
			return
		}

		if session.Stage != lastStage {
			lastStage = session.Stage
			if line, ok := stageLines[session.Stage]; ok {
				b.edit(chatID, messageID, line)
			}
		}

		if session.Stage.Terminal() {
			b.sendFinal(ctx, session, chatID, messageID)
			return
		}
	}
}

func (b *Bot) sendFinal(ctx context.Context, session *planner.Session, chatID int64, messageID int) {
	if session.Stage == planner.StageFailed {
		detail := session.ErrorDetail
		if detail == "" {
			detail = "unknown error"
		}
		b.edit(chatID, messageID, "❌ Planning failed: "+detail)
		return
	}

	result, err := b.repo.Result(ctx, session.ID)
	if err != nil {
		log.Printf("telegram: failed to load result: %v", err)
		b.edit(chatID, messageID, "✅ Your itinerary is ready, but I could not render it here.")
		return
	}

	b.edit(chatID, messageID, formatItinerary(session, result))
}

// formatItinerary renders a finished plan as a Markdown message.
func formatItinerary(session *planner.Session, result *planner.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ *Your %s itinerary is ready!*\n", session.Destination)
	fmt.Fprintf(&sb, "_%d places found, %d verified, %d included_\n",
		session.TotalScraped, session.TotalVerified, session.TotalIncluded)

	for _, day := range result.Days {
		if len(day.Stops) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n*Day %d* (%s)\n", day.DayNumber, day.Date)
		for _, stop := range day.Stops {
			fmt.Fprintf(&sb, "  %d. %s\n", stop.StopOrder, stop.Name)
			if stop.Note != "" {
				fmt.Fprintf(&sb, "      _%s_\n", stop.Note)
			}
		}
	}

	if session.MapURL != "" {
		fmt.Fprintf(&sb, "\n[Open route in Google Maps](%s)\n", session.MapURL)
	}
	return sb.String()
}

func (b *Bot) handleMetrics(ctx context.Context, chatID int64) {
	usage, err := b.metricsStore.GetDailyUsage(ctx, 7)
	if err != nil {
		log.Printf("telegram: metrics query failed: %v", err)
		b.reply(chatID, "Could not load metrics.")
		return
	}
	if len(usage) == 0 {
		b.reply(chatID, "No usage recorded in the last 7 days.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*Token usage (last 7 days)*\n")
	for _, u := range usage {
		fmt.Fprintf(&sb, "%s: %d prompt / %d completion over %d calls\n",
			u.Date, u.TotalPrompt, u.TotalCompletion, u.TotalExecution)
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("telegram: send failed: %v", err)
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = "Markdown"
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("telegram: edit failed: %v", err)
	}
}
