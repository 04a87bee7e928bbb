// cmd/bot/main.go
//
// Read-only Telegram ops surface for administrators: resolve a product's
// commission rate, inspect a supplier's rules, pull a supplier summary.
// All writes go through the HTTP API only.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"commission-engine/internal/commission"
	"commission-engine/internal/config"
	"commission-engine/internal/domain"
	"commission-engine/internal/storage/postgres"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/text/encoding/charmap"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		slog.Error("TELEGRAM_BOT_TOKEN not set")
		os.Exit(1)
	}

	cfg := config.MustLoad()
	db, err := pgxpool.New(context.Background(), cfg.DBConn)
	if err != nil {
		slog.Error("Failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := postgres.NewStorage(db)

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		slog.Error("Failed to init Telegram bot", "error", err)
		os.Exit(1)
	}
	slog.Info("Bot authorized", "username", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		chatID := update.Message.Chat.ID
		text := sanitizeInput(fixEncoding(update.Message.Text))
		slog.Info("Message received", "chat_id", chatID, "text", text)

		var msgText string
		var errHandle error

		switch {
		case text == "/start" || text == "/help":
			msgText = "*Commission engine*\n\n" +
				"Commands:\n" +
				"`/rate <product_id>` — resolve the commission rate for a product\n" +
				"`/rules <supplier_id>` — list a supplier's rules\n" +
				"`/summary <supplier_id>` — commission summary for a supplier"

		case strings.HasPrefix(text, "/rate "):
			msgText, errHandle = handleRate(store, strings.TrimSpace(text[6:]))

		case strings.HasPrefix(text, "/rules "):
			msgText, errHandle = handleRules(store, strings.TrimSpace(text[7:]))

		case strings.HasPrefix(text, "/summary "):
			msgText, errHandle = handleSummary(store, strings.TrimSpace(text[9:]))

		default:
			msgText = "Unknown command. Try /help"
		}

		if errHandle != nil {
			msgText = "Error: " + errHandle.Error()
		}

		msg := tgbotapi.NewMessage(chatID, msgText)
		msg.ParseMode = "Markdown"
		_, _ = bot.Send(msg)
	}
}

func handleRate(store *postgres.Storage, arg string) (string, error) {
	productID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || productID <= 0 {
		return "Usage: /rate <product_id>", nil
	}

	ctx := context.Background()
	product, err := store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return fmt.Sprintf("Product %d not found", productID), nil
		}
		return "", err
	}

	rules, err := store.EligibleRules(ctx, product.ID, product.SupplierID, product.CategoryID)
	if err != nil {
		return "", err
	}

	res, err := commission.NewResolver(nil).Resolve(product.ID, product.SupplierID, product.CategoryID, rules)
	if err != nil {
		if errors.Is(err, domain.ErrNoApplicableRule) {
			return fmt.Sprintf("No applicable rule for *%s*", product.Name), nil
		}
		return "", err
	}

	return fmt.Sprintf("*%s*\nRate: %s%% (%s tier, rule %d)",
		product.Name, res.Rate.StringFixed(2), res.Scope, res.RuleID), nil
}

func handleRules(store *postgres.Storage, arg string) (string, error) {
	supplierID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || supplierID <= 0 {
		return "Usage: /rules <supplier_id>", nil
	}

	rules, err := store.ListRules(context.Background(), &supplierID)
	if err != nil {
		return "", err
	}
	if len(rules) == 0 {
		return fmt.Sprintf("No rules for supplier %d", supplierID), nil
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("*Rules for supplier %d*", supplierID))
	for _, rule := range rules {
		state := "active"
		if !rule.Active {
			state = "inactive"
		}
		line := fmt.Sprintf("- #%d %s: %s%% (%s)", rule.ID, rule.ScopeKey(), rule.Rate.StringFixed(2), state)
		if rule.ValidUntil != nil {
			line += " until " + rule.ValidUntil.Format("2006-01-02")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func handleSummary(store *postgres.Storage, arg string) (string, error) {
	supplierID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || supplierID <= 0 {
		return "Usage: /summary <supplier_id>", nil
	}

	ctx := context.Background()
	sales, err := store.SalesForSupplier(ctx, supplierID, time.Time{}, time.Now().Add(24*time.Hour))
	if err != nil {
		return "", err
	}
	rules, err := store.ActiveRulesForSupplier(ctx, supplierID)
	if err != nil {
		return "", err
	}

	s := commission.Summarize(sales, rules)
	return fmt.Sprintf("*Supplier %d*\n"+
		"Avg rate: %s%%\n"+
		"Most common rate: %s%% (%d sales)\n"+
		"Total commission: %s\n"+
		"Products sold: %d\n"+
		"Categories: %d\n"+
		"Specific rules: %d",
		supplierID,
		s.AvgRate.StringFixed(2),
		s.MostCommonRate.StringFixed(2), s.MostCommonRateCount,
		s.TotalCommission.StringFixed(2),
		s.TotalProducts,
		s.CategoriesCount,
		s.SpecificRatesCount,
	), nil
}

func sanitizeInput(s string) string {
	result := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			result = append(result, ' ')
		} else {
			result = append(result, r)
		}
	}
	return strings.Join(strings.Fields(string(result)), " ")
}

func fixEncoding(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	decoder := charmap.Windows1251.NewDecoder()
	fixed, err := decoder.String(s)
	if err == nil && utf8.ValidString(fixed) {
		return fixed
	}

	return strings.ToValidUTF8(s, "")
}
