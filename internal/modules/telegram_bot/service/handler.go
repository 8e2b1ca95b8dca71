package service

import (
	"context"
	"fmt"
	"strings"

	"bybit_bot/internal/helper"
	"bybit_bot/internal/modules/bybit/service"
	"bybit_bot/internal/modules/config"
	"bybit_bot/internal/trading"
	"bybit_bot/internal/watcher"
	"bybit_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// coin из меню -> торгуемый символ
var menuSymbols = map[string]string{
	"BTC": "BTCUSDT",
	"ETH": "ETHUSDT",
}

// Telegram — обработчик апдейтов: меню, ввод целей, торговые команды.
type Telegram struct {
	client   *Client
	cfg      *config.Config
	manager  *trading.Manager
	watchers *watcher.Registry
	market   *service.Client
	await    *awaitStore
}

func NewTelegram(
	client *Client,
	cfg *config.Config,
	manager *trading.Manager,
	watchers *watcher.Registry,
	market *service.Client,
) *Telegram {
	return &Telegram{
		client:   client,
		cfg:      cfg,
		manager:  manager,
		watchers: watchers,
		market:   market,
		await:    newAwaitStore(),
	}
}

// Start — long-polling апдейтов.
func (t *Telegram) Start(ctx context.Context) error {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := t.client.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				t.handleUpdate(ctx, upd)
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {
	t.client.bot.StopReceivingUpdates()
}

func (t *Telegram) handleUpdate(ctx context.Context, upd tgbot.Update) {
	if upd.CallbackQuery != nil {
		t.handleCallback(ctx, upd.CallbackQuery)
		return
	}
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}

	chatID := upd.Message.Chat.ID
	text := strings.TrimSpace(upd.Message.Text)

	if upd.Message.IsCommand() {
		t.handleCommand(ctx, chatID, upd.Message.Command())
		return
	}

	switch strings.ToLower(text) {
	case "уведомления":
		t.clearAwait(chatID)
		t.client.sendWithKeyboard(chatID, "Выберите инструмент:", notifyMenu)
	case "торговля":
		t.clearAwait(chatID)
		t.client.sendWithKeyboard(chatID, "Меню торговли:", tradeMenu)
	case "назад":
		t.clearAwait(chatID)
		t.client.sendWithKeyboard(chatID, "Главное меню:", mainMenu)

	case "цена btc":
		t.clearAwait(chatID)
		t.client.sendWithKeyboard(chatID, "Меню BTC:", btcMenu)
	case "цена eth":
		t.clearAwait(chatID)
		t.client.sendWithKeyboard(chatID, "Меню ETH:", ethMenu)

	case "текущая цена btc":
		t.sendCurrentPrice(ctx, chatID, "BTC")
	case "текущая цена eth":
		t.sendCurrentPrice(ctx, chatID, "ETH")

	case "моя текущая цель btc":
		t.sendTarget(ctx, chatID, "BTC")
	case "моя текущая цель eth":
		t.sendTarget(ctx, chatID, "ETH")

	case "изменить цель btc":
		t.setAwait(chatID, "target:BTC")
		t.client.sendWithKeyboard(chatID, "Введите новую целевую цену BTC:", btcMenu)
	case "изменить цель eth":
		t.setAwait(chatID, "target:ETH")
		t.client.sendWithKeyboard(chatID, "Введите новую целевую цену ETH:", ethMenu)

	case "удалить мою цель btc":
		t.deleteTarget(ctx, chatID, "BTC")
	case "удалить мою цель eth":
		t.deleteTarget(ctx, chatID, "ETH")

	case "старт торговли":
		t.manager.Start(ctx, chatID)
	case "стоп торговли":
		t.manager.Stop(ctx, chatID)
	case "статус торговли":
		t.manager.Status(ctx, chatID)
	case "закрыть сделку":
		t.manager.ClosePosition(ctx, chatID)

	case "данные по свечам 15мин. eth":
		t.sendCandles(ctx, chatID)
	case "открыть сделку":
		t.openLiveOrder(ctx, chatID)

	default:
		t.handleAwaitInput(ctx, chatID, text)
	}
}

func (t *Telegram) handleCommand(ctx context.Context, chatID int64, cmd string) {
	switch cmd {
	case "start":
		t.clearAwait(chatID)
		t.client.sendWithKeyboard(chatID, "Добро пожаловать! Выберите раздел:", mainMenu)
	case "price":
		t.sendCurrentPrice(ctx, chatID, "BTC")
	case "order":
		t.openLiveOrder(ctx, chatID)
	case "balance":
		if chatID != t.cfg.Telegram.OwnerID {
			t.client.Send(ctx, chatID, "Эта команда доступна только владельцу бота.")
			return
		}
		eq, err := t.market.WalletBalance(ctx)
		if err != nil {
			t.client.SendF(ctx, chatID, "❗️ Ошибка получения баланса: %v", err)
			return
		}
		t.client.SendF(ctx, chatID, "💰 Баланс UNIFIED: %.2f USD", eq)
	}
}

func (t *Telegram) handleCallback(ctx context.Context, cb *tgbot.CallbackQuery) {
	// ответ Telegram для остановки спиннера
	if _, err := t.client.bot.Request(tgbot.NewCallback(cb.ID, "")); err != nil {
		logger.Error("telegram: callback ack: %v", err)
	}

	if cb.Data != "refresh_price" || cb.Message == nil {
		return
	}
	price, err := t.market.SpotPrice(ctx, "BTCUSDT")
	if err != nil {
		t.client.Send(ctx, cb.Message.Chat.ID, "Ошибка получения цены BTC. Попробуйте позже.")
		return
	}
	edit := tgbot.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID,
		fmt.Sprintf("Текущая цена BTC: %s", helper.FormatPrice(price)))
	edit.ReplyMarkup = &inlinePrice
	if _, err := t.client.bot.Request(edit); err != nil {
		logger.Error("telegram: edit price: %v", err)
	}
}

// handleAwaitInput — юзер вводит число после «Изменить цель». Невалидный
// ввод репортится, состояние ожидания остаётся.
func (t *Telegram) handleAwaitInput(ctx context.Context, chatID int64, text string) {
	key, ok := t.peekAwait(chatID)
	if !ok || !strings.HasPrefix(key, "target:") {
		return
	}
	coin := strings.TrimPrefix(key, "target:")
	menu := menuFor(coin)

	price, valid := helper.ParsePrice(text)
	if !valid {
		t.client.sendWithKeyboard(chatID, "Пожалуйста, введите корректное число (например, 45000).", menu)
		return
	}

	t.clearAwait(chatID)
	t.watchers.SetTarget(ctx, chatID, menuSymbols[coin], price)
	t.client.sendWithKeyboard(chatID,
		fmt.Sprintf("Целевая цена %s установлена: %s\nЯ сообщу, когда цена будет достигнута.",
			coin, helper.FormatPrice(price)),
		menu)
}

func (t *Telegram) sendCurrentPrice(ctx context.Context, chatID int64, coin string) {
	price, err := t.market.SpotPrice(ctx, menuSymbols[coin])
	if err != nil {
		t.client.SendF(ctx, chatID, "Ошибка получения цены %s. Попробуйте позже.", coin)
		return
	}
	m := tgbot.NewMessage(chatID, fmt.Sprintf("Текущая цена %s: %s", coin, helper.FormatPrice(price)))
	m.ReplyMarkup = inlinePrice
	if _, err := t.client.bot.Send(m); err != nil {
		logger.Error("telegram: send to %d: %v", chatID, err)
	}
}

func (t *Telegram) sendTarget(ctx context.Context, chatID int64, coin string) {
	target, ok := t.watchers.Target(ctx, chatID, menuSymbols[coin])
	if ok {
		t.client.sendWithKeyboard(chatID,
			fmt.Sprintf("Ваша текущая цель %s: %s", coin, helper.FormatPrice(target)), menuFor(coin))
		return
	}
	t.client.sendWithKeyboard(chatID, fmt.Sprintf("Цели %s ещё нет", coin), menuFor(coin))
}

func (t *Telegram) deleteTarget(ctx context.Context, chatID int64, coin string) {
	if _, ok := t.watchers.Target(ctx, chatID, menuSymbols[coin]); !ok {
		t.client.sendWithKeyboard(chatID, fmt.Sprintf("Цели %s для удаления нет.", coin), menuFor(coin))
		return
	}
	t.watchers.ClearTarget(ctx, chatID, menuSymbols[coin])
	t.client.sendWithKeyboard(chatID, fmt.Sprintf("Ваша цель %s удалена.", coin), menuFor(coin))
}

// sendCandles — две последние закрытые 15m свечи, формирующаяся отбрасывается.
func (t *Telegram) sendCandles(ctx context.Context, chatID int64) {
	candles, err := t.market.RecentCandles(ctx, t.cfg.TradeSymbol, t.cfg.KlineInterval, 3)
	if err != nil || len(candles) < 3 {
		t.client.Send(ctx, chatID, "Ошибка получения свечей. Попробуйте позже.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Свечи 15м %s (закрытые):\n", t.cfg.TradeSymbol)
	for _, c := range []int{2, 1} {
		k := candles[c]
		fmt.Fprintf(&b, "%s  O:%s H:%s L:%s C:%s\n",
			k.OpenTime.Format("15:04"),
			helper.FormatPrice(k.Open), helper.FormatPrice(k.High),
			helper.FormatPrice(k.Low), helper.FormatPrice(k.Close))
	}
	t.client.sendWithKeyboard(chatID, b.String(), tradeMenu)
}

// openLiveOrder — реальный рыночный ордер на бирже, только для владельца.
// Отказ биржи репортится, внутреннее состояние не меняется.
func (t *Telegram) openLiveOrder(ctx context.Context, chatID int64) {
	if chatID != t.cfg.Telegram.OwnerID {
		t.client.Send(ctx, chatID, "Эта команда доступна только владельцу бота.")
		return
	}

	qty, ok := service.NormalizeQty(0.01, 0.01, 0.001)
	if !ok {
		t.client.Send(ctx, chatID, "❗️ Некорректный размер ордера")
		return
	}
	orderID, err := t.market.CreateOrder(ctx, t.cfg.TradeSymbol, "Buy", qty, 0)
	if err != nil {
		t.client.SendF(ctx, chatID, "❗️ Ордер отклонён: %v", err)
		return
	}
	t.client.SendF(ctx, chatID, "✅ Ордер отправлен (orderId=%s)", orderID)
}

func menuFor(coin string) tgbot.ReplyKeyboardMarkup {
	if coin == "ETH" {
		return ethMenu
	}
	return btcMenu
}
