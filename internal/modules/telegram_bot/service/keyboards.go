package service

import tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

var mainMenu = tgbot.NewReplyKeyboard(
	tgbot.NewKeyboardButtonRow(
		tgbot.NewKeyboardButton("Уведомления"),
		tgbot.NewKeyboardButton("Торговля"),
	),
)

var notifyMenu = tgbot.NewReplyKeyboard(
	tgbot.NewKeyboardButtonRow(
		tgbot.NewKeyboardButton("Цена BTC"),
		tgbot.NewKeyboardButton("Цена ETH"),
	),
	tgbot.NewKeyboardButtonRow(
		tgbot.NewKeyboardButton("Назад"),
	),
)

var btcMenu = tgbot.NewReplyKeyboard(
	tgbot.NewKeyboardButtonRow(
		tgbot.NewKeyboardButton("Текущая цена BTC"),
		tgbot.NewKeyboardButton("Моя текущая цель BTC"),
	),
	tgbot.NewKeyboardButtonRow(
		tgbot.NewKeyboardButton("Изменить цель BTC"),
		tgbot.NewKeyboardButton("Удалить мою цель BTC"),
	),
	tgbot.NewKeyboardButtonRow(
		tgbot.NewKeyboardButton("Назад"),
	),
)

var ethMenu = tgbot.NewReplyKeyboard(
	tgbot.NewKeyboardButtonRow(
		tgbot.NewKeyboardButton("Текущая цена ETH"),
		tgbot.NewKeyboardButton("Моя текущая цель ETH"),
	),
	tgbot.NewKeyboardButtonRow(
		tgbot.NewKeyboardButton("Изменить цель ETH"),
		tgbot.NewKeyboardButton("Удалить мою цель ETH"),
	),
	tgbot.NewKeyboardButtonRow(
		tgbot.NewKeyboardButton("Назад"),
	),
)

var tradeMenu = tgbot.NewReplyKeyboard(
	tgbot.NewKeyboardButtonRow(
		tgbot.NewKeyboardButton("Данные по свечам 15мин. ETH"),
		tgbot.NewKeyboardButton("Открыть сделку"),
	),
	tgbot.NewKeyboardButtonRow(
		tgbot.NewKeyboardButton("Старт торговли"),
		tgbot.NewKeyboardButton("Стоп торговли"),
		tgbot.NewKeyboardButton("Закрыть сделку"),
	),
	tgbot.NewKeyboardButtonRow(
		tgbot.NewKeyboardButton("Статус торговли"),
	),
	tgbot.NewKeyboardButtonRow(
		tgbot.NewKeyboardButton("Назад"),
	),
)

var inlinePrice = tgbot.NewInlineKeyboardMarkup(
	tgbot.NewInlineKeyboardRow(
		tgbot.NewInlineKeyboardButtonData("Обновить цену", "refresh_price"),
	),
)
