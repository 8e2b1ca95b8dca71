package helper

import (
	"strconv"
	"strings"
	"time"
)

// NextBoundary возвращает ближайшую границу интервала после now плюс offset.
// Пример: interval=15m, offset=1s → следующий слот :00/:15/:30/:45 + 1s.
// Offset нужен чтобы биржа успела опубликовать только что закрытую свечу.
func NextBoundary(now time.Time, interval, offset time.Duration) time.Time {
	sec := now.Unix()
	step := int64(interval / time.Second)
	next := (sec/step+1)*step + int64(offset/time.Second)
	return time.Unix(next, 0).In(now.Location())
}

// ParsePrice парсит введённую юзером цену. Запятая допускается как
// десятичный разделитель.
func ParsePrice(raw string) (float64, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// FormatPrice — без хвостовых нулей, как в сообщениях бота.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
