package notify

import (
	"context"
	"fmt"
	"log"
)

// Notifier — fire-and-forget доставка сообщений юзеру. Ошибки доставки
// логируются и не ретраятся.
type Notifier interface {
	Send(ctx context.Context, chatID int64, msg string)
	SendF(ctx context.Context, chatID int64, format string, args ...any)
}

// Stdout — заглушка, всё пишет в лог. Удобно для тестов и локального запуска
// без телеграм-токена.
type Stdout struct{}

func NewStdout() *Stdout { return &Stdout{} }

func (s *Stdout) Send(_ context.Context, chatID int64, msg string) {
	log.Printf("[notify %d] %s", chatID, msg)
}

func (s *Stdout) SendF(ctx context.Context, chatID int64, format string, args ...any) {
	s.Send(ctx, chatID, fmt.Sprintf(format, args...))
}
