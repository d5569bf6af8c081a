package ports

import "context"

// Notifier entrega mensajes de texto al operador (Telegram, consola...).
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}
