package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// Console implementa ports.Notifier escribiendo una línea por evento.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Notify imprime el mensaje con la hora local.
func (c *Console) Notify(_ context.Context, msg string) error {
	_, err := fmt.Fprintf(c.out, "[%s] %s\n", time.Now().Format("15:04:05"), msg)
	return err
}
