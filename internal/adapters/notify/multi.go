package notify

import (
	"context"
	"errors"

	"github.com/alejandrodnm/gridbot/internal/ports"
)

// Multi reparte cada mensaje a varios notificadores. Un fallo no impide
// que el resto reciba el mensaje.
type Multi []ports.Notifier

func (m Multi) Notify(ctx context.Context, msg string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
