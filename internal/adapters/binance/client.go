package binance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"golang.org/x/time/rate"
)

const (
	// Rate limit al ~60% del peso permitido por Binance spot (1200/min → ~12/s).
	requestsPerSec = 12
	requestsBurst  = 5

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
	httpTimeout   = 10 * time.Second
)

// Códigos de Binance que indican un fallo transitorio del lado del exchange.
var retryableCodes = map[int64]bool{
	-1000: true, // UNKNOWN
	-1001: true, // DISCONNECTED
	-1003: true, // TOO_MANY_REQUESTS
	-1007: true, // TIMEOUT
	-1021: true, // INVALID_TIMESTAMP (reloj desincronizado, reintento con nuevo timestamp)
}

// Client es el gateway de Binance spot con rate limiting y retries.
type Client struct {
	api     *gobinance.Client
	limiter *rate.Limiter
}

// NewClient crea un Client autenticado. baseURL vacío usa producción.
func NewClient(apiKey, secretKey, baseURL string) *Client {
	api := gobinance.NewClient(apiKey, secretKey)
	api.HTTPClient = &http.Client{Timeout: httpTimeout}
	if baseURL != "" {
		api.BaseURL = baseURL
	}
	return &Client{
		api:     api,
		limiter: rate.NewLimiter(requestsPerSec, requestsBurst),
	}
}

// doWithRetry ejecuta fn con rate limiting y backoff exponencial.
// Los errores de negocio del exchange (saldo, filtros, orden inexistente) no se reintentan.
func (c *Client) doWithRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}
		slog.Warn("binance: transient error, retrying", "op", op, "attempt", attempt+1, "err", err)
		if !sleep(ctx, attempt) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s failed after %d retries: %w", op, maxRetries, lastErr)
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		// Code 0: el cuerpo del error no era JSON de Binance (5xx de un proxy, mantenimiento).
		return apiErr.Code == 0 || retryableCodes[apiErr.Code]
	}
	// Errores de red.
	return true
}

// isDuplicateOrder detecta el rechazo de un clientOrderID ya usado (-2010).
func isDuplicateOrder(err error) bool {
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == -2010 && strings.Contains(strings.ToLower(apiErr.Message), "duplicate")
}

// sleep espera con backoff exponencial respetando el contexto. false si ctx terminó.
func sleep(ctx context.Context, attempt int) bool {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
		return true
	case <-ctx.Done():
		return false
	}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
