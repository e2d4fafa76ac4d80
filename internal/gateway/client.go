package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/radieske/live-settlement-engine/internal/marketstore"
)

var (
	// ErrUnauthorized significa que o provedor rejeitou nossas credenciais.
	// É falha de configuração: quem chama deve parar de chamar, não repetir.
	ErrUnauthorized = errors.New("provider unauthorized")

	// ErrBadPayload marca um corpo de resposta que o normalizador não
	// conseguiu ler.
	ErrBadPayload = errors.New("bad provider payload")
)

// ClientConfig carrega os ajustes de conexão com o provedor.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RetryCount     int
	RetryWait      time.Duration
	RetryMaxWait   time.Duration
	RequestsPerSec int
	Burst          int
}

// Client é o cliente HTTPS autenticado do provedor de odds e resultados.
// Erros de transporte, 429 e 5xx são repetidos com backoff (429 honra o
// header Retry-After); 401/403 voltam como ErrUnauthorized e nunca são
// repetidos. As requisições são espaçadas conforme a cota do provedor.
type Client struct {
	rc     *resty.Client
	apiKey string
	pacer  *Pacer
	log    *zap.Logger

	// OnRecordDropped é chamado uma vez por registro do provedor que o
	// normalizador rejeita. Opcional.
	OnRecordDropped func(reason string)
}

func NewClient(cfg ClientConfig, log *zap.Logger) *Client {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 2
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}
	if cfg.RetryMaxWait <= 0 {
		cfg.RetryMaxWait = 10 * time.Second
	}

	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		}).
		SetRetryAfter(func(c *resty.Client, resp *resty.Response) (time.Duration, error) {
			if resp.StatusCode() == http.StatusTooManyRequests {
				if ra := resp.Header().Get("Retry-After"); ra != "" {
					if d, err := time.ParseDuration(ra + "s"); err == nil {
						return d, nil
					}
				}
				return 10 * time.Second, nil
			}
			return 0, nil
		})

	return &Client{
		rc:     rc,
		apiKey: cfg.APIKey,
		pacer:  NewPacer(cfg.RequestsPerSec, cfg.Burst),
		log:    log,
	}
}

// FetchScores consulta o endpoint de placares de um esporte e retorna
// updates de estado de jogo normalizados. Registros que o normalizador
// rejeita são logados e pulados; o resto do lote segue.
func (c *Client) FetchScores(ctx context.Context, sport string) ([]marketstore.Update, error) {
	var events []scoreEvent
	path := fmt.Sprintf("/v4/sports/%s/scores", sport)
	if err := c.getJSON(ctx, path, map[string]string{"daysFrom": "1"}, &events); err != nil {
		return nil, err
	}

	now := time.Now()
	updates := make([]marketstore.Update, 0, len(events))
	for _, ev := range events {
		u, err := normalizeScoreEvent(ev, now)
		if err != nil {
			c.dropRecord(sport, err)
			continue
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// FetchOdds consulta o endpoint de odds de um esporte e retorna updates de
// odds normalizados, um por par (jogo, mercado).
func (c *Client) FetchOdds(ctx context.Context, sport string) ([]marketstore.Update, error) {
	var events []oddsEvent
	path := fmt.Sprintf("/v4/sports/%s/odds", sport)
	params := map[string]string{"markets": "h2h,spreads,totals", "oddsFormat": "american"}
	if err := c.getJSON(ctx, path, params, &events); err != nil {
		return nil, err
	}

	now := time.Now()
	var updates []marketstore.Update
	for _, ev := range events {
		us, err := normalizeOddsEvent(ev, now)
		if err != nil {
			// mercados ruins são descartados; o resto do evento ainda aplica
			c.dropRecord(sport, err)
		}
		updates = append(updates, us...)
	}
	return updates, nil
}

// FetchResult pede ao provedor o placar final de um jogo. Retorna
// (nil, nil) quando o provedor ainda não tem registro do jogo.
func (c *Client) FetchResult(ctx context.Context, sport, gameID string) (*FinalResult, error) {
	var events []scoreEvent
	path := fmt.Sprintf("/v4/sports/%s/scores", sport)
	params := map[string]string{"daysFrom": "3", "eventIds": gameID}
	if err := c.getJSON(ctx, path, params, &events); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	ev := events[0]
	home, away, err := parseScores(ev)
	if ev.Completed && err != nil {
		return nil, fmt.Errorf("result for game %s: %w", gameID, err)
	}

	return &FinalResult{
		GameID:    ev.ID,
		Sport:     ev.SportKey,
		HomeTeam:  ev.HomeTeam,
		AwayTeam:  ev.AwayTeam,
		Completed: ev.Completed,
		HomeScore: home,
		AwayScore: away,
		FetchedAt: time.Now(),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params map[string]string, out any) error {
	if err := c.pacer.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("apiKey", c.apiKey).
		Get(path)
	if err != nil {
		return fmt.Errorf("provider request %s: %w", path, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: provider returned %d", ErrUnauthorized, code)
	case code != http.StatusOK:
		return fmt.Errorf("provider returned %d for %s", code, path)
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

func (c *Client) dropRecord(sport string, err error) {
	c.log.Warn("provider record dropped", zap.String("sport", sport), zap.Error(err))
	if c.OnRecordDropped != nil {
		c.OnRecordDropped("malformed")
	}
}
