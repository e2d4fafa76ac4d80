// Package broadcast distribui eventos do motor (odds, estado de jogo,
// apostas) para assinantes em processo. Publish nunca bloqueia: cada
// assinante tem um canal com buffer e mensagens excedentes são descartadas
// e contadas, nunca represadas.
package broadcast

import (
	"sync"
	"time"
)

// Topic separa os fluxos de eventos do barramento.
type Topic string

const (
	TopicOdds      Topic = "odds"
	TopicGameState Topic = "game_state"
	TopicBets      Topic = "bets"
)

// Tipos de evento transportados em Event.Type.
const (
	TypeOddsUpdate   = "odds_update"
	TypeGameState    = "game_state"
	TypeBetPlaced    = "bet_placed"
	TypeBetSettled   = "bet_settled"
	TypeBetCashedOut = "bet_cashed_out"
)

// Event é uma mensagem de fan-out. A struct serializa direto como envelope
// JSON para o hub WebSocket; Topic só roteia dentro do processo.
type Event struct {
	Topic   Topic     `json:"-"`
	Type    string    `json:"type"`
	GameID  string    `json:"game_id,omitempty"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Subscription é a visão do assinante: um canal de leitura e o cancelamento.
type Subscription struct {
	C      <-chan Event
	cancel func()
	once   sync.Once
}

// Cancel desregistra o assinante e fecha o canal. Seguro chamar mais de
// uma vez.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Bus é o barramento de eventos em processo.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[int]chan Event
	nextID int
	buffer int
	closed bool

	// OnDropped conta mensagens descartadas por assinante lento.
	OnDropped func(topic string)
}

// NewBus cria o barramento com o tamanho de buffer por assinante.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[Topic]map[int]chan Event),
		buffer: buffer,
	}
}

// Subscribe registra um assinante nos tópicos dados. O mesmo canal recebe
// todos os tópicos assinados.
func (b *Bus) Subscribe(topics ...Topic) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return &Subscription{C: ch, cancel: func() {}}
	}

	id := b.nextID
	b.nextID++
	for _, t := range topics {
		if b.subs[t] == nil {
			b.subs[t] = make(map[int]chan Event)
		}
		b.subs[t][id] = ch
	}
	return &Subscription{
		C:      ch,
		cancel: func() { b.unsubscribe(topics, id, ch) },
	}
}

func (b *Bus) unsubscribe(topics []Topic, id int, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, t := range topics {
		delete(b.subs[t], id)
		if len(b.subs[t]) == 0 {
			delete(b.subs, t)
		}
	}
	close(ch)
}

// Publish entrega o evento a todos os assinantes do tópico sem bloquear.
// Assinante com buffer cheio perde a mensagem.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[ev.Topic] {
		select {
		case ch <- ev:
		default:
			if b.OnDropped != nil {
				b.OnDropped(string(ev.Topic))
			}
		}
	}
}

// Close encerra o barramento e fecha os canais de todos os assinantes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	// um assinante pode estar registrado em vários tópicos
	seen := make(map[chan Event]struct{})
	for _, m := range b.subs {
		for _, ch := range m {
			if _, ok := seen[ch]; ok {
				continue
			}
			seen[ch] = struct{}{}
			close(ch)
		}
	}
	b.subs = nil
}
