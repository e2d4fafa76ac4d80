package broadcast

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	sharedkafka "github.com/radieske/live-settlement-engine/internal/shared/kafka"
)

// KafkaSink drena eventos do barramento para tópicos Kafka, um writer por
// tipo de evento. O corpo da mensagem é o payload do evento (os structs de
// pkg/contracts); eventos sem writer configurado são ignorados.
type KafkaSink struct {
	writers map[string]*sharedkafka.Writer
	log     *zap.Logger

	// OnPublished e OnError alimentam contadores por tópico Kafka.
	OnPublished func(topic string)
	OnError     func(topic string)
}

// NewKafkaSink recebe os writers indexados por tipo de evento
// (TypeOddsUpdate, TypeBetPlaced, ...). O ciclo de vida dos writers fica
// com o chamador.
func NewKafkaSink(writers map[string]*sharedkafka.Writer, log *zap.Logger) *KafkaSink {
	return &KafkaSink{writers: writers, log: log}
}

// Run consome o canal até o contexto encerrar ou o canal fechar.
func (s *KafkaSink) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.publish(ctx, ev)
		}
	}
}

func (s *KafkaSink) publish(ctx context.Context, ev Event) {
	w := s.writers[ev.Type]
	if w == nil {
		return
	}

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		s.log.Warn("marshal event payload", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	// jogo como chave preserva a ordem por partição para o mesmo jogo
	key := ev.GameID
	if key == "" {
		key = ev.Type
	}

	if err := sharedkafka.WriteJSON(ctx, w, key, payload); err != nil {
		s.log.Warn("publish event",
			zap.String("type", ev.Type),
			zap.String("topic", w.Topic),
			zap.Error(err))
		if s.OnError != nil {
			s.OnError(w.Topic)
		}
		return
	}
	if s.OnPublished != nil {
		s.OnPublished(w.Topic)
	}
}
