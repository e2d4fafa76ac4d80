package broadcast

import (
	"testing"
	"time"
)

func recvOne(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func assertEmpty(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
	}
}

func TestBusFanout(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	oddsA := bus.Subscribe(TopicOdds)
	oddsB := bus.Subscribe(TopicOdds)
	bets := bus.Subscribe(TopicBets)

	bus.Publish(Event{Topic: TopicOdds, Type: TypeOddsUpdate, GameID: "g1"})

	for _, sub := range []*Subscription{oddsA, oddsB} {
		ev := recvOne(t, sub.C)
		if ev.Type != TypeOddsUpdate || ev.GameID != "g1" {
			t.Fatalf("event = %+v", ev)
		}
	}
	assertEmpty(t, bets.C)

	bus.Publish(Event{Topic: TopicBets, Type: TypeBetPlaced, GameID: "g1"})
	if ev := recvOne(t, bets.C); ev.Type != TypeBetPlaced {
		t.Fatalf("event = %+v", ev)
	}
	assertEmpty(t, oddsA.C)
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	var dropped int
	bus.OnDropped = func(string) { dropped++ }

	stuck := bus.Subscribe(TopicOdds)  // nunca drenado
	healthy := bus.Subscribe(TopicOdds)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			bus.Publish(Event{Topic: TopicOdds, Type: TypeOddsUpdate})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked")
	}

	// cada assinante com buffer 1 mantém a primeira mensagem e perde duas
	if dropped != 4 {
		t.Fatalf("dropped = %d, want 4", dropped)
	}
	recvOne(t, stuck.C)
	recvOne(t, healthy.C)
}

func TestBusMultiTopicSubscriber(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	sub := bus.Subscribe(TopicOdds, TopicGameState)
	bus.Publish(Event{Topic: TopicOdds, Type: TypeOddsUpdate})
	bus.Publish(Event{Topic: TopicGameState, Type: TypeGameState})

	first := recvOne(t, sub.C)
	second := recvOne(t, sub.C)
	if first.Type != TypeOddsUpdate || second.Type != TypeGameState {
		t.Fatalf("events = %s, %s", first.Type, second.Type)
	}
}

func TestBusCancel(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	sub := bus.Subscribe(TopicOdds)
	sub.Cancel()
	sub.Cancel() // idempotente

	if _, ok := <-sub.C; ok {
		t.Fatal("channel still open after cancel")
	}
	bus.Publish(Event{Topic: TopicOdds, Type: TypeOddsUpdate})
}

func TestBusClose(t *testing.T) {
	bus := NewBus(8)
	sub := bus.Subscribe(TopicOdds, TopicBets)

	bus.Close()
	bus.Close() // idempotente

	if _, ok := <-sub.C; ok {
		t.Fatal("channel still open after close")
	}
	// não entrega nem entra em pânico depois do fechamento
	bus.Publish(Event{Topic: TopicOdds})
	sub.Cancel()

	late := bus.Subscribe(TopicOdds)
	if _, ok := <-late.C; ok {
		t.Fatal("late subscription got an open channel")
	}
}
