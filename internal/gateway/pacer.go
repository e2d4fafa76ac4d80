package gateway

import (
	"context"
	"sync"
	"time"
)

// Pacer espaça as requisições ao provedor conforme a cota documentada: um
// token bucket recarregado a uma taxa fixa por segundo com uma pequena
// margem de rajada.
type Pacer struct {
	mu         sync.Mutex
	capacity   int
	tokens     int
	refillRate int
	lastRefill time.Time
}

func NewPacer(ratePerSec, burst int) *Pacer {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Pacer{
		capacity:   burst,
		tokens:     burst,
		refillRate: ratePerSec,
		lastRefill: time.Now(),
	}
}

func (p *Pacer) refill() {
	now := time.Now()
	interval := time.Second / time.Duration(p.refillRate)

	add := int(now.Sub(p.lastRefill) / interval)
	if add > 0 {
		p.tokens = min(p.capacity, p.tokens+add)
		p.lastRefill = p.lastRefill.Add(time.Duration(add) * interval)
	}
}

// Allow consome um token se houver algum disponível.
func (p *Pacer) Allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refill()
	if p.tokens > 0 {
		p.tokens--
		return true
	}
	return false
}

// Wait bloqueia até haver token disponível ou o contexto encerrar.
func (p *Pacer) Wait(ctx context.Context) error {
	for {
		if p.Allow() {
			return nil
		}

		wait := time.Second / time.Duration(p.refillRate)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
