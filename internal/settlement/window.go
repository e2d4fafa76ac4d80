package settlement

import (
	"fmt"
	"strings"
	"time"
)

// QuietWindow é uma janela diária de relógio em que execuções agendadas são
// puladas, para ligas sem jogos de madrugada. O valor zero a desabilita. A
// janela pode cruzar a meia-noite ("22:00-04:00").
type QuietWindow struct {
	start time.Duration // deslocamento desde a meia-noite
	end   time.Duration
	set   bool
	raw   string
}

// ParseQuietWindow interpreta "HH:MM-HH:MM". Entrada vazia desabilita a
// janela.
func ParseQuietWindow(s string) (QuietWindow, error) {
	if s == "" {
		return QuietWindow{}, nil
	}
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return QuietWindow{}, fmt.Errorf("quiet window %q: want HH:MM-HH:MM", s)
	}
	start, err := parseClockTime(parts[0])
	if err != nil {
		return QuietWindow{}, fmt.Errorf("quiet window start: %w", err)
	}
	end, err := parseClockTime(parts[1])
	if err != nil {
		return QuietWindow{}, fmt.Errorf("quiet window end: %w", err)
	}
	if start == end {
		return QuietWindow{}, fmt.Errorf("quiet window %q is empty", s)
	}
	return QuietWindow{start: start, end: end, set: true, raw: s}, nil
}

// String retorna a janela como configurada, vazia quando desabilitada.
func (w QuietWindow) String() string {
	return w.raw
}

func parseClockTime(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Contains informa se t cai dentro da janela, no fuso de t.
func (w QuietWindow) Contains(t time.Time) bool {
	if !w.set {
		return false
	}
	offset := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
	if w.start < w.end {
		return offset >= w.start && offset < w.end
	}
	return offset >= w.start || offset < w.end
}

// retrySchedule é o backoff linear entre tentativas de uma execução: a
// espera antes da tentativa n é base*n.
type retrySchedule struct {
	base       time.Duration
	maxRetries int
}

func (s retrySchedule) waitFor(attempt int) time.Duration {
	return s.base * time.Duration(attempt)
}
