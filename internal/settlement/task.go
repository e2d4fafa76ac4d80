package settlement

import (
	"errors"
	"sync"
	"time"
)

// RunState é a máquina de estados por execução: IDLE → RUNNING →
// {COMPLETED, FAILED}, e de volta a IDLE quando a próxima execução começa.
type RunState string

const (
	StateIdle      RunState = "IDLE"
	StateRunning   RunState = "RUNNING"
	StateCompleted RunState = "COMPLETED"
	StateFailed    RunState = "FAILED"
)

var (
	// ErrRunInProgress significa que uma execução foi pedida enquanto outra
	// está RUNNING.
	ErrRunInProgress = errors.New("verification run already in progress")

	// ErrTaskDisabled significa que o circuit breaker abriu; a tarefa fica
	// parada até um operador reabilitá-la.
	ErrTaskDisabled = errors.New("verification task disabled")
)

// Stats é o estado do agendador visível externamente.
type Stats struct {
	State             RunState      `json:"state"`
	Enabled           bool          `json:"enabled"`
	Interval          time.Duration `json:"interval"`
	LastRunAt         time.Time     `json:"last_run_at"`
	NextRunAt         time.Time     `json:"next_run_at"`
	LastError         string        `json:"last_error,omitempty"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
	TotalRuns         int64         `json:"total_runs"`
	SuccessfulRuns    int64         `json:"successful_runs"`
	FailedRuns        int64         `json:"failed_runs"`
	BetsVerified      int64         `json:"bets_verified"`
	BetsSettled       int64         `json:"bets_settled"`
}

// task acompanha o estado de execução e os contadores acumulados sob um
// único lock. total == sucessos + falhas vale sempre: os contadores só se
// movem em complete/fail, junto com o total.
type task struct {
	mu sync.Mutex

	state             RunState
	enabled           bool
	lastRunAt         time.Time
	nextRunAt         time.Time
	lastError         string
	consecutiveErrors int
	totalRuns         int64
	successfulRuns    int64
	failedRuns        int64
	betsVerified      int64
	betsSettled       int64
}

func newTask() *task {
	return &task{state: StateIdle, enabled: true}
}

// tryBegin move a tarefa para RUNNING, recusando quando há execução ativa
// ou o breaker está aberto.
func (t *task) tryBegin(now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.enabled {
		return ErrTaskDisabled
	}
	if t.state == StateRunning {
		return ErrRunInProgress
	}
	t.state = StateRunning
	t.lastRunAt = now
	return nil
}

func (t *task) complete(verified, settled int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = StateCompleted
	t.totalRuns++
	t.successfulRuns++
	t.consecutiveErrors = 0
	t.lastError = ""
	t.betsVerified += int64(verified)
	t.betsSettled += int64(settled)
}

// fail registra a execução falha e abre o breaker depois de maxConsecutive
// falhas seguidas.
func (t *task) fail(err error, maxConsecutive int) (disabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = StateFailed
	t.totalRuns++
	t.failedRuns++
	t.consecutiveErrors++
	t.lastError = err.Error()
	if maxConsecutive > 0 && t.consecutiveErrors >= maxConsecutive {
		t.enabled = false
		return true
	}
	return false
}

// enable rearma um breaker aberto e zera a sequência de erros.
func (t *task) enable() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = true
	t.consecutiveErrors = 0
	t.state = StateIdle
}

func (t *task) disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
}

func (t *task) setNextRun(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextRunAt = at
}

func (t *task) snapshot(interval time.Duration) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Stats{
		State:             t.state,
		Enabled:           t.enabled,
		Interval:          interval,
		LastRunAt:         t.lastRunAt,
		NextRunAt:         t.nextRunAt,
		LastError:         t.lastError,
		ConsecutiveErrors: t.consecutiveErrors,
		TotalRuns:         t.totalRuns,
		SuccessfulRuns:    t.successfulRuns,
		FailedRuns:        t.failedRuns,
		BetsVerified:      t.betsVerified,
		BetsSettled:       t.betsSettled,
	}
}
