package marketstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrStaleUpdate marca um update cujo timestamp do provedor é igual ou
// anterior ao armazenado. O chamador descarta; o store nunca regride.
var ErrStaleUpdate = errors.New("stale update")

// entry guarda o estado de um jogo sob seu próprio lock, para que escritas
// em jogos diferentes nunca disputem.
type entry struct {
	mu     sync.RWMutex
	game   GameState
	quotes map[Market]Quote
}

// Store é o estado de mercado autoritativo em memória, indexado por jogo.
// O lock do store protege só o mapa; cada jogo carrega seu RWMutex.
// Leitores recebem cópias profundas, nunca referências para dentro do store.
type Store struct {
	mu    sync.RWMutex
	games map[string]*entry
	rules SuspensionRules
}

// New cria um store vazio. Constrói-se um por instância do motor e
// injeta-se; o store não tem estado de pacote.
func New(rules SuspensionRules) *Store {
	return &Store{
		games: make(map[string]*entry),
		rules: rules,
	}
}

// Ingest aplica um update normalizado. Last write wins pelo timestamp do
// provedor: updates iguais ou anteriores ao armazenado retornam
// ErrStaleUpdate e não mudam nada. As regras de suspensão são reavaliadas
// a cada update aplicado.
func (s *Store) Ingest(u Update) error {
	if u.GameID == "" {
		return errors.New("ingest: empty game id")
	}

	switch u.Kind {
	case KindGameState:
		if u.Game == nil {
			return errors.New("ingest: game-state update without payload")
		}
		return s.ingestGame(u.GameID, *u.Game)
	case KindOdds:
		if u.Quote == nil {
			return errors.New("ingest: odds update without payload")
		}
		return s.ingestQuote(u.GameID, *u.Quote)
	default:
		return fmt.Errorf("ingest: unknown update kind %d", u.Kind)
	}
}

func (s *Store) ingestGame(gameID string, g GameState) error {
	e := s.entryFor(gameID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.game.UpdatedAt.IsZero() && !g.UpdatedAt.After(e.game.UpdatedAt) {
		return ErrStaleUpdate
	}

	g.GameID = gameID
	e.game = g
	for m, q := range e.quotes {
		q.Suspended, q.SuspendReason = s.rules.Evaluate(e.game, q)
		e.quotes[m] = q
	}
	return nil
}

func (s *Store) ingestQuote(gameID string, q Quote) error {
	if q.Market == "" {
		return errors.New("ingest: odds update without market")
	}

	e := s.entryFor(gameID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if cur, ok := e.quotes[q.Market]; ok && !q.UpdatedAt.After(cur.UpdatedAt) {
		return ErrStaleUpdate
	}

	q.Suspended, q.SuspendReason = s.rules.Evaluate(e.game, q)
	e.quotes[q.Market] = q
	return nil
}

// entryFor retorna o entry do jogo, criando na primeira observação.
// Jogo visto primeiro por um update de odds começa como PRE até chegar um
// update de estado.
func (s *Store) entryFor(gameID string) *entry {
	s.mu.RLock()
	e, ok := s.games[gameID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.games[gameID]; ok {
		return e
	}
	e = &entry{
		game:   GameState{GameID: gameID, Status: StatusPre},
		quotes: make(map[Market]Quote),
	}
	s.games[gameID] = e
	return e
}

// Snapshot retorna uma cópia profunda de um jogo, ou ok=false quando o jogo
// não é acompanhado.
func (s *Store) Snapshot(gameID string) (Snapshot, bool) {
	s.mu.RLock()
	e, ok := s.games[gameID]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return snapshotLocked(e), true
}

// LiveSnapshots retorna cópias de todos os jogos em andamento, ordenadas
// por ID de jogo.
func (s *Store) LiveSnapshots() []Snapshot {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.games))
	for _, e := range s.games {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		if e.game.Status.Live() {
			snaps = append(snaps, snapshotLocked(e))
		}
		e.mu.RUnlock()
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Game.GameID < snaps[j].Game.GameID })
	return snaps
}

// Remove tira o jogo do cache quente. Quem chama arquiva o snapshot final
// antes de remover.
func (s *Store) Remove(gameID string) {
	s.mu.Lock()
	delete(s.games, gameID)
	s.mu.Unlock()
}

// GamesTracked retorna o número de jogos no cache quente.
func (s *Store) GamesTracked() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

func snapshotLocked(e *entry) Snapshot {
	quotes := make(map[Market]Quote, len(e.quotes))
	for m, q := range e.quotes {
		quotes[m] = q
	}
	return Snapshot{Game: e.game, Quotes: quotes}
}
