package services

import "sync"

// GameLocks serializes mutating work per game id inside this process. The
// row lock taken in the transaction covers other processes.
type GameLocks struct {
	mu    sync.Mutex
	locks map[int]*gameLockEntry
}

type gameLockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewGameLocks() *GameLocks {
	return &GameLocks{locks: make(map[int]*gameLockEntry)}
}

// Lock blocks until the game is free and returns the matching unlock func.
func (l *GameLocks) Lock(gameID int) func() {
	l.mu.Lock()
	e, ok := l.locks[gameID]
	if !ok {
		e = &gameLockEntry{}
		l.locks[gameID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, gameID)
		}
		l.mu.Unlock()
	}
}

func (l *GameLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
