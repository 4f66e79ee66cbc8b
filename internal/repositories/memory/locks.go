package memory

import "sync"

// lockManager implements row locks with shared and exclusive modes.
// A transaction holding the only shared lock on a row may upgrade it.
type lockManager struct {
	mu   sync.Mutex
	cond *sync.Cond
	rows map[string]*rowLock
	held map[*Tx]map[string]struct{}
}

type rowLock struct {
	writer  *Tx
	readers map[*Tx]struct{}
}

func newLockManager() *lockManager {
	m := &lockManager{
		rows: make(map[string]*rowLock),
		held: make(map[*Tx]map[string]struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *lockManager) acquire(tx *Tx, key string, exclusive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		l, ok := m.rows[key]
		if !ok {
			l = &rowLock{readers: make(map[*Tx]struct{})}
			m.rows[key] = l
		}
		if m.grant(l, tx, exclusive) {
			if m.held[tx] == nil {
				m.held[tx] = make(map[string]struct{})
			}
			m.held[tx][key] = struct{}{}
			return
		}
		m.cond.Wait()
	}
}

func (m *lockManager) grant(l *rowLock, tx *Tx, exclusive bool) bool {
	if l.writer != nil && l.writer != tx {
		return false
	}
	if !exclusive {
		if l.writer != tx {
			l.readers[tx] = struct{}{}
		}
		return true
	}
	for r := range l.readers {
		if r != tx {
			return false
		}
	}
	delete(l.readers, tx)
	l.writer = tx
	return true
}

func (m *lockManager) releaseAll(tx *Tx) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.held[tx] {
		l := m.rows[key]
		if l == nil {
			continue
		}
		if l.writer == tx {
			l.writer = nil
		}
		delete(l.readers, tx)
		if l.writer == nil && len(l.readers) == 0 {
			delete(m.rows, key)
		}
	}
	delete(m.held, tx)
	m.cond.Broadcast()
}

func txnKey(id string) string { return "txn:" + id }
func accKey(id string) string { return "acc:" + id }
