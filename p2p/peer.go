package p2p

import (
	"sync"
)

// ConnSet is the table of live connections held by a server.
type ConnSet struct {
	lookup map[string]*DefaultConn
	mtx    sync.Mutex
}

func NewConnSet() *ConnSet {
	return &ConnSet{
		lookup: make(map[string]*DefaultConn),
	}
}

func (s *ConnSet) Add(conn *DefaultConn) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.lookup[conn.ID()] = conn
}

func (s *ConnSet) Remove(id string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	delete(s.lookup, id)
}

func (s *ConnSet) Size() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.lookup)
}

// Range runs f on every connection concurrently and returns a channel
// receiving each result, closed once all calls are done.
func (s *ConnSet) Range(f func(*DefaultConn) bool) chan bool {
	s.mtx.Lock()
	list := make([]*DefaultConn, 0, len(s.lookup))
	for _, c := range s.lookup {
		list = append(list, c)
	}
	s.mtx.Unlock()

	ch := make(chan bool, len(list))
	go func() {
		defer close(ch)
		var wg sync.WaitGroup
		wg.Add(len(list))
		for _, conn := range list {
			conn := conn
			go func() {
				defer wg.Done()
				ch <- f(conn)
			}()
		}
		wg.Wait()
	}()
	return ch
}
