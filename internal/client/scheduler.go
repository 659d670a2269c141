package client

import "sync"

// scheduler runs posted callbacks one at a time, in order, on its own
// goroutine. post never blocks and reports false once the scheduler is
// stopped.
type scheduler struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

func newScheduler() *scheduler {
	s := &scheduler{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *scheduler) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *scheduler) run() {
	defer close(s.exited)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			fn := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			fn()
		}
	}
}

// stop discards queued callbacks and waits for the running one to return.
// It must not be called from a scheduled callback.
func (s *scheduler) stop() {
	s.once.Do(func() { close(s.done) })
	<-s.exited
}
