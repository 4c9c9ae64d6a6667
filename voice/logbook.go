package voice

import "sync"

// LogBook 有界日志，超出容量时丢弃最旧的一条
type LogBook struct {
	mu       sync.RWMutex
	capacity int
	lines    []string
}

// NewLogBook 创建日志；capacity <= 0 时取 20
func NewLogBook(capacity int) *LogBook {
	if capacity <= 0 {
		capacity = 20
	}
	return &LogBook{capacity: capacity}
}

// Add 追加一行
func (l *LogBook) Add(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
	if over := len(l.lines) - l.capacity; over > 0 {
		l.lines = append(l.lines[:0:0], l.lines[over:]...)
	}
}

// Clear 清空
func (l *LogBook) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
}

// Lines 返回副本，最旧的在前
func (l *LogBook) Lines() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// broadcaster 非阻塞扇出，订阅者缓冲满时丢弃
type broadcaster[T any] struct {
	mu      sync.Mutex
	subs    map[int]chan T
	next    int
	buffer  int
	closed  bool
	dropped uint64
}

func newBroadcaster[T any](buffer int) *broadcaster[T] {
	return &broadcaster[T]{subs: make(map[int]chan T), buffer: buffer}
}

func (b *broadcaster[T]) subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *broadcaster[T]) publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
			b.dropped++
		}
	}
}

func (b *broadcaster[T]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
