package worker

import (
	"sync"
)

type Job interface {
	Execute()
}

type JobFunc func()

func (f JobFunc) Execute() { f() }

// Pool Пул воркеров для фоновой записи расчётов и слепков.
// После Shutdown задачи выполняются синхронно в вызывающей горутине
type Pool struct {
	queue   chan Job
	size    int
	mtx     sync.RWMutex
	closed  bool
	senders sync.WaitGroup
	workers sync.WaitGroup
}

func NewPool(size, buffer int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		queue: make(chan Job, buffer),
		size:  size,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.workers.Add(1)
		go func() {
			defer p.workers.Done()
			for job := range p.queue {
				job.Execute()
			}
		}()
	}
}

// Dispatch Ставит задачу в очередь. Не блокирует вызывающего при заполненной очереди
func (p *Pool) Dispatch(job Job) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	if p.closed {
		job.Execute()
		return
	}

	select {
	case p.queue <- job:
	default:
		p.senders.Add(1)
		go func() {
			defer p.senders.Done()
			p.queue <- job
		}()
	}
}

// Shutdown Дожидается выполнения всех поставленных задач
func (p *Pool) Shutdown() {
	p.mtx.Lock()
	if p.closed {
		p.mtx.Unlock()
		return
	}
	p.closed = true
	p.mtx.Unlock()

	p.senders.Wait()
	close(p.queue)
	p.workers.Wait()
}
