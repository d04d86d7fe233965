package crash

import (
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// registry Участники в памяти. Срок жизни записи - время простоя:
// каждое обращение продлевает его, просроченные удаляет обход (sweep).
// Выгруженные участники останавливаются уже после освобождения mtx,
// чтобы занятая горутина одного участника не держала остальных
type registry struct {
	mtx   sync.Mutex
	cache *cache.Cache

	// Заполняется OnEvicted, читается и очищается под mtx
	evicted []*player
}

func newRegistry(idleTimeout time.Duration) *registry {
	r := &registry{}
	// Без фоновой очистки: просроченные записи удаляет только Sweep
	r.cache = cache.New(idleTimeout, 0)
	r.cache.OnEvicted(func(_ string, v interface{}) {
		r.evicted = append(r.evicted, v.(*player))
	})
	return r
}

func key(participantID int64) string {
	return strconv.FormatInt(participantID, 10)
}

// unlock Отпускает mtx и останавливает выгруженных за время блокировки
func (r *registry) unlock() {
	evicted := r.evicted
	r.evicted = nil
	r.mtx.Unlock()

	for _, p := range evicted {
		p.stop()
	}
}

// acquire Текущий участник или новый, если его нет или запись просрочена
func (r *registry) acquire(participantID int64, spawn func() *player) (*player, bool) {
	r.mtx.Lock()
	defer r.unlock()

	k := key(participantID)
	if v, ok := r.cache.Get(k); ok {
		p := v.(*player)
		if p.alive() {
			r.cache.SetDefault(k, p)
			return p, false
		}
	}

	// Просроченная, но ещё не удалённая запись: старая горутина остановится в unlock
	r.cache.Delete(k)

	p := spawn()
	r.cache.SetDefault(k, p)
	return p, true
}

// lookup Участник для команды. Обращение продлевает срок жизни
func (r *registry) lookup(participantID int64) *player {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	k := key(participantID)
	v, ok := r.cache.Get(k)
	if !ok {
		return nil
	}
	p := v.(*player)
	r.cache.SetDefault(k, p)
	return p
}

// touch Продлевает срок жизни, если запись всё ещё принадлежит p
func (r *registry) touch(p *player) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	k := key(p.id)
	if v, ok := r.cache.Get(k); ok && v.(*player) == p {
		r.cache.SetDefault(k, p)
	}
}

// remove Удаляет участника, если match подтверждает что это он.
// Возвращается после остановки его горутины
func (r *registry) remove(participantID int64, match func(p *player) bool) bool {
	r.mtx.Lock()
	defer r.unlock()

	k := key(participantID)
	v, found := r.cache.Get(k)
	if !found || !match(v.(*player)) {
		return false
	}
	r.cache.Delete(k)
	return true
}

// evictIdle Удаляет просроченных участников и возвращает число оставшихся
func (r *registry) evictIdle() int {
	r.mtx.Lock()
	r.cache.DeleteExpired()
	n := r.cache.ItemCount()
	r.unlock()
	return n
}

func (r *registry) clear() {
	r.mtx.Lock()
	defer r.unlock()

	r.cache.DeleteExpired()
	for k := range r.cache.Items() {
		r.cache.Delete(k)
	}
}

func (r *registry) count() int {
	return r.cache.ItemCount()
}
