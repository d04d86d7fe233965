package crash

import (
	"crash_backend/internal/model"
	"crash_backend/internal/observability/metrics"
)

// Leave Отключение соединения. Участник выгружается, только если это соединение
// всё ещё текущее: повторное подключение могло уже заменить его
func (s *serv) Leave(participantID int64, sink model.EventSink) {
	removed := s.registry.remove(participantID, func(p *player) bool {
		return p.hasSink(sink)
	})
	if removed {
		metrics.RecordResidents(s.registry.count())
	}
}
