package crash

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/rs/zerolog/log"
)

const randomReadAttempts = 3

var randomSource io.Reader = rand.Reader

// CrashPoint Точка краша для равномерного r из [0,1).
// Если в прошлом раунде была ставка, распределение смещено к коротким раундам
func CrashPoint(hasOpenStake bool, r float64) float64 {
	if hasOpenStake {
		switch {
		case r < 0.70:
			return 1.01 + r*0.735
		case r < 0.95:
			return 1.51 + (r-0.70)*1.96
		default:
			return 2.01 + (r-0.95)*19.9
		}
	}

	switch {
	case r < 0.60:
		return 1.01 + r*0.735
	case r < 0.85:
		return 1.51 + (r-0.60)*2.96
	case r < 0.95:
		return 3.01 + (r-0.85)*24.9
	default:
		return 8.01 + (r-0.95)*47.9
	}
}

// secureFloat64 Равномерное число из [0,1) на CSPRNG (53 бита мантиссы).
// Без источника случайности раунд не начинается: подставлять фиксированное r нельзя
func secureFloat64() float64 {
	var b [8]byte
	var err error
	for attempt := 1; attempt <= randomReadAttempts; attempt++ {
		if _, err = io.ReadFull(randomSource, b[:]); err == nil {
			return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
		}
		log.Error().Err(err).Int("attempt", attempt).Msg("failed to read crash point randomness")
	}
	panic("crash point randomness unavailable: " + err.Error())
}

func (s *serv) nextCrashPoint(hadStake bool) float64 {
	return s.crashPoint(hadStake, s.random())
}
