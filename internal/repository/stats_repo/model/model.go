package model

// HouseState Состояние статистики казино по краш-раундам
type HouseState struct {
	TotalStakes int     // Сколько всего ставок рассчитано
	TotalBet    float64 // Сумма всех ставок
	TotalPayout float64 // Сумма всех выплат

	CurrentRTP float64 // Текущий RTP = (TotalPayout/TotalBet)*100

	OpenStakes int     // Принятые, но ещё не рассчитанные ставки
	OpenAmount float64 // Их сумма

	Window     []SettlementResult // Окно последних расчётов для анализа
	WindowRTP  float64            // RTP в окне
	WindowSize int                // Размер окна
}

// Результат расчёта одной ставки для окна
type SettlementResult struct {
	Bet    float64
	Payout float64
}
