package router

import (
	"sync/atomic"

	"audience-bot/internal/ports"
)

// RoundRobinStrategy реализует выбор клиента "по кругу".
type RoundRobinStrategy struct {
	// currentIndex хранит индекс последнего выбранного клиента.
	// Инкремент атомарный, поэтому стратегия потокобезопасна.
	currentIndex uint32
}

// NewRoundRobinStrategy создает новую Round Robin стратегию.
func NewRoundRobinStrategy() *RoundRobinStrategy {
	return &RoundRobinStrategy{}
}

// Next возвращает следующего клиента в списке, инкрементируя индекс по кругу.
func (s *RoundRobinStrategy) Next(clients []ports.TelegramClient) (ports.TelegramClient, error) {
	if len(clients) == 0 {
		return nil, ErrNoHealthyClients
	}
	// Вычитаем 1, чтобы получить индекс до увеличения.
	idx := atomic.AddUint32(&s.currentIndex, 1) - 1
	// Индекс берется по модулю длины среза для цикличности.
	return clients[idx%uint32(len(clients))], nil
}
