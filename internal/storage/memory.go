package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/pillpoint/pharmacy-backend/internal/models"
)

// MemoryStore holds all data in memory. Used for tests and for running
// without a database (USE_MEMORY_STORE=true).
type MemoryStore struct {
	deliveries map[uint]*models.Delivery
	messages   []*models.MessageHistory

	mu sync.RWMutex

	deliveryCounter uint
	messageCounter  uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deliveries: make(map[uint]*models.Delivery),
	}
}

// Delivery operations

func (m *MemoryStore) CreateDelivery(delivery *models.Delivery) (*models.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deliveryCounter++
	delivery.ID = m.deliveryCounter
	if delivery.Status == "" {
		delivery.Status = models.StatusPending
	}
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now()
	}
	if delivery.UpdatedAt.IsZero() {
		delivery.UpdatedAt = time.Now()
	}

	copied := *delivery
	m.deliveries[delivery.ID] = &copied
	return delivery, nil
}

func (m *MemoryStore) GetDelivery(id uint) (*models.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	delivery, exists := m.deliveries[id]
	if !exists {
		return nil, &ErrNotFound{What: "delivery"}
	}
	copied := *delivery
	return &copied, nil
}

func (m *MemoryStore) GetAllDeliveries() ([]*models.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var deliveries []*models.Delivery
	for _, d := range m.deliveries {
		copied := *d
		deliveries = append(deliveries, &copied)
	}
	sort.Slice(deliveries, func(i, j int) bool {
		return deliveries[i].CreatedAt.After(deliveries[j].CreatedAt)
	})
	return deliveries, nil
}

func (m *MemoryStore) GetActiveDelivery(phone string) (*models.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *models.Delivery
	for _, d := range m.deliveries {
		if d.PhoneNumber != phone || !d.Status.IsActive() {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) {
			latest = d
		}
	}
	if latest == nil {
		return nil, &ErrNotFound{What: "active delivery"}
	}
	copied := *latest
	return &copied, nil
}

func (m *MemoryStore) GetNextPendingDelivery() (*models.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var oldest *models.Delivery
	for _, d := range m.deliveries {
		if d.Status != models.StatusPending {
			continue
		}
		if oldest == nil || d.CreatedAt.Before(oldest.CreatedAt) {
			oldest = d
		}
	}
	if oldest == nil {
		return nil, &ErrNotFound{What: "pending delivery"}
	}
	copied := *oldest
	return &copied, nil
}

func (m *MemoryStore) GetStaleActiveDeliveries(cutoffDays int) ([]*models.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().AddDate(0, 0, -cutoffDays)
	var deliveries []*models.Delivery
	for _, d := range m.deliveries {
		if d.Status.IsActive() && d.UpdatedAt.Before(cutoff) {
			copied := *d
			deliveries = append(deliveries, &copied)
		}
	}
	return deliveries, nil
}

func (m *MemoryStore) UpdateDelivery(delivery *models.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.deliveries[delivery.ID]; !exists {
		return &ErrNotFound{What: "delivery"}
	}
	delivery.UpdatedAt = time.Now()
	copied := *delivery
	m.deliveries[delivery.ID] = &copied
	return nil
}

func (m *MemoryStore) UpdateDeliveryStatus(id uint, status models.DeliveryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delivery, exists := m.deliveries[id]
	if !exists {
		return &ErrNotFound{What: "delivery"}
	}
	delivery.Status = status
	delivery.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ApplyCorrection(id uint, address, deliveryTime *string, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delivery, exists := m.deliveries[id]
	if !exists {
		return &ErrNotFound{What: "delivery"}
	}
	if address != nil {
		delivery.DeliveryAddress = *address
	}
	if deliveryTime != nil {
		delivery.DeliveryTime = *deliveryTime
	}
	delivery.CorrectionNote = &note
	delivery.Status = models.StatusReady
	delivery.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) DeleteDelivery(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.deliveries[id]; !exists {
		return &ErrNotFound{What: "delivery"}
	}
	delete(m.deliveries, id)
	return nil
}

// Message history operations

func (m *MemoryStore) AppendMessage(phone string, deliveryID *uint, role, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messageCounter++
	entry := &models.MessageHistory{
		PhoneNumber: phone,
		DeliveryID:  deliveryID,
		Role:        role,
		Message:     message,
	}
	entry.ID = m.messageCounter
	entry.CreatedAt = time.Now()
	m.messages = append(m.messages, entry)
	return nil
}

func (m *MemoryStore) GetRecentMessages(phone string, deliveryID *uint, limit int) ([]*models.MessageHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.MessageHistory
	for _, msg := range m.messages {
		if msg.PhoneNumber != phone {
			continue
		}
		if deliveryID != nil && (msg.DeliveryID == nil || *msg.DeliveryID != *deliveryID) {
			continue
		}
		matched = append(matched, msg)
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}

	result := make([]*models.MessageHistory, 0, len(matched))
	for _, msg := range matched {
		copied := *msg
		result = append(result, &copied)
	}
	return result, nil
}

func (m *MemoryStore) GetHistory(phone string) ([]*models.MessageHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.MessageHistory
	for _, msg := range m.messages {
		if msg.PhoneNumber == phone {
			copied := *msg
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MemoryStore) GetHistoryPhoneNumbers() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var numbers []string
	for _, msg := range m.messages {
		if !seen[msg.PhoneNumber] {
			seen[msg.PhoneNumber] = true
			numbers = append(numbers, msg.PhoneNumber)
		}
	}
	sort.Strings(numbers)
	return numbers, nil
}
