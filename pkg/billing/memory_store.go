package billing

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory SyncStore for tests and local development.
// It doubles as the write side of the sync boundary: tests play the role of
// the provider sync collaborator by calling the Put methods.
type MemoryStore struct {
	mu            sync.RWMutex
	customers     map[uuid.UUID]*Customer
	subscriptions map[uuid.UUID]*Subscription
	charges       map[uuid.UUID]*Charge
}

// NewMemoryStore creates an empty in-memory sync store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers:     make(map[uuid.UUID]*Customer),
		subscriptions: make(map[uuid.UUID]*Subscription),
		charges:       make(map[uuid.UUID]*Charge),
	}
}

// PutCustomer stores or replaces a customer snapshot.
func (s *MemoryStore) PutCustomer(c *Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.customers[c.ID] = &cp
}

// PutSubscription stores or replaces a subscription snapshot.
func (s *MemoryStore) PutSubscription(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.subscriptions[sub.ID] = &cp
}

// PutCharge stores or replaces a charge snapshot.
func (s *MemoryStore) PutCharge(c *Charge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.charges[c.ID] = &cp
}

// DeleteSubscription removes a subscription snapshot.
func (s *MemoryStore) DeleteSubscription(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, id)
}

func (s *MemoryStore) CustomerByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.customers[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, ErrCustomerNotFound
}

func (s *MemoryStore) CustomerByUser(ctx context.Context, userID uuid.UUID) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if c.UserID == userID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (s *MemoryStore) CustomerByProcessorID(ctx context.Context, processor, processorID string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if c.Processor == processor && c.ProcessorID == processorID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (s *MemoryStore) SubscriptionByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sub, ok := s.subscriptions[id]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, ErrSubscriptionNotFound
}

func (s *MemoryStore) SubscriptionByProcessorID(ctx context.Context, processor, processorID string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subscriptions {
		if sub.Processor == processor && sub.ProcessorID == processorID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (s *MemoryStore) SubscriptionByCustomer(ctx context.Context, customerID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *Subscription
	for _, sub := range s.subscriptions {
		if sub.CustomerID != customerID {
			continue
		}
		if latest == nil || sub.CreatedAt.After(latest.CreatedAt) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, ErrSubscriptionNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) ChargeByID(ctx context.Context, id uuid.UUID) (*Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.charges[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, ErrChargeNotFound
}

func (s *MemoryStore) ChargeByProcessorID(ctx context.Context, processor, processorID string) (*Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.charges {
		if c.Processor == processor && c.ProcessorID == processorID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrChargeNotFound
}

func (s *MemoryStore) ChargeByPaymentIntent(ctx context.Context, customerID uuid.UUID, paymentIntentID string) (*Charge, error) {
	if paymentIntentID == "" {
		return nil, ErrChargeNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.charges {
		if c.CustomerID == customerID && c.PaymentIntentID == paymentIntentID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrChargeNotFound
}

func (s *MemoryStore) LatestChargeBySubscription(ctx context.Context, subscriptionID uuid.UUID) (*Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *Charge
	for _, c := range s.charges {
		if c.SubscriptionID == nil || *c.SubscriptionID != subscriptionID {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrChargeNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) CountChargesByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, c := range s.charges {
		if c.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}
