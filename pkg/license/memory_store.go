package license

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development. It
// enforces the same uniqueness invariants as the Postgres store: everything
// happens under one mutex, so CreateAndSupersede is atomic the way a
// database transaction is.
type MemoryStore struct {
	mu       sync.RWMutex
	licenses map[uuid.UUID]*License

	// Indexes mirroring the production unique constraints.
	byChargeID  map[uuid.UUID]uuid.UUID
	byLicenseID map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory license store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		licenses:    make(map[uuid.UUID]*License),
		byChargeID:  make(map[uuid.UUID]uuid.UUID),
		byLicenseID: make(map[string]uuid.UUID),
	}
}

// CreateAndSupersede implements Store.
func (s *MemoryStore) CreateAndSupersede(ctx context.Context, lic *License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Constraint checks first so a violation leaves no partial state.
	if lic.ChargeID != nil {
		if _, taken := s.byChargeID[*lic.ChargeID]; taken {
			return ErrDuplicateCharge
		}
	}
	if _, taken := s.byLicenseID[lic.LicenseID]; taken {
		return ErrDuplicateLicenseID
	}

	cp := *lic
	s.licenses[lic.ID] = &cp
	if lic.ChargeID != nil {
		s.byChargeID[*lic.ChargeID] = lic.ID
	}
	s.byLicenseID[lic.LicenseID] = lic.ID

	now := time.Now().UTC()
	for id, other := range s.licenses {
		if id == lic.ID || other.UserID != lic.UserID {
			continue
		}
		other.Status = StatusExpired
		other.UpdatedAt = now
	}

	return nil
}

// ExistsByCharge implements Store.
func (s *MemoryStore) ExistsByCharge(ctx context.Context, chargeID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byChargeID[chargeID]
	return ok, nil
}

// ExistsBySubscription implements Store.
func (s *MemoryStore) ExistsBySubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, lic := range s.licenses {
		if lic.UserID == userID && lic.SubscriptionID != nil && *lic.SubscriptionID == subscriptionID {
			return true, nil
		}
	}
	return false, nil
}

// LicenseIDExists implements Store.
func (s *MemoryStore) LicenseIDExists(ctx context.Context, licenseID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byLicenseID[licenseID]
	return ok, nil
}

// ByLicenseID implements Store.
func (s *MemoryStore) ByLicenseID(ctx context.Context, licenseID string) (*License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byLicenseID[licenseID]; ok {
		cp := *s.licenses[id]
		return &cp, nil
	}
	return nil, ErrNotFound
}

// CancelActive implements Store.
func (s *MemoryStore) CancelActive(ctx context.Context, subscriptionID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var n int64
	for _, lic := range s.licenses {
		if lic.Status != StatusActive {
			continue
		}
		if lic.SubscriptionID == nil || *lic.SubscriptionID != subscriptionID {
			continue
		}
		lic.Status = StatusCancelled
		lic.UpdatedAt = now
		n++
	}
	return n, nil
}

// BestByUser implements Store.
func (s *MemoryStore) BestByUser(ctx context.Context, userID uuid.UUID) (*License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.ownedLocked(userID)
	if len(owned) == 0 {
		return nil, ErrNotFound
	}

	sort.Slice(owned, func(i, j int) bool {
		pi, pj := statusPriority(owned[i].Status), statusPriority(owned[j].Status)
		if pi != pj {
			return pi < pj
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	cp := owned[0]
	return &cp, nil
}

// ListByUser implements Store.
func (s *MemoryStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.ownedLocked(userID)
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})
	return owned, nil
}

// CountByUser implements Store.
func (s *MemoryStore) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.ownedLocked(userID))), nil
}

func (s *MemoryStore) ownedLocked(userID uuid.UUID) []License {
	owned := make([]License, 0, 4)
	for _, lic := range s.licenses {
		if lic.UserID == userID {
			owned = append(owned, *lic)
		}
	}
	return owned
}
