package custody

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stakelend-backend/internal/domain"
)

// MockCustody is an in-memory AssetCustody for tests and local development.
type MockCustody struct {
	mu        sync.Mutex
	assets    map[domain.AssetRef]*domain.Asset
	operators map[int64]map[int64]bool
}

func NewMockCustody() *MockCustody {
	return &MockCustody{
		assets:    make(map[domain.AssetRef]*domain.Asset),
		operators: make(map[int64]map[int64]bool),
	}
}

func (m *MockCustody) Register(_ context.Context, ref domain.AssetRef, ownerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.assets[ref]; ok {
		if a.OwnerAccountID != ownerID {
			return fmt.Errorf("%w: asset %s is registered to another owner", domain.ErrUnauthorized, ref)
		}
		return nil
	}
	m.assets[ref] = &domain.Asset{Ref: ref, OwnerAccountID: ownerID}
	return nil
}

func (m *MockCustody) get(ref domain.AssetRef) (*domain.Asset, error) {
	a, ok := m.assets[ref]
	if !ok {
		return nil, domain.ErrAssetNotFound
	}
	return a, nil
}

func (m *MockCustody) Get(_ context.Context, ref domain.AssetRef) (*domain.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(ref)
	if err != nil {
		return nil, err
	}
	cp := *a
	return &cp, nil
}

func (m *MockCustody) OwnerOf(ctx context.Context, ref domain.AssetRef) (int64, error) {
	a, err := m.Get(ctx, ref)
	if err != nil {
		return 0, err
	}
	return a.OwnerAccountID, nil
}

func (m *MockCustody) SetCustodyApproval(_ context.Context, ref domain.AssetRef, ownerID int64, approved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(ref)
	if err != nil {
		return err
	}
	if a.OwnerAccountID != ownerID || a.Custodied {
		return fmt.Errorf("%w: asset %s not owned by caller or already custodied", domain.ErrUnauthorized, ref)
	}
	a.CustodyApproved = approved
	return nil
}

func (m *MockCustody) IsCustodyApproved(ctx context.Context, ref domain.AssetRef) (bool, error) {
	a, err := m.Get(ctx, ref)
	if err != nil {
		return false, err
	}
	return a.CustodyApproved, nil
}

func (m *MockCustody) SetOperatorApproval(_ context.Context, ownerID, operatorID int64, approved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if approved {
		if m.operators[ownerID] == nil {
			m.operators[ownerID] = make(map[int64]bool)
		}
		m.operators[ownerID][operatorID] = true
	} else {
		delete(m.operators[ownerID], operatorID)
	}
	return nil
}

func (m *MockCustody) IsApprovedOperator(_ context.Context, ownerID, operatorID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.operators[ownerID][operatorID], nil
}

func (m *MockCustody) TransferIn(_ context.Context, ref domain.AssetRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(ref)
	if err != nil {
		return err
	}
	if !a.CustodyApproved || a.Custodied {
		return fmt.Errorf("%w: asset %s not approved for custody or already custodied", domain.ErrUnauthorized, ref)
	}
	a.Custodied = true
	return nil
}

func (m *MockCustody) TransferOut(_ context.Context, ref domain.AssetRef, toID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(ref)
	if err != nil {
		return err
	}
	if !a.Custodied {
		return fmt.Errorf("transfer out: asset %s is not in custody", ref)
	}
	a.Custodied = false
	a.CustodyApproved = false
	a.OwnerAccountID = toID
	a.CurrentUserID = nil
	a.UserExpiry = nil
	return nil
}

func (m *MockCustody) CurrentUser(ctx context.Context, ref domain.AssetRef) (*int64, error) {
	a, err := m.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return a.CurrentUserID, nil
}

func (m *MockCustody) CurrentUserExpiry(ctx context.Context, ref domain.AssetRef) (*time.Time, error) {
	a, err := m.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return a.UserExpiry, nil
}

// SetGrant installs a usage grant directly; it exists so tests can put an
// asset into the rented state without running a settlement.
func (m *MockCustody) SetGrant(ref domain.AssetRef, userID int64, expiry time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.assets[ref]; ok {
		a.CurrentUserID = &userID
		a.UserExpiry = &expiry
	}
}

func (m *MockCustody) ListExpiredGrants(_ context.Context, asOf time.Time) ([]domain.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Asset
	for _, a := range m.assets {
		if a.Custodied && a.CurrentUserID != nil && a.UserExpiry != nil && a.UserExpiry.Before(asOf) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *MockCustody) ClearGrant(_ context.Context, ref domain.AssetRef, asOf time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(ref)
	if err != nil {
		return err
	}
	if a.UserExpiry != nil && a.UserExpiry.Before(asOf) {
		a.CurrentUserID = nil
		a.UserExpiry = nil
	}
	return nil
}
