package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"coordy/internal/models"
	"coordy/internal/repositories"

	"github.com/google/uuid"
)

// Reservations is an in-memory ReservationRepository.
type Reservations struct {
	mu   sync.RWMutex
	byID map[string]models.Reservation

	// FailCreate, when set, is returned by Create. Tests use it to
	// exercise booking compensation.
	FailCreate error
}

func NewReservations() *Reservations {
	return &Reservations{byID: make(map[string]models.Reservation)}
}

var _ repositories.ReservationRepository = (*Reservations)(nil)

func (r *Reservations) Create(ctx context.Context, res *models.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailCreate != nil {
		return r.FailCreate
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now()
	res.CreatedAt = now
	res.UpdatedAt = now
	r.byID[res.ID] = *res
	return nil
}

func (r *Reservations) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrReservationNotFound
	}
	return &res, nil
}

func (r *Reservations) Update(ctx context.Context, res *models.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[res.ID]; !ok {
		return repositories.ErrReservationNotFound
	}
	res.UpdatedAt = time.Now()
	r.byID[res.ID] = *res
	return nil
}

func (r *Reservations) ListByClient(ctx context.Context, clientID string) ([]models.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Reservation
	for _, res := range r.byID {
		if res.ClientID == clientID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	return out, nil
}
