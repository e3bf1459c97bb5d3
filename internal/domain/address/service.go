package address

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Input holds the editable fields of an address.
type Input struct {
	FullName     string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	Region       string
	PostalCode   string
	Country      string
	Type         string
	IsDefault    bool
}

// Service manages the address book of each user. Every method is scoped to
// the calling user: addresses owned by someone else are reported as
// ErrNotFound.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates an address Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (in Input) normalize() (Input, error) {
	trim := func(s *string) { *s = strings.TrimSpace(*s) }
	for _, f := range []*string{
		&in.FullName, &in.Phone, &in.AddressLine1, &in.AddressLine2,
		&in.City, &in.Region, &in.PostalCode, &in.Country,
	} {
		trim(f)
	}
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if in.Type == "" {
		in.Type = TypeShipping
	}

	switch {
	case in.FullName == "":
		return in, errors.Wrap(ErrInvalidInput, "fullName is required")
	case in.AddressLine1 == "":
		return in, errors.Wrap(ErrInvalidInput, "addressLine1 is required")
	case in.City == "":
		return in, errors.Wrap(ErrInvalidInput, "city is required")
	case in.Country == "":
		return in, errors.Wrap(ErrInvalidInput, "country is required")
	case in.Type != TypeShipping && in.Type != TypeBilling:
		return in, errors.Wrapf(ErrInvalidInput, "type must be %q or %q", TypeShipping, TypeBilling)
	}
	return in, nil
}

func (in Input) apply(a *Address) {
	a.FullName = in.FullName
	a.Phone = in.Phone
	a.AddressLine1 = in.AddressLine1
	a.AddressLine2 = in.AddressLine2
	a.City = in.City
	a.Region = in.Region
	a.PostalCode = in.PostalCode
	a.Country = in.Country
	a.Type = in.Type
	a.IsDefault = in.IsDefault
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Add stores a new address for userID.
func (s *Service) Add(ctx context.Context, userID int64, in Input) (*Address, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	now := s.timestamp()
	a := &Address{UserID: userID, CreatedAt: now, UpdatedAt: now}
	in.apply(a)
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, errors.Wrap(err, "create address")
	}
	return a, nil
}

// List returns the addresses of userID.
func (s *Service) List(ctx context.Context, userID int64) ([]Address, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list addresses")
	}
	return list, nil
}

// Get returns the address id if userID owns it.
func (s *Service) Get(ctx context.Context, userID, id int64) (*Address, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrNotFound
	}
	return a, nil
}

// Update replaces every editable field of the address id.
func (s *Service) Update(ctx context.Context, userID, id int64, in Input) (*Address, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	a, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	in.apply(a)
	a.UpdatedAt = s.timestamp()
	if err := s.repo.Update(ctx, a); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "update address")
	}
	return a, nil
}

// Delete removes the address id.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "delete address")
	}
	return nil
}
