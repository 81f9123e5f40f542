package quotes

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

// RecordClientSignoff stores the client signature timestamp together with a
// bcrypt hash of the signature token. The raw token is never persisted.
func (s *Service) RecordClientSignoff(ctx context.Context, quotationID int64, token string) error {
	if len(token) < 8 {
		return fmt.Errorf("%w: signature token too short", shared.ErrValidation)
	}
	q, err := s.repo.GetQuotation(ctx, quotationID)
	if err != nil {
		return err
	}
	if q == nil {
		return shared.ErrNotFound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := time.Now()
	signoff := q.Signoff
	signoff.ClientSignedAt = &now
	signoff.TokenHash = string(hash)
	if err := s.repo.SaveSignoff(ctx, quotationID, signoff); err != nil {
		return err
	}
	s.recordAudit(ctx, "quotes.signoff.client", "quotation", quotationID, nil)
	return nil
}

// RecordCompanySignoff stores the company counter-signature timestamp.
func (s *Service) RecordCompanySignoff(ctx context.Context, quotationID int64) error {
	q, err := s.repo.GetQuotation(ctx, quotationID)
	if err != nil {
		return err
	}
	if q == nil {
		return shared.ErrNotFound
	}
	now := time.Now()
	signoff := q.Signoff
	signoff.CompanySignedAt = &now
	if err := s.repo.SaveSignoff(ctx, quotationID, signoff); err != nil {
		return err
	}
	s.recordAudit(ctx, "quotes.signoff.company", "quotation", quotationID, nil)
	return nil
}

// VerifySignoffToken checks a presented token against the stored hash.
func (s *Service) VerifySignoffToken(ctx context.Context, quotationID int64, token string) (bool, error) {
	q, err := s.repo.GetQuotation(ctx, quotationID)
	if err != nil {
		return false, err
	}
	if q == nil || q.Signoff.TokenHash == "" {
		return false, shared.ErrNotFound
	}
	err = bcrypt.CompareHashAndPassword([]byte(q.Signoff.TokenHash), []byte(token))
	return err == nil, nil
}
