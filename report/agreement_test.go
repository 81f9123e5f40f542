package report

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-interiors/meridian-quotes/internal/approval"
	"github.com/meridian-interiors/meridian-quotes/internal/quotes"
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

type stubAgreementSource struct {
	agreement *approval.Agreement
}

func (s *stubAgreementSource) GetAgreement(ctx context.Context, id int64) (*approval.Agreement, error) {
	if s.agreement == nil || s.agreement.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.agreement, nil
}

type stubQuotationSource struct {
	quotation *quotes.Quotation
}

func (s *stubQuotationSource) GetQuotation(ctx context.Context, id int64) (*quotes.Quotation, error) {
	if s.quotation == nil || s.quotation.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.quotation, nil
}

func TestAgreementHTML(t *testing.T) {
	ref := uuid.New()
	agreements := &stubAgreementSource{agreement: &approval.Agreement{
		ID:          5,
		Ref:         ref,
		QuotationID: 1,
		TotalPaise:  15930000,
		Milestones: []approval.Milestone{
			{Label: "Booking", Percent: 10, AmountPaise: 1593000},
			{Label: "Handover", Percent: 10, AmountPaise: 1593000},
		},
		TermsText: "Work starts after booking.",
	}}
	quotations := &stubQuotationSource{quotation: &quotes.Quotation{
		ID:          1,
		ProjectName: "Lakeview 1204",
		ClientName:  "Asha Rao",
		City:        "Bengaluru",
	}}

	renderer := NewRenderer(nil, agreements, quotations)
	html, err := renderer.AgreementHTML(context.Background(), 5)
	require.NoError(t, err)

	require.Contains(t, html, "Lakeview 1204")
	require.Contains(t, html, "Asha Rao")
	require.Contains(t, html, "Bengaluru")
	require.Contains(t, html, ref.String())
	require.Contains(t, html, "₹1,59,300.00")
	require.Contains(t, html, "Booking")
	require.Contains(t, html, "Work starts after booking.")
}

func TestAgreementHTMLMissingAgreement(t *testing.T) {
	renderer := NewRenderer(nil, &stubAgreementSource{}, &stubQuotationSource{})
	_, err := renderer.AgreementHTML(context.Background(), 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
