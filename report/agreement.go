package report

import (
	"bytes"
	"context"
	"html/template"
	"time"

	"github.com/meridian-interiors/meridian-quotes/internal/approval"
	"github.com/meridian-interiors/meridian-quotes/internal/quotes"
)

// AgreementSource reads agreements for rendering.
type AgreementSource interface {
	GetAgreement(ctx context.Context, id int64) (*approval.Agreement, error)
}

// QuotationSource reads the quotation an agreement belongs to.
type QuotationSource interface {
	GetQuotation(ctx context.Context, id int64) (*quotes.Quotation, error)
}

// Renderer produces the client-facing agreement document.
type Renderer struct {
	client     *Client
	agreements AgreementSource
	quotations QuotationSource
}

// NewRenderer builds Renderer instance.
func NewRenderer(client *Client, agreements AgreementSource, quotations QuotationSource) *Renderer {
	return &Renderer{client: client, agreements: agreements, quotations: quotations}
}

type milestoneRow struct {
	Label   string
	Percent int
	Amount  string
}

type agreementDoc struct {
	Ref         string
	ProjectName string
	ClientName  string
	City        string
	Total       string
	Milestones  []milestoneRow
	TermsText   string
	GeneratedAt string
}

var agreementTemplate = template.Must(template.New("agreement").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Agreement {{.Ref}}</title>
<style>
body { font-family: "Helvetica Neue", Arial, sans-serif; margin: 40px; color: #1a1a1a; }
h1 { font-size: 22px; border-bottom: 2px solid #1a1a1a; padding-bottom: 8px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { text-align: left; padding: 8px 12px; border-bottom: 1px solid #ddd; }
.total { font-size: 18px; font-weight: bold; margin-top: 24px; }
.terms { margin-top: 32px; white-space: pre-wrap; font-size: 12px; color: #444; }
.footer { margin-top: 48px; font-size: 11px; color: #888; }
</style>
</head>
<body>
<h1>Interior Work Agreement</h1>
<p><strong>{{.ProjectName}}</strong> &middot; {{.ClientName}}{{if .City}} &middot; {{.City}}{{end}}</p>
<p>Reference: {{.Ref}}</p>
<p class="total">Contract value: {{.Total}}</p>
<table>
<tr><th>Milestone</th><th>Share</th><th>Amount</th></tr>
{{range .Milestones}}<tr><td>{{.Label}}</td><td>{{.Percent}}%</td><td>{{.Amount}}</td></tr>
{{end}}</table>
{{if .TermsText}}<div class="terms">{{.TermsText}}</div>{{end}}
<div class="footer">Generated {{.GeneratedAt}}</div>
</body>
</html>
`))

// AgreementHTML renders the agreement document as HTML.
func (r *Renderer) AgreementHTML(ctx context.Context, agreementID int64) (string, error) {
	agreement, err := r.agreements.GetAgreement(ctx, agreementID)
	if err != nil {
		return "", err
	}
	quotation, err := r.quotations.GetQuotation(ctx, agreement.QuotationID)
	if err != nil {
		return "", err
	}

	doc := agreementDoc{
		Ref:         agreement.Ref.String(),
		ProjectName: quotation.ProjectName,
		ClientName:  quotation.ClientName,
		City:        quotation.City,
		Total:       approval.FormatINR(agreement.TotalPaise),
		TermsText:   agreement.TermsText,
		GeneratedAt: time.Now().Format(time.RFC1123),
	}
	for _, m := range agreement.Milestones {
		doc.Milestones = append(doc.Milestones, milestoneRow{
			Label:   m.Label,
			Percent: m.Percent,
			Amount:  approval.FormatINR(m.AmountPaise),
		})
	}

	var buf bytes.Buffer
	if err := agreementTemplate.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// AgreementPDF renders the agreement document as a PDF via Gotenberg.
func (r *Renderer) AgreementPDF(ctx context.Context, agreementID int64) ([]byte, error) {
	html, err := r.AgreementHTML(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html)
}
