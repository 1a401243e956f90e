package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/sdcpainting/referral_site/models"
)

// PDFRenderer prints an HTML document to PDF.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// ChromePDF renders through a headless Chrome started per call.
type ChromePDF struct {
	Timeout time.Duration
}

func (r ChromePDF) RenderPDF(ctx context.Context, htmlContent string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var pdf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print estimate pdf: %w", err)
	}
	return pdf, nil
}

var estimateSheet = template.Must(template.New("estimate").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Estimate {{.ID}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 40px; color: #222; }
h1 { color: #1d4e89; margin-bottom: 4px; }
table { border-collapse: collapse; width: 100%; margin-top: 24px; }
td { border-bottom: 1px solid #ddd; padding: 8px; vertical-align: top; }
td.label { width: 30%; font-weight: bold; }
</style></head>
<body>
<h1>Sergio Diaz Custom Painting</h1>
<p>Estimate request received {{.Received}}</p>
<table>
<tr><td class="label">Name</td><td>{{.E.FullName}}</td></tr>
<tr><td class="label">Email</td><td>{{.E.Email}}</td></tr>
<tr><td class="label">Phone</td><td>{{.E.Phone}}</td></tr>
<tr><td class="label">Address</td><td>{{.Address}}</td></tr>
<tr><td class="label">Budget</td><td>{{.E.Budget}}</td></tr>
<tr><td class="label">Preferred date</td><td>{{.E.PreferredDate}}</td></tr>
<tr><td class="label">Scope</td><td>{{.E.Scope}}</td></tr>
<tr><td class="label">Status</td><td>{{.E.Status}}</td></tr>
{{if .E.ReferralMatched}}<tr><td class="label">Referral</td><td>{{.E.ReferralCode}} ({{.E.DiscountPercent}}% discount)</td></tr>{{end}}
</table>
</body></html>`))

func renderEstimateHTML(est *models.Estimate) (string, error) {
	data := struct {
		ID       string
		E        *models.Estimate
		Address  string
		Received string
	}{
		ID:       est.ID,
		E:        est,
		Address:  formatAddress(est.Address),
		Received: est.CreatedAt.Format("January 2, 2006"),
	}

	var out bytes.Buffer
	if err := estimateSheet.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}
