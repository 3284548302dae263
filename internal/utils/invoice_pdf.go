package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"time"

	"mutaengine_back_end/internal/models"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// GenerateOrderQR encode la référence de commande en PNG base64 prêt pour <img src="...">
func GenerateOrderQR(reference string) (string, error) {
	png, err := qrcode.Encode(reference, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// InvoiceReference est la référence imprimée sur la facture et dans le QR
func InvoiceReference(orderID string) string {
	return "FACT-" + orderID
}

type InvoiceData struct {
	Company      string
	SupportEmail string
	Order        models.Order
	Customer     models.User
}

var invoiceTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Invoice {{.Reference}}</title></head>
<body style="font-family: Arial, sans-serif; padding: 20px;">
	<h2>{{.Company}}</h2>
	<p>Invoice {{.Reference}}<br>Date: {{.Date}}</p>
	<p>Billed to: {{.Customer.Username}} &lt;{{.Customer.Email}}&gt;</p>
	<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
		<thead>
			<tr style="background-color: #f0f0f0;">
				<th style="padding: 8px; text-align: left;">Product</th>
				<th style="padding: 8px; text-align: left;">Quantity</th>
				<th style="padding: 8px; text-align: left;">Unit price</th>
				<th style="padding: 8px; text-align: left;">Total</th>
			</tr>
		</thead>
		<tbody>
		{{range .Order.Items}}
			<tr>
				<td style="padding: 8px;">{{.ProductTitle}}</td>
				<td style="padding: 8px;">{{.Quantity}}</td>
				<td style="padding: 8px;">{{money .UnitPrice}}</td>
				<td style="padding: 8px;">{{money .Price}}</td>
			</tr>
		{{end}}
		</tbody>
		<tfoot>
			<tr>
				<td colspan="3" style="padding: 8px; text-align: right; font-weight: bold;">Total:</td>
				<td style="padding: 8px; font-weight: bold;">{{money .Order.TotalAmount}}</td>
			</tr>
		</tfoot>
	</table>
	<img src="{{.QR}}" alt="{{.Reference}}" width="128" height="128">
	<p style="color: #555;">Questions? {{.SupportEmail}}</p>
</body>
</html>`))

// GenerateInvoiceHTML rend la facture HTML. Le même HTML sert de corps de mail et de source du PDF.
func GenerateInvoiceHTML(data InvoiceData) (string, error) {
	ref := InvoiceReference(data.Order.ID)
	qr, err := GenerateOrderQR(ref)
	if err != nil {
		return "", fmt.Errorf("erreur génération QR: %w", err)
	}

	var buf bytes.Buffer
	err = invoiceTemplate.Execute(&buf, struct {
		InvoiceData
		Reference string
		Date      string
		QR        template.URL
	}{data, ref, data.Order.CreatedAt.Format("2006-01-02"), template.URL(qr)})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ChromeRenderer imprime du HTML en PDF avec un Chrome headless
type ChromeRenderer struct {
	Timeout time.Duration
}

func (r ChromeRenderer) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	var pdf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
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
		return nil, fmt.Errorf("rendu PDF: %w", err)
	}
	return pdf, nil
}
