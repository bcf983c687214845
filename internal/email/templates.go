package email

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/shopspring/decimal"
)

var confirmationTemplate = template.Must(template.New("order-confirmation").Funcs(template.FuncMap{
	"amount":   formatAmount,
	"subtotal": lineSubtotal,
}).Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="border-bottom: 3px solid #000; padding-bottom: 20px; margin-bottom: 20px;">
		<h1 style="font-size: 32px; font-weight: 900; margin: 0;">VENDO</h1>
	</div>

	<h2 style="font-size: 24px; font-weight: 900;">Order Confirmed</h2>
	<p style="color: #555; font-size: 16px;">Hey {{.CustomerName}}, your order has been placed successfully.</p>

	<div style="border: 2px solid #000; padding: 12px 16px; margin-bottom: 24px; display: inline-block;">
		<p style="margin: 0; font-weight: 900; font-size: 14px; text-transform: uppercase;">Order ID</p>
		<p style="margin: 0; font-size: 18px; font-weight: 900; font-family: monospace;">#{{.OrderID}}</p>
	</div>

	<h3 style="font-size: 16px; font-weight: 900; text-transform: uppercase;">Items Ordered</h3>
	<table style="width: 100%; border-collapse: collapse; border: 2px solid #000; margin-bottom: 24px;">
		<thead>
			<tr style="background: #f5f5f5;">
				<th style="padding: 10px 16px; text-align: left;">Product</th>
				<th style="padding: 10px 16px; text-align: right;">Qty</th>
				<th style="padding: 10px 16px; text-align: right;">Price</th>
			</tr>
		</thead>
		<tbody>
			{{- range .Items}}
			<tr>
				<td style="padding: 12px 16px; border-bottom: 1px solid #eee;">
					<strong>{{.ProductName}}</strong>
					{{- if .VariantValue}}<br><span style="font-size: 12px; color: #888;">{{.VariantValue}}</span>{{end}}
				</td>
				<td style="padding: 12px 16px; border-bottom: 1px solid #eee; text-align: right;">{{.Quantity}}</td>
				<td style="padding: 12px 16px; border-bottom: 1px solid #eee; text-align: right;">&#8377;{{subtotal .}}</td>
			</tr>
			{{- end}}
		</tbody>
		<tfoot>
			<tr style="background: #f5f5f5; border-top: 2px solid #000;">
				<td colspan="2" style="padding: 12px 16px; font-weight: 900; text-transform: uppercase;">Total</td>
				<td style="padding: 12px 16px; text-align: right; font-weight: 900; font-size: 18px;">&#8377;{{amount .Total}}</td>
			</tr>
		</tfoot>
	</table>

	{{- with .ShippingAddress}}{{if .Address1}}
	<h3 style="font-size: 16px; font-weight: 900; text-transform: uppercase;">Shipping To</h3>
	<div style="border: 2px solid #000; padding: 16px; margin-bottom: 24px;">
		<p style="margin: 0; font-weight: bold;">{{.Name}}</p>
		<p style="margin: 0; color: #555;">{{.Address1}}</p>
		{{- if .Address2}}<p style="margin: 0; color: #555;">{{.Address2}}</p>{{end}}
		<p style="margin: 0; color: #555;">{{.City}}, {{.State}} {{.Zip}}</p>
		{{- if .Country}}<p style="margin: 0; color: #555;">{{.Country}}</p>{{end}}
	</div>
	{{- end}}{{end}}

	<hr style="border: none; border-top: 2px solid #000; margin: 30px 0;">
	<p style="font-size: 12px; color: #888; text-align: center;">Questions? Email us at support@vendo.com</p>
</body>
</html>`))

// BuildOrderConfirmationBody renders the HTML body for an order confirmation.
// Every customer-supplied string is escaped.
func BuildOrderConfirmationBody(c order.Confirmation) (string, error) {
	var buf bytes.Buffer
	if err := confirmationTemplate.Execute(&buf, c); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func lineSubtotal(item order.LineItem) string {
	return formatAmount(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
}

// formatAmount renders a major-unit amount with two decimals and comma
// separators, e.g. 12345.5 -> "12,345.50".
func formatAmount(d decimal.Decimal) string {
	str := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(str, "-") {
		sign, str = "-", str[1:]
	}
	whole, frac, _ := strings.Cut(str, ".")
	if len(whole) <= 3 {
		return sign + whole + "." + frac
	}

	var result strings.Builder
	remainder := len(whole) % 3
	if remainder > 0 {
		result.WriteString(whole[:remainder])
	}
	for i := remainder; i < len(whole); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(whole[i : i+3])
	}
	return sign + result.String() + "." + frac
}
