package notify

import (
	"html/template"
	"strings"
)

var funcs = template.FuncMap{
	"lines": func(s string) []string { return strings.Split(s, "\n") },
}

var manufacturerTemplate = template.Must(template.New("manufacturer").Funcs(funcs).Parse(`
<div style="font-family: 'JetBrains Mono', monospace; background-color: #0A0A0A; color: #ffffff; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto; background-color: #1A1A1A; border: 1px solid #00FF88; border-radius: 12px; padding: 30px;">
    <h1 style="color: #00FF88; text-align: center;">NEW ORDER RECEIVED</h1>
    <h2 style="color: #00D4FF;">ORDER DETAILS</h2>
    <p><strong>Order ID:</strong> {{.Number}}</p>
    <p><strong>Product:</strong> {{.Product}}</p>
    <p><strong>Amount:</strong> ${{.Amount}}</p>
    {{if .Description}}<p><strong>Description:</strong> {{.Description}}</p>{{end}}
    {{if gt (len .Items) 1}}<ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>{{end}}
    <h2 style="color: #FF0080;">CUSTOMER INFORMATION</h2>
    <p><strong>Name:</strong> {{.CustomerName}}</p>
    <p><strong>Email:</strong> {{.CustomerEmail}}</p>
    <p><strong>Shipping Address:</strong><br/>{{range $i, $l := lines .Address}}{{if $i}}<br/>{{end}}{{$l}}{{end}}</p>
    <p><strong>Shipping:</strong> {{.ShippingMethod}} (${{.ShippingRate}})</p>
    {{if .Notes}}<p><strong>Special Instructions:</strong><br/>{{.Notes}}</p>{{end}}
    {{if .Image}}<div style="text-align: center;"><img src="{{.Image}}" alt="{{.Product}}" style="max-width: 100%;"></div>{{end}}
    <p style="color: #00D4FF; text-align: center;">START CRAFTING THIS PIECE IMMEDIATELY</p>
  </div>
</div>
`))

var customerTemplate = template.Must(template.New("customer").Funcs(funcs).Parse(`
<div style="font-family: 'JetBrains Mono', monospace; background-color: #0A0A0A; color: #ffffff; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto; background-color: #1A1A1A; border: 1px solid #00FF88; border-radius: 12px; padding: 30px;">
    <h1 style="color: #00FF88; text-align: center;">ORDER CONFIRMED</h1>
    <p style="color: #00D4FF; text-align: center;">Thanks {{.CustomerName}}! Your custom glass art is now in production.</p>
    <h2 style="color: #00D4FF;">YOUR ORDER</h2>
    <p><strong>Order Number:</strong> {{.Number}}</p>
    <p><strong>Product:</strong> {{.Product}}</p>
    {{if gt (len .Items) 1}}<ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>{{end}}
    <p><strong>Total Paid:</strong> ${{.Amount}} USD</p>
    <p><strong>Status:</strong> IN PRODUCTION</p>
    {{if .Image}}<div style="text-align: center;"><img src="{{.Image}}" alt="{{.Product}}" style="max-width: 100%;"></div>{{end}}
    <h2 style="color: #FF0080;">SHIPPING DETAILS</h2>
    <p><strong>Shipping To:</strong><br/>{{range $i, $l := lines .Address}}{{if $i}}<br/>{{end}}{{$l}}{{end}}</p>
    {{if .Notes}}<p><strong>Your Instructions:</strong><br/>{{.Notes}}</p>{{end}}
    <h2 style="color: #00D4FF;">WHAT HAPPENS NEXT?</h2>
    <p><strong>Week 1-2:</strong> Our artisan begins crafting your custom piece</p>
    <p><strong>Week 2-3:</strong> Quality check and secure packaging</p>
    <p><strong>Week 3:</strong> Shipped with tracking information</p>
    <p style="text-align: center;">Questions? {{.Support}}, reference order {{.Number}}</p>
  </div>
</div>
`))
