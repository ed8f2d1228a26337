// Package notify renders order emails and hands them to the email service.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

var ErrIncompleteOrder = errors.New("order details incomplete")

type Config struct {
	ServiceURL   string
	From         string
	Manufacturer string
}

// DesignLookup resolves the titles of every design in a cart.
type DesignLookup interface {
	GetDesigns(ctx context.Context, ids []int64) (map[int64]*domain.Design, error)
}

type Notifier struct {
	cfg        Config
	designs    DesignLookup
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a Notifier. designs may be nil, in which case cart lines are listed by id.
func New(cfg Config, designs DesignLookup, client *http.Client, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:        cfg,
		designs:    designs,
		httpClient: client,
		logger:     logger,
	}
}

// Message is the payload accepted by the email service's /send endpoint.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type emailData struct {
	Number         string
	Product        string
	Description    string
	Items          []string
	Amount         string
	CustomerName   string
	CustomerEmail  string
	Address        string
	ShippingMethod string
	ShippingRate   string
	Notes          string
	Image          string
	Support        string
}

func (n *Notifier) NotifyManufacturer(ctx context.Context, details *domain.OrderDetails) error {
	data, err := n.render(ctx, details)
	if err != nil {
		return err
	}

	html, err := execute(manufacturerTemplate, data)
	if err != nil {
		return err
	}

	return n.send(ctx, Message{
		From:    n.cfg.From,
		To:      n.cfg.Manufacturer,
		Subject: fmt.Sprintf("New BTC Glass Order %s - %s", data.Number, data.Product),
		HTML:    html,
	})
}

func (n *Notifier) NotifyCustomer(ctx context.Context, details *domain.OrderDetails) error {
	data, err := n.render(ctx, details)
	if err != nil {
		return err
	}

	html, err := execute(customerTemplate, data)
	if err != nil {
		return err
	}

	return n.send(ctx, Message{
		From:    n.cfg.From,
		To:      details.Order.CustomerEmail,
		Subject: fmt.Sprintf("Order Confirmed %s - %s | BTC Glass", data.Number, data.Product),
		HTML:    html,
	})
}

func (n *Notifier) render(ctx context.Context, details *domain.OrderDetails) (*emailData, error) {
	if details == nil || details.Order == nil {
		return nil, ErrIncompleteOrder
	}
	o := details.Order

	data := &emailData{
		Number:         o.DisplayNumber(),
		Product:        ProductTitle(details),
		Amount:         o.Amount.StringFixed(2),
		CustomerName:   o.CustomerName,
		CustomerEmail:  o.CustomerEmail,
		Address:        o.ShippingAddress,
		ShippingMethod: string(o.ShippingMethod),
		ShippingRate:   o.ShippingRate.StringFixed(2),
		Notes:          o.Notes,
		Support:        n.cfg.Manufacturer,
	}
	if details.Design != nil {
		data.Description = details.Design.Description
		data.Image = details.Design.ImageURL
	}
	titles := n.lineTitles(ctx, o.Lines)
	for _, l := range o.Lines {
		name, ok := titles[l.DesignID]
		if !ok {
			name = fmt.Sprintf("design %d", l.DesignID)
		}
		data.Items = append(data.Items, fmt.Sprintf("%d x %s, size %d at $%s", l.Quantity, name, l.SizeOptionID, l.UnitPrice.StringFixed(2)))
	}

	return data, nil
}

func (n *Notifier) lineTitles(ctx context.Context, lines []domain.OrderLine) map[int64]string {
	titles := make(map[int64]string)
	if n.designs == nil || len(lines) < 2 {
		return titles
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.DesignID)
	}
	designs, err := n.designs.GetDesigns(ctx, ids)
	if err != nil {
		n.logger.Warn("design titles unavailable for email", "error", err)
		return titles
	}
	for id, d := range designs {
		titles[id] = d.Title
	}
	return titles
}

// ProductTitle is "<design> - <size>" for the order's first line, with a count suffix
// for carts.
func ProductTitle(details *domain.OrderDetails) string {
	title := "Custom Glass Art"
	if details.Design != nil && details.SizeOption != nil {
		title = details.Design.Title + " - " + details.SizeOption.Name
	}
	if n := len(details.Order.Lines); n > 1 {
		title = fmt.Sprintf("%s (+%d more)", title, n-1)
	}
	return title
}

func execute(t *template.Template, data *emailData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func (n *Notifier) send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.ServiceURL+"/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	n.logger.Info("email queued", "to", msg.To, "subject", msg.Subject)
	return nil
}
