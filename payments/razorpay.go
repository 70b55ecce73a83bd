package payments

import (
	"encoding/json"
	"fmt"
	"strings"

	config "github.com/anjiri1684/campus_manager/configs"
	"github.com/razorpay/razorpay-go"
)

// RazorpayGateway talks to Razorpay through the official SDK.
type RazorpayGateway struct {
	client *razorpay.Client
	keyID  string
}

func NewRazorpayGateway(cfg config.RazorpayConfig) *RazorpayGateway {
	return &RazorpayGateway{
		client: razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		keyID:  cfg.KeyID,
	}
}

func (g *RazorpayGateway) KeyID() string { return g.keyID }

func (g *RazorpayGateway) CreateOrder(req OrderRequest) (*Order, error) {
	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    req.Notes,
	}
	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, wrapErr("create order", err)
	}
	var order Order
	return &order, decode(body, &order)
}

func (g *RazorpayGateway) FetchOrder(orderID string) (*Order, error) {
	body, err := g.client.Order.Fetch(orderID, nil, nil)
	if err != nil {
		return nil, wrapErr("fetch order", err)
	}
	var order Order
	return &order, decode(body, &order)
}

func (g *RazorpayGateway) FetchPayment(paymentID string) (*GatewayPayment, error) {
	body, err := g.client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, wrapErr("fetch payment", err)
	}
	var p GatewayPayment
	return &p, decode(body, &p)
}

func (g *RazorpayGateway) Refund(paymentID string, amount int64, notes map[string]string) (*GatewayRefund, error) {
	data := map[string]interface{}{
		"speed": "normal",
		"notes": notes,
	}
	body, err := g.client.Payment.Refund(paymentID, int(amount), data, nil)
	if err != nil {
		return nil, wrapErr("refund payment", err)
	}
	var r GatewayRefund
	return &r, decode(body, &r)
}

func (g *RazorpayGateway) FetchRefund(refundID string) (*GatewayRefund, error) {
	body, err := g.client.Refund.Fetch(refundID, nil, nil)
	if err != nil {
		return nil, wrapErr("fetch refund", err)
	}
	var r GatewayRefund
	return &r, decode(body, &r)
}

func (g *RazorpayGateway) CreatePaymentLink(req PaymentLinkRequest) (*PaymentLink, error) {
	data := map[string]interface{}{
		"amount":          req.Amount,
		"currency":        req.Currency,
		"accept_partial":  false,
		"description":     req.Description,
		"reference_id":    req.ReferenceID,
		"customer":        req.Customer,
		"notify":          map[string]bool{"sms": true, "email": true},
		"reminder_enable": true,
		"notes":           req.Notes,
	}
	if req.CallbackURL != "" {
		data["callback_url"] = req.CallbackURL
		data["callback_method"] = "get"
	}
	if req.ExpireBy != nil {
		data["expire_by"] = req.ExpireBy.Unix()
	}
	body, err := g.client.PaymentLink.Create(data, nil)
	if err != nil {
		return nil, wrapErr("create payment link", err)
	}
	var link PaymentLink
	return &link, decode(body, &link)
}

func decode(body map[string]interface{}, dst interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

func wrapErr(op string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found") {
		return fmt.Errorf("razorpay %s: %w: %v", op, ErrNotFound, err)
	}
	return fmt.Errorf("razorpay %s: %w", op, err)
}
