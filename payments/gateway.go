package payments

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/anjiri1684/campus_manager/utils"
)

// ErrNotFound is returned when the gateway has no record of the requested object.
var ErrNotFound = errors.New("gateway object not found")

// Gateway is the subset of the payment provider used by the payment flows.
// Amounts crossing this interface are in the smallest currency unit (paise).
type Gateway interface {
	CreateOrder(req OrderRequest) (*Order, error)
	FetchOrder(orderID string) (*Order, error)
	FetchPayment(paymentID string) (*GatewayPayment, error)
	Refund(paymentID string, amount int64, notes map[string]string) (*GatewayRefund, error)
	FetchRefund(refundID string) (*GatewayRefund, error)
	CreatePaymentLink(req PaymentLinkRequest) (*PaymentLink, error)
	KeyID() string
}

type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

type Order struct {
	ID         string            `json:"id"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     string            `json:"status"`
	Notes      map[string]string `json:"notes"`
	CreatedAt  int64             `json:"created_at"`
}

// Paid reports whether the gateway considers the order settled.
func (o *Order) Paid() bool { return o.Status == "paid" }

type GatewayPayment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
	Email    string `json:"email"`
	Contact  string `json:"contact"`
	Captured bool   `json:"captured"`
}

type GatewayRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type PaymentLinkRequest struct {
	Amount      int64
	Currency    string
	Description string
	Customer    Customer
	ReferenceID string
	CallbackURL string
	ExpireBy    *time.Time
	Notes       map[string]string
}

type PaymentLink struct {
	ID          string `json:"id"`
	ShortURL    string `json:"short_url"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	ReferenceID string `json:"reference_id"`
}

func ToPaise(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func FromPaise(paise int64) float64 {
	return float64(paise) / 100
}

// NewReceiptID builds the receipt reference attached to gateway orders.
func NewReceiptID() string {
	return fmt.Sprintf("receipt_%d_%s", time.Now().UnixMilli(), utils.RandomCode(9))
}
