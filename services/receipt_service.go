package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/notifications"
	"github.com/anjiri1684/campus_manager/storage"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PDFRenderer turns an HTML document into PDF bytes.
type PDFRenderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// ChromeRenderer prints HTML through a headless Chrome driven by chromedp.
type ChromeRenderer struct{}

func (ChromeRenderer) Render(ctx context.Context, htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
body { font-family: Arial, sans-serif; margin: 40px; color: #222; }
h1 { font-size: 22px; border-bottom: 2px solid #1f4e79; padding-bottom: 8px; }
table { width: 100%; border-collapse: collapse; margin-top: 20px; }
td { padding: 8px; border-bottom: 1px solid #ddd; }
td.label { color: #555; width: 40%; }
</style></head><body>
<h1>{{.AppName}} Payment Receipt</h1>
<table>
<tr><td class="label">Receipt No.</td><td>{{.PaymentID}}</td></tr>
<tr><td class="label">Student</td><td>{{.StudentName}}{{if .StudentCode}} ({{.StudentCode}}){{end}}</td></tr>
<tr><td class="label">Purpose</td><td>{{.Type}}{{if .Description}}: {{.Description}}{{end}}</td></tr>
<tr><td class="label">Amount</td><td>{{.Currency}} {{printf "%.2f" .Amount}}</td></tr>
<tr><td class="label">Method</td><td>{{.Method}}</td></tr>
<tr><td class="label">Transaction</td><td>{{.Transaction}}</td></tr>
<tr><td class="label">Paid on</td><td>{{.PaidOn}}</td></tr>
</table>
</body></html>`))

type ReceiptService struct {
	db       *gorm.DB
	renderer PDFRenderer
	uploader storage.Uploader
	mailer   *notifications.Mailer
	appName  string
	log      logger.Logger
}

func NewReceiptService(db *gorm.DB, renderer PDFRenderer, uploader storage.Uploader, mailer *notifications.Mailer, appName string, log logger.Logger) *ReceiptService {
	return &ReceiptService{db: db, renderer: renderer, uploader: uploader, mailer: mailer, appName: appName, log: log}
}

// Issue generates the receipt in the background.
func (r *ReceiptService) Issue(paymentID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if _, err := r.Generate(ctx, paymentID); err != nil {
			r.log.WithError(err).Error("Failed to generate payment receipt", map[string]interface{}{"paymentId": paymentID})
		}
	}()
}

// Generate renders, uploads and records the receipt for a completed payment and emails
// the student a link to it.
func (r *ReceiptService) Generate(ctx context.Context, paymentID uuid.UUID) (string, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Preload("Student.Student").First(&payment, "id = ?", paymentID).Error
	if err != nil {
		return "", err
	}
	if payment.Status != models.PaymentCompleted {
		return "", fmt.Errorf("payment %s is %s, not completed", paymentID, payment.Status)
	}

	html, err := r.renderHTML(&payment)
	if err != nil {
		return "", err
	}
	pdf, err := r.renderer.Render(ctx, html)
	if err != nil {
		return "", fmt.Errorf("render receipt pdf: %w", err)
	}
	file, err := r.uploader.Upload(ctx, bytes.NewReader(pdf), storage.UploadOptions{
		Filename:    fmt.Sprintf("receipt_%s.pdf", payment.ID),
		ContentType: "application/pdf",
		Folder:      "receipts",
	})
	if err != nil {
		return "", fmt.Errorf("upload receipt: %w", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).Update("receipt_url", file.URL).Error; err != nil {
			return err
		}
		return tx.Model(&models.FeePayment{}).Where("payment_id = ?", payment.ID).Update("receipt_url", file.URL).Error
	})
	if err != nil {
		return "", err
	}
	r.log.Info("Payment receipt stored", map[string]interface{}{"paymentId": payment.ID, "url": file.URL})

	if r.mailer != nil && payment.Student != nil {
		r.mailer.SendTemplateAsync(payment.Student.Email, payment.Student.FullName(), notifications.TemplatePaymentReceipt, map[string]interface{}{
			"Amount":     fmt.Sprintf("%.2f", payment.Amount),
			"Currency":   payment.Currency,
			"PaymentID":  payment.ID.String(),
			"ReceiptURL": file.URL,
			"Date":       paidOn(&payment),
		})
	}
	return file.URL, nil
}

func (r *ReceiptService) renderHTML(p *models.Payment) (string, error) {
	data := map[string]interface{}{
		"AppName":     r.appName,
		"PaymentID":   p.ID.String(),
		"Type":        p.Type,
		"Description": p.Description,
		"Currency":    p.Currency,
		"Amount":      p.Amount,
		"Method":      p.PaymentMethod,
		"Transaction": "",
		"StudentName": "",
		"StudentCode": "",
	}
	if p.GatewayTransactionID != nil {
		data["Transaction"] = *p.GatewayTransactionID
	}
	data["PaidOn"] = paidOn(p)
	if p.Student != nil {
		data["StudentName"] = p.Student.FullName()
		if p.Student.Student != nil {
			data["StudentCode"] = p.Student.Student.StudentID
		}
	}

	var out bytes.Buffer
	if err := receiptTemplate.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}

func paidOn(p *models.Payment) string {
	if p.PaymentDate == nil {
		return ""
	}
	return p.PaymentDate.Format("January 2, 2006 15:04")
}
