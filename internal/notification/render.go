package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/frahmantamala/courier-fulfillment/internal/jobs"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var jakarta = mustLoadLocation("Asia/Jakarta")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

var (
	hari  = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}
	bulan = [...]string{"Januari", "Februari", "Maret", "April", "Mei", "Juni", "Juli", "Agustus", "September", "Oktober", "November", "Desember"}
)

// FormatRupiah renders an amount the way id-ID locales do: "Rp 15.000".
func FormatRupiah(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + "Rp " + b.String()
}

// FormatJakarta renders t in WIB, e.g. "Senin, 02 Maret 2026 pukul 17.00 WIB".
func FormatJakarta(t time.Time) string {
	l := t.In(jakarta)
	return fmt.Sprintf("%s, %02d %s %d pukul %02d.%02d WIB",
		hari[l.Weekday()], l.Day(), bulan[l.Month()-1], l.Year(), l.Hour(), l.Minute())
}

// Render builds the message for an email job. It reports false for a type
// it has no template for.
func Render(p jobs.EmailPayload) (Message, bool, error) {
	var (
		name    string
		subject string
		data    interface{}
	)

	switch p.Type {
	case jobs.EmailTesting:
		name, subject = "testing.html", "Test Email"
		data = struct{ Title, Message string }{"Test Email", "This is a test email"}
	case jobs.EmailPaymentNotification:
		expiry := ""
		if p.ExpiryDate != nil {
			expiry = FormatJakarta(*p.ExpiryDate)
		}
		name, subject = "payment-notification.html", "Payment Notification"
		data = struct {
			ShipmentID         int64
			Amount, ExpiryDate string
			PaymentURL         template.URL
		}{p.ShipmentID, FormatRupiah(p.Amount), expiry, template.URL(p.PaymentURL)}
	case jobs.EmailPaymentSuccess:
		name, subject = "payment-success.html", fmt.Sprintf("Payment Success - %d", p.ShipmentID)
		data = struct {
			ShipmentID             int64
			Amount, TrackingNumber string
		}{p.ShipmentID, FormatRupiah(p.Amount), p.TrackingNumber}
	default:
		return Message{}, false, nil
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return Message{}, true, fmt.Errorf("render %s: %w", name, err)
	}
	return Message{To: p.To, Subject: subject, HTML: buf.String()}, true, nil
}
