package paymentgateway_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/courier-fulfillment/internal/paymentgateway"
)

var _ = ginkgo.Describe("Client", func() {
	var (
		server   *httptest.Server
		received map[string]interface{}
		user     string
		status   int
	)

	ginkgo.BeforeEach(func() {
		status = http.StatusOK
		received = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gomega.Expect(r.URL.Path).To(gomega.Equal("/v2/invoices"))
			user, _, _ = r.BasicAuth()
			_ = json.NewDecoder(r.Body).Decode(&received)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"id":"inv_1","external_id":"INV-1-7","status":"PENDING","invoice_url":"https://checkout.xendit.co/inv_1","expiry_date":"2026-01-02T03:04:05Z"}`))
		}))
	})

	ginkgo.AfterEach(func() {
		server.Close()
	})

	newClient := func() *paymentgateway.Client {
		return paymentgateway.NewClient(paymentgateway.Config{
			BaseURL:   server.URL + "/",
			SecretKey: "xnd_secret",
		}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}

	ginkgo.It("posts the invoice and decodes the expiry", func() {
		inv, err := newClient().CreateInvoice(context.Background(), paymentgateway.InvoiceRequest{
			ExternalID:         "INV-1-7",
			Amount:             15000,
			Description:        "Shipment #7",
			SuccessRedirectURL: "https://app.example.com/shipments/7",
			Duration:           24 * time.Hour,
		})

		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(user).To(gomega.Equal("xnd_secret"))
		gomega.Expect(received["invoice_duration"]).To(gomega.BeEquivalentTo(86400))
		gomega.Expect(received["currency"]).To(gomega.Equal("IDR"))
		gomega.Expect(inv.InvoiceURL).To(gomega.Equal("https://checkout.xendit.co/inv_1"))
		gomega.Expect(inv.ExpiryDate).To(gomega.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	})

	ginkgo.It("fails on a non-2xx answer", func() {
		status = http.StatusBadRequest

		_, err := newClient().CreateInvoice(context.Background(), paymentgateway.InvoiceRequest{ExternalID: "INV-1-7", Amount: 15000})

		gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("status 400")))
	})

	ginkgo.It("refuses a request without amount", func() {
		_, err := newClient().CreateInvoice(context.Background(), paymentgateway.InvoiceRequest{ExternalID: "INV-1-7"})

		gomega.Expect(err).To(gomega.HaveOccurred())
		gomega.Expect(received).To(gomega.BeNil())
	})
})
