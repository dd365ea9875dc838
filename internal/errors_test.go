package internal_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/courier-fulfillment/internal"
)

var _ = ginkgo.Describe("AppError", func() {
	ginkgo.DescribeTable("maps each type to its HTTP status",
		func(err *internal.AppError, status int) {
			code, _ := err.ToHTTPResponse()
			gomega.Expect(code).To(gomega.Equal(status))
		},
		ginkgo.Entry("validation", internal.NewValidationError("bad", internal.ErrCodeValidationFailed), http.StatusBadRequest),
		ginkgo.Entry("not found", internal.ErrShipmentNotFound, http.StatusNotFound),
		ginkgo.Entry("unauthorized", internal.ErrInvalidToken, http.StatusUnauthorized),
		ginkgo.Entry("forbidden", internal.ErrInsufficientPermissions, http.StatusForbidden),
		ginkgo.Entry("invalid state", internal.ErrStatusConflict, http.StatusConflict),
		ginkgo.Entry("invalid sequence", internal.NewInvalidSequenceError("out before in", internal.ErrCodeScanNotOpen), http.StatusUnprocessableEntity),
		ginkgo.Entry("upstream", internal.NewUpstreamError("qr", internal.ErrCodeStorageFailed, nil), http.StatusBadGateway),
		ginkgo.Entry("internal", internal.NewInternalError("boom", nil), http.StatusInternalServerError),
	)

	ginkgo.It("matches a sentinel through wrapping and causes", func() {
		withCause := internal.ErrShipmentNotFound.WithCause(errors.New("record not found"))
		wrapped := fmt.Errorf("load: %w", withCause)

		gomega.Expect(errors.Is(wrapped, internal.ErrShipmentNotFound)).To(gomega.BeTrue())
		gomega.Expect(errors.Is(wrapped, internal.ErrPaymentNotFound)).To(gomega.BeFalse())
		gomega.Expect(internal.IsType(wrapped, internal.ErrorTypeNotFound)).To(gomega.BeTrue())
	})

	ginkgo.It("keeps the cause out of the JSON body", func() {
		err := internal.NewUpstreamError("failed to store qr code", internal.ErrCodeStorageFailed, errors.New("disk full"))

		body, marshalErr := json.Marshal(internal.Response{Error: err})

		gomega.Expect(marshalErr).ToNot(gomega.HaveOccurred())
		gomega.Expect(string(body)).To(gomega.MatchJSON(`{"error":{"type":"UPSTREAM_ERROR","code":"STORAGE_FAILED","message":"failed to store qr code"}}`))
		gomega.Expect(err.Error()).To(gomega.ContainSubstring("disk full"))
	})

	ginkgo.It("reports the first field message for validation details", func() {
		err := internal.NewValidationFieldError("weight", "weight must be greater than 0", internal.ErrCodeInvalidWeight)

		gomega.Expect(err.Error()).To(gomega.Equal("weight must be greater than 0"))
	})
})
