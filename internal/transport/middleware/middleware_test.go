package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/auth"
	"github.com/frahmantamala/courier-fulfillment/internal/transport/middleware"
)

const secret = "0123456789abcdef0123456789abcdef"

var _ = ginkgo.Describe("Authenticate", func() {
	var (
		tokens  *auth.JWTTokenGenerator
		handler http.Handler
		seen    int64
	)

	ginkgo.BeforeEach(func() {
		seen = 0
		tokens = auth.NewJWTTokenGenerator(secret)
		handler = middleware.Authenticate(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = internal.UserIDFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))
	})

	serve := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/shipments", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	ginkgo.It("puts the token subject in the context", func() {
		token, err := tokens.GenerateAccessToken(17, "budi@example.com")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		rec := serve("Bearer " + token)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(seen).To(gomega.Equal(int64(17)))
	})

	ginkgo.It("rejects a missing header", func() {
		rec := serve("")

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(string(internal.ErrCodeInvalidToken)))
	})

	ginkgo.It("rejects a token signed with another secret", func() {
		other, _ := auth.NewJWTTokenGenerator("ffffffffffffffffffffffffffffffff").GenerateAccessToken(17, "")

		rec := serve("Bearer " + other)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(seen).To(gomega.BeZero())
	})

	ginkgo.It("reports an expired token", func() {
		tokens.TTL = -1
		token, _ := tokens.GenerateAccessToken(17, "")

		rec := serve("Bearer " + token)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(string(internal.ErrCodeTokenExpired)))
	})
})

var _ = ginkgo.Describe("RequestID", func() {
	ginkgo.It("echoes an inbound id", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-1")
		rec := httptest.NewRecorder()

		middleware.RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, req)

		gomega.Expect(rec.Header().Get(middleware.RequestIDHeader)).To(gomega.Equal("req-1"))
	})

	ginkgo.It("mints an id when none is sent", func() {
		rec := httptest.NewRecorder()

		middleware.RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		gomega.Expect(rec.Header().Get(middleware.RequestIDHeader)).To(gomega.HaveLen(36))
	})
})

var _ = ginkgo.Describe("Recovery", func() {
	ginkgo.It("answers 500 without leaking the panic", func() {
		rec := httptest.NewRecorder()

		middleware.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("db password is hunter2")
		})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusInternalServerError))
		gomega.Expect(rec.Body.String()).ToNot(gomega.ContainSubstring("hunter2"))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("INTERNAL_ERROR"))
	})
})

var _ = ginkgo.Describe("CORS", func() {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	ginkgo.It("answers a preflight for an allowed origin", func() {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/shipments", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()

		middleware.CORS("https://app.example.com, https://admin.example.com")(next).ServeHTTP(rec, req)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(gomega.Equal("https://app.example.com"))
	})

	ginkgo.It("does not grant an unknown origin", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()

		middleware.CORS("https://app.example.com")(next).ServeHTTP(rec, req)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusTeapot))
		gomega.Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(gomega.BeEmpty())
	})
})

var _ = ginkgo.Describe("Logging", func() {
	ginkgo.It("leaves the request body readable for the handler", func() {
		var got string
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"password":"x","weight":1000}`))
		req.Header.Set("Content-Type", "application/json")

		middleware.Logging(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			got = string(b)
		})).ServeHTTP(httptest.NewRecorder(), req)

		gomega.Expect(got).To(gomega.Equal(`{"password":"x","weight":1000}`))
	})
})
