package geocode_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/courier-fulfillment/internal/geocode"
)

var _ = ginkgo.Describe("DistanceKm", func() {
	ginkgo.It("is zero for the same point", func() {
		p := geocode.Point{Lat: -6.2, Lng: 106.8}

		gomega.Expect(geocode.DistanceKm(p, p)).To(gomega.BeNumerically("~", 0, 1e-9))
	})

	ginkgo.It("measures Jakarta to Bandung at roughly 120 km", func() {
		jakarta := geocode.Point{Lat: -6.2088, Lng: 106.8456}
		bandung := geocode.Point{Lat: -6.9175, Lng: 107.6191}

		d := geocode.DistanceKm(jakarta, bandung)

		gomega.Expect(d).To(gomega.BeNumerically("~", 116.5, 2))
		gomega.Expect(geocode.DistanceKm(bandung, jakarta)).To(gomega.BeNumerically("~", d, 1e-9))
	})
})

var _ = ginkgo.Describe("OpenCageClient", func() {
	var (
		server *httptest.Server
		body   string
		status int
		query  string
	)

	ginkgo.BeforeEach(func() {
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query().Get("q")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
	})

	ginkgo.AfterEach(func() {
		server.Close()
	})

	client := func() *geocode.OpenCageClient {
		return geocode.NewOpenCageClient(geocode.Config{BaseURL: server.URL, APIKey: "k"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}

	ginkgo.It("returns the first result geometry", func() {
		body = `{"results":[{"geometry":{"lat":-6.9,"lng":107.6}},{"geometry":{"lat":0,"lng":0}}]}`

		p, err := client().Geocode(context.Background(), "Jl. Merdeka 10, Bandung")

		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(p).To(gomega.Equal(geocode.Point{Lat: -6.9, Lng: 107.6}))
		gomega.Expect(query).To(gomega.Equal("Jl. Merdeka 10, Bandung"))
	})

	ginkgo.It("fails when nothing matches", func() {
		body = `{"results":[]}`

		_, err := client().Geocode(context.Background(), "nowhere")

		gomega.Expect(err).To(gomega.MatchError(geocode.ErrNoResults))
	})

	ginkgo.It("fails on an API error status", func() {
		status = http.StatusPaymentRequired
		body = `{}`

		_, err := client().Geocode(context.Background(), "anywhere")

		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})
