package user_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/user"
)

type mockService struct {
	err error
}

func (m *mockService) Profile(_ context.Context, userID int64) (*user.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &user.Profile{ID: userID, Email: "courier@courier.test", Role: "Courier", Permissions: []string{"delivery.read"}}, nil
}

var _ = ginkgo.Describe("Handler", func() {
	get := func(svc *mockService, userID int64) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		if userID > 0 {
			req = req.WithContext(internal.ContextWithUserID(req.Context(), userID))
		}
		rec := httptest.NewRecorder()
		user.NewHandler(svc, discard).GetCurrentUser(rec, req)
		return rec
	}

	ginkgo.It("returns the caller's profile", func() {
		rec := get(&mockService{}, 7)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		var p user.Profile
		gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &p)).To(gomega.Succeed())
		gomega.Expect(p.ID).To(gomega.Equal(int64(7)))
		gomega.Expect(p.Role).To(gomega.Equal("Courier"))
	})

	ginkgo.It("rejects a request without a user", func() {
		rec := get(&mockService{}, 0)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
	})

	ginkgo.It("maps a missing user to 404", func() {
		rec := get(&mockService{err: internal.ErrUserNotFound}, 7)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNotFound))
	})
})
