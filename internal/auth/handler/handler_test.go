package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	accountModels "electa/internal/account/models"
	"electa/internal/auth/handler/mocks"
	"electa/internal/auth/service"
	"electa/internal/auth/token"
	id "electa/pkg/domain"
	dErrors "electa/pkg/domain-errors"
	"electa/pkg/requestcontext"
	"electa/pkg/testutil"
)

type AuthHandlerSuite struct {
	suite.Suite
	service   *mocks.MockService
	router    chi.Router
	account   *accountModels.Account
	jti       string
	expiresAt time.Time
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerSuite))
}

func (s *AuthHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.account = &accountModels.Account{
		ID:            id.NewAccountID(),
		Name:          "Ada",
		Email:         "ada@example.com",
		WalletAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Role:          accountModels.RoleVoter,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	s.jti = "jti-123"
	s.expiresAt = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	// Stands in for OptionalAuth: requests carrying a bearer header get a session.
	session := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				ctx := requestcontext.WithAccountID(r.Context(), s.account.ID)
				ctx = requestcontext.WithToken(ctx, s.jti, s.expiresAt)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}

	s.router = chi.NewRouter()
	New(s.service, logger, session, true).Register(s.router)
}

func (s *AuthHandlerSuite) TestGenerateCode() {
	s.Run("sends the code", func() {
		s.service.EXPECT().RequestCode(gomock.Any(), "ada@example.com").Return(nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/generateOtp",
			map[string]string{"email": " ada@example.com "}))

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "success", true)
		testutil.AssertJSONContains(s.T(), rr, "message", "Email sent to ada@example.com")
	})

	s.Run("unknown email is 404", func() {
		s.service.EXPECT().RequestCode(gomock.Any(), "nobody@example.com").
			Return(dErrors.New(dErrors.CodeNotFound, "invalid email"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/generateOtp",
			map[string]string{"email": "nobody@example.com"}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("delivery failure is 500 without details", func() {
		s.service.EXPECT().RequestCode(gomock.Any(), "ada@example.com").
			Return(dErrors.Wrap(errors.New("dial tcp: refused"), dErrors.CodeDeliveryFailed, "email could not be sent"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/generateOtp",
			map[string]string{"email": "ada@example.com"}))

		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		s.NotContains(string(testutil.ReadBody(s.T(), rr)), "refused")
	})

	s.Run("missing email never reaches the service", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/generateOtp",
			map[string]string{}))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *AuthHandlerSuite) TestLogin() {
	testutil.Given(s.T(), "a valid code", func(t *testing.T) {
		issued := token.Issued{Token: "signed.jwt.value", JTI: s.jti, ExpiresAt: s.expiresAt}
		s.service.EXPECT().VerifyCode(gomock.Any(), "ada@example.com", "a1b2c3d4e5").
			Return(&service.LoginResult{Account: s.account, Token: issued}, nil)

		testutil.When(t, "logging in", func(t *testing.T) {
			rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/login",
				map[string]string{"email": "ada@example.com", "otp": "a1b2c3d4e5"}))

			testutil.Then(t, "the token is returned and set as a strict HttpOnly cookie", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				body := testutil.UnmarshalMap(t, rr)
				s.Equal("signed.jwt.value", body["token"])
				s.Equal("ada@example.com", body["user"].(map[string]any)["email"])

				cookie := testutil.FindCookie(rr, "token")
				s.Require().NotNil(cookie)
				s.Equal("signed.jwt.value", cookie.Value)
				s.True(cookie.HttpOnly)
				s.True(cookie.Secure)
				s.Equal(http.SameSiteStrictMode, cookie.SameSite)
			})
		})
	})

	s.Run("expired code is 400 and sets no cookie", func() {
		s.service.EXPECT().VerifyCode(gomock.Any(), "ada@example.com", "stale").
			Return(nil, dErrors.New(dErrors.CodeInvalidOrExpired, "OTP is invalid or expired"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/login",
			map[string]string{"email": "ada@example.com", "otp": "stale"}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidOrExpired))
		s.Nil(testutil.FindCookie(rr, "token"))
	})

	s.Run("wrong code is 401", func() {
		s.service.EXPECT().VerifyCode(gomock.Any(), "ada@example.com", "wrong").
			Return(nil, dErrors.New(dErrors.CodeInvalidCredential, "invalid OTP"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/login",
			map[string]string{"email": "ada@example.com", "otp": "wrong"}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeInvalidCredential))
	})
}

func (s *AuthHandlerSuite) TestLogout() {
	s.Run("revokes the presented session and clears the cookie", func() {
		s.service.EXPECT().Logout(gomock.Any(), s.account.ID, s.jti, s.expiresAt).Return(nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/logout")
		req.Header.Set("Authorization", "Bearer signed.jwt.value")
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "message", "Logged out successfully")
		cookie := testutil.FindCookie(rr, "token")
		s.Require().NotNil(cookie)
		s.Empty(cookie.Value)
		s.Negative(cookie.MaxAge)
	})

	s.Run("without a session still clears the cookie", func() {
		s.service.EXPECT().Logout(gomock.Any(), id.AccountID{}, "", time.Time{}).Return(nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/logout"))

		testutil.AssertStatusOK(s.T(), rr)
		s.NotNil(testutil.FindCookie(rr, "token"))
	})
}

func TestThrottlesGuardLoginRoutes(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var throttled []string
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			throttled = append(throttled, r.URL.Path)
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	router := chi.NewRouter()
	New(svc, logger, passthrough, false, WithThrottles(deny, deny)).Register(router)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/generateOtp",
		map[string]string{"email": "ada@example.com"}))
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/login",
		map[string]string{"email": "ada@example.com", "otp": "abc"}))
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)

	svc.EXPECT().Logout(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/logout"))
	testutil.AssertStatusOK(t, rr)

	require.Equal(t, []string{"/generateOtp", "/login"}, throttled)
}
