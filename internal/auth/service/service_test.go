package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	accountModels "electa/internal/account/models"
	accountStore "electa/internal/account/store"
	authmetrics "electa/internal/auth/metrics"
	"electa/internal/auth/service/mocks"
	"electa/internal/auth/store/revocation"
	"electa/internal/auth/token"
	"electa/internal/notify"
	id "electa/pkg/domain"
	dErrors "electa/pkg/domain-errors"
	"electa/pkg/platform/audit"
	"electa/pkg/platform/audit/publisher"
	auditmemory "electa/pkg/platform/audit/store/memory"
	"electa/pkg/requestcontext"
)

const (
	voterEmail  = "voter@example.com"
	voterWallet = "0x1111111111111111111111111111111111111111"
	fixedCode   = "a1b2c3d4e5"
)

// outbox records every delivered message and can be told to fail.
type outbox struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

type LoginSuite struct {
	suite.Suite
	accounts *accountStore.InMemoryStore
	audit    *auditmemory.InMemoryStore
	outbox   *outbox
	trl      *revocation.InMemoryTRL
	tokens   *token.JWTService
	metrics  *authmetrics.Metrics
	service  *Service
	account  *accountModels.Account
	now      time.Time
	clock    time.Time
}

func TestLoginSuite(t *testing.T) {
	suite.Run(t, new(LoginSuite))
}

func (s *LoginSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.clock = s.now
	s.accounts = accountStore.NewInMemoryStore()
	s.audit = auditmemory.NewInMemoryStore()
	s.outbox = &outbox{}
	s.trl = revocation.NewInMemoryTRL(func() time.Time { return s.clock })
	s.tokens = token.NewJWTService("test-key", "electa", time.Hour, token.WithClock(func() time.Time { return s.clock }))
	s.metrics = authmetrics.NewWithRegisterer(prometheus.NewRegistry())
	s.service = New(s.accounts, s.tokens, s.outbox, s.trl,
		WithBcryptCost(bcrypt.MinCost),
		WithCodeGenerator(func() (string, error) { return fixedCode, nil }),
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
		WithMetrics(s.metrics),
	)

	wallet, err := id.ParseAddress(voterWallet)
	s.Require().NoError(err)
	account, err := accountModels.NewAccount(id.NewAccountID(), "Voter", voterEmail, wallet, accountModels.RoleVoter, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.accounts.Create(context.Background(), account))
	s.account = account
}

func (s *LoginSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(offset))
}

func (s *LoginSuite) stored() *accountModels.Account {
	a, err := s.accounts.FindByID(context.Background(), s.account.ID)
	s.Require().NoError(err)
	return a
}

func (s *LoginSuite) actions() []string {
	events, err := s.audit.ListByAccount(context.Background(), s.account.ID)
	s.Require().NoError(err)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func (s *LoginSuite) TestRequestCode() {
	s.Run("stores only the hash with its expiry and delivers the code", func() {
		s.Require().NoError(s.service.RequestCode(s.at(0), " Voter@Example.com "))

		a := s.stored()
		s.Require().NotNil(a.CodeHash)
		s.Require().NotNil(a.CodeExpiresAt)
		s.NotEqual(fixedCode, *a.CodeHash)
		s.NoError(bcrypt.CompareHashAndPassword([]byte(*a.CodeHash), []byte(fixedCode)))
		s.Equal(s.now.Add(5*time.Minute), *a.CodeExpiresAt)

		s.Require().Len(s.outbox.sent, 1)
		s.Equal(voterEmail, s.outbox.sent[0].To)
		s.Equal("New OTP", s.outbox.sent[0].Subject)
		s.Contains(s.outbox.sent[0].Body, fixedCode)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.LoginCodesIssued))
		s.Contains(s.actions(), string(audit.EventLoginCodeIssued))
	})

	s.Run("rejects an empty email", func() {
		err := s.service.RequestCode(s.at(0), "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown email is not found", func() {
		err := s.service.RequestCode(s.at(0), "nobody@example.com")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *LoginSuite) TestRequestCode_DeliveryFailureClearsCode() {
	s.outbox.err = errors.New("smtp: connection refused")

	err := s.service.RequestCode(s.at(0), voterEmail)
	s.True(dErrors.HasCode(err, dErrors.CodeDeliveryFailed))

	a := s.stored()
	s.False(a.HasLoginCode())
	s.Nil(a.CodeExpiresAt)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.DeliveryFailures))
	s.Contains(s.actions(), string(audit.EventLoginCodeUndeliver))

	_, err = s.service.VerifyCode(s.at(time.Second), voterEmail, fixedCode)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidOrExpired))
}

func (s *LoginSuite) TestVerifyCode() {
	s.Run("exchanges a live code for a token and consumes it", func() {
		s.Require().NoError(s.service.RequestCode(s.at(0), voterEmail))

		result, err := s.service.VerifyCode(s.at(time.Minute), voterEmail, fixedCode)
		s.Require().NoError(err)
		s.Equal(s.account.ID, result.Account.ID)
		s.NotEmpty(result.Token.Token)
		s.NotEmpty(result.Token.JTI)
		s.False(result.Account.HasLoginCode())
		s.False(s.stored().HasLoginCode())

		claims, err := s.tokens.ValidateToken(result.Token.Token)
		s.Require().NoError(err)
		s.Equal(s.account.ID.String(), claims.AccountID)
		s.Equal("voter", claims.Role)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.LoginAttempts.WithLabelValues(authmetrics.OutcomeSuccess)))
		s.Contains(s.actions(), string(audit.EventLoginSucceeded))
	})

	s.Run("a code works only once", func() {
		_, err := s.service.VerifyCode(s.at(time.Minute), voterEmail, fixedCode)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidOrExpired))
	})

	s.Run("rejects empty input", func() {
		_, err := s.service.VerifyCode(s.at(0), voterEmail, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown email looks like a bad code", func() {
		_, err := s.service.VerifyCode(s.at(0), "nobody@example.com", fixedCode)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidOrExpired))
	})
}

func (s *LoginSuite) TestVerifyCode_MismatchKeepsCode() {
	s.Require().NoError(s.service.RequestCode(s.at(0), voterEmail))

	_, err := s.service.VerifyCode(s.at(time.Second), voterEmail, "0000000000")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredential))
	s.True(s.stored().HasLoginCode())
	s.Contains(s.actions(), string(audit.EventAuthFailed))

	_, err = s.service.VerifyCode(s.at(2*time.Second), voterEmail, fixedCode)
	s.NoError(err)
}

func (s *LoginSuite) TestVerifyCode_ExpiryBoundary() {
	s.Run("one second before expiry succeeds", func() {
		s.Require().NoError(s.service.RequestCode(s.at(0), voterEmail))
		_, err := s.service.VerifyCode(s.at(5*time.Minute-time.Second), voterEmail, fixedCode)
		s.NoError(err)
	})

	s.Run("at the expiry instant fails and clears the code", func() {
		s.Require().NoError(s.service.RequestCode(s.at(0), voterEmail))
		_, err := s.service.VerifyCode(s.at(5*time.Minute), voterEmail, fixedCode)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidOrExpired))
		s.False(s.stored().HasLoginCode())
	})

	s.Run("301 seconds after issue fails", func() {
		s.Require().NoError(s.service.RequestCode(s.at(0), voterEmail))
		_, err := s.service.VerifyCode(s.at(301*time.Second), voterEmail, fixedCode)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidOrExpired))
		s.Equal(2.0, testutil.ToFloat64(s.metrics.LoginAttempts.WithLabelValues(authmetrics.OutcomeInvalidOrExpired)))
	})
}

func (s *LoginSuite) TestRequestCode_ReplacesPreviousCode() {
	codes := []string{"1111111111", "2222222222"}
	next := 0
	s.service = New(s.accounts, s.tokens, s.outbox, s.trl,
		WithBcryptCost(bcrypt.MinCost),
		WithCodeGenerator(func() (string, error) {
			c := codes[next]
			next++
			return c, nil
		}),
	)

	s.Require().NoError(s.service.RequestCode(s.at(0), voterEmail))
	s.Require().NoError(s.service.RequestCode(s.at(time.Minute), voterEmail))

	_, err := s.service.VerifyCode(s.at(2*time.Minute), voterEmail, codes[0])
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredential))

	// The replacement expires relative to its own issue time.
	s.Equal(s.now.Add(6*time.Minute), *s.stored().CodeExpiresAt)
	_, err = s.service.VerifyCode(s.at(5*time.Minute+30*time.Second), voterEmail, codes[1])
	s.NoError(err)
}

func (s *LoginSuite) TestLogout() {
	s.Require().NoError(s.service.RequestCode(s.at(0), voterEmail))
	result, err := s.service.VerifyCode(s.at(time.Second), voterEmail, fixedCode)
	s.Require().NoError(err)

	s.Run("revokes the token until it expires", func() {
		err := s.service.Logout(s.at(time.Minute), s.account.ID, result.Token.JTI, result.Token.ExpiresAt)
		s.Require().NoError(err)

		revoked, err := s.service.IsTokenRevoked(context.Background(), result.Token.JTI)
		s.Require().NoError(err)
		s.True(revoked)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.TokensRevoked))
		s.Contains(s.actions(), string(audit.EventLoggedOut))
	})

	s.Run("revocation lapses once the token would have expired", func() {
		s.clock = result.Token.ExpiresAt.Add(time.Second)
		revoked, err := s.service.IsTokenRevoked(context.Background(), result.Token.JTI)
		s.Require().NoError(err)
		s.False(revoked)
	})

	s.Run("missing or already expired token is a no-op", func() {
		s.NoError(s.service.Logout(s.at(0), s.account.ID, "", time.Time{}))
		s.NoError(s.service.Logout(s.at(2*time.Hour), s.account.ID, "jti-1", s.now.Add(time.Hour)))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.TokensRevoked))
	})
}

func TestLogout_RevocationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	trl := mocks.NewMockRevocationList(ctrl)
	accounts := mocks.NewMockAccountStore(ctrl)
	tokens := mocks.NewMockTokenIssuer(ctrl)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	trl.EXPECT().RevokeToken(gomock.Any(), "jti-1", time.Hour).Return(errors.New("redis down"))

	svc := New(accounts, tokens, &outbox{}, trl)
	err := svc.Logout(ctx, id.NewAccountID(), "jti-1", now.Add(time.Hour))
	require.True(t, dErrors.HasCode(err, dErrors.CodeInternal), "got %v", err)
}

func TestVerifyCode_TokenIssueFailureAfterConsume(t *testing.T) {
	ctrl := gomock.NewController(t)
	accounts := accountStore.NewInMemoryStore()
	tokens := mocks.NewMockTokenIssuer(ctrl)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	wallet, _ := id.ParseAddress(voterWallet)
	account, err := accountModels.NewAccount(id.NewAccountID(), "Voter", voterEmail, wallet, "", now)
	require.NoError(t, err)
	require.NoError(t, accounts.Create(ctx, account))

	svc := New(accounts, tokens, &outbox{}, revocation.NewInMemoryTRL(nil),
		WithBcryptCost(bcrypt.MinCost),
		WithCodeGenerator(func() (string, error) { return fixedCode, nil }),
	)
	require.NoError(t, svc.RequestCode(ctx, voterEmail))

	tokens.EXPECT().Issue(account.ID, "voter").Return(token.Issued{}, errors.New("signing failed"))
	_, err = svc.VerifyCode(ctx, voterEmail, fixedCode)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInternal), "got %v", err)
}

func TestRequestCode_ClearSurvivesCancelledRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx, cancel := context.WithCancel(requestcontext.WithTime(context.Background(), now))

	wallet, _ := id.ParseAddress(voterWallet)
	account, err := accountModels.NewAccount(id.NewAccountID(), "Voter", voterEmail, wallet, "", now)
	require.NoError(t, err)
	stored := account.Clone()
	apply := func(_ context.Context, _ id.AccountID, validate func(*accountModels.Account) error, mutate func(*accountModels.Account)) (*accountModels.Account, error) {
		if validate != nil {
			if err := validate(stored); err != nil {
				return nil, err
			}
		}
		mutate(stored)
		return stored.Clone(), nil
	}

	accounts.EXPECT().FindByEmail(gomock.Any(), voterEmail).Return(account, nil)
	gomock.InOrder(
		accounts.EXPECT().Execute(gomock.Any(), account.ID, gomock.Any(), gomock.Any()).DoAndReturn(apply),
		accounts.EXPECT().Execute(gomock.Any(), account.ID, gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, accountID id.AccountID, validate func(*accountModels.Account) error, mutate func(*accountModels.Account)) (*accountModels.Account, error) {
				assert.NoError(t, ctx.Err(), "clear ran on a cancelled context")
				return apply(ctx, accountID, validate, mutate)
			}),
	)

	notifier := &outbox{err: errors.New("smtp: timeout")}
	svc := New(accounts, mocks.NewMockTokenIssuer(ctrl), notifier, revocation.NewInMemoryTRL(nil),
		WithBcryptCost(bcrypt.MinCost),
		WithCodeGenerator(func() (string, error) {
			// Client disconnects while the code is in flight.
			cancel()
			return fixedCode, nil
		}),
	)

	err = svc.RequestCode(ctx, voterEmail)
	require.True(t, dErrors.HasCode(err, dErrors.CodeDeliveryFailed), "got %v", err)
	require.False(t, stored.HasLoginCode(), "undelivered code was left stored")
}
