package election

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	accountHandler "electa/internal/account/handler"
	accountService "electa/internal/account/service"
	accountStore "electa/internal/account/store"
	authHandler "electa/internal/auth/handler"
	authService "electa/internal/auth/service"
	"electa/internal/auth/store/revocation"
	"electa/internal/auth/token"
	"electa/internal/election/coordinator"
	electionHandler "electa/internal/election/handler"
	"electa/internal/election/models"
	"electa/internal/election/reconcile"
	"electa/internal/election/reference"
	"electa/internal/notify"
	httptransport "electa/internal/transport/http"
	id "electa/pkg/domain"
	authmw "electa/pkg/platform/middleware/auth"
	"electa/pkg/testutil"
)

const (
	adminEmail    = "admin@example.com"
	voterEmail    = "voter@example.com"
	electionAddr  = "0x3333333333333333333333333333333333333333"
	adminWallet   = "0x1111111111111111111111111111111111111111"
	voterWallet   = "0x2222222222222222222222222222222222222222"
	codeInMessage = `is ([0-9a-f]{10})\.`
)

var codePattern = regexp.MustCompile(codeInMessage)

// inbox records every message, keyed by recipient.
type inbox struct {
	mu   sync.Mutex
	sent map[string][]notify.Message
}

func (i *inbox) Send(_ context.Context, msg notify.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sent[msg.To] = append(i.sent[msg.To], msg)
	return nil
}

func (i *inbox) last(to string) notify.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	msgs := i.sent[to]
	if len(msgs) == 0 {
		return notify.Message{}
	}
	return msgs[len(msgs)-1]
}

type ledgerStub struct {
	mu             sync.Mutex
	started, ended bool
}

func (l *ledgerStub) set(started, ended bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started, l.ended = started, ended
}

func (l *ledgerStub) IsStarted(context.Context, id.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started, nil
}

func (l *ledgerStub) IsEnded(context.Context, id.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ended, nil
}

type stack struct {
	router   chi.Router
	accounts *accountStore.InMemoryStore
	refs     *reference.InMemoryStore
	inbox    *inbox
	ledger   *ledgerStub
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := &stack{
		accounts: accountStore.NewInMemoryStore(),
		refs:     reference.NewInMemoryStore(),
		inbox:    &inbox{sent: make(map[string][]notify.Message)},
		ledger:   &ledgerStub{},
	}

	accounts := accountService.New(st.accounts, accountService.WithLogger(logger))
	_, created, err := accounts.SeedAdmin(context.Background(), adminEmail, "Admin", adminWallet)
	require.NoError(t, err)
	require.True(t, created)

	jwt := token.NewJWTService("integration-key", "electa", time.Hour)
	auth := authService.New(st.accounts, jwt, st.inbox, revocation.NewInMemoryTRL(nil),
		authService.WithBcryptCost(bcrypt.MinCost),
		authService.WithLogger(logger),
	)
	requireAuth := authmw.RequireAuth(token.NewMiddlewareAdapter(jwt), auth, logger)
	optionalAuth := authmw.OptionalAuth(token.NewMiddlewareAdapter(jwt), auth, logger)

	lifecycle := coordinator.New(st.accounts, st.refs, st.inbox,
		coordinator.WithLogger(logger),
		coordinator.WithConcurrency(4),
		coordinator.WithPublicBaseURL("https://vote.example.com"),
	)
	reconciler := reconcile.New(st.accounts, st.refs, st.ledger, reconcile.WithLogger(logger))

	st.router = httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         logger,
		MetricsHandler: http.NotFoundHandler(),
	},
		authHandler.New(auth, logger, optionalAuth, false),
		accountHandler.New(accounts, logger, requireAuth),
		electionHandler.New(lifecycle, reconciler, logger, requireAuth),
	)
	return st
}

func (st *stack) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(t, method, httptransport.APIPrefix+path, body)
	} else {
		req = testutil.NewRequest(t, method, httptransport.APIPrefix+path)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return testutil.DoRequest(st.router, req)
}

func (st *stack) login(t *testing.T, email string) string {
	t.Helper()
	rr := st.do(t, http.MethodPost, "/generateOtp", "", map[string]string{"email": email})
	testutil.AssertStatusOK(t, rr)

	match := codePattern.FindStringSubmatch(st.inbox.last(email).Body)
	require.Len(t, match, 2, "login code not found in message")

	rr = st.do(t, http.MethodPost, "/login", "", map[string]string{"email": email, "otp": match[1]})
	testutil.AssertStatusOK(t, rr)
	require.NotNil(t, testutil.FindCookie(rr, authmw.CookieName))

	body := testutil.UnmarshalMap(t, rr)
	tok, _ := body["token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

func TestElectionLifecycle(t *testing.T) {
	st := newStack(t)

	var adminToken, voterToken string

	testutil.Given(t, "an admin who logs in with an emailed code", func(t *testing.T) {
		adminToken = st.login(t, adminEmail)

		testutil.When(t, "the admin registers a voter", func(t *testing.T) {
			rr := st.do(t, http.MethodPost, "/register", adminToken, map[string]string{
				"name": "Vera", "email": voterEmail, "eAddress": voterWallet,
			})

			testutil.Then(t, "the voter exists", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusCreated)
			})
		})

		testutil.When(t, "the admin deploys an election", func(t *testing.T) {
			rr := st.do(t, http.MethodPut, "/election", adminToken, map[string]string{"address": electionAddr})

			testutil.Then(t, "anyone can read it", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				rr = st.do(t, http.MethodGet, "/election", "", nil)
				body := testutil.UnmarshalResponse[models.ElectionEnvelope](t, rr)
				assert.Equal(t, electionAddr, body.Election.Address)
			})
		})
	})

	testutil.Given(t, "a logged in voter before the election starts", func(t *testing.T) {
		voterToken = st.login(t, voterEmail)

		rr := st.do(t, http.MethodGet, "/status", voterToken, nil)
		testutil.Then(t, "the election is pending", func(t *testing.T) {
			body := testutil.UnmarshalResponse[models.StatusEnvelope](t, rr)
			assert.Equal(t, models.StatePending, body.ElectionState)
			assert.False(t, body.ElectionOpen)
		})

		rr = st.do(t, http.MethodPut, "/vote", voterToken, nil)
		testutil.Then(t, "voting is refused", func(t *testing.T) {
			testutil.AssertStatus(t, rr, http.StatusConflict)
		})
	})

	testutil.Given(t, "the admin starts the election", func(t *testing.T) {
		st.ledger.set(true, false)
		rr := st.do(t, http.MethodGet, "/startElection", adminToken, nil)

		testutil.Then(t, "every account is flagged and notified", func(t *testing.T) {
			testutil.AssertStatusOK(t, rr)
			body := testutil.UnmarshalResponse[models.FanOutEnvelope](t, rr)
			assert.Equal(t, 2, body.Total)
			assert.Equal(t, 2, body.Succeeded)
			assert.Equal(t, "Election has started. Login to vote", st.inbox.last(voterEmail).Body)
		})

		testutil.When(t, "the voter votes", func(t *testing.T) {
			rr := st.do(t, http.MethodGet, "/status", voterToken, nil)
			status := testutil.UnmarshalResponse[models.StatusEnvelope](t, rr)
			assert.True(t, status.ElectionOpen)

			rr = st.do(t, http.MethodPut, "/vote", voterToken, nil)
			testutil.Then(t, "the vote is recorded once", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				rr = st.do(t, http.MethodPut, "/vote", voterToken, nil)
				testutil.AssertStatus(t, rr, http.StatusConflict)
			})
		})
	})

	testutil.Given(t, "the admin ends the election", func(t *testing.T) {
		st.ledger.set(true, true)
		rr := st.do(t, http.MethodPut, "/endElection", adminToken, map[string]string{"address": electionAddr})

		testutil.Then(t, "votes reset and the reference is cleared", func(t *testing.T) {
			testutil.AssertStatusOK(t, rr)

			voter, err := st.accounts.FindByEmail(context.Background(), voterEmail)
			require.NoError(t, err)
			assert.False(t, voter.ElectionOngoing)
			assert.False(t, voter.HasVoted)

			ref, err := st.refs.Get(context.Background())
			require.NoError(t, err)
			assert.False(t, ref.HasElection())
			assert.Contains(t, st.inbox.last(voterEmail).Body, "https://vote.example.com/results/"+electionAddr)
		})
	})

	testutil.Given(t, "the voter logs out", func(t *testing.T) {
		rr := st.do(t, http.MethodGet, "/logout", voterToken, nil)
		testutil.AssertStatusOK(t, rr)

		rr = st.do(t, http.MethodGet, "/getUser", voterToken, nil)
		testutil.Then(t, "the token no longer works", func(t *testing.T) {
			testutil.AssertStatus(t, rr, http.StatusUnauthorized)
		})
	})
}
