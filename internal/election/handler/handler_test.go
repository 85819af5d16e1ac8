package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	accountModels "electa/internal/account/models"
	"electa/internal/election/handler/mocks"
	"electa/internal/election/models"
	id "electa/pkg/domain"
	dErrors "electa/pkg/domain-errors"
	"electa/pkg/testutil"
)

const electionAddr = "0x1111111111111111111111111111111111111111"

type ElectionHandlerSuite struct {
	suite.Suite
	coordinator *mocks.MockCoordinator
	reconciler  *mocks.MockReconciler
	router      chi.Router
	accountID   id.AccountID
}

func TestElectionHandlerSuite(t *testing.T) {
	suite.Run(t, new(ElectionHandlerSuite))
}

func passthrough(next http.Handler) http.Handler { return next }

func (s *ElectionHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.coordinator = mocks.NewMockCoordinator(ctrl)
	s.reconciler = mocks.NewMockReconciler(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.router = chi.NewRouter()
	New(s.coordinator, s.reconciler, logger, passthrough).Register(s.router)
	s.accountID = id.NewAccountID()
}

func (s *ElectionHandlerSuite) as(req *http.Request, role string) *http.Request {
	return testutil.WithAccount(req, s.accountID.String(), role)
}

func (s *ElectionHandlerSuite) reference() models.Reference {
	addr, err := id.ParseAddress(electionAddr)
	s.Require().NoError(err)
	return models.Reference{Address: addr, Started: true, Version: 2}
}

func (s *ElectionHandlerSuite) TestStartElection() {
	testutil.Given(s.T(), "an admin session", func(t *testing.T) {
		testutil.When(t, "every account is updated", func(t *testing.T) {
			s.coordinator.EXPECT().Start(gomock.Any()).Return(models.FanOutResult{Total: 3, Succeeded: 3}, nil)

			rr := testutil.DoRequest(s.router, s.as(testutil.NewRequest(t, http.MethodGet, "/startElection"), "admin"))

			testutil.Then(t, "the command reports success", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				body := testutil.UnmarshalResponse[models.FanOutEnvelope](t, rr)
				s.True(body.Success)
				s.Equal("Election started successfully", body.Message)
				s.Equal(3, body.Succeeded)
			})
		})

		testutil.When(t, "some notifications fail", func(t *testing.T) {
			result := models.FanOutResult{
				Total:     3,
				Succeeded: 2,
				Failures: []models.AccountFailure{
					{AccountID: id.NewAccountID(), Email: "bob@example.com", Err: errors.New("mailbox full")},
				},
			}
			s.coordinator.EXPECT().Start(gomock.Any()).Return(result, result.Err())

			rr := testutil.DoRequest(s.router, s.as(testutil.NewRequest(t, http.MethodGet, "/startElection"), "admin"))

			testutil.Then(t, "the failures are listed with a 500", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusInternalServerError)
				body := testutil.UnmarshalResponse[models.FanOutEnvelope](t, rr)
				s.False(body.Success)
				s.Equal(2, body.Succeeded)
				s.Equal(1, body.Failed)
				s.Require().Len(body.Errors, 1)
				s.Equal("bob@example.com", body.Errors[0].Email)
				s.Equal("mailbox full", body.Errors[0].Error)
			})
		})

		testutil.When(t, "another transition is running", func(t *testing.T) {
			s.coordinator.EXPECT().Start(gomock.Any()).
				Return(models.FanOutResult{}, dErrors.New(dErrors.CodeConflict, "election transition in progress"))

			rr := testutil.DoRequest(s.router, s.as(testutil.NewRequest(t, http.MethodGet, "/startElection"), "admin"))

			testutil.Then(t, "the command is rejected", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusConflict, string(dErrors.CodeConflict))
			})
		})
	})

	testutil.Given(s.T(), "a voter session", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, s.as(testutil.NewRequest(t, http.MethodGet, "/startElection"), "voter"))

		testutil.Then(t, "the route is forbidden", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
		})
	})
}

func (s *ElectionHandlerSuite) TestEndElection() {
	s.Run("passes the address through", func() {
		s.coordinator.EXPECT().End(gomock.Any(), electionAddr).Return(models.FanOutResult{Total: 1, Succeeded: 1}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/endElection", map[string]string{"address": electionAddr})
		rr := testutil.DoRequest(s.router, s.as(req, "admin"))

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "message", "Election ended successfully")
	})

	s.Run("a missing address never reaches the coordinator", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/endElection", map[string]string{})
		rr := testutil.DoRequest(s.router, s.as(req, "admin"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidArgument))
	})
}

func (s *ElectionHandlerSuite) TestDeployAndRead() {
	ref := s.reference()

	s.Run("deploy", func() {
		s.coordinator.EXPECT().Deploy(gomock.Any(), electionAddr).Return(ref, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/election", map[string]string{"address": electionAddr})
		rr := testutil.DoRequest(s.router, s.as(req, "admin"))

		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[models.ElectionEnvelope](s.T(), rr)
		s.Equal(ref.Address.String(), body.Election.Address)
	})

	s.Run("deploy over a live election", func() {
		s.coordinator.EXPECT().Deploy(gomock.Any(), electionAddr).
			Return(models.Reference{}, dErrors.New(dErrors.CodeConflict, "an election is already deployed"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/election", map[string]string{"address": electionAddr})
		rr := testutil.DoRequest(s.router, s.as(req, "admin"))

		testutil.AssertStatus(s.T(), rr, http.StatusConflict)
	})

	s.Run("read needs no session", func() {
		s.coordinator.EXPECT().Current(gomock.Any()).Return(ref, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/election"))

		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[models.ElectionEnvelope](s.T(), rr)
		s.True(body.Election.Started)
	})
}

func (s *ElectionHandlerSuite) TestStatus() {
	account := &accountModels.Account{
		ID:        s.accountID,
		Name:      "Ada",
		Email:     "ada@example.com",
		Role:      accountModels.RoleVoter,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	s.Run("merges the live view", func() {
		s.reconciler.EXPECT().Reconcile(gomock.Any(), s.accountID).Return(models.ReconciledAccount{
			Account:      account,
			Reference:    s.reference(),
			State:        models.StateOpen,
			ElectionOpen: true,
		})

		rr := testutil.DoRequest(s.router, s.as(testutil.NewRequest(s.T(), http.MethodGet, "/status"), "voter"))

		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[models.StatusEnvelope](s.T(), rr)
		s.True(body.ElectionOpen)
		s.Equal(models.StateOpen, body.ElectionState)
		s.Equal("ada@example.com", body.User.Email)
	})

	s.Run("unknown account", func() {
		s.reconciler.EXPECT().Reconcile(gomock.Any(), s.accountID).Return(models.ReconciledAccount{
			State: models.StateNoElection,
		})

		rr := testutil.DoRequest(s.router, s.as(testutil.NewRequest(s.T(), http.MethodGet, "/status"), "voter"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}
