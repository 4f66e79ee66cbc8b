package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/ledger_engine/internal/apperrors"
	"github.com/SscSPs/ledger_engine/internal/core/domain"
	portssvc "github.com/SscSPs/ledger_engine/internal/core/ports/services"
	"github.com/SscSPs/ledger_engine/internal/dto"
	"github.com/SscSPs/ledger_engine/internal/handlers"
	"github.com/SscSPs/ledger_engine/internal/middleware"
	"github.com/SscSPs/ledger_engine/internal/platform/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type TransactionHandlerTestSuite struct {
	suite.Suite
	router              *gin.Engine
	mockLedgerService   *MockLedgerService
	mockReversalService *MockReversalService
	userID              string
}

func (suite *TransactionHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.router.Use(middleware.AuthMiddleware(testJWTSecret))

	suite.mockLedgerService = new(MockLedgerService)
	suite.mockReversalService = new(MockReversalService)
	suite.userID = uuid.NewString()

	v1 := suite.router.Group("/api/v1")
	handlers.RegisterTransactionRoutes(v1, suite.mockLedgerService, suite.mockReversalService)
	handlers.RegisterEntryRoutes(v1, suite.mockLedgerService, suite.mockReversalService)
}

func (suite *TransactionHandlerTestSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Authorization", "Bearer "+generateTestToken(&suite.Suite, suite.userID))
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func postedTransaction(entries ...domain.Entry) *domain.Transaction {
	at := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	txnID := uuid.NewString()
	for i := range entries {
		entries[i].TransactionID = txnID
		entries[i].EffectiveAt = at
		entries[i].RecordedAt = at
	}
	return &domain.Transaction{
		TransactionID: txnID,
		Description:   "rent",
		EffectiveAt:   at,
		RecordedAt:    at,
		PostedAt:      &at,
		Metadata:      domain.Metadata{},
		Entries:       entries,
	}
}

func (suite *TransactionHandlerTestSuite) TestOpenTransaction() {
	req := dto.OpenTransactionRequest{Description: "rent"}
	draft := &domain.Transaction{TransactionID: uuid.NewString(), Description: "rent", Metadata: domain.Metadata{}}
	suite.mockLedgerService.On("OpenTransaction", mock.AnythingOfType("*context.valueCtx"),
		mock.MatchedBy(func(r dto.OpenTransactionRequest) bool { return r.Description == "rent" }),
		suite.userID,
	).Return(draft, nil).Once()

	w := suite.serve(newJSONRequest(http.MethodPost, "/api/v1/transactions", req))

	suite.Equal(http.StatusCreated, w.Code)
	var body dto.TransactionResponse
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	suite.Equal("draft", body.Status)
	suite.Nil(body.PostedAt)
}

func (suite *TransactionHandlerTestSuite) TestRecordTransaction_Unbalanced() {
	body := map[string]any{
		"description": "bad",
		"entries": []map[string]any{
			{"accountID": uuid.NewString(), "amount": "50", "direction": "debit"},
			{"accountID": uuid.NewString(), "amount": "40", "direction": "credit"},
		},
	}
	suite.mockLedgerService.On("RecordTransaction", mock.AnythingOfType("*context.valueCtx"),
		mock.MatchedBy(func(r dto.RecordTransactionRequest) bool {
			return len(r.Entries) == 2 && r.Entries[0].Amount.Equal(decimal.NewFromInt(50))
		}),
		suite.userID,
	).Return(nil, fmt.Errorf("%w: USD debits 50.0000 != credits 40.0000", apperrors.ErrUnbalanced)).Once()

	w := suite.serve(newJSONRequest(http.MethodPost, "/api/v1/transactions/record", body))

	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	var resp handlers.ErrorResponse
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("UNBALANCED", resp.Code)
	suite.Contains(resp.Error, "debits 50.0000")
}

func (suite *TransactionHandlerTestSuite) TestRecordTransaction_NoEntries() {
	w := suite.serve(newJSONRequest(http.MethodPost, "/api/v1/transactions/record", map[string]any{"description": "empty"}))

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.mockLedgerService.AssertNotCalled(suite.T(), "RecordTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *TransactionHandlerTestSuite) TestAddEntry() {
	txnID := uuid.NewString()
	accountID := uuid.NewString()

	tests := map[string]struct {
		body       map[string]any
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		"created": {
			body:       map[string]any{"accountID": accountID, "amount": "12.50", "direction": "credit"},
			wantStatus: http.StatusCreated,
		},
		"unknown direction": {
			body:       map[string]any{"accountID": accountID, "amount": "12.50", "direction": "sideways"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		"posted parent": {
			body:       map[string]any{"accountID": accountID, "amount": "1", "direction": "debit"},
			svcErr:     fmt.Errorf("transaction %s is posted: %w", txnID, apperrors.ErrImmutable),
			wantStatus: http.StatusConflict,
			wantCode:   "IMMUTABLE",
		},
		"inactive account": {
			body:       map[string]any{"accountID": accountID, "amount": "1", "direction": "debit"},
			svcErr:     apperrors.ErrInactiveAccount,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "INACTIVE_ACCOUNT",
		},
	}
	for name, tt := range tests {
		suite.Run(name, func() {
			suite.SetupTest()
			if tt.wantStatus != http.StatusBadRequest {
				var entry *domain.Entry
				if tt.svcErr == nil {
					entry = &domain.Entry{EntryID: uuid.NewString(), TransactionID: txnID, AccountID: accountID,
						Amount: decimal.RequireFromString("12.50"), Direction: domain.Credit}
				}
				call := suite.mockLedgerService.On("AddEntry", mock.AnythingOfType("*context.valueCtx"), txnID, mock.AnythingOfType("dto.AddEntryRequest"), suite.userID)
				if entry != nil {
					call.Return(entry, nil).Once()
				} else {
					call.Return(nil, tt.svcErr).Once()
				}
			}

			w := suite.serve(newJSONRequest(http.MethodPost, "/api/v1/transactions/"+txnID+"/entries", tt.body))

			suite.Equal(tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				suite.Contains(w.Body.String(), tt.wantCode)
			}
			suite.mockLedgerService.AssertExpectations(suite.T())
		})
	}
}

func (suite *TransactionHandlerTestSuite) TestPostTransaction() {
	txn := postedTransaction(
		domain.Entry{EntryID: uuid.NewString(), Amount: decimal.NewFromInt(100), Direction: domain.Debit},
		domain.Entry{EntryID: uuid.NewString(), Amount: decimal.NewFromInt(100), Direction: domain.Credit},
	)
	suite.mockLedgerService.On("Post", mock.AnythingOfType("*context.valueCtx"), txn.TransactionID, suite.userID).
		Return(txn, nil).Once()

	w := suite.serve(newJSONRequest(http.MethodPost, "/api/v1/transactions/"+txn.TransactionID+"/post", nil))

	suite.Equal(http.StatusOK, w.Code)
	var body dto.TransactionResponse
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	suite.Equal("posted", body.Status)
	suite.Len(body.Entries, 2)
}

func (suite *TransactionHandlerTestSuite) TestPostTransaction_InternalErrorIsMasked() {
	txnID := uuid.NewString()
	suite.mockLedgerService.On("Post", mock.AnythingOfType("*context.valueCtx"), txnID, suite.userID).
		Return(nil, errors.New("pq: connection reset by peer")).Once()

	w := suite.serve(newJSONRequest(http.MethodPost, "/api/v1/transactions/"+txnID+"/post", nil))

	suite.Equal(http.StatusInternalServerError, w.Code)
	suite.NotContains(w.Body.String(), "connection reset")
	suite.Contains(w.Body.String(), "Failed to post transaction")
}

func (suite *TransactionHandlerTestSuite) TestGetTransactionAndEntries() {
	txn := postedTransaction(domain.Entry{EntryID: uuid.NewString(), Amount: decimal.NewFromInt(5), Direction: domain.Debit})
	suite.mockLedgerService.On("GetTransaction", mock.AnythingOfType("*context.valueCtx"), txn.TransactionID).Return(txn, nil).Once()
	suite.mockLedgerService.On("EntriesFor", mock.AnythingOfType("*context.valueCtx"), txn.TransactionID).Return(txn.Entries, nil).Once()

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/transactions/"+txn.TransactionID, nil)
	w := suite.serve(req)
	suite.Equal(http.StatusOK, w.Code)

	req, _ = http.NewRequest(http.MethodGet, "/api/v1/transactions/"+txn.TransactionID+"/entries", nil)
	w = suite.serve(req)
	suite.Equal(http.StatusOK, w.Code)
	var entries []dto.EntryResponse
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &entries))
	suite.Len(entries, 1)
	suite.mockLedgerService.AssertExpectations(suite.T())
}

func (suite *TransactionHandlerTestSuite) TestUpdateTransaction_Posted() {
	txnID := uuid.NewString()
	suite.mockLedgerService.On("UpdateTransaction", mock.AnythingOfType("*context.valueCtx"), txnID, mock.AnythingOfType("dto.UpdateTransactionRequest"), suite.userID).
		Return(nil, apperrors.ErrImmutable).Once()

	w := suite.serve(newJSONRequest(http.MethodPatch, "/api/v1/transactions/"+txnID, map[string]any{"description": "late"}))

	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *TransactionHandlerTestSuite) TestReverseTransaction() {
	original := uuid.NewString()
	reversal := postedTransaction(domain.Entry{EntryID: uuid.NewString(), Amount: decimal.NewFromInt(5), Direction: domain.Credit})
	suite.mockReversalService.On("ReverseTransaction", mock.AnythingOfType("*context.valueCtx"), original, "duplicate charge",
		mock.MatchedBy(func(at *time.Time) bool { return at == nil }), suite.userID,
	).Return(reversal, nil).Once()

	w := suite.serve(newJSONRequest(http.MethodPost, "/api/v1/transactions/"+original+"/reverse", dto.ReverseRequest{Reason: "duplicate charge"}))

	suite.Equal(http.StatusCreated, w.Code)
	suite.mockReversalService.AssertExpectations(suite.T())
}

func (suite *TransactionHandlerTestSuite) TestReverseEntry() {
	entryID := uuid.NewString()
	effective := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	suite.Run("reason required", func() {
		w := suite.serve(newJSONRequest(http.MethodPost, "/api/v1/entries/"+entryID+"/reverse", map[string]any{}))
		suite.Equal(http.StatusBadRequest, w.Code)
	})

	suite.Run("already reversed", func() {
		suite.mockReversalService.On("Reverse", mock.AnythingOfType("*context.valueCtx"), entryID, "typo",
			mock.MatchedBy(func(at *time.Time) bool { return at != nil && at.Equal(effective) }), suite.userID,
		).Return(nil, apperrors.ErrAlreadyReversed).Once()

		w := suite.serve(newJSONRequest(http.MethodPost, "/api/v1/entries/"+entryID+"/reverse",
			dto.ReverseRequest{Reason: "typo", EffectiveAt: &effective}))

		suite.Equal(http.StatusConflict, w.Code)
		suite.Contains(w.Body.String(), "ALREADY_REVERSED")
	})
}

func (suite *TransactionHandlerTestSuite) TestUpdateEntry() {
	entryID := uuid.NewString()
	amount := decimal.RequireFromString("7.25")
	suite.mockLedgerService.On("UpdateEntry", mock.AnythingOfType("*context.valueCtx"), entryID,
		mock.MatchedBy(func(r dto.UpdateEntryRequest) bool { return r.Amount != nil && r.Amount.Equal(amount) }),
		suite.userID,
	).Return(&domain.Entry{EntryID: entryID, Amount: amount, Direction: domain.Debit}, nil).Once()

	w := suite.serve(newJSONRequest(http.MethodPatch, "/api/v1/entries/"+entryID, map[string]any{"amount": "7.25"}))

	suite.Equal(http.StatusOK, w.Code)
	var body dto.EntryResponse
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	suite.True(amount.Equal(body.Amount))
}

func TestTransactionHandler(t *testing.T) {
	suite.Run(t, new(TransactionHandlerTestSuite))
}

func TestHealthRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	container := &portssvc.ServiceContainer{
		Account:  new(MockAccountService),
		Ledger:   new(MockLedgerService),
		Balance:  new(MockBalanceService),
		Reversal: new(MockReversalService),
	}
	cfg := &config.Config{JWTSecret: testJWTSecret, IsProduction: true}

	tests := map[string]struct {
		check      handlers.HealthCheck
		wantStatus int
	}{
		"no check": {check: nil, wantStatus: http.StatusOK},
		"db up":    {check: func(context.Context) error { return nil }, wantStatus: http.StatusOK},
		"db down":  {check: func(context.Context) error { return errors.New("dial tcp: refused") }, wantStatus: http.StatusServiceUnavailable},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			handlers.RegisterRoutes(r, cfg, container, tt.check)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/health", nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	t.Run("api requires auth", func(t *testing.T) {
		r := gin.New()
		handlers.RegisterRoutes(r, cfg, container, nil)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
