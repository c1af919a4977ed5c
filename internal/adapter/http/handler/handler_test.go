package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"internet-banking-core/internal/adapter/http/dto"
	"internet-banking-core/internal/adapter/http/middleware"
	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/internal/core/ports/mocks"
	"internet-banking-core/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newContext builds a test context. A non-nil subject is installed the way
// JWTAuth would.
func newContext(method, path string, body interface{}, subject *uuid.UUID) (*gin.Context, *httptest.ResponseRecorder) {
	var raw []byte
	switch b := body.(type) {
	case nil:
	case string:
		raw = []byte(b)
	default:
		raw, _ = json.Marshal(b)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	if subject != nil {
		c.Set(middleware.CtxSubjectID, *subject)
		c.Set(middleware.CtxRole, domain.RoleCustomer)
	}
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// --- Session Handler Tests ---

func TestRefresh_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSession := mocks.NewMockSessionService(ctrl)
	h := NewSessionHandler(mockSession)

	expires := time.Now().Add(15 * time.Minute).UTC()
	mockSession.EXPECT().Refresh(gomock.Any(), "old_refresh", domain.RoleCustomer).Return(&ports.Session{
		AccessToken:      "jwt",
		AccessExpiresAt:  expires,
		RefreshToken:     "new_refresh",
		RefreshExpiresAt: expires.Add(time.Hour),
	}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: "old_refresh"}, nil)
	h.Refresh(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "jwt", data["access_token"])
	assert.Equal(t, "new_refresh", data["refresh_token"])
}

func TestRefresh_EmployeeRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSession := mocks.NewMockSessionService(ctrl)
	h := NewSessionHandler(mockSession)

	mockSession.EXPECT().Refresh(gomock.Any(), "admin_refresh", domain.RoleEmployee).
		Return(nil, apperror.TokenAlreadyUsed())

	c, w := newContext(http.MethodPost, "/", dto.RefreshRequest{RefreshToken: "admin_refresh", Role: "EMPLOYEE"}, nil)
	h.Refresh(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(apperror.KindTokenAlreadyUsed), decode(t, w)["error_code"])
}

func TestRefresh_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewSessionHandler(mocks.NewMockSessionService(ctrl))

	for _, body := range []string{"{}", `{"refresh_token":"x","role":"ROOT"}`} {
		c, w := newContext(http.MethodPost, "/", body, nil)
		h.Refresh(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestLogout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSession := mocks.NewMockSessionService(ctrl)
	h := NewSessionHandler(mockSession)

	mockSession.EXPECT().Logout(gomock.Any(), "refresh").Return(nil)

	c, w := newContext(http.MethodPost, "/", dto.RefreshRequest{RefreshToken: "refresh"}, nil)
	h.Logout(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Account Handler Tests ---

func TestGetMe_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewAccountHandler(mockReporting)

	id := uuid.New()
	mockReporting.EXPECT().GetAccount(gomock.Any(), id).Return(&domain.Account{
		ID:            id,
		AccountNumber: "1234567890",
		DisplayName:   "Alice",
		Balance:       5000,
	}, nil)

	c, w := newContext(http.MethodGet, "/api/v1/accounts/me", nil, &id)
	h.GetMe(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "1234567890", data["account_number"])
	assert.Equal(t, float64(5000), data["balance"])
}

func TestGetMe_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAccountHandler(mocks.NewMockReportingService(ctrl))

	c, w := newContext(http.MethodGet, "/api/v1/accounts/me", nil, nil)
	h.GetMe(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListTransactions_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewAccountHandler(mockReporting)

	id := uuid.New()
	kind := domain.TransactionKindInternal
	mockReporting.EXPECT().ListTransactions(gomock.Any(), ports.TransactionListParams{
		AccountID: id,
		Kind:      &kind,
		Page:      2,
		PageSize:  10,
	}).Return([]domain.Transaction{{ID: uuid.New(), Kind: kind, Amount: 100}}, int64(11), nil)

	c, w := newContext(http.MethodGet, "/api/v1/transactions?kind=INTERNAL&page=2&page_size=10", nil, &id)
	h.ListTransactions(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(11), data["total"])
	assert.Equal(t, float64(2), data["total_pages"])
	assert.Len(t, data["items"], 1)
}

func TestListTransactions_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewAccountHandler(mockReporting)

	id := uuid.New()
	mockReporting.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
		Return(nil, int64(0), apperror.InternalError(errors.New("db down")))

	c, w := newContext(http.MethodGet, "/api/v1/transactions?page_size=500", nil, &id)
	h.ListTransactions(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

// --- Transfer Handler Tests ---

func TestRequestToken_DoesNotLeakToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTransfer := mocks.NewMockTransferService(ctrl)
	h := NewTransferHandler(mockTransfer, nil, nil)

	id := uuid.New()
	mockTransfer.EXPECT().RequestTransferToken(gomock.Any(), id).Return(&ports.TokenIssued{
		Kind:      domain.TokenKindTransfer,
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/transfers/token", nil, &id)
	h.RequestToken(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "TRANSFER", data["kind"])
	assert.NotContains(t, data, "token")
}

func TestInternalTransfer_ResolvesReceiver(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTransfer := mocks.NewMockTransferService(ctrl)
	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewTransferHandler(mockTransfer, nil, mockReporting)

	fromID, toID := uuid.New(), uuid.New()
	mockReporting.EXPECT().ResolveAccountNumber(gomock.Any(), "0000000002").
		Return(&domain.Account{ID: toID, AccountNumber: "0000000002"}, nil)
	mockTransfer.EXPECT().ExecuteInternalTransfer(gomock.Any(), ports.InternalTransferRequest{
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        1000,
		Message:       "rent &amp; bills",
		FeePayer:      domain.FeePayerReceiver,
		AuthToken:     "tok",
		SaveRecipient: true,
	}).Return(&ports.TransferResult{
		Transaction: &domain.Transaction{ID: uuid.New(), Kind: domain.TransactionKindInternal, Amount: 1000, Fee: 10},
		Balances:    domain.BalancePair{FromAfter: 4000, ToAfter: 990},
	}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/transfers/internal", dto.InternalTransferRequest{
		ToAccountNumber: "0000000002",
		Amount:          1000,
		Message:         " rent & bills ",
		FeePayer:        "RECEIVER",
		Token:           "tok",
		SaveRecipient:   true,
	}, &fromID)
	h.Internal(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	balances := data["balances"].(map[string]interface{})
	assert.Equal(t, float64(4000), balances["from_after"])
	assert.Equal(t, float64(990), balances["to_after"])
}

func TestInternalTransfer_UnknownRecipient(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewTransferHandler(mocks.NewMockTransferService(ctrl), nil, mockReporting)

	id := uuid.New()
	mockReporting.EXPECT().ResolveAccountNumber(gomock.Any(), "0000000009").Return(nil, apperror.AccountNotFound())

	c, w := newContext(http.MethodPost, "/", dto.InternalTransferRequest{
		ToAccountNumber: "0000000009",
		Amount:          1,
		Token:           "tok",
	}, &id)
	h.Internal(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperror.KindRecipientNotFound), decode(t, w)["error_code"])
}

func TestInternalTransfer_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewTransferHandler(mocks.NewMockTransferService(ctrl), nil, mocks.NewMockReportingService(ctrl))
	id := uuid.New()

	bodies := []interface{}{
		dto.InternalTransferRequest{ToAccountNumber: "12345", Amount: 1, Token: "tok"},
		dto.InternalTransferRequest{ToAccountNumber: "1234567890", Amount: -5, Token: "tok"},
		dto.InternalTransferRequest{ToAccountNumber: "1234567890", Amount: 1},
	}
	for _, body := range bodies {
		c, w := newContext(http.MethodPost, "/", body, &id)
		h.Internal(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestExternalTransfer_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSettlement := mocks.NewMockSettlementService(ctrl)
	h := NewTransferHandler(nil, mockSettlement, nil)

	id := uuid.New()
	ref := "KARMA-42"
	mockSettlement.EXPECT().ExecuteExternalTransfer(gomock.Any(), ports.ExternalTransferRequest{
		FromAccountID:   id,
		ToAccountNumber: "9999999999",
		Amount:          2000,
		AuthToken:       "tok",
		IdempotencyKey:  "order-1",
	}).Return(&ports.TransferResult{
		Transaction: &domain.Transaction{ID: uuid.New(), Kind: domain.TransactionKindExternalOut, Amount: 2000, ExternalCounterpartyRef: &ref},
		Balances:    domain.BalancePair{FromAfter: 3000},
	}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/transfers/external", dto.ExternalTransferRequest{
		ToAccountNumber: "9999999999",
		Amount:          2000,
		Token:           "tok",
		IdempotencyKey:  "order-1",
	}, &id)
	h.External(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	txn := decode(t, w)["data"].(map[string]interface{})["transaction"].(map[string]interface{})
	assert.Equal(t, ref, txn["external_counterparty_ref"])
}

func TestExternalTransfer_PartnerUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSettlement := mocks.NewMockSettlementService(ctrl)
	h := NewTransferHandler(nil, mockSettlement, nil)

	id := uuid.New()
	mockSettlement.EXPECT().ExecuteExternalTransfer(gomock.Any(), gomock.Any()).
		Return(nil, apperror.SettlementUnavailable(errors.New("timeout")))

	c, w := newContext(http.MethodPost, "/", dto.ExternalTransferRequest{
		ToAccountNumber: "9999999999",
		Amount:          2000,
		Token:           "tok",
		IdempotencyKey:  "order-1",
	}, &id)
	h.External(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestQueryPartnerAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSettlement := mocks.NewMockSettlementService(ctrl)
	h := NewTransferHandler(nil, mockSettlement, nil)

	id := uuid.New()
	mockSettlement.EXPECT().QueryPartnerAccount(gomock.Any(), "9999999999").
		Return(&domain.AccountInfo{AccountNumber: "9999999999", DisplayName: "Dana", Found: true}, nil)

	c, w := newContext(http.MethodPost, "/", dto.AccountQueryRequest{AccountNumber: "9999999999"}, &id)
	h.QueryPartnerAccount(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Dana", decode(t, w)["data"].(map[string]interface{})["displayName"])
}

// --- Invoice Handler Tests ---

func TestInvoiceCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockInvoice := mocks.NewMockInvoiceService(ctrl)
	h := NewInvoiceHandler(mockInvoice)

	creatorID := uuid.New()
	mockInvoice.EXPECT().Create(gomock.Any(), ports.CreateInvoiceRequest{
		CreatorID:          creatorID,
		PayerAccountNumber: "0000000002",
		Amount:             700,
		Message:            "lunch",
	}).Return(&domain.Invoice{ID: uuid.New(), CreatorID: creatorID, Amount: 700, Status: domain.InvoiceStatusOpen}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/invoices", dto.CreateInvoiceRequest{
		PayerAccountNumber: "0000000002",
		Amount:             700,
		Message:            "lunch",
	}, &creatorID)
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "OPEN", decode(t, w)["data"].(map[string]interface{})["status"])
}

func TestInvoiceList_Filters(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockInvoice := mocks.NewMockInvoiceService(ctrl)
	h := NewInvoiceHandler(mockInvoice)

	id := uuid.New()
	paid := false
	mockInvoice.EXPECT().List(gomock.Any(), ports.InvoiceListParams{
		CustomerID:     id,
		Filter:         domain.InvoiceFilterReceived,
		IsPaid:         &paid,
		IncludeDeleted: true,
		Page:           1,
		PageSize:       defaultPageSize,
	}).Return([]domain.Invoice{}, int64(0), nil)

	c, w := newContext(http.MethodGet, "/api/v1/invoices?filter=received&is_paid=false&include_deleted=true", nil, &id)
	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInvoiceList_BadIsPaid(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewInvoiceHandler(mocks.NewMockInvoiceService(ctrl))
	id := uuid.New()

	c, w := newContext(http.MethodGet, "/api/v1/invoices?is_paid=maybe", nil, &id)
	h.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoiceGet_InvalidID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewInvoiceHandler(mocks.NewMockInvoiceService(ctrl))
	id := uuid.New()

	c, w := newContext(http.MethodGet, "/api/v1/invoices/nope", nil, &id)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	h.Get(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoiceDelete_EmptyBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockInvoice := mocks.NewMockInvoiceService(ctrl)
	h := NewInvoiceHandler(mockInvoice)

	requester, invoiceID := uuid.New(), uuid.New()
	mockInvoice.EXPECT().Delete(gomock.Any(), invoiceID, requester, "").Return(nil)

	c, w := newContext(http.MethodDelete, "/api/v1/invoices/"+invoiceID.String(), nil, &requester)
	c.Params = gin.Params{{Key: "id", Value: invoiceID.String()}}
	h.Delete(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInvoiceDelete_WithReason(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockInvoice := mocks.NewMockInvoiceService(ctrl)
	h := NewInvoiceHandler(mockInvoice)

	requester, invoiceID := uuid.New(), uuid.New()
	mockInvoice.EXPECT().Delete(gomock.Any(), invoiceID, requester, "duplicate").Return(apperror.AlreadyPaid())

	c, w := newContext(http.MethodDelete, "/", dto.DeleteInvoiceRequest{Reason: "duplicate"}, &requester)
	c.Params = gin.Params{{Key: "id", Value: invoiceID.String()}}
	h.Delete(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestInvoicePay(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockInvoice := mocks.NewMockInvoiceService(ctrl)
	h := NewInvoiceHandler(mockInvoice)

	payer, invoiceID := uuid.New(), uuid.New()
	mockInvoice.EXPECT().Pay(gomock.Any(), invoiceID, payer, "otp123").Return(nil, apperror.InsufficientFunds())

	c, w := newContext(http.MethodPost, "/", dto.PayInvoiceRequest{OTP: "otp123"}, &payer)
	c.Params = gin.Params{{Key: "id", Value: invoiceID.String()}}
	h.Pay(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

// --- Recipient & Teller Handler Tests ---

func TestRecipientSave(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRecipient := mocks.NewMockRecipientService(ctrl)
	h := NewRecipientHandler(mockRecipient)

	owner := uuid.New()
	mockRecipient.EXPECT().Save(gomock.Any(), ports.SaveRecipientRequest{
		OwnerID:       owner,
		AccountNumber: "0000000002",
		MnemonicName:  "Bob",
	}).Return(&domain.Recipient{ID: uuid.New(), OwnerID: owner, AccountNumber: "0000000002", MnemonicName: "Bob"}, nil)

	c, w := newContext(http.MethodPost, "/", dto.SaveRecipientRequest{AccountNumber: "0000000002", MnemonicName: "Bob"}, &owner)
	h.Save(c)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRecipientRename_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRecipient := mocks.NewMockRecipientService(ctrl)
	h := NewRecipientHandler(mockRecipient)

	owner, id := uuid.New(), uuid.New()
	mockRecipient.EXPECT().Rename(gomock.Any(), id, owner, "Landlord").Return(apperror.NotFound("recipient"))

	c, w := newContext(http.MethodPut, "/", dto.RenameRecipientRequest{MnemonicName: "Landlord"}, &owner)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	h.Rename(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTellerDeposit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTeller := mocks.NewMockTellerService(ctrl)
	h := NewTellerHandler(mockTeller)

	employee := uuid.New()
	mockTeller.EXPECT().Deposit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.DepositRequest) (*ports.TransferResult, error) {
			assert.Equal(t, employee, req.EmployeeID)
			assert.Equal(t, "0000000001", req.AccountNumber)
			assert.NotEmpty(t, req.IPAddress)
			return &ports.TransferResult{
				Transaction: &domain.Transaction{ID: uuid.New(), Kind: domain.TransactionKindDeposit, Amount: req.Amount},
				Balances:    domain.BalancePair{ToAfter: req.Amount},
			}, nil
		})

	c, w := newContext(http.MethodPost, "/", dto.DepositRequest{AccountNumber: "0000000001", Amount: 10000}, &employee)
	h.Deposit(c)

	assert.Equal(t, http.StatusCreated, w.Code)
}

// --- Interbank Handler Tests ---

func TestInterbankDeposit_ReturnsBareEnvelope(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSettlement := mocks.NewMockSettlementService(ctrl)
	h := NewInterbankHandler(mockSettlement)

	in := domain.SignedEnvelope{BankCode: "KARMA", Data: "e30=", Signature: "c2ln"}
	out := &domain.SignedEnvelope{BankCode: "IBC", Data: "cmVjZWlwdA==", Signature: "c2ln"}
	mockSettlement.EXPECT().ReceiveDeposit(gomock.Any(), &in).Return(out, nil)

	c, w := newContext(http.MethodPost, "/api/external/deposit", in, nil)
	h.Deposit(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var got domain.SignedEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, *out, got)
}

func TestInterbankQuery_UntrustedIsUnauthorized(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSettlement := mocks.NewMockSettlementService(ctrl)
	h := NewInterbankHandler(mockSettlement)

	mockSettlement.EXPECT().AnswerAccountQuery(gomock.Any(), gomock.Any()).
		Return(nil, apperror.UntrustedResponse("bad signature"))

	c, w := newContext(http.MethodPost, "/api/external/query-account", domain.SignedEnvelope{BankCode: "KARMA"}, nil)
	h.QueryAccount(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(apperror.KindUnauthorized), decode(t, w)["error_code"])
}

func TestInterbank_MalformedBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewInterbankHandler(mocks.NewMockSettlementService(ctrl))

	c, w := newContext(http.MethodPost, "/", "not json", nil)
	h.Deposit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Health & Router Tests ---

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck()(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pg := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Name().Return("postgres").AnyTimes()
	pg.EXPECT().Ping(gomock.Any()).Return(nil)
	rd := mocks.NewMockHealthChecker(ctrl)
	rd.EXPECT().Name().Return("redis").AnyTimes()
	rd.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(pg, rd)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	assert.Equal(t, "healthy", deps["postgres"].(map[string]interface{})["status"])
	assert.Equal(t, "unhealthy", deps["redis"].(map[string]interface{})["status"])
}

func TestRouter_RoleSeparation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokens := mocks.NewMockAccessTokenService(ctrl)
	reporting := mocks.NewMockReportingService(ctrl)
	customerID := uuid.New()
	tokens.EXPECT().Validate("customer").Return(&ports.AccessClaims{SubjectID: customerID, Role: domain.RoleCustomer}, nil).AnyTimes()
	reporting.EXPECT().GetAccount(gomock.Any(), customerID).Return(&domain.Account{ID: customerID}, nil)

	r := SetupRouter(RouterDeps{
		ReportingSvc: reporting,
		AccessTokens: tokens,
		Logger:       zerolog.Nop(),
	})

	call := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Authorization", "Bearer customer")
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/api/v1/accounts/me").Code)
	assert.Equal(t, http.StatusForbidden, call(http.MethodPost, "/api/v1/employee/deposits").Code)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}
