package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/andymarkow/cybexchange/internal/filestore"
	"github.com/andymarkow/cybexchange/internal/server/models"
	"github.com/andymarkow/cybexchange/internal/service"
	"github.com/andymarkow/cybexchange/internal/storage/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	srv       *httptest.Server
	svc       *service.Service
	uploadDir string
	seq       int
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logg := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	files, err := filestore.New(dir, filestore.WithLogger(logg))
	require.NoError(t, err)

	svc := service.New(inmemory.NewStorage(),
		service.WithLogger(logg),
		service.WithFileStore(files),
	)
	require.NoError(t, svc.SeedCurrencyRates(context.Background()))

	r := NewRouter(svc,
		WithLogger(logg),
		WithSecret([]byte("test-secret")),
		WithUploads(dir, "/uploads", 1<<20),
	)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testAPI{srv: srv, svc: svc, uploadDir: dir}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, a.srv.URL+path, body)
	require.NoError(t, err)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)

	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func (a *testAPI) json(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	return a.do(t, method, path, token, r, "application/json")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))

	return v
}

// register signs up a fresh client and returns its id and session token.
func (a *testAPI) register(t *testing.T) (string, string) {
	t.Helper()

	a.seq++

	resp := a.json(t, http.MethodPost, "/api/auth/register", "", fmt.Sprintf(`{
		"fullName": "Client %d",
		"dateOfBirth": "1990-05-17",
		"email": "client%d@example.com",
		"phone": "+24493%07d",
		"password": "secret1"
	}`, a.seq, a.seq, a.seq))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	token := strings.TrimPrefix(resp.Header.Get("Authorization"), "Bearer ")
	require.NotEmpty(t, token)

	return decode[models.UserResponse](t, resp).ID, token
}

func (a *testAPI) admin(t *testing.T) string {
	t.Helper()

	_, err := a.svc.EnsureAdmin(context.Background(), users.Registration{
		Email:       "admin@example.com",
		Phone:       "+244900000000",
		Password:    "adminpass",
		FullName:    "Admin",
		DateOfBirth: "1980-01-01",
	})
	require.NoError(t, err)

	resp := a.json(t, http.MethodPost, "/api/auth/login", "", `{"emailOrPhone":"admin@example.com","password":"adminpass"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	return strings.TrimPrefix(resp.Header.Get("Authorization"), "Bearer ")
}

func TestPing(t *testing.T) {
	api := newTestAPI(t)

	resp := api.json(t, http.MethodGet, "/ping", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionCookie(t *testing.T) {
	api := newTestAPI(t)

	resp := api.json(t, http.MethodPost, "/api/auth/register", "", `{
		"fullName": "Cookie Client",
		"dateOfBirth": "1990-05-17",
		"email": "Cookie@Example.com",
		"phone": "+244 930 000 001",
		"password": "secret1"
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var session *http.Cookie

	for _, c := range resp.Cookies() {
		if c.Name == "jwt" {
			session = c
		}
	}

	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, api.srv.URL+"/api/auth/user", nil)
	require.NoError(t, err)
	req.AddCookie(session)

	me, err := api.srv.Client().Do(req)
	require.NoError(t, err)
	defer me.Body.Close()

	require.Equal(t, http.StatusOK, me.StatusCode)

	user := decode[models.UserResponse](t, me)
	assert.Equal(t, "cookie@example.com", user.Email)
	assert.Equal(t, "pending", user.VerificationStatus)
	assert.Equal(t, "0.00", user.Balance)

	// Login by phone.
	login := api.json(t, http.MethodPost, "/api/auth/login", "", `{"emailOrPhone":"+244930000001","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, login.StatusCode)

	logout := api.json(t, http.MethodPost, "/api/auth/logout", "", "")
	require.Equal(t, http.StatusOK, logout.StatusCode)
	require.NotEmpty(t, logout.Cookies())
	assert.Negative(t, logout.Cookies()[0].MaxAge)
}

func TestAuthErrors(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.register(t)

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		body     string
		wantCode int
		// Rejected by jwtauth.Authenticator, which answers in plain text.
		plain bool
	}{
		{"no session", http.MethodGet, "/api/transactions", "", "", http.StatusUnauthorized, true},
		{"garbage token", http.MethodGet, "/api/transactions", "garbage", "", http.StatusUnauthorized, true},
		{"client on admin route", http.MethodGet, "/api/admin/users", token, "", http.StatusForbidden, false},
		{"wrong password", http.MethodPost, "/api/auth/login", "", `{"emailOrPhone":"client1@example.com","password":"nope123"}`, http.StatusUnauthorized, false},
		{"unknown account", http.MethodPost, "/api/auth/login", "", `{"emailOrPhone":"ghost@example.com","password":"secret1"}`, http.StatusUnauthorized, false},
		{"duplicate email", http.MethodPost, "/api/auth/register", "", `{"fullName":"X","dateOfBirth":"1990-01-01","email":"client1@example.com","phone":"+244999999999","password":"secret1"}`, http.StatusConflict, false},
		{"unknown field", http.MethodPost, "/api/transactions/deposit", token, `{"amount":"10","currency":"KZ","extra":1}`, http.StatusBadRequest, false},
		{"empty body", http.MethodPost, "/api/transactions/deposit", token, "", http.StatusBadRequest, false},
		{"missing fields", http.MethodPost, "/api/auth/register", "", `{"email":"a@b.co"}`, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.json(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantCode, resp.StatusCode)

			if tt.plain {
				return
			}

			body := decode[map[string]any](t, resp)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestLedgerFlow(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.register(t)
	adminToken := api.admin(t)

	resp := api.json(t, http.MethodPost, "/api/transactions/deposit", token, `{"amount":"1000","currency":"KZ"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	deposit := decode[models.TransactionResponse](t, resp)
	assert.Equal(t, "pending", deposit.Status)
	assert.True(t, strings.HasPrefix(deposit.Reference, "DEP-"))

	pending := decode[[]models.TransactionResponse](t,
		api.json(t, http.MethodGet, "/api/admin/transactions/pending", adminToken, ""))
	require.Len(t, pending, 1)

	resp = api.json(t, http.MethodPatch, "/api/admin/transactions/"+deposit.ID, adminToken, `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1000.00", decode[models.SettlementResponse](t, resp).Balance)

	resp = api.json(t, http.MethodPatch, "/api/admin/transactions/"+deposit.ID, adminToken, `{"status":"rejected"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = api.json(t, http.MethodPost, "/api/transactions/withdraw", token, `{"amount":"1001","currency":"KZ"}`)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	resp = api.json(t, http.MethodPost, "/api/transactions/exchange", token, `{"amount":"0.5","fromCurrency":"EUR","toCurrency":"KZ"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	exchange := decode[models.ExchangeResponse](t, resp)
	assert.Equal(t, "525.00", exchange.ConvertedAmount)
	assert.Equal(t, "EUR", exchange.Transaction.Currency)

	resp = api.json(t, http.MethodPost, "/api/transactions/exchange", token, `{"amount":"100","fromCurrency":"KZ","toCurrency":"EUR"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = api.json(t, http.MethodPost, "/api/transactions/deposit", token, `{"amount":"10.001","currency":"KZ"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.json(t, http.MethodPost, "/api/transactions/deposit", token, `{"amount":"10","currency":"GBP"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	list := decode[[]models.TransactionResponse](t, api.json(t, http.MethodGet, "/api/transactions?limit=10", token, ""))
	require.Len(t, list, 2)
	assert.Equal(t, "exchange", list[0].Type)

	resp = api.json(t, http.MethodGet, "/api/transactions?limit=abc", token, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type part struct {
	field, filename, content string
}

func multipartBody(t *testing.T, fields map[string]string, files ...part) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}

	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)

		_, err = fw.Write([]byte(f.content))
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestKYCFlow(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.register(t)
	adminToken := api.admin(t)

	body, ct := multipartBody(t, nil,
		part{"idCard", "id.png", "id"},
		part{"selfie", "me.jpg", "face"},
	)

	resp := api.do(t, http.MethodPost, "/api/kyc", token, body, ct)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body, ct = multipartBody(t, nil,
		part{"idCard", "id.png", "id"},
		part{"selfie", "me.jpg", "face"},
		part{"proofOfAddress", "bill.pdf", "bill"},
	)

	resp = api.do(t, http.MethodPost, "/api/kyc", token, body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	docs := decode[[]models.KYCDocumentResponse](t, resp)
	require.Len(t, docs, 3)

	// Uploaded files are served back.
	file := api.json(t, http.MethodGet, docs[0].DocumentURL, "", "")
	assert.Equal(t, http.StatusOK, file.StatusCode)

	var last models.KYCReviewResponse

	for _, doc := range docs {
		resp := api.json(t, http.MethodPatch, "/api/admin/kyc/"+doc.ID, adminToken, `{"status":"approved"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		last = decode[models.KYCReviewResponse](t, resp)
	}

	assert.Equal(t, "approved", last.VerificationStatus)

	resp = api.json(t, http.MethodPatch, "/api/admin/kyc/missing", adminToken, `{"status":"approved"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.json(t, http.MethodPatch, "/api/admin/kyc/"+docs[0].ID, adminToken, `{"status":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func loanFields() map[string]string {
	return map[string]string{
		"amount":                 "500000",
		"termMonths":             "12",
		"paymentDay":             "5",
		"monthlySalary":          "300000",
		"workplace":              "Endiama",
		"bankName":               "BAI",
		"iban":                   "AO06004000000000000000000",
		"emergencyContact1Name":  "Ana",
		"emergencyContact1Phone": "+244911000001",
		"emergencyContact2Name":  "Rui",
		"emergencyContact2Phone": "+244911000002",
	}
}

func TestLoanFlow(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.register(t)
	adminToken := api.admin(t)

	body, ct := multipartBody(t, loanFields(),
		part{"idCard", "id.png", "id"},
		part{"salaryProof", "salary.pdf", "salary"},
	)

	resp := api.do(t, http.MethodPost, "/api/loans", token, body, ct)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	entries, err := os.ReadDir(api.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Empty(t, decode[[]models.LoanResponse](t, api.json(t, http.MethodGet, "/api/loans", token, "")))

	body, ct = multipartBody(t, loanFields(),
		part{"idCard", "id.png", "id"},
		part{"selfie", "me.jpg", "face"},
		part{"salaryProof", "salary.pdf", "salary"},
	)

	resp = api.do(t, http.MethodPost, "/api/loans", token, body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	loan := decode[models.LoanResponse](t, resp)
	assert.Equal(t, "45129.16", loan.MonthlyPayment)
	assert.Equal(t, "541549.92", loan.TotalPayment)
	assert.Equal(t, "pending", loan.Status)

	resp = api.json(t, http.MethodPatch, "/api/admin/loans/"+loan.ID, adminToken, `{"status":"active"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = api.json(t, http.MethodPatch, "/api/admin/loans/"+loan.ID, adminToken, `{"status":"rejected","rejectionReason":"income"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "income", decode[models.LoanResponse](t, resp).RejectionReason)

	all := decode[[]models.LoanResponse](t, api.json(t, http.MethodGet, "/api/admin/loans?status=rejected", adminToken, ""))
	assert.Len(t, all, 1)

	pending := decode[[]models.LoanResponse](t, api.json(t, http.MethodGet, "/api/admin/loans/pending", adminToken, ""))
	assert.Empty(t, pending)
}

func TestPublicRatesAndSimulator(t *testing.T) {
	api := newTestAPI(t)

	resp := api.json(t, http.MethodGet, "/api/currency-rates", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.CurrencyRateResponse](t, resp), 3)

	resp = api.json(t, http.MethodPost, "/api/loans/simulate", "", `{"amount":"100000","termMonths":10,"interestRate":"0"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sim := decode[models.LoanSimulationResponse](t, resp)
	assert.Equal(t, "10000.00", sim.MonthlyPayment)
	assert.Equal(t, "0.00", sim.TotalInterest)

	resp = api.json(t, http.MethodPost, "/api/loans/simulate", "", `{"amount":"100000","termMonths":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminRatesAndSettings(t *testing.T) {
	api := newTestAPI(t)
	adminToken := api.admin(t)

	resp := api.json(t, http.MethodPatch, "/api/admin/currency-rates", adminToken,
		`{"rates":[{"fromCurrency":"KZ","toCurrency":"USD","rate":"0.0011"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.CurrencyRateResponse](t, resp), 4)

	resp = api.json(t, http.MethodPatch, "/api/admin/currency-rates", adminToken,
		`{"rates":[{"fromCurrency":"KZ","toCurrency":"KZ","rate":"1"}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.json(t, http.MethodPatch, "/api/admin/currency-rates", adminToken, `{"rates":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.json(t, http.MethodPatch, "/api/admin/settings", adminToken, `{"key":"loan_interest_rate","value":"20"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decode[[]models.SettingResponse](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, "20", list[0].Value)

	resp = api.json(t, http.MethodPatch, "/api/admin/settings", adminToken, `{"key":"unknown","value":"20"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.json(t, http.MethodPatch, "/api/admin/settings", adminToken, `{"key":"loan_interest_rate","value":"12.345"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminReviewMalformedID(t *testing.T) {
	api := newTestAPI(t)
	adminToken := api.admin(t)

	for _, path := range []string{
		"/api/admin/kyc/abc",
		"/api/admin/transactions/abc",
		"/api/admin/loans/abc",
		"/api/admin/loans/00000000-0000-0000-0000-000000000000",
	} {
		resp := api.json(t, http.MethodPatch, path, adminToken, `{"status":"approved"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)

		body := decode[map[string]any](t, resp)
		assert.Contains(t, body["error"], "not found", path)
	}
}
