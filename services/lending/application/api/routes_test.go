package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghuser/lendingdesk/pkg/app"
	"github.com/ghuser/lendingdesk/pkg/auth"
	"github.com/ghuser/lendingdesk/pkg/config"
	"github.com/ghuser/lendingdesk/pkg/logger"
	appsvcs "github.com/ghuser/lendingdesk/services/lending/application/services"
	"github.com/ghuser/lendingdesk/services/lending/domain/models"
	"github.com/ghuser/lendingdesk/services/lending/infrastructure/persistence/memory"
)

const signingKey = "routes-test-signing-key-32-bytes!"

type fixture struct {
	router http.Handler
	store  *memory.Store
	tokens *auth.TokenVerifier
	itemID uuid.UUID
}

func newFixture(t *testing.T, copies int) *fixture {
	t.Helper()
	store := memory.New()
	itemID := uuid.New()
	require.NoError(t, store.Seed(models.CatalogItem{ID: itemID, Title: "Dune", StockQuantity: copies, TotalCopies: copies}))

	policy := appsvcs.Policy{PrivilegedRole: "admin"}
	svcs := &appsvcs.Services{
		Manager: appsvcs.NewLendingManager(store, store, policy, logger.Nop()),
		Queries: appsvcs.NewLendingQueries(store, store, nil, logger.Nop()),
		Policy:  policy,
	}
	tokens := auth.NewTokenVerifier([]byte(signingKey))
	a := &app.Application{
		Config: &config.Config{Environment: config.EnvTesting, PrivilegedRole: "admin"},
		Logger: logger.Nop(),
		Tokens: tokens,
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		Mount(r, svcs, auth.RequireAuth(tokens, nil, a.Logger), a)
	})
	return &fixture{router: r, store: store, tokens: tokens, itemID: itemID}
}

func (f *fixture) token(t *testing.T, holder uuid.UUID, role string) string {
	t.Helper()
	tok, err := f.tokens.Sign(auth.Identity{HolderID: holder, Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	var env envelope
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	}
	return rr, env
}

func (f *fixture) borrow(t *testing.T, token string) (int, map[string]any) {
	t.Helper()
	rr, env := f.do(t, http.MethodPost, "/api/borrow", token, map[string]string{"item_id": f.itemID.String()})
	var data map[string]any
	if len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, &data))
	}
	return rr.Code, data
}

func TestBorrow_RequiresAuth(t *testing.T) {
	f := newFixture(t, 1)
	rr, env := f.do(t, http.MethodPost, "/api/borrow", "", map[string]string{"item_id": f.itemID.String()})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, env.Success)
	assert.Equal(t, 1, f.store.Stock(f.itemID))
}

func TestBorrow_CreatedThenNotAvailable(t *testing.T) {
	f := newFixture(t, 1)
	tok := f.token(t, uuid.New(), "member")

	code, data := f.borrow(t, tok)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "borrowed", data["status"])
	assert.Equal(t, f.itemID.String(), data["item_id"])

	rr, env := f.do(t, http.MethodPost, "/api/borrow", f.token(t, uuid.New(), "member"),
		map[string]string{"item_id": f.itemID.String()})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "item not available", env.Message)
	assert.Equal(t, 0, f.store.Stock(f.itemID))
}

func TestBorrow_Validation(t *testing.T) {
	f := newFixture(t, 1)
	tok := f.token(t, uuid.New(), "member")

	rr, _ := f.do(t, http.MethodPost, "/api/borrow", tok, map[string]string{"item_id": "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr, env := f.do(t, http.MethodPost, "/api/borrow", tok, map[string]string{"item_id": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "item not found", env.Message)
}

func TestReturn_OwnershipAndDoubleReturn(t *testing.T) {
	f := newFixture(t, 1)
	holder := uuid.New()
	holderTok := f.token(t, holder, "member")

	code, data := f.borrow(t, holderTok)
	require.Equal(t, http.StatusCreated, code)
	path := "/api/borrow/return/" + data["id"].(string)

	rr, _ := f.do(t, http.MethodPatch, path, f.token(t, uuid.New(), "member"), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, 0, f.store.Stock(f.itemID))

	rr, env := f.do(t, http.MethodPatch, path, holderTok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "item returned successfully", env.Message)
	assert.Equal(t, 1, f.store.Stock(f.itemID))

	rr, _ = f.do(t, http.MethodPatch, path, holderTok, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, 1, f.store.Stock(f.itemID))
}

func TestReturn_PrivilegedCallerAnyCase(t *testing.T) {
	f := newFixture(t, 1)
	code, data := f.borrow(t, f.token(t, uuid.New(), "member"))
	require.Equal(t, http.StatusCreated, code)

	rr, _ := f.do(t, http.MethodPatch, "/api/borrow/return/"+data["id"].(string), f.token(t, uuid.New(), "ADMIN"), nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReturn_BadRecordID(t *testing.T) {
	f := newFixture(t, 1)
	tok := f.token(t, uuid.New(), "member")

	rr, _ := f.do(t, http.MethodPatch, "/api/borrow/return/42", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = f.do(t, http.MethodPatch, "/api/borrow/return/"+uuid.NewString(), tok, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMyRecords_OnlyOwn(t *testing.T) {
	f := newFixture(t, 3)
	alice := f.token(t, uuid.New(), "member")
	bob := f.token(t, uuid.New(), "member")

	f.borrow(t, alice)
	f.borrow(t, alice)
	f.borrow(t, bob)

	rr, env := f.do(t, http.MethodGet, "/api/borrow/my", alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &records))
	assert.Len(t, records, 2)
	assert.Equal(t, "Dune", records[0]["item_title"])
}

func TestPrivilegedRoutes(t *testing.T) {
	f := newFixture(t, 2)
	member := f.token(t, uuid.New(), "member")
	admin := f.token(t, uuid.New(), "admin")

	_, data := f.borrow(t, member)
	recordPath := "/api/borrow/" + data["id"].(string)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/borrow"},
		{http.MethodGet, recordPath},
		{http.MethodDelete, recordPath},
	} {
		rr, _ := f.do(t, tc.method, tc.path, member, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code, "%s %s", tc.method, tc.path)
	}

	rr, env := f.do(t, http.MethodGet, "/api/borrow?status=borrowed", admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &records))
	assert.Len(t, records, 1)

	rr, _ = f.do(t, http.MethodGet, "/api/borrow?status=lost", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = f.do(t, http.MethodGet, recordPath, admin, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = f.do(t, http.MethodDelete, recordPath, admin, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	f.do(t, http.MethodPatch, "/api/borrow/return/"+data["id"].(string), member, nil)
	rr, env = f.do(t, http.MethodDelete, recordPath, admin, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "lending record deleted", env.Message)

	rr, _ = f.do(t, http.MethodGet, recordPath, admin, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAvailability(t *testing.T) {
	f := newFixture(t, 3)
	tok := f.token(t, uuid.New(), "member")
	f.borrow(t, tok)

	rr, env := f.do(t, http.MethodGet, "/api/items/"+f.itemID.String()+"/availability", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var a models.Availability
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, 2, a.AvailableCopies)
	assert.Equal(t, 3, a.TotalCopies)
	assert.Equal(t, 1, a.OnLoan)

	rr, _ = f.do(t, http.MethodGet, "/api/items/"+uuid.NewString()+"/availability", tok, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
