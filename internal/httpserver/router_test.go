package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"catalog-pricing/internal/config"
	"catalog-pricing/internal/domain"
	spsvc "catalog-pricing/internal/service/specialprice"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testProductID      = "65f1a2b3c4d5e6f708091001"
	testUserID         = "65f1a2b3c4d5e6f7080910aa"
	testOtherProductID = "65f1a2b3c4d5e6f708091002"
)

type stubProducts struct {
	list     []domain.PricedProduct
	product  *domain.PricedProduct
	err      error
	calls    int
	lastID   string
	lastUser string
}

func (s *stubProducts) List(_ context.Context, userID string) ([]domain.PricedProduct, error) {
	s.calls++
	s.lastUser = userID
	return s.list, s.err
}

func (s *stubProducts) Get(_ context.Context, id, userID string) (*domain.PricedProduct, error) {
	s.calls++
	s.lastID = id
	s.lastUser = userID
	return s.product, s.err
}

type stubSpecialPrices struct {
	profile      *domain.SpecialPriceProfile
	profiles     []domain.SpecialPriceProfile
	err          error
	calls        int
	lastCreate   spsvc.CreateInput
	lastID       string
	lastOverride domain.PriceOverride
	lastProduct  string
	panicOnList  bool
}

func (s *stubSpecialPrices) Create(_ context.Context, in spsvc.CreateInput) (*domain.SpecialPriceProfile, error) {
	s.calls++
	s.lastCreate = in
	return s.profile, s.err
}

func (s *stubSpecialPrices) List(_ context.Context) ([]domain.SpecialPriceProfile, error) {
	s.calls++
	if s.panicOnList {
		panic("boom")
	}
	return s.profiles, s.err
}

func (s *stubSpecialPrices) Get(_ context.Context, id string) (*domain.SpecialPriceProfile, error) {
	s.calls++
	s.lastID = id
	return s.profile, s.err
}

func (s *stubSpecialPrices) AddOrUpdateOverride(_ context.Context, id string, o domain.PriceOverride) (*domain.SpecialPriceProfile, error) {
	s.calls++
	s.lastID = id
	s.lastOverride = o
	return s.profile, s.err
}

func (s *stubSpecialPrices) UpdateOverride(_ context.Context, id string, o domain.PriceOverride) (*domain.SpecialPriceProfile, error) {
	s.calls++
	s.lastID = id
	s.lastOverride = o
	return s.profile, s.err
}

func (s *stubSpecialPrices) Delete(_ context.Context, id string) error {
	s.calls++
	s.lastID = id
	return s.err
}

func (s *stubSpecialPrices) RemoveOverride(_ context.Context, id, productID string) (*domain.SpecialPriceProfile, error) {
	s.calls++
	s.lastID = id
	s.lastProduct = productID
	return s.profile, s.err
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type testEnv struct {
	router   *gin.Engine
	products *stubProducts
	prices   *stubSpecialPrices
}

func newTestEnv(opts Options) *testEnv {
	gin.SetMode(gin.TestMode)
	env := &testEnv{products: &stubProducts{}, prices: &stubSpecialPrices{}}
	env.router = buildRouter(zerolog.Nop(), Deps{
		Products:      env.products,
		SpecialPrices: env.prices,
		Pinger:        stubPinger{},
	}, opts)
	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type errorResponse struct {
	Success bool `json:"success"`
	Error   struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
		Stack   string `json:"stack"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.False(t, out.Success)
	assert.Equal(t, rec.Code, out.Error.Status)
	return out
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, true, out["success"])
	return out
}

func boolPtr(v bool) *bool { return &v }

func TestHealth(t *testing.T) {
	env := newTestEnv(Options{})
	rec := env.do(http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := buildRouter(zerolog.Nop(), Deps{Pinger: stubPinger{err: errors.New("down")}}, Options{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env := newTestEnv(Options{})
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/readyz", nil).Code)
}

func TestRouteNotFound(t *testing.T) {
	env := newTestEnv(Options{})
	rec := env.do(http.MethodGet, "/api/nothing-here", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decodeError(t, rec).Error.Message)
}

func TestListProducts(t *testing.T) {
	env := newTestEnv(Options{})
	env.products.list = []domain.PricedProduct{
		{Product: domain.Product{ID: testProductID, Name: "Laptop", Price: 1200}},
	}

	rec := env.do(http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "Products retrieved successfully", body["message"])
	items := body["data"].([]any)
	require.Len(t, items, 1)
	assert.NotContains(t, items[0].(map[string]any), "hasSpecialPrice")
	assert.Equal(t, "", env.products.lastUser)
}

func TestListProducts_WithUser(t *testing.T) {
	env := newTestEnv(Options{})
	original := 1200.0
	env.products.list = []domain.PricedProduct{
		{Product: domain.Product{ID: testProductID, Price: 1000}, HasSpecialPrice: boolPtr(true), OriginalPrice: &original},
	}

	rec := env.do(http.MethodGet, "/api/products?userId="+testUserID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testUserID, env.products.lastUser)
	item := decodeEnvelope(t, rec)["data"].([]any)[0].(map[string]any)
	assert.Equal(t, true, item["hasSpecialPrice"])
	assert.Equal(t, 1200.0, item["originalPrice"])
	assert.Equal(t, 1000.0, item["price"])
}

func TestListProducts_MalformedUser(t *testing.T) {
	env := newTestEnv(Options{})
	rec := env.do(http.MethodGet, "/api/products?userId=ana", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.products.calls)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(Options{})
	env.products.product = &domain.PricedProduct{Product: domain.Product{ID: testProductID, Name: "Laptop"}}

	rec := env.do(http.MethodGet, "/api/products/"+testProductID+"?userId="+testUserID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testProductID, env.products.lastID)
	assert.Equal(t, testUserID, env.products.lastUser)
}

func TestGetProduct_MalformedIDNeverReachesStore(t *testing.T) {
	env := newTestEnv(Options{})
	rec := env.do(http.MethodGet, "/api/products/not-an-id", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	decodeError(t, rec)
	assert.Zero(t, env.products.calls)
}

func TestGetProduct_NotFound(t *testing.T) {
	env := newTestEnv(Options{})
	env.products.err = domain.NotFoundf("Product not found")

	rec := env.do(http.MethodGet, "/api/products/"+testProductID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decodeError(t, rec).Error.Message)
}

func TestUnexpectedErrorHidesDetails(t *testing.T) {
	env := newTestEnv(Options{Environment: config.Production})
	env.products.err = errors.New("connection refused to 10.0.0.5")

	rec := env.do(http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "Internal Server Error", body.Error.Message)
	assert.Empty(t, body.Error.Stack)
}

func TestUnexpectedError_StackOutsideProduction(t *testing.T) {
	env := newTestEnv(Options{Environment: config.Development})
	env.products.err = errors.New("connection refused to 10.0.0.5")

	rec := env.do(http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "Internal Server Error", body.Error.Message)
	assert.Contains(t, body.Error.Stack, "connection refused to 10.0.0.5")

	// Expected errors never carry a stack.
	env.products.err = domain.NotFoundf("Product not found")
	rec = env.do(http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, decodeError(t, rec).Error.Stack)
}

func TestPanicRecovery_StackOnlyOutsideProduction(t *testing.T) {
	dev := newTestEnv(Options{Environment: config.Development})
	dev.prices.panicOnList = true
	rec := dev.do(http.MethodGet, "/api/special-prices", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec).Error.Stack)

	prod := newTestEnv(Options{Environment: config.Production})
	prod.prices.panicOnList = true
	rec = prod.do(http.MethodGet, "/api/special-prices", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, decodeError(t, rec).Error.Stack)
}

func TestCreateSpecialPrice(t *testing.T) {
	env := newTestEnv(Options{})
	env.prices.profile = &domain.SpecialPriceProfile{ID: testUserID, Name: "Ana", Email: "ana@example.com"}

	rec := env.do(http.MethodPost, "/api/special-prices", map[string]any{
		"name": "Ana", "email": "ana@example.com", "productId": testProductID, "specialPrice": 900,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Special price created successfully", decodeEnvelope(t, rec)["message"])
	assert.Equal(t, spsvc.CreateInput{Name: "Ana", Email: "ana@example.com", ProductID: testProductID, SpecialPrice: 900}, env.prices.lastCreate)
}

func TestCreateSpecialPrice_Validation(t *testing.T) {
	cases := []struct {
		name    string
		body    any
		message string
	}{
		{"missing fields", map[string]any{"name": "Ana"}, "name, email, productId, specialPrice are required"},
		{"malformed product id", map[string]any{"name": "Ana", "email": "ana@example.com", "productId": "xyz", "specialPrice": 9}, "productId, Invalid ID format"},
		{"zero price", map[string]any{"name": "Ana", "email": "ana@example.com", "productId": testProductID, "specialPrice": 0}, "Special price must be a positive number"},
		{"negative price", map[string]any{"name": "Ana", "email": "ana@example.com", "productId": testProductID, "specialPrice": -1}, "Special price must be a positive number"},
		{"string price", map[string]any{"name": "Ana", "email": "ana@example.com", "productId": testProductID, "specialPrice": "9"}, ""},
		{"bad email", map[string]any{"name": "Ana", "email": "ana", "productId": testProductID, "specialPrice": 9}, "email must be a valid email address"},
		{"malformed json", "{", "malformed JSON body"},
		{"empty body", nil, "name, email, productId, specialPrice are required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(Options{})
			rec := env.do(http.MethodPost, "/api/special-prices", tc.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			if tc.message != "" {
				assert.Equal(t, tc.message, body.Error.Message)
			}
			assert.Zero(t, env.prices.calls)
		})
	}
}

func TestCreateSpecialPrice_Conflict(t *testing.T) {
	env := newTestEnv(Options{})
	env.prices.err = domain.Conflictf("a special price profile already exists for this email")

	rec := env.do(http.MethodPost, "/api/special-prices", map[string]any{
		"name": "Ana", "email": "ana@example.com", "productId": testProductID, "specialPrice": 900,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetSpecialPrice(t *testing.T) {
	env := newTestEnv(Options{})
	env.prices.profile = &domain.SpecialPriceProfile{ID: testUserID, Products: []domain.PriceOverride{{ProductID: testProductID, SpecialPrice: 900}}}

	rec := env.do(http.MethodGet, "/api/special-prices/"+testUserID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testUserID, env.prices.lastID)

	env.prices.err = domain.NotFoundf("Special price profile not found")
	rec = env.do(http.MethodGet, "/api/special-prices/"+testUserID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/api/special-prices/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSpecialPrices(t *testing.T) {
	env := newTestEnv(Options{})
	env.prices.profiles = []domain.SpecialPriceProfile{{ID: testUserID}}

	rec := env.do(http.MethodGet, "/api/special-prices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeEnvelope(t, rec)["data"], 1)
}

func TestAddSpecialPrice(t *testing.T) {
	env := newTestEnv(Options{})
	env.prices.profile = &domain.SpecialPriceProfile{ID: testUserID}

	rec := env.do(http.MethodPut, "/api/special-prices/add-special-price", map[string]any{
		"id": testUserID, "productId": testOtherProductID, "specialPrice": 20,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testUserID, env.prices.lastID)
	assert.Equal(t, domain.PriceOverride{ProductID: testOtherProductID, SpecialPrice: 20}, env.prices.lastOverride)

	rec = env.do(http.MethodPut, "/api/special-prices/add-special-price", map[string]any{"id": testUserID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.prices.err = domain.NotFoundf("Product not found")
	rec = env.do(http.MethodPut, "/api/special-prices/add-special-price", map[string]any{
		"id": testUserID, "productId": testOtherProductID, "specialPrice": 20,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateSpecialPrice(t *testing.T) {
	env := newTestEnv(Options{})
	env.prices.profile = &domain.SpecialPriceProfile{ID: testUserID}

	rec := env.do(http.MethodPut, "/api/special-prices/"+testUserID, map[string]any{"productId": testProductID, "specialPrice": 800})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PriceOverride{ProductID: testProductID, SpecialPrice: 800}, env.prices.lastOverride)

	calls := env.prices.calls
	rec = env.do(http.MethodPut, "/api/special-prices/"+testUserID, map[string]any{"productId": testProductID, "specialPrice": -3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(http.MethodPut, "/api/special-prices/nope", map[string]any{"productId": testProductID, "specialPrice": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, calls, env.prices.calls)

	env.prices.err = domain.NotFoundf("special price not found")
	rec = env.do(http.MethodPut, "/api/special-prices/"+testUserID, map[string]any{"productId": testOtherProductID, "specialPrice": 3})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSpecialPrice(t *testing.T) {
	env := newTestEnv(Options{})

	rec := env.do(http.MethodDelete, "/api/special-prices/"+testUserID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Contains(t, body, "data")
	assert.Nil(t, body["data"])

	env.prices.err = domain.ErrNotFound
	rec = env.do(http.MethodDelete, "/api/special-prices/"+testUserID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Resource not found", decodeError(t, rec).Error.Message)
}

func TestRemoveProductSpecialPrice(t *testing.T) {
	env := newTestEnv(Options{})

	rec := env.do(http.MethodDelete, "/api/special-prices/delete-product-special-price/"+testUserID, map[string]any{"productId": testProductID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testUserID, env.prices.lastID)
	assert.Equal(t, testProductID, env.prices.lastProduct)

	rec = env.do(http.MethodDelete, "/api/special-prices/delete-product-special-price/"+testUserID+"?productId="+testOtherProductID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testOtherProductID, env.prices.lastProduct)
}

func TestRemoveProductSpecialPrice_Validation(t *testing.T) {
	env := newTestEnv(Options{})

	rec := env.do(http.MethodDelete, "/api/special-prices/delete-product-special-price/"+testUserID, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "id, productId are required", decodeError(t, rec).Error.Message)

	rec = env.do(http.MethodDelete, "/api/special-prices/delete-product-special-price/"+testUserID, map[string]any{"productId": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.prices.calls)

	env.prices.err = domain.NotFoundf("Special price profile not found")
	rec = env.do(http.MethodDelete, "/api/special-prices/delete-product-special-price/"+testUserID, map[string]any{"productId": testProductID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(Options{RateLimitRPS: 1, RateLimitBurst: 2})

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health", nil).Code)
	rec := env.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", decodeError(t, rec).Error.Message)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(Options{CORSAllowOrigins: []string{"https://shop.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	env := newTestEnv(Options{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}
