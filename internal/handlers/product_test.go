package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dimitrije/product-api/internal/middleware"
	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/services"
	"github.com/dimitrije/product-api/internal/store/memory"
	"github.com/dimitrije/product-api/pkg/dto"
	"github.com/dimitrije/product-api/tests/testutil"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	driftmw "github.com/m1z23r/drift/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newProductApp(products ProductServiceInterface) http.Handler {
	handler := NewProductHandler(products, nil)

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Use(middleware.Auth(testutil.TestJWTService()))
	app.Get("/api/product", handler.List)
	app.Post("/api/product", handler.Create)
	app.Get("/api/product/:id", handler.Get)
	app.Put("/api/product/:id", handler.Update)
	app.Delete("/api/product/:id", handler.Delete)
	return app
}

func setupProductTest(t *testing.T) (*testutil.MockProductService, *testutil.HTTPTestClient) {
	t.Helper()
	products := new(testutil.MockProductService)
	return products, testutil.NewHTTPTestClient(t, newProductApp(products))
}

// setupProductFlow wires the real service over an in-memory store and records
// hub notifications.
func setupProductFlow(t *testing.T) (*services.ProductService, *testutil.MockHub, *testutil.HTTPTestClient) {
	t.Helper()
	h := new(testutil.MockHub)
	h.On("BroadcastProductCreated", mock.Anything).Maybe()
	h.On("BroadcastProductUpdated", mock.Anything).Maybe()
	h.On("NotifyProductDeleted", mock.Anything, mock.Anything).Maybe()
	svc := services.NewProductService(memory.New(), nil, services.WithNotifier(NewProductNotifier(h)))
	return svc, h, testutil.NewHTTPTestClient(t, newProductApp(svc))
}

func testProduct(owner uuid.UUID, version int) *models.Product {
	return &models.Product{
		ID:        "p1",
		RowID:     uuid.New(),
		Name:      "Widget",
		Amount:    2,
		Price:     4.5,
		Owner:     owner,
		Version:   version,
		UpdatedAt: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
}

func withHeader(headers map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out[key] = value
	return out
}

func TestProductHandler_RequiresAuth(t *testing.T) {
	_, client := setupProductTest(t)

	rec := client.GET("/api/product", nil)

	testutil.AssertStatus(t, rec, http.StatusUnauthorized)
}

func TestProductHandler_Get_Success(t *testing.T) {
	products, client := setupProductTest(t)
	userID := uuid.New()
	p := testProduct(userID, 3)

	products.On("GetByID", mock.Anything, "p1", userID).Return(p, nil)

	rec := client.GET("/api/product/p1", testutil.AuthHeaders(t, userID))

	testutil.AssertStatus(t, rec, http.StatusOK)
	assert.Equal(t, "3", rec.Header().Get("ETag"))
	assert.Equal(t, "Thu, 15 Oct 2026 12:00:00 GMT", rec.Header().Get("Last-Modified"))

	var resp dto.ProductResponse
	testutil.ParseJSON(t, rec, &resp)
	assert.Equal(t, "p1", resp.ID)
	assert.Equal(t, userID, resp.Owner)
	assert.Equal(t, 3, resp.Version)
	assert.NotContains(t, rec.Body.String(), p.RowID.String())
	products.AssertExpectations(t)
}

func TestProductHandler_Get_IfNoneMatch(t *testing.T) {
	products, client := setupProductTest(t)
	userID := uuid.New()

	products.On("GetByID", mock.Anything, "p1", userID).Return(testProduct(userID, 3), nil)

	rec := client.GET("/api/product/p1", withHeader(testutil.AuthHeaders(t, userID), "If-None-Match", `"3"`))

	testutil.AssertStatus(t, rec, http.StatusNotModified)
	assert.Empty(t, rec.Body.String())
}

func TestProductHandler_Get_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", services.ErrProductNotFound, http.StatusNotFound},
		{"forbidden", services.ErrForbidden, http.StatusForbidden},
		{"store failure", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, client := setupProductTest(t)
			userID := uuid.New()
			products.On("GetByID", mock.Anything, "p1", userID).Return(nil, tt.err)

			rec := client.GET("/api/product/p1", testutil.AuthHeaders(t, userID))

			testutil.AssertStatus(t, rec, tt.status)
			assert.NotContains(t, rec.Body.String(), "connection reset")
		})
	}
}

func TestProductHandler_List_NotModified(t *testing.T) {
	products, client := setupProductTest(t)
	userID := uuid.New()
	wm := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	products.On("List", mock.Anything, userID, mock.MatchedBy(func(m *time.Time) bool {
		return m != nil && m.Equal(wm)
	})).Return(&services.ListResult{LastModified: wm, NotModified: true}, nil)

	rec := client.GET("/api/product", withHeader(testutil.AuthHeaders(t, userID), "Last-Modified", wm.Format(http.TimeFormat)))

	testutil.AssertStatus(t, rec, http.StatusNotModified)
	assert.Empty(t, rec.Body.String())
	products.AssertExpectations(t)
}

func TestProductHandler_List_AcceptsRFC3339AndIfModifiedSince(t *testing.T) {
	products, client := setupProductTest(t)
	userID := uuid.New()
	marker := time.Date(2026, 10, 15, 12, 0, 0, 123_000_000, time.UTC)

	products.On("List", mock.Anything, userID, mock.MatchedBy(func(m *time.Time) bool {
		return m != nil && m.Equal(marker)
	})).Return(&services.ListResult{LastModified: marker, NotModified: true}, nil)

	rec := client.GET("/api/product", withHeader(testutil.AuthHeaders(t, userID), "If-Modified-Since", marker.Format(time.RFC3339Nano)))

	testutil.AssertStatus(t, rec, http.StatusNotModified)
}

func TestProductHandler_List_InvalidMarker(t *testing.T) {
	_, client := setupProductTest(t)
	userID := uuid.New()

	rec := client.GET("/api/product", withHeader(testutil.AuthHeaders(t, userID), "Last-Modified", "yesterday"))

	testutil.AssertStatus(t, rec, http.StatusBadRequest)
}

func TestProductHandler_Create_Duplicate(t *testing.T) {
	products, client := setupProductTest(t)
	userID := uuid.New()

	products.On("Create", mock.Anything, mock.Anything, userID).Return(nil, services.ErrProductExists)

	rec := client.POST("/api/product", dto.ProductRequest{ID: "p1", Name: "Widget"}, testutil.AuthHeaders(t, userID))

	testutil.AssertStatus(t, rec, http.StatusConflict)
	assert.Contains(t, rec.Body.String(), "PRODUCT_EXISTS")
}

func TestProductHandler_Update_VersionSources(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		body    int
		want    int
	}{
		{"etag header", map[string]string{"ETag": "4"}, 1, 4},
		{"quoted weak etag", map[string]string{"ETag": `W/"5"`}, 1, 5},
		{"if-match header", map[string]string{"If-Match": `"6"`}, 1, 6},
		{"etag wins over if-match", map[string]string{"ETag": "7", "If-Match": "8"}, 1, 7},
		{"body version", nil, 9, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, client := setupProductTest(t)
			userID := uuid.New()
			updated := testProduct(userID, tt.want+1)

			products.On("Update", mock.Anything, "p1", mock.Anything, tt.want, userID).Return(updated, nil)

			headers := testutil.AuthHeaders(t, userID)
			for k, v := range tt.headers {
				headers = withHeader(headers, k, v)
			}
			rec := client.PUT("/api/product/p1", dto.ProductRequest{ID: "p1", Name: "Widget", Version: tt.body}, headers)

			testutil.AssertStatus(t, rec, http.StatusOK)
			assert.Equal(t, strconv.Itoa(tt.want+1), rec.Header().Get("ETag"))
			products.AssertExpectations(t)
		})
	}
}

func TestProductHandler_Update_UnparseableVersionHeader(t *testing.T) {
	svc, _, client := setupProductFlow(t)
	bea, betty := uuid.New(), uuid.New()
	_, err := svc.Create(t.Context(), services.ProductInput{ID: "p1", Name: "Widget"}, bea)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		user    uuid.UUID
		version int
		status  int
	}{
		{"another principal", "/api/product/p1", betty, 1, http.StatusForbidden},
		{"deleted product", "/api/product/gone", bea, 1, http.StatusMethodNotAllowed},
		{"owner falls back to body version", "/api/product/p1", bea, 1, http.StatusOK},
		{"owner without any version", "/api/product/p1", bea, 0, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := strings.TrimPrefix(tt.path, "/api/product/")
			headers := withHeader(testutil.AuthHeaders(t, tt.user), "ETag", "abc")

			rec := client.PUT(tt.path, dto.ProductRequest{ID: id, Name: "Widget v2", Version: tt.version}, headers)

			testutil.AssertStatus(t, rec, tt.status)
		})
	}
}

func TestProductHandler_Update_VersionHeaderNotAVersion(t *testing.T) {
	products, client := setupProductTest(t)
	userID := uuid.New()

	products.On("Update", mock.Anything, "p1", mock.Anything, 0, userID).Return(nil, services.ErrMissingVersion)

	rec := client.PUT("/api/product/p1", dto.ProductRequest{ID: "p1", Name: "Widget"},
		withHeader(testutil.AuthHeaders(t, userID), "If-Match", "*"))

	testutil.AssertStatus(t, rec, http.StatusBadRequest)
	assert.Contains(t, rec.Body.String(), "no version specified")
	products.AssertExpectations(t)
}

func TestProductHandler_Update_StoreFailure(t *testing.T) {
	products, client := setupProductTest(t)
	userID := uuid.New()

	products.On("Update", mock.Anything, "p1", mock.Anything, 1, userID).Return(nil, errors.New("boom"))

	rec := client.PUT("/api/product/p1", dto.ProductRequest{ID: "p1", Name: "Widget", Version: 1}, testutil.AuthHeaders(t, userID))

	testutil.AssertStatus(t, rec, http.StatusInternalServerError)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestProductHandler_Flow(t *testing.T) {
	_, h, client := setupProductFlow(t)
	bea := testutil.AuthHeaders(t, uuid.New())
	betty := testutil.AuthHeaders(t, uuid.New())

	// create
	rec := client.POST("/api/product", dto.ProductRequest{ID: "w", Name: "Widget", Amount: 3, Price: 2.5}, bea)
	testutil.AssertStatus(t, rec, http.StatusCreated)
	assert.Equal(t, "1", rec.Header().Get("ETag"))
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))
	h.AssertCalled(t, "BroadcastProductCreated", mock.MatchedBy(func(p dto.ProductResponse) bool { return p.ID == "w" }))

	// update with the current version
	rec = client.PUT("/api/product/w", dto.ProductRequest{ID: "w", Name: "Widget v2", Version: 1}, bea)
	testutil.AssertStatus(t, rec, http.StatusOK)
	var updated dto.ProductResponse
	testutil.ParseJSON(t, rec, &updated)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "Widget v2", updated.Name)
	h.AssertCalled(t, "BroadcastProductUpdated", mock.MatchedBy(func(p dto.ProductResponse) bool { return p.Version == 2 }))

	// stale version
	rec = client.PUT("/api/product/w", dto.ProductRequest{ID: "w", Name: "stale"}, withHeader(bea, "ETag", "1"))
	testutil.AssertStatus(t, rec, http.StatusConflict)
	var conflict dto.VersionConflictResponse
	testutil.ParseJSON(t, rec, &conflict)
	assert.Equal(t, "VERSION_CONFLICT", conflict.Code)
	assert.Equal(t, 2, conflict.CurrentVersion)

	// another principal
	rec = client.GET("/api/product/w", betty)
	testutil.AssertStatus(t, rec, http.StatusForbidden)
	rec = client.PUT("/api/product/w", dto.ProductRequest{ID: "w", Name: "mine", Version: 2}, betty)
	testutil.AssertStatus(t, rec, http.StatusForbidden)

	// mismatched and missing fields
	rec = client.PUT("/api/product/w", dto.ProductRequest{ID: "other", Name: "x", Version: 2}, bea)
	testutil.AssertStatus(t, rec, http.StatusBadRequest)
	rec = client.PUT("/api/product/w", dto.ProductRequest{ID: "w", Version: 2}, bea)
	testutil.AssertStatus(t, rec, http.StatusBadRequest)
	rec = client.PUT("/api/product/w", dto.ProductRequest{ID: "w", Name: "no version"}, bea)
	testutil.AssertStatus(t, rec, http.StatusBadRequest)
	assert.Contains(t, rec.Body.String(), "no version specified")
	rec = client.POST("/api/product", dto.ProductRequest{ID: "nameless"}, bea)
	testutil.AssertStatus(t, rec, http.StatusBadRequest)

	// lists are owner scoped
	rec = client.GET("/api/product", bea)
	testutil.AssertStatus(t, rec, http.StatusOK)
	var list []dto.ProductResponse
	testutil.ParseJSON(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "w", list[0].ID)
	lastModified := rec.Header().Get("Last-Modified")
	require.NotEmpty(t, lastModified)

	rec = client.GET("/api/product", betty)
	testutil.AssertStatus(t, rec, http.StatusOK)
	list = nil
	testutil.ParseJSON(t, rec, &list)
	assert.Empty(t, list)

	// delete is idempotent and scoped to the owner
	rec = client.DELETE("/api/product/w", betty)
	testutil.AssertStatus(t, rec, http.StatusNoContent)
	rec = client.GET("/api/product/w", bea)
	testutil.AssertStatus(t, rec, http.StatusOK)

	rec = client.DELETE("/api/product/w", bea)
	testutil.AssertStatus(t, rec, http.StatusNoContent)
	rec = client.DELETE("/api/product/w", bea)
	testutil.AssertStatus(t, rec, http.StatusNoContent)
	h.AssertCalled(t, "NotifyProductDeleted", mock.Anything, "w")

	rec = client.GET("/api/product/w", bea)
	testutil.AssertStatus(t, rec, http.StatusNotFound)

	// a stale client cannot resurrect a deleted product
	rec = client.PUT("/api/product/w", dto.ProductRequest{ID: "w", Name: "ghost", Version: 2}, bea)
	testutil.AssertStatus(t, rec, http.StatusMethodNotAllowed)
	assert.Contains(t, rec.Body.String(), "product no longer exists")

	// a body without an id creates at the path id
	rec = client.PUT("/api/product/fresh", dto.ProductRequest{Name: "Fresh"}, bea)
	testutil.AssertStatus(t, rec, http.StatusCreated)
	var created dto.ProductResponse
	testutil.ParseJSON(t, rec, &created)
	assert.Equal(t, "fresh", created.ID)
	assert.Equal(t, 1, created.Version)
}

func TestProductHandler_ListConditional(t *testing.T) {
	_, _, client := setupProductFlow(t)
	bea := testutil.AuthHeaders(t, uuid.New())

	rec := client.POST("/api/product", dto.ProductRequest{ID: "p1", Name: "Widget"}, bea)
	testutil.AssertStatus(t, rec, http.StatusCreated)

	rec = client.GET("/api/product", bea)
	testutil.AssertStatus(t, rec, http.StatusOK)
	lastModified := rec.Header().Get("Last-Modified")
	wm, err := http.ParseTime(lastModified)
	require.NoError(t, err)

	// a marker well after the watermark is served from cache
	rec = client.GET("/api/product", withHeader(bea, "Last-Modified", wm.Add(time.Minute).Format(http.TimeFormat)))
	testutil.AssertStatus(t, rec, http.StatusNotModified)

	// a marker before the watermark gets the full list
	rec = client.GET("/api/product", withHeader(bea, "Last-Modified", wm.Add(-time.Minute).Format(http.TimeFormat)))
	testutil.AssertStatus(t, rec, http.StatusOK)
}

func TestProductHandler_ListRevalidatesWithOwnHeaders(t *testing.T) {
	_, _, client := setupProductFlow(t)
	bea := testutil.AuthHeaders(t, uuid.New())

	rec := client.POST("/api/product", dto.ProductRequest{ID: "p1", Name: "Widget"}, bea)
	testutil.AssertStatus(t, rec, http.StatusCreated)

	rec = client.GET("/api/product", bea)
	testutil.AssertStatus(t, rec, http.StatusOK)
	etag := rec.Header().Get("ETag")
	lastModified := rec.Header().Get("Last-Modified")
	require.NotEmpty(t, etag)

	// echoed exactly as a caching client would
	revalidate := withHeader(withHeader(bea, "If-None-Match", etag), "If-Modified-Since", lastModified)
	for range 20 {
		rec = client.GET("/api/product", revalidate)
		testutil.AssertStatus(t, rec, http.StatusNotModified)
		assert.Equal(t, etag, rec.Header().Get("ETag"))
	}

	rec = client.GET("/api/product", withHeader(bea, "If-None-Match", `"`+etag+`"`))
	testutil.AssertStatus(t, rec, http.StatusNotModified)

	rec = client.PUT("/api/product/p1", dto.ProductRequest{ID: "p1", Name: "Widget v2", Version: 1}, bea)
	testutil.AssertStatus(t, rec, http.StatusOK)

	rec = client.GET("/api/product", revalidate)
	testutil.AssertStatus(t, rec, http.StatusOK)
	assert.NotEqual(t, etag, rec.Header().Get("ETag"))
}

func TestProductHandler_ConcurrentUpdates(t *testing.T) {
	svc, _, client := setupProductFlow(t)
	owner := uuid.New()
	headers := testutil.AuthHeaders(t, owner)

	_, err := svc.Create(t.Context(), services.ProductInput{ID: "p1", Name: "Widget"}, owner)
	require.NoError(t, err)

	const writers = 8
	codes := make(chan int, writers)
	for i := range writers {
		go func() {
			rec := client.PUT("/api/product/p1", dto.ProductRequest{ID: "p1", Name: "writer " + strconv.Itoa(i), Version: 1}, headers)
			codes <- rec.Code
		}()
	}

	counts := map[int]int{}
	for range writers {
		counts[<-codes]++
	}
	assert.Equal(t, 1, counts[http.StatusOK])
	assert.Equal(t, writers-1, counts[http.StatusConflict])
}

func TestParseVersion(t *testing.T) {
	for raw, want := range map[string]int{"3": 3, `"3"`: 3, `W/"12"`: 12, " 7 ": 7} {
		got, err := parseVersion(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := parseVersion("abc")
	assert.Error(t, err)
}
