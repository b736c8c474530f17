package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/propertyhub/backoffice/internal/database/memstore"
	"github.com/propertyhub/backoffice/internal/middleware"
	"github.com/propertyhub/backoffice/internal/models"
	"github.com/propertyhub/backoffice/internal/services"
	"github.com/propertyhub/backoffice/pkg/jwt"
	"github.com/propertyhub/backoffice/pkg/notify"
	"github.com/propertyhub/backoffice/pkg/storage"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router  *gin.Engine
	store   *memstore.Store
	jwt     *jwt.Service
	docRoot string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()

	store := memstore.New()
	docRoot := t.TempDir()
	documents, err := storage.NewDiskStore(docRoot, 1<<20)
	require.NoError(t, err)

	notifier := services.NewBookingNotifier(notify.NewLogNotifier(logger), store, services.NotifierConfig{Currency: "USD", Timeout: time.Second}, logger)
	reservations := services.NewReservationService(store, services.NewManualPaymentGateway(documents), notifier, logger)
	lifecycle := services.NewLifecycleService(store, notifier, logger)
	featured := services.NewFeaturedService(store, services.DefaultFeaturedLimits(), logger)
	availability := services.NewAvailabilityService(store)
	reconciliation := services.NewReconciliationService(store, logger)

	jwtService := jwt.NewService("handler-test-secret", "propertyhub-test", time.Hour)

	router := gin.New()
	RegisterRoutes(router,
		NewBookingHandler(reservations, lifecycle, reconciliation, documents, logger),
		NewPropertyHandler(lifecycle, featured, availability, logger),
		jwtService, nil, logger)

	return &testServer{router: router, store: store, jwt: jwtService, docRoot: docRoot}
}

func (s *testServer) token(t *testing.T, roles ...string) string {
	t.Helper()
	token, err := s.jwt.GenerateAccessToken(uuid.New(), "", roles)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0.0.0 Safari/537.36")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func flexibleListing() models.Property {
	flexible := models.RentDurationFlexible
	window := &models.AvailabilityWindow{
		CheckIn:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	return models.Property{
		ID: uuid.New(), Title: "Lake Cabin", ListingType: models.ListingTypeRent,
		RentDurationType: &flexible, Price: 100, AvailabilityWindow: window,
	}
}

func unitListing() models.Property {
	monthly := models.RentDurationMonthly
	return models.Property{
		ID: uuid.New(), Title: "City Flat", ListingType: models.ListingTypeRent,
		RentDurationType: &monthly, Price: 900,
	}
}

func guestBooking(propertyID uuid.UUID) gin.H {
	return gin.H{
		"property_id":    propertyID,
		"check_in_date":  "2025-06-01",
		"check_out_date": "2025-06-04",
		"payment_method": "Cash_Payment",
		"client_name":    "Ana Silva",
		"client_phone":   "+15550100",
		"client_address": "1 Main St",
		"client_email":   "ana@example.com",
		"adults":         2,
	}
}

func createBooking(t *testing.T, s *testServer, propertyID uuid.UUID) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/bookings", "", guestBooking(propertyID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := decode(t, w)["booking"].(map[string]interface{})
	return booking["id"].(string)
}

func TestCreateBooking_Guest(t *testing.T) {
	s := setupTestServer(t)
	p := flexibleListing()
	s.store.AddProperty(p)

	w := s.do(t, http.MethodPost, "/api/v1/bookings", "", guestBooking(p.ID))

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := decode(t, w)["booking"].(map[string]interface{})
	assert.Equal(t, "pending", booking["status"])
	assert.Equal(t, "unpaid", booking["payment_status"])
	assert.Equal(t, 300.0, booking["total_amount"])
	assert.Equal(t, "guest", booking["requester"].(map[string]interface{})["kind"])
}

func TestCreateBooking_Rejections(t *testing.T) {
	s := setupTestServer(t)
	flexible := flexibleListing()
	unit := unitListing()
	s.store.AddProperty(flexible)
	s.store.AddProperty(unit)
	createBooking(t, s, flexible.ID)

	userToken := s.token(t, middleware.RoleUser)
	unitBody := gin.H{"property_id": unit.ID, "payment_method": "Cash_Payment"}
	w := s.do(t, http.MethodPost, "/api/v1/bookings", userToken, unitBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	overlapping := guestBooking(flexible.ID)
	overlapping["check_in_date"] = "2025-06-03"
	overlapping["check_out_date"] = "2025-06-06"

	missingDates := guestBooking(flexible.ID)
	delete(missingDates, "check_in_date")
	delete(missingDates, "check_out_date")

	badDate := guestBooking(flexible.ID)
	badDate["check_in_date"] = "06/01/2025"

	badPhone := guestBooking(flexible.ID)
	badPhone["client_phone"] = "call me"

	tests := []struct {
		name   string
		token  string
		body   interface{}
		status int
		code   string
	}{
		{"Duplicate Reservation", userToken, unitBody, http.StatusConflict, "DUPLICATE_RESERVATION"},
		{"Unit Taken", s.token(t, middleware.RoleUser), unitBody, http.StatusConflict, "UNIT_UNAVAILABLE"},
		{"Range Taken", "", overlapping, http.StatusConflict, "RANGE_UNAVAILABLE"},
		{"Flexible Without Dates", "", missingDates, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"Bad Date Format", "", badDate, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"Bad Guest Phone", "", badPhone, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"Manual Without Proof", "", gin.H{
			"property_id": flexible.ID, "check_in_date": "2025-09-01", "check_out_date": "2025-09-02",
			"payment_method": "manualPayment", "client_name": "Ana", "client_phone": "555 0100 22", "client_address": "x",
		}, http.StatusPaymentRequired, "PAYMENT_FAILED"},
		{"Unknown Property", "", guestBooking(uuid.New()), http.StatusNotFound, "NOT_FOUND"},
		{"Missing Property", "", gin.H{"payment_method": "Cash_Payment"}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/bookings", tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode(t, w)["error"])
		})
	}
}

func TestCreateBooking_ManualPaymentUpload(t *testing.T) {
	s := setupTestServer(t)
	p := flexibleListing()
	s.store.AddProperty(p)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"property_id":    p.ID.String(),
		"check_in_date":  "2025-07-01",
		"check_out_date": "2025-07-03",
		"payment_method": "manualPayment",
		"transaction_id": "TX-1001",
		"client_name":    "Ana Silva",
		"client_phone":   "+15550100",
		"client_address": "1 Main St",
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	proof, err := mw.CreateFormFile("payment_proof", "receipt.PNG")
	require.NoError(t, err)
	_, err = proof.Write([]byte("fake png bytes"))
	require.NoError(t, err)
	nid, err := mw.CreateFormFile("nid_document", "nid.pdf")
	require.NoError(t, err)
	_, err = nid.Write([]byte("fake pdf bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := decode(t, w)["booking"].(map[string]interface{})
	assert.Equal(t, "pending", booking["payment_status"])
	require.NotNil(t, booking["payment_id"])

	client := booking["requester"].(map[string]interface{})["client"].(map[string]interface{})
	assert.Contains(t, client["nid_document_ref"], "nid/")

	paymentID, err := uuid.Parse(booking["payment_id"].(string))
	require.NoError(t, err)
	payment, ok := s.store.Payment(paymentID)
	require.True(t, ok)
	assert.Equal(t, 200.0, payment.Amount)
	require.NotNil(t, payment.TransactionID)
	assert.Equal(t, "TX-1001", *payment.TransactionID)
}

func TestCreateBooking_IncompleteGuestStoresNoDocument(t *testing.T) {
	s := setupTestServer(t)
	p := flexibleListing()
	s.store.AddProperty(p)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"property_id":    p.ID.String(),
		"check_in_date":  "2025-07-01",
		"check_out_date": "2025-07-03",
		"payment_method": "Cash_Payment",
		"client_name":    "Ana Silva",
		"client_phone":   "+15550100",
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	nid, err := mw.CreateFormFile("nid_document", "nid.pdf")
	require.NoError(t, err)
	_, err = nid.Write([]byte("fake pdf bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["error"])

	var stored []string
	require.NoError(t, filepath.WalkDir(s.docRoot, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			stored = append(stored, path)
		}
		return err
	}))
	assert.Empty(t, stored)
}

func TestBookingLifecycleEndpoints(t *testing.T) {
	s := setupTestServer(t)
	p := flexibleListing()
	s.store.AddProperty(p)
	id := createBooking(t, s, p.ID)
	agent := s.token(t, middleware.RoleAgent)

	t.Run("Requires Auth", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/bookings/"+id, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = s.do(t, http.MethodGet, "/api/v1/bookings/"+id, s.token(t, middleware.RoleUser), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Get", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/bookings/"+id, agent, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, id, decode(t, w)["booking"].(map[string]interface{})["id"])

		w = s.do(t, http.MethodGet, "/api/v1/bookings/"+uuid.NewString(), agent, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = s.do(t, http.MethodGet, "/api/v1/bookings/not-a-uuid", agent, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Confirm", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/api/v1/bookings/"+id+"/status", agent, gin.H{
			"status": "confirmed", "agent_name": "Ravi", "agent_phone": "+15550199",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		booking := decode(t, w)["booking"].(map[string]interface{})
		assert.Equal(t, "confirmed", booking["status"])
		assert.Equal(t, "Ravi", booking["agent_name"])
	})

	t.Run("Invalid Transition", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/api/v1/bookings/"+id+"/status", agent, gin.H{"status": "pending"})
		assert.Equal(t, http.StatusConflict, w.Code)
		body := decode(t, w)
		assert.Equal(t, "INVALID_TRANSITION", body["error"])
		assert.Equal(t, "confirmed", body["details"].(map[string]interface{})["from"])
	})

	t.Run("Unknown Status", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/api/v1/bookings/"+id+"/status", agent, gin.H{"status": "archived"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Bad Appointment Date", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/api/v1/bookings/"+id+"/status", agent, gin.H{
			"status": "confirmed", "appointment_date": "10/01/2025",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w)["message"], "appointment_date")
	})

	t.Run("Payment Status", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/api/v1/bookings/"+id+"/payment-status", agent, gin.H{"payment_status": "paid"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "paid", decode(t, w)["booking"].(map[string]interface{})["payment_status"])
	})

	t.Run("History", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/bookings/"+id+"/history", agent, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 3.0, decode(t, w)["total"])
	})

	t.Run("Cancelled Paid Shows In Refunds", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/api/v1/bookings/"+id+"/status", agent, gin.H{"status": "cancelled"})
		require.Equal(t, http.StatusOK, w.Code)

		w = s.do(t, http.MethodGet, "/api/v1/admin/refunds", agent, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = s.do(t, http.MethodGet, "/api/v1/admin/refunds", s.token(t, middleware.RoleAdmin), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1.0, decode(t, w)["total"])
	})

	t.Run("List For Property", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/properties/"+p.ID.String()+"/bookings", agent, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1.0, decode(t, w)["total"])
	})

	t.Run("Delete", func(t *testing.T) {
		w := s.do(t, http.MethodDelete, "/api/v1/bookings/"+id, agent, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = s.do(t, http.MethodDelete, "/api/v1/bookings/"+id, agent, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSetFeaturedEndpoint(t *testing.T) {
	s := setupTestServer(t)
	admin := s.token(t, middleware.RoleAdmin)
	category := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		p := unitListing()
		p.CategoryID = &category
		s.store.AddProperty(p)
		ids = append(ids, p.ID)
	}

	for _, id := range ids[:3] {
		w := s.do(t, http.MethodPut, "/api/v1/properties/"+id.String()+"/featured", admin, gin.H{"featured": true})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, true, decode(t, w)["is_featured"])
	}

	w := s.do(t, http.MethodPut, "/api/v1/properties/"+ids[3].String()+"/featured", admin, gin.H{"featured": true})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CATEGORY_LIMIT_EXCEEDED", decode(t, w)["error"])

	w = s.do(t, http.MethodPut, "/api/v1/properties/"+ids[0].String()+"/featured", admin, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/properties/"+ids[0].String()+"/featured", s.token(t, middleware.RoleAgent), gin.H{"featured": false})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetAvailabilityEndpoint(t *testing.T) {
	s := setupTestServer(t)
	p := flexibleListing()
	s.store.AddProperty(p)
	createBooking(t, s, p.ID)

	base := "/api/v1/properties/" + p.ID.String() + "/availability"

	tests := []struct {
		name     string
		query    string
		status   int
		bookable bool
	}{
		{"Free", "?start=2025-06-04&end=2025-06-06", http.StatusOK, true},
		{"Taken", "?start=2025-06-02&end=2025-06-05", http.StatusOK, false},
		{"No Dates", "", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, base+tt.query, "", nil)
			require.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.bookable, decode(t, w)["bookable"])
		})
	}

	w := s.do(t, http.MethodGet, base+"?start=2025-06-04", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/properties/"+uuid.NewString()+"/availability", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthCheck(memstore.New(), "test"))
	router.GET("/health-down", HealthCheck(failingPinger{}, "test"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health-down", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatusForRejection(t *testing.T) {
	assert.Equal(t, http.StatusPaymentRequired, StatusForRejection(models.RejectPaymentFailed))
	assert.Equal(t, http.StatusConflict, StatusForRejection(models.RejectGlobalLimit))
	assert.Equal(t, http.StatusBadRequest, StatusForRejection("SOMETHING_NEW"))
}
