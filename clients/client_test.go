package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-platform/utils"
)

func writeEnvelope(w http.ResponseWriter, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(utils.JSONResponse{
		Success: code < 300,
		Message: message,
		Data:    data,
	})
}

func TestFoodClientForwardsTokenAndRequestID(t *testing.T) {
	var gotAuth, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(utils.RequestIDHeader)
		assert.Equal(t, "/foods/3", r.URL.Path)
		writeEnvelope(w, http.StatusOK, "Food", map[string]interface{}{"id": 3, "name": "Pho", "price": "45000", "quantity": 12})
	}))
	defer srv.Close()

	ctx := utils.WithRequestID(utils.WithToken(context.Background(), "tok"), "req-1")
	food, err := NewFoodClient(srv.URL, time.Second).GetFood(ctx, 3)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "req-1", gotRequestID)
	assert.Equal(t, "Pho", food.Name)
	assert.Equal(t, 12, food.Quantity)
	assert.Equal(t, "45000", food.Price.String())
}

func TestFoodClientAdjustStockSendsDeltaAndReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var body StockAdjustment
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, StockAdjustment{Delta: -2, Reference: "order-item:9"}, body)
		writeEnvelope(w, http.StatusOK, "Stock adjusted", map[string]interface{}{"id": 1, "quantity": 8})
	}))
	defer srv.Close()

	food, err := NewFoodClient(srv.URL, time.Second).AdjustStock(context.Background(), 1, -2, "order-item:9")
	require.NoError(t, err)
	assert.Equal(t, 8, food.Quantity)
}

func TestRemoteNotFoundKeepsItsKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, "reservation not found", nil)
	}))
	defer srv.Close()

	_, err := NewReservationClient(srv.URL, time.Second).GetReservation(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.KindNotFound))
	assert.Equal(t, "reservation not found", err.Error())
}

func TestServerErrorBecomesUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusInternalServerError, "boom", nil)
	}))
	defer srv.Close()

	_, err := NewOrderClient(srv.URL, time.Second).ListOrdersByReservation(context.Background(), 1)
	require.Error(t, err)
	appErr, ok := utils.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.KindUpstream, appErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}

func TestTimeoutBecomesUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewTableClient(srv.URL, 20*time.Millisecond).ListTables(context.Background(), []uint{1, 2})
	assert.True(t, utils.IsKind(err, utils.KindUpstream))
}

func TestTableClientBuildsIDQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1,2", r.URL.Query().Get("ids"))
		writeEnvelope(w, http.StatusOK, "Tables", []map[string]interface{}{{"id": 1}, {"id": 2}})
	}))
	defer srv.Close()

	tables, err := NewTableClient(srv.URL, time.Second).ListTables(context.Background(), []uint{1, 2})
	require.NoError(t, err)
	assert.Len(t, tables, 2)
}

func TestUserClientMapsUnreachableToUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadGateway, "bad gateway", nil)
	}))
	defer srv.Close()

	_, err := NewUserClient(srv.URL, time.Second).Verify(context.Background(), "tok")
	appErr, ok := utils.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, appErr.Status)
}
