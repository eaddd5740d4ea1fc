package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
	"tix/src/db"
	"tix/src/pool"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
	DB   *gorm.DB
	Mock sqlmock.Sqlmock
}

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

func (s *TestSuite) SetupSuite() {
	registerValidators()
}

func (s *TestSuite) SetupTest() {
	d, mock := NewMockDB()
	db.NewDB(d)
	s.DB = d
	s.Mock = mock
	pool.ResetPool()
}

func ticketTypeColumns() []string {
	return []string{"id", "event_id", "name", "price_cents", "status", "max_quantity", "sold_count"}
}

func reservationColumns() []string {
	return []string{"id", "ticket_type_id", "quantity", "session_id", "status", "expires_at"}
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestHealthRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	rbytes, err := io.ReadAll(w.Body)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), "ok", gjson.GetBytes(rbytes, "status").String())
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestValidateCart() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	checkoutHandlers(apiv1)

	s.Run("Should accept a cart backed by stock", func() {
		s.Mock.ExpectQuery(`SELECT \* FROM "ticket_types"`).
			WillReturnRows(sqlmock.NewRows(ticketTypeColumns()).
				AddRow("tt-ga", "evt-conf", "General Admission", int64(2500), "available", int64(100), int64(10)))
		s.Mock.ExpectQuery(`SELECT COALESCE\(SUM\(quantity\), 0\) FROM "reservations"`).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(5)))

		jbody := map[string]any{
			"items": []map[string]any{
				{"type": "ticket", "ticket_type_id": "tt-ga", "qty": 2},
				{"type": "donation"},
			},
		}
		sbody, _ := json.Marshal(&jbody)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/checkout/validate", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 200, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		assert.True(s.T(), gjson.GetBytes(rbytes, "data.valid").Bool())
		assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
	})

	s.Run("Should report every failing line", func() {
		s.Mock.ExpectQuery(`SELECT \* FROM "ticket_types"`).
			WillReturnRows(sqlmock.NewRows(ticketTypeColumns()))
		s.Mock.ExpectQuery(`SELECT \* FROM "ticket_types"`).
			WillReturnRows(sqlmock.NewRows(ticketTypeColumns()).
				AddRow("tt-vip", "evt-conf", "VIP", int64(9900), "sold-out", int64(20), int64(20)))

		jbody := map[string]any{
			"items": []map[string]any{
				{"type": "ticket", "ticket_type_id": "tt-missing", "qty": 1},
				{"type": "ticket", "ticket_type_id": "tt-vip", "qty": 1},
			},
		}
		sbody, _ := json.Marshal(&jbody)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/checkout/validate", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 200, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		assert.False(s.T(), gjson.GetBytes(rbytes, "data.valid").Bool())
		assert.Equal(s.T(), int64(2), gjson.GetBytes(rbytes, "data.errors.#").Int())
		assert.Equal(s.T(), "not_found", gjson.GetBytes(rbytes, "data.errors.0.reason").String())
		assert.Equal(s.T(), "sold_out", gjson.GetBytes(rbytes, "data.errors.1.reason").String())
	})

	s.Run("Should reject a ticket line without a ticket type", func() {
		jbody := map[string]any{
			"items": []map[string]any{
				{"type": "ticket", "qty": 1},
			},
		}
		sbody, _ := json.Marshal(&jbody)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/checkout/validate", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject an empty cart", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/checkout/validate", strings.NewReader(`{"items":[]}`))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestCheckoutBackpressure() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	checkoutHandlers(apiv1)

	p := pool.NewPool(pool.New(pool.Config{
		MaxConnections: 1,
		AcquireTimeout: 25 * time.Millisecond,
		Factory:        pool.DatabaseFactory,
	}))
	lease, err := p.AcquireLease("load-test")
	assert.Nil(s.T(), err)
	defer lease.Release()

	jbody := map[string]any{
		"items": []map[string]any{
			{"type": "ticket", "ticket_type_id": "tt-ga", "qty": 1},
		},
	}
	sbody, _ := json.Marshal(&jbody)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/checkout/validate", strings.NewReader(string(sbody)))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestCheckoutRunsOnLeasedConnection() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	checkoutHandlers(apiv1)

	leaseDB, leaseMock, err := sqlmock.New()
	assert.Nil(s.T(), err)
	pool.NewPool(pool.New(pool.Config{
		MaxConnections: 1,
		AcquireTimeout: time.Second,
		Factory: func() (pool.Conn, error) {
			return pool.NewDBConn(leaseDB)
		},
	}))

	leaseMock.ExpectQuery(`SELECT \* FROM "ticket_types"`).
		WillReturnRows(sqlmock.NewRows(ticketTypeColumns()).
			AddRow("tt-ga", "evt-conf", "General Admission", int64(2500), "available", int64(100), int64(10)))
	leaseMock.ExpectQuery(`SELECT COALESCE\(SUM\(quantity\), 0\) FROM "reservations"`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(0)))

	jbody := map[string]any{
		"items": []map[string]any{
			{"type": "ticket", "ticket_type_id": "tt-ga", "qty": 2},
		},
	}
	sbody, _ := json.Marshal(&jbody)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/checkout/validate", strings.NewReader(string(sbody)))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	// Both reads must land on the leased connection; the shared handle
	// stays untouched.
	assert.Nil(s.T(), leaseMock.ExpectationsWereMet())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestCreateReservation() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	checkoutHandlers(apiv1)

	s.Run("Should create a hold and return 201", func() {
		s.Mock.ExpectBegin()
		s.Mock.ExpectQuery(`SELECT \* FROM "reservations"`).
			WillReturnRows(sqlmock.NewRows(reservationColumns()))
		s.Mock.ExpectQuery(`SELECT \* FROM "ticket_types" (.+) FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows(ticketTypeColumns()).
				AddRow("tt-ga", "evt-conf", "General Admission", int64(2500), "available", int64(100), int64(10)))
		s.Mock.ExpectQuery(`SELECT COALESCE\(SUM\(quantity\), 0\) FROM "reservations"`).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(0)))
		s.Mock.ExpectQuery(`INSERT INTO "reservations"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
		s.Mock.ExpectCommit()

		jbody := map[string]any{
			"ticket_type_id": "tt-ga",
			"qty":            2,
			"session_id":     "sess-abc",
		}
		sbody, _ := json.Marshal(&jbody)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/reservations", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 201, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), int64(7), gjson.GetBytes(rbytes, "data.id").Int())
		assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
	})

	s.Run("Should return 409 when stock runs out", func() {
		s.Mock.ExpectBegin()
		s.Mock.ExpectQuery(`SELECT \* FROM "reservations"`).
			WillReturnRows(sqlmock.NewRows(reservationColumns()))
		s.Mock.ExpectQuery(`SELECT \* FROM "ticket_types" (.+) FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows(ticketTypeColumns()).
				AddRow("tt-ga", "evt-conf", "General Admission", int64(2500), "available", int64(10), int64(10)))
		s.Mock.ExpectQuery(`SELECT COALESCE\(SUM\(quantity\), 0\) FROM "reservations"`).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(0)))
		s.Mock.ExpectRollback()

		jbody := map[string]any{
			"ticket_type_id": "tt-ga",
			"qty":            1,
			"session_id":     "sess-abc",
		}
		sbody, _ := json.Marshal(&jbody)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/reservations", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 409, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), int64(0), gjson.GetBytes(rbytes, "remaining").Int())
	})

	s.Run("Should return 404 for an unknown ticket type", func() {
		s.Mock.ExpectBegin()
		s.Mock.ExpectQuery(`SELECT \* FROM "reservations"`).
			WillReturnRows(sqlmock.NewRows(reservationColumns()))
		s.Mock.ExpectQuery(`SELECT \* FROM "ticket_types" (.+) FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows(ticketTypeColumns()))
		s.Mock.ExpectRollback()

		jbody := map[string]any{
			"ticket_type_id": "tt-missing",
			"qty":            1,
			"session_id":     "sess-abc",
		}
		sbody, _ := json.Marshal(&jbody)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/reservations", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 404, w.Code)
	})
}

func (s *TestSuite) TestReservationLookup() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	checkoutHandlers(apiv1)

	w := httptest.NewRecorder()
	s.Mock.ExpectQuery(`SELECT \* FROM "reservations"`).
		WillReturnRows(sqlmock.NewRows(reservationColumns()))

	req, _ := http.NewRequest("GET", "/api/v1/reservations/99", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 404, w.Code)
	rbytes, err := io.ReadAll(w.Body)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), "reservation not found", gjson.GetBytes(rbytes, "error").String())
}

func (s *TestSuite) TestAdminPoolRoutes() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	adminHandlers(apiv1)

	s.Run("Should report pool statistics", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/admin/pool/stats", nil)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 200, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), "IDLE", gjson.GetBytes(rbytes, "data.state").String())
		assert.Equal(s.T(), int64(10), gjson.GetBytes(rbytes, "data.max_connections").Int())
	})

	s.Run("Should report a healthy pool", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/admin/pool/health", nil)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 200, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), "healthy", gjson.GetBytes(rbytes, "data.status").String())
	})
}

func (s *TestSuite) TestCatalogRoutes() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	catalogHandlers(apiv1)

	s.Run("Should return list of events", func() {
		s.Mock.ExpectQuery(`SELECT \* FROM "events"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "location", "status"}).
				AddRow("evt-conf", "Annual Conference", "Berlin", "open"))
		s.Mock.ExpectQuery(`SELECT \* FROM "ticket_types"`).
			WillReturnRows(sqlmock.NewRows(ticketTypeColumns()).
				AddRow("tt-ga", "evt-conf", "General Admission", int64(2500), "available", int64(100), int64(10)))

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/events", nil)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 200, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), int64(1), gjson.GetBytes(rbytes, "count").Int())
		assert.Equal(s.T(), "evt-conf", gjson.GetBytes(rbytes, "data.0.id").String())
	})

	s.Run("Should return 404 for an unknown event", func() {
		s.Mock.ExpectQuery(`SELECT \* FROM "events"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "location", "status"}))

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/events/evt-missing", nil)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 404, w.Code)
	})
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
