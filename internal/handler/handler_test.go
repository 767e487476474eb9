package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/fleet-ops-api/internal/dto"
	"github.com/noah-isme/fleet-ops-api/internal/middleware"
	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository/memory"
	"github.com/noah-isme/fleet-ops-api/internal/service"
	appErrors "github.com/noah-isme/fleet-ops-api/pkg/errors"
)

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
	Meta  map[string]any   `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func do(r http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	return do(r, method, path, bytes.NewBufferString(body), "application/json")
}

type fakeIncidentSrv struct {
	created    []models.Incident
	createErr  error
	lastCreate service.CreateIncidentRequest
	lastQuery  service.ListIncidentsQuery
	lastStatus service.UpdateIncidentStatusRequest
	deleteErr  error
}

func (f *fakeIncidentSrv) Create(_ context.Context, req service.CreateIncidentRequest) ([]models.Incident, error) {
	f.lastCreate = req
	return f.created, f.createErr
}

func (f *fakeIncidentSrv) Get(_ context.Context, id string) (*models.Incident, error) {
	if id == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "incident not found")
	}
	return &models.Incident{ID: id}, nil
}

func (f *fakeIncidentSrv) List(_ context.Context, query service.ListIncidentsQuery) ([]models.Incident, error) {
	f.lastQuery = query
	return []models.Incident{{ID: "a"}, {ID: "b"}}, nil
}

func (f *fakeIncidentSrv) UpdateStatus(_ context.Context, id string, req service.UpdateIncidentStatusRequest) (*models.Incident, error) {
	f.lastStatus = req
	return &models.Incident{ID: id, Status: req.Status}, nil
}

func (f *fakeIncidentSrv) Delete(context.Context, string) error { return f.deleteErr }

func TestIncidentHandlerCreate(t *testing.T) {
	ch := models.ChannelFront
	srv := &fakeIncidentSrv{created: []models.Incident{{ID: "i1", CameraChannel: &ch}}}
	h := NewIncidentHandler(srv)
	r := newEngine()
	r.POST("/incidents", func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{Username: "tecnico"})
		c.Next()
	}, h.Create)

	rec := doJSON(r, http.MethodPost, "/incidents", `{"busId":"b1","equipmentType":"camera","incidentType":"faulty","cameraChannels":["ch1","ch3"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []models.CameraChannel{"ch1", "ch3"}, srv.lastCreate.CameraChannels)
	assert.Equal(t, "tecnico", srv.lastCreate.ReportedBy)

	var incidents []models.Incident
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &incidents))
	require.Len(t, incidents, 1)
	assert.Equal(t, "i1", incidents[0].ID)

	rec = doJSON(r, http.MethodPost, "/incidents", `{"busId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, rec).Error.Code)
}

func TestIncidentHandlerMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{appErrors.Clone(appErrors.ErrLockUnavailable, ""), http.StatusConflict, "LOCK_UNAVAILABLE"},
		{appErrors.Clone(appErrors.ErrNotFound, "bus not found"), http.StatusNotFound, "NOT_FOUND"},
		{appErrors.Clone(appErrors.ErrValidation, "bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tc := range cases {
		h := NewIncidentHandler(&fakeIncidentSrv{createErr: tc.err})
		r := newEngine()
		r.POST("/incidents", h.Create)
		rec := doJSON(r, http.MethodPost, "/incidents", `{"busId":"b1","equipmentType":"camera","incidentType":"faulty"}`)
		assert.Equal(t, tc.status, rec.Code)
		assert.Equal(t, tc.code, decode(t, rec).Error.Code)
	}
}

func TestIncidentHandlerListBindsQuery(t *testing.T) {
	srv := &fakeIncidentSrv{}
	h := NewIncidentHandler(srv)
	r := newEngine()
	r.GET("/incidents", h.List)

	rec := do(r, http.MethodGet, "/incidents?status=pending&equipmentType=camera&busId=b1&limit=20", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ListIncidentsQuery{Status: "pending", EquipmentType: "camera", BusID: "b1", Limit: 20}, srv.lastQuery)

	rec = do(r, http.MethodGet, "/incidents?limit=many", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIncidentHandlerStatusGetDelete(t *testing.T) {
	srv := &fakeIncidentSrv{}
	h := NewIncidentHandler(srv)
	r := newEngine()
	r.GET("/incidents/:id", h.Get)
	r.PATCH("/incidents/:id/status", h.UpdateStatus)
	r.DELETE("/incidents/:id", h.Delete)

	rec := doJSON(r, http.MethodPatch, "/incidents/i1/status", `{"status":"resolved","resolutionNotes":"ok"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.IncidentStatusResolved, srv.lastStatus.Status)
	require.NotNil(t, srv.lastStatus.ResolutionNotes)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/incidents/missing", nil, "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/incidents/i1", nil, "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/incidents/i1", nil, "").Code)

	srv.deleteErr = appErrors.Clone(appErrors.ErrNotFound, "incident not found")
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/incidents/i1", nil, "").Code)
}

type fakeReportSrv struct {
	lastDate   time.Time
	lastExport service.ExportRequest
}

func (f *fakeReportSrv) Dashboard(context.Context) (*dto.DashboardStats, error) {
	return &dto.DashboardStats{TotalBuses: 3, IncidentsByType: map[string]int{"camera": 2}}, nil
}

func (f *fakeReportSrv) Weekly(_ context.Context, date time.Time) (*dto.WeeklyReport, error) {
	f.lastDate = date
	return &dto.WeeklyReport{TotalIncidents: 4}, nil
}

func (f *fakeReportSrv) Monthly(_ context.Context, date time.Time) (*dto.MonthlyReport, error) {
	f.lastDate = date
	return &dto.MonthlyReport{Month: "mayo", Year: 2024}, nil
}

func (f *fakeReportSrv) ExportWeekly(_ context.Context, req service.ExportRequest) (*dto.ExportFile, error) {
	f.lastExport = req
	if req.Format != service.FormatCSV && req.Format != service.FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid export request")
	}
	return &dto.ExportFile{FileName: "weekly-report-2024-05-06.csv", ContentType: "text/csv", Content: []byte("section,key,value\n")}, nil
}

func (f *fakeReportSrv) ExportMonthly(_ context.Context, req service.ExportRequest) (*dto.ExportFile, error) {
	f.lastExport = req
	return &dto.ExportFile{FileName: "monthly-report-2024-05.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.3")}, nil
}

func newReportRouter(srv *fakeReportSrv, loc *time.Location) (*gin.Engine, *ReportHandler) {
	h := NewReportHandler(srv, loc)
	r := newEngine()
	r.GET("/dashboard", h.Dashboard)
	r.GET("/reports/weekly", h.Weekly)
	r.GET("/reports/monthly", h.Monthly)
	r.GET("/reports/weekly/export", h.ExportWeekly)
	r.GET("/reports/monthly/export", h.ExportMonthly)
	return r, h
}

func TestReportHandlerParsesDateInReportLocation(t *testing.T) {
	loc := time.FixedZone("CLT", -4*3600)
	srv := &fakeReportSrv{}
	r, _ := newReportRouter(srv, loc)

	rec := do(r, http.MethodGet, "/reports/weekly?date=2024-05-12", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 5, 12, 0, 0, 0, 0, loc), srv.lastDate)

	rec = do(r, http.MethodGet, "/reports/monthly?date=12-05-2024", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportHandlerDefaultsToToday(t *testing.T) {
	srv := &fakeReportSrv{}
	r, h := newReportRouter(srv, time.UTC)
	fixed := time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	rec := do(r, http.MethodGet, "/reports/monthly", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fixed, srv.lastDate)

	var report dto.MonthlyReport
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &report))
	assert.Equal(t, "mayo", report.Month)
}

func TestReportHandlerDashboard(t *testing.T) {
	r, _ := newReportRouter(&fakeReportSrv{}, time.UTC)
	rec := do(r, http.MethodGet, "/dashboard", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats dto.DashboardStats
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &stats))
	assert.Equal(t, 3, stats.TotalBuses)
	assert.Equal(t, 2, stats.IncidentsByType["camera"])
}

func TestReportHandlerExports(t *testing.T) {
	srv := &fakeReportSrv{}
	r, _ := newReportRouter(srv, time.UTC)

	rec := do(r, http.MethodGet, "/reports/weekly/export?date=2024-05-08", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.FormatCSV, srv.lastExport.Format)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="weekly-report-2024-05-06.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "section,key,value\n", rec.Body.String())

	rec = do(r, http.MethodGet, "/reports/monthly/export?format=pdf", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.FormatPDF, srv.lastExport.Format)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	rec = do(r, http.MethodGet, "/reports/weekly/export?format=docx", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func newBusRouter(t *testing.T) (*gin.Engine, *service.BusService) {
	t.Helper()
	store := memory.New()
	buses := service.NewBusService(store, nil, nil)
	drivers := service.NewDriverService(store, nil, nil)
	docs := service.NewDocumentService(store, nil, nil)
	expiry := service.NewExpiryService(store, nil, nil)

	bh := NewBusHandler(buses)
	dh := NewDriverHandler(drivers)
	doc := NewDocumentHandler(docs, expiry)

	r := newEngine()
	r.GET("/buses", bh.List)
	r.POST("/buses", bh.Create)
	r.POST("/buses/import", bh.Import)
	r.GET("/buses/:id", bh.Get)
	r.PUT("/buses/:id", bh.Update)
	r.DELETE("/buses/:id", bh.Delete)
	r.GET("/buses/:id/documents", doc.ListByBus)
	r.GET("/buses/:id/drivers", dh.ListByBus)
	r.POST("/buses/:id/drivers", dh.Assign)
	r.DELETE("/buses/:id/drivers/:driverId", dh.Unassign)
	r.GET("/drivers", dh.List)
	r.POST("/drivers", dh.Create)
	r.GET("/drivers/:id", dh.Get)
	r.DELETE("/drivers/:id", dh.Delete)
	r.POST("/documents", doc.Register)
	r.DELETE("/documents/:id", doc.Delete)
	r.GET("/documents/expiring", doc.Expiring)
	r.GET("/equipment/cameras", bh.CameraStatus)
	return r, buses
}

func createBus(t *testing.T, r http.Handler, number string) models.Bus {
	t.Helper()
	rec := doJSON(r, http.MethodPost, "/buses", `{"busNumber":"`+number+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var bus models.Bus
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &bus))
	return bus
}

func TestBusHandlerLifecycle(t *testing.T) {
	r, _ := newBusRouter(t)
	bus := createBus(t, r, "101")

	rec := doJSON(r, http.MethodPost, "/buses", `{"busNumber":"101"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(r, http.MethodPut, "/buses/"+bus.ID, `{"busNumber":"102","plate":"KX-11"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/buses/"+bus.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Bus
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.Equal(t, "102", got.BusNumber)

	rec = do(r, http.MethodGet, "/equipment/cameras", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var board []dto.BusCameraStatus
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &board))
	require.Len(t, board, 1)
	assert.Len(t, board[0].Cameras, 4)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/buses/"+bus.ID, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/buses/"+bus.ID, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/buses/"+bus.ID, nil, "").Code)
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestBusHandlerImport(t *testing.T) {
	r, _ := newBusRouter(t)
	createBus(t, r, "300")

	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]interface{}{"Bus_Number", "Plate"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]interface{}{"300", "AA-01"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A3", &[]interface{}{"301", "AA-02"}))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	body, contentType := multipartUpload(t, "flota.xlsx", buf.Bytes())
	rec := do(r, http.MethodPost, "/buses/import", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result dto.BusImportResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))
	require.Len(t, result.Created, 1)
	assert.Equal(t, "301", result.Created[0].BusNumber)
	assert.Equal(t, []string{"300"}, result.Skipped)

	body, contentType = multipartUpload(t, "flota.csv", []byte("300,AA"))
	rec = do(r, http.MethodPost, "/buses/import", body, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/buses/import", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDriverAndDocumentHandlers(t *testing.T) {
	r, _ := newBusRouter(t)
	bus := createBus(t, r, "101")

	rec := doJSON(r, http.MethodPost, "/drivers", `{"fullName":"Ana Rojas"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var driver models.Driver
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &driver))

	rec = doJSON(r, http.MethodPost, "/buses/"+bus.ID+"/drivers", `{"driverId":"`+driver.ID+`","role":"titular"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(r, http.MethodPost, "/buses/"+bus.ID+"/drivers", `{"driverId":"`+driver.ID+`","role":"jefe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodGet, "/buses/"+bus.ID+"/drivers", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var assigned []models.BusDriverDetail
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &assigned))
	require.Len(t, assigned, 1)
	assert.Equal(t, "Ana Rojas", assigned[0].FullName)

	expires := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	rec = doJSON(r, http.MethodPost, "/documents", `{"busId":"`+bus.ID+`","driverId":"`+driver.ID+`","docType":"licencia_conducir","fileName":"licencia.pdf","expiresAt":"`+expires+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc models.BusDocument
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &doc))

	rec = do(r, http.MethodGet, "/documents/expiring", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.EqualValues(t, 1, env.Meta["count"])
	var expiring []models.ExpiringDocument
	require.NoError(t, json.Unmarshal(env.Data, &expiring))
	require.Len(t, expiring, 1)
	assert.Equal(t, "101", expiring[0].BusNumber)
	assert.Equal(t, 2, expiring[0].DaysLeft)

	rec = do(r, http.MethodGet, "/buses/"+bus.ID+"/documents", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/buses/"+bus.ID+"/drivers/"+driver.ID, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/buses/"+bus.ID+"/drivers/"+driver.ID, nil, "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/documents/"+doc.ID, nil, "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/drivers/"+driver.ID, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/drivers/"+driver.ID, nil, "").Code)
}

type fakeAuthSrv struct{}

func (fakeAuthSrv) Login(_ context.Context, req service.LoginRequest) (*dto.LoginResponse, error) {
	if req.Password != "secret" {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	return &dto.LoginResponse{AccessToken: "token", User: models.User{Username: req.Username}}, nil
}

func TestAuthHandler(t *testing.T) {
	h := NewAuthHandler(fakeAuthSrv{})
	r := newEngine()
	r.POST("/auth/login", h.Login)
	r.GET("/auth/me", func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Username: "admin", Role: models.RoleAdmin})
		c.Next()
	}, h.Me)
	r.GET("/anon/me", h.Me)

	rec := doJSON(r, http.MethodPost, "/auth/login", `{"username":"admin","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var login dto.LoginResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &login))
	assert.Equal(t, "token", login.AccessToken)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = doJSON(r, http.MethodPost, "/auth/login", `{"username":"admin","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, decode(t, rec).Error.Code)

	rec = do(r, http.MethodGet, "/auth/me", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"admin"`)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/anon/me", nil, "").Code)
}

func TestMetricsHandler(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.IncidentsCreated(models.EquipmentCamera, 2)

	healthy := NewMetricsHandler(metrics, func(context.Context) error { return nil })
	broken := NewMetricsHandler(nil, func(context.Context) error { return assert.AnError })

	r := newEngine()
	r.GET("/health", healthy.Health)
	r.GET("/ready", healthy.Ready)
	r.GET("/metrics", healthy.Prometheus)
	r.GET("/system/metrics", healthy.Snapshot)
	r.GET("/broken/ready", broken.Ready)
	r.GET("/broken/metrics", broken.Prometheus)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", nil, "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ready", nil, "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/broken/ready", nil, "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/broken/metrics", nil, "").Code)

	rec := do(r, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "incidents_created_total")

	rec = do(r, http.MethodGet, "/system/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap dto.SystemMetrics
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &snap))
	assert.EqualValues(t, 2, snap.IncidentsCreated)
}
