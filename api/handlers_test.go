package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/auth"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// client wraps a test server with a cookie jar, so the session cookie
// set by /login travels with subsequent calls like a browser would.
type client struct {
	t      *testing.T
	server *httptest.Server
	http   *http.Client
}

func newTestClient(t *testing.T) *client {
	t.Helper()

	mem := store.NewMemory()
	service := leave.NewService(mem)
	gateway := auth.NewService(mem, "test-secret")
	router := api.NewRouter(api.NewHandler(service, gateway))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &client{
		t:      t,
		server: server,
		http:   &http.Client{Jar: jar},
	}
}

func (c *client) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.server.URL+path, reader)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, payload
}

func (c *client) register(nome, email, password, ruolo string) {
	c.t.Helper()
	resp, _ := c.do(http.MethodPost, "/register", map[string]string{
		"nome": nome, "cognome": "Test", "email": email,
		"password": password, "ruolo": ruolo,
	})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)
}

func (c *client) login(email, password string) {
	c.t.Helper()
	resp, _ := c.do(http.MethodPost, "/login", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
}

func (c *client) createCategory(id int, description string) {
	c.t.Helper()
	resp, _ := c.do(http.MethodPost, "/categorie", map[string]any{
		"categoriaId": id, "descrizione": description,
	})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)
}

func decode[T any](t *testing.T, payload []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(payload, &out))
	return out
}

type listBody struct {
	Data []map[string]any `json:"data"`
}

// =============================================================================
// AUTH FLOW TESTS
// =============================================================================

func TestAuthFlow_RegisterLoginMeLogout(t *testing.T) {
	// GIVEN: A fresh server
	// WHEN: Registering, logging in, checking the session, logging out
	// THEN: /auth/me flips between authenticated and not

	c := newTestClient(t)

	c.register("Mario", "mario@example.com", "segreto1", "Dipendente")

	resp, payload := c.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	before := decode[map[string]any](t, payload)
	assert.Equal(t, false, before["authenticated"])

	c.login("mario@example.com", "segreto1")

	resp, payload = c.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	after := decode[map[string]any](t, payload)
	assert.Equal(t, true, after["authenticated"])
	user := after["user"].(map[string]any)
	assert.Equal(t, "mario@example.com", user["email"])
	assert.Equal(t, "Dipendente", user["ruolo"])

	resp, _ = c.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = c.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[map[string]any](t, payload)
	assert.Equal(t, false, out["authenticated"])
}

func TestLogin_WrongPassword_401(t *testing.T) {
	c := newTestClient(t)
	c.register("Mario", "mario@example.com", "segreto1", "Dipendente")

	resp, payload := c.do(http.MethodPost, "/login", map[string]string{
		"email": "mario@example.com", "password": "sbagliata",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	out := decode[map[string]any](t, payload)
	assert.NotEmpty(t, out["error"])
}

func TestRegister_InvalidPayload_400(t *testing.T) {
	c := newTestClient(t)

	resp, _ := c.do(http.MethodPost, "/register", map[string]string{
		"nome": "M", "cognome": "Rossi", "email": "mario@example.com",
		"password": "segreto1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// CATEGORY ENDPOINT TESTS
// =============================================================================

func TestCategories_CRUDAsManager(t *testing.T) {
	c := newTestClient(t)
	c.register("Anna", "anna@example.com", "segreto1", "Responsabile")
	c.login("anna@example.com", "segreto1")

	c.createCategory(1, "Ferie")

	resp, _ := c.do(http.MethodPut, "/categorie/1", map[string]string{
		"descrizione": "Ferie estive",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload := c.do(http.MethodGet, "/categorie", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[listBody](t, payload)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Ferie estive", list.Data[0]["Descrizione"])

	resp, _ = c.do(http.MethodDelete, "/categorie/1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCategories_EmployeeCannotManage(t *testing.T) {
	c := newTestClient(t)
	c.register("Mario", "mario@example.com", "segreto1", "Dipendente")
	c.login("mario@example.com", "segreto1")

	resp, _ := c.do(http.MethodPost, "/categorie", map[string]any{
		"categoriaId": 1, "descrizione": "Ferie",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCategories_Unauthenticated_401(t *testing.T) {
	c := newTestClient(t)

	resp, _ := c.do(http.MethodGet, "/categorie", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCategories_DuplicateID_409(t *testing.T) {
	c := newTestClient(t)
	c.register("Anna", "anna@example.com", "segreto1", "Responsabile")
	c.login("anna@example.com", "segreto1")
	c.createCategory(1, "Ferie")

	resp, _ := c.do(http.MethodPost, "/categorie", map[string]any{
		"categoriaId": 1, "descrizione": "Malattia",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// REQUEST LIFECYCLE TESTS
// =============================================================================

func TestRequestLifecycle_CreateEvaluateList(t *testing.T) {
	// GIVEN: A manager-created category and an employee session
	// WHEN: The employee submits a request and the manager approves it
	// THEN: The listed request carries the approval fields

	c := newTestClient(t)
	c.register("Anna", "anna@example.com", "segreto1", "Responsabile")
	c.register("Mario", "mario@example.com", "segreto1", "Dipendente")

	c.login("anna@example.com", "segreto1")
	c.createCategory(1, "Ferie")

	c.login("mario@example.com", "segreto1")
	resp, payload := c.do(http.MethodPost, "/permessi", map[string]any{
		"dataInizio": "2024-03-01", "dataFine": "2024-03-03",
		"categoriaId": 1, "motivazione": "vacanza",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]any](t, payload)
	assert.Equal(t, "In attesa", created["Stato"])
	id := int(created["RichiestaID"].(float64))

	c.login("anna@example.com", "segreto1")
	resp, payload = c.do(http.MethodPut, fmt.Sprintf("/permessi/%d/valuta", id), map[string]any{
		"stato": "Approvato",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	evaluated := decode[map[string]any](t, payload)
	assert.Equal(t, "Approvato", evaluated["Stato"])
	assert.NotNil(t, evaluated["UtenteValutazioneID"])
	assert.Equal(t, "Anna", evaluated["ValutatoreNome"])
	assert.NotEmpty(t, evaluated["DataValutazione"])

	resp, payload = c.do(http.MethodGet, "/permessi", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[listBody](t, payload)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Mario", list.Data[0]["RichiedenteNome"])
	assert.Equal(t, "Ferie", list.Data[0]["CategoriaDescrizione"])
}

func TestEvaluate_Twice_409(t *testing.T) {
	c := newTestClient(t)
	c.register("Anna", "anna@example.com", "segreto1", "Responsabile")
	c.register("Mario", "mario@example.com", "segreto1", "Dipendente")

	c.login("anna@example.com", "segreto1")
	c.createCategory(1, "Ferie")

	c.login("mario@example.com", "segreto1")
	_, payload := c.do(http.MethodPost, "/permessi", map[string]any{
		"dataInizio": "2024-03-01", "dataFine": "2024-03-03", "categoriaId": 1,
	})
	id := int(decode[map[string]any](t, payload)["RichiestaID"].(float64))

	c.login("anna@example.com", "segreto1")
	resp, _ := c.do(http.MethodPut, fmt.Sprintf("/permessi/%d/valuta", id), map[string]any{
		"stato": "Rifiutato",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = c.do(http.MethodPut, fmt.Sprintf("/permessi/%d/valuta", id), map[string]any{
		"stato": "Approvato",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateRequest_BadDateFormat_400(t *testing.T) {
	c := newTestClient(t)
	c.register("Anna", "anna@example.com", "segreto1", "Responsabile")
	c.login("anna@example.com", "segreto1")
	c.createCategory(1, "Ferie")

	resp, _ := c.do(http.MethodPost, "/permessi", map[string]any{
		"dataInizio": "01/03/2024", "dataFine": "2024-03-03", "categoriaId": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateRequest_EndBeforeStart_400(t *testing.T) {
	c := newTestClient(t)
	c.register("Anna", "anna@example.com", "segreto1", "Responsabile")
	c.login("anna@example.com", "segreto1")
	c.createCategory(1, "Ferie")

	resp, _ := c.do(http.MethodPost, "/permessi", map[string]any{
		"dataInizio": "2024-03-05", "dataFine": "2024-03-01", "categoriaId": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListRequests_EmployeeScopedToOwn(t *testing.T) {
	// GIVEN: Requests from two employees
	// WHEN: One lists with a utenteId filter pointing at the other
	// THEN: Only their own requests come back

	c := newTestClient(t)
	c.register("Anna", "anna@example.com", "segreto1", "Responsabile")
	c.register("Mario", "mario@example.com", "segreto1", "Dipendente")
	c.register("Luca", "luca@example.com", "segreto1", "Dipendente")

	c.login("anna@example.com", "segreto1")
	c.createCategory(1, "Ferie")

	for _, email := range []string{"mario@example.com", "luca@example.com"} {
		c.login(email, "segreto1")
		resp, _ := c.do(http.MethodPost, "/permessi", map[string]any{
			"dataInizio": "2024-03-01", "dataFine": "2024-03-02", "categoriaId": 1,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	c.login("mario@example.com", "segreto1")
	resp, payload := c.do(http.MethodGet, "/permessi?utenteId=3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[listBody](t, payload)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Mario", list.Data[0]["RichiedenteNome"])
}

func TestDeleteRequest_EmployeeOwnPending(t *testing.T) {
	c := newTestClient(t)
	c.register("Anna", "anna@example.com", "segreto1", "Responsabile")
	c.register("Mario", "mario@example.com", "segreto1", "Dipendente")

	c.login("anna@example.com", "segreto1")
	c.createCategory(1, "Ferie")

	c.login("mario@example.com", "segreto1")
	_, payload := c.do(http.MethodPost, "/permessi", map[string]any{
		"dataInizio": "2024-03-01", "dataFine": "2024-03-02", "categoriaId": 1,
	})
	id := int(decode[map[string]any](t, payload)["RichiestaID"].(float64))

	resp, _ := c.do(http.MethodDelete, fmt.Sprintf("/permessi/%d", id), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = c.do(http.MethodGet, "/permessi", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[listBody](t, payload).Data)
}

func TestUpdateRequest_PatchDates(t *testing.T) {
	c := newTestClient(t)
	c.register("Anna", "anna@example.com", "segreto1", "Responsabile")
	c.register("Mario", "mario@example.com", "segreto1", "Dipendente")

	c.login("anna@example.com", "segreto1")
	c.createCategory(1, "Ferie")

	c.login("mario@example.com", "segreto1")
	_, payload := c.do(http.MethodPost, "/permessi", map[string]any{
		"dataInizio": "2024-03-01", "dataFine": "2024-03-02", "categoriaId": 1,
	})
	id := int(decode[map[string]any](t, payload)["RichiestaID"].(float64))

	resp, payload := c.do(http.MethodPut, fmt.Sprintf("/permessi/%d", id), map[string]any{
		"dataFine": "2024-03-05", "motivazione": "esteso",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[map[string]any](t, payload)
	assert.Equal(t, "2024-03-05", updated["DataFine"])
	assert.Equal(t, "esteso", updated["Motivazione"])
	assert.Equal(t, "In attesa", updated["Stato"])
}

// =============================================================================
// STATISTICS ENDPOINT TESTS
// =============================================================================

func TestStatistics_ManagerView(t *testing.T) {
	// GIVEN: An approved 3-day request
	// WHEN: The manager queries /permessi/statistiche
	// THEN: One row with count 1 and both day totals at 3

	c := newTestClient(t)
	c.register("Anna", "anna@example.com", "segreto1", "Responsabile")
	c.register("Mario", "mario@example.com", "segreto1", "Dipendente")

	c.login("anna@example.com", "segreto1")
	c.createCategory(1, "Ferie")

	c.login("mario@example.com", "segreto1")
	_, payload := c.do(http.MethodPost, "/permessi", map[string]any{
		"dataInizio": "2024-03-01", "dataFine": "2024-03-03", "categoriaId": 1,
	})
	id := int(decode[map[string]any](t, payload)["RichiestaID"].(float64))

	c.login("anna@example.com", "segreto1")
	resp, _ := c.do(http.MethodPut, fmt.Sprintf("/permessi/%d/valuta", id), map[string]any{
		"stato": "Approvato",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = c.do(http.MethodGet, "/permessi/statistiche", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[listBody](t, payload)
	require.Len(t, list.Data, 1)
	assert.Equal(t, float64(1), list.Data[0]["NumeroRichieste"])
	assert.Equal(t, float64(3), list.Data[0]["GiorniTotaliRichiesti"])
	assert.Equal(t, float64(3), list.Data[0]["GiorniTotaliApprovati"])
}

func TestStatistics_EmployeeForbidden(t *testing.T) {
	c := newTestClient(t)
	c.register("Mario", "mario@example.com", "segreto1", "Dipendente")
	c.login("mario@example.com", "segreto1")

	resp, _ := c.do(http.MethodGet, "/permessi/statistiche", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStatistics_InvalidMonth_400(t *testing.T) {
	c := newTestClient(t)
	c.register("Anna", "anna@example.com", "segreto1", "Responsabile")
	c.login("anna@example.com", "segreto1")

	resp, _ := c.do(http.MethodGet, "/permessi/statistiche?mese=13", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatisticsExport_ReturnsWorkbook(t *testing.T) {
	c := newTestClient(t)
	c.register("Anna", "anna@example.com", "segreto1", "Responsabile")
	c.login("anna@example.com", "segreto1")

	resp, payload := c.do(http.MethodGet, "/permessi/statistiche/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "statistiche-permessi-")
	// XLSX is a zip container: PK magic bytes.
	require.GreaterOrEqual(t, len(payload), 2)
	assert.Equal(t, []byte{'P', 'K'}, payload[:2])
}
