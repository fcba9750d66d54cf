package collection

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

type fixedActive string

func (f fixedActive) Get(context.Context) (string, error) { return string(f), nil }

func pass(c *fiber.Ctx) error { return c.Next() }

func TestCollectionHandlers(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO collections`).
		WithArgs("Paris").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectQuery(`SELECT name FROM collections`).
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("Paris"))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM events`).WithArgs("Paris").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM collections`).WithArgs("Paris").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	app := fiber.New()
	RegisterRoutes(app.Group("/collections"), NewService(mock, nil), fixedActive("Paris"), pass)

	req := httptest.NewRequest(http.MethodPost, "/collections/", bytes.NewReader([]byte(`{"name":"Paris"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %v", err)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/collections/", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %v", err)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/collections/Paris", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var body struct {
		Deleted     string `json:"deleted"`
		ActiveStale bool   `json:"active_stale"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Deleted != "Paris" || !body.ActiveStale {
		t.Fatalf("expected stale active pointer to be reported, got %s", raw)
	}
}

func TestCollectionHandlersConflict(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO collections`).
		WithArgs("Paris").
		WillReturnError(duplicateKey())

	app := fiber.New()
	RegisterRoutes(app.Group("/collections"), NewService(mock, nil), nil, pass)

	req := httptest.NewRequest(http.MethodPost, "/collections/", bytes.NewReader([]byte(`{"name":"Paris"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict")
	}
}

func TestCollectionHandlersDeleteNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM events`).WithArgs("Nowhere").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM collections`).WithArgs("Nowhere").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	app := fiber.New()
	RegisterRoutes(app.Group("/collections"), NewService(mock, nil), fixedActive("Paris"), pass)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/collections/Nowhere", nil))
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found")
	}
}

func TestCollectionHandlersBadRequest(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/collections"), NewService(nil, nil), nil, pass)

	req := httptest.NewRequest(http.MethodPost, "/collections/", bytes.NewReader([]byte(`{`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request")
	}
}
