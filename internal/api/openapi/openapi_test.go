package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoad(t *testing.T) {
	doc, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if doc.Info == nil || doc.Info.Title != "Document Module API" {
		t.Errorf("Неожиданный title контракта: %+v", doc.Info)
	}

	// Все операции API должны присутствовать в контракте
	paths := []string{
		"/documents",
		"/documents/pending",
		"/documents/current",
		"/documents/history/{type}",
		"/documents/{id}",
		"/documents/{id}/file",
		"/documents/{id}/approve",
		"/documents/{id}/reject",
		"/maintenance/sweep",
	}
	for _, p := range paths {
		if doc.Paths.Find(p) == nil {
			t.Errorf("Путь %s отсутствует в контракте", p)
		}
	}
}

func TestHandler(t *testing.T) {
	handler, err := Handler()
	if err != nil {
		t.Fatalf("Handler() вернул ошибку: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/openapi.json", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Ожидался статус 200, получен %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Ожидался Content-Type application/json, получен %s", ct)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Ответ не является валидным JSON: %v", err)
	}
	if body["openapi"] != "3.0.3" {
		t.Errorf("Ожидалась версия openapi 3.0.3, получена %v", body["openapi"])
	}
}
