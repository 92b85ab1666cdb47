// Package openapi содержит OpenAPI-контракт Document Module API
// и обработчик его публикации.
package openapi

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specYAML []byte

var (
	loadOnce sync.Once
	loaded   *openapi3.T
	loadErr  error
)

// Load разбирает и валидирует встроенный OpenAPI-контракт.
// Результат кэшируется после первого вызова.
func Load() (*openapi3.T, error) {
	loadOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(specYAML)
		if err != nil {
			loadErr = fmt.Errorf("ошибка разбора OpenAPI-контракта: %w", err)
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			loadErr = fmt.Errorf("OpenAPI-контракт не прошёл валидацию: %w", err)
			return
		}
		loaded = doc
	})
	return loaded, loadErr
}

// Handler возвращает HTTP-обработчик, отдающий контракт в формате JSON.
// Контракт загружается один раз при создании обработчика.
func Handler() (http.HandlerFunc, error) {
	doc, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации OpenAPI-контракта: %w", err)
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}, nil
}
