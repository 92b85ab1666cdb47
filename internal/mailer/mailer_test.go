package mailer

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/arturkryukov/docstore/document-module/internal/config"
	"github.com/arturkryukov/docstore/document-module/internal/domain/model"
)

func testMailer(t *testing.T) *SMTPMailer {
	t.Helper()
	cfg := &config.Config{
		SMTPHost: "smtp.example.com",
		SMTPFrom: "docstore@example.com",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New() ошибка: %v", err)
	}
	return m
}

// TestRenderApproved проверяет рендеринг письма об одобрении.
func TestRenderApproved(t *testing.T) {
	m := testMailer(t)

	comment := "documento legible"
	body, err := m.render("documento_aprobado.html", templateData{
		TypeLabel: model.DocumentTypeLabel("ine"),
		Filename:  "mi-ine.pdf",
		Comment:   comment,
	})
	if err != nil {
		t.Fatalf("render() ошибка: %v", err)
	}
	if !strings.Contains(body, "INE") {
		t.Error("письмо не содержит название типа документа")
	}
	if !strings.Contains(body, "mi-ine.pdf") {
		t.Error("письмо не содержит имя файла")
	}
	if !strings.Contains(body, comment) {
		t.Error("письмо не содержит комментарий проверяющего")
	}
}

// TestRenderRejected проверяет рендеринг письма об отклонении.
func TestRenderRejected(t *testing.T) {
	m := testMailer(t)

	body, err := m.render("documento_rechazado.html", templateData{
		TypeLabel: model.DocumentTypeLabel("curp"),
		Filename:  "curp.pdf",
		Comment:   "ilegible",
	})
	if err != nil {
		t.Fatalf("render() ошибка: %v", err)
	}
	if !strings.Contains(body, "rechazado") {
		t.Error("письмо не содержит текст об отклонении")
	}
	if !strings.Contains(body, "ilegible") {
		t.Error("письмо не содержит мотив отклонения")
	}
}

// TestRenderNewSubmission проверяет рендеринг уведомления проверяющим.
func TestRenderNewSubmission(t *testing.T) {
	m := testMailer(t)

	body, err := m.render("nuevo_pendiente.html", templateData{
		TypeLabel: model.DocumentTypeLabel("cv"),
		Filename:  "cv.pdf",
		OwnerID:   "f47ac10b-58cc-4372-a567-0e02b2c3d479",
	})
	if err != nil {
		t.Fatalf("render() ошибка: %v", err)
	}
	if !strings.Contains(body, "pendiente") {
		t.Error("письмо не содержит текст о новом документе")
	}
	if !strings.Contains(body, "f47ac10b") {
		t.Error("письмо не содержит идентификатор владельца")
	}
}

// TestRenderEscapesHTML проверяет экранирование пользовательских данных.
func TestRenderEscapesHTML(t *testing.T) {
	m := testMailer(t)

	body, err := m.render("documento_rechazado.html", templateData{
		TypeLabel: "INE",
		Filename:  "<script>alert(1)</script>.pdf",
		Comment:   "ok",
	})
	if err != nil {
		t.Fatalf("render() ошибка: %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Error("имя файла не экранировано")
	}
}
