// Пакет mailer — email-уведомления о событиях жизненного цикла документов.
// Письма пользователю — на испанском (язык учреждения), отправка через
// SMTP (wneessen/go-mail). Пустой DM_SMTP_HOST отключает отправку (Noop).
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/arturkryukov/docstore/document-module/internal/config"
	"github.com/arturkryukov/docstore/document-module/internal/domain/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

// templateData — данные для подстановки в шаблоны писем.
type templateData struct {
	TypeLabel string
	Filename  string
	Comment   string
	OwnerID   string
}

// SMTPMailer отправляет уведомления через SMTP.
type SMTPMailer struct {
	cfg       *config.Config
	logger    *slog.Logger
	templates *template.Template
}

// New создаёт SMTPMailer с разобранными шаблонами писем.
func New(cfg *config.Config, logger *slog.Logger) (*SMTPMailer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора шаблонов писем: %w", err)
	}
	return &SMTPMailer{cfg: cfg, logger: logger, templates: tmpl}, nil
}

// DocumentApproved уведомляет владельца об одобрении документа.
func (m *SMTPMailer) DocumentApproved(ctx context.Context, doc *model.Document) error {
	if doc.OwnerEmail == "" {
		m.logger.Warn("Пропуск уведомления об одобрении: email владельца неизвестен",
			slog.String("document_id", doc.ID))
		return nil
	}

	comment := ""
	if doc.AdminComment != nil {
		comment = *doc.AdminComment
	}
	body, err := m.render("documento_aprobado.html", templateData{
		TypeLabel: model.DocumentTypeLabel(doc.DocumentType),
		Filename:  doc.OriginalFilename,
		Comment:   comment,
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Documento aprobado: %s", model.DocumentTypeLabel(doc.DocumentType))
	return m.send(ctx, []string{doc.OwnerEmail}, subject, body)
}

// DocumentRejected уведомляет владельца об отклонении документа.
// Вызывается до удаления записи и файла.
func (m *SMTPMailer) DocumentRejected(ctx context.Context, doc *model.Document, reason string) error {
	if doc.OwnerEmail == "" {
		m.logger.Warn("Пропуск уведомления об отклонении: email владельца неизвестен",
			slog.String("document_id", doc.ID))
		return nil
	}

	body, err := m.render("documento_rechazado.html", templateData{
		TypeLabel: model.DocumentTypeLabel(doc.DocumentType),
		Filename:  doc.OriginalFilename,
		Comment:   reason,
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Documento rechazado: %s", model.DocumentTypeLabel(doc.DocumentType))
	return m.send(ctx, []string{doc.OwnerEmail}, subject, body)
}

// NewSubmission уведомляет проверяющих о новом документе на рассмотрении.
// Адреса берутся из DM_SMTP_REVIEWERS; пустой список — уведомление не отправляется.
func (m *SMTPMailer) NewSubmission(ctx context.Context, doc *model.Document) error {
	if len(m.cfg.ReviewerEmails) == 0 {
		return nil
	}

	body, err := m.render("nuevo_pendiente.html", templateData{
		TypeLabel: model.DocumentTypeLabel(doc.DocumentType),
		Filename:  doc.OriginalFilename,
		OwnerID:   doc.OwnerID,
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Nuevo documento pendiente: %s", model.DocumentTypeLabel(doc.DocumentType))
	return m.send(ctx, m.cfg.ReviewerEmails, subject, body)
}

// render выполняет шаблон name с данными data.
func (m *SMTPMailer) render(name string, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("ошибка рендеринга шаблона %s: %w", name, err)
	}
	return buf.String(), nil
}

// send формирует и отправляет письмо через SMTP.
func (m *SMTPMailer) send(ctx context.Context, to []string, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("ошибка установки отправителя: %w", err)
	}
	if err := msg.To(to...); err != nil {
		return fmt.Errorf("ошибка установки получателей: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	opts := []mail.Option{
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.SMTPUser),
			mail.WithPassword(m.cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(m.cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("ошибка создания SMTP-клиента: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("ошибка отправки письма: %w", err)
	}

	m.logger.Debug("Письмо отправлено",
		slog.String("subject", subject),
		slog.Int("recipients", len(to)),
	)
	return nil
}

// Noop — заглушка уведомлений при отключённом SMTP.
type Noop struct{}

func (Noop) DocumentApproved(context.Context, *model.Document) error { return nil }

func (Noop) DocumentRejected(context.Context, *model.Document, string) error { return nil }

func (Noop) NewSubmission(context.Context, *model.Document) error { return nil }
