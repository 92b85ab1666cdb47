// Пакет model — доменные модели Document Module.
// Document — запись поданного документа сотрудника в таблице documents.
package model

import "time"

// DocumentStatus — статус документа в жизненном цикле.
type DocumentStatus string

const (
	// StatusPending — документ подан, ожидает проверки администратором
	StatusPending DocumentStatus = "pending"
	// StatusApproved — документ одобрен администратором
	StatusApproved DocumentStatus = "approved"
	// StatusRejected — документ отклонён. Терминальный статус:
	// запись и файл удаляются сразу, в БД rejected не хранится.
	StatusRejected DocumentStatus = "rejected"
)

// Document — одна поданная версия документа.
// Версионирование: новая версия — всегда новая запись,
// существующие записи никогда не меняют owner_id и document_type.
type Document struct {
	// ID — UUID документа, присваивается при подаче
	ID string
	// OwnerID — UUID сотрудника-владельца (из JWT sub)
	OwnerID string
	// OwnerEmail — email владельца на момент подачи (из JWT email).
	// Используется для уведомлений о решении по документу.
	OwnerEmail string
	// DocumentType — код типа документа (см. DocumentTypes)
	DocumentType string
	// OriginalFilename — имя файла при загрузке
	OriginalFilename string
	// StoragePath — путь файла в хранилище (относительно DM_DATA_DIR)
	StoragePath string
	// Status — текущий статус (pending, approved)
	Status DocumentStatus
	// IsCurrent — актуальная версия. Инвариант: не более одной
	// актуальной записи на пару (owner_id, document_type).
	IsCurrent bool
	// ExpiresAt — срок удаления вытесненной версии.
	// Устанавливается только при вытеснении (is_current=true → false).
	ExpiresAt *time.Time
	// ReviewedAt — время проверки администратором
	ReviewedAt *time.Time
	// ReviewedBy — идентификатор проверившего администратора
	ReviewedBy *string
	// AdminComment — комментарий администратора при проверке
	AdminComment *string
	// CreatedAt — время подачи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления записи
	UpdatedAt time.Time
}

// IsExpired проверяет, истёк ли срок хранения вытесненной версии.
// Актуальные и pending записи никогда не считаются истёкшими.
func (d *Document) IsExpired(now time.Time) bool {
	if d.IsCurrent || d.ExpiresAt == nil {
		return false
	}
	return now.After(*d.ExpiresAt)
}

// IsPending проверяет, что документ ожидает проверки.
func (d *Document) IsPending() bool {
	return d.Status == StatusPending
}

// DocumentTypes — фиксированный набор типов кадровых документов.
// Ключ — код типа, значение — человекочитаемое название.
var DocumentTypes = map[string]string{
	"acta_nacimiento": "Acta de Nacimiento",
	"cartilla":        "Cartilla Militar",
	"comp_dom":        "Comprobante de Domicilio",
	"curp":            "CURP",
	"csf":             "Constancia de Situación Fiscal",
	"ine":             "INE",
	"cdp":             "Constancia de Declaración Patrimonial",
	"cni":             "Constancia de No Inhabilitación",
	"cv":              "Curriculum Vitae",
	"ugs":             "Último Grado de Estudios",
}

// IsValidDocumentType проверяет, что код типа входит в допустимый набор.
func IsValidDocumentType(docType string) bool {
	_, ok := DocumentTypes[docType]
	return ok
}

// DocumentTypeLabel возвращает человекочитаемое название типа.
// Для неизвестного кода возвращает сам код.
func DocumentTypeLabel(docType string) string {
	if label, ok := DocumentTypes[docType]; ok {
		return label
	}
	return docType
}
