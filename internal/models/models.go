package models

import "time"

// Testimonial is a quote attributed to a person, listed newest first.
type Testimonial struct {
	ID        string    `json:"id"`
	Quote     string    `json:"quote"`
	Author    string    `json:"author"`
	Role      string    `json:"role,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Initiative is an ordered entry of the initiatives section.
type Initiative struct {
	ID        string    `json:"id"`
	Titulo    string    `json:"titulo"`
	URL       *string   `json:"url"`
	Ordem     int       `json:"ordem"`
	Conteudo  string    `json:"conteudo"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Post is a highlighted article.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	PostURL   string    `json:"postUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReportChannel is an ordered statistic shown next to the report channels,
// e.g. quantificador "180" with valor "Central de Atendimento à Mulher".
type ReportChannel struct {
	ID            string    `json:"id"`
	Quantificador string    `json:"quantificador"`
	Valor         string    `json:"valor"`
	Ordem         int       `json:"ordem"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NaoSeCaleItem is an entry of the "não se cale" section.
type NaoSeCaleItem struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Conteudo  string    `json:"conteudo"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PorqueAderimosItem is an entry of the "porque aderimos" section.
type PorqueAderimosItem struct {
	ID        string    `json:"id"`
	Titulo    string    `json:"titulo"`
	Conteudo  string    `json:"conteudo"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Banner references a public image held by the blob store.
type Banner struct {
	ID          string    `json:"id"`
	StoragePath string    `json:"storagePath"`
	Alt         string    `json:"alt"`
	Link        string    `json:"link"`
	ContentType string    `json:"contentType"`
	URL         string    `json:"url"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ReportStatus tracks the triage state of a report.
type ReportStatus string

const (
	ReportReceived ReportStatus = "received"
	ReportInReview ReportStatus = "in_review"
	ReportResolved ReportStatus = "resolved"
	ReportArchived ReportStatus = "archived"
)

// Valid reports whether the status is one of the known states.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportReceived, ReportInReview, ReportResolved, ReportArchived:
		return true
	default:
		return false
	}
}

// Attachment is a file uploaded alongside a report.
type Attachment struct {
	URL         string `json:"url"`
	StoragePath string `json:"storagePath"`
	ContentType string `json:"contentType,omitempty"`
}

// Report is a complaint submitted through the public site.
type Report struct {
	ID          string       `json:"id"`
	Protocol    string       `json:"protocol"`
	Descricao   string       `json:"descricao"`
	Contato     string       `json:"contato,omitempty"`
	Anonimo     bool         `json:"anonimo"`
	Attachments []Attachment `json:"attachments"`
	Status      ReportStatus `json:"status"`
	Channel     string       `json:"channel"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// LegacyDocument is an untyped document from a read-only collection.
type LegacyDocument map[string]any
