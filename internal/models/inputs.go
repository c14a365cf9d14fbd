package models

// Create inputs carry every field accepted on creation. Patch types use
// pointer fields so that an absent field is distinguishable from a zero value;
// only non-nil fields are written on update.

type TestimonialInput struct {
	Quote    string `json:"quote"`
	Author   string `json:"author"`
	Role     string `json:"role,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type TestimonialPatch struct {
	Quote    *string `json:"quote,omitempty"`
	Author   *string `json:"author,omitempty"`
	Role     *string `json:"role,omitempty"`
	ImageURL *string `json:"imageUrl,omitempty"`
}

type InitiativeInput struct {
	Titulo   string  `json:"titulo"`
	URL      *string `json:"url,omitempty"`
	Ordem    *int    `json:"ordem,omitempty"`
	Conteudo string  `json:"conteudo"`
}

type InitiativePatch struct {
	Titulo   *string `json:"titulo,omitempty"`
	URL      *string `json:"url,omitempty"`
	Ordem    *int    `json:"ordem,omitempty"`
	Conteudo *string `json:"conteudo,omitempty"`
}

type PostInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Author   string `json:"author,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	PostURL  string `json:"postUrl,omitempty"`
}

type PostPatch struct {
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	Author   *string `json:"author,omitempty"`
	ImageURL *string `json:"imageUrl,omitempty"`
	PostURL  *string `json:"postUrl,omitempty"`
}

type ReportChannelInput struct {
	Quantificador string `json:"quantificador"`
	Valor         string `json:"valor"`
	Ordem         *int   `json:"ordem,omitempty"`
}

type ReportChannelPatch struct {
	Quantificador *string `json:"quantificador,omitempty"`
	Valor         *string `json:"valor,omitempty"`
	Ordem         *int    `json:"ordem,omitempty"`
}

type NaoSeCaleInput struct {
	URL      string `json:"url"`
	Conteudo string `json:"conteudo"`
}

type NaoSeCalePatch struct {
	URL      *string `json:"url,omitempty"`
	Conteudo *string `json:"conteudo,omitempty"`
}

type PorqueAderimosInput struct {
	Titulo   string `json:"titulo"`
	Conteudo string `json:"conteudo"`
	URL      string `json:"url"`
}

type PorqueAderimosPatch struct {
	Titulo   *string `json:"titulo,omitempty"`
	Conteudo *string `json:"conteudo,omitempty"`
	URL      *string `json:"url,omitempty"`
}

// BannerInput confirms a blob previously written to the banners folder.
type BannerInput struct {
	StoragePath string `json:"storagePath"`
	Alt         string `json:"alt,omitempty"`
	Link        string `json:"link,omitempty"`
	IsActive    *bool  `json:"isActive,omitempty"`
}

type BannerPatch struct {
	Alt      *string `json:"alt,omitempty"`
	Link     *string `json:"link,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

type ReportInput struct {
	Descricao   string       `json:"descricao"`
	Contato     string       `json:"contato,omitempty"`
	Anonimo     bool         `json:"anonimo,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Channel     string       `json:"channel"`
}

type ReportPatch struct {
	Descricao   *string       `json:"descricao,omitempty"`
	Contato     *string       `json:"contato,omitempty"`
	Anonimo     *bool         `json:"anonimo,omitempty"`
	Attachments *[]Attachment `json:"attachments,omitempty"`
	Status      *ReportStatus `json:"status,omitempty"`
	Channel     *string       `json:"channel,omitempty"`
}

// SectionInput is a validated section body. Order is assigned when nil.
type SectionInput struct {
	Content  SectionContent
	Order    *int
	IsActive bool
}

// SectionPatch carries the content fields present in an update request along
// with the shared fields. Fields holds raw JSON-compatible values already
// validated against the section's kind.
type SectionPatch struct {
	Fields   map[string]any
	Order    *int
	IsActive *bool
}
