package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SectionKind discriminates the content held by a Section.
type SectionKind string

const (
	SectionHero                  SectionKind = "hero"
	SectionText                  SectionKind = "text"
	SectionImageGallery          SectionKind = "imageGallery"
	SectionGlobalContent         SectionKind = "globalContent"
	SectionReportingChannels     SectionKind = "reportingChannels"
	SectionPartnerInstitutions   SectionKind = "partnerInstitutions"
	SectionTestimonialsAndVideos SectionKind = "testimonialsAndVideos"
	SectionIniciativas           SectionKind = "sectionIniciativas"
)

// SectionKinds lists every known kind in a stable order.
var SectionKinds = []SectionKind{
	SectionHero,
	SectionText,
	SectionImageGallery,
	SectionGlobalContent,
	SectionReportingChannels,
	SectionPartnerInstitutions,
	SectionTestimonialsAndVideos,
	SectionIniciativas,
}

// ErrUnknownSectionKind is returned when a type discriminator matches none of
// the known kinds.
var ErrUnknownSectionKind = errors.New("unknown section type")

// ParseSectionKind resolves a raw discriminator value.
func ParseSectionKind(raw string) (SectionKind, bool) {
	for _, kind := range SectionKinds {
		if string(kind) == raw {
			return kind, true
		}
	}
	return "", false
}

// SectionVisitor handles every section kind. Adding a kind adds a method here,
// which every implementation must then provide.
type SectionVisitor interface {
	VisitHero(*HeroSection)
	VisitText(*TextSection)
	VisitImageGallery(*ImageGallerySection)
	VisitGlobalContent(*GlobalContentSection)
	VisitReportingChannels(*ReportingChannelsSection)
	VisitPartnerInstitutions(*PartnerInstitutionsSection)
	VisitTestimonialsAndVideos(*TestimonialsAndVideosSection)
	VisitIniciativas(*IniciativasSection)
}

// SectionContent is implemented only by the section kinds of this package.
type SectionContent interface {
	Kind() SectionKind
	Accept(SectionVisitor)
	sectionContent()
}

type HeroSection struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	ImageURL string `json:"imageUrl"`
	CTAText  string `json:"ctaText,omitempty"`
	CTALink  string `json:"ctaLink,omitempty"`
}

type TextSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type GalleryImage struct {
	URL     string `json:"url"`
	Alt     string `json:"alt"`
	Caption string `json:"caption,omitempty"`
}

type ImageGallerySection struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Images      []GalleryImage `json:"images"`
}

type NavLink struct {
	Text   string `json:"text"`
	URL    string `json:"url"`
	Target string `json:"target,omitempty"`
}

type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	IconURL  string `json:"iconUrl,omitempty"`
}

type GlobalContentSection struct {
	Name           string       `json:"name"`
	LogoURL        string       `json:"logoUrl,omitempty"`
	LogoAlt        string       `json:"logoAlt,omitempty"`
	NavLinks       []NavLink    `json:"navLinks,omitempty"`
	SocialLinks    []SocialLink `json:"socialLinks,omitempty"`
	MainText       string       `json:"mainText,omitempty"`
	ContactEmail   string       `json:"contactEmail,omitempty"`
	ContactPhone   string       `json:"contactPhone,omitempty"`
	ContactAddress string       `json:"contactAddress,omitempty"`
}

type ContactChannel struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Website     string `json:"website,omitempty"`
}

type PoliceStation struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone"`
}

type ReportingChannelsSection struct {
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Channels       []ContactChannel `json:"channels,omitempty"`
	PoliceStations []PoliceStation  `json:"policeStations,omitempty"`
}

type Partner struct {
	Name        string `json:"name"`
	LogoURL     string `json:"logoUrl"`
	WebsiteURL  string `json:"websiteUrl,omitempty"`
	Description string `json:"description,omitempty"`
}

type PartnerInstitutionsSection struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Partners    []Partner `json:"partners"`
}

// MediaItem is one entry of a testimonials-and-videos section. Type is one of
// "testimonial", "video" or "post" and decides which fields are populated.
type MediaItem struct {
	Type         string `json:"type"`
	Quote        string `json:"quote,omitempty"`
	Author       string `json:"author,omitempty"`
	Role         string `json:"role,omitempty"`
	Title        string `json:"title,omitempty"`
	Content      string `json:"content,omitempty"`
	VideoURL     string `json:"videoUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	PostURL      string `json:"postUrl,omitempty"`
}

type TestimonialsAndVideosSection struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Items       []MediaItem `json:"items"`
}

type IniciativaItem struct {
	Type     string `json:"type"`
	Titulo   string `json:"titulo"`
	URL      string `json:"url,omitempty"`
	Ordem    int    `json:"ordem"`
	Conteudo string `json:"conteudo"`
}

type IniciativasSection struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Items       []IniciativaItem `json:"items"`
}

func (*HeroSection) Kind() SectionKind                  { return SectionHero }
func (*TextSection) Kind() SectionKind                  { return SectionText }
func (*ImageGallerySection) Kind() SectionKind          { return SectionImageGallery }
func (*GlobalContentSection) Kind() SectionKind         { return SectionGlobalContent }
func (*ReportingChannelsSection) Kind() SectionKind     { return SectionReportingChannels }
func (*PartnerInstitutionsSection) Kind() SectionKind   { return SectionPartnerInstitutions }
func (*TestimonialsAndVideosSection) Kind() SectionKind { return SectionTestimonialsAndVideos }
func (*IniciativasSection) Kind() SectionKind           { return SectionIniciativas }

func (s *HeroSection) Accept(v SectionVisitor)                  { v.VisitHero(s) }
func (s *TextSection) Accept(v SectionVisitor)                  { v.VisitText(s) }
func (s *ImageGallerySection) Accept(v SectionVisitor)          { v.VisitImageGallery(s) }
func (s *GlobalContentSection) Accept(v SectionVisitor)         { v.VisitGlobalContent(s) }
func (s *ReportingChannelsSection) Accept(v SectionVisitor)     { v.VisitReportingChannels(s) }
func (s *PartnerInstitutionsSection) Accept(v SectionVisitor)   { v.VisitPartnerInstitutions(s) }
func (s *TestimonialsAndVideosSection) Accept(v SectionVisitor) { v.VisitTestimonialsAndVideos(s) }
func (s *IniciativasSection) Accept(v SectionVisitor)           { v.VisitIniciativas(s) }

func (*HeroSection) sectionContent()                  {}
func (*TextSection) sectionContent()                  {}
func (*ImageGallerySection) sectionContent()          {}
func (*GlobalContentSection) sectionContent()         {}
func (*ReportingChannelsSection) sectionContent()     {}
func (*PartnerInstitutionsSection) sectionContent()   {}
func (*TestimonialsAndVideosSection) sectionContent() {}
func (*IniciativasSection) sectionContent()           {}

// NewSectionContent returns an empty value for the given kind.
func NewSectionContent(kind SectionKind) (SectionContent, error) {
	switch kind {
	case SectionHero:
		return &HeroSection{}, nil
	case SectionText:
		return &TextSection{}, nil
	case SectionImageGallery:
		return &ImageGallerySection{}, nil
	case SectionGlobalContent:
		return &GlobalContentSection{}, nil
	case SectionReportingChannels:
		return &ReportingChannelsSection{}, nil
	case SectionPartnerInstitutions:
		return &PartnerInstitutionsSection{}, nil
	case SectionTestimonialsAndVideos:
		return &TestimonialsAndVideosSection{}, nil
	case SectionIniciativas:
		return &IniciativasSection{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSectionKind, kind)
	}
}

// DecodeSectionContent decodes a JSON object into the content type of kind.
// Unknown fields, including the shared ones, are ignored.
func DecodeSectionContent(kind SectionKind, data []byte) (SectionContent, error) {
	content, err := NewSectionContent(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, content); err != nil {
		return nil, fmt.Errorf("decode %s section: %w", kind, err)
	}
	return content, nil
}

// Section is a page section stored in the public content collection.
type Section struct {
	ID        string
	Order     int
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	Content   SectionContent
}

// Kind reports the section's discriminator.
func (s Section) Kind() SectionKind {
	if s.Content == nil {
		return ""
	}
	return s.Content.Kind()
}

// MarshalJSON flattens the content fields next to the shared ones.
func (s Section) MarshalJSON() ([]byte, error) {
	fields := map[string]any{}
	if s.Content != nil {
		raw, err := json.Marshal(s.Content)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	fields["id"] = s.ID
	fields["type"] = s.Kind()
	fields["order"] = s.Order
	fields["isActive"] = s.IsActive
	fields["createdAt"] = s.CreatedAt
	fields["updatedAt"] = s.UpdatedAt
	return json.Marshal(fields)
}
