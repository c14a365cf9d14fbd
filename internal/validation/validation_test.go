package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portodas-api/internal/models"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

func TestEverySchemaCompiles(t *testing.T) {
	v := newValidator(t)
	for _, name := range []string{Testimonial, Post, Initiative, ReportChannel, NaoSeCale, PorqueAderimos, Report, BannerConfirm, BannerUpdate, UserCreate, Promote, SignedURL, AuthToken} {
		assert.Contains(t, v.schemas, name)
	}
	for _, kind := range models.SectionKinds {
		assert.Contains(t, v.schemas, sectionPrefix+string(kind))
	}
}

func TestDecodeTestimonial(t *testing.T) {
	v := newValidator(t)

	in, result := Decode[models.TestimonialInput](v, Testimonial, Create, []byte(`{"quote":"Uma frase marcante.","author":"Maria"}`))
	require.True(t, result.Valid(), result.Error())
	assert.Equal(t, "Maria", in.Author)

	_, result = Decode[models.TestimonialInput](v, Testimonial, Create, []byte(`{"author":"Maria"}`))
	require.False(t, result.Valid())
	assert.True(t, result.Has("quote"))

	_, result = Decode[models.TestimonialInput](v, Testimonial, Create, []byte(`{"quote":"curta","author":"Maria","imageUrl":"not a url"}`))
	assert.True(t, result.Has("quote"))
	assert.True(t, result.Has("imageUrl"))
}

func TestUpdateModeDropsRequired(t *testing.T) {
	v := newValidator(t)

	patch, result := Decode[models.PostPatch](v, Post, Update, []byte(`{"author":"Equipe"}`))
	require.True(t, result.Valid(), result.Error())
	require.NotNil(t, patch.Author)
	assert.Nil(t, patch.Title)

	_, result = Decode[models.PostPatch](v, Post, Update, []byte(`{"title":"ab"}`))
	assert.True(t, result.Has("title"))

	patch, result = Decode[models.PostPatch](v, Post, Update, []byte(``))
	assert.True(t, result.Valid())
	assert.Nil(t, patch.Title)
}

func TestMalformedBody(t *testing.T) {
	v := newValidator(t)

	_, result := Decode[models.PostInput](v, Post, Create, []byte(`{"title":`))
	require.False(t, result.Valid())
	assert.Equal(t, BodyField, result.Errors[0].Field)

	_, result = Decode[models.PostInput](v, Post, Create, []byte(`[1,2]`))
	assert.True(t, result.Has(BodyField))
}

func TestInitiativeOrdemMustBePositiveInteger(t *testing.T) {
	v := newValidator(t)

	_, result := Decode[models.InitiativeInput](v, Initiative, Create, []byte(`{"titulo":"Rede","conteudo":"Conteúdo extenso","ordem":0}`))
	assert.True(t, result.Has("ordem"))

	_, result = Decode[models.InitiativeInput](v, Initiative, Create, []byte(`{"titulo":"Rede","conteudo":"Conteúdo extenso","ordem":1.5}`))
	assert.True(t, result.Has("ordem"))

	in, result := Decode[models.InitiativeInput](v, Initiative, Create, []byte(`{"titulo":"Rede","conteudo":"Conteúdo extenso","ordem":3}`))
	require.True(t, result.Valid(), result.Error())
	require.NotNil(t, in.Ordem)
	assert.Equal(t, 3, *in.Ordem)
}

func TestReportStatusEnum(t *testing.T) {
	v := newValidator(t)

	_, result := Decode[models.ReportPatch](v, Report, Update, []byte(`{"status":"closed"}`))
	assert.True(t, result.Has("status"))

	patch, result := Decode[models.ReportPatch](v, Report, Update, []byte(`{"status":"resolved"}`))
	require.True(t, result.Valid(), result.Error())
	assert.Equal(t, models.ReportResolved, *patch.Status)
}

func TestNestedRequiredFieldPath(t *testing.T) {
	v := newValidator(t)
	body := []byte(`{"descricao":"Relato detalhado","channel":"site","attachments":[{"url":"https://x.org/a.png"}]}`)
	_, result := Decode[models.ReportInput](v, Report, Create, body)
	assert.True(t, result.Has("attachments.0.storagePath"), result.Error())
}

func TestDecodeSectionCreate(t *testing.T) {
	v := newValidator(t)

	in, result := DecodeSectionCreate(v, []byte(`{"type":"hero","title":"Bem-vinda","imageUrl":"https://example.org/a.png","isActive":true}`))
	require.True(t, result.Valid(), result.Error())
	assert.Equal(t, models.SectionHero, in.Content.Kind())
	assert.True(t, in.IsActive)
	assert.Nil(t, in.Order)

	_, result = DecodeSectionCreate(v, []byte(`{"title":"Sem tipo"}`))
	assert.True(t, result.Has("type"))

	_, result = DecodeSectionCreate(v, []byte(`{"type":"carousel"}`))
	assert.True(t, result.Has("type"))

	_, result = DecodeSectionCreate(v, []byte(`{"type":"text","title":"Sobre"}`))
	assert.True(t, result.Has("body"))

	_, result = DecodeSectionCreate(v, []byte(`{"type":"partnerInstitutions","title":"Parceiros","partners":[]}`))
	assert.True(t, result.Has("partners"))
}

func TestDecodeSectionCreateMediaItems(t *testing.T) {
	v := newValidator(t)

	_, result := DecodeSectionCreate(v, []byte(`{"type":"testimonialsAndVideos","title":"Vozes","items":[{"type":"video","title":"Vídeo"}]}`))
	assert.False(t, result.Valid())

	in, result := DecodeSectionCreate(v, []byte(`{"type":"testimonialsAndVideos","title":"Vozes","items":[{"type":"video","title":"Vídeo","videoUrl":"https://youtu.be/x"}]}`))
	require.True(t, result.Valid(), result.Error())
	content, ok := in.Content.(*models.TestimonialsAndVideosSection)
	require.True(t, ok)
	assert.Equal(t, "https://youtu.be/x", content.Items[0].VideoURL)
}

func TestDecodeSectionUpdate(t *testing.T) {
	v := newValidator(t)

	patch, result := DecodeSectionUpdate(v, models.SectionHero, []byte(`{"subtitle":"Novo","order":4,"type":"hero"}`))
	require.True(t, result.Valid(), result.Error())
	assert.Equal(t, map[string]any{"subtitle": "Novo"}, patch.Fields)
	require.NotNil(t, patch.Order)
	assert.Equal(t, 4, *patch.Order)

	_, result = DecodeSectionUpdate(v, models.SectionHero, []byte(`{"type":"text"}`))
	assert.True(t, result.Has("type"))

	_, result = DecodeSectionUpdate(v, models.SectionHero, []byte(`{"imageUrl":"nope"}`))
	assert.True(t, result.Has("imageUrl"))
}
