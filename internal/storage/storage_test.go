package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portodas-api/internal/blob"
	"portodas-api/internal/docstore"
	"portodas-api/internal/models"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestRepositories(t *testing.T, opts ...Option) (*Repositories, *docstore.Memory) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
	store, err := docstore.NewMemory("", docstore.WithClock(clock.Now))
	require.NoError(t, err)
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(store, opts...), store
}

func stringPtr(v string) *string { return &v }
func intPtr(v int) *int          { return &v }
func boolPtr(v bool) *bool       { return &v }

func TestTestimonialsCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepositories(t)

	created, err := repos.Testimonials.Create(ctx, models.TestimonialInput{
		Quote:  "Uma frase marcante sobre a rede.",
		Author: "Maria Silva",
		Role:   "Coordenadora",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	fetched, err := repos.Testimonials.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, fetched)

	require.NoError(t, repos.Testimonials.Delete(ctx, created.ID))
	_, err = repos.Testimonials.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repos.Testimonials.Delete(ctx, created.ID), ErrNotFound)
}

func TestTestimonialsListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepositories(t)

	first, err := repos.Testimonials.Create(ctx, models.TestimonialInput{Quote: "Primeiro depoimento.", Author: "Ana"})
	require.NoError(t, err)
	second, err := repos.Testimonials.Create(ctx, models.TestimonialInput{Quote: "Segundo depoimento.", Author: "Bia"})
	require.NoError(t, err)

	items, err := repos.Testimonials.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)
	assert.Equal(t, first.ID, items[1].ID)
}

func TestEmptyListIsNotNil(t *testing.T) {
	repos, _ := newTestRepositories(t)
	items, err := repos.Posts.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestUpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepositories(t)

	post, err := repos.Posts.Create(ctx, models.PostInput{Title: "Título", Content: "Conteúdo do post."})
	require.NoError(t, err)

	updated, err := repos.Posts.Update(ctx, post.ID, models.PostPatch{Author: stringPtr("Equipe")})
	require.NoError(t, err)
	assert.Equal(t, "Título", updated.Title)
	assert.Equal(t, "Equipe", updated.Author)
	assert.Equal(t, post.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(post.UpdatedAt))
}

func TestEmptyUpdateOnlyTouchesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepositories(t)

	item, err := repos.NaoSeCale.Create(ctx, models.NaoSeCaleInput{URL: "https://example.org", Conteudo: "Ligue 180"})
	require.NoError(t, err)

	updated, err := repos.NaoSeCale.Update(ctx, item.ID, models.NaoSeCalePatch{})
	require.NoError(t, err)
	assert.Equal(t, item.URL, updated.URL)
	assert.Equal(t, item.Conteudo, updated.Conteudo)
	assert.Equal(t, item.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(item.UpdatedAt))
}

func TestUpdateMissingDocument(t *testing.T) {
	repos, _ := newTestRepositories(t)
	_, err := repos.Posts.Update(context.Background(), "missing", models.PostPatch{Title: stringPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatestPostsLimit(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepositories(t)
	var ids []string
	for i := 0; i < 5; i++ {
		post, err := repos.Posts.Create(ctx, models.PostInput{Title: "Post", Content: "Conteúdo qualquer."})
		require.NoError(t, err)
		ids = append(ids, post.ID)
	}

	latest, err := repos.Posts.Latest(ctx, 3)
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, ids[4], latest[0].ID)
	assert.Equal(t, ids[2], latest[2].ID)
}

func TestInitiativesAssignSequentialOrder(t *testing.T) {
	for _, policy := range []OrderPolicy{OrderScan, OrderAtomic} {
		t.Run(string(policy), func(t *testing.T) {
			ctx := context.Background()
			repos, _ := newTestRepositories(t, WithOrderPolicy(policy))

			for i := 1; i <= 3; i++ {
				item, err := repos.Initiatives.Create(ctx, models.InitiativeInput{Titulo: "Iniciativa", Conteudo: "Descrição longa"})
				require.NoError(t, err)
				assert.Equal(t, i, item.Ordem)
			}

			explicit, err := repos.Initiatives.Create(ctx, models.InitiativeInput{Titulo: "Fixa", Conteudo: "Descrição longa", Ordem: intPtr(10)})
			require.NoError(t, err)
			assert.Equal(t, 10, explicit.Ordem)

			next, err := repos.Initiatives.NextOrder(ctx)
			require.NoError(t, err)
			assert.Equal(t, 11, next)

			items, err := repos.Initiatives.List(ctx)
			require.NoError(t, err)
			require.Len(t, items, 4)
			for i := 1; i < len(items); i++ {
				assert.LessOrEqual(t, items[i-1].Ordem, items[i].Ordem)
			}
		})
	}
}

func TestAtomicOrderUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepositories(t, WithOrderPolicy(OrderAtomic))

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repos.ReportChannels.Create(ctx, models.ReportChannelInput{Quantificador: "180", Valor: "Central"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	items, err := repos.ReportChannels.List(ctx)
	require.NoError(t, err)
	seen := map[int]bool{}
	for _, item := range items {
		assert.False(t, seen[item.Ordem], "duplicate ordem %d", item.Ordem)
		seen[item.Ordem] = true
	}
	assert.Len(t, seen, workers)
}

func TestNextOrderIgnoresNonNumericValues(t *testing.T) {
	ctx := context.Background()
	_, store := newTestRepositories(t)
	coll := store.Collection(CollectionInitiatives)

	next, err := NextOrder(ctx, coll, fieldOrdem)
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	_, err = coll.Add(ctx, map[string]any{"ordem": "7"})
	require.NoError(t, err)
	_, err = coll.Add(ctx, map[string]any{"ordem": 2.6})
	require.NoError(t, err)
	_, err = coll.Add(ctx, map[string]any{"titulo": "sem ordem"})
	require.NoError(t, err)

	next, err = NextOrder(ctx, coll, fieldOrdem)
	require.NoError(t, err)
	assert.Equal(t, 3, next)
}

func TestMissingRequiredFieldIsIntegrityError(t *testing.T) {
	ctx := context.Background()
	repos, store := newTestRepositories(t)

	id, err := store.Collection(CollectionNaoSeCale).Add(ctx, map[string]any{"conteudo": "sem url"})
	require.NoError(t, err)

	_, err = repos.NaoSeCale.Get(ctx, id)
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, "url", integrity.Field)
	assert.Equal(t, CollectionNaoSeCale, integrity.Collection)

	_, err = repos.NaoSeCale.List(ctx)
	assert.ErrorAs(t, err, &integrity)
}

func TestMissingTimestampsDefault(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	reader := newDocReader("testimonials", docstore.Document{ID: "a"}, now)
	assert.Equal(t, now, reader.createdAt())
	assert.Equal(t, now, reader.updatedAt())

	created := now.Add(-time.Hour)
	reader = newDocReader("testimonials", docstore.Document{ID: "a", CreatedAt: created}, now)
	assert.Equal(t, created, reader.updatedAt())
}

func TestReportsAnonymousDropsContact(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepositories(t)

	report, err := repos.Reports.Create(ctx, models.ReportInput{
		Descricao: "Relato detalhado do ocorrido.",
		Contato:   "maria@example.org",
		Anonimo:   true,
		Channel:   "site",
	})
	require.NoError(t, err)
	assert.Empty(t, report.Contato)
	assert.Equal(t, models.ReportReceived, report.Status)
	assert.Regexp(t, `^20240510-[0-9A-F]{8}$`, report.Protocol)
	assert.NotNil(t, report.Attachments)

	named, err := repos.Reports.Create(ctx, models.ReportInput{Descricao: "Outro relato detalhado.", Contato: "ana@example.org", Channel: "site"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.org", named.Contato)

	status := models.ReportInReview
	updated, err := repos.Reports.Update(ctx, named.ID, models.ReportPatch{Anonimo: boolPtr(true), Status: &status})
	require.NoError(t, err)
	assert.Empty(t, updated.Contato)
	assert.True(t, updated.Anonimo)
	assert.Equal(t, models.ReportInReview, updated.Status)
}

func TestSectionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repos, _ := newTestRepositories(t)

	hero, err := repos.Sections.Create(ctx, models.SectionInput{
		Content:  &models.HeroSection{Title: "Bem-vinda", ImageURL: "https://example.org/hero.png"},
		IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, hero.Order)
	assert.Equal(t, models.SectionHero, hero.Kind())

	text, err := repos.Sections.Create(ctx, models.SectionInput{
		Content: &models.TextSection{Title: "Sobre", Body: "Texto"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, text.Order)

	active, err := repos.Sections.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, hero.ID, active[0].ID)

	updated, err := repos.Sections.Update(ctx, hero.ID, models.SectionPatch{
		Fields: map[string]any{"subtitle": "Rede de apoio", "type": "text"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.SectionHero, updated.Kind())
	content, ok := updated.Content.(*models.HeroSection)
	require.True(t, ok)
	assert.Equal(t, "Rede de apoio", content.Subtitle)
	assert.Equal(t, "Bem-vinda", content.Title)
}

func TestSectionsRejectCorruptDocuments(t *testing.T) {
	ctx := context.Background()
	repos, store := newTestRepositories(t)
	coll := store.Collection(CollectionSections)

	unknown, err := coll.Add(ctx, map[string]any{"type": "carousel", "title": "x"})
	require.NoError(t, err)
	_, err = repos.Sections.Get(ctx, unknown)
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, "type", integrity.Field)

	missing, err := coll.Add(ctx, map[string]any{"type": "hero", "title": "Sem imagem"})
	require.NoError(t, err)
	_, err = repos.Sections.Get(ctx, missing)
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, "imageUrl", integrity.Field)
}

func TestLegacyDocuments(t *testing.T) {
	ctx := context.Background()
	repos, store := newTestRepositories(t)
	id, err := store.Collection(CollectionDocumentos).Add(ctx, map[string]any{"titulo": "Cartilha"})
	require.NoError(t, err)

	doc, err := repos.Legacy.Get(ctx, CollectionDocumentos, id)
	require.NoError(t, err)
	assert.Equal(t, id, doc["id"])
	assert.Equal(t, "Cartilha", doc["titulo"])
	assert.Contains(t, doc, "createdAt")

	_, err = repos.Legacy.Get(ctx, CollectionDocumentos, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	docs, err := repos.Legacy.List(ctx, CollectionCarrossel)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

type fakeBlobs struct {
	objects   map[string]blob.ObjectInfo
	public    map[string]bool
	deleted   []string
	deleteErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string]blob.ObjectInfo{}, public: map[string]bool{}}
}

func (f *fakeBlobs) Stat(_ context.Context, name string) (blob.ObjectInfo, error) {
	info, ok := f.objects[name]
	if !ok {
		return blob.ObjectInfo{}, blob.ErrNotFound
	}
	return info, nil
}

func (f *fakeBlobs) MakePublic(_ context.Context, name string) error {
	f.public[name] = true
	return nil
}

func (f *fakeBlobs) Delete(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.objects[name]; !ok {
		return blob.ErrNotFound
	}
	delete(f.objects, name)
	return nil
}

func (f *fakeBlobs) PublicURL(name string) string {
	return "https://cdn.example.org/bucket/" + name
}

func TestBannersConfirmAndDelete(t *testing.T) {
	ctx := context.Background()
	blobs := newFakeBlobs()
	blobs.objects["banners/1715342400000_hero.png"] = blob.ObjectInfo{Name: "banners/1715342400000_hero.png", ContentType: "image/png", Size: 42}
	repos, _ := newTestRepositories(t, WithBlobStore(blobs))

	_, err := repos.Banners.Confirm(ctx, models.BannerInput{StoragePath: "banners/missing.png"})
	assert.ErrorIs(t, err, ErrBlobMissing)

	banner, err := repos.Banners.Confirm(ctx, models.BannerInput{StoragePath: "banners/1715342400000_hero.png", Alt: "Campanha"})
	require.NoError(t, err)
	assert.True(t, banner.IsActive)
	assert.Equal(t, "image/png", banner.ContentType)
	assert.Equal(t, "https://cdn.example.org/bucket/banners/1715342400000_hero.png", banner.URL)
	assert.True(t, blobs.public["banners/1715342400000_hero.png"])

	hidden, err := repos.Banners.Update(ctx, banner.ID, models.BannerPatch{IsActive: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, hidden.IsActive)

	active, err := repos.Banners.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, repos.Banners.Delete(ctx, banner.ID))
	assert.Equal(t, []string{"banners/1715342400000_hero.png"}, blobs.deleted)
	assert.ErrorIs(t, repos.Banners.Delete(ctx, banner.ID), ErrNotFound)
}

func TestBannerDeleteToleratesMissingBlob(t *testing.T) {
	ctx := context.Background()
	blobs := newFakeBlobs()
	blobs.objects["banners/a.png"] = blob.ObjectInfo{Name: "banners/a.png", ContentType: "image/png"}
	repos, _ := newTestRepositories(t, WithBlobStore(blobs))

	banner, err := repos.Banners.Confirm(ctx, models.BannerInput{StoragePath: "banners/a.png"})
	require.NoError(t, err)
	delete(blobs.objects, "banners/a.png")

	require.NoError(t, repos.Banners.Delete(ctx, banner.ID))
	_, err = repos.Banners.Get(ctx, banner.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBannerDeleteKeepsDocumentWhenBlobFails(t *testing.T) {
	ctx := context.Background()
	blobs := newFakeBlobs()
	blobs.objects["banners/a.png"] = blob.ObjectInfo{Name: "banners/a.png"}
	repos, _ := newTestRepositories(t, WithBlobStore(blobs))

	banner, err := repos.Banners.Confirm(ctx, models.BannerInput{StoragePath: "banners/a.png"})
	require.NoError(t, err)
	blobs.deleteErr = errors.New("backend down")

	assert.Error(t, repos.Banners.Delete(ctx, banner.ID))
	_, err = repos.Banners.Get(ctx, banner.ID)
	assert.NoError(t, err)
}

func TestParseOrderPolicy(t *testing.T) {
	policy, err := ParseOrderPolicy("")
	require.NoError(t, err)
	assert.Equal(t, OrderScan, policy)

	policy, err = ParseOrderPolicy(" Atomic ")
	require.NoError(t, err)
	assert.Equal(t, OrderAtomic, policy)

	_, err = ParseOrderPolicy("random")
	assert.Error(t, err)
}
