// Package storage holds the data access layer: one repository per content
// resource, each wrapping a docstore collection and mapping stored documents to
// the domain types of package models.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"portodas-api/internal/docstore"
)

// Collection names.
const (
	CollectionTestimonials   = "testimonials"
	CollectionPosts          = "sectionPostsDestaque"
	CollectionInitiatives    = "sectionIniciativas"
	CollectionReportChannels = "sectionCanaisDenuncia"
	CollectionNaoSeCale      = "sectionNaoSeCale"
	CollectionPorqueAderimos = "sectionPorqueAderimos"
	CollectionBanners        = "banners"
	CollectionReports        = "reports"
	CollectionSections       = "publicContent"

	CollectionCarrossel     = "sectionCarrossel"
	CollectionCurso         = "sectionCurso"
	CollectionInstParceiras = "sectionInstParceiras"
	CollectionDepoimentos   = "sectionDepoimentos"
	CollectionDocumentos    = "sectionDocumentos"
	CollectionSPporTodas    = "sectionSPporTodas"
)

// OrderPolicy selects how ordered resources compute the next position.
type OrderPolicy string

const (
	// OrderScan reads the collection and inserts in two steps. Concurrent
	// creates may compute the same position.
	OrderScan OrderPolicy = "scan"
	// OrderAtomic delegates to backends implementing docstore.OrderedAdder,
	// falling back to OrderScan for those that do not.
	OrderAtomic OrderPolicy = "atomic"
)

// ParseOrderPolicy resolves a configuration value. Empty selects OrderScan.
func ParseOrderPolicy(raw string) (OrderPolicy, error) {
	switch OrderPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", OrderScan:
		return OrderScan, nil
	case OrderAtomic:
		return OrderAtomic, nil
	default:
		return "", fmt.Errorf("unknown order policy %q (want scan or atomic)", raw)
	}
}

type options struct {
	policy OrderPolicy
	now    func() time.Time
	blobs  BlobStore
}

// Option configures the repositories built by New.
type Option func(*options)

// WithOrderPolicy selects the order assignment policy.
func WithOrderPolicy(policy OrderPolicy) Option {
	return func(o *options) {
		if policy != "" {
			o.policy = policy
		}
	}
}

// WithClock overrides the time substituted for documents missing timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithBlobStore provides the blob store backing banner images.
func WithBlobStore(blobs BlobStore) Option {
	return func(o *options) {
		o.blobs = blobs
	}
}

// Repositories groups every resource repository over one document store.
type Repositories struct {
	Testimonials   *Testimonials
	Initiatives    *Initiatives
	Posts          *Posts
	ReportChannels *ReportChannels
	NaoSeCale      *NaoSeCale
	PorqueAderimos *PorqueAderimos
	Banners        *Banners
	Reports        *Reports
	Sections       *Sections
	Legacy         *Legacy

	store docstore.Store
}

// New builds the repositories. Each receives its own collection handle.
func New(store docstore.Store, opts ...Option) *Repositories {
	cfg := options{
		policy: OrderScan,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Repositories{
		Testimonials:   newTestimonials(store.Collection(CollectionTestimonials), cfg),
		Initiatives:    newInitiatives(store.Collection(CollectionInitiatives), cfg),
		Posts:          newPosts(store.Collection(CollectionPosts), cfg),
		ReportChannels: newReportChannels(store.Collection(CollectionReportChannels), cfg),
		NaoSeCale:      newNaoSeCale(store.Collection(CollectionNaoSeCale), cfg),
		PorqueAderimos: newPorqueAderimos(store.Collection(CollectionPorqueAderimos), cfg),
		Banners:        newBanners(store.Collection(CollectionBanners), cfg),
		Reports:        newReports(store.Collection(CollectionReports), cfg),
		Sections:       newSections(store.Collection(CollectionSections), cfg),
		Legacy:         &Legacy{store: store},
		store:          store,
	}
}

// Ping checks the underlying document store.
func (r *Repositories) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}
