package service

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/gogotex/docmodel/internal/document/repository"
	"github.com/gogotex/docmodel/pkg/logger"
	"github.com/gogotex/docmodel/pkg/odm"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrNotDocument = errors.New("class is not a document class")
	ErrNoID        = errors.New("document has no identifier")
)

// Archiver keeps a copy of saved wire records outside the primary store.
type Archiver interface {
	Put(ctx context.Context, c *odm.Class, rec bson.D) error
}

// FindOptions narrows a Find. An empty Sort falls back to the class default
// sort.
type FindOptions struct {
	Sort  bson.D
	Skip  int64
	Limit int64
}

// Service persists documents of any document class through a Repository.
// Every filter is merged with the class default query.
type Service struct {
	repo    repository.Repository
	archive Archiver
}

type Option func(*Service)

// WithArchive copies every saved record to a.
func WithArchive(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

func New(repo repository.Repository, opts ...Option) *Service {
	s := &Service{repo: repo}
	for _, o := range opts {
		o(s)
	}
	return s
}

func documentClass(c *odm.Class) error {
	if c.Kind() != odm.KindDocument {
		return fmt.Errorf("%w: %s", ErrNotDocument, c.Name())
	}
	return nil
}

// Create validates data into a new document and inserts it.
func (s *Service) Create(ctx context.Context, c *odm.Class, data map[string]any) (*odm.Document, error) {
	if err := documentClass(c); err != nil {
		return nil, err
	}
	doc, err := c.FromData(data)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, doc, true); err != nil {
		return nil, err
	}
	return doc, nil
}

// Save writes doc. With doInsert it always inserts and fails with
// repository.ErrDuplicate on a taken identifier; otherwise it replaces the
// record with the same identifier, inserting it when missing.
func (s *Service) Save(ctx context.Context, doc *odm.Document, doInsert bool) error {
	c := doc.Class()
	if err := documentClass(c); err != nil {
		return err
	}
	if _, ok := doc.IdentifierWireValue(); !ok {
		return fmt.Errorf("save %s: %w", c.Name(), ErrNoID)
	}
	rec := doc.ToWire()
	if doInsert {
		if err := s.repo.Insert(ctx, c, rec); err != nil {
			return fmt.Errorf("insert %s: %w", c.Name(), err)
		}
	} else if _, err := s.repo.Replace(ctx, c, doc.QueryID(), rec, true); err != nil {
		return fmt.Errorf("replace %s: %w", c.Name(), err)
	}
	s.archiveRecord(ctx, c, rec)
	return nil
}

func (s *Service) archiveRecord(ctx context.Context, c *odm.Class, rec bson.D) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Put(ctx, c, rec); err != nil {
		logger.Warnf("archive %s: %v", c.Name(), err)
	}
}

// Get loads the document with identifier id.
func (s *Service) Get(ctx context.Context, c *odm.Class, id any) (*odm.Document, error) {
	if err := documentClass(c); err != nil {
		return nil, err
	}
	q, err := c.IDQuery(id)
	if err != nil {
		return nil, err
	}
	return s.FindOne(ctx, c, q)
}

// FindOne returns the first document matching query.
func (s *Service) FindOne(ctx context.Context, c *odm.Class, query bson.D) (*odm.Document, error) {
	if err := documentClass(c); err != nil {
		return nil, err
	}
	rec, err := s.repo.FindOne(ctx, c, c.Options().MergeQuery(query))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", c.Name(), ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c.FromWire(rec), nil
}

// Find returns the documents matching query.
func (s *Service) Find(ctx context.Context, c *odm.Class, query bson.D, opts FindOptions) ([]*odm.Document, error) {
	if err := documentClass(c); err != nil {
		return nil, err
	}
	recs, err := s.repo.Find(ctx, c, c.Options().MergeQuery(query), repository.FindOptions{
		Sort:  c.Options().Sort(opts.Sort),
		Skip:  opts.Skip,
		Limit: opts.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]*odm.Document, 0, len(recs))
	for _, rec := range recs {
		out = append(out, c.FromWire(rec))
	}
	return out, nil
}

func (s *Service) Count(ctx context.Context, c *odm.Class, query bson.D) (int64, error) {
	if err := documentClass(c); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, c, c.Options().MergeQuery(query))
}

// Reload replaces the values of doc with the stored record.
func (s *Service) Reload(ctx context.Context, doc *odm.Document) error {
	c := doc.Class()
	if _, ok := doc.IdentifierWireValue(); !ok {
		return fmt.Errorf("reload %s: %w", c.Name(), ErrNoID)
	}
	rec, err := s.repo.FindOne(ctx, c, doc.QueryID())
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", c.Name(), ErrNotFound)
	}
	if err != nil {
		return err
	}
	doc.LoadWire(rec)
	return nil
}

// Update applies a wire level update document ($set, $unset, $inc) to the
// stored record of doc and reloads doc when a record matched.
func (s *Service) Update(ctx context.Context, doc *odm.Document, update bson.D) (int64, error) {
	c := doc.Class()
	if _, ok := doc.IdentifierWireValue(); !ok {
		return 0, fmt.Errorf("update %s: %w", c.Name(), ErrNoID)
	}
	n, err := s.repo.UpdateOne(ctx, c, c.Options().MergeQuery(doc.QueryID()), update)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", c.Name(), err)
	}
	if n > 0 {
		if err := s.Reload(ctx, doc); err != nil {
			return n, err
		}
		s.archiveRecord(ctx, c, doc.ToWire())
	}
	return n, nil
}

// Delete removes the stored record of doc and returns the number removed.
func (s *Service) Delete(ctx context.Context, doc *odm.Document) (int64, error) {
	c := doc.Class()
	if _, ok := doc.IdentifierWireValue(); !ok {
		return 0, fmt.Errorf("delete %s: %w", c.Name(), ErrNoID)
	}
	n, err := s.repo.DeleteOne(ctx, c, c.Options().MergeQuery(doc.QueryID()))
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.Name(), err)
	}
	return n, nil
}

// CreateIndexes creates the indexes declared for c when the repository
// supports it. Repositories without index support return no names.
func (s *Service) CreateIndexes(ctx context.Context, c *odm.Class) ([]string, error) {
	if err := documentClass(c); err != nil {
		return nil, err
	}
	ix, ok := s.repo.(repository.Indexer)
	if !ok {
		logger.Debugf("create indexes %s: repository has no index support", c.Name())
		return nil, nil
	}
	return ix.CreateIndexes(ctx, c)
}
