package firestoresrc

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/BearBump/KickSync/internal/integrations/docstore"
	"github.com/BearBump/KickSync/internal/models"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	DefaultCollection = "kick"
	DefaultOrderBy    = "last_update"
)

type Options struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
	Collection      string
	OrderBy         string
}

type Source struct {
	c          *firestore.Client
	collection string
	orderBy    string
}

var _ docstore.Source = (*Source)(nil)

func New(ctx context.Context, opts Options) (*Source, error) {
	if opts.ProjectID == "" {
		return nil, errors.New("firestore project id is required")
	}
	var clientOpts []option.ClientOption
	switch {
	case opts.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	// Без явных ключей используются Application Default Credentials (или FIRESTORE_EMULATOR_HOST).

	c, err := firestore.NewClient(ctx, opts.ProjectID, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "firestore client")
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.OrderBy == "" {
		opts.OrderBy = DefaultOrderBy
	}
	return &Source{c: c, collection: opts.Collection, orderBy: opts.OrderBy}, nil
}

func (s *Source) ListKickboards(ctx context.Context) ([]models.SourceKickboard, error) {
	it := s.c.Collection(s.collection).OrderBy(s.orderBy, firestore.Desc).Documents(ctx)
	defer it.Stop()

	var out []models.SourceKickboard
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "iterate kickboard docs")
		}
		out = append(out, fromData(doc.Data()))
	}
	return out, nil
}

func (s *Source) Close() error {
	return s.c.Close()
}

// fromData maps a raw document. Fields of an unexpected type are left zero;
// a non-string code then fails the code-length check downstream.
func fromData(m map[string]any) models.SourceKickboard {
	return models.SourceKickboard{
		KickboardID:   asString(m["id"]),
		KickboardCode: asString(m["code"]),
		CanRide:       asBool(m["can_ride"]),
		Deploy:        asBool(m["deploy"]),
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		// IMEI иногда приходит числом
		return fmt.Sprintf("%d", t)
	default:
		return ""
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
