package repository

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lumia/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultInteractionCollection = "interactions"

// Firestore implements InteractionLog using Firestore
type Firestore struct {
	client     *firestore.Client
	collection string
}

var _ InteractionLog = (*Firestore)(nil)

// FirestoreOption is a functional option for Firestore
type FirestoreOption func(*Firestore)

// WithCollection sets the collection used for interactions
func WithCollection(name string) FirestoreOption {
	return func(f *Firestore) {
		f.collection = name
	}
}

type interactionDoc struct {
	ID        string    `firestore:"id"`
	Question  string    `firestore:"question"`
	Answer    string    `firestore:"answer"`
	Agent     string    `firestore:"agent"`
	CreatedAt time.Time `firestore:"created_at"`
}

// NewFirestore creates a new Firestore interaction log
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...FirestoreOption) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	f := &Firestore{
		client:     client,
		collection: defaultInteractionCollection,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Close closes the Firestore client
func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) PutInteraction(ctx context.Context, interaction *model.Interaction) error {
	doc := interactionDoc{
		ID:        string(interaction.ID),
		Question:  interaction.Question,
		Answer:    interaction.Answer,
		Agent:     interaction.Agent,
		CreatedAt: interaction.CreatedAt,
	}

	if _, err := f.client.Collection(f.collection).Doc(doc.ID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to save interaction", goerr.V("id", interaction.ID))
	}
	return nil
}

func (f *Firestore) GetInteraction(ctx context.Context, id model.InteractionID) (*model.Interaction, error) {
	snap, err := f.client.Collection(f.collection).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrInteractionNotFound, "no such interaction", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get interaction", goerr.V("id", id))
	}

	var doc interactionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode interaction", goerr.V("id", id))
	}
	return doc.toModel(), nil
}

func (f *Firestore) ListInteractions(ctx context.Context, limit int) ([]*model.Interaction, error) {
	q := f.client.Collection(f.collection).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var interactions []*model.Interaction
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate interactions")
		}

		var doc interactionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode interaction", goerr.V("doc", snap.Ref.ID))
		}
		interactions = append(interactions, doc.toModel())
	}

	return interactions, nil
}

func (d *interactionDoc) toModel() *model.Interaction {
	return &model.Interaction{
		ID:        model.InteractionID(d.ID),
		Question:  d.Question,
		Answer:    d.Answer,
		Agent:     d.Agent,
		CreatedAt: d.CreatedAt,
	}
}
