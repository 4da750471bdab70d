// Package docstore accesses the live-session document store (the open5gs
// subscribers collection). The documents are owned by the live-session
// subsystem; this package only rewrites the nested session address in
// place, matched by subscriber identifier.
package docstore

import (
	"context"
	"fmt"
	"net/netip"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func Connect(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to document store: %w", err)
	}
	return &Store{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// sessionDoc matches the slice of the subscriber document the remap pass
// reads: slice[0].session[0].ue.addr.
type sessionDoc struct {
	IMSI  string `bson:"imsi"`
	Slice []struct {
		Session []struct {
			UE struct {
				Addr string `bson:"addr"`
			} `bson:"ue"`
		} `bson:"session"`
	} `bson:"slice"`
}

// ReadSessions iterates every subscriber document and hands fn the
// identifier and current session address.
func (s *Store) ReadSessions(ctx context.Context, fn func(imsi string, addr netip.Addr) error) error {
	cur, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("querying subscriber documents: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc sessionDoc
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("decoding subscriber document: %w", err)
		}
		if len(doc.Slice) == 0 || len(doc.Slice[0].Session) == 0 {
			continue
		}
		addr, err := netip.ParseAddr(doc.Slice[0].Session[0].UE.Addr)
		if err != nil {
			return fmt.Errorf("session address for imsi %s: parsing %q: %w",
				doc.IMSI, doc.Slice[0].Session[0].UE.Addr, err)
		}
		if err := fn(doc.IMSI, addr); err != nil {
			return err
		}
	}
	return cur.Err()
}

// UpdateSessionAddr rewrites the nested session address of the document
// matching imsi.
func (s *Store) UpdateSessionAddr(ctx context.Context, imsi string, addr netip.Addr) error {
	filter := bson.M{"imsi": imsi}
	update := bson.M{"$set": SessionAddrUpdate(addr)}
	if _, err := s.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("updating session address for imsi %s: %w", imsi, err)
	}
	return nil
}

// SessionAddrUpdate builds the $set document placing addr at
// slice.0.session.0.ue.addr.
func SessionAddrUpdate(addr netip.Addr) bson.M {
	return bson.M{"slice.0.session.0.ue.addr": addr.String()}
}
