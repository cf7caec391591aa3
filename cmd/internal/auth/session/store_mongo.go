package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore implements Store over a MongoDB collection of record documents
// with embedded device and login-history arrays.
//
// RemoveDevice uses a multi-document transaction and therefore needs a
// replica set or sharded cluster.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore binds the store to db.collection. The client is owned by the caller.
func NewMongoStore(client *mongo.Client, db, collection string) (*MongoStore, error) {
	if client == nil {
		return nil, fmt.Errorf("session: nil mongo client")
	}
	if collection == "" {
		collection = "refresh_tokens"
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(db).Collection(collection),
	}, nil
}

// EnsureIndexes creates the uniqueness and sweep indexes. It is idempotent.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uq_refresh_tokens_user_id")},
		{Keys: bson.D{{Key: "refresh_token", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uq_refresh_tokens_token")},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetName("ix_refresh_tokens_expires_at")},
		{Keys: bson.D{{Key: "created_at", Value: 1}}, Options: options.Index().SetName("ix_refresh_tokens_created_at")},
	})
	return err
}

func (s *MongoStore) FindActiveByUser(ctx context.Context, userID string, now time.Time) (Record, error) {
	var rec Record
	err := s.coll.FindOne(ctx, bson.M{
		"user_id":    userID,
		"expires_at": bson.M{"$gt": now},
	}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return normalizeRecord(rec), nil
}

func (s *MongoStore) Insert(ctx context.Context, rec Record) (Record, error) {
	rec = normalizeRecord(rec)
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Record{}, ErrConflict
		}
		return Record{}, err
	}
	return rec, nil
}

func (s *MongoStore) TokenExists(ctx context.Context, token string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"refresh_token": token}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *MongoStore) DeleteOne(ctx context.Context, f RecordFilter) (bool, error) {
	q, err := filterBSON(f)
	if err != nil {
		return false, err
	}
	res, err := s.coll.DeleteOne(ctx, q)
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) DeleteMany(ctx context.Context, f RecordFilter) (int64, error) {
	q, err := filterBSON(f)
	if err != nil {
		return 0, err
	}
	res, err := s.coll.DeleteMany(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) AppendLoginHistory(ctx context.Context, userID string, e LoginEntry) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$push": bson.M{"login_history": e}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MongoStore) FindDevice(ctx context.Context, userID string, m DeviceMatcher) (Device, error) {
	if !m.valid() {
		return Device{}, ErrDeviceNotFound
	}

	q := bson.M{"user_id": userID}
	if m.ID != "" {
		q["devices.id"] = m.ID
	} else {
		t := m.Traits
		q["devices"] = bson.M{"$elemMatch": bson.M{
			"userAgent.os.name":          t.OSName,
			"userAgent.os.version":       t.OSVersion,
			"userAgent.cpu.architecture": t.CPUArchitecture,
			"windowScreen.width":         t.ScreenWidth,
			"windowScreen.height":        t.ScreenHeight,
			"windowScreen.colorDepth":    t.ColorDepth,
			"webGLInfo.vendor":           t.WebGLVendor,
			"webGLInfo.renderer":         t.WebGLRenderer,
			"webGLInfo.version":          t.WebGLVersion,
		}}
	}

	// The positional projection returns only the first matching element.
	var out struct {
		Devices []Device `bson:"devices"`
	}
	err := s.coll.FindOne(ctx, q, options.FindOne().SetProjection(bson.M{"devices.$": 1})).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Device{}, ErrDeviceNotFound
	}
	if err != nil {
		return Device{}, err
	}
	if len(out.Devices) == 0 {
		return Device{}, ErrDeviceNotFound
	}
	return out.Devices[0], nil
}

func (s *MongoStore) PushDevice(ctx context.Context, userID string, d Device) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"user_id": userID, "devices.id": bson.M{"$ne": d.ID}},
		bson.M{"$push": bson.M{"devices": d}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := s.coll.CountDocuments(ctx, bson.M{"user_id": userID}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MongoStore) PullDevice(ctx context.Context, userID, deviceID string) (Record, error) {
	var rec Record
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID},
		bson.M{"$pull": bson.M{"devices": bson.M{"id": deviceID}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return normalizeRecord(rec), nil
}

func (s *MongoStore) RemoveDevice(ctx context.Context, userID, deviceID string, e LoginEntry) (RemoveResult, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return RemoveResult{}, err
	}
	defer sess.EndSession(ctx)

	out, err := sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		var before Record
		err := s.coll.FindOneAndUpdate(ctx,
			bson.M{"user_id": userID},
			bson.M{"$pull": bson.M{"devices": bson.M{"id": deviceID}}},
			options.FindOneAndUpdate().SetReturnDocument(options.Before),
		).Decode(&before)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		if err != nil {
			return nil, err
		}

		remaining := 0
		for _, d := range before.Devices {
			if d.ID != deviceID {
				remaining++
			}
		}
		res := RemoveResult{Removed: remaining < len(before.Devices), Remaining: remaining}
		if !res.Removed {
			return res, nil
		}

		if remaining == 0 {
			if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": before.ID}); err != nil {
				return nil, err
			}
			res.Deleted = true
			return res, nil
		}

		if _, err := s.coll.UpdateOne(ctx,
			bson.M{"_id": before.ID},
			bson.M{"$push": bson.M{"login_history": e}},
		); err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return RemoveResult{}, err
	}
	return out.(RemoveResult), nil
}

func filterBSON(f RecordFilter) (bson.M, error) {
	if f.IsEmpty() {
		return nil, ErrEmptyFilter
	}
	q := bson.M{}
	if f.UserID != "" {
		q["user_id"] = f.UserID
	}
	if f.Token != "" {
		q["refresh_token"] = f.Token
	}
	if !f.ExpiredAt.IsZero() {
		q["expires_at"] = bson.M{"$lte": f.ExpiredAt}
	}
	if !f.CreatedBefore.IsZero() {
		q["created_at"] = bson.M{"$lt": f.CreatedBefore}
	}
	return q, nil
}

// normalizeRecord keeps arrays non-nil so documents never store null and
// decoded records compare equal across stores.
func normalizeRecord(r Record) Record {
	if r.Devices == nil {
		r.Devices = []Device{}
	}
	if r.LoginHistory == nil {
		r.LoginHistory = []LoginEntry{}
	}
	return r
}
