package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"project-tracker-api/internal/models"
)

// Collection names
const (
	CollectionProjects = "projects"
	CollectionUsers    = "users"
)

// Mongo stores projects and users as MongoDB documents.
type Mongo struct {
	client   *mongo.Client
	database *mongo.Database
}

type projectDoc struct {
	ID            string     `bson:"_id"`
	ProjectName   string     `bson:"projectName"`
	ProjectType   string     `bson:"projectType"`
	Category      *string    `bson:"category,omitempty"`
	HoursWorked   *float64   `bson:"hoursWorked,omitempty"`
	DateReceived  time.Time  `bson:"dateReceived"`
	DateDelivered *time.Time `bson:"dateDelivered,omitempty"`
	ContactPerson string     `bson:"contactPerson"`
	EndClientName string     `bson:"endClientName"`
	Status        string     `bson:"status"`
	Notes         *string    `bson:"notes,omitempty"`
	CreatedBy     string     `bson:"createdBy"`
	CreatedAt     time.Time  `bson:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt"`
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	EmailLower   string    `bson:"emailLower"`
	PasswordHash string    `bson:"passwordHash"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

// OpenMongo connects to uri with a pooled client and selects database dbName.
func OpenMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Mongo{client: client, database: client.Database(dbName)}, nil
}

// EnsureIndexes creates the status/createdAt index, the text index over the
// searchable fields, and the unique user email index.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.projects().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{
			{Key: "projectName", Value: "text"},
			{Key: "endClientName", Value: "text"},
			{Key: "contactPerson", Value: "text"},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to create projects indexes: %w", err)
	}
	_, err = m.users().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "emailLower", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}
	return nil
}

func (m *Mongo) projects() *mongo.Collection { return m.database.Collection(CollectionProjects) }
func (m *Mongo) users() *mongo.Collection    { return m.database.Collection(CollectionUsers) }

func (m *Mongo) Create(ctx context.Context, p *models.Project) error {
	_, err := m.projects().InsertOne(ctx, toProjectDoc(p))
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrConflict
	}
	return err
}

func (m *Mongo) Get(ctx context.Context, id string) (*models.Project, error) {
	var doc projectDoc
	err := m.projects().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p := doc.toModel()
	return &p, nil
}

func (m *Mongo) Find(ctx context.Context, q models.ProjectQuery) ([]models.Project, error) {
	opts := options.Find().SetSort(mongoSort(effectiveSort(q)))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}

	cursor, err := m.projects().Find(ctx, mongoFilter(q), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []projectDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Project, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (m *Mongo) Update(ctx context.Context, p *models.Project) error {
	res, err := m.projects().ReplaceOne(ctx, bson.M{"_id": p.ID}, toProjectDoc(p))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (m *Mongo) StatusesOf(ctx context.Context, ids []string) (map[string]models.Status, error) {
	cursor, err := m.projects().Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"status": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID     string `bson:"_id"`
		Status string `bson:"status"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make(map[string]models.Status, len(docs))
	for _, d := range docs {
		out[d.ID] = models.Status(d.Status)
	}
	return out, nil
}

// statusCollection is the part of *mongo.Collection a status write needs.
type statusCollection interface {
	UpdateMany(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// UpdateStatus issues one UpdateMany. The modified count comes from the
// server; the ids are read back by the write token stamped on each
// document, which a later write to the same document replaces.
func (m *Mongo) UpdateStatus(ctx context.Context, c StatusChange) (StatusResult, error) {
	return updateStatus(ctx, m.projects(), c, uuid.NewString())
}

func updateStatus(ctx context.Context, coll statusCollection, c StatusChange, token string) (StatusResult, error) {
	at := c.At.UTC().Truncate(time.Millisecond)
	ids := dedupe(c.IDs)

	statusCond := bson.M{"$ne": string(c.To)}
	if c.From != nil {
		from := make([]string, len(c.From))
		for i, st := range c.From {
			from[i] = string(st)
		}
		statusCond["$in"] = from
	}

	res, err := coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "status": statusCond},
		bson.M{"$set": bson.M{"status": string(c.To), "updatedAt": at, "statusWrite": token}})
	if err != nil {
		return StatusResult{}, fmt.Errorf("failed to update project statuses: %w", err)
	}
	out := StatusResult{Modified: int(res.ModifiedCount), IDs: []string{}}
	if out.Modified == 0 {
		return out, nil
	}

	cursor, err := coll.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "statusWrite": token},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return out, fmt.Errorf("failed to read back status write: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return out, fmt.Errorf("failed to read back status write: %w", err)
	}
	for _, d := range docs {
		out.IDs = append(out.IDs, d.ID)
	}
	return out, nil
}

func (m *Mongo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := m.projects().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var groups []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(groups))
	for _, g := range groups {
		out[g.Status] = g.Count
	}
	return out, nil
}

func (m *Mongo) SumHours(ctx context.Context) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"hoursWorked": bson.M{"$exists": true, "$ne": nil}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$hoursWorked"}}}},
	}
	cursor, err := m.projects().Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) CreateUser(ctx context.Context, u *models.User) error {
	_, err := m.users().InsertOne(ctx, userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		EmailLower:   strings.ToLower(u.Email),
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrConflict
	}
	return err
}

func (m *Mongo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.findUser(ctx, bson.M{"emailLower": strings.ToLower(email)})
}

func (m *Mongo) UserByID(ctx context.Context, id string) (*models.User, error) {
	return m.findUser(ctx, bson.M{"_id": id})
}

func (m *Mongo) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	err := m.users().FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &models.User{
		ID:           doc.ID,
		Name:         doc.Name,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

// mongoFilter translates a listing query. Search is a case-insensitive
// substring match OR'ed across the three searchable fields.
func mongoFilter(q models.ProjectQuery) bson.M {
	filter := bson.M{}
	if q.Status != "" {
		filter["status"] = string(q.Status)
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"projectName": re},
			bson.M{"endClientName": re},
			bson.M{"contactPerson": re},
		}
	}
	return filter
}

func mongoSort(fields []models.SortField) bson.D {
	d := make(bson.D, 0, len(fields)+1)
	for _, f := range fields {
		dir := 1
		if f.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: f.Field, Value: dir})
	}
	return append(d, bson.E{Key: "_id", Value: 1})
}

func toProjectDoc(p *models.Project) projectDoc {
	doc := projectDoc{
		ID:            p.ID,
		ProjectName:   p.ProjectName,
		ProjectType:   string(p.ProjectType),
		HoursWorked:   p.HoursWorked,
		DateReceived:  p.DateReceived.Time,
		ContactPerson: p.ContactPerson,
		EndClientName: p.EndClientName,
		Status:        string(p.Status),
		Notes:         p.Notes,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Category != nil && *p.Category != "" {
		c := string(*p.Category)
		doc.Category = &c
	}
	if p.DateDelivered != nil && !p.DateDelivered.IsZero() {
		t := p.DateDelivered.Time
		doc.DateDelivered = &t
	}
	return doc
}

func (d projectDoc) toModel() models.Project {
	p := models.Project{
		ID:            d.ID,
		ProjectName:   d.ProjectName,
		ProjectType:   models.ProjectType(d.ProjectType),
		HoursWorked:   d.HoursWorked,
		DateReceived:  models.NewDate(d.DateReceived),
		ContactPerson: d.ContactPerson,
		EndClientName: d.EndClientName,
		Status:        models.Status(d.Status),
		Notes:         d.Notes,
		CreatedBy:     d.CreatedBy,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if d.Category != nil {
		c := models.Category(*d.Category)
		p.Category = &c
	}
	if d.DateDelivered != nil {
		dd := models.NewDate(*d.DateDelivered)
		p.DateDelivered = &dd
	}
	return p
}
