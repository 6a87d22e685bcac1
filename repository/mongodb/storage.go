// Package mongodb stores users, lists and tasks as MongoDB documents.
package mongodb

import (
	"context"
	"log"
	"regexp"
	"time"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const queryTimeout = 15 * time.Second

// taskFields maps patch field names to document keys.
var taskFields = map[string]string{
	"title":       "title",
	"completed":   "completed",
	"isImportant": "isImportant",
	"description": "description",
	"priority":    "priority",
	"dueDate":     "dueDate",
	"steps":       "steps",
	"list":        "list",
}

type Storage struct {
	client *mongo.Client
	users  *mongo.Collection
	lists  *mongo.Collection
	tasks  *mongo.Collection
	now    func() time.Time
}

func NewStorage(uri, database string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Println("[ERROR] Failed to configure MongoDB client:", err)
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		log.Println("[ERROR] Failed to connect to MongoDB:", err)
		return nil, err
	}

	db := client.Database(database)
	s := &Storage{
		client: client,
		users:  db.Collection("users"),
		lists:  db.Collection("lists"),
		tasks:  db.Collection("tasks"),
		now:    time.Now,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Println("[SUCCESS] MongoDB connection established")
	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		log.Println("[ERROR] Failed to create users index:", err)
		return err
	}
	if _, err := s.lists.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
	}); err != nil {
		log.Println("[ERROR] Failed to create lists index:", err)
		return err
	}
	if _, err := s.tasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "dueDate", Value: 1}}},
	}); err != nil {
		log.Println("[ERROR] Failed to create tasks indexes:", err)
		return err
	}
	return nil
}

func (s *Storage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// stamp returns the current time at the millisecond precision BSON keeps.
func (s *Storage) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	now := s.stamp()
	doc := *user
	doc.ID = uuid.New().String()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.ErrUserAlreadyExists
		}
		log.Println("[ERROR] Failed to create user:", err)
		return err
	}
	*user = doc
	log.Println("[SUCCESS] User created:", user.ID)
	return nil
}

func (s *Storage) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var user models.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrUserNotFound
		}
		log.Println("[ERROR] Failed to read user:", err)
		return nil, err
	}
	return &user, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Storage) GetUserByResetCode(ctx context.Context, email, code string, now time.Time) (*models.User, error) {
	if code == "" {
		return nil, errors.ErrUserNotFound
	}
	return s.findUser(ctx, bson.M{
		"email":                email,
		"resetPasswordToken":   code,
		"resetPasswordExpires": bson.M{"$gt": now},
	})
}

func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	doc := *user
	doc.UpdatedAt = s.stamp()
	res, err := s.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.ErrUserAlreadyExists
		}
		log.Println("[ERROR] Failed to update user:", err)
		return err
	}
	if res.MatchedCount == 0 {
		return errors.ErrUserNotFound
	}
	user.UpdatedAt = doc.UpdatedAt
	log.Println("[SUCCESS] User updated:", user.ID)
	return nil
}

func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		log.Println("[ERROR] Failed to delete user:", err)
		return err
	}
	if res.DeletedCount == 0 {
		return errors.ErrUserNotFound
	}
	log.Println("[SUCCESS] User deleted:", id)
	return nil
}

func (s *Storage) CreateList(ctx context.Context, list *models.List) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	now := s.stamp()
	doc := *list
	doc.ID = uuid.New().String()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if _, err := s.lists.InsertOne(ctx, doc); err != nil {
		log.Println("[ERROR] Failed to create list:", err)
		return err
	}
	*list = doc
	return nil
}

func (s *Storage) GetLists(ctx context.Context, userID string) ([]models.List, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	cur, err := s.lists.Find(ctx, bson.M{"user": userID}, newestFirst())
	if err != nil {
		log.Println("[ERROR] Failed to query lists:", err)
		return nil, err
	}
	lists := []models.List{}
	if err := cur.All(ctx, &lists); err != nil {
		log.Println("[ERROR] Failed to read lists:", err)
		return nil, err
	}
	return lists, nil
}

func (s *Storage) RenameList(ctx context.Context, userID, id, title string) (*models.List, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var list models.List
	err := s.lists.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user": userID},
		bson.M{"$set": bson.M{"title": title, "updatedAt": s.stamp()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&list)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrListNotFound
		}
		log.Println("[ERROR] Failed to rename list:", err)
		return nil, err
	}
	return &list, nil
}

func (s *Storage) DeleteList(ctx context.Context, userID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := s.lists.DeleteOne(ctx, bson.M{"_id": id, "user": userID})
	if err != nil {
		log.Println("[ERROR] Failed to delete list:", err)
		return err
	}
	if res.DeletedCount == 0 {
		return errors.ErrListNotFound
	}
	return nil
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	now := s.stamp()
	doc := *task
	doc.ID = uuid.New().String()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Steps == nil {
		doc.Steps = []models.Step{}
	}
	if _, err := s.tasks.InsertOne(ctx, doc); err != nil {
		log.Println("[ERROR] Failed to create task:", err)
		return err
	}
	*task = doc
	log.Println("[SUCCESS] Task created:", task.ID)
	return nil
}

func (s *Storage) GetTaskByID(ctx context.Context, userID, id string) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var task models.Task
	if err := s.tasks.FindOne(ctx, bson.M{"_id": id, "user": userID}).Decode(&task); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrTaskNotFound
		}
		log.Println("[ERROR] Failed to read task:", err)
		return nil, err
	}
	normalizeTask(&task)
	return &task, nil
}

func (s *Storage) findTasks(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	cur, err := s.tasks.Find(ctx, filter, opts)
	if err != nil {
		log.Println("[ERROR] Failed to query tasks:", err)
		return nil, err
	}
	tasks := []models.Task{}
	if err := cur.All(ctx, &tasks); err != nil {
		log.Println("[ERROR] Failed to read tasks:", err)
		return nil, err
	}
	for i := range tasks {
		normalizeTask(&tasks[i])
	}
	return tasks, nil
}

func (s *Storage) GetTasks(ctx context.Context, userID string) ([]models.Task, error) {
	return s.findTasks(ctx, bson.M{"user": userID}, newestFirst())
}

func (s *Storage) UpdateTask(ctx context.Context, userID, id string, patch *models.TaskPatch) (*models.Task, error) {
	return s.modifyTask(ctx, userID, id, taskUpdate(patch.Changes(), s.stamp()))
}

func (s *Storage) ToggleImportant(ctx context.Context, userID, id string) (*models.Task, error) {
	toggle := mongo.Pipeline{{{Key: "$set", Value: bson.D{
		{Key: "isImportant", Value: bson.D{{Key: "$not", Value: bson.A{"$isImportant"}}}},
		{Key: "updatedAt", Value: s.stamp()},
	}}}}
	return s.modifyTask(ctx, userID, id, toggle)
}

func (s *Storage) modifyTask(ctx context.Context, userID, id string, update any) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var task models.Task
	err := s.tasks.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user": userID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&task)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrTaskNotFound
		}
		log.Println("[ERROR] Failed to update task:", err)
		return nil, err
	}
	normalizeTask(&task)
	return &task, nil
}

// taskUpdate turns patch changes into a $set/$unset document. A null due
// date removes the field.
func taskUpdate(changes []models.Change, now time.Time) bson.D {
	set := bson.D{}
	unset := bson.D{}
	for _, c := range changes {
		key := taskFields[c.Field]
		if c.Field == "dueDate" && c.Value == nil {
			unset = append(unset, bson.E{Key: key, Value: ""})
			continue
		}
		set = append(set, bson.E{Key: key, Value: c.Value})
	}
	set = append(set, bson.E{Key: "updatedAt", Value: now})

	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	return update
}

func (s *Storage) DeleteTask(ctx context.Context, userID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := s.tasks.DeleteOne(ctx, bson.M{"_id": id, "user": userID})
	if err != nil {
		log.Println("[ERROR] Failed to delete task:", err)
		return err
	}
	if res.DeletedCount == 0 {
		return errors.ErrTaskNotFound
	}
	log.Println("[SUCCESS] Task deleted:", id)
	return nil
}

func (s *Storage) SearchTasks(ctx context.Context, userID, q string) ([]models.Task, error) {
	return s.findTasks(ctx, searchFilter(userID, q), newestFirst())
}

func searchFilter(userID, q string) bson.M {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	return bson.M{
		"user": userID,
		"$or": bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		},
	}
}

func (s *Storage) GetTasksDueBetween(ctx context.Context, userID string, from, to time.Time, incompleteOnly bool) ([]models.Task, error) {
	filter := bson.M{
		"user":    userID,
		"dueDate": bson.M{"$gte": from, "$lte": to},
	}
	if incompleteOnly {
		filter["completed"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "dueDate", Value: 1}, {Key: "createdAt", Value: -1}})
	return s.findTasks(ctx, filter, opts)
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
}

func normalizeTask(t *models.Task) {
	if t.Steps == nil {
		t.Steps = []models.Step{}
	}
}
