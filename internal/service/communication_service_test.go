package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edulink/lms-api/internal/models"
	appErrors "github.com/edulink/lms-api/pkg/errors"
)

type mockCommRepo struct {
	byID       map[string]*models.Communication
	created    []*models.Communication
	replies    []*models.Communication
	flipped    []string
	marked     []string
	unread     int
	recipients []models.CommunicationDetail
}

func newMockCommRepo() *mockCommRepo {
	return &mockCommRepo{byID: map[string]*models.Communication{}}
}

func (m *mockCommRepo) FindByID(ctx context.Context, id string) (*models.Communication, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (m *mockCommRepo) Create(ctx context.Context, comm *models.Communication) error {
	comm.ID = "created"
	m.created = append(m.created, comm)
	return nil
}

func (m *mockCommRepo) CreateReply(ctx context.Context, reply *models.Communication, originalID string) error {
	reply.ID = "reply"
	m.replies = append(m.replies, reply)
	m.flipped = append(m.flipped, originalID)
	if orig, ok := m.byID[originalID]; ok {
		orig.Status = models.CommunicationRead
	}
	return nil
}

func (m *mockCommRepo) MarkRead(ctx context.Context, id string) error {
	m.marked = append(m.marked, id)
	if c, ok := m.byID[id]; ok {
		c.Status = models.CommunicationRead
	}
	return nil
}

func (m *mockCommRepo) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]models.CommunicationDetail, error) {
	return m.recipients, nil
}

func (m *mockCommRepo) ListBySender(ctx context.Context, senderID string) ([]models.CommunicationDetail, error) {
	return nil, nil
}

func (m *mockCommRepo) ListForSubjectRecipient(ctx context.Context, subjectID, recipientID string) ([]models.CommunicationDetail, error) {
	return nil, nil
}

func (m *mockCommRepo) ListBetween(ctx context.Context, userID, otherID string) ([]models.CommunicationDetail, error) {
	var comms []models.CommunicationDetail
	for _, c := range m.byID {
		if c.RecipientID == nil {
			continue
		}
		fromActor := c.SenderID == userID && *c.RecipientID == otherID
		toActor := c.SenderID == otherID && *c.RecipientID == userID
		if fromActor || toActor {
			comms = append(comms, models.CommunicationDetail{Communication: *c})
		}
	}
	return comms, nil
}

func (m *mockCommRepo) ListThread(ctx context.Context, rootID string) ([]models.CommunicationDetail, error) {
	var thread []models.CommunicationDetail
	if root, ok := m.byID[rootID]; ok {
		thread = append(thread, models.CommunicationDetail{Communication: *root})
	}
	for _, c := range m.byID {
		if c.ParentID != nil && *c.ParentID == rootID {
			thread = append(thread, models.CommunicationDetail{Communication: *c})
		}
	}
	return thread, nil
}

func (m *mockCommRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	return m.unread, nil
}

type mockKVCache struct {
	values  map[string][]byte
	deleted []string
}

func newMockKVCache() *mockKVCache {
	return &mockKVCache{values: map[string][]byte{}}
}

func (m *mockKVCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockKVCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *mockKVCache) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.values, key)
	return nil
}

func newCommFixture() (*CommunicationService, *mockCommRepo, *mockKVCache, *mockQueue) {
	comms := newMockCommRepo()
	subjects := &mockSubjectFinder{subjects: map[string]*models.Subject{
		"sub-1": {ID: "sub-1", Name: "Mathematics", ClassID: "c-1", TeacherID: "t-1"},
	}}
	users := newMockUserRepo()
	users.add(&models.User{ID: "s-1", Name: "Ana", Email: "ana@example.com", Role: models.RoleStudent, Status: models.StatusApproved})
	users.add(&models.User{ID: "t-1", Name: "Mr. Diaz", Email: "diaz@example.com", Role: models.RoleTeacher, Status: models.StatusApproved})
	cache := newMockKVCache()
	queue := &mockQueue{}
	svc := NewCommunicationService(comms, subjects, users, cache, queue, NewMetricsService(), validator.New(), zap.NewNop(), time.Minute)
	return svc, comms, cache, queue
}

func approvedStudentIn(classID string) *models.User {
	return &models.User{ID: "s-1", Role: models.RoleStudent, Status: models.StatusApproved, ClassID: &classID}
}

func TestSendQuery(t *testing.T) {
	svc, comms, _, _ := newCommFixture()

	t.Run("addressed to subject teacher", func(t *testing.T) {
		comm, err := svc.SendQuery(context.Background(), approvedStudentIn("c-1"), SendQueryRequest{SubjectID: "sub-1", Message: "When is the test?"})
		require.NoError(t, err)
		require.NotNil(t, comm.RecipientID)
		assert.Equal(t, "t-1", *comm.RecipientID)
		require.NotNil(t, comm.ClassID)
		assert.Equal(t, "c-1", *comm.ClassID)
		assert.Equal(t, models.CommunicationUnread, comm.Status)
		assert.Len(t, comms.created, 1)
	})

	t.Run("other class forbidden", func(t *testing.T) {
		_, err := svc.SendQuery(context.Background(), approvedStudentIn("c-2"), SendQueryRequest{SubjectID: "sub-1", Message: "Hi"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	})

	t.Run("unknown subject not found", func(t *testing.T) {
		_, err := svc.SendQuery(context.Background(), approvedStudentIn("c-1"), SendQueryRequest{SubjectID: "missing", Message: "Hi"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	})
}

func TestReply(t *testing.T) {
	recipient := "t-1"
	subjectID := "sub-1"

	t.Run("reply links parent and flips original", func(t *testing.T) {
		svc, comms, cache, queue := newCommFixture()
		comms.byID["comm-1"] = &models.Communication{ID: "comm-1", SenderID: "s-1", RecipientID: &recipient, SubjectID: &subjectID, Message: "Q", Status: models.CommunicationUnread}

		teacher := &models.User{ID: "t-1", Role: models.RoleTeacher, Name: "Mr. Diaz"}
		reply, err := svc.Reply(context.Background(), teacher, "comm-1", ReplyRequest{Message: "Next Friday."})
		require.NoError(t, err)
		require.NotNil(t, reply.ParentID)
		assert.Equal(t, "comm-1", *reply.ParentID)
		require.NotNil(t, reply.RecipientID)
		assert.Equal(t, "s-1", *reply.RecipientID)
		assert.Equal(t, []string{"comm-1"}, comms.flipped)
		assert.Equal(t, models.CommunicationRead, comms.byID["comm-1"].Status)
		assert.Contains(t, cache.deleted, "unread_count:s-1")
		require.Len(t, queue.jobs, 1)
	})

	t.Run("non-recipient forbidden", func(t *testing.T) {
		svc, comms, _, _ := newCommFixture()
		comms.byID["comm-1"] = &models.Communication{ID: "comm-1", SenderID: "s-1", RecipientID: &recipient, Message: "Q", Status: models.CommunicationUnread}

		other := &models.User{ID: "t-2", Role: models.RoleTeacher}
		_, err := svc.Reply(context.Background(), other, "comm-1", ReplyRequest{Message: "Hi"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
		assert.Empty(t, comms.replies)
	})
}

func TestMarkRead(t *testing.T) {
	recipient := "s-1"

	t.Run("recipient flips unread", func(t *testing.T) {
		svc, comms, cache, _ := newCommFixture()
		comms.byID["comm-1"] = &models.Communication{ID: "comm-1", SenderID: "t-1", RecipientID: &recipient, Status: models.CommunicationUnread}

		err := svc.MarkRead(context.Background(), approvedStudentIn("c-1"), "comm-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"comm-1"}, comms.marked)
		assert.Contains(t, cache.deleted, "unread_count:s-1")
	})

	t.Run("already read is a no-op", func(t *testing.T) {
		svc, comms, _, _ := newCommFixture()
		comms.byID["comm-1"] = &models.Communication{ID: "comm-1", SenderID: "t-1", RecipientID: &recipient, Status: models.CommunicationRead}

		err := svc.MarkRead(context.Background(), approvedStudentIn("c-1"), "comm-1")
		require.NoError(t, err)
		assert.Empty(t, comms.marked)
	})

	t.Run("another user's notification looks absent", func(t *testing.T) {
		svc, comms, _, _ := newCommFixture()
		comms.byID["comm-1"] = &models.Communication{ID: "comm-1", SenderID: "t-1", RecipientID: &recipient, Status: models.CommunicationUnread}

		intruder := approvedStudentIn("c-1")
		intruder.ID = "s-2"
		err := svc.MarkRead(context.Background(), intruder, "comm-1")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	})
}

func TestUnreadCountCaching(t *testing.T) {
	svc, comms, cache, _ := newCommFixture()
	comms.unread = 4
	actor := approvedStudentIn("c-1")

	count, err := svc.UnreadCount(context.Background(), actor)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	comms.unread = 9
	count, err = svc.UnreadCount(context.Background(), actor)
	require.NoError(t, err)
	assert.Equal(t, 4, count, "second read served from cache")

	require.NoError(t, cache.Delete(context.Background(), "unread_count:s-1"))
	count, err = svc.UnreadCount(context.Background(), actor)
	require.NoError(t, err)
	assert.Equal(t, 9, count)
}

func TestThreadVisibility(t *testing.T) {
	svc, comms, _, _ := newCommFixture()
	recipient := "t-1"
	parent := "comm-1"
	comms.byID["comm-1"] = &models.Communication{ID: "comm-1", SenderID: "s-1", RecipientID: &recipient, Message: "Q", Status: models.CommunicationRead}
	studentRef := "s-1"
	comms.byID["comm-2"] = &models.Communication{ID: "comm-2", SenderID: "t-1", RecipientID: &studentRef, Message: "A", Status: models.CommunicationUnread, ParentID: &parent}

	t.Run("participant sees thread", func(t *testing.T) {
		thread, err := svc.Thread(context.Background(), approvedStudentIn("c-1"), "comm-1")
		require.NoError(t, err)
		assert.Len(t, thread, 2)
	})

	t.Run("outsider sees not found", func(t *testing.T) {
		outsider := approvedStudentIn("c-1")
		outsider.ID = "s-9"
		_, err := svc.Thread(context.Background(), outsider, "comm-1")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	})
}

func TestConversationWith(t *testing.T) {
	svc, comms, _, _ := newCommFixture()
	student := "s-1"
	teacher := "t-1"
	other := "t-2"
	comms.byID["a"] = &models.Communication{ID: "a", SenderID: student, RecipientID: &teacher, Message: "Q"}
	comms.byID["b"] = &models.Communication{ID: "b", SenderID: teacher, RecipientID: &student, Message: "A"}
	comms.byID["c"] = &models.Communication{ID: "c", SenderID: other, RecipientID: &student, Message: "unrelated"}

	t.Run("both directions, other senders excluded", func(t *testing.T) {
		list, err := svc.ConversationWith(context.Background(), approvedStudentIn("c-1"), "t-1")
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("unknown user not found", func(t *testing.T) {
		_, err := svc.ConversationWith(context.Background(), approvedStudentIn("c-1"), "ghost")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	})

	t.Run("pending student denied", func(t *testing.T) {
		pending := &models.User{ID: "s-9", Role: models.RoleStudent, Status: models.StatusPending}
		_, err := svc.ConversationWith(context.Background(), pending, "t-1")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrPendingApproval.Code, appErrors.FromError(err).Code)
	})
}
