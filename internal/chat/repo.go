package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/suPer8Hu/genie-chat/internal/common"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateThread(ctx context.Context, t *Thread) error {
	if t.ID == "" {
		id, err := common.NewULID()
		if err != nil {
			return err
		}
		t.ID = id
	}
	return r.db.WithContext(ctx).Create(t).Error
}

// GetThread returns gorm.ErrRecordNotFound both when the thread is absent and
// when it belongs to another user.
func (r *Repo) GetThread(ctx context.Context, userID, threadID string) (*Thread, error) {
	var t Thread
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", threadID, userID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ListThreads returns the user's threads, most recently updated first.
// A non-empty query filters by case-insensitive title substring.
func (r *Repo) ListThreads(ctx context.Context, userID, query string) ([]Thread, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id DESC")

	if query = strings.TrimSpace(query); query != "" {
		q = q.Where("LOWER(title) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(query))+"%")
	}

	threads := make([]Thread, 0)
	if err := q.Find(&threads).Error; err != nil {
		return nil, err
	}
	return threads, nil
}

// DeleteThread removes the thread and its messages.
func (r *Repo) DeleteThread(ctx context.Context, userID, threadID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", threadID, userID).Delete(&Thread{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("thread_id = ?", threadID).Delete(&Message{}).Error
	})
}

// InsertMessage stores m and bumps the parent thread's message count and
// updated timestamp in the same transaction.
func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		id, err := common.NewULID()
		if err != nil {
			return err
		}
		m.ID = id
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		res := tx.Model(&Thread{}).
			Where("id = ? AND user_id = ?", m.ThreadID, m.UserID).
			Updates(map[string]any{
				"message_count": gorm.Expr("message_count + ?", 1),
				"updated_at":    m.CreatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ListMessages returns a thread's messages in ascending creation order.
func (r *Repo) ListMessages(ctx context.Context, userID, threadID string) ([]Message, error) {
	msgs := make([]Message, 0)
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND thread_id = ?", userID, threadID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListRecentMessagesDesc returns the most recent messages, newest first.
func (r *Repo) ListRecentMessagesDesc(ctx context.Context, userID, threadID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND thread_id = ?", userID, threadID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// InsertUserMessageOrGetExisting is InsertMessage keyed by (user, thread, key):
// a retried request returns the message stored by the first attempt.
func (r *Repo) InsertUserMessageOrGetExisting(ctx context.Context, userID, threadID, content string, key *string) (*Message, bool, error) {
	m := &Message{
		ThreadID:       threadID,
		UserID:         userID,
		Role:           RoleUser,
		Content:        content,
		IdempotencyKey: key,
	}
	err := r.InsertMessage(ctx, m)
	if err == nil {
		return m, true, nil
	}
	if key == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	var existing Message
	getErr := r.db.WithContext(ctx).
		Where("user_id = ? AND thread_id = ? AND idempotency_key = ?", userID, threadID, *key).
		First(&existing).Error
	if getErr == nil {
		return &existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, assistantMsgID string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobSucceeded,
			"result_message_id": assistantMsgID,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID string, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting creates job, or returns the job already stored under
// the same (user_id, idempotency_key).
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}

	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
