package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/suPer8Hu/genie-chat/internal/ai"
	"gorm.io/gorm"
)

var (
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidMessage  = errors.New("thread id, role, and content are required")
	ErrMessageRequired = errors.New("message is required")
)

type Service struct {
	repo              *Repo
	registry          *ai.Registry
	provider          string
	contextWindowSize int
}

func NewService(repo *Repo, registry *ai.Registry, provider string, contextWindowSize int) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	if strings.TrimSpace(provider) == "" {
		provider = defaultProvider
	}
	return &Service{repo: repo, registry: registry, provider: provider, contextWindowSize: contextWindowSize}
}

const defaultProvider = "canned"

func (s *Service) CreateThread(ctx context.Context, userID, title string) (*Thread, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrTitleRequired
	}
	t := &Thread{
		UserID: userID,
		Title:  title,
	}
	if err := s.repo.CreateThread(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) ListThreads(ctx context.Context, userID, query string) ([]Thread, error) {
	return s.repo.ListThreads(ctx, userID, query)
}

func (s *Service) GetThread(ctx context.Context, userID, threadID string) (*Thread, error) {
	return s.repo.GetThread(ctx, userID, threadID)
}

func (s *Service) DeleteThread(ctx context.Context, userID, threadID string) error {
	return s.repo.DeleteThread(ctx, userID, threadID)
}

// ValidateThreadOwner reports gorm.ErrRecordNotFound for absent and foreign threads alike.
func (s *Service) ValidateThreadOwner(ctx context.Context, userID, threadID string) error {
	_, err := s.repo.GetThread(ctx, userID, threadID)
	return err
}

// AppendMessage stores a message of any role in a thread the user owns.
func (s *Service) AppendMessage(ctx context.Context, userID, threadID, role, content string) (*Message, error) {
	if threadID == "" || content == "" || !ValidRole(role) {
		return nil, ErrInvalidMessage
	}
	if err := s.ValidateThreadOwner(ctx, userID, threadID); err != nil {
		return nil, err
	}
	m := &Message{
		ThreadID: threadID,
		UserID:   userID,
		Role:     role,
		Content:  content,
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) ListMessages(ctx context.Context, userID, threadID string) ([]Message, error) {
	if err := s.ValidateThreadOwner(ctx, userID, threadID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, userID, threadID)
}

// Ask answers a single prompt without touching storage.
func (s *Service) Ask(ctx context.Context, prompt, model string) (string, string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", "", ErrMessageRequired
	}
	if model == "" {
		model = ai.DefaultModel
	}
	p, err := s.registry.Get(ctx, s.provider, model)
	if err != nil {
		return "", "", err
	}
	reply, err := p.Chat(ctx, []ai.Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return "", "", err
	}
	return reply, model, nil
}

// SendMessage stores the user message, generates the assistant reply from the
// recent context window, and stores the reply.
func (s *Service) SendMessage(ctx context.Context, userID, threadID, content string) (reply string, assistantMsgID string, err error) {
	if _, err := s.AppendMessage(ctx, userID, threadID, RoleUser, content); err != nil {
		return "", "", err
	}
	return s.GenerateAssistantReplyAndInsert(ctx, userID, threadID)
}

func (s *Service) InsertUserMessageOrGetExisting(ctx context.Context, userID, threadID, content string, key *string) (*Message, bool, error) {
	if err := s.ValidateThreadOwner(ctx, userID, threadID); err != nil {
		return nil, false, err
	}
	return s.repo.InsertUserMessageOrGetExisting(ctx, userID, threadID, content, key)
}

func (s *Service) CreateJob(ctx context.Context, job *Job) error {
	return s.repo.CreateJob(ctx, job)
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.GetJobByID(ctx, jobID)
}

func (s *Service) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	return s.repo.CreateJobOrGetExisting(ctx, job)
}

func (s *Service) GenerateAssistantReplyAndInsert(ctx context.Context, userID, threadID string) (string, string, error) {
	if err := s.ValidateThreadOwner(ctx, userID, threadID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", gorm.ErrRecordNotFound
		}
		return "", "", err
	}

	provider, err := s.registry.Get(ctx, s.provider, ai.DefaultModel)
	if err != nil {
		return "", "", err
	}

	recentDesc, err := s.repo.ListRecentMessagesDesc(ctx, userID, threadID, s.contextWindowSize)
	if err != nil {
		return "", "", err
	}

	// provider expects ASC
	providerMsgs := make([]ai.Message, 0, len(recentDesc))
	for i := len(recentDesc) - 1; i >= 0; i-- {
		m := recentDesc[i]
		providerMsgs = append(providerMsgs, ai.Message{Role: m.Role, Content: m.Content})
	}

	reply, err := provider.Chat(ctx, providerMsgs)
	if err != nil {
		return "", "", err
	}

	assistantMsg := &Message{
		ThreadID: threadID,
		UserID:   userID,
		Role:     RoleAssistant,
		Content:  reply,
	}
	if err := s.repo.InsertMessage(ctx, assistantMsg); err != nil {
		return "", "", err
	}
	return reply, assistantMsg.ID, nil
}

func (s *Service) MarkJobFailed(ctx context.Context, jobID, reason string) error {
	return s.repo.MarkJobFailed(ctx, jobID, reason)
}
