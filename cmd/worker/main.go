package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/genie-chat/internal/ai"
	"github.com/suPer8Hu/genie-chat/internal/chat"
	"github.com/suPer8Hu/genie-chat/internal/config"
	"github.com/suPer8Hu/genie-chat/internal/db"
	"github.com/suPer8Hu/genie-chat/internal/logging"
	"github.com/suPer8Hu/genie-chat/internal/store/rabbitmq"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log := logging.Must(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	gdb := db.Connect(cfg.DBDSN, log)
	repo := chat.NewRepo(gdb)
	svc := chat.NewService(repo, ai.NewDefaultRegistry(cfg.AssistantDelay), cfg.AIProvider, 20)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal("rabbit dial", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("rabbit channel", zap.Error(err))
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		log.Fatal("queue declare", zap.Error(err))
	}

	//  strict concurrency control
	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal("qos", zap.Error(err))
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal("consume", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker started", zap.String("queue", cfg.RabbitQueue), zap.Int("concurrency", concurrency))

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With(zap.Int("worker", workerID))
			for d := range jobs {
				jobID, err := rabbitmq.DecodeJob(d.Body)
				if err != nil {
					wlog.Warn("bad message", zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleJob(ctx, svc, repo, jobID, wlog); err != nil {
					wlog.Error("job failed", zap.String("job_id", jobID), zap.Duration("cost", time.Since(start)), zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					wlog.Error("ack failed", zap.String("job_id", jobID), zap.Error(err))
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}

// replyStore is the slice of *chat.Repo a job needs beyond the service.
type replyStore interface {
	UpdateJobStatusRunning(ctx context.Context, id string) error
	GetJobByID(ctx context.Context, id string) (*chat.Job, error)
	MarkJobSucceeded(ctx context.Context, id, assistantMsgID string) error
	MarkJobFailed(ctx context.Context, id, errMsg string) error
}

type replyGenerator interface {
	GenerateAssistantReplyAndInsert(ctx context.Context, userID, threadID string) (string, string, error)
}

func handleJob(ctx context.Context, svc replyGenerator, repo replyStore, jobID string, log *zap.Logger) error {
	jobStart := time.Now()

	_ = repo.UpdateJobStatusRunning(ctx, jobID)

	j, err := repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	t := time.Now()
	_, assistantMsgID, err := svc.GenerateAssistantReplyAndInsert(ctx, j.UserID, j.ThreadID)
	genCost := time.Since(t)
	if err != nil {
		_ = repo.MarkJobFailed(ctx, jobID, err.Error())
		log.Warn("job_timing_failed", zap.String("job_id", jobID), zap.Duration("gen", genCost), zap.Duration("total", time.Since(jobStart)), zap.Error(err))
		return err
	}

	if err := repo.MarkJobSucceeded(ctx, jobID, assistantMsgID); err != nil {
		return err
	}

	if total := time.Since(jobStart); total > 2*time.Second {
		log.Info("job_timing", zap.String("job_id", jobID), zap.Duration("gen", genCost), zap.Duration("total", total))
	}
	return nil
}
