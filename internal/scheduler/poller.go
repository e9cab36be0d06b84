// Package scheduler runs the background loop that moves due posts through
// publication. Claims are conditional updates, so multiple instances can poll
// the same store without double-publishing.
package scheduler

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/Geotechcompany/synovora/internal/models"
	"github.com/Geotechcompany/synovora/internal/repository"
	"github.com/Geotechcompany/synovora/internal/service"
)

type Poller struct {
	pr        repository.PostRepository
	posts     service.PostService
	interval  time.Duration
	batchSize int
}

func New(pr repository.PostRepository, posts service.PostService, interval time.Duration, batchSize int) *Poller {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Poller{
		pr:        pr,
		posts:     posts,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until the context is cancelled. Ticks against a store without
// conditional updates are no-ops; publishing then only happens through the
// explicit publish endpoint.
func (p *Poller) Run(ctx context.Context) {
	if !p.pr.ConditionalUpdates() {
		log.Println("store does not support conditional updates, scheduler will idle")
	}

	log.Printf("scheduler polling every %s", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick processes one batch. A panic in one cycle must not kill the loop.
func (p *Poller) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler tick panicked", "panic", r)
		}
	}()

	// Without guarded claims a cycle cannot publish safely.
	if !p.pr.ConditionalUpdates() {
		return
	}

	due, err := p.pr.ListDue(ctx, time.Now().UTC(), p.batchSize)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, post := range due {
		if ctx.Err() != nil {
			return
		}
		p.process(ctx, post)
	}
}

func (p *Poller) process(ctx context.Context, post *models.Post) {
	publishing := models.PostStatusPublishing
	affected, err := p.pr.UpdateIfStatus(ctx, post.ID, models.PostStatusScheduled, repository.PostPatch{
		Status:       &publishing,
		BumpAttempts: true,
	})
	if err != nil {
		slog.Info("claim failed", "post_id", post.ID, "error", err.Error())
		return
	}
	if affected == 0 {
		// Another instance got there first.
		return
	}

	claimed, err := p.pr.GetByID(ctx, post.ID)
	if err != nil || claimed == nil {
		slog.Info("claimed post could not be reloaded", "post_id", post.ID)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	result, err := p.posts.PublishClaimed(publishCtx, claimed)
	if err != nil {
		slog.Info("publish attempt errored", "post_id", post.ID, "error", err.Error())
		return
	}
	if result != nil && result.Status == models.PostStatusPublished {
		slog.Info("post published", "post_id", post.ID)
	}
}
