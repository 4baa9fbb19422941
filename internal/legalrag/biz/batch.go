package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/pkg/errors"
	"github.com/kart-io/legal-rag/pkg/infra/pool"
)

// maxBatchParallelism 单个批量任务允许的最大并发数。
const maxBatchParallelism = 32

// AskFunc 执行单个问题的完整问答流程。
type AskFunc func(ctx context.Context, question string, settings BatchSettings) (*RAGAnswer, error)

// BatchConfig 批量问答默认值。
type BatchConfig struct {
	MaxParallelism int
	ItemTimeout    time.Duration
	// Deadline 整个批次的截止时间，0 表示不限制。
	Deadline     time.Duration
	MaxQuestions int
}

// DefaultBatchConfig 返回默认配置。
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		MaxParallelism: 3,
		ItemTimeout:    30 * time.Second,
		Deadline:       5 * time.Minute,
		MaxQuestions:   50,
	}
}

// BatchOrchestrator 使用每批一个的有界工作池并发处理问题。
// 每个问题的结果写入与输入下标相同的槽位，因此输出顺序与输入一致。
type BatchOrchestrator struct {
	ask    AskFunc
	config *BatchConfig
	newID  func() string
	now    func() time.Time
}

// NewBatchOrchestrator 创建批量编排器。
func NewBatchOrchestrator(ask AskFunc, config *BatchConfig) *BatchOrchestrator {
	if config == nil {
		config = DefaultBatchConfig()
	}
	return &BatchOrchestrator{
		ask:    ask,
		config: config,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

type askResult struct {
	answer *RAGAnswer
	err    error
}

// batchRun 保存一次批量执行的共享状态，所有写操作都在 mu 保护下进行。
type batchRun struct {
	mu        sync.Mutex
	job       *BatchJob
	started   []time.Time
	finalized bool
	lastDone  time.Time
}

// Run 执行批量问答。单项失败或超时不影响其他项；批次截止时间到达时，
// 未完成的项标记为 timed_out 并立即返回。
func (b *BatchOrchestrator) Run(ctx context.Context, questions []string, settings BatchSettings) (*BatchJob, error) {
	if len(questions) == 0 {
		return nil, errors.ErrInvalidBatchSettings.WithMessage("questions must not be empty")
	}
	if b.config.MaxQuestions > 0 && len(questions) > b.config.MaxQuestions {
		return nil, errors.ErrInvalidBatchSettings.WithMessagef(
			"batch has %d questions, at most %d are allowed", len(questions), b.config.MaxQuestions)
	}
	settings, err := b.resolve(settings)
	if err != nil {
		return nil, err
	}

	start := b.now()
	run := &batchRun{
		job: &BatchJob{
			ID:        b.newID(),
			Settings:  settings,
			Items:     make([]BatchItemResult, len(questions)),
			StartedAt: start,
		},
		started:  make([]time.Time, len(questions)),
		lastDone: start,
	}
	for i, q := range questions {
		run.job.Items[i] = BatchItemResult{Index: i, Question: q, Status: ItemPending}
	}

	parallelism := min(settings.MaxParallelism, len(questions))
	p, err := pool.NewPool("batch-"+run.job.ID, pool.BatchPool, pool.BatchPoolConfig(parallelism))
	if err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}
	defer p.Release()

	var (
		batchCtx context.Context
		cancel   context.CancelFunc
	)
	if settings.Deadline > 0 {
		batchCtx, cancel = context.WithTimeout(ctx, settings.Deadline)
	} else {
		batchCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	logger.Infow("batch job started",
		"job_id", run.job.ID,
		"questions", len(questions),
		"parallelism", parallelism,
		"item_timeout", settings.ItemTimeout.String(),
	)

	var wg sync.WaitGroup
	wg.Add(len(questions))
	go func() {
		for i := range questions {
			err := p.Submit(func() {
				defer wg.Done()
				if batchCtx.Err() != nil {
					return
				}
				b.runItem(batchCtx, run, i, settings)
			})
			if err != nil {
				// 池已关闭，剩余的项不会再执行
				for k := i; k < len(questions); k++ {
					wg.Done()
				}
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-batchCtx.Done():
	}
	b.finalize(run, batchCtx.Err())

	job := run.job
	logger.Infow("batch job finished",
		"job_id", job.ID,
		"succeeded", job.Summary.Succeeded,
		"failed", job.Summary.Failed,
		"timed_out", job.Summary.TimedOut,
		"wall_time", job.Summary.WallTime.String(),
	)
	return job, nil
}

func (b *BatchOrchestrator) runItem(batchCtx context.Context, run *batchRun, i int, settings BatchSettings) {
	run.mu.Lock()
	if run.finalized {
		run.mu.Unlock()
		return
	}
	started := b.now()
	run.job.Items[i].Status = ItemProcessing
	run.started[i] = started
	question := run.job.Items[i].Question
	run.mu.Unlock()

	itemCtx, cancel := context.WithTimeout(batchCtx, settings.ItemTimeout)
	defer cancel()

	// ask 在独立 goroutine 中运行，超时后工作者立即释放，迟到的结果被丢弃
	resCh := make(chan askResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("batch item panic recovered", "index", i, "panic", r)
				resCh <- askResult{err: fmt.Errorf("question processing panicked: %v", r)}
			}
		}()
		a, err := b.ask(itemCtx, question, settings)
		resCh <- askResult{answer: a, err: err}
	}()

	var (
		res      askResult
		received bool
	)
	select {
	case res = <-resCh:
		received = true
	case <-itemCtx.Done():
		// select 随机挑选就绪分支，已送达的结果优先
		select {
		case res = <-resCh:
			received = true
		default:
		}
	}
	status, msg := itemOutcome(res, received, batchCtx.Err(), itemCtx.Err(), settings.ItemTimeout)

	end := b.now()
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.finalized {
		return
	}
	item := &run.job.Items[i]
	item.Status = status
	item.Error = msg
	item.Duration = end.Sub(started)
	if status == ItemSucceeded {
		item.Answer = res.answer
	}
	if end.After(run.lastDone) {
		run.lastDone = end
	}
}

// itemOutcome 决定单项的终态。已收到的成功结果优先于同时到达的超时；
// 收到的错误若由上下文结束引起，按超时或取消处理。
func itemOutcome(res askResult, received bool, batchErr, itemErr error, itemTimeout time.Duration) (ItemStatus, string) {
	switch {
	case received && res.err == nil:
		return ItemSucceeded, ""
	case !received, itemErr != nil:
		return timeoutStatus(batchErr, itemErr, itemTimeout)
	default:
		return ItemFailed, res.err.Error()
	}
}

// timeoutStatus 区分单项超时、批次截止和调用方取消。
func timeoutStatus(batchErr, itemErr error, itemTimeout time.Duration) (ItemStatus, string) {
	switch {
	case stderrors.Is(batchErr, context.Canceled):
		return ItemFailed, "batch cancelled"
	case stderrors.Is(batchErr, context.DeadlineExceeded):
		return ItemTimedOut, "batch deadline exceeded"
	case stderrors.Is(itemErr, context.DeadlineExceeded):
		return ItemTimedOut, errors.ErrItemTimeout.WithMessagef("question timed out after %s", itemTimeout).Error()
	default:
		return ItemFailed, itemErr.Error()
	}
}

// finalize 把未结束的项置为终态并计算汇总。
func (b *BatchOrchestrator) finalize(run *batchRun, batchErr error) {
	run.mu.Lock()
	defer run.mu.Unlock()

	now := b.now()
	job := run.job
	for i := range job.Items {
		item := &job.Items[i]
		if item.Status != ItemPending && item.Status != ItemProcessing {
			continue
		}
		if item.Status == ItemProcessing && !run.started[i].IsZero() {
			item.Duration = now.Sub(run.started[i])
		}
		item.Status, item.Error = timeoutStatus(batchErr, context.DeadlineExceeded, job.Settings.ItemTimeout)
		run.lastDone = now
	}
	run.finalized = true

	s := BatchSummary{Total: len(job.Items)}
	for _, item := range job.Items {
		switch item.Status {
		case ItemSucceeded:
			s.Succeeded++
		case ItemFailed:
			s.Failed++
		case ItemTimedOut:
			s.TimedOut++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(s.Total)
	}
	s.WallTime = run.lastDone.Sub(job.StartedAt)
	s.CommonThemes = commonThemes(job.Items)

	job.Summary = s
	job.CompletedAt = run.lastDone
}

// resolve 用默认值补全零值参数，负值视为非法。
func (b *BatchOrchestrator) resolve(s BatchSettings) (BatchSettings, error) {
	if s.MaxParallelism < 0 || s.ItemTimeout < 0 || s.Deadline < 0 {
		return s, errors.ErrInvalidBatchSettings.WithMessage("batch settings must not be negative")
	}
	if s.MaxParallelism > maxBatchParallelism {
		return s, errors.ErrInvalidBatchSettings.WithMessagef("max parallelism must not exceed %d", maxBatchParallelism)
	}
	if s.MaxParallelism == 0 {
		s.MaxParallelism = b.config.MaxParallelism
	}
	if s.ItemTimeout == 0 {
		s.ItemTimeout = b.config.ItemTimeout
	}
	if s.Deadline == 0 {
		s.Deadline = b.config.Deadline
	}
	if s.MaxParallelism <= 0 || s.ItemTimeout <= 0 {
		return s, errors.ErrInvalidBatchSettings.WithMessage("max parallelism and item timeout must be positive")
	}
	return s, nil
}

// commonThemes 返回在至少两个成功答案的关键概念中出现的概念，按次数降序、名称升序。
func commonThemes(items []BatchItemResult) []Theme {
	counts := make(map[string]int)
	for _, item := range items {
		if item.Status != ItemSucceeded || item.Answer == nil || item.Answer.LegalAnalysis == nil {
			continue
		}
		seen := make(map[string]struct{})
		for _, c := range item.Answer.LegalAnalysis.KeyConcepts {
			c = strings.TrimSpace(c)
			if _, ok := seen[c]; ok || c == "" {
				continue
			}
			seen[c] = struct{}{}
			counts[c]++
		}
	}

	themes := []Theme{}
	for c, n := range counts {
		if n >= 2 {
			themes = append(themes, Theme{Concept: c, Count: n})
		}
	}
	sort.Slice(themes, func(i, j int) bool {
		if themes[i].Count != themes[j].Count {
			return themes[i].Count > themes[j].Count
		}
		return themes[i].Concept < themes[j].Concept
	})
	return themes
}
