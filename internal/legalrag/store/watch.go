package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/pkg/llm"
)

// CorpusWatcher 监视语料文件，文件变化后重新加载内存索引。
// 监视的是所在目录，编辑器以重命名方式替换文件时同样生效。
type CorpusWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	index    *MemoryIndex
	embedder llm.EmbeddingProvider

	// Debounce 合并连续写入事件的等待时间。
	Debounce time.Duration
}

// NewCorpusWatcher 创建语料监视器。
func NewCorpusWatcher(path string, index *MemoryIndex, embedder llm.EmbeddingProvider) (*CorpusWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve corpus path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create corpus watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch corpus directory: %w", err)
	}
	return &CorpusWatcher{
		watcher:  w,
		path:     abs,
		index:    index,
		embedder: embedder,
		Debounce: 500 * time.Millisecond,
	}, nil
}

// Run 处理文件事件直到 ctx 取消，退出时关闭监视器。
func (w *CorpusWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				timer.Reset(w.Debounce)
			}
			reload = timer.C

		case <-reload:
			reload = nil
			if err := w.Reload(ctx); err != nil {
				logger.Warnw("corpus reload failed, keeping previous index", "path", w.path, "error", err.Error())
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("corpus watcher error", "error", err.Error())
		}
	}
}

// Reload 读取语料文件并替换索引内容。
func (w *CorpusWatcher) Reload(ctx context.Context) error {
	chunks, err := LoadCorpus(ctx, w.path, w.embedder)
	if err != nil {
		return err
	}
	w.index.Replace(chunks...)
	logger.Infow("corpus reloaded", "path", w.path, "chunks", w.index.Len(), "documents", len(w.index.Documents()))
	return nil
}
