// Package jsonl 实现异步 JSONL 文件写入。
// 记录经带缓冲 channel 投递，JSON 编码与文件 I/O 在后台 goroutine 完成，
// Close 时清空队列并落盘。用于 z-score 诊断序列与运行报告。
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Writer 异步 JSONL 写入器
// Write 只负责投递；Close 保证队列内全部记录写入并 flush。
type Writer struct {
	// path 输出文件路径
	path string
	// ch 记录投递通道
	ch chan any

	mu     sync.Mutex
	closed bool

	done     chan struct{}
	writeErr error
}

// NewWriter 创建 JSONL 写入器（追加模式）
// 参数 path: 输出文件路径，父目录不存在时自动创建
// 参数 bufferSize: 投递通道容量
func NewWriter(path string, bufferSize int) (*Writer, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}

	w := &Writer{
		path: path,
		ch:   make(chan any, bufferSize),
		done: make(chan struct{}),
	}

	go w.loop(f)
	return w, nil
}

// Write 异步写入一条记录
// 写入器已关闭时返回错误
func (w *Writer) Write(v any) error {
	if w == nil {
		return fmt.Errorf("writer 为空")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer 已关闭")
	}
	w.ch <- v
	return nil
}

// Close 关闭写入器，清空队列并 flush
// 返回后台写入过程中遇到的首个错误
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return w.writeErr
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	<-w.done
	return w.writeErr
}

// loop 后台写入循环，通道关闭后落盘退出
func (w *Writer) loop(f *os.File) {
	defer close(w.done)
	defer f.Close()

	bw := bufio.NewWriterSize(f, 1<<20)
	keep := func(err error) {
		if err != nil && w.writeErr == nil {
			w.writeErr = err
		}
	}

	for v := range w.ch {
		b, err := json.Marshal(v)
		if err != nil {
			keep(err)
			continue
		}
		if _, err := bw.Write(b); err != nil {
			keep(err)
			continue
		}
		keep(bw.WriteByte('\n'))
	}
	keep(bw.Flush())
}
