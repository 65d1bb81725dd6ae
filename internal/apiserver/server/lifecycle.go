package server

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Lifecycle 进程级生命周期对象
//
// 启动时构造一次，信号监听只注册一次；Shutdown 幂等，
// 重复的终止信号不会重复触发关闭逻辑。
// 关闭处理器按注册的逆序执行（先停入口流量，后关存储）。
type Lifecycle struct {
	mu       sync.Mutex
	handlers []func()

	once sync.Once
	done chan struct{}
}

// NewLifecycle 创建生命周期对象并注册信号监听
func NewLifecycle() *Lifecycle {
	l := &Lifecycle{done: make(chan struct{})}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("[lifecycle] received signal: %v", sig)
		l.Shutdown()
	}()

	return l
}

// OnShutdown 注册关闭处理器
// Shutdown 已经开始后的注册不保证被执行
func (l *Lifecycle) OnShutdown(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, fn)
}

// Shutdown 触发关闭：逆序执行全部处理器，随后放行 Wait
// 幂等：只有第一次调用生效
func (l *Lifecycle) Shutdown() {
	l.once.Do(func() {
		l.mu.Lock()
		handlers := make([]func(), len(l.handlers))
		copy(handlers, l.handlers)
		l.mu.Unlock()

		for i := len(handlers) - 1; i >= 0; i-- {
			handlers[i]()
		}
		close(l.done)
	})
}

// Wait 阻塞直到关闭流程完成
// 进程必须在 Wait 返回后才允许退出
func (l *Lifecycle) Wait() {
	<-l.done
}
