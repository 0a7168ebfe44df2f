package progress

import (
	"errors"
	"sync"

	"MixFM/logger"
	"MixFM/model"
)

// ErrUnknownTask 订阅不存在的任务
var ErrUnknownTask = errors.New("unknown task")

// subscriberBuffer 订阅通道缓冲大小，写满即丢弃，慢消费者不能阻塞生产者
const subscriberBuffer = 16

// Broadcaster 把批量任务的进度事件扇出给任意数量的订阅者
// 单生产者（一次批量运行）对多消费者（SSE / WebSocket 连接），
// 终止事件后任务状态整体丢弃
type Broadcaster struct {
	mu    sync.Mutex
	tasks map[string]*taskState
}

type taskState struct {
	subs map[chan model.ProgressEvent]struct{}
	done bool
}

// NewBroadcaster 创建 Broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		tasks: make(map[string]*taskState),
	}
}

// StartTask 注册一个新任务，之后才能订阅
func (b *Broadcaster) StartTask(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.tasks[taskID]; !exists {
		b.tasks[taskID] = &taskState{
			subs: make(map[chan model.ProgressEvent]struct{}),
		}
	}
}

// Has 任务是否存在
func (b *Broadcaster) Has(taskID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, exists := b.tasks[taskID]
	return exists
}

// Subscribe 订阅任务的进度事件流
// 返回事件通道和取消函数；任务不存在时返回 ErrUnknownTask
// 任务终止时通道会被关闭
func (b *Broadcaster) Subscribe(taskID string) (<-chan model.ProgressEvent, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	task, exists := b.tasks[taskID]
	if !exists {
		return nil, nil, ErrUnknownTask
	}

	ch := make(chan model.ProgressEvent, subscriberBuffer)
	task.subs[ch] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if task, exists := b.tasks[taskID]; exists {
			if _, ok := task.subs[ch]; ok {
				delete(task.subs, ch)
				close(ch)
			}
		}
	}

	return ch, cancel, nil
}

// Publish 发布一条进度事件
// 非阻塞发送：订阅者缓冲写满时事件被丢弃；终止事件关闭所有订阅并丢弃任务状态
func (b *Broadcaster) Publish(taskID string, event model.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	task, exists := b.tasks[taskID]
	if !exists || task.done {
		return
	}

	for ch := range task.subs {
		select {
		case ch <- event:
		default:
			logger.Debug("订阅者缓冲已满，丢弃进度事件",
				logger.String("taskId", taskID))
		}
	}

	if event.IsTerminal() {
		task.done = true
		for ch := range task.subs {
			close(ch)
		}
		delete(b.tasks, taskID)
	}
}
