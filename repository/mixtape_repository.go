package repository

import (
	"fmt"
	"sync"

	"MixFM/model"
)

// MixtapeProvider 提供混音带元数据
// 元数据的持久化由应用其他部分负责，音频分发核心只消费这个接口
type MixtapeProvider interface {
	GetMixtapeByID(id string) (*model.Mixtape, error)
}

// InMemoryMixtapeProvider 内存实现，用于接线和测试
type InMemoryMixtapeProvider struct {
	mu       sync.RWMutex
	mixtapes map[string]*model.Mixtape
}

// NewInMemoryMixtapeProvider 创建空的内存 Provider
func NewInMemoryMixtapeProvider() *InMemoryMixtapeProvider {
	return &InMemoryMixtapeProvider{
		mixtapes: make(map[string]*model.Mixtape),
	}
}

// Put 登记一盘混音带
func (p *InMemoryMixtapeProvider) Put(mixtape *model.Mixtape) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.mixtapes[mixtape.ID] = mixtape
}

// GetMixtapeByID 按 ID 查找混音带
func (p *InMemoryMixtapeProvider) GetMixtapeByID(id string) (*model.Mixtape, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	mixtape, exists := p.mixtapes[id]
	if !exists {
		return nil, fmt.Errorf("mixtape not found: %s", id)
	}
	return mixtape, nil
}
