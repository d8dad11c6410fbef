package crawlers

import (
	"github.com/RecoveryAshes/sitemirror/internal/utils"
	"github.com/shirou/gopsutil/v3/mem"
)

// WorkerBudget 下载并发数守卫
// 运行开始时读取一次可用内存,低于保留值则把并发数减半,整个运行期间保持不变
type WorkerBudget struct {
	// 可用内存低于该值(MB)时降级
	SafetyReserveMemory int

	// 可用内存读取函数,测试时可替换
	availableMemory func() (uint64, error)
}

// NewWorkerBudget 创建并发数守卫
func NewWorkerBudget(safetyReserveMB int) *WorkerBudget {
	return &WorkerBudget{
		SafetyReserveMemory: safetyReserveMB,
		availableMemory: func() (uint64, error) {
			vmStat, err := mem.VirtualMemory()
			if err != nil {
				return 0, err
			}
			return vmStat.Available, nil
		},
	}
}

// Workers 计算本次运行的固定并发数
func (b *WorkerBudget) Workers(configured int) int {
	if configured < 1 {
		configured = 1
	}
	if b == nil || b.SafetyReserveMemory <= 0 || b.availableMemory == nil {
		return configured
	}

	available, err := b.availableMemory()
	if err != nil {
		utils.Warnf("获取系统内存失败,使用配置的并发数: %v", err)
		return configured
	}

	availableMB := int64(available / (1024 * 1024))
	if availableMB >= int64(b.SafetyReserveMemory) {
		utils.Debugf("可用内存 %dMB, 并发数 %d", availableMB, configured)
		return configured
	}

	reduced := configured / 2
	if reduced < 1 {
		reduced = 1
	}
	utils.Warnf("可用内存不足(当前%dMB < %dMB),并发数由 %d 降为 %d",
		availableMB, b.SafetyReserveMemory, configured, reduced)
	return reduced
}
