package crawlers

import (
	"errors"
	"testing"
)

func TestWorkerBudget_Workers(t *testing.T) {
	const mb = 1024 * 1024

	tests := []struct {
		name       string
		reserveMB  int
		available  uint64
		err        error
		configured int
		want       int
	}{
		{"内存充足", 256, 4096 * mb, nil, 8, 8},
		{"内存不足减半", 256, 100 * mb, nil, 8, 4},
		{"减半后至少为1", 256, 100 * mb, nil, 1, 1},
		{"读取失败使用配置值", 256, 0, errors.New("unsupported"), 8, 8},
		{"未设置保留值", 0, 1 * mb, nil, 8, 8},
		{"非法配置值", 256, 4096 * mb, nil, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewWorkerBudget(tt.reserveMB)
			b.availableMemory = func() (uint64, error) { return tt.available, tt.err }
			if got := b.Workers(tt.configured); got != tt.want {
				t.Errorf("Workers(%d) = %d, want %d", tt.configured, got, tt.want)
			}
		})
	}
}

func TestWorkerBudget_Real(t *testing.T) {
	if got := NewWorkerBudget(1).Workers(4); got < 2 {
		t.Errorf("Workers() = %d", got)
	}
}
