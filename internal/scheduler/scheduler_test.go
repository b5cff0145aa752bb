package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2023, 1, 1, 10, 15, 0, 0, time.UTC)

	if got := s.nextTick(now); !got.Equal(time.Date(2023, 1, 1, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("对齐后的下一次执行时间不正确: %s", got)
	}
	onBoundary := time.Date(2023, 1, 1, 11, 0, 0, 0, time.UTC)
	if got := s.nextTick(onBoundary); !got.Equal(onBoundary.Add(time.Hour)) {
		t.Fatalf("整点时应顺延一个周期: %s", got)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s := New(Options{Interval: 10 * time.Minute}, zerolog.Nop())
	now := time.Date(2023, 1, 1, 10, 15, 3, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("未对齐时应为 now+interval: %s", got)
	}
	if got := s.bucketStart(now); !got.Equal(now) {
		t.Fatalf("未对齐时 bucket 应为原值: %s", got)
	}
}

func TestNewPanicsOnZeroInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("interval 为 0 时应 panic")
		}
	}()
	New(Options{}, zerolog.Nop())
}

func TestRunImmediatelyAndSequential(t *testing.T) {
	s := New(Options{Interval: 20 * time.Millisecond, RunImmediately: true}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var running, overlaps, calls int32
	err := s.Run(ctx, func(ctx context.Context, _ time.Time) error {
		if atomic.AddInt32(&running, 1) > 1 {
			atomic.AddInt32(&overlaps, 1)
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		if atomic.AddInt32(&calls, 1) == 3 {
			cancel()
		}
		return errors.New("pass failed")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("取消后应返回 context.Canceled, 实际 %v", err)
	}
	if calls != 3 {
		t.Fatalf("期望执行 3 次, 实际 %d", calls)
	}
	if overlaps != 0 {
		t.Fatalf("执行不应重叠")
	}
}
