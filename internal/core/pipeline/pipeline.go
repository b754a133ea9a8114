package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-mcproto/internal/core/transform"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/lib/log"
	"github.com/dep2p/go-mcproto/pkg/types"
)

var logger = log.Logger("core/pipeline")

// ErrorHandler 接收阶段返回的非致命错误
type ErrorHandler func(stage StageName, err error)

// Pipeline 有序的阶段组合
//
// 相邻阶段在 push 时才解析，替换后的实例在下一个帧边界生效。
type Pipeline struct {
	flow Flow

	mu      sync.RWMutex
	stages  []*Stage
	index   map[StageName]int
	sink    interfaces.Push
	onError ErrorHandler

	// retired 等待关闭的实例，只在没有写入进行时关闭
	retired []interfaces.Transformer

	// writeMu 串行化写入，保证 FIFO
	writeMu sync.Mutex
	// stageErrs 本次写入累积的非致命错误，释放 writeMu 后再交给处理器
	stageErrs []stageError

	ctx       context.Context
	cancel    context.CancelFunc
	abortOnce sync.Once
}

// New 用给定阶段创建管道
func New(flow Flow, stages ...*Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, ErrEmptyPipeline
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		flow:   flow,
		stages: make([]*Stage, 0, len(stages)),
		index:  make(map[StageName]int, len(stages)),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, st := range stages {
		if _, dup := p.index[st.Name]; dup {
			cancel()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStage, st.Name)
		}
		st.Flow = flow
		p.index[st.Name] = len(p.stages)
		p.stages = append(p.stages, st)
	}
	return p, nil
}

// NewInput 按输入顺序创建四个内置阶段
//
// opts 中缺失的阶段以直通占位。
func NewInput(opts map[StageName]interfaces.Options) (*Pipeline, error) {
	return newBuiltin(Input, opts)
}

// NewOutput 按输出顺序创建四个内置阶段
func NewOutput(opts map[StageName]interfaces.Options) (*Pipeline, error) {
	return newBuiltin(Output, opts)
}

func newBuiltin(flow Flow, opts map[StageName]interfaces.Options) (*Pipeline, error) {
	order := flow.Order()
	stages := make([]*Stage, 0, len(order))
	for _, name := range order {
		st, err := NewStage(name, flow, opts[name])
		if err != nil {
			for _, s := range stages {
				_ = s.Transformer.Close()
			}
			return nil, err
		}
		stages = append(stages, st)
	}
	return New(flow, stages...)
}

// ============================================================================
//                              查询
// ============================================================================

// Flow 返回管道方向
func (p *Pipeline) Flow() Flow {
	return p.flow
}

// Len 返回阶段数
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.stages)
}

// Names 按遍历顺序返回阶段名称
func (p *Pipeline) Names() []StageName {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]StageName, len(p.stages))
	for i, st := range p.stages {
		out[i] = st.Name
	}
	return out
}

// Has 判断阶段是否存在
func (p *Pipeline) Has(name StageName) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.index[name]
	return ok
}

// Index 返回阶段位置，不存在时返回 -1
func (p *Pipeline) Index(name StageName) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i, ok := p.index[name]; ok {
		return i
	}
	return -1
}

// Get 按名称返回阶段快照
func (p *Pipeline) Get(name StageName) (Stage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i, ok := p.index[name]
	if !ok {
		return Stage{}, false
	}
	return p.snapshot(i), true
}

// At 按位置返回阶段快照
func (p *Pipeline) At(i int) (Stage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i < 0 || i >= len(p.stages) {
		return Stage{}, false
	}
	return p.snapshot(i), true
}

// Before 返回位置 i 之前的阶段
func (p *Pipeline) Before(i int) (Stage, bool) {
	return p.At(i - 1)
}

// After 返回位置 i 之后的阶段
func (p *Pipeline) After(i int) (Stage, bool) {
	return p.At(i + 1)
}

func (p *Pipeline) snapshot(i int) Stage {
	st := *p.stages[i]
	st.Options = st.Options.Clone()
	return st
}

// WritableCapacity 返回首个阶段的入站流控容量
func (p *Pipeline) WritableCapacity() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if fc, ok := p.stages[0].Transformer.(interfaces.FlowControl); ok {
		return fc.WritableHighWaterMark()
	}
	return transform.ByteHighWaterMark
}

// ReadableCapacity 返回最后一个阶段的出站流控容量
func (p *Pipeline) ReadableCapacity() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if fc, ok := p.stages[len(p.stages)-1].Transformer.(interfaces.FlowControl); ok {
		return fc.ReadableHighWaterMark()
	}
	return transform.ByteHighWaterMark
}

// ============================================================================
//                              修改
// ============================================================================

// Set 插入或替换阶段
//
// 同名阶段存在时原位替换；否则按方向的遍历顺序插入。Transformer 为 nil 时
// 由 Construct 与 Options 构造。
func (p *Pipeline) Set(st Stage) error {
	if st.Name == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownStage)
	}
	if st.Transformer == nil {
		t, err := build(st.Construct, st.Options)
		if err != nil {
			return fmt.Errorf("pipeline: construct %s %s: %w", p.flow, st.Name, err)
		}
		st.Transformer = t
	}
	st.Flow = p.flow
	st.Options = st.Options.Clone()

	p.mu.Lock()
	if p.ctx.Err() != nil {
		p.mu.Unlock()
		_ = st.Transformer.Close()
		return ErrAborted
	}
	if i, ok := p.index[st.Name]; ok {
		p.retired = append(p.retired, p.stages[i].Transformer)
		p.stages[i] = &st
	} else {
		pos := len(p.stages)
		rank := p.flow.rank(st.Name)
		for i, cur := range p.stages {
			if p.flow.rank(cur.Name) > rank {
				pos = i
				break
			}
		}
		p.stages = append(p.stages, nil)
		copy(p.stages[pos+1:], p.stages[pos:])
		p.stages[pos] = &st
		p.reindex()
	}
	p.mu.Unlock()

	logger.Debug("阶段已设置", "flow", p.flow, "stage", st.Name, "disabled", st.Disabled())
	p.reap()
	return nil
}

// Update 以新选项更新阶段
//
// 可热更新的存活阶段只应用变化的字段，不构造新实例；其他情况把 opts
// 合并到上次的选项上重新构造并替换。opts 为 nil 时阶段被禁用。
func (p *Pipeline) Update(name StageName, opts interfaces.Options) error {
	p.mu.Lock()
	if p.ctx.Err() != nil {
		p.mu.Unlock()
		return ErrAborted
	}
	i, ok := p.index[name]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStageNotFound, name)
	}
	st := p.stages[i]

	if hr, ok := st.Transformer.(interfaces.HotReloader); ok && st.HotReloadable && opts != nil && st.Options != nil {
		err := p.applyLocked(st, hr, opts)
		p.mu.Unlock()
		return err
	}

	var merged interfaces.Options
	if opts != nil {
		merged = st.Options.Merge(opts)
	}
	t, err := build(st.Construct, merged)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("pipeline: construct %s %s: %w", p.flow, name, err)
	}
	next := *st
	next.Transformer = t
	next.Options = merged
	p.retired = append(p.retired, st.Transformer)
	p.stages[i] = &next
	p.mu.Unlock()

	logger.Debug("阶段已替换", "flow", p.flow, "stage", name, "disabled", next.Disabled())
	p.reap()
	return nil
}

// applyLocked 逐字段应用变化的选项
func (p *Pipeline) applyLocked(st *Stage, hr interfaces.HotReloader, opts interfaces.Options) error {
	fields := make([]string, 0, len(opts))
	for k := range opts {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	for _, field := range fields {
		v := opts[field]
		if old, ok := st.Options[field]; ok && reflect.DeepEqual(old, v) {
			continue
		}
		if err := hr.Apply(field, v); err != nil {
			return fmt.Errorf("pipeline: update %s %s.%s: %w", p.flow, st.Name, field, err)
		}
		st.Options[field] = v
	}
	logger.Debug("阶段已热更新", "flow", p.flow, "stage", st.Name, "fields", fields)
	return nil
}

func (p *Pipeline) reindex() {
	for k := range p.index {
		delete(p.index, k)
	}
	for i, st := range p.stages {
		p.index[st.Name] = i
	}
}

// ============================================================================
//                              写入
// ============================================================================

// SetSink 设置最后一个阶段的输出
func (p *Pipeline) SetSink(sink interfaces.Push) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

// SetErrorHandler 设置非致命错误处理器
func (p *Pipeline) SetErrorHandler(h ErrorHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = h
}

// Write 把数据块推过所有阶段
//
// 返回时数据块已被完全消费。阶段返回的非致命错误不会中断后续帧，
// 在本次写入结束、写锁释放后按发生顺序交给错误处理器，处理器中可以再次写入；
// 致命错误（types.IsFatal）原样返回。
func (p *Pipeline) Write(chunk any) error {
	return p.write(-1, chunk)
}

// WriteAfter 从指定阶段之后开始写入
//
// 用于绕过序列化直接写入原始数据包字节。
func (p *Pipeline) WriteAfter(name StageName, chunk any) error {
	i := p.Index(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrStageNotFound, name)
	}
	return p.write(i, chunk)
}

type stageError struct {
	stage StageName
	err   error
}

func (p *Pipeline) write(prev int, chunk any) error {
	p.writeMu.Lock()
	err := p.run(p.ctx, prev, chunk)
	if cerr := p.reapLocked(); cerr != nil {
		logger.Warn("关闭阶段失败", "flow", p.flow, "err", cerr)
	}
	failed := p.stageErrs
	p.stageErrs = nil
	p.writeMu.Unlock()

	// 处理器可能再次写入本管道
	for _, se := range failed {
		p.report(se.stage, se.err)
	}

	p.mu.RLock()
	pending := len(p.retired) > 0
	p.mu.RUnlock()
	if pending {
		p.reap()
	}
	return err
}

// run 把数据块交给 prev 之后的阶段
func (p *Pipeline) run(ctx context.Context, prev int, chunk any) error {
	if ctx.Err() != nil {
		return ErrAborted
	}

	p.mu.RLock()
	next := prev + 1
	if next >= len(p.stages) {
		sink := p.sink
		p.mu.RUnlock()
		if sink == nil {
			return nil
		}
		return sink(chunk)
	}
	st := p.stages[next]
	p.mu.RUnlock()

	err := st.Transformer.Transform(ctx, chunk, func(out any) error {
		// 按名称重新定位，插入或替换后仍能找到正确的下游
		return p.run(ctx, p.Index(st.Name), out)
	})
	if err == nil || types.IsFatal(err) || errors.Is(err, ErrAborted) || ctx.Err() != nil {
		return err
	}
	p.stageErrs = append(p.stageErrs, stageError{stage: st.Name, err: err})
	return nil
}

func (p *Pipeline) report(stage StageName, err error) {
	p.mu.RLock()
	h := p.onError
	p.mu.RUnlock()
	if h != nil {
		h(stage, err)
		return
	}
	logger.Warn("阶段错误", "flow", p.flow, "stage", stage, "err", err)
}

// ============================================================================
//                              取消与关闭
// ============================================================================

// Abort 触发共享取消信号
//
// 之后的写入返回 ErrAborted，所有阶段在没有写入进行时被关闭。
// 可以在阶段回调内部调用。
func (p *Pipeline) Abort() {
	p.abortOnce.Do(func() {
		p.cancel()
		p.mu.Lock()
		for _, st := range p.stages {
			p.retired = append(p.retired, st.Transformer)
		}
		p.mu.Unlock()
		logger.Debug("管道已取消", "flow", p.flow)
	})
	p.reap()
}

// Done 返回取消信号
func (p *Pipeline) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Aborted 是否已取消
func (p *Pipeline) Aborted() bool {
	return p.ctx.Err() != nil
}

// Close 取消管道并等待所有阶段关闭
//
// 不能在阶段回调内部调用，回调中应使用 Abort。
func (p *Pipeline) Close() error {
	p.Abort()
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.reapLocked()
}

// reap 在没有写入进行时关闭已退役的实例
func (p *Pipeline) reap() {
	if !p.writeMu.TryLock() {
		return
	}
	defer p.writeMu.Unlock()
	if err := p.reapLocked(); err != nil {
		logger.Warn("关闭阶段失败", "flow", p.flow, "err", err)
	}
}

func (p *Pipeline) reapLocked() error {
	p.mu.Lock()
	retired := p.retired
	p.retired = nil
	p.mu.Unlock()

	var err error
	for _, t := range retired {
		err = multierr.Append(err, t.Close())
	}
	return err
}
