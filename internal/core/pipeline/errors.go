package pipeline

import "errors"

var (
	// ErrEmptyPipeline 管道至少需要一个阶段
	ErrEmptyPipeline = errors.New("pipeline: no stages")

	// ErrStageNotFound 阶段不存在
	ErrStageNotFound = errors.New("pipeline: stage not found")

	// ErrDuplicateStage 同名阶段已存在
	ErrDuplicateStage = errors.New("pipeline: duplicate stage")

	// ErrUnknownStage 注册表中没有该阶段
	ErrUnknownStage = errors.New("pipeline: unknown stage")

	// ErrAborted 管道已被取消
	ErrAborted = errors.New("pipeline: aborted")
)
