package store

import (
	"context"

	"github.com/admi-n/bytecode-excavator/src/internal"
)

// Sink 接收命中记录的持久化目标
type Sink interface {
	Append(ctx context.Context, rec *internal.MatchRecord) error
}

var (
	_ Sink = (*ResultFile)(nil)
	_ Sink = (*Archive)(nil)
)

// Multi 依次写入多个 Sink，任一失败立即返回
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multiSink []Sink

func (m multiSink) Append(ctx context.Context, rec *internal.MatchRecord) error {
	for _, s := range m {
		if err := s.Append(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
